// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package format

import (
	"fmt"
	"io"
	"strings"

	"github.com/copytree/copytree/pkg/pipeline"
)

// MarkdownFormatter renders YAML front-matter, a fenced tree block, and one
// fenced code block per file delimited by copytree:file-begin/end markers
// so a reader (human or model) can locate a specific file's bounds
// without parsing the fence language.
type MarkdownFormatter struct{}

func (m *MarkdownFormatter) Format() pipeline.OutputFormat { return pipeline.FormatMarkdown }

func (m *MarkdownFormatter) Prologue(w io.Writer, tree *TreeNode, opts RenderOptions) error {
	fmt.Fprint(w, "---\n")
	fmt.Fprintf(w, "base: %s\n", opts.BaseDir)
	fmt.Fprintf(w, "generated: %s\n", opts.Generated.UTC().Format(timeLayout))
	fmt.Fprint(w, "---\n\n")

	if opts.Instructions != "" {
		fmt.Fprint(w, "<!-- copytree:instructions-begin -->\n")
		fmt.Fprintln(w, opts.Instructions)
		fmt.Fprint(w, "<!-- copytree:instructions-end -->\n\n")
	}

	fmt.Fprint(w, "```text\n")
	writeTreeMarkdown(w, tree, 0)
	fmt.Fprint(w, "```\n\n")
	return nil
}

func writeTreeMarkdown(w io.Writer, n *TreeNode, depth int) {
	for _, c := range n.Children {
		fmt.Fprintf(w, "%s%s\n", strings.Repeat("  ", depth), c.Name)
		if c.IsDir {
			writeTreeMarkdown(w, c, depth+1)
		}
	}
}

func (m *MarkdownFormatter) PerFile(w io.Writer, f *pipeline.FileRecord, opts RenderOptions) error {
	fmt.Fprintf(w, "<!-- copytree:file-begin path=%q -->\n", "@"+f.RelativePath)
	fmt.Fprintf(w, "### %s\n\n", f.RelativePath)
	fmt.Fprintf(w, "```%s\n", fenceLanguage(f.RelativePath))
	fmt.Fprint(w, fileBody(f, opts))
	fmt.Fprint(w, "\n```\n")
	fmt.Fprintf(w, "<!-- copytree:file-end path=%q -->\n\n", "@"+f.RelativePath)
	return nil
}

func (m *MarkdownFormatter) Epilogue(w io.Writer, stats Stats, opts RenderOptions) error {
	fmt.Fprintf(w, "---\n\n_%d files, %d bytes_\n", stats.FileCount, stats.TotalBytes)
	return nil
}
