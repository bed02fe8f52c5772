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
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/copytree/copytree/pkg/pipeline"
)

// XMLFormatter renders the default artifact shape: a <copytree> root
// holding a <tree> block followed by one <file> element per record.
type XMLFormatter struct{}

func (x *XMLFormatter) Format() pipeline.OutputFormat { return pipeline.FormatXML }

func (x *XMLFormatter) Prologue(w io.Writer, tree *TreeNode, opts RenderOptions) error {
	fmt.Fprintf(w, "<copytree base=%q generated=%q>\n", opts.BaseDir, opts.Generated.UTC().Format(timeLayout))
	fmt.Fprint(w, "  <tree>\n")
	writeTreeXML(w, tree, 2)
	fmt.Fprint(w, "  </tree>\n")
	fmt.Fprint(w, "  <files>\n")
	return nil
}

func writeTreeXML(w io.Writer, n *TreeNode, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, c := range n.Children {
		if c.IsDir {
			fmt.Fprintf(w, "%s<dir name=%q>\n", indent, c.Name)
			writeTreeXML(w, c, depth+1)
			fmt.Fprintf(w, "%s</dir>\n", indent)
		} else {
			fmt.Fprintf(w, "%s<entry name=%q size=\"%d\"/>\n", indent, c.Name, c.Size)
		}
	}
}

func (x *XMLFormatter) PerFile(w io.Writer, f *pipeline.FileRecord, opts RenderOptions) error {
	attrs := fmt.Sprintf("path=%q", f.RelativePath)
	if opts.ShowSize {
		attrs += fmt.Sprintf(" size=\"%d\"", f.Size)
	}
	if f.GitStatus != "" {
		attrs += fmt.Sprintf(" gitStatus=%q", string(f.GitStatus))
	}
	fmt.Fprintf(w, "    <file %s>", attrs)
	xml.EscapeText(w, []byte(fileBody(f, opts)))
	fmt.Fprint(w, "</file>\n")
	return nil
}

func (x *XMLFormatter) Epilogue(w io.Writer, stats Stats, opts RenderOptions) error {
	fmt.Fprint(w, "  </files>\n")
	if opts.Instructions != "" {
		fmt.Fprint(w, "  <instructions>")
		xml.EscapeText(w, []byte(opts.Instructions))
		fmt.Fprint(w, "</instructions>\n")
	}
	fmt.Fprintf(w, "  <summary fileCount=\"%d\" totalBytes=\"%d\"/>\n", stats.FileCount, stats.TotalBytes)
	fmt.Fprint(w, "</copytree>\n")
	return nil
}

const timeLayout = "2006-01-02T15:04:05Z07:00"
