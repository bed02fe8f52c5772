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

	"github.com/copytree/copytree/pkg/pipeline"
)

// TreeFormatter renders only the directory tree, ignoring file bodies
// entirely.
type TreeFormatter struct{}

func (t *TreeFormatter) Format() pipeline.OutputFormat { return pipeline.FormatTree }

func (t *TreeFormatter) Prologue(w io.Writer, tree *TreeNode, opts RenderOptions) error {
	fmt.Fprintf(w, "%s\n", opts.BaseDir)
	writeTreeASCII(w, tree, "")
	return nil
}

func writeTreeASCII(w io.Writer, n *TreeNode, prefix string) {
	for i, c := range n.Children {
		last := i == len(n.Children)-1
		branch := "├── "
		nextPrefix := prefix + "│   "
		if last {
			branch = "└── "
			nextPrefix = prefix + "    "
		}
		fmt.Fprintf(w, "%s%s%s\n", prefix, branch, c.Name)
		if c.IsDir {
			writeTreeASCII(w, c, nextPrefix)
		}
	}
}

func (t *TreeFormatter) PerFile(w io.Writer, f *pipeline.FileRecord, opts RenderOptions) error {
	return nil
}

func (t *TreeFormatter) Epilogue(w io.Writer, stats Stats, opts RenderOptions) error {
	fmt.Fprintf(w, "\n%d files, %d bytes\n", stats.FileCount, stats.TotalBytes)
	return nil
}
