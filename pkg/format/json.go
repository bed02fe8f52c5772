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
	"encoding/json"
	"fmt"
	"io"

	"github.com/copytree/copytree/pkg/pipeline"
)

// JSONFormatter renders a single JSON document: {"base":...,"generated":...,
// "tree":...,"files":[...]}. Because a JSON array can't be split across
// independent writes without tracking comma state, the formatter keeps a
// small bit of state (first-file-written) scoped to one Render call via the
// closure below rather than on the struct, so a formatter instance stays
// safe to reuse across goroutines.
type JSONFormatter struct {
	wroteFirstFile bool
}

func (j *JSONFormatter) Format() pipeline.OutputFormat { return pipeline.FormatJSON }

type jsonTreeNode struct {
	Name     string          `json:"name"`
	Type     string          `json:"type"`
	Size     int64           `json:"size,omitempty"`
	Children []*jsonTreeNode `json:"children,omitempty"`
}

func toJSONTree(n *TreeNode) *jsonTreeNode {
	out := &jsonTreeNode{Name: n.Name}
	if n.IsDir {
		out.Type = "dir"
		for _, c := range n.Children {
			out.Children = append(out.Children, toJSONTree(c))
		}
	} else {
		out.Type = "file"
		out.Size = n.Size
	}
	return out
}

func (j *JSONFormatter) Prologue(w io.Writer, tree *TreeNode, opts RenderOptions) error {
	j.wroteFirstFile = false
	treeJSON, err := json.Marshal(toJSONTree(tree))
	if err != nil {
		return err
	}
	fmt.Fprintf(w, `{"base":%s,"generated":%s,"tree":%s,"files":[`,
		mustJSON(opts.BaseDir), mustJSON(opts.Generated.UTC().Format(timeLayout)), treeJSON)
	return nil
}

type jsonFile struct {
	Path      string `json:"path"`
	Size      int64  `json:"size,omitempty"`
	GitStatus string `json:"gitStatus,omitempty"`
	Content   string `json:"content"`
}

func (j *JSONFormatter) PerFile(w io.Writer, f *pipeline.FileRecord, opts RenderOptions) error {
	if j.wroteFirstFile {
		fmt.Fprint(w, ",")
	}
	j.wroteFirstFile = true

	rec := jsonFile{Path: f.RelativePath, Content: fileBody(f, opts)}
	if opts.ShowSize {
		rec.Size = f.Size
	}
	rec.GitStatus = string(f.GitStatus)
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func (j *JSONFormatter) Epilogue(w io.Writer, stats Stats, opts RenderOptions) error {
	fmt.Fprint(w, "]")
	if opts.Instructions != "" {
		fmt.Fprintf(w, `,"instructions":%s`, mustJSON(opts.Instructions))
	}
	fmt.Fprintf(w, `,"summary":{"fileCount":%d,"totalBytes":%d}}`, stats.FileCount, stats.TotalBytes)
	return nil
}

func mustJSON(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
