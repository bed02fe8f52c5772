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
	"io"

	"github.com/copytree/copytree/pkg/pipeline"
)

// NDJSONFormatter renders one JSON object per line: a "meta" record, a
// "tree" record, then one "file" record per FileRecord. Newline-
// delimited JSON is naturally append-only, so this is the format best
// suited to a consumer that wants to start processing before the run
// finishes.
type NDJSONFormatter struct{}

func (n *NDJSONFormatter) Format() pipeline.OutputFormat { return pipeline.FormatNDJSON }

func (n *NDJSONFormatter) Prologue(w io.Writer, tree *TreeNode, opts RenderOptions) error {
	enc := json.NewEncoder(w)
	if err := enc.Encode(map[string]any{
		"type":      "meta",
		"base":      opts.BaseDir,
		"generated": opts.Generated.UTC().Format(timeLayout),
	}); err != nil {
		return err
	}
	return enc.Encode(map[string]any{
		"type": "tree",
		"tree": toJSONTree(tree),
	})
}

func (n *NDJSONFormatter) PerFile(w io.Writer, f *pipeline.FileRecord, opts RenderOptions) error {
	enc := json.NewEncoder(w)
	return enc.Encode(map[string]any{
		"type":      "file",
		"path":      f.RelativePath,
		"size":      f.Size,
		"gitStatus": string(f.GitStatus),
		"content":   fileBody(f, opts),
	})
}

func (n *NDJSONFormatter) Epilogue(w io.Writer, stats Stats, opts RenderOptions) error {
	enc := json.NewEncoder(w)
	if opts.Instructions != "" {
		if err := enc.Encode(map[string]any{
			"type":         "instructions",
			"instructions": opts.Instructions,
		}); err != nil {
			return err
		}
	}
	return enc.Encode(map[string]any{
		"type":       "summary",
		"fileCount":  stats.FileCount,
		"totalBytes": stats.TotalBytes,
	})
}
