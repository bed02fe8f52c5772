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

package stages

import (
	"context"
	"path"
	"sort"
	"strings"

	"github.com/copytree/copytree/pkg/pipeline"
)

// SortStage orders the final file list per Options.Sort. Ties within a
// key always fall back to RelativePath so output is deterministic.
type SortStage struct{}

func (s *SortStage) Name() string { return "sort" }

func (s *SortStage) Process(ctx context.Context, in *pipeline.PipelinePayload) (*pipeline.PipelinePayload, error) {
	order := in.Options.Sort
	if order == "" {
		order = pipeline.SortPath
	}

	out := in.Clone()
	files := out.Files
	sort.SliceStable(files, func(i, j int) bool {
		a, b := files[i], files[j]
		switch order {
		case pipeline.SortSize:
			if a.Size != b.Size {
				return a.Size < b.Size
			}
		case pipeline.SortModified:
			if !a.ModifiedTime.Equal(b.ModifiedTime) {
				return a.ModifiedTime.Before(b.ModifiedTime)
			}
		case pipeline.SortName:
			an, bn := path.Base(a.RelativePath), path.Base(b.RelativePath)
			if an != bn {
				return an < bn
			}
		case pipeline.SortExtension:
			ae, be := strings.ToLower(path.Ext(a.RelativePath)), strings.ToLower(path.Ext(b.RelativePath))
			if ae != be {
				return ae < be
			}
		case pipeline.SortDepth:
			ad, bd := depthOf(a.RelativePath), depthOf(b.RelativePath)
			if ad != bd {
				return ad < bd
			}
		}
		return comparePath(a.RelativePath, b.RelativePath)
	})
	out.Files = files
	return out, nil
}

// comparePath orders two slash-separated relative paths by plain byte-wise
// comparison, the tie-break every other sort key falls back to so the final
// order is always deterministic. Byte order is deliberate: it keeps
// README.md ahead of index.js at the root, which a case-folding comparator
// would invert (see DESIGN.md's sort-comparator note).
func comparePath(a, b string) bool {
	return a < b
}

func depthOf(relPath string) int {
	return strings.Count(relPath, "/")
}
