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
	"fmt"

	"github.com/copytree/copytree/pkg/pipeline"
)

// LimitStage re-enforces Options.MaxFileCount/MaxTotalSize after discovery,
// always-include, and external-source merges have all had a chance to grow
// the file list past what any single stage's own cap saw. Files are
// kept in their current order and trimmed from the tail once a cap is hit,
// so callers relying on the earlier stage's sort/priority keep their
// highest-priority files.
type LimitStage struct{}

func (s *LimitStage) Name() string { return "limit" }

func (s *LimitStage) Process(ctx context.Context, in *pipeline.PipelinePayload) (*pipeline.PipelinePayload, error) {
	if in.Options.MaxFileCount <= 0 && in.Options.MaxTotalSize <= 0 {
		return in, nil
	}

	out := in.Clone()
	kept := make([]*pipeline.FileRecord, 0, len(out.Files))
	var totalSize int64
	droppedCount := 0
	droppedSize := 0

	for _, f := range out.Files {
		if in.Options.MaxFileCount > 0 && len(kept) >= in.Options.MaxFileCount {
			droppedCount++
			continue
		}
		if in.Options.MaxTotalSize > 0 && totalSize+f.Size > in.Options.MaxTotalSize {
			droppedSize++
			continue
		}
		kept = append(kept, f)
		totalSize += f.Size
	}

	if droppedCount > 0 {
		out.AddWarning(fmt.Sprintf("limit: dropped %d file(s) past max-file-count", droppedCount))
	}
	if droppedSize > 0 {
		out.AddWarning(fmt.Sprintf("limit: dropped %d file(s) past max-total-size", droppedSize))
	}

	out.Files = kept
	return out, nil
}
