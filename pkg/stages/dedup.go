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
	"crypto/sha256"
	"encoding/hex"

	"github.com/copytree/copytree/pkg/pipeline"
)

// DedupStage collapses files carrying identical content down to one record,
// per the resolved open question: keyed on content hash, preferring the
// shortest RelativePath and breaking ties lexicographically so the result is
// deterministic regardless of discovery order. Files without loaded content
// (Err set, or Transform disabled) are kept as-is and never merged with one
// another, since an empty hash would otherwise collide them all.
type DedupStage struct{}

func (s *DedupStage) Name() string { return "dedup" }

func (s *DedupStage) Process(ctx context.Context, in *pipeline.PipelinePayload) (*pipeline.PipelinePayload, error) {
	if !in.Options.Dedupe {
		return in, nil
	}

	out := in.Clone()
	best := make(map[string]*pipeline.FileRecord)
	var order []string
	var unhashed []*pipeline.FileRecord

	for _, f := range out.Files {
		if f.Err != nil || !f.Loaded {
			unhashed = append(unhashed, f)
			continue
		}

		hash := f.ContentHash
		if hash == "" {
			hash = contentHash(f)
		}

		cp := f.Clone()
		cp.ContentHash = hash

		cur, ok := best[hash]
		if !ok {
			best[hash] = cp
			order = append(order, hash)
			continue
		}
		if preferOver(cp, cur) {
			best[hash] = cp
		}
	}

	kept := make([]*pipeline.FileRecord, 0, len(order)+len(unhashed))
	for _, hash := range order {
		kept = append(kept, best[hash])
	}
	kept = append(kept, unhashed...)
	out.Files = kept
	return out, nil
}

// preferOver reports whether candidate should replace incumbent as the
// kept record for a content hash: shorter RelativePath wins, lexicographic
// order breaks ties.
func preferOver(candidate, incumbent *pipeline.FileRecord) bool {
	if len(candidate.RelativePath) != len(incumbent.RelativePath) {
		return len(candidate.RelativePath) < len(incumbent.RelativePath)
	}
	return candidate.RelativePath < incumbent.RelativePath
}

// contentHash hashes a file's text or raw bytes, whichever is populated.
func contentHash(f *pipeline.FileRecord) string {
	h := sha256.New()
	if f.IsBinary {
		h.Write(f.Raw)
	} else {
		h.Write([]byte(f.Content))
	}
	return hex.EncodeToString(h.Sum(nil))
}
