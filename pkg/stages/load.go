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

	"golang.org/x/sync/errgroup"

	"github.com/copytree/copytree/pkg/pipeline"
	"github.com/copytree/copytree/pkg/transform/builtin"
)

// LoadStage reads every surviving file's content from disk with a bounded
// worker pool, sharing the Loader's binary/encoding detection so the
// Transform stage always sees Loaded records. A per-file read failure is
// recorded on FileRecord.Err rather than aborting the whole run.
type LoadStage struct {
	Loader      *builtin.Loader
	Concurrency int
}

func (s *LoadStage) Name() string { return "load" }

func (s *LoadStage) Process(ctx context.Context, in *pipeline.PipelinePayload) (*pipeline.PipelinePayload, error) {
	loader := s.Loader
	if loader == nil {
		loader = &builtin.Loader{MaxFileSize: in.Options.MaxFileSize}
	}

	out := in.Clone()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(clampConcurrency(s.Concurrency))

	loaded := make([]*pipeline.FileRecord, len(out.Files))
	for i, f := range out.Files {
		i, f := i, f
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			if f.Loaded || !loader.CanTransform(f) {
				loaded[i] = f
				return nil
			}
			next, err := loader.DoTransform(f)
			if err != nil {
				cp := f.Clone()
				cp.Err = err
				loaded[i] = cp
				return nil
			}
			loaded[i] = next
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	out.Files = loaded
	return out, nil
}
