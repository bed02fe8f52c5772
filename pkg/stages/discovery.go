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

	"github.com/copytree/copytree/pkg/discovery"
	"github.com/copytree/copytree/pkg/pipeline"
	"github.com/copytree/copytree/pkg/rules"

	copytreeerrors "github.com/copytree/copytree/internal/errors"
)

// ignoreFilenames are the layered-ignore-file names the discovery stage
// honors: a project's own .gitignore alongside a copytree-specific
// override file.
var ignoreFilenames = []string{".gitignore", ".copytreeignore"}

// DiscoveryStage walks BaseDir into a flat FileRecord list, consulting
// layered ignore files when Options.RespectGitignore is set. Parallel
// selects the bounded-worker-pool walker over the deterministic sequential
// one; callers that need reproducible ordering without a later Sort stage
// should leave it false.
type DiscoveryStage struct {
	Parallel bool
}

func (s *DiscoveryStage) Name() string { return "discovery" }

func (s *DiscoveryStage) Validate(in *pipeline.PipelinePayload) error {
	if in.BaseDir == "" {
		return copytreeerrors.NewValidationError("base directory is required", "", "pass a non-empty base path")
	}
	return nil
}

func (s *DiscoveryStage) Process(ctx context.Context, in *pipeline.PipelinePayload) (*pipeline.PipelinePayload, error) {
	out := in.Clone()

	var ignorer discovery.Ignorer
	if in.Options.RespectGitignore {
		layered, err := rules.BuildLayered(in.BaseDir, ignoreFilenames, in.Options.FollowSymlinks)
		if err != nil {
			return nil, copytreeerrors.NewFileSystemError(
				"failed to read ignore files", err.Error(), "check permissions on the ignore files",
				in.BaseDir, "build-layered-ignore", err)
		}
		ignorer = layered
	}

	cfg := discovery.WalkerConfig{
		Root:           in.BaseDir,
		Ignorer:        ignorer,
		IncludeHidden:  in.Options.IncludeHidden,
		FollowSymlinks: in.Options.FollowSymlinks,
		MaxDepth:       in.Options.MaxDepth,
		MaxFileSize:    in.Options.MaxFileSize,
		MaxTotalSize:   in.Options.MaxTotalSize,
		MaxFileCount:   in.Options.MaxFileCount,
		Concurrency:    in.Options.Concurrency,
	}

	var (
		result *discovery.Result
		err    error
	)
	if s.Parallel {
		result, err = discovery.WalkParallel(ctx, cfg)
	} else {
		result, err = discovery.WalkSequential(cfg)
	}
	if err != nil {
		return nil, copytreeerrors.NewFileSystemError(
			"failed to walk base directory", err.Error(), "check that the path exists and is readable",
			in.BaseDir, "walk", err)
	}

	out.Files = result.Files
	for reason, count := range result.SkipReasons {
		out.AddWarning(fmt.Sprintf("discovery: skipped %d entr(y/ies) (%s)", count, reason))
	}
	return out, nil
}
