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

	copytreeerrors "github.com/copytree/copytree/internal/errors"
	"github.com/copytree/copytree/pkg/discovery"
	"github.com/copytree/copytree/pkg/pipeline"
	"github.com/copytree/copytree/pkg/rules"
)

// AlwaysIncludeStage re-walks BaseDir unfiltered and unions in any file
// matching Options.Always that the earlier filter stages dropped.
type AlwaysIncludeStage struct{}

func (s *AlwaysIncludeStage) Name() string { return "always-include" }

func (s *AlwaysIncludeStage) Process(ctx context.Context, in *pipeline.PipelinePayload) (*pipeline.PipelinePayload, error) {
	if len(in.Options.Always) == 0 {
		return in, nil
	}

	always := make([]*rules.Rule, 0, len(in.Options.Always))
	for i, pattern := range in.Options.Always {
		rule, err := rules.Compile(pattern, "always-include", i+1, in.BaseDir)
		if err != nil {
			return nil, copytreeerrors.NewPatternError("invalid always-include pattern", err.Error(),
				"check the always list for a malformed glob", err)
		}
		always = append(always, rule)
	}

	result, err := discovery.WalkSequential(discovery.WalkerConfig{
		Root:           in.BaseDir,
		IncludeHidden:  true,
		FollowSymlinks: in.Options.FollowSymlinks,
		MaxFileSize:    in.Options.MaxFileSize,
		MaxTotalSize:   in.Options.MaxTotalSize,
		MaxFileCount:   in.Options.MaxFileCount,
	})
	if err != nil {
		return nil, copytreeerrors.NewFileSystemError(
			"failed to walk base directory for always-include patterns", err.Error(),
			"check that the path exists and is readable", in.BaseDir, "walk-always", err)
	}

	out := in.Clone()
	present := make(map[string]struct{}, len(out.Files))
	for _, f := range out.Files {
		present[f.RelativePath] = struct{}{}
	}

	for _, f := range result.Files {
		if _, ok := present[f.RelativePath]; ok {
			continue
		}
		for _, rule := range always {
			if rule.Match(f.RelativePath, false) && !rule.Negated {
				out.Files = append(out.Files, f)
				present[f.RelativePath] = struct{}{}
				break
			}
		}
	}

	return out, nil
}
