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
	"strings"

	copytreeerrors "github.com/copytree/copytree/internal/errors"
	"github.com/copytree/copytree/pkg/pipeline"
	"github.com/copytree/copytree/pkg/rules"
)

// RulesetFilterStage applies the resolved profile/CLI include and exclude
// patterns against the files discovery already found. Include/exclude
// here is independent of the layered ignore files the discovery stage
// already consulted; "no include patterns" means accept everything that
// survived discovery.
type RulesetFilterStage struct{}

func (s *RulesetFilterStage) Name() string { return "ruleset-filter" }

func (s *RulesetFilterStage) Process(ctx context.Context, in *pipeline.PipelinePayload) (*pipeline.PipelinePayload, error) {
	if len(in.Options.Include) == 0 && len(in.Options.Exclude) == 0 {
		return in, nil
	}

	filter := rules.New()
	if len(in.Options.Include) > 0 {
		set, err := rules.ParseLines(strings.Join(in.Options.Include, "\n"), "profile-include", in.BaseDir)
		if err != nil {
			return nil, copytreeerrors.NewPatternError("invalid include pattern", err.Error(),
				"check the include list for a malformed glob", err)
		}
		filter.AddIncludeSet(rules.IncludeSet(set))
	}
	for i, pattern := range in.Options.Exclude {
		rule, err := rules.Compile(pattern, "profile-exclude", i+1, in.BaseDir)
		if err != nil {
			return nil, copytreeerrors.NewPatternError("invalid exclude pattern", err.Error(),
				"check the exclude list for a malformed glob", err)
		}
		filter.AddExclude(rule)
	}

	out := in.Clone()
	kept := make([]*pipeline.FileRecord, 0, len(out.Files))
	for _, f := range out.Files {
		if filter.Accept(f.RelativePath, false) {
			kept = append(kept, f)
		}
	}
	out.Files = kept
	return out, nil
}
