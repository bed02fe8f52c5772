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
	"github.com/copytree/copytree/pkg/gitutil"
	"github.com/copytree/copytree/pkg/pipeline"
)

// GitFilterStage narrows the discovered file list to the "modified" or
// "changes=<from>[:<to>]" working-tree selections, and optionally annotates
// every surviving file's GitStatus.
type GitFilterStage struct{}

func (s *GitFilterStage) Name() string { return "git-filter" }

func (s *GitFilterStage) Validate(in *pipeline.PipelinePayload) error {
	if in.Options.Modified && in.Options.Changes != "" {
		return copytreeerrors.NewConfigurationError(
			"\"modified\" and \"changes\" are mutually exclusive",
			"both options select a working-tree file set",
			"pass only one of modified or changes", nil)
	}
	return nil
}

func (s *GitFilterStage) Process(ctx context.Context, in *pipeline.PipelinePayload) (*pipeline.PipelinePayload, error) {
	out := in.Clone()

	switch {
	case in.Options.Modified:
		wanted, err := gitutil.ModifiedFiles(ctx, in.BaseDir)
		if err != nil {
			return nil, copytreeerrors.NewGitError("failed to list modified files", err.Error(),
				"check that the base directory is a git working tree", err)
		}
		out.Files = intersect(out.Files, gitutil.ToSet(wanted))

	case in.Options.Changes != "":
		from, to, err := gitutil.ParseChanges(in.Options.Changes)
		if err != nil {
			return nil, copytreeerrors.NewConfigurationError("invalid changes spec", err.Error(),
				"use \"<from>[:<to>]\", e.g. \"main:HEAD\"", err)
		}
		wanted, err := gitutil.ChangedFilesBetween(ctx, in.BaseDir, from, to)
		if err != nil {
			return nil, copytreeerrors.NewGitError("failed to diff commits", err.Error(),
				"check that both refs exist in the repository", err)
		}
		out.Files = intersect(out.Files, gitutil.ToSet(wanted))
	}

	if in.Options.WithGitStatus {
		statuses, err := gitutil.Status(ctx, in.BaseDir)
		if err == nil {
			for i, f := range out.Files {
				if st, ok := statuses[f.RelativePath]; ok {
					cp := f.Clone()
					cp.GitStatus = st
					out.Files[i] = cp
				}
			}
		} else {
			out.AddWarning("git-filter: could not read working-tree status: " + err.Error())
		}
	}

	return out, nil
}

func intersect(files []*pipeline.FileRecord, wanted map[string]struct{}) []*pipeline.FileRecord {
	kept := make([]*pipeline.FileRecord, 0, len(files))
	for _, f := range files {
		if _, ok := wanted[f.RelativePath]; ok {
			kept = append(kept, f)
		}
	}
	return kept
}
