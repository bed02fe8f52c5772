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
	"github.com/copytree/copytree/pkg/pipeline"
	"github.com/copytree/copytree/pkg/source"
)

// ExternalSourceStage resolves and merges every configured external source
// (remote clone or local directory) into the main file list, remapped under
// each source's destination prefix.
type ExternalSourceStage struct {
	Resolver *source.Resolver
}

func (s *ExternalSourceStage) Name() string { return "external-source" }

func (s *ExternalSourceStage) Process(ctx context.Context, in *pipeline.PipelinePayload) (*pipeline.PipelinePayload, error) {
	if len(in.Options.ExternalSources) == 0 {
		return in, nil
	}
	if s.Resolver == nil {
		return nil, copytreeerrors.NewConfigurationError(
			"external sources configured without a resolver",
			"", "this is a wiring bug, not a user error", nil)
	}

	merged, err := s.Resolver.ResolveAll(ctx, in.Options.ExternalSources)
	if err != nil {
		return nil, copytreeerrors.NewFileSystemError(
			"failed to resolve external sources", err.Error(),
			"check that each source is reachable and, for remote sources, clonable",
			"", "resolve-external-sources", err)
	}

	out := in.Clone()
	out.Files = append(out.Files, merged...)
	return out, nil
}
