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
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/copytree/copytree/pkg/pipeline"
)

// InstructionsStage resolves Options.Instructions into the payload's
// Instructions text, and annotates any package.json/composer.json file
// already in the payload with a short dependency-manifest summary so the
// formatter can surface project metadata without re-reading the file.
type InstructionsStage struct{}

func (s *InstructionsStage) Name() string { return "instructions" }

func (s *InstructionsStage) Process(ctx context.Context, in *pipeline.PipelinePayload) (*pipeline.PipelinePayload, error) {
	out := in.Clone()

	if in.Options.Instructions != "" {
		out.Instructions = s.resolveInstructions(in.BaseDir, in.Options.Instructions)
	}

	for i, f := range out.Files {
		base := filepath.Base(f.RelativePath)
		if base != "package.json" && base != "composer.json" {
			continue
		}
		if !f.Loaded || f.IsBinary || f.Content == "" {
			continue
		}
		meta := manifestMetadata(f.Content)
		if meta == nil {
			continue
		}
		cp := f.Clone()
		cp.Metadata = cloneMeta(cp.Metadata)
		cp.Metadata["manifest"] = *meta
		out.Files[i] = cp
	}

	return out, nil
}

// resolveInstructions treats value as inline text unless it names an
// existing readable file relative to baseDir, in which case the file's
// contents are used instead.
func (s *InstructionsStage) resolveInstructions(baseDir, value string) string {
	candidate := value
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(baseDir, candidate)
	}
	data, err := os.ReadFile(candidate)
	if err != nil {
		return value
	}
	return string(data)
}

// manifestMetadata extracts name/version/dependency-count fields common to
// both package.json and composer.json; malformed JSON yields no metadata
// rather than failing the stage.
func manifestMetadata(content string) *pipeline.MetaValue {
	var raw struct {
		Name            string            `json:"name"`
		Version         string            `json:"version"`
		Dependencies    map[string]string `json:"dependencies"`
		DevDependencies map[string]string `json:"devDependencies"` // npm
		Require         map[string]string `json:"require"`         // composer
		RequireDev      map[string]string `json:"require-dev"`     // composer
	}
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil
	}

	depCount := len(raw.Dependencies) + len(raw.Require)
	devCount := len(raw.DevDependencies) + len(raw.RequireDev)

	m := map[string]pipeline.MetaValue{
		"name":              {String: raw.Name},
		"version":           {String: raw.Version},
		"dependency_count":  {Integer: int64(depCount)},
		"dev_dependency_count": {Integer: int64(devCount)},
	}
	if strings.TrimSpace(raw.Name) == "" && strings.TrimSpace(raw.Version) == "" && depCount == 0 && devCount == 0 {
		return nil
	}
	return &pipeline.MetaValue{Map: m}
}
