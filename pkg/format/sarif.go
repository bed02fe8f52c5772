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

package format

import (
	"encoding/json"
	"io"

	"github.com/copytree/copytree/pkg/pipeline"
)

// SARIFFormatter renders the secrets-report artifact: a
// schema-conformant SARIF log whose only results are secret findings, not
// file contents. PerFile is a no-op; the whole document is written in
// Epilogue once every finding is known, since SARIF's results array can't
// be split across a streaming per-file call without building the same
// object graph anyway.
type SARIFFormatter struct{}

func (s *SARIFFormatter) Format() pipeline.OutputFormat { return pipeline.FormatSARIF }

const sarifSchema = "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/master/Schemata/sarif-schema-2.1.0.json"

func (s *SARIFFormatter) Prologue(w io.Writer, tree *TreeNode, opts RenderOptions) error {
	return nil
}

func (s *SARIFFormatter) PerFile(w io.Writer, f *pipeline.FileRecord, opts RenderOptions) error {
	return nil
}

type sarifResult struct {
	RuleID    string            `json:"ruleId"`
	Level     string            `json:"level"`
	Message   sarifMessage      `json:"message"`
	Locations []sarifLocation   `json:"locations"`
	Tags      []string          `json:"-"`
	Props     map[string]string `json:"properties,omitempty"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLocation struct {
	PhysicalLocation sarifPhysicalLocation `json:"physicalLocation"`
}

type sarifPhysicalLocation struct {
	ArtifactLocation sarifArtifactLocation `json:"artifactLocation"`
	Region           sarifRegion           `json:"region"`
}

type sarifArtifactLocation struct {
	URI string `json:"uri"`
}

type sarifRegion struct {
	StartLine   int `json:"startLine"`
	EndLine     int `json:"endLine,omitempty"`
	StartColumn int `json:"startColumn,omitempty"`
	EndColumn   int `json:"endColumn,omitempty"`
}

func (s *SARIFFormatter) Epilogue(w io.Writer, stats Stats, opts RenderOptions) error {
	results := make([]sarifResult, 0, len(opts.Findings))
	for _, f := range opts.Findings {
		props := map[string]string(nil)
		if len(f.Tags) > 0 {
			props = map[string]string{"tags": joinComma(f.Tags)}
		}
		results = append(results, sarifResult{
			RuleID:  f.RuleID,
			Level:   "warning",
			Message: sarifMessage{Text: "potential secret: " + f.Match},
			Locations: []sarifLocation{{
				PhysicalLocation: sarifPhysicalLocation{
					ArtifactLocation: sarifArtifactLocation{URI: f.Path},
					Region: sarifRegion{
						StartLine:   f.StartLine,
						EndLine:     f.EndLine,
						StartColumn: f.StartColumn,
						EndColumn:   f.EndColumn,
					},
				},
			}},
			Props: props,
		})
	}

	doc := map[string]any{
		"version": "2.1.0",
		"$schema": sarifSchema,
		"runs": []map[string]any{
			{
				"tool": map[string]any{
					"driver": map[string]any{
						"name":    "copytree-secrets",
						"version": "1.0.0",
					},
				},
				"results": results,
			},
		},
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

func joinComma(ss []string) string {
	out := ""
	for i, s := range ss {
		if i > 0 {
			out += ","
		}
		out += s
	}
	return out
}
