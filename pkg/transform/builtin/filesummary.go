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

package builtin

import (
	"strings"

	"github.com/copytree/copytree/pkg/pipeline"
	"github.com/copytree/copytree/pkg/transform"
)

// FileSummary produces a short description of a file without calling out to
// an AI provider: the first paragraph of a leading doc comment or README,
// falling back to the file's first MaxLines non-blank lines. It exists so a
// plan can request a summary without an API key, and shares the
// "file-summary" tag with AISummary so plan validation's conflict check has
// a concrete pair to flag when both are requested together.
type FileSummary struct {
	MaxLines int
}

func (s *FileSummary) Name() string { return "file-summary" }

func (s *FileSummary) Traits() transform.Traits {
	return transform.Traits{
		InputTypes:    []transform.ContentType{transform.TypeText},
		OutputTypes:   []transform.ContentType{transform.TypeText},
		Idempotent:    true,
		ConflictsWith: []string{"ai-summary"},
		Tags:          []string{"summary"},
	}
}

func (s *FileSummary) CanTransform(file *pipeline.FileRecord) bool {
	return file.Loaded && !file.IsBinary
}

func (s *FileSummary) DoTransform(file *pipeline.FileRecord) (*pipeline.FileRecord, error) {
	out := file.Clone()
	summary := leadingParagraph(file.Content)
	if summary == "" {
		summary = firstLines(file.Content, s.maxLines())
	}
	out.Metadata = cloneMeta(out.Metadata)
	out.Metadata["file_summary"] = pipeline.MetaValue{String: summary}
	out.Transformed = true
	out.TransformedBy = append(out.TransformedBy, s.Name())
	return out, nil
}

func (s *FileSummary) maxLines() int {
	if s.MaxLines > 0 {
		return s.MaxLines
	}
	return 5
}

// leadingParagraph extracts the first paragraph of a leading "//" or "#"
// comment block, stripping the markers, for source files and README-style
// Markdown alike. An empty string means no leading comment block was found.
func leadingParagraph(content string) string {
	lines := strings.Split(content, "\n")
	var para []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "//"):
			para = append(para, strings.TrimSpace(strings.TrimPrefix(trimmed, "//")))
		case strings.HasPrefix(trimmed, "#") && !strings.HasPrefix(trimmed, "#!"):
			para = append(para, strings.TrimSpace(strings.TrimLeft(trimmed, "#")))
		case trimmed == "" && len(para) > 0:
			return strings.TrimSpace(strings.Join(para, " "))
		case trimmed == "":
			continue
		default:
			if len(para) > 0 {
				return strings.TrimSpace(strings.Join(para, " "))
			}
			return ""
		}
	}
	return strings.TrimSpace(strings.Join(para, " "))
}

// firstLines returns the first n non-blank lines joined with spaces, the
// fallback when no leading comment block is present.
func firstLines(content string, n int) string {
	var out []string
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
		if len(out) >= n {
			break
		}
	}
	return strings.Join(out, " ")
}
