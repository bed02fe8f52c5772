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
	"path/filepath"
	"regexp"
	"strings"

	"github.com/copytree/copytree/pkg/pipeline"
	"github.com/copytree/copytree/pkg/transform"
)

// fenceLangByExt is the extension -> fence-language table used to
// normalize non-Markdown source into a fenced code block when Markdown
// rendering needs to embed it verbatim.
var fenceLangByExt = map[string]string{
	".go":   "go",
	".py":   "python",
	".js":   "javascript",
	".ts":   "typescript",
	".tsx":  "tsx",
	".jsx":  "jsx",
	".rb":   "ruby",
	".rs":   "rust",
	".java": "java",
	".c":    "c",
	".h":    "c",
	".cpp":  "cpp",
	".sh":   "bash",
	".yml":  "yaml",
	".yaml": "yaml",
	".json": "json",
	".sql":  "sql",
	".md":   "markdown",
}

var fenceOpenRe = regexp.MustCompile("(?m)^```")

// Markdown passes Markdown content through unchanged except for escaping any
// existing triple-backtick fence so embedding the file inside an outer
// fenced block (XML/Markdown output) cannot prematurely close it. Non-
// Markdown text is wrapped in a fenced block tagged with its extension's
// fence language. Light, idempotent.
type Markdown struct{}

func (m *Markdown) Name() string { return "markdown" }

func (m *Markdown) Traits() transform.Traits {
	return transform.Traits{
		InputTypes:  []transform.ContentType{transform.TypeText},
		OutputTypes: []transform.ContentType{transform.TypeText},
		Idempotent:  true,
	}
}

func (m *Markdown) CanTransform(file *pipeline.FileRecord) bool {
	return file.Loaded && !file.IsBinary
}

func (m *Markdown) DoTransform(file *pipeline.FileRecord) (*pipeline.FileRecord, error) {
	out := file.Clone()
	ext := strings.ToLower(filepath.Ext(file.RelativePath))
	if ext == ".md" || ext == ".markdown" {
		out.Content = fenceOpenRe.ReplaceAllString(file.Content, "\\`\\`\\`")
	} else {
		lang := fenceLangByExt[ext]
		var b strings.Builder
		b.WriteString("```")
		b.WriteString(lang)
		b.WriteByte('\n')
		b.WriteString(file.Content)
		if !strings.HasSuffix(file.Content, "\n") {
			b.WriteByte('\n')
		}
		b.WriteString("```\n")
		out.Content = b.String()
	}
	out.Transformed = true
	out.TransformedBy = append(out.TransformedBy, m.Name())
	return out, nil
}
