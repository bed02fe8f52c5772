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
	"time"

	"github.com/copytree/copytree/pkg/aiprovider"
	"github.com/copytree/copytree/pkg/cache"
	"github.com/copytree/copytree/pkg/transform"
	"github.com/copytree/copytree/pkg/transform/builtin"
)

// RegistryConfig parameterizes NewDefaultRegistry; zero values fall back to
// the builtin transformers' own defaults.
type RegistryConfig struct {
	MaxFileSize int64
	CSVMaxRows  int
	OCRTimeout  time.Duration

	// AIProvider, when non-nil, registers the ai-summary transformer. A nil
	// provider (no API key configured) leaves it unregistered so a
	// plan that names it fails cleanly rather than silently no-op'ing.
	AIProvider aiprovider.Provider
	AICache    *cache.Cache
	AIPrompt   string
}

// NewDefaultRegistry builds the transform.Registry carrying the minimum
// built-in set: loader, markdown, csv, binary, pdf, image-ocr,
// file-summary, and (when configured) ai-summary. binary is the registry's
// fallback transformer — any file whose extension and sniffed MIME type
// claim nothing more specific still gets a content-type/size report instead
// of raising "no transformer for file".
func NewDefaultRegistry(cfg RegistryConfig) *transform.Registry {
	reg := transform.NewRegistry()

	loader := &builtin.Loader{MaxFileSize: cfg.MaxFileSize}
	reg.Register("loader", loader, nil, nil, loader.Traits())

	md := &builtin.Markdown{}
	reg.Register("markdown", md, []string{".md", ".markdown"}, nil, md.Traits())

	csv := &builtin.CSV{MaxRows: cfg.CSVMaxRows}
	reg.Register("csv", csv, []string{".csv"}, nil, csv.Traits())

	pdf := &builtin.PDF{}
	reg.Register("pdf", pdf, []string{".pdf"}, []string{"application/pdf"}, pdf.Traits())

	ocr := &builtin.ImageOCR{Timeout: cfg.OCRTimeout}
	reg.Register("image-ocr", ocr,
		[]string{".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tiff", ".webp"}, nil, ocr.Traits())

	summary := &builtin.FileSummary{}
	reg.Register("file-summary", summary, nil, nil, summary.Traits())

	if cfg.AIProvider != nil {
		ai := &builtin.AISummary{Provider: cfg.AIProvider, Cache: cfg.AICache, Prompt: cfg.AIPrompt}
		reg.Register("ai-summary", ai, nil, nil, ai.Traits())
	}

	bin := &builtin.Binary{}
	reg.Register("binary", bin, nil, nil, bin.Traits())
	reg.SetDefault("binary")

	return reg
}
