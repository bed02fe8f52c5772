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
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/copytree/copytree/pkg/pipeline"
	"github.com/copytree/copytree/pkg/transform"
)

// PDF extracts plain text from a PDF's page stream. It declares
// Heavy=true so plan validation and the worker pool treat it as expensive,
// and conflicts with nothing since nothing else claims TypePDF output.
type PDF struct{}

func (p *PDF) Name() string { return "pdf" }

func (p *PDF) Traits() transform.Traits {
	return transform.Traits{
		InputTypes:  []transform.ContentType{transform.TypeBinary},
		OutputTypes: []transform.ContentType{transform.TypeText},
		Idempotent:  true,
		Heavy:       true,
	}
}

func (p *PDF) CanTransform(file *pipeline.FileRecord) bool {
	if !file.Loaded || !file.IsBinary {
		return false
	}
	return strings.EqualFold(filepath.Ext(file.RelativePath), ".pdf")
}

func (p *PDF) DoTransform(file *pipeline.FileRecord) (*pipeline.FileRecord, error) {
	out := file.Clone()
	r, err := pdf.NewReader(bytes.NewReader(file.Raw), int64(len(file.Raw)))
	if err != nil {
		out.Err = fmt.Errorf("pdf: open %s: %w", file.RelativePath, err)
		return out, nil
	}

	var b strings.Builder
	total := r.NumPage()
	for i := 1; i <= total; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil && err != io.EOF {
			continue
		}
		b.WriteString(text)
		b.WriteByte('\n')
	}

	out.Content = b.String()
	out.Raw = nil
	out.Metadata = cloneMeta(out.Metadata)
	out.Metadata["pdf_pages"] = pipeline.MetaValue{Integer: int64(total)}
	out.Transformed = true
	out.TransformedBy = append(out.TransformedBy, p.Name())
	return out, nil
}
