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
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/copytree/copytree/pkg/pipeline"
	"github.com/copytree/copytree/pkg/transform"
)

// CSV summarizes tabular data: row/column counts, a detected header,
// and the content truncated to MaxRows data rows so the rendered artifact
// stays bounded regardless of source file size. Light, idempotent.
type CSV struct {
	MaxRows int
}

func (c *CSV) Name() string { return "csv" }

func (c *CSV) Traits() transform.Traits {
	return transform.Traits{
		InputTypes:  []transform.ContentType{transform.TypeText},
		OutputTypes: []transform.ContentType{transform.TypeText},
		Idempotent:  true,
	}
}

func (c *CSV) CanTransform(file *pipeline.FileRecord) bool {
	if !file.Loaded || file.IsBinary {
		return false
	}
	return strings.EqualFold(filepath.Ext(file.RelativePath), ".csv")
}

func (c *CSV) DoTransform(file *pipeline.FileRecord) (*pipeline.FileRecord, error) {
	maxRows := c.MaxRows
	if maxRows <= 0 {
		maxRows = 200
	}

	r := csv.NewReader(strings.NewReader(file.Content))
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	out := file.Clone()
	if err != nil {
		out.Err = fmt.Errorf("csv: parse %s: %w", file.RelativePath, err)
		return out, nil
	}
	if len(rows) == 0 {
		out.Transformed = true
		out.TransformedBy = append(out.TransformedBy, c.Name())
		return out, nil
	}

	header := rows[0]
	dataRows := rows[1:]
	truncated := false
	if len(dataRows) > maxRows {
		dataRows = dataRows[:maxRows]
		truncated = true
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %d columns, %d data rows", len(header), len(rows)-1)
	if truncated {
		fmt.Fprintf(&b, " (showing first %d)", maxRows)
	}
	b.WriteString("\n\n")
	b.WriteString(strings.Join(header, ","))
	b.WriteByte('\n')
	for _, row := range dataRows {
		b.WriteString(strings.Join(row, ","))
		b.WriteByte('\n')
	}

	out.Content = b.String()
	out.Metadata = cloneMeta(out.Metadata)
	out.Metadata["csv_columns"] = pipeline.MetaValue{Integer: int64(len(header))}
	out.Metadata["csv_rows"] = pipeline.MetaValue{Integer: int64(len(rows) - 1)}
	out.Transformed = true
	out.TransformedBy = append(out.TransformedBy, c.Name())
	return out, nil
}

func cloneMeta(m map[string]pipeline.MetaValue) map[string]pipeline.MetaValue {
	if m == nil {
		return make(map[string]pipeline.MetaValue)
	}
	cp := make(map[string]pipeline.MetaValue, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
