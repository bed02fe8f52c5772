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

// Package builtin implements the built-in transformer set:
// Loader, Markdown, CSV, Binary, PDF, Image-OCR, AI-Summary.
package builtin

import (
	"bytes"
	"fmt"
	"os"
	"unicode/utf8"

	"github.com/copytree/copytree/pkg/pipeline"
	"github.com/copytree/copytree/pkg/transform"
)

// Loader reads file content from disk and detects binary/encoding. It is
// the transformer the Load stage applies to every file before per-type
// dispatch: inputTypes=[any], outputTypes=[text, binary], light,
// idempotent.
type Loader struct {
	MaxFileSize int64
}

func (l *Loader) Name() string { return "loader" }

func (l *Loader) Traits() transform.Traits {
	return transform.Traits{
		InputTypes:  []transform.ContentType{transform.TypeAny},
		OutputTypes: []transform.ContentType{transform.TypeText, transform.TypeBinary},
		Idempotent:  true,
	}
}

func (l *Loader) CanTransform(file *pipeline.FileRecord) bool { return !file.Loaded }

// DoTransform reads the file's bytes, sniffs binary-ness from the first
// 8 KiB (null-byte heuristic), and detects a UTF-8/UTF-16 BOM, falling back
// to UTF-8.
func (l *Loader) DoTransform(file *pipeline.FileRecord) (*pipeline.FileRecord, error) {
	if file.Err != nil {
		return file, nil
	}
	if l.MaxFileSize > 0 && file.Size > l.MaxFileSize {
		return file, fmt.Errorf("loader: %s exceeds max file size (%d > %d)", file.RelativePath, file.Size, l.MaxFileSize)
	}

	raw, err := os.ReadFile(file.AbsolutePath)
	if err != nil {
		out := file.Clone()
		out.Err = fmt.Errorf("loader: read %s: %w", file.RelativePath, err)
		return out, nil
	}

	out := file.Clone()
	out.Encoding, raw = detectEncoding(raw)
	out.IsBinary = isBinary(raw)
	if out.IsBinary {
		out.Raw = raw
	} else {
		out.Content = string(raw)
	}
	out.Loaded = true
	out.Transformed = true
	out.TransformedBy = append(out.TransformedBy, l.Name())
	return out, nil
}

// isBinary sniffs the first 8 KiB for a NUL byte, the standard binary
// heuristic also used by git and most "is this text" detectors.
func isBinary(data []byte) bool {
	sniff := data
	if len(sniff) > 8192 {
		sniff = sniff[:8192]
	}
	if bytes.IndexByte(sniff, 0) >= 0 {
		return true
	}
	return !utf8.Valid(sniff)
}

// detectEncoding sniffs a BOM and strips it, reporting the encoding name;
// absent a BOM it assumes UTF-8.
func detectEncoding(data []byte) (string, []byte) {
	switch {
	case bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}):
		return "utf-8", data[3:]
	case bytes.HasPrefix(data, []byte{0xFF, 0xFE}):
		return "utf-16le", data[2:]
	case bytes.HasPrefix(data, []byte{0xFE, 0xFF}):
		return "utf-16be", data[2:]
	default:
		return "utf-8", data
	}
}
