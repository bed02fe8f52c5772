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
	"fmt"

	"github.com/gabriel-vasile/mimetype"

	"github.com/copytree/copytree/pkg/pipeline"
	"github.com/copytree/copytree/pkg/transform"
)

// Binary replaces an opaque binary file's content with a short type/size
// report rather than attempting to render raw bytes. MIME detection
// uses mimetype's magic-byte sniffing rather than trusting the extension.
// Light, idempotent.
type Binary struct{}

func (b *Binary) Name() string { return "binary" }

func (b *Binary) Traits() transform.Traits {
	return transform.Traits{
		InputTypes:  []transform.ContentType{transform.TypeBinary},
		OutputTypes: []transform.ContentType{transform.TypeText},
		Idempotent:  true,
	}
}

func (b *Binary) CanTransform(file *pipeline.FileRecord) bool {
	return file.Loaded && file.IsBinary
}

func (b *Binary) DoTransform(file *pipeline.FileRecord) (*pipeline.FileRecord, error) {
	mt := mimetype.Detect(file.Raw)
	out := file.Clone()
	out.Content = fmt.Sprintf("[binary file: %s, %s, %d bytes]", mt.String(), humanSize(file.Size), file.Size)
	out.Raw = nil
	out.Metadata = cloneMeta(out.Metadata)
	out.Metadata["mime_type"] = pipeline.MetaValue{String: mt.String()}
	out.Transformed = true
	out.TransformedBy = append(out.TransformedBy, b.Name())
	return out, nil
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
