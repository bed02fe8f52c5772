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
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/copytree/copytree/pkg/pipeline"
	"github.com/copytree/copytree/pkg/transform"
)

var imageExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".bmp": true, ".tiff": true, ".webp": true,
}

// ImageOCR extracts text from raster images by shelling out to the
// tesseract binary. The image is written to a temp file rather than
// piped through stdin because tesseract's stdin mode cannot auto-detect
// image format; the temp path is created by Go (never user-controlled) so
// there is no command-injection surface.
//
// Heavy, not idempotent across re-runs of a damaged OCR pass, depends on an
// external "tesseract" binary, and conflicts with image-description since
// both claim to be the canonical text representation of an image.
type ImageOCR struct {
	Timeout time.Duration
}

func (o *ImageOCR) Name() string { return "image-ocr" }

func (o *ImageOCR) Traits() transform.Traits {
	return transform.Traits{
		InputTypes:    []transform.ContentType{transform.TypeImage, transform.TypeBinary},
		OutputTypes:   []transform.ContentType{transform.TypeText},
		Heavy:         true,
		Dependencies:  []string{"tesseract"},
		ConflictsWith: []string{"image-description"},
	}
}

func (o *ImageOCR) CanTransform(file *pipeline.FileRecord) bool {
	if !file.Loaded || !file.IsBinary {
		return false
	}
	return imageExts[strings.ToLower(filepath.Ext(file.RelativePath))]
}

func (o *ImageOCR) DoTransform(file *pipeline.FileRecord) (*pipeline.FileRecord, error) {
	out := file.Clone()

	if _, err := exec.LookPath("tesseract"); err != nil {
		out.Err = fmt.Errorf("image-ocr: tesseract not installed: %w", err)
		return out, nil
	}

	tmp, err := os.CreateTemp("", "copytree-ocr-*"+filepath.Ext(file.RelativePath))
	if err != nil {
		out.Err = fmt.Errorf("image-ocr: temp file: %w", err)
		return out, nil
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(file.Raw); err != nil {
		tmp.Close()
		out.Err = fmt.Errorf("image-ocr: write temp file: %w", err)
		return out, nil
	}
	tmp.Close()

	timeout := o.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// tesseract writes "<outbase>.txt"; "stdout" as the output base asks it
	// to write to stdout instead.
	cmd := exec.CommandContext(ctx, "tesseract", tmp.Name(), "stdout")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		out.Err = fmt.Errorf("image-ocr: tesseract %s: %w: %s", file.RelativePath, err, stderr.String())
		return out, nil
	}

	out.Content = stdout.String()
	out.Raw = nil
	out.Transformed = true
	out.TransformedBy = append(out.TransformedBy, o.Name())
	return out, nil
}
