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
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copytree/copytree/pkg/pipeline"
)

func fileOnDisk(t *testing.T, name string, content []byte) *pipeline.FileRecord {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, content, 0o644))
	info, err := os.Stat(path)
	require.NoError(t, err)
	return &pipeline.FileRecord{
		RelativePath: name,
		AbsolutePath: path,
		Size:         info.Size(),
		ModifiedTime: info.ModTime(),
	}
}

func TestLoader_TextFile(t *testing.T) {
	f := fileOnDisk(t, "hello.txt", []byte("hello world\n"))
	out, err := (&Loader{}).DoTransform(f)
	require.NoError(t, err)

	assert.True(t, out.Loaded)
	assert.False(t, out.IsBinary)
	assert.Equal(t, "hello world\n", out.Content)
	assert.Equal(t, "utf-8", out.Encoding)
	assert.Equal(t, []string{"loader"}, out.TransformedBy)
}

func TestLoader_BinaryDetectedByNullByte(t *testing.T) {
	f := fileOnDisk(t, "blob.bin", []byte{0x00, 0x01, 0x02, 'a', 'b'})
	out, err := (&Loader{}).DoTransform(f)
	require.NoError(t, err)

	assert.True(t, out.IsBinary)
	assert.Empty(t, out.Content)
	assert.NotEmpty(t, out.Raw)
}

func TestLoader_StripsUTF8BOM(t *testing.T) {
	f := fileOnDisk(t, "bom.txt", append([]byte{0xEF, 0xBB, 0xBF}, []byte("content")...))
	out, err := (&Loader{}).DoTransform(f)
	require.NoError(t, err)

	assert.Equal(t, "utf-8", out.Encoding)
	assert.Equal(t, "content", out.Content)
}

func TestLoader_UTF16BOMDetected(t *testing.T) {
	f := fileOnDisk(t, "utf16.txt", []byte{0xFF, 0xFE, 'h', 0x00})
	out, err := (&Loader{}).DoTransform(f)
	require.NoError(t, err)
	assert.Equal(t, "utf-16le", out.Encoding)
}

func TestLoader_MaxFileSizeErrors(t *testing.T) {
	f := fileOnDisk(t, "big.txt", []byte("0123456789"))
	_, err := (&Loader{MaxFileSize: 4}).DoTransform(f)
	require.Error(t, err)
}

func TestCSV_CountsAndTruncates(t *testing.T) {
	content := "name,age\nalice,30\nbob,40\ncarol,50\n"
	f := &pipeline.FileRecord{RelativePath: "people.csv", Loaded: true, Content: content}

	out, err := (&CSV{MaxRows: 2}).DoTransform(f)
	require.NoError(t, err)

	assert.Contains(t, out.Content, "2 columns, 3 data rows")
	assert.Contains(t, out.Content, "showing first 2")
	assert.Contains(t, out.Content, "alice,30")
	assert.NotContains(t, out.Content, "carol,50")
	assert.Equal(t, int64(2), out.Metadata["csv_columns"].Integer)
	assert.Equal(t, int64(3), out.Metadata["csv_rows"].Integer)
}

func TestCSV_OnlyClaimsCSVExtension(t *testing.T) {
	c := &CSV{}
	assert.True(t, c.CanTransform(&pipeline.FileRecord{RelativePath: "d.CSV", Loaded: true}))
	assert.False(t, c.CanTransform(&pipeline.FileRecord{RelativePath: "d.txt", Loaded: true}))
}

func TestMarkdown_EscapesExistingFences(t *testing.T) {
	f := &pipeline.FileRecord{RelativePath: "doc.md", Loaded: true, Content: "text\n```js\ncode\n```\n"}
	out, err := (&Markdown{}).DoTransform(f)
	require.NoError(t, err)
	assert.NotContains(t, out.Content, "\n```js")
}

func TestMarkdown_WrapsSourceInLanguageFence(t *testing.T) {
	f := &pipeline.FileRecord{RelativePath: "main.go", Loaded: true, Content: "package main\n"}
	out, err := (&Markdown{}).DoTransform(f)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out.Content, "```go\n"))
	assert.True(t, strings.HasSuffix(out.Content, "```\n"))
}

func TestBinary_ReplacesContentWithPlaceholder(t *testing.T) {
	f := &pipeline.FileRecord{
		RelativePath: "img.png",
		Loaded:       true,
		IsBinary:     true,
		Size:         4,
		Raw:          []byte{0x89, 'P', 'N', 'G'},
	}
	out, err := (&Binary{}).DoTransform(f)
	require.NoError(t, err)

	assert.Contains(t, out.Content, "[binary file:")
	assert.Contains(t, out.Content, "4 bytes")
	assert.Nil(t, out.Raw, "raw bytes must be released after the placeholder is built")
}

func TestFileSummary_LeadingCommentParagraph(t *testing.T) {
	content := "// Package widget spins widgets.\n// It is load-bearing.\n\npackage widget\n"
	f := &pipeline.FileRecord{RelativePath: "widget.go", Loaded: true, Content: content}

	out, err := (&FileSummary{}).DoTransform(f)
	require.NoError(t, err)
	assert.Equal(t, "Package widget spins widgets. It is load-bearing.", out.Metadata["file_summary"].String)
}

func TestFileSummary_FallsBackToFirstLines(t *testing.T) {
	f := &pipeline.FileRecord{RelativePath: "data.txt", Loaded: true, Content: "one\ntwo\nthree\nfour\n"}
	out, err := (&FileSummary{MaxLines: 2}).DoTransform(f)
	require.NoError(t, err)
	assert.Equal(t, "one two", out.Metadata["file_summary"].String)
}
