// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package format

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copytree/copytree/pkg/pipeline"
)

func sampleFiles() []*pipeline.FileRecord {
	return []*pipeline.FileRecord{
		{RelativePath: "a.go", Content: "package a\n", Size: 10, Loaded: true},
		{RelativePath: "sub/b.txt", Content: "hello\nworld", Size: 11, Loaded: true},
		{RelativePath: "img.png", Raw: []byte{0, 1, 2}, Size: 3, Loaded: true, IsBinary: true},
	}
}

func sampleOpts() RenderOptions {
	return RenderOptions{
		BaseDir:   "/repo",
		Generated: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestBuildTree_FilesBeforeSubdirs(t *testing.T) {
	tree := BuildTree(sampleFiles())
	require.Len(t, tree.Children, 3)
	// a.go and img.png (files) sort before sub/ (dir) at the root level.
	var sawDir bool
	for _, c := range tree.Children {
		if c.IsDir {
			sawDir = true
		} else {
			assert.False(t, sawDir, "file %q appeared after a directory", c.Name)
		}
	}
}

func TestRender_StreamingMatchesBuffered(t *testing.T) {
	for _, f := range []pipeline.OutputFormat{
		pipeline.FormatXML, pipeline.FormatJSON, pipeline.FormatMarkdown,
		pipeline.FormatTree, pipeline.FormatNDJSON,
	} {
		f := f
		t.Run(string(f), func(t *testing.T) {
			formatter := ByFormat(f)
			require.NotNil(t, formatter)

			stats := Stats{FileCount: len(sampleFiles()), TotalBytes: 24}
			opts := sampleOpts()

			var streamed bytes.Buffer
			require.NoError(t, Render(&streamed, formatter, sampleFiles(), stats, opts))

			buffered, err := RenderToString(ByFormat(f), sampleFiles(), stats, opts)
			require.NoError(t, err)

			assert.Equal(t, buffered, streamed.String(), "streamed and buffered renders must be byte-identical")
		})
	}
}

func TestMarkdownFormatter_FileMarkersCarryAtPrefixedPath(t *testing.T) {
	formatter := ByFormat(pipeline.FormatMarkdown)

	out, err := RenderToString(formatter, sampleFiles(), Stats{}, sampleOpts())
	require.NoError(t, err)
	assert.Contains(t, out, `<!-- copytree:file-begin path="@a.go" -->`)
	assert.Contains(t, out, `<!-- copytree:file-end path="@a.go" -->`)
	assert.Contains(t, out, `<!-- copytree:file-begin path="@sub/b.txt" -->`)
}

func TestRender_CharLimitTruncates(t *testing.T) {
	formatter := ByFormat(pipeline.FormatMarkdown)
	opts := sampleOpts()
	opts.CharLimit = 10

	out, err := RenderToString(formatter, sampleFiles(), Stats{}, opts)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(out), 10)
}

func TestRender_OnlyTreeSkipsFileBodies(t *testing.T) {
	formatter := ByFormat(pipeline.FormatMarkdown)
	opts := sampleOpts()
	opts.OnlyTree = true

	out, err := RenderToString(formatter, sampleFiles(), Stats{}, opts)
	require.NoError(t, err)
	assert.NotContains(t, out, "package a")
}

func TestSARIFFormatter_EmitsFindings(t *testing.T) {
	formatter := ByFormat(pipeline.FormatSARIF)
	opts := sampleOpts()
	opts.Findings = []SecretFinding{
		{RuleID: "aws-key", Path: "a.go", StartLine: 3, Match: "AKIA..."},
	}

	out, err := RenderToString(formatter, sampleFiles(), Stats{}, opts)
	require.NoError(t, err)
	assert.Contains(t, out, "aws-key")
	assert.Contains(t, out, "\"2.1.0\"")
}

func TestFenceLanguage(t *testing.T) {
	assert.Equal(t, "go", fenceLanguage("main.go"))
	assert.Equal(t, "yaml", fenceLanguage("config.yml"))
	assert.Equal(t, "", fenceLanguage("Makefile"))
}

func TestAddLineNumbers(t *testing.T) {
	out := addLineNumbers("one\ntwo")
	assert.Equal(t, "1  one\n2  two", out)
}
