// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package stages

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copytree/copytree/pkg/pipeline"
)

func TestAlwaysIncludeStage_UnionsMatchingFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "LICENSE"), []byte("MIT"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main"), 0o644))

	in := &pipeline.PipelinePayload{BaseDir: dir, Options: pipeline.DefaultOptions()}
	in.Options.Always = []string{"LICENSE"}
	in.Files = []*pipeline.FileRecord{{RelativePath: "main.go"}}

	out, err := (&AlwaysIncludeStage{}).Process(context.Background(), in)
	require.NoError(t, err)

	var paths []string
	for _, f := range out.Files {
		paths = append(paths, f.RelativePath)
	}
	assert.Contains(t, paths, "LICENSE")
	assert.Contains(t, paths, "main.go")
	assert.Len(t, paths, 2)
}

func TestAlwaysIncludeStage_NoPatternsPassesThrough(t *testing.T) {
	in := newPayload("main.go")
	out, err := (&AlwaysIncludeStage{}).Process(context.Background(), in)
	require.NoError(t, err)
	assert.Len(t, out.Files, 1)
}
