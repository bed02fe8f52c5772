// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package stages

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copytree/copytree/pkg/pipeline"
)

func pathsOf(files []*pipeline.FileRecord) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.RelativePath
	}
	return out
}

func TestSortStage_ByPathGroupsDirectories(t *testing.T) {
	in := newPayload("a-b.go", "a/b.go", "a.go")
	out, err := (&SortStage{}).Process(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, []string{"a-b.go", "a.go", "a/b.go"}, pathsOf(out.Files))
}

func TestSortStage_BySize(t *testing.T) {
	in := newPayload()
	in.Options.Sort = pipeline.SortSize
	in.Files = []*pipeline.FileRecord{
		{RelativePath: "big.go", Size: 100},
		{RelativePath: "small.go", Size: 1},
	}
	out, err := (&SortStage{}).Process(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, []string{"small.go", "big.go"}, pathsOf(out.Files))
}

func TestSortStage_ByModified(t *testing.T) {
	now := time.Now()
	in := newPayload()
	in.Options.Sort = pipeline.SortModified
	in.Files = []*pipeline.FileRecord{
		{RelativePath: "newer.go", ModifiedTime: now},
		{RelativePath: "older.go", ModifiedTime: now.Add(-time.Hour)},
	}
	out, err := (&SortStage{}).Process(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, []string{"older.go", "newer.go"}, pathsOf(out.Files))
}

func TestSortStage_ByDepth(t *testing.T) {
	in := newPayload()
	in.Options.Sort = pipeline.SortDepth
	in.Files = []*pipeline.FileRecord{
		{RelativePath: "a/b/c.go"},
		{RelativePath: "a.go"},
		{RelativePath: "a/b.go"},
	}
	out, err := (&SortStage{}).Process(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.go", "a/b.go", "a/b/c.go"}, pathsOf(out.Files))
}
