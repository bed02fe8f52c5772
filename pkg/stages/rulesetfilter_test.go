// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package stages

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copytree/copytree/pkg/pipeline"
)

func newPayload(paths ...string) *pipeline.PipelinePayload {
	p := &pipeline.PipelinePayload{BaseDir: "/repo", Options: pipeline.DefaultOptions()}
	for _, rel := range paths {
		p.Files = append(p.Files, &pipeline.FileRecord{RelativePath: rel})
	}
	return p
}

func TestRulesetFilterStage_NoPatternsPassesThrough(t *testing.T) {
	in := newPayload("a.go", "b.go")
	out, err := (&RulesetFilterStage{}).Process(context.Background(), in)
	require.NoError(t, err)
	assert.Len(t, out.Files, 2)
}

func TestRulesetFilterStage_IncludeNarrows(t *testing.T) {
	in := newPayload("a.go", "b.txt")
	in.Options.Include = []string{"*.go"}
	out, err := (&RulesetFilterStage{}).Process(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, out.Files, 1)
	assert.Equal(t, "a.go", out.Files[0].RelativePath)
}

func TestRulesetFilterStage_ExcludeWins(t *testing.T) {
	in := newPayload("a.go", "b.go")
	in.Options.Exclude = []string{"b.go"}
	out, err := (&RulesetFilterStage{}).Process(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, out.Files, 1)
	assert.Equal(t, "a.go", out.Files[0].RelativePath)
}

func TestRulesetFilterStage_InvalidPatternErrors(t *testing.T) {
	in := newPayload("a.go")
	in.Options.Exclude = []string{""}
	_, err := (&RulesetFilterStage{}).Process(context.Background(), in)
	assert.Error(t, err)
}
