// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipeline

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPayload(paths ...string) *PipelinePayload {
	p := &PipelinePayload{BaseDir: "/repo", Options: DefaultOptions()}
	for _, rel := range paths {
		p.Files = append(p.Files, &FileRecord{RelativePath: rel})
	}
	return p
}

func TestPipeline_RunsStagesInOrder(t *testing.T) {
	var order []string

	pl := New(nil).Through(
		StageFunc{StageName: "one", Fn: func(ctx context.Context, in *PipelinePayload) (*PipelinePayload, error) {
			order = append(order, "one")
			return in, nil
		}},
		StageFunc{StageName: "two", Fn: func(ctx context.Context, in *PipelinePayload) (*PipelinePayload, error) {
			order = append(order, "two")
			return in, nil
		}},
	)

	out, stats, err := pl.Process(context.Background(), newPayload("a.go"))
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, order)
	assert.Equal(t, 2, stats.StagesCompleted)
	assert.Len(t, out.Files, 1)
}

func TestPipeline_StageNarrowsPayload(t *testing.T) {
	filterOut := StageFunc{StageName: "filter", Fn: func(ctx context.Context, in *PipelinePayload) (*PipelinePayload, error) {
		out := in.Clone()
		var kept []*FileRecord
		for _, f := range out.Files {
			if f.RelativePath != "drop.go" {
				kept = append(kept, f)
			}
		}
		out.Files = kept
		return out, nil
	}}

	pl := New(nil).Through(filterOut)
	out, _, err := pl.Process(context.Background(), newPayload("keep.go", "drop.go"))
	require.NoError(t, err)
	require.Len(t, out.Files, 1)
	assert.Equal(t, "keep.go", out.Files[0].RelativePath)
}

func TestPipeline_AbortsOnUnrecoveredError(t *testing.T) {
	boom := StageFunc{StageName: "boom", Fn: func(ctx context.Context, in *PipelinePayload) (*PipelinePayload, error) {
		return nil, fmt.Errorf("disk on fire")
	}}
	never := StageFunc{StageName: "never", Fn: func(ctx context.Context, in *PipelinePayload) (*PipelinePayload, error) {
		t.Fatal("should not run after an aborting stage")
		return in, nil
	}}

	pl := New(nil).Through(boom, never)
	_, stats, err := pl.Process(context.Background(), newPayload("a.go"))
	require.Error(t, err)
	assert.Equal(t, 1, stats.StagesFailed)
}

type recoverableStage struct{}

func (recoverableStage) Name() string { return "recoverable" }
func (recoverableStage) Process(ctx context.Context, in *PipelinePayload) (*PipelinePayload, error) {
	return nil, fmt.Errorf("transient")
}
func (recoverableStage) HandleError(err error, in *PipelinePayload) (*PipelinePayload, bool) {
	return in, true
}

func TestPipeline_RecoversViaHandleError(t *testing.T) {
	pl := New(nil).Through(recoverableStage{})
	out, stats, err := pl.Process(context.Background(), newPayload("a.go"))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.StagesCompleted)
	assert.Len(t, out.Files, 1)
}

func TestPipeline_ContinueOnErrorKeepsPriorInput(t *testing.T) {
	boom := StageFunc{StageName: "boom", Fn: func(ctx context.Context, in *PipelinePayload) (*PipelinePayload, error) {
		return nil, fmt.Errorf("flaky")
	}}

	pl := New(nil).ContinueOnError(true).Through(boom)
	out, stats, err := pl.Process(context.Background(), newPayload("a.go"))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.StagesFailed)
	assert.Len(t, out.Files, 1)
	assert.Len(t, out.Errors, 1)
}

func TestPipeline_CancellationBeforeStage(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran := false
	pl := New(nil).Through(StageFunc{StageName: "s", Fn: func(ctx context.Context, in *PipelinePayload) (*PipelinePayload, error) {
		ran = true
		return in, nil
	}})

	_, _, err := pl.Process(ctx, newPayload("a.go"))
	require.Error(t, err)
	assert.False(t, ran)
}

func TestPipeline_ValidatorRejectsInput(t *testing.T) {
	pl := New(nil).Through(validatingStage{})
	_, stats, err := pl.Process(context.Background(), newPayload())
	require.Error(t, err)
	assert.Equal(t, 1, stats.StagesFailed)
}

type validatingStage struct{}

func (validatingStage) Name() string { return "validating" }
func (validatingStage) Validate(in *PipelinePayload) error {
	if len(in.Files) == 0 {
		return fmt.Errorf("no files")
	}
	return nil
}
func (validatingStage) Process(ctx context.Context, in *PipelinePayload) (*PipelinePayload, error) {
	return in, nil
}

func TestEventBus_PublishesStageEvents(t *testing.T) {
	pl := New(nil).Through(StageFunc{StageName: "s", Fn: func(ctx context.Context, in *PipelinePayload) (*PipelinePayload, error) {
		return in, nil
	}})
	sub := pl.Subscribe(16)

	_, _, err := pl.Process(context.Background(), newPayload("a.go"))
	require.NoError(t, err)

	var types []EventType
	timeout := time.After(time.Second)
collect:
	for {
		select {
		case evt := <-sub:
			types = append(types, evt.Type)
		case <-timeout:
			break collect
		default:
			if len(types) >= 4 {
				break collect
			}
		}
	}

	assert.Contains(t, types, EventPipelineStart)
	assert.Contains(t, types, EventStageStart)
	assert.Contains(t, types, EventStageComplete)
	assert.Contains(t, types, EventPipelineComplete)
}
