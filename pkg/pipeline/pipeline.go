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

package pipeline

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	cerrors "github.com/copytree/copytree/internal/errors"
)

// Pipeline owns the ordered list of stages, runs them sequentially against
// a single payload, emits events, and accumulates PipelineStats.
type Pipeline struct {
	stages []Stage
	logger *slog.Logger
	bus    *eventBus

	// ContinueOnError: an unrecovered stage error is recorded and the
	// prior input is passed to the next stage instead of aborting.
	continueOnError bool
}

// New creates an empty Pipeline. Use Through to append stages.
func New(logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		logger: logger.With("component", "pipeline"),
		bus:    newEventBus(),
	}
}

// Through appends stages to the pipeline and returns it for chaining.
func (p *Pipeline) Through(stages ...Stage) *Pipeline {
	p.stages = append(p.stages, stages...)
	return p
}

// ContinueOnError sets the recovery policy for unrecovered stage failures.
func (p *Pipeline) ContinueOnError(v bool) *Pipeline {
	p.continueOnError = v
	return p
}

// Subscribe returns a channel that receives every event the pipeline
// publishes during Process. Callers must drain it (or it will be dropped
// from for progress-class events, blocked-briefly-then-dropped for others).
func (p *Pipeline) Subscribe(buffer int) chan Event {
	return p.bus.Subscribe(buffer)
}

// Process runs each stage's Process(input) in order against input, honoring
// validation, recovery, cancellation, and metrics capture.
func (p *Pipeline) Process(ctx context.Context, input *PipelinePayload) (*PipelinePayload, *PipelineStats, error) {
	stats := newStats()
	stats.StartTime = time.Now()

	p.bus.publish(Event{Type: EventPipelineStart, Data: map[string]any{
		"stageCount": len(p.stages),
		"baseDir":    input.BaseDir,
	}})

	current := input
	for i, stage := range p.stages {
		name := stage.Name()

		select {
		case <-ctx.Done():
			err := cerrors.NewCancelledError()
			stats.EndTime = time.Now()
			p.bus.publish(Event{Type: EventPipelineError, Data: map[string]any{"error": err.Error()}})
			return nil, stats, err
		default:
		}

		if v, ok := stage.(Validator); ok {
			if err := v.Validate(current); err != nil {
				stats.StagesFailed++
				stats.Errors = append(stats.Errors, err)
				wrapped := cerrors.NewPipelineError(name, i, err)
				p.bus.publish(Event{Type: EventStageError, Data: map[string]any{"stage": name, "error": err.Error()}})
				p.bus.publish(Event{Type: EventPipelineError, Data: map[string]any{"error": wrapped.Error()}})
				return nil, stats, wrapped
			}
		}

		p.logger.Info("stage.start", "stage", name, "index", i, "input_files", len(current.Files))
		p.bus.publish(Event{Type: EventStageStart, Data: map[string]any{"stage": name, "index": i}})

		var memBefore runtime.MemStats
		runtime.ReadMemStats(&memBefore)
		start := time.Now()

		output, err := stage.Process(ctx, current)

		duration := time.Since(start)
		var memAfter runtime.MemStats
		runtime.ReadMemStats(&memAfter)
		memDelta := int64(memAfter.HeapAlloc) - int64(memBefore.HeapAlloc)

		recordStageDuration(name, duration.Seconds())
		stats.PerStageTiming[name] = duration
		stats.TotalStageTime += duration

		if err != nil {
			recordStageError(name)
			p.bus.publish(Event{Type: EventStageError, Data: map[string]any{"stage": name, "error": err.Error()}})

			if eh, ok := stage.(ErrorHandler); ok {
				if recovered, ok2 := eh.HandleError(err, current); ok2 {
					recordStageRecover(name)
					p.bus.publish(Event{Type: EventStageRecover, Data: map[string]any{"stage": name}})
					p.logger.Warn("stage.recover", "stage", name, "err", err)
					output = recovered
					err = nil
				}
			}

			if err != nil {
				if p.continueOnError {
					stats.StagesFailed++
					stats.Errors = append(stats.Errors, err)
					current.AddError(err)
					p.logger.Warn("stage.continue_on_error", "stage", name, "err", err)
					continue
				}

				stats.StagesFailed++
				stats.Errors = append(stats.Errors, err)
				stats.EndTime = time.Now()
				wrapped := cerrors.NewPipelineError(name, i, err)
				p.bus.publish(Event{Type: EventPipelineError, Data: map[string]any{"error": wrapped.Error()}})
				return nil, stats, wrapped
			}
		}

		if ar, ok := stage.(AfterRunner); ok {
			ar.AfterRun(output)
		}

		stats.StagesCompleted++
		stats.PerStageMetrics[name] = StageMetrics{
			InputSize:   len(current.Files),
			OutputSize:  len(output.Files),
			MemoryDelta: memDelta,
		}

		p.logger.Info("stage.complete", "stage", name, "duration_ms", duration.Milliseconds(),
			"input_files", len(current.Files), "output_files", len(output.Files))
		p.bus.publish(Event{Type: EventStageComplete, Data: map[string]any{
			"stage":       name,
			"duration_ms": duration.Milliseconds(),
			"input_size":  len(current.Files),
			"output_size": len(output.Files),
			"memory_delta": memDelta,
		}})

		current = output
	}

	stats.EndTime = time.Now()
	p.bus.publish(Event{Type: EventPipelineComplete, Data: map[string]any{
		"files": len(current.Files),
	}})

	return current, stats, nil
}
