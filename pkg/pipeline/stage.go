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

import "context"

// Stage is one step in the pipeline's fixed-topology stage graph. Process
// receives the payload produced by the previous stage and returns the
// payload for the next one — the same instance, narrowed/augmented, or a
// freshly cloned one.
type Stage interface {
	Name() string
	Process(ctx context.Context, input *PipelinePayload) (*PipelinePayload, error)
}

// Validator is implemented by stages that need to reject malformed input
// before Process runs. Invalid input fails the stage.
type Validator interface {
	Validate(input *PipelinePayload) error
}

// AfterRunner is implemented by stages with post-processing that must run
// after Process succeeds but before the next stage starts (e.g. flushing a
// per-stage metric that depends on the final output shape).
type AfterRunner interface {
	AfterRun(output *PipelinePayload)
}

// ErrorHandler is implemented by stages that can recover from their own
// failure. If HandleError returns a non-nil payload, the pipeline emits
// stage:recover and continues with it instead of aborting.
type ErrorHandler interface {
	HandleError(err error, input *PipelinePayload) (*PipelinePayload, bool)
}

// StageFunc adapts a plain unary callable to the Stage interface, matching
// the "stages may be instances, constructors, or plain unary callables"
// callable forms a caller may hand to Through.
type StageFunc struct {
	StageName string
	Fn        func(ctx context.Context, input *PipelinePayload) (*PipelinePayload, error)
}

func (f StageFunc) Name() string { return f.StageName }

func (f StageFunc) Process(ctx context.Context, input *PipelinePayload) (*PipelinePayload, error) {
	return f.Fn(ctx, input)
}
