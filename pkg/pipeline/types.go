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

// Package pipeline implements the event-driven processing pipeline: a
// configurable, resumable, cancellable sequence of stages that turns a base
// path plus options into a formatted, bounded, deduplicated artifact stream.
package pipeline

import "time"

// SortOrder enumerates the Sort stage's comparison keys.
type SortOrder string

const (
	SortPath      SortOrder = "path"
	SortSize      SortOrder = "size"
	SortModified  SortOrder = "modified"
	SortName      SortOrder = "name"
	SortExtension SortOrder = "extension"
	SortDepth     SortOrder = "depth"
)

// OutputFormat enumerates the formats pkg/format knows how to render.
type OutputFormat string

const (
	FormatXML      OutputFormat = "xml"
	FormatJSON     OutputFormat = "json"
	FormatMarkdown OutputFormat = "markdown"
	FormatTree     OutputFormat = "tree"
	FormatNDJSON   OutputFormat = "ndjson"
	FormatSARIF    OutputFormat = "sarif"
)

// SecretsPolicy controls what the secret scanner does with a finding.
type SecretsPolicy string

const (
	SecretsRedact     SecretsPolicy = "redact"
	SecretsReject     SecretsPolicy = "reject"
	SecretsReportOnly SecretsPolicy = "report-only"
)

// GitStatus tags a FileRecord with its working-tree status relative to HEAD.
type GitStatus string

const (
	GitModified  GitStatus = "modified"
	GitUntracked GitStatus = "untracked"
	GitStaged    GitStatus = "staged"
)

// MetaValue is the tagged-union value stored in a FileRecord's metadata bag,
// standing in for the source system's dynamic per-file attribute maps.
type MetaValue struct {
	String  string
	Integer int64
	Real    float64
	Boolean bool
	List    []MetaValue
	Map     map[string]MetaValue
}

// ExternalSource describes one entry consumed by the external source
// resolver: a remote repo URL or local directory, remapped under
// destination in the merged payload.
type ExternalSource struct {
	Source      string
	Destination string
	Include     []string
	Exclude     []string
}

// FileRecord is the essential per-file record that flows through every
// stage of the pipeline.
type FileRecord struct {
	// RelativePath is POSIX, forward-slash, and the canonical identity of
	// a FileRecord within a payload after Dedup.
	RelativePath string
	// AbsolutePath is platform-native and opened for I/O.
	AbsolutePath string

	Size         int64
	ModifiedTime time.Time

	// Content holds decoded text. Raw holds bytes when the file is binary
	// or not yet decoded. Exactly one is populated once Loaded is true.
	Content string
	Raw     []byte
	Loaded  bool

	IsBinary bool
	Encoding string

	GitStatus GitStatus

	Transformed   bool
	TransformedBy []string
	Metadata      map[string]MetaValue

	ContentHash string

	// Err records a non-fatal per-file failure (unreadable file, failed
	// transform) surfaced to the caller without aborting the stage.
	Err error
}

// Clone returns a shallow copy of the record suitable for stages that
// narrow or augment the file list without mutating shared state.
func (f *FileRecord) Clone() *FileRecord {
	cp := *f
	if f.TransformedBy != nil {
		cp.TransformedBy = append([]string(nil), f.TransformedBy...)
	}
	if f.Metadata != nil {
		cp.Metadata = make(map[string]MetaValue, len(f.Metadata))
		for k, v := range f.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}

// SecretFinding pairs a pkg/secrets finding with the file it was found in,
// carried on the payload so the formatting stage can build a SARIF/report
// artifact without pkg/format importing pkg/secrets directly.
type SecretFinding struct {
	Path        string
	RuleID      string
	StartLine   int
	EndLine     int
	StartColumn int
	EndColumn   int
	Match       string
	Tags        []string
}

// PipelinePayload is the single mutable record flowing between stages.
type PipelinePayload struct {
	BaseDir  string
	Options  Options
	Files    []*FileRecord
	Errors   []error
	Warnings []string

	// Instructions holds the resolved text of the "instructions" option
	// (inline string or file contents), set by the instructions stage and
	// consumed by the formatter's RenderOptions.
	Instructions string

	// SecretFindings accumulates every secret-scanner finding across all
	// files, regardless of SecretsPolicy, for report-only/SARIF output.
	SecretFindings []SecretFinding
}

// Clone produces a shallow payload copy: a new Files slice header over the
// same records, and copied Errors/Warnings slices, so a stage can narrow or
// reorder Files without mutating the caller's payload.
func (p *PipelinePayload) Clone() *PipelinePayload {
	cp := &PipelinePayload{
		BaseDir: p.BaseDir,
		Options: p.Options,
	}
	cp.Files = append([]*FileRecord(nil), p.Files...)
	cp.Errors = append([]error(nil), p.Errors...)
	cp.Warnings = append([]string(nil), p.Warnings...)
	cp.Instructions = p.Instructions
	cp.SecretFindings = append([]SecretFinding(nil), p.SecretFindings...)
	return cp
}

// AddWarning records a non-fatal stage-level warning on the payload.
func (p *PipelinePayload) AddWarning(msg string) {
	p.Warnings = append(p.Warnings, msg)
}

// AddError records a non-fatal stage-level error on the payload.
func (p *PipelinePayload) AddError(err error) {
	if err != nil {
		p.Errors = append(p.Errors, err)
	}
}

// PipelineStats accumulates timing and per-stage metrics for one run.
type PipelineStats struct {
	StartTime       time.Time
	EndTime         time.Time
	StagesCompleted int
	StagesFailed    int
	Errors          []error
	PerStageTiming  map[string]time.Duration
	PerStageMetrics map[string]StageMetrics
	TotalStageTime  time.Duration
}

// StageMetrics captures the before/after shape of a stage's payload.
type StageMetrics struct {
	InputSize   int
	OutputSize  int
	MemoryDelta int64
}

func newStats() *PipelineStats {
	return &PipelineStats{
		PerStageTiming:  make(map[string]time.Duration),
		PerStageMetrics: make(map[string]StageMetrics),
	}
}
