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

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/pflag"

	copytreeerrors "github.com/copytree/copytree/internal/errors"
	"github.com/copytree/copytree/internal/output"
	"github.com/copytree/copytree/internal/ui"
	"github.com/copytree/copytree/pkg/aiprovider"
	"github.com/copytree/copytree/pkg/cache"
	"github.com/copytree/copytree/pkg/format"
	"github.com/copytree/copytree/pkg/pipeline"
	"github.com/copytree/copytree/pkg/secrets"
	"github.com/copytree/copytree/pkg/source"
	"github.com/copytree/copytree/pkg/stages"
)

// stateDir is the per-user root for caches, cloned external sources, and
// conversation state.
func stateDir() string {
	if dir := os.Getenv("COPYTREE_STATE_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".copytree"
	}
	return filepath.Join(home, ".copytree")
}

func cacheDir() string {
	if dir := os.Getenv("COPYTREE_CACHE_DIR"); dir != "" {
		return dir
	}
	return filepath.Join(stateDir(), "cache")
}

// buildPipeline assembles the stage graph for one run. Conditional stages
// (git filter, external sources, transform, dedup) are appended only when
// the options call for them, keeping every run's topology fixed up front.
func buildPipeline(opts pipeline.Options, parallel bool) (*pipeline.Pipeline, error) {
	sharedCache, err := cache.New(cache.Options{Dir: cacheDir()})
	if err != nil {
		return nil, copytreeerrors.NewConfigurationError(
			"Cannot open cache directory", err.Error(),
			"Set COPYTREE_CACHE_DIR to a writable directory", err)
	}

	provider, active := aiprovider.FromEnv()
	regCfg := stages.RegistryConfig{MaxFileSize: opts.MaxFileSize}
	if active {
		regCfg.AIProvider = provider
		regCfg.AICache = sharedCache
	}

	p := pipeline.New(nil)
	p.Through(&stages.DiscoveryStage{Parallel: parallel})

	if opts.Modified || opts.Changes != "" || opts.WithGitStatus {
		p.Through(&stages.GitFilterStage{})
	}
	p.Through(&stages.RulesetFilterStage{})
	if len(opts.Always) > 0 {
		p.Through(&stages.AlwaysIncludeStage{})
	}
	if len(opts.ExternalSources) > 0 {
		p.Through(&stages.ExternalSourceStage{
			Resolver: &source.Resolver{CacheDir: filepath.Join(stateDir(), "sources")},
		})
	}
	p.Through(&stages.LimitStage{})
	p.Through(&stages.LoadStage{Concurrency: opts.Concurrency})

	if opts.Transform {
		p.Through(&stages.TransformStage{
			Registry: stages.NewDefaultRegistry(regCfg),
			Scanner:  &secrets.Scanner{BinaryPath: os.Getenv("COPYTREE_SCANNER")},
			Concurrency: opts.Concurrency,
		})
	}
	p.Through(&stages.InstructionsStage{})
	if opts.Dedupe {
		p.Through(&stages.DedupStage{})
	}
	p.Through(&stages.SortStage{})
	return p, nil
}

// resultEnvelope is the --json success payload.
type resultEnvelope struct {
	Output   string   `json:"output,omitempty"`
	Files    []string `json:"files"`
	Stats    struct {
		FileCount  int   `json:"file_count"`
		TotalBytes int64 `json:"total_bytes"`
		DurationMS int64 `json:"duration_ms"`
		Stages     int   `json:"stages_completed"`
	} `json:"stats"`
	Warnings []string `json:"warnings,omitempty"`
	Errors   []string `json:"errors,omitempty"`
	Findings int      `json:"secret_findings,omitempty"`
}

func runCopy(args []string) {
	fs := pflag.NewFlagSet("copytree", pflag.ContinueOnError)
	opts, globals, baseDir, parallel, err := parseCopyFlags(fs, args)
	if err != nil {
		copytreeerrors.FatalError(err, globals.JSON)
	}

	if info, statErr := os.Stat(baseDir); statErr != nil || !info.IsDir() {
		copytreeerrors.FatalError(copytreeerrors.NewValidationError(
			fmt.Sprintf("Not a directory: %s", baseDir), "",
			"Pass an existing directory path"), globals.JSON)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, err := buildPipeline(opts, parallel)
	if err != nil {
		copytreeerrors.FatalError(err, globals.JSON)
	}

	progress := NewProgressConfig(globals)
	done := watchProgress(p, progress)

	payload := &pipeline.PipelinePayload{BaseDir: baseDir, Options: opts}
	result, stats, err := p.Process(ctx, payload)
	<-done
	if err != nil {
		copytreeerrors.FatalError(err, globals.JSON)
	}

	if opts.DryRun {
		for _, f := range result.Files {
			if opts.ShowSize {
				fmt.Printf("%8d  %s\n", f.Size, f.RelativePath)
			} else {
				fmt.Println(f.RelativePath)
			}
		}
		return
	}

	if err := emitArtifact(result, stats, opts, globals); err != nil {
		copytreeerrors.FatalError(err, globals.JSON)
	}
}

func emitArtifact(result *pipeline.PipelinePayload, stats *pipeline.PipelineStats, opts pipeline.Options, globals GlobalFlags) error {
	formatter := format.ByFormat(opts.Format)
	renderOpts := format.RenderOptions{
		BaseDir:        result.BaseDir,
		Generated:      stats.StartTime,
		AddLineNumbers: opts.AddLineNumbers,
		ShowSize:       opts.ShowSize,
		OnlyTree:       opts.OnlyTree,
		Instructions:   result.Instructions,
		CharLimit:      opts.CharLimit,
		Findings:       toFormatFindings(result.SecretFindings),
	}
	fmtStats := format.Stats{
		FileCount: len(result.Files),
		Duration:  stats.EndTime.Sub(stats.StartTime),
	}
	for _, f := range result.Files {
		fmtStats.TotalBytes += f.Size
	}

	sink := os.Stdout
	if opts.Output != "" {
		f, err := os.Create(opts.Output)
		if err != nil {
			return copytreeerrors.NewFileSystemError(
				"Cannot create output file", err.Error(),
				"Check the output path is writable", opts.Output, "create", err)
		}
		defer f.Close()
		sink = f
	}

	if globals.JSON && opts.Output == "" {
		// The result envelope owns stdout; the artifact goes inline.
		artifact, err := format.RenderToString(formatter, result.Files, fmtStats, renderOpts)
		if err != nil {
			return err
		}
		env := buildEnvelope(result, stats, fmtStats)
		env.Output = artifact
		return output.JSON(env)
	}

	if err := format.Render(sink, formatter, result.Files, fmtStats, renderOpts); err != nil {
		return err
	}

	if opts.SecretsReport && len(result.SecretFindings) > 0 {
		if err := writeSecretsReport(result, fmtStats, renderOpts, opts); err != nil {
			return err
		}
	}

	if globals.JSON {
		return output.JSON(buildEnvelope(result, stats, fmtStats))
	}
	for _, w := range result.Warnings {
		ui.Warning(w)
	}
	return nil
}

func buildEnvelope(result *pipeline.PipelinePayload, stats *pipeline.PipelineStats, fmtStats format.Stats) *resultEnvelope {
	env := &resultEnvelope{Warnings: result.Warnings, Findings: len(result.SecretFindings)}
	for _, f := range result.Files {
		env.Files = append(env.Files, f.RelativePath)
	}
	for _, e := range result.Errors {
		env.Errors = append(env.Errors, e.Error())
	}
	env.Stats.FileCount = fmtStats.FileCount
	env.Stats.TotalBytes = fmtStats.TotalBytes
	env.Stats.DurationMS = stats.EndTime.Sub(stats.StartTime).Milliseconds()
	env.Stats.Stages = stats.StagesCompleted
	return env
}

// writeSecretsReport emits the side-channel SARIF report next to the main
// artifact (or under the working directory for stdout runs).
func writeSecretsReport(result *pipeline.PipelinePayload, fmtStats format.Stats, renderOpts format.RenderOptions, opts pipeline.Options) error {
	reportPath := "copytree-secrets.sarif"
	if opts.Output != "" {
		reportPath = opts.Output + ".secrets.sarif"
	}
	f, err := os.Create(reportPath)
	if err != nil {
		return copytreeerrors.NewFileSystemError(
			"Cannot create secrets report", err.Error(),
			"Check the report path is writable", reportPath, "create", err)
	}
	defer f.Close()
	ui.Infof("Secret findings written to %s", reportPath)
	return format.Render(f, &format.SARIFFormatter{}, result.Files, fmtStats, renderOpts)
}

func toFormatFindings(findings []pipeline.SecretFinding) []format.SecretFinding {
	out := make([]format.SecretFinding, 0, len(findings))
	for _, sf := range findings {
		out = append(out, format.SecretFinding{
			RuleID:      sf.RuleID,
			Path:        sf.Path,
			StartLine:   sf.StartLine,
			EndLine:     sf.EndLine,
			StartColumn: sf.StartColumn,
			EndColumn:   sf.EndColumn,
			Match:       sf.Match,
			Tags:        sf.Tags,
		})
	}
	return out
}

func runCacheGC(args []string) {
	c, err := cache.New(cache.Options{Dir: cacheDir()})
	if err != nil {
		copytreeerrors.FatalError(err, false)
	}
	c.RunGC()
	ui.Success("Cache GC complete")
}
