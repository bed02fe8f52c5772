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

package stages

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/sync/errgroup"

	copytreeerrors "github.com/copytree/copytree/internal/errors"
	"github.com/copytree/copytree/pkg/pipeline"
	"github.com/copytree/copytree/pkg/secrets"
	"github.com/copytree/copytree/pkg/transform"
)

// TransformStage dispatches each loaded file to the registry's matching
// transformer and, when a Scanner is configured, scans the
// resulting content for secrets, applying Options.SecretsPolicy.
type TransformStage struct {
	Registry    *transform.Registry
	Scanner     *secrets.Scanner
	Concurrency int
}

func (s *TransformStage) Name() string { return "transform" }

// Validate rejects the run pre-flight when the registry's dependency graph
// is cyclic or the explicitly requested transformer plan carries a fatal
// issue (conflict, incompatible types, missing resource).
func (s *TransformStage) Validate(in *pipeline.PipelinePayload) error {
	if !in.Options.Transform || s.Registry == nil {
		return nil
	}
	if err := s.Registry.CheckDependencies(); err != nil {
		return err
	}
	if len(in.Options.Transformers) == 0 {
		return nil
	}
	issues := transform.ValidatePlan(s.Registry, in.Options.Transformers, planEnvironment(s.Registry, in.Options.Transformers))
	for _, issue := range issues {
		if issue.Severity == transform.SeverityFatal {
			return copytreeerrors.NewValidationError(
				"Invalid transformer plan", issue.Message,
				"Adjust the requested transformer list")
		}
	}
	return nil
}

// planEnvironment probes what the requested transformers need: declared
// external-tool dependencies are looked up on PATH, credentials in the
// environment.
func planEnvironment(reg *transform.Registry, names []string) transform.Environment {
	env := transform.Environment{
		HasAPIKey: os.Getenv("OPENAI_API_KEY") != "" ||
			os.Getenv("ANTHROPIC_API_KEY") != "" ||
			os.Getenv("OLLAMA_HOST") != "",
		HasNetwork:    true,
		AvailableDeps: make(map[string]bool),
	}
	for _, n := range names {
		e, ok := reg.Get(n)
		if !ok {
			continue
		}
		for _, dep := range e.Traits.Dependencies {
			if _, known := env.AvailableDeps[dep]; known {
				continue
			}
			if _, isTransformer := reg.Get(dep); isTransformer {
				env.AvailableDeps[dep] = true
				continue
			}
			_, err := exec.LookPath(dep)
			env.AvailableDeps[dep] = err == nil
		}
	}
	return env
}

func (s *TransformStage) Process(ctx context.Context, in *pipeline.PipelinePayload) (*pipeline.PipelinePayload, error) {
	if !in.Options.Transform {
		return in, nil
	}
	if s.Registry == nil {
		return nil, copytreeerrors.NewConfigurationError(
			"transform requested without a registry", "", "this is a wiring bug, not a user error", nil)
	}

	out := in.Clone()
	results := make([]*pipeline.FileRecord, len(out.Files))
	findingsPerFile := make([][]pipeline.SecretFinding, len(out.Files))
	rejectedPerFile := make([]bool, len(out.Files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(clampConcurrency(s.Concurrency))

	for i, f := range out.Files {
		i, f := i, f
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			next, findings, rejected, err := s.transformOne(gctx, f, in.Options.SecretsPolicy)
			if err != nil {
				return err
			}
			results[i] = next
			findingsPerFile[i] = findings
			rejectedPerFile[i] = rejected
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	rejectedCount := 0
	for i := range results {
		if rejectedPerFile[i] {
			rejectedCount += len(findingsPerFile[i])
		}
	}
	if rejectedCount > 0 {
		return nil, copytreeerrors.NewSecretsDetectedError(rejectedCount)
	}

	for i, f := range results {
		out.Files[i] = f
		out.SecretFindings = append(out.SecretFindings, findingsPerFile[i]...)
	}

	return out, nil
}

// transformOne runs the registry-selected transformer for one file, then
// scans its resulting content for secrets when a Scanner is configured,
// applying policy (redact/reject/report-only).
func (s *TransformStage) transformOne(
	ctx context.Context, f *pipeline.FileRecord, policy pipeline.SecretsPolicy,
) (*pipeline.FileRecord, []pipeline.SecretFinding, bool, error) {
	if f.Err != nil || !f.Loaded {
		return f, nil, false, nil
	}

	sniff := func() string {
		if f.IsBinary && len(f.Raw) > 0 {
			return mimetype.Detect(f.Raw).String()
		}
		return mimetype.Detect([]byte(f.Content)).String()
	}

	entry, err := s.Registry.GetForFile(f.RelativePath, sniff)
	if err != nil {
		cp := f.Clone()
		cp.Err = fmt.Errorf("transform: %w", err)
		return cp, nil, false, nil
	}

	next := f
	if entry.Instance.CanTransform(next) {
		result, err := entry.Instance.DoTransform(next)
		if err != nil {
			cp := next.Clone()
			cp.Err = fmt.Errorf("transform: %s: %w", entry.Name, err)
			return cp, nil, false, nil
		}
		next = result
	}

	if s.Scanner == nil || next.IsBinary || next.Content == "" {
		return next, nil, false, nil
	}

	findings, err := s.Scanner.Scan(ctx, next.RelativePath, next.Content)
	if err != nil || len(findings) == 0 {
		return next, nil, false, nil
	}

	payloadFindings := make([]pipeline.SecretFinding, 0, len(findings))
	for _, fnd := range findings {
		payloadFindings = append(payloadFindings, pipeline.SecretFinding{
			Path:        next.RelativePath,
			RuleID:      fnd.RuleID,
			StartLine:   fnd.StartLine,
			EndLine:     fnd.EndLine,
			StartColumn: fnd.StartColumn,
			EndColumn:   fnd.EndColumn,
			Match:       fnd.Match,
			Tags:        fnd.Tags,
		})
	}

	if policy == pipeline.SecretsReject {
		return next, payloadFindings, true, nil
	}

	out := next.Clone()
	out.Content = secrets.Apply(next.Content, findings, policy)
	return out, payloadFindings, false, nil
}
