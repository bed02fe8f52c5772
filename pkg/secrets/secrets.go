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

// Package secrets scans in-memory file content for likely secrets.
// The primary path shells an external scanner binary over stdin/stdout JSON.
// When no scanner binary is configured, a built-in regex pattern set covers
// the common cases in degraded mode so the pipeline never silently skips
// scanning just because nothing is on PATH.
package secrets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/copytree/copytree/internal/contract"
	"github.com/copytree/copytree/pkg/pipeline"
)

// Finding is one detected secret: {ruleID, startLine, endLine,
// startColumn, endColumn, match, tags}.
type Finding struct {
	RuleID      string   `json:"ruleID"`
	StartLine   int      `json:"startLine"`
	EndLine     int      `json:"endLine"`
	StartColumn int      `json:"startColumn"`
	EndColumn   int       `json:"endColumn"`
	Match       string   `json:"match"`
	Tags        []string `json:"tags"`
}

// Scanner detects secrets in content, preferring an external binary and
// falling back to a built-in regex pass.
type Scanner struct {
	// BinaryPath is the external scanner executable. Empty disables the
	// external path and always uses the built-in fallback.
	BinaryPath string
	// Args are extra arguments passed to BinaryPath; content is always fed
	// on stdin and findings are always read as a JSON array from stdout.
	Args []string
}

// scanRequest is the stdin payload sent to the external scanner.
type scanRequest struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// Scan detects secrets in content, logically attributed to path. The path
// is only context for the finding; content never touches a temp file.
func (s *Scanner) Scan(ctx context.Context, path, content string) ([]Finding, error) {
	if len(content) > contract.SoftLimitBytes() {
		// Oversized content is skipped rather than streamed in pieces; a
		// span split across chunk boundaries would evade the match.
		return nil, fmt.Errorf("secrets: %s exceeds scan size limit (%d bytes)", path, contract.SoftLimitBytes())
	}
	if s.BinaryPath != "" {
		findings, err := s.scanExternal(ctx, path, content)
		if err == nil {
			return findings, nil
		}
		// External scanner failed to run at all (not found, non-zero exit
		// on a real error); degrade rather than fail the whole transform.
	}
	return scanBuiltin(path, content), nil
}

func (s *Scanner) scanExternal(ctx context.Context, path, content string) ([]Finding, error) {
	req, err := json.Marshal(scanRequest{Path: path, Content: content})
	if err != nil {
		return nil, fmt.Errorf("secrets: marshal request: %w", err)
	}

	cmd := exec.CommandContext(ctx, s.BinaryPath, s.Args...)
	cmd.Stdin = bytes.NewReader(req)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("secrets: run scanner: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	var findings []Finding
	if err := json.Unmarshal(stdout.Bytes(), &findings); err != nil {
		return nil, fmt.Errorf("secrets: parse findings: %w", err)
	}
	return findings, nil
}

// redactionPlaceholder is substituted for a finding's matched text so the
// original secret bytes never appear in the emitted artifact, while still naming which rule fired.
func redactionPlaceholder(ruleID string) string {
	return fmt.Sprintf("«REDACTED:%s»", ruleID)
}

// Apply rewrites content according to policy:
//   - redact: every finding's match text is replaced with a placeholder.
//   - report-only: content is returned unchanged; findings are still
//     reported for the caller to log or surface in a SARIF artifact.
//   - reject: content is returned unchanged; the caller is expected to
//     treat any non-empty findings as fatal (SecretsDetectedError).
func Apply(content string, findings []Finding, policy pipeline.SecretsPolicy) string {
	if policy != pipeline.SecretsRedact || len(findings) == 0 {
		return content
	}
	out := content
	for _, f := range findings {
		if f.Match == "" {
			continue
		}
		out = strings.ReplaceAll(out, f.Match, redactionPlaceholder(f.RuleID))
	}
	return out
}
