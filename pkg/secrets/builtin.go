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

package secrets

import "regexp"

// builtinRule is one degraded-mode pattern; ruleID mirrors the pattern name
// since the fallback has no external rule database to consult.
type builtinRule struct {
	ruleID string
	re     *regexp.Regexp
	tags   []string
}

// builtinRules covers the common cases: AWS access keys,
// generic api_key=/secret= assignments, PEM private key blocks, and bearer
// tokens. This is a pure-Go regex pass, not a replacement for a real
// scanner's entropy/allowlist heuristics.
var builtinRules = []builtinRule{
	{
		ruleID: "aws-access-key-id",
		re:     regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`),
		tags:   []string{"aws", "credential"},
	},
	{
		ruleID: "generic-api-key-assignment",
		re:     regexp.MustCompile(`(?i)\b(api[_-]?key|secret|token|password)\b\s*[:=]\s*['"]?([A-Za-z0-9_\-/+=]{12,})['"]?`),
		tags:   []string{"generic", "assignment"},
	},
	{
		ruleID: "pem-private-key",
		re:     regexp.MustCompile(`-----BEGIN (RSA |EC |OPENSSH |)PRIVATE KEY-----[\s\S]*?-----END (RSA |EC |OPENSSH |)PRIVATE KEY-----`),
		tags:   []string{"pem", "private-key"},
	},
	{
		ruleID: "bearer-token",
		re:     regexp.MustCompile(`(?i)\bBearer\s+[A-Za-z0-9_\-\.]{16,}`),
		tags:   []string{"http", "token"},
	},
}

// scanBuiltin runs every built-in rule against content, reporting line/column
// offsets computed against the original string (not the matched substring).
func scanBuiltin(path, content string) []Finding {
	var findings []Finding
	lineStarts := computeLineStarts(content)

	for _, rule := range builtinRules {
		for _, loc := range rule.re.FindAllStringIndex(content, -1) {
			start, end := loc[0], loc[1]
			startLine, startCol := lineColFor(lineStarts, start)
			endLine, endCol := lineColFor(lineStarts, end)
			findings = append(findings, Finding{
				RuleID:      rule.ruleID,
				StartLine:   startLine,
				EndLine:     endLine,
				StartColumn: startCol,
				EndColumn:   endCol,
				Match:       content[start:end],
				Tags:        rule.tags,
			})
		}
	}
	return findings
}

// computeLineStarts returns the byte offset of the first character of each
// line (1-indexed lines, so index 0 is unused).
func computeLineStarts(content string) []int {
	starts := []int{0, 0}
	for i := 0; i < len(content); i++ {
		if content[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

// lineColFor converts a byte offset into a 1-based (line, column) pair.
func lineColFor(lineStarts []int, offset int) (line, col int) {
	line = 1
	for i := len(lineStarts) - 1; i >= 1; i-- {
		if lineStarts[i] <= offset {
			line = i
			break
		}
	}
	col = offset - lineStarts[line] + 1
	return line, col
}

// HasSecretLikeTags reports whether any finding carries one of the given
// tags, a convenience for a stage that only cares about a subset of rules.
func HasSecretLikeTags(findings []Finding, tags ...string) bool {
	want := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		want[t] = struct{}{}
	}
	for _, f := range findings {
		for _, t := range f.Tags {
			if _, ok := want[t]; ok {
				return true
			}
		}
	}
	return false
}
