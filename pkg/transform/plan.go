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

package transform

import "fmt"

// IssueKind enumerates the plan-validation finding categories.
type IssueKind string

const (
	IssueConflict        IssueKind = "conflict"
	IssueOrdering        IssueKind = "ordering"
	IssueIncompatible    IssueKind = "incompatible_types"
	IssueMissingResource IssueKind = "missing_resource"
	IssueRedundancy      IssueKind = "redundancy"
	IssuePerformance     IssueKind = "performance"
	IssueCircular        IssueKind = "circular dependency"
)

// Severity distinguishes fatal findings (the plan cannot run) from warnings.
type Severity string

const (
	SeverityFatal   Severity = "fatal"
	SeverityWarning Severity = "warning"
)

// Issue is one plan-validation finding.
type Issue struct {
	Kind     IssueKind
	Severity Severity
	Message  string
	Names    []string
}

// Environment reports which external resources are available, consulted by
// the missing_resource check.
type Environment struct {
	HasAPIKey     bool
	HasNetwork    bool
	AvailableDeps map[string]bool // e.g. {"tesseract": true}
}

// ValidatePlan reports every issue in the ordered transformer name list
// across seven checks. Fatal issues (conflict, incompatible_types,
// missing_resource, circular dependency) mean the plan must not run;
// ordering/redundancy/performance are warnings.
func ValidatePlan(reg *Registry, names []string, env Environment) []Issue {
	var issues []Issue

	entries := make([]*Entry, 0, len(names))
	for _, n := range names {
		if e, ok := reg.Get(n); ok {
			entries = append(entries, e)
		}
	}

	issues = append(issues, checkConflicts(entries)...)
	issues = append(issues, checkOrdering(entries)...)
	issues = append(issues, checkIncompatibleTypes(entries)...)
	issues = append(issues, checkMissingResources(entries, env)...)
	issues = append(issues, checkRedundancy(entries)...)
	issues = append(issues, checkPerformance(entries)...)
	if cyc := DetectCycle(reg, names); len(cyc) > 0 {
		issues = append(issues, Issue{
			Kind: IssueCircular, Severity: SeverityFatal,
			Message: fmt.Sprintf("circular transformer dependency: %v", cyc),
			Names:   cyc,
		})
	}
	return issues
}

// HasFatal reports whether any issue in the list is fatal.
func HasFatal(issues []Issue) bool {
	for _, i := range issues {
		if i.Severity == SeverityFatal {
			return true
		}
	}
	return false
}

func contains(ss []string, s string) bool {
	for _, x := range ss {
		if x == s {
			return true
		}
	}
	return false
}

func checkConflicts(entries []*Entry) []Issue {
	var issues []Issue
	for i, a := range entries {
		for j, b := range entries {
			if i == j {
				continue
			}
			if contains(a.Traits.ConflictsWith, b.Name) {
				issues = append(issues, Issue{
					Kind: IssueConflict, Severity: SeverityFatal,
					Message: fmt.Sprintf("%q conflicts with %q", a.Name, b.Name),
					Names:   []string{a.Name, b.Name},
				})
			}
		}
	}
	return issues
}

// checkOrdering flags a non-idempotent transformer placed after an
// order-sensitive one it's type-compatible with (downstream), and an
// order-sensitive transformer preceded by a mutating (non-idempotent)
// type-compatible peer. An idempotent peer running first is harmless, so a
// plan like [light, order-sensitive] validates clean.
func checkOrdering(entries []*Entry) []Issue {
	var issues []Issue
	for i, e := range entries {
		if !e.Traits.OrderSensitive {
			continue
		}
		for j, peer := range entries {
			if j >= i {
				continue
			}
			if peer.Traits.Idempotent {
				continue
			}
			if TypesCompatible(peer.Traits, e.Traits) || TypesCompatible(e.Traits, peer.Traits) {
				issues = append(issues, Issue{
					Kind: IssueOrdering, Severity: SeverityWarning,
					Message: fmt.Sprintf("order-sensitive transformer %q runs after mutating %q", e.Name, peer.Name),
					Names:   []string{e.Name, peer.Name},
				})
			}
		}
		for j := i + 1; j < len(entries); j++ {
			later := entries[j]
			if !later.Traits.Idempotent && TypesCompatible(e.Traits, later.Traits) {
				issues = append(issues, Issue{
					Kind: IssueOrdering, Severity: SeverityWarning,
					Message: fmt.Sprintf("non-idempotent transformer %q runs after order-sensitive %q", later.Name, e.Name),
					Names:   []string{e.Name, later.Name},
				})
			}
		}
	}
	return issues
}

func checkIncompatibleTypes(entries []*Entry) []Issue {
	var issues []Issue
	for i := 0; i+1 < len(entries); i++ {
		a, b := entries[i], entries[i+1]
		if !TypesCompatible(a.Traits, b.Traits) {
			issues = append(issues, Issue{
				Kind: IssueIncompatible, Severity: SeverityFatal,
				Message: fmt.Sprintf("%q outputs %v, incompatible with %q inputs %v", a.Name, a.Traits.OutputTypes, b.Name, b.Traits.InputTypes),
				Names:   []string{a.Name, b.Name},
			})
		}
	}
	return issues
}

func checkMissingResources(entries []*Entry, env Environment) []Issue {
	var issues []Issue
	for _, e := range entries {
		req := e.Traits.Requirements
		if req.APIKey && !env.HasAPIKey {
			issues = append(issues, Issue{Kind: IssueMissingResource, Severity: SeverityFatal,
				Message: fmt.Sprintf("%q requires an API key", e.Name), Names: []string{e.Name}})
		}
		if req.Network && !env.HasNetwork {
			issues = append(issues, Issue{Kind: IssueMissingResource, Severity: SeverityFatal,
				Message: fmt.Sprintf("%q requires network access", e.Name), Names: []string{e.Name}})
		}
		for _, dep := range e.Traits.Dependencies {
			if env.AvailableDeps != nil && !env.AvailableDeps[dep] {
				issues = append(issues, Issue{Kind: IssueMissingResource, Severity: SeverityFatal,
					Message: fmt.Sprintf("%q depends on unavailable tool %q", e.Name, dep), Names: []string{e.Name, dep}})
			}
		}
	}
	return issues
}

// checkRedundancy flags two transformers sharing a single-apply tag
// convention (e.g. "summary").
func checkRedundancy(entries []*Entry) []Issue {
	seen := make(map[string]string)
	var issues []Issue
	singleApply := map[string]bool{"summary": true}
	for _, e := range entries {
		for _, tag := range e.Traits.Tags {
			if !singleApply[tag] {
				continue
			}
			if prior, ok := seen[tag]; ok {
				issues = append(issues, Issue{
					Kind: IssueRedundancy, Severity: SeverityWarning,
					Message: fmt.Sprintf("both %q and %q carry the single-apply tag %q", prior, e.Name, tag),
					Names:   []string{prior, e.Name},
				})
			} else {
				seen[tag] = e.Name
			}
		}
	}
	return issues
}

func checkPerformance(entries []*Entry) []Issue {
	n := 0
	var heavy []string
	for _, e := range entries {
		if e.Traits.Heavy {
			n++
			heavy = append(heavy, e.Name)
		}
	}
	if n > 3 {
		return []Issue{{
			Kind: IssuePerformance, Severity: SeverityWarning,
			Message: fmt.Sprintf("plan runs %d heavy transformers (%v); consider trimming", n, heavy),
			Names:   heavy,
		}}
	}
	return nil
}

// DetectCycle runs an iterative DFS with white/gray/black coloring
// over the transitive Dependencies graph restricted to names, returning
// the cycle (transformer names) if one exists, or nil.
func DetectCycle(reg *Registry, names []string) []string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(names))
	for _, n := range names {
		color[n] = white
	}

	type frame struct {
		name string
		idx  int
	}

	for _, start := range names {
		if color[start] != white {
			continue
		}
		stack := []frame{{start, 0}}
		color[start] = gray
		path := []string{start}

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			entry, ok := reg.Get(top.name)
			if !ok {
				color[top.name] = black
				stack = stack[:len(stack)-1]
				path = path[:len(path)-1]
				continue
			}
			deps := entry.Traits.Dependencies
			advanced := false
			for top.idx < len(deps) {
				dep := deps[top.idx]
				top.idx++
				if _, known := color[dep]; !known {
					continue // dependency outside this plan isn't tracked for cycles
				}
				switch color[dep] {
				case white:
					color[dep] = gray
					stack = append(stack, frame{dep, 0})
					path = append(path, dep)
					advanced = true
				case gray:
					// found a cycle back to dep
					cycle := append([]string(nil), path...)
					cycle = append(cycle, dep)
					return cycle
				case black:
					// already fully explored, no cycle through here
				}
				if advanced {
					break
				}
			}
			if advanced {
				continue
			}
			color[top.name] = black
			stack = stack[:len(stack)-1]
			path = path[:len(path)-1]
		}
	}
	return nil
}

// OptimizePlan produces a topologically valid permutation of names
// preferring, in order: order-sensitive first, light before heavy,
// idempotent later. It returns the reordered names and a reason
// string per change, or an equal-to-input plan plus nil if no reorder was
// needed.
func OptimizePlan(reg *Registry, names []string) (optimized []string, reasons []string) {
	entries := make([]*Entry, 0, len(names))
	for _, n := range names {
		if e, ok := reg.Get(n); ok {
			entries = append(entries, e)
		}
	}

	rank := func(e *Entry) int {
		r := 0
		if !e.Traits.OrderSensitive {
			r += 100
		}
		if e.Traits.Heavy {
			r += 10
		}
		if e.Traits.Idempotent {
			r += 1
		}
		return r
	}

	sorted := append([]*Entry(nil), entries...)
	stableSortByRank(sorted, rank)

	optimized = make([]string, len(sorted))
	changed := false
	for i, e := range sorted {
		optimized[i] = e.Name
		if i < len(names) && names[i] != e.Name {
			changed = true
		}
	}
	if changed {
		reasons = append(reasons, "reordered: order-sensitive first, light before heavy, idempotent last")
	}
	return optimized, reasons
}

func stableSortByRank(entries []*Entry, rank func(*Entry) int) {
	// insertion sort: plan sizes are small (single-digit transformer
	// counts), and stability matters more than asymptotic speed here.
	for i := 1; i < len(entries); i++ {
		j := i
		for j > 0 && rank(entries[j-1]) > rank(entries[j]) {
			entries[j-1], entries[j] = entries[j], entries[j-1]
			j--
		}
	}
}
