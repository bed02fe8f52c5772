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

package rules

import "sort"

// IncludeSet is one ordered bundle of include rules (e.g. a profile's
// `include:` list, or one layer's positive patterns). Within a set,
// negations override earlier rules in the same set.
type IncludeSet []*Rule

// RulesetFilter combines always-rules, include-sets, and global excludes
// into one verdict per file. Ordering is stable: later rules
// override earlier ones; within a set, negations override.
type RulesetFilter struct {
	Always   []*Rule
	Includes []IncludeSet
	Excludes []*Rule
}

// New builds an empty RulesetFilter; callers append via AddInclude/AddExclude/AddAlways.
func New() *RulesetFilter {
	return &RulesetFilter{}
}

func (f *RulesetFilter) AddAlways(r ...*Rule)        { f.Always = append(f.Always, r...) }
func (f *RulesetFilter) AddExclude(r ...*Rule)       { f.Excludes = append(f.Excludes, r...) }
func (f *RulesetFilter) AddIncludeSet(set IncludeSet) { f.Includes = append(f.Includes, set) }

// Accept evaluates the four-step verdict:
//  1. always-rules → immediate accept
//  2. include-sets → must match at least one (no include rules means accept all)
//  3. global excludes → reject
//  4. negations within the last-matched set override
func (f *RulesetFilter) Accept(relPath string, isDir bool) bool {
	for _, r := range f.Always {
		if r.Match(relPath, isDir) && !r.Negated {
			return true
		}
	}

	if len(f.Includes) > 0 {
		if !f.matchesAnyInclude(relPath, isDir) {
			return false
		}
	}

	if excluded, negatedBack := f.matchExcludes(relPath, isDir); excluded && !negatedBack {
		return false
	}

	return true
}

// matchesAnyInclude applies the "later rules / negations within a set
// override" tie-break across every include set, using deepest-matching
// rule ordinal within each set as the decider.
func (f *RulesetFilter) matchesAnyInclude(relPath string, isDir bool) bool {
	for _, set := range f.Includes {
		if verdictFromSet(set, relPath, isDir) {
			return true
		}
	}
	return false
}

// verdictFromSet walks a single ordered rule set and returns the verdict of
// the last matching rule (negation flips it), which is the gitignore-style
// "later lines override" semantics applied within one set.
func verdictFromSet(set IncludeSet, relPath string, isDir bool) bool {
	matched := false
	verdict := false
	ordered := sortedBySpecificity(set)
	for _, r := range ordered {
		if r.Match(relPath, isDir) {
			matched = true
			verdict = !r.Negated
		}
	}
	return matched && verdict
}

// matchExcludes returns whether relPath matches any exclude rule, and
// whether the last such match was itself a negation (re-include).
func (f *RulesetFilter) matchExcludes(relPath string, isDir bool) (excluded, negatedBack bool) {
	ordered := sortedBySpecificity(f.Excludes)
	for _, r := range ordered {
		if r.Match(relPath, isDir) {
			excluded = true
			negatedBack = r.Negated
		}
	}
	return excluded, negatedBack
}

// sortedBySpecificity orders rules so that within equal source ordinal,
// longer/anchored patterns are considered after (and so win ties against)
// shorter ones: longer anchored patterns win over shorter; later
// source lines override earlier within the same set". Source order is the
// primary key; depth only breaks ties between rules from the same file at
// the same nominal position (layered-directory merges).
func sortedBySpecificity(rs []*Rule) []*Rule {
	out := append([]*Rule(nil), rs...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Source != out[j].Source {
			return false // preserve layering order (deepest-first) as supplied
		}
		if out[i].SourceLine != out[j].SourceLine {
			return out[i].SourceLine < out[j].SourceLine
		}
		return out[i].Depth() < out[j].Depth()
	})
	return out
}
