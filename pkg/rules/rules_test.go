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

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	testhelpers "github.com/copytree/copytree/internal/testing"
)

func compile(t *testing.T, pattern string) *Rule {
	t.Helper()
	r, err := Compile(pattern, "test", 1, "")
	require.NoError(t, err)
	return r
}

func TestRule_SegmentGlob(t *testing.T) {
	r := compile(t, "*.log")
	assert.True(t, r.Match("debug.log", false))
	assert.True(t, r.Match("logs/debug.log", false), "unanchored pattern matches at any depth")
	assert.False(t, r.Match("debug.log.txt", false))
}

func TestRule_DoubleStarCrossesSegments(t *testing.T) {
	r := compile(t, "src/**/*.js")
	assert.True(t, r.Match("src/app.js", false))
	assert.True(t, r.Match("src/a/b/c/util.js", false))
	assert.False(t, r.Match("lib/app.js", false))
}

func TestRule_QuestionMarkAndCharClass(t *testing.T) {
	assert.True(t, compile(t, "file?.txt").Match("file1.txt", false))
	assert.False(t, compile(t, "file?.txt").Match("file10.txt", false))

	class := compile(t, "report-[0-9][0-9].csv")
	assert.True(t, class.Match("report-07.csv", false))
	assert.False(t, class.Match("report-ab.csv", false))

	negated := compile(t, "[!a]*.txt")
	assert.True(t, negated.Match("b.txt", false))
	assert.False(t, negated.Match("a.txt", false))
}

func TestRule_LeadingSlashAnchorsToRoot(t *testing.T) {
	r := compile(t, "/build")
	assert.True(t, r.Match("build", true))
	assert.False(t, r.Match("src/build", true))
}

func TestRule_TrailingSlashRestrictsToDirectories(t *testing.T) {
	r := compile(t, "vendor/")
	assert.True(t, r.Match("vendor", true))
	assert.False(t, r.Match("vendor", false))
}

func TestRule_NegationFlag(t *testing.T) {
	r := compile(t, "!important.log")
	assert.True(t, r.Negated)
	assert.True(t, r.Match("important.log", false))
}

func TestCompile_InvalidPatternErrors(t *testing.T) {
	_, err := Compile("", "test", 1, "")
	require.Error(t, err)
}

func TestParseLines_SkipsCommentsAndBlanks(t *testing.T) {
	rs, err := ParseLines("# build artifacts\n\n*.o\n!keep.o\n", "test", "")
	require.NoError(t, err)
	require.Len(t, rs, 2)
	assert.False(t, rs[0].Negated)
	assert.True(t, rs[1].Negated)
}

func TestRulesetFilter_NoIncludeRulesAcceptsAll(t *testing.T) {
	f := New()
	assert.True(t, f.Accept("anything.txt", false))
}

func TestRulesetFilter_IncludeSetsRequireMatch(t *testing.T) {
	f := New()
	set, err := ParseLines("**/*.md\n", "include", "")
	require.NoError(t, err)
	f.AddIncludeSet(IncludeSet(set))

	assert.True(t, f.Accept("docs/guide.md", false))
	assert.False(t, f.Accept("src/app.js", false))
}

func TestRulesetFilter_ExcludeRejects(t *testing.T) {
	f := New()
	f.AddExclude(compile(t, "**/*.test.js"))

	assert.True(t, f.Accept("src/app.js", false))
	assert.False(t, f.Accept("src/app.test.js", false))
}

func TestRulesetFilter_NegationReincludes(t *testing.T) {
	f := New()
	f.AddExclude(compile(t, "*.log"))
	f.AddExclude(compile(t, "!important.log"))

	assert.False(t, f.Accept("debug.log", false))
	assert.True(t, f.Accept("important.log", false))
}

func TestRulesetFilter_AlwaysBypassesExcludes(t *testing.T) {
	f := New()
	f.AddExclude(compile(t, "secrets/**"))
	f.AddAlways(compile(t, "secrets/allowed.txt"))

	assert.True(t, f.Accept("secrets/allowed.txt", false))
	assert.False(t, f.Accept("secrets/denied.txt", false))
}

func TestRulesetFilter_AlwaysBypassesIncludeSets(t *testing.T) {
	f := New()
	set, err := ParseLines("**/*.go\n", "include", "")
	require.NoError(t, err)
	f.AddIncludeSet(IncludeSet(set))
	f.AddAlways(compile(t, "Makefile"))

	assert.True(t, f.Accept("Makefile", false))
}

func TestBuildLayered_DeepestFirstWins(t *testing.T) {
	root := testhelpers.BuildTree(t, map[string]string{
		".gitignore":        "*.log\n",
		"sub/.gitignore":    "!keep.log\n",
		"sub/keep.log":      "kept",
		"sub/drop.log":      "dropped",
		"drop.log":          "dropped",
		"README.md":         "# hi",
	})

	l, err := BuildLayered(root, []string{".gitignore"}, false)
	require.NoError(t, err)

	assert.True(t, l.ShouldIgnore("drop.log", false))
	assert.True(t, l.ShouldIgnore("sub/drop.log", false))
	assert.False(t, l.ShouldIgnore("sub/keep.log", false), "deeper negation overrides the root rule")
	assert.False(t, l.ShouldIgnore("README.md", false))
}

func TestBuildLayered_ScopedToOwnSubtree(t *testing.T) {
	root := testhelpers.BuildTree(t, map[string]string{
		"a/.gitignore": "*.tmp\n",
		"a/x.tmp":      "",
		"b/x.tmp":      "",
	})

	l, err := BuildLayered(root, []string{".gitignore"}, false)
	require.NoError(t, err)

	assert.True(t, l.ShouldIgnore("a/x.tmp", false))
	assert.False(t, l.ShouldIgnore("b/x.tmp", false), "a/.gitignore must not reach sibling b/")
}
