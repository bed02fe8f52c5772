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

package discovery

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	testhelpers "github.com/copytree/copytree/internal/testing"
)

func paths(res *Result) []string {
	out := make([]string, 0, len(res.Files))
	for _, f := range res.Files {
		out = append(out, f.RelativePath)
	}
	return out
}

func sampleTree(t *testing.T) string {
	return testhelpers.BuildTree(t, map[string]string{
		"README.md":      "# readme\n",
		"index.js":       "console.log(1)\n",
		"src/app.js":     "app\n",
		"src/util/x.js":  "x\n",
		".hidden":        "dot\n",
		".git/config":    "[core]\n",
		"docs/guide.md":  "guide\n",
	})
}

func TestWalkSequential_DeterministicOrder(t *testing.T) {
	root := sampleTree(t)
	cfg := WalkerConfig{Root: root}

	first, err := WalkSequential(cfg)
	require.NoError(t, err)
	second, err := WalkSequential(cfg)
	require.NoError(t, err)

	assert.Equal(t, paths(first), paths(second))
	assert.Equal(t, []string{"README.md", "docs/guide.md", "index.js", "src/app.js", "src/util/x.js"}, paths(first))
}

func TestWalkers_EmitSameSet(t *testing.T) {
	root := sampleTree(t)

	seq, err := WalkSequential(WalkerConfig{Root: root})
	require.NoError(t, err)
	par, err := WalkParallel(context.Background(), WalkerConfig{Root: root, Concurrency: 5})
	require.NoError(t, err)

	seqPaths := paths(seq)
	parPaths := paths(par)
	sort.Strings(seqPaths)
	sort.Strings(parPaths)
	assert.Equal(t, seqPaths, parPaths)
}

func TestWalk_ExcludesVCSDirectories(t *testing.T) {
	root := sampleTree(t)
	res, err := WalkSequential(WalkerConfig{Root: root, IncludeHidden: true})
	require.NoError(t, err)
	assert.NotContains(t, paths(res), ".git/config")
	assert.Contains(t, paths(res), ".hidden")
}

func TestWalk_HiddenFilesOffByDefault(t *testing.T) {
	root := sampleTree(t)
	res, err := WalkSequential(WalkerConfig{Root: root})
	require.NoError(t, err)
	assert.NotContains(t, paths(res), ".hidden")
}

func TestWalk_MaxDepth(t *testing.T) {
	root := sampleTree(t)
	res, err := WalkSequential(WalkerConfig{Root: root, MaxDepth: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"README.md", "docs/guide.md", "index.js", "src/app.js"}, paths(res))
}

func TestWalk_MaxFileCountStopsEarly(t *testing.T) {
	root := sampleTree(t)
	res, err := WalkSequential(WalkerConfig{Root: root, MaxFileCount: 2})
	require.NoError(t, err)
	assert.Len(t, res.Files, 2)
}

func TestWalk_MaxFileSizeSkipsLargeFiles(t *testing.T) {
	root := testhelpers.BuildTree(t, map[string]string{
		"small.txt": "ok",
		"big.txt":   "0123456789abcdef",
	})
	res, err := WalkSequential(WalkerConfig{Root: root, MaxFileSize: 8})
	require.NoError(t, err)
	assert.Equal(t, []string{"small.txt"}, paths(res))
	assert.Positive(t, res.TotalSkipped)
}

func TestWalk_IgnorerPrunesDirectories(t *testing.T) {
	root := sampleTree(t)
	ignorer := IgnorerFunc(func(relPath string, isDir bool) bool {
		return relPath == "src"
	})
	res, err := WalkSequential(WalkerConfig{Root: root, Ignorer: ignorer})
	require.NoError(t, err)
	assert.Equal(t, []string{"README.md", "docs/guide.md", "index.js"}, paths(res))
}

func TestWalk_PathStatOnlyNoContent(t *testing.T) {
	root := sampleTree(t)
	res, err := WalkSequential(WalkerConfig{Root: root})
	require.NoError(t, err)
	for _, f := range res.Files {
		assert.False(t, f.Loaded, "%s: discovery must not load content", f.RelativePath)
		assert.Empty(t, f.Content)
		assert.Positive(t, f.Size)
		assert.False(t, f.ModifiedTime.IsZero())
	}
}

func TestWalkParallel_Cancellation(t *testing.T) {
	root := sampleTree(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := WalkParallel(ctx, WalkerConfig{Root: root, Concurrency: 2})
	require.Error(t, err)
}
