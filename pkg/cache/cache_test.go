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

package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := New(Options{Dir: t.TempDir()})
	require.NoError(t, err)
	return c
}

func TestSetGetRoundTrip(t *testing.T) {
	c := newTestCache(t)
	require.NoError(t, c.Set("greeting", "hello", 0))

	var got string
	ok, err := c.Get("greeting", &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hello", got)
}

func TestGet_MissReturnsFalse(t *testing.T) {
	c := newTestCache(t)
	var got string
	ok, err := c.Get("absent", &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGet_DiskFallbackRepopulatesMemory(t *testing.T) {
	dir := t.TempDir()
	first, err := New(Options{Dir: dir})
	require.NoError(t, err)
	require.NoError(t, first.Set("shared", 42, 0))

	// A fresh Cache over the same directory has a cold in-process tier.
	second, err := New(Options{Dir: dir})
	require.NoError(t, err)
	var got int
	ok, err := second.Get("shared", &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 42, got)
}

func TestTTLExpiryRemovesDiskEntry(t *testing.T) {
	c := newTestCache(t)
	require.NoError(t, c.Set("ephemeral", "v", 50*time.Millisecond))

	var got string
	ok, _ := c.Get("ephemeral", &got)
	require.True(t, ok)

	time.Sleep(80 * time.Millisecond)

	ok, err := c.Get("ephemeral", &got)
	require.NoError(t, err)
	assert.False(t, ok)
	_, statErr := os.Stat(c.sanitizedPath("ephemeral"))
	assert.True(t, os.IsNotExist(statErr), "expired disk entry must be removed on access")
}

func TestHasForget(t *testing.T) {
	c := newTestCache(t)
	require.NoError(t, c.Set("k", "v", 0))
	assert.True(t, c.Has("k"))

	c.Forget("k")
	assert.False(t, c.Has("k"))
}

func TestClear_Pattern(t *testing.T) {
	c := newTestCache(t)
	require.NoError(t, c.Set("ai_one", 1, 0))
	require.NoError(t, c.Set("ai_two", 2, 0))
	require.NoError(t, c.Set("other", 3, 0))

	require.NoError(t, c.Clear("ai_*"))
	assert.False(t, c.Has("ai_one"))
	assert.False(t, c.Has("ai_two"))
	assert.True(t, c.Has("other"))

	require.NoError(t, c.Clear(""))
	assert.False(t, c.Has("other"))
}

func TestSanitizedFilename(t *testing.T) {
	c := newTestCache(t)
	require.NoError(t, c.Set("weird/key:with spaces", "v", 0))

	entries, err := os.ReadDir(c.dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Regexp(t, `^[A-Za-z0-9_-]+\.json$`, entries[0].Name())
}

func TestKeyDerivation(t *testing.T) {
	plain := Key("transform:", "markdown", nil)
	assert.Equal(t, "transform:markdown", plain)

	a := Key("transform:", "markdown", map[string]any{"rows": 10, "header": true})
	b := Key("transform:", "markdown", map[string]any{"header": true, "rows": 10})
	assert.Equal(t, a, b, "param order must not change the key")
	assert.NotEqual(t, plain, a)
	assert.Regexp(t, `^transform:markdown_[0-9a-f]{8}$`, a)

	c := Key("transform:", "markdown", map[string]any{"rows": 20, "header": true})
	assert.NotEqual(t, a, c)
}

func TestRunGC_SweepsExpiredAndCorrupt(t *testing.T) {
	c := newTestCache(t)
	require.NoError(t, c.Set("dead", "v", 10*time.Millisecond))
	require.NoError(t, c.Set("alive", "v", time.Hour))
	require.NoError(t, os.WriteFile(filepath.Join(c.dir, "corrupt.json"), []byte("{nope"), 0o644))

	time.Sleep(30 * time.Millisecond)
	c.RunGC()

	entries, err := os.ReadDir(c.dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Equal(t, []string{"alive.json"}, names)
}

func TestSet_EvictsOldestWhenBounded(t *testing.T) {
	c, err := New(Options{Dir: t.TempDir(), MaxMemoryKeys: 2})
	require.NoError(t, err)

	require.NoError(t, c.Set("a", 1, 0))
	require.NoError(t, c.Set("b", 2, 0))
	require.NoError(t, c.Set("c", 3, 0))

	c.mu.Lock()
	inMemory := len(c.memory)
	c.mu.Unlock()
	assert.LessOrEqual(t, inMemory, 2)

	// Evicted entries are still readable from disk.
	var got int
	ok, err := c.Get("a", &got)
	require.NoError(t, err)
	assert.True(t, ok)
}
