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

package convo

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock lets tests advance time without sleeping.
type fakeClock struct {
	t time.Time
}

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestStore(t *testing.T, opts ...Option) (*Store, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	opts = append(opts, withClock(clock.now))
	s, err := NewStore(t.TempDir(), opts...)
	require.NoError(t, err)
	return s, clock
}

func TestCreateAndGet(t *testing.T) {
	s, _ := newTestStore(t)

	c, err := s.Create("session-1")
	require.NoError(t, err)
	assert.Equal(t, "session-1", c.Key)

	got, err := s.Get("session-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, c.CreatedAt, got.CreatedAt)
}

func TestCreate_DuplicateRejected(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.Create("dup")
	require.NoError(t, err)
	_, err = s.Create("dup")
	require.Error(t, err)
}

func TestCreate_InvalidKeyRejected(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.Create("../escape")
	require.Error(t, err)
	_, err = s.Create("has space")
	require.Error(t, err)
}

func TestAddMessage_TrimsOldestPastCap(t *testing.T) {
	s, _ := newTestStore(t, WithMaxMessages(3))
	_, err := s.Create("chat")
	require.NoError(t, err)

	for _, msg := range []string{"one", "two", "three", "four"} {
		_, err = s.AddMessage("chat", "user", msg)
		require.NoError(t, err)
	}

	c, err := s.Get("chat")
	require.NoError(t, err)
	require.Len(t, c.Messages, 3)
	assert.Equal(t, "two", c.Messages[0].Content)
	assert.Equal(t, "four", c.Messages[2].Content)
}

func TestGet_ExpiredIsDeleted(t *testing.T) {
	s, clock := newTestStore(t, WithTTL(time.Hour))
	_, err := s.Create("stale")
	require.NoError(t, err)

	clock.advance(2 * time.Hour)

	got, err := s.Get("stale")
	require.NoError(t, err)
	assert.Nil(t, got)
	_, statErr := os.Stat(filepath.Join(s.dir, "stale.json"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestAddMessage_RefreshesExpiry(t *testing.T) {
	s, clock := newTestStore(t, WithTTL(time.Hour))
	_, err := s.Create("active")
	require.NoError(t, err)

	clock.advance(50 * time.Minute)
	_, err = s.AddMessage("active", "user", "still here")
	require.NoError(t, err)

	clock.advance(50 * time.Minute)
	got, err := s.Get("active")
	require.NoError(t, err)
	require.NotNil(t, got, "expiry should be measured from last update, not creation")
}

func TestUpdateContext(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.Create("ctx")
	require.NoError(t, err)

	_, err = s.UpdateContext("ctx", map[string]string{"profile": "docs", "format": "xml"})
	require.NoError(t, err)
	c, err := s.UpdateContext("ctx", map[string]string{"format": ""})
	require.NoError(t, err)

	assert.Equal(t, "docs", c.Context["profile"])
	_, ok := c.Context["format"]
	assert.False(t, ok)
}

func TestListAndDelete(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.Create("beta")
	require.NoError(t, err)
	_, err = s.Create("alpha")
	require.NoError(t, err)

	keys, err := s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, keys)

	require.NoError(t, s.Delete("alpha"))
	require.NoError(t, s.Delete("alpha")) // idempotent

	keys, err = s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"beta"}, keys)
}

func TestCleanupExpired(t *testing.T) {
	s, clock := newTestStore(t, WithTTL(time.Hour))
	_, err := s.Create("old")
	require.NoError(t, err)

	clock.advance(2 * time.Hour)
	_, err = s.Create("fresh")
	require.NoError(t, err)

	// A corrupt file is reaped too.
	require.NoError(t, os.WriteFile(filepath.Join(s.dir, "garbage.json"), []byte("{nope"), 0o644))

	removed, err := s.CleanupExpired()
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	keys, err := s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh"}, keys)
}
