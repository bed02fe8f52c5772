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
	"path/filepath"
	"sync"
)

// symlinkResolver tracks resolved directory targets to detect cycles when
// FollowSymlinks is enabled, keyed by the resolved absolute path rather
// than device/inode (which isn't portable across platforms in pure Go).
type symlinkResolver struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newSymlinkResolver() *symlinkResolver {
	return &symlinkResolver{seen: make(map[string]bool)}
}

// Visit resolves path and reports whether it has been seen before (a
// cycle). Safe for concurrent use by the parallel walker.
func (r *symlinkResolver) Visit(path string) (resolved string, isCycle bool) {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		resolved = path
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.seen[resolved] {
		return resolved, true
	}
	r.seen[resolved] = true
	return resolved, false
}
