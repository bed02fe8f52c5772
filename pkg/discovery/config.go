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

// Package discovery implements the file-discovery walker: a lazy
// producer of path+stat FileRecords, with sequential and bounded-parallel
// implementations sharing one output contract.
package discovery

import "github.com/copytree/copytree/pkg/pipeline"

// defaultVCSDirs are excluded from traversal regardless of ignore files.
var defaultVCSDirs = map[string]bool{
	".git": true, ".hg": true, ".svn": true,
}

// Ignorer is consulted once per directory entry during the walk. Rule sets
// built from layered ignore files (pkg/rules) implement it.
type Ignorer interface {
	// ShouldIgnore reports whether the entry at relPath (POSIX, relative to
	// the walk root) should be excluded. isDir distinguishes directory
	// pruning (filepath.SkipDir) from file exclusion.
	ShouldIgnore(relPath string, isDir bool) bool
}

// IgnorerFunc adapts a function to Ignorer, used by tests and by external
// callers (e.g. pkg/source) that build an ad-hoc ignorer from a RulesetFilter.
type IgnorerFunc func(relPath string, isDir bool) bool

func (f IgnorerFunc) ShouldIgnore(relPath string, isDir bool) bool { return f(relPath, isDir) }

var acceptAll Ignorer = IgnorerFunc(func(string, bool) bool { return false })

// WalkerConfig parameterizes one discovery run.
type WalkerConfig struct {
	Root string

	Ignorer Ignorer

	IncludeHidden  bool
	FollowSymlinks bool
	MaxDepth       int // 0 = unlimited

	MaxFileSize  int64 // 0 = unlimited
	MaxTotalSize int64 // 0 = unlimited
	MaxFileCount int   // 0 = unlimited

	// Concurrency selects the parallel walker's worker-pool size. 0 or 1
	// uses the sequential walker instead.
	Concurrency int
}

// Result is the output of one discovery run.
type Result struct {
	Files        []*pipeline.FileRecord
	TotalFound   int
	TotalSkipped int
	SkipReasons  map[string]int
}
