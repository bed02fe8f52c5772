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
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Layered implements the discovery walker's layered-ignore-file contract
//: a named ignore file (.copytreeignore, .gitignore, ...) found in a
// directory contributes a rule block scoped to that directory and its
// descendants. Directories are evaluated deepest-first; the first directory
// whose block has a matching rule decides the verdict.
type Layered struct {
	root      string
	filenames []string
	blocks    map[string][]*Rule // relative dir ("" for root) -> rules
}

// BuildLayered scans root for every ignoreFilenames[i] at every directory
// level and compiles its rules. followSymlinks controls whether symlinked
// directories are descended while scanning for ignore files.
func BuildLayered(root string, ignoreFilenames []string, followSymlinks bool) (*Layered, error) {
	l := &Layered{root: root, filenames: ignoreFilenames, blocks: make(map[string][]*Rule)}

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable directories are skipped by the walker proper
		}
		if !d.IsDir() {
			return nil
		}
		if !followSymlinks {
			if info, statErr := os.Lstat(path); statErr == nil && info.Mode()&os.ModeSymlink != 0 && path != root {
				return filepath.SkipDir
			}
		}
		relDir, _ := filepath.Rel(root, path)
		relDir = filepath.ToSlash(relDir)
		if relDir == "." {
			relDir = ""
		}
		if base := filepath.Base(path); base == ".git" || base == ".hg" || base == ".svn" {
			if path != root {
				return filepath.SkipDir
			}
		}

		var block []*Rule
		for _, name := range l.filenames {
			body, readErr := os.ReadFile(filepath.Join(path, name))
			if readErr != nil {
				continue
			}
			rs, _ := ParseLines(string(body), filepath.Join(relDir, name), relDir)
			block = append(block, rs...)
		}
		if len(block) > 0 {
			l.blocks[relDir] = block
		}
		return nil
	})
	return l, err
}

// ancestorDirs returns relPath's containing directory and every ancestor up
// to and including the root ("") ordered deepest-first.
func ancestorDirs(relPath string) []string {
	dir := filepath.ToSlash(filepath.Dir(relPath))
	if dir == "." {
		dir = ""
	}
	var dirs []string
	for {
		dirs = append(dirs, dir)
		if dir == "" {
			break
		}
		idx := strings.LastIndex(dir, "/")
		if idx < 0 {
			dir = ""
		} else {
			dir = dir[:idx]
		}
	}
	return dirs
}

// ShouldIgnore implements discovery.Ignorer. relPath is root-relative,
// POSIX-separated.
func (l *Layered) ShouldIgnore(relPath string, isDir bool) bool {
	for _, dir := range ancestorDirs(relPath) {
		block, ok := l.blocks[dir]
		if !ok {
			continue
		}
		if matched, ignore := verdictDeepestFirst(block, relPath, isDir); matched {
			return ignore
		}
	}
	return false
}

// verdictDeepestFirst applies "first matching rule wins" within one
// directory's block: rules are tried in source-line order and the first
// one to match decides (negation re-includes).
func verdictDeepestFirst(block []*Rule, relPath string, isDir bool) (matched, ignore bool) {
	ordered := append([]*Rule(nil), block...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].SourceLine < ordered[j].SourceLine })
	for _, r := range ordered {
		if r.Match(relPath, isDir) {
			return true, !r.Negated
		}
	}
	return false, false
}
