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
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/copytree/copytree/pkg/pipeline"
)

// WalkSequential performs a depth-first, lexicographically sorted traversal
// rooted at cfg.Root, deterministic across runs and platforms.
func WalkSequential(cfg WalkerConfig) (*Result, error) {
	ignorer := cfg.Ignorer
	if ignorer == nil {
		ignorer = acceptAll
	}

	res := &Result{SkipReasons: make(map[string]int)}
	var totalSize int64
	sym := newSymlinkResolver()

	var walk func(absDir, relDir string, depth int) error
	walk = func(absDir, relDir string, depth int) error {
		if cfg.MaxDepth > 0 && depth > cfg.MaxDepth {
			return nil
		}
		entries, err := os.ReadDir(absDir)
		if err != nil {
			res.SkipReasons["unreadable_dir"]++
			return nil // unreadable directories emit a warning and are skipped
		}

		sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

		for _, entry := range entries {
			name := entry.Name()
			if !cfg.IncludeHidden && strings.HasPrefix(name, ".") {
				continue
			}
			if defaultVCSDirs[name] && entry.IsDir() {
				continue
			}

			absPath := filepath.Join(absDir, name)
			relPath := name
			if relDir != "" {
				relPath = relDir + "/" + name
			}

			isDir := entry.IsDir()
			if entry.Type()&os.ModeSymlink != 0 {
				if !cfg.FollowSymlinks {
					continue
				}
				info, statErr := os.Stat(absPath)
				if statErr != nil {
					res.SkipReasons["broken_symlink"]++
					continue
				}
				isDir = info.IsDir()
				if isDir {
					if _, cyclic := sym.Visit(absPath); cyclic {
						res.SkipReasons["symlink_cycle"]++
						continue
					}
				}
			}

			if ignorer.ShouldIgnore(relPath, isDir) {
				res.SkipReasons["ignored"]++
				continue
			}

			if isDir {
				if err := walk(absPath, relPath, depth+1); err != nil {
					return err
				}
				continue
			}

			if cfg.MaxFileCount > 0 && res.TotalFound >= cfg.MaxFileCount {
				res.SkipReasons["count_cap"]++
				continue
			}

			info, err := entry.Info()
			if err != nil {
				res.Files = append(res.Files, &pipeline.FileRecord{
					RelativePath: relPath,
					AbsolutePath: absPath,
					Err:          err,
				})
				res.SkipReasons["stat_error"]++
				continue
			}

			if cfg.MaxFileSize > 0 && info.Size() > cfg.MaxFileSize {
				res.SkipReasons["too_large"]++
				continue
			}
			if cfg.MaxTotalSize > 0 && totalSize+info.Size() > cfg.MaxTotalSize {
				res.SkipReasons["total_size_cap"]++
				continue
			}

			totalSize += info.Size()
			res.TotalFound++
			res.Files = append(res.Files, &pipeline.FileRecord{
				RelativePath: relPath,
				AbsolutePath: absPath,
				Size:         info.Size(),
				ModifiedTime: info.ModTime(),
			})
		}
		return nil
	}

	if err := walk(cfg.Root, "", 0); err != nil {
		return res, err
	}
	for _, n := range res.SkipReasons {
		res.TotalSkipped += n
	}
	return res, nil
}
