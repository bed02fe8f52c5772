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
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/copytree/copytree/pkg/pipeline"
)

// defaultConcurrency is used when cfg.Concurrency is unset; the bound is
// clamped to [1, 50].
const defaultConcurrency = 5

func clampConcurrency(n int) int {
	if n <= 0 {
		return defaultConcurrency
	}
	if n > 50 {
		return 50
	}
	return n
}

// WalkParallel traverses cfg.Root with a bounded worker pool reading
// directories from a shared queue. Output order is not
// guaranteed; callers needing determinism apply a Sort stage downstream.
// The *set* of emitted paths is guaranteed equal to WalkSequential's.
func WalkParallel(ctx context.Context, cfg WalkerConfig) (*Result, error) {
	ignorer := cfg.Ignorer
	if ignorer == nil {
		ignorer = acceptAll
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(clampConcurrency(cfg.Concurrency))

	var (
		mu          sync.Mutex
		files       []*pipeline.FileRecord
		skipReasons = make(map[string]int)
		totalFound  int64
		totalSize   int64
	)
	sym := newSymlinkResolver()

	recordSkip := func(reason string) {
		mu.Lock()
		skipReasons[reason]++
		mu.Unlock()
	}

	var submit func(absDir, relDir string, depth int)

	submit = func(absDir, relDir string, depth int) {
		if cfg.MaxDepth > 0 && depth > cfg.MaxDepth {
			return
		}
		entries, err := os.ReadDir(absDir)
		if err != nil {
			recordSkip("unreadable_dir")
			return
		}

		for _, entry := range entries {
			select {
			case <-gctx.Done():
				return
			default:
			}

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
					recordSkip("broken_symlink")
					continue
				}
				isDir = info.IsDir()
				if isDir {
					if _, cyclic := sym.Visit(absPath); cyclic {
						recordSkip("symlink_cycle")
						continue
					}
				}
			}

			if ignorer.ShouldIgnore(relPath, isDir) {
				recordSkip("ignored")
				continue
			}

			if isDir {
				childDir, childDepth := absPath, depth+1
				childRel := relPath
				g.Go(func() error {
					submit(childDir, childRel, childDepth)
					return nil
				})
				continue
			}

			if cfg.MaxFileCount > 0 && int(atomic.LoadInt64(&totalFound)) >= cfg.MaxFileCount {
				recordSkip("count_cap")
				continue
			}

			info, err := entry.Info()
			if err != nil {
				mu.Lock()
				files = append(files, &pipeline.FileRecord{RelativePath: relPath, AbsolutePath: absPath, Err: err})
				mu.Unlock()
				recordSkip("stat_error")
				continue
			}

			if cfg.MaxFileSize > 0 && info.Size() > cfg.MaxFileSize {
				recordSkip("too_large")
				continue
			}

			mu.Lock()
			if cfg.MaxTotalSize > 0 && totalSize+info.Size() > cfg.MaxTotalSize {
				mu.Unlock()
				recordSkip("total_size_cap")
				continue
			}
			totalSize += info.Size()
			files = append(files, &pipeline.FileRecord{
				RelativePath: relPath,
				AbsolutePath: absPath,
				Size:         info.Size(),
				ModifiedTime: info.ModTime(),
			})
			mu.Unlock()
			atomic.AddInt64(&totalFound, 1)
		}
	}

	g.Go(func() error {
		submit(cfg.Root, "", 0)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		// Workers abandon their directories on cancel without erroring;
		// surface the cancellation instead of a silently truncated set.
		return nil, err
	}

	res := &Result{Files: files, TotalFound: int(totalFound), SkipReasons: skipReasons}
	for _, n := range skipReasons {
		res.TotalSkipped += n
	}
	return res, nil
}
