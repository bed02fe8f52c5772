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

// Package gitutil shells out to the git binary to answer the two questions
// the git filter stage needs: which files changed in the working
// tree, and which files differ between two commits. It never clones or
// mutates a repository; reads only.
package gitutil

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"github.com/copytree/copytree/pkg/pipeline"
)

// dangerousCharsPattern rejects shell metacharacters in a ref before it ever
// reaches exec.Command, the same defense-in-depth the repository loader
// applies to clone URLs.
var dangerousCharsPattern = regexp.MustCompile(`[;&|$` + "`" + `\n\r\\]`)

// GitError distinguishes a git-subprocess failure (bad ref, not a repo, git
// missing) from an ordinary I/O error, so callers can decide whether to
// treat it as fatal or degrade to "no git status available".
type GitError struct {
	Op  string
	Err error
}

func (e *GitError) Error() string { return fmt.Sprintf("gitutil: %s: %v", e.Op, e.Err) }
func (e *GitError) Unwrap() error { return e.Err }

func validateRef(ref string) error {
	if ref == "" {
		return fmt.Errorf("empty ref")
	}
	if dangerousCharsPattern.MatchString(ref) {
		return fmt.Errorf("ref contains disallowed characters: %q", ref)
	}
	return nil
}

func runGit(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%v: %s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// ModifiedFiles returns the repo-relative paths of files with uncommitted
// changes (staged, unstaged, and untracked) in the working tree rooted at
// dir, for the "modified" option: "limit the result to files that are
// dirty in the working tree".
func ModifiedFiles(ctx context.Context, dir string) ([]string, error) {
	out, err := runGit(ctx, dir, "status", "--porcelain", "--untracked-files=all")
	if err != nil {
		return nil, &GitError{Op: "status", Err: err}
	}
	var paths []string
	for _, line := range strings.Split(out, "\n") {
		if len(line) < 4 {
			continue
		}
		path := strings.TrimSpace(line[3:])
		// A rename is reported as "old -> new"; keep the new path.
		if idx := strings.Index(path, " -> "); idx >= 0 {
			path = path[idx+4:]
		}
		path = strings.Trim(path, `"`)
		paths = append(paths, path)
	}
	return paths, nil
}

// ParseChanges splits the "<from>[:<to>]" syntax accepted by the
// "changes" option, defaulting to to="HEAD" when no colon is present.
func ParseChanges(spec string) (from, to string, err error) {
	if spec == "" {
		return "", "", fmt.Errorf("empty changes spec")
	}
	parts := strings.SplitN(spec, ":", 2)
	from = parts[0]
	to = "HEAD"
	if len(parts) == 2 && parts[1] != "" {
		to = parts[1]
	}
	if err := validateRef(from); err != nil {
		return "", "", fmt.Errorf("invalid from ref: %w", err)
	}
	if err := validateRef(to); err != nil {
		return "", "", fmt.Errorf("invalid to ref: %w", err)
	}
	return from, to, nil
}

// ChangedFilesBetween returns the repo-relative paths that differ between
// from and to, using git diff --name-only.
func ChangedFilesBetween(ctx context.Context, dir, from, to string) ([]string, error) {
	if err := validateRef(from); err != nil {
		return nil, &GitError{Op: "diff", Err: err}
	}
	if err := validateRef(to); err != nil {
		return nil, &GitError{Op: "diff", Err: err}
	}
	out, err := runGit(ctx, dir, "diff", "--name-only", from, to)
	if err != nil {
		return nil, &GitError{Op: "diff", Err: err}
	}
	var paths []string
	for _, line := range strings.Split(strings.TrimRight(out, "\n"), "\n") {
		if line != "" {
			paths = append(paths, line)
		}
	}
	return paths, nil
}

// Status reports the working-tree status for every tracked-dirty or
// untracked path, used to annotate FileRecord.GitStatus.
func Status(ctx context.Context, dir string) (map[string]pipeline.GitStatus, error) {
	out, err := runGit(ctx, dir, "status", "--porcelain", "--untracked-files=all")
	if err != nil {
		return nil, &GitError{Op: "status", Err: err}
	}
	result := make(map[string]pipeline.GitStatus)
	for _, line := range strings.Split(out, "\n") {
		if len(line) < 4 {
			continue
		}
		index, worktree := line[0], line[1]
		path := strings.TrimSpace(line[3:])
		if idx := strings.Index(path, " -> "); idx >= 0 {
			path = path[idx+4:]
		}
		path = strings.Trim(path, `"`)

		switch {
		case index == '?' && worktree == '?':
			result[path] = pipeline.GitUntracked
		case index != ' ' && index != '?':
			result[path] = pipeline.GitStaged
		default:
			result[path] = pipeline.GitModified
		}
	}
	return result, nil
}

// IsRepo reports whether dir is inside a git working tree.
func IsRepo(ctx context.Context, dir string) bool {
	_, err := runGit(ctx, dir, "rev-parse", "--is-inside-work-tree")
	return err == nil
}

// ToSet is a convenience for turning a path slice into a membership set,
// used by the git filter stage to intersect discovered files against the
// modified/changed set in O(1) per lookup.
func ToSet(paths []string) map[string]struct{} {
	set := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		set[p] = struct{}{}
	}
	return set
}
