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

// Package source resolves the external-source list: each entry names
// a remote repository or a local directory plus a destination prefix.
// Remote entries are cloned or refreshed under a per-URL cache directory;
// local entries are used as-is. Every entry's files are discovered,
// optionally filtered, and remapped under destination/ before merging into
// the main payload.
package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/copytree/copytree/pkg/discovery"
	"github.com/copytree/copytree/pkg/pipeline"
	"github.com/copytree/copytree/pkg/rules"
)

var (
	remoteURLPattern      = regexp.MustCompile(`^(https?://|git@|ssh://)[\w.\-@:/%]+$`)
	dangerousCharsPattern = regexp.MustCompile(`[;&|$` + "`" + `\n\r\\]`)
)

// IsRemote reports whether src looks like a remote repository URL rather
// than a local path.
func IsRemote(src string) bool {
	return remoteURLPattern.MatchString(src)
}

// Resolver clones/updates remote sources under CacheDir and discovers files
// for each configured pipeline.ExternalSource.
type Resolver struct {
	// CacheDir roots the per-URL clone cache; required when any configured
	// source is remote.
	CacheDir string
}

// validateURL rejects command-injection-capable characters before the URL
// ever reaches exec.Command, mirroring the git clone guard used elsewhere.
func validateURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("empty source URL")
	}
	if dangerousCharsPattern.MatchString(raw) {
		return fmt.Errorf("source URL contains disallowed characters")
	}
	return nil
}

// cacheDirFor derives a stable directory name for a remote URL so repeated
// runs reuse the same clone instead of re-cloning every time.
func cacheDirFor(root, rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return filepath.Join(root, hex.EncodeToString(sum[:])[:16])
}

// sanitizedLogURL strips credentials and query parameters before the URL
// is used in an error message.
func sanitizedLogURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	parsed.RawQuery = ""
	if parsed.User != nil {
		parsed.User = url.User("***")
	}
	return parsed.String()
}

// ensureLocalCopy clones rawURL into the resolver's cache on first use, or
// fetches+resets an existing clone to match origin on subsequent runs.
func (r *Resolver) ensureLocalCopy(ctx context.Context, rawURL string) (string, error) {
	if err := validateURL(rawURL); err != nil {
		return "", fmt.Errorf("source: %w", err)
	}
	if r.CacheDir == "" {
		return "", fmt.Errorf("source: CacheDir is required for remote sources")
	}

	dir := cacheDirFor(r.CacheDir, rawURL)
	if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
		if err := runGit(ctx, dir, "fetch", "--depth", "1", "--quiet", "origin"); err != nil {
			return "", fmt.Errorf("source: update %s: %w", sanitizedLogURL(rawURL), err)
		}
		if err := runGit(ctx, dir, "reset", "--hard", "--quiet", "origin/HEAD"); err != nil {
			return "", fmt.Errorf("source: reset %s: %w", sanitizedLogURL(rawURL), err)
		}
		return dir, nil
	}

	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return "", fmt.Errorf("source: create cache dir: %w", err)
	}
	if err := runGit(ctx, "", "clone", "--depth", "1", "--quiet", rawURL, dir); err != nil {
		return "", fmt.Errorf("source: clone %s: %w", sanitizedLogURL(rawURL), err)
	}
	return dir, nil
}

func runGit(ctx context.Context, dir string, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	return cmd.Run()
}

// validateLocalPath rejects obvious path-traversal/sensitive-directory
// targets.
func validateLocalPath(absPath string) error {
	if absPath == "" || absPath == "/" {
		return fmt.Errorf("path is empty or root directory")
	}
	for _, sensitive := range []string{"/etc", "/sys", "/proc", "/dev", "/boot"} {
		if absPath == sensitive || strings.HasPrefix(absPath, sensitive+"/") {
			return fmt.Errorf("path is in a sensitive system directory: %s", absPath)
		}
	}
	return nil
}

// resolveRoot returns the local filesystem root for an ExternalSource,
// cloning it first when Source is a remote URL.
func (r *Resolver) resolveRoot(ctx context.Context, src pipeline.ExternalSource) (string, error) {
	if IsRemote(src.Source) {
		return r.ensureLocalCopy(ctx, src.Source)
	}
	abs, err := filepath.Abs(src.Source)
	if err != nil {
		return "", fmt.Errorf("source: resolve local path: %w", err)
	}
	if err := validateLocalPath(abs); err != nil {
		return "", fmt.Errorf("source: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("source: stat %s: %w", abs, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("source: %s is not a directory", abs)
	}
	return abs, nil
}

// Resolve discovers every file under one ExternalSource's root, applies its
// own include/exclude rules if given, and remaps each RelativePath under
// destination/, ready to be appended to the main payload's Files.
func (r *Resolver) Resolve(ctx context.Context, src pipeline.ExternalSource) ([]*pipeline.FileRecord, error) {
	root, err := r.resolveRoot(ctx, src)
	if err != nil {
		return nil, err
	}

	var ignorer discovery.Ignorer
	if len(src.Include) > 0 || len(src.Exclude) > 0 {
		filter := rules.New()
		if len(src.Include) > 0 {
			set, err := rules.ParseLines(strings.Join(src.Include, "\n"), "external-source-include", root)
			if err != nil {
				return nil, fmt.Errorf("source: compile include patterns: %w", err)
			}
			filter.AddIncludeSet(rules.IncludeSet(set))
		}
		for i, pattern := range src.Exclude {
			rule, err := rules.Compile(pattern, "external-source-exclude", i+1, root)
			if err != nil {
				return nil, fmt.Errorf("source: compile exclude %q: %w", pattern, err)
			}
			filter.AddExclude(rule)
		}
		ignorer = discovery.IgnorerFunc(func(relPath string, isDir bool) bool {
			return !filter.Accept(relPath, isDir)
		})
	}

	result, err := discovery.WalkSequential(discovery.WalkerConfig{
		Root:    root,
		Ignorer: ignorer,
	})
	if err != nil {
		return nil, fmt.Errorf("source: walk %s: %w", root, err)
	}

	dest := strings.Trim(filepath.ToSlash(src.Destination), "/")
	out := make([]*pipeline.FileRecord, 0, len(result.Files))
	for _, f := range result.Files {
		cp := f.Clone()
		if dest != "" {
			cp.RelativePath = path.Join(dest, cp.RelativePath)
		}
		out = append(out, cp)
	}
	return out, nil
}

// ResolveAll resolves every configured external source, in order, and
// concatenates the results for the caller to merge into the main payload.
func (r *Resolver) ResolveAll(ctx context.Context, sources []pipeline.ExternalSource) ([]*pipeline.FileRecord, error) {
	var all []*pipeline.FileRecord
	for _, src := range sources {
		files, err := r.Resolve(ctx, src)
		if err != nil {
			return nil, err
		}
		all = append(all, files...)
	}
	return all, nil
}
