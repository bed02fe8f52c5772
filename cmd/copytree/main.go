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

// Package main implements the copytree CLI: ingest a source tree, select a
// relevant subset of files, transform contents, and emit one serialized
// artifact suitable for pasting into an LLM context.
//
// Usage:
//
//	copytree [path] [flags]         Copy a tree into an artifact
//	copytree ask [flags] <question> Ask about a tree, with durable state
//	copytree profiles [path]        List profile files discovered in a tree
//	copytree cache-gc               Sweep expired cache entries
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	copytreeerrors "github.com/copytree/copytree/internal/errors"
	"github.com/copytree/copytree/internal/ui"
	"github.com/copytree/copytree/pkg/pipeline"
	"github.com/copytree/copytree/pkg/profile"
)

// Version information (set via ldflags during build)
var (
	version = "dev"
	commit  = "unknown"
)

// GlobalFlags are the flags shared by every subcommand.
type GlobalFlags struct {
	JSON    bool
	Quiet   bool
	NoColor bool
}

func usage() {
	fmt.Fprintf(os.Stderr, `copytree - copy a source tree into a single LLM-ready artifact

Usage:
  copytree [path] [flags]
  copytree ask [flags] <question>
  copytree profiles [path]
  copytree cache-gc

Selection:
  -i, --include PATTERN     Include glob (repeatable)
  -e, --exclude PATTERN     Exclude glob (repeatable)
      --always PATTERN      Force-include glob, overriding excludes (repeatable)
      --modified            Only files modified in the git working tree
      --changes FROM[:TO]   Only files changed between two commits (TO defaults to HEAD)
      --no-gitignore        Ignore .gitignore/.copytreeignore files
      --hidden              Include dotfiles
      --follow-symlinks     Follow symbolic links (cycles detected)
      --max-depth N         Directory depth cap
      --max-file-size N     Per-file byte cap
      --max-total-size N    Total byte cap
      --max-files N         File count cap
      --external SRC:DEST   Merge an external repo or directory under DEST (repeatable)

Transformation:
      --no-transform        Skip content transformation (paths and stats only)
  -t, --transformer NAME    Request a named transformer (repeatable)
      --secrets-policy P    redact (default), reject, or report-only
      --secrets-report      Write a secret-scan side report

Output:
  -f, --format FORMAT       xml (default), json, markdown, tree, ndjson, sarif
  -o, --output FILE         Write to FILE instead of stdout
      --only-tree           Emit the tree block only, no file contents
      --line-numbers        Number content lines
      --show-size           Annotate files with sizes
      --sort KEY            path (default), size, modified, name, extension, depth
      --no-dedupe           Keep files with identical content
      --char-limit N        Truncate the artifact after N characters
      --instructions TEXT   Inline instructions text, or a path to a file of it
      --profile NAME        Load .copytree-<NAME>.<ext> instead of the default profile
      --dry-run             Print the selected file list and exit

General:
      --git-status          Annotate files with git working-tree status
      --concurrency N       Worker pool size for walking and transforming (1-50)
      --parallel            Use the parallel directory walker
      --json                Machine-readable result envelope on stdout
  -q, --quiet               No progress output
      --no-color            Disable colored output
      --version             Show version and exit

Environment:
  OPENAI_API_KEY, ANTHROPIC_API_KEY, OLLAMA_HOST   AI provider credentials
  COPYTREE_SCANNER                                 Secret scanner binary path
  COPYTREE_CACHE_DIR                               Cache directory override

`)
}

func main() {
	args := os.Args[1:]

	command := "copy"
	if len(args) > 0 {
		switch args[0] {
		case "ask", "profiles", "cache-gc":
			command = args[0]
			args = args[1:]
		case "help", "-h", "--help":
			usage()
			return
		}
	}

	switch command {
	case "copy":
		runCopy(args)
	case "ask":
		runAsk(args)
	case "profiles":
		runProfiles(args)
	case "cache-gc":
		runCacheGC(args)
	}
}

// parseCopyFlags turns CLI args into pipeline Options plus CLI-only knobs.
// Profile values are applied first so explicit flags override them.
func parseCopyFlags(fs *pflag.FlagSet, args []string) (pipeline.Options, GlobalFlags, string, bool, error) {
	opts := pipeline.DefaultOptions()
	var globals GlobalFlags

	include := fs.StringArrayP("include", "i", nil, "")
	exclude := fs.StringArrayP("exclude", "e", nil, "")
	always := fs.StringArray("always", nil, "")
	modified := fs.Bool("modified", false, "")
	changes := fs.String("changes", "", "")
	noGitignore := fs.Bool("no-gitignore", false, "")
	hidden := fs.Bool("hidden", false, "")
	followSymlinks := fs.Bool("follow-symlinks", false, "")
	maxDepth := fs.Int("max-depth", 0, "")
	maxFileSize := fs.Int64("max-file-size", 0, "")
	maxTotalSize := fs.Int64("max-total-size", 0, "")
	maxFiles := fs.Int("max-files", 0, "")
	external := fs.StringArray("external", nil, "")

	noTransform := fs.Bool("no-transform", false, "")
	transformers := fs.StringArrayP("transformer", "t", nil, "")
	secretsPolicy := fs.String("secrets-policy", string(pipeline.SecretsRedact), "")
	secretsReport := fs.Bool("secrets-report", false, "")

	format := fs.StringP("format", "f", string(pipeline.FormatXML), "")
	output := fs.StringP("output", "o", "", "")
	onlyTree := fs.Bool("only-tree", false, "")
	lineNumbers := fs.Bool("line-numbers", false, "")
	showSize := fs.Bool("show-size", false, "")
	sortKey := fs.String("sort", string(pipeline.SortPath), "")
	noDedupe := fs.Bool("no-dedupe", false, "")
	charLimit := fs.Int("char-limit", 0, "")
	instructions := fs.String("instructions", "", "")
	profileName := fs.String("profile", "", "")
	dryRun := fs.Bool("dry-run", false, "")

	gitStatus := fs.Bool("git-status", false, "")
	concurrency := fs.Int("concurrency", 0, "")
	parallel := fs.Bool("parallel", false, "")
	fs.BoolVar(&globals.JSON, "json", false, "")
	fs.BoolVarP(&globals.Quiet, "quiet", "q", false, "")
	fs.BoolVar(&globals.NoColor, "no-color", false, "")
	showVersion := fs.Bool("version", false, "")

	fs.Usage = usage
	if err := fs.Parse(args); err != nil {
		return opts, globals, "", false, copytreeerrors.NewValidationError(
			"Invalid command line", err.Error(), "Run: copytree --help")
	}
	if *showVersion {
		fmt.Printf("copytree version %s (%s)\n", version, commit)
		os.Exit(0)
	}

	baseDir := "."
	if fs.NArg() > 0 {
		baseDir = fs.Arg(0)
	}
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return opts, globals, "", false, copytreeerrors.NewValidationError(
			"Invalid path", err.Error(), "Pass an existing directory path")
	}
	baseDir = abs

	if *modified && *changes != "" {
		return opts, globals, "", false, copytreeerrors.NewConfigurationError(
			"Conflicting options: --modified and --changes",
			"Both narrow the file set by git state and cannot be combined",
			"Pass only one of --modified or --changes", nil)
	}

	// Profile first, flags after, so flags win.
	var prof *profile.Profile
	if *profileName != "" {
		path := profile.DiscoverNamed(baseDir, *profileName)
		if path == "" {
			return opts, globals, "", false, copytreeerrors.NewConfigurationError(
				fmt.Sprintf("Profile %q not found", *profileName),
				fmt.Sprintf("No .copytree-%s.{yml,yaml,json} file in %s", *profileName, baseDir),
				"Run: copytree profiles", nil)
		}
		prof, err = profile.Load(path)
	} else if path := profile.Discover(baseDir); path != "" {
		prof, err = profile.Load(path)
	}
	if err != nil {
		return opts, globals, "", false, err
	}
	if prof != nil {
		opts = prof.Apply(opts)
		for _, w := range prof.Warnings {
			ui.Warning(w)
		}
	}

	opts.Include = append(opts.Include, *include...)
	opts.Exclude = append(opts.Exclude, *exclude...)
	opts.Always = append(opts.Always, *always...)
	opts.Modified = *modified
	opts.Changes = *changes
	opts.RespectGitignore = !*noGitignore
	opts.IncludeHidden = opts.IncludeHidden || *hidden
	opts.FollowSymlinks = opts.FollowSymlinks || *followSymlinks
	if *maxDepth > 0 {
		opts.MaxDepth = *maxDepth
	}
	if *maxFileSize > 0 {
		opts.MaxFileSize = *maxFileSize
	}
	if *maxTotalSize > 0 {
		opts.MaxTotalSize = *maxTotalSize
	}
	if *maxFiles > 0 {
		opts.MaxFileCount = *maxFiles
	}
	for _, e := range *external {
		src, dest, found := cutLast(e, ":")
		if !found || src == "" || dest == "" {
			return opts, globals, "", false, copytreeerrors.NewValidationError(
				fmt.Sprintf("Invalid --external value %q", e),
				"Expected SOURCE:DESTINATION",
				"Example: --external https://github.com/org/repo.git:vendor/repo")
		}
		opts.ExternalSources = append(opts.ExternalSources, pipeline.ExternalSource{
			Source: src, Destination: dest,
		})
	}

	opts.Transform = !*noTransform
	opts.Transformers = append(opts.Transformers, *transformers...)
	switch pipeline.SecretsPolicy(*secretsPolicy) {
	case pipeline.SecretsRedact, pipeline.SecretsReject, pipeline.SecretsReportOnly:
		opts.SecretsPolicy = pipeline.SecretsPolicy(*secretsPolicy)
	default:
		return opts, globals, "", false, copytreeerrors.NewValidationError(
			fmt.Sprintf("Unknown secrets policy %q", *secretsPolicy),
			"", "Use one of: redact, reject, report-only")
	}
	opts.SecretsReport = *secretsReport

	if fs.Changed("format") {
		switch pipeline.OutputFormat(*format) {
		case pipeline.FormatXML, pipeline.FormatJSON, pipeline.FormatMarkdown,
			pipeline.FormatTree, pipeline.FormatNDJSON, pipeline.FormatSARIF:
			opts.Format = pipeline.OutputFormat(*format)
		default:
			return opts, globals, "", false, copytreeerrors.NewValidationError(
				fmt.Sprintf("Unknown format %q", *format),
				"", "Use one of: xml, json, markdown, tree, ndjson, sarif")
		}
	}
	opts.Output = *output
	opts.OnlyTree = opts.OnlyTree || *onlyTree
	opts.AddLineNumbers = opts.AddLineNumbers || *lineNumbers
	opts.ShowSize = opts.ShowSize || *showSize
	switch pipeline.SortOrder(*sortKey) {
	case pipeline.SortPath, pipeline.SortSize, pipeline.SortModified,
		pipeline.SortName, pipeline.SortExtension, pipeline.SortDepth:
		opts.Sort = pipeline.SortOrder(*sortKey)
	default:
		return opts, globals, "", false, copytreeerrors.NewValidationError(
			fmt.Sprintf("Unknown sort key %q", *sortKey),
			"", "Use one of: path, size, modified, name, extension, depth")
	}
	opts.Dedupe = !*noDedupe
	opts.CharLimit = *charLimit
	if *instructions != "" {
		opts.Instructions = *instructions
	}
	opts.DryRun = *dryRun
	opts.WithGitStatus = *gitStatus
	if *concurrency != 0 {
		if *concurrency < 1 || *concurrency > 50 {
			return opts, globals, "", false, copytreeerrors.NewValidationError(
				fmt.Sprintf("Invalid concurrency %d", *concurrency),
				"", "Pass a value between 1 and 50")
		}
		opts.Concurrency = *concurrency
	}

	ui.InitColors(globals.NoColor)
	return opts, globals, baseDir, *parallel, nil
}

// cutLast splits on the last occurrence of sep, so remote URLs with their
// own colons (https://...) survive as the source half.
func cutLast(s, sep string) (string, string, bool) {
	for i := len(s) - len(sep); i >= 0; i-- {
		if s[i:i+len(sep)] == sep {
			return s[:i], s[i+len(sep):], true
		}
	}
	return s, "", false
}

func runProfiles(args []string) {
	dir := "."
	if len(args) > 0 && args[0] != "" {
		dir = args[0]
	}
	paths := profile.List(dir)
	if len(paths) == 0 {
		ui.Info("No profile files found")
		return
	}
	for _, p := range paths {
		prof, err := profile.Load(p)
		if err != nil {
			ui.Warningf("%s: %v", filepath.Base(p), err)
			continue
		}
		name := prof.Name
		if name == "" {
			name = "(unnamed)"
		}
		fmt.Printf("%s\t%s\n", filepath.Base(p), name)
	}
}
