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

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	copytreeerrors "github.com/copytree/copytree/internal/errors"
	"github.com/copytree/copytree/internal/ui"
	"github.com/copytree/copytree/pkg/aiprovider"
	"github.com/copytree/copytree/pkg/convo"
	"github.com/copytree/copytree/pkg/format"
	"github.com/copytree/copytree/pkg/pipeline"
)

const askSystemPrompt = "You are answering questions about a source tree. " +
	"The full tree is provided below in markdown form. Answer concisely and " +
	"cite file paths when relevant."

// runAsk drives the multi-turn "ask" flow: render the tree once per
// conversation, keep it in the durable conversation context, and replay
// prior turns on every provider call.
func runAsk(args []string) {
	fs := pflag.NewFlagSet("copytree ask", pflag.ContinueOnError)
	conversation := fs.StringP("conversation", "c", "", "")
	path := fs.String("path", ".", "")
	listConvos := fs.Bool("list", false, "")
	deleteConvo := fs.String("delete", "", "")
	var globals GlobalFlags
	fs.BoolVar(&globals.JSON, "json", false, "")
	fs.BoolVarP(&globals.Quiet, "quiet", "q", false, "")
	fs.BoolVar(&globals.NoColor, "no-color", false, "")
	if err := fs.Parse(args); err != nil {
		copytreeerrors.FatalError(copytreeerrors.NewValidationError(
			"Invalid command line", err.Error(), "Run: copytree --help"), globals.JSON)
	}
	ui.InitColors(globals.NoColor)

	store, err := convo.NewStore(filepath.Join(stateDir(), "conversations"))
	if err != nil {
		copytreeerrors.FatalError(copytreeerrors.NewConfigurationError(
			"Cannot open conversation store", err.Error(),
			"Set COPYTREE_STATE_DIR to a writable directory", err), globals.JSON)
	}
	if _, err := store.CleanupExpired(); err != nil {
		ui.Warningf("conversation cleanup: %v", err)
	}

	if *listConvos {
		keys, err := store.List()
		if err != nil {
			copytreeerrors.FatalError(err, globals.JSON)
		}
		for _, k := range keys {
			fmt.Println(k)
		}
		return
	}
	if *deleteConvo != "" {
		if err := store.Delete(*deleteConvo); err != nil {
			copytreeerrors.FatalError(err, globals.JSON)
		}
		ui.Successf("Deleted conversation %s", *deleteConvo)
		return
	}

	question := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if question == "" {
		copytreeerrors.FatalError(copytreeerrors.NewValidationError(
			"No question given", "", "Run: copytree ask \"what does this project do?\""), globals.JSON)
	}

	provider, active := aiprovider.FromEnv()
	if !active {
		copytreeerrors.FatalError(copytreeerrors.NewConfigurationError(
			"No AI provider configured",
			"ask needs OPENAI_API_KEY, ANTHROPIC_API_KEY, or OLLAMA_HOST",
			"Export one of the provider credentials and retry", nil), globals.JSON)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	key := *conversation
	if key == "" {
		key = "default"
	}
	c, err := store.Get(key)
	if err != nil {
		copytreeerrors.FatalError(err, globals.JSON)
	}
	if c == nil {
		if c, err = store.Create(key); err != nil {
			copytreeerrors.FatalError(err, globals.JSON)
		}
	}

	// Render the tree once per conversation and pin it in context; later
	// turns reuse it so each question doesn't pay for a fresh walk.
	treeContext := c.Context["tree"]
	if treeContext == "" {
		treeContext, err = renderTreeContext(ctx, *path)
		if err != nil {
			copytreeerrors.FatalError(err, globals.JSON)
		}
		if _, err = store.UpdateContext(key, map[string]string{"tree": treeContext}); err != nil {
			copytreeerrors.FatalError(err, globals.JSON)
		}
	}

	messages := []aiprovider.Message{
		{Role: "system", Content: askSystemPrompt + "\n\n" + treeContext},
	}
	for _, m := range c.Messages {
		messages = append(messages, aiprovider.Message{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, aiprovider.Message{Role: "user", Content: question})

	envelope, err := provider.Chat(ctx, aiprovider.ChatRequest{Messages: messages})
	if err != nil {
		copytreeerrors.FatalError(err, globals.JSON)
	}

	if _, err = store.AddMessage(key, "user", question); err != nil {
		copytreeerrors.FatalError(err, globals.JSON)
	}
	if _, err = store.AddMessage(key, "assistant", envelope.Content); err != nil {
		copytreeerrors.FatalError(err, globals.JSON)
	}

	fmt.Println(envelope.Content)
}

// renderTreeContext runs a bounded markdown render of path for use as
// conversation context.
func renderTreeContext(ctx context.Context, path string) (string, error) {
	baseDir, err := filepath.Abs(path)
	if err != nil {
		return "", copytreeerrors.NewValidationError("Invalid path", err.Error(), "Pass an existing directory path")
	}
	if info, statErr := os.Stat(baseDir); statErr != nil || !info.IsDir() {
		return "", copytreeerrors.NewValidationError(
			fmt.Sprintf("Not a directory: %s", baseDir), "", "Pass an existing directory path")
	}

	opts := pipeline.DefaultOptions()
	opts.Format = pipeline.FormatMarkdown
	opts.CharLimit = 200_000

	p, err := buildPipeline(opts, false)
	if err != nil {
		return "", err
	}
	result, stats, err := p.Process(ctx, &pipeline.PipelinePayload{BaseDir: baseDir, Options: opts})
	if err != nil {
		return "", err
	}

	fmtStats := format.Stats{FileCount: len(result.Files), Duration: stats.EndTime.Sub(stats.StartTime)}
	for _, f := range result.Files {
		fmtStats.TotalBytes += f.Size
	}
	return format.RenderToString(&format.MarkdownFormatter{}, result.Files, fmtStats, format.RenderOptions{
		BaseDir:      baseDir,
		Generated:    stats.StartTime,
		Instructions: result.Instructions,
		CharLimit:    opts.CharLimit,
	})
}
