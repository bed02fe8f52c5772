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

package builtin

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/copytree/copytree/pkg/aiprovider"
	"github.com/copytree/copytree/pkg/cache"
	"github.com/copytree/copytree/pkg/pipeline"
	"github.com/copytree/copytree/pkg/transform"
)

// summaryCacheTTL bounds how long a memoized summary is trusted before the
// transformer asks the provider again.
const summaryCacheTTL = 30 * 24 * time.Hour

// AISummary asks a configured provider to produce a short natural-language
// summary of a file's content, memoized by content hash in the
// shared cache so an unchanged file is never billed twice. Heavy, requires
// an API key and network, conflicts with file-summary (both claim to be the
// canonical narrative description of a file).
type AISummary struct {
	Provider aiprovider.Provider
	Cache    *cache.Cache
	Prompt   string
}

func (a *AISummary) Name() string { return "ai-summary" }

func (a *AISummary) Traits() transform.Traits {
	return transform.Traits{
		InputTypes:    []transform.ContentType{transform.TypeText},
		OutputTypes:   []transform.ContentType{transform.TypeText},
		Heavy:         true,
		ConflictsWith: []string{"file-summary"},
		Requirements:  transform.Requirements{APIKey: true, Network: true},
	}
}

func (a *AISummary) CanTransform(file *pipeline.FileRecord) bool {
	return file.Loaded && !file.IsBinary && a.Provider != nil
}

func (a *AISummary) DoTransform(file *pipeline.FileRecord) (*pipeline.FileRecord, error) {
	out := file.Clone()
	sum := sha256.Sum256([]byte(file.Content))
	hash := hex.EncodeToString(sum[:])
	key := cache.Key("ai-summary_", hash, nil)

	var summary string
	if a.Cache != nil {
		if hit, _ := a.Cache.Get(key, &summary); hit {
			out.Metadata = cloneMeta(out.Metadata)
			out.Metadata["ai_summary"] = pipeline.MetaValue{String: summary}
			out.Metadata["ai_summary_cached"] = pipeline.MetaValue{Boolean: true}
			out.Transformed = true
			out.TransformedBy = append(out.TransformedBy, a.Name())
			return out, nil
		}
	}

	prompt := a.Prompt
	if prompt == "" {
		prompt = "Summarize the purpose of this file in one or two sentences."
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	env, err := a.Provider.Chat(ctx, aiprovider.ChatRequest{
		Messages: []aiprovider.Message{
			{Role: "system", Content: prompt},
			{Role: "user", Content: fmt.Sprintf("File: %s\n\n%s", file.RelativePath, truncate(file.Content, 8000))},
		},
	})
	if err != nil {
		out.Err = fmt.Errorf("ai-summary: %s: %w", file.RelativePath, err)
		return out, nil
	}

	summary = env.Content
	if a.Cache != nil {
		_ = a.Cache.Set(key, summary, summaryCacheTTL)
	}

	out.Metadata = cloneMeta(out.Metadata)
	out.Metadata["ai_summary"] = pipeline.MetaValue{String: summary}
	out.Transformed = true
	out.TransformedBy = append(out.TransformedBy, a.Name())
	return out, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "\n... [truncated]"
}
