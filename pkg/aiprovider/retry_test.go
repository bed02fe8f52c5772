// Copyright 2025 KrakLabs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

package aiprovider

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	copytreeerrors "github.com/copytree/copytree/internal/errors"
)

// TestFallback_RetriesThenSucceeds: a stub provider returning
// RATE_LIMIT twice then success retries exactly twice before succeeding.
func TestFallback_RetriesThenSucceeds(t *testing.T) {
	calls := 0
	mock := &MockProvider{
		ChatFunc: func(ctx context.Context, req ChatRequest) (*Envelope, error) {
			calls++
			if calls < 3 {
				return nil, copytreeerrors.NewProviderError("mock", copytreeerrors.ProviderRateLimit, "rate limited", nil)
			}
			return &Envelope{Content: "ok", FinishReason: "stop"}, nil
		},
	}

	fb := &Fallback{
		Providers: []Provider{mock},
		Policy:    RetryPolicy{MaxAttempts: 5, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond, Multiplier: 2},
	}

	env, err := fb.Chat(context.Background(), ChatRequest{Messages: []Message{{Role: "user", Content: "hi"}}})
	require.NoError(t, err)
	assert.Equal(t, "ok", env.Content)
	assert.Equal(t, 3, calls)
}

// TestFallback_NonRetryableAdvancesImmediately covers the advance-on-
// non-retryable-error half of the fallback contract.
func TestFallback_NonRetryableAdvancesImmediately(t *testing.T) {
	attemptsOnFirst := 0
	first := &MockProvider{
		ChatFunc: func(ctx context.Context, req ChatRequest) (*Envelope, error) {
			attemptsOnFirst++
			return nil, copytreeerrors.NewProviderError("mock", copytreeerrors.ProviderAuth, "bad key", nil)
		},
	}
	second := &MockProvider{
		ChatFunc: func(ctx context.Context, req ChatRequest) (*Envelope, error) {
			return &Envelope{Content: "from second", FinishReason: "stop"}, nil
		},
	}

	fb := NewFallback(first, second)
	env, err := fb.Chat(context.Background(), ChatRequest{})
	require.NoError(t, err)
	assert.Equal(t, "from second", env.Content)
	assert.Equal(t, 1, attemptsOnFirst, "a non-retryable error must not be retried on the same provider")
}

// TestFallback_AllFail reports the last provider's error when every
// provider in the chain fails.
func TestFallback_AllFail(t *testing.T) {
	failing := &MockProvider{
		ChatFunc: func(ctx context.Context, req ChatRequest) (*Envelope, error) {
			return nil, copytreeerrors.NewProviderError("mock", copytreeerrors.ProviderAuth, "bad key", nil)
		},
	}
	fb := NewFallback(failing, failing)
	_, err := fb.Chat(context.Background(), ChatRequest{})
	require.Error(t, err)
}

func TestBackoffWithJitter_CapsAtMaxBackoff(t *testing.T) {
	policy := RetryPolicy{InitialBackoff: time.Second, MaxBackoff: 2 * time.Second, Multiplier: 10}
	for attempt := 0; attempt < 5; attempt++ {
		d := backoffWithJitter(policy, attempt)
		assert.LessOrEqual(t, d, policy.MaxBackoff)
	}
}
