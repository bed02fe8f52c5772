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
	"errors"
	"math/rand"
	"net/http"
	"strings"
	"time"

	copytreeerrors "github.com/copytree/copytree/internal/errors"
)

// classifiedError wraps a transport-level error (DNS, connection refused,
// context deadline) as a ProviderError tagged NETWORK_ERROR or TIMEOUT,
// using substring classification since net/http flattens most transport
// failures into opaque *url.Error strings.
func classifiedError(provider string, err error) error {
	if err == nil {
		return nil
	}
	code := copytreeerrors.ProviderNetworkError
	if errors.Is(err, context.DeadlineExceeded) || strings.Contains(strings.ToLower(err.Error()), "timeout") {
		code = copytreeerrors.ProviderTimeout
	}
	return copytreeerrors.NewProviderError(provider, code, err.Error(), err)
}

// classifiedHTTPError maps an HTTP status code to the ProviderErrorCode
// taxonomy.
func classifiedHTTPError(provider string, resp *http.Response) error {
	body := readBody(resp)
	var code copytreeerrors.ProviderErrorCode
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		code = copytreeerrors.ProviderRateLimit
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		code = copytreeerrors.ProviderAuth
	case resp.StatusCode == http.StatusRequestTimeout:
		code = copytreeerrors.ProviderTimeout
	case resp.StatusCode == http.StatusPaymentRequired:
		code = copytreeerrors.ProviderQuota
	case resp.StatusCode >= 500:
		code = copytreeerrors.ProviderServiceUnavailable
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		code = copytreeerrors.ProviderInvalidRequest
	default:
		code = copytreeerrors.ProviderInvalidRequest
	}
	return copytreeerrors.NewProviderError(provider, code,
		"provider returned status "+resp.Status+": "+body, nil)
}

// RetryPolicy implements bounded-attempt exponential backoff,
// retrying only RATE_LIMIT/TIMEOUT/SERVICE_UNAVAILABLE/NETWORK_ERROR.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
}

// DefaultRetryPolicy is the baseline for provider calls: three attempts,
// half-second initial backoff doubling to a ten-second cap.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, InitialBackoff: 500 * time.Millisecond, MaxBackoff: 10 * time.Second, Multiplier: 2}
}

func retryableCode(err error) (copytreeerrors.ProviderErrorCode, bool) {
	var pe *copytreeerrors.UserError
	if errors.As(err, &pe) {
		if code, ok := pe.Details["code"].(string); ok {
			return copytreeerrors.ProviderErrorCode(code), copytreeerrors.ProviderErrorCode(code).Retryable()
		}
	}
	return "", false
}

// backoffWithJitter computes exponential backoff with full jitter, capped
// at policy.MaxBackoff. Full jitter avoids thundering-herd retries when
// several files hit the same rate limit together.
func backoffWithJitter(policy RetryPolicy, attempt int) time.Duration {
	exp := float64(policy.InitialBackoff)
	for i := 0; i < attempt; i++ {
		exp *= policy.Multiplier
	}
	d := time.Duration(exp)
	if d > policy.MaxBackoff {
		d = policy.MaxBackoff
	}
	if d <= 0 {
		return policy.InitialBackoff
	}
	return time.Duration(rand.Int63n(int64(d) + 1))
}

// call runs fn with policy's retry semantics against a single provider: a
// retryable error is retried up to MaxAttempts; any non-retryable error, or
// exhausting attempts, returns the last error.
func call[T any](ctx context.Context, policy RetryPolicy, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error
	attempts := policy.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	for attempt := 0; attempt < attempts; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err
		if _, retryable := retryableCode(err); !retryable || attempt == attempts-1 {
			return zero, lastErr
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(backoffWithJitter(policy, attempt)):
		}
	}
	return zero, lastErr
}

// Fallback tries providers in priority order: a non-retryable
// error on one advances immediately to the next; a retryable error is
// retried on the current provider up to policy's limit before advancing.
// All providers failing re-raises the last error.
type Fallback struct {
	Providers []Provider
	Policy    RetryPolicy
}

// NewFallback builds a Fallback with the default retry policy.
func NewFallback(providers ...Provider) *Fallback {
	return &Fallback{Providers: providers, Policy: DefaultRetryPolicy()}
}

func (f *Fallback) Complete(ctx context.Context, req CompleteRequest) (*Envelope, error) {
	var lastErr error
	for _, p := range f.Providers {
		env, err := call(ctx, f.Policy, func() (*Envelope, error) { return p.Complete(ctx, req) })
		if err == nil {
			return env, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func (f *Fallback) Chat(ctx context.Context, req ChatRequest) (*Envelope, error) {
	var lastErr error
	for _, p := range f.Providers {
		env, err := call(ctx, f.Policy, func() (*Envelope, error) { return p.Chat(ctx, req) })
		if err == nil {
			return env, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func (f *Fallback) Name() string {
	names := make([]string, len(f.Providers))
	for i, p := range f.Providers {
		names[i] = p.Name()
	}
	return strings.Join(names, "->")
}

var _ Provider = (*Fallback)(nil)
