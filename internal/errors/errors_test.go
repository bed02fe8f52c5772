// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package errors

import (
	"fmt"
	"os"
	"strings"
	"testing"

	goerrors "errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *UserError
		want string
	}{
		{"with underlying error", &UserError{Message: "Cannot open database", Err: fmt.Errorf("file locked")}, "Cannot open database: file locked"},
		{"without underlying error", &UserError{Message: "Invalid input"}, "Invalid input"},
		{"empty message with underlying error", &UserError{Err: fmt.Errorf("some error")}, ": some error"},
		{"empty message without underlying error", &UserError{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestUserError_Unwrap(t *testing.T) {
	underlying := fmt.Errorf("underlying error")

	wrapped := &UserError{Message: "test", Err: underlying}
	assert.Equal(t, underlying, wrapped.Unwrap())

	bare := &UserError{Message: "test"}
	assert.Nil(t, bare.Unwrap())
}

func TestExitCodeForKind(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindCancelled, ExitCancelled},
		{KindSecretsDetected, ExitSecrets},
		{KindConfiguration, ExitValidation},
		{KindPattern, ExitValidation},
		{KindValidation, ExitValidation},
		{KindFileSystem, ExitGeneric},
		{KindPipeline, ExitGeneric},
		{KindTransform, ExitGeneric},
		{KindGit, ExitGeneric},
		{KindProvider, ExitGeneric},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			e := &UserError{Kind: tt.kind}
			assert.Equal(t, tt.want, e.ExitCode())
		})
	}
}

func TestKind_Recoverable(t *testing.T) {
	assert.True(t, KindFileSystem.Recoverable())
	assert.True(t, KindTransform.Recoverable())
	assert.False(t, KindConfiguration.Recoverable())
	assert.False(t, KindCancelled.Recoverable())
	assert.False(t, KindSecretsDetected.Recoverable())
}

func TestProviderErrorCode_Retryable(t *testing.T) {
	retryable := []ProviderErrorCode{ProviderRateLimit, ProviderTimeout, ProviderServiceUnavailable, ProviderNetworkError}
	for _, c := range retryable {
		assert.True(t, c.Retryable(), "%s should be retryable", c)
	}

	fatal := []ProviderErrorCode{ProviderAuth, ProviderQuota, ProviderSafety, ProviderInvalidRequest}
	for _, c := range fatal {
		assert.False(t, c.Retryable(), "%s should not be retryable", c)
	}
}

func TestConstructors(t *testing.T) {
	underlying := fmt.Errorf("underlying error")

	cfg := NewConfigurationError("msg", "cause", "fix", underlying)
	assert.Equal(t, KindConfiguration, cfg.Kind)
	assert.Equal(t, ExitValidation, cfg.ExitCode())
	assert.ErrorIs(t, cfg, underlying)

	fsErr := NewFileSystemError("msg", "cause", "fix", "/tmp/x", "read", underlying)
	assert.Equal(t, KindFileSystem, fsErr.Kind)
	assert.Equal(t, "/tmp/x", fsErr.Details["path"])
	assert.Equal(t, "read", fsErr.Details["op"])

	patErr := NewPatternError("bad glob", "", "", nil)
	assert.Equal(t, ExitValidation, patErr.ExitCode())

	pipeErr := NewPipelineError("discovery", 1, underlying)
	assert.Equal(t, KindPipeline, pipeErr.Kind)
	assert.Equal(t, ExitGeneric, pipeErr.ExitCode())

	xformErr := NewTransformError("markdown", underlying)
	assert.True(t, xformErr.Kind.Recoverable())

	gitErr := NewGitError("clone failed", "", "", underlying)
	assert.Equal(t, KindGit, gitErr.Kind)

	provErr := NewProviderError("openai", ProviderRateLimit, "rate limited", underlying)
	assert.Equal(t, "RATE_LIMIT", provErr.Details["code"])

	secretsErr := NewSecretsDetectedError(3)
	assert.Equal(t, ExitSecrets, secretsErr.ExitCode())
	assert.Equal(t, 3, secretsErr.Details["finding_count"])

	cancelErr := NewCancelledError()
	assert.Equal(t, ExitCancelled, cancelErr.ExitCode())

	valErr := NewValidationError("bad input", "", "")
	assert.Equal(t, ExitValidation, valErr.ExitCode())
}

func TestErrorChain(t *testing.T) {
	t.Run("errors.Is finds sentinel", func(t *testing.T) {
		sentinel := fmt.Errorf("sentinel error")
		wrapped := fmt.Errorf("wrapped: %w", sentinel)
		userErr := NewGitError("git error", "cause", "fix", wrapped)
		assert.True(t, goerrors.Is(userErr, sentinel))
	})

	t.Run("errors.As extracts UserError", func(t *testing.T) {
		inner := NewConfigurationError("config error", "cause", "fix", nil)
		outer := NewGitError("git error", "cause", "fix", inner)

		var target *UserError
		require.True(t, goerrors.As(outer, &target))
		assert.Equal(t, KindGit, target.Kind)

		var nested *UserError
		require.True(t, goerrors.As(target.Err, &nested))
		assert.Equal(t, KindConfiguration, nested.Kind)
	})
}

func TestUserError_Format(t *testing.T) {
	tests := []struct {
		name string
		err  *UserError
		want []string
	}{
		{
			name: "full error",
			err:  &UserError{Message: "Cannot open database", Cause: "The database file is locked", Fix: "Close other instances"},
			want: []string{"Error: Cannot open database", "Cause: The database file is locked", "Fix:   Close other instances"},
		},
		{
			name: "error without cause",
			err:  &UserError{Message: "Invalid input", Fix: "Use valid format"},
			want: []string{"Error: Invalid input", "Fix:   Use valid format"},
		},
		{
			name: "minimal error",
			err:  &UserError{Message: "Something failed"},
			want: []string{"Error: Something failed"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.err.Format(true)
			for _, substr := range tt.want {
				assert.Contains(t, got, substr)
			}
		})
	}
}

func TestUserError_Format_NoColorEnv(t *testing.T) {
	oldNoColor := os.Getenv("NO_COLOR")
	defer func() {
		if oldNoColor != "" {
			os.Setenv("NO_COLOR", oldNoColor)
		} else {
			os.Unsetenv("NO_COLOR")
		}
	}()

	os.Setenv("NO_COLOR", "1")
	err := &UserError{Message: "Test error", Cause: "Test cause", Fix: "Test fix"}
	output := err.Format(false)

	assert.False(t, strings.Contains(output, "\x1b["))
}

func TestUserError_ToJSON(t *testing.T) {
	err := &UserError{Kind: KindConfiguration, Message: "Invalid configuration", Cause: "Missing required field", Fix: "Run: copytree init"}
	got := err.ToJSON()

	assert.Equal(t, "Invalid configuration", got.Message)
	assert.Equal(t, "Missing required field", got.Cause)
	assert.Equal(t, "Run: copytree init", got.Fix)
	assert.Equal(t, KindConfiguration, got.Kind)
}

func TestFatalError_NilDoesNothing(t *testing.T) {
	FatalError(nil, false)
}
