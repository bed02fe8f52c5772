// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package errors provides structured error handling for copytree.
//
// It defines UserError, a type that carries structured error information
// (what went wrong, why, and how to fix it) plus a Kind tag used to place
// the error into copytree's error taxonomy, and maps that taxonomy onto a
// small, stable set of process exit codes.
package errors

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
)

// Exit codes, per the external-interfaces contract: a CLI wrapping the
// pipeline returns one of these four codes.
const (
	ExitSuccess    = 0
	ExitGeneric    = 1
	ExitValidation = 2
	ExitCancelled  = 3
	ExitSecrets    = 4
)

// Kind classifies a UserError into the pipeline's error taxonomy. Kind
// determines both the exit code and whether the pipeline may recover from
// the error and continue.
type Kind string

const (
	KindConfiguration    Kind = "configuration"
	KindFileSystem       Kind = "filesystem"
	KindPattern          Kind = "pattern"
	KindPipeline         Kind = "pipeline"
	KindTransform        Kind = "transform"
	KindGit              Kind = "git"
	KindProvider         Kind = "provider"
	KindSecretsDetected  Kind = "secrets_detected"
	KindCancelled        Kind = "cancelled"
	KindValidation       Kind = "validation"
)

// exitCodeForKind maps each taxonomy Kind onto the four-code CLI contract.
func exitCodeForKind(k Kind) int {
	switch k {
	case KindCancelled:
		return ExitCancelled
	case KindSecretsDetected:
		return ExitSecrets
	case KindConfiguration, KindPattern, KindValidation:
		return ExitValidation
	default:
		return ExitGeneric
	}
}

// Recoverable reports whether the pipeline's default policy continues
// after an error of this kind rather than aborting the run.
func (k Kind) Recoverable() bool {
	switch k {
	case KindFileSystem, KindTransform:
		return true
	default:
		return false
	}
}

// UserError represents an error with structured context for end users.
//
// It provides three levels of information:
//   - Message: what went wrong (user-facing error description)
//   - Cause: why it happened (diagnostic information)
//   - Fix: how to fix it (actionable suggestion)
//
// UserError also carries a Kind (for taxonomy-driven handling) and
// optionally wraps an underlying error for errors.Is/errors.As compatibility.
type UserError struct {
	Kind     Kind
	Message  string
	Cause    string
	Fix      string
	Details  map[string]any
	Err      error
}

// Error implements the error interface.
func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap enables errors.Is/errors.As across UserError chains.
func (e *UserError) Unwrap() error {
	return e.Err
}

// ExitCode returns the process exit code appropriate for this error.
func (e *UserError) ExitCode() int {
	return exitCodeForKind(e.Kind)
}

func newError(kind Kind, msg, cause, fix string, err error) *UserError {
	return &UserError{Kind: kind, Message: msg, Cause: cause, Fix: fix, Err: err}
}

// NewConfigurationError reports an invalid profile or conflicting options.
func NewConfigurationError(msg, cause, fix string, err error) *UserError {
	return newError(KindConfiguration, msg, cause, fix, err)
}

// NewFileSystemError reports an unreadable file or directory. op and path
// are folded into Details for machine consumers.
func NewFileSystemError(msg, cause, fix string, path, op string, err error) *UserError {
	e := newError(KindFileSystem, msg, cause, fix, err)
	e.Details = map[string]any{"path": path, "op": op}
	return e
}

// NewPatternError reports an invalid glob or a negation in an illegal position.
func NewPatternError(msg, cause, fix string, err error) *UserError {
	return newError(KindPattern, msg, cause, fix, err)
}

// NewPipelineError wraps a stage failure that could not be recovered.
func NewPipelineError(stageName string, index int, err error) *UserError {
	e := newError(KindPipeline, fmt.Sprintf("stage %q (#%d) failed", stageName, index),
		"", "", err)
	e.Details = map[string]any{"stage": stageName, "index": index}
	return e
}

// NewTransformError reports a transformer failure. Recoverable by default.
func NewTransformError(transformerName string, err error) *UserError {
	e := newError(KindTransform, fmt.Sprintf("transformer %q failed", transformerName),
		"", "the pipeline continues with the untransformed file", err)
	e.Details = map[string]any{"transformer": transformerName}
	return e
}

// NewGitError reports a failed git invocation.
func NewGitError(msg, cause, fix string, err error) *UserError {
	return newError(KindGit, msg, cause, fix, err)
}

// ProviderErrorCode enumerates the retry/fail-fast classification used by
// the AI provider and secret-scanner subsystems.
type ProviderErrorCode string

const (
	ProviderRateLimit         ProviderErrorCode = "RATE_LIMIT"
	ProviderTimeout           ProviderErrorCode = "TIMEOUT"
	ProviderServiceUnavailable ProviderErrorCode = "SERVICE_UNAVAILABLE"
	ProviderNetworkError      ProviderErrorCode = "NETWORK_ERROR"
	ProviderAuth              ProviderErrorCode = "AUTH"
	ProviderQuota             ProviderErrorCode = "QUOTA"
	ProviderSafety            ProviderErrorCode = "SAFETY"
	ProviderInvalidRequest    ProviderErrorCode = "INVALID_REQUEST"
)

// Retryable reports whether the provider retry policy should retry on this code.
func (c ProviderErrorCode) Retryable() bool {
	switch c {
	case ProviderRateLimit, ProviderTimeout, ProviderServiceUnavailable, ProviderNetworkError:
		return true
	default:
		return false
	}
}

// NewProviderError reports an AI/scanner subprocess failure.
func NewProviderError(provider string, code ProviderErrorCode, msg string, err error) *UserError {
	e := newError(KindProvider, msg, "", "", err)
	e.Details = map[string]any{"provider": provider, "code": string(code)}
	return e
}

// NewSecretsDetectedError reports a rejection due to the "reject" redaction policy.
func NewSecretsDetectedError(findingCount int) *UserError {
	e := newError(KindSecretsDetected,
		fmt.Sprintf("%d secret(s) detected; pipeline rejected per policy", findingCount),
		"redaction policy is set to \"reject\"",
		"switch to policy \"redact\" or \"report-only\", or remove the secrets", nil)
	e.Details = map[string]any{"finding_count": findingCount}
	return e
}

// NewCancelledError reports cooperative cancellation.
func NewCancelledError() *UserError {
	return newError(KindCancelled, "cancelled", "", "", nil)
}

// NewValidationError reports user input violating constraints.
func NewValidationError(msg, cause, fix string) *UserError {
	return newError(KindValidation, msg, cause, fix, nil)
}

// Color definitions for error formatting.
var (
	colorError = color.New(color.FgRed, color.Bold)
	colorCause = color.New(color.FgYellow)
	colorFix   = color.New(color.FgGreen)
)

// Format returns a formatted error message for terminal display, honoring
// NO_COLOR. Empty Cause/Fix are omitted.
func (e *UserError) Format(noColor bool) string {
	originalNoColor := color.NoColor
	defer func() { color.NoColor = originalNoColor }()

	if noColor || os.Getenv("NO_COLOR") != "" {
		color.NoColor = true
	}

	var out strings.Builder
	out.WriteString(colorError.Sprint("Error: "))
	out.WriteString(e.Message)
	out.WriteString("\n")

	if e.Cause != "" {
		out.WriteString(colorCause.Sprint("Cause: "))
		out.WriteString(e.Cause)
		out.WriteString("\n")
	}

	if e.Fix != "" {
		out.WriteString(colorFix.Sprint("Fix:   "))
		out.WriteString(e.Fix)
		out.WriteString("\n")
	}

	return out.String()
}

// ErrorJSON is the machine-readable envelope handed to callers: "an error
// carrying {kind, message, details}".
type ErrorJSON struct {
	Kind    Kind           `json:"kind"`
	Message string         `json:"message"`
	Cause   string         `json:"cause,omitempty"`
	Fix     string         `json:"fix,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// ToJSON converts the UserError to its JSON envelope.
func (e *UserError) ToJSON() ErrorJSON {
	return ErrorJSON{
		Kind:    e.Kind,
		Message: e.Message,
		Cause:   e.Cause,
		Fix:     e.Fix,
		Details: e.Details,
	}
}

// FatalError prints the error and exits with the appropriate code. Never returns.
func FatalError(err error, jsonOutput bool) {
	if err == nil {
		return
	}

	if ue, ok := err.(*UserError); ok {
		if jsonOutput {
			enc := json.NewEncoder(os.Stderr)
			enc.SetIndent("", "  ")
			_ = enc.Encode(ue.ToJSON())
		} else {
			fmt.Fprint(os.Stderr, ue.Format(false))
		}
		os.Exit(ue.ExitCode())
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(ExitGeneric)
}
