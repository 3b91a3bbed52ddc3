package dispatch

import (
	"errors"
	"fmt"
)

// Code is one of the closed set of error classes a CommandResponse may carry.
type Code string

const (
	CodeInvalidInput      Code = "InvalidInput"
	CodeSelectorNotFound  Code = "SelectorNotFound"
	CodeNavigationFailed  Code = "NavigationFailed"
	CodeTimeout           Code = "Timeout"
	CodeBrowserLaunch     Code = "BrowserLaunch"
	CodeContext           Code = "Context"
	CodeIO                Code = "Io"
	CodeJSON              Code = "Json"
	CodeInternal          Code = "Internal"
	codeOutputAlreadyPrinted Code = "OutputAlreadyPrinted"
)

// CmdError is the structured error every CommandDef failure surfaces as.
type CmdError struct {
	Code    Code
	Message string
	Details any
	cause   error
}

func (e *CmdError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *CmdError) Unwrap() error { return e.cause }

// NewError builds a CmdError with no wrapped cause.
func NewError(code Code, message string) *CmdError {
	return &CmdError{Code: code, Message: message}
}

// Wrap builds a CmdError that records cause for %w-style unwrapping, used
// when an internal error (IO, JSON, driver RPC) needs a taxonomy code.
func Wrap(code Code, message string, cause error) *CmdError {
	return &CmdError{Code: code, Message: message, cause: cause}
}

// WithDetails attaches structured diagnostic details and returns e for
// chaining at the call site.
func (e *CmdError) WithDetails(details any) *CmdError {
	e.Details = details
	return e
}

// failureArtifacts is the internal carrier WrapFailed stashes in a
// CmdError's Details so errorResponse can unpack the real code and the
// artifacts a handler already collected before it gave up.
type failureArtifacts struct {
	code      Code
	artifacts []Artifact
}

// WrapFailed builds a CmdError for a handler that already ran
// CollectFailureArtifacts against its session before failing. It tags the
// error with OutputAlreadyPrinted so the dispatcher folds artifacts into
// the single failure envelope it emits, instead of the plain error path
// silently dropping them.
func WrapFailed(code Code, message string, cause error, artifacts []Artifact) *CmdError {
	return &CmdError{
		Code:    codeOutputAlreadyPrinted,
		Message: message,
		cause:   cause,
		Details: failureArtifacts{code: code, artifacts: artifacts},
	}
}

// AsCmdError unwraps err looking for a *CmdError; anything else is reported
// as CodeInternal.
func AsCmdError(err error) *CmdError {
	if err == nil {
		return nil
	}
	var ce *CmdError
	if errors.As(err, &ce) {
		return ce
	}
	return Wrap(CodeInternal, "unexpected error", err)
}
