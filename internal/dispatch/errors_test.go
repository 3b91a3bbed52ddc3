package dispatch

import (
	"errors"
	"testing"
)

func TestCmdErrorUnwrap(t *testing.T) {
	cause := errors.New("network reset")
	wrapped := Wrap(CodeIO, "read failed", cause)
	if !errors.Is(wrapped, cause) {
		t.Error("expected wrapped error to unwrap to cause")
	}
}

func TestAsCmdErrorPassesThroughExisting(t *testing.T) {
	orig := NewError(CodeTimeout, "too slow")
	got := AsCmdError(orig)
	if got != orig {
		t.Error("expected AsCmdError to return the same CmdError instance")
	}
}

func TestAsCmdErrorWrapsUnknownErrors(t *testing.T) {
	got := AsCmdError(errors.New("plain error"))
	if got.Code != CodeInternal {
		t.Errorf("expected CodeInternal for unrecognized error, got %s", got.Code)
	}
}

func TestAsCmdErrorNil(t *testing.T) {
	if AsCmdError(nil) != nil {
		t.Error("expected nil for nil error")
	}
}

func TestWithDetailsChaining(t *testing.T) {
	err := NewError(CodeInvalidInput, "bad field").WithDetails(map[string]string{"field": "url"})
	if err.Details == nil {
		t.Error("expected details to be set")
	}
}

func TestWrapFailedCarriesArtifactsThroughErrorResponse(t *testing.T) {
	cause := errors.New("navigation timed out")
	artifacts := []Artifact{{Kind: "screenshot", Path: "/tmp/x.png"}}
	err := WrapFailed(CodeNavigationFailed, "navigating", cause, artifacts)

	if err.Code != codeOutputAlreadyPrinted {
		t.Fatalf("expected internal sentinel code, got %s", err.Code)
	}

	resp := errorResponse(Request{Op: "navigate"}, err, &EffectiveRuntime{Profile: "default"})
	if resp.Error.Code != CodeNavigationFailed {
		t.Errorf("expected envelope to surface the real failure code, got %s", resp.Error.Code)
	}
	if len(resp.Artifacts) != 1 || resp.Artifacts[0].Path != "/tmp/x.png" {
		t.Errorf("expected collected artifacts to reach the envelope, got %+v", resp.Artifacts)
	}
}
