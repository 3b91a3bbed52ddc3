package commands

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rebelnerd/pwcli/internal/contextstore"
	"github.com/rebelnerd/pwcli/internal/dispatch"
	"github.com/rebelnerd/pwcli/internal/workspace"
)

func testState(t *testing.T) *contextstore.State {
	t.Helper()
	scope := workspace.FromParts(t.TempDir(), "default")
	state, err := contextstore.NewState(scope, "", false, false, false)
	if err != nil {
		t.Fatal(err)
	}
	return state
}

func TestNavigateResolveDefaultsEmptyInput(t *testing.T) {
	state := testState(t)
	resolved, err := Navigate{}.Resolve(nil, state)
	if err != nil {
		t.Fatal(err)
	}
	if resolved.(navigateInput).URL != "" {
		t.Errorf("expected empty URL, got %q", resolved.(navigateInput).URL)
	}
}

func TestNavigateResolveRejectsUnknownFields(t *testing.T) {
	state := testState(t)
	_, err := Navigate{}.Resolve(json.RawMessage(`{"url":"https://example.com","bogus":true}`), state)
	if err == nil {
		t.Error("expected error for unknown field")
	}
}

func TestClickResolveRequiresSelectorWhenNoneCached(t *testing.T) {
	state := testState(t)
	_, err := Click{}.Resolve(json.RawMessage(`{}`), state)
	if err == nil {
		t.Error("expected error when no selector is available")
	}
}

func TestClickResolveUsesProvidedSelector(t *testing.T) {
	state := testState(t)
	resolved, err := Click{}.Resolve(json.RawMessage(`{"selector":"#submit"}`), state)
	if err != nil {
		t.Fatal(err)
	}
	if resolved.(clickInput).Selector != "#submit" {
		t.Errorf("unexpected selector: %q", resolved.(clickInput).Selector)
	}
}

func TestFillResolveRequiresSelector(t *testing.T) {
	state := testState(t)
	_, err := Fill{}.Resolve(json.RawMessage(`{"value":"hi"}`), state)
	if err == nil {
		t.Error("expected error when no selector is available")
	}
}

func TestFillResolveAcceptsSelectorAndValue(t *testing.T) {
	state := testState(t)
	resolved, err := Fill{}.Resolve(json.RawMessage(`{"selector":"#name","value":"hi"}`), state)
	if err != nil {
		t.Fatal(err)
	}
	in := resolved.(fillInput)
	if in.Selector != "#name" || in.Value != "hi" {
		t.Errorf("unexpected resolved input: %+v", in)
	}
}

func TestPageTextResolveAllowsEmptyInput(t *testing.T) {
	state := testState(t)
	resolved, err := PageText{}.Resolve(nil, state)
	if err != nil {
		t.Fatal(err)
	}
	if resolved.(pageTextInput).Selector != "" {
		t.Errorf("expected empty selector, got %q", resolved.(pageTextInput).Selector)
	}
}

func TestAuthLoginResolveRequiresName(t *testing.T) {
	state := testState(t)
	_, err := AuthLogin{}.Resolve(json.RawMessage(`{"name":""}`), state)
	if err == nil {
		t.Error("expected error for empty name")
	}
}

func TestAuthLoginResolveAcceptsName(t *testing.T) {
	state := testState(t)
	resolved, err := AuthLogin{}.Resolve(json.RawMessage(`{"name":"work"}`), state)
	if err != nil {
		t.Fatal(err)
	}
	if resolved.(authLoginInput).Name != "work" {
		t.Errorf("unexpected name: %q", resolved.(authLoginInput).Name)
	}
}

func TestSanitizeAuthName(t *testing.T) {
	cases := map[string]string{
		".example.com": "example_com",
		"foo.bar":      "foo_bar",
		"plain":        "plain",
	}
	for in, want := range cases {
		if got := sanitizeAuthName(in); got != want {
			t.Errorf("sanitizeAuthName(%q) = %q, want %q", in, got, want)
		}
	}
}

func testExecCtxFor(state *contextstore.State) dispatch.ExecCtx {
	return dispatch.ExecCtx{Context: context.Background(), State: state}
}

func TestCollectFailureArtifactsNoDirIsNoop(t *testing.T) {
	if got := collectFailureArtifacts(nil, "", "navigate"); got != nil {
		t.Errorf("expected nil artifacts with no artifacts dir, got %+v", got)
	}
}

func TestAuthListEmptyDirectory(t *testing.T) {
	state := testState(t)
	outcome, err := AuthList{}.Execute(testExecCtxFor(state), nil)
	if err != nil {
		t.Fatal(err)
	}
	data := outcome.Data.(map[string]any)
	profiles := data["profiles"].([]string)
	if len(profiles) != 0 {
		t.Errorf("expected no profiles, got %v", profiles)
	}
}
