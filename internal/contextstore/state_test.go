package contextstore

import (
	"testing"

	"github.com/rebelnerd/pwcli/internal/workspace"
)

func testScope(t *testing.T) workspace.Scope {
	t.Helper()
	return workspace.FromParts(t.TempDir(), "default")
}

func TestStateApplyDeltaRefreshesLastUsedAtOnEmptyDelta(t *testing.T) {
	scope := testScope(t)
	state, err := NewState(scope, "", false, false, false)
	if err != nil {
		t.Fatal(err)
	}

	state.ApplyDelta(Delta{})
	first := state.Loaded().Cache.LastUsedAt
	if first == nil {
		t.Fatal("expected last_used_at to be set")
	}

	state.ApplyDelta(Delta{})
	second := state.Loaded().Cache.LastUsedAt
	if second == nil || *second < *first {
		t.Error("expected last_used_at to advance monotonically")
	}
}

func TestStateResolveSelectorPrecedence(t *testing.T) {
	scope := testScope(t)
	state, err := NewState(scope, "", false, false, false)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := state.ResolveSelector("", ""); err == nil {
		t.Error("expected error with no provided/cached/fallback selector")
	}

	got, err := state.ResolveSelector("", "html")
	if err != nil || got != "html" {
		t.Errorf("expected fallback selector, got %q, err=%v", got, err)
	}

	state.ApplyDelta(Delta{Selector: "#cached"})
	got, err = state.ResolveSelector("", "html")
	if err != nil || got != "#cached" {
		t.Errorf("expected cached selector, got %q, err=%v", got, err)
	}

	got, err = state.ResolveSelector("#explicit", "html")
	if err != nil || got != "#explicit" {
		t.Errorf("expected explicit selector to win, got %q, err=%v", got, err)
	}
}

func TestStateNoSaveSuppressesPersistButNotDelta(t *testing.T) {
	scope := testScope(t)
	state, err := NewState(scope, "", false, true, false)
	if err != nil {
		t.Fatal(err)
	}

	state.ApplyDelta(Delta{URL: "https://example.com"})
	if state.Loaded().Cache.LastURL != "https://example.com" {
		t.Error("expected in-memory delta to apply even under no_save")
	}
	if err := state.Persist(); err != nil {
		t.Errorf("persist should be a no-op, not error: %v", err)
	}

	reloaded, err := NewState(scope, "", false, false, false)
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.LastURL() != "" {
		t.Error("expected no_save to keep the delta out of the persisted file")
	}
}

func TestStateNoContextSuppressesDelta(t *testing.T) {
	scope := testScope(t)
	state, err := NewState(scope, "", true, false, false)
	if err != nil {
		t.Fatal(err)
	}

	state.ApplyDelta(Delta{URL: "https://example.com"})
	if state.Loaded().Cache.LastURL != "" {
		t.Error("expected delta to be suppressed by no_context")
	}
}

func TestStatePersistRoundTrips(t *testing.T) {
	scope := testScope(t)
	state, err := NewState(scope, "", false, false, false)
	if err != nil {
		t.Fatal(err)
	}
	state.ApplyDelta(Delta{URL: "https://example.com", Selector: "#m"})
	if err := state.Persist(); err != nil {
		t.Fatal(err)
	}

	reloaded, err := NewState(scope, "", false, false, false)
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.LastURL() != "https://example.com" {
		t.Errorf("expected persisted url to round-trip, got %q", reloaded.LastURL())
	}
}

func TestStateAddRemoveProtected(t *testing.T) {
	scope := testScope(t)
	state, err := NewState(scope, "", false, false, false)
	if err != nil {
		t.Fatal(err)
	}

	if !state.AddProtected("Admin") {
		t.Error("expected first add to succeed")
	}
	if state.AddProtected("admin") {
		t.Error("expected case-insensitive duplicate to be rejected")
	}
	if !state.IsProtected("https://example.com/admin/panel") {
		t.Error("expected protected match")
	}
	if !state.RemoveProtected("ADMIN") {
		t.Error("expected case-insensitive removal to succeed")
	}
	if state.IsProtected("https://example.com/admin/panel") {
		t.Error("expected pattern removed")
	}
}
