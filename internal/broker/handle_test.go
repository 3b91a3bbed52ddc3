package broker

import (
	"testing"

	"github.com/rebelnerd/pwcli/internal/target"
)

func TestHandleCloseKeepBrowserAliveNoPage(t *testing.T) {
	h := &Handle{shutdownMode: KeepBrowserAlive}
	if err := h.Close(); err != nil {
		t.Errorf("expected nil error for keep-alive close with no page, got %v", err)
	}
}

func TestHandleCloseShutdownServerWithoutLaunchedProcFallsBackToBrowser(t *testing.T) {
	h := &Handle{shutdownMode: ShutdownServer, ownsBrowser: false}
	if err := h.Close(); err != nil {
		t.Errorf("expected nil error when nothing owned, got %v", err)
	}
}

func TestHandleAccessors(t *testing.T) {
	h := &Handle{wsEndpoint: "ws://x", cdpEndpoint: "http://x"}
	if h.WSEndpoint() != "ws://x" {
		t.Errorf("unexpected ws endpoint: %q", h.WSEndpoint())
	}
	if h.CDPEndpoint() != "http://x" {
		t.Errorf("unexpected cdp endpoint: %q", h.CDPEndpoint())
	}
	h.SetShutdownMode(ShutdownServer)
	if h.ShutdownMode() != ShutdownServer {
		t.Errorf("expected shutdown mode to stick")
	}
}

func TestCollectFailureArtifactsNoPage(t *testing.T) {
	h := &Handle{}
	_, _, err := h.CollectFailureArtifacts(t.TempDir(), "navigate")
	if err == nil {
		t.Error("expected error when no page is attached")
	}
}

func TestGotoTargetRefusesProtectedURL(t *testing.T) {
	h := &Handle{protectedPatterns: []string{"admin.internal"}}
	resolved, err := target.Resolve("https://admin.internal/secrets", "", "", false, target.AllowCurrentPage)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if err := h.GotoTarget(resolved, 0); err == nil {
		t.Error("expected protected-URL navigation to be refused")
	}
}

func TestIsProtectedURLCaseInsensitive(t *testing.T) {
	if !isProtectedURL("https://Admin.Internal/secrets", []string{"admin.internal"}) {
		t.Error("expected case-insensitive match")
	}
	if isProtectedURL("https://example.com", []string{"admin.internal"}) {
		t.Error("expected no match for unrelated url")
	}
}
