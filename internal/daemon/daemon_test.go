package daemon

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
)

func newTestDaemon(t *testing.T) *Daemon {
	t.Helper()
	return New(nil, t.TempDir())
}

func TestHandleRequestPing(t *testing.T) {
	d := newTestDaemon(t)
	resp := d.handleRequest(Request{Kind: ReqPing})
	if resp.Kind != RespPong {
		t.Errorf("expected pong, got %v", resp.Kind)
	}
}

func TestHandleRequestGetBrowserNotFound(t *testing.T) {
	d := newTestDaemon(t)
	resp := d.handleRequest(Request{Kind: ReqGetBrowser, Port: 9999})
	if resp.Kind != RespError || resp.Code != "not_found" {
		t.Errorf("expected not_found error, got %+v", resp)
	}
}

func TestHandleRequestKillBrowserNotFound(t *testing.T) {
	d := newTestDaemon(t)
	resp := d.handleRequest(Request{Kind: ReqKillBrowser, Port: 9999})
	if resp.Kind != RespError || resp.Code != "kill_failed" {
		t.Errorf("expected kill_failed error, got %+v", resp)
	}
}

func TestHandleRequestListBrowsersEmpty(t *testing.T) {
	d := newTestDaemon(t)
	resp := d.handleRequest(Request{Kind: ReqListBrowsers})
	if resp.Kind != RespBrowsers {
		t.Fatalf("expected browsers response, got %v", resp.Kind)
	}
	if len(resp.Browsers) != 0 {
		t.Errorf("expected no browsers, got %d", len(resp.Browsers))
	}
}

func TestHandleRequestReleaseUnknownKeyIsNoop(t *testing.T) {
	d := newTestDaemon(t)
	resp := d.handleRequest(Request{Kind: ReqReleaseBrowser, SessionKey: "nonexistent"})
	if resp.Kind != RespOK {
		t.Errorf("expected ok, got %+v", resp)
	}
}

func TestHandleRequestUnknownKind(t *testing.T) {
	d := newTestDaemon(t)
	resp := d.handleRequest(Request{Kind: "bogus"})
	if resp.Kind != RespError || resp.Code != "unknown_request" {
		t.Errorf("expected unknown_request error, got %+v", resp)
	}
}

func TestSpawnBrowserRejectsNonChromium(t *testing.T) {
	d := newTestDaemon(t)
	_, _, err := d.spawnBrowser("firefox", false, 0, "key")
	if err == nil {
		t.Error("expected error for non-chromium browser kind")
	}
}

func TestSpawnBrowserRejectsOutOfRangePort(t *testing.T) {
	d := newTestDaemon(t)
	_, _, err := d.spawnBrowser("chromium", false, 80, "key")
	if err == nil {
		t.Error("expected error for out-of-range port")
	}
}

func TestReapIdleOnceSkipsActiveSessions(t *testing.T) {
	d := newTestDaemon(t)
	d.browsers[9300] = &instance{info: BrowserInfo{
		Port:       9300,
		SessionKey: "held",
		LastUsedAt: time.Now().Add(-1 * time.Hour).Unix(),
	}}
	d.reapIdleOnce()
	if _, ok := d.browsers[9300]; !ok {
		t.Error("expected browser with an active session key to survive reaping")
	}
}

func TestCDPEndpointFormat(t *testing.T) {
	if got := cdpEndpointFor(9222); got != "http://127.0.0.1:9222" {
		t.Errorf("unexpected endpoint: %q", got)
	}
}

// TestAcquireBrowserConcurrentSameKeySpawnsOnce checks that two concurrent
// AcquireBrowser calls for the same not-yet-seen sessionKey produce exactly
// one launch, not two racing ones. It swaps in a fake, artificially slow
// launch function so every goroutine is guaranteed to reach the byKey miss
// check before any of them finishes spawning, without needing a real
// browser binary.
func TestAcquireBrowserConcurrentSameKeySpawnsOnce(t *testing.T) {
	d := newTestDaemon(t)

	var launchCount int32
	d.launch = func(headless bool, port int) (*rod.Browser, *launcher.Launcher, error) {
		atomic.AddInt32(&launchCount, 1)
		// Give a concurrent, wrongly-unlocked caller a window to race in.
		time.Sleep(20 * time.Millisecond)
		return nil, nil, nil
	}

	const callers = 8
	var wg sync.WaitGroup
	ports := make([]int, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			port, _, err := d.acquireBrowser("chromium", false, "shared-key")
			ports[i] = port
			errs[i] = err
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("caller %d: unexpected error: %v", i, err)
		}
	}
	if got := atomic.LoadInt32(&launchCount); got != 1 {
		t.Fatalf("expected exactly 1 launch for a shared session key, got %d", got)
	}
	for i := 1; i < callers; i++ {
		if ports[i] != ports[0] {
			t.Fatalf("caller %d got port %d, expected %d (all callers should share one instance)", i, ports[i], ports[0])
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.browsers) != 1 {
		t.Fatalf("expected exactly 1 tracked browser instance, got %d", len(d.browsers))
	}
	if port, ok := d.byKey["shared-key"]; !ok || port != ports[0] {
		t.Fatalf("expected byKey[shared-key] = %d, got %d (ok=%v)", ports[0], port, ok)
	}
}
