// Package broker implements the Session Broker: given a request, it hands
// back a connected browser session by trying, in order, an explicit CDP
// endpoint, a stored session descriptor, the daemon, and finally a direct
// launch.
package broker

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"

	"github.com/rebelnerd/pwcli/internal/descriptor"
	"github.com/rebelnerd/pwcli/internal/target"
	"github.com/rebelnerd/pwcli/internal/workspace"
)

// ShutdownMode controls what a SessionHandle.Close tears down.
type ShutdownMode int

const (
	// CloseSessionOnly closes the context and, if this invocation owns the
	// browser, the browser too.
	CloseSessionOnly ShutdownMode = iota
	// KeepBrowserAlive closes the context but leaves the browser running.
	KeepBrowserAlive
	// ShutdownServer closes a launched browser server if any, else falls
	// back to closing the browser.
	ShutdownServer
)

// Request describes the session a caller wants.
type Request struct {
	Browser              workspace.BrowserKind
	Headless             bool
	StorageStatePath      string
	AuthFiles             []string
	PreferredURL          string
	CDPEndpoint           string
	LaunchServer          bool
	RemoteDebuggingPort   int
	KeepBrowserRunning    bool
	ProtectedURLPatterns  []string
	SessionKey            string
	DescriptorPath        string
	DaemonEnabled         bool
	DaemonClient          DaemonClient
	DriverHash            string
}

// DaemonClient is the narrow surface the broker needs from a daemon
// connection; internal/daemon's client implements this.
type DaemonClient interface {
	AcquireBrowser(ctx context.Context, browser workspace.BrowserKind, headless bool, sessionKey string) (endpoint string, port int, err error)
	Ping(ctx context.Context) error
}

// AuthInjectionReport summarizes an inject_auth_files call.
type AuthInjectionReport struct {
	FilesSeen   int
	FilesLoaded int
	CookiesAdded int
}

// Handle is a live, usable browser session.
type Handle struct {
	browser           *rod.Browser
	page              *rod.Page
	wsEndpoint        string
	cdpEndpoint       string
	ownsBrowser       bool
	launchedProc      *launcher.Launcher
	shutdownMode      ShutdownMode
	log               *log.Logger
	protectedPatterns []string
}

func (h *Handle) Page() *rod.Page       { return h.page }
func (h *Handle) Browser() *rod.Browser { return h.browser }
func (h *Handle) WSEndpoint() string    { return h.wsEndpoint }
func (h *Handle) CDPEndpoint() string   { return h.cdpEndpoint }

func (h *Handle) SetShutdownMode(mode ShutdownMode) { h.shutdownMode = mode }
func (h *Handle) ShutdownMode() ShutdownMode         { return h.shutdownMode }

// GotoTarget navigates the handle's page to resolved, unless resolved is
// CurrentPage, in which case the already-selected page is used as-is. A
// target whose URL matches one of the handle's protected patterns is
// refused before any navigation is attempted.
func (h *Handle) GotoTarget(resolved target.Resolved, timeout time.Duration) error {
	if resolved.IsCurrentPage() {
		return nil
	}
	url := resolved.URLString()
	if isProtectedURL(url, h.protectedPatterns) {
		return fmt.Errorf("refusing to navigate: %q matches a protected URL pattern", url)
	}
	page := h.page.Timeout(timeout)
	return page.Navigate(url)
}

// isProtectedURL reports whether url contains any pattern, case-insensitive.
func isProtectedURL(url string, patterns []string) bool {
	lower := strings.ToLower(url)
	for _, p := range patterns {
		if p == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

// Close tears the handle down per its ShutdownMode. CDP-attached handles
// that never owned their browser treat every mode except explicit browser
// ownership as a no-op detach.
func (h *Handle) Close() error {
	if h.page != nil && h.ownsBrowser {
		_ = h.page.Close()
	}
	switch h.shutdownMode {
	case KeepBrowserAlive:
		return nil
	case ShutdownServer:
		if h.launchedProc != nil {
			h.launchedProc.Kill()
			return nil
		}
		fallthrough
	default: // CloseSessionOnly
		if h.ownsBrowser && h.browser != nil {
			return h.browser.Close()
		}
		return nil
	}
}

// CollectFailureArtifacts best-effort captures a screenshot and HTML dump of
// the handle's current page into dir, named after command.
func (h *Handle) CollectFailureArtifacts(dir, command string) (screenshotPath, htmlPath string, err error) {
	if h.page == nil {
		return "", "", fmt.Errorf("no active page to capture artifacts from")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", err
	}
	stamp := time.Now().UTC().Format("20060102T150405Z")

	shotPath := fmt.Sprintf("%s/%s-%s.png", dir, command, stamp)
	if bin, shotErr := h.page.Screenshot(false, nil); shotErr == nil {
		if writeErr := os.WriteFile(shotPath, bin, 0o644); writeErr == nil {
			screenshotPath = shotPath
		}
	}

	htmlOutPath := fmt.Sprintf("%s/%s-%s.html", dir, command, stamp)
	if html, htmlErr := h.page.HTML(); htmlErr == nil {
		if writeErr := os.WriteFile(htmlOutPath, []byte(html), 0o644); writeErr == nil {
			htmlPath = htmlOutPath
		}
	}
	return screenshotPath, htmlPath, nil
}

// Broker acquires sessions on behalf of command handlers.
type Broker struct {
	log        *log.Logger
	driverHash string
}

// New constructs a Broker. driverHash fingerprints the installed browser
// driver so stale descriptors can be detected.
func New(logger *log.Logger, driverHash string) *Broker {
	if logger == nil {
		logger = log.New(os.Stderr, "[broker] ", log.LstdFlags)
	}
	return &Broker{log: logger, driverHash: driverHash}
}

// Session acquires a usable session for req, trying each acquisition step in
// order until one yields a connected browser.
func (b *Broker) Session(ctx context.Context, req Request) (*Handle, error) {
	h, err := b.acquire(ctx, req)
	if err != nil {
		return nil, err
	}
	b.applySessionConfig(h, req)
	return h, nil
}

func (b *Broker) acquire(ctx context.Context, req Request) (*Handle, error) {
	if req.CDPEndpoint != "" {
		if h, err := b.attachCDP(ctx, req.CDPEndpoint, req.PreferredURL, false); err == nil {
			return h, nil
		} else {
			b.log.Printf("explicit cdp endpoint %s unusable: %v", req.CDPEndpoint, err)
		}
	}

	if req.DescriptorPath != "" {
		if h, err := b.attachDescriptor(ctx, req); err == nil {
			return h, nil
		}
	}

	if req.DaemonEnabled && req.DaemonClient != nil {
		if h, err := b.attachDaemon(ctx, req); err == nil {
			return h, nil
		} else {
			b.log.Printf("daemon acquisition failed, falling back to direct launch: %v", err)
		}
	}

	return b.directLaunch(ctx, req)
}

func (b *Broker) attachCDP(ctx context.Context, endpoint, preferredURL string, owns bool) (*Handle, error) {
	br := rod.New().ControlURL(endpoint).Context(ctx)
	if err := br.Connect(); err != nil {
		return nil, fmt.Errorf("connect to cdp endpoint %s: %w", endpoint, err)
	}

	page, err := selectPage(br, preferredURL)
	if err != nil {
		return nil, err
	}

	return &Handle{
		browser:      br,
		page:         page,
		cdpEndpoint:  endpoint,
		ownsBrowser:  owns,
		shutdownMode: CloseSessionOnly,
		log:          b.log,
	}, nil
}

// selectPage picks the page whose URL best matches preferredURL; if none
// matches, the newest page; if none exists, a fresh page is created.
func selectPage(br *rod.Browser, preferredURL string) (*rod.Page, error) {
	pages, err := br.Pages()
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	if preferredURL != "" {
		for _, p := range pages {
			info, err := p.Info()
			if err == nil && info.URL == preferredURL {
				return p, nil
			}
		}
	}
	if len(pages) > 0 {
		return pages[len(pages)-1], nil
	}
	return br.Page(proto.TargetCreateTarget{URL: "about:blank"})
}

func (b *Broker) attachDescriptor(ctx context.Context, req Request) (*Handle, error) {
	d, ok, err := descriptor.Load(req.DescriptorPath)
	if err != nil || !ok {
		return nil, fmt.Errorf("no usable descriptor")
	}
	if !d.MatchesDriver(b.driverHash) || !d.IsAlive(ctx) {
		_ = os.Remove(req.DescriptorPath)
		return nil, fmt.Errorf("descriptor stale")
	}
	return b.attachCDP(ctx, d.Endpoint(), req.PreferredURL, false)
}

func (b *Broker) attachDaemon(ctx context.Context, req Request) (*Handle, error) {
	endpoint, _, err := req.DaemonClient.AcquireBrowser(ctx, req.Browser, req.Headless, req.SessionKey)
	if err != nil {
		return nil, err
	}
	return b.attachCDP(ctx, endpoint, req.PreferredURL, false)
}

// directLaunch spawns a browser via the driver and writes a fresh session
// descriptor unless the invocation is a one-shot that doesn't want the
// browser kept alive.
func (b *Broker) directLaunch(ctx context.Context, req Request) (*Handle, error) {
	if req.Browser != "" && req.Browser != workspace.BrowserChromium {
		return nil, fmt.Errorf("direct launch only supports chromium, got %s", req.Browser)
	}

	l := launcher.New().Headless(req.Headless)
	if req.RemoteDebuggingPort != 0 {
		l = l.Set(flags.Flag("remote-debugging-port"), fmt.Sprintf("%d", req.RemoteDebuggingPort))
	}
	if req.LaunchServer {
		l = l.Leakless(!req.KeepBrowserRunning)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	br := rod.New().ControlURL(controlURL).Context(ctx)
	if err := br.Connect(); err != nil {
		return nil, fmt.Errorf("connect to launched browser: %w", err)
	}

	page, err := br.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}

	handle := &Handle{
		browser:      br,
		page:         page,
		wsEndpoint:   controlURL,
		ownsBrowser:  true,
		launchedProc: l,
		shutdownMode: CloseSessionOnly,
		log:          b.log,
	}

	if req.DescriptorPath != "" && req.KeepBrowserRunning {
		d := descriptor.Descriptor{
			SchemaVersion: descriptor.CurrentSchemaVersion,
			Browser:       string(workspace.BrowserChromium),
			Headless:      req.Headless,
			CDPEndpoint:   controlURL,
			WSEndpoint:    controlURL,
			SessionKey:    req.SessionKey,
			DriverHash:    b.driverHash,
			PID:           l.PID(),
			CreatedAt:     time.Now().Unix(),
		}
		if err := descriptor.Save(req.DescriptorPath, d); err != nil {
			b.log.Printf("failed to persist session descriptor: %v", err)
		}
	}

	return handle, nil
}

// applySessionConfig applies storage state, auth-file cookie injection,
// and protected-URL guarding to a freshly acquired session, regardless of
// which acquisition step produced it. Failures here are logged, never
// fatal to acquisition.
func (b *Broker) applySessionConfig(h *Handle, req Request) {
	h.protectedPatterns = req.ProtectedURLPatterns

	if req.StorageStatePath != "" {
		state, err := loadStorageState(req.StorageStatePath)
		if err != nil {
			b.log.Printf("skipping unusable storage state %s: %v", req.StorageStatePath, err)
		} else if cookies := toNetworkCookies(state.Cookies); len(cookies) > 0 {
			if err := h.browser.SetCookies(cookies); err != nil {
				b.log.Printf("failed to apply storage state %s: %v", req.StorageStatePath, err)
			}
		}
	}

	if len(req.AuthFiles) > 0 {
		report := b.InjectAuthFiles(h, req.AuthFiles)
		b.log.Printf("auth injection: seen=%d loaded=%d cookies=%d", report.FilesSeen, report.FilesLoaded, report.CookiesAdded)
	}
}

// InjectAuthFiles parses each storage-state file, extracts its cookies, and
// injects them into h's browser context. Per-file parse/IO failures are
// logged and skipped; they never fail the overall injection.
func (b *Broker) InjectAuthFiles(h *Handle, paths []string) AuthInjectionReport {
	report := AuthInjectionReport{FilesSeen: len(paths)}
	for _, path := range paths {
		state, err := loadStorageState(path)
		if err != nil {
			b.log.Printf("skipping malformed auth file %s: %v", path, err)
			continue
		}
		cookies := toNetworkCookies(state.Cookies)
		if len(cookies) > 0 {
			if err := h.browser.SetCookies(cookies); err != nil {
				b.log.Printf("failed to inject cookies from %s: %v", path, err)
				continue
			}
		}
		report.FilesLoaded++
		report.CookiesAdded += len(cookies)
	}
	return report
}
