package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"

	"github.com/rebelnerd/pwcli/internal/workspace"
)

// DefaultIdleTimeout is how long a released (session-key-cleared) browser
// may sit idle before the reaper closes it.
const DefaultIdleTimeout = 30 * time.Minute

// DefaultReapInterval is how often the idle reaper sweeps by default.
const DefaultReapInterval = 5 * time.Minute

type instance struct {
	info    BrowserInfo
	browser *rod.Browser
	proc    *launcher.Launcher
}

// Daemon holds every browser it has spawned, keyed by CDP port, plus a
// session-key index for reuse lookups.
type Daemon struct {
	log          *log.Logger
	stateRoot    string
	mu           sync.Mutex
	browsers     map[int]*instance
	byKey        map[string]int
	listener     net.Listener
	shutdownCh   chan struct{}
	idleTimeout  time.Duration
	reapInterval time.Duration
	launch       func(headless bool, port int) (*rod.Browser, *launcher.Launcher, error)
}

// New constructs a Daemon rooted at stateRoot (typically a workspace's
// versioned state directory), reaping idle browsers on the default schedule.
func New(logger *log.Logger, stateRoot string) *Daemon {
	return NewWithReapSchedule(logger, stateRoot, DefaultIdleTimeout, DefaultReapInterval)
}

// NewWithReapSchedule is New with an explicit idle timeout/reap interval,
// typically sourced from WorkspaceSettings.
func NewWithReapSchedule(logger *log.Logger, stateRoot string, idleTimeout, reapInterval time.Duration) *Daemon {
	if logger == nil {
		logger = log.New(os.Stderr, "[daemon] ", log.LstdFlags)
	}
	return &Daemon{
		log:          logger,
		stateRoot:    stateRoot,
		idleTimeout:  idleTimeout,
		reapInterval: reapInterval,
		browsers:     make(map[int]*instance),
		byKey:        make(map[string]int),
		shutdownCh:   make(chan struct{}),
		launch:       launchChromium,
	}
}

// launchChromium is the default launch seam: start a real Chromium and
// connect to it over CDP. Swapped out in tests that need to exercise the
// locking around spawnBrowserLocked without a real browser binary.
func launchChromium(headless bool, port int) (*rod.Browser, *launcher.Launcher, error) {
	l := launcher.New().
		Headless(headless).
		Set(flags.Flag("remote-debugging-port"), fmt.Sprintf("%d", port))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, nil, fmt.Errorf("launch browser: %w", err)
	}

	br := rod.New().ControlURL(controlURL)
	if err := br.Connect(); err != nil {
		return nil, nil, fmt.Errorf("connect to launched browser: %w", err)
	}
	return br, l, nil
}

// Run binds the daemon's socket and serves connections until ctx is
// cancelled or a shutdown request arrives. It also installs SIGINT/SIGTERM
// handling and starts the idle reaper.
func (d *Daemon) Run(ctx context.Context) error {
	l, addr, err := listen(d.stateRoot)
	if err != nil {
		return fmt.Errorf("bind daemon listener: %w", err)
	}
	d.listener = l
	d.log.Printf("listening on %s", addr)

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go d.reapIdleLoop(sigCtx)

	acceptErrs := make(chan error, 1)
	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				acceptErrs <- err
				return
			}
			go d.handleConn(conn)
		}
	}()

	select {
	case <-sigCtx.Done():
		d.log.Printf("shutting down on signal")
	case <-d.shutdownCh:
		d.log.Printf("shutting down on request")
	case err := <-acceptErrs:
		d.log.Printf("accept loop ended: %v", err)
	}

	_ = l.Close()
	d.shutdownAll()
	return nil
}

func (d *Daemon) handleConn(conn net.Conn) {
	defer conn.Close()
	reader := bufio.NewScanner(conn)
	reader.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	writer := bufio.NewWriter(conn)

	for reader.Scan() {
		line := reader.Bytes()
		var req Request
		var resp Response
		if err := json.Unmarshal(line, &req); err != nil {
			resp = errorResponse("invalid_request", err)
		} else {
			resp = d.handleRequest(req)
		}
		raw, err := json.Marshal(resp)
		if err != nil {
			d.log.Printf("failed to marshal response: %v", err)
			continue
		}
		if _, err := writer.Write(append(raw, '\n')); err != nil {
			d.log.Printf("failed writing response: %v", err)
			return
		}
		if err := writer.Flush(); err != nil {
			d.log.Printf("failed flushing response: %v", err)
			return
		}
	}
}

func (d *Daemon) handleRequest(req Request) Response {
	switch req.Kind {
	case ReqPing:
		return Response{Kind: RespPong}

	case ReqAcquireBrowser:
		port, endpoint, err := d.acquireBrowser(req.Browser, req.Headless, req.SessionKey)
		if err != nil {
			return errorResponse("acquire_failed", err)
		}
		return Response{Kind: RespBrowser, CDPEndpoint: endpoint, Port: port}

	case ReqSpawnBrowser:
		sessionKey := req.SessionKey
		if sessionKey == "" {
			sessionKey = fmt.Sprintf("spawn:%s:%v:%d", req.Browser, req.Headless, time.Now().Unix())
		}
		port, endpoint, err := d.spawnBrowser(req.Browser, req.Headless, req.Port, sessionKey)
		if err != nil {
			return errorResponse("spawn_failed", err)
		}
		return Response{Kind: RespBrowser, CDPEndpoint: endpoint, Port: port}

	case ReqGetBrowser:
		d.mu.Lock()
		_, ok := d.browsers[req.Port]
		d.mu.Unlock()
		if !ok {
			return errorResponse("not_found", fmt.Errorf("no browser on port %d", req.Port))
		}
		return Response{Kind: RespBrowser, CDPEndpoint: cdpEndpointFor(req.Port), Port: req.Port}

	case ReqKillBrowser:
		if err := d.killBrowser(req.Port); err != nil {
			return errorResponse("kill_failed", err)
		}
		return Response{Kind: RespOK}

	case ReqReleaseBrowser:
		d.releaseBrowser(req.SessionKey)
		return Response{Kind: RespOK}

	case ReqListBrowsers:
		d.mu.Lock()
		list := make([]BrowserInfo, 0, len(d.browsers))
		for _, inst := range d.browsers {
			list = append(list, inst.info)
		}
		d.mu.Unlock()
		return Response{Kind: RespBrowsers, Browsers: list}

	case ReqShutdown:
		close(d.shutdownCh)
		return Response{Kind: RespOK}

	default:
		return errorResponse("unknown_request", fmt.Errorf("unrecognized request kind %q", req.Kind))
	}
}

// acquireBrowser reuses a connected browser under sessionKey if one exists,
// otherwise spawns a fresh one. The whole byKey-miss-then-spawn path runs
// under d.mu so two concurrent acquires for the same not-yet-existing
// sessionKey produce exactly one launch, not two racing ones.
func (d *Daemon) acquireBrowser(browser workspace.BrowserKind, headless bool, sessionKey string) (int, string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if port, ok := d.byKey[sessionKey]; ok {
		if inst, ok := d.browsers[port]; ok {
			if _, err := inst.browser.Version(); err == nil {
				inst.info.LastUsedAt = time.Now().Unix()
				d.log.Printf("reusing browser on port %d for session %s", port, sessionKey)
				return port, cdpEndpointFor(port), nil
			}
			d.log.Printf("browser on port %d disconnected, evicting", port)
			delete(d.browsers, port)
			delete(d.byKey, sessionKey)
		}
	}

	return d.spawnBrowserLocked(browser, headless, 0, sessionKey)
}

// spawnBrowser takes d.mu itself; used by the ReqSpawnBrowser request path,
// which is independent of the session-key reuse lookup above.
func (d *Daemon) spawnBrowser(browser workspace.BrowserKind, headless bool, requestedPort int, sessionKey string) (int, string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.spawnBrowserLocked(browser, headless, requestedPort, sessionKey)
}

// spawnBrowserLocked does the actual port allocation and browser launch. The
// caller must hold d.mu for its entire duration, including the launch
// itself, so the sessionKey claim and the launch are one atomic step.
func (d *Daemon) spawnBrowserLocked(browser workspace.BrowserKind, headless bool, requestedPort int, sessionKey string) (int, string, error) {
	if browser != "" && browser != workspace.BrowserChromium {
		return 0, "", fmt.Errorf("daemon-managed browsers currently require chromium")
	}

	port := requestedPort
	if port != 0 {
		if port < PortRangeStart || port > PortRangeEnd {
			return 0, "", fmt.Errorf("port %d outside allowed range [%d,%d]", port, PortRangeStart, PortRangeEnd)
		}
		if _, taken := d.browsers[port]; taken {
			return 0, "", fmt.Errorf("port %d already assigned", port)
		}
	} else {
		var err error
		port, err = d.findAvailablePortLocked()
		if err != nil {
			return 0, "", err
		}
	}

	d.log.Printf("launching browser on port %d headless=%v session=%s", port, headless, sessionKey)
	br, proc, err := d.launch(headless, port)
	if err != nil {
		return 0, "", err
	}

	now := time.Now().Unix()
	info := BrowserInfo{
		Port:       port,
		Browser:    workspace.BrowserChromium,
		Headless:   headless,
		CreatedAt:  now,
		SessionKey: sessionKey,
		LastUsedAt: now,
	}

	d.browsers[port] = &instance{info: info, browser: br, proc: proc}
	d.byKey[sessionKey] = port

	return port, cdpEndpointFor(port), nil
}

func (d *Daemon) releaseBrowser(sessionKey string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if port, ok := d.byKey[sessionKey]; ok {
		delete(d.byKey, sessionKey)
		if inst, ok := d.browsers[port]; ok {
			inst.info.SessionKey = ""
		}
	}
}

func (d *Daemon) killBrowser(port int) error {
	d.mu.Lock()
	inst, ok := d.browsers[port]
	if !ok {
		d.mu.Unlock()
		return fmt.Errorf("no browser on port %d", port)
	}
	if inst.info.SessionKey != "" {
		delete(d.byKey, inst.info.SessionKey)
	}
	delete(d.browsers, port)
	d.mu.Unlock()

	if err := inst.browser.Close(); err != nil {
		d.log.Printf("error closing browser on port %d: %v", port, err)
	}
	if inst.proc != nil {
		inst.proc.Kill()
	}
	return nil
}

func (d *Daemon) shutdownAll() {
	d.mu.Lock()
	ports := make([]int, 0, len(d.browsers))
	for port := range d.browsers {
		ports = append(ports, port)
	}
	d.mu.Unlock()

	for _, port := range ports {
		if err := d.killBrowser(port); err != nil {
			d.log.Printf("shutdown: %v", err)
		}
	}
}

// reapIdleLoop periodically evicts browsers that have had no session-key
// reference refresh for longer than IdleTimeout. This resolves an idle-browser
// accumulation concern the original design left as an open question: a daemon
// that never reaps will eventually exhaust the port range under sustained use.
func (d *Daemon) reapIdleLoop(ctx context.Context) {
	ticker := time.NewTicker(d.reapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.reapIdleOnce()
		}
	}
}

func (d *Daemon) reapIdleOnce() {
	cutoff := time.Now().Add(-d.idleTimeout).Unix()
	d.mu.Lock()
	var stale []int
	for port, inst := range d.browsers {
		if inst.info.SessionKey == "" && inst.info.LastUsedAt < cutoff {
			stale = append(stale, port)
		}
	}
	d.mu.Unlock()

	for _, port := range stale {
		d.log.Printf("reaping idle browser on port %d", port)
		if err := d.killBrowser(port); err != nil {
			d.log.Printf("reap: %v", err)
		}
	}
}

func (d *Daemon) findAvailablePortLocked() (int, error) {
	for port := PortRangeStart; port <= PortRangeEnd; port++ {
		if _, taken := d.browsers[port]; taken {
			continue
		}
		if portAvailable(port) {
			return port, nil
		}
	}
	return 0, fmt.Errorf("no available ports in range [%d,%d]", PortRangeStart, PortRangeEnd)
}

func portAvailable(port int) bool {
	l, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return false
	}
	_ = l.Close()
	return true
}

func cdpEndpointFor(port int) string {
	return fmt.Sprintf("http://127.0.0.1:%d", port)
}
