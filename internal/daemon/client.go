package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rebelnerd/pwcli/internal/workspace"
)

// Client is a thin JSON-line client for talking to a running daemon. It
// satisfies broker.DaemonClient.
type Client struct {
	stateRoot string
	timeout   time.Duration
}

// NewClient constructs a Client for the daemon rooted at stateRoot.
func NewClient(stateRoot string) *Client {
	return &Client{stateRoot: stateRoot, timeout: 5 * time.Second}
}

// Reachable reports whether a daemon is listening and responsive.
func (c *Client) Reachable(ctx context.Context) bool {
	return c.Ping(ctx) == nil
}

// Ping round-trips a ping request.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.call(ctx, Request{Kind: ReqPing})
	if err != nil {
		return err
	}
	if resp.Kind != RespPong {
		return fmt.Errorf("unexpected response to ping: %s", resp.Kind)
	}
	return nil
}

// AcquireBrowser requests a reused-or-freshly-spawned browser for sessionKey.
func (c *Client) AcquireBrowser(ctx context.Context, browser workspace.BrowserKind, headless bool, sessionKey string) (string, int, error) {
	resp, err := c.call(ctx, Request{
		Kind:       ReqAcquireBrowser,
		Browser:    browser,
		Headless:   headless,
		SessionKey: sessionKey,
	})
	if err != nil {
		return "", 0, err
	}
	if resp.Kind == RespError {
		return "", 0, fmt.Errorf("%s: %s", resp.Code, resp.Message)
	}
	return resp.CDPEndpoint, resp.Port, nil
}

// SpawnBrowser requests a brand-new browser, optionally on a specific port.
func (c *Client) SpawnBrowser(ctx context.Context, browser workspace.BrowserKind, headless bool, port int) (string, int, error) {
	resp, err := c.call(ctx, Request{Kind: ReqSpawnBrowser, Browser: browser, Headless: headless, Port: port})
	if err != nil {
		return "", 0, err
	}
	if resp.Kind == RespError {
		return "", 0, fmt.Errorf("%s: %s", resp.Code, resp.Message)
	}
	return resp.CDPEndpoint, resp.Port, nil
}

// KillBrowser tears down the browser on port.
func (c *Client) KillBrowser(ctx context.Context, port int) error {
	resp, err := c.call(ctx, Request{Kind: ReqKillBrowser, Port: port})
	if err != nil {
		return err
	}
	if resp.Kind == RespError {
		return fmt.Errorf("%s: %s", resp.Code, resp.Message)
	}
	return nil
}

// ReleaseBrowser drops sessionKey's reservation without closing the browser.
func (c *Client) ReleaseBrowser(ctx context.Context, sessionKey string) error {
	resp, err := c.call(ctx, Request{Kind: ReqReleaseBrowser, SessionKey: sessionKey})
	if err != nil {
		return err
	}
	if resp.Kind == RespError {
		return fmt.Errorf("%s: %s", resp.Code, resp.Message)
	}
	return nil
}

// ListBrowsers returns every browser the daemon currently tracks.
func (c *Client) ListBrowsers(ctx context.Context) ([]BrowserInfo, error) {
	resp, err := c.call(ctx, Request{Kind: ReqListBrowsers})
	if err != nil {
		return nil, err
	}
	if resp.Kind == RespError {
		return nil, fmt.Errorf("%s: %s", resp.Code, resp.Message)
	}
	return resp.Browsers, nil
}

// Shutdown asks the daemon to close every browser and exit.
func (c *Client) Shutdown(ctx context.Context) error {
	resp, err := c.call(ctx, Request{Kind: ReqShutdown})
	if err != nil {
		return err
	}
	if resp.Kind == RespError {
		return fmt.Errorf("%s: %s", resp.Code, resp.Message)
	}
	return nil
}

func (c *Client) call(ctx context.Context, req Request) (Response, error) {
	deadline := time.Now().Add(c.timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}

	conn, err := dial(c.stateRoot)
	if err != nil {
		return Response{}, fmt.Errorf("dial daemon: %w", err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(deadline)

	raw, err := json.Marshal(req)
	if err != nil {
		return Response{}, err
	}
	if _, err := conn.Write(append(raw, '\n')); err != nil {
		return Response{}, fmt.Errorf("write request: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return Response{}, fmt.Errorf("read response: %w", err)
		}
		return Response{}, fmt.Errorf("daemon closed connection without a response")
	}

	var resp Response
	if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}
	return resp, nil
}
