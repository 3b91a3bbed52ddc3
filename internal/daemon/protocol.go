// Package daemon implements the long-lived browser-holding process: a Unix
// domain socket (loopback TCP on Windows) server that keeps Chromium
// instances warm across CLI invocations and hands them out by session key.
package daemon

import "github.com/rebelnerd/pwcli/internal/workspace"

// PortRangeStart and PortRangeEnd bound the daemon's managed CDP ports.
const (
	PortRangeStart = 9222
	PortRangeEnd   = 10221
)

// RequestKind names a daemon IPC operation.
type RequestKind string

const (
	ReqPing           RequestKind = "ping"
	ReqAcquireBrowser RequestKind = "acquire_browser"
	ReqSpawnBrowser   RequestKind = "spawn_browser"
	ReqGetBrowser     RequestKind = "get_browser"
	ReqKillBrowser    RequestKind = "kill_browser"
	ReqReleaseBrowser RequestKind = "release_browser"
	ReqListBrowsers   RequestKind = "list_browsers"
	ReqShutdown       RequestKind = "shutdown"
)

// Request is one line of the daemon's line-delimited JSON protocol.
type Request struct {
	Kind       RequestKind           `json:"kind"`
	Browser    workspace.BrowserKind `json:"browser,omitempty"`
	Headless   bool                  `json:"headless,omitempty"`
	SessionKey string                `json:"sessionKey,omitempty"`
	Port       int                   `json:"port,omitempty"`
}

// ResponseKind names the shape of a daemon response.
type ResponseKind string

const (
	RespPong     ResponseKind = "pong"
	RespBrowser  ResponseKind = "browser"
	RespBrowsers ResponseKind = "browsers"
	RespOK       ResponseKind = "ok"
	RespError    ResponseKind = "error"
)

// BrowserInfo describes one daemon-managed browser for list_browsers.
type BrowserInfo struct {
	Port       int                   `json:"port"`
	Browser    workspace.BrowserKind `json:"browser"`
	Headless   bool                  `json:"headless"`
	CreatedAt  int64                 `json:"createdAt"`
	SessionKey string                `json:"sessionKey,omitempty"`
	LastUsedAt int64                 `json:"lastUsedAt"`
}

// Response is one line of the daemon's reply stream.
type Response struct {
	Kind        ResponseKind  `json:"kind"`
	CDPEndpoint string        `json:"cdpEndpoint,omitempty"`
	Port        int           `json:"port,omitempty"`
	Browsers    []BrowserInfo `json:"browsers,omitempty"`
	Code        string        `json:"code,omitempty"`
	Message     string        `json:"message,omitempty"`
}

func errorResponse(code string, err error) Response {
	return Response{Kind: RespError, Code: code, Message: err.Error()}
}
