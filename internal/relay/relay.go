// Package relay implements the CDP Relay: a WebSocket bridge that lets a
// browser extension stand in for a real Chrome instance, fronting it with a
// CDP surface that Playwright-style clients can attach to.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ExtensionTimeout bounds how long the relay waits for the extension to
// answer a forwarded command before failing the originating client's call.
const ExtensionTimeout = 30 * time.Second

// protocolVersion is reported to the extension in the welcome reply so it
// can refuse to bridge against an incompatible relay build.
const protocolVersion = "1"

// helloMessage is the extension's opening frame, proving it holds the
// token the operator configured for this relay.
type helloMessage struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// connectedTarget mirrors the extension's view of one attached browser tab.
type connectedTarget struct {
	SessionID  string
	TargetID   string
	TargetInfo map[string]any
}

type pendingCall struct {
	result chan callResult
}

type callResult struct {
	value map[string]any
	err   string
}

// state is the relay's mutable core: exactly one extension connection, any
// number of client connections, and the bookkeeping needed to bridge them.
type state struct {
	mu               sync.Mutex
	extensionSend    func([]byte) bool
	clients          map[string]func([]byte) bool
	connectedTargets map[string]connectedTarget
	pending          map[uint64]pendingCall
	nextExtensionID  uint64
}

func newState() *state {
	return &state{
		clients:          make(map[string]func([]byte) bool),
		connectedTargets: make(map[string]connectedTarget),
		pending:          make(map[uint64]pendingCall),
	}
}

// clearExtension drops the current extension connection and fails every
// pending request, since none of them will ever be answered now.
func (s *state) clearExtension() {
	s.extensionSend = nil
	s.connectedTargets = make(map[string]connectedTarget)
	for id, p := range s.pending {
		p.result <- callResult{err: "Extension connection closed"}
		delete(s.pending, id)
	}
}

// Server hosts the relay's HTTP/WebSocket endpoints.
type Server struct {
	log      *log.Logger
	state    *state
	upgrader websocket.Upgrader
	token    string
}

// New constructs a relay Server. token is the secret the extension must
// echo back in its hello message; an empty token disables the check.
func New(logger *log.Logger, token string) *Server {
	if logger == nil {
		logger = log.New(os.Stderr, "[relay] ", log.LstdFlags)
	}
	return &Server{
		log:   logger,
		state: newState(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		token: token,
	}
}

// Handler builds the relay's HTTP mux: "/" health check, "/extension" for
// the single browser extension, "/cdp" and "/cdp/{client_id}" for clients.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "OK")
	})
	mux.HandleFunc("/extension", s.handleExtensionUpgrade)
	mux.HandleFunc("/cdp", func(w http.ResponseWriter, r *http.Request) {
		s.handleClientUpgrade(w, r, "default")
	})
	mux.HandleFunc("/cdp/", func(w http.ResponseWriter, r *http.Request) {
		clientID := r.URL.Path[len("/cdp/"):]
		if clientID == "" {
			clientID = "default"
		}
		s.handleClientUpgrade(w, r, clientID)
	})
	return mux
}

// ListenAndServe binds addr and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler()}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	s.log.Printf("cdp relay listening on %s", addr)
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleExtensionUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Printf("extension upgrade failed: %v", err)
		return
	}
	s.handleExtensionSocket(conn)
}

func (s *Server) handleClientUpgrade(w http.ResponseWriter, r *http.Request, clientID string) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Printf("client %s upgrade failed: %v", clientID, err)
		return
	}
	s.handleClientSocket(conn, clientID)
}

// performHandshake reads the extension's opening frame and verifies it is
// a hello carrying the configured token before any other state is touched.
// It writes welcome/rejected itself and reports whether the caller should
// proceed to treat conn as the authoritative extension connection.
func (s *Server) performHandshake(conn *websocket.Conn) bool {
	_, raw, err := conn.ReadMessage()
	if err != nil {
		s.log.Printf("extension disconnected before hello: %v", err)
		return false
	}

	var hello helloMessage
	if err := json.Unmarshal(raw, &hello); err != nil || hello.Type != "hello" {
		s.log.Printf("extension sent invalid hello frame")
		s.writeRejected(conn, "expected a hello message")
		return false
	}

	if s.token != "" && hello.Token != s.token {
		s.log.Printf("extension hello rejected: bad token")
		s.writeRejected(conn, "invalid token")
		return false
	}

	welcome, err := json.Marshal(map[string]any{"type": "welcome", "version": protocolVersion})
	if err != nil {
		s.log.Printf("failed to marshal welcome: %v", err)
		return false
	}
	if err := conn.WriteMessage(websocket.TextMessage, welcome); err != nil {
		s.log.Printf("failed to send welcome: %v", err)
		return false
	}

	s.log.Printf("extension authenticated")
	return true
}

func (s *Server) writeRejected(conn *websocket.Conn, reason string) {
	rejected, err := json.Marshal(map[string]any{"type": "rejected", "reason": reason})
	if err != nil {
		return
	}
	_ = conn.WriteMessage(websocket.TextMessage, rejected)
}

func (s *Server) handleExtensionSocket(conn *websocket.Conn) {
	s.log.Printf("extension connected, awaiting hello")
	defer conn.Close()

	if !s.performHandshake(conn) {
		return
	}

	writeCh := make(chan []byte, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range writeCh {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}()

	send := func(msg []byte) bool {
		select {
		case writeCh <- msg:
			return true
		default:
			return false
		}
	}

	s.state.mu.Lock()
	if s.state.extensionSend != nil {
		s.log.Printf("replacing existing extension connection")
		s.state.clearExtension()
	}
	s.state.extensionSend = send
	s.state.mu.Unlock()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if err := s.handleExtensionMessage(raw); err != nil {
			s.log.Printf("failed handling extension message: %v", err)
		}
	}

	s.state.mu.Lock()
	s.state.clearExtension()
	clientSends := make([]func([]byte) bool, 0, len(s.state.clients))
	for _, send := range s.state.clients {
		clientSends = append(clientSends, send)
	}
	s.state.clients = make(map[string]func([]byte) bool)
	s.state.mu.Unlock()

	for _, send := range clientSends {
		send(nil)
	}

	close(writeCh)
	<-done
	s.log.Printf("extension disconnected")
}

func (s *Server) handleClientSocket(conn *websocket.Conn, clientID string) {
	s.log.Printf("client %s connected", clientID)
	defer conn.Close()

	writeCh := make(chan []byte, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range writeCh {
			if msg == nil {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}()

	send := func(msg []byte) bool {
		select {
		case writeCh <- msg:
			return true
		default:
			return false
		}
	}

	s.state.mu.Lock()
	s.state.clients[clientID] = send
	s.state.mu.Unlock()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if err := s.handleClientMessage(clientID, raw); err != nil {
			s.log.Printf("client %s message error: %v", clientID, err)
		}
	}

	s.state.mu.Lock()
	delete(s.state.clients, clientID)
	s.state.mu.Unlock()

	close(writeCh)
	<-done
	s.log.Printf("client %s disconnected", clientID)
}

func (s *Server) sendToClients(clientID string, message map[string]any) {
	payload, err := json.Marshal(message)
	if err != nil {
		s.log.Printf("failed to marshal outbound message: %v", err)
		return
	}

	s.state.mu.Lock()
	var targets []func([]byte) bool
	if clientID != "" {
		if send, ok := s.state.clients[clientID]; ok {
			targets = append(targets, send)
		}
	} else {
		for _, send := range s.state.clients {
			targets = append(targets, send)
		}
	}
	s.state.mu.Unlock()

	for _, send := range targets {
		send(payload)
	}
}

func (s *Server) snapshotTargets() []connectedTarget {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	out := make([]connectedTarget, 0, len(s.state.connectedTargets))
	for _, t := range s.state.connectedTargets {
		out = append(out, t)
	}
	return out
}

// sendToExtension forwards method/params to the extension and blocks for
// its reply (or the timeout/disconnect path), mirroring the request/
// response pairing the extension-side bridge expects.
func (s *Server) sendToExtension(method string, params map[string]any, sessionID string) (map[string]any, error) {
	s.state.mu.Lock()
	send := s.state.extensionSend
	if send == nil {
		s.state.mu.Unlock()
		return nil, fmt.Errorf("extension not connected")
	}
	s.state.nextExtensionID++
	id := s.state.nextExtensionID
	result := make(chan callResult, 1)
	s.state.pending[id] = pendingCall{result: result}
	s.state.mu.Unlock()

	forwardParams := map[string]any{"method": method, "params": params}
	if sessionID != "" {
		forwardParams["sessionId"] = sessionID
	}
	req := map[string]any{"id": id, "method": "forwardCDPCommand", "params": forwardParams}
	raw, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	if !send(raw) {
		return nil, fmt.Errorf("failed to send to extension")
	}

	select {
	case res := <-result:
		if res.err != "" {
			return nil, fmt.Errorf("%s", res.err)
		}
		return res.value, nil
	case <-time.After(ExtensionTimeout):
		s.state.mu.Lock()
		delete(s.state.pending, id)
		s.state.mu.Unlock()
		return nil, fmt.Errorf("timed out waiting for extension response")
	}
}

func parseUint64(s string) (uint64, bool) {
	n, err := strconv.ParseUint(s, 10, 64)
	return n, err == nil
}
