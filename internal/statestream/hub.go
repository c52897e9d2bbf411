package statestream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"workset/internal/engine"
	"workset/internal/workspace"
)

// writeDeadline is the maximum time allowed for a single WebSocket write to
// complete. Generous for localhost; a client frozen longer than this is
// considered dead.
const writeDeadline = 5 * time.Second

// readDeadline is the maximum time the server waits for any read activity
// (including pong responses) before considering the connection dead.
// 90 seconds allows ~3 missed pings (pingInterval=30s) before timeout.
const readDeadline = 90 * time.Second

// pingInterval is the interval between server-initiated WebSocket pings.
const pingInterval = 30 * time.Second

// maxReadMessageSize limits incoming WebSocket messages. Clients are not
// expected to send anything meaningful; this bounds the read pump.
const maxReadMessageSize = 4 * 1024

// wsUpgrader is a package-level Upgrader to avoid repeated allocation on each
// connection upgrade. The Upgrader is stateless and safe for reuse.
var wsUpgrader = websocket.Upgrader{
	// CheckOrigin allows all origins because the server binds to 127.0.0.1
	// only; external hosts cannot reach it.
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  1024,
	WriteBufferSize: 16 * 1024,
}

// HubOptions configures the state stream server.
type HubOptions struct {
	// Addr is the listen address. Use "127.0.0.1:0" for OS-assigned port.
	// 127.0.0.1 binding restricts access to localhost only.
	Addr string
}

// Hub manages a single WebSocket connection streaming workspace state to an
// observer (status bar widget, dashboard page).
//
// Design: single-connection model. New connections replace existing ones so
// an observer reload reconnects cleanly.
//
// Lock ordering (never acquire in reverse):
//
//	writeMu -> mu
//
// mu protects connection state and the cached last state snapshot.
// writeMu serializes gorilla/websocket WriteMessage calls (not concurrency-safe).
//
// Write failure policy: any write failure disconnects the client via
// clearIfCurrent+closeConn. The client must reconnect.
type Hub struct {
	opts HubOptions

	// mu protects conn and lastState. See lock ordering comment on Hub.
	mu        sync.RWMutex
	conn      *websocket.Conn
	lastState []byte // most recent encoded state message, replayed on connect

	// writeMu serializes WriteMessage calls. gorilla/websocket does not support
	// concurrent writes; all callers of WriteMessage must hold this lock.
	// Independent of mu: never hold mu when acquiring writeMu (lock ordering).
	writeMu sync.Mutex

	listener net.Listener
	server   *http.Server
	url      string // "ws://127.0.0.1:<port>/ws", set after Start

	// closeOnce ensures Stop is idempotent. Once Stop has been called,
	// the Hub cannot be reused; create a new Hub instance instead.
	closeOnce sync.Once
}

// NewHub creates a Hub with the given options.
// The hub is not started until Start is called.
func NewHub(opts HubOptions) *Hub {
	if opts.Addr == "" {
		opts.Addr = "127.0.0.1:0"
	}
	return &Hub{opts: opts}
}

// Start begins listening on the configured address and serves WebSocket
// connections. The context is used for the server's BaseContext; the server
// itself must be stopped explicitly via Stop.
//
// Returns an error if the listener cannot be created (e.g. port in use).
func (h *Hub) Start(ctx context.Context) error {
	if h.server != nil {
		return fmt.Errorf("statestream: already started")
	}

	ln, err := net.Listen("tcp", h.opts.Addr)
	if err != nil {
		return fmt.Errorf("statestream: listen: %w", err)
	}
	h.listener = ln

	port := ln.Addr().(*net.TCPAddr).Port
	h.url = fmt.Sprintf("ws://127.0.0.1:%d/ws", port)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.handleWS)

	h.server = &http.Server{
		Handler: mux,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		if serveErr := h.server.Serve(ln); serveErr != nil && serveErr != http.ErrServerClosed {
			slog.Error("[stream] server error", "error", serveErr)
		}
	}()

	slog.Info("[stream] server started", "url", h.url)
	return nil
}

// Stop gracefully shuts down the HTTP server and closes any active WebSocket
// connection. Safe to call multiple times (idempotent via sync.Once).
func (h *Hub) Stop() error {
	var stopErr error
	h.closeOnce.Do(func() {
		h.mu.Lock()
		conn := h.conn
		h.conn = nil
		h.mu.Unlock()

		if conn != nil {
			if err := conn.Close(); err != nil {
				slog.Debug("[stream] connection close during stop", "error", err)
			}
		}

		if h.server != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := h.server.Shutdown(shutdownCtx); err != nil {
				stopErr = fmt.Errorf("statestream: shutdown: %w", err)
			}
		}

		slog.Info("[stream] server stopped")
	})
	return stopErr
}

// URL returns the WebSocket URL for observer connection
// (e.g. "ws://127.0.0.1:54321/ws").
// Returns empty string if the server has not started.
func (h *Hub) URL() string {
	return h.url
}

// HasActiveConnection reports whether an observer is currently connected.
func (h *Hub) HasActiveConnection() bool {
	h.mu.RLock()
	active := h.conn != nil
	h.mu.RUnlock()
	return active
}

// BroadcastState pushes the full workspace list to the connected observer and
// caches it for replay on the next connect. Called after every mutation and
// every revalidation pass; a missing observer is the common case and a no-op.
func (h *Hub) BroadcastState(workspaces []workspace.Workspace) {
	payload, err := encodeState(workspaces)
	if err != nil {
		slog.Warn("[stream] failed to encode state", "error", err)
		return
	}

	h.mu.Lock()
	h.lastState = payload
	conn := h.conn
	h.mu.Unlock()

	if conn == nil {
		return
	}
	h.writeText(conn, payload, "BroadcastState")
}

// BroadcastActivation pushes one toggle report to the connected observer.
func (h *Hub) BroadcastActivation(report engine.ToggleReport) {
	h.mu.RLock()
	conn := h.conn
	h.mu.RUnlock()
	if conn == nil {
		return
	}

	payload, err := encodeActivation(report)
	if err != nil {
		slog.Warn("[stream] failed to encode activation", "error", err)
		return
	}
	h.writeText(conn, payload, "BroadcastActivation")
}

// writeText sends one text message under writeMu, applying the write failure
// policy on error.
func (h *Hub) writeText(conn *websocket.Conn, payload []byte, caller string) {
	// TOCTOU window: between the caller's read of h.conn and writeMu.Lock the
	// connection may be replaced. Acceptable: a write on the closed conn
	// errors out, and clearIfCurrent checks pointer identity so it never
	// clears a newer connection.
	h.writeMu.Lock()
	if !h.setWriteDeadlineOrClose(conn, writeDeadline) {
		h.writeMu.Unlock()
		return
	}
	err := conn.WriteMessage(websocket.TextMessage, payload)
	h.clearWriteDeadline(conn)
	h.writeMu.Unlock()

	if err != nil {
		slog.Warn("[stream] write failed, closing connection", "caller", caller, "error", err)
		h.clearIfCurrent(conn)
		// Close outside mu to prevent deadlock.
		h.closeConn(conn, "write error in "+caller)
	}
}

// clearIfCurrent clears the hub's connection only if the provided conn is
// still the current connection. Returns true if it was cleared.
// Caller must NOT hold h.mu (this method acquires it).
func (h *Hub) clearIfCurrent(conn *websocket.Conn) bool {
	h.mu.Lock()
	isCurrent := h.conn == conn
	if isCurrent {
		h.conn = nil
	}
	h.mu.Unlock()
	return isCurrent
}

// closeConn closes a WebSocket connection. The close may fail if the
// connection was already closed by another goroutine (e.g. an observer reload
// replacing the old connection); this is expected and logged at Debug level.
func (h *Hub) closeConn(conn *websocket.Conn, reason string) {
	if closeErr := conn.Close(); closeErr != nil {
		slog.Debug("[stream] connection close", "reason", reason, "error", closeErr)
	}
}

// setWriteDeadlineOrClose sets a write deadline on the connection. If setting
// the deadline fails, the connection is in an indeterminate state and must be
// closed to prevent indefinite blocking.
// Returns false if the deadline could not be set (connection was closed).
func (h *Hub) setWriteDeadlineOrClose(conn *websocket.Conn, d time.Duration) bool {
	if err := conn.SetWriteDeadline(time.Now().Add(d)); err != nil {
		slog.Warn("[stream] SetWriteDeadline failed, closing connection", "error", err)
		h.clearIfCurrent(conn)
		h.closeConn(conn, "SetWriteDeadline failure")
		return false
	}
	return true
}

// clearWriteDeadline resets the write deadline after a successful write.
// Failure to clear is non-fatal: the next write sets a fresh deadline.
func (h *Hub) clearWriteDeadline(conn *websocket.Conn) {
	if err := conn.SetWriteDeadline(time.Time{}); err != nil {
		slog.Debug("[stream] clearWriteDeadline failed (non-fatal)", "error", err)
	}
}

// handleWS upgrades HTTP to WebSocket and runs the read pump for the
// connection. Only one connection is active at a time; new connections
// replace old ones so observer reloads reconnect cleanly.
func (h *Hub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("[stream] upgrade failed", "error", err)
		return
	}

	conn.SetReadLimit(maxReadMessageSize)

	// Read deadline plus pong handler for dead connection detection; the
	// deadline is extended on every pong received from the client.
	if err := conn.SetReadDeadline(time.Now().Add(readDeadline)); err != nil {
		slog.Warn("[stream] SetReadDeadline failed on new connection", "error", err)
		h.closeConn(conn, "initial SetReadDeadline failure")
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readDeadline))
	})

	// Replace existing connection (observer reload scenario).
	h.mu.Lock()
	oldConn := h.conn
	h.conn = conn
	replay := h.lastState
	h.mu.Unlock()

	if oldConn != nil {
		// Close old connection outside lock to prevent deadlock.
		h.closeConn(oldConn, "replaced by new connection")
	}

	slog.Info("[stream] client connected", "remoteAddr", conn.RemoteAddr())

	// Replay the latest state so the observer renders immediately.
	if replay != nil {
		h.writeText(conn, replay, "state replay")
	}

	pingDone := make(chan struct{})
	go h.pingLoop(conn, pingDone)

	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("[stream] handleWS panic recovered",
				"panic", rec,
				"stack", string(debug.Stack()),
			)
		}

		close(pingDone)
		h.clearIfCurrent(conn)

		// conn.Close() may run multiple times if the connection was already
		// closed by a failed write or Stop; gorilla/websocket tolerates it.
		h.closeConn(conn, "read pump exit")
		slog.Info("[stream] client disconnected")
	}()

	// Read pump: clients have nothing to say, but the pump must run for pong
	// handling and disconnect detection. Text payloads are decoded only to
	// report obvious mistakes back.
	for {
		msgType, msg, readErr := conn.ReadMessage()
		if readErr != nil {
			if websocket.IsUnexpectedCloseError(readErr, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("[stream] read error", "error", readErr)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		var probe map[string]any
		if jsonErr := json.Unmarshal(msg, &probe); jsonErr != nil {
			h.sendError(conn, fmt.Sprintf("invalid JSON: %s", jsonErr))
			continue
		}
		slog.Debug("[stream] ignoring client message", "bytes", len(msg))
	}
}

// pingLoop sends periodic WebSocket pings to detect dead connections.
// Runs as a goroutine per connection; exits when done is closed or ping fails.
func (h *Hub) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	defer func() {
		// On panic, clean up the connection so it doesn't remain open without
		// pings, which would prevent dead connection detection.
		if rec := recover(); rec != nil {
			slog.Error("[stream] pingLoop panic recovered",
				"panic", rec,
				"stack", string(debug.Stack()),
			)
			h.clearIfCurrent(conn)
			h.closeConn(conn, "pingLoop panic recovery")
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			h.writeMu.Lock()
			if !h.setWriteDeadlineOrClose(conn, writeDeadline) {
				h.writeMu.Unlock()
				return
			}
			pingErr := conn.WriteMessage(websocket.PingMessage, nil)
			h.clearWriteDeadline(conn)
			h.writeMu.Unlock()

			if pingErr != nil {
				slog.Debug("[stream] ping failed, connection likely dead", "error", pingErr)
				h.clearIfCurrent(conn)
				h.closeConn(conn, "ping failure")
				return
			}
		}
	}
}

// sendError sends a JSON error message to the client. On write failure the
// connection is cleaned up per the write failure policy (see Hub doc).
func (h *Hub) sendError(conn *websocket.Conn, message string) {
	payload, err := json.Marshal(errorMsg{Type: errorType, Message: message})
	if err != nil {
		slog.Debug("[stream] failed to marshal error message", "error", err)
		return
	}
	h.writeText(conn, payload, "sendError")
}
