// Package hub implements the websocket client for the Home Assistant API:
// one persistent authenticated connection, request/response correlation by
// message id, and automatic reconnection with exponential backoff.
package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// ConnState is the connection lifecycle state, transitioned only by the
// client's own connect/reconnect path.
type ConnState int32

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
)

const (
	handshakeTimeout = 10 * time.Second
	backoffBase      = time.Second
	backoffCap       = 60 * time.Second
)

// Client is a websocket client for the hub. All query types multiplex over
// the single connection; a request suspends only its caller, never the
// whole service.
type Client struct {
	wsURL   string
	token   string
	timeout time.Duration
	log     *slog.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	state  ConnState
	closed bool

	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[uint64]chan callResult

	nextID atomic.Uint64
}

type callResult struct {
	result json.RawMessage
	err    error
}

// NewClient creates a hub client for the given base URL (http or https)
// and long-lived access token. No connection is made until Connect.
func NewClient(baseURL, token string, timeout time.Duration, log *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		wsURL:   websocketURL(baseURL),
		token:   token,
		timeout: timeout,
		log:     log,
		pending: make(map[uint64]chan callResult),
	}
}

// websocketURL derives the websocket endpoint from the hub's HTTP base URL.
func websocketURL(baseURL string) string {
	u := strings.TrimSuffix(baseURL, "/")
	u = strings.Replace(u, "http://", "ws://", 1)
	u = strings.Replace(u, "https://", "wss://", 1)
	return u + "/api/websocket"
}

// State returns the current connection state.
func (c *Client) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect dials the hub and performs the authentication handshake. On
// success a read loop is started and future connection drops are recovered
// automatically; Connect itself never retries, so startup can distinguish
// bad credentials from a hub that is down.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return nil
	}
	c.state = StateConnecting
	c.mu.Unlock()

	conn, err := c.dial(ctx)
	if err != nil {
		c.setDisconnected(nil)
		return err
	}
	c.adopt(conn)
	return nil
}

// dial establishes and authenticates a fresh connection.
func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	c.log.Info("connecting to hub", "url", c.wsURL)

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, c.wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.wsURL, err)
	}

	if err := c.authenticate(conn); err != nil {
		_ = conn.Close()
		return nil, err
	}

	c.log.Info("connected and authenticated to hub")
	return conn, nil
}

type authMessage struct {
	Type        string `json:"type"`
	AccessToken string `json:"access_token,omitempty"`
	Message     string `json:"message,omitempty"`
}

// authenticate performs the auth_required -> auth -> auth_ok exchange.
func (c *Client) authenticate(conn *websocket.Conn) error {
	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	defer func() { _ = conn.SetReadDeadline(time.Time{}) }()

	var required authMessage
	if err := conn.ReadJSON(&required); err != nil {
		return fmt.Errorf("read auth_required: %w", err)
	}
	if required.Type != "auth_required" {
		return fmt.Errorf("expected auth_required, got %q", required.Type)
	}

	if err := conn.WriteJSON(authMessage{Type: "auth", AccessToken: c.token}); err != nil {
		return fmt.Errorf("send auth: %w", err)
	}

	var result authMessage
	if err := conn.ReadJSON(&result); err != nil {
		return fmt.Errorf("read auth result: %w", err)
	}
	if result.Type != "auth_ok" {
		return fmt.Errorf("%w: %s", ErrAuthFailed, result.Message)
	}
	return nil
}

// adopt installs a freshly authenticated connection and starts its read loop.
func (c *Client) adopt(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.state = StateConnected
	c.mu.Unlock()
	go c.readLoop(conn)
}

// setDisconnected clears the connection if it still matches the given one
// (nil matches any) and returns whether the client is closed.
func (c *Client) setDisconnected(conn *websocket.Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if conn == nil || c.conn == conn {
		c.conn = nil
		c.state = StateDisconnected
	}
	return c.closed
}

// Close shuts the client down. All pending requests fail and the reconnect
// loop, if running, stops at its next step.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	c.conn = nil
	c.state = StateDisconnected
	c.mu.Unlock()

	c.failAllPending(ErrClosed)
	if conn != nil {
		return conn.Close()
	}
	return nil
}

type envelope struct {
	ID      uint64          `json:"id"`
	Type    string          `json:"type"`
	Success *bool           `json:"success,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *CommandError   `json:"error,omitempty"`
}

// readLoop routes inbound messages to waiting callers until the connection
// drops, then fails all in-flight requests and kicks off reconnection.
func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.log.Warn("hub connection lost", "error", err)
			break
		}
		c.dispatch(data)
	}

	_ = conn.Close()
	c.failAllPending(ErrConnectionLost)
	if closed := c.setDisconnected(conn); closed {
		return
	}
	go c.reconnectLoop()
}

// dispatch routes one inbound message to the caller waiting on its id.
// Unmatched and late responses are discarded, not fatal.
func (c *Client) dispatch(data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.log.Debug("discarding unparseable hub message", "error", err)
		return
	}
	if env.Type == "event" {
		// No subscriptions are issued; stray events are ignored.
		return
	}
	if env.ID == 0 {
		return
	}

	c.pendingMu.Lock()
	ch := c.pending[env.ID]
	delete(c.pending, env.ID)
	c.pendingMu.Unlock()
	if ch == nil {
		c.log.Debug("discarding unmatched hub response", "id", env.ID, "type", env.Type)
		return
	}

	var out callResult
	if env.Success != nil && !*env.Success {
		cmdErr := env.Error
		if cmdErr == nil {
			cmdErr = &CommandError{Message: "unknown error"}
		}
		out.err = cmdErr
	} else {
		out.result = env.Result
	}
	ch <- out
}

// failAllPending completes every in-flight request with err.
func (c *Client) failAllPending(err error) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	for id, ch := range c.pending {
		delete(c.pending, id)
		ch <- callResult{err: err}
	}
}

// reconnectLoop re-establishes the connection with exponential backoff and
// jitter. Only one reconnect runs at a time; it stops only on Close.
func (c *Client) reconnectLoop() {
	c.mu.Lock()
	if c.closed || c.state != StateDisconnected {
		c.mu.Unlock()
		return
	}
	c.state = StateConnecting
	c.mu.Unlock()

	delay := backoffBase
	for {
		// ±20% jitter so restarts across instances don't align.
		jitter := time.Duration(rand.Int63n(int64(delay)/5+1)) - delay/10
		time.Sleep(delay + jitter)

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()

		conn, err := c.dial(context.Background())
		if err == nil {
			c.adopt(conn)
			return
		}
		c.log.Warn("hub reconnect failed", "error", err, "retry_in", delay*2)

		delay *= 2
		if delay > backoffCap {
			delay = backoffCap
		}
	}
}

// writeJSON serializes outbound writes: gorilla/websocket supports at
// most one concurrent writer per connection.
func (c *Client) writeJSON(conn *websocket.Conn, v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteJSON(v)
}

// Request sends a command of the given type and blocks until the matching
// response arrives, the context is done, or the per-request timeout
// elapses. The extra params are merged into the outbound envelope.
func (c *Client) Request(ctx context.Context, msgType string, params map[string]any) (json.RawMessage, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil, ErrNotConnected
	}

	id := c.nextID.Add(1)
	msg := make(map[string]any, len(params)+2)
	for k, v := range params {
		msg[k] = v
	}
	msg["id"] = id
	msg["type"] = msgType

	ch := make(chan callResult, 1)
	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()

	if err := c.writeJSON(conn, msg); err != nil {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
		return nil, fmt.Errorf("%w: %v", ErrConnectionLost, err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.log.Debug("hub request sent", "id", id, "type", msgType)
	select {
	case <-reqCtx.Done():
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
		if reqCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return nil, fmt.Errorf("%w: %s (id=%d)", ErrTimeout, msgType, id)
		}
		return nil, reqCtx.Err()
	case res := <-ch:
		return res.result, res.err
	}
}

// Host returns the hub host, for status reporting.
func (c *Client) Host() string {
	if u, err := url.Parse(c.wsURL); err == nil {
		return u.Host
	}
	return c.wsURL
}
