package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/wzhhnet/esp32-mg-server/internal/logging"
	"github.com/wzhhnet/esp32-mg-server/internal/server"
	"github.com/wzhhnet/esp32-mg-server/internal/wifi"
)

const (
	// DefaultTimeout is how long a single call waits for its reply
	DefaultTimeout = 10 * time.Second

	// DefaultMaxRetries is the default number of retry attempts for failed calls
	DefaultMaxRetries = 3

	// DefaultRetryDelay is the default delay between retry attempts
	DefaultRetryDelay = 500 * time.Millisecond

	// DefaultMaxRetryDelay is the maximum delay for exponential backoff
	DefaultMaxRetryDelay = 10 * time.Second

	// DefaultScanPoll is how often ScanWait polls while a scan runs
	DefaultScanPoll = 500 * time.Millisecond

	eventQueueSize = 16
	writeWait      = 10 * time.Second
)

type reply struct {
	result json.RawMessage
	err    error
}

type pendingCall struct {
	conn *websocket.Conn
	ch   chan reply
}

// frame is any message the daemon sends: a response or a notification.
type frame struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params json.RawMessage   `json:"params"`
	Result json.RawMessage   `json:"result"`
	Error  *server.RPCError `json:"error"`
}

// Client talks JSON-RPC over WebSocket to a provisioning daemon. The
// connection is opened on first use and reopened after it drops.
type Client struct {
	// URL is the WebSocket endpoint (e.g., "ws://192.168.4.1/websocket")
	URL string

	// Dialer opens the WebSocket connection
	Dialer *websocket.Dialer

	// Timeout bounds a single call
	Timeout time.Duration

	// MaxRetries is the maximum number of retry attempts for failed calls
	MaxRetries int

	// RetryDelay is the initial delay between retry attempts
	RetryDelay time.Duration

	// MaxRetryDelay is the maximum delay for exponential backoff
	MaxRetryDelay time.Duration

	// UseExponentialBackoff enables exponential backoff for retries
	UseExponentialBackoff bool

	mu      sync.Mutex
	writeMu sync.Mutex
	conn    *websocket.Conn
	pending map[string]pendingCall
	events  chan wifi.Outcome
	closed  bool
}

// NewClient creates a client for the daemon at host:port
func NewClient(addr string) *Client {
	return NewClientWithURL("ws://" + addr + "/websocket")
}

// NewClientWithURL creates a client with a full WebSocket URL
func NewClientWithURL(wsURL string) *Client {
	return &Client{
		URL:                   wsURL,
		Dialer:                &websocket.Dialer{HandshakeTimeout: DefaultTimeout},
		Timeout:               DefaultTimeout,
		MaxRetries:            DefaultMaxRetries,
		RetryDelay:            DefaultRetryDelay,
		MaxRetryDelay:         DefaultMaxRetryDelay,
		UseExponentialBackoff: true,
		pending:               make(map[string]pendingCall),
		events:                make(chan wifi.Outcome, eventQueueSize),
	}
}

// SetRetry configures retry behavior
func (c *Client) SetRetry(maxRetries int, retryDelay time.Duration) {
	c.MaxRetries = maxRetries
	c.RetryDelay = retryDelay
}

// Events delivers wifi.event notifications. Events arriving while the
// channel is full are dropped.
func (c *Client) Events() <-chan wifi.Outcome {
	return c.events
}

// Connect opens the connection now instead of on the first call.
func (c *Client) Connect(ctx context.Context) error {
	_, err := c.connect(ctx)
	return err
}

func (c *Client) connect(ctx context.Context) (*websocket.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	if c.conn != nil {
		return c.conn, nil
	}

	conn, resp, err := c.Dialer.DialContext(ctx, c.URL, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, NewNetworkError("failed to connect to "+c.URL, err)
	}
	logging.Debug("Connected to daemon", zap.String("url", c.URL))
	c.conn = conn
	go c.readLoop(conn)
	return conn, nil
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.drop(conn, err)
			return
		}

		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			logging.Debug("Ignoring malformed frame", zap.Error(err))
			continue
		}

		var id string
		if len(f.ID) == 0 || json.Unmarshal(f.ID, &id) != nil || id == "" {
			c.handleNotification(f)
			continue
		}

		c.mu.Lock()
		call, ok := c.pending[id]
		delete(c.pending, id)
		c.mu.Unlock()
		if !ok {
			continue
		}
		if f.Error != nil {
			call.ch <- reply{err: NewRPCError(f.Error)}
		} else {
			call.ch <- reply{result: f.Result}
		}
	}
}

func (c *Client) handleNotification(f frame) {
	if f.Method != "wifi.event" {
		return
	}
	var o wifi.Outcome
	if err := json.Unmarshal(f.Params, &o); err != nil {
		logging.Debug("Ignoring malformed wifi.event", zap.Error(err))
		return
	}
	select {
	case c.events <- o:
	default:
		logging.Debug("Event queue full, dropping outcome", zap.String("kind", string(o.Kind)))
	}
}

// drop forgets a dead connection and fails the calls waiting on it.
func (c *Client) drop(conn *websocket.Conn, cause error) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	var failed []pendingCall
	for id, call := range c.pending {
		if call.conn == conn {
			failed = append(failed, call)
			delete(c.pending, id)
		}
	}
	closed := c.closed
	c.mu.Unlock()

	_ = conn.Close()
	err := NewNetworkError("connection lost", cause)
	if closed {
		err = ErrClosed
	}
	for _, call := range failed {
		call.ch <- reply{err: err}
	}
}

// Call invokes method and decodes the result into result, which may be nil.
// Retryable failures are retried with backoff.
func (c *Client) Call(ctx context.Context, method string, params, result any) error {
	var lastErr error
	currentDelay := c.RetryDelay

	for attempt := 0; attempt <= c.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(currentDelay):
			case <-ctx.Done():
				return lastErr
			}

			if c.UseExponentialBackoff {
				currentDelay *= 2
				if currentDelay > c.MaxRetryDelay {
					currentDelay = c.MaxRetryDelay
				}
			}
			logging.Debug("Retrying call", zap.String("method", method), zap.Int("attempt", attempt), zap.Error(lastErr))
		}

		err := c.callOnce(ctx, method, params, result)
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsRetryable(err) || ctx.Err() != nil {
			return err
		}
	}

	return lastErr
}

func (c *Client) callOnce(ctx context.Context, method string, params, result any) error {
	conn, err := c.connect(ctx)
	if err != nil {
		return err
	}

	req := server.Request{JSONRPC: "2.0", Method: method}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("failed to encode %s params: %w", method, err)
		}
		req.Params = raw
	}
	id := uuid.NewString()
	req.ID = json.RawMessage(strconv.Quote(id))
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", method, err)
	}

	ch := make(chan reply, 1)
	c.mu.Lock()
	c.pending[id] = pendingCall{conn: conn, ch: ch}
	c.mu.Unlock()

	c.writeMu.Lock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	err = conn.WriteMessage(websocket.TextMessage, data)
	c.writeMu.Unlock()
	if err != nil {
		c.forget(id)
		c.drop(conn, err)
		return NewNetworkError("failed to send "+method, err)
	}

	timer := time.NewTimer(c.Timeout)
	defer timer.Stop()

	var r reply
	select {
	case r = <-ch:
	case <-timer.C:
		c.forget(id)
		return &DeviceError{Type: ErrTypeTimeout, Message: method + " got no reply within " + c.Timeout.String(), Retryable: true}
	case <-ctx.Done():
		c.forget(id)
		return ctx.Err()
	}

	if r.err != nil {
		return r.err
	}
	if result != nil {
		if err := json.Unmarshal(r.result, result); err != nil {
			return NewProtocolError("failed to decode "+method+" result", err)
		}
	}
	return nil
}

func (c *Client) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// Close shuts the connection. Calls in flight fail with ErrClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	c.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()
	return conn.Close()
}
