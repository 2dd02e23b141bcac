package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wzhhnet/esp32-mg-server/internal/notify"
	"github.com/wzhhnet/esp32-mg-server/internal/nvs"
	"github.com/wzhhnet/esp32-mg-server/internal/radio/sim"
	"github.com/wzhhnet/esp32-mg-server/internal/record"
	"github.com/wzhhnet/esp32-mg-server/internal/server"
	"github.com/wzhhnet/esp32-mg-server/internal/wifi"
)

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/websocket"
}

// daemon runs the controller, the simulated radio and the server the same
// way wifiprovd does.
func daemon(t *testing.T) *httptest.Server {
	t.Helper()
	store := nvs.NewMemStore()
	radio, err := sim.New(sim.Options{Latency: time.Millisecond, Store: store})
	require.NoError(t, err)

	relay := &notify.Relay{}
	ctl := wifi.NewController(radio, record.NewStore(store), relay, wifi.Config{
		MaxRetry:    2,
		BusyTimeout: 5 * time.Second,
	})
	ctl.Start()
	radio.Run(ctl)
	require.NoError(t, ctl.Init(context.Background()))

	srv, err := server.New(server.Config{}, ctl)
	require.NoError(t, err)
	relay.Attach(srv)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		_ = radio.Close()
		_ = ctl.Close()
	})
	return ts
}

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	c := NewClientWithURL(url)
	c.Timeout = 2 * time.Second
	c.RetryDelay = 10 * time.Millisecond
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestClient_ProvisionFlow(t *testing.T) {
	ts := daemon(t)
	c := newTestClient(t, wsURL(ts))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	networks, err := c.ScanWait(ctx, 5*time.Millisecond)
	require.NoError(t, err)
	var ssids []string
	for _, n := range networks {
		ssids = append(ssids, n.SSID)
	}
	assert.Contains(t, ssids, "HomeNet")

	require.NoError(t, c.Provision(ctx, "HomeNet", "correct horse"))
	o, err := c.WaitOnline(ctx, "HomeNet")
	require.NoError(t, err)
	assert.NotEmpty(t, o.IP)

	require.Eventually(t, func() bool {
		st, err := c.Status(ctx)
		return err == nil && st.Provisioned && st.SSID == "HomeNet"
	}, 2*time.Second, 10*time.Millisecond)

	info, err := c.SysInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, server.CauseSuccess, info.Cause)

	methods, err := c.Methods(ctx)
	require.NoError(t, err)
	assert.Contains(t, methods, "wifi.provision")
}

func TestClient_ProvisionWrongPassword(t *testing.T) {
	ts := daemon(t)
	c := newTestClient(t, wsURL(ts))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, c.Provision(ctx, "HomeNet", "wrong"))
	o, err := c.WaitOnline(ctx, "HomeNet")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProvisionFailed)
	assert.ErrorIs(t, err, wifi.ErrRetriesExhausted)
	assert.Equal(t, wifi.OutcomeFailed, o.Kind)
}

func TestClient_InvalidParamsNotRetried(t *testing.T) {
	ts := daemon(t)
	c := newTestClient(t, wsURL(ts))

	err := c.Provision(context.Background(), "", "")
	require.Error(t, err)
	assert.True(t, IsRPCCode(err, server.CodeInvalidParams))
	assert.False(t, IsRetryable(err))
}

// scripted serves JSON-RPC replies from fn, one per request.
func scripted(t *testing.T, fn func(n int, req server.Request) any) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	upgrader := websocket.Upgrader{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var req server.Request
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			n := int(calls.Add(1))
			resp := fn(n, req)
			if resp == nil {
				continue
			}
			if err := conn.WriteJSON(resp); err != nil {
				return
			}
		}
	}))
	t.Cleanup(ts.Close)
	return ts, &calls
}

func TestClient_RetriesBusy(t *testing.T) {
	ts, calls := scripted(t, func(n int, req server.Request) any {
		if n < 3 {
			return server.Response{JSONRPC: "2.0", ID: req.ID, Error: &server.RPCError{Code: server.CodeBusy, Message: "busy"}}
		}
		return server.Response{JSONRPC: "2.0", ID: req.ID, Result: server.Cause{Cause: server.CauseSuccess}}
	})
	c := newTestClient(t, wsURL(ts))

	require.NoError(t, c.Provision(context.Background(), "HomeNet", "pw"))
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_RetriesExhausted(t *testing.T) {
	ts, calls := scripted(t, func(n int, req server.Request) any {
		return server.Response{JSONRPC: "2.0", ID: req.ID, Error: &server.RPCError{Code: server.CodeBusy, Message: "busy"}}
	})
	c := newTestClient(t, wsURL(ts))
	c.MaxRetries = 2

	err := c.Provision(context.Background(), "HomeNet", "pw")
	assert.True(t, IsRPCCode(err, server.CodeBusy))
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_Timeout(t *testing.T) {
	ts, _ := scripted(t, func(int, server.Request) any { return nil })
	c := newTestClient(t, wsURL(ts))
	c.Timeout = 50 * time.Millisecond
	c.MaxRetries = 0

	_, err := c.Status(context.Background())
	var devErr *DeviceError
	require.True(t, errors.As(err, &devErr))
	assert.Equal(t, ErrTypeTimeout, devErr.Type)
}

func TestClient_Events(t *testing.T) {
	ts, _ := scripted(t, func(n int, req server.Request) any {
		return server.Notification{JSONRPC: "2.0", Method: "wifi.event", Params: wifi.Outcome{Kind: wifi.OutcomeOnline, SSID: "HomeNet", IP: "10.0.0.2"}}
	})
	c := newTestClient(t, wsURL(ts))
	c.Timeout = 50 * time.Millisecond
	c.MaxRetries = 0

	// the scripted server answers with an event instead of a reply
	_, _ = c.Status(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	o, err := c.WaitOnline(ctx, "HomeNet")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.2", o.IP)
}

func TestClient_ConnectionRefused(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := wsURL(ts)
	ts.Close()

	c := newTestClient(t, url)
	c.MaxRetries = 0

	err := c.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, IsNetworkError(err))
}

func TestClient_Closed(t *testing.T) {
	c := NewClientWithURL("ws://127.0.0.1:1/websocket")
	require.NoError(t, c.Close())

	err := c.Call(context.Background(), "wifi.status", nil, nil)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestFrame_NotificationHasNoID(t *testing.T) {
	var f frame
	require.NoError(t, json.Unmarshal([]byte(`{"method":"keepalive","params":{}}`), &f))
	assert.Empty(t, f.ID)
}
