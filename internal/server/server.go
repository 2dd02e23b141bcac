package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/wzhhnet/esp32-mg-server/internal/logging"
	"github.com/wzhhnet/esp32-mg-server/internal/wifi"
)

// DefaultKeepalive is the interval between keepalive broadcasts.
const DefaultKeepalive = 5 * time.Second

// Service is the provisioning surface the server exposes. *wifi.Controller
// implements it.
type Service interface {
	ScanStart(ctx context.Context) error
	ScanResults() []wifi.Network
	Provision(ctx context.Context, cr wifi.Credentials) error
	Provisioned() wifi.Status
	Busy() bool
}

// Config holds the server configuration
type Config struct {
	Listen    string
	CertPath  string // optional; plain HTTP when empty
	KeyPath   string
	Keepalive time.Duration
}

// Server serves JSON-RPC over WebSocket and the REST API on one listener.
type Server struct {
	cfg       Config
	svc       Service
	tlsConfig *tls.Config
	http      *http.Server
	listener  net.Listener

	hub      *hub
	upgrader websocket.Upgrader
	methods  map[string]rpcHandler

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new Server instance
func New(cfg Config, svc Service) (*Server, error) {
	if svc == nil {
		return nil, errors.New("server: nil service")
	}
	if cfg.Keepalive <= 0 {
		cfg.Keepalive = DefaultKeepalive
	}

	var tlsConfig *tls.Config
	if cfg.CertPath != "" || cfg.KeyPath != "" {
		var err error
		tlsConfig, err = NewTLSConfig(cfg.CertPath, cfg.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:       cfg,
		svc:       svc,
		tlsConfig: tlsConfig,
		hub:       newHub(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  maxMessageSize,
			WriteBufferSize: maxMessageSize,
			// the provisioning page is served from anywhere the user opens it
			CheckOrigin: func(*http.Request) bool { return true },
		},
		ctx:    ctx,
		cancel: cancel,
	}
	s.registerMethods()
	return s, nil
}

// Handler returns the HTTP handler with every route mounted.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/websocket", s.handleWebSocket)
	s.registerREST(mux)
	return mux
}

// Start binds the listener and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Listen, err)
	}
	scheme := "http"
	if s.tlsConfig != nil {
		ln = tls.NewListener(ln, s.tlsConfig)
		scheme = "https"
		logging.Info("TLS enabled", tlsFields(s.tlsConfig)...)
	}
	s.listener = ln
	s.http = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logging.Info("Server listening for connections",
		zap.String("addr", ln.Addr().String()),
		zap.String("scheme", scheme),
		zap.Duration("keepalive", s.cfg.Keepalive),
	)

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("HTTP server stopped", zap.Error(err))
		}
	}()
	go func() {
		defer s.wg.Done()
		s.keepaliveLoop(s.cfg.Keepalive)
	}()
	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down server...")
	s.cancel()

	// hijacked WebSocket connections are not tracked by http.Server
	s.hub.closeAll()

	var err error
	if s.http != nil {
		err = s.http.Shutdown(ctx)
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logging.Info("All connections closed gracefully")
	case <-ctx.Done():
		logging.Warn("Shutdown timeout, forcing close")
		if s.http != nil {
			_ = s.http.Close()
		}
		return ctx.Err()
	}
	return err
}

// ActiveConnections returns the number of open WebSocket clients.
func (s *Server) ActiveConnections() int {
	return s.hub.count()
}
