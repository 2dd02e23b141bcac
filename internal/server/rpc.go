package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/wzhhnet/esp32-mg-server/internal/logging"
	"github.com/wzhhnet/esp32-mg-server/internal/version"
	"github.com/wzhhnet/esp32-mg-server/internal/wifi"
)

// JSON-RPC 2.0 error codes. The -320xx range is ours.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternal       = -32603
	CodeBusy           = -32000
	CodeDriver         = -32001
	CodePersistence    = -32002
	CodeNotReady       = -32003
	CodeFailed         = -32004
)

// Request is an inbound JSON-RPC frame.
type Request struct {
	JSONRPC string          `json:"jsonrpc,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response answers a Request with either Result or Error.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// Notification is a server-initiated frame without an ID.
type Notification struct {
	JSONRPC string `json:"jsonrpc,omitempty"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

// RPCError is the error member of a Response.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Cause is the body vocabulary shared by REST replies and action results.
type Cause struct {
	Cause string `json:"cause"`
}

const (
	CauseSuccess       = "success"
	CauseInvalidParams = "invalid parameters"
	CauseInvalidAPI    = "invalid rest api"
	CauseInternal      = "esp32 internal error"
	CauseBusy          = "busy"
)

// ProvisionParams are the params of wifi.provision.
type ProvisionParams struct {
	SSID string `json:"ssid"`
	Pass string `json:"pass"`
}

// ScanResult is returned by wifi.scan: the results known so far, and
// whether a scan is still running.
type ScanResult struct {
	Scanning bool           `json:"scanning"`
	Networks []wifi.Network `json:"networks"`
}

// StatusResult is returned by wifi.status: the provisioned identity and
// whether a scan or connect attempt is in flight.
type StatusResult struct {
	wifi.Status
	Busy bool `json:"busy"`
}

// SysInfo is the result of sys.info.
type SysInfo struct {
	Cause string       `json:"cause"`
	Info  string       `json:"info"`
	Build version.Info `json:"build"`
}

type rpcHandler func(ctx context.Context, params json.RawMessage) (any, error)

func (s *Server) registerMethods() {
	s.methods = map[string]rpcHandler{
		"wifi.scan":         s.rpcScan,
		"wifi.scan_results": s.rpcScanResults,
		"wifi.provision":    s.rpcProvision,
		"wifi.status":       s.rpcStatus,
		"sys.info":          s.rpcSysInfo,
		"rpc.list":          s.rpcList,
	}
}

// handleRPC processes one frame and returns the encoded response, or nil
// for notifications.
func (s *Server) handleRPC(ctx context.Context, remoteAddr string, data []byte) []byte {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return encodeResponse(Response{ID: json.RawMessage("null"), Error: &RPCError{Code: CodeParseError, Message: "Parse error"}})
	}
	if req.Method == "" {
		return encodeResponse(Response{ID: idOrNull(req.ID), Error: &RPCError{Code: CodeInvalidRequest, Message: "Invalid request"}})
	}

	h, ok := s.methods[req.Method]
	if !ok {
		// keepalive echoes from clients are not requests
		if len(req.ID) == 0 {
			return nil
		}
		return encodeResponse(Response{ID: req.ID, Error: &RPCError{Code: CodeMethodNotFound, Message: "Method not found"}})
	}

	result, err := h(ctx, req.Params)
	logging.LogRPC(remoteAddr, req.Method, err)
	if len(req.ID) == 0 {
		return nil
	}
	if err != nil {
		return encodeResponse(Response{ID: req.ID, Error: toRPCError(err)})
	}
	return encodeResponse(Response{ID: req.ID, Result: result})
}

func idOrNull(id json.RawMessage) json.RawMessage {
	if len(id) == 0 {
		return json.RawMessage("null")
	}
	return id
}

func encodeResponse(r Response) []byte {
	r.JSONRPC = "2.0"
	data, err := json.Marshal(r)
	if err != nil {
		data, _ = json.Marshal(Response{JSONRPC: "2.0", ID: idOrNull(r.ID), Error: &RPCError{Code: CodeInternal, Message: err.Error()}})
	}
	return data
}

var errInvalidParams = &RPCError{Code: CodeInvalidParams, Message: "Invalid method parameter(s)."}

// toRPCError maps controller failures onto error codes.
func toRPCError(err error) *RPCError {
	var rerr *RPCError
	if errors.As(err, &rerr) {
		return rerr
	}
	if errors.Is(err, wifi.ErrInvalidCredentials) {
		return &RPCError{Code: CodeInvalidParams, Message: errInvalidParams.Message, Data: err.Error()}
	}
	kind, ok := wifi.KindOf(err)
	if !ok {
		return &RPCError{Code: CodeInternal, Message: err.Error()}
	}
	code := CodeInternal
	switch kind {
	case wifi.KindBusy:
		code = CodeBusy
	case wifi.KindDriver:
		code = CodeDriver
	case wifi.KindPersistence:
		code = CodePersistence
	case wifi.KindNotReady:
		code = CodeNotReady
	case wifi.KindInvalid:
		code = CodeInvalidParams
	case wifi.KindTimeout, wifi.KindRetriesExhausted:
		code = CodeFailed
	}
	return &RPCError{Code: code, Message: kind.String(), Data: err.Error()}
}

// scan starts a scan unless one is running, then returns what is known.
func (s *Server) scan(ctx context.Context) (ScanResult, error) {
	if !s.svc.Busy() {
		if err := s.svc.ScanStart(ctx); err != nil && !errors.Is(err, wifi.ErrBusy) {
			return ScanResult{}, err
		}
	}
	return ScanResult{Scanning: s.svc.Busy(), Networks: nonNil(s.svc.ScanResults())}, nil
}

func nonNil(n []wifi.Network) []wifi.Network {
	if n == nil {
		return []wifi.Network{}
	}
	return n
}

func (s *Server) rpcScan(ctx context.Context, _ json.RawMessage) (any, error) {
	return s.scan(ctx)
}

func (s *Server) rpcScanResults(context.Context, json.RawMessage) (any, error) {
	return nonNil(s.svc.ScanResults()), nil
}

func (s *Server) rpcProvision(ctx context.Context, params json.RawMessage) (any, error) {
	var p ProvisionParams
	if len(params) == 0 || json.Unmarshal(params, &p) != nil {
		return nil, errInvalidParams
	}
	if err := s.svc.Provision(ctx, wifi.Credentials{SSID: p.SSID, Pass: p.Pass}); err != nil {
		return nil, err
	}
	return Cause{Cause: CauseSuccess}, nil
}

func (s *Server) rpcStatus(context.Context, json.RawMessage) (any, error) {
	return s.status(), nil
}

func (s *Server) status() StatusResult {
	return StatusResult{Status: s.svc.Provisioned(), Busy: s.svc.Busy()}
}

func (s *Server) rpcSysInfo(context.Context, json.RawMessage) (any, error) {
	return s.sysInfo(), nil
}

func (s *Server) sysInfo() SysInfo {
	b := version.Get()
	return SysInfo{Cause: CauseSuccess, Info: b.String(), Build: b}
}

func (s *Server) rpcList(context.Context, json.RawMessage) (any, error) {
	names := make([]string, 0, len(s.methods))
	for name := range s.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
