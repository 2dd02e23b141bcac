package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/wzhhnet/esp32-mg-server/internal/logging"
	"github.com/wzhhnet/esp32-mg-server/internal/wifi"
)

const maxBodySize = 1024

func (s *Server) registerREST(mux *http.ServeMux) {
	mux.HandleFunc("/rest/wifi/scan", s.restScan)
	mux.HandleFunc("GET /rest/wifi/results", s.restResults)
	mux.HandleFunc("POST /rest/wifi/provision", s.restProvision)
	mux.HandleFunc("GET /rest/wifi/status", s.restStatus)
	mux.HandleFunc("/rest/sys/info", s.restSysInfo)
	mux.HandleFunc("/rest/", s.restUnknown)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Debug("Failed to write REST reply", zap.Error(err))
	}
}

func writeCause(w http.ResponseWriter, status int, cause string) {
	writeJSON(w, status, Cause{Cause: cause})
}

// writeError maps a controller error onto a status code and cause.
func writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, errInvalidParams) {
		writeCause(w, http.StatusBadRequest, CauseInvalidParams)
		return
	}
	kind, _ := wifi.KindOf(err)
	switch {
	case errors.Is(err, wifi.ErrInvalidCredentials), kind == wifi.KindInvalid:
		writeCause(w, http.StatusBadRequest, CauseInvalidParams)
	case errors.Is(err, wifi.ErrBusy):
		writeCause(w, http.StatusConflict, CauseBusy)
	case errors.Is(err, wifi.ErrNotReady):
		writeCause(w, http.StatusServiceUnavailable, CauseInternal)
	default:
		writeCause(w, http.StatusInternalServerError, CauseInternal)
	}
}

func (s *Server) restScan(w http.ResponseWriter, r *http.Request) {
	res, err := s.scan(r.Context())
	logging.LogRPC(r.RemoteAddr, "rest wifi/scan", err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res.Networks)
}

func (s *Server) restResults(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, nonNil(s.svc.ScanResults()))
}

func (s *Server) restProvision(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		writeCause(w, http.StatusBadRequest, CauseInvalidParams)
		return
	}
	_, err = s.rpcProvision(r.Context(), body)
	logging.LogRPC(r.RemoteAddr, "rest wifi/provision", err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeCause(w, http.StatusOK, CauseSuccess)
}

func (s *Server) restStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) restSysInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sysInfo())
}

func (s *Server) restUnknown(w http.ResponseWriter, r *http.Request) {
	logging.Debug("Unknown REST endpoint", zap.String("method", r.Method), zap.String("path", r.URL.Path))
	writeCause(w, http.StatusBadRequest, CauseInvalidAPI)
}
