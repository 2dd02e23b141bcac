package client

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"syscall"

	"github.com/gorilla/websocket"

	"github.com/wzhhnet/esp32-mg-server/internal/server"
)

// ErrorType represents the category of error that occurred
type ErrorType int

const (
	// ErrTypeNetwork indicates a network-level error (connection lost, unreachable, etc.)
	ErrTypeNetwork ErrorType = iota
	// ErrTypeTimeout indicates the daemon did not answer in time
	ErrTypeTimeout
	// ErrTypeConnectionRefused indicates nothing is listening at the address
	ErrTypeConnectionRefused
	// ErrTypeDNS indicates a DNS resolution failure
	ErrTypeDNS
	// ErrTypeProtocol indicates a malformed frame or an unexpected handshake reply
	ErrTypeProtocol
	// ErrTypeRPC indicates the daemon answered with a JSON-RPC error
	ErrTypeRPC
	// ErrTypeClosed indicates the client was closed
	ErrTypeClosed
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeNetwork:
		return "Network Error"
	case ErrTypeTimeout:
		return "Timeout"
	case ErrTypeConnectionRefused:
		return "Connection Refused"
	case ErrTypeDNS:
		return "DNS Error"
	case ErrTypeProtocol:
		return "Protocol Error"
	case ErrTypeRPC:
		return "RPC Error"
	case ErrTypeClosed:
		return "Client Closed"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// DeviceError represents an error that occurred while talking to a daemon
type DeviceError struct {
	Type      ErrorType // Category of error
	Message   string    // Human-readable error message
	Code      int       // JSON-RPC error code (ErrTypeRPC only)
	Err       error     // Underlying error (if any)
	Retryable bool      // Whether the error is retryable
}

// Error implements the error interface
func (e *DeviceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	if e.Type == ErrTypeRPC {
		return fmt.Sprintf("%s %d: %s", e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for error chain inspection
func (e *DeviceError) Unwrap() error {
	return e.Err
}

// ErrClosed is returned by calls made after Close.
var ErrClosed = &DeviceError{Type: ErrTypeClosed, Message: "client closed"}

// ClassifyNetworkError analyzes an error and returns a more specific error type
func ClassifyNetworkError(err error) *DeviceError {
	if err == nil {
		return nil
	}

	if os.IsTimeout(err) {
		return &DeviceError{Type: ErrTypeTimeout, Message: "Request timed out", Err: err, Retryable: true}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &DeviceError{
			Type:    ErrTypeDNS,
			Message: fmt.Sprintf("DNS resolution failed for %s", dnsErr.Name),
			Err:     err,
		}
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return &DeviceError{Type: ErrTypeConnectionRefused, Message: "Daemon refused connection", Err: err, Retryable: true}
	}

	if errors.Is(err, websocket.ErrBadHandshake) {
		return &DeviceError{Type: ErrTypeProtocol, Message: "WebSocket handshake rejected", Err: err}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return ClassifyNetworkError(urlErr.Err)
	}

	return &DeviceError{Type: ErrTypeNetwork, Message: "Network error occurred", Err: err, Retryable: true}
}

// NewNetworkError creates a network-level error with automatic classification
func NewNetworkError(message string, err error) *DeviceError {
	classified := ClassifyNetworkError(err)
	if classified != nil {
		classified.Message = message
		return classified
	}
	return &DeviceError{Type: ErrTypeNetwork, Message: message, Retryable: true}
}

// NewProtocolError creates an error for frames the client cannot make sense of
func NewProtocolError(message string, err error) *DeviceError {
	return &DeviceError{Type: ErrTypeProtocol, Message: message, Err: err}
}

// NewRPCError converts a JSON-RPC error object. Busy and not-ready replies
// are retryable.
func NewRPCError(e *server.RPCError) *DeviceError {
	msg := e.Message
	if s, ok := e.Data.(string); ok && s != "" {
		msg = s
	}
	return &DeviceError{
		Type:      ErrTypeRPC,
		Message:   msg,
		Code:      e.Code,
		Retryable: e.Code == server.CodeBusy || e.Code == server.CodeNotReady,
	}
}

// IsRPCCode reports whether err is a JSON-RPC error with the given code.
func IsRPCCode(err error, code int) bool {
	var devErr *DeviceError
	return errors.As(err, &devErr) && devErr.Type == ErrTypeRPC && devErr.Code == code
}

// IsNetworkError checks if an error is a network error (including timeout, connection refused, DNS, etc.)
func IsNetworkError(err error) bool {
	var devErr *DeviceError
	if !errors.As(err, &devErr) {
		return false
	}
	switch devErr.Type {
	case ErrTypeNetwork, ErrTypeTimeout, ErrTypeConnectionRefused, ErrTypeDNS:
		return true
	}
	return false
}

// IsRetryable checks if an error should be retried
func IsRetryable(err error) bool {
	var devErr *DeviceError
	if errors.As(err, &devErr) {
		return devErr.Retryable
	}
	return false
}

// GetTroubleshootingHint returns user-friendly troubleshooting advice for an error
func GetTroubleshootingHint(err error) string {
	var devErr *DeviceError
	if !errors.As(err, &devErr) {
		return "An unexpected error occurred. Please try again."
	}

	switch devErr.Type {
	case ErrTypeTimeout:
		return strings.Join([]string{
			"The daemon did not respond in time.",
			"Troubleshooting:",
			"  • Check that the device is powered on",
			"  • Verify you're connected to the device's access point",
			"  • Try increasing the timeout with --timeout",
		}, "\n")

	case ErrTypeConnectionRefused:
		return strings.Join([]string{
			"The device refused the connection.",
			"Troubleshooting:",
			"  • Check the address and port (wifiprov discover lists devices)",
			"  • The daemon may not be running - try restarting it",
		}, "\n")

	case ErrTypeDNS:
		return strings.Join([]string{
			"Could not resolve the device hostname.",
			"Troubleshooting:",
			"  • Use the IP address instead of hostname",
			"  • Verify you're on the same network as the device",
		}, "\n")

	case ErrTypeRPC:
		switch devErr.Code {
		case server.CodeBusy:
			return "The device is busy scanning or connecting. Wait a few seconds and try again."
		case server.CodeInvalidParams:
			return "The SSID must be 1-32 bytes and the password at most 64 bytes."
		case server.CodePersistence:
			return "The device could not update its stored network. Try again, then reset it with wifiprovd reset."
		case server.CodeNotReady:
			return "The device is still starting up. Try again in a moment."
		}
		return "The device rejected the request. Check the error message for details."

	case ErrTypeProtocol:
		return strings.Join([]string{
			"The device answered with something unexpected.",
			"Troubleshooting:",
			"  • Check that the address points at a wifiprovd daemon",
			"  • Compare versions with wifiprov version and the daemon's sys.info",
		}, "\n")

	default:
		return strings.Join([]string{
			"Network communication failed.",
			"Troubleshooting:",
			"  • Check your network connection",
			"  • Ensure you're connected to the correct network",
		}, "\n")
	}
}

// GetShortErrorMessage returns a concise, user-friendly error message
func GetShortErrorMessage(err error) string {
	var devErr *DeviceError
	if !errors.As(err, &devErr) {
		return err.Error()
	}

	switch devErr.Type {
	case ErrTypeTimeout:
		return "Device not responding (timeout)"
	case ErrTypeConnectionRefused:
		return "Device refused connection - is the daemon running?"
	case ErrTypeDNS:
		return "Cannot resolve device hostname"
	case ErrTypeNetwork:
		return "Network error - check connection"
	case ErrTypeRPC:
		if devErr.Code == server.CodeBusy {
			return "Device busy - try again shortly"
		}
		return devErr.Message
	default:
		return devErr.Message
	}
}
