package wifi

import (
	"fmt"
	"time"
)

const (
	// MaxSSIDLen is the longest SSID accepted, in bytes.
	MaxSSIDLen = 32

	// MaxPassLen is the longest passphrase accepted, in bytes.
	MaxPassLen = 64

	// MaxScanResults caps the networks kept from a scan.
	MaxScanResults = 10

	// DefaultMaxRetry bounds reconnect attempts after unsolicited disconnects.
	DefaultMaxRetry = 5

	// DefaultBusyTimeout is how long a busy state may last before the
	// controller gives up on the pending completion.
	DefaultBusyTimeout = 30 * time.Second
)

// State is the provisioning state. Exactly one holds at a time.
type State int

const (
	Idle State = iota
	Scanning
	Connecting
	Reprovisioning
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Scanning:
		return "scanning"
	case Connecting:
		return "connecting"
	case Reprovisioning:
		return "reprovisioning"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Busy reports whether an operation is in flight.
func (s State) Busy() bool {
	return s != Idle
}

// Mode is the radio operating mode.
type Mode string

const (
	// ModeSTA joins an existing network only.
	ModeSTA Mode = "sta"
	// ModeAPSTA additionally runs the device's own setup access point.
	ModeAPSTA Mode = "ap_sta"
)

// Credentials identify a network to join.
type Credentials struct {
	SSID string
	Pass string
}

// Validate checks the byte-length limits.
func (c Credentials) Validate() error {
	if c.SSID == "" {
		return &Error{Kind: KindInvalid, Op: "validate", Err: fmt.Errorf("%w: empty ssid", ErrInvalidCredentials)}
	}
	if len(c.SSID) > MaxSSIDLen {
		return &Error{Kind: KindInvalid, Op: "validate", Err: fmt.Errorf("%w: ssid is %d bytes, max %d", ErrInvalidCredentials, len(c.SSID), MaxSSIDLen)}
	}
	if len(c.Pass) > MaxPassLen {
		return &Error{Kind: KindInvalid, Op: "validate", Err: fmt.Errorf("%w: passphrase is %d bytes, max %d", ErrInvalidCredentials, len(c.Pass), MaxPassLen)}
	}
	return nil
}

// String never includes the passphrase.
func (c Credentials) String() string {
	return fmt.Sprintf("{ssid=%q pass=len=%d}", c.SSID, len(c.Pass))
}

// Network is one scan result.
type Network struct {
	SSID string `json:"ssid"`
	RSSI int    `json:"rssi"`
	Open bool   `json:"isopened"`
}

// Status answers "is this device provisioned, and where".
type Status struct {
	Provisioned bool   `json:"provisioned"`
	SSID        string `json:"ssid"`
	IP          string `json:"ip"`
}
