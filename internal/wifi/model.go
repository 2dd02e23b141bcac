package wifi

import (
	"time"

	"github.com/wzhhnet/esp32-mg-server/internal/record"
)

// Model is the shared provisioning context.
type Model struct {
	State State

	// Pending holds credentials accepted from the user but not yet handed
	// to the driver.
	Pending *Credentials

	// Networks is the last scan result, at most MaxScanResults entries.
	Networks []Network

	// Retries counts reconnects since the last success or fresh credentials.
	Retries int

	// Record mirrors the durable record as last read or written.
	Record record.Record

	// Target is the SSID of the credentials currently held by the driver.
	Target string

	// Associated is true between connected and disconnected notifications.
	Associated bool

	// IP is the current station address, empty while not associated.
	IP string

	Booted bool

	// ConnectOwed is set when the radio started in station mode while a
	// scan held the state machine. The connect is issued once it is idle.
	ConnectOwed bool

	// GaveUp is set once retries are exhausted for Target.
	GaveUp bool

	// Epoch changes on every state change and every fresh connect attempt.
	// Timer events carry the epoch that armed them.
	Epoch uint64
}

// enter moves to s, bumping Epoch on change.
func (m *Model) enter(s State) {
	if m.State != s {
		m.State = s
		m.Epoch++
	}
}

// rearm starts a fresh attempt in s even if s is the current state.
func (m *Model) rearm(s State) {
	m.State = s
	m.Epoch++
}

// linkActive reports whether the driver holds a live or in-progress link
// that must be torn down before new credentials can apply.
func (m Model) linkActive() bool {
	return m.Associated || m.State == Connecting || m.State == Reprovisioning
}

// clone deep-copies the slices and pointers so callers can't alias the
// controller's model.
func (m Model) clone() Model {
	if m.Pending != nil {
		p := *m.Pending
		m.Pending = &p
	}
	if m.Networks != nil {
		m.Networks = append([]Network(nil), m.Networks...)
	}
	return m
}

// Policy holds the tunables Transition needs.
type Policy struct {
	// MaxRetry bounds reconnect attempts after unsolicited disconnects.
	MaxRetry int

	// BusyTimeout, when positive, arms a Timeout on every busy state entry.
	BusyTimeout time.Duration

	// ReconnectAfter, when positive, restarts the connect cycle this long
	// after retries were exhausted. Zero leaves the device idle.
	ReconnectAfter time.Duration
}
