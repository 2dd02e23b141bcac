package wifi

import "time"

// OutcomeKind labels an observable provisioning result.
type OutcomeKind string

const (
	OutcomeOnline      OutcomeKind = "online"
	OutcomeProvisioned OutcomeKind = "provisioned"
	OutcomeOffline     OutcomeKind = "offline"
	OutcomeFailed      OutcomeKind = "failed"
	OutcomeTimeout     OutcomeKind = "timeout"
)

// Outcome is published to the Notifier whenever something a remote caller
// would want to know about happens.
type Outcome struct {
	Kind    OutcomeKind `json:"kind"`
	SSID    string      `json:"ssid,omitempty"`
	IP      string      `json:"ip,omitempty"`
	State   string      `json:"state"`
	Retries int         `json:"retries,omitempty"`
	Reason  string      `json:"reason,omitempty"`
	Time    time.Time   `json:"time"`
}

// Err maps failure outcomes to the matching error kind.
func (o Outcome) Err() error {
	switch o.Kind {
	case OutcomeFailed:
		return &Error{Kind: KindRetriesExhausted, Op: "connect " + o.SSID}
	case OutcomeTimeout:
		return &Error{Kind: KindTimeout, Op: o.State}
	default:
		return nil
	}
}

// Notifier receives outcomes from the event goroutine. Implementations must
// not block.
type Notifier interface {
	Notify(Outcome)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Outcome)

func (f NotifierFunc) Notify(o Outcome) { f(o) }

type nopNotifier struct{}

func (nopNotifier) Notify(Outcome) {}
