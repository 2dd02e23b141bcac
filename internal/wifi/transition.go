package wifi

import (
	"github.com/wzhhnet/esp32-mg-server/internal/record"
)

// Transition computes the next model and the commands that realize it. It
// never mutates m and performs no I/O.
//
// The Record field of the returned model is only changed by Init; record
// commands update the mirror once they land.
func Transition(p Policy, m Model, ev Event) (Model, []Command) {
	m = m.clone()
	next := m
	var cmds []Command

	switch e := ev.(type) {
	case Init:
		next, cmds = onInit(m, e)
	case ScanRequest:
		next, cmds = onScanRequest(m)
	case ScanDone:
		next, cmds = onScanDone(m, e)
	case Provision:
		next, cmds = onProvision(m, e)
	case Started:
		next, cmds = onStarted(m)
	case Connected:
		next, cmds = onConnected(m)
	case Disconnected:
		next, cmds = onDisconnected(p, m, e)
	case AddressAcquired:
		next, cmds = onAddressAcquired(m, e)
	case FlushRecord:
		if w, ok := recordToWrite(m); ok {
			cmds = []Command{WriteRecord{Record: w}}
		}
	case Timeout:
		next, cmds = onTimeout(m, e)
	case RetryLater:
		next, cmds = onRetryLater(m, e)
	}

	if next.Epoch != m.Epoch && next.State.Busy() && p.BusyTimeout > 0 {
		cmds = append(cmds, Schedule{Event: Timeout{Epoch: next.Epoch}, After: p.BusyTimeout})
	}
	return next, cmds
}

func onInit(m Model, e Init) (Model, []Command) {
	if m.Booted {
		return m, nil
	}
	m.Booted = true
	m.Record = e.Record
	if e.Record.Provisioned() {
		m.Target = e.Record.SSID
		return m, []Command{SetMode{Mode: ModeSTA}, Start{}}
	}
	return m, []Command{SetMode{Mode: ModeAPSTA}, Start{}}
}

func onScanRequest(m Model) (Model, []Command) {
	if !m.Booted {
		return m, []Command{Reject{Err: &Error{Kind: KindNotReady, Op: "scan"}}}
	}
	if m.State != Idle {
		return m, []Command{Reject{Err: &Error{Kind: KindBusy, Op: "scan", Err: errStateBusy(m.State)}}}
	}
	m.enter(Scanning)
	return m, []Command{Scan{}}
}

func onScanDone(m Model, e ScanDone) (Model, []Command) {
	n := len(e.Networks)
	if n > MaxScanResults {
		n = MaxScanResults
	}
	m.Networks = append(make([]Network, 0, n), e.Networks[:n]...)
	if m.State == Scanning {
		m.enter(Idle)
	}
	return owedConnect(m, nil)
}

// owedConnect issues the connect deferred by onStarted once the machine is
// idle again.
func owedConnect(m Model, cmds []Command) (Model, []Command) {
	if !m.ConnectOwed || m.State != Idle {
		return m, cmds
	}
	m.ConnectOwed = false
	if !m.Record.Provisioned() || m.Associated || m.Target == "" {
		return m, cmds
	}
	m.enter(Connecting)
	return m, append(cmds, Connect{})
}

func onProvision(m Model, e Provision) (Model, []Command) {
	if err := e.Credentials.Validate(); err != nil {
		return m, []Command{Reject{Err: err}}
	}
	if !m.Booted {
		return m, []Command{Reject{Err: &Error{Kind: KindNotReady, Op: "provision"}}}
	}

	var cmds []Command
	if m.State == Scanning {
		cmds = append(cmds, CancelScan{})
	}

	next := m
	cr := e.Credentials
	next.Pending = &cr
	next.Retries = 0
	next.GaveUp = false

	switch {
	case m.Record.Provisioned():
		cmds = append(cmds, EraseRecord{})
		if m.linkActive() {
			next.enter(Reprovisioning)
			return next, append(cmds, Disconnect{})
		}
		return commitPending(next, cmds)

	case m.State == Reprovisioning:
		// The disconnect is already on its way; the newest credentials win.
		return next, cmds

	case m.linkActive():
		next.enter(Reprovisioning)
		return next, append(cmds, Disconnect{})

	default:
		return commitPending(next, cmds)
	}
}

// commitPending hands Pending to the driver and starts connecting.
func commitPending(m Model, cmds []Command) (Model, []Command) {
	cr := *m.Pending
	m.Pending = nil
	m.ConnectOwed = false
	m.Target = cr.SSID
	m.Retries = 0
	m.GaveUp = false
	m.rearm(Connecting)
	return m, append(cmds, SetCredentials{Credentials: cr}, Connect{})
}

func onStarted(m Model) (Model, []Command) {
	if !m.Record.Provisioned() || m.Associated {
		return m, nil
	}
	if m.State == Scanning {
		m.ConnectOwed = true
		return m, nil
	}
	if m.State != Idle {
		return m, nil
	}
	m.enter(Connecting)
	return m, []Command{Connect{}}
}

func onConnected(m Model) (Model, []Command) {
	m.Associated = true
	if m.State == Reprovisioning {
		// Association of the identity being torn down.
		return m, nil
	}
	m.Retries = 0
	m.GaveUp = false
	if m.State == Connecting {
		m.enter(Idle)
	}
	return m, nil
}

func onDisconnected(p Policy, m Model, e Disconnected) (Model, []Command) {
	var cmds []Command
	if m.Associated {
		cmds = append(cmds, Report{Outcome: Outcome{
			Kind:   OutcomeOffline,
			SSID:   m.Target,
			State:  m.State.String(),
			Reason: e.Reason,
		}})
	}
	next := m
	next.Associated = false
	next.IP = ""

	if m.State == Reprovisioning && m.Pending != nil {
		return commitPending(next, cmds)
	}
	if m.Target == "" || m.GaveUp {
		return next, cmds
	}

	next.Retries = m.Retries + 1
	if next.Retries < p.MaxRetry {
		next.rearm(Connecting)
		return next, append(cmds, Connect{})
	}

	next.Retries = max(p.MaxRetry, 0)
	next.GaveUp = true
	next.Pending = nil
	next.enter(Idle)
	cmds = append(cmds, Report{Outcome: Outcome{
		Kind:    OutcomeFailed,
		SSID:    m.Target,
		State:   Idle.String(),
		Retries: next.Retries,
		Reason:  e.Reason,
	}})
	if p.ReconnectAfter > 0 {
		cmds = append(cmds, Schedule{Event: RetryLater{Epoch: next.Epoch}, After: p.ReconnectAfter})
	}
	return next, cmds
}

func onAddressAcquired(m Model, e AddressAcquired) (Model, []Command) {
	if m.State == Reprovisioning {
		m.Associated = true
		return m, nil
	}
	m.IP = e.IP
	m.Associated = true
	m.Retries = 0
	m.GaveUp = false
	if m.State == Connecting {
		m.enter(Idle)
	}
	cmds := []Command{Report{Outcome: Outcome{
		Kind:  OutcomeOnline,
		SSID:  m.Target,
		IP:    e.IP,
		State: m.State.String(),
	}}}
	if w, ok := recordToWrite(m); ok {
		cmds = append(cmds, WriteRecord{Record: w})
	}
	return m, cmds
}

// recordToWrite returns the record to persist when the durable record does
// not yet describe the committed identity.
func recordToWrite(m Model) (record.Record, bool) {
	if m.Target == "" || m.IP == "" || !m.Associated || m.State == Reprovisioning {
		return record.Record{}, false
	}
	if m.Record.Provisioned() && m.Record.SSID == m.Target {
		return record.Record{}, false
	}
	return record.Record{SSID: m.Target, IP: m.IP, Present: true}, true
}

func onTimeout(m Model, e Timeout) (Model, []Command) {
	if e.Epoch != m.Epoch || !m.State.Busy() {
		return m, nil
	}
	from := m.State
	if from == Connecting || from == Reprovisioning {
		m.GaveUp = true
	}
	m.Pending = nil
	m.enter(Idle)
	return owedConnect(m, []Command{Report{Outcome: Outcome{
		Kind:    OutcomeTimeout,
		SSID:    m.Target,
		State:   from.String(),
		Retries: m.Retries,
	}}})
}

func onRetryLater(m Model, e RetryLater) (Model, []Command) {
	if e.Epoch != m.Epoch || !m.GaveUp || m.State != Idle || m.Target == "" {
		return m, nil
	}
	m.GaveUp = false
	m.Retries = 0
	m.rearm(Connecting)
	return m, []Command{Connect{}}
}
