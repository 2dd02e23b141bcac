package wifi

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wzhhnet/esp32-mg-server/internal/record"
)

var testPolicy = Policy{MaxRetry: 5}

func names(cmds []Command) []string {
	out := make([]string, 0, len(cmds))
	for _, c := range cmds {
		out = append(out, c.Name())
	}
	return out
}

func booted() Model {
	return Model{Booted: true}
}

func provisioned(ssid, ip string) Model {
	return Model{
		Booted:     true,
		Record:     record.Record{SSID: ssid, IP: ip, Present: true},
		Target:     ssid,
		Associated: true,
		IP:         ip,
	}
}

func TestTransition_Init(t *testing.T) {
	tests := []struct {
		name     string
		rec      record.Record
		wantCmds []Command
		target   string
	}{
		{
			name:     "no record starts setup mode",
			wantCmds: []Command{SetMode{Mode: ModeAPSTA}, Start{}},
		},
		{
			name:     "record starts station mode",
			rec:      record.Record{SSID: "home", IP: "10.0.0.2", Present: true},
			wantCmds: []Command{SetMode{Mode: ModeSTA}, Start{}},
			target:   "home",
		},
		{
			name:     "present flag without ssid is not provisioned",
			rec:      record.Record{Present: true},
			wantCmds: []Command{SetMode{Mode: ModeAPSTA}, Start{}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, cmds := Transition(testPolicy, Model{}, Init{Record: tt.rec})
			assert.Equal(t, tt.wantCmds, cmds)
			assert.True(t, next.Booted)
			assert.Equal(t, Idle, next.State)
			assert.Equal(t, tt.target, next.Target)
			assert.Equal(t, tt.rec, next.Record)

			again, cmds := Transition(testPolicy, next, Init{Record: tt.rec})
			assert.Empty(t, cmds)
			assert.Equal(t, next, again)
		})
	}
}

func TestTransition_ScanRequest(t *testing.T) {
	next, cmds := Transition(testPolicy, Model{}, ScanRequest{})
	require.Len(t, cmds, 1)
	assert.ErrorIs(t, cmds[0].(Reject).Err, ErrNotReady)
	assert.Equal(t, Idle, next.State)

	next, cmds = Transition(testPolicy, booted(), ScanRequest{})
	assert.Equal(t, []Command{Scan{}}, cmds)
	assert.Equal(t, Scanning, next.State)

	for _, s := range []State{Scanning, Connecting, Reprovisioning} {
		m := booted()
		m.State = s
		next, cmds := Transition(testPolicy, m, ScanRequest{})
		require.Len(t, cmds, 1, s.String())
		assert.ErrorIs(t, cmds[0].(Reject).Err, ErrBusy)
		assert.Equal(t, m, next)
	}
}

func TestTransition_ScanDoneCapsResults(t *testing.T) {
	nets := make([]Network, 14)
	for i := range nets {
		nets[i] = Network{SSID: fmt.Sprintf("net-%d", i), RSSI: -40 - i}
	}
	m := booted()
	m.State = Scanning

	next, cmds := Transition(testPolicy, m, ScanDone{Networks: nets})
	assert.Empty(t, cmds)
	assert.Equal(t, Idle, next.State)
	require.Len(t, next.Networks, MaxScanResults)
	assert.Equal(t, nets[:MaxScanResults], next.Networks)

	nets[0].SSID = "mutated"
	assert.Equal(t, "net-0", next.Networks[0].SSID)
}

func TestTransition_ScanDoneKeepsOtherStates(t *testing.T) {
	m := booted()
	m.State = Connecting
	next, _ := Transition(testPolicy, m, ScanDone{Networks: []Network{{SSID: "a"}}})
	assert.Equal(t, Connecting, next.State)
	assert.Len(t, next.Networks, 1)
}

func TestTransition_Provision(t *testing.T) {
	a := Credentials{SSID: "A", Pass: "pw"}
	scanning := booted()
	scanning.State = Scanning
	connecting := booted()
	connecting.State = Connecting
	connecting.Target = "old"
	idleProvisioned := provisioned("home", "10.0.0.2")
	idleProvisioned.Associated = false
	idleProvisioned.IP = ""
	idleProvisioned.GaveUp = true

	tests := []struct {
		name      string
		m         Model
		wantCmds  []string
		wantState State
		pending   bool
	}{
		{"fresh device commits at once", booted(), []string{"set_credentials", "connect"}, Connecting, false},
		{"scan is cancelled first", scanning, []string{"cancel_scan", "set_credentials", "connect"}, Connecting, false},
		{"unprovisioned connecting tears down first", connecting, []string{"disconnect"}, Reprovisioning, true},
		{"provisioned and associated erases then disconnects", provisioned("home", "10.0.0.2"), []string{"erase_record", "disconnect"}, Reprovisioning, true},
		{"provisioned without a link erases then commits", idleProvisioned, []string{"erase_record", "set_credentials", "connect"}, Connecting, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, cmds := Transition(testPolicy, tt.m, Provision{Credentials: a})
			assert.Equal(t, tt.wantCmds, names(cmds))
			assert.Equal(t, tt.wantState, next.State)
			assert.Equal(t, 0, next.Retries)
			assert.False(t, next.GaveUp)
			if tt.pending {
				require.NotNil(t, next.Pending)
				assert.Equal(t, a, *next.Pending)
			} else {
				assert.Nil(t, next.Pending)
				assert.Equal(t, "A", next.Target)
			}
			// the record mirror only moves once the erase lands
			assert.Equal(t, tt.m.Record, next.Record)
		})
	}
}

func TestTransition_ProvisionWhileReprovisioningReplacesPending(t *testing.T) {
	m := provisioned("home", "10.0.0.2")
	m, _ = Transition(testPolicy, m, Provision{Credentials: Credentials{SSID: "A", Pass: "1"}})
	m.Record = record.Record{}

	next, cmds := Transition(testPolicy, m, Provision{Credentials: Credentials{SSID: "B", Pass: "2"}})
	assert.Empty(t, cmds)
	assert.Equal(t, Reprovisioning, next.State)
	require.NotNil(t, next.Pending)
	assert.Equal(t, "B", next.Pending.SSID)

	next, cmds = Transition(testPolicy, next, Disconnected{Reason: "assoc_leave"})
	assert.Equal(t, []string{"report", "set_credentials", "connect"}, names(cmds))
	assert.Equal(t, SetCredentials{Credentials: Credentials{SSID: "B", Pass: "2"}}, cmds[1])
	assert.Equal(t, Connecting, next.State)
	assert.Nil(t, next.Pending)
	assert.Equal(t, "B", next.Target)
}

func TestTransition_ProvisionRejects(t *testing.T) {
	_, cmds := Transition(testPolicy, booted(), Provision{Credentials: Credentials{SSID: ""}})
	require.Len(t, cmds, 1)
	assert.ErrorIs(t, cmds[0].(Reject).Err, ErrInvalidCredentials)

	long := Credentials{SSID: "x", Pass: string(make([]byte, MaxPassLen+1))}
	_, cmds = Transition(testPolicy, booted(), Provision{Credentials: long})
	require.Len(t, cmds, 1)
	assert.ErrorIs(t, cmds[0].(Reject).Err, ErrInvalidCredentials)

	_, cmds = Transition(testPolicy, Model{}, Provision{Credentials: Credentials{SSID: "A"}})
	require.Len(t, cmds, 1)
	assert.ErrorIs(t, cmds[0].(Reject).Err, ErrNotReady)
}

func TestTransition_StartedConnectsWhenProvisioned(t *testing.T) {
	m, _ := Transition(testPolicy, Model{}, Init{Record: record.Record{SSID: "home", IP: "10.0.0.2", Present: true}})
	next, cmds := Transition(testPolicy, m, Started{})
	assert.Equal(t, []Command{Connect{}}, cmds)
	assert.Equal(t, Connecting, next.State)

	m, _ = Transition(testPolicy, Model{}, Init{})
	next, cmds = Transition(testPolicy, m, Started{})
	assert.Empty(t, cmds)
	assert.Equal(t, Idle, next.State)
}

func TestTransition_StartedDuringScanConnectsAfterScan(t *testing.T) {
	rec := record.Record{SSID: "home", IP: "10.0.0.2", Present: true}
	m, _ := Transition(testPolicy, Model{}, Init{Record: rec})
	m, cmds := Transition(testPolicy, m, ScanRequest{})
	require.Equal(t, []Command{Scan{}}, cmds)

	m, cmds = Transition(testPolicy, m, Started{})
	assert.Empty(t, cmds)
	assert.Equal(t, Scanning, m.State)
	assert.True(t, m.ConnectOwed)

	next, cmds := Transition(testPolicy, m, ScanDone{Networks: []Network{{SSID: "home"}}})
	assert.Equal(t, []Command{Connect{}}, cmds)
	assert.Equal(t, Connecting, next.State)
	assert.False(t, next.ConnectOwed)
	assert.Equal(t, []Network{{SSID: "home"}}, next.Networks)

	// a stuck scan pays the connect on timeout instead
	p := Policy{MaxRetry: 5, BusyTimeout: time.Second}
	next, cmds = Transition(p, m, Timeout{Epoch: m.Epoch})
	assert.Equal(t, []string{"report", "connect", "schedule"}, names(cmds))
	assert.Equal(t, Connecting, next.State)

	// fresh credentials replace the owed connect
	next, cmds = Transition(testPolicy, m, Provision{Credentials: Credentials{SSID: "B", Pass: "pw2"}})
	assert.Equal(t, []string{"cancel_scan", "erase_record", "set_credentials", "connect"}, names(cmds))
	assert.False(t, next.ConnectOwed)
	_, cmds = Transition(testPolicy, next, ScanDone{})
	assert.Empty(t, cmds)
}

func TestTransition_ConnectedIgnoredWhileReprovisioning(t *testing.T) {
	m := booted()
	m.State = Reprovisioning
	m.Pending = &Credentials{SSID: "B"}
	m.Retries = 2

	next, cmds := Transition(testPolicy, m, Connected{})
	assert.Empty(t, cmds)
	assert.Equal(t, Reprovisioning, next.State)
	assert.Equal(t, 2, next.Retries)
	assert.True(t, next.Associated)
}

func TestTransition_RetryBound(t *testing.T) {
	m, _ := Transition(testPolicy, booted(), Provision{Credentials: Credentials{SSID: "A", Pass: "pw"}})
	connects := 0
	for i := 0; i < testPolicy.MaxRetry; i++ {
		var cmds []Command
		m, cmds = Transition(testPolicy, m, Disconnected{Reason: "no_ap_found"})
		for _, c := range cmds {
			if _, ok := c.(Connect); ok {
				connects++
			}
		}
		assert.LessOrEqual(t, m.Retries, testPolicy.MaxRetry)
	}
	assert.Equal(t, Idle, m.State)
	assert.True(t, m.GaveUp)
	assert.Equal(t, testPolicy.MaxRetry-1, connects)

	next, cmds := Transition(testPolicy, m, Disconnected{})
	assert.Empty(t, cmds)
	assert.Equal(t, m, next)
}

func TestTransition_ExhaustionReportsFailure(t *testing.T) {
	p := Policy{MaxRetry: 1, ReconnectAfter: time.Minute}
	m, _ := Transition(p, booted(), Provision{Credentials: Credentials{SSID: "A"}})
	next, cmds := Transition(p, m, Disconnected{Reason: "auth_fail"})

	require.Equal(t, []string{"report", "schedule"}, names(cmds))
	o := cmds[0].(Report).Outcome
	assert.Equal(t, OutcomeFailed, o.Kind)
	assert.ErrorIs(t, o.Err(), ErrRetriesExhausted)
	assert.Equal(t, Schedule{Event: RetryLater{Epoch: next.Epoch}, After: time.Minute}, cmds[1])

	again, cmds := Transition(p, next, RetryLater{Epoch: next.Epoch})
	assert.Equal(t, []Command{Connect{}}, cmds)
	assert.Equal(t, Connecting, again.State)
	assert.False(t, again.GaveUp)

	_, cmds = Transition(p, next, RetryLater{Epoch: next.Epoch - 1})
	assert.Empty(t, cmds)
}

func TestTransition_AddressAcquiredWritesRecordOnce(t *testing.T) {
	m, _ := Transition(testPolicy, booted(), Provision{Credentials: Credentials{SSID: "A", Pass: "pw"}})
	m, _ = Transition(testPolicy, m, Connected{})
	next, cmds := Transition(testPolicy, m, AddressAcquired{IP: "10.0.0.5"})

	require.Equal(t, []string{"report", "write_record"}, names(cmds))
	assert.Equal(t, WriteRecord{Record: record.Record{SSID: "A", IP: "10.0.0.5", Present: true}}, cmds[1])
	assert.Equal(t, OutcomeOnline, cmds[0].(Report).Outcome.Kind)
	assert.Equal(t, Idle, next.State)
	assert.Equal(t, "10.0.0.5", next.IP)

	next.Record = record.Record{SSID: "A", IP: "10.0.0.5", Present: true}
	_, cmds = Transition(testPolicy, next, AddressAcquired{IP: "10.0.0.9"})
	assert.Equal(t, []string{"report"}, names(cmds))

	_, cmds = Transition(testPolicy, next, FlushRecord{})
	assert.Empty(t, cmds)
}

func TestTransition_BusyTimeout(t *testing.T) {
	p := Policy{MaxRetry: 5, BusyTimeout: time.Second}
	m, cmds := Transition(p, booted(), ScanRequest{})
	require.Equal(t, []string{"scan", "schedule"}, names(cmds))
	armed := cmds[1].(Schedule).Event.(Timeout)
	assert.Equal(t, m.Epoch, armed.Epoch)

	_, cmds = Transition(p, m, Timeout{Epoch: armed.Epoch + 1})
	assert.Empty(t, cmds)

	next, cmds := Transition(p, m, armed)
	assert.Equal(t, Idle, next.State)
	require.Len(t, cmds, 1)
	o := cmds[0].(Report).Outcome
	assert.Equal(t, OutcomeTimeout, o.Kind)
	assert.Equal(t, "scanning", o.State)
	assert.False(t, next.GaveUp)
}

func TestTransition_TimeoutAbandonsPending(t *testing.T) {
	p := Policy{MaxRetry: 5, BusyTimeout: time.Second}
	m := provisioned("home", "10.0.0.2")
	m, _ = Transition(p, m, Provision{Credentials: Credentials{SSID: "B"}})
	require.Equal(t, Reprovisioning, m.State)

	next, _ := Transition(p, m, Timeout{Epoch: m.Epoch})
	assert.Equal(t, Idle, next.State)
	assert.Nil(t, next.Pending)
	assert.True(t, next.GaveUp)

	// a late disconnect no longer triggers reconnects to the old network
	_, cmds := Transition(p, next, Disconnected{})
	assert.Equal(t, []string{"report"}, names(cmds))
}

func TestTransition_DoesNotMutateInput(t *testing.T) {
	pending := Credentials{SSID: "A"}
	m := booted()
	m.State = Reprovisioning
	m.Pending = &pending
	m.Networks = []Network{{SSID: "x"}}
	before := m.clone()

	Transition(testPolicy, m, Provision{Credentials: Credentials{SSID: "B"}})
	Transition(testPolicy, m, ScanDone{Networks: []Network{{SSID: "y"}}})

	assert.Equal(t, before, m)
	assert.Equal(t, "A", pending.SSID)
}
