package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wzhhnet/esp32-mg-server/internal/wifi"
)

type fakeProvisioner struct {
	networks   []wifi.Network
	scanErr    error
	provErr    error
	outcome    wifi.Outcome
	waitErr    error
	provisions []wifi.Credentials
}

func (f *fakeProvisioner) ScanWait(ctx context.Context, poll time.Duration) ([]wifi.Network, error) {
	return f.networks, f.scanErr
}

func (f *fakeProvisioner) Provision(ctx context.Context, ssid, pass string) error {
	f.provisions = append(f.provisions, wifi.Credentials{SSID: ssid, Pass: pass})
	return f.provErr
}

func (f *fakeProvisioner) WaitOnline(ctx context.Context, ssid string) (wifi.Outcome, error) {
	return f.outcome, f.waitErr
}

func press(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m AppModel, msg tea.Msg) (AppModel, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	am, ok := next.(AppModel)
	require.True(t, ok)
	return am, cmd
}

// scanned returns a model sitting on the network list after a scan.
func scanned(t *testing.T, f *fakeProvisioner) AppModel {
	t.Helper()
	m := NewAppModel(context.Background(), f, Options{Device: "test"})
	require.True(t, m.Scanning)
	m, _ = update(t, m, m.scanCmd()())
	require.False(t, m.Scanning)
	return m
}

// provision walks the model through accept and outcome.
func provision(t *testing.T, m AppModel) AppModel {
	t.Helper()
	require.Equal(t, ScreenConnecting, m.CurrentScreen)
	m, wait := update(t, m, m.provisionCmd(m.Selected.SSID, m.password.Value())())
	if m.CurrentScreen == ScreenResult {
		return m
	}
	require.NotNil(t, wait)
	m, _ = update(t, m, wait())
	return m
}

func TestWizard_SecuredNetwork(t *testing.T) {
	f := &fakeProvisioner{
		networks: []wifi.Network{{SSID: "HomeNet", RSSI: -48}, {SSID: "CoffeeShop", RSSI: -67, Open: true}},
		outcome:  wifi.Outcome{Kind: wifi.OutcomeOnline, SSID: "HomeNet", IP: "192.168.1.2"},
	}
	m := scanned(t, f)
	assert.Contains(t, m.View(), "HomeNet")

	m, _ = update(t, m, press("enter"))
	require.Equal(t, ScreenPassword, m.CurrentScreen)
	assert.Equal(t, "HomeNet", m.Selected.SSID)

	m, _ = update(t, m, press("correct horse"))
	assert.Equal(t, "correct horse", m.password.Value())

	m, _ = update(t, m, press("enter"))
	m = provision(t, m)

	require.Len(t, f.provisions, 1)
	assert.Equal(t, wifi.Credentials{SSID: "HomeNet", Pass: "correct horse"}, f.provisions[0])
	assert.Equal(t, ScreenResult, m.CurrentScreen)
	assert.True(t, m.Succeeded())
	assert.Contains(t, m.View(), "192.168.1.2")
}

func TestWizard_OpenNetworkSkipsPassword(t *testing.T) {
	f := &fakeProvisioner{
		networks: []wifi.Network{{SSID: "CoffeeShop", RSSI: -67, Open: true}},
		outcome:  wifi.Outcome{Kind: wifi.OutcomeOnline, SSID: "CoffeeShop", IP: "192.168.1.3"},
	}
	m := scanned(t, f)

	m, _ = update(t, m, press("enter"))
	m = provision(t, m)

	require.Len(t, f.provisions, 1)
	assert.Equal(t, "", f.provisions[0].Pass)
	assert.True(t, m.Succeeded())
}

func TestWizard_AuthFailure(t *testing.T) {
	out := wifi.Outcome{Kind: wifi.OutcomeFailed, SSID: "HomeNet", Retries: 2, Reason: "auth_fail"}
	f := &fakeProvisioner{
		networks: []wifi.Network{{SSID: "HomeNet", RSSI: -48}},
		outcome:  out,
		waitErr:  errors.New("provisioning failed"),
	}
	m := scanned(t, f)
	m, _ = update(t, m, press("enter"))
	m, _ = update(t, m, press("wrong"))
	m, _ = update(t, m, press("enter"))
	m = provision(t, m)

	assert.Equal(t, ScreenResult, m.CurrentScreen)
	assert.False(t, m.Succeeded())
	assert.Equal(t, out, m.Outcome)
	assert.Contains(t, m.View(), "passphrase")

	// try again returns to the list
	m, _ = update(t, m, press("r"))
	assert.Equal(t, ScreenNetworks, m.CurrentScreen)
	assert.Nil(t, m.Selected)
}

func TestWizard_ProvisionRejected(t *testing.T) {
	f := &fakeProvisioner{
		networks: []wifi.Network{{SSID: "CoffeeShop", Open: true}},
		provErr:  errors.New("busy"),
	}
	m := scanned(t, f)
	m, _ = update(t, m, press("enter"))
	m = provision(t, m)

	assert.Equal(t, ScreenResult, m.CurrentScreen)
	assert.EqualError(t, m.LastError, "busy")
	assert.False(t, m.Succeeded())
}

func TestWizard_PasswordBack(t *testing.T) {
	f := &fakeProvisioner{networks: []wifi.Network{{SSID: "HomeNet"}}}
	m := scanned(t, f)
	m, _ = update(t, m, press("enter"))
	require.Equal(t, ScreenPassword, m.CurrentScreen)

	m, _ = update(t, m, press("esc"))
	assert.Equal(t, ScreenNetworks, m.CurrentScreen)
	assert.Empty(t, f.provisions)
}

func TestWizard_ScanError(t *testing.T) {
	f := &fakeProvisioner{scanErr: errors.New("device unreachable")}
	m := scanned(t, f)

	assert.Error(t, m.LastError)
	assert.Contains(t, m.View(), "device unreachable")

	m, cmd := update(t, m, press("r"))
	assert.True(t, m.Scanning)
	assert.NotNil(t, cmd)
}

func TestWizard_LateMessagesIgnored(t *testing.T) {
	f := &fakeProvisioner{networks: []wifi.Network{{SSID: "HomeNet"}}}
	m := scanned(t, f)

	m, _ = update(t, m, outcomeMsg{outcome: wifi.Outcome{Kind: wifi.OutcomeOnline}})
	assert.Equal(t, ScreenNetworks, m.CurrentScreen)

	m, cmd := update(t, m, acceptedMsg{})
	assert.Equal(t, ScreenNetworks, m.CurrentScreen)
	assert.Nil(t, cmd)
}

func TestWizard_WindowSize(t *testing.T) {
	m := NewAppModel(context.Background(), &fakeProvisioner{}, Options{})
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	assert.Equal(t, 120, m.Width)
	assert.Equal(t, 40, m.Height)
	assert.True(t, strings.Contains(m.View(), AppName))
}

func TestFailureHint(t *testing.T) {
	tests := []struct {
		name    string
		outcome wifi.Outcome
		want    string
	}{
		{"auth", wifi.Outcome{Kind: wifi.OutcomeFailed, Reason: "auth_fail"}, "passphrase"},
		{"retries", wifi.Outcome{Kind: wifi.OutcomeFailed, Retries: 5, Reason: "no_ap_found"}, "5 attempts"},
		{"timeout", wifi.Outcome{Kind: wifi.OutcomeTimeout}, "in time"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, failureHint(tt.outcome, nil), tt.want)
		})
	}
}
