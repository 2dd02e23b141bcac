package sim

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wzhhnet/esp32-mg-server/internal/nvs"
	"github.com/wzhhnet/esp32-mg-server/internal/record"
	"github.com/wzhhnet/esp32-mg-server/internal/wifi"
)

type recorder struct {
	ch chan wifi.Event
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan wifi.Event, 64)}
}

func (r *recorder) Notify(ev wifi.Event) error {
	r.ch <- ev
	return nil
}

func (r *recorder) next(t *testing.T) wifi.Event {
	t.Helper()
	select {
	case ev := <-r.ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notification")
		return nil
	}
}

func (r *recorder) quiet(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case ev := <-r.ch:
		t.Fatalf("unexpected notification %s", ev.Name())
	case <-time.After(d):
	}
}

func startedRadio(t *testing.T, opts Options) (*Radio, *recorder) {
	t.Helper()
	r, err := New(opts)
	require.NoError(t, err)
	rec := newRecorder()
	r.Run(rec)
	t.Cleanup(func() { _ = r.Close() })

	require.NoError(t, r.SetMode(wifi.ModeAPSTA))
	require.NoError(t, r.Start())
	assert.Equal(t, wifi.Started{}, rec.next(t))
	return r, rec
}

func TestRadio_ConnectOutcomes(t *testing.T) {
	tests := []struct {
		name  string
		creds wifi.Credentials
		want  []wifi.Event
	}{
		{
			name:  "valid credentials",
			creds: wifi.Credentials{SSID: "HomeNet", Pass: "correct horse"},
			want:  []wifi.Event{wifi.Connected{}, wifi.AddressAcquired{IP: "192.168.1.2"}},
		},
		{
			name:  "open network ignores passphrase",
			creds: wifi.Credentials{SSID: "CoffeeShop", Pass: "whatever"},
			want:  []wifi.Event{wifi.Connected{}, wifi.AddressAcquired{IP: "192.168.1.2"}},
		},
		{
			name:  "wrong passphrase",
			creds: wifi.Credentials{SSID: "HomeNet", Pass: "nope"},
			want:  []wifi.Event{wifi.Disconnected{Reason: ReasonAuthFail}},
		},
		{
			name:  "unknown network",
			creds: wifi.Credentials{SSID: "Elsewhere"},
			want:  []wifi.Event{wifi.Disconnected{Reason: ReasonNoAPFound}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, rec := startedRadio(t, Options{})
			require.NoError(t, r.SetCredentials(tt.creds))
			require.NoError(t, r.Connect())
			for _, want := range tt.want {
				assert.Equal(t, want, rec.next(t))
			}
		})
	}
}

func TestRadio_NotStarted(t *testing.T) {
	r, err := New(Options{})
	require.NoError(t, err)
	require.NoError(t, r.SetCredentials(wifi.Credentials{SSID: "HomeNet"}))

	assert.ErrorIs(t, r.Connect(), ErrNotStarted)
	assert.ErrorIs(t, r.Scan(), ErrNotStarted)
	assert.ErrorIs(t, r.Start(), ErrInvalidMode)
	assert.ErrorIs(t, r.SetMode("monitor"), ErrInvalidMode)
}

func TestRadio_ConnectWithoutCredentials(t *testing.T) {
	r, _ := startedRadio(t, Options{})
	assert.ErrorIs(t, r.Connect(), ErrNoCredentials)
}

func TestRadio_DisconnectOnlyReportsActiveLink(t *testing.T) {
	r, rec := startedRadio(t, Options{})
	require.NoError(t, r.Disconnect())
	rec.quiet(t, 50*time.Millisecond)

	require.NoError(t, r.SetCredentials(wifi.Credentials{SSID: "HomeNet", Pass: "correct horse"}))
	require.NoError(t, r.Connect())
	assert.Equal(t, wifi.Connected{}, rec.next(t))
	assert.IsType(t, wifi.AddressAcquired{}, rec.next(t))

	require.NoError(t, r.Disconnect())
	assert.Equal(t, wifi.Disconnected{Reason: ReasonAssocLeave}, rec.next(t))
}

func TestRadio_Drop(t *testing.T) {
	r, rec := startedRadio(t, Options{})
	assert.False(t, r.Drop(ReasonBeaconTimeout))

	require.NoError(t, r.SetCredentials(wifi.Credentials{SSID: "CoffeeShop"}))
	require.NoError(t, r.Connect())
	rec.next(t)
	rec.next(t)

	assert.True(t, r.Drop(ReasonBeaconTimeout))
	assert.Equal(t, wifi.Disconnected{Reason: ReasonBeaconTimeout}, rec.next(t))
}

func TestRadio_Scan(t *testing.T) {
	r, rec := startedRadio(t, Options{Latency: 20 * time.Millisecond})
	require.NoError(t, r.Scan())
	assert.ErrorIs(t, r.Scan(), ErrScanInProgress)

	done, ok := rec.next(t).(wifi.ScanDone)
	require.True(t, ok)
	require.Len(t, done.Networks, len(DefaultNetworks))
	assert.Equal(t, wifi.Network{SSID: "HomeNet", RSSI: -48, Open: false}, done.Networks[0])
	assert.Equal(t, wifi.Network{SSID: "CoffeeShop", RSSI: -67, Open: true}, done.Networks[1])

	require.NoError(t, r.Scan())
	require.NoError(t, r.CancelScan())
	rec.quiet(t, 80*time.Millisecond)
}

func TestRadio_CredentialsPersist(t *testing.T) {
	store := nvs.NewMemStore()
	r, err := New(Options{Store: store})
	require.NoError(t, err)
	require.NoError(t, r.SetCredentials(wifi.Credentials{SSID: "HomeNet", Pass: "correct horse"}))

	again, err := New(Options{Store: store})
	require.NoError(t, err)
	assert.Equal(t, wifi.Credentials{SSID: "HomeNet", Pass: "correct horse"}, again.Credentials())
}

func TestLeasePool(t *testing.T) {
	p, err := newLeasePool("10.1.2.0/24")
	require.NoError(t, err)
	assert.Equal(t, "10.1.2.2", p.lease("a"))
	assert.Equal(t, "10.1.2.3", p.lease("b"))
	assert.Equal(t, "10.1.2.2", p.lease("a"))

	_, err = newLeasePool("fe80::/64")
	assert.Error(t, err)
	_, err = newLeasePool("not-a-subnet")
	assert.Error(t, err)
}

type outcomes struct {
	mu  sync.Mutex
	all []wifi.Outcome
}

func (o *outcomes) Notify(out wifi.Outcome) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.all = append(o.all, out)
}

// The controller driven by the simulated radio provisions, survives a
// restart and reprovisions onto another network.
func TestRadio_WithController(t *testing.T) {
	store := nvs.NewMemStore()
	ctx := context.Background()
	cfg := wifi.Config{MaxRetry: 3, BusyTimeout: 5 * time.Second}

	boot := func() (*wifi.Controller, *Radio) {
		radio, err := New(Options{Latency: time.Millisecond, Store: store})
		require.NoError(t, err)
		ctl := wifi.NewController(radio, record.NewStore(store), &outcomes{}, cfg)
		ctl.Start()
		radio.Run(ctl)
		require.NoError(t, ctl.Init(ctx))
		return ctl, radio
	}

	ctl, radio := boot()
	assert.Equal(t, wifi.ModeAPSTA, radio.Mode())
	require.NoError(t, ctl.Provision(ctx, wifi.Credentials{SSID: "HomeNet", Pass: "correct horse"}))
	require.Eventually(t, func() bool { return ctl.Provisioned().Provisioned }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, wifi.Status{Provisioned: true, SSID: "HomeNet", IP: "192.168.1.2"}, ctl.Provisioned())
	_ = radio.Close()
	_ = ctl.Close()

	ctl, radio = boot()
	defer func() { _ = radio.Close(); _ = ctl.Close() }()
	assert.Equal(t, wifi.ModeSTA, radio.Mode())
	require.Eventually(t, func() bool { return ctl.Snapshot().IP != "" }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, ctl.Provision(ctx, wifi.Credentials{SSID: "CoffeeShop"}))
	require.Eventually(t, func() bool {
		st := ctl.Provisioned()
		return st.Provisioned && st.SSID == "CoffeeShop"
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "CoffeeShop", radio.Credentials().SSID)
}
