// Package sim is a host-side radio driver. It reproduces the notification
// behavior of a station interface closely enough to run the daemon and the
// state machine without hardware.
package sim

import (
	"errors"
	"fmt"
	"net/netip"
	"sort"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"go.uber.org/zap"

	"github.com/wzhhnet/esp32-mg-server/internal/logging"
	"github.com/wzhhnet/esp32-mg-server/internal/nvs"
	"github.com/wzhhnet/esp32-mg-server/internal/wifi"
)

// credentialsKey is where the radio keeps its own copy of the station
// credentials, separate from the provisioning record.
const credentialsKey = "sta.cfg"

// Disconnect reasons, named after the driver's reason codes.
const (
	ReasonNoAPFound     = "no_ap_found"
	ReasonAuthFail      = "auth_fail"
	ReasonAssocLeave    = "assoc_leave"
	ReasonBeaconTimeout = "beacon_timeout"
)

var (
	ErrNotStarted     = errors.New("radio not started")
	ErrNoCredentials  = errors.New("no station credentials set")
	ErrScanInProgress = errors.New("scan already in progress")
	ErrInvalidMode    = errors.New("invalid radio mode")
	ErrClosed         = errors.New("radio closed")
)

// Sink receives notifications. *wifi.Controller implements it.
type Sink interface {
	Notify(ev wifi.Event) error
}

// Network is an access point the simulated radio can see.
type Network struct {
	SSID string
	Pass string // empty means open
	RSSI int
}

// Options configures a Radio.
type Options struct {
	// Latency delays every notification.
	Latency time.Duration

	Networks []Network

	// Subnet is the range station addresses are leased from.
	Subnet string

	// Store, if set, persists credentials across restarts.
	Store nvs.Store
}

// DefaultNetworks is used when Options.Networks is empty.
var DefaultNetworks = []Network{
	{SSID: "HomeNet", Pass: "correct horse", RSSI: -48},
	{SSID: "CoffeeShop", RSSI: -67},
	{SSID: "Neighbour-5G", Pass: "hunter2hunter2", RSSI: -81},
}

type storedCredentials struct {
	SSID string `cbor:"1,keyasint"`
	Pass string `cbor:"2,keyasint"`
}

// Radio implements wifi.Driver.
type Radio struct {
	mu       sync.Mutex
	latency  time.Duration
	networks []Network
	store    nvs.Store
	leases   *leasePool

	mode       wifi.Mode
	started    bool
	creds      wifi.Credentials
	connecting bool
	linkUp     bool
	ip         string
	scanning   bool

	// gen invalidates link completions queued before a disconnect.
	gen     uint64
	scanGen uint64

	q *queue
}

// New creates a radio. Call Run to start delivering notifications.
func New(opts Options) (*Radio, error) {
	subnet := opts.Subnet
	if subnet == "" {
		subnet = "192.168.1.0/24"
	}
	leases, err := newLeasePool(subnet)
	if err != nil {
		return nil, err
	}
	networks := opts.Networks
	if len(networks) == 0 {
		networks = DefaultNetworks
	}
	r := &Radio{
		latency:  opts.Latency,
		networks: append([]Network(nil), networks...),
		store:    opts.Store,
		leases:   leases,
		q:        newQueue(),
	}
	if err := r.loadCredentials(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Radio) loadCredentials() error {
	if r.store == nil {
		return nil
	}
	data, err := r.store.GetBlob(credentialsKey)
	if errors.Is(err, nvs.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read radio credentials: %w", err)
	}
	var sc storedCredentials
	if err := cbor.Unmarshal(data, &sc); err != nil {
		logging.Warn("Discarding unreadable radio credentials", zap.Error(err))
		return nil
	}
	r.creds = wifi.Credentials{SSID: sc.SSID, Pass: sc.Pass}
	return nil
}

// Run delivers notifications to sink until Close.
func (r *Radio) Run(sink Sink) {
	go r.q.run(sink)
}

// Close stops delivery. Pending notifications are dropped.
func (r *Radio) Close() error {
	r.q.close()
	return nil
}

// Credentials returns the credentials currently held by the radio.
func (r *Radio) Credentials() wifi.Credentials {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.creds
}

// Mode returns the configured radio mode.
func (r *Radio) Mode() wifi.Mode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mode
}

// SetMode implements wifi.Driver.
func (r *Radio) SetMode(mode wifi.Mode) error {
	if mode != wifi.ModeSTA && mode != wifi.ModeAPSTA {
		return fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mode = mode
	return nil
}

// Start implements wifi.Driver.
func (r *Radio) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.mode == "" {
		return fmt.Errorf("%w: mode not set", ErrInvalidMode)
	}
	r.started = true
	r.after(func() (wifi.Event, bool) { return wifi.Started{}, true })
	return nil
}

// SetCredentials implements wifi.Driver. Credentials apply on the next
// Connect.
func (r *Radio) SetCredentials(cr wifi.Credentials) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.store != nil {
		data, err := cbor.Marshal(storedCredentials{SSID: cr.SSID, Pass: cr.Pass})
		if err != nil {
			return err
		}
		if err := r.store.SetBlob(credentialsKey, data); err != nil {
			return fmt.Errorf("failed to stage radio credentials: %w", err)
		}
		if err := r.store.Commit(); err != nil {
			return fmt.Errorf("failed to commit radio credentials: %w", err)
		}
	}
	r.creds = cr
	return nil
}

// Connect implements wifi.Driver.
func (r *Radio) Connect() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started {
		return ErrNotStarted
	}
	if r.creds.SSID == "" {
		return ErrNoCredentials
	}
	r.gen++
	gen := r.gen
	r.connecting = true
	r.linkUp = false
	r.ip = ""

	r.after(func() (wifi.Event, bool) {
		if gen != r.gen {
			return nil, false
		}
		r.connecting = false
		n, ok := r.lookup(r.creds.SSID)
		if !ok {
			return wifi.Disconnected{Reason: ReasonNoAPFound}, true
		}
		if n.Pass != "" && n.Pass != r.creds.Pass {
			return wifi.Disconnected{Reason: ReasonAuthFail}, true
		}
		r.linkUp = true
		r.after(func() (wifi.Event, bool) {
			if gen != r.gen || !r.linkUp {
				return nil, false
			}
			r.ip = r.leases.lease(r.creds.SSID)
			return wifi.AddressAcquired{IP: r.ip}, true
		})
		return wifi.Connected{}, true
	})
	return nil
}

// Disconnect implements wifi.Driver. A disconnected notification follows
// only if a link was up or being established.
func (r *Radio) Disconnect() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started {
		return ErrNotStarted
	}
	active := r.linkUp || r.connecting
	r.gen++
	r.linkUp = false
	r.connecting = false
	r.ip = ""
	if active {
		r.after(func() (wifi.Event, bool) {
			return wifi.Disconnected{Reason: ReasonAssocLeave}, true
		})
	}
	return nil
}

// Scan implements wifi.Driver.
func (r *Radio) Scan() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started {
		return ErrNotStarted
	}
	if r.scanning {
		return ErrScanInProgress
	}
	r.scanning = true
	r.scanGen++
	gen := r.scanGen
	r.after(func() (wifi.Event, bool) {
		if gen != r.scanGen || !r.scanning {
			return nil, false
		}
		r.scanning = false
		return wifi.ScanDone{Networks: r.visible()}, true
	})
	return nil
}

// CancelScan implements wifi.Driver.
func (r *Radio) CancelScan() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scanning = false
	r.scanGen++
	return nil
}

// Drop simulates losing the link, e.g. the access point going away. It
// reports whether a link was up.
func (r *Radio) Drop(reason string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.linkUp {
		return false
	}
	r.gen++
	r.linkUp = false
	r.ip = ""
	r.after(func() (wifi.Event, bool) {
		return wifi.Disconnected{Reason: reason}, true
	})
	return true
}

// SetNetworks replaces the visible access points.
func (r *Radio) SetNetworks(networks []Network) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.networks = append([]Network(nil), networks...)
}

func (r *Radio) lookup(ssid string) (Network, bool) {
	for _, n := range r.networks {
		if n.SSID == ssid {
			return n, true
		}
	}
	return Network{}, false
}

// visible returns every network, strongest first.
func (r *Radio) visible() []wifi.Network {
	out := make([]wifi.Network, 0, len(r.networks))
	for _, n := range r.networks {
		out = append(out, wifi.Network{SSID: n.SSID, RSSI: n.RSSI, Open: n.Pass == ""})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RSSI > out[j].RSSI })
	return out
}

// after queues fn to run under r.mu once the latency elapsed. Must be
// called with r.mu held.
func (r *Radio) after(fn func() (wifi.Event, bool)) {
	r.q.push(item{
		due: time.Now().Add(r.latency),
		resolve: func() (wifi.Event, bool) {
			r.mu.Lock()
			defer r.mu.Unlock()
			return fn()
		},
	})
}

// leasePool hands out stable station addresses per network.
type leasePool struct {
	mu     sync.Mutex
	prefix netip.Prefix
	next   netip.Addr
	leases map[string]string
}

func newLeasePool(subnet string) (*leasePool, error) {
	prefix, err := netip.ParsePrefix(subnet)
	if err != nil {
		return nil, fmt.Errorf("invalid subnet %q: %w", subnet, err)
	}
	prefix = prefix.Masked()
	if !prefix.Addr().Is4() || prefix.Bits() > 30 {
		return nil, fmt.Errorf("invalid subnet %q: need an IPv4 prefix of /30 or wider", subnet)
	}
	// .1 is the gateway
	return &leasePool{
		prefix: prefix,
		next:   prefix.Addr().Next().Next(),
		leases: make(map[string]string),
	}, nil
}

func (p *leasePool) lease(ssid string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ip, ok := p.leases[ssid]; ok {
		return ip
	}
	ip := p.next
	if n := ip.Next(); p.prefix.Contains(n.Next()) {
		p.next = n
	}
	p.leases[ssid] = ip.String()
	return p.leases[ssid]
}
