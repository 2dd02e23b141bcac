package discovery

import (
	"fmt"
	"sync"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/wzhhnet/esp32-mg-server/internal/logging"
	"github.com/wzhhnet/esp32-mg-server/internal/wifi"
)

// registration is the part of *zeroconf.Server the announcer needs.
type registration interface {
	Shutdown()
}

type registerFunc func(instance, service, domain string, port int, text []string) (registration, error)

func zeroconfRegister(instance, service, domain string, port int, text []string) (registration, error) {
	return zeroconf.Register(instance, service, domain, port, text, nil)
}

// AnnouncerConfig configures the mDNS advertisement.
type AnnouncerConfig struct {
	Instance string
	Service  string // defaults to ServiceType
	Domain   string // defaults to ServiceDomain
	Port     int
	Version  string
}

// Announcer advertises the daemon while the station holds an address. It
// implements wifi.Notifier: an online outcome (re)registers the service with
// the current SSID in its TXT record, and offline, failed or timeout
// outcomes withdraw it.
type Announcer struct {
	cfg      AnnouncerConfig
	register registerFunc

	mu     sync.Mutex
	server registration
	ssid   string
	closed bool
}

// NewAnnouncer creates an idle announcer.
func NewAnnouncer(cfg AnnouncerConfig) (*Announcer, error) {
	if cfg.Instance == "" {
		return nil, fmt.Errorf("announcer: instance name is required")
	}
	if cfg.Port <= 0 {
		return nil, fmt.Errorf("announcer: invalid port %d", cfg.Port)
	}
	if cfg.Service == "" {
		cfg.Service = ServiceType
	}
	if cfg.Domain == "" {
		cfg.Domain = ServiceDomain
	}
	return &Announcer{cfg: cfg, register: zeroconfRegister}, nil
}

// Notify implements wifi.Notifier.
func (a *Announcer) Notify(o wifi.Outcome) {
	switch o.Kind {
	case wifi.OutcomeOnline:
		if err := a.Announce(o.SSID); err != nil {
			logging.Warn("mDNS announce failed", zap.String("instance", a.cfg.Instance), zap.Error(err))
		}
	case wifi.OutcomeOffline, wifi.OutcomeFailed, wifi.OutcomeTimeout:
		a.Withdraw()
	}
}

// Announce registers the service, replacing any registration for a
// different SSID.
func (a *Announcer) Announce(ssid string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	if a.server != nil {
		if a.ssid == ssid {
			return nil
		}
		a.server.Shutdown()
		a.server = nil
	}

	text := []string{TxtSSID + "=" + ssid, TxtVersion + "=" + a.cfg.Version}
	srv, err := a.register(a.cfg.Instance, a.cfg.Service, a.cfg.Domain, a.cfg.Port, text)
	if err != nil {
		return fmt.Errorf("failed to register %s: %w", a.cfg.Service, err)
	}
	a.server = srv
	a.ssid = ssid
	logging.Info("mDNS service announced",
		zap.String("instance", a.cfg.Instance),
		zap.String("service", a.cfg.Service),
		zap.Int("port", a.cfg.Port),
		zap.String("ssid", ssid),
	)
	return nil
}

// Withdraw stops advertising. It is a no-op when nothing is registered.
func (a *Announcer) Withdraw() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.withdrawLocked()
}

func (a *Announcer) withdrawLocked() {
	if a.server == nil {
		return
	}
	a.server.Shutdown()
	a.server = nil
	a.ssid = ""
	logging.Info("mDNS service withdrawn", zap.String("instance", a.cfg.Instance))
}

// Announced reports whether a registration is live.
func (a *Announcer) Announced() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.server != nil
}

// Close withdraws the service and ignores later outcomes.
func (a *Announcer) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.withdrawLocked()
	a.closed = true
}
