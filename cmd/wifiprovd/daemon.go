package main

import (
	"context"
	"errors"
	"fmt"
	"net"

	"go.uber.org/zap"

	"github.com/wzhhnet/esp32-mg-server/internal/config"
	"github.com/wzhhnet/esp32-mg-server/internal/discovery"
	"github.com/wzhhnet/esp32-mg-server/internal/logging"
	"github.com/wzhhnet/esp32-mg-server/internal/notify"
	"github.com/wzhhnet/esp32-mg-server/internal/nvs"
	"github.com/wzhhnet/esp32-mg-server/internal/radio/sim"
	"github.com/wzhhnet/esp32-mg-server/internal/record"
	"github.com/wzhhnet/esp32-mg-server/internal/server"
	"github.com/wzhhnet/esp32-mg-server/internal/version"
	"github.com/wzhhnet/esp32-mg-server/internal/wifi"
)

// daemon owns every long-lived component. Outcomes reach the sinks through
// relay, which is filled in once the server is listening.
type daemon struct {
	cfg *config.Config

	store     nvs.Store
	radio     *sim.Radio
	ctl       *wifi.Controller
	srv       *server.Server
	relay     *notify.Relay
	announcer *discovery.Announcer
	mqtt      *notify.MQTT
}

func simNetworks(in []config.SimNetwork) []sim.Network {
	out := make([]sim.Network, 0, len(in))
	for _, n := range in {
		out = append(out, sim.Network{SSID: n.SSID, Pass: n.Pass, RSSI: n.RSSI})
	}
	return out
}

// newDaemon opens the store and builds the radio, controller and server.
// Nothing runs until start.
func newDaemon(cfg *config.Config) (*daemon, error) {
	store, err := nvs.Open(cfg.Store.Backend, cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	radio, err := sim.New(sim.Options{
		Latency:  cfg.Radio.Latency,
		Networks: simNetworks(cfg.Radio.Networks),
		Subnet:   cfg.Radio.Subnet,
		Store:    store,
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to create radio: %w", err)
	}

	relay := &notify.Relay{}
	ctl := wifi.NewController(radio, record.NewStore(store), relay, wifi.Config{
		MaxRetry:       cfg.WiFi.MaxRetry,
		BusyTimeout:    cfg.WiFi.BusyTimeout,
		ReconnectAfter: cfg.WiFi.ReconnectAfter,
		RecordRetry:    cfg.WiFi.RecordRetry,
	})

	srv, err := server.New(server.Config{
		Listen:    cfg.HTTP.Listen,
		CertPath:  cfg.HTTP.TLSCert,
		KeyPath:   cfg.HTTP.TLSKey,
		Keepalive: cfg.HTTP.Keepalive,
	}, ctl)
	if err != nil {
		radio.Close()
		store.Close()
		return nil, fmt.Errorf("failed to create server: %w", err)
	}

	return &daemon{
		cfg:   cfg,
		store: store,
		radio: radio,
		ctl:   ctl,
		srv:   srv,
		relay: relay,
	}, nil
}

// start opens the listener, attaches the outcome sinks and then brings the
// controller up from the stored record. Requests that arrive before Init
// are answered as not ready.
func (d *daemon) start(ctx context.Context) error {
	d.ctl.Start()
	d.radio.Run(d.ctl)

	if err := d.srv.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	d.relay.Attach(d.srv, notify.Log{})

	if d.cfg.MDNS.Enable {
		port := 0
		if tcp, ok := d.srv.Addr().(*net.TCPAddr); ok {
			port = tcp.Port
		}
		a, err := discovery.NewAnnouncer(discovery.AnnouncerConfig{
			Instance: d.cfg.MDNS.Instance,
			Service:  d.cfg.MDNS.Service,
			Domain:   d.cfg.MDNS.Domain,
			Port:     port,
			Version:  version.Version,
		})
		if err != nil {
			logging.Warn("mDNS announcements disabled", zap.Error(err))
		} else {
			d.announcer = a
			d.relay.Attach(a)
		}
	}

	if d.cfg.MQTT.Broker != "" {
		m, err := notify.DialMQTT(notify.MQTTConfig{
			Broker:   d.cfg.MQTT.Broker,
			Topic:    d.cfg.MQTT.Topic,
			ClientID: d.cfg.MQTT.ClientID,
			Username: d.cfg.MQTT.Username,
			Password: d.cfg.MQTT.Password,
		})
		if err != nil {
			logging.Warn("MQTT publishing disabled", zap.String("broker", d.cfg.MQTT.Broker), zap.Error(err))
		} else {
			d.mqtt = m
			d.relay.Attach(m)
		}
	}

	if err := d.ctl.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize controller: %w", err)
	}

	logging.Info("Daemon started",
		zap.String("addr", d.srv.Addr().String()),
		zap.String("store", d.cfg.Store.Backend),
		zap.Bool("mdns", d.announcer != nil),
		zap.Bool("mqtt", d.mqtt != nil),
	)
	return nil
}

// shutdown stops everything in reverse order of start.
func (d *daemon) shutdown(ctx context.Context) error {
	var errs []error
	if err := d.srv.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("server: %w", err))
	}
	if d.announcer != nil {
		d.announcer.Close()
	}
	if d.mqtt != nil {
		d.mqtt.Close()
	}
	if err := d.ctl.Close(); err != nil {
		errs = append(errs, fmt.Errorf("controller: %w", err))
	}
	if err := d.radio.Close(); err != nil {
		errs = append(errs, fmt.Errorf("radio: %w", err))
	}
	if err := d.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store: %w", err))
	}
	return errors.Join(errs...)
}
