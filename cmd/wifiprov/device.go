package main

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wzhhnet/esp32-mg-server/internal/client"
	"github.com/wzhhnet/esp32-mg-server/internal/config"
	"github.com/wzhhnet/esp32-mg-server/internal/discovery"
	"github.com/wzhhnet/esp32-mg-server/internal/logging"
)

// Common flags for device commands (persistent on root)
var (
	deviceFlag  string
	timeoutFlag time.Duration
)

func init() {
	rootCmd.PersistentFlags().StringVar(&deviceFlag, "device", "", "Device name, nickname or host:port (skips discovery)")
	rootCmd.PersistentFlags().DurationVar(&timeoutFlag, "timeout", 45*time.Second, "Overall timeout for device operations")
}

// openRegistry loads the device registry. A broken registry only costs the
// name lookup, so it is logged and replaced with an empty one.
func openRegistry() *config.Registry {
	reg, err := config.LoadDefaultRegistry()
	if err != nil {
		logging.Warn("Ignoring device registry", zap.Error(err))
		return config.NewRegistry("")
	}
	return reg
}

func saveRegistry(reg *config.Registry) {
	if reg.Path() == "" {
		return
	}
	if err := reg.Save(); err != nil {
		logging.Warn("Failed to save device registry", zap.Error(err))
	}
}

// target is a resolved device: the registry key (if any) and its address.
type target struct {
	name string
	addr string
}

// resolveTarget maps --device to an address. Without --device it falls back
// to the registry default, then to a quick mDNS scan that must find exactly
// one device.
func resolveTarget(ctx context.Context, reg *config.Registry, device string) (target, error) {
	if device == "" && reg.Preferences != nil {
		device = reg.Preferences.DefaultDevice
	}
	if addr := reg.Resolve(device); addr != "" {
		t := target{addr: withDefaultPort(addr)}
		if reg.Device(device) != nil {
			t.name = device
		}
		return t, nil
	}

	devices, err := discovery.QuickScan(ctx)
	if err != nil {
		return target{}, fmt.Errorf("discovery failed: %w", err)
	}
	switch len(devices) {
	case 0:
		return target{}, fmt.Errorf("no devices found; use --device to give an address")
	case 1:
		dev := devices[0]
		reg.Seen(dev.Instance, dev.Addr())
		return target{name: dev.Instance, addr: dev.Addr()}, nil
	default:
		names := make([]string, len(devices))
		for i, d := range devices {
			names[i] = d.Instance
		}
		return target{}, fmt.Errorf("found %d devices (%s); pick one with --device", len(devices), strings.Join(names, ", "))
	}
}

// withDefaultPort appends the daemon's default port to a bare host.
func withDefaultPort(addr string) string {
	if _, _, err := net.SplitHostPort(addr); err == nil {
		return addr
	}
	return net.JoinHostPort(addr, strconv.Itoa(discovery.DefaultPort))
}

// connect resolves the target and opens a client to it.
func connect(ctx context.Context, reg *config.Registry) (target, *client.Client, error) {
	t, err := resolveTarget(ctx, reg, deviceFlag)
	if err != nil {
		return target{}, nil, err
	}
	c := client.NewClient(t.addr)
	if err := c.Connect(ctx); err != nil {
		return target{}, nil, err
	}
	return t, c, nil
}
