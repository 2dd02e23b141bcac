package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Device is a provisioning daemon found on the local network
type Device struct {
	// Instance is the advertised mDNS instance name (e.g., "wifiprov-kitchen")
	Instance string

	// Hostname is the mDNS hostname (e.g., "kitchen.local.")
	Hostname string

	// IP is the first IPv4 address, or IPv6 when there is none
	IP string

	// Port is the HTTP port of the daemon
	Port int

	// Metadata contains the TXT record data: "ssid", "version"
	Metadata map[string]string

	// DiscoveredAt is when the device was discovered
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the device
func (d *Device) String() string {
	if ssid := d.SSID(); ssid != "" {
		return fmt.Sprintf("%s at %s (on %q)", d.Instance, d.Addr(), ssid)
	}
	return fmt.Sprintf("%s at %s", d.Instance, d.Addr())
}

// Addr returns host:port for dialing.
func (d *Device) Addr() string {
	return net.JoinHostPort(d.IP, strconv.Itoa(d.Port))
}

// SSID is the network the device reported joining, if any.
func (d *Device) SSID() string {
	return d.GetMetadata(TxtSSID)
}

// Version is the daemon build the device reported.
func (d *Device) Version() string {
	return d.GetMetadata(TxtVersion)
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (d *Device) GetMetadata(key string) string {
	if d.Metadata == nil {
		return ""
	}
	return d.Metadata[key]
}
