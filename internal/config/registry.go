package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

const registryVersion = 1

// Registry is the client's record of provisioning devices it has seen.
type Registry struct {
	Version     int                `yaml:"version"`
	Devices     map[string]*Device `yaml:"devices,omitempty"` // Keyed by mDNS instance name
	Preferences *Preferences       `yaml:"preferences,omitempty"`

	path string
	mu   sync.Mutex
}

// Device is what the client remembers about one device.
type Device struct {
	Nickname string    `yaml:"nickname,omitempty"`
	Addr     string    `yaml:"addr,omitempty"`      // host:port of the RPC endpoint
	LastSSID string    `yaml:"last_ssid,omitempty"` // network it was last provisioned onto
	LastIP   string    `yaml:"last_ip,omitempty"`   // station address it reported
	LastSeen time.Time `yaml:"last_seen,omitempty"`
}

// Preferences are client-wide defaults.
type Preferences struct {
	DiscoverTimeout int    `yaml:"discover_timeout"` // seconds
	DefaultDevice   string `yaml:"default_device,omitempty"`
}

// NewRegistry creates an empty registry that saves to path.
func NewRegistry(path string) *Registry {
	return &Registry{
		Version:     registryVersion,
		Devices:     make(map[string]*Device),
		Preferences: &Preferences{DiscoverTimeout: 5},
		path:        path,
	}
}

// LoadRegistry reads the registry at path. A missing file yields an empty
// registry bound to path.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return NewRegistry(path), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read registry: %w", err)
	}

	reg := NewRegistry(path)
	if err := yaml.Unmarshal(data, reg); err != nil {
		return nil, fmt.Errorf("failed to parse registry: %w", err)
	}
	if reg.Version != registryVersion {
		return nil, fmt.Errorf("unsupported registry version: %d (expected %d)", reg.Version, registryVersion)
	}
	if reg.Devices == nil {
		reg.Devices = make(map[string]*Device)
	}
	if reg.Preferences == nil {
		reg.Preferences = &Preferences{DiscoverTimeout: 5}
	}
	return reg, nil
}

// LoadDefaultRegistry loads the registry from RegistryPath.
func LoadDefaultRegistry() (*Registry, error) {
	path, err := RegistryPath()
	if err != nil {
		return nil, err
	}
	return LoadRegistry(path)
}

// Path returns the file the registry saves to.
func (r *Registry) Path() string {
	return r.path
}

// Save writes the registry atomically.
func (r *Registry) Save() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(r.path), 0700); err != nil {
		return fmt.Errorf("failed to create registry directory: %w", err)
	}

	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}
	header := []byte(`# wifiprov device registry
# Devices this client has discovered or provisioned.
# Network passphrases are never stored here.

`)
	data = append(header, data...)

	tmpPath := r.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary registry file: %w", err)
	}
	if err := os.Rename(tmpPath, r.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to save registry: %w", err)
	}
	return nil
}

// Device returns the entry for name, or nil.
func (r *Registry) Device(name string) *Device {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Devices[name]
}

func (r *Registry) ensure(name string) *Device {
	d, ok := r.Devices[name]
	if !ok {
		d = &Device{}
		r.Devices[name] = d
	}
	return d
}

// Seen records that name answered at addr.
func (r *Registry) Seen(name, addr string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := r.ensure(name)
	d.Addr = addr
	d.LastSeen = time.Now()
}

// Provisioned records the outcome reported by a device.
func (r *Registry) Provisioned(name, ssid, ip string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := r.ensure(name)
	d.LastSSID = ssid
	d.LastIP = ip
	d.LastSeen = time.Now()
}

// SetNickname sets a user-facing name for a device.
func (r *Registry) SetNickname(name, nickname string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensure(name).Nickname = nickname
}

// Resolve maps a device name or nickname to its last known address. Anything
// that matches neither is returned unchanged so raw host:port works too.
func (r *Registry) Resolve(target string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if target == "" && r.Preferences != nil {
		target = r.Preferences.DefaultDevice
	}
	if d, ok := r.Devices[target]; ok && d.Addr != "" {
		return d.Addr
	}
	for _, d := range r.Devices {
		if d.Nickname != "" && d.Nickname == target && d.Addr != "" {
			return d.Addr
		}
	}
	return target
}

// Names returns the device names in sorted order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.Devices))
	for name := range r.Devices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
