package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/wzhhnet/esp32-mg-server/internal/nvs"
)

// EnvPrefix prefixes environment overrides of config keys.
const EnvPrefix = "WIFIPROVD"

// Config is the daemon configuration.
type Config struct {
	Log   LogConfig   `mapstructure:"log"`
	WiFi  WiFiConfig  `mapstructure:"wifi"`
	Store StoreConfig `mapstructure:"store"`
	Radio RadioConfig `mapstructure:"radio"`
	HTTP  HTTPConfig  `mapstructure:"http"`
	MDNS  MDNSConfig  `mapstructure:"mdns"`
	MQTT  MQTTConfig  `mapstructure:"mqtt"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Encoding   string `mapstructure:"encoding"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

type WiFiConfig struct {
	MaxRetry       int           `mapstructure:"max_retry"`
	BusyTimeout    time.Duration `mapstructure:"busy_timeout"`
	ReconnectAfter time.Duration `mapstructure:"reconnect_after"` // 0 disables
	RecordRetry    time.Duration `mapstructure:"record_retry"`
}

type StoreConfig struct {
	Backend string `mapstructure:"backend"` // file, sqlite or memory
	Path    string `mapstructure:"path"`
}

type RadioConfig struct {
	Backend  string        `mapstructure:"backend"`
	Latency  time.Duration `mapstructure:"latency"`
	Subnet   string        `mapstructure:"subnet"`
	Networks []SimNetwork  `mapstructure:"networks"`
}

// SimNetwork is a network reachable by the simulated radio.
type SimNetwork struct {
	SSID string `mapstructure:"ssid"`
	Pass string `mapstructure:"pass"`
	RSSI int    `mapstructure:"rssi"`
}

type HTTPConfig struct {
	Listen    string        `mapstructure:"listen"`
	TLSCert   string        `mapstructure:"tls_cert"`
	TLSKey    string        `mapstructure:"tls_key"`
	Keepalive time.Duration `mapstructure:"keepalive"`
}

type MDNSConfig struct {
	Enable   bool   `mapstructure:"enable"`
	Instance string `mapstructure:"instance"`
	Service  string `mapstructure:"service"`
	Domain   string `mapstructure:"domain"`
}

type MQTTConfig struct {
	Broker   string `mapstructure:"broker"` // empty disables publishing
	Topic    string `mapstructure:"topic"`
	ClientID string `mapstructure:"client_id"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Log: LogConfig{Level: "info", Encoding: "console", MaxSizeMB: 10, MaxBackups: 5},
		WiFi: WiFiConfig{
			MaxRetry:    5,
			BusyTimeout: 30 * time.Second,
			RecordRetry: 5 * time.Second,
		},
		Store: StoreConfig{Backend: nvs.BackendFile, Path: "/var/lib/wifiprovd/nvs.yaml"},
		Radio: RadioConfig{
			Backend: "sim",
			Latency: 200 * time.Millisecond,
			Subnet:  "192.168.1.0/24",
		},
		HTTP: HTTPConfig{Listen: ":80", Keepalive: 5 * time.Second},
		MDNS: MDNSConfig{Enable: true, Instance: "wifiprov", Service: "_wifiprov._tcp", Domain: "local."},
		MQTT: MQTTConfig{Topic: "wifiprov", ClientID: "wifiprovd"},
	}
}

// SetDefaults registers Default() with v so that env overrides apply to
// keys absent from the file.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.encoding", d.Log.Encoding)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("wifi.max_retry", d.WiFi.MaxRetry)
	v.SetDefault("wifi.busy_timeout", d.WiFi.BusyTimeout)
	v.SetDefault("wifi.reconnect_after", d.WiFi.ReconnectAfter)
	v.SetDefault("wifi.record_retry", d.WiFi.RecordRetry)
	v.SetDefault("store.backend", d.Store.Backend)
	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("radio.backend", d.Radio.Backend)
	v.SetDefault("radio.latency", d.Radio.Latency)
	v.SetDefault("radio.subnet", d.Radio.Subnet)
	v.SetDefault("http.listen", d.HTTP.Listen)
	v.SetDefault("http.tls_cert", d.HTTP.TLSCert)
	v.SetDefault("http.tls_key", d.HTTP.TLSKey)
	v.SetDefault("http.keepalive", d.HTTP.Keepalive)
	v.SetDefault("mdns.enable", d.MDNS.Enable)
	v.SetDefault("mdns.instance", d.MDNS.Instance)
	v.SetDefault("mdns.service", d.MDNS.Service)
	v.SetDefault("mdns.domain", d.MDNS.Domain)
	v.SetDefault("mqtt.broker", d.MQTT.Broker)
	v.SetDefault("mqtt.topic", d.MQTT.Topic)
	v.SetDefault("mqtt.client_id", d.MQTT.ClientID)
	v.SetDefault("mqtt.username", d.MQTT.Username)
	v.SetDefault("mqtt.password", d.MQTT.Password)
}

// Load reads the configuration into a fresh viper instance. An empty path
// searches the default locations; a missing file there is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	return LoadFromViper(v, path)
}

// LoadFromViper reads configuration through v, which may already carry
// bound command-line flags.
func LoadFromViper(v *viper.Viper, path string) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(daemonAppName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := GetConfigDir(daemonAppName); err == nil {
			v.AddConfigPath(dir)
		}
		v.AddConfigPath(filepath.Join("/etc", daemonAppName))
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ValidationError reports one invalid configuration key.
type ValidationError struct {
	Key     string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid config %s: %s", e.Key, e.Message)
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	var errs []error
	if c.WiFi.MaxRetry < 1 {
		errs = append(errs, &ValidationError{Key: "wifi.max_retry", Message: fmt.Sprintf("must be at least 1, got %d", c.WiFi.MaxRetry)})
	}
	if c.WiFi.BusyTimeout < 0 {
		errs = append(errs, &ValidationError{Key: "wifi.busy_timeout", Message: "must not be negative"})
	}
	if c.WiFi.ReconnectAfter < 0 {
		errs = append(errs, &ValidationError{Key: "wifi.reconnect_after", Message: "must not be negative"})
	}
	switch c.Store.Backend {
	case nvs.BackendMemory:
	case nvs.BackendFile, nvs.BackendSQLite:
		if c.Store.Path == "" {
			errs = append(errs, &ValidationError{Key: "store.path", Message: "required for the " + c.Store.Backend + " backend"})
		}
	default:
		errs = append(errs, &ValidationError{Key: "store.backend", Message: fmt.Sprintf("unknown backend %q", c.Store.Backend)})
	}
	if c.Radio.Backend != "sim" {
		errs = append(errs, &ValidationError{Key: "radio.backend", Message: fmt.Sprintf("unknown backend %q", c.Radio.Backend)})
	}
	for i, n := range c.Radio.Networks {
		if n.SSID == "" || len(n.SSID) > 32 || len(n.Pass) > 64 {
			errs = append(errs, &ValidationError{Key: fmt.Sprintf("radio.networks[%d]", i), Message: "ssid must be 1-32 bytes and pass at most 64"})
		}
	}
	if (c.HTTP.TLSCert == "") != (c.HTTP.TLSKey == "") {
		errs = append(errs, &ValidationError{Key: "http.tls_cert", Message: "tls_cert and tls_key must be set together"})
	}
	if c.HTTP.Listen == "" {
		errs = append(errs, &ValidationError{Key: "http.listen", Message: "required"})
	}
	if c.MQTT.Broker != "" && c.MQTT.Topic == "" {
		errs = append(errs, &ValidationError{Key: "mqtt.topic", Message: "required when a broker is set"})
	}
	return errors.Join(errs...)
}

// TLS reports whether the HTTP server should serve TLS.
func (h HTTPConfig) TLS() bool {
	return h.TLSCert != "" && h.TLSKey != ""
}
