// Package config loads daemon configuration and keeps the command-line
// client's registry of known provisioning devices.
//
// # Daemon configuration
//
// The daemon reads wifiprovd.yaml through viper. Lookup order for the file is
// the --config flag, the working directory, the user configuration directory
// and /etc/wifiprovd. Every key can be overridden from the environment with
// the WIFIPROVD_ prefix, dots replaced by underscores:
//
//	WIFIPROVD_WIFI_MAX_RETRY=3
//	WIFIPROVD_HTTP_LISTEN=:8443
//
// A minimal file:
//
//	log:
//	  level: info
//	wifi:
//	  max_retry: 5
//	  busy_timeout: 30s
//	store:
//	  backend: file
//	  path: /var/lib/wifiprovd/nvs.yaml
//	http:
//	  listen: ":80"
//
// # Client registry
//
// The wifiprov CLI remembers devices it has discovered or talked to in a YAML
// registry stored in the platform configuration directory:
//   - Linux: $XDG_CONFIG_HOME/wifiprov/devices.yaml or $HOME/.config/wifiprov/devices.yaml
//   - macOS: $HOME/.config/wifiprov/devices.yaml
//   - Windows: %LOCALAPPDATA%\wifiprov\devices.yaml
//
// Network passphrases are never written to either file.
package config
