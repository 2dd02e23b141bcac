// Wifiprovd is the provisioning daemon.
//
// It runs the station controller against the simulated radio, keeps the
// provisioning record in a durable store, and serves JSON-RPC over WebSocket
// plus the REST API so a client can scan for networks and hand over
// credentials. Once the station holds an address it is announced over mDNS
// and, when a broker is configured, every outcome is published over MQTT.
//
// Usage:
//
//	wifiprovd run [flags]
//	wifiprovd reset
//
// See 'wifiprovd --help' for available options.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/wzhhnet/esp32-mg-server/internal/config"
	"github.com/wzhhnet/esp32-mg-server/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var (
	cfgFile string
	v       = viper.New()
)

var rootCmd = &cobra.Command{
	Use:   "wifiprovd",
	Short: "WiFi provisioning daemon",
	Long: `A daemon that brings a device onto a WiFi network.

Clients connect over WebSocket (JSON-RPC 2.0) or the REST API, scan for
networks and submit credentials. The outcome is stored durably so the
device rejoins the same network after a restart.

Configuration is read from wifiprovd.yaml in the current directory, the
user config directory or /etc/wifiprovd. Every key can be overridden with
a WIFIPROVD_ environment variable, e.g. WIFIPROVD_HTTP_LISTEN=:8080.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: search ./, user config dir, /etc/wifiprovd)")
	rootCmd.PersistentFlags().String("store", "", "Store backend (file, sqlite, memory)")
	rootCmd.PersistentFlags().String("store-path", "", "Store file path")
	_ = v.BindPFlag("store.backend", rootCmd.PersistentFlags().Lookup("store"))
	_ = v.BindPFlag("store.path", rootCmd.PersistentFlags().Lookup("store-path"))

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads the config with command-line flags layered on top.
func loadConfig() (*config.Config, error) {
	return config.LoadFromViper(v, cfgFile)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("wifiprovd %s (commit: %s)\n", version.Version, version.Commit)
	},
}
