// Wifiprov is the command-line client for the provisioning daemon.
//
// It finds devices over mDNS, lists the networks a device can see, and
// hands it credentials, either through direct commands or an interactive
// wizard. Devices that answered are remembered in the user's registry so
// they can be addressed by name later.
//
// Usage:
//
//	wifiprov [command] [flags]
//
// Running without arguments launches the interactive wizard.
// See 'wifiprov --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wzhhnet/esp32-mg-server/internal/logging"
	"github.com/wzhhnet/esp32-mg-server/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "wifiprov",
	Short: "WiFi provisioning client",
	Long: `A client for devices running the WiFi provisioning daemon.

Discovers devices on the local network, scans for access points through
them and submits credentials.

If no command is specified, the interactive wizard will launch automatically.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Silent unless WIFIPROV_LOG_LEVEL is set
		return logging.InitializeFromEnv()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWizard(cmd, args)
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.Get())
	},
}
