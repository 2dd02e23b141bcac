package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/wzhhnet/esp32-mg-server/internal/client"
	"github.com/wzhhnet/esp32-mg-server/internal/discovery"
	"github.com/wzhhnet/esp32-mg-server/internal/ui"
	"github.com/wzhhnet/esp32-mg-server/internal/wifi"
	"github.com/wzhhnet/esp32-mg-server/internal/wizard/tui"
)

var (
	discoverTimeout time.Duration
	jsonOutput      bool
	passwordFlag    string
	openFlag        bool
)

func init() {
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(provisionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(wizardCmd)

	discoverCmd.Flags().DurationVar(&discoverTimeout, "scan-time", 0, "How long to listen for announcements (default from registry preferences)")
	scanCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print results as JSON")
	statusCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print status as JSON")
	provisionCmd.Flags().StringVar(&passwordFlag, "password", "", "Passphrase (prompted for when omitted)")
	provisionCmd.Flags().BoolVar(&openFlag, "open", false, "Network is open, do not prompt for a passphrase")
}

func withTimeout(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), timeoutFlag)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// discoverCmd finds devices on the local network
var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find provisioning devices on the network",
	Long: `Listen for mDNS announcements of provisioning devices and list them.

Every device found is remembered in the registry so later commands can
address it by instance name with --device.`,
	Example: `  # Listen for the default time
  wifiprov discover

  # Listen longer on a busy network
  wifiprov discover --scan-time 15s`,
	RunE: runDiscover,
}

func runDiscover(cmd *cobra.Command, args []string) error {
	reg := openRegistry()

	scanner := discovery.NewScanner()
	switch {
	case discoverTimeout > 0:
		scanner.Timeout = discoverTimeout
	case reg.Preferences != nil && reg.Preferences.DiscoverTimeout > 0:
		scanner.Timeout = time.Duration(reg.Preferences.DiscoverTimeout) * time.Second
	}

	fmt.Printf("Scanning for devices (%s)...\n\n", scanner.Timeout)

	devices, err := scanner.Scan(cmd.Context())
	if err != nil {
		return fmt.Errorf("discovery failed: %w", err)
	}

	if len(devices) == 0 {
		fmt.Println("No devices found.")
		fmt.Println("\nTroubleshooting:")
		fmt.Println("  - Devices only announce themselves once they are online")
		fmt.Println("  - A device waiting for credentials is reached on its own access point")
		fmt.Println("  - Try a longer --scan-time on slow networks")
		fmt.Println("  - Use --device to give an address directly")
		return nil
	}

	fmt.Printf("Found %d device(s):\n\n", len(devices))
	for i, dev := range devices {
		fmt.Printf("%d. %s\n", i+1, dev.Instance)
		fmt.Printf("   Address: %s\n", dev.Addr())
		if ssid := dev.SSID(); ssid != "" {
			fmt.Printf("   Network: %s\n", ssid)
		}
		if v := dev.Version(); v != "" {
			fmt.Printf("   Version: %s\n", v)
		}
		fmt.Println()

		reg.Seen(dev.Instance, dev.Addr())
		if dev.SSID() != "" {
			reg.Provisioned(dev.Instance, dev.SSID(), dev.IP)
		}
	}
	saveRegistry(reg)

	fmt.Println("Use 'wifiprov status --device <name>' to query a device")
	return nil
}

// scanCmd lists access points visible to the device
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "List networks the device can see",
	Example: `  wifiprov scan --device 192.168.4.1
  wifiprov scan --device wifiprov --json`,
	RunE: runScan,
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx, cancel := withTimeout(cmd)
	defer cancel()

	reg := openRegistry()
	t, c, err := connect(ctx, reg)
	if err != nil {
		return describe(err)
	}
	defer c.Close()

	networks, err := c.ScanWait(ctx, 0)
	if err != nil {
		return describe(err)
	}
	if t.name != "" {
		reg.Seen(t.name, t.addr)
		saveRegistry(reg)
	}

	if jsonOutput {
		return printJSON(networks)
	}
	if len(networks) == 0 {
		fmt.Println("No networks found.")
		return nil
	}
	fmt.Print(ui.RenderNetworks(networks))
	return nil
}

// statusCmd shows the device's provisioning state
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the device's provisioning state",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := withTimeout(cmd)
	defer cancel()

	_, c, err := connect(ctx, openRegistry())
	if err != nil {
		return describe(err)
	}
	defer c.Close()

	st, err := c.Status(ctx)
	if err != nil {
		return describe(err)
	}
	info, err := c.SysInfo(ctx)
	if err != nil {
		return describe(err)
	}

	if jsonOutput {
		return printJSON(struct {
			Status any `json:"status"`
			Info   any `json:"info"`
		}{st, info})
	}

	state := "waiting for credentials"
	switch {
	case st.Busy:
		state = "busy"
	case st.Provisioned:
		state = "provisioned"
	}
	fmt.Printf("Device:  %s\n", c.URL)
	fmt.Printf("State:   %s\n", state)
	if st.Provisioned {
		fmt.Printf("Network: %s\n", st.SSID)
		fmt.Printf("Address: %s\n", st.IP)
	}
	fmt.Printf("Info:    %s\n", info.Info)
	return nil
}

// provisionCmd hands credentials to the device and waits for the outcome
var provisionCmd = &cobra.Command{
	Use:   "provision <ssid>",
	Short: "Send network credentials to the device",
	Long: `Send an SSID and passphrase to the device and wait until it either
comes online on that network or gives up.

The passphrase is prompted for without echo unless --password or --open
is given.`,
	Example: `  wifiprov provision HomeNet --device 192.168.4.1
  wifiprov provision CoffeeShop --open
  echo "$PSK" | wifiprov provision HomeNet`,
	Args: cobra.ExactArgs(1),
	RunE: runProvision,
}

func runProvision(cmd *cobra.Command, args []string) error {
	ssid := args[0]
	cr := wifi.Credentials{SSID: ssid}
	switch {
	case openFlag:
	case passwordFlag != "":
		cr.Pass = passwordFlag
	default:
		pass, err := readPassword(fmt.Sprintf("Passphrase for %s: ", ssid))
		if err != nil {
			return err
		}
		cr.Pass = pass
	}
	if err := cr.Validate(); err != nil {
		return err
	}

	ctx, cancel := withTimeout(cmd)
	defer cancel()

	reg := openRegistry()
	t, c, err := connect(ctx, reg)
	if err != nil {
		return describe(err)
	}
	defer c.Close()

	fmt.Print(ui.NewHeader("Provision device", "wifiprov provision",
		ui.Param{Key: "Device", Value: t.addr},
		ui.Param{Key: "Network", Value: ssid},
	).Render())

	steps := ui.NewSteps("Send credentials", "Join "+ssid, "Obtain address")
	steps.Start(0)

	if err := c.Provision(ctx, cr.SSID, cr.Pass); err != nil {
		steps.Fail("rejected")
		fmt.Println(steps.Render())
		fmt.Print(ui.NewFailureResult("Provisioning rejected", err, client.GetTroubleshootingHint(err)).Render())
		return errSilent
	}
	steps.Start(1)

	o, err := c.WaitOnline(ctx, ssid)
	if err != nil {
		reason := o.Reason
		if reason == "" {
			reason = "no answer"
		}
		steps.Fail(reason)
		fmt.Println(steps.Render())
		fmt.Print(ui.NewFailureResult("Device did not come online", err, outcomeHint(o, err)).Render())
		return errSilent
	}
	steps.Complete(2, o.IP)
	fmt.Println(steps.Render())

	if t.name != "" {
		reg.Provisioned(t.name, o.SSID, o.IP)
		saveRegistry(reg)
	}

	fmt.Print(ui.NewSuccessResult("Device online",
		ui.Param{Key: "Network", Value: o.SSID},
		ui.Param{Key: "Address", Value: o.IP},
	).Render())
	return nil
}

// errSilent ends a command with a failing exit status after the failure has
// already been rendered.
var errSilent = errors.New("provisioning failed")

func outcomeHint(o wifi.Outcome, err error) string {
	switch {
	case o.Kind == wifi.OutcomeFailed && o.Reason == "auth_fail":
		return "Check the passphrase and try again"
	case o.Kind == wifi.OutcomeFailed:
		return fmt.Sprintf("The device gave up after %d attempts\nMove it closer to the access point", o.Retries)
	case o.Kind == wifi.OutcomeTimeout:
		return "The device did not finish connecting in time"
	case errors.Is(err, context.DeadlineExceeded):
		return "No outcome before --timeout\nThe device may still be connecting; check with 'wifiprov status'"
	}
	return client.GetTroubleshootingHint(err)
}

// readPassword prompts without echo on a terminal, or reads one line from
// piped input.
func readPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, prompt)
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("failed to read passphrase: %w", err)
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read passphrase: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// describe turns client errors into a short message for the terminal.
func describe(err error) error {
	var devErr *client.DeviceError
	if errors.As(err, &devErr) {
		return fmt.Errorf("%s", client.GetShortErrorMessage(err))
	}
	return err
}

// wizardCmd launches the interactive TUI wizard
var wizardCmd = &cobra.Command{
	Use:   "wizard",
	Short: "Launch the interactive provisioning wizard",
	Long: `Launch an interactive wizard that scans for networks, lets you pick
one, asks for the passphrase and follows the device until it is online.

This is the recommended way to provision a device by hand.`,
	Example: `  # Launch wizard with auto-discovery
  wifiprov wizard
  # Or simply (wizard is default):
  wifiprov

  # Launch wizard for a specific device
  wifiprov wizard --device 192.168.4.1`,
	RunE: runWizard,
}

func runWizard(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	reg := openRegistry()
	connectCtx, connectCancel := context.WithTimeout(ctx, timeoutFlag)
	t, c, err := connect(connectCtx, reg)
	connectCancel()
	if err != nil {
		return describe(err)
	}
	defer c.Close()

	model := tui.NewAppModel(ctx, c, tui.Options{Device: t.addr, ConnectTimeout: timeoutFlag})
	final, err := tea.NewProgram(model, tea.WithAltScreen()).Run()
	if err != nil {
		return fmt.Errorf("wizard error: %w", err)
	}

	if m, ok := final.(tui.AppModel); ok && m.Succeeded() {
		if t.name != "" {
			reg.Provisioned(t.name, m.Outcome.SSID, m.Outcome.IP)
			saveRegistry(reg)
		}
		fmt.Printf("%s %s is online on %s (%s)\n", ui.SuccessMarker, t.addr, m.Outcome.SSID, m.Outcome.IP)
	}
	return nil
}
