// Package tui implements the interactive provisioning wizard.
//
// The wizard is a Bubble Tea program with four screens:
//   - Networks: scan results in a filterable list, r to rescan
//   - Password: masked passphrase entry (skipped for open networks)
//   - Connecting: step checklist and elapsed-time bar while the device joins
//   - Result: the outcome, with a hint when it failed
//
// It talks to the device through the Provisioner interface, which
// *client.Client satisfies:
//
//	c := client.NewClient("192.168.4.1:80")
//	defer c.Close()
//	m := tui.NewAppModel(ctx, c, tui.Options{Device: "192.168.4.1:80"})
//	final, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
//	if err == nil && final.(tui.AppModel).Succeeded() {
//		...
//	}
package tui
