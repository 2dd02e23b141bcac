package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/wzhhnet/esp32-mg-server/internal/client"
	"github.com/wzhhnet/esp32-mg-server/internal/ui"
	"github.com/wzhhnet/esp32-mg-server/internal/wifi"
)

// networkItem wraps a Network for use with bubbles/list
type networkItem struct {
	network wifi.Network
}

func (n networkItem) FilterValue() string { return n.network.SSID }

func (n networkItem) Title() string {
	if n.network.Open {
		return n.network.SSID
	}
	return n.network.SSID + " " + ui.LockMarker
}

func (n networkItem) Description() string {
	return fmt.Sprintf("%s  %d dBm", ui.SignalBars(n.network.RSSI), n.network.RSSI)
}

// View renders the current screen
func (m AppModel) View() string {
	var content, footer string
	switch m.CurrentScreen {
	case ScreenNetworks:
		content, footer = m.viewNetworks(), m.help.View(networkKeys)
	case ScreenPassword:
		content, footer = m.viewPassword(), m.help.View(passwordKeys)
	case ScreenConnecting:
		content = m.viewConnecting()
	case ScreenResult:
		content, footer = m.viewResult(), m.help.View(resultKeys)
	}
	return RenderApplicationContainer(content, footer, m.Width, m.Height)
}

func (m AppModel) subtitle() string {
	if m.opts.Device == "" {
		return ""
	}
	return SubtitleStyle.Render("Device: "+m.opts.Device) + "\n\n"
}

func (m AppModel) viewNetworks() string {
	var b strings.Builder
	b.WriteString(m.subtitle())
	if m.Scanning {
		b.WriteString(m.spinner.View() + " Scanning for networks...\n")
		return b.String()
	}
	if m.LastError != nil {
		b.WriteString(ErrorBoxStyle.Render("Scan failed: "+client.GetShortErrorMessage(m.LastError)) + "\n\n")
		b.WriteString("Press r to scan again.\n")
		return b.String()
	}
	if len(m.Networks) == 0 {
		b.WriteString("No networks found. Press r to scan again.\n")
		return b.String()
	}
	b.WriteString(m.list.View())
	return b.String()
}

func (m AppModel) viewPassword() string {
	var b strings.Builder
	b.WriteString(m.subtitle())
	b.WriteString(RenderTitle("Passphrase for " + m.Selected.SSID))
	b.WriteString("\n")
	b.WriteString(m.password.View())
	b.WriteString("\n")
	return b.String()
}

func (m AppModel) viewConnecting() string {
	var b strings.Builder
	b.WriteString(m.subtitle())
	b.WriteString(RenderTitle(m.spinner.View() + " Connecting to " + m.Selected.SSID))
	b.WriteString("\n")
	b.WriteString(m.steps.Render())
	b.WriteString("\n\n")

	elapsed := m.now.Sub(m.started)
	pct := float64(elapsed) / float64(m.opts.ConnectTimeout)
	b.WriteString("  " + m.bar.ViewAs(min(pct, 1)))
	b.WriteString(SubtitleStyle.Render(fmt.Sprintf("  %s", elapsed.Truncate(time.Second))))
	b.WriteString("\n")
	return b.String()
}

func (m AppModel) viewResult() string {
	var b strings.Builder
	b.WriteString(m.subtitle())
	b.WriteString(m.steps.Render())
	b.WriteString("\n\n")

	if m.Succeeded() {
		b.WriteString(SuccessBoxStyle.Render(fmt.Sprintf("%s Online on %s with address %s",
			ui.SuccessMarker, m.Outcome.SSID, m.Outcome.IP)))
		b.WriteString("\n")
		return b.String()
	}

	msg := "unknown error"
	if m.LastError != nil {
		msg = client.GetShortErrorMessage(m.LastError)
	}
	b.WriteString(ErrorBoxStyle.Render(ui.FailureMarker + " " + msg))
	b.WriteString("\n\n")
	b.WriteString(ui.HintStyle.Render(failureHint(m.Outcome, m.LastError)))
	b.WriteString("\n")
	return b.String()
}

func failureHint(o wifi.Outcome, err error) string {
	switch o.Kind {
	case wifi.OutcomeFailed:
		if o.Reason == "auth_fail" {
			return "The access point rejected the passphrase. Check it and try again."
		}
		return fmt.Sprintf("The device gave up after %d attempts. Move it closer to the access point or pick another network.", o.Retries)
	case wifi.OutcomeTimeout:
		return "The device did not finish connecting in time."
	}
	return client.GetTroubleshootingHint(err)
}
