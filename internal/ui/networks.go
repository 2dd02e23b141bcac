package ui

import (
	"fmt"
	"strings"

	"github.com/wzhhnet/esp32-mg-server/internal/wifi"
)

// SignalBars renders an RSSI as a four-step bar.
func SignalBars(rssi int) string {
	var n int
	switch {
	case rssi >= -55:
		n = 4
	case rssi >= -67:
		n = 3
	case rssi >= -75:
		n = 2
	case rssi >= -85:
		n = 1
	}
	bars := strings.Repeat("▮", n) + strings.Repeat("▯", 4-n)
	if n <= 2 {
		return weakSignalStyle.Render(bars)
	}
	return strongSignalStyle.Render(bars)
}

// RenderNetworks formats scan results as an aligned table.
func RenderNetworks(networks []wifi.Network) string {
	if len(networks) == 0 {
		return HintStyle.Render("  No networks found")
	}
	ssidWidth := len("SSID")
	for _, n := range networks {
		ssidWidth = max(ssidWidth, len(n.SSID))
	}

	var b strings.Builder
	b.WriteString(HintStyle.Render(fmt.Sprintf("  %-*s  %-6s  %-4s  %s", ssidWidth, "SSID", "SIGNAL", "dBm", "SECURITY")))
	for _, n := range networks {
		security := LockMarker
		if n.Open {
			security = "open"
		}
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("  %-*s  %s  %4d  %s", ssidWidth, n.SSID, SignalBars(n.RSSI)+"  ", n.RSSI, security))
	}
	return b.String()
}
