package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/wzhhnet/esp32-mg-server/internal/ui"
	"github.com/wzhhnet/esp32-mg-server/internal/version"
)

// AppName is shown in the container header
const AppName = "WIFI PROVISIONING WIZARD"

// Layout constants for responsive terminal width
const (
	MinTerminalWidth  = 60
	MinTerminalHeight = 20
)

var (
	TitleStyle = lipgloss.NewStyle().
			Foreground(ui.PrimaryColor).
			Bold(true).
			MarginBottom(1)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(ui.MutedColor).
			Italic(true)

	ErrorBoxStyle = lipgloss.NewStyle().
			Foreground(ui.ErrorColor).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ui.ErrorColor).
			Padding(0, 1)

	SuccessBoxStyle = lipgloss.NewStyle().
			Foreground(ui.SuccessColor).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ui.SuccessColor).
			Padding(0, 1)

	SpinnerStyle = lipgloss.NewStyle().Foreground(ui.PrimaryColor)

	headerStyle = lipgloss.NewStyle().Foreground(ui.PrimaryColor).Bold(true)
	footerStyle = lipgloss.NewStyle().Foreground(ui.MutedColor)
)

// RenderTitle renders a screen title
func RenderTitle(text string) string {
	return TitleStyle.Render(text)
}

// RenderApplicationContainer wraps screen content with the app header and a
// footer holding the help line, filling the terminal.
func RenderApplicationContainer(content, footerText string, width, height int) string {
	width = max(width, MinTerminalWidth)
	height = max(height, MinTerminalHeight)

	header := lipgloss.NewStyle().
		BorderStyle(lipgloss.Border{Bottom: "─"}).
		BorderForeground(ui.PrimaryColor).
		Width(width-4).
		Padding(0, 1).
		Render(headerStyle.Render(AppName) + "  " + footerStyle.Render(version.Version))

	footer := lipgloss.NewStyle().
		BorderStyle(lipgloss.Border{Top: "─"}).
		BorderForeground(ui.PrimaryColor).
		Width(width-4).
		Padding(0, 1).
		Render(footerText)

	body := lipgloss.NewStyle().Width(width-4).Padding(1, 1).Render(content)

	inner := lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
	bordered := lipgloss.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(ui.PrimaryColor).
		Width(width - 2).
		MaxHeight(height).
		Render(inner)

	return lipgloss.Place(width, height, lipgloss.Left, lipgloss.Top, bordered)
}
