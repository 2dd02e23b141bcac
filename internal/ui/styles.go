package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Palette. Each color has a light- and dark-background variant.
var (
	PrimaryColor = lipgloss.AdaptiveColor{Light: "#00707A", Dark: "#2EC4D0"}
	SuccessColor = lipgloss.AdaptiveColor{Light: "#1E8A3C", Dark: "#4CD07D"}
	ErrorColor   = lipgloss.AdaptiveColor{Light: "#B3261E", Dark: "#FF6B6B"}
	WarningColor = lipgloss.AdaptiveColor{Light: "#A65E00", Dark: "#F5B041"}
	MutedColor   = lipgloss.AdaptiveColor{Light: "#6B6B6B", Dark: "#8A8A8A"}
	TextColor    = lipgloss.AdaptiveColor{Light: "#1A1A1A", Dark: "#EDEDED"}
)

// Width bounds for boxed output
const (
	MinTerminalWidth = 60
	MaxContentWidth  = 100
)

var (
	TitleStyle   = lipgloss.NewStyle().Foreground(TextColor).Bold(true).PaddingLeft(1)
	CommandStyle = lipgloss.NewStyle().Foreground(MutedColor).PaddingLeft(1)

	// KeyStyle and ValueStyle render "Key: value" detail lines.
	KeyStyle   = lipgloss.NewStyle().Foreground(MutedColor)
	ValueStyle = lipgloss.NewStyle().Foreground(TextColor)

	StepCompleteStyle = lipgloss.NewStyle().Foreground(SuccessColor)
	StepRunningStyle  = lipgloss.NewStyle().Foreground(PrimaryColor).Bold(true)
	StepPendingStyle  = lipgloss.NewStyle().Foreground(MutedColor)
	StepFailedStyle   = lipgloss.NewStyle().Foreground(ErrorColor)

	OKStyle   = lipgloss.NewStyle().Foreground(SuccessColor).Bold(true)
	FailStyle = lipgloss.NewStyle().Foreground(ErrorColor).Bold(true)

	HintStyle = lipgloss.NewStyle().Foreground(MutedColor).Italic(true)

	strongSignalStyle = lipgloss.NewStyle().Foreground(SuccessColor)
	weakSignalStyle   = lipgloss.NewStyle().Foreground(WarningColor)
)

const (
	StepMarkerComplete = "✓"
	StepMarkerRunning  = "›"
	StepMarkerPending  = "·"
	SuccessMarker      = "✓"
	FailureMarker      = "✗"
	LockMarker         = "🔒"
)

// GetTerminalWidth returns the width of stdout, clamped to the range boxed
// output is laid out for. Non-terminals get the minimum.
func GetTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return MinTerminalWidth
	}
	return clampWidth(width)
}

func clampWidth(width int) int {
	return min(max(width, MinTerminalWidth), MaxContentWidth)
}
