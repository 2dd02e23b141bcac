package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Result is the box printed when a command finishes
type Result struct {
	Success bool
	Title   string  // e.g., "Device online"
	Details []Param // Key-value details to display
	Error   error   // for failures
	Hint    string  // troubleshooting text, one tip per line
	Width   int
}

// NewSuccessResult creates a success result box
func NewSuccessResult(title string, details ...Param) *Result {
	return &Result{Success: true, Title: title, Details: details, Width: GetTerminalWidth()}
}

// NewFailureResult creates a failure result box
func NewFailureResult(title string, err error, hint string) *Result {
	return &Result{Title: title, Error: err, Hint: hint, Width: GetTerminalWidth()}
}

// Render returns the styled result box as a string
func (r *Result) Render() string {
	width := clampWidth(r.Width)

	color := SuccessColor
	title := OKStyle.Render(fmt.Sprintf(" %s  SUCCESS  ─  %s", SuccessMarker, r.Title))
	if !r.Success {
		color = ErrorColor
		title = FailStyle.Render(fmt.Sprintf(" %s  FAILED  ─  %s", FailureMarker, r.Title))
	}

	lines := []string{"", title, ""}
	for _, d := range r.Details {
		lines = append(lines, KeyStyle.Width(12).Render(" "+d.Key+":")+" "+ValueStyle.Render(d.Value))
	}
	if len(r.Details) > 0 {
		lines = append(lines, "")
	}
	if r.Error != nil {
		lines = append(lines, StepFailedStyle.Render(" Error: "+r.Error.Error()), "")
	}
	if r.Hint != "" {
		for _, l := range strings.Split(r.Hint, "\n") {
			lines = append(lines, HintStyle.Render(" "+l))
		}
		lines = append(lines, "")
	}

	return lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(color).
		Width(width-2).
		Padding(0, 1).
		Render(strings.Join(lines, "\n"))
}

// String implements fmt.Stringer
func (r *Result) String() string {
	return r.Render()
}
