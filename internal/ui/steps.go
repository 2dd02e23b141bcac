package ui

import "strings"

// StepStatus represents the current state of a step
type StepStatus int

const (
	StepPending StepStatus = iota
	StepRunning
	StepComplete
	StepFailed
)

// Step is one line of a multi-step operation
type Step struct {
	Name    string
	Status  StepStatus
	Message string // optional note, e.g. "192.168.1.20"
}

// Steps tracks an ordered checklist.
type Steps []Step

// NewSteps creates pending steps with the given names.
func NewSteps(names ...string) Steps {
	s := make(Steps, len(names))
	for i, n := range names {
		s[i] = Step{Name: n}
	}
	return s
}

// Start marks step i running and completes every earlier step.
func (s Steps) Start(i int) {
	for j := range s {
		switch {
		case j < i && s[j].Status != StepFailed:
			s[j].Status = StepComplete
		case j == i:
			s[j].Status = StepRunning
		}
	}
}

// Complete marks step i (and everything before it) complete.
func (s Steps) Complete(i int, message string) {
	s.Start(i)
	s[i].Status = StepComplete
	s[i].Message = message
}

// Fail marks the running step failed.
func (s Steps) Fail(message string) {
	for j := range s {
		if s[j].Status == StepRunning {
			s[j].Status = StepFailed
			s[j].Message = message
			return
		}
	}
}

// Render lists the steps with a status marker each.
func (s Steps) Render() string {
	lines := make([]string, 0, len(s))
	for _, st := range s {
		var line string
		switch st.Status {
		case StepComplete:
			line = StepCompleteStyle.Render(StepMarkerComplete + " " + st.Name)
		case StepRunning:
			line = StepRunningStyle.Render(StepMarkerRunning + " " + st.Name)
		case StepFailed:
			line = StepFailedStyle.Render(FailureMarker + " " + st.Name)
		default:
			line = StepPendingStyle.Render(StepMarkerPending + " " + st.Name)
		}
		if st.Message != "" {
			line += " " + HintStyle.Render("("+st.Message+")")
		}
		lines = append(lines, "  "+line)
	}
	return strings.Join(lines, "\n")
}
