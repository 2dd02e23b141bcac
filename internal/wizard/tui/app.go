package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/wzhhnet/esp32-mg-server/internal/ui"
	"github.com/wzhhnet/esp32-mg-server/internal/wifi"
)

// Screen represents the current active screen in the application
type Screen string

const (
	ScreenNetworks   Screen = "networks"
	ScreenPassword   Screen = "password"
	ScreenConnecting Screen = "connecting"
	ScreenResult     Screen = "result"
)

// DefaultConnectTimeout bounds the wait for an outcome after the device
// accepts credentials.
const DefaultConnectTimeout = 45 * time.Second

const tickInterval = 250 * time.Millisecond

// Provisioner is the device surface the wizard drives. *client.Client
// implements it.
type Provisioner interface {
	ScanWait(ctx context.Context, poll time.Duration) ([]wifi.Network, error)
	Provision(ctx context.Context, ssid, pass string) error
	WaitOnline(ctx context.Context, ssid string) (wifi.Outcome, error)
}

// Messages for async operations
type (
	scanDoneMsg struct {
		networks []wifi.Network
		err      error
	}
	acceptedMsg struct{ err error }
	outcomeMsg  struct {
		outcome wifi.Outcome
		err     error
	}
	tickMsg time.Time
)

// Options configures the wizard.
type Options struct {
	Device         string // shown in the subtitle
	ConnectTimeout time.Duration
}

// AppModel walks the user through scan, pick, password, connect, result.
type AppModel struct {
	ctx  context.Context
	prov Provisioner
	opts Options

	CurrentScreen Screen
	Scanning      bool
	Networks      []wifi.Network
	Selected      *wifi.Network
	Outcome       wifi.Outcome
	LastError     error

	started time.Time
	now     time.Time
	steps   ui.Steps

	list     list.Model
	password textinput.Model
	spinner  spinner.Model
	bar      progress.Model
	help     help.Model

	Width  int
	Height int
}

// NewAppModel creates the wizard starting with a scan.
func NewAppModel(ctx context.Context, prov Provisioner, opts Options) AppModel {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}

	l := list.New(nil, list.NewDefaultDelegate(), MinTerminalWidth, MinTerminalHeight-8)
	l.Title = "Available networks"
	l.SetShowHelp(false)
	l.SetFilteringEnabled(true)

	pw := textinput.New()
	pw.Placeholder = "passphrase"
	pw.EchoMode = textinput.EchoPassword
	pw.EchoCharacter = '•'
	pw.CharLimit = wifi.MaxPassLen

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = SpinnerStyle

	return AppModel{
		ctx:           ctx,
		prov:          prov,
		opts:          opts,
		CurrentScreen: ScreenNetworks,
		Scanning:      true,
		list:          l,
		password:      pw,
		spinner:       sp,
		bar:           progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		help:          help.New(),
		Width:         MinTerminalWidth,
		Height:        MinTerminalHeight,
	}
}

// Init starts the first scan
func (m AppModel) Init() tea.Cmd {
	return tea.Batch(m.scanCmd(), m.spinner.Tick)
}

func (m AppModel) scanCmd() tea.Cmd {
	return func() tea.Msg {
		networks, err := m.prov.ScanWait(m.ctx, 0)
		return scanDoneMsg{networks: networks, err: err}
	}
}

func (m AppModel) provisionCmd(ssid, pass string) tea.Cmd {
	return func() tea.Msg {
		return acceptedMsg{err: m.prov.Provision(m.ctx, ssid, pass)}
	}
}

func (m AppModel) waitCmd(ssid string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, m.opts.ConnectTimeout)
		defer cancel()
		o, err := m.prov.WaitOnline(ctx, ssid)
		return outcomeMsg{outcome: o, err: err}
	}
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update handles all messages and routes them to the active screen
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width, m.Height = msg.Width, msg.Height
		m.list.SetSize(max(msg.Width-8, 20), max(msg.Height-10, 5))
		m.bar.Width = max(min(msg.Width-16, 60), 20)
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case scanDoneMsg:
		return m.onScanDone(msg), nil

	case acceptedMsg:
		return m.onAccepted(msg)

	case outcomeMsg:
		return m.onOutcome(msg), nil

	case tickMsg:
		if m.CurrentScreen != ScreenConnecting {
			return m, nil
		}
		m.now = time.Time(msg)
		return m, tick()
	}

	switch m.CurrentScreen {
	case ScreenNetworks:
		return m.updateNetworks(msg)
	case ScreenPassword:
		return m.updatePassword(msg)
	case ScreenResult:
		return m.updateResult(msg)
	}
	return m, nil
}

func (m AppModel) onScanDone(msg scanDoneMsg) AppModel {
	m.Scanning = false
	m.LastError = msg.err
	if msg.err != nil {
		return m
	}
	m.Networks = msg.networks
	items := make([]list.Item, len(msg.networks))
	for i, n := range msg.networks {
		items[i] = networkItem{n}
	}
	m.list.SetItems(items)
	return m
}

func (m AppModel) updateNetworks(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && m.list.FilterState() != list.Filtering {
		switch {
		case key.Matches(keyMsg, networkKeys.Quit):
			return m, tea.Quit
		case key.Matches(keyMsg, networkKeys.Rescan):
			if m.Scanning {
				return m, nil
			}
			m.Scanning = true
			m.LastError = nil
			return m, tea.Batch(m.scanCmd(), m.spinner.Tick)
		case key.Matches(keyMsg, networkKeys.Select):
			item, ok := m.list.SelectedItem().(networkItem)
			if !ok || m.Scanning {
				return m, nil
			}
			n := item.network
			m.Selected = &n
			if n.Open {
				return m.connect("")
			}
			m.CurrentScreen = ScreenPassword
			m.password.SetValue("")
			return m, m.password.Focus()
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m AppModel) updatePassword(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(keyMsg, passwordKeys.Back):
			m.password.Blur()
			m.CurrentScreen = ScreenNetworks
			return m, nil
		case key.Matches(keyMsg, passwordKeys.Reveal):
			if m.password.EchoMode == textinput.EchoPassword {
				m.password.EchoMode = textinput.EchoNormal
			} else {
				m.password.EchoMode = textinput.EchoPassword
			}
			return m, nil
		case key.Matches(keyMsg, passwordKeys.Submit):
			m.password.Blur()
			return m.connect(m.password.Value())
		}
	}

	var cmd tea.Cmd
	m.password, cmd = m.password.Update(msg)
	return m, cmd
}

// connect hands credentials for the selected network to the device.
func (m AppModel) connect(pass string) (tea.Model, tea.Cmd) {
	m.CurrentScreen = ScreenConnecting
	m.LastError = nil
	m.Outcome = wifi.Outcome{}
	m.started = time.Now()
	m.now = m.started
	m.steps = ui.NewSteps("Send credentials", "Join "+m.Selected.SSID, "Obtain address")
	m.steps.Start(0)
	return m, tea.Batch(m.provisionCmd(m.Selected.SSID, pass), m.spinner.Tick, tick())
}

func (m AppModel) onAccepted(msg acceptedMsg) (tea.Model, tea.Cmd) {
	if m.CurrentScreen != ScreenConnecting {
		return m, nil
	}
	if msg.err != nil {
		m.steps.Fail("rejected")
		m.LastError = msg.err
		m.CurrentScreen = ScreenResult
		return m, nil
	}
	m.steps.Start(1)
	return m, m.waitCmd(m.Selected.SSID)
}

func (m AppModel) onOutcome(msg outcomeMsg) AppModel {
	if m.CurrentScreen != ScreenConnecting {
		return m
	}
	m.Outcome = msg.outcome
	m.LastError = msg.err
	if msg.err != nil {
		reason := msg.outcome.Reason
		if reason == "" {
			reason = string(msg.outcome.Kind)
		}
		if reason == "" {
			reason = "no answer"
		}
		m.steps.Fail(reason)
	} else {
		m.steps.Complete(2, msg.outcome.IP)
	}
	m.CurrentScreen = ScreenResult
	return m
}

func (m AppModel) updateResult(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch {
	case key.Matches(keyMsg, resultKeys.Quit):
		return m, tea.Quit
	case key.Matches(keyMsg, resultKeys.Again):
		m.CurrentScreen = ScreenNetworks
		m.Selected = nil
		m.LastError = nil
		return m, nil
	}
	return m, nil
}

// Succeeded reports whether the wizard ended with the device online.
func (m AppModel) Succeeded() bool {
	return m.CurrentScreen == ScreenResult && m.LastError == nil && m.Outcome.Kind == wifi.OutcomeOnline
}
