package tui

import "github.com/charmbracelet/bubbles/key"

// networkKeyMap is shown on the network list
type networkKeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Select key.Binding
	Rescan key.Binding
	Quit   key.Binding
}

func (k networkKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Select, k.Rescan, k.Quit}
}

func (k networkKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Up, k.Down, k.Select}, {k.Rescan, k.Quit}}
}

// passwordKeyMap is shown while typing the passphrase
type passwordKeyMap struct {
	Submit key.Binding
	Reveal key.Binding
	Back   key.Binding
}

func (k passwordKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Submit, k.Reveal, k.Back}
}

func (k passwordKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

// resultKeyMap is shown on the result screen
type resultKeyMap struct {
	Again key.Binding
	Quit  key.Binding
}

func (k resultKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Again, k.Quit}
}

func (k resultKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var (
	networkKeys = networkKeyMap{
		Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Select: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select")),
		Rescan: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "rescan")),
		Quit:   key.NewBinding(key.WithKeys("q", "esc"), key.WithHelp("q", "quit")),
	}
	passwordKeys = passwordKeyMap{
		Submit: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "connect")),
		Reveal: key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "show/hide")),
		Back:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
	}
	resultKeys = resultKeyMap{
		Again: key.NewBinding(key.WithKeys("r", "enter"), key.WithHelp("r", "choose another network")),
		Quit:  key.NewBinding(key.WithKeys("q", "esc"), key.WithHelp("q", "quit")),
	}
)
