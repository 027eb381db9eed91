package ui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all keyboard shortcuts
type KeyMap struct {
	ZoomIn    key.Binding
	ZoomOut   key.Binding
	ZoomReset key.Binding
	View      key.Binding
	Direction key.Binding
	Reload    key.Binding
	Fit       key.Binding
	Help      key.Binding
	Quit      key.Binding
}

var DefaultKeyMap = KeyMap{
	ZoomIn: key.NewBinding(
		key.WithKeys("+", "="),
		key.WithHelp("+", "zoom in"),
	),
	ZoomOut: key.NewBinding(
		key.WithKeys("-", "_"),
		key.WithHelp("-", "zoom out"),
	),
	ZoomReset: key.NewBinding(
		key.WithKeys("0"),
		key.WithHelp("0", "reset zoom"),
	),
	View: key.NewBinding(
		key.WithKeys("v"),
		key.WithHelp("v", "next view"),
	),
	Direction: key.NewBinding(
		key.WithKeys("d"),
		key.WithHelp("d", "flip direction"),
	),
	Reload: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "reload"),
	),
	Fit: key.NewBinding(
		key.WithKeys("f"),
		key.WithHelp("f", "fit"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "help"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// ShortHelp implements help.KeyMap
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.ZoomIn, k.ZoomOut, k.ZoomReset, k.View, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.ZoomIn, k.ZoomOut, k.ZoomReset, k.Fit},
		{k.View, k.Direction, k.Reload},
		{k.Help, k.Quit},
	}
}
