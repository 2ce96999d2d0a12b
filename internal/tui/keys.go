package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Quit        key.Binding
	Open        key.Binding
	Back        key.Binding
	Filter      key.Binding
	NextSort    key.Binding
	Order       key.Binding
	Refresh     key.Binding
	ShowError   key.Binding
	ResetLocal  key.Binding
	ResetRemote key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Quit:        key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		Open:        key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "files")),
		Back:        key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		Filter:      key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "filter")),
		NextSort:    key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sort column")),
		Order:       key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "order")),
		Refresh:     key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "refresh")),
		ShowError:   key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "error")),
		ResetLocal:  key.NewBinding(key.WithKeys("L"), key.WithHelp("L", "reset local")),
		ResetRemote: key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "reset remote")),
	}
}

func (k keyMap) summaryHelp() []key.Binding {
	return []key.Binding{k.Open, k.Filter, k.NextSort, k.Order, k.Refresh, k.Quit}
}

func (k keyMap) detailHelp() []key.Binding {
	return []key.Binding{k.Back, k.ShowError, k.ResetLocal, k.ResetRemote, k.Filter, k.NextSort, k.Order, k.Quit}
}
