package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	play    key.Binding
	stop    key.Binding
	reveal  key.Binding
	hold    key.Binding
	next    key.Binding
	mode    key.Binding
	scan    key.Binding
	input   key.Binding
	catalog key.Binding
	login   key.Binding
	logout  key.Binding
	enter   key.Binding
	back    key.Binding
	help    key.Binding
	quit    key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		play:    key.NewBinding(key.WithKeys("p", " "), key.WithHelp("p/space", "play")),
		stop:    key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "stop")),
		reveal:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reveal")),
		hold:    key.NewBinding(key.WithKeys("h"), key.WithHelp("hold h", "peek")),
		next:    key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "next")),
		mode:    key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "full/timed")),
		scan:    key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "camera")),
		input:   key.NewBinding(key.WithKeys("/", "i"), key.WithHelp("/", "enter code")),
		catalog: key.NewBinding(key.WithKeys("l"), key.WithHelp("l", "cards")),
		login:   key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "login")),
		logout:  key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "logout")),
		enter:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "play")),
		back:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more")),
		quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.play, k.reveal, k.next, k.input, k.help, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.play, k.stop, k.mode},
		{k.reveal, k.hold, k.next},
		{k.scan, k.input, k.catalog},
		{k.login, k.logout, k.quit},
	}
}
