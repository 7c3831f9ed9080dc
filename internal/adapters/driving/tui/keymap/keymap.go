// Package keymap defines keybindings for the progress view.
package keymap

import (
	"github.com/charmbracelet/bubbles/key"
)

// KeyMap defines all keybindings for the progress view.
type KeyMap struct {
	// Interrupt stops dispatching new items and lets in-flight fetches drain.
	Interrupt key.Binding

	// Detach closes the view while the run finishes in the background.
	Detach key.Binding
}

// DefaultKeyMap returns the default keybindings.
func DefaultKeyMap() *KeyMap {
	return &KeyMap{
		Interrupt: key.NewBinding(
			key.WithKeys("ctrl+c", "q"),
			key.WithHelp("q", "interrupt"),
		),
		Detach: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "hide"),
		),
	}
}

// ShortHelp returns the bindings shown in the status bar.
func (k *KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Interrupt, k.Detach}
}
