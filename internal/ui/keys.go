package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines all keyboard bindings for the console.
type keyMap struct {
	// Global
	Quit       key.Binding
	Help       key.Binding
	CycleTheme key.Binding
	Tab        key.Binding
	ShiftTab   key.Binding
	Escape     key.Binding

	// View switching
	ViewClasses   key.Binding
	ViewSubjects  key.Binding
	ViewUsers     key.Binding
	ViewMaterials key.Binding
	ViewLogs      key.Binding

	// Table actions
	Select  key.Binding
	Refresh key.Binding
	New     key.Binding
	Delete  key.Binding
	Yes     key.Binding

	// Navigation
	Up           key.Binding
	Down         key.Binding
	Top          key.Binding
	Bottom       key.Binding
	HalfPageUp   key.Binding
	HalfPageDown key.Binding

	// Logs actions
	ToggleFollow key.Binding
	CycleLevel   key.Binding

	// Prompt
	Confirm key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() keyMap {
	return keyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "e"),
			key.WithHelp("e", "Quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("h", "?"),
			key.WithHelp("h/?", "Toggle help"),
		),
		CycleTheme: key.NewBinding(
			key.WithKeys("T"),
			key.WithHelp("T", "Cycle theme"),
		),
		Tab: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "Next view"),
		),
		ShiftTab: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("shift+tab", "Previous view"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "Cancel / back to classes"),
		),

		ViewClasses: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "Classes"),
		),
		ViewSubjects: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "Subjects"),
		),
		ViewUsers: key.NewBinding(
			key.WithKeys("u"),
			key.WithHelp("u", "Users"),
		),
		ViewMaterials: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "Materials of the selected class"),
		),
		ViewLogs: key.NewBinding(
			key.WithKeys("l"),
			key.WithHelp("l", "Console log"),
		),

		Select: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "Open class materials"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "Refetch"),
		),
		New: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "New subject"),
		),
		Delete: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "Delete selected"),
		),
		Yes: key.NewBinding(
			key.WithKeys("y"),
			key.WithHelp("y", "Confirm delete"),
		),

		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/up", "Move up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/down", "Move down"),
		),
		Top: key.NewBinding(
			key.WithKeys("g", "home"),
			key.WithHelp("g", "Go to top"),
		),
		Bottom: key.NewBinding(
			key.WithKeys("G", "end"),
			key.WithHelp("G", "Go to bottom"),
		),
		HalfPageUp: key.NewBinding(
			key.WithKeys("ctrl+u"),
			key.WithHelp("ctrl+u", "Half page up"),
		),
		HalfPageDown: key.NewBinding(
			key.WithKeys("ctrl+d"),
			key.WithHelp("ctrl+d", "Half page down"),
		),

		ToggleFollow: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("Space", "Toggle follow mode"),
		),
		CycleLevel: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "Cycle level filter"),
		),

		Confirm: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "Confirm"),
		),
	}
}

// ShortHelp returns key bindings for the short help view.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.Quit}
}

// FullHelp returns key bindings for the full help view.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Tab, k.ViewClasses, k.ViewSubjects, k.ViewUsers, k.ViewMaterials, k.ViewLogs},
		{k.Up, k.Down, k.Top, k.Bottom, k.HalfPageDown, k.HalfPageUp},
		{k.Select, k.Refresh, k.New, k.Delete},
		{k.ToggleFollow, k.CycleLevel},
		{k.CycleTheme, k.Help, k.Quit},
	}
}
