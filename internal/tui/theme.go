package tui

import "github.com/charmbracelet/lipgloss"

type Theme struct {
	TextMuted lipgloss.Style
	Error     lipgloss.Style

	TopBar      lipgloss.Style
	TopBarTitle lipgloss.Style
	Footer      lipgloss.Style
	InputBox    lipgloss.Style
	Recording   lipgloss.Style

	RoleYou lipgloss.Style
	RoleAI  lipgloss.Style

	PickerTitle lipgloss.Style
	PickerItem  lipgloss.Style
	PickerSel   lipgloss.Style
}

func NewTheme() Theme {
	accent := lipgloss.AdaptiveColor{Light: "28", Dark: "114"}
	muted := lipgloss.AdaptiveColor{Light: "243", Dark: "245"}
	errCol := lipgloss.AdaptiveColor{Light: "160", Dark: "203"}
	border := lipgloss.AdaptiveColor{Light: "250", Dark: "238"}

	return Theme{
		TextMuted: lipgloss.NewStyle().Foreground(muted),
		Error:     lipgloss.NewStyle().Foreground(errCol),

		TopBar:      lipgloss.NewStyle().Foreground(muted).Padding(0, 1),
		TopBarTitle: lipgloss.NewStyle().Foreground(accent).Bold(true),
		Footer:      lipgloss.NewStyle().Foreground(muted).Padding(0, 1),
		InputBox: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(border).
			Padding(0, 1),
		Recording: lipgloss.NewStyle().Foreground(errCol).Bold(true),

		RoleYou: lipgloss.NewStyle().Foreground(accent).Bold(true),
		RoleAI:  lipgloss.NewStyle().Bold(true),

		PickerTitle: lipgloss.NewStyle().Foreground(accent).Bold(true).Padding(0, 1),
		PickerItem:  lipgloss.NewStyle().Padding(0, 2),
		PickerSel:   lipgloss.NewStyle().Foreground(accent).Bold(true).Padding(0, 1),
	}
}
