package ui

import "github.com/charmbracelet/lipgloss"

// ANSI palette indexes keep the help readable on light and dark terminals.
var (
	TitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true).MarginBottom(1)
	UsageStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	DescStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	FlagStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))

	// ReplyStyle renders persona replies in the interactive console.
	ReplyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("5"))
	// ErrorStyle renders replies carrying the error marker.
	ErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)
