package ui

import "github.com/charmbracelet/lipgloss"

var (
	// Header / chrome
	styleHeader = lipgloss.NewStyle().Bold(true)
	styleDim    = lipgloss.NewStyle().Faint(true)
	styleAccent = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true) // blue
	styleHelp   = lipgloss.NewStyle().Faint(true)

	// Slot strip
	styleSlotEmpty   = lipgloss.NewStyle().Foreground(lipgloss.Color("238")) // dark gray
	styleSlotFilling = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))  // yellow
	styleSlotFilled  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))  // green
	styleSlotReading = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))  // cyan

	// Counters
	styleLabel = lipgloss.NewStyle().Bold(true).Faint(true)
	styleGood  = lipgloss.NewStyle().Foreground(lipgloss.Color("10")) // green
	styleWarn  = lipgloss.NewStyle().Foreground(lipgloss.Color("11")) // yellow
	styleBad   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))  // red
)
