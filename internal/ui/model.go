package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// slotRunes maps slot states to the glyph drawn in the pool strip.
var slotRunes = [4]string{"·", "▒", "█", "▓"}

// DoneMsg quits the UI (sent by the driver on -duration expiry or SIGINT).
type DoneMsg struct{}

// Model is the bubbletea TUI model for the pool diagnostic tool.
type Model struct {
	// Config
	Blocks   int
	SeedBits uint32

	// OnToggle is invoked from Update when the user presses 'a'.
	OnToggle func()

	// Data
	stats  PoolStats
	paused bool

	// View state
	width    int
	height   int
	quitting bool
}

func NewModel(blocks int, seedBits uint32, onToggle func()) Model {
	return Model{Blocks: blocks, SeedBits: seedBits, OnToggle: onToggle, width: 80}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		case "a":
			if m.OnToggle != nil {
				m.OnToggle()
			}
			return m, nil
		case "p":
			m.paused = !m.paused
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case PoolStats:
		if !m.paused {
			m.stats = msg
		}

	case DoneMsg:
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	m.renderHeader(&b)
	m.renderStrip(&b)
	m.renderCounters(&b)
	m.renderHelp(&b)
	return b.String()
}

func (m Model) renderHeader(b *strings.Builder) {
	b.WriteString(styleHeader.Render("JitterRNG entropy pool"))
	b.WriteString(styleDim.Render(fmt.Sprintf("  %d slots × %d bits", m.Blocks, m.SeedBits)))
	b.WriteString("\n")

	status := styleGood.Render("running")
	if !m.stats.Initialized {
		status = styleBad.Render("uninitialized")
	} else if !m.stats.Enabled {
		status = styleWarn.Render("async disabled")
	}
	b.WriteString(fmt.Sprintf("%s  %s %s  %s %.1f/s  %s %s\n\n",
		status,
		styleLabel.Render("capacity"), styleAccent.Render(fmt.Sprintf("%d bits", m.stats.Available)),
		styleLabel.Render("fetch rate"), m.stats.FetchRate,
		styleLabel.Render("elapsed"), m.stats.Elapsed.Truncate(100*time.Millisecond).String()))
}

// renderStrip draws one glyph per slot, wrapped to the window width.
func (m Model) renderStrip(b *strings.Builder) {
	perRow := m.width - 2
	if perRow < 8 {
		perRow = 8
	}
	for i, st := range m.stats.States {
		if i > 0 && i%perRow == 0 {
			b.WriteString("\n")
		}
		r := slotRunes[0]
		if int(st) < len(slotRunes) {
			r = slotRunes[st]
		}
		switch st {
		case StateEmpty:
			b.WriteString(styleSlotEmpty.Render(r))
		case StateFilling:
			b.WriteString(styleSlotFilling.Render(r))
		case StateFilled:
			b.WriteString(styleSlotFilled.Render(r))
		case StateReading:
			b.WriteString(styleSlotReading.Render(r))
		}
	}
	b.WriteString("\n\n")
}

func (m Model) renderCounters(b *strings.Builder) {
	filled := 0
	for _, st := range m.stats.States {
		if st == StateFilled {
			filled++
		}
	}

	hitStyle := styleGood
	total := m.stats.Hits + m.stats.Misses
	if total > 0 && m.stats.Misses*4 > total {
		hitStyle = styleWarn // more than a quarter of fast-path attempts missed
	}

	fmt.Fprintf(b, "%s %s/%d   %s %s   %s %d   %s %d\n",
		styleLabel.Render("filled"), styleGood.Render(fmt.Sprintf("%d", filled)), m.Blocks,
		styleLabel.Render("hits"), hitStyle.Render(fmt.Sprintf("%d", m.stats.Hits)),
		styleLabel.Render("misses"), m.stats.Misses,
		styleLabel.Render("direct"), m.stats.Direct)
	failStyle := styleDim
	if m.stats.Failures > 0 {
		failStyle = styleBad
	}
	fmt.Fprintf(b, "%s %d   %s %d   %s %s\n",
		styleLabel.Render("refill passes"), m.stats.Passes,
		styleLabel.Render("slots filled"), m.stats.Filled,
		styleLabel.Render("source failures"), failStyle.Render(fmt.Sprintf("%d", m.stats.Failures)))
}

func (m Model) renderHelp(b *strings.Builder) {
	pause := "p pause"
	if m.paused {
		pause = "p resume"
	}
	b.WriteString("\n")
	b.WriteString(styleHelp.Render(fmt.Sprintf("q quit · a toggle async · %s", pause)))
	b.WriteString("\n")
}
