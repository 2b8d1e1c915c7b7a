// ABOUTME: Bubbletea model for the live playback statistics dashboard
// ABOUTME: Renders connection state, anchor sync quality, and the moving-average stats accumulator
package statsui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nyquist-audio/slaveplay/internal/stats"
)

// Quality buckets the current clock-offset estimate for a quick glance.
type Quality int

const (
	QualityLost Quality = iota
	QualityDegraded
	QualityGood
)

// Model is the dashboard's state, updated by StatusMsg values sent from the
// session/transport goroutines. It never touches session internals
// directly.
type Model struct {
	connected  bool
	sourceName string

	clockOffsetMicros int64
	anchorRTTMicros   int64
	quality           Quality

	sampleRate int
	frameSize  int

	report stats.Report

	bufferOccupancy    int32
	dacQueueSize       int64
	missingPackets     uint64
	latePackets        uint64
	tooLatePackets     uint64
	resendRequests     uint64

	width, height int
}

// StatusMsg carries one dashboard refresh tick's worth of data.
type StatusMsg struct {
	Connected         bool
	SourceName        string
	ClockOffsetMicros int64
	AnchorRTTMicros   int64
	Quality           Quality
	SampleRate        int
	FrameSize         int
	Report            stats.Report
	BufferOccupancy   int32
	DACQueueSize      int64
	MissingPackets    uint64
	LatePackets       uint64
	TooLatePackets    uint64
	ResendRequests    uint64
}

// NewModel constructs an idle dashboard model.
func NewModel() Model {
	return Model{}
}

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StatusMsg:
		m.apply(msg)
	}
	return m, nil
}

func (m *Model) apply(msg StatusMsg) {
	m.connected = msg.Connected
	m.sourceName = msg.SourceName
	m.clockOffsetMicros = msg.ClockOffsetMicros
	m.anchorRTTMicros = msg.AnchorRTTMicros
	m.quality = msg.Quality
	m.sampleRate = msg.SampleRate
	m.frameSize = msg.FrameSize
	m.report = msg.Report
	m.bufferOccupancy = msg.BufferOccupancy
	m.dacQueueSize = msg.DACQueueSize
	m.missingPackets = msg.MissingPackets
	m.latePackets = msg.LatePackets
	m.tooLatePackets = msg.TooLatePackets
	m.resendRequests = msg.ResendRequests
}

func (m Model) View() string {
	if m.width == 0 {
		return "Loading...\n"
	}

	s := m.renderHeader()
	s += m.renderStream()
	s += m.renderSync()
	s += m.renderHelp()
	return s
}

func (m Model) renderHeader() string {
	conn := "Disconnected"
	if m.connected {
		conn = fmt.Sprintf("Connected to %s", m.sourceName)
	}

	icon, text := "✗", "Lost"
	switch m.quality {
	case QualityGood:
		icon = "✓"
		text = fmt.Sprintf("Synced (offset %+.1fms, rtt %.1fms)",
			float64(m.clockOffsetMicros)/1000.0, float64(m.anchorRTTMicros)/1000.0)
	case QualityDegraded:
		icon = "⚠"
		text = "Degraded"
	}

	return fmt.Sprintf("┌─ slaveplay ───────────────────────────────────────┐\n"+
		"│ Status: %-42s │\n"+
		"│ Anchor: %s %-39s │\n"+
		"├─────────────────────────────────────────────────────┤\n",
		conn, icon, text)
}

func (m Model) renderStream() string {
	if !m.connected || m.sampleRate == 0 {
		return "│ No stream                                            │\n"
	}
	return fmt.Sprintf("│ Format: %dHz, %d-frame packets%-19s │\n", m.sampleRate, m.frameSize, "")
}

func (m Model) renderSync() string {
	return fmt.Sprintf("├─────────────────────────────────────────────────────┤\n"+
		"│ Mean sync error: %+9.1f frames%-13s │\n"+
		"│ Correction rate: %+7.1f ppm   Drift: %+7.1f ppm │\n"+
		"│ Buffer occupancy: %5d   DAC queue: %6d      │\n"+
		"│ Missing: %-6d Late: %-6d TooLate: %-6d    │\n"+
		"│ Resends requested: %-6d%-16s │\n",
		m.report.MeanSyncError, "",
		m.report.CorrectionPPM, m.report.MeanDriftPPM,
		m.bufferOccupancy, m.dacQueueSize,
		m.missingPackets, m.latePackets, m.tooLatePackets,
		m.resendRequests, "")
}

func (m Model) renderHelp() string {
	return "│ q:Quit                                               │\n" +
		"└─────────────────────────────────────────────────────┘\n"
}

// Run starts the dashboard program; the caller feeds it StatusMsg values
// via p.Send from outside.
func Run() *tea.Program {
	return tea.NewProgram(NewModel(), tea.WithAltScreen())
}
