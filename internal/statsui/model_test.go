// ABOUTME: Tests for the stats dashboard model's state transitions
package statsui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nyquist-audio/slaveplay/internal/stats"
)

func TestApplyStatusUpdatesFields(t *testing.T) {
	m := NewModel()
	msg := StatusMsg{
		Connected:  true,
		SourceName: "studio-mac",
		Quality:    QualityGood,
		SampleRate: 44100,
		FrameSize:  352,
		Report:     stats.Report{MeanSyncError: 12.5},
	}
	m.apply(msg)

	if !m.connected || m.sourceName != "studio-mac" {
		t.Fatalf("expected connection fields applied, got %+v", m)
	}
	if m.report.MeanSyncError != 12.5 {
		t.Fatalf("expected report applied, got %+v", m.report)
	}
}

func TestViewBeforeWindowSizeShowsLoading(t *testing.T) {
	m := NewModel()
	if got := m.View(); got != "Loading...\n" {
		t.Fatalf("expected loading placeholder, got %q", got)
	}
}

func TestUpdateQuitsOnQ(t *testing.T) {
	m := NewModel()
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("expected a quit command")
	}
}

func TestUpdateAppliesWindowSize(t *testing.T) {
	m := NewModel()
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	mm := updated.(Model)
	if mm.width != 80 || mm.height != 24 {
		t.Fatalf("expected window size applied, got %+v", mm)
	}
}
