package tui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/artemshloyda/imgshrink/internal/codec"
)

func TestModel_Progress(t *testing.T) {
	var m tea.Model = NewModel(NewSink(), nil)

	m, _ = m.Update(progressMsg{completed: 3, total: 10})
	m, _ = m.Update(resultMsg(codec.Result{
		Task:       codec.Task{InputPath: "/in/a.png"},
		Status:     codec.StatusBestEffort,
		InputSize:  4096,
		OutputSize: 1024,
		Cached:     true,
	}))
	m, _ = m.Update(resultMsg(codec.Result{Status: codec.StatusFailed}))

	view := m.View()
	for _, want := range []string{"3/10", "best effort:1", "ошибки:1", "кэш:1", "3.0 KB"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestModel_CancelKey(t *testing.T) {
	calls := 0
	var m tea.Model = NewModel(NewSink(), func() { calls++ })

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd != nil {
		t.Error("cancel key must not quit before the batch stops")
	}
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if calls != 1 {
		t.Errorf("cancel called %d times, want 1", calls)
	}
	if !strings.Contains(m.View(), "Отмена") {
		t.Error("view should show cancellation")
	}

	m, cmd = m.Update(cancelledMsg{})
	if cmd == nil {
		t.Fatal("cancelled event must quit")
	}
	if m.(Model).Outcome() != "cancelled" {
		t.Errorf("Outcome() = %q", m.(Model).Outcome())
	}
}

func TestModel_Terminal(t *testing.T) {
	walkErr := errors.New("walk")
	tests := []struct {
		name    string
		msg     tea.Msg
		want    string
		wantErr error
	}{
		{name: "done", msg: doneMsg{total: 5}, want: "done"},
		{name: "failed", msg: failedMsg{err: walkErr}, want: "failed", wantErr: walkErr},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, cmd := NewModel(NewSink(), nil).Update(tt.msg)
			if cmd == nil {
				t.Fatal("terminal event must quit")
			}
			if got := m.(Model).Outcome(); got != tt.want {
				t.Errorf("Outcome() = %q, want %q", got, tt.want)
			}
			if got := m.(Model).Err(); got != tt.wantErr {
				t.Errorf("Err() = %v, want %v", got, tt.wantErr)
			}
			if m.View() != "" {
				t.Error("view must be empty after the batch ends")
			}
		})
	}
}

func TestSink_DeliversAndCloses(t *testing.T) {
	s := NewSink()
	s.OnProgress(1, 2)

	msg := listen(s.events)()
	if p, ok := msg.(progressMsg); !ok || p.completed != 1 || p.total != 2 {
		t.Errorf("got %#v", msg)
	}

	s.Close()
	s.Close()
	for i := 0; i < 300; i++ {
		s.OnProgress(i, 300)
	}
}

func TestRenderSummary(t *testing.T) {
	out := RenderSummary([]SummaryRow{
		{Label: "Обработано", Value: "3"},
		{Label: "Ошибки", Value: "0"},
	})
	if !strings.Contains(out, "Обработано") || !strings.Contains(out, "Ошибки") {
		t.Errorf("summary missing rows:\n%s", out)
	}
	if lines := strings.Split(out, "\n"); len(lines) != 4 {
		t.Errorf("summary has %d lines, want 4", len(lines))
	}
}

func TestRenderBar(t *testing.T) {
	tests := []struct {
		ratio  float64
		filled int
	}{
		{0, 0},
		{0.5, 10},
		{1, 20},
		{2, 20},
	}
	for _, tt := range tests {
		bar := renderBar(20, tt.ratio)
		if got := strings.Count(bar, "█"); got != tt.filled {
			t.Errorf("renderBar(20, %v) filled %d, want %d", tt.ratio, got, tt.filled)
		}
	}
}
