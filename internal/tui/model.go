package tui

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/artemshloyda/imgshrink/internal/codec"
	"github.com/artemshloyda/imgshrink/internal/worker"
)

type progressMsg struct {
	completed int
	total     int
}

type resultMsg codec.Result

type doneMsg struct{ total int }

type cancelledMsg struct{}

type failedMsg struct{ err error }

// Sink передаёт события пакета в модель через канал.
type Sink struct {
	events chan tea.Msg
	stop   chan struct{}
	once   sync.Once
}

// NewSink создаёт приёмник с буфером событий.
func NewSink() *Sink {
	return &Sink{
		events: make(chan tea.Msg, 256),
		stop:   make(chan struct{}),
	}
}

func (s *Sink) send(msg tea.Msg) {
	select {
	case s.events <- msg:
	case <-s.stop:
	}
}

// OnProgress передаёт счётчик обработанных файлов.
func (s *Sink) OnProgress(completed, total int) { s.send(progressMsg{completed, total}) }

// OnResult передаёт итог одного файла.
func (s *Sink) OnResult(res codec.Result) { s.send(resultMsg(res)) }

// OnDone сообщает о завершении пакета.
func (s *Sink) OnDone(total int) { s.send(doneMsg{total}) }

// OnCancelled сообщает об отмене пакета.
func (s *Sink) OnCancelled() { s.send(cancelledMsg{}) }

// OnFailed сообщает об ошибке поиска файлов.
func (s *Sink) OnFailed(err error) { s.send(failedMsg{err}) }

// Close отпускает отправителей, если программа завершилась раньше пакета.
func (s *Sink) Close() {
	s.once.Do(func() { close(s.stop) })
}

// Model - bubbletea-модель экрана прогресса.
type Model struct {
	events     <-chan tea.Msg
	cancel     func()
	started    time.Time
	width      int
	total      int
	completed  int
	bestEffort int
	failed     int
	cached     int
	inBytes    int64
	outBytes   int64
	last       string
	cancelling bool
	outcome    string
	err        error
}

// NewModel создаёт модель, читающую события из sink. cancel вызывается по q или Ctrl+C.
func NewModel(sink *Sink, cancel func()) Model {
	return Model{events: sink.events, cancel: cancel, started: time.Now()}
}

// Init начинает чтение событий пакета.
func (m Model) Init() tea.Cmd {
	return listen(m.events)
}

// Update применяет событие пакета или клавишу. Итоговое событие завершает программу.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case progressMsg:
		m.completed = msg.completed
		m.total = msg.total
		return m, listen(m.events)
	case resultMsg:
		switch msg.Status {
		case codec.StatusBestEffort:
			m.bestEffort++
		case codec.StatusFailed:
			m.failed++
		}
		if msg.Cached {
			m.cached++
		}
		if codec.Result(msg).Written() {
			m.inBytes += msg.InputSize
			m.outBytes += msg.OutputSize
		}
		m.last = filepath.Base(msg.Task.InputPath)
		return m, listen(m.events)
	case doneMsg:
		m.total = msg.total
		m.outcome = "done"
		return m, tea.Quit
	case cancelledMsg:
		m.outcome = "cancelled"
		return m, tea.Quit
	case failedMsg:
		m.outcome = "failed"
		m.err = msg.err
		return m, tea.Quit
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if !m.cancelling && m.cancel != nil {
				m.cancelling = true
				m.cancel()
			}
		}
		return m, nil
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	default:
		return m, nil
	}
}

// View рисует экран. После итога пакета экран пустой, итоги печатает вызывающий.
func (m Model) View() string {
	if m.outcome != "" {
		return ""
	}

	barWidth := 40
	if m.width > 0 {
		barWidth = int(math.Min(60, float64(m.width-10)))
		if barWidth < 20 {
			barWidth = 20
		}
	}

	ratio := 0.0
	if m.total > 0 {
		ratio = math.Min(1, float64(m.completed)/float64(m.total))
	}

	elapsed := time.Since(m.started).Round(time.Second)
	status := dimStyle.Render("q - отменить")
	if m.cancelling {
		status = warnStyle.Render("Отмена... ждём завершения текущих файлов")
	}

	lines := []string{
		titleStyle.Render("imgshrink 🗜"),
		labelStyle.Render(fmt.Sprintf("Файлы: %d/%d", m.completed, m.total)) +
			dimStyle.Render(fmt.Sprintf("  best effort:%d  ошибки:%d  кэш:%d", m.bestEffort, m.failed, m.cached)),
		labelStyle.Render("Сэкономлено: " + worker.FormatBytes(m.inBytes-m.outBytes)),
		dimStyle.Render("Последний: " + m.last),
		dimStyle.Render(fmt.Sprintf("Прошло: %s", elapsed)),
		barStyle.Render(renderBar(barWidth, ratio)),
		status,
	}

	return strings.Join(lines, "\n")
}

// Outcome возвращает итог: "done", "cancelled", "failed" или "" если программа прервана.
func (m Model) Outcome() string {
	return m.outcome
}

// Err возвращает ошибку пакета, если он завершился с ошибкой.
func (m Model) Err() error {
	return m.err
}

func listen(events <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-events
	}
}

func renderBar(width int, ratio float64) string {
	filled := int(math.Round(ratio * float64(width)))
	filled = max(0, min(filled, width))
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", width-filled) + "]"
}
