// Package progress показывает прогресс пакета в терминале через progressbar.
package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/artemshloyda/imgshrink/internal/codec"
)

// Bar - приёмник событий пакета с прогресс-баром и ETA.
// Реализует batch.Sink, batch.ResultSink, batch.FailureSink и io.Writer.
type Bar struct {
	// bar - внутренний progressbar. Создаётся при первом событии, когда известен total.
	bar *progressbar.ProgressBar

	// mu защищает доступ к bar и счётчикам.
	mu sync.Mutex

	// disabled - флаг отключения прогресс-бара.
	disabled bool

	// description - подпись слева от бара.
	description string

	// total - общее количество файлов.
	total int

	// completed - обработано файлов.
	completed int

	// bestEffort - файлов с недостижимой целью.
	bestEffort int

	// failed - файлов с ошибками.
	failed int

	// cached - файлов из кэша.
	cached int

	// outcome - итог запуска: "", "done", "cancelled", "failed".
	outcome string

	// startTime - время создания.
	startTime time.Time

	// writer - куда выводить (по умолчанию os.Stderr).
	writer io.Writer
}

// Options содержит настройки для прогресс-бара.
type Options struct {
	// Description - описание задачи.
	Description string

	// Disabled - отключить прогресс-бар.
	Disabled bool

	// Writer - куда выводить (по умолчанию os.Stderr).
	Writer io.Writer
}

// New создаёт новый прогресс-бар.
func New(opts Options) *Bar {
	writer := opts.Writer
	if writer == nil {
		writer = os.Stderr
	}
	description := opts.Description
	if description == "" {
		description = "Сжатие"
	}

	return &Bar{
		disabled:    opts.Disabled,
		description: description,
		startTime:   time.Now(),
		writer:      writer,
	}
}

// ensureBar создаёт progressbar под известный total. Вызывается под mu.
func (b *Bar) ensureBar(total int) {
	b.total = total
	if b.disabled || total <= 0 {
		return
	}
	if b.bar != nil {
		if b.bar.GetMax() != total {
			b.bar.ChangeMax(total)
		}
		return
	}

	b.bar = progressbar.NewOptions(
		total,
		progressbar.OptionSetWriter(b.writer),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("файл"),
		progressbar.OptionSetDescription(b.label()),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]█[reset]",
			SaucerHead:    "[green]▓[reset]",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(b.writer)
		}),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)
}

// OnProgress обновляет бар до completed из total.
func (b *Bar) OnProgress(completed, total int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.ensureBar(total)
	b.completed = completed
	if b.bar != nil {
		_ = b.bar.Set(completed)
	}
}

// OnResult учитывает итог файла и обновляет подпись бара.
func (b *Bar) OnResult(res codec.Result) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch res.Status {
	case codec.StatusBestEffort:
		b.bestEffort++
	case codec.StatusFailed:
		b.failed++
	}
	if res.Cached {
		b.cached++
	}
	if b.bar != nil {
		b.bar.Describe(b.label())
	}
}

// label собирает подпись бара со счётчиками проблемных файлов. Вызывается под mu.
func (b *Bar) label() string {
	var parts []string
	if b.bestEffort > 0 {
		parts = append(parts, fmt.Sprintf("best effort: %d", b.bestEffort))
	}
	if b.failed > 0 {
		parts = append(parts, fmt.Sprintf("ошибок: %d", b.failed))
	}
	if b.cached > 0 {
		parts = append(parts, fmt.Sprintf("кэш: %d", b.cached))
	}
	if len(parts) == 0 {
		return b.description
	}
	return b.description + " (" + strings.Join(parts, ", ") + ")"
}

// OnDone завершает бар.
func (b *Bar) OnDone(totalProcessed int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.outcome = "done"
	b.total = totalProcessed
	if b.bar != nil {
		_ = b.bar.Finish()
	}
}

// OnCancelled убирает бар и оставляет сообщение.
func (b *Bar) OnCancelled() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.outcome = "cancelled"
	if b.bar != nil {
		_ = b.bar.Clear()
	}
	if !b.disabled {
		fmt.Fprintf(b.writer, "⛔ Отменено: обработано %d из %d\n", b.completed, b.total)
	}
}

// OnFailed убирает бар при ошибке пакета.
func (b *Bar) OnFailed(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.outcome = "failed"
	if b.bar != nil {
		_ = b.bar.Clear()
	}
}

// Write выводит строку лога, временно скрывая прогресс-бар.
func (b *Bar) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.bar != nil && b.outcome == "" {
		_ = b.bar.Clear()
	}

	n, err := b.writer.Write(p)

	if b.bar != nil && b.outcome == "" {
		_ = b.bar.RenderBlank()
	}
	return n, err
}

// Outcome возвращает итог запуска ("" пока запуск идёт).
func (b *Bar) Outcome() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.outcome
}

// Duration возвращает время с создания бара.
func (b *Bar) Duration() time.Duration {
	return time.Since(b.startTime)
}

// IsDisabled возвращает true, если прогресс-бар отключён.
func (b *Bar) IsDisabled() bool {
	return b.disabled
}

/*
Возможные расширения:
- Показывать текущий файл в описании бара
- Показывать сэкономленные байты рядом со счётчиком
*/
