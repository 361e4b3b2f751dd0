package batch

import (
	"context"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/artemshloyda/imgshrink/internal/worker"
)

// Status - итог запуска пакета.
type Status int

const (
	// StatusCompleted - все задачи обработаны.
	StatusCompleted Status = iota
	// StatusCancelled - запуск отменён.
	StatusCancelled
	// StatusFailed - запуск не состоялся (ошибка обхода директории).
	StatusFailed
)

// String возвращает имя статуса.
func (s Status) String() string {
	switch s {
	case StatusCompleted:
		return "completed"
	case StatusCancelled:
		return "cancelled"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// newRunID генерирует ULID для запуска.
func newRunID() string {
	t := time.Now()
	entropy := ulid.Monotonic(rand.New(rand.NewSource(t.UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// Handle управляет одним запуском пакета.
type Handle struct {
	// id - ULID запуска.
	id string

	// cancel отменяет контекст запуска.
	cancel context.CancelFunc

	// cancelled - однонаправленная защёлка отмены.
	cancelled atomic.Bool

	// done закрывается после возврата Run.
	done chan struct{}

	// stats - счётчики запуска.
	stats *worker.Stats

	// paths - выходные пути, выданные пакетом.
	paths *OutputPaths

	status Status
	err    error
}

func newHandle(cancel context.CancelFunc, outputDir string) *Handle {
	return &Handle{
		id:     newRunID(),
		cancel: cancel,
		done:   make(chan struct{}),
		stats:  &worker.Stats{},
		paths:  NewOutputPaths(outputDir),
	}
}

// ID возвращает идентификатор запуска.
func (h *Handle) ID() string {
	return h.id
}

// Cancel запрашивает отмену. Повторные вызовы ничего не делают.
func (h *Handle) Cancel() {
	h.cancelled.Store(true)
	h.cancel()
}

// Cancelled сообщает, была ли запрошена отмена.
func (h *Handle) Cancelled() bool {
	return h.cancelled.Load()
}

// Done закрывается, когда запуск завершился и все воркеры остановлены.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait блокирует до завершения запуска.
func (h *Handle) Wait() (Status, error) {
	<-h.done
	return h.status, h.err
}

// OutputPaths возвращает выходные пути пакета. Передаётся в CompressFile,
// чтобы файлы, обработанные после пакета, не перезаписали чужие выходы.
func (h *Handle) OutputPaths() *OutputPaths {
	return h.paths
}

// Stats возвращает снимок счётчиков.
func (h *Handle) Stats() worker.Stats {
	return h.stats.Snapshot()
}

func (h *Handle) finish(status Status, err error) {
	h.status = status
	h.err = err
	close(h.done)
}
