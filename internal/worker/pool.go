// Package worker содержит пул воркеров для параллельного сжатия.
package worker

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/artemshloyda/imgshrink/internal/codec"
)

// Stats содержит статистику одного запуска.
type Stats struct {
	// Total - количество задач в запуске.
	Total int64

	// Processed - обработано файлов (включая ошибки).
	Processed int64

	// TargetMet - файлы, уложившиеся в цель.
	TargetMet int64

	// BestEffort - файлы, для которых цель недостижима.
	BestEffort int64

	// Failed - файлы с ошибками.
	Failed int64

	// Cached - файлы, взятые из кэша.
	Cached int64

	// InputBytes - общий размер входных файлов (записанных).
	InputBytes int64

	// OutputBytes - общий размер выходных файлов.
	OutputBytes int64
}

// Record учитывает результат. Безопасен для конкурентного вызова.
func (s *Stats) Record(res codec.Result) {
	if !res.Processed() {
		return
	}
	atomic.AddInt64(&s.Processed, 1)

	switch res.Status {
	case codec.StatusTargetMet:
		atomic.AddInt64(&s.TargetMet, 1)
	case codec.StatusBestEffort:
		atomic.AddInt64(&s.BestEffort, 1)
	case codec.StatusFailed:
		atomic.AddInt64(&s.Failed, 1)
	}
	if res.Cached {
		atomic.AddInt64(&s.Cached, 1)
	}
	if res.Written() {
		atomic.AddInt64(&s.InputBytes, res.InputSize)
		atomic.AddInt64(&s.OutputBytes, res.OutputSize)
	}
}

// Snapshot возвращает согласованную копию счётчиков.
func (s *Stats) Snapshot() Stats {
	return Stats{
		Total:       atomic.LoadInt64(&s.Total),
		Processed:   atomic.LoadInt64(&s.Processed),
		TargetMet:   atomic.LoadInt64(&s.TargetMet),
		BestEffort:  atomic.LoadInt64(&s.BestEffort),
		Failed:      atomic.LoadInt64(&s.Failed),
		Cached:      atomic.LoadInt64(&s.Cached),
		InputBytes:  atomic.LoadInt64(&s.InputBytes),
		OutputBytes: atomic.LoadInt64(&s.OutputBytes),
	}
}

// SavedBytes возвращает количество сэкономленных байт.
func (s *Stats) SavedBytes() int64 {
	return s.InputBytes - s.OutputBytes
}

// SavedPercent возвращает процент экономии.
func (s *Stats) SavedPercent() float64 {
	if s.InputBytes == 0 {
		return 0
	}
	return float64(s.SavedBytes()) / float64(s.InputBytes) * 100
}

// FormatBytes форматирует байты в человекочитаемый формат.
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < 0 {
		return "-" + FormatBytes(-bytes)
	}
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// DefaultWorkers возвращает половину доступных CPU, но не меньше одного.
// Вторая половина остаётся интерфейсу и остальной системе.
func DefaultWorkers() int {
	return max(1, runtime.NumCPU()/2)
}

// ProcessFunc обрабатывает одну задачу.
type ProcessFunc func(ctx context.Context, task codec.Task) codec.Result

// Pool управляет ограниченным пулом воркеров.
type Pool struct {
	workers       int
	process       ProcessFunc
	memoryLimiter *MemoryLimiter
}

// New создаёт пул. workers <= 0 означает DefaultWorkers().
func New(workers, maxMemoryMB int, process ProcessFunc) *Pool {
	if workers <= 0 {
		workers = DefaultWorkers()
	}
	return &Pool{
		workers:       workers,
		process:       process,
		memoryLimiter: NewMemoryLimiter(maxMemoryMB),
	}
}

// Workers возвращает размер пула.
func (p *Pool) Workers() int {
	return p.workers
}

// Start раздаёт задачи воркерам и возвращает канал результатов.
// Канал закрывается, когда все воркеры завершились. После отмены ctx
// новые задачи не берутся, текущие останавливаются на ближайшей проверке.
func (p *Pool) Start(ctx context.Context, tasks []codec.Task) <-chan codec.Result {
	queue := make(chan codec.Task)
	results := make(chan codec.Result, p.workers)

	go func() {
		defer close(queue)
		for _, t := range tasks {
			select {
			case queue <- t:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.worker(ctx, queue, results)
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

// worker обрабатывает задачи из очереди.
func (p *Pool) worker(ctx context.Context, queue <-chan codec.Task, results chan<- codec.Result) {
	for {
		select {
		case <-ctx.Done():
			return
		case task, ok := <-queue:
			if !ok {
				return
			}
			res := p.run(ctx, task)
			select {
			case results <- res:
			case <-ctx.Done():
				return
			}
		}
	}
}

// run выполняет задачу с учётом ограничения памяти.
func (p *Pool) run(ctx context.Context, task codec.Task) codec.Result {
	if p.memoryLimiter.IsEnabled() {
		var size int64
		if info, err := os.Stat(task.InputPath); err == nil {
			size = info.Size()
		}
		release, err := p.memoryLimiter.Acquire(ctx, size)
		if err != nil {
			return codec.Result{Task: task, Status: codec.StatusCancelled, Err: err}
		}
		defer release()
	}
	return p.process(ctx, task)
}

/*
Возможные расширения:
- Добавить rate limiting
- Добавить retry логику для failed задач
*/
