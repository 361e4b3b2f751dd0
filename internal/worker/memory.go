package worker

import (
	"context"
	"runtime"
	"sync"
	"time"
)

// heapRecheck - как часто ожидающий Acquire перепроверяет кучу, если резервы не освобождались.
const heapRecheck = 200 * time.Millisecond

// MemoryLimiter ограничивает суммарную память под декодированные изображения.
// Резервирование идёт по оценке EstimateUsage, ожидающие просыпаются при каждом освобождении.
type MemoryLimiter struct {
	limit   uint64
	enabled bool

	mu       sync.Mutex
	reserved uint64

	// released закрывается и заменяется при каждом освобождении резерва.
	released chan struct{}
}

// NewMemoryLimiter создаёт ограничитель на maxMemoryMB мегабайт (0 = без ограничения).
func NewMemoryLimiter(maxMemoryMB int) *MemoryLimiter {
	if maxMemoryMB <= 0 {
		return &MemoryLimiter{}
	}
	return &MemoryLimiter{
		limit:    uint64(maxMemoryMB) << 20,
		enabled:  true,
		released: make(chan struct{}),
	}
}

// EstimateUsage оценивает память на один файл: сжатый файл распаковывается
// в RGBA-буфер, плюс копия для ресайза и буфер кодирования.
func EstimateUsage(fileSize int64) uint64 {
	if fileSize <= 0 {
		return 0
	}
	return uint64(fileSize) * 10
}

// Acquire резервирует память под файл размера fileSize и возвращает функцию освобождения.
// Блокирует, пока резерв не поместится в лимит или не отменён ctx.
// Файл с оценкой больше лимита резервирует весь лимит и ждёт, пока остальные освободят место.
func (ml *MemoryLimiter) Acquire(ctx context.Context, fileSize int64) (func(), error) {
	if !ml.enabled {
		return func() {}, nil
	}

	need := min(EstimateUsage(fileSize), ml.limit)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		ml.mu.Lock()
		if ml.fits(need) {
			ml.reserved += need
			ml.mu.Unlock()
			return ml.releaser(need), nil
		}
		wake := ml.released
		ml.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-wake:
		case <-time.After(heapRecheck):
			runtime.GC()
		}
	}
}

// fits проверяет резерв и фактическую кучу. Вызывается под mu.
// Пустой ограничитель пропускает задачу всегда, иначе пул мог бы встать навсегда.
func (ml *MemoryLimiter) fits(need uint64) bool {
	if ml.reserved == 0 {
		return true
	}
	if ml.reserved+need > ml.limit {
		return false
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return ms.HeapAlloc+need <= ml.limit
}

func (ml *MemoryLimiter) releaser(n uint64) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			ml.mu.Lock()
			ml.reserved -= n
			close(ml.released)
			ml.released = make(chan struct{})
			ml.mu.Unlock()
		})
	}
}

// IsEnabled возвращает true, если ограничение включено.
func (ml *MemoryLimiter) IsEnabled() bool {
	return ml.enabled
}

func (ml *MemoryLimiter) usage() uint64 {
	ml.mu.Lock()
	defer ml.mu.Unlock()
	return ml.reserved
}

/*
Возможные расширения:
- Оценивать память по размерам изображения из заголовка (image.DecodeConfig)
*/
