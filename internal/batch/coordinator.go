// Package batch запускает сжатие всех изображений входной директории:
// последовательно или пулом воркеров, с прогрессом и отменой.
package batch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/artemshloyda/imgshrink/internal/cache"
	"github.com/artemshloyda/imgshrink/internal/codec"
	"github.com/artemshloyda/imgshrink/internal/scanner"
	"github.com/artemshloyda/imgshrink/internal/worker"
)

var (
	// ErrEmptyFolder - входная или выходная директория не указана.
	ErrEmptyFolder = errors.New("входная и выходная директории должны быть указаны")

	// ErrSameFolder - входная и выходная директории совпадают.
	ErrSameFolder = errors.New("входная и выходная директории не должны совпадать")

	// ErrInvalidTarget - целевой размер не положительный.
	ErrInvalidTarget = codec.ErrInvalidTarget

	// ErrInputNotDir - входной путь не существует или не директория.
	ErrInputNotDir = errors.New("входной путь не является директорией")
)

// Request описывает один запуск пакета.
type Request struct {
	// InputDir - директория с исходными изображениями.
	InputDir string

	// OutputDir - директория для результатов.
	OutputDir string

	// TargetSizeKB - целевой размер каждого файла в килобайтах.
	TargetSizeKB float64

	// Parallel - обрабатывать файлы пулом воркеров.
	Parallel bool
}

// Validate проверяет запрос до начала работы.
func (r Request) Validate() error {
	if strings.TrimSpace(r.InputDir) == "" || strings.TrimSpace(r.OutputDir) == "" {
		return ErrEmptyFolder
	}
	if r.TargetSizeKB <= 0 || math.IsNaN(r.TargetSizeKB) || math.IsInf(r.TargetSizeKB, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidTarget, r.TargetSizeKB)
	}

	absIn, err := filepath.Abs(r.InputDir)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInputNotDir, r.InputDir)
	}
	absOut, err := filepath.Abs(r.OutputDir)
	if err != nil {
		return fmt.Errorf("не удалось получить абсолютный путь %s: %w", r.OutputDir, err)
	}
	if absIn == absOut {
		return ErrSameFolder
	}

	info, err := os.Stat(absIn)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrInputNotDir, r.InputDir)
	}
	return nil
}

// Ledger записывает историю запусков. Вызывается только из агрегирующей горутины.
type Ledger interface {
	BeginRun(runID string, req Request, total int) error
	RecordResult(runID string, res codec.Result) error
	FinishRun(runID string, status Status, completed int) error
}

// Coordinator запускает пакеты. Не хранит состояния между запусками.
type Coordinator struct {
	codec       *codec.Codec
	log         zerolog.Logger
	workers     int
	maxMemoryMB int
	extensions  []string
	cache       *cache.Cache
	paramsHash  string
	ledger      Ledger

	// discover ищет входные файлы запроса.
	discover func(ctx context.Context, req Request) ([]scanner.File, error)
}

// Option настраивает Coordinator.
type Option func(*Coordinator)

// WithLogger задаёт логгер.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Coordinator) { c.log = l }
}

// WithWorkers задаёт размер пула для параллельного режима (0 = половина CPU).
func WithWorkers(n int) Option {
	return func(c *Coordinator) { c.workers = n }
}

// WithMaxMemoryMB ограничивает память на декодирование (0 = без ограничения).
func WithMaxMemoryMB(mb int) Option {
	return func(c *Coordinator) { c.maxMemoryMB = mb }
}

// WithExtensions задаёт список входных расширений.
func WithExtensions(exts []string) Option {
	return func(c *Coordinator) { c.extensions = exts }
}

// WithCache включает кэш результатов. paramsHash должен меняться вместе с параметрами кодека.
func WithCache(ch *cache.Cache, paramsHash string) Option {
	return func(c *Coordinator) {
		c.cache = ch
		c.paramsHash = paramsHash
	}
}

// WithLedger включает запись истории запусков.
func WithLedger(l Ledger) Option {
	return func(c *Coordinator) { c.ledger = l }
}

// New создаёт Coordinator.
func New(cd *codec.Codec, opts ...Option) *Coordinator {
	c := &Coordinator{
		codec: cd,
		log:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.workers <= 0 {
		c.workers = worker.DefaultWorkers()
	}
	if c.discover == nil {
		c.discover = c.discoverFiles
	}
	return c
}

// discoverFiles обходит входную директорию, пропуская выходную.
func (c *Coordinator) discoverFiles(ctx context.Context, req Request) ([]scanner.File, error) {
	sc := scanner.New(req.InputDir, c.extensions)
	sc.Exclude(req.OutputDir)
	return sc.Discover(ctx)
}

// Run выполняет пакет синхронно и возвращается после остановки всех воркеров.
// Отмена ctx приводит к OnCancelled.
func (c *Coordinator) Run(ctx context.Context, req Request, sink Sink) (Status, error) {
	if err := req.Validate(); err != nil {
		return StatusFailed, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	h := newHandle(cancel, req.OutputDir)
	c.run(ctx, runCtx, h, req, sink)
	return h.Wait()
}

// Start проверяет запрос и запускает пакет в фоне.
func (c *Coordinator) Start(ctx context.Context, req Request, sink Sink) (*Handle, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	h := newHandle(cancel, req.OutputDir)
	go c.run(ctx, runCtx, h, req, sink)
	return h, nil
}

// CompressFile сжимает один файл вне пакета (режим слежения).
// paths - пути, выданные пакетом (Handle.OutputPaths); nil означает пустое распределение.
func (c *Coordinator) CompressFile(ctx context.Context, req Request, paths *OutputPaths, file scanner.File) codec.Result {
	if paths == nil {
		paths = NewOutputPaths(req.OutputDir)
	}
	task := codec.Task{
		InputPath:    file.Path,
		OutputPath:   paths.Resolve(file),
		TargetSizeKB: req.TargetSizeKB,
	}
	res := c.process(ctx, task)
	c.logResult(c.log, res)
	return res
}

func (c *Coordinator) run(parent, ctx context.Context, h *Handle, req Request, sink Sink) {
	defer h.cancel()
	if sink == nil {
		sink = SinkFuncs{}
	}

	log := c.log.With().Str("run", h.id).Logger()
	start := time.Now()

	files, err := c.discover(ctx, req)
	if err != nil {
		if h.Cancelled() || parent.Err() != nil {
			log.Info().Msg("запуск отменён во время поиска файлов")
			sink.OnCancelled()
			h.finish(StatusCancelled, nil)
			return
		}

		log.Error().Err(err).Str("input", req.InputDir).Msg("ошибка поиска файлов")
		c.ledgerBegin(log, h.id, req, 0)
		c.ledgerFinish(log, h.id, StatusFailed, 0)
		if fs, ok := sink.(FailureSink); ok {
			fs.OnFailed(err)
		}
		h.finish(StatusFailed, err)
		return
	}

	tasks := buildTasks(files, h.paths, req.TargetSizeKB)
	atomic.StoreInt64(&h.stats.Total, int64(len(tasks)))
	c.ledgerBegin(log, h.id, req, len(tasks))

	log.Info().
		Int("total", len(tasks)).
		Bool("parallel", req.Parallel).
		Float64("target_kb", req.TargetSizeKB).
		Msg("запуск пакета")

	report := func(res codec.Result, completed int) {
		h.stats.Record(res)
		c.logResult(log, res)
		if c.ledger != nil {
			if err := c.ledger.RecordResult(h.id, res); err != nil {
				log.Warn().Err(err).Msg("не удалось записать результат в историю")
			}
		}
		if rs, ok := sink.(ResultSink); ok {
			rs.OnResult(res)
		}
		sink.OnProgress(completed, len(tasks))
	}

	var completed int
	if req.Parallel && len(tasks) > 1 {
		completed = c.runParallel(ctx, h, tasks, report)
	} else {
		completed = c.runSequential(ctx, tasks, report)
	}

	status := StatusCompleted
	if h.Cancelled() || parent.Err() != nil {
		status = StatusCancelled
	}
	c.ledgerFinish(log, h.id, status, completed)

	stats := h.stats.Snapshot()
	log.Info().
		Str("status", status.String()).
		Int("completed", completed).
		Int64("failed", stats.Failed).
		Int64("best_effort", stats.BestEffort).
		Dur("elapsed", time.Since(start)).
		Msg("пакет завершён")

	if status == StatusCancelled {
		sink.OnCancelled()
	} else {
		sink.OnDone(len(tasks))
	}
	h.finish(status, nil)
}

// runSequential обрабатывает задачи по порядку в текущей горутине.
func (c *Coordinator) runSequential(ctx context.Context, tasks []codec.Task, report func(codec.Result, int)) int {
	completed := 0
	for _, task := range tasks {
		if ctx.Err() != nil {
			break
		}
		res := c.process(ctx, task)
		if !res.Processed() {
			break
		}
		completed++
		report(res, completed)
	}
	return completed
}

// runParallel раздаёт задачи пулу и агрегирует результаты в одной горутине.
// Возвращается только после выхода всех воркеров.
func (c *Coordinator) runParallel(ctx context.Context, h *Handle, tasks []codec.Task, report func(codec.Result, int)) int {
	pool := worker.New(c.workers, c.maxMemoryMB, c.process)
	results := pool.Start(ctx, tasks)

	completed := 0
loop:
	for completed < len(tasks) {
		select {
		case <-ctx.Done():
			break loop
		case res, ok := <-results:
			if !ok {
				break loop
			}
			if !res.Processed() {
				continue
			}
			completed++
			report(res, completed)
		}
	}

	h.cancel()
	for range results {
	}
	return completed
}

// process сжимает одну задачу с учётом кэша.
func (c *Coordinator) process(ctx context.Context, task codec.Task) codec.Result {
	if c.cache == nil {
		return c.codec.Compress(ctx, task)
	}

	key, res, hit := c.fromCache(ctx, task)
	if hit {
		return res
	}

	res = c.codec.Compress(ctx, task)
	if key != "" && res.Written() {
		if err := c.cache.Put(key, res); err != nil {
			c.log.Warn().Err(err).Str("src", task.InputPath).Msg("не удалось сохранить в кэш")
		}
	}
	return res
}

// fromCache ищет результат в кэше. Возвращает ключ для последующего Put.
func (c *Coordinator) fromCache(ctx context.Context, task codec.Task) (string, codec.Result, bool) {
	if ctx.Err() != nil {
		return "", codec.Result{}, false
	}
	start := time.Now()

	sum, err := scanner.ComputeSHA256(task.InputPath)
	if err != nil {
		return "", codec.Result{}, false
	}
	key := cache.Key(sum, c.paramsHash, task.TargetSizeKB)

	entry, ok := c.cache.Get(key)
	if !ok {
		return key, codec.Result{}, false
	}
	if err := c.cache.CopyFromCache(entry, task.OutputPath); err != nil {
		c.log.Warn().Err(err).Str("src", task.InputPath).Msg("не удалось взять файл из кэша")
		return key, codec.Result{}, false
	}

	res := codec.Result{
		Task:    task,
		Status:  codec.StatusBestEffort,
		Width:   entry.Width,
		Height:  entry.Height,
		Scale:   entry.Scale,
		Quality: entry.Quality,
		Passes:  entry.Passes,
		Cached:  true,
	}
	if info, err := os.Stat(task.InputPath); err == nil {
		res.InputSize = info.Size()
	}
	if info, err := os.Stat(task.OutputPath); err == nil {
		res.OutputSize = info.Size()
	}
	if res.OutputSize <= c.codec.LimitBytes(task.TargetSizeKB) {
		res.Status = codec.StatusTargetMet
	}
	res.Duration = time.Since(start)
	return key, res, true
}

// logResult пишет одно событие на файл.
func (c *Coordinator) logResult(log zerolog.Logger, res codec.Result) {
	var ev *zerolog.Event
	switch res.Status {
	case codec.StatusTargetMet:
		ev = log.Debug()
	case codec.StatusBestEffort:
		ev = log.Warn()
	case codec.StatusFailed:
		ev = log.Error().Err(res.Err)
	default:
		return
	}

	ev.Str("src", res.Task.InputPath).
		Str("dst", res.Task.OutputPath).
		Str("status", res.Status.String()).
		Int64("in_size", res.InputSize).
		Int64("out_size", res.OutputSize).
		Int("quality", res.Quality).
		Float64("scale", res.Scale).
		Int("passes", res.Passes).
		Bool("cached", res.Cached).
		Dur("took", res.Duration).
		Msg("файл обработан")
}

func (c *Coordinator) ledgerBegin(log zerolog.Logger, runID string, req Request, total int) {
	if c.ledger == nil {
		return
	}
	if err := c.ledger.BeginRun(runID, req, total); err != nil {
		log.Warn().Err(err).Msg("не удалось записать запуск в историю")
	}
}

func (c *Coordinator) ledgerFinish(log zerolog.Logger, runID string, status Status, completed int) {
	if c.ledger == nil {
		return
	}
	if err := c.ledger.FinishRun(runID, status, completed); err != nil {
		log.Warn().Err(err).Msg("не удалось завершить запуск в истории")
	}
}

/*
Возможные расширения:
- Приоритет крупных файлов в параллельном режиме
- Повторная попытка для файлов с ошибкой ввода-вывода
*/
