// Package watcher следит за входной директорией после пакетного запуска
// и отдаёт новые или изменённые изображения.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/artemshloyda/imgshrink/internal/scanner"
)

// Watcher следит за директорией и отправляет новые файлы в канал.
type Watcher struct {
	// scanner отвечает за фильтр расширений и исключения.
	scanner *scanner.Scanner

	// root - корень слежения.
	root string

	// watcher - fsnotify watcher.
	watcher *fsnotify.Watcher

	// log - логгер.
	log zerolog.Logger

	// debounceTime - время ожидания перед обработкой файла.
	// Нужно для того, чтобы файл успел полностью записаться.
	debounceTime time.Duration

	// pending - файлы, ожидающие обработки (для debounce).
	pending map[string]time.Time
	mu      sync.Mutex
}

// New создаёт новый Watcher для корня сканера. Корень приводится к абсолютному пути,
// чтобы события fsnotify сравнивались с исключениями сканера.
func New(root string, sc *scanner.Scanner, log zerolog.Logger) (*Watcher, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("не удалось получить абсолютный путь %s: %w", root, err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("не удалось создать watcher: %w", err)
	}

	return &Watcher{
		scanner:      sc,
		root:         absRoot,
		watcher:      w,
		log:          log,
		debounceTime: 500 * time.Millisecond,
		pending:      make(map[string]time.Time),
	}, nil
}

// SetDebounceTime устанавливает время debounce.
func (w *Watcher) SetDebounceTime(d time.Duration) {
	w.debounceTime = d
}

// Watch запускает слежение и возвращает канал с файлами.
// Канал закрывается после отмены ctx.
func (w *Watcher) Watch(ctx context.Context) (<-chan scanner.File, error) {
	if err := w.addRecursive(w.root); err != nil {
		_ = w.watcher.Close()
		return nil, err
	}

	files := make(chan scanner.File, 100)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		w.processEvents(ctx)
	}()
	go func() {
		defer wg.Done()
		w.processPending(ctx, files)
	}()
	go func() {
		wg.Wait()
		_ = w.watcher.Close()
		close(files)
	}()

	return files, nil
}

// addRecursive добавляет директорию и все поддиректории, кроме исключённых.
func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && w.scanner.Excluded(path) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("не удалось добавить директорию %s: %w", path, err)
		}
		return nil
	})
}

// processEvents обрабатывает события от fsnotify.
func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			// Обрабатываем только создание и запись файлов
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if w.scanner.Excluded(event.Name) {
				continue
			}

			info, err := os.Stat(event.Name)
			if err != nil {
				continue
			}

			if info.IsDir() {
				// Новая директория - добавляем её и всё, что в ней уже успело появиться
				if event.Has(fsnotify.Create) {
					if err := w.addRecursive(event.Name); err != nil {
						w.log.Warn().Err(err).Str("dir", event.Name).Msg("не удалось следить за директорией")
					}
					w.queueExisting(event.Name)
				}
				continue
			}

			if !w.scanner.Matches(event.Name) {
				continue
			}
			w.queue(event.Name)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Msg("ошибка watcher")
		}
	}
}

// queue добавляет файл в pending для debounce.
func (w *Watcher) queue(path string) {
	w.mu.Lock()
	w.pending[path] = time.Now()
	w.mu.Unlock()
}

// queueExisting ставит в очередь файлы, созданные вместе с новой директорией.
func (w *Watcher) queueExisting(dir string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != dir && w.scanner.Excluded(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && w.scanner.Matches(path) {
			w.queue(path)
		}
		return nil
	})
}

// processPending отправляет файлы из pending после debounce.
func (w *Watcher) processPending(ctx context.Context, files chan<- scanner.File) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, f := range w.ready() {
				select {
				case files <- f:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

// ready забирает из pending файлы, которые не менялись дольше debounceTime.
func (w *Watcher) ready() []scanner.File {
	w.mu.Lock()
	defer w.mu.Unlock()

	var out []scanner.File
	now := time.Now()
	for path, addedAt := range w.pending {
		if now.Sub(addedAt) < w.debounceTime {
			continue
		}
		delete(w.pending, path)

		f, err := w.scanner.FileAt(path)
		if err != nil {
			continue
		}
		out = append(out, f)
	}
	return out
}

/*
Возможные расширения:
- Удалять выходной файл при удалении исходного
- Обрабатывать переименование файлов
*/
