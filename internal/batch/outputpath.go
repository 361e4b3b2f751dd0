package batch

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/artemshloyda/imgshrink/internal/codec"
	"github.com/artemshloyda/imgshrink/internal/scanner"
)

// OutputPath строит путь к выходному файлу: относительный путь сохраняется,
// расширение заменяется на .jpg.
func OutputPath(outputDir, relPath string) string {
	ext := filepath.Ext(relPath)
	return filepath.Join(outputDir, strings.TrimSuffix(relPath, ext)+codec.OutputExt)
}

// OutputPaths назначает задачам выходные пути без коллизий.
// Файлы a.png и a.gif в одной директории получают a.jpg и a - dup1.jpg.
// Пути закрепляются за исходным файлом, поэтому режим слежения после пакета
// пишет изменённый файл туда же, куда его записал пакет.
type OutputPaths struct {
	outputDir string

	mu     sync.Mutex
	owners map[string]string
}

// NewOutputPaths создаёт пустое распределение путей для outputDir.
func NewOutputPaths(outputDir string) *OutputPaths {
	return &OutputPaths{outputDir: outputDir, owners: make(map[string]string)}
}

// Resolve возвращает выходной путь для файла. Сравнение без учёта регистра,
// чтобы не было коллизий на нечувствительных к регистру ФС.
func (p *OutputPaths) Resolve(file scanner.File) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	requested := OutputPath(p.outputDir, file.RelPath)
	key := strings.ToLower(requested)
	if owner, ok := p.owners[key]; !ok || owner == file.Path {
		p.owners[key] = file.Path
		return requested
	}

	ext := filepath.Ext(requested)
	stem := strings.TrimSuffix(requested, ext)
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s - dup%d%s", stem, n, ext)
		key = strings.ToLower(candidate)
		if owner, taken := p.owners[key]; !taken || owner == file.Path {
			p.owners[key] = file.Path
			return candidate
		}
	}
}

// buildTasks создаёт по задаче на каждый найденный файл.
func buildTasks(files []scanner.File, paths *OutputPaths, targetKB float64) []codec.Task {
	tasks := make([]codec.Task, 0, len(files))
	for _, f := range files {
		tasks = append(tasks, codec.Task{
			InputPath:    f.Path,
			OutputPath:   paths.Resolve(f),
			TargetSizeKB: targetKB,
		})
	}
	return tasks
}
