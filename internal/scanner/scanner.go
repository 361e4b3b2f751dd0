// Package scanner отвечает за поиск изображений во входной директории.
package scanner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// SupportedExtensions - расширения входных файлов по умолчанию (без точки, lowercase).
var SupportedExtensions = []string{
	"jpg", "jpeg", "png", "gif", "bmp", "tiff", "tif", "ppm", "pgm",
	"webp", "ico", "im", "pcx", "sgi", "tga", "xbm", "psd",
}

// File представляет найденный файл.
type File struct {
	// Path - абсолютный путь к файлу.
	Path string

	// RelPath - путь относительно входной директории.
	RelPath string

	// Size - размер файла в байтах.
	Size int64

	// ModTime - время модификации.
	ModTime time.Time
}

// Scanner рекурсивно обходит входную директорию.
type Scanner struct {
	root       string
	extensions map[string]struct{}
	exclude    []string
}

// New создаёт Scanner. Пустой список расширений означает SupportedExtensions.
func New(root string, extensions []string) *Scanner {
	if len(extensions) == 0 {
		extensions = SupportedExtensions
	}

	exts := make(map[string]struct{}, len(extensions))
	for _, e := range extensions {
		exts[strings.ToLower(strings.TrimPrefix(e, "."))] = struct{}{}
	}

	return &Scanner{root: root, extensions: exts}
}

// Exclude исключает поддерево из обхода (например, выходную директорию внутри входной).
func (s *Scanner) Exclude(dir string) {
	if abs, err := filepath.Abs(dir); err == nil {
		s.exclude = append(s.exclude, filepath.Clean(abs))
	}
}

// Matches проверяет, подходит ли расширение файла.
func (s *Scanner) Matches(path string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if ext == "" {
		return false
	}
	_, ok := s.extensions[ext]
	return ok
}

// Excluded возвращает true, если путь лежит в исключённом поддереве.
// Относительный путь считается от текущей директории, как и в Exclude.
func (s *Scanner) Excluded(path string) bool {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	for _, ex := range s.exclude {
		if IsWithin(path, ex) {
			return true
		}
	}
	return false
}

// Discover возвращает все подходящие файлы в лексическом порядке.
// Ошибка чтения любой директории прерывает обход.
func (s *Scanner) Discover(ctx context.Context) ([]File, error) {
	absRoot, err := filepath.Abs(s.root)
	if err != nil {
		return nil, fmt.Errorf("не удалось получить абсолютный путь %s: %w", s.root, err)
	}

	var files []File
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err != nil {
			return fmt.Errorf("не удалось прочитать %s: %w", path, err)
		}

		if d.IsDir() {
			if path != absRoot && s.Excluded(path) {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() || !s.Matches(path) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("не удалось получить info %s: %w", path, err)
		}

		relPath, err := filepath.Rel(absRoot, path)
		if err != nil {
			relPath = filepath.Base(path)
		}

		files = append(files, File{
			Path:    path,
			RelPath: relPath,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return files, nil
}

// FileAt собирает File для одиночного пути внутри корня (для режима слежения).
func (s *Scanner) FileAt(path string) (File, error) {
	absRoot, err := filepath.Abs(s.root)
	if err != nil {
		return File{}, err
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return File{}, err
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return File{}, err
	}

	relPath, err := filepath.Rel(absRoot, absPath)
	if err != nil {
		relPath = filepath.Base(absPath)
	}

	return File{
		Path:    absPath,
		RelPath: relPath,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// IsWithin возвращает true, если path совпадает с root или лежит внутри него.
func IsWithin(path, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// ComputeSHA256 вычисляет sha256 хэш файла.
func ComputeSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("не удалось открыть файл: %w", err)
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("не удалось прочитать файл: %w", err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

/*
Возможные расширения:
- Добавить поддержку exclude-паттернов
- Добавить поддержку symlinks
*/
