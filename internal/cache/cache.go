// Package cache хранит результаты сжатия, чтобы повторный запуск на тех же
// файлах с теми же параметрами не кодировал их заново.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/artemshloyda/imgshrink/internal/codec"
)

// Entry описывает сохранённый результат.
type Entry struct {
	// Status - итог исходного сжатия.
	Status codec.Status `json:"status"`

	// Width, Height - размеры закодированного изображения.
	Width  int `json:"width"`
	Height int `json:"height"`

	// Quality - качество JPEG.
	Quality int `json:"quality"`

	// Scale - коэффициент масштаба.
	Scale float64 `json:"scale"`

	// Passes - количество проходов кодирования.
	Passes int `json:"passes"`

	// path - путь к JPEG в кэше.
	path string
}

// Cache управляет кэшем сжатых изображений.
type Cache struct {
	// dir - директория для кэша.
	dir string
}

// DefaultDir возвращает директорию кэша по умолчанию.
func DefaultDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("не удалось определить директорию кэша: %w", err)
	}
	return filepath.Join(base, "imgshrink"), nil
}

// New создаёт Cache. Пустой dir означает DefaultDir().
func New(dir string) (*Cache, error) {
	if dir == "" {
		var err error
		if dir, err = DefaultDir(); err != nil {
			return nil, err
		}
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию кэша: %w", err)
	}

	return &Cache{dir: dir}, nil
}

// Dir возвращает директорию кэша.
func (c *Cache) Dir() string {
	return c.dir
}

// Key строит ключ из хэша содержимого, хэша параметров и целевого размера.
func Key(contentSHA256, paramsHash string, targetKB float64) string {
	h := sha256.New()
	h.Write([]byte(contentSHA256))
	h.Write([]byte{0})
	h.Write([]byte(paramsHash))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatFloat(targetKB, 'f', -1, 64)))
	return hex.EncodeToString(h.Sum(nil))[:32]
}

func (c *Cache) dataPath(key string) string {
	return filepath.Join(c.dir, key[:2], key+codec.OutputExt)
}

func (c *Cache) metaPath(key string) string {
	return filepath.Join(c.dir, key[:2], key+".json")
}

// Get возвращает запись по ключу, если она есть и целостна.
func (c *Cache) Get(key string) (Entry, bool) {
	raw, err := os.ReadFile(c.metaPath(key))
	if err != nil {
		return Entry{}, false
	}

	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return Entry{}, false
	}

	e.path = c.dataPath(key)
	if _, err := os.Stat(e.path); err != nil {
		return Entry{}, false
	}
	return e, true
}

// Put сохраняет записанный результат в кэш.
// Результаты без выходного файла не кэшируются.
func (c *Cache) Put(key string, res codec.Result) error {
	if !res.Written() {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(c.dataPath(key)), 0755); err != nil {
		return fmt.Errorf("не удалось создать директорию кэша: %w", err)
	}
	if err := copyFile(res.Task.OutputPath, c.dataPath(key)); err != nil {
		return fmt.Errorf("не удалось сохранить в кэш: %w", err)
	}

	meta, err := json.Marshal(Entry{
		Status:  res.Status,
		Width:   res.Width,
		Height:  res.Height,
		Quality: res.Quality,
		Scale:   res.Scale,
		Passes:  res.Passes,
	})
	if err != nil {
		return err
	}
	// Метаданные пишутся последними: без них запись не видна Get.
	return os.WriteFile(c.metaPath(key), meta, 0644)
}

// CopyFromCache копирует JPEG из кэша в целевой путь.
func (c *Cache) CopyFromCache(e Entry, dstPath string) error {
	if err := os.MkdirAll(filepath.Dir(dstPath), 0755); err != nil {
		return err
	}
	return copyFile(e.path, dstPath)
}

// Clear очищает весь кэш.
func (c *Cache) Clear() error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(c.dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

// Size возвращает общий размер кэша в байтах и количество записей.
func (c *Cache) Size() (int64, int, error) {
	var (
		size  int64
		count int
	)
	err := filepath.WalkDir(c.dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		size += info.Size()
		if filepath.Ext(path) == codec.OutputExt {
			count++
		}
		return nil
	})
	if os.IsNotExist(err) {
		return 0, 0, nil
	}
	return size, count, err
}

// copyFile копирует файл из src в dst через временный файл.
func copyFile(src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = srcFile.Close() }()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".imgshrink-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := io.Copy(tmp, srcFile); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, dst)
}

/*
Возможные расширения:
- LRU eviction при превышении лимита размера
- TTL для записей кэша
*/
