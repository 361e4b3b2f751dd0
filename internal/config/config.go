// Package config содержит конфигурацию приложения.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/artemshloyda/imgshrink/internal/scanner"
)

// Config содержит все настройки сжатия.
type Config struct {
	// InputDir - директория с исходными изображениями.
	InputDir string

	// OutputDir - директория для сохранения результатов.
	OutputDir string

	// InputExtensions - список расширений входных файлов (без точки, lowercase).
	InputExtensions []string

	// TargetSizeKB - целевой размер файла в килобайтах.
	TargetSizeKB float64

	// ToleranceKB - допустимое превышение цели в килобайтах.
	ToleranceKB float64

	// InitialQuality - качество JPEG на этапе уменьшения размеров.
	InitialQuality int

	// MinQuality - нижняя граница качества.
	MinQuality int

	// MaxScaleIterations - максимум итераций уменьшения размеров.
	MaxScaleIterations int

	// Parallel - обрабатывать файлы параллельно.
	Parallel bool

	// Workers - количество воркеров в параллельном режиме (0 = половина CPU).
	Workers int

	// MaxMemoryMB - ограничение памяти в мегабайтах (0 = без ограничения).
	MaxMemoryMB int

	// DBPath - путь к SQLite журналу запусков (пусто = журнал выключен).
	DBPath string

	// CacheEnabled - переиспользовать ранее сжатые файлы.
	CacheEnabled bool

	// CacheDir - директория кэша (пусто = пользовательский кэш ОС).
	CacheDir string

	// Watch - после пакета следить за входной директорией.
	Watch bool

	// TUI - интерактивный интерфейс вместо прогресс-бара.
	TUI bool

	// NoProgress - отключить прогресс-бар.
	NoProgress bool

	// Verbose - подробный вывод.
	Verbose bool

	// Preset - профиль размера (email, web, thumbnail, print).
	Preset string

	// LogLevel - уровень логирования (debug, info, warn, error).
	LogLevel string

	// LogFormat - формат логов (console, json).
	LogFormat string

	// LogFile - путь к файлу логов (пусто = без файла).
	LogFile string
}

// DefaultConfig возвращает конфигурацию по умолчанию.
func DefaultConfig() *Config {
	return &Config{
		InputExtensions:    append([]string(nil), scanner.SupportedExtensions...),
		TargetSizeKB:       500,
		ToleranceKB:        0,
		InitialQuality:     95,
		MinQuality:         10,
		MaxScaleIterations: 20,
		Parallel:           false,
		Workers:            0,
		LogLevel:           "warn",
		LogFormat:          "console",
	}
}

// Validate проверяет корректность конфигурации.
func (c *Config) Validate() error {
	if c.InputDir == "" {
		return fmt.Errorf("входная директория не указана (--in)")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("выходная директория не указана (--out)")
	}
	if samePath(c.InputDir, c.OutputDir) {
		return fmt.Errorf("входная и выходная директории не могут совпадать")
	}
	if len(c.InputExtensions) == 0 {
		return fmt.Errorf("не указаны расширения входных файлов (--in-ext)")
	}
	if c.TargetSizeKB <= 0 {
		return fmt.Errorf("целевой размер должен быть больше 0, получено: %v", c.TargetSizeKB)
	}
	if c.ToleranceKB < 0 {
		return fmt.Errorf("допуск не может быть отрицательным, получено: %v", c.ToleranceKB)
	}
	if c.InitialQuality < 1 || c.InitialQuality > 100 {
		return fmt.Errorf("качество должно быть от 1 до 100, получено: %d", c.InitialQuality)
	}
	if c.MinQuality < 1 || c.MinQuality > c.InitialQuality {
		return fmt.Errorf("минимальное качество должно быть от 1 до %d, получено: %d", c.InitialQuality, c.MinQuality)
	}
	if c.MaxScaleIterations < 1 {
		return fmt.Errorf("количество итераций должно быть >= 1, получено: %d", c.MaxScaleIterations)
	}
	if c.Workers < 0 {
		return fmt.Errorf("количество воркеров не может быть отрицательным, получено: %d", c.Workers)
	}
	if c.TUI && c.NoProgress {
		return fmt.Errorf("--tui нельзя использовать вместе с --no-progress")
	}
	return nil
}

// CodecParams возвращает параметры поиска в виде JSON.
func (c *Config) CodecParams() string {
	params := map[string]interface{}{
		"target_kb":      c.TargetSizeKB,
		"tolerance_kb":   c.ToleranceKB,
		"quality":        c.InitialQuality,
		"min_quality":    c.MinQuality,
		"max_iterations": c.MaxScaleIterations,
	}
	b, _ := json.Marshal(params)
	return string(b)
}

// CodecParamsHash возвращает sha256 хэш параметров поиска.
func (c *Config) CodecParamsHash() string {
	h := sha256.Sum256([]byte(c.CodecParams()))
	return hex.EncodeToString(h[:])
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}

/*
Возможные расширения:
- Добавить ограничение максимальной ширины/высоты до поиска
- Добавить прогрессивный JPEG как опцию
*/
