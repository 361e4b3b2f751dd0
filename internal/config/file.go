package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileConfig представляет структуру конфигурационного файла YAML.
// Все поля опциональны - если не указаны, используются значения по умолчанию.
type FileConfig struct {
	// Input - настройки входных данных.
	Input *InputConfig `yaml:"input,omitempty"`

	// Output - настройки выходных данных.
	Output *OutputConfig `yaml:"output,omitempty"`

	// Compression - параметры подбора размера.
	Compression *CompressionConfig `yaml:"compression,omitempty"`

	// Processing - настройки обработки.
	Processing *ProcessingConfig `yaml:"processing,omitempty"`

	// Paths - настройки путей.
	Paths *PathsConfig `yaml:"paths,omitempty"`

	// Logging - настройки логирования.
	Logging *LoggingConfig `yaml:"logging,omitempty"`
}

// InputConfig содержит настройки входных данных.
type InputConfig struct {
	// Dir - директория с исходными изображениями.
	Dir string `yaml:"dir,omitempty"`

	// Extensions - список расширений входных файлов.
	Extensions []string `yaml:"extensions,omitempty"`
}

// OutputConfig содержит настройки выходных данных.
type OutputConfig struct {
	// Dir - директория для сохранения результатов.
	Dir string `yaml:"dir,omitempty"`
}

// CompressionConfig содержит параметры подбора размера.
type CompressionConfig struct {
	TargetKB      float64 `yaml:"target_kb,omitempty"`
	ToleranceKB   float64 `yaml:"tolerance_kb,omitempty"`
	Quality       int     `yaml:"quality,omitempty"`
	MinQuality    int     `yaml:"min_quality,omitempty"`
	MaxIterations int     `yaml:"max_iterations,omitempty"`
}

// ProcessingConfig содержит настройки обработки.
type ProcessingConfig struct {
	// Parallel - параллельная обработка.
	Parallel *bool `yaml:"parallel,omitempty"`

	// Workers - количество параллельных воркеров.
	Workers int `yaml:"workers,omitempty"`

	// MaxMemoryMB - ограничение памяти.
	MaxMemoryMB int `yaml:"max_memory_mb,omitempty"`

	// Watch - режим слежения.
	Watch bool `yaml:"watch,omitempty"`

	// Verbose - подробный вывод.
	Verbose bool `yaml:"verbose,omitempty"`

	// NoProgress - отключить прогресс-бар.
	NoProgress bool `yaml:"no_progress,omitempty"`
}

// PathsConfig содержит настройки путей.
type PathsConfig struct {
	// DB - путь к SQLite журналу запусков.
	DB string `yaml:"db,omitempty"`

	// Cache - включить кэш.
	Cache *bool `yaml:"cache,omitempty"`

	// CacheDir - директория кэша.
	CacheDir string `yaml:"cache_dir,omitempty"`
}

// LoggingConfig содержит настройки логирования.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
	File   string `yaml:"file,omitempty"`
}

// DefaultConfigPaths возвращает список путей для поиска конфигурационного файла.
// Поиск выполняется в следующем порядке:
// 1. ./imgshrink.yaml (текущая директория)
// 2. ./imgshrink.yml
// 3. ~/.config/imgshrink/config.yaml
// 4. ~/.config/imgshrink/config.yml
func DefaultConfigPaths() []string {
	paths := []string{
		"imgshrink.yaml",
		"imgshrink.yml",
	}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".config", "imgshrink", "config.yaml"),
			filepath.Join(home, ".config", "imgshrink", "config.yml"),
		)
	}

	return paths
}

// LoadFromFile загружает конфигурацию из указанного файла.
// Возвращает nil, nil если файл не существует.
func LoadFromFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("не удалось прочитать файл конфигурации %s: %w", path, err)
	}

	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("ошибка парсинга YAML в %s: %w", path, err)
	}

	return &fc, nil
}

// FindAndLoadConfig ищет и загружает конфигурационный файл из стандартных путей.
// Если configPath указан явно, использует только его.
// Возвращает nil, nil если файл не найден.
func FindAndLoadConfig(configPath string) (*FileConfig, string, error) {
	if configPath != "" {
		fc, err := LoadFromFile(configPath)
		if err != nil {
			return nil, "", err
		}
		if fc == nil {
			return nil, "", fmt.Errorf("файл конфигурации не найден: %s", configPath)
		}
		return fc, configPath, nil
	}

	for _, path := range DefaultConfigPaths() {
		fc, err := LoadFromFile(path)
		if err != nil {
			return nil, "", err
		}
		if fc != nil {
			return fc, path, nil
		}
	}

	return nil, "", nil
}

// SaveToFile сохраняет конфигурацию в YAML файл.
func (fc *FileConfig) SaveToFile(path string) error {
	data, err := yaml.Marshal(fc)
	if err != nil {
		return fmt.Errorf("не удалось сериализовать конфигурацию: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// FromConfig строит FileConfig из конфигурации (для сохранения пресетов).
// Входная и выходная директории в пресет не попадают.
func FromConfig(cfg *Config) *FileConfig {
	parallel := cfg.Parallel
	cache := cfg.CacheEnabled

	return &FileConfig{
		Input: &InputConfig{
			Extensions: cfg.InputExtensions,
		},
		Compression: &CompressionConfig{
			TargetKB:      cfg.TargetSizeKB,
			ToleranceKB:   cfg.ToleranceKB,
			Quality:       cfg.InitialQuality,
			MinQuality:    cfg.MinQuality,
			MaxIterations: cfg.MaxScaleIterations,
		},
		Processing: &ProcessingConfig{
			Parallel:    &parallel,
			Workers:     cfg.Workers,
			MaxMemoryMB: cfg.MaxMemoryMB,
		},
		Paths: &PathsConfig{
			Cache:    &cache,
			CacheDir: cfg.CacheDir,
		},
	}
}

// ApplyToConfig применяет настройки из файла к основной конфигурации.
// Нулевые значения в файле не перетирают текущие.
func (fc *FileConfig) ApplyToConfig(cfg *Config) {
	if fc == nil {
		return
	}

	if fc.Input != nil {
		if fc.Input.Dir != "" {
			cfg.InputDir = fc.Input.Dir
		}
		if len(fc.Input.Extensions) > 0 {
			cfg.InputExtensions = fc.Input.Extensions
		}
	}

	if fc.Output != nil && fc.Output.Dir != "" {
		cfg.OutputDir = fc.Output.Dir
	}

	if c := fc.Compression; c != nil {
		if c.TargetKB > 0 {
			cfg.TargetSizeKB = c.TargetKB
		}
		if c.ToleranceKB > 0 {
			cfg.ToleranceKB = c.ToleranceKB
		}
		if c.Quality > 0 {
			cfg.InitialQuality = c.Quality
		}
		if c.MinQuality > 0 {
			cfg.MinQuality = c.MinQuality
		}
		if c.MaxIterations > 0 {
			cfg.MaxScaleIterations = c.MaxIterations
		}
	}

	if p := fc.Processing; p != nil {
		if p.Parallel != nil {
			cfg.Parallel = *p.Parallel
		}
		if p.Workers > 0 {
			cfg.Workers = p.Workers
		}
		if p.MaxMemoryMB > 0 {
			cfg.MaxMemoryMB = p.MaxMemoryMB
		}
		if p.Watch {
			cfg.Watch = true
		}
		if p.Verbose {
			cfg.Verbose = true
		}
		if p.NoProgress {
			cfg.NoProgress = true
		}
	}

	if p := fc.Paths; p != nil {
		if p.DB != "" {
			cfg.DBPath = p.DB
		}
		if p.Cache != nil {
			cfg.CacheEnabled = *p.Cache
		}
		if p.CacheDir != "" {
			cfg.CacheDir = p.CacheDir
		}
	}

	if l := fc.Logging; l != nil {
		if l.Level != "" {
			cfg.LogLevel = l.Level
		}
		if l.Format != "" {
			cfg.LogFormat = l.Format
		}
		if l.File != "" {
			cfg.LogFile = l.File
		}
	}
}

// GenerateExampleConfig генерирует пример конфигурационного файла.
func GenerateExampleConfig() string {
	return `# imgshrink configuration file
# Все параметры опциональны - если не указаны, используются значения по умолчанию.
# CLI флаги имеют приоритет над этим файлом.

input:
  # Директория с исходными изображениями
  dir: "./photos"
  # Расширения входных файлов (без точки)
  extensions: [jpg, jpeg, png, gif, bmp, tiff, tif, webp]

output:
  # Директория для результатов (всегда JPEG)
  dir: "./compressed"

compression:
  # Целевой размер файла в KB
  target_kb: 500
  # Допустимое превышение цели в KB
  tolerance_kb: 0
  # Качество на этапе уменьшения размеров
  quality: 95
  # Нижняя граница качества
  min_quality: 10
  # Максимум итераций уменьшения размеров
  max_iterations: 20

processing:
  # Параллельная обработка
  parallel: true
  # Количество воркеров (0 = половина CPU)
  workers: 0
  # Ограничение памяти в MB (0 = без ограничения)
  max_memory_mb: 0
  # После пакета следить за входной директорией
  watch: false
  verbose: false
  no_progress: false

paths:
  # SQLite журнал запусков (пусто = выключен)
  db: ""
  # Переиспользовать ранее сжатые файлы
  cache: false
  cache_dir: ""

logging:
  # debug, info, warn, error
  level: warn
  # console или json
  format: console
  # Файл логов с ротацией (пусто = без файла)
  file: ""
`
}
