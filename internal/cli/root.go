// Package cli содержит CLI интерфейс приложения.
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/artemshloyda/imgshrink/internal/config"
)

var (
	// Version будет установлена при сборке.
	Version = "dev"

	// BuildTime будет установлена при сборке.
	BuildTime = "unknown"
)

// options содержит значения флагов корневой команды.
type options struct {
	// flags - значения флагов. В итоговую конфигурацию попадают только изменённые.
	flags *config.Config

	// configPath - явный путь к YAML файлу.
	configPath string

	// loadPreset - имя сохранённого пресета для загрузки.
	loadPreset string

	// savePreset - имя, под которым сохранить итоговые настройки.
	savePreset string
}

// NewRootCmd создаёт корневую команду CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&options{flags: config.DefaultConfig()})
}

func newRootCmd(o *options) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "imgshrink",
		Short: "Пакетное сжатие изображений до заданного размера файла",
		Long: `imgshrink - CLI утилита для пакетного сжатия изображений до целевого размера.

Для каждого изображения во входной директории подбирает размеры и качество JPEG так,
чтобы файл не превышал заданный размер. Структура директорий сохраняется.

Примеры:
  # Сжать все фотографии до 500 KB
  imgshrink --in ./photos --out ./compressed --target 500

  # Параллельно, с пресетом для веба
  imgshrink --in ./photos --out ./web --preset web --parallel

  # Интерактивный экран с возможностью отмены (q)
  imgshrink --in ./photos --out ./small --target 200 --tui

  # После пакета следить за новыми файлами
  imgshrink --in ./inbox --out ./outbox --target 300 --watch

  # Сохранить настройки как пресет и использовать позже
  imgshrink --target 150 --parallel --save-preset blog
  imgshrink --in ./photos --out ./blog --load-preset blog`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return runCompress(cmd, o)
		},
	}

	f := o.flags
	flags := rootCmd.Flags()

	// Входные и выходные параметры
	flags.StringVar(&f.InputDir, "in", "", "Директория с исходными изображениями")
	flags.StringVar(&f.OutputDir, "out", "", "Директория для сохранения результатов")
	flags.StringSliceVar(&f.InputExtensions, "in-ext", f.InputExtensions,
		"Расширения входных файлов через запятую")

	// Параметры сжатия
	flags.Float64Var(&f.TargetSizeKB, "target", f.TargetSizeKB, "Целевой размер файла в KB")
	flags.Float64Var(&f.ToleranceKB, "tolerance", f.ToleranceKB, "Допустимое превышение цели в KB")
	flags.IntVar(&f.InitialQuality, "quality", f.InitialQuality, "Качество JPEG на этапе уменьшения размеров (1-100)")
	flags.IntVar(&f.MinQuality, "min-quality", f.MinQuality, "Нижняя граница качества JPEG")
	flags.StringVar(&f.Preset, "preset", "",
		"Пресет размера: "+strings.Join(config.ValidPresets(), ", "))

	// Производительность
	flags.BoolVar(&f.Parallel, "parallel", f.Parallel, "Обрабатывать файлы параллельно")
	flags.IntVar(&f.Workers, "workers", f.Workers, "Количество воркеров (0 = половина CPU)")
	flags.IntVar(&f.MaxMemoryMB, "max-memory", f.MaxMemoryMB, "Ограничение памяти в MB (0 = без ограничения)")

	// Пути
	flags.StringVar(&f.DBPath, "db", f.DBPath, "Путь к SQLite журналу запусков (пусто = выключен)")
	flags.BoolVar(&f.CacheEnabled, "cache", f.CacheEnabled, "Переиспользовать ранее сжатые файлы")
	flags.StringVar(&f.CacheDir, "cache-dir", f.CacheDir, "Директория кэша")

	// Режимы и вывод
	flags.BoolVar(&f.Watch, "watch", f.Watch, "После пакета следить за входной директорией")
	flags.BoolVar(&f.TUI, "tui", f.TUI, "Интерактивный экран прогресса")
	flags.BoolVar(&f.NoProgress, "no-progress", f.NoProgress, "Отключить прогресс-бар")
	flags.BoolVarP(&f.Verbose, "verbose", "v", f.Verbose, "Подробный вывод")
	flags.StringVar(&f.LogLevel, "log-level", f.LogLevel, "Уровень логов: debug, info, warn, error")
	flags.StringVar(&f.LogFormat, "log-format", f.LogFormat, "Формат логов: console, json")
	flags.StringVar(&f.LogFile, "log-file", f.LogFile, "Файл логов с ротацией")

	// Конфигурация
	flags.StringVar(&o.configPath, "config", "", "Путь к YAML файлу конфигурации")
	flags.StringVar(&o.loadPreset, "load-preset", "", "Загрузить сохранённый пресет")
	flags.StringVar(&o.savePreset, "save-preset", "", "Сохранить настройки как пресет")

	// Подкоманды
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newPresetsCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newCacheCmd())

	return rootCmd
}

// resolveConfig собирает конфигурацию.
// Приоритет: значения по умолчанию < пресет размера < файл < сохранённый пресет < флаги.
func resolveConfig(cmd *cobra.Command, o *options) (*config.Config, error) {
	cfg := config.DefaultConfig()
	flags := cmd.Flags()
	src := o.flags

	if src.Preset != "" && !cfg.ApplyPreset(src.Preset) {
		return nil, fmt.Errorf("неизвестный пресет %q, доступны: %s",
			src.Preset, strings.Join(config.ValidPresets(), ", "))
	}

	fc, path, err := config.FindAndLoadConfig(o.configPath)
	if err != nil {
		return nil, err
	}
	if fc != nil {
		fc.ApplyToConfig(cfg)
		if src.Verbose {
			fmt.Printf("📄 Конфигурация: %s\n", path)
		}
	}

	if o.loadPreset != "" {
		store, err := config.DefaultPresetStore()
		if err != nil {
			return nil, err
		}
		pc, _, err := store.Load(o.loadPreset)
		if err != nil {
			return nil, err
		}
		pc.ApplyToConfig(cfg)
	}

	setters := map[string]func(){
		"in":          func() { cfg.InputDir = src.InputDir },
		"out":         func() { cfg.OutputDir = src.OutputDir },
		"in-ext":      func() { cfg.InputExtensions = src.InputExtensions },
		"target":      func() { cfg.TargetSizeKB = src.TargetSizeKB },
		"tolerance":   func() { cfg.ToleranceKB = src.ToleranceKB },
		"quality":     func() { cfg.InitialQuality = src.InitialQuality },
		"min-quality": func() { cfg.MinQuality = src.MinQuality },
		"parallel":    func() { cfg.Parallel = src.Parallel },
		"workers":     func() { cfg.Workers = src.Workers },
		"max-memory":  func() { cfg.MaxMemoryMB = src.MaxMemoryMB },
		"db":          func() { cfg.DBPath = src.DBPath },
		"cache":       func() { cfg.CacheEnabled = src.CacheEnabled },
		"cache-dir":   func() { cfg.CacheDir = src.CacheDir },
		"watch":       func() { cfg.Watch = src.Watch },
		"tui":         func() { cfg.TUI = src.TUI },
		"no-progress": func() { cfg.NoProgress = src.NoProgress },
		"verbose":     func() { cfg.Verbose = src.Verbose },
		"log-level":   func() { cfg.LogLevel = src.LogLevel },
		"log-format":  func() { cfg.LogFormat = src.LogFormat },
		"log-file":    func() { cfg.LogFile = src.LogFile },
	}
	for name, apply := range setters {
		if flags.Changed(name) {
			apply()
		}
	}

	// -v без явного уровня поднимает логи до info
	if cfg.Verbose && !flags.Changed("log-level") && cfg.LogLevel == "warn" {
		cfg.LogLevel = "info"
	}

	return cfg, nil
}

// newVersionCmd создаёт команду version.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Показать версию",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("imgshrink %s (built %s)\n", Version, BuildTime)
		},
	}
}

// Execute запускает CLI.
func Execute() {
	// .env опционален
	_ = godotenv.Load()

	if err := NewRootCmd().Execute(); err != nil {
		// Не выводим ошибку, cobra уже вывела
		os.Exit(1)
	}
}

/*
Возможные расширения:
- Добавить команду retry для повторной обработки failed из журнала
- Добавить команду export для экспорта истории в JSON
*/
