package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/artemshloyda/imgshrink/internal/batch"
	"github.com/artemshloyda/imgshrink/internal/cache"
	"github.com/artemshloyda/imgshrink/internal/codec"
	"github.com/artemshloyda/imgshrink/internal/config"
	"github.com/artemshloyda/imgshrink/internal/logx"
	"github.com/artemshloyda/imgshrink/internal/progress"
	"github.com/artemshloyda/imgshrink/internal/storage"
	"github.com/artemshloyda/imgshrink/internal/tui"
	"github.com/artemshloyda/imgshrink/internal/worker"
)

// runCompress выполняет основную логику сжатия.
func runCompress(cmd *cobra.Command, o *options) error {
	startTime := time.Now()

	cfg, err := resolveConfig(cmd, o)
	if err != nil {
		return fmt.Errorf("ошибка конфигурации: %w", err)
	}

	if o.savePreset != "" {
		store, err := config.DefaultPresetStore()
		if err != nil {
			return err
		}
		path, err := store.Save(o.savePreset, cfg)
		if err != nil {
			return fmt.Errorf("не удалось сохранить пресет: %w", err)
		}
		fmt.Printf("💾 Пресет сохранён: %s\n", path)

		// Только сохранение, без запуска
		if cfg.InputDir == "" && cfg.OutputDir == "" {
			return nil
		}
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("ошибка конфигурации: %w", err)
	}

	// Прогресс-бар создаётся до логгера: консольные логи идут через него
	bar := progress.New(progress.Options{
		Disabled: cfg.NoProgress || cfg.TUI,
		Writer:   os.Stderr,
	})
	logCfg := logx.FromEnv(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
	if cmd.Flags().Changed("log-level") || cfg.Verbose {
		logCfg.Level = cfg.LogLevel
	}
	switch {
	case cfg.TUI:
		logCfg.Out = io.Discard
	case !cfg.NoProgress:
		logCfg.Out = bar
	}
	log := logx.Setup(logCfg)

	opts := []batch.Option{
		batch.WithLogger(log),
		batch.WithWorkers(cfg.Workers),
		batch.WithMaxMemoryMB(cfg.MaxMemoryMB),
		batch.WithExtensions(cfg.InputExtensions),
	}

	if cfg.DBPath != "" {
		store, err := storage.New(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("не удалось инициализировать БД: %w", err)
		}
		defer func() { _ = store.Close() }()

		// Очищаем прерванные запуски
		cleaned, err := store.CleanupInterrupted()
		if err != nil {
			log.Warn().Err(err).Msg("не удалось очистить прерванные запуски")
		} else if cleaned > 0 {
			fmt.Printf("🧹 Отмечено %d прерванных запусков\n", cleaned)
		}
		opts = append(opts, batch.WithLedger(store))
	}

	if cfg.CacheEnabled {
		ch, err := cache.New(cfg.CacheDir)
		if err != nil {
			return err
		}
		opts = append(opts, batch.WithCache(ch, cfg.CodecParamsHash()))
	}

	cd := codec.New(codec.Params{
		ToleranceKB:        cfg.ToleranceKB,
		InitialQuality:     cfg.InitialQuality,
		MinQuality:         cfg.MinQuality,
		MaxScaleIterations: cfg.MaxScaleIterations,
	})
	coordinator := batch.New(cd, opts...)

	req := batch.Request{
		InputDir:     cfg.InputDir,
		OutputDir:    cfg.OutputDir,
		TargetSizeKB: cfg.TargetSizeKB,
		Parallel:     cfg.Parallel,
	}

	if !cfg.TUI {
		printParams(cfg)
	}

	// Создаём контекст с обработкой сигналов
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var (
		h       *batch.Handle
		tuiSink *tui.Sink
	)
	if cfg.TUI {
		tuiSink = tui.NewSink()
		h, err = coordinator.Start(ctx, req, tuiSink)
	} else {
		h, err = coordinator.Start(ctx, req, bar)
	}
	if err != nil {
		return err
	}

	go func() {
		select {
		case <-sigChan:
			if !cfg.TUI {
				fmt.Fprintln(os.Stderr, "\n⚠️  Получен сигнал завершения, останавливаем...")
			}
			h.Cancel()
			cancel()
		case <-ctx.Done():
		}
	}()

	var final tui.Model
	if cfg.TUI {
		program := tea.NewProgram(tui.NewModel(tuiSink, h.Cancel))
		m, err := program.Run()
		if err != nil {
			log.Error().Err(err).Msg("TUI завершился с ошибкой")
		}
		final, _ = m.(tui.Model)
		tuiSink.Close()
		// Экран закрылся до итога пакета: останавливаем его
		if final.Outcome() == "" {
			h.Cancel()
		}
	}

	status, runErr := h.Wait()
	stats := h.Stats()

	if cfg.TUI {
		printTUISummary(os.Stdout, status, stats, time.Since(startTime), final.Err())
	} else {
		printSummary(os.Stdout, status, stats, bar)
	}

	if runErr != nil {
		return fmt.Errorf("ошибка поиска файлов: %w", runErr)
	}

	if cfg.Watch && status == batch.StatusCompleted {
		return watchInput(ctx, coordinator, req, h.OutputPaths(), cfg, log)
	}
	return nil
}

// printParams выводит параметры запуска.
func printParams(cfg *config.Config) {
	fmt.Printf("🚀 Запуск сжатия:\n")
	fmt.Printf("   Вход: %s\n", cfg.InputDir)
	fmt.Printf("   Выход: %s\n", cfg.OutputDir)
	fmt.Printf("   Цель: %.0f KB (допуск %.0f KB)\n", cfg.TargetSizeKB, cfg.ToleranceKB)
	if cfg.Preset != "" {
		fmt.Printf("   Пресет: %s\n", cfg.Preset)
	}
	if cfg.Parallel {
		workers := cfg.Workers
		if workers <= 0 {
			workers = worker.DefaultWorkers()
		}
		fmt.Printf("   Режим: параллельный (%d воркеров)\n", workers)
	} else {
		fmt.Printf("   Режим: последовательный\n")
	}
	if cfg.CacheEnabled {
		fmt.Println("   Кэш: включён")
	}
	fmt.Println()
}

// printSummary выводит итоги запуска. Строку об отмене печатает только
// отключённый бар, включённый уже написал её сам.
func printSummary(w io.Writer, status batch.Status, stats worker.Stats, bar *progress.Bar) {
	fmt.Fprintln(w)
	switch status {
	case batch.StatusCancelled:
		if bar.IsDisabled() || bar.Outcome() != "cancelled" {
			fmt.Fprintf(w, "⛔ Запуск отменён\n")
		}
	case batch.StatusFailed:
		fmt.Fprintf(w, "❌ Запуск не выполнен\n")
		return
	}

	fmt.Fprintf(w, "📊 Результаты:\n")
	fmt.Fprintf(w, "   Обработано: %d из %d\n", stats.Processed, stats.Total)
	fmt.Fprintf(w, "   В цель: %d\n", stats.TargetMet)
	if stats.BestEffort > 0 {
		fmt.Fprintf(w, "   ⚠️  Цель недостижима (записан лучший вариант): %d\n", stats.BestEffort)
	}
	fmt.Fprintf(w, "   Ошибок: %d\n", stats.Failed)
	if stats.Cached > 0 {
		fmt.Fprintf(w, "   Из кэша: %d\n", stats.Cached)
	}
	if stats.InputBytes > 0 {
		fmt.Fprintf(w, "   Размер: %s → %s (-%.1f%%)\n",
			worker.FormatBytes(stats.InputBytes), worker.FormatBytes(stats.OutputBytes), stats.SavedPercent())
	}
	fmt.Fprintf(w, "   Время: %s\n", bar.Duration().Round(time.Millisecond))
}

// printTUISummary выводит итоги таблицей после интерактивного экрана.
// failure - ошибка пакета, которую показал экран.
func printTUISummary(w io.Writer, status batch.Status, stats worker.Stats, duration time.Duration, failure error) {
	title := tui.SuccessStyle.Render("✔ Готово")
	switch status {
	case batch.StatusCancelled:
		title = tui.ErrorStyle.Render("⛔ Отменено")
	case batch.StatusFailed:
		title = tui.ErrorStyle.Render("❌ Запуск не выполнен")
	}
	fmt.Fprintln(w, title)
	if status == batch.StatusFailed && failure != nil {
		fmt.Fprintln(w, tui.ErrorStyle.Render(failure.Error()))
		return
	}

	rows := []tui.SummaryRow{
		{Label: "Обработано", Value: fmt.Sprintf("%d из %d", stats.Processed, stats.Total)},
		{Label: "В цель", Value: fmt.Sprintf("%d", stats.TargetMet)},
		{Label: "Best effort", Value: fmt.Sprintf("%d", stats.BestEffort)},
		{Label: "Ошибок", Value: fmt.Sprintf("%d", stats.Failed)},
		{Label: "Из кэша", Value: fmt.Sprintf("%d", stats.Cached)},
		{Label: "Сэкономлено", Value: fmt.Sprintf("%s (%.1f%%)", worker.FormatBytes(stats.SavedBytes()), stats.SavedPercent())},
		{Label: "Время", Value: duration.Round(time.Millisecond).String()},
	}
	fmt.Fprintln(w, tui.RenderSummary(rows))
}

// watchInput следит за входной директорией и сжимает новые файлы по одному.
// paths - распределение выходных путей пакета, чтобы не перезаписать чужой результат.
func watchInput(ctx context.Context, coordinator *batch.Coordinator, req batch.Request, paths *batch.OutputPaths, cfg *config.Config, log zerolog.Logger) error {
	files, err := newInputWatcher(ctx, req, cfg, log)
	if err != nil {
		return err
	}

	fmt.Printf("\n👀 Слежение за %s (Ctrl+C для выхода)\n", req.InputDir)
	for f := range files {
		res := coordinator.CompressFile(ctx, req, paths, f)
		switch res.Status {
		case codec.StatusTargetMet:
			fmt.Printf("✅ %s → %s (%s)\n", f.RelPath, res.Task.OutputPath, worker.FormatBytes(res.OutputSize))
		case codec.StatusBestEffort:
			fmt.Printf("⚠️  %s → %s (%s, цель недостижима)\n", f.RelPath, res.Task.OutputPath, worker.FormatBytes(res.OutputSize))
		case codec.StatusFailed:
			fmt.Printf("❌ %s: %v\n", f.RelPath, res.Err)
		}
	}

	if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	fmt.Println("👋 Слежение остановлено")
	return nil
}
