package cli

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/artemshloyda/imgshrink/internal/cache"
	"github.com/artemshloyda/imgshrink/internal/config"
	"github.com/artemshloyda/imgshrink/internal/storage"
	"github.com/artemshloyda/imgshrink/internal/worker"
)

// newHistoryCmd создаёт команду history.
func newHistoryCmd() *cobra.Command {
	var (
		dbPath string
		limit  int
		failed string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Показать историю запусков из журнала",
		Long: `Показать историю запусков из SQLite журнала.

Примеры:
  # Последние запуски
  imgshrink history --db ./imgshrink.db

  # Файлы с ошибками в конкретном запуске
  imgshrink history --db ./imgshrink.db --failed 01HZX3J8Q6N6B7M5V1T2K4R9PD`,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := storage.New(dbPath)
			if err != nil {
				return fmt.Errorf("не удалось открыть БД: %w", err)
			}
			defer func() { _ = store.Close() }()

			if failed != "" {
				return printFailedFiles(store, failed)
			}
			return printRuns(store, limit)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "Путь к SQLite журналу")
	cmd.Flags().IntVar(&limit, "limit", 20, "Сколько последних запусков показать")
	cmd.Flags().StringVar(&failed, "failed", "", "Показать файлы с ошибками для запуска")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func printRuns(store *storage.Storage, limit int) error {
	runs, err := store.ListRuns(limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("Журнал пуст.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tНАЧАЛО\tСТАТУС\tФАЙЛЫ\tOK\tBEST EFFORT\tОШИБКИ\tЭКОНОМИЯ")
	fmt.Fprintln(w, "--\t------\t------\t-----\t--\t-----------\t------\t--------")
	for _, r := range runs {
		counts, err := store.RunCounts(r.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\t%d\t%d\t%d\t%s\n",
			r.ID, r.StartedAt.Format(time.DateTime), r.Status, r.Completed, r.Total,
			counts.OK, counts.BestEffort, counts.Failed,
			worker.FormatBytes(counts.SrcBytes-counts.DstBytes))
	}
	return w.Flush()
}

func printFailedFiles(store *storage.Storage, runID string) error {
	run, err := store.GetRun(runID)
	if err != nil {
		return err
	}
	files, err := store.FailedFiles(runID)
	if err != nil {
		return err
	}

	fmt.Printf("📋 Запуск %s (%s): %s → %s\n", run.ID, run.Status, run.InputDir, run.OutputDir)
	if len(files) == 0 {
		fmt.Println("✅ Ошибок нет")
		return nil
	}
	for _, f := range files {
		fmt.Printf("❌ %s\n   %s\n", f.SrcPath, f.Error)
	}
	return nil
}

// newConfigCmd создаёт команду config.
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Работа с файлом конфигурации",
	}

	var (
		path  string
		force bool
	)
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Создать пример файла конфигурации",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("файл %s уже существует (используйте --force)", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateExampleConfig()), 0644); err != nil {
				return fmt.Errorf("не удалось записать %s: %w", path, err)
			}
			fmt.Printf("✅ Создан %s\n", path)
			return nil
		},
	}
	initCmd.Flags().StringVar(&path, "path", "imgshrink.yaml", "Куда записать файл")
	initCmd.Flags().BoolVar(&force, "force", false, "Перезаписать существующий файл")

	cmd.AddCommand(initCmd)
	return cmd
}

// newCacheCmd создаёт команду cache.
func newCacheCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Управление кэшем сжатых файлов",
	}
	cmd.PersistentFlags().StringVar(&dir, "cache-dir", "", "Директория кэша (по умолчанию кэш пользователя)")

	cmd.AddCommand(&cobra.Command{
		Use:   "size",
		Short: "Показать размер кэша",
		RunE: func(cmd *cobra.Command, args []string) error {
			ch, err := cache.New(dir)
			if err != nil {
				return err
			}
			size, count, err := ch.Size()
			if err != nil {
				return err
			}
			fmt.Printf("📦 Кэш %s: %d файлов, %s\n", ch.Dir(), count, worker.FormatBytes(size))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Очистить кэш",
		RunE: func(cmd *cobra.Command, args []string) error {
			ch, err := cache.New(dir)
			if err != nil {
				return err
			}
			if err := ch.Clear(); err != nil {
				return fmt.Errorf("не удалось очистить кэш: %w", err)
			}
			fmt.Printf("🧹 Кэш очищен: %s\n", ch.Dir())
			return nil
		},
	})

	return cmd
}
