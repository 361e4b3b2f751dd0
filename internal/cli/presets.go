package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/artemshloyda/imgshrink/internal/config"
)

// newPresetsCmd создаёт команду для управления пресетами.
func newPresetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "presets",
		Short: "Управление именованными пресетами конфигурации",
		Long: `Управление именованными пресетами конфигурации.

Пресеты хранятся в ~/.config/imgshrink/presets/ и позволяют
сохранять и загружать настройки сжатия для разных проектов.
Встроенные пресеты размера (--preset): email, web, thumbnail, print.

Примеры:
  # Сохранить текущие настройки как пресет
  imgshrink --preset web --parallel --save-preset blog

  # Загрузить пресет и запустить сжатие
  imgshrink --in ./photos --out ./blog --load-preset blog

  # Список пресетов
  imgshrink presets list

  # Удалить пресет
  imgshrink presets delete blog`,
	}

	cmd.AddCommand(newPresetsListCmd())
	cmd.AddCommand(newPresetsDeleteCmd())
	cmd.AddCommand(newPresetsShowCmd())

	return cmd
}

// newPresetsListCmd создаёт команду для списка пресетов.
func newPresetsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Показать встроенные и сохранённые пресеты",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)

			fmt.Println("📐 Встроенные пресеты размера:")
			fmt.Println()
			fmt.Fprintln(w, "ИМЯ\tЦЕЛЬ\tКАЧЕСТВО\tОПИСАНИЕ")
			for _, name := range config.ValidPresets() {
				p := config.Presets[config.Preset(name)]
				fmt.Fprintf(w, "%s\t%.0f KB\t%d..%d\t%s\n", name, p.TargetSizeKB, p.InitialQuality, p.MinQuality, p.Description)
			}
			_ = w.Flush()
			fmt.Println()

			store, err := config.DefaultPresetStore()
			if err != nil {
				return err
			}
			presets, err := store.List()
			if err != nil {
				return fmt.Errorf("ошибка получения списка пресетов: %w", err)
			}

			if len(presets) == 0 {
				fmt.Println("Сохранённых пресетов нет.")
				fmt.Println()
				fmt.Println("Сохраните пресет командой:")
				fmt.Println("  imgshrink --target 300 --parallel --save-preset my-project")
				return nil
			}

			fmt.Printf("📦 Сохранённые пресеты (%d):\n\n", len(presets))

			w = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ИМЯ\tЦЕЛЬ\tКАЧЕСТВО\tПУТЬ")
			fmt.Fprintln(w, "---\t----\t--------\t----")

			for _, p := range presets {
				target := "-"
				quality := "-"
				if p.Config != nil && p.Config.Compression != nil {
					c := p.Config.Compression
					if c.TargetKB > 0 {
						target = fmt.Sprintf("%.0f KB", c.TargetKB)
					}
					if c.Quality > 0 {
						quality = fmt.Sprintf("%d..%d", c.Quality, c.MinQuality)
					}
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.Name, target, quality, p.Path)
			}
			return w.Flush()
		},
	}
}

// newPresetsDeleteCmd создаёт команду для удаления пресета.
func newPresetsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [name]",
		Short: "Удалить пресет",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			store, err := config.DefaultPresetStore()
			if err != nil {
				return err
			}
			if err := store.Delete(name); err != nil {
				return fmt.Errorf("ошибка удаления пресета: %w", err)
			}

			fmt.Printf("✅ Пресет '%s' удалён\n", name)
			return nil
		},
	}
}

// newPresetsShowCmd создаёт команду для отображения пресета.
func newPresetsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [name]",
		Short: "Показать содержимое пресета",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			store, err := config.DefaultPresetStore()
			if err != nil {
				return err
			}
			fc, path, err := store.Load(name)
			if err != nil {
				return err
			}

			fmt.Printf("📦 Пресет: %s\n", name)
			fmt.Printf("📁 Путь: %s\n\n", path)

			if fc.Input != nil && len(fc.Input.Extensions) > 0 {
				fmt.Println("Input:")
				fmt.Printf("  extensions: %v\n", fc.Input.Extensions)
			}

			if c := fc.Compression; c != nil {
				fmt.Println("Compression:")
				fmt.Printf("  target_kb: %.0f\n", c.TargetKB)
				if c.ToleranceKB > 0 {
					fmt.Printf("  tolerance_kb: %.0f\n", c.ToleranceKB)
				}
				fmt.Printf("  quality: %d\n", c.Quality)
				fmt.Printf("  min_quality: %d\n", c.MinQuality)
				fmt.Printf("  max_iterations: %d\n", c.MaxIterations)
			}

			if p := fc.Processing; p != nil {
				fmt.Println("Processing:")
				if p.Parallel != nil {
					fmt.Printf("  parallel: %v\n", *p.Parallel)
				}
				if p.Workers > 0 {
					fmt.Printf("  workers: %d\n", p.Workers)
				}
				if p.MaxMemoryMB > 0 {
					fmt.Printf("  max_memory_mb: %d\n", p.MaxMemoryMB)
				}
			}

			if p := fc.Paths; p != nil && p.Cache != nil {
				fmt.Println("Paths:")
				fmt.Printf("  cache: %v\n", *p.Cache)
				if p.CacheDir != "" {
					fmt.Printf("  cache_dir: %s\n", p.CacheDir)
				}
			}

			return nil
		},
	}
}
