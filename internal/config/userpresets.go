package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// UserPreset - именованный пресет, сохранённый пользователем.
type UserPreset struct {
	// Name - имя пресета.
	Name string
	// Path - путь к файлу пресета.
	Path string
	// Config - содержимое пресета (nil, если файл не читается).
	Config *FileConfig
}

// PresetStore хранит пользовательские пресеты в виде YAML файлов.
type PresetStore struct {
	dir string
}

// NewPresetStore создаёт хранилище в указанной директории.
func NewPresetStore(dir string) *PresetStore {
	return &PresetStore{dir: dir}
}

// DefaultPresetStore возвращает хранилище в ~/.config/imgshrink/presets.
func DefaultPresetStore() (*PresetStore, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("не удалось получить домашнюю директорию: %w", err)
	}
	return NewPresetStore(filepath.Join(home, ".config", "imgshrink", "presets")), nil
}

// Dir возвращает директорию хранилища.
func (s *PresetStore) Dir() string {
	return s.dir
}

// Path возвращает путь к файлу пресета по имени.
func (s *PresetStore) Path(name string) (string, error) {
	safe := sanitizePresetName(name)
	if safe == "" {
		return "", fmt.Errorf("некорректное имя пресета: %q", name)
	}
	return filepath.Join(s.dir, safe+".yaml"), nil
}

// Save сохраняет параметры сжатия как пресет.
func (s *PresetStore) Save(name string, cfg *Config) (string, error) {
	path, err := s.Path(name)
	if err != nil {
		return "", err
	}
	if err := FromConfig(cfg).SaveToFile(path); err != nil {
		return "", fmt.Errorf("не удалось сохранить пресет: %w", err)
	}
	return path, nil
}

// Load загружает пресет по имени.
func (s *PresetStore) Load(name string) (*FileConfig, string, error) {
	path, err := s.Path(name)
	if err != nil {
		return nil, "", err
	}

	fc, err := LoadFromFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("не удалось загрузить пресет '%s': %w", name, err)
	}
	if fc == nil {
		return nil, "", fmt.Errorf("пресет '%s' не найден", name)
	}
	return fc, path, nil
}

// List возвращает пресеты, отсортированные по имени.
func (s *PresetStore) List() ([]UserPreset, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("не удалось прочитать директорию пресетов: %w", err)
	}

	var presets []UserPreset
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || (!strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml")) {
			continue
		}

		path := filepath.Join(s.dir, name)
		fc, _ := LoadFromFile(path)
		presets = append(presets, UserPreset{
			Name:   strings.TrimSuffix(strings.TrimSuffix(name, ".yaml"), ".yml"),
			Path:   path,
			Config: fc,
		})
	}

	sort.Slice(presets, func(i, j int) bool {
		return presets[i].Name < presets[j].Name
	})
	return presets, nil
}

// Delete удаляет пресет.
func (s *PresetStore) Delete(name string) error {
	path, err := s.Path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("пресет '%s' не найден", name)
		}
		return fmt.Errorf("не удалось удалить пресет: %w", err)
	}
	return nil
}

// sanitizePresetName оставляет только буквы, цифры, дефисы и подчёркивания.
func sanitizePresetName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
