package config

// Preset определяет профиль целевого размера.
type Preset string

const (
	// PresetEmail - вложения в письма: 500 KB.
	PresetEmail Preset = "email"
	// PresetWeb - картинки для сайтов: 200 KB.
	PresetWeb Preset = "web"
	// PresetThumbnail - превью: 50 KB, качество может опускаться ниже.
	PresetThumbnail Preset = "thumbnail"
	// PresetPrint - печать: 2000 KB, качество не ниже 60.
	PresetPrint Preset = "print"
)

// PresetConfig содержит настройки для пресета.
type PresetConfig struct {
	// TargetSizeKB - целевой размер.
	TargetSizeKB float64
	// InitialQuality - качество на этапе уменьшения размеров.
	InitialQuality int
	// MinQuality - нижняя граница качества.
	MinQuality int
	// Description - описание для presets list.
	Description string
}

// Presets содержит все доступные пресеты.
var Presets = map[Preset]PresetConfig{
	PresetEmail: {
		TargetSizeKB:   500,
		InitialQuality: 95,
		MinQuality:     10,
		Description:    "вложения в письма",
	},
	PresetWeb: {
		TargetSizeKB:   200,
		InitialQuality: 90,
		MinQuality:     30,
		Description:    "картинки для сайтов",
	},
	PresetThumbnail: {
		TargetSizeKB:   50,
		InitialQuality: 85,
		MinQuality:     5,
		Description:    "превью",
	},
	PresetPrint: {
		TargetSizeKB:   2000,
		InitialQuality: 98,
		MinQuality:     60,
		Description:    "печать, качество не ниже 60",
	},
}

// ApplyPreset применяет пресет к конфигурации.
// Возвращает true, если пресет был применён.
func (c *Config) ApplyPreset(preset string) bool {
	p, ok := Presets[Preset(preset)]
	if !ok {
		return false
	}

	c.TargetSizeKB = p.TargetSizeKB
	c.InitialQuality = p.InitialQuality
	c.MinQuality = p.MinQuality
	c.Preset = preset

	return true
}

// ValidPresets возвращает список доступных пресетов.
func ValidPresets() []string {
	return []string{
		string(PresetEmail),
		string(PresetWeb),
		string(PresetThumbnail),
		string(PresetPrint),
	}
}
