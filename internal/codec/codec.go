// Package codec подбирает размеры и качество JPEG так, чтобы файл уложился в целевой размер.
package codec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"
)

var (
	// ErrInvalidTarget - целевой размер не положительный.
	ErrInvalidTarget = errors.New("целевой размер должен быть больше нуля")

	// ErrDecode - не удалось декодировать исходное изображение.
	ErrDecode = errors.New("не удалось декодировать изображение")

	// ErrEncode - не удалось закодировать JPEG.
	ErrEncode = errors.New("не удалось закодировать JPEG")
)

// OutputExt - расширение выходных файлов.
const OutputExt = ".jpg"

// Task - задача на сжатие одного файла.
type Task struct {
	// InputPath - путь к исходному изображению.
	InputPath string

	// OutputPath - путь к выходному файлу.
	OutputPath string

	// TargetSizeKB - целевой размер в килобайтах.
	TargetSizeKB float64
}

// Params содержит параметры поиска.
type Params struct {
	// ToleranceKB - допустимое превышение целевого размера.
	ToleranceKB float64

	// InitialQuality - качество JPEG в фазе уменьшения размеров.
	InitialQuality int

	// MinQuality - нижняя граница качества в фазе снижения качества.
	MinQuality int

	// MaxScaleIterations - максимум проходов фазы уменьшения размеров.
	MaxScaleIterations int

	// Filter - фильтр ресемплинга.
	Filter imaging.ResampleFilter
}

// DefaultParams возвращает параметры по умолчанию.
func DefaultParams() Params {
	return Params{
		ToleranceKB:        0,
		InitialQuality:     95,
		MinQuality:         10,
		MaxScaleIterations: 20,
		Filter:             imaging.Lanczos,
	}
}

// Codec сжимает изображения до целевого размера.
// Не хранит состояния между вызовами и безопасен для параллельного использования.
type Codec struct {
	params Params
}

// New создаёт Codec. Некорректные параметры заменяются значениями по умолчанию.
func New(p Params) *Codec {
	def := DefaultParams()
	if p.InitialQuality < 1 || p.InitialQuality > 100 {
		p.InitialQuality = def.InitialQuality
	}
	if p.MinQuality < 1 || p.MinQuality > p.InitialQuality {
		p.MinQuality = min(def.MinQuality, p.InitialQuality)
	}
	if p.MaxScaleIterations < 1 {
		p.MaxScaleIterations = def.MaxScaleIterations
	}
	if p.ToleranceKB < 0 {
		p.ToleranceKB = 0
	}
	if p.Filter.Kernel == nil && p.Filter.Support == 0 {
		p.Filter = def.Filter
	}
	return &Codec{params: p}
}

// LimitBytes возвращает максимально допустимый размер выхода в байтах.
func (c *Codec) LimitBytes(targetKB float64) int64 {
	return int64(math.Floor((targetKB + c.params.ToleranceKB) * 1024))
}

// Compress выполняет двухфазный поиск и записывает результат в task.OutputPath.
// Отмена проверяется перед каждым проходом кодирования.
func (c *Codec) Compress(ctx context.Context, task Task) Result {
	start := time.Now()
	res := Result{Task: task}

	done := func(status Status, err error) Result {
		res.Status = status
		res.Err = err
		res.Duration = time.Since(start)
		return res
	}

	if err := ctx.Err(); err != nil {
		return done(StatusCancelled, err)
	}
	if task.TargetSizeKB <= 0 {
		return done(StatusFailed, fmt.Errorf("%w: %v", ErrInvalidTarget, task.TargetSizeKB))
	}

	info, err := os.Stat(task.InputPath)
	if err != nil {
		return done(StatusFailed, fmt.Errorf("не удалось прочитать %s: %w", task.InputPath, err))
	}
	res.InputSize = info.Size()

	if err := os.MkdirAll(filepath.Dir(task.OutputPath), 0755); err != nil {
		return done(StatusFailed, fmt.Errorf("не удалось создать директорию: %w", err))
	}

	src, err := imaging.Open(task.InputPath, imaging.AutoOrientation(true))
	if err != nil {
		return done(StatusFailed, fmt.Errorf("%w %s: %v", ErrDecode, task.InputPath, err))
	}
	flat := flatten(src)

	targetBytes := task.TargetSizeKB * 1024
	limit := c.LimitBytes(task.TargetSizeKB)
	width, height := flat.Bounds().Dx(), flat.Bounds().Dy()

	var (
		resized image.Image
		encoded []byte
		met     bool
	)
	scale := 1.0
	quality := c.params.InitialQuality

	// Фаза A: уменьшаем размеры при фиксированном качестве.
	for i := 0; i < c.params.MaxScaleIterations; i++ {
		if err := ctx.Err(); err != nil {
			return done(StatusCancelled, err)
		}

		resized = c.resize(flat, width, height, scale)
		res.Scale = scale
		encoded, err = encode(resized, quality)
		res.Passes++
		if err != nil {
			return done(StatusFailed, err)
		}

		if int64(len(encoded)) <= limit {
			met = true
			break
		}
		scale *= ShrinkFactor(float64(len(encoded)) / targetBytes)
	}

	// Фаза B: снижаем качество на последнем уменьшенном кадре.
	for !met && quality > c.params.MinQuality {
		if err := ctx.Err(); err != nil {
			return done(StatusCancelled, err)
		}

		quality--
		encoded, err = encode(resized, quality)
		res.Passes++
		if err != nil {
			return done(StatusFailed, err)
		}
		met = int64(len(encoded)) <= limit
	}

	if err := ctx.Err(); err != nil {
		return done(StatusCancelled, err)
	}
	if err := writeAtomic(task.OutputPath, encoded); err != nil {
		return done(StatusFailed, err)
	}

	res.OutputSize = int64(len(encoded))
	res.Width = resized.Bounds().Dx()
	res.Height = resized.Bounds().Dy()
	res.Quality = quality

	if met {
		return done(StatusTargetMet, nil)
	}
	return done(StatusBestEffort, nil)
}

// ShrinkFactor возвращает множитель масштаба для отношения текущего размера к целевому.
// Чем ближе размер к цели, тем мягче шаг.
func ShrinkFactor(ratio float64) float64 {
	switch {
	case ratio > 10:
		return 0.5
	case ratio > 5:
		return 0.6
	case ratio > 3:
		return 0.7
	case ratio > 2:
		return 0.8
	case ratio > 1.1:
		return 0.9
	default:
		return 0.95
	}
}

// ScaledSize возвращает размеры после масштабирования, не меньше 1x1.
func ScaledSize(width, height int, scale float64) (int, int) {
	w := int(math.Round(float64(width) * scale))
	h := int(math.Round(float64(height) * scale))
	return max(w, 1), max(h, 1)
}

func (c *Codec) resize(img *image.NRGBA, width, height int, scale float64) image.Image {
	w, h := ScaledSize(width, height, scale)
	if w == width && h == height {
		return img
	}
	return imaging.Resize(img, w, h, c.params.Filter)
}

// flatten приводит изображение к непрозрачному RGB: альфа-канал отбрасывается,
// цветовые каналы остаются как есть.
func flatten(src image.Image) *image.NRGBA {
	dst := imaging.Clone(src)
	for i := 3; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = 0xff
	}
	return dst
}

func encode(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("%w (quality %d): %v", ErrEncode, quality, err)
	}
	return buf.Bytes(), nil
}

// writeAtomic пишет данные во временный файл рядом с целевым и переименовывает его.
func writeAtomic(dstPath string, data []byte) error {
	dir := filepath.Dir(dstPath)
	tmp, err := os.CreateTemp(dir, ".imgshrink-*.tmp")
	if err != nil {
		return fmt.Errorf("не удалось создать временный файл: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("не удалось записать %s: %w", dstPath, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("не удалось записать %s: %w", dstPath, err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, dstPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("не удалось переименовать %s -> %s: %w", tmpPath, dstPath, err)
	}
	return nil
}

/*
Возможные расширения:
- Добавить бинарный поиск по качеству вместо линейного
- Добавить прогрессивный JPEG
- Переиспользовать буферы кодирования между проходами
*/
