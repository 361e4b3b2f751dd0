package codec

import "time"

// Status - итог обработки одного файла.
type Status int

const (
	// StatusTargetMet - размер уложился в цель.
	StatusTargetMet Status = iota
	// StatusBestEffort - цель недостижима, записан лучший найденный вариант.
	StatusBestEffort
	// StatusFailed - файл не обработан из-за ошибки.
	StatusFailed
	// StatusCancelled - обработка прервана отменой.
	StatusCancelled
)

// String возвращает имя статуса.
func (s Status) String() string {
	switch s {
	case StatusTargetMet:
		return "ok"
	case StatusBestEffort:
		return "best_effort"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Result содержит результат сжатия одного файла.
type Result struct {
	// Task - исходная задача.
	Task Task

	// Status - итог обработки.
	Status Status

	// Err - ошибка (для StatusFailed и StatusCancelled).
	Err error

	// InputSize - размер исходного файла в байтах.
	InputSize int64

	// OutputSize - размер выходного файла в байтах.
	OutputSize int64

	// Width, Height - итоговые размеры изображения.
	Width  int
	Height int

	// Scale - итоговый коэффициент масштаба.
	Scale float64

	// Quality - итоговое качество JPEG.
	Quality int

	// Passes - количество проходов кодирования.
	Passes int

	// Cached - результат взят из кэша.
	Cached bool

	// Duration - время обработки.
	Duration time.Duration
}

// Processed возвращает true, если файл считается обработанным для прогресса.
// Ошибочные файлы тоже считаются обработанными, отменённые - нет.
func (r Result) Processed() bool {
	return r.Status != StatusCancelled
}

// Written возвращает true, если выходной файл записан.
func (r Result) Written() bool {
	return r.Status == StatusTargetMet || r.Status == StatusBestEffort
}
