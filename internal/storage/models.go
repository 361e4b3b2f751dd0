package storage

import "time"

// RunStatus определяет статус запуска в истории.
type RunStatus string

const (
	// RunRunning - запуск выполняется.
	RunRunning RunStatus = "running"
	// RunCompleted - все файлы обработаны.
	RunCompleted RunStatus = "completed"
	// RunCancelled - запуск отменён.
	RunCancelled RunStatus = "cancelled"
	// RunFailed - запуск не состоялся.
	RunFailed RunStatus = "failed"
	// RunInterrupted - процесс завершился, не закрыв запуск.
	RunInterrupted RunStatus = "interrupted"
)

// Run представляет один запуск пакета.
type Run struct {
	// ID - ULID запуска.
	ID string

	// InputDir, OutputDir - директории запуска.
	InputDir  string
	OutputDir string

	// TargetKB - целевой размер.
	TargetKB float64

	// Parallel - параллельный режим.
	Parallel bool

	// Total - найдено файлов.
	Total int

	// Completed - обработано файлов.
	Completed int

	// Status - статус запуска.
	Status RunStatus

	// StartedAt - время начала.
	StartedAt time.Time

	// FinishedAt - время завершения (nil, пока запуск идёт).
	FinishedAt *time.Time
}

// FileRecord - результат одного файла в запуске.
type FileRecord struct {
	RunID    string
	SrcPath  string
	DstPath  string
	Status   string
	SrcSize  int64
	DstSize  int64
	Quality  int
	Scale    float64
	Passes   int
	Cached   bool
	Error    string
	Duration time.Duration
}

// RunCounts - количество файлов запуска по статусам.
type RunCounts struct {
	OK         int64
	BestEffort int64
	Failed     int64
	Cached     int64
	SrcBytes   int64
	DstBytes   int64
}
