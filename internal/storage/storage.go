// Package storage ведёт историю запусков в SQLite: какие файлы обработаны,
// с каким итогом и какие завершились ошибкой.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/artemshloyda/imgshrink/internal/batch"
	"github.com/artemshloyda/imgshrink/internal/codec"
)

// ErrRunNotFound - запуск с таким ID отсутствует.
var ErrRunNotFound = errors.New("запуск не найден")

// Storage предоставляет методы для работы с историей запусков.
// Реализует batch.Ledger.
type Storage struct {
	db *sql.DB
}

var _ batch.Ledger = (*Storage)(nil)

// New создаёт новое подключение к SQLite и выполняет миграции.
func New(dbPath string) (*Storage, error) {
	// Создаём директорию для БД, если не существует
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию для БД: %w", err)
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_foreign_keys=on", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть БД: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("не удалось подключиться к БД: %w", err)
	}

	// SQLite не поддерживает concurrent writes
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Storage{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("не удалось выполнить миграции: %w", err)
	}

	return s, nil
}

// migrate выполняет все SQL-миграции.
func (s *Storage) migrate() error {
	for i, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("миграция %d: %w", i+1, err)
		}
	}
	return nil
}

// Close закрывает подключение к БД.
func (s *Storage) Close() error {
	return s.db.Close()
}

// BeginRun записывает начало запуска.
func (s *Storage) BeginRun(runID string, req batch.Request, total int) error {
	_, err := s.db.Exec(`
		INSERT INTO runs (id, input_dir, output_dir, target_kb, parallel, total, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, req.InputDir, req.OutputDir, req.TargetSizeKB, req.Parallel, total,
		RunRunning, time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("не удалось создать запуск: %w", err)
	}
	return nil
}

// RecordResult записывает результат одного файла.
func (s *Storage) RecordResult(runID string, res codec.Result) error {
	var errMsg *string
	if res.Err != nil {
		msg := res.Err.Error()
		errMsg = &msg
	}

	_, err := s.db.Exec(`
		INSERT INTO files (run_id, src_path, dst_path, status, src_size, dst_size,
		                   quality, scale, passes, cached, error, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, res.Task.InputPath, res.Task.OutputPath, res.Status.String(),
		res.InputSize, res.OutputSize, res.Quality, res.Scale, res.Passes, res.Cached,
		errMsg, res.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("не удалось записать результат: %w", err)
	}
	return nil
}

// FinishRun закрывает запуск.
func (s *Storage) FinishRun(runID string, status batch.Status, completed int) error {
	runStatus := RunCompleted
	switch status {
	case batch.StatusCancelled:
		runStatus = RunCancelled
	case batch.StatusFailed:
		runStatus = RunFailed
	}

	result, err := s.db.Exec(
		"UPDATE runs SET status = ?, completed = ?, finished_at = ? WHERE id = ?",
		runStatus, completed, time.Now().UnixMilli(), runID,
	)
	if err != nil {
		return fmt.Errorf("не удалось обновить запуск: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

// CleanupInterrupted помечает запуски, оставшиеся в running, как interrupted.
// Вызывается при старте для очистки после аварийного завершения.
func (s *Storage) CleanupInterrupted() (int64, error) {
	result, err := s.db.Exec(
		"UPDATE runs SET status = ?, finished_at = ? WHERE status = ?",
		RunInterrupted, time.Now().UnixMilli(), RunRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("не удалось очистить прерванные запуски: %w", err)
	}
	return result.RowsAffected()
}

const runColumns = `id, input_dir, output_dir, target_kb, parallel, total, completed, status, started_at, finished_at`

func scanRun(row interface{ Scan(...any) error }) (Run, error) {
	var (
		r          Run
		startedAt  int64
		finishedAt sql.NullInt64
	)
	err := row.Scan(&r.ID, &r.InputDir, &r.OutputDir, &r.TargetKB, &r.Parallel,
		&r.Total, &r.Completed, &r.Status, &startedAt, &finishedAt)
	if err != nil {
		return Run{}, err
	}
	r.StartedAt = time.UnixMilli(startedAt)
	if finishedAt.Valid {
		t := time.UnixMilli(finishedAt.Int64)
		r.FinishedAt = &t
	}
	return r, nil
}

// ListRuns возвращает последние запуски, новые первыми.
func (s *Storage) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(
		"SELECT "+runColumns+" FROM runs ORDER BY started_at DESC, id DESC LIMIT ?", limit,
	)
	if err != nil {
		return nil, fmt.Errorf("не удалось получить запуски: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun возвращает запуск по ID.
func (s *Storage) GetRun(runID string) (Run, error) {
	r, err := scanRun(s.db.QueryRow("SELECT "+runColumns+" FROM runs WHERE id = ?", runID))
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return r, err
}

// RunCounts возвращает количество файлов запуска по статусам.
func (s *Storage) RunCounts(runID string) (RunCounts, error) {
	var c RunCounts
	err := s.db.QueryRow(`
		SELECT
			COALESCE(SUM(status = ?), 0),
			COALESCE(SUM(status = ?), 0),
			COALESCE(SUM(status = ?), 0),
			COALESCE(SUM(cached), 0),
			COALESCE(SUM(CASE WHEN status != ? THEN src_size ELSE 0 END), 0),
			COALESCE(SUM(dst_size), 0)
		FROM files WHERE run_id = ?`,
		codec.StatusTargetMet.String(), codec.StatusBestEffort.String(), codec.StatusFailed.String(),
		codec.StatusFailed.String(), runID,
	).Scan(&c.OK, &c.BestEffort, &c.Failed, &c.Cached, &c.SrcBytes, &c.DstBytes)
	if err != nil {
		return RunCounts{}, fmt.Errorf("не удалось посчитать файлы: %w", err)
	}
	return c, nil
}

// FailedFiles возвращает файлы запуска, завершившиеся ошибкой.
func (s *Storage) FailedFiles(runID string) ([]FileRecord, error) {
	rows, err := s.db.Query(`
		SELECT run_id, src_path, dst_path, status, src_size, dst_size, quality, scale,
		       passes, cached, COALESCE(error, ''), duration_ms
		FROM files WHERE run_id = ? AND status = ? ORDER BY id`,
		runID, codec.StatusFailed.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("не удалось получить файлы: %w", err)
	}
	defer rows.Close()

	var files []FileRecord
	for rows.Next() {
		var (
			f  FileRecord
			ms int64
		)
		if err := rows.Scan(&f.RunID, &f.SrcPath, &f.DstPath, &f.Status, &f.SrcSize, &f.DstSize,
			&f.Quality, &f.Scale, &f.Passes, &f.Cached, &f.Error, &ms); err != nil {
			return nil, err
		}
		f.Duration = time.Duration(ms) * time.Millisecond
		files = append(files, f)
	}
	return files, rows.Err()
}

/*
Возможные расширения:
- Удаление старых запусков (retention)
- Экспорт истории в JSON
*/
