package storage

// migrations содержит SQL-миграции в порядке выполнения.
var migrations = []string{
	// Миграция 1: Таблица запусков
	`CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		input_dir TEXT NOT NULL,
		output_dir TEXT NOT NULL,
		target_kb REAL NOT NULL,
		parallel INTEGER NOT NULL,
		total INTEGER NOT NULL,
		completed INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		finished_at INTEGER
	);`,

	// Миграция 2: Результаты по файлам
	`CREATE TABLE IF NOT EXISTS files (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		src_path TEXT NOT NULL,
		dst_path TEXT NOT NULL,
		status TEXT NOT NULL,
		src_size INTEGER NOT NULL,
		dst_size INTEGER NOT NULL,
		quality INTEGER NOT NULL,
		scale REAL NOT NULL,
		passes INTEGER NOT NULL,
		cached INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		duration_ms INTEGER NOT NULL
	);`,

	// Миграция 3: Индексы для history
	`CREATE INDEX IF NOT EXISTS ix_files_run_status ON files (run_id, status);`,
	`CREATE INDEX IF NOT EXISTS ix_runs_started ON runs (started_at);`,

	// Миграция 4: Таблица метаданных для версионирования схемы
	`CREATE TABLE IF NOT EXISTS schema_info (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);`,
	`INSERT OR REPLACE INTO schema_info (key, value) VALUES ('version', '1');`,
}
