// Package logx настраивает zerolog для движка и CLI.
package logx

import (
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config описывает вывод логов.
type Config struct {
	Level          string    // debug|info|warn|error
	Format         string    // console|json
	Out            io.Writer // консольный вывод (nil = os.Stderr, io.Discard = без консоли)
	FilePath       string    // файл с ротацией ("" = выключен)
	FileMaxSizeMB  int       // ротация при ~MB (по умолчанию 20)
	FileMaxBackups int       // сколько старых файлов хранить (по умолчанию 3)
	FileMaxAgeDays int       // сколько дней хранить (по умолчанию 14)
	FileCompress   bool      // gzip старых файлов
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getenvBool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		v = strings.ToLower(v)
		return v == "1" || v == "true" || v == "yes"
	}
	return def
}

// FromEnv собирает Config из переменных окружения.
// Пустые значения заменяются переданными значениями по умолчанию.
func FromEnv(level, format, file string) Config {
	return Config{
		Level:          strings.ToLower(getenv("LOG_LEVEL", level)),
		Format:         strings.ToLower(getenv("LOG_FORMAT", format)),
		FilePath:       getenv("LOG_FILE", file),
		FileMaxSizeMB:  getenvInt("LOG_FILE_MAX_SIZE", 20),
		FileMaxBackups: getenvInt("LOG_FILE_MAX_BACKUPS", 3),
		FileMaxAgeDays: getenvInt("LOG_FILE_MAX_AGE", 14),
		FileCompress:   getenvBool("LOG_FILE_COMPRESS", true),
	}
}

// Setup создаёт логгер. Файл пишется всегда в JSON.
func Setup(c Config) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	lvl, err := zerolog.ParseLevel(c.Level)
	if err != nil || c.Level == "" {
		lvl = zerolog.WarnLevel
	}

	out := c.Out
	if out == nil {
		out = os.Stderr
	}

	var writers []io.Writer
	if out != io.Discard {
		if c.Format == "json" {
			writers = append(writers, out)
		} else {
			writers = append(writers, zerolog.ConsoleWriter{
				Out:        out,
				TimeFormat: "15:04:05",
			})
		}
	}
	if c.FilePath != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   c.FilePath,
			MaxSize:    orDefault(c.FileMaxSizeMB, 20),
			MaxBackups: orDefault(c.FileMaxBackups, 3),
			MaxAge:     orDefault(c.FileMaxAgeDays, 14),
			Compress:   c.FileCompress,
		})
	}
	if len(writers) == 0 {
		return zerolog.Nop()
	}

	return zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(lvl).
		With().
		Timestamp().
		Logger()
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}
