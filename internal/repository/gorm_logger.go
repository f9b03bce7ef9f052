package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/blues/ideafund/internal/logger"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// sqlLogger 把 gorm 日志写入应用日志，慢查询以 WARN 输出
type sqlLogger struct {
	level gormLogger.LogLevel
	slow  time.Duration
}

func newGormLogger(level string, slow time.Duration) gormLogger.Interface {
	return &sqlLogger{level: parseGormLevel(level), slow: slow}
}

func parseGormLevel(level string) gormLogger.LogLevel {
	switch strings.ToLower(level) {
	case "info":
		return gormLogger.Info
	case "warn":
		return gormLogger.Warn
	case "error":
		return gormLogger.Error
	default:
		return gormLogger.Silent
	}
}

func (l *sqlLogger) LogMode(level gormLogger.LogLevel) gormLogger.Interface {
	c := *l
	c.level = level
	return &c
}

func (l *sqlLogger) Info(_ context.Context, msg string, data ...interface{}) {
	if l.level >= gormLogger.Info {
		logger.Info(msg, data...)
	}
}

func (l *sqlLogger) Warn(_ context.Context, msg string, data ...interface{}) {
	if l.level >= gormLogger.Warn {
		logger.Warn(msg, data...)
	}
}

func (l *sqlLogger) Error(_ context.Context, msg string, data ...interface{}) {
	if l.level >= gormLogger.Error {
		logger.Error(msg, data...)
	}
}

func (l *sqlLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormLogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	switch {
	case err != nil && l.level >= gormLogger.Error && !errors.Is(err, gorm.ErrRecordNotFound):
		sql, rows := fc()
		logger.Error("SQL failed after %s (rows %d): %v: %s", elapsed, rows, err, sql)
	case l.slow > 0 && elapsed > l.slow && l.level >= gormLogger.Warn:
		sql, rows := fc()
		logger.Warn("Slow SQL %s (rows %d): %s", elapsed, rows, sql)
	case l.level >= gormLogger.Info:
		sql, rows := fc()
		logger.Debug("SQL %s (rows %d): %s", elapsed, rows, sql)
	}
}
