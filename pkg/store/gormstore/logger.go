package gormstore

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	glogger "gorm.io/gorm/logger"
)

// Logger adapts a zap logger to gorm's logger interface.
type Logger struct {
	logger        *zap.Logger
	level         glogger.LogLevel
	slowThreshold time.Duration
}

// NewLogger returns a gorm logger writing through logger.
func NewLogger(logger *zap.Logger, level glogger.LogLevel, slowThreshold time.Duration) glogger.Interface {
	return &Logger{logger: logger.Named("gorm"), level: level, slowThreshold: slowThreshold}
}

func (l *Logger) LogMode(level glogger.LogLevel) glogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *Logger) Info(_ context.Context, msg string, data ...any) {
	if l.level >= glogger.Info {
		l.logger.Info(msg, zap.Any("data", data))
	}
}

func (l *Logger) Warn(_ context.Context, msg string, data ...any) {
	if l.level >= glogger.Warn {
		l.logger.Warn(msg, zap.Any("data", data))
	}
}

func (l *Logger) Error(_ context.Context, msg string, data ...any) {
	if l.level >= glogger.Error {
		l.logger.Error(msg, zap.Any("data", data))
	}
}

func (l *Logger) Trace(_ context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.level <= glogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	sql, rows := fc()
	fields := []zap.Field{
		zap.Duration("elapsed", elapsed),
		zap.Int64("rows", rows),
		zap.String("sql", sql),
	}
	switch {
	case err != nil && !errors.Is(err, glogger.ErrRecordNotFound):
		l.logger.Error("query failed", append(fields, zap.Error(err))...)
	case l.slowThreshold > 0 && elapsed > l.slowThreshold:
		l.logger.Warn("slow query", fields...)
	case l.level >= glogger.Info:
		l.logger.Debug("query", fields...)
	}
}
