package dbstore

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"starmap/logging"
)

const slowQuery = 200 * time.Millisecond

// gormLogger sends gorm output to the global zerolog logger at matching levels.
// Failed statements log at error and slow ones at warn. Every other statement
// is logged at info only when SQL tracing is on.
type gormLogger struct {
	level logger.LogLevel
	slow  time.Duration
}

func NewLogger(logSQL bool) logger.Interface {
	level := logger.Warn
	if logSQL {
		level = logger.Info
	}
	return &gormLogger{level: level, slow: slowQuery}
}

func (l *gormLogger) LogMode(level logger.LogLevel) logger.Interface {
	c := *l
	c.level = level
	return &c
}

func (l *gormLogger) Info(_ context.Context, msg string, args ...any) {
	if l.level >= logger.Info {
		logging.Info().Msgf(msg, args...)
	}
}

func (l *gormLogger) Warn(_ context.Context, msg string, args ...any) {
	if l.level >= logger.Warn {
		logging.Warn().Msgf(msg, args...)
	}
}

func (l *gormLogger) Error(_ context.Context, msg string, args ...any) {
	if l.level >= logger.Error {
		logging.Error().Msgf(msg, args...)
	}
}

func (l *gormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= logger.Silent {
		return
	}
	elapsed := time.Since(begin)
	var ev *zerolog.Event
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && l.level >= logger.Error:
		ev = logging.Error().Err(err)
	case l.slow > 0 && elapsed > l.slow && l.level >= logger.Warn:
		ev = logging.Warn().Dur("threshold", l.slow)
	case l.level >= logger.Info:
		ev = logging.Info()
	default:
		return
	}
	sql, rows := fc()
	ev.Str("sql", sql).Int64("rows", rows).Dur("elapsed", elapsed).Msg("gorm query")
}
