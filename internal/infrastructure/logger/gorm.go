package logger

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

// lock_not_available and deadlock_detected surface as concurrency conflicts
// to callers, they are not database faults
var contentionCodes = map[string]bool{
	"55P03": true,
	"40P01": true,
	"40001": true,
}

// GormLoggerConfig configures the GORM logger
type GormLoggerConfig struct {
	Level         gormlogger.LogLevel
	SlowThreshold time.Duration // 0 disables slow statement warnings
	MaxSQLLength  int           // statements are cut to this many bytes, 0 keeps them whole
	LogNotFound   bool
}

// GormLogger routes GORM statements and messages to zap
type GormLogger struct {
	logger *zap.Logger
	cfg    GormLoggerConfig
}

// NewGormLogger creates a GORM logger writing under the "gorm" name
func NewGormLogger(base *zap.Logger, cfg GormLoggerConfig) *GormLogger {
	if cfg.MaxSQLLength == 0 {
		cfg.MaxSQLLength = 2048
	}
	return &GormLogger{logger: base.Named("gorm"), cfg: cfg}
}

// LogMode returns a copy at the given level
func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	c := *l
	c.cfg.Level = level
	return &c
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.cfg.Level >= gormlogger.Info {
		l.forContext(ctx).Sugar().Infof(msg, data...)
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.cfg.Level >= gormlogger.Warn {
		l.forContext(ctx).Sugar().Warnf(msg, data...)
	}
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.cfg.Level >= gormlogger.Error {
		l.forContext(ctx).Sugar().Errorf(msg, data...)
	}
}

// Trace logs one executed statement
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.cfg.Level <= gormlogger.Silent {
		return
	}
	if err != nil && !l.cfg.LogNotFound && errors.Is(err, gormlogger.ErrRecordNotFound) {
		err = nil
	}

	elapsed := time.Since(begin)
	slow := l.cfg.SlowThreshold > 0 && elapsed > l.cfg.SlowThreshold
	switch {
	case err != nil && l.cfg.Level >= gormlogger.Error:
	case slow && l.cfg.Level >= gormlogger.Warn:
	case l.cfg.Level >= gormlogger.Info:
	default:
		return
	}

	sql, rows := fc()
	if len(sql) > l.cfg.MaxSQLLength {
		sql = sql[:l.cfg.MaxSQLLength] + "..."
	}
	log := l.forContext(ctx)
	fields := []zap.Field{
		zap.Duration("elapsed", elapsed),
		zap.Int64("rows", rows),
		zap.String("sql", sql),
	}

	switch {
	case err != nil && isContention(err):
		log.Warn("SQL lock contention", append(fields, zap.Error(err))...)
	case err != nil:
		log.Error("SQL error", append(fields, zap.Error(err))...)
	case slow:
		log.Warn("Slow SQL", append(fields, zap.Duration("threshold", l.cfg.SlowThreshold))...)
	default:
		log.Debug("SQL", fields...)
	}
}

func (l *GormLogger) forContext(ctx context.Context) *zap.Logger {
	log := l.logger
	if fields := traceFields(ctx); len(fields) > 0 {
		log = log.With(fields...)
	}
	if requestID := GetRequestID(ctx); requestID != "" {
		log = log.With(zap.String("request_id", requestID))
	}
	return log
}

func isContention(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && contentionCodes[pgErr.Code]
}

// MapGormLogLevel maps the application log level onto GORM's
func MapGormLogLevel(level string) gormlogger.LogLevel {
	switch level {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info", "debug":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}
