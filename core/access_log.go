package core

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// AccessRecord describes one dispatched request
type AccessRecord struct {
	Method     string
	Path       string
	Route      string
	RemoteAddr string
	Status     int
	Duration   time.Duration
	Outcome    string
}

// AccessLogger receives one record per dispatched request
type AccessLogger interface {
	LogAccess(ctx context.Context, rec AccessRecord)
}

// ZapAccessLogger writes access records as structured log lines
type ZapAccessLogger struct {
	logger *zap.Logger
}

// NewZapAccessLogger creates an access logger. A nil logger discards records.
func NewZapAccessLogger(logger *zap.Logger) *ZapAccessLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapAccessLogger{logger: logger.Named("access")}
}

// LogAccess implements AccessLogger
func (l *ZapAccessLogger) LogAccess(_ context.Context, rec AccessRecord) {
	fields := []zap.Field{
		zap.String("method", rec.Method),
		zap.String("path", rec.Path),
		zap.String("remote_addr", rec.RemoteAddr),
		zap.Int("status", rec.Status),
		zap.Duration("duration", rec.Duration),
		zap.String("outcome", rec.Outcome),
	}
	if rec.Route != "" {
		fields = append(fields, zap.String("route", rec.Route))
	}

	if rec.Status >= 500 {
		l.logger.Warn("request", fields...)
		return
	}
	l.logger.Info("request", fields...)
}
