// Package logging builds the zap loggers that components are configured with.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a console logger that writes to stderr at the given level.
func New(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")

	return cfg.Build()
}

// NewNop returns a logger that drops everything.
func NewNop() *zap.Logger {
	return zap.NewNop()
}

// SimTime adds the simulated time to a log entry.
func SimTime(now float64) zap.Field {
	return zap.Float64("sim_time", now)
}
