// Package logging constructs the process-wide zap logger from the
// settings file's logLevel (spec §6), matching the pack's convention of
// pairing go.uber.org/zap with a leveled, structured configuration
// (ia-eknorr-stoker-operator; the 2lar-b2 standalone file wires zap
// alongside aws-sdk-go-v2, the same pairing this repo uses for storage).
package logging

import (
	"github.com/gitvault/gitvault/internal/config"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a production-style zap logger at the given level.
func New(level config.LogLevel) (*zap.Logger, error) {
	zapLevel, err := levelFor(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, err := cfg.Build()
	if err != nil {
		return nil, errors.Wrap(err, "building logger")
	}
	return logger, nil
}

func levelFor(level config.LogLevel) (zapcore.Level, error) {
	switch level {
	case "", config.LogLevelInfo:
		return zapcore.InfoLevel, nil
	case config.LogLevelDebug:
		return zapcore.DebugLevel, nil
	case config.LogLevelWarn:
		return zapcore.WarnLevel, nil
	case config.LogLevelError:
		return zapcore.ErrorLevel, nil
	default:
		return 0, errors.Errorf("unsupported log level %q", level)
	}
}
