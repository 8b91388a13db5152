package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger takes a logging config and returns a new zap logger that writes
// to the rotated log file the config points at, teed to stdout unless
// console output is disabled.
func NewLogger(config *Config) (*zap.Logger, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid logging config: %w", err)
	}

	encoder, level, err := constructEncoderAndLevel(config)
	if err != nil {
		return nil, fmt.Errorf("constructing log encoder and level: %w", err)
	}

	logFile := zapcore.AddSync(&config.Logger)
	logCore := zapcore.NewCore(encoder, logFile, level)

	var core zapcore.Core
	if config.DisableConsoleOutput {
		core = logCore
	} else {
		console := zapcore.Lock(os.Stdout)
		core = zapcore.NewTee(logCore, zapcore.NewCore(encoder, console, level))
	}

	return zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)), nil
}

func constructEncoderAndLevel(config *Config) (zapcore.Encoder, zapcore.Level, error) {
	level := zapcore.DebugLevel
	if !config.Debug {
		var err error
		level, err = config.Level.toZapCoreLevel()
		if err != nil {
			return nil, level, err
		}
	}

	if config.Debug {
		return zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()), level, nil
	}
	return zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), level, nil
}
