// Package logger builds the zap loggers used by the engine.
package logger

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config configures a logger.  An empty Path logs to stderr and a Path of
// "off" disables logging.
type Config struct {
	Level      string `yaml:"level"`
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"max-size-mb"`
	MaxBackups int    `yaml:"max-backups"`
}

func New(conf Config) (*zap.Logger, error) {
	if conf.Path == "off" {
		return zap.NewNop(), nil
	}
	level := zapcore.InfoLevel
	if conf.Level != "" {
		if err := level.UnmarshalText([]byte(conf.Level)); err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
	}
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		sink(conf),
		zap.NewAtomicLevelAt(level),
	)
	return zap.New(core), nil
}

func sink(conf Config) zapcore.WriteSyncer {
	if conf.Path == "" {
		return zapcore.Lock(os.Stderr)
	}
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   conf.Path,
		MaxSize:    conf.MaxSizeMB,
		MaxBackups: conf.MaxBackups,
	})
}
