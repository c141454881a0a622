package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls log level, format and optional file rotation
type Config struct {
	Level      string `yaml:"level" toml:"level" validate:"omitempty,oneof=trace debug info warn warning error fatal panic"`
	Format     string `yaml:"format" toml:"format" validate:"omitempty,oneof=text json"`
	File       string `yaml:"file" toml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" toml:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `yaml:"max_backups" toml:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `yaml:"max_age_days" toml:"max_age_days" validate:"gte=0"`
	Compress   bool   `yaml:"compress" toml:"compress"`
}

// DefaultConfig logs text at info level to stdout
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "text",
		MaxSizeMB:  10,
		MaxBackups: 7,
		MaxAgeDays: 7,
		Compress:   true,
	}
}

// Setup configures the standard logrus logger. When cfg.File is set, output goes
// to a rotating file as well as stdout.
func Setup(cfg Config) error {
	level := logrus.InfoLevel
	if cfg.Level != "" {
		parsed, err := logrus.ParseLevel(cfg.Level)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		level = parsed
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(Formatter(cfg.Format))
	logrus.SetOutput(Output(cfg))
	return nil
}

// Formatter returns the logrus formatter for format
func Formatter(format string) logrus.Formatter {
	if format == "json" {
		return &logrus.JSONFormatter{TimestampFormat: time.RFC3339}
	}
	return &logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	}
}

// Output returns stdout, teed into a lumberjack rotator when a file is configured
func Output(cfg Config) io.Writer {
	if cfg.File == "" {
		return os.Stdout
	}

	rotator := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB, // megabytes
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays, // days
		Compress:   cfg.Compress,
	}
	return io.MultiWriter(os.Stdout, rotator)
}
