package logging

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogFormat represents the log output format.
type LogFormat string

const (
	// FormatText is human-readable console output.
	FormatText LogFormat = "text"
	// FormatJSON is structured JSON output.
	FormatJSON LogFormat = "json"
)

// Config represents logging configuration.
type Config struct {
	Level   string
	Format  LogFormat
	Service string
	Version string
	// OutputPaths are zap sink URLs or file paths. Defaults to stderr;
	// stdout carries the MCP protocol and must never be used.
	OutputPaths []string
}

// ParseLevel maps a level name to a Level, defaulting to info.
func ParseLevel(level string) Level {
	name := strings.ToLower(strings.TrimSpace(level))
	if name == "warning" {
		name = "warn"
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(name)); err != nil {
		return InfoLevel
	}
	return l
}

// NewLoggerFromConfig creates a logger based on configuration.
func NewLoggerFromConfig(cfg *Config) (*ZapLogger, error) {
	format := cfg.Format
	if format == "" {
		if envFormat := os.Getenv("GOBAN_LOG_FORMAT"); envFormat != "" {
			format = LogFormat(strings.ToLower(envFormat))
		} else {
			format = FormatJSON
		}
	}

	level := zap.NewAtomicLevelAt(ParseLevel(cfg.Level))

	zc := zap.NewProductionConfig()
	zc.Level = level
	zc.Sampling = nil
	zc.EncoderConfig.TimeKey = "timestamp"
	zc.EncoderConfig.MessageKey = "message"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}

	switch format {
	case FormatText:
		zc.Encoding = "console"
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	default:
		zc.Encoding = "json"
	}

	for _, p := range cfg.OutputPaths {
		if p == "stdout" {
			return nil, fmt.Errorf("log output %q would corrupt the MCP transport", p)
		}
	}
	if len(cfg.OutputPaths) > 0 {
		zc.OutputPaths = cfg.OutputPaths
	}

	zc.InitialFields = map[string]interface{}{}
	if cfg.Service != "" {
		zc.InitialFields["service"] = cfg.Service
	}
	if cfg.Version != "" {
		zc.InitialFields["version"] = cfg.Version
	}

	z, err := zc.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	return &ZapLogger{sugar: z.Sugar(), level: level}, nil
}
