// Package logging provides structured logging functionality.
package logging

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"pricewatch/internal/config"
)

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string
	Console    bool
	// ConsoleOut defaults to stderr so that command output on stdout stays
	// machine-readable.
	ConsoleOut io.Writer
	File       bool
	FilePath   string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
}

// DefaultLogConfig returns the default logging configuration.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:      "info",
		Console:    true,
		File:       true,
		FilePath:   filepath.Join(config.DefaultConfigDir(), "logs", "pricewatch.log"),
		MaxSize:    20,
		MaxBackups: 5,
		MaxAge:     30,
	}
}

// FromConfig derives a LogConfig from the application configuration.
// Scraper debug output raises the level to debug.
func FromConfig(cfg *config.Config) LogConfig {
	lc := DefaultLogConfig()
	if cfg.Logging.Level != "" {
		lc.Level = cfg.Logging.Level
	}
	if cfg.Scraper.Debug {
		lc.Level = "debug"
	}
	lc.File = cfg.Logging.File
	if cfg.Logging.FilePath != "" {
		lc.FilePath = cfg.Logging.FilePath
	}
	return lc
}

// NewLoggerWithConfig creates a new logger with the specified configuration.
func NewLoggerWithConfig(cfg LogConfig) zerolog.Logger {
	var writers []io.Writer

	if cfg.Console {
		out := cfg.ConsoleOut
		if out == nil {
			out = os.Stderr
		}
		consoleWriter := zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.Kitchen,
			FormatLevel: func(i interface{}) string {
				if ll, ok := i.(string); ok {
					switch ll {
					case "debug":
						return "\033[36mDBG\033[0m"
					case "info":
						return "\033[32mINF\033[0m"
					case "warn":
						return "\033[33mWRN\033[0m"
					case "error":
						return "\033[31mERR\033[0m"
					default:
						return ll
					}
				}
				return "???"
			},
		}
		writers = append(writers, consoleWriter)
	}

	// File writer with rotation
	if cfg.File && cfg.FilePath != "" {
		logDir := filepath.Dir(cfg.FilePath)
		if err := os.MkdirAll(logDir, 0755); err == nil {
			fileWriter := &lumberjack.Logger{
				Filename:   cfg.FilePath,
				MaxSize:    cfg.MaxSize,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAge,
				Compress:   true,
			}
			writers = append(writers, fileWriter)
		}
	}

	var writer io.Writer
	switch len(writers) {
	case 0:
		writer = io.Discard
	case 1:
		writer = writers[0]
	default:
		writer = zerolog.MultiLevelWriter(writers...)
	}

	level := parseLevel(cfg.Level)

	return zerolog.New(writer).
		Level(level).
		With().
		Timestamp().
		Logger()
}

func parseLevel(level string) zerolog.Level {
	l, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		return zerolog.InfoLevel
	}
	return l
}

// ContextKey is the type for context keys.
type ContextKey string

const (
	// LoggerKey is the context key for the logger.
	LoggerKey ContextKey = "logger"
)

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// FromContext retrieves the logger from context, or fallback when none
// was stored.
func FromContext(ctx context.Context, fallback zerolog.Logger) zerolog.Logger {
	if logger, ok := ctx.Value(LoggerKey).(zerolog.Logger); ok {
		return logger
	}
	return fallback
}

// WithProduct adds a product ID to the logger context.
func WithProduct(logger zerolog.Logger, productID string) zerolog.Logger {
	return logger.With().Str("product_id", productID).Logger()
}

// WithRetailer adds a retailer and its URL to the logger context.
func WithRetailer(logger zerolog.Logger, retailer, url string) zerolog.Logger {
	return logger.With().Str("retailer", retailer).Str("url", url).Logger()
}

// WithOperation adds an operation name to the logger context.
func WithOperation(logger zerolog.Logger, operation string) zerolog.Logger {
	return logger.With().Str("operation", operation).Logger()
}

// LogPriceCheck logs the outcome of a single retailer check.
func LogPriceCheck(logger zerolog.Logger, productID, retailer string, priceCents int64, duration time.Duration, err error) {
	if err != nil {
		logger.Warn().
			Str("event", "price_check").
			Str("product_id", productID).
			Str("retailer", retailer).
			Dur("duration", duration).
			Err(err).
			Msg("Price check failed")
		return
	}
	logger.Info().
		Str("event", "price_check").
		Str("product_id", productID).
		Str("retailer", retailer).
		Int64("price_cents", priceCents).
		Dur("duration", duration).
		Msg("Price checked")
}

// LogAlert logs an alert trigger.
func LogAlert(logger zerolog.Logger, productID, retailer string, priceCents, targetCents int64) {
	logger.Info().
		Str("event", "alert").
		Str("product_id", productID).
		Str("retailer", retailer).
		Int64("price_cents", priceCents).
		Int64("target_cents", targetCents).
		Msg("Target price reached")
}
