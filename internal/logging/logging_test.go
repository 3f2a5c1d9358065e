package logging

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"pricewatch/internal/config"
)

func TestFromConfig(t *testing.T) {
	cfg := config.Default(t.TempDir())
	cfg.Logging.Level = "warn"
	cfg.Logging.File = false

	lc := FromConfig(cfg)
	if lc.Level != "warn" || lc.File {
		t.Errorf("FromConfig = %+v, want warn level without file", lc)
	}

	cfg.Scraper.Debug = true
	if lc := FromConfig(cfg); lc.Level != "debug" {
		t.Errorf("scraper debug should force debug level, got %q", lc.Level)
	}
}

func TestNewLoggerWithConfigWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "pricewatch.log")
	var console bytes.Buffer

	logger := NewLoggerWithConfig(LogConfig{
		Level:      "info",
		Console:    true,
		ConsoleOut: &console,
		File:       true,
		FilePath:   path,
		MaxSize:    1,
	})
	LogPriceCheck(logger, "p1", "Amazon", 4500, 0, nil)
	logger.Debug().Msg("hidden")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	if !strings.Contains(string(data), `"price_cents":4500`) {
		t.Errorf("file log missing structured field: %s", data)
	}
	if strings.Contains(string(data), "hidden") {
		t.Error("debug message should be filtered at info level")
	}
	if !strings.Contains(console.String(), "Price checked") {
		t.Errorf("console output missing message: %q", console.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug": zerolog.DebugLevel,
		"warn":  zerolog.WarnLevel,
		"":      zerolog.InfoLevel,
		"bogus": zerolog.InfoLevel,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestContextLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	ctx := WithLogger(context.Background(), WithOperation(WithProduct(logger, "p1"), "check"))
	log := FromContext(ctx, zerolog.Nop())
	log.Info().Msg("hello")

	out := buf.String()
	if !strings.Contains(out, `"product_id":"p1"`) || !strings.Contains(out, `"operation":"check"`) {
		t.Errorf("context logger lost fields: %s", out)
	}

	// A context without a logger yields the fallback.
	buf.Reset()
	log = FromContext(context.Background(), WithProduct(logger, "p2"))
	log.Info().Msg("fallback")
	if !strings.Contains(buf.String(), `"product_id":"p2"`) {
		t.Errorf("fallback logger not used: %s", buf.String())
	}
}
