// Package extract reads a price and a title from a retailer product page.
package extract

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"pricewatch/internal/errors"
	"pricewatch/internal/models"
	"pricewatch/internal/money"
	"pricewatch/internal/render"
	"pricewatch/internal/retailer"
	"pricewatch/pkg/utils"
)

// Result is a successful extraction.
type Result struct {
	URL        string `json:"url"`
	Retailer   string `json:"retailer"`
	Title      string `json:"title"`
	PriceCents int64  `json:"priceCents"`
	Currency   string `json:"currency"`
	// Selector is the price selector that matched.
	Selector string `json:"selector"`
}

// Config holds extraction settings.
type Config struct {
	// MaxAttempts is the number of attempts ExtractWithRetry makes (>= 1).
	MaxAttempts int
	// BaseDelay is multiplied by the attempt number between retries.
	BaseDelay time.Duration
}

// DefaultConfig returns the default extraction settings.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
	}
}

// Engine extracts prices using a retailer registry and a renderer.
type Engine struct {
	registry *retailer.Registry
	renderer render.Renderer
	cfg      Config
	logger   zerolog.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

// Option configures an Engine.
type Option func(*Engine)

// WithSleep replaces the wait used between attempts.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Engine) { e.sleep = sleep }
}

// NewEngine creates a new extraction engine.
func NewEngine(registry *retailer.Registry, renderer render.Renderer, cfg Config, logger zerolog.Logger, opts ...Option) *Engine {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	e := &Engine{
		registry: registry,
		renderer: renderer,
		cfg:      cfg,
		logger:   logger.With().Str("component", "extract").Logger(),
		sleep:    utils.SleepContext,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the engine's retailer registry.
func (e *Engine) Registry() *retailer.Registry {
	return e.registry
}

// Extract makes a single attempt. The page is closed on every path once
// it has been opened.
func (e *Engine) Extract(ctx context.Context, url string) (Result, error) {
	desc, ok := e.registry.Detect(url)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s (supported: %s)",
			errors.ErrUnsupportedRetailer, url, strings.Join(e.registry.Names(), ", "))
	}

	page, err := e.renderer.Open(ctx, url)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		if !errors.Is(err, errors.ErrRender) {
			err = fmt.Errorf("%w: %w", errors.ErrRender, err)
		}
		return Result{}, err
	}
	defer func() {
		if cerr := page.Close(); cerr != nil {
			e.logger.Warn().Err(cerr).Str("url", url).Msg("Failed to release page")
		}
	}()

	priceText, selector := firstText(page, desc.PriceSelectors)
	if priceText == "" {
		return Result{}, fmt.Errorf("%w: could not find price on %s page", errors.ErrPriceNotFound, desc.Name)
	}
	e.logger.Debug().Str("retailer", desc.Name).Str("selector", selector).Str("text", priceText).Msg("Found price")

	title, _ := firstText(page, desc.TitleSelectors)
	if title == "" {
		title = models.UnknownTitle
	}

	cents, err := money.Parse(priceText)
	if err != nil {
		return Result{}, err
	}

	return Result{
		URL:        url,
		Retailer:   desc.Name,
		Title:      title,
		PriceCents: cents,
		Currency:   money.DetectCurrency(priceText),
		Selector:   selector,
	}, nil
}

// firstText queries selectors in order and returns the first non-empty text.
func firstText(page render.Page, selectors []string) (string, string) {
	for _, sel := range selectors {
		if text := page.Text(sel); text != "" {
			return text, sel
		}
	}
	return "", ""
}

// ExtractWithRetry repeats Extract up to MaxAttempts times, waiting
// BaseDelay*attempt between attempts. Unsupported URLs fail immediately.
// On exhaustion the last attempt's error is returned inside an
// ExtractionError.
func (e *Engine) ExtractWithRetry(ctx context.Context, url string) (Result, error) {
	attempts := 0
	log := e.logger.With().Str("url", url).Logger()

	cfg := utils.RetryConfig{
		MaxAttempts: e.cfg.MaxAttempts,
		Backoff:     utils.LinearBackoff(e.cfg.BaseDelay),
		ShouldRetry: errors.IsRetryable,
		Sleep:       e.sleep,
		OnRetry: func(attempt int, delay time.Duration, err error) {
			log.Debug().Err(err).Int("attempt", attempt).Dur("delay", delay).Msg("Attempt failed, retrying")
		},
	}

	result, err := utils.RetryWithResult(ctx, cfg, func() (Result, error) {
		attempts++
		return e.Extract(ctx, url)
	})
	if err != nil {
		name := ""
		if desc, ok := e.registry.Detect(url); ok {
			name = desc.Name
		}
		return Result{}, errors.NewExtractionError(url, name, attempts, err)
	}
	return result, nil
}
