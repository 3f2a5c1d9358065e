// Package checker runs a price check pass over every tracked product.
package checker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"pricewatch/internal/alert"
	"pricewatch/internal/errors"
	"pricewatch/internal/extract"
	"pricewatch/internal/logging"
	"pricewatch/internal/models"
	"pricewatch/internal/notify"
	"pricewatch/internal/store"
	"pricewatch/pkg/utils"
)

// Extractor reads a price from a retailer page, retrying transient failures.
type Extractor interface {
	ExtractWithRetry(ctx context.Context, url string) (extract.Result, error)
}

// Config holds check pass settings.
type Config struct {
	// DelayBetweenRequests is waited after every successful retailer check.
	DelayBetweenRequests time.Duration
}

// RetailerOutcome is the result of checking one retailer listing.
type RetailerOutcome struct {
	URL      string `json:"url"`
	Retailer string `json:"retailer"`
	Title    string `json:"title,omitempty"`
	// PriceCents is set on success.
	PriceCents    int64  `json:"priceCents,omitempty"`
	PreviousCents *int64 `json:"previousCents,omitempty"`
	Err           error  `json:"-"`
	Error         string `json:"error,omitempty"`
}

// OK reports whether the retailer was read successfully.
func (o RetailerOutcome) OK() bool {
	return o.Err == nil
}

// Changed reports whether a successful read differs from the stored price.
func (o RetailerOutcome) Changed() bool {
	return o.OK() && (o.PreviousCents == nil || *o.PreviousCents != o.PriceCents)
}

// ProductReport is the result of checking one product.
type ProductReport struct {
	ProductID   string            `json:"productId"`
	Name        string            `json:"name"`
	TargetCents int64             `json:"targetPriceCents"`
	Retailers   []RetailerOutcome `json:"retailers"`
	Evaluation  alert.Evaluation  `json:"evaluation"`
	// Alerted is true when this pass latched the product.
	Alerted     bool   `json:"alerted"`
	NotifyError string `json:"notifyError,omitempty"`
}

// Report is the result of a check pass.
type Report struct {
	Products   []ProductReport `json:"products"`
	StartedAt  time.Time       `json:"startedAt"`
	FinishedAt time.Time       `json:"finishedAt"`
}

// Checked returns the number of retailers read successfully.
func (r Report) Checked() int {
	n := 0
	for _, p := range r.Products {
		for _, o := range p.Retailers {
			if o.OK() {
				n++
			}
		}
	}
	return n
}

// Failed returns the number of retailers that could not be read.
func (r Report) Failed() int {
	n := 0
	for _, p := range r.Products {
		for _, o := range p.Retailers {
			if !o.OK() {
				n++
			}
		}
	}
	return n
}

// Alerts returns the number of products latched during the pass.
func (r Report) Alerts() int {
	n := 0
	for _, p := range r.Products {
		if p.Alerted {
			n++
		}
	}
	return n
}

// Checker checks prices and raises alerts. Retailers are processed one at a
// time.
type Checker struct {
	extractor Extractor
	store     store.ProductStore
	archive   store.ObservationStore
	notifier  notify.Notifier
	cfg       Config
	logger    zerolog.Logger
	sleep     func(ctx context.Context, d time.Duration) error
	clock     func() time.Time
}

// Option configures a Checker.
type Option func(*Checker)

// WithArchive records every successful observation in archive.
func WithArchive(archive store.ObservationStore) Option {
	return func(c *Checker) { c.archive = archive }
}

// WithNotifier sends price alerts through n.
func WithNotifier(n notify.Notifier) Option {
	return func(c *Checker) { c.notifier = n }
}

// WithSleep replaces the wait between requests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Checker) { c.sleep = sleep }
}

// WithClock replaces the time source.
func WithClock(clock func() time.Time) Option {
	return func(c *Checker) { c.clock = clock }
}

// New creates a new Checker.
func New(extractor Extractor, products store.ProductStore, cfg Config, logger zerolog.Logger, opts ...Option) *Checker {
	c := &Checker{
		extractor: extractor,
		store:     products,
		notifier:  notify.NewNoOpNotifier(),
		cfg:       cfg,
		logger:    logger,
		sleep:     utils.SleepContext,
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// loggerFor prefers the logger carried by ctx, which is tagged with the
// running operation.
func (c *Checker) loggerFor(ctx context.Context) zerolog.Logger {
	return logging.FromContext(ctx, c.logger).With().Str("component", "checker").Logger()
}

// CheckURL extracts url without touching the store. It is used to validate
// a listing before it is tracked.
func (c *Checker) CheckURL(ctx context.Context, url string) (extract.Result, error) {
	return c.extractor.ExtractWithRetry(ctx, url)
}

// Run checks every tracked product. Retailer failures are recorded in the
// report and do not stop the pass; a cancelled context does, and the partial
// report is returned with the context error.
func (c *Checker) Run(ctx context.Context) (Report, error) {
	report := Report{StartedAt: c.clock()}

	products, err := c.store.LoadAll(ctx)
	if err != nil {
		return report, errors.Wrap(err, "loading products")
	}
	log := c.loggerFor(ctx)
	log.Info().Int("products", len(products)).Msg("Starting price check")

	for _, p := range products {
		pr, err := c.checkProduct(ctx, p)
		report.Products = append(report.Products, pr)
		if err != nil {
			report.FinishedAt = c.clock()
			return report, err
		}
	}

	report.FinishedAt = c.clock()
	log.Info().
		Int("checked", report.Checked()).
		Int("failed", report.Failed()).
		Int("alerts", report.Alerts()).
		Msg("Price check complete")
	return report, nil
}

// CheckProduct checks a single product.
func (c *Checker) CheckProduct(ctx context.Context, productID string) (ProductReport, error) {
	p, err := c.store.FindProduct(ctx, productID)
	if err != nil {
		return ProductReport{}, err
	}
	return c.checkProduct(ctx, p)
}

func (c *Checker) checkProduct(ctx context.Context, p models.Product) (ProductReport, error) {
	log := logging.WithProduct(c.loggerFor(ctx), p.ID)
	pr := ProductReport{
		ProductID:   p.ID,
		Name:        p.Name,
		TargetCents: p.TargetPriceCents,
	}

	var observations []alert.Observation
	for _, r := range p.Retailers {
		if err := ctx.Err(); err != nil {
			return pr, err
		}

		outcome, err := c.checkRetailer(ctx, p, r)
		pr.Retailers = append(pr.Retailers, outcome)
		if err != nil {
			return pr, err
		}
		if !outcome.OK() {
			continue
		}
		observations = append(observations, alert.Observation{
			Retailer:   outcome.Retailer,
			URL:        outcome.URL,
			PriceCents: outcome.PriceCents,
		})

		if err := c.sleep(ctx, c.cfg.DelayBetweenRequests); err != nil {
			return pr, err
		}
	}

	pr.Evaluation = alert.Evaluate(p, observations)
	if !pr.Evaluation.ShouldTrigger {
		return pr, nil
	}

	if _, err := c.store.UpdateProduct(ctx, p.ID, models.ProductPatch{Triggered: models.Bool(true)}); err != nil {
		// The alert is still reported; the next pass will try to latch again.
		log.Error().Err(err).Msg("Failed to latch product alert")
		pr.NotifyError = err.Error()
		return pr, nil
	}
	pr.Alerted = true

	best := pr.Evaluation.Best
	logging.LogAlert(log, p.ID, best.Retailer, best.PriceCents, p.TargetPriceCents)

	err := c.notifier.SendPriceAlert(ctx, notify.PriceAlert{
		ProductID:    p.ID,
		ProductName:  p.Name,
		Retailer:     best.Retailer,
		URL:          best.URL,
		PriceCents:   best.PriceCents,
		TargetCents:  p.TargetPriceCents,
		SavingsCents: pr.Evaluation.SavingsCents,
		Timestamp:    c.clock(),
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to deliver price alert")
		pr.NotifyError = err.Error()
	}
	return pr, nil
}

// checkRetailer returns an error only when the pass must stop.
func (c *Checker) checkRetailer(ctx context.Context, p models.Product, r models.RetailerRecord) (RetailerOutcome, error) {
	log := logging.WithRetailer(logging.WithProduct(c.loggerFor(ctx), p.ID), r.Retailer, r.URL)
	outcome := RetailerOutcome{
		URL:           r.URL,
		Retailer:      r.Retailer,
		PreviousCents: r.CurrentPriceCents,
	}

	start := c.clock()
	result, err := c.extractor.ExtractWithRetry(ctx, r.URL)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			outcome.Err, outcome.Error = ctxErr, ctxErr.Error()
			return outcome, ctxErr
		}
		logging.LogPriceCheck(log, p.ID, r.Retailer, 0, c.clock().Sub(start), err)
		outcome.Err, outcome.Error = err, err.Error()
		return outcome, nil
	}

	outcome.Retailer = result.Retailer
	outcome.Title = result.Title
	outcome.PriceCents = result.PriceCents

	_, err = c.store.UpdateRetailerPrice(ctx, p.ID, r.URL, models.RetailerPatch{
		CurrentPriceCents: models.Int64(result.PriceCents),
		Retailer:          models.String(result.Retailer),
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			outcome.Err, outcome.Error = ctxErr, ctxErr.Error()
			return outcome, ctxErr
		}
		// The listing may have been removed while the pass was running.
		log.Warn().Err(err).Msg("Failed to store price")
		outcome.Err, outcome.Error = err, err.Error()
		return outcome, nil
	}
	logging.LogPriceCheck(log, p.ID, result.Retailer, result.PriceCents, c.clock().Sub(start), nil)

	if c.archive != nil {
		err := c.archive.Record(ctx, store.Observation{
			ProductID:   p.ID,
			ProductName: p.Name,
			URL:         r.URL,
			Retailer:    result.Retailer,
			Title:       result.Title,
			PriceCents:  result.PriceCents,
			CheckedAt:   c.clock(),
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to archive observation")
		}
	}
	return outcome, nil
}
