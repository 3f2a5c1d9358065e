package extract

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricewatch/internal/errors"
	"pricewatch/internal/models"
	"pricewatch/internal/render"
	"pricewatch/internal/retailer"
)

const (
	amazonURL  = "https://www.amazon.com/dp/B0WIDGET"
	bestBuyURL = "https://www.bestbuy.com/site/widget/1.p"
	targetURL  = "https://www.target.com/p/widget/-/A-1"
)

func page(body string) string {
	return "<!DOCTYPE html><html><body>" + body + "</body></html>"
}

type recordingSleeper struct {
	delays []time.Duration
}

func (r *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return ctx.Err()
}

func newTestEngine(sr *render.StaticRenderer, attempts int) (*Engine, *recordingSleeper) {
	sleeper := &recordingSleeper{}
	e := NewEngine(retailer.Default(), sr, Config{MaxAttempts: attempts, BaseDelay: time.Second},
		zerolog.Nop(), WithSleep(sleeper.Sleep))
	return e, sleeper
}

func TestExtractAmazon(t *testing.T) {
	sr := render.NewStaticRenderer(map[string]string{
		amazonURL: page(`
			<span id="productTitle"> Widget 3000 </span>
			<div class="a-price"><span class="a-offscreen">Now $1,299.99</span></div>
			<span class="a-price-whole">1,299</span>`),
	})
	e, _ := newTestEngine(sr, 3)

	got, err := e.Extract(context.Background(), amazonURL)
	require.NoError(t, err)
	assert.Equal(t, int64(129999), got.PriceCents)
	assert.Equal(t, "Widget 3000", got.Title)
	assert.Equal(t, "Amazon", got.Retailer)
	assert.Equal(t, "USD", got.Currency)
	assert.Equal(t, ".a-price .a-offscreen", got.Selector)
	assert.Equal(t, 0, sr.OpenPages())
}

func TestExtractFallsBackThroughSelectors(t *testing.T) {
	sr := render.NewStaticRenderer(map[string]string{
		// The first Best Buy selector matches an element with no text.
		bestBuyURL: page(`
			<div data-testid="customer-price"><span aria-hidden="true"></span></div>
			<div class="priceView-customer-price"><span>$249.99</span></div>
			<div data-testid="product-title">Widget Mini</div>`),
	})
	e, _ := newTestEngine(sr, 1)

	got, err := e.Extract(context.Background(), bestBuyURL)
	require.NoError(t, err)
	assert.Equal(t, int64(24999), got.PriceCents)
	assert.Equal(t, ".priceView-customer-price span", got.Selector)
	assert.Equal(t, "Widget Mini", got.Title)
}

func TestExtractMissingTitleIsNotFatal(t *testing.T) {
	sr := render.NewStaticRenderer(map[string]string{
		amazonURL: page(`<span id="priceblock_ourprice">$45.00</span>`),
	})
	e, _ := newTestEngine(sr, 1)

	got, err := e.Extract(context.Background(), amazonURL)
	require.NoError(t, err)
	assert.Equal(t, models.UnknownTitle, got.Title)
	assert.Equal(t, int64(4500), got.PriceCents)
}

func TestExtractErrors(t *testing.T) {
	tests := []struct {
		name string
		url  string
		html string
		want error
	}{
		{"unsupported", "https://www.ebay.com/itm/1", "", errors.ErrUnsupportedRetailer},
		{"no price", amazonURL, page(`<span id="productTitle">Widget</span>`), errors.ErrPriceNotFound},
		{"bad price", amazonURL, page(`<span id="priceblock_dealprice">See price in cart</span>`), errors.ErrInvalidPriceFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sr := render.NewStaticRenderer(map[string]string{tt.url: tt.html})
			e, _ := newTestEngine(sr, 1)

			_, err := e.Extract(context.Background(), tt.url)
			assert.True(t, errors.Is(err, tt.want), "got %v, want %v", err, tt.want)
			assert.Equal(t, 0, sr.OpenPages(), "page must be released")
		})
	}
}

func TestExtractRenderFailureIsRenderError(t *testing.T) {
	sr := render.NewStaticRenderer(nil)
	sr.FailNext(targetURL, fmt.Errorf("connection reset"))
	e, _ := newTestEngine(sr, 1)

	_, err := e.Extract(context.Background(), targetURL)
	assert.True(t, errors.Is(err, errors.ErrRender), "got %v", err)
}

func TestExtractRenderFailureKeepsCause(t *testing.T) {
	sr := render.NewStaticRenderer(nil)
	sr.FailNext(targetURL, fmt.Errorf("dial: %w", context.DeadlineExceeded))
	e, _ := newTestEngine(sr, 1)

	_, err := e.Extract(context.Background(), targetURL)
	assert.ErrorIs(t, err, errors.ErrRender)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	errQuota := fmt.Errorf("quota exhausted")
	sr.FailNext(targetURL, errors.ErrRender, errQuota)
	e, _ = newTestEngine(sr, 2)

	_, err = e.ExtractWithRetry(context.Background(), targetURL)
	assert.ErrorIs(t, err, errQuota, "last attempt's cause must surface")
	assert.ErrorIs(t, err, errors.ErrRender)
}

func TestExtractWithRetryLinearBackoffAndLastError(t *testing.T) {
	sr := render.NewStaticRenderer(map[string]string{
		targetURL: page(`<span data-test="product-price">$19.99</span>`),
	})
	sr.FailNext(targetURL, errors.ErrRender, errors.ErrRender, fmt.Errorf("%w: final", errors.ErrPriceNotFound))
	e, sleeper := newTestEngine(sr, 3)

	_, err := e.ExtractWithRetry(context.Background(), targetURL)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrPriceNotFound), "last attempt's error must surface, got %v", err)

	var extErr *errors.ExtractionError
	require.True(t, errors.As(err, &extErr))
	assert.Equal(t, 3, extErr.Attempts)
	assert.Equal(t, "Target", extErr.Retailer)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, sleeper.delays)
}

func TestExtractWithRetryRecovers(t *testing.T) {
	sr := render.NewStaticRenderer(map[string]string{
		targetURL: page(`<span data-test="product-price">$19.99</span><h1>Widget</h1>`),
	})
	sr.FailNext(targetURL, errors.ErrRender)
	e, sleeper := newTestEngine(sr, 3)

	got, err := e.ExtractWithRetry(context.Background(), targetURL)
	require.NoError(t, err)
	assert.Equal(t, int64(1999), got.PriceCents)
	assert.Equal(t, "Widget", got.Title)
	assert.Equal(t, []time.Duration{time.Second}, sleeper.delays)
	assert.Equal(t, 0, sr.OpenPages())
}

func TestExtractWithRetryDoesNotRetryUnsupported(t *testing.T) {
	sr := render.NewStaticRenderer(nil)
	e, sleeper := newTestEngine(sr, 5)

	_, err := e.ExtractWithRetry(context.Background(), "https://www.ebay.com/itm/1")
	assert.True(t, errors.Is(err, errors.ErrUnsupportedRetailer))
	assert.Empty(t, sleeper.delays)
	assert.Equal(t, 0, sr.Opened())
}

func TestExtractWithRetryExhaustsOnParseFailures(t *testing.T) {
	sr := render.NewStaticRenderer(map[string]string{
		amazonURL: page(`<span id="priceblock_ourprice">Currently unavailable</span>`),
	})
	e, sleeper := newTestEngine(sr, 4)

	_, err := e.ExtractWithRetry(context.Background(), amazonURL)
	assert.True(t, errors.Is(err, errors.ErrInvalidPriceFormat))
	assert.Equal(t, 4, sr.Opened())
	assert.Len(t, sleeper.delays, 3)
	assert.Equal(t, 0, sr.OpenPages())
}
