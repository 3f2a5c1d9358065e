package render

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/rs/zerolog"

	"pricewatch/internal/errors"
	"pricewatch/pkg/utils"
)

// DefaultUserAgent is sent when no user agent is configured.
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// HTTPConfig configures an HTTPRenderer.
type HTTPConfig struct {
	UserAgent      string
	RequestTimeout time.Duration
	SettleDelay    time.Duration
	// Transport overrides the HTTP transport, mainly for tests.
	Transport http.RoundTripper
}

// HTTPRenderer fetches pages with a colly collector and parses them with goquery.
// It does not execute scripts, so content rendered client side is not visible.
type HTTPRenderer struct {
	cfg    HTTPConfig
	logger zerolog.Logger
}

// NewHTTPRenderer creates a new HTTPRenderer.
func NewHTTPRenderer(cfg HTTPConfig, logger zerolog.Logger) *HTTPRenderer {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Transport == nil {
		cfg.Transport = http.DefaultTransport
	}
	return &HTTPRenderer{cfg: cfg, logger: logger}
}

// contextTransport binds every outgoing request to ctx so that cancelling
// the check aborts the fetch in flight.
type contextTransport struct {
	ctx  context.Context
	base http.RoundTripper
}

func (t contextTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.base.RoundTrip(req.WithContext(t.ctx))
}

// Open implements Renderer. Each call uses a fresh collector so no cookies or
// visit history leak between attempts.
func (r *HTTPRenderer) Open(ctx context.Context, url string) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := colly.NewCollector(
		colly.UserAgent(r.cfg.UserAgent),
		colly.AllowURLRevisit(),
	)
	c.WithTransport(contextTransport{ctx: ctx, base: r.cfg.Transport})
	if r.cfg.RequestTimeout > 0 {
		c.SetRequestTimeout(r.cfg.RequestTimeout)
	}

	c.OnRequest(func(req *colly.Request) {
		req.Headers.Set("Accept-Language", "en-US,en;q=0.9")
		req.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	})

	var body []byte
	var status int
	c.OnResponse(func(resp *colly.Response) {
		status = resp.StatusCode
		body = resp.Body
	})

	start := time.Now()
	if err := c.Visit(url); err != nil {
		r.logger.Debug().Err(err).Str("url", url).Dur("duration", time.Since(start)).Msg("Page fetch failed")
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %s: %w", errors.ErrRender, url, err)
	}
	if body == nil {
		return nil, fmt.Errorf("%w: %s: empty response", errors.ErrRender, url)
	}
	r.logger.Debug().Str("url", url).Int("status", status).Int("bytes", len(body)).
		Dur("duration", time.Since(start)).Msg("Page fetched")

	page, err := newDocumentPage(bytes.NewReader(body), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %w", errors.ErrRender, url, err)
	}

	if err := utils.SleepContext(ctx, r.cfg.SettleDelay); err != nil {
		page.Close()
		return nil, err
	}
	return page, nil
}
