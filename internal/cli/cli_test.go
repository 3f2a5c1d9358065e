package cli

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricewatch/internal/checker"
	"pricewatch/internal/errors"
	"pricewatch/internal/models"
	"pricewatch/internal/render"
	"pricewatch/internal/store"
)

const (
	amazonURL = "https://www.amazon.com/dp/B0WIDGET"
	targetURL = "https://www.target.com/p/widget/-/A-1"
	ebayURL   = "https://www.ebay.com/itm/1"
)

const testConfig = `
[scraper]
max_retries = 2
delay_between_requests = "2s"

[history]
enabled = true
max_entries = 10

[storage]
archive_enabled = true

[notifications]
enabled = false

[logging]
level = "error"
file = false
`

func amazonPage(price string) string {
	return `<html><body><span id="productTitle">Widget</span><span id="priceblock_ourprice">` + price + `</span></body></html>`
}

func targetPage(price string) string {
	return `<html><body><h1>Widget</h1><span data-test="product-price">` + price + `</span></body></html>`
}

type testEnv struct {
	t        *testing.T
	dir      string
	renderer *render.StaticRenderer
	now      time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	for _, k := range []string{"MAX_RETRIES", "REQUEST_TIMEOUT", "DELAY_BETWEEN_REQUESTS",
		"DEBUG_SCRAPER", "ENABLE_PRICE_HISTORY", "MAX_HISTORY_ENTRIES", "PRICEWATCH_DATA_FILE"} {
		t.Setenv(k, "")
	}

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(testConfig), 0644))
	return &testEnv{
		t:        t,
		dir:      dir,
		renderer: render.NewStaticRenderer(nil),
		now:      time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC),
	}
}

// run executes one command the way a separate process would: a fresh App
// that is closed afterwards.
func (e *testEnv) run(args ...string) (string, error) {
	e.t.Helper()
	app := NewApp(
		WithRenderer(e.renderer),
		WithSleep(func(ctx context.Context, d time.Duration) error { return ctx.Err() }),
		WithClock(func() time.Time { return e.now }),
	)
	cmd := NewRootCmd(app)

	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", e.dir}, args...))

	err := cmd.ExecuteContext(context.Background())
	require.NoError(e.t, app.Close())
	return stdout.String(), err
}

func (e *testEnv) products() []models.Product {
	e.t.Helper()
	out, err := e.run("--json", "list")
	require.NoError(e.t, err)
	var products []models.Product
	require.NoError(e.t, json.Unmarshal([]byte(out), &products))
	return products
}

func (e *testEnv) addWidget(target string, urls ...string) models.Product {
	e.t.Helper()
	out, err := e.run(append([]string{"--json", "add", "Widget", target}, urls...)...)
	require.NoError(e.t, err)
	var res addResult
	require.NoError(e.t, json.Unmarshal([]byte(out), &res))
	require.NotNil(e.t, res.Product)
	return *res.Product
}

func TestVersion(t *testing.T) {
	e := newTestEnv(t)
	out, err := e.run("version")
	require.NoError(t, err)
	assert.Contains(t, out, "pricewatch v"+Version)
}

func TestAddSkipsFailingURLs(t *testing.T) {
	e := newTestEnv(t)
	e.renderer.SetPage(amazonURL, amazonPage("$60.00"))

	out, err := e.run("--json", "add", "Widget", "50", amazonURL, ebayURL, "ftp://example.com/x")
	require.NoError(t, err)

	var res addResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Len(t, res.URLs, 3)
	assert.Empty(t, res.URLs[0].Error)
	assert.Equal(t, "Amazon", res.URLs[0].Retailer)
	assert.Equal(t, int64(6000), res.URLs[0].PriceCents)
	assert.NotEmpty(t, res.URLs[1].Error)
	assert.Contains(t, res.URLs[2].Error, "http(s)")

	products := e.products()
	require.Len(t, products, 1)
	p := products[0]
	assert.Equal(t, "Widget", p.Name)
	assert.Equal(t, int64(5000), p.TargetPriceCents)
	require.Len(t, p.Retailers, 1)
	assert.Equal(t, "Amazon", p.Retailers[0].Retailer)
	assert.Nil(t, p.Retailers[0].CurrentPriceCents, "add validates but does not store a price")
}

func TestAddRejectsInvalidInput(t *testing.T) {
	e := newTestEnv(t)
	e.renderer.SetPage(amazonURL, amazonPage("$60.00"))

	tests := []struct {
		name string
		args []string
	}{
		{"empty name", []string{"add", "  ", "50", amazonURL}},
		{"zero target", []string{"add", "Widget", "0", amazonURL}},
		{"negative target", []string{"add", "Widget", "--", "-5", amazonURL}},
		{"non numeric target", []string{"add", "Widget", "cheap", amazonURL}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.run(tt.args...)
			var verr *errors.ValidationError
			assert.True(t, errors.As(err, &verr), "got %v", err)
		})
	}

	_, err := e.run("add", "Widget", "50", ebayURL)
	assert.EqualError(t, err, "no retailer URL could be added")
	assert.Empty(t, e.products())
}

func TestAddJoinsExistingProductByName(t *testing.T) {
	e := newTestEnv(t)
	e.renderer.SetPage(amazonURL, amazonPage("$60.00"))
	e.renderer.SetPage(targetURL, targetPage("$58.00"))

	first := e.addWidget("50", amazonURL)
	_, err := e.run("--json", "add", "widget", "45", targetURL)
	require.NoError(t, err)

	products := e.products()
	require.Len(t, products, 1)
	assert.Equal(t, first.ID, products[0].ID)
	assert.Equal(t, int64(4500), products[0].TargetPriceCents)
	assert.Len(t, products[0].Retailers, 2)
}

func TestAppend(t *testing.T) {
	e := newTestEnv(t)
	e.renderer.SetPage(amazonURL, amazonPage("$60.00"))
	e.renderer.SetPage(targetURL, targetPage("$58.00"))
	p := e.addWidget("50", amazonURL)

	out, err := e.run("--json", "append", p.ID, amazonURL, targetURL)
	require.NoError(t, err)

	var res addResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Len(t, res.URLs, 2)
	assert.Contains(t, res.URLs[0].Error, "already tracked")
	assert.Equal(t, "Target", res.URLs[1].Retailer)

	products := e.products()
	require.Len(t, products[0].Retailers, 2)
	assert.Equal(t, int64(5000), products[0].TargetPriceCents)

	_, err = e.run("append", "no-such-id", targetURL)
	assert.True(t, errors.Is(err, errors.ErrProductNotFound), "got %v", err)
}

func TestCheckWidgetScenario(t *testing.T) {
	e := newTestEnv(t)
	e.renderer.SetPage(amazonURL, amazonPage("$60.00"))
	p := e.addWidget("50", amazonURL)

	out, err := e.run("check")
	require.NoError(t, err)
	assert.Contains(t, out, "Waiting for a $10.00 price drop")

	e.renderer.SetPage(amazonURL, amazonPage("$45.00"))
	out, err = e.run("--json", "check")
	require.NoError(t, err)

	var report checker.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	require.Len(t, report.Products, 1)
	assert.True(t, report.Products[0].Alerted)
	assert.Equal(t, int64(500), report.Products[0].Evaluation.SavingsCents)

	products := e.products()
	assert.True(t, products[0].Triggered)
	require.NotNil(t, products[0].Retailers[0].CurrentPriceCents)
	assert.Equal(t, int64(4500), *products[0].Retailers[0].CurrentPriceCents)

	// A new target re-arms the latch.
	_, err = e.run("target", p.ID, "40")
	require.NoError(t, err)
	products = e.products()
	assert.False(t, products[0].Triggered)
	assert.Equal(t, int64(4000), products[0].TargetPriceCents)
}

func TestCheckTextShowsAlertAndFailures(t *testing.T) {
	e := newTestEnv(t)
	e.renderer.SetPage(amazonURL, amazonPage("$60.00"))
	e.renderer.SetPage(targetURL, targetPage("$60.00"))
	p := e.addWidget("50", amazonURL, targetURL)

	e.renderer.SetPage(amazonURL, `<html><body>sold out</body></html>`)
	e.renderer.SetPage(targetURL, targetPage("$47.50"))

	out, err := e.run("check", p.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "✗ Amazon")
	assert.Contains(t, out, "Best: $47.50 at Target")
	assert.Contains(t, out, "ALERT")
	assert.Contains(t, out, "Price alert: Widget", "terminal notification")
	assert.Contains(t, out, "Checked 1 retailer(s), 1 failed, 1 alert(s)")
}

func TestListShowsBestStoredPrice(t *testing.T) {
	e := newTestEnv(t)
	e.renderer.SetPage(amazonURL, amazonPage("$60.00"))
	e.renderer.SetPage(targetURL, targetPage("$55.00"))
	e.addWidget("50", amazonURL, targetURL)

	out, err := e.run("list")
	require.NoError(t, err)
	assert.NotContains(t, out, "Best:", "nothing checked yet")

	_, err = e.run("check")
	require.NoError(t, err)
	out, err = e.run("list")
	require.NoError(t, err)
	assert.Contains(t, out, "Best: $55.00 at Target ($5.00 above target)")

	e.renderer.SetPage(amazonURL, amazonPage("$45.00"))
	_, err = e.run("check")
	require.NoError(t, err)
	out, err = e.run("list")
	require.NoError(t, err)
	assert.Contains(t, out, "Best: $45.00 at Amazon ($5.00 under target)")
	assert.Contains(t, out, "[alerted]")
}

func TestHistoryCSV(t *testing.T) {
	e := newTestEnv(t)
	e.renderer.SetPage(amazonURL, amazonPage("$60.00"))
	p := e.addWidget("50", amazonURL)

	_, err := e.run("check")
	require.NoError(t, err)
	e.renderer.SetPage(amazonURL, amazonPage("$55.00"))
	e.now = e.now.Add(time.Hour)
	_, err = e.run("check")
	require.NoError(t, err)

	out, err := e.run("history", p.ID, "--csv")
	require.NoError(t, err)
	records, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "checked_at", records[0][0])
	assert.Contains(t, records[1], "6000")
	assert.Contains(t, records[2], "5500")

	out, err = e.run("--json", "history", p.ID, "--limit", "1")
	require.NoError(t, err)
	var entries []historyEntry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, int64(5500), entries[0].PriceCents)
}

func TestHistoryFromDataFile(t *testing.T) {
	now := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	p := models.Product{
		ID:   "p1",
		Name: "Widget",
		Retailers: []models.RetailerRecord{
			{URL: amazonURL, Retailer: "Amazon", PriceHistory: []models.PricePoint{
				{PriceCents: 6000, Timestamp: now.Add(-48 * time.Hour)},
				{PriceCents: 5500, Timestamp: now.Add(-2 * time.Hour)},
			}},
			{URL: targetURL, Retailer: "Target", PriceHistory: []models.PricePoint{
				{PriceCents: 5800, Timestamp: now.Add(-24 * time.Hour)},
			}},
		},
	}

	all := historyFromProduct(p, storeFilter("", time.Time{}, 0))
	require.Len(t, all, 3)
	assert.Equal(t, []int64{6000, 5800, 5500}, cents(all))

	recent := historyFromProduct(p, storeFilter("", now.Add(-30*time.Hour), 0))
	assert.Equal(t, []int64{5800, 5500}, cents(recent))

	amazon := historyFromProduct(p, storeFilter(amazonURL, time.Time{}, 1))
	assert.Equal(t, []int64{5500}, cents(amazon))
}

func TestRemoveCommands(t *testing.T) {
	e := newTestEnv(t)
	e.renderer.SetPage(amazonURL, amazonPage("$60.00"))
	e.renderer.SetPage(targetURL, targetPage("$58.00"))
	p := e.addWidget("50", amazonURL, targetURL)

	_, err := e.run("remove-retailer", p.ID, ebayURL)
	assert.True(t, errors.Is(err, errors.ErrRetailerNotFound), "got %v", err)

	_, err = e.run("remove-retailer", p.ID, amazonURL)
	require.NoError(t, err)
	require.Len(t, e.products()[0].Retailers, 1)

	_, err = e.run("remove", p.ID)
	require.NoError(t, err)
	assert.Empty(t, e.products())

	_, err = e.run("remove", p.ID)
	assert.True(t, errors.Is(err, errors.ErrProductNotFound), "got %v", err)
}

func TestProbeFromHTMLFile(t *testing.T) {
	e := newTestEnv(t)
	file := filepath.Join(t.TempDir(), "page.html")
	require.NoError(t, os.WriteFile(file, []byte(targetPage("$1,299.99")), 0644))

	out, err := e.run("--json", "probe", targetURL, "--html", file)
	require.NoError(t, err)
	assert.Contains(t, out, `"retailer": "Target"`)
	assert.Contains(t, out, `"priceCents": 129999`)
	assert.Equal(t, 0, e.renderer.Opened(), "probe with --html never uses the configured renderer")
	assert.Empty(t, e.products())
}

func TestRetailersAndConfig(t *testing.T) {
	e := newTestEnv(t)

	out, err := e.run("retailers")
	require.NoError(t, err)
	assert.Contains(t, out, "amazon.com")
	assert.Contains(t, out, "target.com")

	out, err = e.run("config", "path")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(e.dir, "config.toml"), strings.TrimSpace(out))

	_, err = e.run("config", "validate")
	require.NoError(t, err)
}

func storeFilter(url string, since time.Time, limit int) store.HistoryFilter {
	return store.HistoryFilter{ProductID: "p1", URL: url, Since: since, Limit: limit}
}

func cents(obs []store.Observation) []int64 {
	out := make([]int64, 0, len(obs))
	for _, o := range obs {
		out = append(out, o.PriceCents)
	}
	return out
}

func TestConfigShowMasksNotificationCredentials(t *testing.T) {
	e := newTestEnv(t)
	const token = "AAHdqTcvCH1vGWJxfSeofSAs0K5PALDsaw"
	cfg := testConfig + `
[notifications.webhook]
url = "https://example.com/hook?token=supersecretvalue"

[notifications.shoutrrr]
urls = ["telegram://123456789:` + token + `@telegram?chats=@deals"]
`
	require.NoError(t, os.WriteFile(filepath.Join(e.dir, "config.toml"), []byte(cfg), 0644))

	for _, args := range [][]string{{"config", "show"}, {"--json", "config", "show"}} {
		out, err := e.run(args...)
		require.NoError(t, err)
		assert.NotContains(t, out, token)
		assert.NotContains(t, out, "supersecretvalue")
		assert.Contains(t, out, "telegram://123456789:AAHd")
	}
}
