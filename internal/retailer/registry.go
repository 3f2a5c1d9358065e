// Package retailer holds the static table of supported retailers and the
// DOM selectors used to read a price and a title from their product pages.
package retailer

import (
	"net/url"
	"strings"
)

// Descriptor identifies a retailer and lists its selector candidates.
// Selector order is priority order: most specific and reliable first.
type Descriptor struct {
	Key            string
	Name           string
	Domain         string
	PriceSelectors []string
	TitleSelectors []string
}

// Matches reports whether the URL belongs to this retailer.
func (d Descriptor) Matches(rawURL string) bool {
	host := rawURL
	if u, err := url.Parse(strings.TrimSpace(rawURL)); err == nil && u.Host != "" {
		host = u.Host
	}
	return strings.Contains(strings.ToLower(host), d.Domain)
}

// Registry is an ordered, read-only set of descriptors.
type Registry struct {
	descriptors []Descriptor
}

// NewRegistry builds a registry that detects in the given order.
func NewRegistry(descriptors ...Descriptor) *Registry {
	ds := make([]Descriptor, len(descriptors))
	copy(ds, descriptors)
	return &Registry{descriptors: ds}
}

// Detect returns the first descriptor whose domain matches the URL.
func (r *Registry) Detect(rawURL string) (Descriptor, bool) {
	for _, d := range r.descriptors {
		if d.Matches(rawURL) {
			return d, true
		}
	}
	return Descriptor{}, false
}

// Names returns retailer display names in detection order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.descriptors))
	for _, d := range r.descriptors {
		names = append(names, d.Name)
	}
	return names
}

// Descriptors returns a copy of the registered descriptors in detection order.
func (r *Registry) Descriptors() []Descriptor {
	ds := make([]Descriptor, len(r.descriptors))
	copy(ds, r.descriptors)
	return ds
}

var defaultRegistry = NewRegistry(
	Descriptor{
		Key:    "amazon",
		Name:   "Amazon",
		Domain: "amazon.com",
		PriceSelectors: []string{
			".a-price .a-offscreen",
			"#priceblock_ourprice",
			"#priceblock_dealprice",
			".a-price-whole",
			"#corePrice_feature_div .a-offscreen",
		},
		TitleSelectors: []string{"#productTitle"},
	},
	Descriptor{
		Key:    "bestbuy",
		Name:   "Best Buy",
		Domain: "bestbuy.com",
		PriceSelectors: []string{
			`[data-testid="customer-price"] span[aria-hidden="true"]`,
			`.priceView-hero-price span[aria-hidden="true"]`,
			".priceView-customer-price span",
		},
		TitleSelectors: []string{
			".sku-title h1",
			`[data-testid="product-title"]`,
		},
	},
	Descriptor{
		Key:    "walmart",
		Name:   "Walmart",
		Domain: "walmart.com",
		PriceSelectors: []string{
			`[itemprop="price"]`,
			`span[data-automation-id="product-price"]`,
			`[data-testid="price-wrap"] span`,
		},
		TitleSelectors: []string{
			`[itemprop="name"]`,
			`h1[data-automation-id="product-title"]`,
		},
	},
	Descriptor{
		Key:    "costco",
		Name:   "Costco",
		Domain: "costco.com",
		PriceSelectors: []string{
			".price-value",
			".product-price .value",
			`[automation-id="productPriceOutput"]`,
		},
		TitleSelectors: []string{
			`h1[automation-id="productName"]`,
			".product-h1",
		},
	},
	Descriptor{
		Key:    "gamestop",
		Name:   "GameStop",
		Domain: "gamestop.com",
		PriceSelectors: []string{
			".actual-price",
			`[data-testid="product-price"]`,
			".product-price",
			".buy-box__price",
			".price-tag",
			`[class*="price"][class*="actual"]`,
			`[class*="ProductPrice"]`,
		},
		TitleSelectors: []string{
			`h1[class*="ProductTitle"]`,
			"h1.product-name",
			`[data-testid="product-title"]`,
			".product-name-wrapper h1",
			"h1",
		},
	},
	Descriptor{
		Key:    "microcenter",
		Name:   "Micro Center",
		Domain: "microcenter.com",
		PriceSelectors: []string{
			`[itemprop="price"]`,
			"[data-price]",
			".price",
			"#pricing",
			".product-price",
			`[class*="ProductPrice"]`,
			`[class*="price"]`,
		},
		TitleSelectors: []string{
			"[data-product-name]",
			"h1[data-name]",
			`[itemprop="name"]`,
			"h1.product-title",
			"h1",
			"h2.product-name",
		},
	},
	Descriptor{
		Key:    "target",
		Name:   "Target",
		Domain: "target.com",
		PriceSelectors: []string{
			`[data-test="product-price"]`,
			`[data-test="product-price-value"]`,
			`span[data-test*="price"]`,
			`[class*="Price"]`,
			`[class*="currentPrice"]`,
			`div[data-test="product-price"] span`,
		},
		TitleSelectors: []string{
			`[data-test="product-title"]`,
			`h1[data-test*="title"]`,
			`h1[class*="Title"]`,
			`[class*="ProductTitle"]`,
			"h1",
		},
	},
)

// Default returns the built-in registry. Detection order is amazon, bestbuy,
// walmart, costco, gamestop, microcenter, target.
func Default() *Registry {
	return defaultRegistry
}
