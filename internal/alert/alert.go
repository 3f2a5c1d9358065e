// Package alert decides whether a product's latest prices warrant an alert.
package alert

import "pricewatch/internal/models"

// Observation is one successful price read taken during a check pass.
type Observation struct {
	Retailer   string `json:"retailer"`
	URL        string `json:"url"`
	PriceCents int64  `json:"priceCents"`
}

// Evaluation is the outcome of comparing a pass's observations with the
// product's target price.
type Evaluation struct {
	HasBest bool        `json:"hasBest"`
	Best    Observation `json:"best"`
	// BelowTarget is true when at least one price is at or under the target.
	BelowTarget bool `json:"belowTarget"`
	// ShouldTrigger is BelowTarget on a product whose latch is still open.
	ShouldTrigger bool  `json:"shouldTrigger"`
	SavingsCents  int64 `json:"savingsCents"`
	DeficitCents  int64 `json:"deficitCents"`
}

// Evaluate is pure. With no observations nothing is best and nothing
// triggers. Equal prices resolve to the earliest observation.
func Evaluate(product models.Product, observations []Observation) Evaluation {
	var ev Evaluation
	if len(observations) == 0 {
		return ev
	}

	ev.HasBest = true
	ev.Best = observations[0]
	for _, o := range observations[1:] {
		if o.PriceCents < ev.Best.PriceCents {
			ev.Best = o
		}
	}

	target := product.TargetPriceCents
	ev.BelowTarget = ev.Best.PriceCents <= target
	ev.ShouldTrigger = ev.BelowTarget && !product.Triggered
	if ev.BelowTarget {
		ev.SavingsCents = target - ev.Best.PriceCents
	} else {
		ev.DeficitCents = ev.Best.PriceCents - target
	}
	return ev
}

// FromProduct builds observations from the stored current prices, skipping
// retailers that have never been read.
func FromProduct(product models.Product) []Observation {
	var out []Observation
	for _, r := range product.Retailers {
		if !r.HasPrice() {
			continue
		}
		out = append(out, Observation{Retailer: r.Retailer, URL: r.URL, PriceCents: *r.CurrentPriceCents})
	}
	return out
}
