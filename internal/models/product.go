// Package models contains the domain types shared by the store, the checker and the CLI.
package models

import (
	"strings"
	"time"
)

// UnknownTitle is used when a page exposes no recognisable product title.
const UnknownTitle = "Unknown Product"

// Product is a tracked item with one or more retailer listings.
type Product struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	TargetPriceCents int64            `json:"targetPriceCents"`
	CreatedAt        time.Time        `json:"createdAt"`
	Triggered        bool             `json:"triggered"`
	Retailers        []RetailerRecord `json:"retailers"`
}

// RetailerRecord is one retailer listing of a product, keyed by URL.
type RetailerRecord struct {
	URL               string       `json:"url"`
	Retailer          string       `json:"retailer"`
	CurrentPriceCents *int64       `json:"currentPriceCents"`
	LastChecked       *time.Time   `json:"lastChecked"`
	PriceHistory      []PricePoint `json:"priceHistory,omitzero"`
}

// PricePoint is one entry of a retailer's price history.
type PricePoint struct {
	PriceCents int64     `json:"priceCents"`
	Timestamp  time.Time `json:"timestamp"`
}

// NameMatches reports whether name refers to this product, ignoring case.
func (p *Product) NameMatches(name string) bool {
	return strings.EqualFold(strings.TrimSpace(p.Name), strings.TrimSpace(name))
}

// Retailer returns the record for url, or nil.
func (p *Product) Retailer(url string) *RetailerRecord {
	for i := range p.Retailers {
		if p.Retailers[i].URL == url {
			return &p.Retailers[i]
		}
	}
	return nil
}

// RemoveRetailer drops the record for url and reports whether it existed.
func (p *Product) RemoveRetailer(url string) bool {
	kept := p.Retailers[:0]
	removed := false
	for _, r := range p.Retailers {
		if r.URL == url {
			removed = true
			continue
		}
		kept = append(kept, r)
	}
	p.Retailers = kept
	return removed
}

// HasPrice reports whether the record has been checked successfully.
func (r *RetailerRecord) HasPrice() bool {
	return r.CurrentPriceCents != nil
}

// RetailerPatch lists the retailer fields a price update may change.
type RetailerPatch struct {
	CurrentPriceCents *int64
	Retailer          *string
}

// ProductPatch lists the product fields an update may change.
type ProductPatch struct {
	Name             *string
	TargetPriceCents *int64
	Triggered        *bool
}

// ApplyRetailerPatch returns r with the set patch fields applied.
func ApplyRetailerPatch(r RetailerRecord, patch RetailerPatch) RetailerRecord {
	if patch.CurrentPriceCents != nil {
		v := *patch.CurrentPriceCents
		r.CurrentPriceCents = &v
	}
	if patch.Retailer != nil {
		r.Retailer = *patch.Retailer
	}
	return r
}

// ApplyProductPatch returns p with the set patch fields applied.
func ApplyProductPatch(p Product, patch ProductPatch) Product {
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.TargetPriceCents != nil {
		p.TargetPriceCents = *patch.TargetPriceCents
	}
	if patch.Triggered != nil {
		p.Triggered = *patch.Triggered
	}
	return p
}

// Int64 returns a pointer to v.
func Int64(v int64) *int64 { return &v }

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }

// String returns a pointer to v.
func String(v string) *string { return &v }
