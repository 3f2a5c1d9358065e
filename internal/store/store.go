// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"pricewatch/internal/models"
)

// ProductStore defines the interface for tracked product persistence.
type ProductStore interface {
	// LoadAll returns every tracked product. A store that has never been
	// written returns an empty slice.
	LoadAll(ctx context.Context) ([]models.Product, error)
	FindProduct(ctx context.Context, id string) (models.Product, error)

	// UpsertRetailer adds url to the product named name (case-insensitive),
	// creating the product when no such name exists. The target price is
	// overwritten either way.
	UpsertRetailer(ctx context.Context, name, url, retailer string, targetCents int64) (models.Product, error)

	RemoveProduct(ctx context.Context, id string) (bool, error)
	// RemoveRetailer removes url from the product and persists; the product
	// is removed with its last retailer. An untracked URL still persists
	// and reports true.
	RemoveRetailer(ctx context.Context, productID, url string) (bool, error)

	UpdateRetailerPrice(ctx context.Context, productID, url string, patch models.RetailerPatch) (models.Product, error)
	UpdateProduct(ctx context.Context, productID string, patch models.ProductPatch) (models.Product, error)

	Close() error
}

// ObservationStore records every successful price observation.
type ObservationStore interface {
	Record(ctx context.Context, obs Observation) error
	History(ctx context.Context, filter HistoryFilter) ([]Observation, error)
	DeleteProduct(ctx context.Context, productID string) (int64, error)
	Close() error
}

// Observation is one successful price check.
type Observation struct {
	ID          int64
	ProductID   string
	ProductName string
	URL         string
	Retailer    string
	Title       string
	PriceCents  int64
	CheckedAt   time.Time
}

// HistoryFilter represents filters for querying observations.
type HistoryFilter struct {
	ProductID string
	URL       string
	Since     time.Time
	// Limit keeps the most recent entries; zero means no limit.
	Limit int
}
