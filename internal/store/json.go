package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"pricewatch/internal/errors"
	"pricewatch/internal/models"
)

// JSONOptions configures a JSONStore.
type JSONOptions struct {
	Path          string
	EnableHistory bool
	// MaxHistory bounds each retailer's price history; older entries are
	// dropped first. Zero keeps no history entries.
	MaxHistory int
	Clock      func() time.Time
	NewID      func() string
	Logger     zerolog.Logger
}

// JSONStore implements ProductStore on a single JSON document.
//
// Every write rewrites the whole file and goes through one writer goroutine
// in FIFO order. Mutating operations hold mu across load, modify and write so
// that read-modify-write cycles never interleave. Nothing is cached: each
// operation starts from the file on disk.
type JSONStore struct {
	path   string
	opts   JSONOptions
	logger zerolog.Logger

	mu sync.Mutex

	queueMu sync.RWMutex
	closed  bool
	writes  chan writeRequest
	done    chan struct{}
}

type writeRequest struct {
	data   []byte
	result chan error
}

// NewJSONStore creates the data directory and starts the writer.
func NewJSONStore(opts JSONOptions) (*JSONStore, error) {
	if opts.Path == "" {
		return nil, errors.NewValidationError("path", opts.Path, "data file path is required")
	}
	if opts.MaxHistory < 0 {
		return nil, errors.NewValidationError("max_history", opts.MaxHistory, "must be non-negative")
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return uuid.NewString() }
	}
	if err := os.MkdirAll(filepath.Dir(opts.Path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	s := &JSONStore{
		path:   opts.Path,
		opts:   opts,
		logger: opts.Logger.With().Str("component", "store").Logger(),
		writes: make(chan writeRequest, 16),
		done:   make(chan struct{}),
	}
	go s.runWriter()
	return s, nil
}

// Path returns the data file location.
func (s *JSONStore) Path() string {
	return s.path
}

func (s *JSONStore) runWriter() {
	defer close(s.done)
	for req := range s.writes {
		req.result <- writeFileAtomic(s.path, req.data)
	}
}

// enqueue schedules a full rewrite of the collection and returns a channel
// that receives the outcome once the write settles.
func (s *JSONStore) enqueue(products []models.Product) <-chan error {
	result := make(chan error, 1)

	if products == nil {
		products = []models.Product{}
	}
	data, err := json.MarshalIndent(products, "", "  ")
	if err != nil {
		result <- fmt.Errorf("failed to encode products: %w", err)
		return result
	}

	s.queueMu.RLock()
	defer s.queueMu.RUnlock()
	if s.closed {
		result <- errors.ErrStoreClosed
		return result
	}
	s.writes <- writeRequest{data: data, result: result}
	return result
}

func (s *JSONStore) save(products []models.Product) error {
	err := <-s.enqueue(products)
	if err != nil {
		return err
	}
	s.logger.Debug().Int("products", len(products)).Msg("Products saved")
	return nil
}

// writeFileAtomic replaces path so that readers see either the old or the
// new document, never a partial one.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("failed to write products: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("failed to sync products: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("failed to replace data file: %w", err)
	}
	return nil
}

func (s *JSONStore) load() ([]models.Product, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []models.Product{}, nil
		}
		return nil, fmt.Errorf("failed to read products: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return []models.Product{}, nil
	}

	var products []models.Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", s.path, err)
	}
	if products == nil {
		products = []models.Product{}
	}
	return products, nil
}

// LoadAll implements ProductStore.
func (s *JSONStore) LoadAll(ctx context.Context) ([]models.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.load()
}

// FindProduct implements ProductStore.
func (s *JSONStore) FindProduct(ctx context.Context, id string) (models.Product, error) {
	products, err := s.LoadAll(ctx)
	if err != nil {
		return models.Product{}, err
	}
	if i := indexOf(products, id); i >= 0 {
		return products[i], nil
	}
	return models.Product{}, errors.NewStoreError("find", id, "", errors.ErrProductNotFound)
}

func indexOf(products []models.Product, id string) int {
	for i := range products {
		if products[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *JSONStore) newRecord(url, retailer string) models.RetailerRecord {
	r := models.RetailerRecord{URL: url, Retailer: retailer}
	if s.opts.EnableHistory {
		r.PriceHistory = []models.PricePoint{}
	}
	return r
}

// UpsertRetailer implements ProductStore.
func (s *JSONStore) UpsertRetailer(ctx context.Context, name, url, retailer string, targetCents int64) (models.Product, error) {
	if err := ctx.Err(); err != nil {
		return models.Product{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	products, err := s.load()
	if err != nil {
		return models.Product{}, err
	}

	idx := -1
	for i := range products {
		if products[i].NameMatches(name) {
			idx = i
			break
		}
	}

	if idx >= 0 {
		p := &products[idx]
		if r := p.Retailer(url); r != nil {
			r.Retailer = retailer
		} else {
			p.Retailers = append(p.Retailers, s.newRecord(url, retailer))
		}
		p.TargetPriceCents = targetCents
	} else {
		products = append(products, models.Product{
			ID:               s.opts.NewID(),
			Name:             name,
			TargetPriceCents: targetCents,
			CreatedAt:        s.opts.Clock().UTC(),
			Triggered:        false,
			Retailers:        []models.RetailerRecord{s.newRecord(url, retailer)},
		})
		idx = len(products) - 1
	}

	if err := s.save(products); err != nil {
		return models.Product{}, errors.NewStoreError("upsert_retailer", products[idx].ID, url, err)
	}
	s.logger.Info().Str("product_id", products[idx].ID).Str("url", url).Str("retailer", retailer).Msg("Retailer saved")
	return products[idx], nil
}

// RemoveProduct implements ProductStore.
func (s *JSONStore) RemoveProduct(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	products, err := s.load()
	if err != nil {
		return false, err
	}
	i := indexOf(products, id)
	if i < 0 {
		return false, nil
	}
	products = append(products[:i], products[i+1:]...)

	if err := s.save(products); err != nil {
		return false, errors.NewStoreError("remove_product", id, "", err)
	}
	s.logger.Info().Str("product_id", id).Msg("Product removed")
	return true, nil
}

// RemoveRetailer implements ProductStore.
func (s *JSONStore) RemoveRetailer(ctx context.Context, productID, url string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	products, err := s.load()
	if err != nil {
		return false, err
	}
	i := indexOf(products, productID)
	if i < 0 {
		return false, errors.NewStoreError("remove_retailer", productID, url, errors.ErrProductNotFound)
	}

	if !products[i].RemoveRetailer(url) {
		s.logger.Debug().Str("product_id", productID).Str("url", url).Msg("Retailer not tracked, nothing removed")
	}
	if len(products[i].Retailers) == 0 {
		products = append(products[:i], products[i+1:]...)
		s.logger.Info().Str("product_id", productID).Msg("Last retailer removed, removing product")
	}

	if err := s.save(products); err != nil {
		return false, errors.NewStoreError("remove_retailer", productID, url, err)
	}
	return true, nil
}

// UpdateRetailerPrice implements ProductStore. History is appended before
// the patch is applied, and only when the price differs from the stored one.
func (s *JSONStore) UpdateRetailerPrice(ctx context.Context, productID, url string, patch models.RetailerPatch) (models.Product, error) {
	if err := ctx.Err(); err != nil {
		return models.Product{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	products, err := s.load()
	if err != nil {
		return models.Product{}, err
	}
	i := indexOf(products, productID)
	if i < 0 {
		return models.Product{}, errors.NewStoreError("update_retailer", productID, url, errors.ErrProductNotFound)
	}
	r := products[i].Retailer(url)
	if r == nil {
		return models.Product{}, errors.NewStoreError("update_retailer", productID, url, errors.ErrRetailerNotFound)
	}

	now := s.opts.Clock().UTC()
	if s.opts.EnableHistory && patch.CurrentPriceCents != nil {
		r.PriceHistory = appendHistory(r.PriceHistory, r.CurrentPriceCents, *patch.CurrentPriceCents, now, s.opts.MaxHistory)
	}

	*r = models.ApplyRetailerPatch(*r, patch)
	r.LastChecked = &now

	if err := s.save(products); err != nil {
		return models.Product{}, errors.NewStoreError("update_retailer", productID, url, err)
	}
	return products[i], nil
}

// appendHistory adds price to history when it differs from current and keeps
// only the newest max entries.
func appendHistory(history []models.PricePoint, current *int64, price int64, at time.Time, max int) []models.PricePoint {
	if history == nil {
		history = []models.PricePoint{}
	}
	if current != nil && *current == price {
		return history
	}
	history = append(history, models.PricePoint{PriceCents: price, Timestamp: at})
	if len(history) > max {
		trimmed := make([]models.PricePoint, max)
		copy(trimmed, history[len(history)-max:])
		history = trimmed
	}
	return history
}

// UpdateProduct implements ProductStore.
func (s *JSONStore) UpdateProduct(ctx context.Context, productID string, patch models.ProductPatch) (models.Product, error) {
	if err := ctx.Err(); err != nil {
		return models.Product{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	products, err := s.load()
	if err != nil {
		return models.Product{}, err
	}
	i := indexOf(products, productID)
	if i < 0 {
		return models.Product{}, errors.NewStoreError("update_product", productID, "", errors.ErrProductNotFound)
	}

	products[i] = models.ApplyProductPatch(products[i], patch)

	if err := s.save(products); err != nil {
		return models.Product{}, errors.NewStoreError("update_product", productID, "", err)
	}
	return products[i], nil
}

// Close drains queued writes and stops the writer. It is safe to call twice.
func (s *JSONStore) Close() error {
	s.queueMu.Lock()
	if !s.closed {
		s.closed = true
		close(s.writes)
	}
	s.queueMu.Unlock()
	<-s.done
	return nil
}
