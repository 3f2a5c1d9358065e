// Package store provides data persistence implementations.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gocarina/gocsv"
	_ "github.com/mattn/go-sqlite3"

	"pricewatch/internal/money"
)

// SQLiteArchive implements ObservationStore using SQLite. Unlike the JSON
// price history it is unbounded and records every successful check, changed
// or not.
type SQLiteArchive struct {
	db *sql.DB
}

// NewSQLiteArchive opens (or creates) the archive database.
func NewSQLiteArchive(dbPath string) (*SQLiteArchive, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single logical worker writes; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(time.Hour)

	archive := &SQLiteArchive{db: db}
	if err := archive.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return archive, nil
}

// initSchema creates all required tables and indexes.
func (a *SQLiteArchive) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS observations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		product_id TEXT NOT NULL,
		product_name TEXT NOT NULL,
		url TEXT NOT NULL,
		retailer TEXT NOT NULL,
		title TEXT,
		price_cents INTEGER NOT NULL,
		checked_at DATETIME NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_observations_product ON observations(product_id, url);
	CREATE INDEX IF NOT EXISTS idx_observations_checked_at ON observations(checked_at);
	`

	_, err := a.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (a *SQLiteArchive) Close() error {
	return a.db.Close()
}

// Record stores one observation.
func (a *SQLiteArchive) Record(ctx context.Context, obs Observation) error {
	if obs.CheckedAt.IsZero() {
		obs.CheckedAt = time.Now()
	}
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO observations (product_id, product_name, url, retailer, title, price_cents, checked_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, obs.ProductID, obs.ProductName, obs.URL, obs.Retailer, obs.Title, obs.PriceCents, obs.CheckedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to record observation: %w", err)
	}
	return nil
}

// History returns observations oldest first. With a limit, the newest
// entries are kept.
func (a *SQLiteArchive) History(ctx context.Context, filter HistoryFilter) ([]Observation, error) {
	query := `
		SELECT id, product_id, product_name, url, retailer, COALESCE(title, ''), price_cents, checked_at
		FROM observations WHERE 1=1`
	var args []interface{}

	if filter.ProductID != "" {
		query += " AND product_id = ?"
		args = append(args, filter.ProductID)
	}
	if filter.URL != "" {
		query += " AND url = ?"
		args = append(args, filter.URL)
	}
	if !filter.Since.IsZero() {
		query += " AND checked_at >= ?"
		args = append(args, filter.Since.UTC())
	}
	query += " ORDER BY checked_at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query observations: %w", err)
	}
	defer rows.Close()

	var out []Observation
	for rows.Next() {
		var o Observation
		if err := rows.Scan(&o.ID, &o.ProductID, &o.ProductName, &o.URL, &o.Retailer, &o.Title, &o.PriceCents, &o.CheckedAt); err != nil {
			return nil, fmt.Errorf("failed to scan observation: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// DeleteProduct removes every observation of a product.
func (a *SQLiteArchive) DeleteProduct(ctx context.Context, productID string) (int64, error) {
	result, err := a.db.ExecContext(ctx, `DELETE FROM observations WHERE product_id = ?`, productID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete observations: %w", err)
	}
	return result.RowsAffected()
}

// observationRow is the CSV shape of an observation.
type observationRow struct {
	CheckedAt   string `csv:"checked_at"`
	ProductID   string `csv:"product_id"`
	ProductName string `csv:"product_name"`
	Retailer    string `csv:"retailer"`
	URL         string `csv:"url"`
	PriceCents  string `csv:"price_cents"`
	Price       string `csv:"price"`
	Title       string `csv:"title"`
}

// WriteCSV writes observations to w with a header row.
func WriteCSV(w io.Writer, observations []Observation) error {
	rows := make([]*observationRow, 0, len(observations))
	for _, o := range observations {
		rows = append(rows, &observationRow{
			CheckedAt:   o.CheckedAt.UTC().Format(time.RFC3339),
			ProductID:   o.ProductID,
			ProductName: o.ProductName,
			Retailer:    o.Retailer,
			URL:         o.URL,
			PriceCents:  strconv.FormatInt(o.PriceCents, 10),
			Price:       money.ToDecimal(o.PriceCents).StringFixed(2),
			Title:       o.Title,
		})
	}
	return gocsv.Marshal(rows, w)
}
