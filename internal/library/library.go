// Package library provides the local reference library: a SQLite
// table mapping external record identifiers to local item handles,
// used to mark graph entries that are already in the user's
// collection.
package library

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// LookupChunkSize bounds how many identifiers go into one IN (...)
// query, to respect query-parameter limits.
const LookupChunkSize = 500

// Item is one local library entry.
type Item struct {
	Recid  string `json:"recid"`
	ItemID int64  `json:"item_id"`
	DOI    string `json:"doi,omitempty"`
	Arxiv  string `json:"arxiv,omitempty"`
	Title  string `json:"title,omitempty"`
	Year   int    `json:"year,omitempty"`
}

// Library is a SQLite-backed item store. Safe for concurrent use; the
// underlying connection pool is capped at one connection because
// SQLite does not support concurrent writers.
type Library struct {
	db *sql.DB
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS items (
  recid TEXT PRIMARY KEY,
  item_id INTEGER NOT NULL,
  doi TEXT,
  arxiv TEXT,
  title TEXT,
  year INTEGER
);
CREATE INDEX IF NOT EXISTS idx_items_doi ON items(doi);
CREATE INDEX IF NOT EXISTS idx_items_arxiv ON items(arxiv);
`

// Open opens (creating if needed) the library database at path.
func Open(path string) (*Library, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening library database: %w", err)
	}

	// SQLite doesn't support concurrent writes
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing library schema: %w", err)
	}

	return &Library{db: db}, nil
}

// Close closes the underlying database.
func (l *Library) Close() error {
	return l.db.Close()
}

// Upsert inserts or replaces an item.
func (l *Library) Upsert(ctx context.Context, item Item) error {
	if item.Recid == "" {
		return fmt.Errorf("item has no recid")
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO items (recid, item_id, doi, arxiv, title, year) VALUES (?, ?, ?, ?, ?, ?)`,
		item.Recid, item.ItemID, item.DOI, item.Arxiv, item.Title, item.Year)
	if err != nil {
		return fmt.Errorf("upserting item %s: %w", item.Recid, err)
	}
	return nil
}

// Remove deletes an item by recid. Removing an absent item is not an error.
func (l *Library) Remove(ctx context.Context, recid string) error {
	if _, err := l.db.ExecContext(ctx, `DELETE FROM items WHERE recid = ?`, recid); err != nil {
		return fmt.Errorf("removing item %s: %w", recid, err)
	}
	return nil
}

// Lookup resolves a single recid to a local item handle.
func (l *Library) Lookup(ctx context.Context, recid string) (int64, bool, error) {
	var itemID int64
	err := l.db.QueryRowContext(ctx, `SELECT item_id FROM items WHERE recid = ?`, recid).Scan(&itemID)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("looking up item %s: %w", recid, err)
	}
	return itemID, true, nil
}

// LookupBatch resolves many recids to local item handles in chunked
// IN (...) queries. Absent recids simply have no entry in the result.
func (l *Library) LookupBatch(ctx context.Context, recids []string) (map[string]int64, error) {
	result := make(map[string]int64)

	for start := 0; start < len(recids); start += LookupChunkSize {
		end := start + LookupChunkSize
		if end > len(recids) {
			end = len(recids)
		}
		chunk := recids[start:end]

		placeholders := strings.Repeat("?,", len(chunk))
		placeholders = placeholders[:len(placeholders)-1]
		args := make([]any, len(chunk))
		for i, r := range chunk {
			args[i] = r
		}

		rows, err := l.db.QueryContext(ctx,
			`SELECT recid, item_id FROM items WHERE recid IN (`+placeholders+`)`, args...)
		if err != nil {
			return nil, fmt.Errorf("batch lookup: %w", err)
		}
		for rows.Next() {
			var recid string
			var itemID int64
			if err := rows.Scan(&recid, &itemID); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scanning batch lookup row: %w", err)
			}
			result[recid] = itemID
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("batch lookup rows: %w", err)
		}
		rows.Close()
	}

	return result, nil
}

// LookupByDOI resolves a DOI to a local item handle.
func (l *Library) LookupByDOI(ctx context.Context, doi string) (int64, bool, error) {
	var itemID int64
	err := l.db.QueryRowContext(ctx, `SELECT item_id FROM items WHERE doi = ?`, doi).Scan(&itemID)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("looking up DOI %s: %w", doi, err)
	}
	return itemID, true, nil
}

// LookupByArxiv resolves an arXiv identifier to a local item handle.
func (l *Library) LookupByArxiv(ctx context.Context, arxiv string) (int64, bool, error) {
	var itemID int64
	err := l.db.QueryRowContext(ctx, `SELECT item_id FROM items WHERE arxiv = ?`, arxiv).Scan(&itemID)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("looking up arXiv %s: %w", arxiv, err)
	}
	return itemID, true, nil
}

// Count returns the number of items in the library.
func (l *Library) Count(ctx context.Context) (int, error) {
	var n int
	if err := l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting items: %w", err)
	}
	return n, nil
}

// All returns every item, ordered by recid. Intended for small
// libraries and diagnostics.
func (l *Library) All(ctx context.Context) ([]Item, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT recid, item_id, COALESCE(doi,''), COALESCE(arxiv,''), COALESCE(title,''), COALESCE(year,0) FROM items ORDER BY recid`)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.Recid, &it.ItemID, &it.DOI, &it.Arxiv, &it.Title, &it.Year); err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
