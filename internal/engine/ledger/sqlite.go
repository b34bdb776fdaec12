package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// created_at is stored fixed-width so lexicographic order in SQL matches
// chronological order.
const createdAtLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore is the default ledger backend: one local file, no server.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the ledger database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("ledger: mkdir %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("ledger: open db: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite: single writer
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: init schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS postulaciones (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		portal     TEXT NOT NULL,
		offer_id   TEXT NOT NULL,
		title      TEXT,
		company    TEXT,
		url        TEXT,
		status     TEXT NOT NULL,
		answers    TEXT,
		created_at TEXT NOT NULL,
		UNIQUE(portal, offer_id)
	)`)
	return err
}

func (s *SQLiteStore) HasApplied(ctx context.Context, portal, offerID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM postulaciones WHERE portal = ? AND offer_id = ?`,
		portal, offerID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("ledger: has applied: %w", err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) Record(ctx context.Context, rec Record) error {
	now := time.Now().UTC().Format(createdAtLayout)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO postulaciones (portal, offer_id, title, company, url, status, answers, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(portal, offer_id) DO UPDATE SET
		   status = excluded.status,
		   answers = excluded.answers,
		   created_at = excluded.created_at`,
		rec.Portal, rec.OfferID, rec.Title, rec.Company, rec.URL, rec.Status, rec.AnswersJSON, now)
	if err != nil {
		return fmt.Errorf("ledger: record %s/%s: %w", rec.Portal, rec.OfferID, err)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context, limit int) ([]Record, error) {
	q := `SELECT portal, offer_id, title, company, url, status, answers, created_at
	      FROM postulaciones ORDER BY created_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("ledger: list: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var created string
		if err := rows.Scan(&rec.Portal, &rec.OfferID, &rec.Title, &rec.Company, &rec.URL, &rec.Status, &rec.AnswersJSON, &created); err != nil {
			return nil, fmt.Errorf("ledger: scan: %w", err)
		}
		rec.CreatedAt, _ = time.Parse(time.RFC3339, created)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) CountSent(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM postulaciones WHERE status = 'sent'`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("ledger: count sent: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
