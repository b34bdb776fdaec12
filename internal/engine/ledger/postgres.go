package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore backs the ledger with Postgres, for users who keep their
// application history on a shared server instead of a local file.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects a pgx pool and ensures the ledger schema exists.
func OpenPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("ledger: parse DATABASE_URL: %w", err)
	}
	config.MaxConns = 2
	config.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("ledger: create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ledger: ping postgres: %w", err)
	}

	_, err = pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS postulaciones (
		id         BIGSERIAL PRIMARY KEY,
		portal     TEXT NOT NULL,
		offer_id   TEXT NOT NULL,
		title      TEXT,
		company    TEXT,
		url        TEXT,
		status     TEXT NOT NULL,
		answers    TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE(portal, offer_id)
	)`)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("ledger: init schema: %w", err)
	}

	slog.Info("ledger postgres connected", slog.String("host", config.ConnConfig.Host))
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) HasApplied(ctx context.Context, portal, offerID string) (bool, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM postulaciones WHERE portal = $1 AND offer_id = $2`,
		portal, offerID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("ledger: has applied: %w", err)
	}
	return n > 0, nil
}

func (s *PostgresStore) Record(ctx context.Context, rec Record) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO postulaciones (portal, offer_id, title, company, url, status, answers)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (portal, offer_id) DO UPDATE SET
		   status = EXCLUDED.status,
		   answers = EXCLUDED.answers,
		   created_at = now()`,
		rec.Portal, rec.OfferID, rec.Title, rec.Company, rec.URL, rec.Status, rec.AnswersJSON)
	if err != nil {
		return fmt.Errorf("ledger: record %s/%s: %w", rec.Portal, rec.OfferID, err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, limit int) ([]Record, error) {
	q := `SELECT portal, offer_id, title, company, url, status, answers, created_at
	      FROM postulaciones ORDER BY created_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("ledger: list: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var created time.Time
		if err := rows.Scan(&rec.Portal, &rec.OfferID, &rec.Title, &rec.Company, &rec.URL, &rec.Status, &rec.AnswersJSON, &created); err != nil {
			return nil, fmt.Errorf("ledger: scan: %w", err)
		}
		rec.CreatedAt = created
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CountSent(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM postulaciones WHERE status = 'sent'`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("ledger: count sent: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
