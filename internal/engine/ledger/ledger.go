// Package ledger is the persistent record of application attempts. Its
// primary job is duplicate prevention: an offer recorded for a portal is
// never applied to again, whatever the recorded outcome was.
package ledger

import (
	"context"
	"time"
)

// Record is one application attempt. Keys are namespaced by portal so the
// same numeric offer id on two sites never collides.
type Record struct {
	Portal      string
	OfferID     string
	Title       string
	Company     string
	URL         string
	Status      string
	AnswersJSON string
	CreatedAt   time.Time
}

// Store is the ledger contract. Implementations are safe for the bot's
// single-threaded access pattern; no cross-offer transactions are held.
type Store interface {
	// HasApplied reports whether any attempt for (portal, offerID) exists.
	HasApplied(ctx context.Context, portal, offerID string) (bool, error)

	// Record upserts an attempt. A second record for the same key
	// overwrites status, answers and timestamp, keeping one row per offer.
	Record(ctx context.Context, rec Record) error

	// List returns attempts newest first, up to limit (0 = all).
	List(ctx context.Context, limit int) ([]Record, error)

	// CountSent returns how many attempts ended in a sent application.
	CountSent(ctx context.Context) (int, error)

	Close() error
}

// RecorderAdapter adapts a Store to the portal adapters' Recorder interface.
type RecorderAdapter struct {
	Store Store
}

func (r RecorderAdapter) RecordAttempt(ctx context.Context, portal, offerID, title, company, url string, status string, answersJSON string) error {
	return r.Store.Record(ctx, Record{
		Portal:      portal,
		OfferID:     offerID,
		Title:       title,
		Company:     company,
		URL:         url,
		Status:      status,
		AnswersJSON: answersJSON,
	})
}
