// Package runner drives one application session: login, filtered listing,
// then a strictly sequential walk over offers with duplicate and relevance
// gates before each application.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/joseoporto/postulabot/internal/engine"
	"github.com/joseoporto/postulabot/internal/engine/ledger"
	"github.com/joseoporto/postulabot/internal/engine/portales"
)

// Relevancer decides whether an offer fits the candidate before any form
// work happens. Satisfied by the answer generator.
type Relevancer interface {
	Relevance(ctx context.Context, title, description string) (bool, string)
}

// Summary tallies a finished (or interrupted) session.
type Summary struct {
	Seen       int
	Sent       int
	Skipped    int
	Duplicates int
	Irrelevant int
	External   int
	Errors     int
	Stopped    bool // run ended early (interrupt or session cap)
}

// Runner executes sessions against one portal.
type Runner struct {
	Portal  portales.Portal
	Ledger  ledger.Store
	Checker Relevancer
	Config  engine.Config
}

// ErrLoginFailed stops the session before any offer is touched.
var ErrLoginFailed = errors.New("login failed")

// Run processes up to Config.MaxPerSession offers across Config.PageCount
// listing pages. One offer is fully finished before the next starts; a
// single offer's failure never ends the session, only config and auth
// problems do. Context cancellation produces an orderly summary.
func (r *Runner) Run(ctx context.Context, review portales.Reviewer) (*Summary, error) {
	sum := &Summary{}

	ok, err := r.Portal.Login(ctx)
	if err != nil {
		return sum, fmt.Errorf("session: %w", err)
	}
	if !ok {
		return sum, ErrLoginFailed
	}

	if err := r.Portal.ApplyFilters(ctx); err != nil {
		// Filters are an optimization: the unfiltered listing still works.
		slog.Warn("filters not applied", slog.Any("error", err))
	}

	pages := r.Config.PageCount
	if pages < 1 {
		pages = 1
	}

	for page := 1; page <= pages; page++ {
		if ctx.Err() != nil {
			sum.Stopped = true
			return sum, nil
		}

		offers, err := r.Portal.ListOffers(ctx, page)
		if err != nil {
			if ctx.Err() != nil {
				sum.Stopped = true
				return sum, nil
			}
			slog.Warn("listing page failed", slog.Int("page", page), slog.Any("error", err))
			continue
		}
		if len(offers) == 0 {
			break
		}

		for _, offer := range offers {
			if ctx.Err() != nil {
				sum.Stopped = true
				return sum, nil
			}
			if r.Config.MaxPerSession > 0 && sum.Sent >= r.Config.MaxPerSession {
				sum.Stopped = true
				return sum, nil
			}
			r.processOffer(ctx, offer, review, sum)
		}
	}
	return sum, nil
}

// processOffer isolates one offer: any failure inside is tallied and
// logged, never propagated.
func (r *Runner) processOffer(ctx context.Context, offer portales.Offer, review portales.Reviewer, sum *Summary) {
	sum.Seen++
	log := slog.With(slog.String("portal", r.Portal.Name()), slog.String("offer", offer.ID), slog.String("title", engine.Truncate(offer.Title, 60)))

	applied, err := r.Ledger.HasApplied(ctx, r.Portal.Name(), offer.ID)
	if err != nil {
		log.Error("ledger check failed", slog.Any("error", err))
		sum.Errors++
		return
	}
	if applied {
		log.Info("already in ledger, skipping")
		sum.Duplicates++
		return
	}

	detail, err := r.Portal.OfferDetail(ctx, offer.URL)
	if err != nil {
		log.Warn("detail fetch failed", slog.Any("error", err))
		sum.Errors++
		return
	}

	if r.Checker != nil {
		relevant, reason := r.Checker.Relevance(ctx, firstNonEmpty(detail.Title, offer.Title), detail.Description)
		if !relevant {
			log.Info("offer not relevant", slog.String("reason", reason))
			sum.Irrelevant++
			return
		}
	}

	status, err := r.Portal.Apply(ctx, offer, detail, review)
	if err != nil {
		log.Warn("application failed", slog.String("status", string(status)), slog.Any("error", err))
	}
	switch status {
	case portales.StatusSent:
		log.Info("application sent")
		sum.Sent++
	case portales.StatusSkipped:
		sum.Skipped++
	case portales.StatusDuplicate:
		sum.Duplicates++
	case portales.StatusExternal:
		log.Info("external application, recorded and skipped")
		sum.External++
	default:
		sum.Errors++
	}
}

// ScanEntry pairs a listed offer with its ledger state.
type ScanEntry struct {
	Offer   portales.Offer
	Applied bool
}

// Scan walks the filtered listing pages read-only: offers are listed and
// checked against the ledger but nothing is applied to.
func (r *Runner) Scan(ctx context.Context) ([]ScanEntry, error) {
	ok, err := r.Portal.Login(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	if !ok {
		return nil, ErrLoginFailed
	}
	if err := r.Portal.ApplyFilters(ctx); err != nil {
		slog.Warn("filters not applied", slog.Any("error", err))
	}

	pages := r.Config.PageCount
	if pages < 1 {
		pages = 1
	}
	var entries []ScanEntry
	for page := 1; page <= pages; page++ {
		offers, err := r.Portal.ListOffers(ctx, page)
		if err != nil {
			if ctx.Err() != nil {
				return entries, nil
			}
			slog.Warn("listing page failed", slog.Int("page", page), slog.Any("error", err))
			continue
		}
		if len(offers) == 0 {
			break
		}
		for _, offer := range offers {
			applied, err := r.Ledger.HasApplied(ctx, r.Portal.Name(), offer.ID)
			if err != nil {
				slog.Error("ledger check failed", slog.String("offer", offer.ID), slog.Any("error", err))
				continue
			}
			entries = append(entries, ScanEntry{Offer: offer, Applied: applied})
		}
	}
	return entries, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
