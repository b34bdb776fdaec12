package runner

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joseoporto/postulabot/internal/engine"
	"github.com/joseoporto/postulabot/internal/engine/ledger"
	"github.com/joseoporto/postulabot/internal/engine/portales"
)

// fakePortal scripts a portal: fixed offers, canned details, and an Apply
// that mimics the real adapters' record-always contract.
type fakePortal struct {
	offers      []portales.Offer
	details     map[string]*portales.OfferDetail
	store       ledger.Store
	loginOK     bool
	loginErr    error
	applyStatus map[string]portales.Status // overrides; default sent
	applied     []string
}

func (f *fakePortal) Name() string { return "duoclaboral" }

func (f *fakePortal) Login(context.Context) (bool, error) { return f.loginOK, f.loginErr }

func (f *fakePortal) ApplyFilters(context.Context) error { return nil }

func (f *fakePortal) ListOffers(_ context.Context, page int) ([]portales.Offer, error) {
	if page > 1 {
		return nil, nil
	}
	return f.offers, nil
}

func (f *fakePortal) OfferDetail(_ context.Context, url string) (*portales.OfferDetail, error) {
	d, ok := f.details[url]
	if !ok {
		return nil, errors.New("no such offer")
	}
	return d, nil
}

func (f *fakePortal) Apply(ctx context.Context, offer portales.Offer, detail *portales.OfferDetail, review portales.Reviewer) (portales.Status, error) {
	f.applied = append(f.applied, offer.ID)
	status := portales.StatusSent
	if s, ok := f.applyStatus[offer.ID]; ok {
		status = s
	}
	if status == portales.StatusSent {
		verdict := review.Review(offer, detail, proposedFor(detail), "500000")
		if !verdict.Approved {
			status = portales.StatusSkipped
		}
	}
	rec := ledger.RecorderAdapter{Store: f.store}
	_ = rec.RecordAttempt(ctx, f.Name(), offer.ID, offer.Title, offer.Company, offer.URL, string(status), "")
	return status, nil
}

func proposedFor(detail *portales.OfferDetail) []portales.QA {
	out := make([]portales.QA, 0, len(detail.Questions))
	for i, q := range detail.Questions {
		out = append(out, portales.QA{Question: q.Label, Answer: "respuesta", Index: i})
	}
	return out
}

type approveAll struct{}

func (approveAll) Review(_ portales.Offer, _ *portales.OfferDetail, proposed []portales.QA, salary string) portales.ReviewResult {
	return portales.ReviewResult{Approved: true, Answers: proposed, Salary: salary}
}

type alwaysRelevant struct{}

func (alwaysRelevant) Relevance(context.Context, string, string) (bool, string) {
	return true, "perfil afín"
}

type neverRelevant struct{}

func (neverRelevant) Relevance(context.Context, string, string) (bool, string) {
	return false, "rubro distinto"
}

func openStore(t *testing.T) ledger.Store {
	t.Helper()
	s, err := ledger.OpenSQLite(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRunAppliesToUnseenOffer(t *testing.T) {
	store := openStore(t)
	p := &fakePortal{
		loginOK: true,
		store:   store,
		offers:  []portales.Offer{{ID: "A1", Title: "Práctica TI", URL: "u/A1"}},
		details: map[string]*portales.OfferDetail{
			"u/A1": {
				Title:       "Práctica TI",
				Description: "Soporte y redes para práctica profesional.",
				Questions: []portales.Question{
					{Label: "¿Cuántas horas de práctica buscas?"},
					{Label: "¿Tienes seguro escolar?"},
				},
			},
		},
	}
	r := &Runner{Portal: p, Ledger: store, Checker: alwaysRelevant{}, Config: engine.Config{PageCount: 1}}

	sum, err := r.Run(context.Background(), approveAll{})
	require.NoError(t, err)
	require.Equal(t, 1, sum.Sent)
	require.Equal(t, []string{"A1"}, p.applied)

	applied, err := store.HasApplied(context.Background(), "duoclaboral", "A1")
	require.NoError(t, err)
	require.True(t, applied)
}

func TestRunSkipsLedgeredOfferBeforeAnyWork(t *testing.T) {
	store := openStore(t)
	require.NoError(t, store.Record(context.Background(), ledger.Record{
		Portal: "duoclaboral", OfferID: "A2", Status: "sent",
	}))

	p := &fakePortal{
		loginOK: true,
		store:   store,
		offers:  []portales.Offer{{ID: "A2", Title: "Analista", URL: "u/A2"}},
		details: map[string]*portales.OfferDetail{"u/A2": {Title: "Analista"}},
	}
	r := &Runner{Portal: p, Ledger: store, Checker: alwaysRelevant{}, Config: engine.Config{PageCount: 1}}

	sum, err := r.Run(context.Background(), approveAll{})
	require.NoError(t, err)
	require.Equal(t, 1, sum.Duplicates)
	require.Equal(t, 0, sum.Sent)
	require.Empty(t, p.applied, "apply must not run for a ledgered offer")
}

func TestRunIrrelevantOfferNotApplied(t *testing.T) {
	store := openStore(t)
	p := &fakePortal{
		loginOK: true,
		store:   store,
		offers:  []portales.Offer{{ID: "B1", Title: "Chef", URL: "u/B1"}},
		details: map[string]*portales.OfferDetail{"u/B1": {Title: "Chef", Description: "cocina"}},
	}
	r := &Runner{Portal: p, Ledger: store, Checker: neverRelevant{}, Config: engine.Config{PageCount: 1}}

	sum, err := r.Run(context.Background(), approveAll{})
	require.NoError(t, err)
	require.Equal(t, 1, sum.Irrelevant)
	require.Empty(t, p.applied)
}

func TestRunLoginFailureStopsSession(t *testing.T) {
	store := openStore(t)
	p := &fakePortal{loginOK: false, store: store, offers: []portales.Offer{{ID: "X"}}}
	r := &Runner{Portal: p, Ledger: store, Config: engine.Config{PageCount: 1}}

	_, err := r.Run(context.Background(), approveAll{})
	require.ErrorIs(t, err, ErrLoginFailed)
	require.Empty(t, p.applied)
}

func TestRunOfferFailureIsIsolated(t *testing.T) {
	store := openStore(t)
	p := &fakePortal{
		loginOK: true,
		store:   store,
		offers: []portales.Offer{
			{ID: "bad", URL: "u/missing"}, // detail fetch fails
			{ID: "good", Title: "Práctica", URL: "u/good"},
		},
		details: map[string]*portales.OfferDetail{"u/good": {Title: "Práctica"}},
	}
	r := &Runner{Portal: p, Ledger: store, Checker: alwaysRelevant{}, Config: engine.Config{PageCount: 1}}

	sum, err := r.Run(context.Background(), approveAll{})
	require.NoError(t, err)
	require.Equal(t, 1, sum.Errors)
	require.Equal(t, 1, sum.Sent)
	require.Equal(t, []string{"good"}, p.applied)
}

func TestRunSessionCap(t *testing.T) {
	store := openStore(t)
	p := &fakePortal{
		loginOK: true,
		store:   store,
		offers: []portales.Offer{
			{ID: "1", URL: "u/1"}, {ID: "2", URL: "u/2"}, {ID: "3", URL: "u/3"},
		},
		details: map[string]*portales.OfferDetail{
			"u/1": {}, "u/2": {}, "u/3": {},
		},
	}
	r := &Runner{Portal: p, Ledger: store, Checker: alwaysRelevant{}, Config: engine.Config{PageCount: 1, MaxPerSession: 2}}

	sum, err := r.Run(context.Background(), approveAll{})
	require.NoError(t, err)
	require.Equal(t, 2, sum.Sent)
	require.True(t, sum.Stopped)
	require.Len(t, p.applied, 2)
}

func TestRunCancelledContextOrderlySummary(t *testing.T) {
	store := openStore(t)
	p := &fakePortal{loginOK: true, store: store, offers: []portales.Offer{{ID: "1", URL: "u/1"}}}
	r := &Runner{Portal: p, Ledger: store, Config: engine.Config{PageCount: 3}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sum, err := r.Run(ctx, approveAll{})
	require.NoError(t, err, "cancellation ends the run orderly, not with an error")
	require.True(t, sum.Stopped)
	require.Zero(t, sum.Sent)
}

func TestScanReportsLedgerState(t *testing.T) {
	store := openStore(t)
	require.NoError(t, store.Record(context.Background(), ledger.Record{
		Portal: "duoclaboral", OfferID: "2", Status: "sent",
	}))
	p := &fakePortal{
		loginOK: true,
		store:   store,
		offers:  []portales.Offer{{ID: "1", URL: "u/1"}, {ID: "2", URL: "u/2"}},
	}
	r := &Runner{Portal: p, Ledger: store, Config: engine.Config{PageCount: 1}}

	entries, err := r.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.False(t, entries[0].Applied)
	require.True(t, entries[1].Applied)
}
