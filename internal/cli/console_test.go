package cli

import (
	"bufio"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/joseoporto/postulabot/internal/engine"
	"github.com/joseoporto/postulabot/internal/engine/ledger"
)

type memStore struct {
	recs []ledger.Record
}

func (m *memStore) HasApplied(_ context.Context, portal, offerID string) (bool, error) {
	for _, r := range m.recs {
		if r.Portal == portal && r.OfferID == offerID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) Record(_ context.Context, rec ledger.Record) error {
	m.recs = append(m.recs, rec)
	return nil
}

func (m *memStore) List(context.Context, int) ([]ledger.Record, error) {
	return m.recs, nil
}

func (m *memStore) CountSent(context.Context) (int, error) {
	n := 0
	for _, r := range m.recs {
		if r.Status == "sent" {
			n++
		}
	}
	return n, nil
}

func (m *memStore) Close() error { return nil }

func newTestConsole(input string, store ledger.Store) (*Console, *strings.Builder) {
	var out strings.Builder
	return &Console{
		In:     bufio.NewReader(strings.NewReader(input)),
		Out:    &out,
		Config: engine.Config{},
		Ledger: store,
	}, &out
}

func TestLoopExitOption(t *testing.T) {
	c, _ := newTestConsole("1\n7\n", &memStore{}) // portal select, then exit
	done := make(chan struct{})
	go func() {
		c.Loop(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Loop did not exit on option 7")
	}
}

func TestLoopRejectsInvalidOption(t *testing.T) {
	c, out := newTestConsole("1\n9\n7\n", &memStore{}) // portal select, bogus choice, exit
	done := make(chan struct{})
	go func() {
		c.Loop(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Loop did not exit")
	}
	if !strings.Contains(out.String(), "Opción inválida") {
		t.Errorf("output missing invalid-option notice:\n%s", out.String())
	}
}

func TestLoopExitsOnClosedInput(t *testing.T) {
	c, _ := newTestConsole("", &memStore{})
	done := make(chan struct{})
	go func() {
		c.Loop(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Loop did not exit on EOF")
	}
}

func TestListApplications(t *testing.T) {
	store := &memStore{recs: []ledger.Record{
		{Portal: "duoclaboral", OfferID: "1", Title: "Práctica TI", Company: "Empresa Uno", Status: "sent", CreatedAt: time.Now()},
		{Portal: "chiletrabajos", OfferID: "2", Title: "Analista Jr", Status: "skipped", CreatedAt: time.Now()},
	}}
	c, out := newTestConsole("", store)

	c.listApplications(context.Background())
	got := out.String()
	for _, want := range []string{"Práctica TI", "Empresa Uno", "sent", "chiletrabajos", "skipped"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestListApplicationsEmpty(t *testing.T) {
	c, out := newTestConsole("", &memStore{})
	c.listApplications(context.Background())
	if !strings.Contains(out.String(), "No hay postulaciones") {
		t.Errorf("output = %q", out.String())
	}
}

func TestSelectPortal(t *testing.T) {
	c, _ := newTestConsole("2\n", &memStore{})
	if got := c.SelectPortal(); got != engine.PortalChileTrabajos {
		t.Errorf("SelectPortal() = %q", got)
	}
	c2, _ := newTestConsole("algo\n", &memStore{})
	if got := c2.SelectPortal(); got != engine.PortalDuocLaboral {
		t.Errorf("SelectPortal() default = %q", got)
	}
}
