package portales

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/anatolykoptev/go-kit/llm"
	"golang.org/x/time/rate"

	"github.com/joseoporto/postulabot/internal/engine"
	"github.com/joseoporto/postulabot/internal/engine/answers"
	"github.com/joseoporto/postulabot/internal/engine/ledger"
)

// scriptedModel satisfies engine.Completer with a fixed reply, standing in
// for the real chat endpoint.
type scriptedModel struct{ reply string }

func (s scriptedModel) Complete(context.Context, string, string, ...llm.ChatOption) (string, error) {
	return s.reply, nil
}

const integrationOfferPage = `<html><body>
<h1>Práctica Soporte TI</h1>
<div class="job-description">Se busca practicante de soporte para mesa de ayuda.</div>
<form action="/trabajo/jobs/9100/apply" method="post">
  <input type="hidden" name="_csrf" value="tok-sesion">
  <label for="q1">¿Cuántas horas de práctica buscas?</label>
  <textarea id="q1" name="q1"></textarea>
  <label for="q2">¿Qué experiencia tienes en redes?</label>
  <textarea id="q2" name="q2"></textarea>
  <button id="sendApplication">Enviar postulación</button>
</form>
</body></html>`

// TestApplicationFlowEndToEnd drives one offer from detail scrape to
// submission with the real answer generator and a real ledger file: the
// canned hours answer must arrive verbatim at the portal, the open question
// must carry the model's text, and the ledger must end up with one sent row.
func TestApplicationFlowEndToEnd(t *testing.T) {
	var submitted url.Values
	mux := http.NewServeMux()
	mux.HandleFunc("/trabajo/jobs/9100", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(integrationOfferPage))
	})
	mux.HandleFunc("/trabajo/jobs/9100/apply", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		submitted = r.PostForm
		w.Write([]byte(`<html><body>Postulación enviada</body></html>`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	store, err := ledger.OpenSQLite(filepath.Join(t.TempDir(), "postulaciones.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	profile := &engine.Profile{
		NombreCompleto: "José Oporto",
		RUT:            "12.345.678-9",
		Preferencias:   engine.Preferencias{RentaEsperada: 500000},
	}
	modelReply := "Tengo experiencia configurando redes domésticas y de laboratorio."
	gen := answers.NewGenerator(profile,
		[]engine.Completer{scriptedModel{reply: modelReply}},
		[]string{"modelo-prueba"},
		rate.NewLimiter(rate.Inf, 1),
		engine.NopPacer{},
	)

	client, err := engine.NewPortalClient(nil, 5*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	d := NewDuocLaboral(Deps{
		Client:   client,
		Sessions: &engine.SessionStore{Dir: t.TempDir()},
		Answers:  gen,
		Recorder: ledger.RecorderAdapter{Store: store},
		Pacer:    engine.NopPacer{},
		Profile:  profile,
	})
	d.setBase(srv.URL)

	ctx := context.Background()
	offer := Offer{ID: "9100", Title: "Práctica Soporte TI", URL: srv.URL + "/trabajo/jobs/9100"}
	detail, err := d.OfferDetail(ctx, offer.URL)
	if err != nil {
		t.Fatalf("OfferDetail() error = %v", err)
	}
	if len(detail.Questions) != 2 {
		t.Fatalf("questions = %d, want 2", len(detail.Questions))
	}

	status, err := d.Apply(ctx, offer, detail, approveAll{})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if status != StatusSent {
		t.Fatalf("status = %q, want sent", status)
	}

	const horas = "Actualmente busco una práctica para aprender y ganar experiencia " +
		"en el rubro, las horas pueden ser negociables según los requerimientos de la empresa."
	if got := submitted.Get("q1"); got != horas {
		t.Errorf("q1 = %q, want canned hours answer verbatim", got)
	}
	if got := submitted.Get("q2"); got != modelReply {
		t.Errorf("q2 = %q, want generated answer", got)
	}
	if submitted.Get("_csrf") != "tok-sesion" {
		t.Error("hidden csrf field not carried into submission")
	}

	applied, err := store.HasApplied(ctx, engine.PortalDuocLaboral, "9100")
	if err != nil {
		t.Fatal(err)
	}
	if !applied {
		t.Error("ledger does not report the offer as applied")
	}
	recs, err := store.List(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].Status != "sent" {
		t.Fatalf("ledger rows = %+v, want one sent row", recs)
	}
	if !strings.Contains(recs[0].AnswersJSON, modelReply) {
		t.Errorf("answers json = %q, missing generated answer", recs[0].AnswersJSON)
	}
}
