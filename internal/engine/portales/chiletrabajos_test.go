package portales

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/joseoporto/postulabot/internal/engine"
)

const chtListingPage = `<html><body>
<a href="/trabajo/analista-de-facturacion-3793214">Analista de Facturación</a>
<a href="/trabajo/practica-soporte-ti-3800001?ref=home">Práctica Soporte TI</a>
<a href="/trabajo/analista-de-facturacion-3793214">Analista de Facturación</a>
<a href="/empresas/registro">Publica tu aviso</a>
</body></html>`

func TestChtListOffersDedupesAndParsesIDs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(chtListingPage))
	}))
	defer srv.Close()

	c := NewChileTrabajos(testDeps(t, &memRecorder{}))
	c.setBase(srv.URL)

	offers, err := c.ListOffers(context.Background(), 1)
	if err != nil {
		t.Fatalf("ListOffers() error = %v", err)
	}
	if len(offers) != 2 {
		t.Fatalf("offers = %d, want 2 (duplicate link collapsed, non-offer skipped)", len(offers))
	}
	if offers[0].ID != "3793214" || offers[1].ID != "3800001" {
		t.Errorf("ids = %q, %q", offers[0].ID, offers[1].ID)
	}
}

func TestChtOfferDetailBuildsApplyURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><h1 class="title">Práctica Soporte TI</h1>
		<h3 class="meta">Empresa Dos</h3>
		<p>Descripción amplia del cargo con funciones y requisitos del puesto.</p></body></html>`))
	}))
	defer srv.Close()

	c := NewChileTrabajos(testDeps(t, &memRecorder{}))
	c.setBase(srv.URL)

	detail, err := c.OfferDetail(context.Background(), srv.URL+"/trabajo/practica-soporte-ti-3800001")
	if err != nil {
		t.Fatalf("OfferDetail() error = %v", err)
	}
	if detail.Title != "Práctica Soporte TI" {
		t.Errorf("title = %q", detail.Title)
	}
	if want := srv.URL + "/trabajo/postular/3800001"; detail.ApplyURL != want {
		t.Errorf("ApplyURL = %q, want %q", detail.ApplyURL, want)
	}
}

const chtApplyPage = `<html><body>
<form action="/trabajo/postular/3800001" method="post" enctype="multipart/form-data">
  <input type="hidden" name="token" value="xyz">
  <input type="hidden" name="q2_label" value="¿Tienes seguro escolar vigente?">
  <textarea class="questionText" id="q2" name="q2"></textarea>
  <textarea id="carta" name="app_letter"></textarea>
  <input type="text" name="salary" id="salary">
  <input type="text" name="disp" id="dispo">
  <input type="checkbox" id="dispoIn" name="dispoIn">
  <input type="file" name="att1" id="cv">
  <input type="submit" name="apply" value="Enviar postulación">
</form>
</body></html>`

func TestChtApplySent(t *testing.T) {
	var gotFields map[string]string
	var gotCV bool
	mux := http.NewServeMux()
	mux.HandleFunc("/trabajo/postular/3800001", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			r.ParseMultipartForm(1 << 20)
			gotFields = map[string]string{}
			for k, v := range r.MultipartForm.Value {
				if len(v) > 0 {
					gotFields[k] = v[0]
				}
			}
			_, _, err := r.FormFile("att1")
			gotCV = err == nil
			w.Write([]byte("Postulación enviada"))
			return
		}
		w.Write([]byte(chtApplyPage))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cvPath := filepath.Join(t.TempDir(), "cv.pdf")
	if err := os.WriteFile(cvPath, []byte("%PDF-1.4 fake"), 0o600); err != nil {
		t.Fatal(err)
	}

	rec := &memRecorder{}
	deps := testDeps(t, rec)
	deps.Config.CVPath = cvPath
	c := NewChileTrabajos(deps)
	c.setBase(srv.URL)

	offer := Offer{ID: "3800001", Title: "Práctica Soporte TI", URL: srv.URL + "/trabajo/practica-soporte-ti-3800001"}
	detail := &OfferDetail{
		Description: "Se busca practicante de soporte.",
		ApplyURL:    srv.URL + "/trabajo/postular/3800001",
	}

	status, err := c.Apply(context.Background(), offer, detail, approveAll{})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if status != StatusSent {
		t.Fatalf("status = %q, want sent", status)
	}
	if gotFields["token"] != "xyz" {
		t.Error("hidden token not carried into submission")
	}
	if !strings.Contains(gotFields["q2"], "respuesta para:") {
		t.Errorf("q2 = %q", gotFields["q2"])
	}
	if gotFields["app_letter"] == "" {
		t.Error("empty cover letter was not generated")
	}
	if gotFields["salary"] != "500000" {
		t.Errorf("salary = %q, want profile preference", gotFields["salary"])
	}
	if gotFields["dispoIn"] != "1" {
		t.Error("immediate availability checkbox not set")
	}
	if gotFields["apply"] != "Enviar postulación" {
		t.Errorf("submit field = %q", gotFields["apply"])
	}
	if !gotCV {
		t.Error("cv file not attached")
	}
	if rec.status != "sent" || rec.portal != engine.PortalChileTrabajos {
		t.Errorf("ledger record = %+v", rec)
	}
}

func TestChtApplyDuplicate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><p>Ya has postulado a este empleo</p></body></html>`))
	}))
	defer srv.Close()

	rec := &memRecorder{}
	c := NewChileTrabajos(testDeps(t, rec))
	c.setBase(srv.URL)

	detail := &OfferDetail{ApplyURL: srv.URL + "/trabajo/postular/77"}
	status, err := c.Apply(context.Background(), Offer{ID: "77"}, detail, approveAll{})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if status != StatusDuplicate {
		t.Errorf("status = %q, want duplicate", status)
	}
	if rec.status != "duplicate" {
		t.Errorf("recorded status = %q", rec.status)
	}
}

func TestChtAnswersCappedAtFieldLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(chtApplyPage))
	}))
	defer srv.Close()

	deps := testDeps(t, &memRecorder{})
	deps.Answers = longAnswers{}
	c := NewChileTrabajos(deps)
	c.setBase(srv.URL)

	var captured []QA
	rev := reviewerFunc(func(_ Offer, _ *OfferDetail, proposed []QA, salary string) ReviewResult {
		captured = proposed
		return ReviewResult{Approved: false, Answers: proposed, Salary: salary}
	})

	detail := &OfferDetail{ApplyURL: srv.URL + "/trabajo/postular/88"}
	if _, err := c.Apply(context.Background(), Offer{ID: "88"}, detail, rev); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if len(captured) != 1 {
		t.Fatalf("proposed = %d, want 1", len(captured))
	}
	if n := len([]rune(captured[0].Answer)); n > 250 {
		t.Errorf("answer length = %d, want <= 250", n)
	}
}

type longAnswers struct{}

func (longAnswers) Answer(context.Context, string, string) string {
	return strings.Repeat("palabra ", 100)
}

func (longAnswers) ChooseOption(_ context.Context, _ string, options []string, _ string) string {
	return options[0]
}

func (longAnswers) Summarize(context.Context, string) string { return "" }

type reviewerFunc func(Offer, *OfferDetail, []QA, string) ReviewResult

func (f reviewerFunc) Review(o Offer, d *OfferDetail, p []QA, s string) ReviewResult {
	return f(o, d, p, s)
}
