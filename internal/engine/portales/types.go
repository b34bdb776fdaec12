// Package portales implements the recruiting-site adapters: one type per
// portal sharing the Portal interface, plus the shared form scraping and
// field classification they are built on.
package portales

import (
	"context"
	"strconv"

	"github.com/joseoporto/postulabot/internal/engine"
)

// Status is the terminal outcome of one application attempt.
type Status string

const (
	StatusSent        Status = "sent"
	StatusSkipped     Status = "skipped"
	StatusDuplicate   Status = "duplicate"
	StatusError       Status = "error"
	StatusErrorButton Status = "error_button"
	StatusExternal    Status = "external"
)

// Offer is one listing scraped from a search results page.
type Offer struct {
	ID      string
	Title   string
	Company string
	URL     string
}

// FieldKind classifies a form field so the right filler runs.
type FieldKind int

const (
	FieldText FieldKind = iota
	FieldSalary
	FieldPhone
	FieldName
	FieldNationalID
	FieldYears
	FieldSelect
	FieldRadio
)

// Question is one answerable field found on an application form.
type Question struct {
	Label   string
	Index   int
	Field   string // form field name, when the form exposes one
	Kind    FieldKind
	Options []string // select and radio fields only
}

// OfferDetail is the full offer page plus its discovered form.
type OfferDetail struct {
	Title       string
	Company     string
	Location    string
	Description string
	Summary     string // generated synopsis shown during review
	Questions   []Question
	HasSalary   bool
	HasSubmit   bool
	ApplyURL    string
	External    bool // application happens off-portal
}

// QA pairs a question with its (possibly edited) answer for review,
// submission and the ledger record.
type QA struct {
	Question string `json:"pregunta"`
	Answer   string `json:"respuesta"`
	Field    string `json:"campo,omitempty"`
	Index    int    `json:"indice"`
}

// ReviewResult is the user's verdict over a prepared application.
type ReviewResult struct {
	Approved bool
	Answers  []QA // edited answers, same order as proposed
	Salary   string
}

// Reviewer presents a prepared application to the user before submission.
// Auto mode supplies a reviewer that approves everything untouched.
type Reviewer interface {
	Review(offer Offer, detail *OfferDetail, proposed []QA, defaultSalary string) ReviewResult
}

// AnswerSource generates the text that goes into the form fields and the
// synopsis shown before them.
type AnswerSource interface {
	Answer(ctx context.Context, questionLabel, offerDescription string) string
	ChooseOption(ctx context.Context, questionLabel string, options []string, offerDescription string) string
	Summarize(ctx context.Context, offerDescription string) string
}

// Recorder persists one finished attempt. Satisfied by the ledger store.
type Recorder interface {
	RecordAttempt(ctx context.Context, portal, offerID, title, company, url string, status string, answersJSON string) error
}

// Deps are the collaborators every portal adapter needs.
type Deps struct {
	Client   *engine.PortalClient
	Sessions *engine.SessionStore
	Answers  AnswerSource
	Recorder Recorder
	Pacer    engine.Pacer
	Config   engine.Config
	Profile  *engine.Profile
}

// defaultSalary is the expected-salary value proposed during review: the
// profile preference when present, a conservative floor otherwise.
func defaultSalary(deps Deps) string {
	if deps.Profile != nil && deps.Profile.Preferencias.RentaEsperada > 0 {
		return strconv.Itoa(deps.Profile.Preferencias.RentaEsperada)
	}
	return "100000"
}

// Portal is the per-site contract. One offer is fully processed before the
// next: adapters assume single-threaded use.
type Portal interface {
	Name() string
	Login(ctx context.Context) (bool, error)
	ApplyFilters(ctx context.Context) error
	ListOffers(ctx context.Context, page int) ([]Offer, error)
	OfferDetail(ctx context.Context, offerURL string) (*OfferDetail, error)
	Apply(ctx context.Context, offer Offer, detail *OfferDetail, review Reviewer) (Status, error)
}
