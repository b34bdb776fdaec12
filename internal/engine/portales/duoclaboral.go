package portales

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/joseoporto/postulabot/internal/engine"
)

const (
	duocBaseURL    = "https://duoclaboral.cl"
	duocLoginPath  = "/login"
	duocSearchPath = "/trabajo/trabajos-en-chile"

	// Career select value for Ingeniería en informática on the search form.
	duocCareerInformatica = "341"
)

var duocOfferIDRe = regexp.MustCompile(`/jobs/(\d+)`)

// DuocLaboral automates the Duoc UC student job portal.
type DuocLaboral struct {
	deps    Deps
	baseURL string
	base    *url.URL
}

func NewDuocLaboral(deps Deps) *DuocLaboral {
	d := &DuocLaboral{deps: deps}
	d.setBase(duocBaseURL)
	return d
}

func (d *DuocLaboral) setBase(raw string) {
	d.baseURL = raw
	d.base, _ = url.Parse(raw)
}

func (d *DuocLaboral) Name() string { return engine.PortalDuocLaboral }

// Login restores the saved session when still valid, otherwise submits the
// login form. Returns true when the portal accepts the session.
func (d *DuocLaboral) Login(ctx context.Context) (bool, error) {
	restored := d.deps.Sessions.Restore(d.Name(), d.base, d.deps.Client.Jar)

	page, err := d.deps.Client.Get(ctx, d.baseURL+duocLoginPath)
	if err != nil {
		return false, fmt.Errorf("duoclaboral login: %w", err)
	}
	d.deps.Pacer.Pause(ctx, engine.StepNavigate)

	// An active session redirects away from /login.
	if !strings.Contains(page.FinalURL, "login") {
		slog.Info("session restored", slog.String("portal", d.Name()))
		return true, nil
	}
	if restored {
		d.deps.Sessions.Clear(d.Name())
	}

	doc, err := parseHTML(page.Body)
	if err != nil {
		return false, fmt.Errorf("duoclaboral login: parse page: %w", err)
	}
	form := url.Values{}
	for _, in := range findElements(doc, "input") {
		if strings.ToLower(getAttr(in, "type")) == "hidden" {
			if name := getAttr(in, "name"); name != "" {
				form.Set(name, getAttr(in, "value"))
			}
		}
	}
	form.Set("LoginForm[username]", strings.TrimSpace(d.deps.Config.DuocEmail))
	form.Set("LoginForm[password]", strings.TrimSpace(d.deps.Config.DuocPassword))

	d.deps.Pacer.Pause(ctx, engine.StepType)
	landing, err := d.deps.Client.PostForm(ctx, d.baseURL+duocLoginPath, form)
	if err != nil {
		return false, fmt.Errorf("duoclaboral login: %w", err)
	}
	if strings.Contains(landing.FinalURL, "login") {
		return false, nil
	}
	if err := d.deps.Sessions.Save(d.Name(), d.base, d.deps.Client.Jar); err != nil {
		slog.Warn("session save failed", slog.String("portal", d.Name()), slog.Any("error", err))
	}
	return true, nil
}

// ApplyFilters is a no-op navigation check: the career filter travels in
// the search URL, so this just verifies the filtered listing loads.
func (d *DuocLaboral) ApplyFilters(ctx context.Context) error {
	page, err := d.deps.Client.Fetch(ctx, d.searchURL(1))
	if err != nil {
		return fmt.Errorf("duoclaboral filters: %w", err)
	}
	if page.Status != 200 {
		return fmt.Errorf("duoclaboral filters: status %d", page.Status)
	}
	d.deps.Pacer.Pause(ctx, engine.StepNavigate)
	return nil
}

func (d *DuocLaboral) searchURL(page int) string {
	q := url.Values{}
	q.Set("Search[jobOfferType]", "0")
	q.Set("Search[genericCareer]", duocCareerInformatica)
	if page > 1 {
		q.Set("page", fmt.Sprint(page))
	}
	return d.baseURL + duocSearchPath + "?" + q.Encode()
}

// ListOffers scrapes one page of search results, skipping cards the portal
// already marks as applied.
func (d *DuocLaboral) ListOffers(ctx context.Context, page int) ([]Offer, error) {
	res, err := d.deps.Client.Fetch(ctx, d.searchURL(page))
	if err != nil {
		return nil, fmt.Errorf("duoclaboral list: %w", err)
	}
	d.deps.Pacer.Pause(ctx, engine.StepNavigate)

	doc, err := parseHTML(res.Body)
	if err != nil {
		return nil, fmt.Errorf("duoclaboral list: parse page: %w", err)
	}

	var offers []Offer
	for _, card := range findAll(doc, func(n *html.Node) bool {
		return n.Data == "article" && hasClass(n, "job-card")
	}) {
		if findByClass(card, "job-card-applied") != nil {
			continue
		}
		link, strategy := firstMatch(card, []findStrategy{
			{"jobs-href", func(n *html.Node) *html.Node {
				return findFirst(n, func(a *html.Node) bool {
					return a.Data == "a" && strings.Contains(getAttr(a, "href"), "/jobs/")
				})
			}},
			{"title-link", func(n *html.Node) *html.Node {
				if t := findByClass(n, "job-card-title"); t != nil {
					if as := findElements(t, "a"); len(as) > 0 {
						return as[0]
					}
				}
				return nil
			}},
		})
		if link == nil {
			continue
		}
		href := getAttr(link, "href")
		m := duocOfferIDRe.FindStringSubmatch(href)
		if m == nil {
			continue
		}

		title := textContent(link)
		if t := findFirst(link, func(n *html.Node) bool {
			return n.Data == "span" && getAttr(n, "itemprop") == "title"
		}); t != nil {
			title = textContent(t)
		}
		company := ""
		if c := findByClass(card, "job-card-company"); c != nil {
			company = textContent(c)
		}

		offers = append(offers, Offer{
			ID:      m[1],
			Title:   title,
			Company: company,
			URL:     absoluteURL(d.baseURL, href),
		})
		slog.Debug("offer found",
			slog.String("portal", d.Name()),
			slog.String("id", m[1]),
			slog.String("strategy", strategy))
	}
	return offers, nil
}

// OfferDetail fetches an offer page and discovers its application form.
func (d *DuocLaboral) OfferDetail(ctx context.Context, offerURL string) (*OfferDetail, error) {
	res, err := d.deps.Client.Fetch(ctx, offerURL)
	if err != nil {
		return nil, fmt.Errorf("duoclaboral detail: %w", err)
	}
	d.deps.Pacer.Pause(ctx, engine.StepRead)

	doc, err := parseHTML(res.Body)
	if err != nil {
		return nil, fmt.Errorf("duoclaboral detail: parse page: %w", err)
	}

	detail := &OfferDetail{ApplyURL: res.FinalURL}
	if h1s := findElements(doc, "h1"); len(h1s) > 0 {
		detail.Title = textContent(h1s[0])
	}
	if c, _ := firstMatch(doc, []findStrategy{
		{"company-name", func(n *html.Node) *html.Node { return findByClass(n, "company-name") }},
		{"job-company", func(n *html.Node) *html.Node { return findByClass(n, "job-company") }},
		{"h2", func(n *html.Node) *html.Node {
			if h2s := findElements(n, "h2"); len(h2s) > 0 {
				return h2s[0]
			}
			return nil
		}},
	}); c != nil {
		detail.Company = textContent(c)
	}
	if loc, _ := firstMatch(doc, []findStrategy{
		{"location", func(n *html.Node) *html.Node { return findByClass(n, "location") }},
		{"job-location", func(n *html.Node) *html.Node { return findByClass(n, "job-location") }},
	}); loc != nil {
		detail.Location = textContent(loc)
	}
	if desc, _ := firstMatch(doc, []findStrategy{
		{"job-description", func(n *html.Node) *html.Node { return findByClass(n, "job-description") }},
		{"description", func(n *html.Node) *html.Node { return findByClass(n, "description") }},
		{"main", func(n *html.Node) *html.Node {
			if ms := findElements(n, "main"); len(ms) > 0 {
				return ms[0]
			}
			return nil
		}},
	}); desc != nil {
		detail.Description = markdownContent(desc)
	} else if body := findElements(doc, "body"); len(body) > 0 {
		detail.Description = engine.Truncate(textContent(body[0]), 4000)
	}

	formRoot, strategy := firstMatch(doc, []findStrategy{
		{"send-application-form", func(n *html.Node) *html.Node {
			if btn := findByID(n, "sendApplication"); btn != nil {
				for p := btn.Parent; p != nil; p = p.Parent {
					if p.Data == "form" {
						return p
					}
				}
				return btn.Parent
			}
			return nil
		}},
		{"apply-form-class", func(n *html.Node) *html.Node { return findByClass(n, "job-apply-form") }},
		{"application-container", func(n *html.Node) *html.Node { return findByClass(n, "application-form") }},
	})
	if formRoot == nil {
		// No on-site form means the offer redirects to an external site.
		detail.External = true
		return detail, nil
	}
	slog.Debug("apply form found", slog.String("portal", d.Name()), slog.String("strategy", strategy))

	info := ParseApplyForm(doc, formRoot)
	detail.Questions = info.Questions
	detail.HasSalary = info.SalaryField != ""
	detail.HasSubmit = info.HasSubmit || findByID(doc, "sendApplication") != nil
	return detail, nil
}

// Apply runs the full application state machine for one offer: duplicate
// check on the live page, answer generation, review, fill and submit. The
// outcome is always recorded in the ledger before returning.
func (d *DuocLaboral) Apply(ctx context.Context, offer Offer, detail *OfferDetail, review Reviewer) (Status, error) {
	status, answers, err := d.apply(ctx, offer, detail, review)

	answersJSON := ""
	if len(answers) > 0 {
		if data, jerr := json.Marshal(answers); jerr == nil {
			answersJSON = string(data)
		}
	}
	if rerr := d.deps.Recorder.RecordAttempt(ctx, d.Name(), offer.ID, offer.Title, offer.Company, offer.URL, string(status), answersJSON); rerr != nil {
		slog.Error("ledger record failed", slog.String("offer", offer.ID), slog.Any("error", rerr))
	}
	return status, err
}

func (d *DuocLaboral) apply(ctx context.Context, offer Offer, detail *OfferDetail, review Reviewer) (Status, []QA, error) {
	if detail.External {
		return StatusExternal, nil, nil
	}

	page, err := d.deps.Client.Get(ctx, offer.URL)
	if err != nil {
		return StatusError, nil, fmt.Errorf("duoclaboral apply: %w", err)
	}
	d.deps.Pacer.Pause(ctx, engine.StepRead)

	doc, err := parseHTML(page.Body)
	if err != nil {
		return StatusError, nil, fmt.Errorf("duoclaboral apply: parse page: %w", err)
	}
	if pageContains(doc, "Ya postulaste") || pageContains(doc, "Postulado") {
		return StatusDuplicate, nil, nil
	}

	if detail.Summary == "" {
		detail.Summary = d.deps.Answers.Summarize(ctx, detail.Description)
	}

	proposed := make([]QA, 0, len(detail.Questions))
	for _, q := range detail.Questions {
		var answer string
		switch q.Kind {
		case FieldSelect, FieldRadio:
			answer = d.deps.Answers.ChooseOption(ctx, q.Label, q.Options, detail.Description)
		default:
			answer = d.deps.Answers.Answer(ctx, q.Label, detail.Description)
		}
		proposed = append(proposed, QA{Question: q.Label, Answer: answer, Field: q.Field, Index: q.Index})
	}

	verdict := review.Review(offer, detail, proposed, d.defaultSalary())
	if !verdict.Approved {
		return StatusSkipped, verdict.Answers, nil
	}

	form := url.Values{}
	for _, in := range findElements(doc, "input") {
		if strings.ToLower(getAttr(in, "type")) == "hidden" {
			if name := getAttr(in, "name"); name != "" {
				form.Set(name, getAttr(in, "value"))
			}
		}
	}
	textareas := findElements(doc, "textarea")
	for _, qa := range verdict.Answers {
		name := qa.Field
		if name == "" && qa.Index < len(textareas) {
			name = fieldName(textareas[qa.Index])
		}
		if name == "" {
			continue
		}
		form.Set(name, qa.Answer)
		d.deps.Pacer.Pause(ctx, engine.StepType)
	}
	if detail.HasSalary {
		if salaryIn := findFirst(doc, func(n *html.Node) bool {
			return n.Data == "input" && isSalaryInput(n)
		}); salaryIn != nil {
			form.Set(fieldName(salaryIn), verdict.Salary)
		}
	}

	if !detail.HasSubmit {
		return StatusErrorButton, verdict.Answers, nil
	}
	applyURL := detail.ApplyURL
	if f := findFirst(doc, func(n *html.Node) bool {
		return n.Data == "form" && findByID(n, "sendApplication") != nil
	}); f != nil {
		if action := getAttr(f, "action"); action != "" {
			applyURL = absoluteURL(d.baseURL, action)
		}
	}

	d.deps.Pacer.Pause(ctx, engine.StepSubmit)
	res, err := d.deps.Client.PostForm(ctx, applyURL, form)
	if err != nil {
		return StatusError, verdict.Answers, fmt.Errorf("duoclaboral apply: submit: %w", err)
	}
	if res.Status >= 400 {
		return StatusError, verdict.Answers, fmt.Errorf("duoclaboral apply: submit status %d", res.Status)
	}
	return StatusSent, verdict.Answers, nil
}

func (d *DuocLaboral) defaultSalary() string {
	return defaultSalary(d.deps)
}

// absoluteURL resolves portal-relative hrefs.
func absoluteURL(base, href string) string {
	if strings.HasPrefix(href, "/") {
		return base + href
	}
	return href
}
