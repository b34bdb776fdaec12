package portales

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/joseoporto/postulabot/internal/engine"
)

const (
	chtBaseURL    = "https://www.chiletrabajos.cl"
	chtLoginPath  = "/chtlogin"
	chtSearchPath = "/encuentra-un-empleo"

	// Region Metropolitana in the search form's region parameter.
	chtRegionMetropolitana = "1022"

	// The question fields are VARCHAR(255); answers get capped below that.
	chtAnswerLimit = 250
)

// Offer links look like /trabajo/analista-de-facturacion-3793214.
var chtOfferIDRe = regexp.MustCompile(`/trabajo/[a-z0-9-]*?(\d+)$`)

// ChileTrabajos automates the public chiletrabajos.cl job board.
type ChileTrabajos struct {
	deps    Deps
	baseURL string
	base    *url.URL
}

func NewChileTrabajos(deps Deps) *ChileTrabajos {
	c := &ChileTrabajos{deps: deps}
	c.setBase(chtBaseURL)
	return c
}

func (c *ChileTrabajos) setBase(raw string) {
	c.baseURL = raw
	c.base, _ = url.Parse(raw)
}

func (c *ChileTrabajos) Name() string { return engine.PortalChileTrabajos }

// Login signs in through /chtlogin unless a restored session is still
// accepted by the portal.
func (c *ChileTrabajos) Login(ctx context.Context) (bool, error) {
	restored := c.deps.Sessions.Restore(c.Name(), c.base, c.deps.Client.Jar)

	page, err := c.deps.Client.Get(ctx, c.baseURL+chtLoginPath)
	if err != nil {
		return false, fmt.Errorf("chiletrabajos login: %w", err)
	}
	c.deps.Pacer.Pause(ctx, engine.StepNavigate)

	if c.loggedIn(page) {
		slog.Info("session restored", slog.String("portal", c.Name()))
		return true, nil
	}
	if restored {
		c.deps.Sessions.Clear(c.Name())
	}

	doc, err := parseHTML(page.Body)
	if err != nil {
		return false, fmt.Errorf("chiletrabajos login: parse page: %w", err)
	}
	form := url.Values{}
	for _, in := range findElements(doc, "input") {
		if strings.ToLower(getAttr(in, "type")) == "hidden" {
			if name := getAttr(in, "name"); name != "" {
				form.Set(name, getAttr(in, "value"))
			}
		}
	}
	form.Set("username", strings.TrimSpace(c.deps.Config.ChileTrabajosEmail))
	form.Set("password", strings.TrimSpace(c.deps.Config.ChileTrabajosPassword))
	form.Set("login", "Iniciar Sesión")

	c.deps.Pacer.Pause(ctx, engine.StepType)
	landing, err := c.deps.Client.PostForm(ctx, c.baseURL+chtLoginPath, form)
	if err != nil {
		return false, fmt.Errorf("chiletrabajos login: %w", err)
	}
	if !c.loggedIn(landing) {
		return false, nil
	}
	if err := c.deps.Sessions.Save(c.Name(), c.base, c.deps.Client.Jar); err != nil {
		slog.Warn("session save failed", slog.String("portal", c.Name()), slog.Any("error", err))
	}
	return true, nil
}

func (c *ChileTrabajos) loggedIn(page *engine.PageResult) bool {
	if strings.Contains(page.FinalURL, "/panel") {
		return true
	}
	body := string(page.Body)
	return strings.Contains(body, "Cerrar sesión") || strings.Contains(body, "Mi cuenta")
}

// ApplyFilters verifies the keyword+region search URL resolves; the
// filters themselves travel as query parameters on every listing request.
func (c *ChileTrabajos) ApplyFilters(ctx context.Context) error {
	page, err := c.deps.Client.Fetch(ctx, c.searchURL(1))
	if err != nil {
		return fmt.Errorf("chiletrabajos filters: %w", err)
	}
	if page.Status != 200 {
		return fmt.Errorf("chiletrabajos filters: status %d", page.Status)
	}
	c.deps.Pacer.Pause(ctx, engine.StepNavigate)
	return nil
}

func (c *ChileTrabajos) searchURL(page int) string {
	q := url.Values{}
	q.Set("2", c.deps.Config.Keywords)
	q.Set("13", chtRegionMetropolitana)
	if page > 1 {
		q.Set("p", fmt.Sprint(page))
	}
	return c.baseURL + chtSearchPath + "?" + q.Encode()
}

// ListOffers scrapes one search results page. Offer identity comes from
// the numeric suffix of the /trabajo/slug-ID links.
func (c *ChileTrabajos) ListOffers(ctx context.Context, page int) ([]Offer, error) {
	res, err := c.deps.Client.Fetch(ctx, c.searchURL(page))
	if err != nil {
		return nil, fmt.Errorf("chiletrabajos list: %w", err)
	}
	c.deps.Pacer.Pause(ctx, engine.StepNavigate)

	doc, err := parseHTML(res.Body)
	if err != nil {
		return nil, fmt.Errorf("chiletrabajos list: parse page: %w", err)
	}

	var offers []Offer
	seen := map[string]bool{}
	for _, a := range findAll(doc, func(n *html.Node) bool {
		return n.Data == "a" && strings.Contains(getAttr(n, "href"), "/trabajo/")
	}) {
		href := getAttr(a, "href")
		if i := strings.IndexByte(href, '?'); i >= 0 {
			href = href[:i]
		}
		m := chtOfferIDRe.FindStringSubmatch(href)
		if m == nil || seen[m[1]] {
			continue
		}
		title := textContent(a)
		if title == "" {
			continue
		}
		seen[m[1]] = true
		offers = append(offers, Offer{
			ID:    m[1],
			Title: title,
			URL:   absoluteURL(c.baseURL, href),
		})
	}
	return offers, nil
}

// OfferDetail fetches the offer page; the application form itself lives at
// /trabajo/postular/{id} and is parsed during Apply.
func (c *ChileTrabajos) OfferDetail(ctx context.Context, offerURL string) (*OfferDetail, error) {
	res, err := c.deps.Client.Fetch(ctx, offerURL)
	if err != nil {
		return nil, fmt.Errorf("chiletrabajos detail: %w", err)
	}
	c.deps.Pacer.Pause(ctx, engine.StepRead)

	doc, err := parseHTML(res.Body)
	if err != nil {
		return nil, fmt.Errorf("chiletrabajos detail: parse page: %w", err)
	}

	detail := &OfferDetail{}
	if h1, strategy := firstMatch(doc, []findStrategy{
		{"h1-title", func(n *html.Node) *html.Node {
			return findFirst(n, func(h *html.Node) bool { return h.Data == "h1" && hasClass(h, "title") })
		}},
		{"h1", func(n *html.Node) *html.Node {
			if hs := findElements(n, "h1"); len(hs) > 0 {
				return hs[0]
			}
			return nil
		}},
	}); h1 != nil {
		detail.Title = textContent(h1)
		slog.Debug("title found", slog.String("portal", c.Name()), slog.String("strategy", strategy))
	}
	if meta := findFirst(doc, func(n *html.Node) bool {
		return n.Data == "h3" && hasClass(n, "meta")
	}); meta != nil {
		detail.Company = textContent(meta)
	}
	if desc, strategy := firstMatch(doc, []findStrategy{
		{"job-description", func(n *html.Node) *html.Node { return findByClass(n, "job-description") }},
		{"description", func(n *html.Node) *html.Node { return findByClass(n, "description") }},
	}); desc != nil {
		detail.Description = engine.Truncate(markdownContent(desc), 4000)
		slog.Debug("description found", slog.String("portal", c.Name()), slog.String("strategy", strategy))
	} else if body := findElements(doc, "body"); len(body) > 0 {
		detail.Description = engine.Truncate(textContent(body[0]), 4000)
	}

	m := chtOfferIDRe.FindStringSubmatch(strings.Split(offerURL, "?")[0])
	if m == nil {
		return nil, fmt.Errorf("chiletrabajos detail: no offer id in %s", offerURL)
	}
	detail.ApplyURL = fmt.Sprintf("%s/trabajo/postular/%s", c.baseURL, m[1])
	return detail, nil
}

// Apply opens the /trabajo/postular/{id} form, answers its qN questions,
// fills cover letter, salary and availability, attaches the CV and submits
// as multipart. The outcome is always recorded before returning.
func (c *ChileTrabajos) Apply(ctx context.Context, offer Offer, detail *OfferDetail, review Reviewer) (Status, error) {
	status, answers, err := c.apply(ctx, offer, detail, review)

	answersJSON := ""
	if len(answers) > 0 {
		if data, jerr := json.Marshal(answers); jerr == nil {
			answersJSON = string(data)
		}
	}
	if rerr := c.deps.Recorder.RecordAttempt(ctx, c.Name(), offer.ID, offer.Title, offer.Company, offer.URL, string(status), answersJSON); rerr != nil {
		slog.Error("ledger record failed", slog.String("offer", offer.ID), slog.Any("error", rerr))
	}
	return status, err
}

func (c *ChileTrabajos) apply(ctx context.Context, offer Offer, detail *OfferDetail, review Reviewer) (Status, []QA, error) {
	page, err := c.deps.Client.Get(ctx, detail.ApplyURL)
	if err != nil {
		return StatusError, nil, fmt.Errorf("chiletrabajos apply: %w", err)
	}
	c.deps.Pacer.Pause(ctx, engine.StepRead)

	doc, err := parseHTML(page.Body)
	if err != nil {
		return StatusError, nil, fmt.Errorf("chiletrabajos apply: parse page: %w", err)
	}
	if pageContains(doc, "Ya has postulado") || pageContains(doc, "ya postulaste") {
		return StatusDuplicate, nil, nil
	}

	if detail.Summary == "" {
		detail.Summary = c.deps.Answers.Summarize(ctx, detail.Description)
	}

	questions := c.findQuestions(doc)
	proposed := make([]QA, 0, len(questions))
	for _, q := range questions {
		answer := c.deps.Answers.Answer(ctx, q.Label, detail.Description)
		proposed = append(proposed, QA{
			Question: q.Label,
			Answer:   engine.TruncateRunes(answer, chtAnswerLimit, ""),
			Field:    q.Field,
			Index:    q.Index,
		})
	}

	verdict := review.Review(offer, detail, proposed, defaultSalary(c.deps))
	if !verdict.Approved {
		return StatusSkipped, verdict.Answers, nil
	}

	fields := map[string]string{}
	for _, in := range findElements(doc, "input") {
		if strings.ToLower(getAttr(in, "type")) == "hidden" {
			if name := getAttr(in, "name"); name != "" {
				fields[name] = getAttr(in, "value")
			}
		}
	}
	for _, qa := range verdict.Answers {
		if qa.Field == "" {
			continue
		}
		fields[qa.Field] = engine.TruncateRunes(qa.Answer, chtAnswerLimit, "")
		c.deps.Pacer.Pause(ctx, engine.StepType)
	}

	// Cover letter: only generate when the form's letter field is empty.
	if letter := findFirst(doc, func(n *html.Node) bool {
		return n.Data == "textarea" && (getAttr(n, "id") == "carta" || getAttr(n, "name") == "app_letter")
	}); letter != nil {
		if strings.TrimSpace(textContent(letter)) == "" {
			text := c.deps.Answers.Answer(ctx, "Carta de presentación", detail.Description)
			fields[fieldName(letter)] = engine.TruncateRunes(text, 2000, "")
		}
	}

	if salary := findFirst(doc, func(n *html.Node) bool {
		return n.Data == "input" && (getAttr(n, "name") == "salary" || getAttr(n, "id") == "salary")
	}); salary != nil {
		fields[fieldName(salary)] = verdict.Salary
	}

	if dispo := findFirst(doc, func(n *html.Node) bool {
		return n.Data == "input" && (getAttr(n, "name") == "disp" || getAttr(n, "id") == "dispo")
	}); dispo != nil {
		availability := "Inmediata"
		if c.deps.Profile != nil && c.deps.Profile.Preferencias.Disponibilidad != "" {
			availability = c.deps.Profile.Preferencias.Disponibilidad
		}
		if strings.EqualFold(availability, "inmediata") && findByID(doc, "dispoIn") != nil {
			fields["dispoIn"] = "1"
		}
		fields[fieldName(dispo)] = availability
	}

	var files []engine.FileField
	if cv := findFirst(doc, func(n *html.Node) bool {
		return n.Data == "input" && (getAttr(n, "name") == "att1" || getAttr(n, "id") == "cv")
	}); cv != nil && c.deps.Config.CVPath != "" {
		content, rerr := os.ReadFile(c.deps.Config.CVPath)
		if rerr != nil {
			slog.Warn("cv not attached", slog.String("path", c.deps.Config.CVPath), slog.Any("error", rerr))
		} else {
			files = append(files, engine.FileField{
				Field:    fieldName(cv),
				Filename: filepath.Base(c.deps.Config.CVPath),
				Content:  content,
			})
		}
	}

	submit := findFirst(doc, func(n *html.Node) bool {
		return n.Data == "input" && strings.ToLower(getAttr(n, "type")) == "submit" &&
			(getAttr(n, "name") == "apply" || strings.Contains(getAttr(n, "class"), "enviar-postulacion"))
	})
	if submit == nil {
		submit = findFirst(doc, func(n *html.Node) bool {
			return n.Data == "input" && strings.ToLower(getAttr(n, "type")) == "submit"
		})
	}
	if submit == nil {
		return StatusErrorButton, verdict.Answers, nil
	}
	if name := getAttr(submit, "name"); name != "" {
		fields[name] = getAttr(submit, "value")
	}

	postURL := detail.ApplyURL
	if f := findFirst(doc, func(n *html.Node) bool {
		return n.Data == "form" && len(findElements(n, "textarea")) > 0
	}); f != nil {
		if action := getAttr(f, "action"); action != "" {
			postURL = absoluteURL(c.baseURL, action)
		}
	}

	c.deps.Pacer.Pause(ctx, engine.StepSubmit)
	res, err := c.deps.Client.PostMultipart(ctx, postURL, fields, files)
	if err != nil {
		return StatusError, verdict.Answers, fmt.Errorf("chiletrabajos apply: submit: %w", err)
	}
	if res.Status >= 400 {
		return StatusError, verdict.Answers, fmt.Errorf("chiletrabajos apply: submit status %d", res.Status)
	}
	return StatusSent, verdict.Answers, nil
}

// findQuestions locates the employer's dynamic qN textareas. The label is
// carried in a hidden {name}_label input, with a label[for] fallback.
func (c *ChileTrabajos) findQuestions(doc *html.Node) []Question {
	var questions []Question
	for i, ta := range findAll(doc, func(n *html.Node) bool {
		if n.Data != "textarea" {
			return false
		}
		return hasClass(n, "questionText") ||
			strings.HasPrefix(getAttr(n, "name"), "q") ||
			strings.HasPrefix(getAttr(n, "id"), "q")
	}) {
		name := fieldName(ta)
		if name == "" || name == "app_letter" {
			continue
		}
		label := ""
		if hidden := findFirst(doc, func(n *html.Node) bool {
			return n.Data == "input" && getAttr(n, "name") == name+"_label"
		}); hidden != nil {
			label = getAttr(hidden, "value")
		}
		if label == "" {
			label = resolveLabel(doc, ta)
		}
		if label == "" {
			label = name
		}
		questions = append(questions, Question{
			Label: label,
			Index: i,
			Field: name,
			Kind:  ClassifyQuestion(label),
		})
	}
	return questions
}
