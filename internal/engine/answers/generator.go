// Package answers turns application-form questions into persona-consistent
// Spanish text, backed by an ordered chain of generation models with canned
// responses for the questions that must always read the same.
package answers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/anatolykoptev/go-kit/llm"
	"golang.org/x/time/rate"

	"github.com/joseoporto/postulabot/internal/engine"
)

const (
	attemptsPerModel = 3
	attemptDelay     = 2 * time.Second
	answerTemp       = 0.7
	answerMaxTokens  = 256
)

// cannedRule maps question-label keywords to a fixed verbatim answer.
// Checked in order; the first match wins and skips generation entirely.
type cannedRule struct {
	keywords []string
	answer   func(p *engine.Profile) string
}

var cannedRules = []cannedRule{
	{
		keywords: []string{"horas", "práctica", "practica", "hours", "internship"},
		answer:   func(*engine.Profile) string { return cannedHours },
	},
	{
		keywords: []string{"seguro escolar", "seguro de salud", "seguro estudiantil", "insurance"},
		answer:   func(*engine.Profile) string { return cannedInsurance },
	},
	{
		keywords: []string{"rut", "cédula", "cedula", "national id"},
		answer:   func(p *engine.Profile) string { return p.RUT },
	},
}

// Generator produces application answers. Not safe for concurrent use;
// the whole bot is single-threaded on purpose.
type Generator struct {
	profile *engine.Profile
	chain   []engine.Completer
	models  []string // names parallel to chain, for logs
	limiter *rate.Limiter
	pacer   engine.Pacer

	// Evasive phrasings already used this session. Fed back into the
	// prompt so the persona never repeats the same dodge twice.
	usedDisclaimers []string
}

// NewGenerator wires the answer generator. limiter and pacer may not be nil.
func NewGenerator(profile *engine.Profile, chain []engine.Completer, models []string, limiter *rate.Limiter, pacer engine.Pacer) *Generator {
	return &Generator{
		profile: profile,
		chain:   chain,
		models:  models,
		limiter: limiter,
		pacer:   pacer,
	}
}

// Answer generates a first-person response to a form question. It always
// returns non-empty text: canned rules first, then the model chain, then
// fixed fallbacks. Never returns an error to the caller.
func (g *Generator) Answer(ctx context.Context, questionLabel, offerDescription string) string {
	label := strings.ToLower(questionLabel)
	for _, rule := range cannedRules {
		for _, kw := range rule.keywords {
			if strings.Contains(label, kw) {
				if a := rule.answer(g.profile); a != "" {
					return a
				}
			}
		}
	}

	prompt := g.answerPrompt(questionLabel, offerDescription)
	text, err := g.complete(ctx, answerSystem, prompt,
		llm.WithChatTemperature(answerTemp),
		llm.WithChatMaxTokens(answerMaxTokens),
	)
	if err != nil {
		if engine.IsForbidden(err) {
			return forbiddenFallback
		}
		slog.Warn("answer generation failed", slog.String("question", engine.Truncate(questionLabel, 60)), slog.Any("error", err))
		return genericFallback
	}
	text = strings.TrimSpace(strings.Trim(engine.StripFences(text), `"`))
	if text == "" {
		return genericFallback
	}
	g.rememberDisclaimer(text)
	return text
}

// Relevance classifies topical fit of an offer against the profile.
// Failures default to relevant: dropping a good offer silently costs more
// than reviewing a bad one.
func (g *Generator) Relevance(ctx context.Context, title, description string) (bool, string) {
	prompt := fmt.Sprintf("PERFIL DEL CANDIDATO:\n%s\nOFERTA:\nTítulo: %s\nDescripción: %s\n\n¿Es relevante esta oferta para el candidato?",
		g.profile.PromptContext(), title, engine.Truncate(engine.StripTags(description), 2000))

	text, err := g.complete(ctx, relevanceSystem, prompt,
		llm.WithChatTemperature(0.0),
		llm.WithChatMaxTokens(120),
	)
	if err != nil {
		return true, "relevancia asumida por defecto (generación no disponible)"
	}

	var verdict struct {
		Relevante bool   `json:"relevante"`
		Razon     string `json:"razon"`
	}
	if err := json.Unmarshal([]byte(engine.StripFences(text)), &verdict); err != nil {
		return true, "relevancia asumida por defecto (respuesta no interpretable)"
	}
	if verdict.Razon == "" {
		verdict.Razon = "sin razón indicada"
	}
	return verdict.Relevante, verdict.Razon
}

// ChooseOption picks one entry from a single-select field. The returned
// string is always one of the supplied options (canonical casing).
func (g *Generator) ChooseOption(ctx context.Context, questionLabel string, options []string, offerDescription string) string {
	real := make([]string, 0, len(options))
	for _, opt := range options {
		if !isPlaceholder(opt) {
			real = append(real, opt)
		}
	}
	switch len(real) {
	case 0:
		if len(options) == 0 {
			return ""
		}
		return options[0]
	case 1:
		return real[0]
	}

	prompt := fmt.Sprintf("PERFIL DEL CANDIDATO:\n%s\nOFERTA:\n%s\n\nPREGUNTA: %s\nOPCIONES:\n- %s\n\nElige UNA opción.",
		g.profile.PromptContext(), engine.Truncate(engine.StripTags(offerDescription), 1200),
		questionLabel, strings.Join(real, "\n- "))

	text, err := g.complete(ctx, chooseSystem, prompt,
		llm.WithChatTemperature(0.0),
		llm.WithChatMaxTokens(60),
	)
	if err == nil {
		choice := strings.TrimSpace(strings.Trim(engine.StripFences(text), `"'`))
		for _, opt := range real {
			if strings.EqualFold(choice, opt) {
				return opt
			}
		}
	}
	return real[0]
}

// Summarize produces a short structured synopsis of an offer description.
func (g *Generator) Summarize(ctx context.Context, description string) string {
	clean := engine.StripTags(description)
	if len([]rune(clean)) < 120 {
		return summaryUnavailable
	}
	text, err := g.complete(ctx, summarySystem, engine.Truncate(clean, 4000),
		llm.WithChatTemperature(0.2),
		llm.WithChatMaxTokens(300),
	)
	if err != nil || strings.TrimSpace(text) == "" {
		return summaryUnavailable
	}
	return strings.TrimSpace(text)
}

// TestConnection fires a minimal request through the chain so the user can
// check credentials from the menu before starting a session.
func (g *Generator) TestConnection(ctx context.Context) string {
	text, err := g.complete(ctx, "", "Hola", llm.WithChatMaxTokens(10))
	if err != nil {
		return fmt.Sprintf("ERROR: %v", err)
	}
	return fmt.Sprintf("OK: %s", strings.TrimSpace(text))
}

// complete walks the model chain: per model up to attemptsPerModel tries
// with a fixed delay, honoring the rate limiter before every call. A
// forbidden response aborts the whole chain immediately.
func (g *Generator) complete(ctx context.Context, system, prompt string, opts ...llm.ChatOption) (string, error) {
	var lastErr error
	for i, client := range g.chain {
		model := ""
		if i < len(g.models) {
			model = g.models[i]
		}
		for attempt := 1; attempt <= attemptsPerModel; attempt++ {
			if g.limiter != nil {
				if err := g.limiter.Wait(ctx); err != nil {
					return "", err
				}
			}
			g.pacer.Pause(ctx, engine.StepGenerate)

			text, err := client.Complete(ctx, system, prompt, opts...)
			if err == nil {
				return text, nil
			}
			lastErr = err
			if engine.IsForbidden(err) {
				return "", fmt.Errorf("model %s: %w", model, err)
			}
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			slog.Debug("generation attempt failed",
				slog.String("model", model),
				slog.Int("attempt", attempt),
				slog.Any("error", err))
			if attempt < attemptsPerModel {
				select {
				case <-time.After(attemptDelay):
				case <-ctx.Done():
					return "", ctx.Err()
				}
			}
		}
		slog.Warn("model exhausted, falling back", slog.String("model", model))
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no models configured")
	}
	return "", fmt.Errorf("generation failed: %w", lastErr)
}

func (g *Generator) answerPrompt(question, description string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "PERFIL DEL CANDIDATO:\n%s\n", g.profile.PromptContext())
	if description != "" {
		fmt.Fprintf(&b, "OFERTA A LA QUE POSTULAS:\n%s\n\n", engine.Truncate(engine.StripTags(description), 2000))
	}
	b.WriteString("REGLAS:\n")
	b.WriteString("1. JAMÁS digas \"el perfil del candidato\", \"no se proporciona\" ni \"no tengo esa información\".\n")
	b.WriteString("2. Si no conoces una herramienta específica, muestra adaptabilidad rápida.\n")
	if len(g.usedDisclaimers) > 0 {
		b.WriteString("3. Ya usaste estas frases evasivas, NO repitas su redacción:\n")
		for _, d := range g.usedDisclaimers {
			fmt.Fprintf(&b, "   - %s\n", d)
		}
	}
	fmt.Fprintf(&b, "\nPREGUNTA DE LA EMPRESA:\n%s\n\nTU RESPUESTA:", question)
	return b.String()
}

// rememberDisclaimer keeps evasive answers so later prompts can forbid
// repeating them within the session.
func (g *Generator) rememberDisclaimer(text string) {
	lower := strings.ToLower(text)
	for _, marker := range []string{"no poseo", "no he usado", "no cuento con", "aprenderé", "aprendere"} {
		if strings.Contains(lower, marker) {
			g.usedDisclaimers = append(g.usedDisclaimers, engine.Truncate(text, 160))
			return
		}
	}
}

// isPlaceholder flags select options that are prompts rather than values.
func isPlaceholder(opt string) bool {
	o := strings.ToLower(strings.TrimSpace(opt))
	if o == "" || strings.HasPrefix(o, "--") {
		return true
	}
	return strings.Contains(o, "seleccion") || strings.Contains(o, "selecciona") || strings.Contains(o, "elige")
}
