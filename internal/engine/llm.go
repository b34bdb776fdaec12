package engine

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/anatolykoptev/go-kit/llm"
)

// Completer is the contract against the generation endpoint. Satisfied by
// go-kit's llm.Client; tests substitute fakes.
type Completer interface {
	Complete(ctx context.Context, system, prompt string, opts ...llm.ChatOption) (string, error)
}

// ErrForbidden marks a client-forbidden response from the generation
// endpoint (bad or revoked API key). Callers must not retry past it.
var ErrForbidden = errors.New("generation endpoint: forbidden")

// IsForbidden reports whether err looks like an HTTP 403 from the endpoint.
// The client surfaces status codes in the error text, so this is a string
// check by necessity.
func IsForbidden(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrForbidden) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "403") || strings.Contains(strings.ToLower(msg), "forbidden")
}

// StripFences removes markdown code fences from model output.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// NewCompleterChain builds one client per model in the configured fallback
// chain, all sharing the quota-observing HTTP client.
func NewCompleterChain(c Config, httpClient *http.Client) []Completer {
	chain := make([]Completer, 0, len(c.LLMModels))
	for _, model := range c.LLMModels {
		chain = append(chain, llm.NewClient(c.LLMAPIBase, c.LLMAPIKey, model,
			llm.WithTemperature(c.LLMTemperature),
			llm.WithMaxTokens(c.LLMMaxTokens),
			llm.WithHTTPClient(httpClient),
		))
	}
	return chain
}
