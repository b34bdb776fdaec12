package engine

import (
	"encoding/json"
	"net/http"
	"os"
	"sync"
	"time"
)

// QuotaRecord is the latest rate-limit state reported by the generation
// endpoint. Display-only; the side file is safe to delete.
type QuotaRecord struct {
	RemainingTokens   string    `json:"remaining_tokens"`
	RemainingRequests string    `json:"remaining_requests"`
	Model             string    `json:"model,omitempty"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// QuotaTransport wraps an http.RoundTripper and passively records the
// endpoint's x-ratelimit-* response headers.
type QuotaTransport struct {
	Base http.RoundTripper
	Path string

	mu sync.Mutex
}

func (t *QuotaTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	resp, err := base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if tokens := resp.Header.Get("x-ratelimit-remaining-tokens"); tokens != "" {
		t.save(QuotaRecord{
			RemainingTokens:   tokens,
			RemainingRequests: resp.Header.Get("x-ratelimit-remaining-requests"),
			Model:             resp.Header.Get("x-groq-model"),
			UpdatedAt:         time.Now(),
		})
	}
	return resp, nil
}

// save is best-effort: quota display must never interfere with the call.
func (t *QuotaTransport) save(rec QuotaRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return
	}
	_ = os.WriteFile(t.Path, data, 0o600)
}

// LoadQuota reads the last recorded quota state, nil if none exists.
func LoadQuota(path string) *QuotaRecord {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var rec QuotaRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil
	}
	return &rec
}
