package engine

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

// storedCookie is the subset of http.Cookie worth persisting between runs.
type storedCookie struct {
	Name    string    `json:"name"`
	Value   string    `json:"value"`
	Domain  string    `json:"domain,omitempty"`
	Path    string    `json:"path,omitempty"`
	Expires time.Time `json:"expires,omitempty"`
	Secure  bool      `json:"secure,omitempty"`
}

// SessionStore saves portal cookies to a side file so repeated runs can
// skip the login form while the session is still valid.
type SessionStore struct {
	Dir string
}

func (s *SessionStore) path(portal string) string {
	return filepath.Join(s.Dir, "session_"+portal+".json")
}

// Save persists the jar's cookies for the given portal base URL.
func (s *SessionStore) Save(portal string, base *url.URL, jar http.CookieJar) error {
	cookies := jar.Cookies(base)
	out := make([]storedCookie, 0, len(cookies))
	for _, c := range cookies {
		out = append(out, storedCookie{
			Name: c.Name, Value: c.Value,
			Domain: c.Domain, Path: c.Path,
			Expires: c.Expires, Secure: c.Secure,
		})
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	if err := os.WriteFile(s.path(portal), data, 0o600); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Restore loads saved cookies into the jar. Returns false when no usable
// session file exists; a stale or corrupt file is treated as absent.
func (s *SessionStore) Restore(portal string, base *url.URL, jar http.CookieJar) bool {
	data, err := os.ReadFile(s.path(portal))
	if err != nil {
		return false
	}
	var stored []storedCookie
	if err := json.Unmarshal(data, &stored); err != nil {
		return false
	}
	now := time.Now()
	cookies := make([]*http.Cookie, 0, len(stored))
	for _, c := range stored {
		if !c.Expires.IsZero() && c.Expires.Before(now) {
			continue
		}
		cookies = append(cookies, &http.Cookie{
			Name: c.Name, Value: c.Value,
			Domain: c.Domain, Path: c.Path,
			Expires: c.Expires, Secure: c.Secure,
		})
	}
	if len(cookies) == 0 {
		return false
	}
	jar.SetCookies(base, cookies)
	return true
}

// Clear removes the saved session for a portal.
func (s *SessionStore) Clear(portal string) {
	_ = os.Remove(s.path(portal))
}
