package engine

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	stealth "github.com/anatolykoptev/go-stealth"
)

// Portal name constants used for ledger namespacing, session caching and
// credential validation.
const (
	PortalDuocLaboral   = "duoclaboral"
	PortalChileTrabajos = "chiletrabajos"
)

// Config holds all bot configuration, assembled in main and passed to
// constructors explicitly.
type Config struct {
	// Generation endpoint (OpenAI-compatible, Groq by default).
	LLMAPIKey      string
	LLMAPIBase     string
	LLMModels      []string // ordered fallback chain, first is preferred
	LLMTemperature float64
	LLMMaxTokens   int

	// Portal credentials.
	DuocEmail             string
	DuocPassword          string
	ChileTrabajosEmail    string
	ChileTrabajosPassword string

	// Search filters.
	Career        string
	Keywords      string
	MaxPerSession int
	PageCount     int

	// Paths.
	DataDir     string // ledger, session and quota side files
	ProfilePath string
	CVPath      string

	// Optional Postgres ledger; empty = SQLite under DataDir.
	DatabaseURL string

	FetchTimeout  time.Duration
	HTTPClient    *http.Client
	BrowserClient *stealth.BrowserClient // nil = plain net/http only
}

// ValidateFor checks that the credentials needed for the selected portal and
// the generation endpoint are present. Returns one error listing every
// missing variable so the user can fix them in a single pass.
func (c Config) ValidateFor(portal string) error {
	var missing []string
	switch portal {
	case PortalChileTrabajos:
		if c.ChileTrabajosEmail == "" {
			missing = append(missing, "CHILETRABAJOS_EMAIL")
		}
		if c.ChileTrabajosPassword == "" {
			missing = append(missing, "CHILETRABAJOS_PASSWORD")
		}
	default:
		if c.DuocEmail == "" {
			missing = append(missing, "DUOC_EMAIL")
		}
		if c.DuocPassword == "" {
			missing = append(missing, "DUOC_PASSWORD")
		}
	}
	if c.LLMAPIKey == "" {
		missing = append(missing, "LLM_API_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: missing required settings: %s", strings.Join(missing, ", "))
	}
	return nil
}
