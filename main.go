// postulabot — interactive bot that applies to job offers on Chilean
// recruiting portals (DuocLaboral, ChileTrabajos).
//
// Sessions are strictly sequential: login, filtered listing, then one
// offer at a time through duplicate and relevance gates, generated
// answers, terminal review and submission. Every attempt lands in a
// local ledger so no offer is ever applied to twice.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/anatolykoptev/go-kit/env"
	stealth "github.com/anatolykoptev/go-stealth"
	"github.com/anatolykoptev/go-stealth/proxypool"
	"github.com/joho/godotenv"
	"golang.org/x/time/rate"

	"github.com/joseoporto/postulabot/internal/cli"
	"github.com/joseoporto/postulabot/internal/engine"
	"github.com/joseoporto/postulabot/internal/engine/answers"
	"github.com/joseoporto/postulabot/internal/engine/ledger"
	"github.com/joseoporto/postulabot/internal/engine/portales"
	"github.com/joseoporto/postulabot/internal/runner"
)

func main() {
	// Local .env is optional; real deployments set the environment.
	_ = godotenv.Load()

	dataDir := env.Str("DATA_DIR", filepath.Join(os.Getenv("HOME"), ".postulabot"))
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		slog.Error("data dir init failed", slog.String("dir", dataDir), slog.Any("error", err))
		os.Exit(1)
	}

	c := engine.Config{
		LLMAPIKey:             env.Str("LLM_API_KEY", env.Str("GROQ_API_KEY", "")),
		LLMAPIBase:            env.Str("LLM_API_BASE", "https://api.groq.com/openai/v1"),
		LLMModels:             env.List("LLM_MODELS", "llama-3.3-70b-versatile,llama-3.1-8b-instant"),
		LLMTemperature:        env.Float("LLM_TEMPERATURE", 0.7),
		LLMMaxTokens:          env.Int("LLM_MAX_TOKENS", 256),
		DuocEmail:             env.Str("DUOC_EMAIL", ""),
		DuocPassword:          env.Str("DUOC_PASSWORD", ""),
		ChileTrabajosEmail:    env.Str("CHILETRABAJOS_EMAIL", ""),
		ChileTrabajosPassword: env.Str("CHILETRABAJOS_PASSWORD", ""),
		Career:                env.Str("CARRERA", "Ingeniería en informática"),
		Keywords:              env.Str("KEYWORDS", "ingenieria informatica"),
		MaxPerSession:         env.Int("MAX_PER_SESSION", 10),
		PageCount:             env.Int("PAGE_COUNT", 5),
		DataDir:               dataDir,
		ProfilePath:           env.Str("PROFILE_PATH", filepath.Join(dataDir, "perfil.json")),
		CVPath:                env.Str("CV_PATH", ""),
		DatabaseURL:           env.Str("DATABASE_URL", ""),
		FetchTimeout:          env.Duration("FETCH_TIMEOUT", 30*time.Second),
	}

	var opts []stealth.ClientOption
	opts = append(opts, stealth.WithTimeout(15))
	if apiKey := env.Str("WEBSHARE_API_KEY", ""); apiKey != "" {
		pool, err := proxypool.NewWebshare(apiKey)
		if err != nil {
			slog.Warn("proxy pool init failed, running without proxy", slog.Any("error", err))
		} else {
			opts = append(opts, stealth.WithProxyPool(pool))
			slog.Info("proxy pool initialized", slog.Int("proxies", pool.Len()))
		}
	}
	bc, err := stealth.NewClient(opts...)
	if err != nil {
		slog.Warn("stealth client init failed, using plain http", slog.Any("error", err))
	} else {
		c.BrowserClient = bc
	}

	quotaPath := filepath.Join(dataDir, "quota.json")
	c.HTTPClient = &http.Client{
		Timeout:   60 * time.Second,
		Transport: &engine.QuotaTransport{Path: quotaPath},
	}

	profile, err := engine.LoadProfile(c.ProfilePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "No se pudo cargar el perfil (%s): %v\n", c.ProfilePath, err)
		fmt.Fprintln(os.Stderr, "Crea el archivo de perfil antes de usar el bot.")
		os.Exit(1)
	}

	store, err := openLedger(c)
	if err != nil {
		slog.Error("ledger init failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer store.Close()

	chain := engine.NewCompleterChain(c, c.HTTPClient)
	// Groq free tier tolerates about one request per second sustained.
	limiter := rate.NewLimiter(rate.Every(1500*time.Millisecond), 1)
	gen := answers.NewGenerator(profile, chain, c.LLMModels, limiter, engine.DefaultPacer())

	newRunner := func(portal string) (*runner.Runner, error) {
		client, err := engine.NewPortalClient(c.BrowserClient, c.FetchTimeout)
		if err != nil {
			return nil, fmt.Errorf("portal client: %w", err)
		}
		deps := portales.Deps{
			Client:   client,
			Sessions: &engine.SessionStore{Dir: c.DataDir},
			Answers:  gen,
			Recorder: ledger.RecorderAdapter{Store: store},
			Pacer:    engine.DefaultPacer(),
			Config:   c,
			Profile:  profile,
		}
		var p portales.Portal
		switch portal {
		case engine.PortalChileTrabajos:
			p = portales.NewChileTrabajos(deps)
		default:
			p = portales.NewDuocLaboral(deps)
		}
		return &runner.Runner{Portal: p, Ledger: store, Checker: gen, Config: c}, nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	console := &cli.Console{
		In:        bufio.NewReader(os.Stdin),
		Out:       os.Stdout,
		Config:    c,
		Ledger:    store,
		Tester:    gen,
		QuotaPath: quotaPath,
		NewRunner: newRunner,
	}
	console.Loop(ctx)

	if ctx.Err() != nil {
		fmt.Println("\nBot detenido por el usuario.")
	}
}

// openLedger picks Postgres when DATABASE_URL is set, the local SQLite
// file otherwise.
func openLedger(c engine.Config) (ledger.Store, error) {
	if c.DatabaseURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return ledger.OpenPostgres(ctx, c.DatabaseURL)
	}
	return ledger.OpenSQLite(filepath.Join(c.DataDir, "postulaciones.db"))
}
