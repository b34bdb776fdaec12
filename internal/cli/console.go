// Package cli is the interactive terminal surface: the portal selector,
// the main menu and the per-application review prompt.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/joseoporto/postulabot/internal/engine"
	"github.com/joseoporto/postulabot/internal/engine/ledger"
	"github.com/joseoporto/postulabot/internal/runner"
)

// ConnectionTester checks the generation endpoint from the menu.
type ConnectionTester interface {
	TestConnection(ctx context.Context) string
}

// Console runs the interactive menu loop.
type Console struct {
	In  *bufio.Reader
	Out io.Writer

	Config    engine.Config
	Ledger    ledger.Store
	Tester    ConnectionTester
	QuotaPath string

	// NewRunner builds a session runner for the named portal. Injected
	// from main so the console stays free of transport wiring.
	NewRunner func(portal string) (*runner.Runner, error)

	portal string
	eof    bool
}

// SelectPortal asks which portal to work against.
func (c *Console) SelectPortal() string {
	fmt.Fprintln(c.Out, "\n  Portales disponibles")
	fmt.Fprintln(c.Out, "  [1] DuocLaboral")
	fmt.Fprintln(c.Out, "  [2] ChileTrabajos")
	switch c.prompt("  Portal [1-2]: ") {
	case "2":
		c.portal = engine.PortalChileTrabajos
	default:
		c.portal = engine.PortalDuocLaboral
	}
	return c.portal
}

// Loop shows the menu until the user exits or the context is cancelled.
func (c *Console) Loop(ctx context.Context) {
	if c.portal == "" {
		c.SelectPortal()
	}
	for {
		if ctx.Err() != nil || c.eof {
			return
		}
		c.printQuota()
		fmt.Fprintf(c.Out, "\n  Portal activo: %s\n", c.portal)
		fmt.Fprintln(c.Out, "  [1] Iniciar búsqueda y postulación (modo revisión)")
		fmt.Fprintln(c.Out, "  [2] Modo automático (sin confirmación)")
		fmt.Fprintln(c.Out, "  [3] Ver mis postulaciones")
		fmt.Fprintln(c.Out, "  [4] Solo escanear ofertas (sin postular)")
		fmt.Fprintln(c.Out, "  [5] Cambiar portal")
		fmt.Fprintln(c.Out, "  [6] Probar conexión con el motor de respuestas")
		fmt.Fprintln(c.Out, "  [7] Salir")

		switch c.prompt("  Elige una opción [1-7]: ") {
		case "1":
			c.runSession(ctx, false)
		case "2":
			fmt.Fprintln(c.Out, "\n  MODO AUTOMÁTICO: postulará SIN pedir confirmación.")
			if strings.ToLower(c.prompt("  ¿Estás seguro? [s/N]: ")) != "s" {
				continue
			}
			if strings.ToLower(c.prompt("  Confirma otra vez para continuar [s/N]: ")) != "s" {
				continue
			}
			c.runSession(ctx, true)
		case "3":
			c.listApplications(ctx)
		case "4":
			c.scan(ctx)
		case "5":
			c.SelectPortal()
		case "6":
			if c.Tester == nil {
				fmt.Fprintln(c.Out, "  Motor de respuestas no configurado.")
				continue
			}
			fmt.Fprintf(c.Out, "  %s\n", c.Tester.TestConnection(ctx))
		case "7":
			return
		default:
			if !c.eof {
				fmt.Fprintln(c.Out, "  Opción inválida.")
			}
		}
	}
}

func (c *Console) runSession(ctx context.Context, auto bool) {
	if err := c.Config.ValidateFor(c.portal); err != nil {
		fmt.Fprintf(c.Out, "\n  Error de configuración: %v\n", err)
		fmt.Fprintln(c.Out, "  Copia .env.example como .env y completa tus credenciales.")
		return
	}
	r, err := c.NewRunner(c.portal)
	if err != nil {
		fmt.Fprintf(c.Out, "  %v\n", err)
		return
	}

	reviewer := NewConsoleReviewer(c.In, c.Out)
	reviewer.AutoApprove = auto

	sum, err := r.Run(ctx, reviewer)
	if err != nil {
		if errors.Is(err, runner.ErrLoginFailed) {
			fmt.Fprintln(c.Out, "\n  No se pudo iniciar sesión. Verifica tus credenciales.")
		} else {
			fmt.Fprintf(c.Out, "\n  Sesión terminada con error: %v\n", err)
		}
	}
	c.printSummary(ctx, sum)
}

func (c *Console) printSummary(ctx context.Context, sum *runner.Summary) {
	if sum == nil {
		return
	}
	fmt.Fprintln(c.Out, "\n  ── Resumen ──")
	fmt.Fprintf(c.Out, "  Enviadas      : %d\n", sum.Sent)
	fmt.Fprintf(c.Out, "  Saltadas      : %d\n", sum.Skipped)
	fmt.Fprintf(c.Out, "  Duplicadas    : %d\n", sum.Duplicates)
	fmt.Fprintf(c.Out, "  No relevantes : %d\n", sum.Irrelevant)
	fmt.Fprintf(c.Out, "  Externas      : %d\n", sum.External)
	fmt.Fprintf(c.Out, "  Errores       : %d\n", sum.Errors)
	if total, err := c.Ledger.CountSent(ctx); err == nil {
		fmt.Fprintf(c.Out, "  Total histórico de envíos: %d\n", total)
	}
	if sum.Stopped {
		fmt.Fprintln(c.Out, "  (sesión detenida antes de agotar las ofertas)")
	}
}

func (c *Console) listApplications(ctx context.Context) {
	recs, err := c.Ledger.List(ctx, 50)
	if err != nil {
		fmt.Fprintf(c.Out, "  Error leyendo postulaciones: %v\n", err)
		return
	}
	if len(recs) == 0 {
		fmt.Fprintln(c.Out, "\n  No hay postulaciones registradas aún.")
		return
	}
	w := tabwriter.NewWriter(c.Out, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "\n  FECHA\tPORTAL\tOFERTA\tEMPRESA\tESTADO")
	for _, rec := range recs {
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\t%s\n",
			rec.CreatedAt.Format("2006-01-02"),
			rec.Portal,
			engine.Truncate(rec.Title, 40),
			engine.Truncate(rec.Company, 24),
			rec.Status)
	}
	w.Flush()
}

func (c *Console) scan(ctx context.Context) {
	r, err := c.NewRunner(c.portal)
	if err != nil {
		fmt.Fprintf(c.Out, "  %v\n", err)
		return
	}
	entries, err := r.Scan(ctx)
	if err != nil {
		if errors.Is(err, runner.ErrLoginFailed) {
			fmt.Fprintln(c.Out, "\n  No se pudo iniciar sesión. Verifica tus credenciales.")
			return
		}
		fmt.Fprintf(c.Out, "  Escaneo fallido: %v\n", err)
		return
	}
	w := tabwriter.NewWriter(c.Out, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "\n  ID\tOFERTA\tEMPRESA\tESTADO")
	for _, e := range entries {
		state := "nueva"
		if e.Applied {
			state = "ya postulada"
		}
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n",
			e.Offer.ID,
			engine.Truncate(e.Offer.Title, 44),
			engine.Truncate(e.Offer.Company, 24),
			state)
	}
	w.Flush()
	fmt.Fprintf(c.Out, "\n  Total: %d ofertas\n", len(entries))
}

// printQuota shows the last known rate-limit state of the generation
// endpoint, when a quota side file exists.
func (c *Console) printQuota() {
	if c.QuotaPath == "" {
		return
	}
	rec := engine.LoadQuota(c.QuotaPath)
	if rec == nil {
		return
	}
	fmt.Fprintf(c.Out, "\n  Cuota restante: %s tokens, %s solicitudes (al %s)\n",
		rec.RemainingTokens, rec.RemainingRequests, rec.UpdatedAt.Format("15:04"))
}

func (c *Console) prompt(msg string) string {
	fmt.Fprint(c.Out, msg)
	line, err := c.In.ReadString('\n')
	if err != nil && line == "" {
		c.eof = true
		return ""
	}
	return strings.TrimSpace(line)
}
