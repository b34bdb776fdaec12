package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/joseoporto/postulabot/internal/engine"
	"github.com/joseoporto/postulabot/internal/engine/portales"
)

// ConsoleReviewer shows each prepared application on the terminal and lets
// the user edit answers and the salary before confirming. Anything but an
// explicit "s" aborts the submission.
type ConsoleReviewer struct {
	In  *bufio.Reader
	Out io.Writer

	// AutoApprove submits without asking; set by the automatic mode
	// after its own double confirmation.
	AutoApprove bool
}

func NewConsoleReviewer(in io.Reader, out io.Writer) *ConsoleReviewer {
	return &ConsoleReviewer{In: bufio.NewReader(in), Out: out}
}

func (c *ConsoleReviewer) Review(offer portales.Offer, detail *portales.OfferDetail, proposed []portales.QA, defaultSalary string) portales.ReviewResult {
	answers := make([]portales.QA, len(proposed))
	copy(answers, proposed)
	result := portales.ReviewResult{Answers: answers, Salary: defaultSalary}

	title := firstNonEmpty(detail.Title, offer.Title)
	fmt.Fprintf(c.Out, "\n━━━ %s\n", title)
	if company := firstNonEmpty(detail.Company, offer.Company); company != "" {
		fmt.Fprintf(c.Out, "    %s\n", company)
	}
	fmt.Fprintf(c.Out, "    %s\n\n", offer.URL)

	if detail.Summary != "" {
		for _, line := range strings.Split(detail.Summary, "\n") {
			fmt.Fprintf(c.Out, "    %s\n", line)
		}
		fmt.Fprintln(c.Out)
	}

	for i, qa := range answers {
		fmt.Fprintf(c.Out, "  P%d %s\n", i+1, engine.Truncate(qa.Question, 90))
		fmt.Fprintf(c.Out, "     → %s\n\n", qa.Answer)
	}

	if c.AutoApprove {
		result.Approved = true
		return result
	}

	for i := range answers {
		op := strings.ToLower(c.prompt(fmt.Sprintf("  Editar P%d? [e=editar / Enter=ok]: ", i+1)))
		if op == "e" {
			if nueva := c.prompt("  Nueva respuesta: "); nueva != "" {
				answers[i].Answer = nueva
			}
		}
	}

	if detail.HasSalary || result.Salary != "" {
		if in := c.prompt(fmt.Sprintf("  Renta pretendida [Enter = $%s / otro]: ", result.Salary)); in != "" {
			result.Salary = cleanSalary(in)
		}
	}

	confirm := strings.ToLower(c.prompt("  ¿Confirmar y enviar postulación? [s/N]: "))
	result.Approved = confirm == "s"
	return result
}

func (c *ConsoleReviewer) prompt(msg string) string {
	fmt.Fprint(c.Out, msg)
	line, err := c.In.ReadString('\n')
	if err != nil && line == "" {
		return ""
	}
	return strings.TrimSpace(line)
}

// cleanSalary strips currency formatting the user may type along.
func cleanSalary(s string) string {
	r := strings.NewReplacer("$", "", ".", "", ",", "", " ", "")
	return r.Replace(s)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
