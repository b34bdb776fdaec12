package engine

import (
	"context"
	"math/rand/v2"
	"time"
)

// StepKind identifies a point in the application flow that gets a
// human-imitating pause.
type StepKind int

const (
	StepNavigate StepKind = iota // page loads
	StepRead                     // "reading" an offer before acting
	StepType                     // between form fields
	StepSubmit                   // right before the final click
	StepGenerate                 // between generation calls
)

// Pacer maps a step kind to a delay. Injected so tests run at zero delay.
type Pacer interface {
	Pause(ctx context.Context, step StepKind)
}

// DelayRange is an inclusive lower bound and exclusive upper bound.
type DelayRange struct {
	Min, Max time.Duration
}

// RandomPacer sleeps a uniformly random duration per step kind.
type RandomPacer struct {
	Ranges map[StepKind]DelayRange
}

// DefaultPacer returns the production pacing policy. The ranges match the
// pauses the portals tolerate without flagging the session as automated.
func DefaultPacer() *RandomPacer {
	return &RandomPacer{Ranges: map[StepKind]DelayRange{
		StepNavigate: {2500 * time.Millisecond, 5500 * time.Millisecond},
		StepRead:     {3 * time.Second, 6 * time.Second},
		StepType:     {300 * time.Millisecond, 800 * time.Millisecond},
		StepSubmit:   {200 * time.Millisecond, 500 * time.Millisecond},
		StepGenerate: {800 * time.Millisecond, 1800 * time.Millisecond},
	}}
}

func (p *RandomPacer) Pause(ctx context.Context, step StepKind) {
	r, ok := p.Ranges[step]
	if !ok || r.Max <= r.Min {
		return
	}
	d := r.Min + rand.N(r.Max-r.Min)
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}

// NopPacer skips all pauses.
type NopPacer struct{}

func (NopPacer) Pause(context.Context, StepKind) {}
