package pipeline

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	pipelineerr "github.com/corvidlabs/wakewing/internal/errors"
)

// Filter transforms a raw model output scalar to clamp(v*Scale, Low, High).
type Filter struct {
	Scale float32
	Low   float32
	High  float32
}

func (f Filter) Apply(v float32) float32 {
	v *= f.Scale
	if v < f.Low {
		return f.Low
	}
	if v > f.High {
		return f.High
	}
	return v
}

// NamedModel pairs an installed wake-word model with its output filter.
type NamedModel struct {
	Name   string
	Model  Model
	Filter Filter
}

// Activation is one (model name, filtered score) pair within an ActivationSet.
type Activation struct {
	Name  string
	Score float32
}

// Runner slides a 16-embedding window and, once full, evaluates every
// installed model against it on each tick, emitting one Activation per
// model in installation order.
type Runner struct {
	h      *handle
	in     <-chan []float32
	out    chan []Activation
	window int
	hist   [][]float32
	log    *slog.Logger

	mu     sync.Mutex
	models []NamedModel
}

func NewRunner(ctx context.Context, in <-chan []float32, window int, log *slog.Logger) (*Runner, <-chan []Activation) {
	out := make(chan []Activation, 1)
	rctx, h := newHandle(ctx)

	r := &Runner{
		h:      h,
		in:     in,
		out:    out,
		window: window,
		log:    log.With("stage", "runner", "stage_id", uuid.NewString()),
	}
	h.go_(func() { r.run(rctx) })
	return r, out
}

// Install adds or replaces a named model. Safe to call concurrently with
// the Runner's own goroutine.
func (r *Runner) Install(m NamedModel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.models {
		if existing.Name == m.Name {
			r.models[i] = m
			return
		}
	}
	r.models = append(r.models, m)
}

func (r *Runner) run(ctx context.Context) {
	defer close(r.out)
	for {
		embedding, ok := recvOrDone(ctx, r.in)
		if !ok {
			return
		}
		r.hist = append(r.hist, embedding)
		if len(r.hist) > r.window {
			r.hist = r.hist[len(r.hist)-r.window:]
		}
		if len(r.hist) < r.window {
			continue
		}

		input := make([]float32, 0, r.window*len(r.hist[0]))
		for _, e := range r.hist {
			input = append(input, e...)
		}

		activations, err := r.evaluate(input)
		if err != nil {
			r.log.Error("runner inference failed", "error",
				pipelineerr.New(err).Component("pipeline.runner").Category(pipelineerr.CategoryInference).Build())
			return
		}
		if !blockingSend(ctx, r.out, activations) {
			return
		}
	}
}

func (r *Runner) evaluate(input []float32) ([]Activation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	activations := make([]Activation, 0, len(r.models))
	for _, m := range r.models {
		out, err := m.Model.Run(input)
		if err != nil {
			return nil, err
		}
		if len(out) == 0 {
			continue
		}
		activations = append(activations, Activation{
			Name:  m.Name,
			Score: m.Filter.Apply(out[0]),
		})
	}
	return activations, nil
}

func (r *Runner) Close() error {
	return r.h.Close()
}
