package pipeline

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	pipelineerr "github.com/corvidlabs/wakewing/internal/errors"
)

// Embedder slides a 76-mel-frame window over its input and, once the
// history is full, submits it to an embedding model and emits the
// resulting vector. The history is never cleared between outputs; each
// arriving batch (typically 5 frames from Specter) slides the window
// forward by that many frames.
type Embedder struct {
	h      *handle
	in     <-chan []MelFrame
	out    chan []float32
	model  Model
	window int
	hist   [][]float32
	log    *slog.Logger
}

func NewEmbedder(ctx context.Context, in <-chan []MelFrame, window int, model Model, log *slog.Logger) (*Embedder, <-chan []float32) {
	out := make(chan []float32, 1)
	ectx, h := newHandle(ctx)

	e := &Embedder{
		h:      h,
		in:     in,
		out:    out,
		model:  model,
		window: window,
		log:    log.With("stage", "embedder", "stage_id", uuid.NewString()),
	}
	h.go_(func() { e.run(ectx) })
	return e, out
}

func (e *Embedder) run(ctx context.Context) {
	defer close(e.out)
	for {
		frames, ok := recvOrDone(ctx, e.in)
		if !ok {
			return
		}
		e.hist = append(e.hist, frames...)
		if len(e.hist) > e.window {
			e.hist = e.hist[len(e.hist)-e.window:]
		}
		if len(e.hist) < e.window {
			continue
		}

		input := make([]float32, 0, e.window*len(e.hist[0]))
		for _, f := range e.hist {
			input = append(input, f...)
		}

		embedding, err := e.model.Run(input)
		if err != nil {
			e.log.Error("embedder inference failed", "error",
				pipelineerr.New(err).Component("pipeline.embedder").Category(pipelineerr.CategoryInference).Build())
			return
		}
		if !blockingSend(ctx, e.out, embedding) {
			return
		}
	}
}

func (e *Embedder) Close() error {
	return e.h.Close()
}
