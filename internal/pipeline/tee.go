package pipeline

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Tee copies every incoming Chunk to N outgoing branches. Each branch gets
// its own backing array so downstream stages can mutate in place without
// racing each other; the original Rust Tee<S,N> fixed N at compile time via
// a const generic, Go has none, so N is simply len(outs) and is decided by
// the caller at construction.
//
// Unlike VAD and Delay, Tee sends blocking on every branch: a single
// slow branch applies back-pressure to all of them, which is what lets a
// stalled Specter/Embedder/Runner chain eventually stall the Sampler.
type Tee struct {
	h   *handle
	in  <-chan Chunk
	out []chan Chunk
	log *slog.Logger
}

// NewTee returns a Tee reading from in and fanning out to n freshly created
// output channels.
func NewTee(ctx context.Context, in <-chan Chunk, n int, log *slog.Logger) (*Tee, []<-chan Chunk) {
	tctx, h := newHandle(ctx)

	outs := make([]chan Chunk, n)
	ro := make([]<-chan Chunk, n)
	for i := range outs {
		outs[i] = make(chan Chunk, 1)
		ro[i] = outs[i]
	}

	t := &Tee{
		h:   h,
		in:  in,
		out: outs,
		log: log.With("stage", "tee", "stage_id", uuid.NewString(), "branches", n),
	}
	h.go_(func() { t.run(tctx) })
	return t, ro
}

func (t *Tee) run(ctx context.Context) {
	defer func() {
		for _, o := range t.out {
			close(o)
		}
	}()
	for {
		c, ok := recvOrDone(ctx, t.in)
		if !ok {
			return
		}
		for _, o := range t.out {
			branch := c.clone()
			if !blockingSend(ctx, o, branch) {
				return
			}
		}
	}
}

func (t *Tee) Close() error {
	return t.h.Close()
}
