package pipeline

import (
	"container/list"
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Delay holds back incoming Chunks so that each is released only after
// depth-1 newer chunks have arrived behind it: the buffer keeps at most
// depth-1 chunks, and each arrival that fills it to depth releases the
// oldest. The Rust
// Delay<S,D> fixed the buffer depth D as a const generic; here it is a
// runtime field (depth) set once at construction.
//
// Like VAD, Delay sends non-blocking: if the consumer can't keep up, the
// oldest buffered chunk is dropped to make room rather than stalling the
// branch (and transitively the Sampler) that feeds it.
type Delay struct {
	h     *handle
	in    <-chan Chunk
	out   chan Chunk
	depth int
	buf   *list.List
	log   *slog.Logger
}

func NewDelay(ctx context.Context, in <-chan Chunk, depth int, log *slog.Logger) (*Delay, <-chan Chunk) {
	out := make(chan Chunk, 1)
	dctx, h := newHandle(ctx)

	d := &Delay{
		h:     h,
		in:    in,
		out:   out,
		depth: depth,
		buf:   list.New(),
		log:   log.With("stage", "delay", "stage_id", uuid.NewString(), "depth", depth),
	}
	h.go_(func() { d.run(dctx) })
	return d, out
}

func (d *Delay) run(ctx context.Context) {
	defer close(d.out)
	for {
		c, ok := recvOrDone(ctx, d.in)
		if !ok {
			return
		}
		d.buf.PushBack(c)
		if d.buf.Len() < d.depth {
			continue
		}
		front := d.buf.Remove(d.buf.Front()).(Chunk)
		if !trySend(ctx, d.out, front) {
			d.log.Warn("dropping delayed chunk, downstream full", "chunk_id", front.ID)
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func (d *Delay) Close() error {
	return d.h.Close()
}
