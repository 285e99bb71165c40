package pipeline

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Rechunker regroups a stream of fixed-size input chunks into a stream of
// differently-sized output chunks, carrying leftover samples across input
// chunks in an internal buffer. The originating design expressed input and
// output sizes as const generic parameters on Rechunker<I,O>; Go has no
// const generics, so both are ordinary runtime fields fixed at
// construction and never checked against the type system.
//
// Rechunker uses the default blocking send: every accepted sample is either
// emitted or retained, never discarded. VAD and Delay are the only stages
// that drop on back-pressure; Rechunker feeding Specter needs a contiguous
// 3-chunk history, so silently dropping here would corrupt it.
type Rechunker struct {
	h    *handle
	in   <-chan Chunk
	out  chan Chunk
	size int
	buf  []float32
	id   uint64
	log  *slog.Logger
}

func NewRechunker(ctx context.Context, in <-chan Chunk, outSize int, log *slog.Logger) (*Rechunker, <-chan Chunk) {
	out := make(chan Chunk, 1)
	rctx, h := newHandle(ctx)

	r := &Rechunker{
		h:    h,
		in:   in,
		out:  out,
		size: outSize,
		log:  log.With("stage", "rechunker", "stage_id", uuid.NewString(), "out_size", outSize),
	}
	h.go_(func() { r.run(rctx) })
	return r, out
}

func (r *Rechunker) run(ctx context.Context) {
	defer close(r.out)
	for {
		c, ok := recvOrDone(ctx, r.in)
		if !ok {
			return
		}
		r.buf = append(r.buf, c.Samples...)
		for len(r.buf) >= r.size {
			out := Chunk{ID: r.id, Samples: append([]float32(nil), r.buf[:r.size]...)}
			r.id++
			r.buf = r.buf[r.size:]
			if !blockingSend(ctx, r.out, out) {
				return
			}
		}
	}
}

func (r *Rechunker) Close() error {
	return r.h.Close()
}
