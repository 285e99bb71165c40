package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/google/uuid"
	"github.com/smallnest/ringbuffer"

	pipelineerr "github.com/corvidlabs/wakewing/internal/errors"
)

const int16Max = float32(math.MaxInt16)

// Source is the capture boundary named in spec §1: a byte stream of signed
// 16-bit little-endian mono PCM at 16 kHz. The reference implementation is
// an external subprocess (arecord/ffmpeg) piped over stdout; Source
// abstracts that so tests can substitute an in-memory reader.
type Source interface {
	io.Reader
	// Close terminates the underlying capture (killing a child process, if
	// any) and unblocks any in-flight Read.
	Close() error
}

// Sampler is §4.2: it reads exactly Size samples at a time from a Source,
// scales each to [-1, 1] with the configured preamp, and emits Chunk<Size>
// with a strictly monotonic id.
type Sampler struct {
	h      *handle
	out    chan Chunk
	size   int
	preamp float32
	source Source
	ring   *ringbuffer.RingBuffer
	log    *slog.Logger
}

// NewSampler starts the sampler's capture and chunking goroutines and
// returns the stage handle along with the receive end of its output queue.
// size is the sample count S of the emitted Chunk<S> (the topology's root
// chunk size, 640 in the default graph).
func NewSampler(ctx context.Context, source Source, size int, preamp float32, log *slog.Logger) (*Sampler, <-chan Chunk) {
	out := make(chan Chunk, 1)
	sctx, h := newHandle(ctx)

	s := &Sampler{
		h:      h,
		out:    out,
		size:   size,
		preamp: preamp,
		source: source,
		// Four chunks of slack absorbs the capture subprocess's bursty,
		// page-sized pipe writes without imposing the capacity-one
		// discipline (that belongs to the inter-stage edges, not this
		// internal staging buffer).
		ring: ringbuffer.New(size * 2 * 4).SetBlocking(true),
		log:  log.With("stage", "sampler", "stage_id", uuid.NewString()),
	}

	h.go_(func() { s.feed(sctx) })
	h.go_(func() { s.chunk(sctx) })
	return s, out
}

// feed copies raw bytes from the capture source into the staging ring
// buffer until the source errors, is cancelled, or is closed.
func (s *Sampler) feed(ctx context.Context) {
	defer func() { _ = s.ring.CloseWriter() }()

	buf := make([]byte, 4096)
	for ctx.Err() == nil {
		n, err := s.source.Read(buf)
		if n > 0 {
			if _, werr := s.ring.Write(buf[:n]); werr != nil {
				return
			}
		}
		if err != nil {
			if err != io.EOF {
				s.log.Error("capture read failed", "error",
					pipelineerr.New(err).Component("pipeline.sampler").Category(pipelineerr.CategoryCapture).Build())
			}
			return
		}
	}
}

// chunk reassembles the raw byte stream into exact Size-sample windows and
// publishes them downstream.
func (s *Sampler) chunk(ctx context.Context) {
	defer close(s.out)

	raw := make([]byte, s.size*2)
	var id uint64
	for {
		if ctx.Err() != nil {
			return
		}
		if err := s.readFull(ctx, raw); err != nil {
			if err != io.EOF {
				s.log.Error("sampler shutting down on read error", "error", err)
			}
			return
		}

		samples := make([]float32, s.size)
		for i := 0; i < s.size; i++ {
			v := int16(uint16(raw[2*i]) | uint16(raw[2*i+1])<<8)
			samples[i] = (float32(v) / int16Max) * s.preamp
		}

		c := Chunk{ID: id, Samples: samples}
		id++
		if !blockingSend(ctx, s.out, c) {
			return
		}
	}
}

// readFull drains buf completely from the ring buffer, looping over partial
// reads, or returns the first error (io.EOF once the feeder has closed the
// writer side and the buffer has drained).
func (s *Sampler) readFull(ctx context.Context, buf []byte) error {
	read := 0
	for read < len(buf) {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		n, err := s.ring.Read(buf[read:])
		read += n
		if err != nil {
			return err
		}
	}
	return nil
}

// Close terminates the capture source (killing the child process, per
// §4.2's "on drop, the child is killed"), then cancels and joins the
// sampler's goroutines.
func (s *Sampler) Close() error {
	srcErr := s.source.Close()
	s.h.cancel()
	s.h.wg.Wait()
	if srcErr != nil {
		return fmt.Errorf("closing capture source: %w", srcErr)
	}
	return nil
}
