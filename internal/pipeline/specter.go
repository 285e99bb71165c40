package pipeline

import (
	"context"
	"log/slog"
	"math"

	"github.com/google/uuid"

	pipelineerr "github.com/corvidlabs/wakewing/internal/errors"
)

// MelFrame is a single mel-spectrogram frame of MelFrameSize floats.
type MelFrame = []float32

// hammingWindow precomputes hamming(i, n) once per Specter instance.
func hammingWindow(n int) []float32 {
	w := make([]float32, n)
	for i := 0; i < n; i++ {
		w[i] = float32(0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n-1)))
	}
	return w
}

// Specter windows three consecutive 1280-sample chunks with a 50%-overlap
// Hamming weighting and submits the result to a mel-spectrogram model. The
// asymmetric weights (0.32 leading, 0.25 trailing, with the trailing side
// indexed through a reversed window) are carried over unchanged; see
// SPEC_FULL.md §4.7 and DESIGN.md for why they are not "corrected" to a
// symmetric scheme.
type Specter struct {
	h     *handle
	in    <-chan Chunk
	out   chan []MelFrame
	model Model
	win   []float32
	hist  [][]float32 // last up to 3 chunks, oldest first
	log   *slog.Logger
}

func NewSpecter(ctx context.Context, in <-chan Chunk, chunkSize int, model Model, log *slog.Logger) (*Specter, <-chan []MelFrame) {
	out := make(chan []MelFrame, 1)
	sctx, h := newHandle(ctx)

	s := &Specter{
		h:     h,
		in:    in,
		out:   out,
		model: model,
		win:   hammingWindow(chunkSize),
		log:   log.With("stage", "specter", "stage_id", uuid.NewString()),
	}
	h.go_(func() { s.run(sctx) })
	return s, out
}

func (s *Specter) run(ctx context.Context) {
	defer close(s.out)
	for {
		c, ok := recvOrDone(ctx, s.in)
		if !ok {
			return
		}
		s.hist = append(s.hist, c.Samples)
		if len(s.hist) > 3 {
			s.hist = s.hist[1:]
		}
		if len(s.hist) < 3 {
			continue
		}

		frames, err := s.window(s.hist[0], s.hist[1], s.hist[2])
		if err != nil {
			s.log.Error("specter inference failed", "error",
				pipelineerr.New(err).Component("pipeline.specter").Category(pipelineerr.CategoryInference).
					Context("chunk_id", c.ID).Build())
			return
		}
		if !blockingSend(ctx, s.out, frames) {
			return
		}
	}
}

// window builds the overlap-weighted frame and runs the mel model, applying
// the x/10 + 2 post-transform described in the original design.
func (s *Specter) window(prev, cur, next []float32) ([]MelFrame, error) {
	n := len(cur)
	half := n / 2
	frame := make([]float32, n)
	for i := 0; i < n; i++ {
		v := cur[i]
		switch {
		case i < half:
			v += 0.32 * s.win[i] * prev[i+half]
		default:
			v += 0.25 * s.win[n-i-1] * next[i-half]
		}
		frame[i] = v
	}

	out, err := s.model.Run(frame)
	if err != nil {
		return nil, err
	}
	// out is the flattened [1,1,5,32] tensor: 5 frames of MelFrameSize floats.
	frames := make([]MelFrame, 0, 5)
	for i := 0; i+32 <= len(out); i += 32 {
		f := make(MelFrame, 32)
		for j := 0; j < 32; j++ {
			f[j] = out[i+j]/10 + 2
		}
		frames = append(frames, f)
	}
	return frames, nil
}

func (s *Specter) Close() error {
	return s.h.Close()
}
