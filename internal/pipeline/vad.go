package pipeline

import (
	"context"
	"log/slog"
	"math"

	"github.com/google/uuid"

	pipelineerr "github.com/corvidlabs/wakewing/internal/errors"
)

// VAD consumes 480-sample float chunks, rescales them to 16-bit PCM with
// saturation, and submits them to a VoiceDetector, emitting one boolean per
// input chunk. A model error aborts the stage; downstream observes this as
// the usual closed-channel shutdown.
type VAD struct {
	h        *handle
	in       <-chan Chunk
	out      chan bool
	detector VoiceDetector
	log      *slog.Logger
}

func NewVAD(ctx context.Context, in <-chan Chunk, detector VoiceDetector, log *slog.Logger) (*VAD, <-chan bool) {
	out := make(chan bool, 1)
	vctx, h := newHandle(ctx)

	v := &VAD{
		h:        h,
		in:       in,
		out:      out,
		detector: detector,
		log:      log.With("stage", "vad", "stage_id", uuid.NewString()),
	}
	h.go_(func() { v.run(vctx) })
	return v, out
}

func (v *VAD) run(ctx context.Context) {
	defer close(v.out)
	for {
		c, ok := recvOrDone(ctx, v.in)
		if !ok {
			return
		}
		pcm := make([]int16, len(c.Samples))
		for i, s := range c.Samples {
			pcm[i] = saturateToInt16(s)
		}
		voice, err := v.detector.Predict(pcm)
		if err != nil {
			v.log.Error("vad predict failed", "error",
				pipelineerr.New(err).Component("pipeline.vad").Category(pipelineerr.CategoryInference).
					Context("chunk_id", c.ID).Build())
			return
		}
		trySend(ctx, v.out, voice)
	}
}

func saturateToInt16(s float32) int16 {
	scaled := float64(s) * int16Max
	scaled = math.Max(scaled, math.MinInt16)
	scaled = math.Min(scaled, math.MaxInt16)
	return int16(scaled)
}

func (v *VAD) Close() error {
	return v.h.Close()
}
