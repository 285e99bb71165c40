package onnxmodel

import (
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	pipelineerr "github.com/corvidlabs/wakewing/internal/errors"
)

// sileroFrameSize, sileroStateDim0..2, and sileroStateSize describe the
// silero_vad.onnx graph: one 480-sample (30 ms @ 16 kHz) input frame, a
// recurrent (2,1,128) hidden state threaded between calls, and a scalar
// sample-rate input.
const (
	sileroFrameSize = 480
	sileroStateDim0 = 2
	sileroStateDim1 = 1
	sileroStateDim2 = 128
	sileroStateSize = sileroStateDim0 * sileroStateDim1 * sileroStateDim2
)

// VADSession wraps a recurrent silero-style VAD model, threading its
// hidden state across calls. It implements pipeline.VoiceDetector.
type VADSession struct {
	mu sync.Mutex

	session *ort.AdvancedSession
	opts    *ort.SessionOptions

	input    *ort.Tensor[float32]
	state    *ort.Tensor[float32]
	sr       *ort.Tensor[int64]
	output   *ort.Tensor[float32]
	nextHint *ort.Tensor[float32]

	sampleRate int64
	threshold  float32
}

// NewVADSession loads a silero-shaped recurrent VAD model from path.
func NewVADSession(path string, sampleRate int, threshold float32) (*VADSession, error) {
	inInfo, outInfo, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return nil, pipelineerr.New(err).Component("onnxmodel.vad").Category(pipelineerr.CategoryModelLoad).
			Context("path", path).Build()
	}
	if len(inInfo) < 3 || len(outInfo) < 2 {
		return nil, pipelineerr.Newf("vad model %q does not expose the expected input/state/sr and output/stateN tensors", path).
			Component("onnxmodel.vad").Category(pipelineerr.CategoryModelLoad).Build()
	}

	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, sileroFrameSize))
	if err != nil {
		return nil, err
	}
	state, err := ort.NewEmptyTensor[float32](ort.NewShape(sileroStateDim0, sileroStateDim1, sileroStateDim2))
	if err != nil {
		input.Destroy()
		return nil, err
	}
	sr, err := ort.NewEmptyTensor[int64](ort.NewShape(1))
	if err != nil {
		input.Destroy()
		state.Destroy()
		return nil, err
	}
	sr.GetData()[0] = int64(sampleRate)

	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1))
	if err != nil {
		input.Destroy()
		state.Destroy()
		sr.Destroy()
		return nil, err
	}
	nextState, err := ort.NewEmptyTensor[float32](ort.NewShape(sileroStateDim0, sileroStateDim1, sileroStateDim2))
	if err != nil {
		input.Destroy()
		state.Destroy()
		sr.Destroy()
		output.Destroy()
		return nil, err
	}

	opts, err := sessionOptions()
	if err != nil {
		input.Destroy()
		state.Destroy()
		sr.Destroy()
		output.Destroy()
		nextState.Destroy()
		return nil, err
	}
	session, err := ort.NewAdvancedSession(
		path,
		[]string{inInfo[0].Name, inInfo[1].Name, inInfo[2].Name},
		[]string{outInfo[0].Name, outInfo[1].Name},
		[]ort.Value{input, state, sr},
		[]ort.Value{output, nextState},
		opts,
	)
	if err != nil {
		input.Destroy()
		state.Destroy()
		sr.Destroy()
		output.Destroy()
		nextState.Destroy()
		opts.Destroy()
		return nil, pipelineerr.New(err).Component("onnxmodel.vad").Category(pipelineerr.CategoryModelLoad).
			Context("path", path).Build()
	}

	return &VADSession{
		session:    session,
		opts:       opts,
		input:      input,
		state:      state,
		sr:         sr,
		output:     output,
		nextHint:   nextState,
		sampleRate: int64(sampleRate),
		threshold:  threshold,
	}, nil
}

// Predict runs one 480-sample frame through the model and returns whether
// its voice score reaches the configured threshold. pcm shorter than the
// model's frame size is zero-padded; longer is truncated, since VAD is
// always fed exactly Chunk<480> by the pipeline's VAD stage.
func (v *VADSession) Predict(pcm []int16) (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	dst := v.input.GetData()
	n := len(pcm)
	if n > len(dst) {
		n = len(dst)
	}
	for i := 0; i < n; i++ {
		dst[i] = float32(pcm[i]) / 32768.0
	}
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}

	if err := v.session.Run(); err != nil {
		return false, pipelineerr.New(err).Component("onnxmodel.vad").Category(pipelineerr.CategoryInference).Build()
	}

	score := v.output.GetData()[0]
	copy(v.state.GetData(), v.nextHint.GetData())

	return score >= v.threshold, nil
}

// Close implements pipeline.VoiceDetector.
func (v *VADSession) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	err := v.session.Destroy()
	v.input.Destroy()
	v.state.Destroy()
	v.sr.Destroy()
	v.output.Destroy()
	v.nextHint.Destroy()
	v.opts.Destroy()
	if err != nil {
		return pipelineerr.New(err).Component("onnxmodel.vad").Category(pipelineerr.CategoryInference).Build()
	}
	return nil
}
