// Package onnxmodel adapts ONNX Runtime sessions to the pipeline.Model and
// pipeline.VoiceDetector interfaces, so the Specter, Embedder, Runner, and
// VAD stages never know they are talking to ONNX at all.
package onnxmodel

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/corvidlabs/wakewing/internal/cpuspec"
	pipelineerr "github.com/corvidlabs/wakewing/internal/errors"
)

var (
	envOnce sync.Once
	envErr  error
)

// InitEnvironment points ONNX Runtime at the shared library and brings up
// its global environment. Safe to call more than once; only the first call
// takes effect.
func InitEnvironment(sharedLibraryPath string) error {
	envOnce.Do(func() {
		if sharedLibraryPath != "" {
			ort.SetSharedLibraryPath(sharedLibraryPath)
		}
		envErr = ort.InitializeEnvironment()
	})
	return envErr
}

// DestroyEnvironment tears down the ONNX Runtime global environment. Call
// once at process shutdown, after every session has been closed.
func DestroyEnvironment() error {
	return ort.DestroyEnvironment()
}

func sessionOptions() (*ort.SessionOptions, error) {
	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, err
	}
	threads := cpuspec.GetCPUSpec().GetOptimalThreadCount()
	if threads > 0 {
		if err := opts.SetIntraOpNumThreads(threads); err != nil {
			opts.Destroy()
			return nil, err
		}
	}
	return opts, nil
}

// Session is a fixed-shape ONNX Runtime model: every Run call reuses the
// same input/output tensors, which is safe because nothing in this
// pipeline ever runs a Session from more than one goroutine concurrently
// (Specter and Embedder each own exactly one, and every classifier Session
// is run only from the Runner's goroutine).
type Session struct {
	mu        sync.Mutex
	session   *ort.AdvancedSession
	input     *ort.Tensor[float32]
	output    *ort.Tensor[float32]
	opts      *ort.SessionOptions
	outputLen int
}

// NewSession loads the model at path, declaring fixed input/output shapes.
func NewSession(path string, inputShape, outputShape ort.Shape) (*Session, error) {
	inInfo, outInfo, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return nil, pipelineerr.New(err).Component("onnxmodel").Category(pipelineerr.CategoryModelLoad).
			Context("path", path).Build()
	}
	if len(inInfo) == 0 || len(outInfo) == 0 {
		return nil, pipelineerr.Newf("model %q exposes no input/output tensors", path).
			Component("onnxmodel").Category(pipelineerr.CategoryModelLoad).Build()
	}

	input, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, err
	}
	output, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		input.Destroy()
		return nil, err
	}

	opts, err := sessionOptions()
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, err
	}

	session, err := ort.NewAdvancedSession(
		path,
		[]string{inInfo[0].Name}, []string{outInfo[0].Name},
		[]ort.Value{input}, []ort.Value{output},
		opts,
	)
	if err != nil {
		input.Destroy()
		output.Destroy()
		opts.Destroy()
		return nil, pipelineerr.New(err).Component("onnxmodel").Category(pipelineerr.CategoryModelLoad).
			Context("path", path).Build()
	}

	return &Session{
		session:   session,
		input:     input,
		output:    output,
		opts:      opts,
		outputLen: flattenedSize(outputShape),
	}, nil
}

// flattenedSize multiplies out a tensor shape's dimensions, since the
// amount of float32 data GetData() returns is exactly their product.
func flattenedSize(shape ort.Shape) int {
	size := 1
	for i := 0; i < len(shape); i++ {
		size *= int(shape[i])
	}
	return size
}

// Run copies input into the session's input tensor, executes it, and
// returns a copy of the output tensor's data. It implements pipeline.Model.
func (s *Session) Run(input []float32) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dst := s.input.GetData()
	if len(input) != len(dst) {
		return nil, pipelineerr.Newf("onnx session expects %d input floats, got %d", len(dst), len(input)).
			Component("onnxmodel").Category(pipelineerr.CategoryInference).Build()
	}
	copy(dst, input)

	if err := s.session.Run(); err != nil {
		return nil, pipelineerr.New(err).Component("onnxmodel").Category(pipelineerr.CategoryInference).Build()
	}

	out := make([]float32, s.outputLen)
	copy(out, s.output.GetData())
	return out, nil
}

// Close implements pipeline.Model / pipeline.VoiceDetector.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	if err := s.session.Destroy(); err != nil {
		errs = append(errs, err)
	}
	s.input.Destroy()
	s.output.Destroy()
	s.opts.Destroy()
	if len(errs) > 0 {
		return fmt.Errorf("closing onnx session: %w", errs[0])
	}
	return nil
}
