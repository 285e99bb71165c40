package pipeline

// Model is the opaque neural-network inference boundary named in spec §1:
// the pipeline core only ever calls Run with a flat tensor and reads back a
// flat tensor: it has no opinion about what runs underneath (ONNX Runtime,
// a mock, anything else). Concrete implementations live outside this
// package, e.g. internal/onnxmodel.
type Model interface {
	// Run executes the model against input and returns its output tensor,
	// both flattened row-major float32 slices. The caller is responsible
	// for knowing the expected shapes on both sides.
	Run(input []float32) ([]float32, error)

	// Close releases any resources (an inference session, file handles).
	Close() error
}

// VoiceDetector is the opaque VAD classifier boundary named in spec §1:
// given a frame of signed 16-bit PCM samples it returns whether the frame
// contains voice activity.
type VoiceDetector interface {
	Predict(pcm []int16) (bool, error)
	Close() error
}
