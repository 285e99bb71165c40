// Package conf loads and validates this engine's YAML configuration: the
// installed models, match rules, and optional utterance-recording settings
// described in spec §6.
package conf

// Fixed topology constants (spec §2, §4). These describe the one literal
// pipeline graph this engine builds; spec's Non-goals exclude dynamic
// reconfiguration of the graph, so none of this is user-configurable.
const (
	SampleRate = 16000 // Hz

	SamplerChunkSize   = 640  // Sampler's Chunk<S>
	VADChunkSize       = 480  // Rechunker(480) -> VAD
	RecordingChunkSize = 4000 // Rechunker(4000) -> Delay(4)
	SpecterChunkSize   = 1280 // Rechunker(1280) -> Specter

	RecordingDelayChunks = 4

	MelFrameSize   = 32 // Melspectrogram vector length
	MelFramesPerHop = 5  // Specter emits 5 mel-frames per Chunk<1280>
	EmbeddingWindow = 76 // Embedder's rolling mel-frame history
	EmbeddingSize   = 96 // Embedding vector length
	RunnerWindow    = 16 // Runner's rolling embedding history

	// DefaultActivationThreshold and DefaultTimeoutMillis are the
	// MatchStage field defaults from spec §3.
	DefaultActivationThreshold = 0.5
	DefaultTimeoutMillis       = 3200

	// DefaultModelScale and the filter clamp bounds are the NamedModel
	// filter defaults from spec §3.
	DefaultModelScale = 1.0
	DefaultClampLow   = 0.0
	DefaultClampHigh  = 1.0

	// DefaultPreamp is the Sampler's default gain (spec §6 CLI flags).
	DefaultPreamp = 0.1

	// UtteranceStartThreshold and UtteranceSilenceTimeoutSeconds drive the
	// Orchestrator's recording state machine (spec §4.11).
	UtteranceStartThreshold        = 0.6
	UtteranceSilenceTimeoutSeconds = 2
	UtteranceBufferSeconds         = 32
)
