package orchestrator

import "github.com/corvidlabs/wakewing/internal/conf"

// utteranceRecorder holds the optional recording buffer the orchestrator's
// poll loop fills while a configured wakeword is active. Pre-sizing the
// buffer to 32 seconds avoids repeated reallocation during a typical
// utterance.
type utteranceRecorder struct {
	wakewordName string
	metrics      *Metrics

	active bool
	buffer []float32
}

func newUtteranceRecorder(settings *conf.Settings, metrics *Metrics) *utteranceRecorder {
	name := ""
	if settings.Utterance != nil {
		name = settings.Utterance.Wakeword
	}
	return &utteranceRecorder{wakewordName: name, metrics: metrics}
}

func (r *utteranceRecorder) start() {
	r.active = true
	r.buffer = make([]float32, 0, conf.UtteranceBufferSeconds*conf.SampleRate)
	r.metrics.RecordingActive.Set(1)
}

func (r *utteranceRecorder) append(samples []float32) {
	r.buffer = append(r.buffer, samples...)
}

func (r *utteranceRecorder) stop() {
	r.active = false
	r.buffer = nil
	r.metrics.RecordingActive.Set(0)
}
