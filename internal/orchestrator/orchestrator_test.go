package orchestrator

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvidlabs/wakewing/internal/conf"
	"github.com/corvidlabs/wakewing/internal/pipeline"
)

func newTestOrchestrator(t *testing.T, wakeword string) (*Orchestrator, chan pipeline.Chunk) {
	t.Helper()
	delayCh := make(chan pipeline.Chunk, 8)
	o := &Orchestrator{
		settings: &conf.Settings{Utterance: &conf.UtteranceConfig{Wakeword: wakeword}},
		log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		metrics:  NewMetrics(prometheus.NewRegistry()),
		delayOut: delayCh,
	}
	return o, delayCh
}

func TestDriveRecordingStartsOnWakewordScoreAboveThreshold(t *testing.T) {
	o, _ := newTestOrchestrator(t, "hey_corvid")
	rec := newUtteranceRecorder(o.settings, o.metrics)

	o.driveRecording(rec, map[string]float32{"hey_corvid": conf.UtteranceStartThreshold + 0.01})

	assert.True(t, rec.active)
}

func TestDriveRecordingStaysIdleBelowThreshold(t *testing.T) {
	o, _ := newTestOrchestrator(t, "hey_corvid")
	rec := newUtteranceRecorder(o.settings, o.metrics)

	o.driveRecording(rec, map[string]float32{"hey_corvid": conf.UtteranceStartThreshold - 0.01})

	assert.False(t, rec.active)
}

func TestDrainDelayedAppendsOnlyWhileRecording(t *testing.T) {
	o, delayCh := newTestOrchestrator(t, "hey_corvid")
	rec := newUtteranceRecorder(o.settings, o.metrics)

	delayCh <- pipeline.Chunk{ID: 0, Samples: []float32{1, 2}}
	o.drainDelayed(rec)
	assert.Empty(t, rec.buffer, "not recording yet, delayed samples should be discarded")

	rec.start()
	delayCh <- pipeline.Chunk{ID: 1, Samples: []float32{3, 4}}
	delayCh <- pipeline.Chunk{ID: 2, Samples: []float32{5}}
	o.drainDelayed(rec)
	assert.Equal(t, []float32{3, 4, 5}, rec.buffer)
}

func TestDriveRecordingStopsAfterSilenceTimeoutElapses(t *testing.T) {
	o, _ := newTestOrchestrator(t, "hey_corvid")
	rec := newUtteranceRecorder(o.settings, o.metrics)
	rec.start()

	o.lastVADActivity.Store(time.Now().Unix() - conf.UtteranceSilenceTimeoutSeconds - 1)
	o.driveRecording(rec, map[string]float32{})

	assert.False(t, rec.active, "recording should stop once silence exceeds the timeout")
}

func TestDriveRecordingContinuesWithinSilenceTimeout(t *testing.T) {
	o, _ := newTestOrchestrator(t, "hey_corvid")
	rec := newUtteranceRecorder(o.settings, o.metrics)
	rec.start()

	o.lastVADActivity.Store(time.Now().Unix())
	o.driveRecording(rec, map[string]float32{})

	require.True(t, rec.active)
}
