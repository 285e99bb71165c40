// Package orchestrator constructs the fixed pipeline graph described by a
// loaded configuration, drives the top-level poll loop that evaluates the
// match rules and the utterance recording state machine, and owns the
// graph's overall shutdown.
package orchestrator

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	ort "github.com/yalue/onnxruntime_go"
	"golang.org/x/sync/errgroup"

	"github.com/corvidlabs/wakewing/internal/conf"
	pipelineerr "github.com/corvidlabs/wakewing/internal/errors"
	"github.com/corvidlabs/wakewing/internal/onnxmodel"
	"github.com/corvidlabs/wakewing/internal/pipeline"
)

const pollTimeout = 5 * time.Millisecond

// Orchestrator owns every stage handle in the graph and the two pieces of
// state the spec calls out as shared: the Runner's installed-model lock
// (held inside pipeline.Runner itself) and the last-VAD-activity counter.
type Orchestrator struct {
	settings *conf.Settings
	log      *slog.Logger
	metrics  *Metrics

	sampler    *pipeline.Sampler
	tee        *pipeline.Tee
	vadChunker *pipeline.Rechunker
	vad        *pipeline.VAD
	recChunker *pipeline.Rechunker
	delay      *pipeline.Delay
	spcChunker *pipeline.Rechunker
	specter    *pipeline.Specter
	embedder   *pipeline.Embedder
	runner     *pipeline.Runner
	matcher    *pipeline.Matcher

	vadOut    <-chan bool
	delayOut  <-chan pipeline.Chunk
	runnerOut <-chan []pipeline.Activation

	lastVADActivity atomic.Int64 // unix seconds

	ownedModels []pipeline.Model
	ownedVAD    pipeline.VoiceDetector
}

// New wires the full graph for settings, reading raw audio from source.
// onnxLibPath may be empty to use the ONNX Runtime library the runtime
// linker finds on its own.
func New(ctx context.Context, settings *conf.Settings, source pipeline.Source, onnxLibPath string, registry *prometheus.Registry, log *slog.Logger) (*Orchestrator, error) {
	if err := onnxmodel.InitEnvironment(onnxLibPath); err != nil {
		return nil, pipelineerr.New(err).Component("orchestrator").Category(pipelineerr.CategoryModelLoad).Build()
	}

	o := &Orchestrator{
		settings: settings,
		log:      log,
		metrics:  NewMetrics(registry),
	}

	preamp := settings.Capture.Preamp
	if preamp == 0 {
		preamp = conf.DefaultPreamp
	}
	var samplerOut <-chan pipeline.Chunk
	o.sampler, samplerOut = pipeline.NewSampler(ctx, source, conf.SamplerChunkSize, preamp, log)

	var branches []<-chan pipeline.Chunk
	o.tee, branches = pipeline.NewTee(ctx, samplerOut, 3, log)

	var vadChunks, recChunks, specChunks <-chan pipeline.Chunk
	o.vadChunker, vadChunks = pipeline.NewRechunker(ctx, branches[0], conf.VADChunkSize, log)
	o.recChunker, recChunks = pipeline.NewRechunker(ctx, branches[1], conf.RecordingChunkSize, log)
	o.spcChunker, specChunks = pipeline.NewRechunker(ctx, branches[2], conf.SpecterChunkSize, log)

	vadDetector, err := loadVAD(settings, onnxLibPath)
	if err != nil {
		return nil, err
	}
	o.ownedVAD = vadDetector
	o.vad, o.vadOut = pipeline.NewVAD(ctx, vadChunks, vadDetector, log)

	o.delay, o.delayOut = pipeline.NewDelay(ctx, recChunks, conf.RecordingDelayChunks, log)

	melModel, err := loadModel(melspecPath(settings), ort.NewShape(1, conf.SpecterChunkSize), ort.NewShape(1, 1, 5, conf.MelFrameSize))
	if err != nil {
		return nil, err
	}
	o.ownedModels = append(o.ownedModels, melModel)
	var specterOut <-chan []pipeline.MelFrame
	o.specter, specterOut = pipeline.NewSpecter(ctx, specChunks, conf.SpecterChunkSize, melModel, log)

	embModel, err := loadModel(embeddingPath(settings), ort.NewShape(1, conf.EmbeddingWindow, conf.MelFrameSize, 1), ort.NewShape(1, conf.EmbeddingSize))
	if err != nil {
		return nil, err
	}
	o.ownedModels = append(o.ownedModels, embModel)
	var embedderOut <-chan []float32
	o.embedder, embedderOut = pipeline.NewEmbedder(ctx, specterOut, conf.EmbeddingWindow, embModel, log)

	o.runner, o.runnerOut = pipeline.NewRunner(ctx, embedderOut, conf.RunnerWindow, log)

	if err := o.installModels(); err != nil {
		return nil, err
	}

	rules, err := matchRulesFrom(settings)
	if err != nil {
		return nil, err
	}
	o.matcher = pipeline.NewMatcher(rules, log)
	o.matcher.OnFire(func(ruleName string) {
		o.metrics.MatchesFired.WithLabelValues(ruleName).Inc()
	})

	return o, nil
}

// Run drives the poll loop and the VAD-activity watcher until ctx is
// cancelled, then closes every stage handle in topological order.
func (o *Orchestrator) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		runHealthLog(gctx, 30*time.Second, o.log)
		return nil
	})

	g.Go(func() error {
		o.watchVAD(gctx)
		return nil
	})

	g.Go(func() error {
		o.pollLoop(gctx)
		return nil
	})

	<-gctx.Done()
	o.shutdown()
	_ = g.Wait()
	return nil
}

func (o *Orchestrator) watchVAD(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case active, ok := <-o.vadOut:
			if !ok {
				return
			}
			if active {
				o.lastVADActivity.Store(time.Now().Unix())
			}
		}
	}
}

func (o *Orchestrator) pollLoop(ctx context.Context) {
	rec := newUtteranceRecorder(o.settings, o.metrics)

	for {
		select {
		case <-ctx.Done():
			return
		case activations, ok := <-o.runnerOut:
			if !ok {
				return
			}
			o.metrics.ActivationSets.Inc()
			scores := scoreMap(activations)
			o.matcher.Evaluate(time.Now(), scores)
			o.driveRecording(rec, scores)
		case <-time.After(pollTimeout):
			o.drainDelayed(rec)
		}
	}
}

func (o *Orchestrator) driveRecording(rec *utteranceRecorder, scores map[string]float32) {
	if !rec.active {
		if rec.wakewordName != "" && scores[rec.wakewordName] > conf.UtteranceStartThreshold {
			rec.start()
			o.lastVADActivity.Store(time.Now().Unix())
			return
		}
		o.drainDelayed(rec)
		return
	}
	o.drainDelayed(rec)
	if time.Now().Unix()-o.lastVADActivity.Load() > conf.UtteranceSilenceTimeoutSeconds {
		o.finishRecording(rec)
	}
}

func (o *Orchestrator) drainDelayed(rec *utteranceRecorder) {
	for {
		select {
		case c, ok := <-o.delayOut:
			if !ok {
				return
			}
			if rec.active {
				rec.append(c.Samples)
			}
		default:
			return
		}
	}
}

func (o *Orchestrator) finishRecording(rec *utteranceRecorder) {
	path, err := writeUtteranceWAV(conf.SampleRate, rec.buffer, time.Now())
	if err != nil {
		o.log.Error("failed to write utterance WAV", "error", err)
	} else {
		o.metrics.UtterancesWritten.Inc()
		o.log.Info("wrote utterance recording", "path", path)
		spawnUtteranceCommand(o.settings, path, o.log)
	}
	rec.stop()
}

func (o *Orchestrator) shutdown() {
	_ = o.sampler.Close()
	_ = o.tee.Close()
	_ = o.vadChunker.Close()
	_ = o.vad.Close()
	_ = o.recChunker.Close()
	_ = o.delay.Close()
	_ = o.spcChunker.Close()
	_ = o.specter.Close()
	_ = o.embedder.Close()
	_ = o.runner.Close()

	for _, m := range o.ownedModels {
		_ = m.Close()
	}
	if o.ownedVAD != nil {
		_ = o.ownedVAD.Close()
	}
}

func scoreMap(activations []pipeline.Activation) map[string]float32 {
	m := make(map[string]float32, len(activations))
	for _, a := range activations {
		m[a.Name] = a.Score
	}
	return m
}
