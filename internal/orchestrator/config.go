package orchestrator

import (
	"log/slog"
	"os"
	"os/exec"
	"strings"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/corvidlabs/wakewing/internal/conf"
	pipelineerr "github.com/corvidlabs/wakewing/internal/errors"
	"github.com/corvidlabs/wakewing/internal/onnxmodel"
	"github.com/corvidlabs/wakewing/internal/pipeline"
)

// melspecPath and embeddingPath name the two fixed models spec §6 requires
// to exist at installation-independent, well-known names inside whichever
// directory the configured wake-word models live in.
func melspecPath(settings *conf.Settings) string   { return modelsDir(settings) + "/melspectrogram.onnx" }
func embeddingPath(settings *conf.Settings) string { return modelsDir(settings) + "/embedding_model.onnx" }
func sileroVADPath(settings *conf.Settings) string { return modelsDir(settings) + "/silero_vad.onnx" }

func modelsDir(settings *conf.Settings) string {
	for _, m := range settings.Models {
		return dirOf(m.Path)
	}
	return "."
}

func dirOf(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[:i]
	}
	return "."
}

func loadModel(path string, inputShape, outputShape ort.Shape) (pipeline.Model, error) {
	return onnxmodel.NewSession(path, inputShape, outputShape)
}

func loadVAD(settings *conf.Settings, onnxLibPath string) (pipeline.VoiceDetector, error) {
	return onnxmodel.NewVADSession(sileroVADPath(settings), conf.SampleRate, 0.5)
}

// installModels loads one classifier per configured wake-word model and
// installs it into the Runner under its configured name and filter.
func (o *Orchestrator) installModels() error {
	for name, m := range o.settings.Models {
		classifier, err := loadModel(m.Path, ort.NewShape(1, conf.RunnerWindow, conf.EmbeddingSize), ort.NewShape(1, 1))
		if err != nil {
			return pipelineerr.New(err).Component("orchestrator").Category(pipelineerr.CategoryModelLoad).
				Context("model", name).Build()
		}
		o.ownedModels = append(o.ownedModels, classifier)
		o.runner.Install(pipeline.NamedModel{
			Name:  name,
			Model: classifier,
			Filter: pipeline.Filter{
				Scale: m.ScaleOrDefault(),
				Low:   conf.DefaultClampLow,
				High:  conf.DefaultClampHigh,
			},
		})
	}
	return nil
}

// matchRulesFrom converts the configuration's matcher definitions into the
// pipeline package's MatchRule values.
func matchRulesFrom(settings *conf.Settings) ([]pipeline.MatchRule, error) {
	rules := make([]pipeline.MatchRule, 0, len(settings.Matchers))
	for name, m := range settings.Matchers {
		stages := make([]pipeline.MatchStage, 0, len(m.Chain))
		for _, s := range m.Chain {
			stages = append(stages, pipeline.MatchStage{
				Model:     s.Model,
				Threshold: s.ThresholdOrDefault(),
				Timeout:   s.TimeoutOrDefault(),
			})
		}
		rules = append(rules, pipeline.MatchRule{Name: name, Chain: stages, Action: m.Action})
	}
	return rules, nil
}

// utteranceCommandArgs splits the configured utterance.exec string into a
// path and argument list with wavPath prepended as the first argument, per
// the "file path as first argument" contract. Returns ok=false if execStr
// has no command to run.
func utteranceCommandArgs(execStr, wavPath string) (path string, args []string, ok bool) {
	fields := strings.Fields(execStr)
	if len(fields) == 0 {
		return "", nil, false
	}
	return fields[0], append([]string{wavPath}, fields[1:]...), true
}

// spawnUtteranceCommand runs the configured utterance.exec command with the
// WAV path as its first argument, non-blocking, inheriting environment.
func spawnUtteranceCommand(settings *conf.Settings, wavPath string, log *slog.Logger) {
	if settings.Utterance == nil || settings.Utterance.Exec == "" {
		return
	}
	path, args, ok := utteranceCommandArgs(settings.Utterance.Exec, wavPath)
	if !ok {
		return
	}
	cmd := exec.Command(path, args...)
	cmd.Env = os.Environ()
	if err := cmd.Start(); err != nil {
		log.Error("failed to spawn utterance command", "error",
			pipelineerr.New(err).Component("orchestrator").Category(pipelineerr.CategoryAction).
				Context("command", settings.Utterance.Exec).Build())
		return
	}
	go func() { _ = cmd.Wait() }()
}
