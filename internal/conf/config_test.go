package conf_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvidlabs/wakewing/internal/conf"
)

const sampleYAML = `
models:
  hey_corvid:
    path: hey_corvid.onnx
    scale: 1.2
matchers:
  wake:
    chain:
      - model: hey_corvid
        activation_threshold: 0.6
        timeout_ms: 1000
    action: "exec:./on_wake.sh"
utterance:
  wakeword: hey_corvid
  exec: "./save_clip.sh"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, sampleYAML)

	settings, err := conf.Load(path)
	require.NoError(t, err)

	require.Contains(t, settings.Models, "hey_corvid")
	assert.InDelta(t, float32(1.2), settings.Models["hey_corvid"].ScaleOrDefault(), 0.001)

	rule := settings.Matchers["wake"]
	require.Len(t, rule.Chain, 1)
	assert.InDelta(t, float32(0.6), rule.Chain[0].ThresholdOrDefault(), 0.001)
	assert.Equal(t, "exec:./on_wake.sh", rule.Action)

	require.NotNil(t, settings.Utterance)
	assert.Equal(t, "hey_corvid", settings.Utterance.Wakeword)
}

func TestLoadDefaultsApply(t *testing.T) {
	path := writeConfig(t, `
models:
  hey_corvid:
    path: hey_corvid.onnx
matchers:
  wake:
    chain:
      - model: hey_corvid
    action: "log"
`)

	settings, err := conf.Load(path)
	require.NoError(t, err)

	assert.InDelta(t, float32(conf.DefaultModelScale), settings.Models["hey_corvid"].ScaleOrDefault(), 0.001)
	stage := settings.Matchers["wake"].Chain[0]
	assert.InDelta(t, float32(conf.DefaultActivationThreshold), stage.ThresholdOrDefault(), 0.001)
	assert.Equal(t, conf.DefaultTimeoutMillis, int(stage.TimeoutOrDefault().Milliseconds()))
}

func TestLoadRejectsUnknownModelReference(t *testing.T) {
	path := writeConfig(t, `
models:
  hey_corvid:
    path: hey_corvid.onnx
matchers:
  wake:
    chain:
      - model: does_not_exist
    action: "log"
`)

	_, err := conf.Load(path)
	require.Error(t, err)
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := conf.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
