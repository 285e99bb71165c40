package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvidlabs/wakewing/internal/conf"
)

func settingsWithModel(path string) *conf.Settings {
	s := &conf.Settings{Models: map[string]conf.ModelConfig{"hey_corvid": {Path: path}}}
	return s
}

func TestModelsDirDerivesFromAnyConfiguredModel(t *testing.T) {
	s := settingsWithModel("voices/hey_corvid.onnx")
	assert.Equal(t, "voices", modelsDir(s))
}

func TestModelsDirDefaultsToCurrentDirectory(t *testing.T) {
	s := &conf.Settings{}
	assert.Equal(t, ".", modelsDir(s))
}

func TestDirOfHandlesBarePaths(t *testing.T) {
	assert.Equal(t, ".", dirOf("hey_corvid.onnx"))
	assert.Equal(t, "a/b", dirOf("a/b/hey_corvid.onnx"))
}

func TestUtteranceCommandArgsPutsWavPathFirst(t *testing.T) {
	path, args, ok := utteranceCommandArgs("notify-send --urgent", "/tmp/utterance_1.wav")
	require.True(t, ok)
	assert.Equal(t, "notify-send", path)
	assert.Equal(t, []string{"/tmp/utterance_1.wav", "--urgent"}, args)
}

func TestUtteranceCommandArgsEmptyExecIsNotOK(t *testing.T) {
	_, _, ok := utteranceCommandArgs("", "/tmp/utterance_1.wav")
	assert.False(t, ok)
}

func TestMatchRulesFromConvertsChainsAndDefaults(t *testing.T) {
	s := &conf.Settings{
		Matchers: map[string]conf.MatcherConfig{
			"wake": {
				Chain:  []conf.MatchStageConfig{{Model: "hey_corvid"}},
				Action: "log",
			},
		},
	}
	rules, err := matchRulesFrom(s)
	assert.NoError(t, err)
	assert.Len(t, rules, 1)
	assert.Equal(t, "wake", rules[0].Name)
	assert.Equal(t, "hey_corvid", rules[0].Chain[0].Model)
	assert.InDelta(t, float32(conf.DefaultActivationThreshold), rules[0].Chain[0].Threshold, 0.001)
}
