package conf

import (
	"sync"
	"time"

	"github.com/spf13/viper"

	pipelineerr "github.com/corvidlabs/wakewing/internal/errors"
)

// Settings is the root of this engine's configuration, unmarshalled from
// the YAML document named positionally on the command line (spec §6).
type Settings struct {
	Debug bool

	Main struct {
		Log LogConfig
	}

	Capture struct {
		Device string  // --device
		Preamp float32 // --preamp
	}

	Models   map[string]ModelConfig   `mapstructure:"models"`
	Matchers map[string]MatcherConfig `mapstructure:"matchers"`
	Utterance *UtteranceConfig        `mapstructure:"utterance"`
}

// ModelConfig is spec §6's `models.<name>` entry.
type ModelConfig struct {
	Path  string   `mapstructure:"path"`
	Scale *float32 `mapstructure:"scale"`
}

// ScaleOrDefault returns Scale if set, else DefaultModelScale (spec §3).
func (m ModelConfig) ScaleOrDefault() float32 {
	if m.Scale != nil {
		return *m.Scale
	}
	return DefaultModelScale
}

// MatcherConfig is spec §6's `matchers.<rule_name>` entry.
type MatcherConfig struct {
	Chain  []MatchStageConfig `mapstructure:"chain"`
	Action string             `mapstructure:"action"`
}

// MatchStageConfig is one link of a MatchRule's chain (spec §3).
type MatchStageConfig struct {
	Model               string   `mapstructure:"model"`
	ActivationThreshold *float32 `mapstructure:"activation_threshold"`
	TimeoutMillis       *int     `mapstructure:"timeout_ms"`
}

func (s MatchStageConfig) ThresholdOrDefault() float32 {
	if s.ActivationThreshold != nil {
		return *s.ActivationThreshold
	}
	return DefaultActivationThreshold
}

func (s MatchStageConfig) TimeoutOrDefault() time.Duration {
	if s.TimeoutMillis != nil {
		return time.Duration(*s.TimeoutMillis) * time.Millisecond
	}
	return DefaultTimeoutMillis * time.Millisecond
}

// UtteranceConfig is spec §6's optional `utterance` block.
type UtteranceConfig struct {
	Wakeword string `mapstructure:"wakeword"`
	Exec     string `mapstructure:"exec"`
}

// LogConfig mirrors the originating codebase's log-file configuration,
// consumed by internal/logging.NewFileLogger.
type LogConfig struct {
	Enabled     bool
	Path        string
	Rotation    RotationType
	MaxSize     int64
	RotationDay time.Weekday
}

type RotationType string

const (
	RotationDaily  RotationType = "daily"
	RotationWeekly RotationType = "weekly"
	RotationSize   RotationType = "size"
)

// settingsInstance holds the most recently loaded configuration so that
// packages with no direct line to the CLI's config path (internal/logging,
// chiefly) can still reach it through Setting().
var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads and validates the YAML file at path. Unlike the originating
// codebase's multi-path auto-discovery (searching OS-specific config
// directories and writing a default file if none is found), this engine's
// CLI contract (spec §6) requires an explicit config file argument, so
// loading is a direct single-file read.
func Load(path string) (*Settings, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, pipelineerr.New(err).
			Component("conf").
			Category(pipelineerr.CategoryConfiguration).
			Context("path", path).
			Build()
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, pipelineerr.New(err).
			Component("conf").
			Category(pipelineerr.CategoryConfiguration).
			Context("path", path).
			Build()
	}

	if err := Validate(settings); err != nil {
		return nil, err
	}

	settingsMutex.Lock()
	settingsInstance = settings
	settingsMutex.Unlock()

	return settings, nil
}

// Setting returns the most recently loaded Settings, or a zero-value
// Settings if Load has not run yet. internal/logging.NewFileLogger reads
// Main.Log through this rather than threading Settings through every
// logger constructor call.
func Setting() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	if settingsInstance == nil {
		return &Settings{}
	}
	return settingsInstance
}

// Validate checks the cross-references spec §7 calls out as configuration
// errors: an unknown model reference in a matcher chain or utterance block.
func Validate(s *Settings) error {
	for ruleName, m := range s.Matchers {
		if len(m.Chain) == 0 {
			return pipelineerr.Newf("matcher %q has an empty chain", ruleName).
				Component("conf").Category(pipelineerr.CategoryConfiguration).Build()
		}
		for _, stage := range m.Chain {
			if _, ok := s.Models[stage.Model]; !ok {
				return pipelineerr.Newf("matcher %q references unknown model %q", ruleName, stage.Model).
					Component("conf").Category(pipelineerr.CategoryConfiguration).Build()
			}
		}
		if m.Action == "" {
			return pipelineerr.Newf("matcher %q has no action", ruleName).
				Component("conf").Category(pipelineerr.CategoryConfiguration).Build()
		}
	}
	if s.Utterance != nil && s.Utterance.Wakeword != "" {
		if _, ok := s.Models[s.Utterance.Wakeword]; !ok {
			return pipelineerr.Newf("utterance.wakeword references unknown model %q", s.Utterance.Wakeword).
				Component("conf").Category(pipelineerr.CategoryConfiguration).Build()
		}
	}
	return nil
}
