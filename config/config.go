// Package config loads the settings shared by every command: built-in defaults, an optional
// YAML file, DEBRIS_* environment variables and command line flags, in increasing priority.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/nvr-ai/debris/common"
	"github.com/nvr-ai/debris/trainer"
)

// EnvPrefix prefixes every environment override, e.g. DEBRIS_TRAIN_EPOCHS.
const EnvPrefix = "DEBRIS"

// Settings is the complete configuration.
type Settings struct {
	Log        LogSettings        `mapstructure:"log"`
	Dataset    DatasetSettings    `mapstructure:"dataset"`
	Train      TrainSettings      `mapstructure:"train"`
	Export     ExportSettings     `mapstructure:"export"`
	Inference  InferenceSettings  `mapstructure:"inference"`
	Predict    PredictSettings    `mapstructure:"predict"`
	Video      VideoSettings      `mapstructure:"video"`
	Satellites SatelliteSettings  `mapstructure:"satellites"`
	Landing    LandingSettings    `mapstructure:"landing"`
}

// LogSettings mirrors logging.Config.
type LogSettings struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// DatasetSettings locates the descriptor.
type DatasetSettings struct {
	Descriptor string `mapstructure:"descriptor"`
	// Workers bounds concurrent label file reads during validation.
	Workers int `mapstructure:"workers"`
}

// TrainSettings is the run configuration plus the framework command.
type TrainSettings struct {
	// Executable is the framework command line entry point.
	Executable string `mapstructure:"executable"`
	// ExecutableArgs precede the framework mode, e.g. ["-m", "ultralytics"] with python.
	ExecutableArgs []string `mapstructure:"executable_args"`
	// CheckLabels validates every label file before the framework starts.
	CheckLabels bool `mapstructure:"check_labels"`

	trainer.RunConfig `mapstructure:",squash"`
}

// ExportSettings selects the checkpoint to export and how.
type ExportSettings struct {
	Weights string `mapstructure:"weights"`

	trainer.ExportConfig `mapstructure:",squash"`
}

// InferenceSettings configures the ONNX detector used by predict and video.
type InferenceSettings struct {
	Model       string  `mapstructure:"model"`
	LibraryPath string  `mapstructure:"library_path"`
	Device      string  `mapstructure:"device"`
	ImageSize   int     `mapstructure:"image_size"`
	Confidence  float32 `mapstructure:"confidence"`
	Threads     int     `mapstructure:"threads"`
	// MetricsFile receives the run's metrics in text exposition format when set.
	MetricsFile string `mapstructure:"metrics_file"`
}

// PredictSettings configures batch image inference.
type PredictSettings struct {
	Inputs []string `mapstructure:"inputs"`
	Output string   `mapstructure:"output"`
}

// VideoSettings configures video inference.
type VideoSettings struct {
	Files         []string `mapstructure:"files"`
	Output        string   `mapstructure:"output"`
	ProgressEvery int      `mapstructure:"progress_every"`
}

// SatelliteSettings configures the N2YO client.
type SatelliteSettings struct {
	APIKey    string        `mapstructure:"api_key"`
	Endpoint  string        `mapstructure:"endpoint"`
	Latitude  float64       `mapstructure:"latitude"`
	Longitude float64       `mapstructure:"longitude"`
	Altitude  float64       `mapstructure:"altitude"`
	Radius    int           `mapstructure:"radius"`
	Category  int           `mapstructure:"category"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// LandingSettings configures the landing page server.
type LandingSettings struct {
	Addr      string        `mapstructure:"addr"`
	Dir       string        `mapstructure:"dir"`
	Upstream  string        `mapstructure:"upstream"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl"`
	RateLimit float64       `mapstructure:"rate_limit"`
	Burst     int           `mapstructure:"burst"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// New returns a viper instance with defaults, environment bindings and the search path for
// debris.yaml registered. Flags may be bound to it before Load.
func New() *viper.Viper {
	v := viper.New()
	v.SetConfigName("debris")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "debris"))
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	bindEnv(v)
	return v
}

// Load reads the configuration file, if any, and decodes the merged settings.
//
// Arguments:
//   - v: The instance from New, possibly with flags bound.
//   - file: An explicit configuration file; empty searches for debris.yaml.
//
// Returns:
//   - *Settings: The decoded settings, validated.
//   - error: A *common.ConfigError for an unreadable file or invalid values.
func Load(v *viper.Viper, file string) (*Settings, error) {
	if file != "" {
		v.SetConfigFile(file)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, &common.ConfigError{Path: file, Err: errors.Wrap(err, "reading configuration")}
		}
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, &common.ConfigError{Path: v.ConfigFileUsed(), Err: errors.Wrap(err, "decoding configuration")}
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

// Validate checks values no command can work with. Command specific checks, like the run
// configuration, happen when the command runs.
func (s *Settings) Validate() error {
	invalid := func(field, format string, args ...any) error {
		return &common.ConfigError{Field: field, Err: errors.Errorf(format, args...)}
	}
	switch {
	case s.Dataset.Descriptor == "":
		return invalid("dataset.descriptor", "required")
	case s.Dataset.Workers < 1:
		return invalid("dataset.workers", "must be at least 1, got %d", s.Dataset.Workers)
	case s.Log.MaxSizeMB < 0:
		return invalid("log.max_size_mb", "must not be negative")
	case s.Inference.Confidence < 0 || s.Inference.Confidence > 1:
		return invalid("inference.confidence", "must be in [0, 1], got %v", s.Inference.Confidence)
	case s.Inference.ImageSize <= 0:
		return invalid("inference.image_size", "must be positive, got %d", s.Inference.ImageSize)
	case s.Video.ProgressEvery < 1:
		return invalid("video.progress_every", "must be at least 1, got %d", s.Video.ProgressEvery)
	case s.Landing.Burst < 1:
		return invalid("landing.burst", "must be at least 1, got %d", s.Landing.Burst)
	}
	return nil
}
