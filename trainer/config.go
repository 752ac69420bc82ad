// Package trainer drives the external detection framework: it turns a run configuration into
// a framework invocation, runs it, and reports where the artifacts landed.
package trainer

import (
	"strconv"

	"github.com/pkg/errors"

	"github.com/nvr-ai/debris/common"
)

// RunConfig holds the hyperparameters handed to the framework's training routine. Every field
// is passed through verbatim; the framework owns their meaning.
type RunConfig struct {
	BaseWeights string `mapstructure:"base_weights"`
	Epochs      int    `mapstructure:"epochs"`
	BatchSize   int    `mapstructure:"batch_size"`
	ImageSize   int    `mapstructure:"image_size"`
	Device      string `mapstructure:"device"`
	RunName     string `mapstructure:"run_name"`
	Project     string `mapstructure:"project"`

	Patience      int     `mapstructure:"patience"`
	ExistOK       bool    `mapstructure:"exist_ok"`
	Seed          int     `mapstructure:"seed"`
	Deterministic bool    `mapstructure:"deterministic"`
	Optimizer     string  `mapstructure:"optimizer"`
	Pretrained    bool    `mapstructure:"pretrained"`
	Save          bool    `mapstructure:"save"`
	Verbose       bool    `mapstructure:"verbose"`
	SingleClass   bool    `mapstructure:"single_cls"`
	Rect          bool    `mapstructure:"rect"`
	CosLR         bool    `mapstructure:"cos_lr"`
	CloseMosaic   int     `mapstructure:"close_mosaic"`
	Resume        bool    `mapstructure:"resume"`
	AMP           bool    `mapstructure:"amp"`
	Fraction      float64 `mapstructure:"fraction"`
	Profile       bool    `mapstructure:"profile"`

	Hyper Hyperparameters `mapstructure:"hyper"`
}

// Hyperparameters are the learning-rate schedule and augmentation settings.
type Hyperparameters struct {
	LR0            float64 `mapstructure:"lr0"`
	LRF            float64 `mapstructure:"lrf"`
	Momentum       float64 `mapstructure:"momentum"`
	WeightDecay    float64 `mapstructure:"weight_decay"`
	WarmupEpochs   float64 `mapstructure:"warmup_epochs"`
	WarmupMomentum float64 `mapstructure:"warmup_momentum"`
	WarmupBiasLR   float64 `mapstructure:"warmup_bias_lr"`

	HSVH        float64 `mapstructure:"hsv_h"`
	HSVS        float64 `mapstructure:"hsv_s"`
	HSVV        float64 `mapstructure:"hsv_v"`
	Degrees     float64 `mapstructure:"degrees"`
	Translate   float64 `mapstructure:"translate"`
	Scale       float64 `mapstructure:"scale"`
	Shear       float64 `mapstructure:"shear"`
	Perspective float64 `mapstructure:"perspective"`
	FlipUD      float64 `mapstructure:"flipud"`
	FlipLR      float64 `mapstructure:"fliplr"`
	Mosaic      float64 `mapstructure:"mosaic"`
	Mixup       float64 `mapstructure:"mixup"`
	CopyPaste   float64 `mapstructure:"copy_paste"`
}

// DefaultRunConfig returns the configuration the dataset has always been trained with.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		BaseWeights:   "yolov8n.pt",
		Epochs:        10,
		BatchSize:     16,
		ImageSize:     640,
		Device:        "0",
		RunName:       "yolo_space_debris",
		Project:       "runs/train",
		Patience:      5,
		ExistOK:       true,
		Seed:          42,
		Deterministic: true,
		Optimizer:     "auto",
		Pretrained:    true,
		Save:          true,
		Verbose:       true,
		CloseMosaic:   10,
		AMP:           true,
		Fraction:      1.0,
		Hyper: Hyperparameters{
			LR0:            0.01,
			LRF:            0.01,
			Momentum:       0.937,
			WeightDecay:    0.0005,
			WarmupEpochs:   3.0,
			WarmupMomentum: 0.8,
			WarmupBiasLR:   0.1,
			HSVH:           0.015,
			HSVS:           0.7,
			HSVV:           0.4,
			Translate:      0.1,
			Scale:          0.5,
			FlipLR:         0.5,
			Mosaic:         1.0,
		},
	}
}

var optimizers = map[string]bool{
	"auto": true, "SGD": true, "Adam": true, "Adamax": true, "AdamW": true,
	"NAdam": true, "RAdam": true, "RMSProp": true,
}

// Validate checks the configuration before anything is started.
//
// Returns:
//   - error: A *common.ConfigError naming the first offending field.
func (c RunConfig) Validate() error {
	invalid := func(field string, format string, args ...any) error {
		return &common.ConfigError{Field: "train." + field, Err: errors.Errorf(format, args...)}
	}

	switch {
	case c.BaseWeights == "":
		return invalid("base_weights", "required")
	case c.Epochs <= 0:
		return invalid("epochs", "must be positive, got %d", c.Epochs)
	case c.BatchSize <= 0:
		return invalid("batch_size", "must be positive, got %d", c.BatchSize)
	case c.ImageSize <= 0:
		return invalid("image_size", "must be positive, got %d", c.ImageSize)
	case c.RunName == "":
		return invalid("run_name", "required")
	case c.Project == "":
		return invalid("project", "required")
	case c.Patience < 0:
		return invalid("patience", "must not be negative, got %d", c.Patience)
	case c.CloseMosaic < 0:
		return invalid("close_mosaic", "must not be negative, got %d", c.CloseMosaic)
	case !(c.Fraction > 0 && c.Fraction <= 1):
		return invalid("fraction", "must be in (0, 1], got %v", c.Fraction)
	case !optimizers[c.Optimizer]:
		return invalid("optimizer", "unknown optimizer %q", c.Optimizer)
	}

	for _, p := range []struct {
		field string
		value float64
	}{
		{"flipud", c.Hyper.FlipUD},
		{"fliplr", c.Hyper.FlipLR},
		{"mosaic", c.Hyper.Mosaic},
		{"mixup", c.Hyper.Mixup},
		{"copy_paste", c.Hyper.CopyPaste},
	} {
		if !(p.value >= 0 && p.value <= 1) {
			return invalid("hyper."+p.field, "probability must be in [0, 1], got %v", p.value)
		}
	}

	if _, err := ParseDevice(c.Device); err != nil {
		return err
	}
	return nil
}

// Args returns the key=value arguments for the framework, in a fixed order. Data and model
// are not included; the driver adds them.
func (c RunConfig) Args() []string {
	device := c.Device
	if d, err := ParseDevice(c.Device); err == nil {
		device = d.String()
	}

	h := c.Hyper
	pairs := []struct {
		key   string
		value string
	}{
		{"epochs", strconv.Itoa(c.Epochs)},
		{"imgsz", strconv.Itoa(c.ImageSize)},
		{"batch", strconv.Itoa(c.BatchSize)},
		{"name", c.RunName},
		{"patience", strconv.Itoa(c.Patience)},
		{"save", pyBool(c.Save)},
		{"device", device},
		{"project", c.Project},
		{"exist_ok", pyBool(c.ExistOK)},
		{"pretrained", pyBool(c.Pretrained)},
		{"optimizer", c.Optimizer},
		{"verbose", pyBool(c.Verbose)},
		{"seed", strconv.Itoa(c.Seed)},
		{"deterministic", pyBool(c.Deterministic)},
		{"single_cls", pyBool(c.SingleClass)},
		{"rect", pyBool(c.Rect)},
		{"cos_lr", pyBool(c.CosLR)},
		{"close_mosaic", strconv.Itoa(c.CloseMosaic)},
		{"resume", pyBool(c.Resume)},
		{"amp", pyBool(c.AMP)},
		{"fraction", num(c.Fraction)},
		{"profile", pyBool(c.Profile)},
		{"lr0", num(h.LR0)},
		{"lrf", num(h.LRF)},
		{"momentum", num(h.Momentum)},
		{"weight_decay", num(h.WeightDecay)},
		{"warmup_epochs", num(h.WarmupEpochs)},
		{"warmup_momentum", num(h.WarmupMomentum)},
		{"warmup_bias_lr", num(h.WarmupBiasLR)},
		{"hsv_h", num(h.HSVH)},
		{"hsv_s", num(h.HSVS)},
		{"hsv_v", num(h.HSVV)},
		{"degrees", num(h.Degrees)},
		{"translate", num(h.Translate)},
		{"scale", num(h.Scale)},
		{"shear", num(h.Shear)},
		{"perspective", num(h.Perspective)},
		{"flipud", num(h.FlipUD)},
		{"fliplr", num(h.FlipLR)},
		{"mosaic", num(h.Mosaic)},
		{"mixup", num(h.Mixup)},
		{"copy_paste", num(h.CopyPaste)},
	}

	args := make([]string, len(pairs))
	for i, p := range pairs {
		args[i] = p.key + "=" + p.value
	}
	return args
}

func pyBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
