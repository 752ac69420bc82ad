package trainer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/debris/common"
)

func TestDefaultRunConfigArgs(t *testing.T) {
	cfg := DefaultRunConfig()
	require.NoError(t, cfg.Validate())

	args := cfg.Args()
	assert.Equal(t, "epochs=10", args[0])
	assert.Contains(t, args, "imgsz=640")
	assert.Contains(t, args, "batch=16")
	assert.Contains(t, args, "device=0")
	assert.Contains(t, args, "name=yolo_space_debris")
	assert.Contains(t, args, "project=runs/train")
	assert.Contains(t, args, "exist_ok=True")
	assert.Contains(t, args, "single_cls=False")
	assert.Contains(t, args, "momentum=0.937")
	assert.Contains(t, args, "weight_decay=0.0005")
	assert.Contains(t, args, "warmup_epochs=3")
	assert.Contains(t, args, "fliplr=0.5")
	assert.Equal(t, "copy_paste=0", args[len(args)-1])
	assert.Equal(t, args, cfg.Args(), "argument order must be stable")
}

func TestRunConfigArgsNormalizesDevice(t *testing.T) {
	cfg := DefaultRunConfig()
	cfg.Device = "cuda:1"
	assert.Contains(t, cfg.Args(), "device=1")
}

func TestRunConfigValidate(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*RunConfig)
		field string
	}{
		{"zero epochs", func(c *RunConfig) { c.Epochs = 0 }, "train.epochs"},
		{"negative batch", func(c *RunConfig) { c.BatchSize = -1 }, "train.batch_size"},
		{"zero image size", func(c *RunConfig) { c.ImageSize = 0 }, "train.image_size"},
		{"no weights", func(c *RunConfig) { c.BaseWeights = "" }, "train.base_weights"},
		{"no name", func(c *RunConfig) { c.RunName = "" }, "train.run_name"},
		{"fraction", func(c *RunConfig) { c.Fraction = 1.5 }, "train.fraction"},
		{"optimizer", func(c *RunConfig) { c.Optimizer = "adam" }, "train.optimizer"},
		{"probability", func(c *RunConfig) { c.Hyper.Mosaic = 2 }, "train.hyper.mosaic"},
		{"device", func(c *RunConfig) { c.Device = "gpu0" }, "train.device"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultRunConfig()
			tt.edit(&cfg)
			err := cfg.Validate()
			var cfgErr *common.ConfigError
			require.True(t, errors.As(err, &cfgErr), "got %v", err)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestParseDevice(t *testing.T) {
	tests := []struct {
		in      string
		kind    DeviceKind
		str     string
		wantErr bool
	}{
		{"cpu", DeviceCPU, "cpu", false},
		{"CPU", DeviceCPU, "cpu", false},
		{"mps", DeviceMPS, "mps", false},
		{"0", DeviceCUDA, "0", false},
		{"0, 1", DeviceCUDA, "0,1", false},
		{"cuda:2", DeviceCUDA, "2", false},
		{"", "", "", true},
		{"-1", "", "", true},
		{"0,0", "", "", true},
		{"tpu", "", "", true},
		{"0,,1", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			d, err := ParseDevice(tt.in)
			if tt.wantErr {
				var cfgErr *common.ConfigError
				assert.True(t, errors.As(err, &cfgErr))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.kind, d.Kind)
			assert.Equal(t, tt.str, d.String())
		})
	}
}

func TestProbeHost(t *testing.T) {
	assert.NotPanics(t, func() { _ = ProbeHost() })
}
