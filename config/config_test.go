package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/debris/common"
	"github.com/nvr-ai/debris/trainer"
)

// chdirTemp runs the test in an empty directory so no debris.yaml is picked up.
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	s, err := Load(New(), "")
	require.NoError(t, err)

	assert.Equal(t, trainer.DefaultRunConfig(), s.Train.RunConfig)
	assert.Equal(t, "yolo", s.Train.Executable)
	assert.Equal(t, "data.yaml", s.Dataset.Descriptor)
	assert.Equal(t, []string{"train", "valid"}, s.Predict.Inputs)
	assert.InDelta(t, 0.25, s.Inference.Confidence, 1e-6)
	assert.Equal(t, 30, s.Video.ProgressEvery)
	assert.Equal(t, 70, s.Satellites.Radius)
	assert.Equal(t, 18, s.Satellites.Category)
	assert.Equal(t, 30*time.Second, s.Landing.CacheTTL)
	assert.True(t, s.Export.NMS)
}

func TestLoadPrecedence(t *testing.T) {
	dir := chdirTemp(t)
	file := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
train:
  epochs: 50
  batch_size: 8
  device: cpu
  hyper:
    mosaic: 0.5
landing:
  cache_ttl: 1m
`), 0o644))

	t.Setenv("DEBRIS_TRAIN_BATCH_SIZE", "4")
	t.Setenv("N2YO_API_KEY", "from-env")

	v := New()
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("epochs", 0, "")
	require.NoError(t, v.BindPFlag("train.epochs", flags.Lookup("epochs")))
	require.NoError(t, flags.Parse([]string{"--epochs", "3"}))

	s, err := Load(v, file)
	require.NoError(t, err)

	assert.Equal(t, 3, s.Train.Epochs, "flag beats file")
	assert.Equal(t, 4, s.Train.BatchSize, "env beats file")
	assert.Equal(t, "cpu", s.Train.Device)
	assert.InDelta(t, 0.5, s.Train.Hyper.Mosaic, 1e-9)
	assert.InDelta(t, 0.5, s.Train.Hyper.FlipLR, 1e-9, "untouched keys keep defaults")
	assert.Equal(t, time.Minute, s.Landing.CacheTTL)
	assert.Equal(t, "from-env", s.Satellites.APIKey)
}

func TestLoadSearchesWorkingDirectory(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "debris.yaml"), []byte("dataset:\n  descriptor: space.yaml\n"), 0o644))

	s, err := Load(New(), "")
	require.NoError(t, err)
	assert.Equal(t, "space.yaml", s.Dataset.Descriptor)
}

func TestLoadErrors(t *testing.T) {
	dir := chdirTemp(t)

	_, err := Load(New(), filepath.Join(dir, "missing.yaml"))
	var cfgErr *common.ConfigError
	require.True(t, errors.As(err, &cfgErr))

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("inference:\n  confidence: 1.5\n"), 0o644))
	_, err = Load(New(), bad)
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "inference.confidence", cfgErr.Field)
}
