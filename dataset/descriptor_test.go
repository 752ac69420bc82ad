package dataset

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/debris/common"
)

func TestLoadDescriptor(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.MkdirAll(filepath.Join(f.root, "train", "images"), 0o755))
	path := f.descriptor(defaultManifest)

	d, err := LoadDescriptor(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"space_debris", "statelites", "asteroids"}, d.Names)
	assert.Equal(t, 3, d.NC())
	assert.Equal(t, filepath.Join(f.root, "train", "images"), d.Train)
	assert.Equal(t, d.Train, d.Val)
	assert.True(t, d.SharedSplit())
	assert.Equal(t, "statelites", d.ClassName(1))
	assert.Equal(t, "class_7", d.ClassName(7))
}

func TestLoadDescriptorNamesMapAndPath(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.MkdirAll(filepath.Join(f.root, "set", "images", "train"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(f.root, "set", "images", "val"), 0o755))
	path := f.descriptor(`
path: set
train: images/train
val: images/val
nc: 3
names:
  2: asteroids
  0: space_debris
  1: statelites
`)

	d, err := LoadDescriptor(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultClasses, d.Names)
	assert.Equal(t, filepath.Join(f.root, "set", "images", "val"), d.Val)
	assert.False(t, d.SharedSplit())
}

func TestLoadDescriptorErrors(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
		field    string
	}{
		{
			name:     "nc mismatch",
			manifest: "train: train/images\nval: train/images\nnc: 2\nnames: [a, b, c]\n",
			field:    "names",
		},
		{
			name:     "duplicate name",
			manifest: "train: train/images\nval: train/images\nnc: 2\nnames: [a, a]\n",
			field:    "names",
		},
		{
			name:     "empty name",
			manifest: "train: train/images\nval: train/images\nnc: 2\nnames: [a, '']\n",
			field:    "names",
		},
		{
			name:     "gap in index map",
			manifest: "train: train/images\nval: train/images\nnc: 2\nnames: {0: a, 2: b}\n",
		},
		{
			name:     "missing val dir",
			manifest: "train: train/images\nval: valid/images\nnc: 1\nnames: [a]\n",
			field:    "val",
		},
		{
			name:     "missing train key",
			manifest: "val: train/images\nnc: 1\nnames: [a]\n",
			field:    "train",
		},
		{
			name:     "malformed yaml",
			manifest: "train: [unclosed\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			require.NoError(t, os.MkdirAll(filepath.Join(f.root, "train", "images"), 0o755))
			_, err := LoadDescriptor(f.descriptor(tt.manifest))
			require.Error(t, err)

			var cfgErr *common.ConfigError
			require.True(t, errors.As(err, &cfgErr), "want ConfigError, got %T", err)
			if tt.field != "" {
				assert.Equal(t, tt.field, cfgErr.Field)
			}
			assert.Equal(t, common.ExitConfig, common.ExitCode(err))
		})
	}
}

func TestLoadDescriptorMissingFile(t *testing.T) {
	_, err := LoadDescriptor(filepath.Join(t.TempDir(), "data.yaml"))
	var cfgErr *common.ConfigError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestWriteDescriptorRoundTrip(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.MkdirAll(filepath.Join(f.root, "train", "images"), 0o755))
	path := filepath.Join(f.root, "data.yaml")

	require.NoError(t, WriteDescriptor(path, DefaultDescriptor("train/images", ""), false))

	d, err := LoadDescriptor(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultClasses, d.Names)
	assert.True(t, d.SharedSplit())

	err = WriteDescriptor(path, DefaultDescriptor("train/images", ""), false)
	var cfgErr *common.ConfigError
	assert.True(t, errors.As(err, &cfgErr), "existing file must not be replaced")
	assert.NoError(t, WriteDescriptor(path, DefaultDescriptor("train/images", "train/images"), true))
}
