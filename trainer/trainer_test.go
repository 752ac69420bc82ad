package trainer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/nvr-ai/debris/dataset"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeRunner replays canned framework output.
type fakeRunner struct {
	lines []string
	code  int
	err   error
	// block waits for cancellation before returning.
	block bool

	name string
	args []string
}

func (f *fakeRunner) Run(ctx context.Context, name string, args []string, onLine func(string)) (int, error) {
	f.name = name
	f.args = args
	for _, l := range f.lines {
		onLine(l)
	}
	if f.block {
		<-ctx.Done()
		return -1, ctx.Err()
	}
	return f.code, f.err
}

// testDescriptor writes a one-image dataset and returns its loaded descriptor.
func testDescriptor(t *testing.T) *dataset.Descriptor {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "train", "images"), 0o755))
	path := filepath.Join(root, "data.yaml")
	require.NoError(t, dataset.WriteDescriptor(path, dataset.DefaultDescriptor("train/images", ""), false))
	d, err := dataset.LoadDescriptor(path)
	require.NoError(t, err)
	return d
}
