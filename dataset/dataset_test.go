package dataset

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// fixture lays out a dataset in the framework convention:
//
//	root/data.yaml
//	root/train/images/*.jpg
//	root/train/labels/*.txt
type fixture struct {
	t    *testing.T
	root string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return &fixture{t: t, root: t.TempDir()}
}

func (f *fixture) write(rel, content string) string {
	f.t.Helper()
	path := filepath.Join(f.root, rel)
	require.NoError(f.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(f.t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func (f *fixture) image(rel string) string {
	return f.write(rel, "not decoded")
}

func (f *fixture) descriptor(body string) string {
	return f.write("data.yaml", strings.TrimLeft(body, "\n"))
}

const defaultManifest = `
train: train/images
val: train/images
nc: 3
names: [space_debris, statelites, asteroids]
`
