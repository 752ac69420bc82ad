package dataset

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/nvr-ai/debris/util"
)

// Sample pairs an image with its label file.
type Sample struct {
	Image string
	// Label is empty when the image has no label file; it then has zero objects.
	Label string
}

// Split is the result of pairing the images of one split directory with their labels.
type Split struct {
	Dir      string
	LabelDir string
	Samples  []Sample
	// Unlabeled lists images without a label file.
	Unlabeled []string
	// Orphans lists label files without an image.
	Orphans []string
}

// ScanSplit lists the images of dir and pairs each with "<stem>.txt" in the split's label
// directory (see util.LabelDir).
//
// Arguments:
//   - dir: The image directory.
//
// Returns:
//   - *Split: Samples sorted by image path, plus the unlabeled images and orphan labels.
//   - error: If either directory cannot be read.
func ScanSplit(dir string) (*Split, error) {
	files, err := util.LoadDirectoryImageFiles(dir)
	if err != nil {
		return nil, err
	}

	s := &Split{Dir: dir, LabelDir: util.LabelDir(dir)}

	labels, err := labelFiles(s.LabelDir)
	if err != nil {
		return nil, err
	}

	used := make(map[string]bool, len(files))
	for _, f := range files {
		sample := Sample{Image: f.Path}
		if path, ok := labels[f.Stem]; ok {
			sample.Label = path
			used[f.Stem] = true
		} else {
			s.Unlabeled = append(s.Unlabeled, f.Path)
		}
		s.Samples = append(s.Samples, sample)
	}

	for stem, path := range labels {
		if !used[stem] {
			s.Orphans = append(s.Orphans, path)
		}
	}
	sort.Strings(s.Orphans)

	return s, nil
}

// labelFiles maps stem to path for every .txt file in dir. A missing label directory holds
// no labels.
func labelFiles(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading label directory %s", dir)
	}

	out := make(map[string]string, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".txt") {
			continue
		}
		out[util.Stem(e.Name())] = filepath.Join(dir, e.Name())
	}
	return out, nil
}
