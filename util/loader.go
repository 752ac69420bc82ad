package util

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// ImageFile represents an image file found on disk.
type ImageFile struct {
	// Path is the path to the image file.
	Path string
	// Stem is the file name without its extension; label files share it.
	Stem string
}

// IsImage reports whether name carries one of the supported image extensions. The
// comparison ignores case, so "frame.JPG" qualifies.
func IsImage(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png", ".bmp":
		return true
	}
	return false
}

// Stem returns the base name of path without its extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// LoadDirectoryImageFiles lists the image files in a directory, without descending.
//
// Arguments:
// - dir: Directory path containing image files.
//
// Returns:
// - []ImageFile: The image files sorted by path.
// - error: Error if the directory cannot be read.
func LoadDirectoryImageFiles(dir string) ([]ImageFile, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "reading image directory %s", dir)
	}

	var images []ImageFile
	for _, file := range files {
		if file.IsDir() || !IsImage(file.Name()) {
			continue
		}
		images = append(images, ImageFile{
			Path: filepath.Join(dir, file.Name()),
			Stem: Stem(file.Name()),
		})
	}

	sort.Slice(images, func(i, j int) bool {
		return images[i].Path < images[j].Path
	})

	return images, nil
}

// LabelDir returns the directory that holds the label files for an image directory.
//
// The last path element named "images" is replaced by "labels". A directory without such an
// element keeps its labels next to the images.
func LabelDir(imageDir string) string {
	clean := filepath.Clean(imageDir)
	parts := strings.Split(clean, string(filepath.Separator))
	for i := len(parts) - 1; i >= 0; i-- {
		if parts[i] == "images" {
			parts[i] = "labels"
			joined := strings.Join(parts, string(filepath.Separator))
			if joined == "" {
				return string(filepath.Separator)
			}
			return joined
		}
	}
	return clean
}
