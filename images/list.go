// Package images runs a detector over directories of still images and writes annotated
// copies.
package images

import (
	"image"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"

	"github.com/nvr-ai/debris/util"
)

// List collects the images directly inside each directory, in argument order. Directories
// that do not exist are skipped.
//
// Arguments:
//   - dirs: The directories to scan.
//
// Returns:
//   - []util.ImageFile: The images, sorted by path within each directory.
//   - error: If an existing directory cannot be read.
func List(dirs ...string) ([]util.ImageFile, error) {
	var all []util.ImageFile
	for _, dir := range dirs {
		files, err := util.LoadDirectoryImageFiles(dir)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, err
		}
		all = append(all, files...)
	}
	return all, nil
}

// OutputName is the annotated file name for path: the parent directory name and the file
// name joined by an underscore, so "valid/img1.jpg" becomes "valid_img1.jpg".
func OutputName(path string) string {
	return filepath.Base(filepath.Dir(path)) + "_" + filepath.Base(path)
}

// Load decodes an image file, applying its EXIF orientation.
func Load(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.Wrapf(err, "loading %s", path)
	}
	return img, nil
}
