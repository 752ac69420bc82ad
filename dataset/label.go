package dataset

import (
	"bufio"
	stderrors "errors"
	"fmt"
	"image"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/nvr-ai/debris/common"
)

// Label is one annotated object: a class index and a normalized box.
type Label struct {
	Class int
	Box   common.NormalizedBox
}

// Rect converts the label to a pixel rectangle for an image of the given size.
func (l Label) Rect(width, height int) image.Rectangle {
	b := l.Box.ToPixels(width, height)
	return b.ToRect()
}

// ParseLabelLine parses "<class> <cx> <cy> <w> <h>".
//
// The class must be an integer in [0, nc); "1.0" is not accepted as a class. Every coordinate
// must be a number in [0, 1].
//
// Arguments:
//   - line: One line of a label file, without its newline.
//   - nc: The number of classes declared by the descriptor.
//
// Returns:
//   - Label: The parsed object.
//   - error: One of common.ErrFieldCount, common.ErrNotANumber, common.ErrClassOutOfRange or
//     common.ErrCoordinateRange, wrapped with the offending token.
//
// @example
// l, err := ParseLabelLine("1 0.5 0.5 0.2 0.3", 3) // class 1, centered, 0.2 x 0.3
func ParseLabelLine(line string, nc int) (Label, error) {
	fields := strings.Fields(line)
	if len(fields) != 5 {
		return Label{}, fmt.Errorf("%w: got %d", common.ErrFieldCount, len(fields))
	}

	class, err := strconv.Atoi(fields[0])
	if err != nil {
		return Label{}, fmt.Errorf("%w: class %q", common.ErrNotANumber, fields[0])
	}
	if class < 0 || class >= nc {
		return Label{}, fmt.Errorf("%w: class %d with nc=%d", common.ErrClassOutOfRange, class, nc)
	}

	var coords [4]float32
	for i, tok := range fields[1:] {
		v, err := strconv.ParseFloat(tok, 32)
		if err != nil {
			return Label{}, fmt.Errorf("%w: coordinate %q", common.ErrNotANumber, tok)
		}
		// Written this way so NaN is rejected too.
		if !(v >= 0 && v <= 1) {
			return Label{}, fmt.Errorf("%w: %s", common.ErrCoordinateRange, tok)
		}
		coords[i] = float32(v)
	}

	return Label{
		Class: class,
		Box: common.NormalizedBox{
			CenterX: coords[0],
			CenterY: coords[1],
			Width:   coords[2],
			Height:  coords[3],
		},
	}, nil
}

// ReadLabelFile parses every line of a label file. Blank lines are skipped; an empty file has
// no objects.
//
// Valid lines are returned even when others fail. Each failing line yields a
// *common.LabelError, and all of them are joined into the returned error.
func ReadLabelFile(path string, nc int) ([]Label, error) {
	labels, lineErrs, err := readLabels(path, nc)
	if err != nil {
		return labels, err
	}
	joined := make([]error, len(lineErrs))
	for i, e := range lineErrs {
		joined[i] = e
	}
	return labels, stderrors.Join(joined...)
}

func readLabels(path string, nc int) ([]Label, []*common.LabelError, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, "opening label file")
	}
	defer f.Close()

	var (
		labels []Label
		errs   []*common.LabelError
	)
	scanner := bufio.NewScanner(f)
	n := 0
	for scanner.Scan() {
		n++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		l, err := ParseLabelLine(line, nc)
		if err != nil {
			errs = append(errs, &common.LabelError{Path: path, Line: n, Err: err})
			continue
		}
		labels = append(labels, l)
	}
	if err := scanner.Err(); err != nil {
		return labels, errs, errors.Wrapf(err, "reading %s", path)
	}
	return labels, errs, nil
}
