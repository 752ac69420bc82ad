package inference

import (
	"fmt"

	"gorgonia.org/tensor"

	"github.com/nvr-ai/debris/common"
)

// Decode converts rows of a suppressed detection output into boxes on the original image.
//
// Each row is x1, y1, x2, y2, score, class in model input pixels. Rows scoring below conf, and
// the zero rows that pad the output, are dropped. No suppression happens here; the exported
// graph has already done it.
//
// Arguments:
//   - output: The output tensor data, at least rows*6 floats.
//   - rows: The number of rows in output.
//   - lb: The letterbox used to prepare the input.
//   - conf: The minimum score.
//   - names: Class names by index.
//
// Returns:
//   - []common.BoundingBox: Detections in output order.
func Decode(output []float32, rows int, lb LetterboxResult, conf float32, names []string) []common.BoundingBox {
	if rows <= 0 || len(output) < rows*rowWidth {
		return nil
	}
	t := tensor.New(tensor.WithShape(rows, rowWidth), tensor.WithBacking(output[:rows*rowWidth]))

	at := func(r, c int) float32 {
		v, err := t.At(r, c)
		if err != nil {
			return 0
		}
		return v.(float32)
	}

	var out []common.BoundingBox
	for r := 0; r < rows; r++ {
		score := at(r, 4)
		if score <= 0 || score < conf {
			continue
		}
		class := int(at(r, 5))
		out = append(out, common.BoundingBox{
			Label:      className(names, class),
			ClassID:    class,
			Confidence: score,
			X1:         lb.toOriginal(at(r, 0), lb.PadX, lb.Width),
			Y1:         lb.toOriginal(at(r, 1), lb.PadY, lb.Height),
			X2:         lb.toOriginal(at(r, 2), lb.PadX, lb.Width),
			Y2:         lb.toOriginal(at(r, 3), lb.PadY, lb.Height),
		})
	}
	return out
}

func className(names []string, class int) string {
	if class >= 0 && class < len(names) {
		return names[class]
	}
	return fmt.Sprintf("class_%d", class)
}
