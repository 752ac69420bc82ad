package images

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/debris/common"
	"github.com/nvr-ai/debris/logging"
	"github.com/nvr-ai/debris/profiler"
)

// Predictor detects objects in an image. *inference.Detector implements it.
type Predictor interface {
	Predict(ctx context.Context, img image.Image) ([]common.BoundingBox, error)
}

// WriteFunc writes img annotated with dets to path.
type WriteFunc func(path string, img image.Image, dets []common.BoundingBox) error

// Result counts the outcome of a batch.
type Result struct {
	Found  int
	Saved  int
	Errors int
	// Detections is the total number of boxes over all saved images.
	Detections int
	Duration   time.Duration
}

// Batch runs a Predictor over every image in Inputs and writes annotated copies to Output.
type Batch struct {
	Inputs    []string
	Output    string
	Predictor Predictor
	// Write defaults to WriteAnnotated.
	Write WriteFunc
	// Profiler is optional; when set, load, predict and write are timed.
	Profiler *profiler.Profiler
}

// Run processes the batch. A failing image is logged and counted; the batch continues.
//
// Arguments:
//   - ctx: Cancelling stops before the next image; the partial result is returned with
//     the context error.
//
// Returns:
//   - Result: The counts.
//   - error: If the inputs cannot be listed, the output cannot be created, or ctx ends.
func (b *Batch) Run(ctx context.Context) (Result, error) {
	log := logging.Module("images")
	start := time.Now()

	files, err := List(b.Inputs...)
	if err != nil {
		return Result{}, err
	}
	res := Result{Found: len(files)}
	if err := os.MkdirAll(b.Output, 0o755); err != nil {
		return res, errors.Wrapf(err, "creating output directory %s", b.Output)
	}
	log.Info("batch started", "images", res.Found, "output", b.Output)

	write := b.Write
	if write == nil {
		write = WriteAnnotated
	}

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			res.Duration = time.Since(start)
			return res, err
		}
		n, err := b.processOne(ctx, f.Path, write)
		if err != nil {
			log.Error("image failed", "path", f.Path, "error", err)
			res.Errors++
			continue
		}
		res.Saved++
		res.Detections += n
	}

	res.Duration = time.Since(start)
	log.Info("batch complete",
		"found", res.Found,
		"saved", res.Saved,
		"errors", res.Errors,
		"detections", res.Detections,
		"took", res.Duration.Truncate(time.Millisecond))
	if b.Profiler != nil {
		b.Profiler.Log(log)
	}
	return res, nil
}

func (b *Batch) processOne(ctx context.Context, path string, write WriteFunc) (int, error) {
	done := b.time("load")
	img, err := Load(path)
	done()
	if err != nil {
		return 0, err
	}

	done = b.time("predict")
	dets, err := b.Predictor.Predict(ctx, img)
	done()
	if err != nil {
		return 0, errors.Wrap(err, "predicting")
	}

	done = b.time("write")
	defer done()
	return len(dets), write(filepath.Join(b.Output, OutputName(path)), img, dets)
}

func (b *Batch) time(op string) func() {
	if b.Profiler == nil {
		return func() {}
	}
	return b.Profiler.StartOperation(op)
}

// WriteAnnotated draws dets on img and encodes it to path; the format follows the
// extension.
func WriteAnnotated(path string, img image.Image, dets []common.BoundingBox) error {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return errors.Wrap(err, "converting image")
	}
	defer mat.Close()

	Annotate(&mat, dets)
	if !gocv.IMWrite(path, mat) {
		return errors.Errorf("writing %s", path)
	}
	return nil
}
