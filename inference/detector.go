package inference

import (
	"context"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/nvr-ai/debris/common"
)

// Config configures a Detector.
type Config struct {
	// Model is the exported ONNX file.
	Model string
	// LibraryPath is the onnxruntime shared library; GetSharedLibPath when empty.
	LibraryPath string
	// Device selects the execution provider, see ParseProvider.
	Device string
	// ImageSize is the square input edge the model was exported with.
	ImageSize int
	// Confidence is the minimum detection score.
	Confidence float32
	// MaxDetections is the number of output rows, 300 for framework exports.
	MaxDetections int
	// Threads bounds intra-op parallelism; 0 lets onnxruntime decide.
	Threads int
	// Names are the class names by index.
	Names []string
	// Metrics is optional.
	Metrics *Metrics
}

// Detector runs an exported model on single images. It is safe for concurrent use; runs are
// serialized because the session tensors are shared.
type Detector struct {
	cfg      Config
	provider Provider
	session  *Session
	log      *slog.Logger

	mu sync.Mutex
	// input and output alias the session tensors.
	input  []float32
	output []float32
	run    func() error
}

// NewDetector loads the model described by cfg.
//
// Arguments:
//   - cfg: The detector configuration.
//
// Returns:
//   - *Detector: The detector, to be closed by the caller.
//   - error: A *common.ConfigError for invalid settings, or a load failure.
func NewDetector(cfg Config) (*Detector, error) {
	return NewEngineBuilder().
		WithLibrary(cfg.LibraryPath).
		WithProvider(cfg.Device).
		WithModel(cfg.Model, cfg.ImageSize, cfg.MaxDetections).
		WithThresholds(cfg.Confidence, cfg.Names).
		WithThreads(cfg.Threads).
		WithMetrics(cfg.Metrics).
		Build()
}

// Predict detects objects in img.
//
// Arguments:
//   - ctx: Checked before the run starts; a started run is not interruptible.
//   - img: The image, any size.
//
// Returns:
//   - []common.BoundingBox: Detections in original image coordinates.
//   - error: If preprocessing or the run fails.
func (d *Detector) Predict(ctx context.Context, img image.Image) ([]common.BoundingBox, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.run == nil {
		return nil, errors.New("detector is closed")
	}

	start := time.Now()
	dets, err := d.predictLocked(img)
	d.observe(start, dets, err)
	return dets, err
}

func (d *Detector) predictLocked(img image.Image) ([]common.BoundingBox, error) {
	lb, err := Letterbox(img, d.cfg.ImageSize, d.input)
	if err != nil {
		return nil, errors.Wrap(err, "preparing input")
	}
	if err := d.run(); err != nil {
		return nil, errors.Wrap(err, "running model")
	}
	return Decode(d.output, d.cfg.MaxDetections, lb, d.cfg.Confidence, d.cfg.Names), nil
}

func (d *Detector) observe(start time.Time, dets []common.BoundingBox, err error) {
	d.log.Debug("prediction", "detections", len(dets), "took", time.Since(start), "error", err)
	m := d.cfg.Metrics
	if m == nil {
		return
	}
	provider := string(d.provider.Backend)
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.predictions.WithLabelValues(provider, status).Inc()
	m.duration.WithLabelValues(provider).Observe(time.Since(start).Seconds())
	for _, det := range dets {
		m.detections.WithLabelValues(det.Label).Inc()
	}
}

// Close releases the session.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.run = nil
	if d.session == nil {
		return nil
	}
	err := d.session.Close()
	d.session = nil
	return err
}
