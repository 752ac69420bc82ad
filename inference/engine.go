package inference

import (
	"github.com/pkg/errors"

	"github.com/nvr-ai/debris/common"
	"github.com/nvr-ai/debris/logging"
)

// EngineBuilder assembles a Detector step by step. The first failing step is kept and
// reported by Build.
type EngineBuilder struct {
	cfg      Config
	provider Provider
	err      error
}

// NewEngineBuilder creates a new engine builder.
func NewEngineBuilder() *EngineBuilder {
	return &EngineBuilder{cfg: Config{ImageSize: 640, MaxDetections: 300, Confidence: 0.25}}
}

// HasError checks if the engine builder has errors.
func (b *EngineBuilder) HasError() bool {
	return b.err != nil
}

// WithLibrary sets the onnxruntime shared library path.
func (b *EngineBuilder) WithLibrary(path string) *EngineBuilder {
	if path == "" {
		path = GetSharedLibPath()
	}
	b.cfg.LibraryPath = path
	return b
}

// WithProvider selects the execution provider from a device specifier.
func (b *EngineBuilder) WithProvider(device string) *EngineBuilder {
	if b.HasError() {
		return b
	}
	p, err := ParseProvider(device)
	if err != nil {
		b.err = err
		return b
	}
	b.cfg.Device = device
	b.provider = p
	return b
}

// WithModel sets the model file and its input and output geometry. Zero values keep the
// framework export defaults.
func (b *EngineBuilder) WithModel(path string, imageSize, maxDetections int) *EngineBuilder {
	if b.HasError() {
		return b
	}
	if path == "" {
		b.err = &common.ConfigError{Field: "inference.model", Err: errors.New("required")}
		return b
	}
	b.cfg.Model = path
	if imageSize > 0 {
		b.cfg.ImageSize = imageSize
	}
	if maxDetections > 0 {
		b.cfg.MaxDetections = maxDetections
	}
	return b
}

// WithThresholds sets the minimum score and the class names.
func (b *EngineBuilder) WithThresholds(conf float32, names []string) *EngineBuilder {
	if b.HasError() {
		return b
	}
	if conf < 0 || conf > 1 {
		b.err = &common.ConfigError{Field: "inference.confidence", Err: errors.Errorf("must be in [0, 1], got %v", conf)}
		return b
	}
	b.cfg.Confidence = conf
	b.cfg.Names = names
	return b
}

// WithThreads bounds intra-op parallelism.
func (b *EngineBuilder) WithThreads(n int) *EngineBuilder {
	b.cfg.Threads = n
	return b
}

// WithMetrics attaches metrics.
func (b *EngineBuilder) WithMetrics(m *Metrics) *EngineBuilder {
	b.cfg.Metrics = m
	return b
}

// Build loads the runtime and the model.
//
// Returns:
//   - *Detector: The detector.
//   - error: The first error of any step.
func (b *EngineBuilder) Build() (*Detector, error) {
	if b.HasError() {
		return nil, b.err
	}
	if b.cfg.Model == "" {
		return nil, &common.ConfigError{Field: "inference.model", Err: errors.New("model not configured")}
	}
	if err := initEnvironment(b.cfg.LibraryPath); err != nil {
		return nil, err
	}

	session, err := newSession(sessionArgs{
		modelPath: b.cfg.Model,
		imageSize: b.cfg.ImageSize,
		maxRows:   b.cfg.MaxDetections,
		threads:   b.cfg.Threads,
		provider:  b.provider,
	})
	if err != nil {
		return nil, err
	}

	log := logging.Module("inference")
	log.Info("model loaded",
		"model", b.cfg.Model,
		"provider", b.provider.Backend,
		"imgsz", b.cfg.ImageSize,
		"classes", len(b.cfg.Names))

	return &Detector{
		cfg:      b.cfg,
		provider: b.provider,
		session:  session,
		log:      log,
		input:    session.Input.GetData(),
		output:   session.Output.GetData(),
		run:      session.Session.Run,
	}, nil
}
