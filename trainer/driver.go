package trainer

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/nvr-ai/debris/common"
	"github.com/nvr-ai/debris/dataset"
	"github.com/nvr-ai/debris/logging"
)

const tailBytes = 16 * 1024

// Artifacts locates the output of a finished training run. The framework owns the layout.
type Artifacts struct {
	RunID       string
	SaveDir     string
	BestWeights string
	LastWeights string
	Results     string
	Duration    time.Duration
}

// Missing lists the artifact files that do not exist.
func (a *Artifacts) Missing() []string {
	var out []string
	for _, p := range []string{a.BestWeights, a.LastWeights, a.Results} {
		if _, err := os.Stat(p); err != nil {
			out = append(out, p)
		}
	}
	return out
}

// Driver invokes the framework command line.
type Driver struct {
	runner Runner
	// executable and prefix form the framework command, e.g. "yolo" or "python -m ultralytics".
	executable string
	prefix     []string
	log        *slog.Logger
}

// NewDriver creates a Driver.
//
// Arguments:
//   - runner: Starts the framework process; ExecRunner outside of tests.
//   - executable: The framework command, "yolo" when empty.
//   - prefix: Arguments placed before the framework mode, e.g. ["-m", "ultralytics"].
//
// Returns:
//   - *Driver: The driver.
func NewDriver(runner Runner, executable string, prefix ...string) *Driver {
	if executable == "" {
		executable = "yolo"
	}
	return &Driver{
		runner:     runner,
		executable: executable,
		prefix:     prefix,
		log:        logging.Module("trainer"),
	}
}

var (
	savedToPattern = regexp.MustCompile(`Results saved to (.+?)\s*$`)
	savedAsPattern = regexp.MustCompile(`saved as '([^']+)'`)
)

// Train runs the framework's training routine once and blocks until it exits.
//
// The descriptor is passed by file path, so the framework reads the same manifest that was
// validated. There is no retry: a failed run needs an operator decision.
//
// Arguments:
//   - ctx: Cancelling it interrupts the framework process.
//   - ds: The loaded descriptor.
//   - cfg: The run configuration.
//
// Returns:
//   - *Artifacts: Where the weights and metrics were written.
//   - error: A *common.ConfigError for an invalid configuration, or a
//     *common.DelegatedTrainingError for anything the framework reported.
func (d *Driver) Train(ctx context.Context, ds *dataset.Descriptor, cfg RunConfig) (*Artifacts, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := checkWeights("train", cfg.BaseWeights); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	log := d.log.With("run_id", runID)

	device, _ := ParseDevice(cfg.Device)
	if device.Kind == DeviceCPU {
		host := ProbeHost()
		log.Info("training on CPU",
			"cpu", host.Brand,
			"physical_cores", host.PhysicalCores,
			"logical_cores", host.LogicalCores,
			"avx2", host.AVX2,
			"avx512", host.AVX512,
			"available_memory_mb", host.AvailableMemory/(1<<20))
	}
	if ds.SharedSplit() {
		log.Warn("training and validating on the same images", "dir", ds.Train)
	}

	args := append([]string{"detect", "train", "data=" + ds.Source, "model=" + cfg.BaseWeights}, cfg.Args()...)

	log.Info("starting training",
		"executable", d.executable,
		"model", cfg.BaseWeights,
		"epochs", cfg.Epochs,
		"batch", cfg.BatchSize,
		"imgsz", cfg.ImageSize,
		"device", device.String(),
		"name", cfg.RunName)

	start := time.Now()
	saveDir, err := d.run(ctx, "train", args, savedToPattern, log)
	if err != nil {
		return nil, err
	}

	if saveDir == "" {
		saveDir = filepath.Join(cfg.Project, cfg.RunName)
	}
	a := &Artifacts{
		RunID:       runID,
		SaveDir:     saveDir,
		BestWeights: filepath.Join(saveDir, "weights", "best.pt"),
		LastWeights: filepath.Join(saveDir, "weights", "last.pt"),
		Results:     filepath.Join(saveDir, "results.csv"),
		Duration:    time.Since(start),
	}
	if missing := a.Missing(); len(missing) > 0 {
		log.Warn("training finished but artifacts are missing", "missing", missing)
	}
	log.Info("training complete", "save_dir", a.SaveDir, "duration", a.Duration.Round(time.Second))
	return a, nil
}

// ExportConfig controls a model export.
type ExportConfig struct {
	Format    string `mapstructure:"format"`
	ImageSize int    `mapstructure:"image_size"`
	// NMS embeds non-maximum suppression in the exported graph; inference relies on it.
	NMS      bool   `mapstructure:"nms"`
	Opset    int    `mapstructure:"opset"`
	Simplify bool   `mapstructure:"simplify"`
	Half     bool   `mapstructure:"half"`
	Device   string `mapstructure:"device"`
}

// DefaultExportConfig exports ONNX at the training resolution with NMS embedded.
func DefaultExportConfig() ExportConfig {
	return ExportConfig{Format: "onnx", ImageSize: 640, NMS: true, Simplify: true, Device: "cpu"}
}

// Export converts trained weights with the framework's exporter.
//
// Arguments:
//   - ctx: Cancelling it interrupts the framework process.
//   - weights: The trained checkpoint, usually Artifacts.BestWeights.
//   - cfg: The export options.
//
// Returns:
//   - string: The exported model path.
//   - error: A *common.ConfigError or *common.DelegatedTrainingError.
func (d *Driver) Export(ctx context.Context, weights string, cfg ExportConfig) (string, error) {
	if cfg.Format == "" {
		return "", &common.ConfigError{Field: "export.format", Err: errors.New("required")}
	}
	if cfg.ImageSize <= 0 {
		return "", &common.ConfigError{Field: "export.image_size", Err: errors.Errorf("must be positive, got %d", cfg.ImageSize)}
	}
	if err := checkWeights("export", weights); err != nil {
		return "", err
	}

	args := []string{
		"export",
		"model=" + weights,
		"format=" + cfg.Format,
		"imgsz=" + num(float64(cfg.ImageSize)),
		"nms=" + pyBool(cfg.NMS),
		"simplify=" + pyBool(cfg.Simplify),
		"half=" + pyBool(cfg.Half),
	}
	if cfg.Opset > 0 {
		args = append(args, "opset="+num(float64(cfg.Opset)))
	}
	if cfg.Device != "" {
		dev, err := ParseDevice(cfg.Device)
		if err != nil {
			return "", err
		}
		args = append(args, "device="+dev.String())
	}

	log := d.log.With("run_id", uuid.NewString())
	log.Info("starting export", "model", weights, "format", cfg.Format, "nms", cfg.NMS)

	out, err := d.run(ctx, "export", args, savedAsPattern, log)
	if err != nil {
		return "", err
	}
	if out == "" {
		out = strings.TrimSuffix(weights, filepath.Ext(weights)) + "." + cfg.Format
	}
	log.Info("export complete", "output", out)
	return out, nil
}

// run executes one framework command, logging its output and capturing the first group of
// the last line matching capture.
func (d *Driver) run(ctx context.Context, op string, args []string, capture *regexp.Regexp, log *slog.Logger) (string, error) {
	tail := newOutputTail(tailBytes)
	frameworkLog := log.With("source", d.executable)

	var captured string
	onLine := func(raw string) {
		line := strings.TrimSpace(stripANSI(raw))
		if line == "" {
			return
		}
		tail.Add(line)
		frameworkLog.Info(line)
		if m := capture.FindStringSubmatch(line); m != nil {
			captured = m[1]
		}
	}

	code, err := d.runner.Run(ctx, d.executable, append(append([]string(nil), d.prefix...), args...), onLine)
	if err == nil && code == 0 {
		return captured, nil
	}

	lines := tail.Lines()
	kind := classify(ctx, code, lines)
	if errors.Is(err, exec.ErrNotFound) {
		kind = common.FailureNotInstalled
	}
	derr := &common.DelegatedTrainingError{
		Op:       op,
		Kind:     kind,
		ExitCode: code,
		Output:   lines,
		Err:      err,
	}
	log.Error("framework failed", "op", op, "kind", kind, "exit_code", code)
	return "", derr
}

// checkWeights fails early for an explicit weights path that does not exist. Bare names
// such as "yolov8n.pt" are left to the framework, which downloads them.
func checkWeights(op, weights string) error {
	if !strings.ContainsRune(weights, '/') && !strings.ContainsRune(weights, filepath.Separator) {
		return nil
	}
	if _, err := os.Stat(weights); err != nil {
		return &common.DelegatedTrainingError{
			Op:       op,
			Kind:     common.FailureMissingWeights,
			ExitCode: -1,
			Err:      errors.Wrapf(err, "weights %s", weights),
		}
	}
	return nil
}
