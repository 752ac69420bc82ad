package inference

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/debris/common"
	"github.com/nvr-ai/debris/logging"
)

var names = []string{"space_debris", "statelites", "asteroids"}

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestLetterboxWideImage(t *testing.T) {
	const size = 64
	dst := make([]float32, 3*size*size)

	lb, err := Letterbox(solid(200, 100, color.RGBA{R: 255, A: 255}), size, dst)
	require.NoError(t, err)

	assert.InDelta(t, 0.32, lb.Scale, 1e-6)
	assert.Equal(t, 0, lb.PadX)
	assert.Equal(t, 16, lb.PadY)
	assert.Equal(t, 200, lb.Width)
	assert.Equal(t, 100, lb.Height)

	at := func(ch, x, y int) float32 { return dst[ch*size*size+y*size+x] }

	// Padding rows above and below the image.
	assert.InDelta(t, padValue, at(0, 10, 5), 1e-6)
	assert.InDelta(t, padValue, at(2, 10, size-1), 1e-6)
	// Image content.
	assert.InDelta(t, 1.0, at(0, 32, 32), 1e-6)
	assert.InDelta(t, 0.0, at(1, 32, 32), 1e-6)
	assert.InDelta(t, 0.0, at(2, 32, 32), 1e-6)
}

func TestLetterboxNonRGBASource(t *testing.T) {
	const size = 32
	img := image.NewGray(image.Rect(0, 0, 16, 32))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	dst := make([]float32, 3*size*size)

	lb, err := Letterbox(img, size, dst)
	require.NoError(t, err)
	assert.Equal(t, 8, lb.PadX)
	assert.InDelta(t, 1.0, dst[16*size+16], 1e-6)
	assert.InDelta(t, padValue, dst[16*size+2], 1e-6)
}

func TestLetterboxErrors(t *testing.T) {
	_, err := Letterbox(image.NewRGBA(image.Rect(0, 0, 0, 0)), 32, make([]float32, 3*32*32))
	assert.Error(t, err)
	_, err = Letterbox(solid(4, 4, color.RGBA{A: 255}), 32, make([]float32, 10))
	assert.Error(t, err)
}

func TestDecode(t *testing.T) {
	lb := LetterboxResult{Scale: 0.5, PadX: 0, PadY: 80, Width: 1280, Height: 960}
	output := []float32{
		100, 130, 200, 230, 0.90, 1,
		0, 0, 10, 10, 0.10, 0,
		600, 500, 700, 700, 0.50, 2,
		0, 0, 0, 0, 0, 0,
	}

	dets := Decode(output, 4, lb, 0.25, names)
	require.Len(t, dets, 2)

	assert.Equal(t, "statelites", dets[0].Label)
	assert.Equal(t, 1, dets[0].ClassID)
	assert.InDelta(t, 0.9, dets[0].Confidence, 1e-6)
	assert.InDelta(t, 200, dets[0].X1, 1e-3)
	assert.InDelta(t, 100, dets[0].Y1, 1e-3)
	assert.InDelta(t, 400, dets[0].X2, 1e-3)
	assert.InDelta(t, 300, dets[0].Y2, 1e-3)

	// Clamped to the original image.
	assert.InDelta(t, 1200, dets[1].X1, 1e-3)
	assert.InDelta(t, 1280, dets[1].X2, 1e-3)
	assert.InDelta(t, 960, dets[1].Y2, 1e-3)
}

func TestDecodeZeroConfidenceSkipsPadding(t *testing.T) {
	output := []float32{0, 0, 0, 0, 0, 0, 1, 1, 2, 2, 0.01, 7}
	dets := Decode(output, 2, LetterboxResult{Scale: 1, Width: 10, Height: 10}, 0, names)
	require.Len(t, dets, 1)
	assert.Equal(t, "class_7", dets[0].Label)
}

func TestDecodeShortOutput(t *testing.T) {
	assert.Nil(t, Decode(make([]float32, 5), 1, LetterboxResult{Scale: 1}, 0.25, names))
}

func TestParseProvider(t *testing.T) {
	tests := []struct {
		in      string
		backend ProviderBackend
		id      int
		wantErr bool
	}{
		{"", CPUProviderBackend, 0, false},
		{"cpu", CPUProviderBackend, 0, false},
		{"CoreML", CoreMLProviderBackend, 0, false},
		{"openvino", OpenVINOProviderBackend, 0, false},
		{"cuda", CUDAProviderBackend, 0, false},
		{"cuda:1", CUDAProviderBackend, 1, false},
		{"2", CUDAProviderBackend, 2, false},
		{"tpu", "", 0, true},
		{"cuda:-1", "", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			p, err := ParseProvider(tt.in)
			if tt.wantErr {
				var cfgErr *common.ConfigError
				assert.True(t, errors.As(err, &cfgErr))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.backend, p.Backend)
			assert.Equal(t, tt.id, p.DeviceID)
		})
	}
}

func TestEngineBuilderValidation(t *testing.T) {
	_, err := NewEngineBuilder().WithProvider("tpu").WithModel("m.onnx", 0, 0).Build()
	assert.Error(t, err)

	_, err = NewEngineBuilder().WithModel("", 640, 300).Build()
	var cfgErr *common.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "inference.model", cfgErr.Field)

	_, err = NewEngineBuilder().WithModel("m.onnx", 640, 300).WithThresholds(1.5, names).Build()
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "inference.confidence", cfgErr.Field)
}

func TestBuildMissingLibrary(t *testing.T) {
	_, err := NewEngineBuilder().
		WithLibrary(t.TempDir() + "/libonnxruntime.so").
		WithModel("m.onnx", 640, 300).
		Build()
	assert.Error(t, err)
}

// fakeDetector returns a detector whose model run writes canned rows.
func fakeDetector(t *testing.T, rows []float32, metrics *Metrics) *Detector {
	t.Helper()
	const size = 32
	d := &Detector{
		cfg: Config{
			ImageSize:     size,
			Confidence:    0.25,
			MaxDetections: len(rows) / rowWidth,
			Names:         names,
			Metrics:       metrics,
		},
		provider: Provider{Backend: CPUProviderBackend},
		log:      logging.Module("inference"),
		input:    make([]float32, 3*size*size),
		output:   make([]float32, len(rows)),
	}
	d.run = func() error {
		copy(d.output, rows)
		return nil
	}
	return d
}

func TestDetectorPredict(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	d := fakeDetector(t, []float32{8, 8, 16, 16, 0.8, 0}, m)
	dets, err := d.Predict(context.Background(), solid(64, 64, color.RGBA{G: 255, A: 255}))
	require.NoError(t, err)

	require.Len(t, dets, 1)
	assert.Equal(t, "space_debris", dets[0].Label)
	assert.InDelta(t, 16, dets[0].X1, 1e-3)
	assert.InDelta(t, 32, dets[0].X2, 1e-3)

	assert.InDelta(t, 1, testutil.ToFloat64(m.predictions.WithLabelValues("cpu", "ok")), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(m.detections.WithLabelValues("space_debris")), 1e-9)

	_, err = NewMetrics(reg)
	assert.Error(t, err, "metrics register once per registry")
}

func TestDetectorPredictCancelledAndClosed(t *testing.T) {
	d := fakeDetector(t, make([]float32, rowWidth), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := d.Predict(ctx, solid(8, 8, color.RGBA{A: 255}))
	assert.ErrorIs(t, err, context.Canceled)

	require.NoError(t, d.Close())
	_, err = d.Predict(context.Background(), solid(8, 8, color.RGBA{A: 255}))
	assert.Error(t, err)
}
