package inference

import (
	"runtime"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/nvr-ai/debris/common"
)

// ProviderBackend represents an ONNX Runtime execution provider.
type ProviderBackend string

const (
	// CPUProviderBackend runs on the default CPU provider.
	CPUProviderBackend ProviderBackend = "cpu"
	// CUDAProviderBackend uses NVIDIA CUDA.
	CUDAProviderBackend ProviderBackend = "cuda"
	// CoreMLProviderBackend uses Apple CoreML for macOS acceleration.
	CoreMLProviderBackend ProviderBackend = "coreml"
	// OpenVINOProviderBackend uses Intel OpenVINO.
	OpenVINOProviderBackend ProviderBackend = "openvino"
)

// Provider is a parsed execution provider selection.
type Provider struct {
	Backend  ProviderBackend
	DeviceID int
}

// ParseProvider maps a device specifier to an execution provider: "cpu", "coreml",
// "openvino", "cuda", "cuda:N" or a bare CUDA index "N".
//
// Arguments:
//   - device: The device specifier.
//
// Returns:
//   - Provider: The selected provider.
//   - error: A *common.ConfigError for anything else.
func ParseProvider(device string) (Provider, error) {
	d := strings.ToLower(strings.TrimSpace(device))
	switch d {
	case "", "cpu":
		return Provider{Backend: CPUProviderBackend}, nil
	case "coreml", "mps":
		return Provider{Backend: CoreMLProviderBackend}, nil
	case "openvino":
		return Provider{Backend: OpenVINOProviderBackend}, nil
	case "cuda":
		return Provider{Backend: CUDAProviderBackend}, nil
	}

	id, err := strconv.Atoi(strings.TrimPrefix(d, "cuda:"))
	if err != nil || id < 0 {
		return Provider{}, &common.ConfigError{
			Field: "inference.device",
			Err:   errors.Errorf("unsupported inference device %q", device),
		}
	}
	return Provider{Backend: CUDAProviderBackend, DeviceID: id}, nil
}

// apply appends the execution provider to the session options. The CPU provider is always
// present and needs nothing.
func (p Provider) apply(options *ort.SessionOptions) error {
	switch p.Backend {
	case CoreMLProviderBackend:
		if err := options.AppendExecutionProviderCoreML(0); err != nil {
			return errors.Wrap(err, "enabling CoreML")
		}
	case OpenVINOProviderBackend:
		if err := options.AppendExecutionProviderOpenVINO(map[string]string{"device_type": "CPU"}); err != nil {
			return errors.Wrap(err, "enabling OpenVINO")
		}
	case CUDAProviderBackend:
		cuda, err := ort.NewCUDAProviderOptions()
		if err != nil {
			return errors.Wrap(err, "creating CUDA options")
		}
		defer cuda.Destroy()
		if err := cuda.Update(map[string]string{"device_id": strconv.Itoa(p.DeviceID)}); err != nil {
			return errors.Wrap(err, "configuring CUDA")
		}
		if err := options.AppendExecutionProviderCUDA(cuda); err != nil {
			return errors.Wrap(err, "enabling CUDA")
		}
	}
	return nil
}

// GetSharedLibPath returns the default path to the onnxruntime shared library for the
// current platform.
func GetSharedLibPath() string {
	switch runtime.GOOS {
	case "windows":
		return "third_party/onnxruntime.dll"
	case "darwin":
		return "third_party/libonnxruntime.dylib"
	default:
		if runtime.GOARCH == "arm64" {
			return "third_party/onnxruntime_arm64.so"
		}
		return "third_party/onnxruntime.so"
	}
}
