// Package inference runs a detection model exported to ONNX with non-maximum suppression
// embedded, so the graph already emits final boxes.
package inference

import (
	"os"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// Tensor names of a framework ONNX export.
const (
	inputName  = "images"
	outputName = "output0"
	// rowWidth is x1, y1, x2, y2, score, class.
	rowWidth = 6
)

var envMu sync.Mutex

// initEnvironment loads the native library once per process.
func initEnvironment(libPath string) error {
	envMu.Lock()
	defer envMu.Unlock()
	if ort.IsInitialized() {
		return nil
	}
	if _, err := os.Stat(libPath); err != nil {
		return errors.Wrapf(err, "onnxruntime library not found at %s", libPath)
	}
	ort.SetSharedLibraryPath(libPath)
	if err := ort.InitializeEnvironment(); err != nil {
		return errors.Wrap(err, "initializing onnxruntime")
	}
	return nil
}

// Session represents a model session from the onnxruntime with its bound tensors.
type Session struct {
	Session *ort.AdvancedSession
	Input   *ort.Tensor[float32]
	Output  *ort.Tensor[float32]
}

// sessionArgs describes the session to create.
type sessionArgs struct {
	modelPath string
	imageSize int
	maxRows   int
	threads   int
	provider  Provider
}

// newSession creates a session with preallocated input [1,3,S,S] and output [1,N,6]
// tensors.
func newSession(args sessionArgs) (*Session, error) {
	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, int64(args.imageSize), int64(args.imageSize)))
	if err != nil {
		return nil, errors.Wrap(err, "creating input tensor")
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(args.maxRows), rowWidth))
	if err != nil {
		input.Destroy()
		return nil, errors.Wrap(err, "creating output tensor")
	}

	s := &Session{Input: input, Output: output}

	options, err := ort.NewSessionOptions()
	if err != nil {
		s.Close()
		return nil, errors.Wrap(err, "creating session options")
	}
	defer options.Destroy()

	if args.threads > 0 {
		if err := options.SetIntraOpNumThreads(args.threads); err != nil {
			s.Close()
			return nil, errors.Wrap(err, "setting thread count")
		}
	}
	if err := options.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableExtended); err != nil {
		s.Close()
		return nil, errors.Wrap(err, "setting optimization level")
	}
	if err := args.provider.apply(options); err != nil {
		s.Close()
		return nil, err
	}

	session, err := ort.NewAdvancedSession(
		args.modelPath,
		[]string{inputName},
		[]string{outputName},
		[]ort.ArbitraryTensor{input},
		[]ort.ArbitraryTensor{output},
		options,
	)
	if err != nil {
		s.Close()
		return nil, errors.Wrapf(err, "loading model %s", args.modelPath)
	}
	s.Session = session
	return s, nil
}

// Close releases the resources associated with the Session.
func (s *Session) Close() error {
	if s.Input != nil {
		s.Input.Destroy()
		s.Input = nil
	}
	if s.Output != nil {
		s.Output.Destroy()
		s.Output = nil
	}
	if s.Session != nil {
		err := s.Session.Destroy()
		s.Session = nil
		if err != nil {
			return errors.Wrap(err, "destroying session")
		}
	}
	return nil
}
