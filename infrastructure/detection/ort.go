package detection

import (
	"errors"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

const (
	inputName  = "images"
	outputName = "output0"
	namesKey   = "names"
)

// session runs one forward pass over a CHW input tensor.
type session interface {
	Run(input []float32) (data []float32, shape []int64, err error)
	Close() error
}

// loader opens a model and its class names.
type loader func(modelPath string, inputSize int) (session, []string, error)

var (
	envMu   sync.Mutex
	envInit bool
)

// initEnvironment initializes the process-wide ONNX Runtime environment
// once. library may be empty to use the default search path.
func initEnvironment(library string) error {
	envMu.Lock()
	defer envMu.Unlock()

	if envInit || ort.IsInitialized() {
		envInit = true
		return nil
	}
	if library != "" {
		ort.SetSharedLibraryPath(library)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("initialize onnxruntime: %w", err)
	}
	envInit = true
	return nil
}

// ortSession binds fixed input and output tensors to an AdvancedSession.
type ortSession struct {
	mu     sync.Mutex
	sess   *ort.AdvancedSession
	input  *ort.Tensor[float32]
	output *ort.Tensor[float32]
	shape  []int64
}

func openORT(library string) loader {
	return func(modelPath string, inputSize int) (session, []string, error) {
		if err := initEnvironment(library); err != nil {
			return nil, nil, err
		}

		_, outputs, err := ort.GetInputOutputInfo(modelPath)
		if err != nil {
			return nil, nil, fmt.Errorf("inspect model: %w", err)
		}
		var outShape ort.Shape
		for _, o := range outputs {
			if o.Name == outputName {
				outShape = o.Dimensions
			}
		}
		if len(outShape) != 3 {
			return nil, nil, fmt.Errorf("model has no 3-d %q output", outputName)
		}
		outShape[0] = 1

		input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, int64(inputSize), int64(inputSize)))
		if err != nil {
			return nil, nil, fmt.Errorf("allocate input: %w", err)
		}
		output, err := ort.NewEmptyTensor[float32](outShape)
		if err != nil {
			_ = input.Destroy()
			return nil, nil, fmt.Errorf("allocate output: %w", err)
		}
		sess, err := ort.NewAdvancedSession(modelPath,
			[]string{inputName}, []string{outputName},
			[]ort.Value{input}, []ort.Value{output}, nil)
		if err != nil {
			_ = input.Destroy()
			_ = output.Destroy()
			return nil, nil, fmt.Errorf("create session: %w", err)
		}

		names, err := metadataNames(modelPath)
		if err != nil {
			names = nil
		}

		return &ortSession{
			sess:   sess,
			input:  input,
			output: output,
			shape:  []int64(outShape),
		}, names, nil
	}
}

// Run copies input into the bound tensor and executes the model.
func (s *ortSession) Run(input []float32) ([]float32, []int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dst := s.input.GetData()
	if len(input) != len(dst) {
		return nil, nil, fmt.Errorf("input has %d values, want %d", len(input), len(dst))
	}
	copy(dst, input)
	if err := s.sess.Run(); err != nil {
		return nil, nil, err
	}
	out := append([]float32(nil), s.output.GetData()...)
	return out, append([]int64(nil), s.shape...), nil
}

// Close releases the session and its tensors.
func (s *ortSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return errors.Join(s.sess.Destroy(), s.input.Destroy(), s.output.Destroy())
}

// metadataNames reads class names embedded in the model's custom metadata.
func metadataNames(modelPath string) ([]string, error) {
	meta, err := ort.GetModelMetadata(modelPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = meta.Destroy() }()

	value, ok, err := meta.LookupCustomMetadataMap(namesKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoClasses
	}
	return ParseNames(value)
}
