package ml

import (
	"context"
	"errors"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/tush8979/Adaptive-Intrusion-Detection-System/internal/config"
)

// ONNXConfig holds configuration for the ONNX Runtime backend
type ONNXConfig struct {
	// SharedLibraryPath is the path to the ONNX Runtime shared library
	SharedLibraryPath string
	// InputName is the name of the float input tensor
	InputName string
	// OutputName is either an int64 label tensor or a float class-probability tensor
	OutputName string
	// NumThreads sets the number of intra-op threads for inference
	NumThreads int
}

// DefaultONNXConfig returns a configuration matching models exported from
// scikit-learn with zipmap disabled.
func DefaultONNXConfig() *ONNXConfig {
	return &ONNXConfig{
		SharedLibraryPath: config.DefaultPathConfig().ONNXLibraryPath,
		InputName:         "float_input",
		OutputName:        "probabilities",
		NumThreads:        1,
	}
}

var (
	envMu   sync.Mutex
	envRefs int
)

// acquireEnvironment initializes the process-wide runtime on first use.
func acquireEnvironment(libPath string) error {
	envMu.Lock()
	defer envMu.Unlock()

	if envRefs == 0 && !ort.IsInitialized() {
		ort.SetSharedLibraryPath(libPath)
		if err := ort.InitializeEnvironment(); err != nil {
			return fmt.Errorf("failed to initialize ONNX environment: %w", err)
		}
	}
	envRefs++
	return nil
}

func releaseEnvironment() {
	envMu.Lock()
	defer envMu.Unlock()

	envRefs--
	if envRefs == 0 {
		ort.DestroyEnvironment()
	}
}

// ONNXModel runs a binary classifier through ONNX Runtime.
type ONNXModel struct {
	config *ONNXConfig
	mu     sync.Mutex

	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	// Exactly one of these is set, depending on the output tensor type.
	labelOut *ort.Tensor[int64]
	probaOut *ort.Tensor[float32]

	nFeatures int
	closed    bool
}

// NewONNXModel loads modelPath and prepares a session with a single-row input.
func NewONNXModel(modelPath string, cfg *ONNXConfig) (*ONNXModel, error) {
	if cfg == nil {
		cfg = DefaultONNXConfig()
	}

	if err := acquireEnvironment(cfg.SharedLibraryPath); err != nil {
		return nil, err
	}

	m, err := newONNXModel(modelPath, cfg)
	if err != nil {
		releaseEnvironment()
		return nil, err
	}
	return m, nil
}

func newONNXModel(modelPath string, cfg *ONNXConfig) (*ONNXModel, error) {
	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect model: %w", err)
	}

	in, ok := findInfo(inputs, cfg.InputName)
	if !ok {
		return nil, fmt.Errorf("model has no input %q", cfg.InputName)
	}
	out, ok := findInfo(outputs, cfg.OutputName)
	if !ok {
		return nil, fmt.Errorf("model has no output %q", cfg.OutputName)
	}

	// The feature axis is the last one; a dynamic size cannot be checked
	// here and is assumed to match the extractor.
	nFeatures := NumFeatures
	if dims := in.Dimensions; len(dims) > 0 && dims[len(dims)-1] > 0 {
		nFeatures = int(dims[len(dims)-1])
	}

	m := &ONNXModel{config: cfg, nFeatures: nFeatures}

	m.input, err = ort.NewEmptyTensor[float32](ort.NewShape(1, int64(nFeatures)))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	var output ort.Value
	if out.DataType == ort.TensorElementDataTypeInt64 {
		m.labelOut, err = ort.NewEmptyTensor[int64](ort.NewShape(1))
		output = m.labelOut
	} else {
		m.probaOut, err = ort.NewEmptyTensor[float32](ort.NewShape(1, 2))
		output = m.probaOut
	}
	if err != nil {
		m.destroyTensors()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		m.destroyTensors()
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer options.Destroy()

	if cfg.NumThreads > 0 {
		if err := options.SetIntraOpNumThreads(cfg.NumThreads); err != nil {
			m.destroyTensors()
			return nil, fmt.Errorf("failed to set intra-op threads: %w", err)
		}
	}

	m.session, err = ort.NewAdvancedSession(
		modelPath,
		[]string{cfg.InputName},
		[]string{cfg.OutputName},
		[]ort.Value{m.input},
		[]ort.Value{output},
		options,
	)
	if err != nil {
		m.destroyTensors()
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return m, nil
}

func findInfo(infos []ort.InputOutputInfo, name string) (ort.InputOutputInfo, bool) {
	for _, info := range infos {
		if info.Name == name {
			return info, true
		}
	}
	return ort.InputOutputInfo{}, false
}

// Predict implements Model.
func (m *ONNXModel) Predict(ctx context.Context, x []float64) (Label, error) {
	if err := ctx.Err(); err != nil {
		return LabelNormal, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return LabelNormal, errors.New("onnx model closed")
	}

	data := m.input.GetData()
	for i := range data {
		data[i] = float32(x[i])
	}

	if err := m.session.Run(); err != nil {
		return LabelNormal, fmt.Errorf("inference failed: %w", err)
	}

	if m.labelOut != nil {
		if m.labelOut.GetData()[0] == 1 {
			return LabelMalicious, nil
		}
		return LabelNormal, nil
	}

	p := m.probaOut.GetData()
	return argmax([2]float64{float64(p[0]), float64(p[1])}), nil
}

// NumFeatures implements Model.
func (m *ONNXModel) NumFeatures() int { return m.nFeatures }

// Kind implements Model.
func (m *ONNXModel) Kind() string { return "onnx" }

// Close releases the session and tensors.
func (m *ONNXModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	m.session.Destroy()
	m.destroyTensors()
	releaseEnvironment()
	return nil
}

func (m *ONNXModel) destroyTensors() {
	if m.input != nil {
		m.input.Destroy()
	}
	if m.labelOut != nil {
		m.labelOut.Destroy()
	}
	if m.probaOut != nil {
		m.probaOut.Destroy()
	}
}
