package encoder

import (
	"fmt"
	"path/filepath"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ortEnv manages global ONNX Runtime initialization (process-wide singleton).
var ortEnv struct {
	once sync.Once
	err  error
}

// initORT initializes the ONNX Runtime environment. Only the first call has
// any effect.
func initORT(libPath string) error {
	ortEnv.once.Do(func() {
		ort.SetSharedLibraryPath(libPath)
		ortEnv.err = ort.InitializeEnvironment()
	})
	return ortEnv.err
}

// onnxSession wraps a DynamicAdvancedSession for BERT-style models.
type onnxSession struct {
	session    *ort.DynamicAdvancedSession
	inputNames []string
	outputName string
	embedDim   int64
}

// newONNXSession loads the ONNX model and creates an inference session. An
// empty libPath means libonnxruntime.so next to the model file.
func newONNXSession(modelPath, libPath string) (*onnxSession, error) {
	if libPath == "" {
		libPath = filepath.Join(filepath.Dir(modelPath), "libonnxruntime.so")
	}
	if err := initORT(libPath); err != nil {
		return nil, fmt.Errorf("onnx: failed to initialize runtime: %w", err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to read model info: %w", err)
	}

	inputNames, err := validateInputs(inputs)
	if err != nil {
		return nil, err
	}

	// Expect a single hidden-state tensor with shape [batch, seq, dim].
	if len(outputs) == 0 {
		return nil, fmt.Errorf("onnx: model has no outputs")
	}
	outputName := outputs[0].Name
	dims := outputs[0].Dimensions
	if len(dims) != 3 {
		return nil, fmt.Errorf("onnx: expected 3D output tensor, got %v", dims)
	}
	embedDim := dims[2]
	if embedDim <= 0 {
		return nil, fmt.Errorf("onnx: output hidden size must be static, got %d", embedDim)
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create session options: %w", err)
	}
	defer opts.Destroy()
	opts.SetIntraOpNumThreads(4)
	opts.SetInterOpNumThreads(1)

	session, err := ort.NewDynamicAdvancedSession(
		modelPath,
		inputNames,
		[]string{outputName},
		opts,
	)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create session: %w", err)
	}

	return &onnxSession{
		session:    session,
		inputNames: inputNames,
		outputName: outputName,
		embedDim:   embedDim,
	}, nil
}

// validateInputs checks that the model has the expected BERT-style inputs
// and returns them in the correct order.
func validateInputs(inputs []ort.InputOutputInfo) ([]string, error) {
	nameSet := make(map[string]bool, len(inputs))
	for _, inp := range inputs {
		nameSet[inp.Name] = true
	}
	required := []string{"input_ids", "attention_mask", "token_type_ids"}
	for _, name := range required {
		if !nameSet[name] {
			return nil, fmt.Errorf("onnx: model missing required input %q", name)
		}
	}
	return required, nil
}

// infer runs a single inference call over flat [batchSize * seqLen] inputs
// and returns the flat [batchSize * seqLen * embedDim] hidden states.
func (s *onnxSession) infer(b batch) ([]float32, error) {
	shape := ort.NewShape(b.batchSize, b.seqLen)

	tIDs, err := ort.NewTensor(shape, b.inputIDs)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create input_ids tensor: %w", err)
	}
	defer tIDs.Destroy()

	tMask, err := ort.NewTensor(shape, b.attentionMask)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create attention_mask tensor: %w", err)
	}
	defer tMask.Destroy()

	tTypes, err := ort.NewTensor(shape, b.tokenTypeIDs)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create token_type_ids tensor: %w", err)
	}
	defer tTypes.Destroy()

	tOut, err := ort.NewEmptyTensor[float32](ort.NewShape(b.batchSize, b.seqLen, s.embedDim))
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create output tensor: %w", err)
	}
	defer tOut.Destroy()

	if err := s.session.Run([]ort.Value{tIDs, tMask, tTypes}, []ort.Value{tOut}); err != nil {
		return nil, fmt.Errorf("onnx: inference failed: %w", err)
	}

	// Copy data out before tensor is destroyed.
	src := tOut.GetData()
	result := make([]float32, len(src))
	copy(result, src)
	return result, nil
}

func (s *onnxSession) close() error {
	return s.session.Destroy()
}

// ONNXEncoder runs a BERT-style transformer through ONNX Runtime, mean-pools
// its hidden states and optionally applies a dense projection.
type ONNXEncoder struct {
	session *onnxSession
	tok     *Tokenizer
	proj    *projection
}

// NewONNX loads the model at modelPath. projectionPath may be empty.
func NewONNX(tok *Tokenizer, modelPath, projectionPath, libPath string) (*ONNXEncoder, error) {
	if modelPath == "" {
		return nil, fmt.Errorf("encoder: onnx backend requires a model path")
	}
	sess, err := newONNXSession(modelPath, libPath)
	if err != nil {
		return nil, fmt.Errorf("encoder: %w", err)
	}

	e := &ONNXEncoder{session: sess, tok: tok}
	if projectionPath == "" {
		return e, nil
	}

	proj, err := loadProjection(projectionPath)
	if err != nil {
		sess.close()
		return nil, fmt.Errorf("encoder: %w", err)
	}
	if int(sess.embedDim) != proj.inDim {
		sess.close()
		return nil, fmt.Errorf("encoder: ONNX output dim %d != projection input dim %d",
			sess.embedDim, proj.inDim)
	}
	e.proj = proj
	return e, nil
}

// Dim returns the final embedding dimensionality (after projection).
func (e *ONNXEncoder) Dim() int {
	if e.proj != nil {
		return e.proj.outDim
	}
	return int(e.session.embedDim)
}

// Encode produces a single embedding vector for text.
func (e *ONNXEncoder) Encode(text string) ([]float32, error) {
	vecs, err := e.EncodeBatch([]string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EncodeBatch produces embedding vectors for multiple texts, padding the
// batch only to its longest sequence.
func (e *ONNXEncoder) EncodeBatch(texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	b, err := e.tok.tokenizeBatch(texts)
	if err != nil {
		return nil, err
	}

	hidden, err := e.session.infer(b)
	if err != nil {
		return nil, fmt.Errorf("encoder: %w", err)
	}

	dim := e.session.embedDim
	pooled := meanPool(hidden, b.attentionMask, b.batchSize, b.seqLen, dim)

	results := make([][]float32, b.batchSize)
	for i := int64(0); i < b.batchSize; i++ {
		vec := pooled[i*dim : (i+1)*dim]
		if e.proj != nil {
			vec = e.proj.apply(vec)
		}
		results[i] = normalize(vec)
	}
	return results, nil
}

// Close releases ONNX Runtime resources.
func (e *ONNXEncoder) Close() error {
	if e.session != nil {
		return e.session.close()
	}
	return nil
}
