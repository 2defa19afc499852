// Package head implements the trainable scoring head: a dense layer from an
// encoder vector to one logit per output, plus the mode-specific loss and
// the mapping from logits to a confidence value.
package head

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/crimson-sun/factcheck/internal/model"
	"github.com/crimson-sun/factcheck/internal/safetensors"
)

// Tensor names in model.safetensors.
const (
	weightTensor = "classifier.weight"
	biasTensor   = "classifier.bias"
)

// initStd is the standard deviation of the initial weights.
const initStd = 0.02

// Confidence values are kept strictly inside (0,1) even when the sigmoid or
// softmax saturates in float64.
const (
	minConfidence = 1e-12
	maxConfidence = 1 - 1e-12
)

// Head is a dense layer of numLabels outputs over dim inputs.
type Head struct {
	mode      model.Mode
	numLabels int
	dim       int
	weight    []float64 // row-major [numLabels, dim]
	bias      []float64
}

// New creates a head with N(0, 0.02) weights and zero bias drawn from seed.
func New(mode model.Mode, numLabels, dim int, seed uint64) (*Head, error) {
	if err := checkShape(mode, numLabels, dim); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewPCG(seed, seed^0xDA3E39CB94B95BDB))
	h := &Head{
		mode:      mode,
		numLabels: numLabels,
		dim:       dim,
		weight:    make([]float64, numLabels*dim),
		bias:      make([]float64, numLabels),
	}
	for i := range h.weight {
		h.weight[i] = rng.NormFloat64() * initStd
	}
	return h, nil
}

func checkShape(mode model.Mode, numLabels, dim int) error {
	switch mode {
	case model.Regression:
		if numLabels != 1 {
			return fmt.Errorf("head: regression needs exactly 1 output, got %d", numLabels)
		}
	case model.Classification:
		if numLabels < 2 {
			return fmt.Errorf("head: classification needs at least 2 outputs, got %d", numLabels)
		}
	default:
		return fmt.Errorf("head: unknown mode %q", mode)
	}
	if dim <= 0 {
		return fmt.Errorf("head: input dim must be positive, got %d", dim)
	}
	return nil
}

// Mode reports whether the head regresses or classifies.
func (h *Head) Mode() model.Mode { return h.mode }

// NumLabels returns the number of output logits.
func (h *Head) NumLabels() int { return h.numLabels }

// Dim returns the expected encoder vector length.
func (h *Head) Dim() int { return h.dim }

// Finite reports whether every weight and bias is a finite number.
func (h *Head) Finite() bool {
	for _, v := range h.weight {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	for _, v := range h.bias {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Weight returns the live weight matrix, row-major [NumLabels, Dim].
func (h *Head) Weight() []float64 { return h.weight }

// Bias returns the live bias vector.
func (h *Head) Bias() []float64 { return h.bias }

// Clone returns a deep copy.
func (h *Head) Clone() *Head {
	c := *h
	c.weight = append([]float64(nil), h.weight...)
	c.bias = append([]float64(nil), h.bias...)
	return &c
}

// Forward computes the raw logits for one encoder vector.
func (h *Head) Forward(vec []float32) []float64 {
	logits := make([]float64, h.numLabels)
	for k := range logits {
		row := h.weight[k*h.dim : (k+1)*h.dim]
		sum := h.bias[k]
		for d, w := range row {
			sum += w * float64(vec[d])
		}
		logits[k] = sum
	}
	return logits
}

// Predict maps one encoder vector to a prediction.
func (h *Head) Predict(vec []float32) model.Prediction {
	logits := h.Forward(vec)
	conf, label := Confidence(h.mode, logits)
	return model.Prediction{Confidence: conf, Label: label, Logits: logits}
}

// Confidence maps raw logits to a value in (0,1): the sigmoid of the single
// logit in regression mode (label -1), or the largest softmax probability and
// its class in classification mode.
func Confidence(mode model.Mode, logits []float64) (float64, int) {
	if mode == model.Regression {
		return clamp(sigmoid(logits[0])), -1
	}
	probs := softmax(logits)
	best := 0
	for k, p := range probs {
		if p > probs[best] {
			best = k
		}
	}
	return clamp(probs[best]), best
}

// Loss returns the per-example loss and its gradient with respect to the
// logits. Regression uses squared error on the raw logit; classification
// uses softmax cross-entropy.
func (h *Head) Loss(logits []float64, label float64) (float64, []float64) {
	grad := make([]float64, len(logits))
	if h.mode == model.Regression {
		diff := logits[0] - label
		grad[0] = 2 * diff
		return diff * diff, grad
	}

	probs := softmax(logits)
	target := int(label)
	for k, p := range probs {
		grad[k] = p
	}
	grad[target] -= 1
	return -math.Log(math.Max(probs[target], math.SmallestNonzeroFloat64)), grad
}

// Backward accumulates the parameter gradients of one example into gw and gb
// given the loss gradient with respect to its logits.
func (h *Head) Backward(vec []float32, dLogits, gw, gb []float64) {
	for k, g := range dLogits {
		if g == 0 {
			continue
		}
		gb[k] += g
		row := gw[k*h.dim : (k+1)*h.dim]
		for d := range row {
			row[d] += g * float64(vec[d])
		}
	}
}

// CheckLabel reports whether label is a valid target for the head's mode.
func (h *Head) CheckLabel(label float64) error {
	if math.IsNaN(label) {
		return fmt.Errorf("label is NaN")
	}
	if h.mode == model.Regression {
		if label < 0 || label > 1 {
			return fmt.Errorf("regression label %v outside [0,1]", label)
		}
		return nil
	}
	if label != math.Trunc(label) || label < 0 || int(label) >= h.numLabels {
		return fmt.Errorf("class label %v not an integer in [0,%d)", label, h.numLabels)
	}
	return nil
}

// Save writes the head to a safetensors file in float64.
func (h *Head) Save(path string) error {
	f := &safetensors.File{
		Tensors: map[string]safetensors.Tensor{
			weightTensor: safetensors.FromFloat64s([]int{h.numLabels, h.dim}, h.weight),
			biasTensor:   safetensors.FromFloat64s([]int{h.numLabels}, h.bias),
		},
		Metadata: map[string]string{"mode": string(h.mode)},
	}
	if err := safetensors.Write(path, f); err != nil {
		return fmt.Errorf("head: %w", err)
	}
	return nil
}

// Load reads a head previously written by Save.
func Load(path string) (*Head, error) {
	f, err := safetensors.Read(path)
	if err != nil {
		return nil, fmt.Errorf("head: %w", err)
	}

	mode, err := model.ParseMode(f.Metadata["mode"])
	if err != nil {
		return nil, fmt.Errorf("head: %w", err)
	}

	wt, ok := f.Tensors[weightTensor]
	if !ok || len(wt.Shape) != 2 {
		return nil, fmt.Errorf("head: missing 2D tensor %q", weightTensor)
	}
	bt, ok := f.Tensors[biasTensor]
	if !ok || len(bt.Shape) != 1 || bt.Shape[0] != wt.Shape[0] {
		return nil, fmt.Errorf("head: tensor %q missing or mismatched", biasTensor)
	}
	if err := checkShape(mode, wt.Shape[0], wt.Shape[1]); err != nil {
		return nil, err
	}

	weight, err := wt.Float64s()
	if err != nil {
		return nil, fmt.Errorf("head: %w", err)
	}
	bias, err := bt.Float64s()
	if err != nil {
		return nil, fmt.Errorf("head: %w", err)
	}
	return &Head{
		mode:      mode,
		numLabels: wt.Shape[0],
		dim:       wt.Shape[1],
		weight:    weight,
		bias:      bias,
	}, nil
}

func sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}

func softmax(logits []float64) []float64 {
	peak := logits[0]
	for _, z := range logits[1:] {
		peak = math.Max(peak, z)
	}
	out := make([]float64, len(logits))
	var sum float64
	for k, z := range logits {
		out[k] = math.Exp(z - peak)
		sum += out[k]
	}
	for k := range out {
		out[k] /= sum
	}
	return out
}

func clamp(p float64) float64 {
	return math.Min(math.Max(p, minConfidence), maxConfidence)
}
