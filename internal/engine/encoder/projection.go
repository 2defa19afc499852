package encoder

import (
	"fmt"

	"github.com/crimson-sun/factcheck/internal/safetensors"
)

// projection holds a dense linear layer (no bias, identity activation) that
// maps pooled vectors from inDim to outDim.
type projection struct {
	weights []float32 // row-major [outDim, inDim]
	inDim   int
	outDim  int
}

// loadProjection reads a safetensors file containing a "linear.weight"
// tensor of dtype F32.
func loadProjection(path string) (*projection, error) {
	f, err := safetensors.Read(path)
	if err != nil {
		return nil, fmt.Errorf("projection: %w", err)
	}

	t, ok := f.Tensors["linear.weight"]
	if !ok {
		return nil, fmt.Errorf("projection: tensor 'linear.weight' not found in header")
	}
	if len(t.Shape) != 2 {
		return nil, fmt.Errorf("projection: expected 2D tensor, got shape %v", t.Shape)
	}
	weights, err := t.Float32s()
	if err != nil {
		return nil, fmt.Errorf("projection: %w", err)
	}

	return &projection{
		weights: weights,
		inDim:   t.Shape[1],
		outDim:  t.Shape[0],
	}, nil
}

// apply projects a single vector from inDim to outDim.
func (p *projection) apply(vec []float32) []float32 {
	out := make([]float32, p.outDim)
	for i := 0; i < p.outDim; i++ {
		row := p.weights[i*p.inDim : (i+1)*p.inDim]
		var sum float32
		for j, w := range row {
			sum += w * vec[j]
		}
		out[i] = sum
	}
	return out
}
