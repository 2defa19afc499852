package encoder

import "fmt"

// HashedEncoder embeds each token id as a fixed pseudo-random vector derived
// from (seed, id), mean-pools over the attention mask and normalises. It
// needs no external weights, so a model directory reproduces it exactly.
type HashedEncoder struct {
	tok  *Tokenizer
	dim  int
	seed uint64
}

// NewHashed creates a hashed encoder of the given dimensionality.
func NewHashed(tok *Tokenizer, dim int, seed uint64) (*HashedEncoder, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("encoder: dim must be positive, got %d", dim)
	}
	return &HashedEncoder{tok: tok, dim: dim, seed: seed}, nil
}

// Dim returns the embedding dimensionality.
func (e *HashedEncoder) Dim() int { return e.dim }

// Encode produces a single embedding vector for text.
func (e *HashedEncoder) Encode(text string) ([]float32, error) {
	tk, err := e.tok.Tokenize(text)
	if err != nil {
		return nil, err
	}

	seqLen := int64(tk.Length)
	dim := int64(e.dim)
	hidden := make([]float32, seqLen*dim)
	for s := int64(0); s < seqLen; s++ {
		e.row(tk.InputIDs[s], hidden[s*dim:(s+1)*dim])
	}

	pooled := meanPool(hidden, tk.AttentionMask[:seqLen], 1, seqLen, dim)
	return normalize(pooled), nil
}

// EncodeBatch produces embedding vectors for multiple texts.
func (e *HashedEncoder) EncodeBatch(texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Encode(text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// Close is a no-op.
func (e *HashedEncoder) Close() error { return nil }

// row fills dst with the embedding of token id, uniform in [-1, 1).
func (e *HashedEncoder) row(id int64, dst []float32) {
	state := e.seed ^ (uint64(id)+1)*0x9E3779B97F4A7C15
	for i := range dst {
		z := splitmix64(&state)
		dst[i] = float32(2*(float64(z>>11)/(1<<53)) - 1)
	}
}

func splitmix64(state *uint64) uint64 {
	*state += 0x9E3779B97F4A7C15
	z := *state
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}
