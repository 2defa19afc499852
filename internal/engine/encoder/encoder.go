// Package encoder turns statements into fixed-size vectors. The encoder is
// frozen: training only ever updates the scoring head on top of it.
package encoder

import (
	"fmt"
	"strings"
)

// Backend names.
const (
	BackendHashed = "hashed"
	BackendONNX   = "onnx"
)

// Encoder produces vector embeddings from text.
type Encoder interface {
	Encode(text string) ([]float32, error)
	EncodeBatch(texts []string) ([][]float32, error)
	// Dim is the length of every vector the encoder returns.
	Dim() int
	Close() error
}

// Config selects and parameterises an encoder backend. It is persisted in
// the model directory so a trained head is always paired with the encoder
// it was trained against.
type Config struct {
	Backend   string `json:"backend" yaml:"backend"`
	Dim       int    `json:"dim" yaml:"dim"`
	Seed      uint64 `json:"seed" yaml:"seed"`
	MaxLength int    `json:"max_length" yaml:"max_length"`

	ModelPath      string `json:"model_path,omitempty" yaml:"model_path"`
	ProjectionPath string `json:"projection_path,omitempty" yaml:"projection_path"`
	LibraryPath    string `json:"library_path,omitempty" yaml:"library_path"`
}

// EncodingError reports text that cannot be turned into a valid token
// sequence.
type EncodingError struct {
	Reason string
}

func (e *EncodingError) Error() string {
	return "encoding error: " + e.Reason
}

// New builds the encoder described by cfg over vocabulary v.
func New(cfg Config, v *Vocab) (Encoder, error) {
	tok, err := NewTokenizer(v, cfg.MaxLength)
	if err != nil {
		return nil, fmt.Errorf("encoder: %w", err)
	}

	switch strings.ToLower(cfg.Backend) {
	case "", BackendHashed:
		return NewHashed(tok, cfg.Dim, cfg.Seed)
	case BackendONNX:
		return NewONNX(tok, cfg.ModelPath, cfg.ProjectionPath, cfg.LibraryPath)
	default:
		return nil, fmt.Errorf("encoder: unknown backend %q", cfg.Backend)
	}
}
