package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/crimson-sun/factcheck/internal/engine/encoder"
	"github.com/crimson-sun/factcheck/internal/engine/head"
	"github.com/crimson-sun/factcheck/internal/model"
)

// Files making up a model directory.
const (
	ConfigFile  = "config.json"
	VocabFile   = "vocab.txt"
	WeightsFile = "model.safetensors"
)

// ModelConfig describes a trained scorer. It is stored as config.json.
type ModelConfig struct {
	Mode      model.Mode     `json:"mode"`
	NumLabels int            `json:"num_labels"`
	Labels    []string       `json:"labels,omitempty"`
	Encoder   encoder.Config `json:"encoder"`
	RunID     string         `json:"run_id,omitempty"`
	TrainedAt time.Time      `json:"trained_at"`
}

func readConfig(dir string) (ModelConfig, error) {
	var cfg ModelConfig
	data, err := os.ReadFile(filepath.Join(dir, ConfigFile))
	if err != nil {
		return cfg, fmt.Errorf("engine: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("engine: parse %s: %w", ConfigFile, err)
	}
	if !cfg.Mode.Valid() {
		return cfg, fmt.Errorf("engine: %s: unknown mode %q", ConfigFile, cfg.Mode)
	}
	return cfg, nil
}

// writeModel stores config, vocabulary and head weights under dir.
func writeModel(dir string, cfg ModelConfig, v *encoder.Vocab, h *head.Head) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("engine: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("engine: marshal config: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ConfigFile), data, 0o644); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	if err := v.Save(filepath.Join(dir, VocabFile)); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	if err := h.Save(filepath.Join(dir, WeightsFile)); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	return nil
}

// readModel loads a model directory written by writeModel.
func readModel(dir string) (*scorer, error) {
	cfg, err := readConfig(dir)
	if err != nil {
		return nil, err
	}

	v, err := encoder.LoadVocab(filepath.Join(dir, VocabFile))
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	h, err := head.Load(filepath.Join(dir, WeightsFile))
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	if h.Mode() != cfg.Mode || h.NumLabels() != cfg.NumLabels {
		return nil, fmt.Errorf("engine: weights are %s with %d outputs, config says %s with %d",
			h.Mode(), h.NumLabels(), cfg.Mode, cfg.NumLabels)
	}

	enc, err := encoder.New(cfg.Encoder, v)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	if enc.Dim() != h.Dim() {
		enc.Close()
		return nil, fmt.Errorf("engine: encoder dim %d != head input dim %d", enc.Dim(), h.Dim())
	}
	return &scorer{dir: dir, cfg: cfg, vocab: v, enc: enc, head: h}, nil
}
