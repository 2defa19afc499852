// Package engine owns the loaded scorer (vocabulary, frozen encoder and
// trained head) and exposes the train and score operations.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/crimson-sun/factcheck/internal/engine/encoder"
	"github.com/crimson-sun/factcheck/internal/engine/head"
	"github.com/crimson-sun/factcheck/internal/engine/trainer"
	"github.com/crimson-sun/factcheck/internal/model"
	"github.com/crimson-sun/factcheck/internal/output"
)

var (
	// ErrModelNotLoaded is returned by Score before any model is installed.
	ErrModelNotLoaded = errors.New("engine: model not loaded")
	// ErrEmptyStatement is returned for blank statements.
	ErrEmptyStatement = errors.New("engine: statement is empty")
	// ErrNonFiniteScore is returned when the installed head yields a NaN or
	// infinite logit.
	ErrNonFiniteScore = errors.New("engine: model produced a non-finite score")
)

// scorer is one immutable set of model parameters.
type scorer struct {
	dir   string
	cfg   ModelConfig
	vocab *encoder.Vocab
	enc   encoder.Encoder
	head  *head.Head
}

// Info describes the loaded model.
type Info struct {
	Dir       string `json:"dir,omitempty"`
	VocabSize int    `json:"vocab_size"`
	ModelConfig
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// Engine serves predictions from the currently installed scorer. Scoring
// takes a read lock, so any number of requests share one scorer; installing
// a new one swaps it under the write lock.
type Engine struct {
	mu     sync.RWMutex
	cur    *scorer
	logger *slog.Logger
}

// New creates an Engine with no model loaded.
func New(opts ...Option) *Engine {
	e := &Engine{logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Load reads a model directory and installs it.
func (e *Engine) Load(dir string) error {
	s, err := readModel(dir)
	if err != nil {
		return err
	}
	e.install(s)
	e.logger.Info("model loaded",
		"dir", dir,
		"mode", s.cfg.Mode,
		"encoder", s.cfg.Encoder.Backend,
		"dim", s.head.Dim(),
		"vocab", s.vocab.Size(),
	)
	return nil
}

// Loaded reports whether a model is installed.
func (e *Engine) Loaded() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cur != nil
}

// Info describes the installed model.
func (e *Engine) Info() (Info, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.cur == nil {
		return Info{}, ErrModelNotLoaded
	}
	return Info{Dir: e.cur.dir, VocabSize: e.cur.vocab.Size(), ModelConfig: e.cur.cfg}, nil
}

// Score maps a statement to a confidence in (0,1). It is deterministic for a
// given model and input and has no side effects.
func (e *Engine) Score(text string) (model.Prediction, error) {
	if strings.TrimSpace(text) == "" {
		return model.Prediction{}, ErrEmptyStatement
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.cur == nil {
		return model.Prediction{}, ErrModelNotLoaded
	}

	vec, err := e.cur.enc.Encode(text)
	if err != nil {
		return model.Prediction{}, fmt.Errorf("engine: %w", err)
	}
	p := e.cur.head.Predict(vec)
	for _, z := range p.Logits {
		if math.IsNaN(z) || math.IsInf(z, 0) {
			return model.Prediction{}, ErrNonFiniteScore
		}
	}
	return p, nil
}

// Save writes the installed model to dir.
func (e *Engine) Save(dir string) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.cur == nil {
		return ErrModelNotLoaded
	}
	return writeModel(dir, e.cur.cfg, e.cur.vocab, e.cur.head)
}

// Close releases the installed encoder.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cur == nil {
		return nil
	}
	err := e.cur.enc.Close()
	e.cur = nil
	return err
}

func (e *Engine) install(s *scorer) {
	e.mu.Lock()
	old := e.cur
	e.cur = s
	e.mu.Unlock()

	if old != nil {
		if err := old.enc.Close(); err != nil {
			e.logger.Warn("failed to close previous encoder", "error", err)
		}
	}
}

// TrainRequest describes a training run.
type TrainRequest struct {
	Mode  model.Mode
	Train []model.Example
	Eval  []model.Example

	// Labels names the classes; NumLabels defaults to len(Labels) when that
	// is at least 2, else to the mode default.
	Labels    []string
	NumLabels int

	// Encoder.MaxLength defaults to the mode default when zero.
	Encoder encoder.Config
	// VocabPath is a pre-trained vocab.txt. When empty the vocabulary is
	// built from the training and evaluation statements.
	VocabPath string

	Args trainer.Arguments
	// ModelDir receives config.json, vocab.txt and model.safetensors. Empty
	// skips saving.
	ModelDir string
	RunID    string
	Output   output.Output
}

// Train fits a new head on the request's examples, saves it to ModelDir and
// installs it.
func (e *Engine) Train(ctx context.Context, req TrainRequest) (*trainer.Result, error) {
	if !req.Mode.Valid() {
		return nil, &trainer.ConfigurationError{Field: "mode", Reason: fmt.Sprintf("unknown mode %q", req.Mode)}
	}
	if err := req.Args.Validate(len(req.Train), len(req.Eval)); err != nil {
		return nil, err
	}

	numLabels := req.NumLabels
	if numLabels == 0 {
		numLabels = req.Mode.DefaultNumLabels()
		if req.Mode == model.Classification && len(req.Labels) >= 2 {
			numLabels = len(req.Labels)
		}
	}
	encCfg := req.Encoder
	if encCfg.MaxLength == 0 {
		encCfg.MaxLength = req.Mode.DefaultMaxLength()
	}

	var (
		vocab *encoder.Vocab
		err   error
	)
	if req.VocabPath != "" {
		if vocab, err = encoder.LoadVocab(req.VocabPath); err != nil {
			return nil, fmt.Errorf("engine: %w", err)
		}
	} else {
		vocab = encoder.BuildVocab(append(model.Texts(req.Train), model.Texts(req.Eval)...))
	}

	enc, err := encoder.New(encCfg, vocab)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	installed := false
	defer func() {
		if !installed {
			enc.Close()
		}
	}()
	encCfg.Dim = enc.Dim()

	start := time.Now()
	trainSet, err := encodeExamples(enc, req.Train)
	if err != nil {
		return nil, err
	}
	evalSet, err := encodeExamples(enc, req.Eval)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("encoded training data",
		"train", trainSet.Len(), "eval", evalSet.Len(), "dim", enc.Dim(), "duration", time.Since(start))

	h, err := head.New(req.Mode, numLabels, enc.Dim(), req.Args.Seed)
	if err != nil {
		return nil, &trainer.ConfigurationError{Field: "num_labels", Reason: err.Error()}
	}

	opts := []trainer.Option{trainer.WithLogger(e.logger), trainer.WithRunID(req.RunID)}
	if req.Output != nil {
		opts = append(opts, trainer.WithOutput(req.Output))
	}
	tr := trainer.New(req.Args, opts...)
	res, err := tr.Train(ctx, h, trainSet, evalSet)
	if err != nil {
		return nil, err
	}

	s := &scorer{
		dir: req.ModelDir,
		cfg: ModelConfig{
			Mode:      req.Mode,
			NumLabels: numLabels,
			Labels:    req.Labels,
			Encoder:   encCfg,
			RunID:     tr.RunID(),
			TrainedAt: time.Now().UTC(),
		},
		vocab: vocab,
		enc:   enc,
		head:  res.Head,
	}
	if req.ModelDir != "" {
		if err := writeModel(req.ModelDir, s.cfg, vocab, res.Head); err != nil {
			return nil, err
		}
		e.logger.Info("model saved", "dir", req.ModelDir, "run_id", tr.RunID())
	}

	e.install(s)
	installed = true
	return res, nil
}

func encodeExamples(enc encoder.Encoder, examples []model.Example) (trainer.Dataset, error) {
	if len(examples) == 0 {
		return trainer.Dataset{}, nil
	}
	vecs, err := enc.EncodeBatch(model.Texts(examples))
	if err != nil {
		return trainer.Dataset{}, fmt.Errorf("engine: %w", err)
	}
	return trainer.Dataset{Features: vecs, Labels: model.Labels(examples)}, nil
}
