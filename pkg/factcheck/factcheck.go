package factcheck

import (
	"context"
	"fmt"

	"github.com/crimson-sun/factcheck/internal/corpus"
	"github.com/crimson-sun/factcheck/internal/engine"
	"github.com/crimson-sun/factcheck/internal/engine/encoder"
	"github.com/crimson-sun/factcheck/internal/engine/trainer"
	"github.com/crimson-sun/factcheck/internal/model"
)

// Errors returned by Score and Predict.
var (
	ErrEmptyStatement = engine.ErrEmptyStatement
	ErrModelNotLoaded = engine.ErrModelNotLoaded
	ErrNonFiniteScore = engine.ErrNonFiniteScore
)

// Modes.
const (
	Regression     = string(model.Regression)
	Classification = string(model.Classification)
)

// Prediction is the result of scoring one statement.
// This is the stable public type; internal representations may evolve
// independently.
type Prediction struct {
	Confidence float64 `json:"confidence"`      // in (0,1)
	Label      *int    `json:"label,omitempty"` // classification only
	LabelName  string  `json:"label_name,omitempty"`
}

// Scorer scores statements with a trained model. Safe for concurrent use.
type Scorer struct {
	engine *engine.Engine
	labels []string
}

// New loads the model directory and returns a ready Scorer.
func New(opts ...Option) (*Scorer, error) {
	o := resolveOptions(opts)
	eng := engine.New(engine.WithLogger(o.logger))
	if err := eng.Load(o.modelDir); err != nil {
		return nil, fmt.Errorf("factcheck: %w", err)
	}
	return newScorer(eng)
}

// Train fits a model for mode ("regression" or "classification") on the
// built-in corpus with the default hyperparameters, saves it to the model
// directory and returns a Scorer serving it.
func Train(ctx context.Context, mode string, opts ...Option) (*Scorer, error) {
	o := resolveOptions(opts)
	m, err := model.ParseMode(mode)
	if err != nil {
		return nil, fmt.Errorf("factcheck: %w", err)
	}
	set, err := corpus.Default(m)
	if err != nil {
		return nil, fmt.Errorf("factcheck: %w", err)
	}

	args := trainer.DefaultArguments()
	args.OutputDir = o.checkpointDir
	args.Seed = o.seed

	eng := engine.New(engine.WithLogger(o.logger))
	_, err = eng.Train(ctx, engine.TrainRequest{
		Mode:     m,
		Train:    set.Examples,
		Eval:     set.EvalExamples(corpus.DefaultMinWords),
		Labels:   set.Labels,
		Encoder:  encoder.Config{Backend: encoder.BackendHashed, Dim: o.encoderDim, Seed: o.seed},
		Args:     args,
		ModelDir: o.modelDir,
	})
	if err != nil {
		return nil, fmt.Errorf("factcheck: %w", err)
	}
	return newScorer(eng)
}

func newScorer(eng *engine.Engine) (*Scorer, error) {
	info, err := eng.Info()
	if err != nil {
		eng.Close()
		return nil, fmt.Errorf("factcheck: %w", err)
	}
	return &Scorer{engine: eng, labels: info.Labels}, nil
}

// Score returns the confidence that text is credible, in (0,1).
func (s *Scorer) Score(text string) (float64, error) {
	p, err := s.engine.Score(text)
	if err != nil {
		return 0, err
	}
	return p.Confidence, nil
}

// Predict scores text and, in classification mode, names the winning class.
func (s *Scorer) Predict(text string) (Prediction, error) {
	p, err := s.engine.Score(text)
	if err != nil {
		return Prediction{}, err
	}
	out := Prediction{Confidence: p.Confidence}
	if p.Label >= 0 {
		label := p.Label
		out.Label = &label
		if label < len(s.labels) {
			out.LabelName = s.labels[label]
		}
	}
	return out, nil
}

// Mode reports the loaded model's mode.
func (s *Scorer) Mode() string {
	info, err := s.engine.Info()
	if err != nil {
		return ""
	}
	return string(info.Mode)
}

// Close releases model resources (ONNX runtime, memory).
func (s *Scorer) Close() error {
	return s.engine.Close()
}
