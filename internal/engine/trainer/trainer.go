// Package trainer fits a scoring head to pre-encoded statements with
// mini-batch gradient descent, evaluating and checkpointing every epoch.
package trainer

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/crimson-sun/factcheck/internal/engine/head"
	"github.com/crimson-sun/factcheck/internal/model"
	"github.com/crimson-sun/factcheck/internal/output"
)

// Dataset is a set of encoded statements and their labels.
type Dataset struct {
	Features [][]float32
	Labels   []float64
}

// Len returns the number of examples.
func (d Dataset) Len() int { return len(d.Features) }

// EpochMetrics summarises one pass over the training set.
type EpochMetrics struct {
	Epoch        int
	Step         int
	TrainLoss    float64
	LearningRate float64
	EvalLoss     float64 // NaN when not evaluated
	EvalAccuracy float64 // classification only; NaN otherwise
	Checkpoint   string
}

// Result is the outcome of a training run.
type Result struct {
	RunID string
	// Head holds the best parameters when LoadBestModelAtEnd is set, the
	// final ones otherwise.
	Head           *head.Head
	GlobalStep     int
	TrainLoss      float64 // mean over all steps
	Epochs         []EpochMetrics
	BestCheckpoint string
	BestEvalLoss   float64
	Runtime        time.Duration
}

// Option configures a Trainer.
type Option func(*Trainer)

// WithOutput sends training records to o.
func WithOutput(o output.Output) Option {
	return func(t *Trainer) { t.out = o }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(t *Trainer) { t.logger = l }
}

// WithRunID fixes the run id. Default: a random UUID.
func WithRunID(id string) Option {
	return func(t *Trainer) { t.runID = id }
}

// Trainer runs training with fixed arguments.
type Trainer struct {
	args   Arguments
	out    output.Output
	logger *slog.Logger
	runID  string
}

// New creates a Trainer.
func New(args Arguments, opts ...Option) *Trainer {
	t := &Trainer{args: args, logger: slog.Default()}
	for _, opt := range opts {
		opt(t)
	}
	if t.runID == "" {
		t.runID = uuid.NewString()
	}
	return t
}

// RunID returns the id attached to every record of this trainer.
func (t *Trainer) RunID() string { return t.runID }

// Train updates h in place. Cancelling ctx stops training between steps.
func (t *Trainer) Train(ctx context.Context, h *head.Head, train, eval Dataset) (*Result, error) {
	a := t.args
	if err := a.Validate(train.Len(), eval.Len()); err != nil {
		return nil, err
	}
	if err := checkDataset("train_dataset", h, train); err != nil {
		return nil, err
	}
	if err := checkDataset("eval_dataset", h, eval); err != nil {
		return nil, err
	}

	start := time.Now()
	n := train.Len()
	stepsPerEpoch := a.stepsPerEpoch(n)
	totalSteps := stepsPerEpoch * a.NumTrainEpochs

	gw := make([]float64, len(h.Weight()))
	gb := make([]float64, len(h.Bias()))
	params := []*param{
		{values: h.Weight(), grads: gw, decay: true},
		{values: h.Bias(), grads: gb},
	}
	opt := newOptimizer(a.Optimizer, a.WeightDecay)
	rng := rand.New(rand.NewPCG(a.Seed, a.Seed^0x5851F42D4C957F2D))

	res := &Result{RunID: t.runID, Head: h, BestEvalLoss: math.NaN()}
	var (
		history  []model.Record
		written  []string
		best     *head.Head
		bestLoss = math.Inf(1)
		lossSum  float64
		logSum   float64
		logCount int
		step     int
	)

	t.logger.Info("training started",
		"run_id", t.runID,
		"mode", h.Mode(),
		"examples", n,
		"eval_examples", eval.Len(),
		"epochs", a.NumTrainEpochs,
		"steps", totalSteps,
		"optimizer", a.Optimizer,
	)

	for epoch := 1; epoch <= a.NumTrainEpochs; epoch++ {
		perm := rng.Perm(n)
		var epochSum float64
		var lr float64

		for s := 0; s < stepsPerEpoch; s++ {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("trainer: %w", err)
			}

			lo := s * a.TrainBatchSize
			hi := min(lo+a.TrainBatchSize, n)
			batchLoss := t.accumulate(h, train, perm[lo:hi], params)
			if !finite(batchLoss) {
				return nil, fmt.Errorf("trainer: %w", &DivergenceError{Step: step + 1, Loss: batchLoss})
			}

			lr = learningRate(a.LearningRate, a.Schedule, step, a.WarmupSteps, totalSteps)
			opt.step(params, lr)
			step++
			if !h.Finite() {
				return nil, fmt.Errorf("trainer: %w", &DivergenceError{Step: step, Loss: batchLoss})
			}

			epochSum += batchLoss
			lossSum += batchLoss
			logSum += batchLoss
			logCount++

			if a.LoggingSteps > 0 && step%a.LoggingSteps == 0 {
				rec := t.record(model.KindTrain, epochProgress(step, stepsPerEpoch), step, map[string]float64{
					"loss":          logSum / float64(logCount),
					"learning_rate": lr,
				})
				history = append(history, rec)
				t.emit(ctx, rec)
				logSum, logCount = 0, 0
			}
		}

		em := EpochMetrics{
			Epoch:        epoch,
			Step:         step,
			TrainLoss:    epochSum / float64(stepsPerEpoch),
			LearningRate: lr,
			EvalLoss:     math.NaN(),
			EvalAccuracy: math.NaN(),
		}

		if a.EvalStrategy == StrategyEpoch {
			em.EvalLoss, em.EvalAccuracy = evaluate(h, eval, a.EvalBatchSize)
			if !finite(em.EvalLoss) {
				return nil, fmt.Errorf("trainer: %w", &DivergenceError{Step: step, Loss: em.EvalLoss})
			}
			metrics := map[string]float64{"eval_loss": em.EvalLoss}
			if h.Mode() == model.Classification {
				metrics["eval_accuracy"] = em.EvalAccuracy
			}
			rec := t.record(model.KindEval, float64(epoch), step, metrics)
			history = append(history, rec)
			t.emit(ctx, rec)
		}

		improved := a.EvalStrategy == StrategyEpoch && em.EvalLoss < bestLoss
		if improved {
			bestLoss = em.EvalLoss
			best = h.Clone()
		}

		if a.SaveStrategy == StrategyEpoch {
			dir, kept, err := t.checkpoint(ctx, h, epoch, step, totalSteps, improved, bestLoss, res, history, written)
			if err != nil {
				return nil, err
			}
			written = kept
			em.Checkpoint = dir
		}

		t.logger.Info("epoch complete",
			"run_id", t.runID,
			"epoch", epoch,
			"step", step,
			"train_loss", em.TrainLoss,
			"eval_loss", em.EvalLoss,
			"checkpoint", em.Checkpoint,
		)
		res.Epochs = append(res.Epochs, em)
	}

	if best != nil {
		res.BestEvalLoss = bestLoss
		if a.LoadBestModelAtEnd {
			res.Head = best
		}
	}
	res.GlobalStep = step
	res.TrainLoss = lossSum / float64(max(1, step))
	res.Runtime = time.Since(start)

	summary := map[string]float64{
		"train_loss":    res.TrainLoss,
		"train_runtime": res.Runtime.Seconds(),
	}
	if best != nil {
		summary["best_eval_loss"] = bestLoss
	}
	rec := t.record(model.KindSummary, float64(a.NumTrainEpochs), step, summary)
	rec.Checkpoint = res.BestCheckpoint
	t.emit(ctx, rec)

	t.logger.Info("training finished",
		"run_id", t.runID,
		"steps", step,
		"train_loss", res.TrainLoss,
		"best_checkpoint", res.BestCheckpoint,
		"duration", res.Runtime,
	)
	return res, nil
}

// accumulate computes gradients of the mean loss over batch into params and
// returns that mean loss.
func (t *Trainer) accumulate(h *head.Head, data Dataset, batch []int, params []*param) float64 {
	for _, p := range params {
		p.zeroGrad()
	}
	scale := 1 / float64(len(batch))
	var sum float64
	for _, idx := range batch {
		x := data.Features[idx]
		loss, dLogits := h.Loss(h.Forward(x), data.Labels[idx])
		for k := range dLogits {
			dLogits[k] *= scale
		}
		h.Backward(x, dLogits, params[0].grads, params[1].grads)
		sum += loss
	}
	return sum * scale
}

// checkpoint saves h, rotates this run's checkpoints and returns the new
// directory together with the run's surviving checkpoints.
func (t *Trainer) checkpoint(ctx context.Context, h *head.Head, epoch, step, totalSteps int,
	improved bool, bestLoss float64, res *Result, history []model.Record, written []string) (string, []string, error) {
	a := t.args
	state := State{
		RunID:          t.runID,
		Epoch:          float64(epoch),
		GlobalStep:     step,
		MaxSteps:       totalSteps,
		NumTrainEpochs: a.NumTrainEpochs,
		LogHistory:     history,
	}

	if improved {
		state.BestModelCheckpoint = checkpointDir(a.OutputDir, step)
	} else {
		state.BestModelCheckpoint = res.BestCheckpoint
	}
	if state.BestModelCheckpoint != "" {
		bl := bestLoss
		state.BestMetric = &bl
	}

	dir, err := saveCheckpoint(a.OutputDir, h, state)
	if err != nil {
		return "", nil, fmt.Errorf("trainer: %w", err)
	}
	res.BestCheckpoint = state.BestModelCheckpoint

	kept, removed, err := rotateCheckpoints(append(written, dir), a.SaveTotalLimit, res.BestCheckpoint)
	if err != nil {
		return "", nil, fmt.Errorf("trainer: %w", err)
	}
	for _, p := range removed {
		t.logger.Debug("removed old checkpoint", "run_id", t.runID, "checkpoint", p)
	}

	rec := t.record(model.KindCheckpoint, float64(epoch), step, nil)
	rec.Checkpoint = dir
	t.emit(ctx, rec)
	return dir, kept, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// evaluate returns the mean per-example loss over data and, in
// classification mode, the accuracy (NaN in regression mode).
func evaluate(h *head.Head, data Dataset, batchSize int) (loss, accuracy float64) {
	var sum float64
	var correct int
	for lo := 0; lo < data.Len(); lo += batchSize {
		hi := min(lo+batchSize, data.Len())
		for i := lo; i < hi; i++ {
			logits := h.Forward(data.Features[i])
			l, _ := h.Loss(logits, data.Labels[i])
			sum += l
			if h.Mode() == model.Classification {
				if _, label := head.Confidence(h.Mode(), logits); label == int(data.Labels[i]) {
					correct++
				}
			}
		}
	}
	n := float64(data.Len())
	if h.Mode() != model.Classification {
		return sum / n, math.NaN()
	}
	return sum / n, float64(correct) / n
}

func checkDataset(field string, h *head.Head, d Dataset) error {
	if len(d.Labels) != len(d.Features) {
		return configErr(field, "%d features but %d labels", len(d.Features), len(d.Labels))
	}
	for i, x := range d.Features {
		if len(x) != h.Dim() {
			return configErr(field, "example %d has dim %d, head expects %d", i, len(x), h.Dim())
		}
		if err := h.CheckLabel(d.Labels[i]); err != nil {
			return configErr(field, "example %d: %v", i, err)
		}
	}
	return nil
}

func (t *Trainer) record(kind model.RecordKind, epoch float64, step int, metrics map[string]float64) model.Record {
	return model.Record{
		RunID:     t.runID,
		Kind:      kind,
		Timestamp: time.Now().UTC(),
		Epoch:     epoch,
		Step:      step,
		Metrics:   metrics,
	}
}

func (t *Trainer) emit(ctx context.Context, rec model.Record) {
	if t.out == nil {
		return
	}
	if err := t.out.Write(ctx, rec); err != nil {
		t.logger.Warn("failed to write training record", "kind", rec.Kind, "error", err)
	}
}

func epochProgress(step, stepsPerEpoch int) float64 {
	return float64(step) / float64(stepsPerEpoch)
}

func checkpointDir(outputDir string, step int) string {
	return filepath.Join(outputDir, fmt.Sprintf("%s%d", checkpointPrefix, step))
}
