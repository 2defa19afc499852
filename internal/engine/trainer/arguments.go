package trainer

import "math"

// Evaluation and save cadences.
const (
	StrategyNo    = "no"
	StrategyEpoch = "epoch"
)

// Optimizers.
const (
	OptimizerAdamW = "adamw"
	OptimizerSGD   = "sgd"
)

// Learning-rate schedules. Both warm up linearly over WarmupSteps.
const (
	ScheduleLinear   = "linear"
	ScheduleConstant = "constant"
)

// Arguments controls a training run.
type Arguments struct {
	OutputDir  string // checkpoints
	LoggingDir string // training records

	NumTrainEpochs int
	TrainBatchSize int
	EvalBatchSize  int
	LearningRate   float64
	WarmupSteps    int
	WeightDecay    float64
	Optimizer      string
	Schedule       string

	LoggingSteps       int
	EvalStrategy       string
	SaveStrategy       string
	SaveTotalLimit     int
	LoadBestModelAtEnd bool
	DropLast           bool
	Seed               uint64
}

// DefaultArguments mirrors the hyperparameters the scorer was originally
// fine-tuned with.
func DefaultArguments() Arguments {
	return Arguments{
		OutputDir:          "./results",
		LoggingDir:         "./logs",
		NumTrainEpochs:     3,
		TrainBatchSize:     2,
		EvalBatchSize:      2,
		LearningRate:       5e-5,
		WarmupSteps:        10,
		WeightDecay:        0.01,
		Optimizer:          OptimizerAdamW,
		Schedule:           ScheduleLinear,
		LoggingSteps:       10,
		EvalStrategy:       StrategyEpoch,
		SaveStrategy:       StrategyEpoch,
		SaveTotalLimit:     3,
		LoadBestModelAtEnd: true,
		Seed:               42,
	}
}

// Validate checks the arguments against the dataset sizes they will run on.
func (a Arguments) Validate(numTrain, numEval int) error {
	switch {
	case numTrain == 0:
		return configErr("train_dataset", "no training examples")
	case a.NumTrainEpochs <= 0:
		return configErr("num_train_epochs", "must be positive, got %d", a.NumTrainEpochs)
	case a.TrainBatchSize <= 0:
		return configErr("per_device_train_batch_size", "must be positive, got %d", a.TrainBatchSize)
	case a.EvalBatchSize <= 0:
		return configErr("per_device_eval_batch_size", "must be positive, got %d", a.EvalBatchSize)
	case !(a.LearningRate > 0) || math.IsInf(a.LearningRate, 0):
		return configErr("learning_rate", "must be a positive number, got %v", a.LearningRate)
	case a.WarmupSteps < 0:
		return configErr("warmup_steps", "must not be negative, got %d", a.WarmupSteps)
	case a.WeightDecay < 0 || math.IsNaN(a.WeightDecay):
		return configErr("weight_decay", "must not be negative, got %v", a.WeightDecay)
	case a.LoggingSteps < 0:
		return configErr("logging_steps", "must not be negative, got %d", a.LoggingSteps)
	case a.SaveTotalLimit < 0:
		return configErr("save_total_limit", "must not be negative, got %d", a.SaveTotalLimit)
	case a.Optimizer != OptimizerAdamW && a.Optimizer != OptimizerSGD:
		return configErr("optim", "unknown optimizer %q", a.Optimizer)
	case a.Schedule != ScheduleLinear && a.Schedule != ScheduleConstant:
		return configErr("lr_scheduler_type", "unknown schedule %q", a.Schedule)
	case !validStrategy(a.EvalStrategy):
		return configErr("eval_strategy", "unknown strategy %q", a.EvalStrategy)
	case !validStrategy(a.SaveStrategy):
		return configErr("save_strategy", "unknown strategy %q", a.SaveStrategy)
	case a.DropLast && a.TrainBatchSize > numTrain:
		return configErr("dataloader_drop_last", "batch size %d exceeds %d examples, no steps would run",
			a.TrainBatchSize, numTrain)
	case a.EvalStrategy == StrategyEpoch && numEval == 0:
		return configErr("eval_dataset", "evaluation strategy %q needs a non-empty evaluation set", a.EvalStrategy)
	case a.LoadBestModelAtEnd && a.EvalStrategy != StrategyEpoch:
		return configErr("load_best_model_at_end", "requires evaluation every epoch")
	case a.LoadBestModelAtEnd && a.SaveStrategy != a.EvalStrategy:
		return configErr("load_best_model_at_end", "save strategy %q must match evaluation strategy %q",
			a.SaveStrategy, a.EvalStrategy)
	case a.SaveStrategy == StrategyEpoch && a.OutputDir == "":
		return configErr("output_dir", "required when saving checkpoints")
	}
	return nil
}

func validStrategy(s string) bool {
	return s == StrategyNo || s == StrategyEpoch
}

// stepsPerEpoch is the number of optimizer steps in one pass over n examples.
func (a Arguments) stepsPerEpoch(n int) int {
	if a.DropLast {
		return n / a.TrainBatchSize
	}
	return (n + a.TrainBatchSize - 1) / a.TrainBatchSize
}
