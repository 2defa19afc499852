package main

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"

	"github.com/modfin/clix"
	"github.com/urfave/cli/v3"

	"github.com/crimson-sun/factcheck/internal/config"
	"github.com/crimson-sun/factcheck/internal/corpus"
	"github.com/crimson-sun/factcheck/internal/engine"
	"github.com/crimson-sun/factcheck/internal/model"
	"github.com/crimson-sun/factcheck/internal/output"
	"github.com/crimson-sun/factcheck/internal/output/async"
	"github.com/crimson-sun/factcheck/internal/output/file"
	"github.com/crimson-sun/factcheck/internal/output/multi"
	"github.com/crimson-sun/factcheck/internal/output/sqlite"
	"github.com/crimson-sun/factcheck/internal/output/stdout"
)

// Files written under the logging directory.
const (
	eventsFile = "events.jsonl"
	runsDB     = "runs.db"
)

type trainFlags struct {
	Corpus     string `cli:"corpus"`
	Vocab      string `cli:"vocab"`
	OutputDir  string `cli:"output-dir"`
	LoggingDir string `cli:"logging-dir"`
	Optimizer  string `cli:"optimizer"`
	Records    string `cli:"records"`
}

func trainCommand() *cli.Command {
	return &cli.Command{
		Name:  "train",
		Usage: "fine-tune the scoring head and save the model",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "corpus", Usage: "YAML or JSON corpus file (default: built-in corpus)"},
			&cli.StringFlag{Name: "vocab", Usage: "pre-trained vocab.txt (default: built from the corpus)"},
			&cli.StringFlag{Name: "output-dir", Usage: "checkpoint directory"},
			&cli.StringFlag{Name: "logging-dir", Usage: "training record directory"},
			&cli.StringFlag{Name: "optimizer", Usage: "adamw or sgd"},
			&cli.StringFlag{Name: "records", Usage: "stdout record format: text, json, pretty or none", Value: stdout.FormatText},
			&cli.IntFlag{Name: "epochs", Usage: "number of training epochs"},
			&cli.IntFlag{Name: "batch-size", Usage: "training batch size"},
			&cli.FloatFlag{Name: "learning-rate", Usage: "peak learning rate"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}

			flags := clix.ParseCommand[trainFlags](cmd)
			override(&cfg.Train.Corpus, flags.Corpus)
			override(&cfg.Train.VocabPath, flags.Vocab)
			override(&cfg.Train.OutputDir, flags.OutputDir)
			override(&cfg.Train.LoggingDir, flags.LoggingDir)
			override(&cfg.Train.Optimizer, flags.Optimizer)
			if cmd.IsSet("epochs") {
				cfg.Train.Epochs = int(cmd.Int("epochs"))
			}
			if cmd.IsSet("batch-size") {
				cfg.Train.TrainBatchSize = int(cmd.Int("batch-size"))
			}
			if cmd.IsSet("learning-rate") {
				cfg.Train.LearningRate = cmd.Float("learning-rate")
			}

			return runTrain(ctx, cfg, flags.Records, logger)
		},
	}
}

func runTrain(ctx context.Context, cfg config.Config, records string, logger *slog.Logger) error {
	mode, err := model.ParseMode(cfg.Model.Mode)
	if err != nil {
		return err
	}

	var set *corpus.Set
	if cfg.Train.Corpus != "" {
		set, err = corpus.LoadFile(cfg.Train.Corpus, mode)
	} else {
		set, err = corpus.Default(mode)
	}
	if err != nil {
		return err
	}
	eval := set.EvalExamples(cfg.Train.EvalMinWords)

	out, err := openOutputs(cfg.Train, records, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := out.Close(); err != nil {
			logger.Warn("closing training outputs", "error", err)
		}
	}()

	logger.Info("training",
		"mode", mode,
		"train", len(set.Examples),
		"eval", len(eval),
		"encoder", cfg.Encoder.Backend,
		"model_dir", cfg.Model.Dir,
	)

	eng := engine.New(engine.WithLogger(logger))
	defer eng.Close()

	res, err := eng.Train(ctx, engine.TrainRequest{
		Mode:      mode,
		Train:     set.Examples,
		Eval:      eval,
		Labels:    set.Labels,
		Encoder:   cfg.Encoder,
		VocabPath: cfg.Train.VocabPath,
		Args:      cfg.Train.Arguments(),
		ModelDir:  cfg.Model.Dir,
		Output:    out,
	})
	if err != nil {
		return err
	}

	attrs := []any{
		"run_id", res.RunID,
		"steps", res.GlobalStep,
		"train_loss", res.TrainLoss,
		"runtime", res.Runtime,
	}
	if !math.IsNaN(res.BestEvalLoss) {
		attrs = append(attrs, "best_eval_loss", res.BestEvalLoss, "best_checkpoint", res.BestCheckpoint)
	}
	logger.Info("training complete", attrs...)
	return nil
}

// openOutputs fans training records out to the NDJSON event log, stdout and
// the run database.
func openOutputs(tc config.TrainConfig, records string, logger *slog.Logger) (output.Output, error) {
	events, err := file.New(filepath.Join(tc.LoggingDir, eventsFile), file.WithMaxSize(tc.LogMaxBytes))
	if err != nil {
		return nil, err
	}
	outs := []output.Output{events}

	if records != "none" {
		so, err := stdout.New(records)
		if err != nil {
			events.Close()
			return nil, err
		}
		outs = append(outs, so)
	}

	store, err := sqlite.Open(filepath.Join(tc.LoggingDir, runsDB))
	if err != nil {
		events.Close()
		return nil, fmt.Errorf("open run store: %w", err)
	}
	outs = append(outs, async.New(store, async.WithOnError(func(err error) {
		logger.Warn("run store write failed", "error", err)
	})))

	return multi.New(outs...), nil
}
