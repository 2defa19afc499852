package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/modfin/clix"
	"github.com/urfave/cli/v3"

	"github.com/crimson-sun/factcheck/internal/config"
	"github.com/crimson-sun/factcheck/internal/logging"
)

// globalFlags override the loaded configuration for every command.
type globalFlags struct {
	LogLevel  string `cli:"log-level"`
	LogFormat string `cli:"log-format"`
	ModelDir  string `cli:"model-dir"`
	Mode      string `cli:"mode"`
	Encoder   string `cli:"encoder"`
}

func main() {
	cmd := &cli.Command{
		Name:  "factcheck",
		Usage: "train and serve a statement confidence scorer",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "YAML configuration file",
				Sources: cli.EnvVars("FACTCHECK_CONFIG"),
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "text or json",
			},
			&cli.StringFlag{
				Name:  "model-dir",
				Usage: "directory holding config.json, vocab.txt and model.safetensors",
			},
			&cli.StringFlag{
				Name:  "mode",
				Usage: "regression or classification",
			},
			&cli.StringFlag{
				Name:  "encoder",
				Usage: "encoder backend: hashed or onnx",
			},
		},
		Commands: []*cli.Command{
			trainCommand(),
			serveCommand(),
			gatewayCommand(),
			scoreCommand(),
			runsCommand(),
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		slog.Default().Error("factcheck failed", "err", err)
		stop()
		os.Exit(1)
	}
}

// setup loads the configuration, applies command-line overrides and installs
// the default logger.
func setup(cmd *cli.Command) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return config.Config{}, nil, err
	}

	flags := clix.ParseCommand[globalFlags](cmd)
	override(&cfg.Log.Level, flags.LogLevel)
	override(&cfg.Log.Format, flags.LogFormat)
	override(&cfg.Model.Dir, flags.ModelDir)
	override(&cfg.Model.Mode, flags.Mode)
	override(&cfg.Encoder.Backend, flags.Encoder)

	logger := logging.Init(cfg.Log.Format, logging.ParseLevel(cfg.Log.Level))
	logger.Debug("configuration loaded", "config", cmd.String("config"), "model_dir", cfg.Model.Dir, "mode", cfg.Model.Mode)
	return cfg, logger, nil
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func requireArgs(cmd *cli.Command, n int) error {
	if cmd.Args().Len() < n {
		return fmt.Errorf("%s: expected at least %d argument(s), usage: %s %s", cmd.Name, n, cmd.Name, cmd.ArgsUsage)
	}
	return nil
}
