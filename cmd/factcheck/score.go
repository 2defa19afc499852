package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/crimson-sun/factcheck/internal/engine"
	"github.com/crimson-sun/factcheck/internal/scoreclient"
)

type scoreResult struct {
	Statement  string  `json:"statement"`
	Confidence float64 `json:"confidence"`
	Label      *int    `json:"label,omitempty"`
}

func scoreCommand() *cli.Command {
	return &cli.Command{
		Name:      "score",
		Usage:     "score statements with the local model or a running scoring service",
		ArgsUsage: "<statement>...",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "remote", Usage: "score via the service at this base URL instead of loading the model"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if err := requireArgs(cmd, 1); err != nil {
				return err
			}
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}

			var score func(text string) (scoreResult, error)
			if remote := cmd.String("remote"); remote != "" {
				client := scoreclient.New(remote,
					scoreclient.WithTimeout(cfg.Gateway.Timeout),
					scoreclient.WithMaxRetries(cfg.Gateway.MaxRetries),
					scoreclient.WithBackoff(cfg.Gateway.Backoff),
				)
				score = func(text string) (scoreResult, error) {
					p, err := client.PredictConfidence(ctx, text)
					if err != nil {
						return scoreResult{}, err
					}
					return scoreResult{Statement: text, Confidence: p.Confidence, Label: p.Label}, nil
				}
			} else {
				eng := engine.New(engine.WithLogger(logger))
				defer eng.Close()
				if err := eng.Load(cfg.Model.Dir); err != nil {
					return err
				}
				score = func(text string) (scoreResult, error) {
					p, err := eng.Score(text)
					if err != nil {
						return scoreResult{}, err
					}
					r := scoreResult{Statement: text, Confidence: p.Confidence}
					if p.Label >= 0 {
						r.Label = &p.Label
					}
					return r, nil
				}
			}

			enc := json.NewEncoder(os.Stdout)
			for _, text := range cmd.Args().Slice() {
				r, err := score(text)
				if err != nil {
					return err
				}
				if err := enc.Encode(r); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
