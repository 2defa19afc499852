package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/crimson-sun/factcheck/internal/api"
	"github.com/crimson-sun/factcheck/internal/engine"
	"github.com/crimson-sun/factcheck/internal/gateway"
	"github.com/crimson-sun/factcheck/internal/scoreclient"
	"github.com/crimson-sun/factcheck/internal/server"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "serve POST /predict_confidence from the trained model",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "listen address"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			override(&cfg.Service.Addr, cmd.String("addr"))

			eng := engine.New(engine.WithLogger(logger))
			defer eng.Close()
			if err := eng.Load(cfg.Model.Dir); err != nil {
				// Keep serving; /health and /predict_confidence answer 503
				// until a reload succeeds.
				logger.Error("model not loaded", "dir", cfg.Model.Dir, "error", err)
			}

			hup := make(chan os.Signal, 1)
			signal.Notify(hup, syscall.SIGHUP)
			defer signal.Stop(hup)
			go func() {
				for {
					select {
					case <-ctx.Done():
						return
					case <-hup:
						if err := eng.Load(cfg.Model.Dir); err != nil {
							logger.Error("model reload failed", "dir", cfg.Model.Dir, "error", err)
						}
					}
				}
			}()

			r := server.NewRouter(logger)
			api.NewHandler(eng, logger).RegisterRoutes(r)
			return server.Run(ctx, cfg.Service.Addr, r, logger)
		},
	}
}

func gatewayCommand() *cli.Command {
	return &cli.Command{
		Name:  "gateway",
		Usage: "serve the statement gateway in front of the scoring service",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "listen address"},
			&cli.StringFlag{Name: "scoring-url", Usage: "base URL of the scoring service"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			g := cfg.Gateway
			override(&g.Addr, cmd.String("addr"))
			override(&g.ScoringURL, cmd.String("scoring-url"))

			client := scoreclient.New(g.ScoringURL,
				scoreclient.WithTimeout(g.Timeout),
				scoreclient.WithMaxRetries(g.MaxRetries),
				scoreclient.WithBackoff(g.Backoff),
			)

			r := server.NewRouter(logger)
			r.Use(server.CORS(g.AllowedOrigin))
			gateway.NewHandler(gateway.Config{
				FixedStatement:        g.FixedStatement,
				UseSubmittedStatement: g.UseSubmittedStatement,
				LegacyErrorSentinel:   g.LegacyErrorSentinel,
				EnforceCSRF:           g.EnforceCSRF,
				CSRFCookie:            g.CSRFCookie,
			}, client, logger).RegisterRoutes(r)

			logger.Info("gateway configured",
				"scoring_url", g.ScoringURL,
				"timeout", g.Timeout,
				"retries", g.MaxRetries,
				"fixed_statement", g.FixedStatement != "" && !g.UseSubmittedStatement,
			)
			return server.Run(ctx, g.Addr, r, logger)
		},
	}
}
