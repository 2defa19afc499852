package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/crimson-sun/factcheck/internal/output"
	"github.com/crimson-sun/factcheck/internal/output/sqlite"
)

func runsCommand() *cli.Command {
	return &cli.Command{
		Name:      "runs",
		Usage:     "list past training runs, or show one run's records",
		ArgsUsage: "[run-id]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "logging-dir", Usage: "training record directory"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, _, err := setup(cmd)
			if err != nil {
				return err
			}
			override(&cfg.Train.LoggingDir, cmd.String("logging-dir"))

			store, err := sqlite.Open(filepath.Join(cfg.Train.LoggingDir, runsDB))
			if err != nil {
				return err
			}
			defer store.Close()

			if runID := cmd.Args().First(); runID != "" {
				records, err := store.History(ctx, runID)
				if err != nil {
					return err
				}
				if len(records) == 0 {
					return fmt.Errorf("runs: no records for run %s", runID)
				}
				for _, rec := range records {
					fmt.Println(output.FormatText(rec))
				}
				return nil
			}

			runs, err := store.Runs(ctx)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "RUN\tSTARTED\tSTEPS\tRECORDS\tFINISHED\tTRAIN LOSS\tBEST EVAL LOSS")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%t\t%s\t%s\n",
					r.RunID, r.StartedAt.Format(time.DateTime), r.Steps, r.Records, r.Finished,
					formatLoss(r.TrainLoss), formatLoss(r.BestEvalLoss))
			}
			return w.Flush()
		},
	}
}

func formatLoss(v float64) string {
	if math.IsNaN(v) {
		return "-"
	}
	return fmt.Sprintf("%.6g", v)
}
