package main

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ZanzyTHEbar/query-ltr/qltr/config"
	"github.com/ZanzyTHEbar/query-ltr/qltr/pipeline"
	"github.com/ZanzyTHEbar/query-ltr/qltr/ranking/dataset"
	"github.com/ZanzyTHEbar/query-ltr/qltr/session"
)

var buildFlags struct {
	sessions    string
	experiment  string
	workers     int
	maxSessions int
	skipTrain   bool
}

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build, export and evaluate a ranking dataset",
	Long: `Build reads the session log, assembles one query group per usable
session, partitions the groups and writes them as LETOR text files with
a manifest. Unless --skip-train is set the configured ranker is fitted and
scored on the test partition.

Set trainer.algorithm to prior to score by the successor frequency alone.`,
	RunE: runBuild,
}

func init() {
	f := buildCmd.Flags()
	f.StringVar(&buildFlags.sessions, "sessions", "", "Session log path (overrides sessions.path)")
	f.StringVar(&buildFlags.experiment, "experiment", "", "Experiment: next_query, noisy or long_tail")
	f.IntVar(&buildFlags.workers, "workers", 0, "Session workers (overrides pipeline.workers)")
	f.IntVar(&buildFlags.maxSessions, "max-sessions", -1, "Sessions to process, 0 for all (overrides sessions.max)")
	f.BoolVar(&buildFlags.skipTrain, "skip-train", false, "Export the dataset without fitting a ranker")
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(func(c *config.Config) {
		if buildFlags.sessions != "" {
			c.Sessions.Path = buildFlags.sessions
		}
		if buildFlags.experiment != "" {
			c.Pipeline.Experiment = buildFlags.experiment
		}
		if buildFlags.workers > 0 {
			c.Pipeline.Workers = buildFlags.workers
		}
		if buildFlags.maxSessions >= 0 {
			c.Sessions.Max = buildFlags.maxSessions
		}
	})
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	factory := pipeline.NewFactory(cfg, log.Logger)
	defer factory.Close()

	in, err := factory.LoadInputs()
	if err != nil {
		return &exitError{code: ExitDataError, err: err}
	}
	adj, err := factory.CreateAdjacency(ctx, in)
	if err != nil {
		return err
	}

	p := factory.CreatePipeline(adj)
	result, err := p.Run(ctx, in.Sessions, in.Background)
	if err != nil {
		if isDataError(err) {
			return &exitError{code: ExitDataError, err: err}
		}
		return err
	}

	stats := result.Stats
	log.Info().
		Str("run_id", stats.RunID).
		Str("experiment", string(stats.Experiment)).
		Int("processed", stats.Processed).
		Int("used", stats.UsedSessions()).
		Int("shortenings", stats.Shortenings).
		Int("train_groups", result.Split.Train.Groups()).
		Int("validation_groups", result.Split.Validation.Groups()).
		Int("test_groups", result.Split.Test.Groups()).
		Msg("Dataset built")

	m := result.Metrics
	log.Debug().
		Int64("lookups", m.Lookups).
		Int64("lookup_misses", m.LookupMisses).
		Dur("lookup_p95", m.LookupLatency.P95).
		Dur("build_p50", m.BuildLatency.P50).
		Dur("build_p99", m.BuildLatency.P99).
		Msg("Run metrics")

	if buildFlags.skipTrain {
		runDir, err := factory.CreateExporter().Export(result.Split, pipeline.Manifest(result))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), runDir)
		return nil
	}

	report, err := p.Publish(ctx, result, factory.CreateExporter(), factory.CreateTrainer(),
		cfg.Trainer.ModelDir, cfg.Trainer.ModelPrefix)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\n%s=%.4f\n%s\n", report.RunDir, report.Metric, report.TestScore, report.ModelPath)
	return nil
}

func isDataError(err error) bool {
	return errors.Is(err, dataset.ErrNoSessionsAccepted) ||
		errors.Is(err, dataset.ErrDegenerateSplit) ||
		errors.Is(err, session.ErrEmptyCorpus)
}
