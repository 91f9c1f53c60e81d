package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ZanzyTHEbar/query-ltr/qltr/pipeline"
	"github.com/ZanzyTHEbar/query-ltr/qltr/ranking/adjacency"
)

var adjacencyCmd = &cobra.Command{
	Use:   "adjacency",
	Short: "Manage persisted query successor statistics",
}

var importFlags struct {
	to  string
	out string
}

var adjacencyImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Count query successors and persist them",
	Long: `Import counts consecutive query pairs in the background log (or the
session log when no background log is configured) and writes them to the
libsql store or to a JSONL table.`,
	RunE: runAdjacencyImport,
}

var adjacencyLookupCmd = &cobra.Command{
	Use:   "lookup <query>",
	Short: "Print the most frequent successors of a query",
	Args:  cobra.ExactArgs(1),
	RunE:  runAdjacencyLookup,
}

func init() {
	f := adjacencyImportCmd.Flags()
	f.StringVar(&importFlags.to, "to", "libsql", "Destination: libsql or jsonl")
	f.StringVar(&importFlags.out, "out", "", "JSONL output path (defaults to adjacency.path)")

	adjacencyCmd.AddCommand(adjacencyImportCmd, adjacencyLookupCmd)
	rootCmd.AddCommand(adjacencyCmd)
}

func runAdjacencyImport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
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
	src := in.BackgroundSessions
	if src == nil {
		src = in.Sessions
	}
	idx := adjacency.FromSessions(src)
	transitions := idx.Transitions()

	switch importFlags.to {
	case "libsql":
		store, err := factory.CreateAdjacencyStore(ctx)
		if err != nil {
			return err
		}
		if err := store.Import(ctx, transitions); err != nil {
			return err
		}
		n, err := store.Count(ctx)
		if err != nil {
			return err
		}
		log.Info().Int("imported", len(transitions)).Int("stored", n).Str("dsn", cfg.Adjacency.DSN).Msg("Adjacency imported")

	case "jsonl":
		out := importFlags.out
		if out == "" {
			out = cfg.Adjacency.Path
		}
		if out == "" {
			return &exitError{code: ExitConfigError, err: fmt.Errorf("no JSONL output path: set --out or adjacency.path")}
		}
		if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
			return err
		}
		fh, err := os.Create(out)
		if err != nil {
			return err
		}
		if err := adjacency.WriteJSONL(fh, idx); err != nil {
			fh.Close()
			return err
		}
		if err := fh.Close(); err != nil {
			return err
		}
		log.Info().Int("imported", len(transitions)).Str("path", out).Msg("Adjacency written")

	default:
		return &exitError{code: ExitConfigError, err: fmt.Errorf("unknown destination %q", importFlags.to)}
	}
	return nil
}

func runAdjacencyLookup(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	factory := pipeline.NewFactory(cfg, log.Logger)
	defer factory.Close()

	var in *pipeline.Inputs
	if cfg.Adjacency.Source == "sessions" {
		if in, err = factory.LoadInputs(); err != nil {
			return &exitError{code: ExitDataError, err: err}
		}
	}
	adj, err := factory.CreateAdjacency(ctx, in)
	if err != nil {
		return err
	}
	sugg, err := adj.Adjacent(ctx, args[0], cfg.Candidates.K)
	if err != nil {
		return err
	}
	for i, q := range sugg.Queries {
		fmt.Fprintf(cmd.OutOrStdout(), "%g\t%s\n", sugg.Priors[i], q)
	}
	return nil
}
