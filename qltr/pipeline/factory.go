package pipeline

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ZanzyTHEbar/query-ltr/qltr/config"
	"github.com/ZanzyTHEbar/query-ltr/qltr/db"
	"github.com/ZanzyTHEbar/query-ltr/qltr/ranking/adapters"
	"github.com/ZanzyTHEbar/query-ltr/qltr/ranking/adjacency"
	"github.com/ZanzyTHEbar/query-ltr/qltr/ranking/dataset"
	"github.com/ZanzyTHEbar/query-ltr/qltr/ranking/export"
	ports "github.com/ZanzyTHEbar/query-ltr/qltr/ranking/ports"
	"github.com/ZanzyTHEbar/query-ltr/qltr/ranking/scoring"
	"github.com/ZanzyTHEbar/query-ltr/qltr/ranking/trainer"
	"github.com/ZanzyTHEbar/query-ltr/qltr/session"
)

// Inputs are the sessions and background data loaded once at startup.
type Inputs struct {
	Sessions           []session.Session
	BackgroundSessions []session.Session // nil when no background log is configured
	Background         *session.Corpus
}

// Factory creates and wires pipeline components from configuration.
type Factory struct {
	cfg    *config.Config
	logger zerolog.Logger
	db     *sql.DB
}

// NewFactory creates a new pipeline factory.
func NewFactory(cfg *config.Config, logger zerolog.Logger) *Factory {
	return &Factory{cfg: cfg, logger: logger}
}

// Close releases the adjacency database, if one was opened.
func (f *Factory) Close() error {
	if f.db == nil {
		return nil
	}
	err := f.db.Close()
	f.db = nil
	return err
}

// Options maps configuration onto run options.
func (f *Factory) Options() Options {
	return Options{
		Experiment:    Experiment(f.cfg.Pipeline.Experiment),
		MaxSessions:   f.cfg.Sessions.Max,
		Workers:       f.cfg.Pipeline.Workers,
		Seed:          uint64(f.cfg.Pipeline.Seed),
		K:             f.cfg.Candidates.K,
		MinCandidates: f.cfg.Candidates.Min,
		HistoryWindow: f.cfg.Candidates.HistoryWindow,
		NoiseTop:      f.cfg.Background.NoiseTop,
		Proportions: dataset.Proportions{
			Train:      f.cfg.Split.Train,
			Validation: f.cfg.Split.Validation,
		},
	}
}

// LoadInputs reads the session log and, when configured, the background log.
func (f *Factory) LoadInputs() (*Inputs, error) {
	sessions, err := session.NewLoader(f.cfg.Sessions.Path, f.cfg.Sessions.Delimiter).Load()
	if err != nil {
		return nil, err
	}
	in := &Inputs{Sessions: sessions}

	if f.cfg.Background.Path != "" {
		bg, err := session.NewLoader(f.cfg.Background.Path, f.cfg.Sessions.Delimiter).Load()
		if err != nil {
			return nil, fmt.Errorf("background: %w", err)
		}
		in.BackgroundSessions = bg
		in.Background = session.CorpusFromSessions(bg)
	}

	f.logger.Info().
		Int("sessions", len(in.Sessions)).
		Int("background_sessions", len(in.BackgroundSessions)).
		Msg("Loaded inputs")
	return in, nil
}

// CreateAdjacency builds the configured successor source behind an LRU cache.
func (f *Factory) CreateAdjacency(ctx context.Context, in *Inputs) (ports.Adjacency, error) {
	var backing ports.Adjacency
	switch f.cfg.Adjacency.Source {
	case "sessions":
		if in == nil {
			return nil, fmt.Errorf("adjacency source %q needs loaded sessions", f.cfg.Adjacency.Source)
		}
		src := in.BackgroundSessions
		if src == nil {
			src = in.Sessions
		}
		backing = adjacency.FromSessions(src)

	case "jsonl":
		idx, err := adjacency.LoadJSONL(f.cfg.Adjacency.Path)
		if err != nil {
			return nil, err
		}
		backing = idx

	case "libsql":
		conn, err := f.openDB(ctx)
		if err != nil {
			return nil, err
		}
		backing = adapters.NewLibSQLAdjacencyStore(conn)

	default:
		return nil, fmt.Errorf("unknown adjacency source %q", f.cfg.Adjacency.Source)
	}

	cache := adapters.NewLRUCache[ports.Suggestions](f.cfg.Adjacency.CacheCapacity)
	return adjacency.NewCached(backing, cache, f.cfg.Adjacency.CacheTTL), nil
}

// CreateAdjacencyStore opens the libsql adjacency store for imports.
func (f *Factory) CreateAdjacencyStore(ctx context.Context) (*adapters.LibSQLAdjacencyStore, error) {
	conn, err := f.openDB(ctx)
	if err != nil {
		return nil, err
	}
	return adapters.NewLibSQLAdjacencyStore(conn), nil
}

func (f *Factory) openDB(ctx context.Context) (*sql.DB, error) {
	if f.db != nil {
		return f.db, nil
	}
	conn, err := db.ConnectToDB(ctx, f.cfg.Adjacency.DSN)
	if err != nil {
		return nil, err
	}
	f.db = conn
	return conn, nil
}

// CreateTracer creates the zerolog tracer.
func (f *Factory) CreateTracer() ports.Tracer {
	return adapters.NewZerologTracer(f.logger)
}

// CreatePipeline wires a pipeline over adj with the default scorers.
func (f *Factory) CreatePipeline(adj ports.Adjacency) *Pipeline {
	return New(adj, scoring.Default(), f.CreateTracer(), f.logger, f.Options())
}

// CreateExporter creates the dataset exporter.
func (f *Factory) CreateExporter() *export.Exporter {
	return export.NewExporter(f.cfg.Export.Dir)
}

// CreateTrainer creates the configured ranker.
func (f *Factory) CreateTrainer() trainer.Trainer {
	if f.cfg.Trainer.Algorithm == "prior" {
		return trainer.NewPriorBaseline(f.cfg.Candidates.K)
	}
	return trainer.NewLinearRanker(trainer.LinearOptions{
		K:            f.cfg.Candidates.K,
		Epochs:       f.cfg.Trainer.Epochs,
		LearningRate: f.cfg.Trainer.LearningRate,
		Subsample:    f.cfg.Trainer.Subsample,
		Seed:         uint64(f.cfg.Trainer.Seed),
	})
}
