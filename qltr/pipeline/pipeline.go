// Package pipeline drives one dataset-building run: it selects the candidate
// policy for an experiment, builds labelled examples per session, accumulates
// them in input order and partitions the result.
package pipeline

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/RoaringBitmap/roaring"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/iter"
	"gonum.org/v1/gonum/stat"

	"github.com/ZanzyTHEbar/query-ltr/qltr/ranking/candidates"
	"github.com/ZanzyTHEbar/query-ltr/qltr/ranking/dataset"
	"github.com/ZanzyTHEbar/query-ltr/qltr/ranking/features"
	ports "github.com/ZanzyTHEbar/query-ltr/qltr/ranking/ports"
	"github.com/ZanzyTHEbar/query-ltr/qltr/session"
)

// Experiment names a candidate selection scenario.
type Experiment string

const (
	// NextQuery uses the anchor's own successors.
	NextQuery Experiment = "next_query"
	// Noisy perturbs each session with one frequent background query first.
	Noisy Experiment = "noisy"
	// LongTail shortens anchors missing from the background corpus.
	LongTail Experiment = "long_tail"
)

// Options configures a run.
type Options struct {
	Experiment    Experiment
	MaxSessions   int // 0 processes every session
	Workers       int
	Seed          uint64
	K             int
	MinCandidates int
	HistoryWindow int
	NoiseTop      int
	Proportions   dataset.Proportions
}

// DefaultOptions returns 20 candidates, a 10-query window and at most 1000 sessions.
func DefaultOptions() Options {
	return Options{
		Experiment:    NextQuery,
		MaxSessions:   1000,
		Workers:       1,
		Seed:          1,
		K:             20,
		MinCandidates: 20,
		HistoryWindow: 10,
		NoiseTop:      100,
		Proportions:   dataset.DefaultProportions,
	}
}

// Stats records what happened to every processed session, by input index.
type Stats struct {
	RunID       string
	Experiment  Experiment
	Processed   int
	Accepted    *roaring.Bitmap
	Rejected    map[dataset.Rejection]*roaring.Bitmap
	Shortenings int
}

func newStats(runID string, exp Experiment) Stats {
	return Stats{
		RunID:      runID,
		Experiment: exp,
		Accepted:   roaring.New(),
		Rejected:   make(map[dataset.Rejection]*roaring.Bitmap),
	}
}

// UsedSessions returns the number of accepted sessions.
func (s Stats) UsedSessions() int { return int(s.Accepted.GetCardinality()) }

// RejectedCount returns how many sessions were rejected for reason.
func (s Stats) RejectedCount(reason dataset.Rejection) int {
	if b, ok := s.Rejected[reason]; ok {
		return int(b.GetCardinality())
	}
	return 0
}

func (s *Stats) record(index int, rejection dataset.Rejection) {
	if rejection == dataset.Accepted {
		s.Accepted.Add(uint32(index))
		return
	}
	b, ok := s.Rejected[rejection]
	if !ok {
		b = roaring.New()
		s.Rejected[rejection] = b
	}
	b.Add(uint32(index))
}

// Result is the output of a run.
type Result struct {
	Dataset      *dataset.Dataset
	Split        dataset.Split
	Stats        Stats
	Metrics      MetricsSummary
	FeatureNames []string
}

// Pipeline builds ranking datasets.
type Pipeline struct {
	adjacency ports.Adjacency
	scorers   []ports.Scorer
	tracer    ports.Tracer
	logger    zerolog.Logger
	opts      Options
}

// New creates a pipeline. Scorers contribute feature rows in order.
func New(adjacency ports.Adjacency, scorers []ports.Scorer, tracer ports.Tracer, logger zerolog.Logger, opts Options) *Pipeline {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Pipeline{
		adjacency: adjacency,
		scorers:   scorers,
		tracer:    tracer,
		logger:    logger,
		opts:      opts,
	}
}

// outcome is the per-session result produced by a worker.
type outcome struct {
	example   dataset.Example
	rejection dataset.Rejection
}

// Run builds and partitions the dataset for sessions. background may be nil,
// in which case the noisy and long-tail experiments derive it from sessions.
func (p *Pipeline) Run(ctx context.Context, sessions []session.Session, background *session.Corpus) (result *Result, err error) {
	runID := uuid.NewString()
	ctx, finish := p.tracer.StartSpan(ctx, "pipeline.run", map[string]any{
		"run_id":     runID,
		"experiment": string(p.opts.Experiment),
		"sessions":   len(sessions),
	})
	defer func() { finish(err) }()

	if p.opts.MaxSessions > 0 && len(sessions) > p.opts.MaxSessions {
		sessions = sessions[:p.opts.MaxSessions]
	}

	metrics := NewMetricsCollector()
	adj := measuredAdjacency{next: p.adjacency, metrics: metrics}
	policy, sessions, err := p.prepare(adj, sessions, background)
	if err != nil {
		return nil, err
	}

	assembler := features.NewAssembler(policy, p.scorers, p.opts.HistoryWindow)
	builder := dataset.NewExampleBuilder(assembler, p.opts.MinCandidates)

	outcomes, err := p.buildAll(ctx, builder, metrics, sessions)
	if err != nil {
		return nil, err
	}

	stats := newStats(runID, p.opts.Experiment)
	acc := dataset.NewAccumulator(assembler.Rows(), p.opts.K, len(sessions))
	for i, o := range outcomes {
		stats.Processed++
		stats.record(i, o.rejection)
		if o.rejection != dataset.Accepted {
			continue
		}
		stats.Shortenings += o.example.Shortenings
		if err := acc.Append(o.example); err != nil {
			return nil, fmt.Errorf("session %d: %w", i, err)
		}
	}

	p.tracer.Event(ctx, "sessions_processed", map[string]any{
		"processed":          stats.Processed,
		"used_sessions":      stats.UsedSessions(),
		"no_candidates":      stats.RejectedCount(dataset.RejectNoCandidates),
		"too_few_candidates": stats.RejectedCount(dataset.RejectTooFewCandidates),
		"target_missing":     stats.RejectedCount(dataset.RejectTargetMissing),
		"short_session":      stats.RejectedCount(dataset.RejectShortSession),
	})

	ds, err := acc.Finalize()
	if err != nil {
		return nil, fmt.Errorf("%s run over %d sessions: %w", p.opts.Experiment, stats.Processed, err)
	}

	split, err := p.opts.Proportions.Partition(ds)
	if err != nil {
		return nil, fmt.Errorf("%s run with %d used sessions: %w", p.opts.Experiment, stats.UsedSessions(), err)
	}

	for _, part := range split.Partitions() {
		p.tracer.Event(ctx, "partition", map[string]any{
			"name":   part.Name,
			"groups": part.Groups(),
			"rows":   part.Len(),
		})
	}
	p.logFeatureSummary(split.Train, assembler.FeatureNames())

	return &Result{
		Dataset:      ds,
		Split:        split,
		Stats:        stats,
		Metrics:      metrics.Summary(),
		FeatureNames: assembler.FeatureNames(),
	}, nil
}

// prepare picks the candidate policy and, for the noisy experiment, the
// perturbed sessions.
func (p *Pipeline) prepare(adj ports.Adjacency, sessions []session.Session, background *session.Corpus) (candidates.Policy, []session.Session, error) {
	switch p.opts.Experiment {
	case NextQuery, "":
		return candidates.NewAdjacencyPolicy(adj, p.opts.K), sessions, nil

	case Noisy:
		if background == nil {
			background = session.CorpusFromSessions(sessions)
		}
		injector, err := candidates.NewNoiseInjector(background, p.opts.NoiseTop)
		if err != nil {
			return nil, nil, fmt.Errorf("noise vocabulary: %w", err)
		}
		rng := rand.New(rand.NewPCG(p.opts.Seed, p.opts.Seed^0x9e3779b97f4a7c15))
		return candidates.NewAdjacencyPolicy(adj, p.opts.K), injector.PerturbAll(sessions, rng), nil

	case LongTail:
		if background == nil {
			background = session.CorpusFromSessions(sessions)
		}
		return candidates.NewShorteningPolicy(adj, background, p.opts.K), sessions, nil

	default:
		return nil, nil, fmt.Errorf("unknown experiment %q", p.opts.Experiment)
	}
}

// buildAll builds one outcome per session, in input order.
func (p *Pipeline) buildAll(ctx context.Context, builder *dataset.ExampleBuilder, metrics *MetricsCollector, sessions []session.Session) ([]outcome, error) {
	build := func(s *session.Session) (outcome, error) {
		start := time.Now()
		ex, rejection, err := builder.Build(ctx, *s)
		metrics.RecordBuild(time.Since(start), rejection, err)
		if err != nil {
			return outcome{}, err
		}
		return outcome{example: ex, rejection: rejection}, nil
	}

	if p.opts.Workers == 1 {
		out := make([]outcome, len(sessions))
		for i := range sessions {
			o, err := build(&sessions[i])
			if err != nil {
				return nil, fmt.Errorf("session %d: %w", i, err)
			}
			out[i] = o
		}
		return out, nil
	}

	mapper := iter.Mapper[session.Session, outcome]{MaxGoroutines: p.opts.Workers}
	return mapper.MapErr(sessions, build)
}

func (p *Pipeline) logFeatureSummary(train dataset.Partition, names []string) {
	if p.logger.GetLevel() > zerolog.DebugLevel || zerolog.GlobalLevel() > zerolog.DebugLevel {
		return
	}
	features := train.Features()
	_, cols := features.Dims()
	col := make([]float64, train.Len())
	for c := 0; c < cols && c < len(names); c++ {
		for r := range col {
			col[r] = features.At(r, c)
		}
		mean, std := stat.MeanStdDev(col, nil)
		p.logger.Debug().Str("feature", names[c]).Float64("mean", mean).Float64("stddev", std).Msg("Train feature summary")
	}
}
