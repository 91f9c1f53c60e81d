package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/query-ltr/qltr/config"
	"github.com/ZanzyTHEbar/query-ltr/qltr/ranking/adjacency"
)

// writeLogs writes a background log where "anchor i" is followed by
// "anchor i next j" 20-j times, and a session log of accepted sessions.
func writeLogs(t *testing.T, dir string, anchors int) (sessionsPath, backgroundPath string) {
	t.Helper()
	var bg strings.Builder
	for i := 0; i < anchors; i++ {
		for j := 0; j < 20; j++ {
			for n := 0; n < 20-j; n++ {
				fmt.Fprintf(&bg, "anchor %d\tanchor %d next %d\n", i, i, j)
			}
		}
	}
	var sess strings.Builder
	for i := 0; i < anchors; i++ {
		fmt.Fprintf(&sess, "start\tanchor %d\tanchor %d next %d\n", i, i, i%20)
	}

	sessionsPath = filepath.Join(dir, "sessions.ctx")
	backgroundPath = filepath.Join(dir, "background.ctx")
	require.NoError(t, os.WriteFile(sessionsPath, []byte(sess.String()), 0o644))
	require.NoError(t, os.WriteFile(backgroundPath, []byte(bg.String()), 0o644))
	return sessionsPath, backgroundPath
}

func testConfig(dir, sessionsPath, backgroundPath string) *config.Config {
	return &config.Config{
		Sessions:   config.SessionsConfig{Path: sessionsPath, Delimiter: "\t", Max: 1000},
		Background: config.BackgroundConfig{Path: backgroundPath, NoiseTop: 100},
		Candidates: config.CandidatesConfig{K: 20, Min: 20, HistoryWindow: 10},
		Split:      config.SplitConfig{Train: 0.55, Validation: 0.40, GroupSize: 20},
		Pipeline:   config.PipelineConfig{Experiment: "next_query", Workers: 2, Seed: 7},
		Adjacency: config.AdjacencyConfig{
			Source:        "sessions",
			DSN:           filepath.Join(dir, "db", "adjacency.db"),
			CacheCapacity: 64,
			CacheTTL:      time.Hour,
		},
		Export:  config.ExportConfig{Dir: filepath.Join(dir, "export"), Format: "letor"},
		Trainer: config.TrainerConfig{Algorithm: "linear", Metric: "nDCG@20", Epochs: 5, LearningRate: 0.1, Subsample: 0.5, Seed: 1, ModelDir: filepath.Join(dir, "models"), ModelPrefix: "m_"},
	}
}

func TestFactory_Options(t *testing.T) {
	cfg := testConfig(t.TempDir(), "", "")
	opts := NewFactory(cfg, zerolog.Nop()).Options()

	assert.Equal(t, NextQuery, opts.Experiment)
	assert.Equal(t, 1000, opts.MaxSessions)
	assert.Equal(t, 2, opts.Workers)
	assert.Equal(t, uint64(7), opts.Seed)
	assert.Equal(t, 20, opts.K)
	assert.Equal(t, 10, opts.HistoryWindow)
	assert.InDelta(t, 0.55, opts.Proportions.Train, 1e-12)
	assert.InDelta(t, 0.40, opts.Proportions.Validation, 1e-12)
}

func TestFactory_BuildFromSessionLogs(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	sessionsPath, backgroundPath := writeLogs(t, dir, 10)
	cfg := testConfig(dir, sessionsPath, backgroundPath)
	factory := NewFactory(cfg, zerolog.Nop())
	defer factory.Close()

	in, err := factory.LoadInputs()
	require.NoError(t, err)
	assert.Len(t, in.Sessions, 10)
	assert.True(t, in.Background.Contains("anchor 3"))

	adj, err := factory.CreateAdjacency(ctx, in)
	require.NoError(t, err)
	sugg, err := adj.Adjacent(ctx, "anchor 3", 20)
	require.NoError(t, err)
	require.Equal(t, 20, sugg.Len())
	assert.Equal(t, "anchor 3 next 0", sugg.Queries[0])
	assert.Equal(t, 20.0, sugg.Priors[0])

	p := factory.CreatePipeline(adj)
	result, err := p.Run(ctx, in.Sessions, in.Background)
	require.NoError(t, err)
	assert.Equal(t, 10, result.Stats.UsedSessions())

	report, err := p.Publish(ctx, result, factory.CreateExporter(), factory.CreateTrainer(), cfg.Trainer.ModelDir, cfg.Trainer.ModelPrefix)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(report.RunDir, "manifest.json"))
	assert.Equal(t, "nDCG@20", report.Metric)
	assert.FileExists(t, filepath.Join(cfg.Trainer.ModelDir, "m_next_querynDCG@20"))
}

func TestFactory_CreateAdjacencyFromStores(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	sessionsPath, backgroundPath := writeLogs(t, dir, 2)
	cfg := testConfig(dir, sessionsPath, backgroundPath)
	factory := NewFactory(cfg, zerolog.Nop())
	defer factory.Close()

	in, err := factory.LoadInputs()
	require.NoError(t, err)
	idx := adjacency.FromSessions(in.BackgroundSessions)

	t.Run("jsonl", func(t *testing.T) {
		cfg.Adjacency.Source = "jsonl"
		cfg.Adjacency.Path = filepath.Join(dir, "adjacency.jsonl")
		fh, err := os.Create(cfg.Adjacency.Path)
		require.NoError(t, err)
		require.NoError(t, adjacency.WriteJSONL(fh, idx))
		require.NoError(t, fh.Close())

		adj, err := factory.CreateAdjacency(ctx, nil)
		require.NoError(t, err)
		sugg, err := adj.Adjacent(ctx, "anchor 1", 3)
		require.NoError(t, err)
		assert.Equal(t, []string{"anchor 1 next 0", "anchor 1 next 1", "anchor 1 next 2"}, sugg.Queries)
	})

	t.Run("libsql", func(t *testing.T) {
		cfg.Adjacency.Source = "libsql"
		store, err := factory.CreateAdjacencyStore(ctx)
		require.NoError(t, err)
		require.NoError(t, store.Import(ctx, idx.Transitions()))

		adj, err := factory.CreateAdjacency(ctx, nil)
		require.NoError(t, err)
		sugg, err := adj.Adjacent(ctx, "anchor 0", 2)
		require.NoError(t, err)
		assert.Equal(t, []string{"anchor 0 next 0", "anchor 0 next 1"}, sugg.Queries)
		assert.Equal(t, []float64{20, 19}, sugg.Priors)
	})

	t.Run("unknown", func(t *testing.T) {
		cfg.Adjacency.Source = "redis"
		_, err := factory.CreateAdjacency(ctx, nil)
		assert.Error(t, err)
	})
}
