package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	internal "github.com/ZanzyTHEbar/query-ltr/qltr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// ConfigTestSuite tests the config package functionality
type ConfigTestSuite struct {
	suite.Suite
	tempDir string
	origDir string
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}

func (suite *ConfigTestSuite) SetupTest() {
	var err error
	suite.origDir, err = os.Getwd()
	require.NoError(suite.T(), err)

	suite.tempDir = suite.T().TempDir()
	require.NoError(suite.T(), os.Chdir(suite.tempDir))
}

func (suite *ConfigTestSuite) TearDownTest() {
	if suite.origDir != "" {
		os.Chdir(suite.origDir)
	}
}

func (suite *ConfigTestSuite) TestLoadConfigWithDefaults() {
	cfg, err := LoadConfig("")

	require.NoError(suite.T(), err)
	require.NotNil(suite.T(), cfg)

	assert.Equal(suite.T(), internal.DefaultSessionLog, cfg.Sessions.Path)
	assert.Equal(suite.T(), "\t", cfg.Sessions.Delimiter)
	assert.Equal(suite.T(), 1000, cfg.Sessions.Max)
	assert.Equal(suite.T(), 100, cfg.Background.NoiseTop)
	assert.Equal(suite.T(), 20, cfg.Candidates.K)
	assert.Equal(suite.T(), 20, cfg.Candidates.Min)
	assert.Equal(suite.T(), 10, cfg.Candidates.HistoryWindow)
	assert.InDelta(suite.T(), 0.55, cfg.Split.Train, 1e-9)
	assert.InDelta(suite.T(), 0.40, cfg.Split.Validation, 1e-9)
	assert.Equal(suite.T(), 20, cfg.Split.GroupSize)
	assert.Equal(suite.T(), "next_query", cfg.Pipeline.Experiment)
	assert.Equal(suite.T(), "sessions", cfg.Adjacency.Source)
	assert.Equal(suite.T(), time.Hour, cfg.Adjacency.CacheTTL)
	assert.Equal(suite.T(), "nDCG@20", cfg.Trainer.Metric)
	assert.Equal(suite.T(), "linear", cfg.Trainer.Algorithm)
	assert.Equal(suite.T(), 50, cfg.Trainer.Epochs)
	assert.InDelta(suite.T(), 0.1, cfg.Trainer.LearningRate, 1e-12)
	assert.Equal(suite.T(), "LambdaMART_L7_S0.1_E50_", cfg.Trainer.ModelPrefix)
}

func (suite *ConfigTestSuite) TestLoadConfigWithFile() {
	configContent := `
sessions:
  path: "./sessions.ctx"
  max: 50
pipeline:
  experiment: "long_tail"
  workers: 4
adjacency:
  source: "jsonl"
  path: "./adj.jsonl"
  cache_ttl: "5m"
`

	configFile := filepath.Join(suite.tempDir, "config.yaml")
	require.NoError(suite.T(), os.WriteFile(configFile, []byte(configContent), 0o644))

	cfg, err := LoadConfig(configFile)

	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "./sessions.ctx", cfg.Sessions.Path)
	assert.Equal(suite.T(), 50, cfg.Sessions.Max)
	assert.Equal(suite.T(), "long_tail", cfg.Pipeline.Experiment)
	assert.Equal(suite.T(), 4, cfg.Pipeline.Workers)
	assert.Equal(suite.T(), "jsonl", cfg.Adjacency.Source)
	assert.Equal(suite.T(), 5*time.Minute, cfg.Adjacency.CacheTTL)
	// untouched sections keep defaults
	assert.Equal(suite.T(), 20, cfg.Candidates.K)
}

func (suite *ConfigTestSuite) TestLoadConfigInvalidFile() {
	cfg, err := LoadConfig("/nonexistent/path/config.yaml")

	assert.Error(suite.T(), err)
	assert.Nil(suite.T(), cfg)
}

func (suite *ConfigTestSuite) TestLoadConfigMalformedFile() {
	malformedContent := `
sessions:
  path: "./sessions.ctx"
  invalid_yaml: [unclosed bracket
`

	configFile := filepath.Join(suite.tempDir, "malformed.yaml")
	require.NoError(suite.T(), os.WriteFile(configFile, []byte(malformedContent), 0o644))

	cfg, err := LoadConfig(configFile)

	assert.Error(suite.T(), err)
	assert.Nil(suite.T(), cfg)
}

func (suite *ConfigTestSuite) TestLoadConfigRejectsUnknownExperiment() {
	configFile := filepath.Join(suite.tempDir, "config.yaml")
	require.NoError(suite.T(), os.WriteFile(configFile, []byte("pipeline:\n  experiment: \"sideways\"\n"), 0o644))

	cfg, err := LoadConfig(configFile)

	assert.Error(suite.T(), err)
	assert.Contains(suite.T(), err.Error(), "sideways")
	assert.Nil(suite.T(), cfg)
}

func (suite *ConfigTestSuite) TestAppConfigGlobal() {
	cfg, err := LoadConfig("")
	require.NoError(suite.T(), err)

	assert.Equal(suite.T(), cfg, &AppConfig)
}

// TestConfig_Validate covers the fixed-size group constraints
func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		return Config{
			Candidates: CandidatesConfig{K: 20, Min: 20, HistoryWindow: 10},
			Split:      SplitConfig{Train: 0.55, Validation: 0.40, GroupSize: 20},
			Pipeline:   PipelineConfig{Experiment: "noisy"},
			Adjacency:  AdjacencyConfig{Source: "libsql"},
			Trainer:    TrainerConfig{Algorithm: "linear", Subsample: 0.5},
		}
	}

	cfg := valid()
	assert.NoError(t, cfg.Validate())

	cfg = valid()
	cfg.Candidates.Min = 19
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.Split.GroupSize = 10
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.Split.Train = 1.0
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.Adjacency.Source = "redis"
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.Trainer.Algorithm = "lambdamart"
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.Trainer.Subsample = 0
	assert.Error(t, cfg.Validate())
}
