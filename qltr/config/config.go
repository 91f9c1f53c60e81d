package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	internal "github.com/ZanzyTHEbar/query-ltr/qltr"

	"github.com/spf13/viper"
)

// Config stores all configuration of the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	Sessions   SessionsConfig   `mapstructure:"sessions"`
	Background BackgroundConfig `mapstructure:"background"`
	Candidates CandidatesConfig `mapstructure:"candidates"`
	Split      SplitConfig      `mapstructure:"split"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	Adjacency  AdjacencyConfig  `mapstructure:"adjacency"`
	Export     ExportConfig     `mapstructure:"export"`
	Trainer    TrainerConfig    `mapstructure:"trainer"`
}

// SessionsConfig stores where the session log lives and how it is read.
type SessionsConfig struct {
	Path      string `mapstructure:"path"`      // Session log, one session per line
	Delimiter string `mapstructure:"delimiter"` // Field delimiter between queries
	Max       int    `mapstructure:"max"`       // Sessions processed per run (0 = all)
}

// BackgroundConfig stores background corpus settings.
type BackgroundConfig struct {
	Path     string `mapstructure:"path"`      // Optional corpus file; empty means derive from sessions
	NoiseTop int    `mapstructure:"noise_top"` // Most frequent queries eligible as noise
}

// CandidatesConfig stores candidate selection and feature window settings.
type CandidatesConfig struct {
	K             int `mapstructure:"k"`              // Candidates returned per anchor
	Min           int `mapstructure:"min"`            // Minimum candidates to accept a session
	HistoryWindow int `mapstructure:"history_window"` // Recent history entries per scorer
}

// SplitConfig stores dataset partition proportions.
type SplitConfig struct {
	Train      float64 `mapstructure:"train"`      // Fraction of groups used for training
	Validation float64 `mapstructure:"validation"` // Fraction of the remaining groups used for validation
	GroupSize  int     `mapstructure:"group_size"` // Rows per query group
}

// PipelineConfig stores run-level settings.
type PipelineConfig struct {
	Experiment string `mapstructure:"experiment"` // "next_query", "noisy", "long_tail"
	Workers    int    `mapstructure:"workers"`    // Session workers; 1 is sequential
	Seed       int64  `mapstructure:"seed"`       // Seed for the noise policy
}

// AdjacencyConfig stores where successor statistics come from.
type AdjacencyConfig struct {
	Source        string        `mapstructure:"source"`         // "sessions", "libsql", "jsonl"
	Path          string        `mapstructure:"path"`           // JSONL table when source is jsonl
	DSN           string        `mapstructure:"dsn"`            // libsql database file
	CacheCapacity int           `mapstructure:"cache_capacity"` // LRU capacity for lookups
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`      // Lookup cache entry TTL
}

// ExportConfig stores ranking dataset export settings.
type ExportConfig struct {
	Dir    string `mapstructure:"dir"`    // Output directory for partitions
	Format string `mapstructure:"format"` // "letor"
}

// TrainerConfig stores settings handed to the ranker trainer.
type TrainerConfig struct {
	Algorithm    string  `mapstructure:"algorithm"`     // "linear" or "prior"
	Metric       string  `mapstructure:"metric"`        // Evaluation metric, e.g. nDCG@20
	Epochs       int     `mapstructure:"epochs"`        // Passes over the training groups
	LearningRate float64 `mapstructure:"learning_rate"` // Step size
	Subsample    float64 `mapstructure:"subsample"`     // Fraction of groups visited per epoch
	Seed         int64   `mapstructure:"seed"`          // Seed for group sampling
	ModelDir     string  `mapstructure:"model_dir"`     // Where models are saved
	ModelPrefix  string  `mapstructure:"model_prefix"`  // Saved model name prefix
}

var AppConfig Config

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("..")
		v.AddConfigPath(filepath.Join("etc", internal.DefaultAppName))
		v.AddConfigPath(internal.DefaultConfigPath)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	v.AutomaticEnv()
	// Replace dots with underscores in env var names e.g. sessions.path becomes SESSIONS_PATH
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found; defaults will be used.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	AppConfig = cfg
	return &AppConfig, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("sessions.path", internal.DefaultSessionLog)
	v.SetDefault("sessions.delimiter", internal.DefaultSessionDelim)
	v.SetDefault("sessions.max", internal.DefaultMaxSessions)

	v.SetDefault("background.path", "")
	v.SetDefault("background.noise_top", 100)

	v.SetDefault("candidates.k", 20)
	v.SetDefault("candidates.min", 20)
	v.SetDefault("candidates.history_window", 10)

	// 55% train, 20% validation, 25% test
	v.SetDefault("split.train", 0.55)
	v.SetDefault("split.validation", 0.40)
	v.SetDefault("split.group_size", 20)

	v.SetDefault("pipeline.experiment", internal.DefaultExperiment)
	v.SetDefault("pipeline.workers", 1)
	v.SetDefault("pipeline.seed", 1)

	v.SetDefault("adjacency.source", internal.DefaultAdjacencySource)
	v.SetDefault("adjacency.path", "")
	v.SetDefault("adjacency.dsn", internal.DefaultDatabaseDSN)
	v.SetDefault("adjacency.cache_capacity", 4096)
	v.SetDefault("adjacency.cache_ttl", "1h")

	v.SetDefault("export.dir", internal.DefaultExportDir)
	v.SetDefault("export.format", internal.DefaultExportFormat)

	v.SetDefault("trainer.algorithm", "linear")
	v.SetDefault("trainer.metric", internal.DefaultRankingMetric)
	v.SetDefault("trainer.epochs", 50)
	v.SetDefault("trainer.learning_rate", 0.1)
	v.SetDefault("trainer.subsample", 0.5)
	v.SetDefault("trainer.seed", 1)
	v.SetDefault("trainer.model_dir", internal.DefaultModelDir)
	v.SetDefault("trainer.model_prefix", "LambdaMART_L7_S0.1_E50_")
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Candidates.K <= 0 {
		return fmt.Errorf("candidates.k must be positive: %d", c.Candidates.K)
	}
	// Query groups are fixed size, so every accepted session must carry exactly k candidates.
	if c.Candidates.Min != c.Candidates.K {
		return fmt.Errorf("candidates.min (%d) must equal candidates.k (%d)", c.Candidates.Min, c.Candidates.K)
	}
	if c.Candidates.HistoryWindow <= 0 {
		return fmt.Errorf("candidates.history_window must be positive: %d", c.Candidates.HistoryWindow)
	}
	if c.Split.Train <= 0 || c.Split.Train >= 1 {
		return fmt.Errorf("split.train must be in (0, 1): %v", c.Split.Train)
	}
	if c.Split.Validation <= 0 || c.Split.Validation >= 1 {
		return fmt.Errorf("split.validation must be in (0, 1): %v", c.Split.Validation)
	}
	if c.Split.GroupSize != c.Candidates.K {
		return fmt.Errorf("split.group_size (%d) must equal candidates.k (%d)", c.Split.GroupSize, c.Candidates.K)
	}
	switch c.Pipeline.Experiment {
	case "next_query", "noisy", "long_tail":
	default:
		return fmt.Errorf("unknown pipeline.experiment %q", c.Pipeline.Experiment)
	}
	switch c.Adjacency.Source {
	case "sessions", "libsql", "jsonl":
	default:
		return fmt.Errorf("unknown adjacency.source %q", c.Adjacency.Source)
	}
	switch c.Trainer.Algorithm {
	case "linear", "prior":
	default:
		return fmt.Errorf("unknown trainer.algorithm %q", c.Trainer.Algorithm)
	}
	if c.Trainer.Subsample <= 0 || c.Trainer.Subsample > 1 {
		return fmt.Errorf("trainer.subsample must be in (0, 1]: %v", c.Trainer.Subsample)
	}
	return nil
}
