// Package qltr holds application-wide defaults shared by the config layer and the
// ranking dataset pipeline.
package qltr

import (
	"os"
	"path/filepath"
)

const (
	DefaultAppName = "qltr"

	// DefaultSessionLog is the tab separated session log, one session per line.
	DefaultSessionLog      = "../data/tr_session.ctx"
	DefaultSessionDelim    = "\t"
	DefaultMaxSessions     = 1000
	DefaultDatabaseType    = "libsql"
	DefaultExportFormat    = "letor"
	DefaultRankingMetric   = "nDCG@20"
	DefaultExperiment      = "next_query"
	DefaultAdjacencySource = "sessions"
)

var (
	DefaultConfigPath  = filepath.Join(userConfigDir(), DefaultAppName)
	DefaultCacheDir    = filepath.Join(userCacheDir(), DefaultAppName)
	DefaultDatabaseDir = filepath.Join(DefaultCacheDir, "db")
	DefaultDatabaseDSN = filepath.Join(DefaultDatabaseDir, "adjacency.db")
	DefaultExportDir   = filepath.Join(DefaultCacheDir, "datasets")
	DefaultModelDir    = filepath.Join(DefaultCacheDir, "models")
)

func userConfigDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return dir
	}
	return "."
}

func userCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return dir
	}
	return os.TempDir()
}
