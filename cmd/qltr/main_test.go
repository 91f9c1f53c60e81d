package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, exitCode(nil))
	assert.Equal(t, ExitError, exitCode(errors.New("boom")))
	assert.Equal(t, ExitDataError, exitCode(fmt.Errorf("wrapped: %w", &exitError{code: ExitDataError, err: errors.New("x")})))
}

// writeFixture lays out logs and a config file under dir.
func writeFixture(t *testing.T, dir string, sessions int, experiment string) string {
	t.Helper()
	var bg, sess strings.Builder
	for i := 0; i < sessions; i++ {
		for j := 0; j < 20; j++ {
			for n := 0; n < 20-j; n++ {
				fmt.Fprintf(&bg, "anchor %d\tanchor %d next %d\n", i, i, j)
			}
		}
		fmt.Fprintf(&sess, "start\tanchor %d\tanchor %d next %d\n", i, i, i%20)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sessions.ctx"), []byte(sess.String()), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "background.ctx"), []byte(bg.String()), 0o644))

	cfg := fmt.Sprintf(`sessions:
  path: %[1]s/sessions.ctx
background:
  path: %[1]s/background.ctx
pipeline:
  experiment: %[2]s
adjacency:
  source: sessions
  dsn: %[1]s/db/adjacency.db
  path: %[1]s/adjacency.jsonl
export:
  dir: %[1]s/export
trainer:
  model_dir: %[1]s/models
`, dir, experiment)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	// flag values persist on the package-level commands between runs
	buildFlags.sessions, buildFlags.experiment = "", ""
	buildFlags.workers, buildFlags.maxSessions, buildFlags.skipTrain = 0, -1, false
	importFlags.to, importFlags.out = "libsql", ""
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestBuildCommand(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFixture(t, dir, 10, "next_query")

	out, err := execute(t, "build", "--config", cfgPath, "--workers", "2")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.DirExists(t, lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "nDCG@20="))
	assert.FileExists(t, filepath.Join(dir, "models", "LambdaMART_L7_S0.1_E50_next_querynDCG@20"))
}

func TestBuildCommand_TooFewSessions(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFixture(t, dir, 3, "next_query")

	_, err := execute(t, "build", "--config", cfgPath, "--skip-train")
	require.Error(t, err)
	assert.Equal(t, ExitDataError, exitCode(err))
}

func TestBuildCommand_InvalidExperiment(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFixture(t, dir, 10, "next_query")

	_, err := execute(t, "build", "--config", cfgPath, "--experiment", "bogus")
	require.Error(t, err)
	assert.Equal(t, ExitConfigError, exitCode(err))
}

func TestAdjacencyImportAndLookup(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFixture(t, dir, 2, "next_query")

	_, err := execute(t, "adjacency", "import", "--config", cfgPath, "--to", "jsonl")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "adjacency.jsonl"))

	out, err := execute(t, "adjacency", "lookup", "--config", cfgPath, "anchor 1")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 20)
	assert.Equal(t, "20\tanchor 1 next 0", lines[0])
}
