// Package session loads search sessions and the background query corpus.
package session

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrShortSession marks a session that cannot yield an anchor/target pair.
var ErrShortSession = errors.New("session has fewer than two queries")

// Query is a whitespace-delimited search string. Equality is exact string match.
type Query = string

// Session is the ordered list of queries one user issued in one time window.
type Session []Query

// Anchor returns the second-to-last query.
func (s Session) Anchor() (Query, error) {
	if len(s) < 2 {
		return "", ErrShortSession
	}
	return s[len(s)-2], nil
}

// Target returns the last query, the ground truth next query.
func (s Session) Target() (Query, error) {
	if len(s) < 2 {
		return "", ErrShortSession
	}
	return s[len(s)-1], nil
}

// History returns at most window queries strictly preceding the target,
// most recent last.
func (s Session) History(window int) []Query {
	if len(s) < 2 {
		return nil
	}
	end := len(s) - 1
	start := end - window
	if start < 0 {
		start = 0
	}
	return s[start:end]
}

// Clone returns an independent copy, so perturbations never touch loaded data.
func (s Session) Clone() Session {
	out := make(Session, len(s))
	copy(out, s)
	return out
}

// Terms splits a query on whitespace.
func Terms(q Query) []string {
	return strings.Fields(q)
}

// Loader reads a session log with one session per line.
type Loader struct {
	Path      string
	Delimiter string
}

// NewLoader creates a loader for the given path; an empty delimiter means tab.
func NewLoader(path, delimiter string) *Loader {
	if delimiter == "" {
		delimiter = "\t"
	}
	return &Loader{Path: path, Delimiter: delimiter}
}

// Load reads every session in the log.
func (l *Loader) Load() ([]Session, error) {
	f, err := os.Open(l.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open session log %s: %w", l.Path, err)
	}
	defer f.Close()

	sessions, err := Parse(f, l.Delimiter)
	if err != nil {
		return nil, fmt.Errorf("failed to read session log %s: %w", l.Path, err)
	}
	return sessions, nil
}

// Parse reads sessions from r. Blank lines are skipped.
func Parse(r io.Reader, delimiter string) ([]Session, error) {
	var sessions []Session
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if line == "" {
			continue
		}
		sessions = append(sessions, Session(strings.Split(line, delimiter)))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}
