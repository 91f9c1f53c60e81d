package adapters

import (
	"context"
	"database/sql"
	"fmt"

	ports "github.com/ZanzyTHEbar/query-ltr/qltr/ranking/ports"
)

// Transition is one observed anchor -> successor count.
type Transition struct {
	Anchor    string `json:"anchor"`
	Successor string `json:"successor"`
	Frequency int    `json:"frequency"`
}

// LibSQLAdjacencyStore implements Adjacency over a persisted libsql table.
type LibSQLAdjacencyStore struct {
	db *sql.DB
}

// NewLibSQLAdjacencyStore creates a store on an already migrated database.
func NewLibSQLAdjacencyStore(db *sql.DB) *LibSQLAdjacencyStore {
	return &LibSQLAdjacencyStore{db: db}
}

// Import adds transitions, summing frequencies for pairs already stored.
func (s *LibSQLAdjacencyStore) Import(ctx context.Context, transitions []Transition) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin import: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO adjacency (anchor, successor, frequency)
		VALUES (?, ?, ?)
		ON CONFLICT (anchor, successor) DO UPDATE SET frequency = frequency + excluded.frequency
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare import: %w", err)
	}
	defer stmt.Close()

	for _, t := range transitions {
		if _, err := stmt.ExecContext(ctx, t.Anchor, t.Successor, t.Frequency); err != nil {
			return fmt.Errorf("failed to import %q -> %q: %w", t.Anchor, t.Successor, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit import: %w", err)
	}
	return nil
}

// Adjacent returns the most frequent successors of anchor.
func (s *LibSQLAdjacencyStore) Adjacent(ctx context.Context, anchor string, limit int) (ports.Suggestions, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT successor, frequency FROM adjacency
		WHERE anchor = ?
		ORDER BY frequency DESC, successor ASC
		LIMIT ?
	`, anchor, limit)
	if err != nil {
		return ports.Suggestions{}, fmt.Errorf("failed to query successors: %w", err)
	}
	defer rows.Close()

	var out ports.Suggestions
	for rows.Next() {
		var successor string
		var frequency int64
		if err := rows.Scan(&successor, &frequency); err != nil {
			return ports.Suggestions{}, fmt.Errorf("failed to scan successor: %w", err)
		}
		out.Queries = append(out.Queries, successor)
		out.Priors = append(out.Priors, float64(frequency))
	}
	if err := rows.Err(); err != nil {
		return ports.Suggestions{}, fmt.Errorf("error iterating successors: %w", err)
	}
	return out, nil
}

// Count returns the number of stored transitions.
func (s *LibSQLAdjacencyStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM adjacency").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count transitions: %w", err)
	}
	return n, nil
}

// Ensure LibSQLAdjacencyStore implements the Adjacency interface.
var _ ports.Adjacency = (*LibSQLAdjacencyStore)(nil)
