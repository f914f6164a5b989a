package runlog

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore opens (or creates) a SQLite-backed store.
// Use ":memory:" for an in-memory database, or a file path for persistent storage.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent and serializes writers.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS run_log (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp INTEGER NOT NULL,
		severity TEXT NOT NULL,
		run_id INTEGER NOT NULL,
		stage TEXT NOT NULL,
		message TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_run_log_run_id ON run_log(run_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Append inserts e and returns it with the assigned sequence number.
func (s *SQLiteStore) Append(ctx context.Context, e Entry) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO run_log (timestamp, severity, run_id, stage, message) VALUES (?, ?, ?, ?, ?)",
		e.Timestamp.UnixNano(), string(e.Severity), int64(e.RunID), e.Stage, e.Message,
	)
	if err != nil {
		return e, fmt.Errorf("insert entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return e, fmt.Errorf("read entry id: %w", err)
	}
	e.Seq = uint64(id)
	return e, nil
}

// ReadAll returns all entries ordered by sequence.
func (s *SQLiteStore) ReadAll(ctx context.Context) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT seq, timestamp, severity, run_id, stage, message FROM run_log ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e        Entry
			seq      int64
			tsNano   int64
			severity string
			runID    int64
		)
		if err := rows.Scan(&seq, &tsNano, &severity, &runID, &e.Stage, &e.Message); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.Seq = uint64(seq)
		e.Timestamp = time.Unix(0, tsNano)
		e.Severity = Severity(severity)
		e.RunID = uint64(runID)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return entries, nil
}

// LastRunID returns the highest run id recorded, or 0 for an empty log.
func (s *SQLiteStore) LastRunID(ctx context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var id sql.NullInt64
	if err := s.db.QueryRowContext(ctx, "SELECT MAX(run_id) FROM run_log").Scan(&id); err != nil {
		return 0, fmt.Errorf("query last run id: %w", err)
	}
	return uint64(id.Int64), nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
