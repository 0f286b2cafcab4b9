// Package store persists learned engine state across process restarts.
// Q-tables, conditional probability tables, rule weights, and the decision
// history are saved as opaque snapshots keyed by engine name; the store
// never interprets the payloads.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"noesis/internal/logging"
	"noesis/internal/types"
)

// LearnedStore is the SQLite-backed learning-persistence collaborator.
// It implements types.SnapshotPersistence.
type LearnedStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// NewLearnedStore opens (or creates) the database at the given path.
func NewLearnedStore(path string) (*LearnedStore, error) {
	timer := logging.StartTimer(logging.CategoryStore, "NewLearnedStore")
	defer timer.Stop()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("set busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("set journal_mode=WAL: %v", err)
	}

	s := &LearnedStore{db: db, dbPath: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logging.Store("LearnedStore ready at %s", path)
	return s, nil
}

func (s *LearnedStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS snapshots (
		engine     TEXT PRIMARY KEY,
		payload    BLOB NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);
	CREATE TABLE IF NOT EXISTS decisions (
		id                TEXT PRIMARY KEY,
		selected_paradigm TEXT NOT NULL,
		confidence        REAL NOT NULL,
		detail            BLOB NOT NULL,
		created_at        TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_decisions_created ON decisions(created_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("initialize schema: %w", err)
	}
	return nil
}

// SaveSnapshot implements types.SnapshotPersistence. The previous snapshot
// for the engine, if any, is replaced.
func (s *LearnedStore) SaveSnapshot(ctx context.Context, engine string, payload []byte) error {
	if engine == "" {
		return fmt.Errorf("empty engine name")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO snapshots (engine, payload, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(engine) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		engine, payload, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save snapshot for %s: %w", engine, err)
	}

	logging.StoreDebug("SaveSnapshot: %s (%d bytes)", engine, len(payload))
	return nil
}

// LoadSnapshot implements types.SnapshotPersistence. A missing snapshot
// returns nil payload and nil error: a fresh engine is not a failure.
func (s *LearnedStore) LoadSnapshot(ctx context.Context, engine string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM snapshots WHERE engine = ?`, engine).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot for %s: %w", engine, err)
	}
	return payload, nil
}

// Engines lists the engines that have saved snapshots.
func (s *LearnedStore) Engines(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT engine FROM snapshots ORDER BY engine`)
	if err != nil {
		return nil, fmt.Errorf("list engines: %w", err)
	}
	defer rows.Close()

	var engines []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		engines = append(engines, name)
	}
	return engines, rows.Err()
}

// ArchiveDecisions appends meta-decisions to the durable history. Already
// archived ids are skipped, so callers can re-archive the full in-memory
// window on every flush.
func (s *LearnedStore) ArchiveDecisions(ctx context.Context, decisions []types.MetaDecision) error {
	if len(decisions) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin archive: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO decisions (id, selected_paradigm, confidence, detail, created_at)
		 VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare archive: %w", err)
	}
	defer stmt.Close()

	for _, d := range decisions {
		detail, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("marshal decision %s: %w", d.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, d.ID, d.SelectedParadigm, d.Confidence, detail, d.CreatedAt.UTC()); err != nil {
			return fmt.Errorf("archive decision %s: %w", d.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit archive: %w", err)
	}
	logging.StoreDebug("ArchiveDecisions: %d decisions", len(decisions))
	return nil
}

// RecentDecisions loads the newest archived decisions, most recent first.
func (s *LearnedStore) RecentDecisions(ctx context.Context, limit int) ([]types.MetaDecision, error) {
	if limit <= 0 {
		limit = 100
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT detail FROM decisions ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("load decisions: %w", err)
	}
	defer rows.Close()

	var out []types.MetaDecision
	for rows.Next() {
		var detail []byte
		if err := rows.Scan(&detail); err != nil {
			return nil, err
		}
		var d types.MetaDecision
		if err := json.Unmarshal(detail, &d); err != nil {
			return nil, fmt.Errorf("unmarshal decision: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (s *LearnedStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
