package coverage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"spore.dev/pkg/spore/internal/model"
)

// FormDigest is the persisted content digest of one form, compared across
// runs by the change detector.
type FormDigest struct {
	Form   model.FormID
	File   model.Path
	Digest string
}

// Store owns the engine's persisted state: coverage units keyed by
// dependency hash, the per-form digest table and run summaries. Read/write
// ownership of the database belongs solely to the engine.
type Store struct {
	conn   *sql.DB
	dbPath string
}

// OpenStore opens or creates the state database under dir/.spore/spore.db.
func OpenStore(dir string) (*Store, error) {
	stateDir := filepath.Join(dir, ".spore")
	if err := os.MkdirAll(stateDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	dbPath := filepath.Join(stateDir, "spore.db")

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}

	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			_ = conn.Close()

			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	store := &Store{conn: conn, dbPath: dbPath}

	if err := store.initializeSchema(); err != nil {
		_ = conn.Close()

		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initializeSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS coverage_units (
			unit_id TEXT PRIMARY KEY,
			dep_hash TEXT NOT NULL,
			events TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS form_digests (
			form_id TEXT PRIMARY KEY,
			file TEXT NOT NULL,
			digest TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_form_digests_file ON form_digests(file);

		CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			created_at TEXT NOT NULL,
			score REAL NOT NULL
		);

		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		);
		INSERT OR REPLACE INTO schema_version (version) VALUES (1);
	`

	_, err := s.conn.Exec(schema)

	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}

	return nil
}

// Path returns the on-disk location of the state database.
func (s *Store) Path() string {
	return s.dbPath
}

// SaveUnits replaces the stored coverage units with the given set.
func (s *Store) SaveUnits(units []Unit) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec("DELETE FROM coverage_units"); err != nil {
		return fmt.Errorf("failed to clear coverage units: %w", err)
	}

	for _, unit := range units {
		events, err := json.Marshal(unit.Events)
		if err != nil {
			return fmt.Errorf("failed to encode events for unit %s: %w", unit.ID, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO coverage_units (unit_id, dep_hash, events) VALUES (?, ?, ?)",
			unit.ID, unit.DepHash, string(events),
		); err != nil {
			return fmt.Errorf("failed to save unit %s: %w", unit.ID, err)
		}
	}

	return tx.Commit()
}

// LoadUnits reads every stored coverage unit.
func (s *Store) LoadUnits() ([]Unit, error) {
	rows, err := s.conn.Query("SELECT unit_id, dep_hash, events FROM coverage_units ORDER BY unit_id")
	if err != nil {
		return nil, fmt.Errorf("failed to load coverage units: %w", err)
	}

	defer func() { _ = rows.Close() }()

	var units []Unit

	for rows.Next() {
		var (
			unit   Unit
			events string
		)

		if err := rows.Scan(&unit.ID, &unit.DepHash, &events); err != nil {
			return nil, fmt.Errorf("failed to scan coverage unit: %w", err)
		}

		if err := json.Unmarshal([]byte(events), &unit.Events); err != nil {
			// A corrupt unit is treated as stale: dropped here, recomputed
			// by the next refresh.
			slog.Warn("dropping undecodable coverage unit", "unit", unit.ID, "error", err)

			continue
		}

		units = append(units, unit)
	}

	return units, rows.Err()
}

// SaveFormDigests replaces the digest table for the given files only, so
// runs scoped to a subtree do not erase state for the rest of the project.
func (s *Store) SaveFormDigests(digests []FormDigest) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() { _ = tx.Rollback() }()

	files := make(map[model.Path]struct{})
	for _, d := range digests {
		files[d.File] = struct{}{}
	}

	for file := range files {
		if _, err := tx.Exec("DELETE FROM form_digests WHERE file = ?", string(file)); err != nil {
			return fmt.Errorf("failed to clear digests for %s: %w", file, err)
		}
	}

	for _, d := range digests {
		if _, err := tx.Exec(
			"INSERT OR REPLACE INTO form_digests (form_id, file, digest) VALUES (?, ?, ?)",
			string(d.Form), string(d.File), d.Digest,
		); err != nil {
			return fmt.Errorf("failed to save digest for %s: %w", d.Form, err)
		}
	}

	return tx.Commit()
}

// LoadFormDigests reads the stored per-form digest table.
func (s *Store) LoadFormDigests() ([]FormDigest, error) {
	rows, err := s.conn.Query("SELECT form_id, file, digest FROM form_digests ORDER BY form_id")
	if err != nil {
		return nil, fmt.Errorf("failed to load form digests: %w", err)
	}

	defer func() { _ = rows.Close() }()

	var digests []FormDigest

	for rows.Next() {
		var (
			form, file, digest string
		)

		if err := rows.Scan(&form, &file, &digest); err != nil {
			return nil, fmt.Errorf("failed to scan form digest: %w", err)
		}

		digests = append(digests, FormDigest{
			Form:   model.FormID(form),
			File:   model.Path(file),
			Digest: digest,
		})
	}

	return digests, rows.Err()
}

// RecordRun stores the identity and score of a finished run.
func (s *Store) RecordRun(runID string, score float64) error {
	_, err := s.conn.Exec(
		"INSERT OR REPLACE INTO runs (run_id, created_at, score) VALUES (?, ?, ?)",
		runID, time.Now().UTC().Format(time.RFC3339), score,
	)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}

	return nil
}
