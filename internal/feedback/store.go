// Package feedback persists per-agent rating records and serves the
// "successful examples" read path used during prompt construction. Records
// are append-only from the caller's point of view; the store enforces a
// bounded retention window per agent so the log cannot grow without limit.
package feedback

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// retentionPerAgent bounds the stored records per agent. Writes beyond the
// bound evict the oldest rows, ring-buffer style.
const retentionPerAgent = 200

// Record is one stored (query, answer, rating) triple. Rating is normalized
// to [0,1].
type Record struct {
	Query     string
	Answer    string
	Rating    float64
	CreatedAt time.Time
}

// Store wraps a SQLite database holding feedback records.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the feedback database in dataDir and runs pending
// migrations. Pass ":memory:" as dataDir for an in-memory database (used by
// tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "feedback.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// A single connection both avoids "database is locked" errors and
	// serializes rating writes, which is all the write volume human rating
	// events produce.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate applies embedded SQL migrations that have not been run yet.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning migration %d: %w", version, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}
	return nil
}

// parseMigrationVersion extracts the numeric prefix from "NNN_name.sql".
func parseMigrationVersion(name string) (int, error) {
	idx := strings.IndexByte(name, '_')
	if idx <= 0 {
		return 0, fmt.Errorf("migration %s: missing numeric prefix", name)
	}
	v, err := strconv.Atoi(name[:idx])
	if err != nil {
		return 0, fmt.Errorf("migration %s: %w", name, err)
	}
	return v, nil
}

// Append stores a record for the agent and evicts rows beyond the retention
// bound, oldest first.
func (s *Store) Append(agent string, rec Record) error {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning feedback insert: %w", err)
	}

	if _, err := tx.Exec(
		`INSERT INTO feedback (agent, query, answer, rating, created_at) VALUES (?, ?, ?, ?, ?)`,
		agent, rec.Query, rec.Answer, rec.Rating, createdAt.Format(time.RFC3339),
	); err != nil {
		tx.Rollback()
		return fmt.Errorf("inserting feedback: %w", err)
	}

	if _, err := tx.Exec(
		`DELETE FROM feedback WHERE agent = ? AND id NOT IN (
			SELECT id FROM feedback WHERE agent = ? ORDER BY id DESC LIMIT ?
		)`,
		agent, agent, retentionPerAgent,
	); err != nil {
		tx.Rollback()
		return fmt.Errorf("evicting old feedback: %w", err)
	}

	return tx.Commit()
}

// Count returns the number of stored records for the agent.
func (s *Store) Count(agent string) (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM feedback WHERE agent = ?`, agent).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting feedback: %w", err)
	}
	return n, nil
}

// Sample returns up to n exemplar records for prompt steering: the
// best-rated recent answers, deterministically ordered. Per the acceptance
// contract it returns nothing until at least n records exist.
func (s *Store) Sample(agent string, n int) ([]Record, error) {
	if n <= 0 {
		return nil, nil
	}

	total, err := s.Count(agent)
	if err != nil {
		return nil, err
	}
	if total < n {
		return nil, nil
	}

	rows, err := s.db.Query(
		`SELECT query, answer, rating, created_at FROM feedback
		 WHERE agent = ? ORDER BY rating DESC, id DESC LIMIT ?`,
		agent, n,
	)
	if err != nil {
		return nil, fmt.Errorf("querying feedback: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var createdAt string
		if err := rows.Scan(&rec.Query, &rec.Answer, &rec.Rating, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning feedback row: %w", err)
		}
		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		rec.CreatedAt = t
		out = append(out, rec)
	}
	return out, rows.Err()
}
