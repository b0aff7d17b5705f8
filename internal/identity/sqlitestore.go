package identity

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/Boblepointu/chaosbrowser/api/schemas"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS personas (
    id           TEXT PRIMARY KEY,
    record       TEXT NOT NULL,
    created_at   TEXT NOT NULL,
    last_used_at TEXT NOT NULL,
    use_count    INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS metadata (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);`

// SQLiteBackend persists the document in an embedded SQLite database. The
// persona record itself is stored as JSON; the usage columns are duplicated
// for ad hoc inspection with the sqlite3 shell.
type SQLiteBackend struct {
	db *sql.DB
}

// NewSQLiteBackend opens or creates the database at path and ensures the
// schema exists.
func NewSQLiteBackend(ctx context.Context, path string) (*SQLiteBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?mode=rwc&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open persona database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping persona database: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize persona schema: %w", err)
	}

	return &SQLiteBackend{db: db}, nil
}

func (b *SQLiteBackend) Load(ctx context.Context) (*Document, error) {
	doc := NewDocument()

	rows, err := b.db.QueryContext(ctx, `SELECT record FROM personas`)
	if err != nil {
		return nil, fmt.Errorf("failed to query personas: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var record string
		if err := rows.Scan(&record); err != nil {
			return nil, fmt.Errorf("failed to scan persona row: %w", err)
		}
		var p schemas.Persona
		if err := json.Unmarshal([]byte(record), &p); err != nil {
			return nil, fmt.Errorf("persona record is corrupt: %w", err)
		}
		doc.Personas[p.ID] = &p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during persona row iteration: %w", err)
	}

	var meta string
	err = b.db.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = 'aggregate'`).Scan(&meta)
	switch {
	case err == sql.ErrNoRows:
		// Fresh database.
	case err != nil:
		return nil, fmt.Errorf("failed to load store metadata: %w", err)
	default:
		if err := json.Unmarshal([]byte(meta), &doc.Metadata); err != nil {
			return nil, fmt.Errorf("store metadata is corrupt: %w", err)
		}
	}

	return doc, nil
}

// Save rewrites the full document in one transaction. The pool is capped at
// store.max_personas, so a whole-document write stays cheap and keeps the
// single-writer semantics identical to the file backend.
func (b *SQLiteBackend) Save(ctx context.Context, doc *Document) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, `DELETE FROM personas`); err != nil {
		return fmt.Errorf("failed to clear personas: %w", err)
	}

	const insert = `INSERT INTO personas (id, record, created_at, last_used_at, use_count) VALUES (?, ?, ?, ?, ?)`
	for _, p := range doc.Personas {
		record, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("failed to marshal persona %s: %w", p.ID, err)
		}
		if _, err := tx.ExecContext(ctx, insert,
			p.ID, string(record),
			p.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
			p.LastUsedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
			p.UseCount,
		); err != nil {
			return fmt.Errorf("failed to insert persona %s: %w", p.ID, err)
		}
	}

	meta, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal store metadata: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO metadata (key, value) VALUES ('aggregate', ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value`, string(meta)); err != nil {
		return fmt.Errorf("failed to save store metadata: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit persona store: %w", err)
	}
	return nil
}

func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}
