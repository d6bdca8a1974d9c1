package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/schemakit/schemakit/database"
	"github.com/schemakit/schemakit/schema"
)

// DefaultPath is where the registry lives unless the caller says otherwise.
const DefaultPath = ".schemakit/snapshots.db"

// Store keeps named schema snapshots in a single SQLite registry file. Each
// save appends a new version, so one name accumulates a history.
type Store struct {
	db *sql.DB
}

// Entry describes one saved snapshot.
type Entry struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	Tables    int       `json:"tables"`
}

// Open opens (or creates) a snapshot registry at the given path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create registry directory: %w", err)
		}
	}

	db, err := database.OpenSQLite(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot registry: %w", err)
	}

	if err := initializeRegistry(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize snapshot registry: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the registry file.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores a finalized schema under the given name and returns the new
// entry. The schema's declarative spec is what goes on disk, so loading it
// back and rebuilding yields an equivalent snapshot.
func (s *Store) Save(ctx context.Context, name string, sc *schema.Schema) (Entry, error) {
	if name == "" {
		return Entry{}, fmt.Errorf("snapshot name is required")
	}

	spec := sc.Spec()
	specJSON, err := json.Marshal(spec)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to marshal spec: %w", err)
	}

	tables := 0
	for _, ns := range spec.Namespaces {
		tables += len(ns.Tables)
	}

	entry := Entry{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
		Tables:    tables,
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO snapshots (id, name, created_at, table_count, spec_json) VALUES (?, ?, ?, ?, ?)",
		entry.ID, entry.Name, entry.CreatedAt.Format(time.RFC3339), entry.Tables, string(specJSON),
	)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to insert snapshot: %w", err)
	}

	return entry, nil
}

// Load resolves a snapshot by id or, failing that, by name. Names resolve to
// their most recent version.
func (s *Store) Load(ctx context.Context, ref string) (schema.Spec, Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, created_at, table_count, spec_json
		FROM snapshots
		WHERE id = ? OR name = ?
		ORDER BY id = ? DESC, created_at DESC, rowid DESC
		LIMIT 1
	`, ref, ref, ref)

	var entry Entry
	var createdAt, specJSON string
	if err := row.Scan(&entry.ID, &entry.Name, &createdAt, &entry.Tables, &specJSON); err != nil {
		if err == sql.ErrNoRows {
			return schema.Spec{}, Entry{}, fmt.Errorf("snapshot %q not found", ref)
		}
		return schema.Spec{}, Entry{}, fmt.Errorf("failed to load snapshot: %w", err)
	}

	ts, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return schema.Spec{}, Entry{}, fmt.Errorf("failed to parse snapshot timestamp: %w", err)
	}
	entry.CreatedAt = ts

	var spec schema.Spec
	if err := json.Unmarshal([]byte(specJSON), &spec); err != nil {
		return schema.Spec{}, Entry{}, fmt.Errorf("failed to unmarshal spec: %w", err)
	}

	return spec, entry, nil
}

// List returns every snapshot, newest first.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, created_at, table_count
		FROM snapshots
		ORDER BY created_at DESC, rowid DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		var createdAt string
		if err := rows.Scan(&entry.ID, &entry.Name, &createdAt, &entry.Tables); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		ts, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse snapshot timestamp: %w", err)
		}
		entry.CreatedAt = ts
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}
