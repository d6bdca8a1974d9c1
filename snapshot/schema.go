package snapshot

import "database/sql"

const (
	createSnapshotsTable = `
		CREATE TABLE IF NOT EXISTS snapshots (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			created_at TEXT NOT NULL,
			table_count INTEGER NOT NULL,
			spec_json TEXT NOT NULL
		);
	`

	createSnapshotsNameIndex = `
		CREATE INDEX IF NOT EXISTS idx_snapshots_name
		ON snapshots(name);
	`
)

// initializeRegistry creates the registry tables in the SQLite file
func initializeRegistry(db *sql.DB) error {
	schemas := []string{
		createSnapshotsTable,
		createSnapshotsNameIndex,
	}

	for _, ddl := range schemas {
		if _, err := db.Exec(ddl); err != nil {
			return err
		}
	}

	return nil
}
