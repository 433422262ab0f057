package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// InitSchema creates all necessary tables and indexes.
// Pragmas (WAL, busy_timeout) are set per connection in db.go's dsn.
func InitSchema(ctx context.Context, db *sql.DB) error {
	if err := createClassesTable(ctx, db); err != nil {
		return err
	}
	if err := createGradesTable(ctx, db); err != nil {
		return err
	}
	if err := createAdvancedCustomTable(ctx, db); err != nil {
		return err
	}
	return createCustomInstitutionTable(ctx, db)
}

// createClassesTable stores one row per schedule slot. position preserves
// the row-major order (row*7 + weekday) so a stored set reads back exactly.
func createClassesTable(ctx context.Context, db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS classes (
		institution TEXT NOT NULL COLLATE NOCASE,
		position INTEGER NOT NULL,
		data TEXT NOT NULL,
		synced_at INTEGER NOT NULL,
		PRIMARY KEY (institution, position)
	);
	`

	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create classes table: %w", err)
	}

	return nil
}

func createGradesTable(ctx context.Context, db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS grades (
		institution TEXT NOT NULL COLLATE NOCASE,
		position INTEGER NOT NULL,
		data TEXT NOT NULL,
		synced_at INTEGER NOT NULL,
		PRIMARY KEY (institution, position)
	);
	`

	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create grades table: %w", err)
	}

	return nil
}

func createAdvancedCustomTable(ctx context.Context, db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS advanced_custom (
		school_name TEXT PRIMARY KEY COLLATE NOCASE,
		class_table TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`

	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create advanced_custom table: %w", err)
	}

	return nil
}

// createCustomInstitutionTable holds at most one user-defined institution;
// the CHECK pins the only allowed id.
func createCustomInstitutionTable(ctx context.Context, db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS custom_institution (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		data TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`

	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create custom_institution table: %w", err)
	}

	return nil
}
