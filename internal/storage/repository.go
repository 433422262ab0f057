package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/openct/openct-cms/internal/cms"
)

// ReplaceClasses replaces the stored schedule of institution with classes
// in a single transaction. Readers see either the old or the new set.
func (db *DB) ReplaceClasses(ctx context.Context, institution string, classes []cms.ClassInfo) error {
	return replaceRecords(ctx, db, "classes", institution, classes)
}

// GetClasses returns the stored schedule of institution in stored order.
// An institution that was never synced yields an empty slice.
func (db *DB) GetClasses(ctx context.Context, institution string) ([]cms.ClassInfo, error) {
	return getRecords[cms.ClassInfo](ctx, db, "classes", institution)
}

// ReplaceGrades replaces the stored grades of institution.
func (db *DB) ReplaceGrades(ctx context.Context, institution string, grades []cms.GradeInfo) error {
	return replaceRecords(ctx, db, "grades", institution, grades)
}

// GetGrades returns the stored grades of institution in stored order.
func (db *DB) GetGrades(ctx context.Context, institution string) ([]cms.GradeInfo, error) {
	return getRecords[cms.GradeInfo](ctx, db, "grades", institution)
}

// Summaries reports stored record counts per institution, sorted by name.
func (db *DB) Summaries(ctx context.Context) ([]InstitutionSummary, error) {
	query := `
		SELECT institution, SUM(classes), SUM(grades), MAX(synced_at) FROM (
			SELECT institution, COUNT(*) AS classes, 0 AS grades, MAX(synced_at) AS synced_at
			FROM classes GROUP BY institution
			UNION ALL
			SELECT institution, 0, COUNT(*), MAX(synced_at)
			FROM grades GROUP BY institution
		) GROUP BY institution COLLATE NOCASE ORDER BY institution COLLATE NOCASE
	`

	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query summaries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []InstitutionSummary
	for rows.Next() {
		var s InstitutionSummary
		var syncedAt int64
		if err := rows.Scan(&s.Institution, &s.Classes, &s.Grades, &syncedAt); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		s.SyncedAt = time.Unix(syncedAt, 0).UTC()
		out = append(out, s)
	}
	return out, rows.Err()
}

// replaceRecords deletes every row of institution in table and inserts
// records in order. table is one of the package's own constants.
func replaceRecords[T any](ctx context.Context, db *DB, table, institution string, records []T) error {
	start := time.Now()
	syncedAt := start.Unix()

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE institution = ?", institution); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}

		stmt, err := tx.PrepareContext(ctx,
			"INSERT INTO "+table+" (institution, position, data, synced_at) VALUES (?, ?, ?, ?)")
		if err != nil {
			return fmt.Errorf("prepare %s insert: %w", table, err)
		}
		defer func() { _ = stmt.Close() }()

		for i, rec := range records {
			data, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("encode %s row %d: %w", table, i, err)
			}
			if _, err := stmt.ExecContext(ctx, institution, i, string(data), syncedAt); err != nil {
				return fmt.Errorf("insert %s row %d: %w", table, i, err)
			}
		}
		return nil
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to replace records",
			"table", table,
			"institution", institution,
			"error", err)
		return err
	}

	if duration := time.Since(start); duration > slowThreshold {
		slog.WarnContext(ctx, "slow database operation",
			"operation", "replace_"+table,
			"count", len(records),
			"duration_ms", duration.Milliseconds())
	}
	return nil
}

func getRecords[T any](ctx context.Context, db *DB, table, institution string) ([]T, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT data FROM "+table+" WHERE institution = ? ORDER BY position", institution)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	out := []T{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		var rec T
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, fmt.Errorf("decode %s row: %w", table, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", table, err)
	}
	return out, nil
}
