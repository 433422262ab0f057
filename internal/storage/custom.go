package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openct/openct-cms/internal/cms"
	domerrors "github.com/openct/openct-cms/internal/errors"
)

// SetAdvancedCustom stores info, replacing any schema saved under the same
// school name (case-insensitive).
func (db *DB) SetAdvancedCustom(ctx context.Context, info cms.AdvancedCustomInfo) error {
	if strings.TrimSpace(info.SchoolName) == "" {
		return fmt.Errorf("%w: school name is required", domerrors.ErrInvalidInput)
	}

	data, err := json.Marshal(info.ClassTable)
	if err != nil {
		return fmt.Errorf("encode advanced custom: %w", err)
	}

	return db.withTx(ctx, func(tx *sql.Tx) error {
		query := `
			INSERT INTO advanced_custom (school_name, class_table, updated_at)
			VALUES (?, ?, ?)
			ON CONFLICT(school_name) DO UPDATE SET
				school_name = excluded.school_name,
				class_table = excluded.class_table,
				updated_at = excluded.updated_at
		`
		if _, err := tx.ExecContext(ctx, query, info.SchoolName, string(data), time.Now().Unix()); err != nil {
			return fmt.Errorf("save advanced custom: %w", err)
		}
		return nil
	})
}

// GetAdvancedCustom returns the schema stored for schoolName. It returns an
// error wrapping ErrNotFound when there is none.
func (db *DB) GetAdvancedCustom(ctx context.Context, schoolName string) (*cms.AdvancedCustomInfo, error) {
	query := `SELECT school_name, class_table FROM advanced_custom WHERE school_name = ?`

	var info cms.AdvancedCustomInfo
	var data string
	err := db.conn.QueryRowContext(ctx, query, schoolName).Scan(&info.SchoolName, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("advanced custom %q: %w", schoolName, domerrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query advanced custom: %w", err)
	}

	if err := json.Unmarshal([]byte(data), &info.ClassTable); err != nil {
		return nil, fmt.Errorf("decode advanced custom: %w", err)
	}
	return &info, nil
}

// ListAdvancedCustom returns every stored schema sorted by school name.
func (db *DB) ListAdvancedCustom(ctx context.Context) ([]cms.AdvancedCustomInfo, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT school_name, class_table FROM advanced_custom ORDER BY school_name`)
	if err != nil {
		return nil, fmt.Errorf("query advanced custom: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []cms.AdvancedCustomInfo
	for rows.Next() {
		var info cms.AdvancedCustomInfo
		var data string
		if err := rows.Scan(&info.SchoolName, &data); err != nil {
			return nil, fmt.Errorf("scan advanced custom: %w", err)
		}
		if err := json.Unmarshal([]byte(data), &info.ClassTable); err != nil {
			return nil, fmt.Errorf("decode advanced custom %q: %w", info.SchoolName, err)
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// DeleteAdvancedCustom removes the schema stored for schoolName. Deleting a
// missing entry returns an error wrapping ErrNotFound.
func (db *DB) DeleteAdvancedCustom(ctx context.Context, schoolName string) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM advanced_custom WHERE school_name = ?`, schoolName)
		if err != nil {
			return fmt.Errorf("delete advanced custom: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("advanced custom %q: %w", schoolName, domerrors.ErrNotFound)
		}
		return nil
	})
}

// SetCustomInstitution stores inst as the single user-defined institution,
// replacing the previous one.
func (db *DB) SetCustomInstitution(ctx context.Context, inst cms.Institution) error {
	if strings.TrimSpace(inst.Name) == "" {
		return fmt.Errorf("%w: institution name is required", domerrors.ErrInvalidInput)
	}

	data, err := json.Marshal(inst)
	if err != nil {
		return fmt.Errorf("encode custom institution: %w", err)
	}

	return db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM custom_institution`); err != nil {
			return fmt.Errorf("clear custom institution: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO custom_institution (id, data, updated_at) VALUES (1, ?, ?)`,
			string(data), time.Now().Unix()); err != nil {
			return fmt.Errorf("save custom institution: %w", err)
		}
		return nil
	})
}

// GetCustomInstitution returns the stored custom institution or an error
// wrapping ErrNotFound.
func (db *DB) GetCustomInstitution(ctx context.Context) (*cms.Institution, error) {
	var data string
	err := db.conn.QueryRowContext(ctx, `SELECT data FROM custom_institution WHERE id = 1`).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("custom institution: %w", domerrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query custom institution: %w", err)
	}

	var inst cms.Institution
	if err := json.Unmarshal([]byte(data), &inst); err != nil {
		return nil, fmt.Errorf("decode custom institution: %w", err)
	}
	return &inst, nil
}

// DeleteCustomInstitution removes the stored custom institution, if any.
func (db *DB) DeleteCustomInstitution(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM custom_institution`); err != nil {
		return fmt.Errorf("delete custom institution: %w", err)
	}
	return nil
}
