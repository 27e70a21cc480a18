package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/hpungsan/will/internal/errors"
)

// Alarm is a persisted one-shot reminder.
type Alarm struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	URL       string `json:"url,omitempty"`
	FireAt    int64  `json:"fire_at"` // unix ms
	CreatedAt int64  `json:"created_at"`
}

// GetValue returns the raw JSON stored under key.
// The second return value is false when the key has never been written.
func GetValue(ctx context.Context, db *sql.DB, key string) ([]byte, bool, error) {
	var value string
	err := db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.NewInternal(err)
	}
	return []byte(value), true, nil
}

// PutValue stores value under key, replacing any previous value.
func PutValue(ctx context.Context, db *sql.DB, key string, value []byte) error {
	query := `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`
	if _, err := db.ExecContext(ctx, query, key, string(value), time.Now().UnixMilli()); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// DeleteValue removes key. Deleting a missing key is not an error.
func DeleteValue(ctx context.Context, db *sql.DB, key string) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// CountValues returns the number of stored keys.
func CountValues(ctx context.Context, db *sql.DB) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM kv`).Scan(&n); err != nil {
		return 0, errors.NewInternal(err)
	}
	return n, nil
}

// InsertAlarm stores a new alarm.
func InsertAlarm(ctx context.Context, db *sql.DB, a *Alarm) error {
	query := `
		INSERT INTO alarms (id, name, url, fire_at, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query, a.ID, a.Name, toNullString(a.URL), a.FireAt, a.CreatedAt)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// ListAlarms returns all pending alarms, earliest first.
func ListAlarms(ctx context.Context, db *sql.DB) ([]Alarm, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, name, url, fire_at, created_at
		FROM alarms
		ORDER BY fire_at ASC, id ASC
	`)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	alarms := make([]Alarm, 0)
	for rows.Next() {
		var (
			a   Alarm
			url sql.NullString
		)
		if err := rows.Scan(&a.ID, &a.Name, &url, &a.FireAt, &a.CreatedAt); err != nil {
			return nil, errors.NewInternal(err)
		}
		a.URL = url.String
		alarms = append(alarms, a)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return alarms, nil
}

// DeleteAlarm removes an alarm by ID.
func DeleteAlarm(ctx context.Context, db *sql.DB, id string) error {
	result, err := db.ExecContext(ctx, `DELETE FROM alarms WHERE id = ?`, id)
	if err != nil {
		return errors.NewInternal(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFound(id)
	}
	return nil
}

// KV adapts the kv table to the small Get/Put/Delete interface consumers declare.
type KV struct {
	db *sql.DB
}

// NewKV wraps an initialized database.
func NewKV(db *sql.DB) *KV {
	return &KV{db: db}
}

// Get returns the raw value for key.
func (k *KV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return GetValue(ctx, k.db, key)
}

// Put stores the raw value for key.
func (k *KV) Put(ctx context.Context, key string, value []byte) error {
	return PutValue(ctx, k.db, key, value)
}

// Delete removes key.
func (k *KV) Delete(ctx context.Context, key string) error {
	return DeleteValue(ctx, k.db, key)
}

// toNullString converts an optional string to sql.NullString.
func toNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
