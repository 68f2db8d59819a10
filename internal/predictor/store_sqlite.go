package predictor

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const (
	defaultOverrideLimit = 50
	maxOverrideLimit     = 200
)

// Override is one recorded user override.
type Override struct {
	Key        Key       `json:"-"`
	Brightness uint8     `json:"brightness"`
	Previous   *uint8    `json:"previous,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// SQLiteStore implements Store on the preferences and override_history tables.
//
// Set upserts the preference and appends to the override history in one
// transaction, so history and table never disagree.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a store on an open, migrated database.
//
// Parameters:
//   - db: Open SQLite connection with the lumen schema applied
//
// Returns:
//   - *SQLiteStore: Store instance ready for use
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, key Key) (uint8, bool, error) {
	var brightness int
	err := s.db.QueryRowContext(ctx,
		"SELECT brightness FROM preferences WHERE lux_bucket = ? AND luma_bucket = ?",
		key.Lux, key.Luma,
	).Scan(&brightness)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("querying preference %s: %w", key, err)
	}
	return uint8(brightness), true, nil
}

// Set implements Store.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - key: Lighting condition the preference applies to
//   - brightness: Preferred brightness percentage, 0-100
//
// Returns:
//   - error: nil on success, otherwise the underlying database error
func (s *SQLiteStore) Set(ctx context.Context, key Key, brightness uint8) error {
	if brightness > 100 {
		return fmt.Errorf("brightness %d out of range", brightness)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var previous sql.NullInt64
	err = tx.QueryRowContext(ctx,
		"SELECT brightness FROM preferences WHERE lux_bucket = ? AND luma_bucket = ?",
		key.Lux, key.Luma,
	).Scan(&previous)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("querying previous preference: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO preferences (lux_bucket, luma_bucket, brightness, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (lux_bucket, luma_bucket)
		DO UPDATE SET brightness = excluded.brightness, updated_at = excluded.updated_at`,
		key.Lux, key.Luma, int(brightness), now,
	)
	if err != nil {
		return fmt.Errorf("upserting preference: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO override_history (lux_bucket, luma_bucket, brightness, previous, created_at) VALUES (?, ?, ?, ?, ?)",
		key.Lux, key.Luma, int(brightness), previous, now,
	)
	if err != nil {
		return fmt.Errorf("recording override: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing preference: %w", err)
	}
	return nil
}

// Load implements Store.
func (s *SQLiteStore) Load(ctx context.Context) (map[Key]uint8, error) {
	prefs, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[Key]uint8, len(prefs))
	for _, p := range prefs {
		out[p.Key] = p.Brightness
	}
	return out, nil
}

// List returns every stored preference ordered by key.
func (s *SQLiteStore) List(ctx context.Context) ([]Preference, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT lux_bucket, luma_bucket, brightness, updated_at FROM preferences ORDER BY lux_bucket, luma_bucket",
	)
	if err != nil {
		return nil, fmt.Errorf("querying preferences: %w", err)
	}
	defer rows.Close()

	var out []Preference
	for rows.Next() {
		var (
			p          Preference
			brightness int
			updatedAt  string
		)
		if err := rows.Scan(&p.Key.Lux, &p.Key.Luma, &brightness, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning preference: %w", err)
		}
		p.Brightness = uint8(brightness)
		p.UpdatedAt = parseTimestamp(updatedAt)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating preferences: %w", err)
	}
	return out, nil
}

// Overrides returns recent overrides, newest first.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - limit: Maximum entries to return (default 50, max 200)
func (s *SQLiteStore) Overrides(ctx context.Context, limit int) ([]Override, error) {
	if limit <= 0 {
		limit = defaultOverrideLimit
	}
	if limit > maxOverrideLimit {
		limit = maxOverrideLimit
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT lux_bucket, luma_bucket, brightness, previous, created_at FROM override_history ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying override history: %w", err)
	}
	defer rows.Close()

	var out []Override
	for rows.Next() {
		var (
			o          Override
			brightness int
			previous   sql.NullInt64
			createdAt  string
		)
		if err := rows.Scan(&o.Key.Lux, &o.Key.Luma, &brightness, &previous, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning override: %w", err)
		}
		o.Brightness = uint8(brightness)
		if previous.Valid {
			v := uint8(previous.Int64)
			o.Previous = &v
		}
		o.CreatedAt = parseTimestamp(createdAt)
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating override history: %w", err)
	}
	return out, nil
}

func parseTimestamp(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
