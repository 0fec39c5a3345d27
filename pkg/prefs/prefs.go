// Package prefs persists user preferences in SQLite as string key/value
// pairs and maps them onto the typed Preferences record.
package prefs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"saltydog/pkg/db"
	"saltydog/pkg/filter"
	"saltydog/pkg/units"
)

// Keys under which preferences are stored.
const (
	KeySpeedUnit          = "speed_unit"
	KeyDistanceUnit       = "distance_unit"
	KeyMinimumAccuracy    = "minimum_accuracy"
	KeyMinimumSpeed       = "minimum_speed"
	KeyBackgroundTracking = "background_tracking"
)

// Preferences is the typed view of the stored values.
type Preferences struct {
	SpeedUnit          units.SpeedUnit    `json:"speed_unit"`
	DistanceUnit       units.DistanceUnit `json:"distance_unit"`
	MinimumAccuracy    float64            `json:"minimum_accuracy"`
	MinimumSpeed       float64            `json:"minimum_speed"`
	BackgroundTracking bool               `json:"background_tracking"`
}

// Thresholds returns the filter gates carried by p.
func (p Preferences) Thresholds() filter.Thresholds {
	return filter.Thresholds{
		MinimumAccuracy: p.MinimumAccuracy,
		MinimumSpeed:    p.MinimumSpeed,
	}
}

// Validate checks units and thresholds.
func (p Preferences) Validate() error {
	if _, err := units.ParseSpeedUnit(string(p.SpeedUnit)); err != nil {
		return err
	}
	if _, err := units.ParseDistanceUnit(string(p.DistanceUnit)); err != nil {
		return err
	}
	return p.Thresholds().Validate()
}

// Store is a key/value preference store.
type Store struct {
	db *db.DB
}

// Open opens (or creates) the preference database at path.
func Open(path string) (*Store, error) {
	d, err := db.Init(path)
	if err != nil {
		return nil, err
	}
	return &Store{db: d}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the raw value for key and whether it exists.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var val string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM preferences WHERE key = ?", key).Scan(&val)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return val, true, nil
}

// Set stores val under key, replacing any previous value.
func (s *Store) Set(ctx context.Context, key, val string) error {
	query := `INSERT OR REPLACE INTO preferences (key, value, updated_at) VALUES (?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, query, key, val, time.Now().UTC()); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM preferences WHERE key = ?", key)
	return err
}

// Load overlays the stored values on defaults. Values that fail to parse
// are logged and skipped.
func (s *Store) Load(ctx context.Context, defaults Preferences) (Preferences, error) {
	p := defaults

	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM preferences")
	if err != nil {
		return p, fmt.Errorf("load preferences: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, val string
		if err := rows.Scan(&key, &val); err != nil {
			return defaults, fmt.Errorf("scan preference: %w", err)
		}
		if err := p.apply(key, val); err != nil {
			slog.Warn("Ignoring stored preference", "key", key, "value", val, "error", err)
		}
	}
	if err := rows.Err(); err != nil {
		return defaults, fmt.Errorf("load preferences: %w", err)
	}
	return p, nil
}

// Save validates p and writes every field in one transaction.
func (s *Store) Save(ctx context.Context, p Preferences) error {
	if err := p.Validate(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	for key, val := range p.values() {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO preferences (key, value, updated_at) VALUES (?, ?, ?)`,
			key, val, now); err != nil {
			return fmt.Errorf("save %s: %w", key, err)
		}
	}
	return tx.Commit()
}

func (p Preferences) values() map[string]string {
	return map[string]string{
		KeySpeedUnit:          string(p.SpeedUnit),
		KeyDistanceUnit:       string(p.DistanceUnit),
		KeyMinimumAccuracy:    strconv.FormatFloat(p.MinimumAccuracy, 'f', -1, 64),
		KeyMinimumSpeed:       strconv.FormatFloat(p.MinimumSpeed, 'f', -1, 64),
		KeyBackgroundTracking: strconv.FormatBool(p.BackgroundTracking),
	}
}

func (p *Preferences) apply(key, val string) error {
	switch key {
	case KeySpeedUnit:
		u, err := units.ParseSpeedUnit(val)
		if err != nil {
			return err
		}
		p.SpeedUnit = u
	case KeyDistanceUnit:
		u, err := units.ParseDistanceUnit(val)
		if err != nil {
			return err
		}
		p.DistanceUnit = u
	case KeyMinimumAccuracy:
		f, err := parseNonNegative(val)
		if err != nil {
			return err
		}
		p.MinimumAccuracy = f
	case KeyMinimumSpeed:
		f, err := parseNonNegative(val)
		if err != nil {
			return err
		}
		p.MinimumSpeed = f
	case KeyBackgroundTracking:
		b, err := strconv.ParseBool(val)
		if err != nil {
			return err
		}
		p.BackgroundTracking = b
	default:
		// Unknown keys belong to newer or older versions.
	}
	return nil
}

func parseNonNegative(s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f < 0 {
		return 0, fmt.Errorf("negative value %v", f)
	}
	return f, nil
}
