// Package repository holds the storage adapters behind the ingest pipeline.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"swipestats-workers/internal/models"
)

const defaultProfileTable = "normalized_profiles"

// PostgresProfileStore keeps one JSONB document per profileId. The hot stats columns are
// duplicated so listing queries never decode the document.
type PostgresProfileStore struct {
	db    *sql.DB
	table string
}

func NewPostgresProfileStore(db *sql.DB, table string) *PostgresProfileStore {
	if table == "" {
		table = defaultProfileTable
	}
	return &PostgresProfileStore{db: db, table: pq.QuoteIdentifier(table)}
}

// EnsureSchema creates the profile table when it does not exist.
func (s *PostgresProfileStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			profile_id     CHAR(64) PRIMARY KEY,
			platform       TEXT NOT NULL,
			profile        JSONB NOT NULL,
			matches_total  INTEGER NOT NULL DEFAULT 0,
			swipe_likes    INTEGER NOT NULL DEFAULT 0,
			match_rate     DOUBLE PRECISION NOT NULL DEFAULT 0,
			days_in_period INTEGER NOT NULL DEFAULT 0,
			updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, s.table))
	if err != nil {
		return fmt.Errorf("ensure profile schema: %w", err)
	}
	return nil
}

// LoadProfile returns the stored profile, or nil without error when none exists.
func (s *PostgresProfileStore) LoadProfile(ctx context.Context, profileID string) (*models.NormalizedProfile, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT profile FROM %s WHERE profile_id = $1`, s.table),
		profileID,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load profile %s: %w", profileID, err)
	}

	var p models.NormalizedProfile
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode profile %s: %w", profileID, err)
	}
	p.EmptyCollections()
	return &p, nil
}

// SaveProfile upserts p. The caller serializes writers of one profileId.
func (s *PostgresProfileStore) SaveProfile(ctx context.Context, p *models.NormalizedProfile) error {
	if p == nil {
		return errors.New("save profile: nil profile")
	}
	doc, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode profile %s: %w", p.ProfileID, err)
	}

	var meta models.DerivedStats
	if p.Meta != nil {
		meta = *p.Meta
	}

	_, err = s.db.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (profile_id, platform, profile, matches_total, swipe_likes, match_rate, days_in_period, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (profile_id) DO UPDATE SET
			platform = EXCLUDED.platform,
			profile = EXCLUDED.profile,
			matches_total = EXCLUDED.matches_total,
			swipe_likes = EXCLUDED.swipe_likes,
			match_rate = EXCLUDED.match_rate,
			days_in_period = EXCLUDED.days_in_period,
			updated_at = NOW()`, s.table),
		p.ProfileID, string(p.Platform), doc,
		meta.MatchesTotal, meta.SwipeLikesTotal, meta.MatchRate, meta.DaysInPeriod,
	)
	if err != nil {
		return fmt.Errorf("save profile %s: %w", p.ProfileID, err)
	}
	return nil
}
