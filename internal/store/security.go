// Package store persists gate security records in the SQL database, one row per
// browser profile.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"macdesigns/internal/database"
	"macdesigns/internal/gate"
)

// SecurityStates is the SQL-backed home of every profile's security record.
type SecurityStates struct {
	db *database.DB
}

// NewSecurityStates creates a store on db.
func NewSecurityStates(db *database.DB) *SecurityStates {
	return &SecurityStates{db: db}
}

// Lockout is one profile currently refused by the gate.
type Lockout struct {
	ProfileID    string
	State        gate.SecurityState
	BlockedUntil time.Time
}

// For returns the gate store bound to one profile.
func (s *SecurityStates) For(profileID string) gate.SecurityStateStore {
	return &profileStore{db: s.db, profileID: profileID}
}

// Locked lists the profiles whose lockout is still in force at now.
func (s *SecurityStates) Locked(ctx context.Context, now time.Time) ([]Lockout, error) {
	rows, err := s.db.QueryContext(ctx, s.db.Rebind(
		`SELECT profile_id, payload FROM security_state
		 WHERE state_key = ? AND blocked_until > ?
		 ORDER BY blocked_until`),
		gate.StateKey, now.UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("query lockouts: %w", err)
	}
	defer rows.Close()

	var out []Lockout
	for rows.Next() {
		var profileID, payload string
		if err := rows.Scan(&profileID, &payload); err != nil {
			return nil, fmt.Errorf("scan lockout: %w", err)
		}
		var state gate.SecurityState
		if err := json.Unmarshal([]byte(payload), &state); err != nil {
			return nil, fmt.Errorf("decode lockout %s: %w", profileID, err)
		}
		out = append(out, Lockout{ProfileID: profileID, State: state, BlockedUntil: state.BlockedUntil})
	}
	return out, rows.Err()
}

// Clear removes a profile's record, lifting any lockout. It reports whether a
// record existed.
func (s *SecurityStates) Clear(ctx context.Context, profileID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(
		"DELETE FROM security_state WHERE profile_id = ? AND state_key = ?"),
		profileID, gate.StateKey,
	)
	if err != nil {
		return false, fmt.Errorf("clear security state: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("clear security state: %w", err)
	}
	return n > 0, nil
}

// PurgeIdle drops records that are not locked at now and were last written
// before cutoff.
func (s *SecurityStates) PurgeIdle(ctx context.Context, now, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(
		"DELETE FROM security_state WHERE blocked_until <= ? AND updated_at < ?"),
		now.UnixMilli(), cutoff.UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("purge security state: %w", err)
	}
	return res.RowsAffected()
}

type profileStore struct {
	db        *database.DB
	profileID string
}

func (p *profileStore) Load(ctx context.Context) (gate.SecurityState, bool, error) {
	var payload string
	err := p.db.QueryRowContext(ctx, p.db.Rebind(
		"SELECT payload FROM security_state WHERE profile_id = ? AND state_key = ?"),
		p.profileID, gate.StateKey,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return gate.SecurityState{}, false, nil
	}
	if err != nil {
		return gate.SecurityState{}, false, fmt.Errorf("load security state: %w", err)
	}

	var state gate.SecurityState
	if err := json.Unmarshal([]byte(payload), &state); err != nil {
		return gate.SecurityState{}, false, fmt.Errorf("decode security state: %w", err)
	}
	return state, true, nil
}

func (p *profileStore) Save(ctx context.Context, state gate.SecurityState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode security state: %w", err)
	}

	var blockedUntil int64
	if !state.BlockedUntil.IsZero() {
		blockedUntil = state.BlockedUntil.UnixMilli()
	}

	_, err = p.db.ExecContext(ctx, p.db.Rebind(
		`INSERT INTO security_state (profile_id, state_key, payload, blocked_until, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (profile_id, state_key) DO UPDATE SET
		   payload = excluded.payload,
		   blocked_until = excluded.blocked_until,
		   updated_at = excluded.updated_at`),
		p.profileID, gate.StateKey, string(payload), blockedUntil, time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("save security state: %w", err)
	}
	return nil
}
