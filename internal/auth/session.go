// Package auth keeps visitor identity: a long-lived browser profile carried in a
// signed cookie, and short-lived tab sessions that hold the gate's authentication
// flag.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"macdesigns/internal/database"
	"macdesigns/internal/gate"
)

const (
	SessionExpiry      = 7 * 24 * time.Hour
	CleanupInterval    = 1 * time.Hour
	SessionTouchWindow = 1 * time.Minute
)

// Session is one tab session of a browser profile.
type Session struct {
	ID            string
	ProfileID     string
	StartedAt     time.Time
	Authenticated bool
}

// SessionStore manages visitor sessions in the database.
type SessionStore struct {
	db     *database.DB
	salt   string
	logger *zap.Logger
	done   chan struct{}
	once   sync.Once
}

// NewSessionStore creates a session store and starts the cleanup goroutine.
func NewSessionStore(db *database.DB, logger *zap.Logger) *SessionStore {
	saltBytes := make([]byte, 16)
	if _, err := rand.Read(saltBytes); err != nil {
		fallback := sha256.Sum256([]byte(time.Now().UTC().Format(time.RFC3339Nano)))
		copy(saltBytes, fallback[:16])
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &SessionStore{
		db:     db,
		salt:   hex.EncodeToString(saltBytes),
		logger: logger,
		done:   make(chan struct{}),
	}
	go s.cleanupLoop()
	return s
}

// Close stops the cleanup goroutine.
func (s *SessionStore) Close() {
	s.once.Do(func() {
		close(s.done)
	})
}

// CreateSession starts a new tab session for profileID.
func (s *SessionStore) CreateSession(ctx context.Context, profileID, ip string) (Session, error) {
	sess := Session{
		ID:        uuid.NewString(),
		ProfileID: profileID,
		StartedAt: time.Now().UTC(),
	}
	now := sess.StartedAt.UnixMilli()

	_, err := s.db.ExecContext(ctx, s.db.Rebind(
		"INSERT INTO sessions (id, profile_id, started_at, last_seen_at, ip_hash, authenticated) VALUES (?, ?, ?, ?, ?, ?)"),
		sess.ID, profileID, now, now, hashIP(ip, s.salt), false,
	)
	if err != nil {
		return Session{}, fmt.Errorf("create session: %w", err)
	}
	return sess, nil
}

// ValidateSession loads a session if it exists and has not gone idle past
// SessionExpiry. On success last_seen_at slides forward.
func (s *SessionStore) ValidateSession(ctx context.Context, id string) (Session, bool, error) {
	var (
		sess      = Session{ID: id}
		startedAt int64
		lastSeen  int64
	)
	err := s.db.QueryRowContext(ctx, s.db.Rebind(
		"SELECT profile_id, started_at, last_seen_at, authenticated FROM sessions WHERE id = ?"), id,
	).Scan(&sess.ProfileID, &startedAt, &lastSeen, &sess.Authenticated)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, false, nil
	}
	if err != nil {
		return Session{}, false, fmt.Errorf("query session: %w", err)
	}
	sess.StartedAt = time.UnixMilli(startedAt).UTC()

	now := time.Now().UTC()
	idle := now.Sub(time.UnixMilli(lastSeen))
	if idle > SessionExpiry {
		if err := s.DeleteSession(ctx, id); err != nil {
			return Session{}, false, fmt.Errorf("delete expired session: %w", err)
		}
		return Session{}, false, nil
	}

	// Touch at most once per window to limit write amplification.
	if idle >= SessionTouchWindow {
		if _, err := s.db.ExecContext(ctx, s.db.Rebind(
			"UPDATE sessions SET last_seen_at = ? WHERE id = ?"), now.UnixMilli(), id); err != nil {
			return Session{}, false, fmt.Errorf("touch session: %w", err)
		}
	}
	return sess, true, nil
}

// DeleteSession removes a session.
func (s *SessionStore) DeleteSession(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind("DELETE FROM sessions WHERE id = ?"), id)
	return err
}

// IsAuthenticated reports whether the session passed the gate.
func (s *SessionStore) IsAuthenticated(ctx context.Context, id string) (bool, error) {
	var ok bool
	err := s.db.QueryRowContext(ctx, s.db.Rebind(
		"SELECT authenticated FROM sessions WHERE id = ?"), id,
	).Scan(&ok)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query session flag: %w", err)
	}
	return ok, nil
}

// MarkAuthenticated sets the session's flag. It is never cleared.
func (s *SessionStore) MarkAuthenticated(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(
		"UPDATE sessions SET authenticated = ? WHERE id = ?"), true, id)
	if err != nil {
		return fmt.Errorf("mark session authenticated: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("mark session authenticated: session %s not found", id)
	}
	return nil
}

// Flag exposes one session's flag to the gate.
func (s *SessionStore) Flag(id string) gate.FlagStore {
	return sessionFlag{store: s, id: id}
}

type sessionFlag struct {
	store *SessionStore
	id    string
}

func (f sessionFlag) Authenticated(ctx context.Context) (bool, error) {
	return f.store.IsAuthenticated(ctx, f.id)
}

func (f sessionFlag) SetAuthenticated(ctx context.Context) error {
	return f.store.MarkAuthenticated(ctx, f.id)
}

// Cleanup deletes sessions idle past SessionExpiry.
func (s *SessionStore) Cleanup(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-SessionExpiry).UnixMilli()
	res, err := s.db.ExecContext(ctx, s.db.Rebind("DELETE FROM sessions WHERE last_seen_at < ?"), cutoff)
	if err != nil {
		return 0, fmt.Errorf("session cleanup: %w", err)
	}
	return res.RowsAffected()
}

func (s *SessionStore) cleanupLoop() {
	ticker := time.NewTicker(CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n, err := s.Cleanup(context.Background()); err != nil {
				s.logger.Error("session cleanup", zap.Error(err))
			} else if n > 0 {
				s.logger.Debug("expired sessions removed", zap.Int64("count", n))
			}
		case <-s.done:
			return
		}
	}
}

func hashIP(ip, salt string) string {
	h := sha256.Sum256([]byte(salt + ip))
	return hex.EncodeToString(h[:])
}
