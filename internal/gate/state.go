package gate

import (
	"encoding/json"
	"time"
)

// SecurityState is the persisted attempt/lockout record for one browser profile.
type SecurityState struct {
	Attempts      int
	LastAttemptAt time.Time
	BlockedUntil  time.Time
	SessionID     string
	IPAddress     string
	UserAgent     string
}

// stateRecord is the stored JSON shape. Timestamps are epoch milliseconds, 0 = unset.
type stateRecord struct {
	Attempts     int    `json:"attempts"`
	LastAttempt  int64  `json:"lastAttempt"`
	BlockedUntil int64  `json:"blockedUntil"`
	IPAddress    string `json:"ipAddress"`
	UserAgent    string `json:"userAgent"`
	SessionID    string `json:"sessionId"`
}

// MarshalJSON encodes the state in the stored record format.
func (s SecurityState) MarshalJSON() ([]byte, error) {
	return json.Marshal(stateRecord{
		Attempts:     s.Attempts,
		LastAttempt:  toEpochMillis(s.LastAttemptAt),
		BlockedUntil: toEpochMillis(s.BlockedUntil),
		IPAddress:    s.IPAddress,
		UserAgent:    s.UserAgent,
		SessionID:    s.SessionID,
	})
}

// UnmarshalJSON decodes a stored record. Negative attempt counts are clamped to zero.
func (s *SecurityState) UnmarshalJSON(data []byte) error {
	var rec stateRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	if rec.Attempts < 0 {
		rec.Attempts = 0
	}
	*s = SecurityState{
		Attempts:      rec.Attempts,
		LastAttemptAt: fromEpochMillis(rec.LastAttempt),
		BlockedUntil:  fromEpochMillis(rec.BlockedUntil),
		IPAddress:     rec.IPAddress,
		UserAgent:     rec.UserAgent,
		SessionID:     rec.SessionID,
	}
	return nil
}

// Locked reports whether a lockout is in force at now.
func (s SecurityState) Locked(now time.Time) bool {
	return !s.BlockedUntil.IsZero() && now.Before(s.BlockedUntil)
}

// Remaining returns the whole seconds left on the lockout, rounded up.
func (s SecurityState) Remaining(now time.Time) int {
	if !s.Locked(now) {
		return 0
	}
	d := s.BlockedUntil.Sub(now)
	return int((d + time.Second - 1) / time.Second)
}

// expired reports a lockout that was set but has since passed.
func (s SecurityState) expired(now time.Time) bool {
	return !s.BlockedUntil.IsZero() && !now.Before(s.BlockedUntil)
}

func toEpochMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromEpochMillis(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
