package analytics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"macdesigns/internal/database"
)

// TypeCount is the number of events of one type.
type TypeCount struct {
	EventType string `json:"event_type"`
	Count     int    `json:"count"`
}

// AchievementCount is how many sessions earned one achievement.
type AchievementCount struct {
	AchievementID string `json:"achievement_id"`
	Sessions      int    `json:"sessions"`
}

// Summary holds aggregate engagement since a point in time.
type Summary struct {
	Since          time.Time          `json:"since"`
	TotalSessions  int                `json:"total_sessions"`
	AuthedSessions int                `json:"authenticated_sessions"`
	Events         []TypeCount        `json:"events"`
	Achievements   []AchievementCount `json:"achievements"`
	TopSections    []TypeCount        `json:"top_sections"`
}

// QueryFilter narrows event queries. Zero values mean no constraint.
type QueryFilter struct {
	Since      time.Time
	Until      time.Time
	EventTypes []string
}

// GetSummary returns aggregate engagement since the given time.
func GetSummary(ctx context.Context, db *database.DB, since time.Time) (Summary, error) {
	s := Summary{Since: since.UTC()}
	cutoff := since.UnixMilli()

	err := db.QueryRowContext(ctx, db.Rebind(
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN authenticated THEN 1 ELSE 0 END), 0)
		 FROM sessions WHERE started_at >= ?`), cutoff,
	).Scan(&s.TotalSessions, &s.AuthedSessions)
	if err != nil {
		return s, fmt.Errorf("query session totals: %w", err)
	}

	s.Events, err = countBy(ctx, db,
		`SELECT event_type, COUNT(*) FROM events WHERE created_at >= ?
		 GROUP BY event_type ORDER BY COUNT(*) DESC, event_type`, cutoff)
	if err != nil {
		return s, fmt.Errorf("query event counts: %w", err)
	}

	s.TopSections, err = countBy(ctx, db,
		`SELECT COALESCE(subject, ''), COUNT(*) FROM events WHERE created_at >= ? AND event_type = '`+SectionView+`'
		 GROUP BY subject ORDER BY COUNT(*) DESC, subject`, cutoff)
	if err != nil {
		return s, fmt.Errorf("query section counts: %w", err)
	}

	rows, err := db.QueryContext(ctx, db.Rebind(
		`SELECT achievement_id, COUNT(*) FROM achievements WHERE unlocked_at >= ?
		 GROUP BY achievement_id ORDER BY COUNT(*) DESC, achievement_id`), cutoff)
	if err != nil {
		return s, fmt.Errorf("query achievement counts: %w", err)
	}
	defer rows.Close()

	s.Achievements = []AchievementCount{}
	for rows.Next() {
		var a AchievementCount
		if err := rows.Scan(&a.AchievementID, &a.Sessions); err != nil {
			return s, fmt.Errorf("scan achievement count: %w", err)
		}
		s.Achievements = append(s.Achievements, a)
	}
	return s, rows.Err()
}

func countBy(ctx context.Context, db *database.DB, query string, cutoff int64) ([]TypeCount, error) {
	rows, err := db.QueryContext(ctx, db.Rebind(query), cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []TypeCount{}
	for rows.Next() {
		var c TypeCount
		if err := rows.Scan(&c.EventType, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func appendTimeFilter(where *[]string, args *[]any, column string, f QueryFilter) {
	if !f.Since.IsZero() {
		*where = append(*where, column+" >= ?")
		*args = append(*args, f.Since.UnixMilli())
	}
	if !f.Until.IsZero() {
		*where = append(*where, column+" < ?")
		*args = append(*args, f.Until.UnixMilli())
	}
}

func appendEventTypeFilter(where *[]string, args *[]any, column string, types []string) {
	valid := make([]string, 0, len(types))
	for _, t := range types {
		if validEventTypes[t] {
			valid = append(valid, t)
		}
	}
	if len(valid) == 0 {
		return
	}
	*where = append(*where, column+" IN ("+strings.TrimSuffix(strings.Repeat("?,", len(valid)), ",")+")")
	for _, t := range valid {
		*args = append(*args, t)
	}
}
