package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"macdesigns/internal/database"
)

// Achievement is unlocked the first time a session views its section.
type Achievement struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Section     string `json:"section"`
	FunFact     string `json:"fun_fact,omitempty"`
}

// Achievements in page order.
var Achievements = []Achievement{
	{ID: "explorer", Title: "Portfolio Explorer", Description: "Started exploring the portfolio", Section: "hero",
		FunFact: "Drinks 4+ cups of coffee daily and claims it's essential for creative problem-solving"},
	{ID: "learner", Title: "Story Seeker", Description: "Discovered the journey behind the designer", Section: "about",
		FunFact: "Has a cognitive psychology minor and loves analyzing user behavior patterns"},
	{ID: "work-viewer", Title: "Work Admirer", Description: "Explored featured projects", Section: "work",
		FunFact: "Completed 50+ design challenges in her spare time to stay sharp"},
	{ID: "skill-master", Title: "Skill Spotter", Description: "Checked out the skill arsenal", Section: "skills",
		FunFact: "Creates ambient music for focus - some tracks have 10k+ plays on Spotify"},
	{ID: "case-study-fan", Title: "Deep Diver", Description: "Dived into detailed case studies", Section: "case-studies",
		FunFact: "Captures insects and plants in macro detail - it helps with attention to design details"},
	{ID: "connector", Title: "Future Collaborator", Description: "Ready to connect and collaborate", Section: "contact",
		FunFact: "Mentors 20+ junior designers through industry bootcamps and online communities"},
}

// ErrUnknownSection is returned for a section with no achievement.
var ErrUnknownSection = errors.New("unknown section")

// AchievementFor returns the achievement triggered by section.
func AchievementFor(section string) (Achievement, bool) {
	for _, a := range Achievements {
		if a.Section == section {
			return a, true
		}
	}
	return Achievement{}, false
}

// AchievementStore records per-session unlocks.
type AchievementStore struct {
	db  *database.DB
	now func() time.Time
}

// NewAchievementStore creates a store on db.
func NewAchievementStore(db *database.DB) *AchievementStore {
	return &AchievementStore{db: db, now: time.Now}
}

// Unlock marks the achievement for section as earned by sessionID. unlocked is
// true only the first time; later views of the same section return false.
func (s *AchievementStore) Unlock(ctx context.Context, sessionID, section string) (a Achievement, unlocked bool, err error) {
	a, ok := AchievementFor(section)
	if !ok {
		return Achievement{}, false, ErrUnknownSection
	}

	res, err := s.db.ExecContext(ctx, s.db.Rebind(
		`INSERT INTO achievements (session_id, achievement_id, unlocked_at) VALUES (?, ?, ?)
		 ON CONFLICT (session_id, achievement_id) DO NOTHING`),
		sessionID, a.ID, s.now().UnixMilli(),
	)
	if err != nil {
		return a, false, fmt.Errorf("unlock achievement %s: %w", a.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return a, false, fmt.Errorf("unlock achievement %s: %w", a.ID, err)
	}
	return a, n == 1, nil
}

// Unlocked lists the achievement ids sessionID has earned, in unlock order.
func (s *AchievementStore) Unlocked(ctx context.Context, sessionID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.db.Rebind(
		"SELECT achievement_id FROM achievements WHERE session_id = ? ORDER BY unlocked_at, achievement_id"),
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query achievements: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan achievement: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
