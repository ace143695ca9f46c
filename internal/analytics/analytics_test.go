package analytics

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"macdesigns/internal/database"
)

const testSessionID = "6f1c2a9e-3b4d-4e8f-9a0b-1c2d3e4f5a6b"

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func countEvents(t *testing.T, db *database.DB, where string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM events WHERE "+where, args...).Scan(&n))
	return n
}

func TestRecordAndFlush(t *testing.T) {
	db := testDB(t)
	c := NewCollector(db, nil)

	for i := 0; i < 5; i++ {
		c.Record(Event{SessionID: "sess1", EventType: SectionView, Subject: "work"})
	}
	c.Close()

	assert.Equal(t, 5, countEvents(t, db, "session_id = 'sess1'"))

	var createdAt int64
	require.NoError(t, db.QueryRow("SELECT MIN(created_at) FROM events").Scan(&createdAt))
	assert.WithinDuration(t, time.Now(), time.UnixMilli(createdAt), time.Minute)
}

func TestTrackValidates(t *testing.T) {
	db := testDB(t)
	c := NewCollector(db, nil)

	require.NoError(t, c.Track(testSessionID, GateRejected, "", map[string]any{"attempts": 1}))
	assert.ErrorIs(t, c.Track(testSessionID, "play", "", nil), ErrInvalidEvent)
	assert.ErrorIs(t, c.Track("", SectionView, "work", nil), ErrInvalidEvent)
	assert.ErrorIs(t, c.Track(testSessionID, SectionView, strings.Repeat("x", MaxSubjectLen+1), nil), ErrInvalidEvent)
	assert.ErrorIs(t, c.Track(testSessionID, SectionView, "work",
		map[string]any{"blob": strings.Repeat("x", MaxMetaBytes)}), ErrInvalidEvent)
	c.Close()

	assert.Equal(t, 1, countEvents(t, db, "session_id = ?", testSessionID))

	var meta string
	require.NoError(t, db.QueryRow("SELECT metadata FROM events WHERE event_type = ?", GateRejected).Scan(&meta))
	assert.JSONEq(t, `{"attempts":1}`, meta)
}

func TestBackpressureHighValue(t *testing.T) {
	c := &Collector{
		events: make(chan Event, 1),
		done:   make(chan struct{}),
	}
	c.events <- Event{SessionID: "s", EventType: SectionView}

	start := time.Now()
	c.Record(Event{SessionID: "s", EventType: GateBlocked})
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
	assert.EqualValues(t, 1, c.DroppedCount())
}

func TestBackpressureLowValue(t *testing.T) {
	c := &Collector{
		events: make(chan Event, 1),
		done:   make(chan struct{}),
	}
	c.events <- Event{SessionID: "s", EventType: SectionView}

	start := time.Now()
	c.Record(Event{SessionID: "s", EventType: SectionView})
	assert.Less(t, time.Since(start), 50*time.Millisecond)
	assert.EqualValues(t, 1, c.DroppedCount())
}

func TestAchievementUnlocksOncePerSession(t *testing.T) {
	db := testDB(t)
	store := NewAchievementStore(db)
	ctx := context.Background()

	a, unlocked, err := store.Unlock(ctx, "s1", "work")
	require.NoError(t, err)
	assert.True(t, unlocked)
	assert.Equal(t, "work-viewer", a.ID)

	_, unlocked, err = store.Unlock(ctx, "s1", "work")
	require.NoError(t, err)
	assert.False(t, unlocked, "second view of the same section")

	_, unlocked, err = store.Unlock(ctx, "s2", "work")
	require.NoError(t, err)
	assert.True(t, unlocked, "other sessions unlock independently")

	_, _, err = store.Unlock(ctx, "s1", "pricing")
	assert.ErrorIs(t, err, ErrUnknownSection)
}

func TestUnlockedListsInOrder(t *testing.T) {
	db := testDB(t)
	store := NewAchievementStore(db)
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i, section := range []string{"hero", "contact", "about"} {
		at := base.Add(time.Duration(i) * time.Second)
		store.now = func() time.Time { return at }
		_, _, err := store.Unlock(ctx, "s1", section)
		require.NoError(t, err)
	}

	got, err := store.Unlocked(ctx, "s1")
	require.NoError(t, err)
	if diff := cmp.Diff([]string{"explorer", "connector", "learner"}, got); diff != "" {
		t.Errorf("unlocked mismatch (-want +got):\n%s", diff)
	}

	none, err := store.Unlocked(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestEverySectionHasAnAchievement(t *testing.T) {
	seen := map[string]bool{}
	for _, section := range []string{"hero", "about", "work", "skills", "case-studies", "contact"} {
		a, ok := AchievementFor(section)
		require.True(t, ok, section)
		assert.False(t, seen[a.ID], "duplicate achievement %s", a.ID)
		seen[a.ID] = true
	}
	assert.Len(t, Achievements, 6)
}

func TestKonamiSlidingWindow(t *testing.T) {
	d := NewEggDetector(time.Hour)
	defer d.Close()

	// Leading noise falls out of the window.
	_, ok := d.Keys("s1", []string{"KeyX", "ArrowUp"})
	assert.False(t, ok)

	egg, ok := d.Keys("s1", KonamiCode)
	require.True(t, ok)
	assert.Equal(t, KonamiEgg, egg)

	// The window resets on match, so a partial replay does not fire.
	_, ok = d.Keys("s1", KonamiCode[5:])
	assert.False(t, ok)
}

func TestKonamiAcrossRequests(t *testing.T) {
	d := NewEggDetector(time.Hour)
	defer d.Close()

	for _, code := range KonamiCode[:9] {
		_, ok := d.Keys("s1", []string{code})
		require.False(t, ok)
	}
	_, ok := d.Keys("s2", KonamiCode[9:])
	assert.False(t, ok, "windows are per session")

	_, ok = d.Keys("s1", KonamiCode[9:])
	assert.True(t, ok)
}

func TestKonamiWrongOrder(t *testing.T) {
	d := NewEggDetector(time.Hour)
	defer d.Close()

	codes := append([]string{}, KonamiCode...)
	codes[8], codes[9] = codes[9], codes[8]
	_, ok := d.Keys("s1", codes)
	assert.False(t, ok)
}

func TestTripleClick(t *testing.T) {
	d := NewEggDetector(time.Hour)
	defer d.Close()

	_, ok := d.Clicks(2)
	assert.False(t, ok)
	egg, ok := d.Clicks(3)
	assert.True(t, ok)
	assert.Equal(t, TripleClickEgg, egg)
}

func TestPurgeIdleWindows(t *testing.T) {
	d := NewEggDetector(time.Minute)
	defer d.Close()

	d.Keys("s1", []string{"ArrowUp"})
	assert.Equal(t, 0, d.Purge(time.Now()))
	assert.Equal(t, 1, d.Purge(time.Now().Add(2*time.Minute)))
}

func TestRunMaintenancePrunes(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	now := time.Date(2026, 2, 11, 12, 0, 0, 0, time.UTC)
	old := now.AddDate(0, 0, -100).UnixMilli()
	recent := now.AddDate(0, 0, -1).UnixMilli()

	for _, at := range []int64{old, recent} {
		_, err := db.Exec("INSERT INTO events (session_id, event_type, subject, metadata, created_at) VALUES ('s1', 'section_view', 'work', '{}', ?)", at)
		require.NoError(t, err)
	}
	_, err := db.Exec("INSERT INTO achievements (session_id, achievement_id, unlocked_at) VALUES ('s1', 'explorer', ?)", old)
	require.NoError(t, err)

	res, err := RunMaintenance(ctx, db, now, 90)
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.PrunedEvents)
	assert.EqualValues(t, 1, res.PrunedAchievements)
	assert.Equal(t, 1, countEvents(t, db, "1=1"))

	res, err = RunMaintenance(ctx, db, now, 0)
	require.NoError(t, err)
	assert.Zero(t, res.PrunedEvents)
}

func TestMaintainerStops(t *testing.T) {
	db := testDB(t)
	m := NewMaintainer(db, 90, time.Hour, nil)
	m.Close()
	m.Close()
}

func TestSummaryAndExport(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	since := time.Now().Add(-time.Hour)

	c := NewCollector(db, nil)
	c.Record(Event{SessionID: "s1", EventType: SectionView, Subject: "work"})
	c.Record(Event{SessionID: "s1", EventType: SectionView, Subject: "work"})
	c.Record(Event{SessionID: "s2", EventType: SectionView, Subject: "about"})
	c.Record(Event{SessionID: "s2", EventType: GateAccepted})
	c.Close()

	_, _, err := NewAchievementStore(db).Unlock(ctx, "s1", "work")
	require.NoError(t, err)

	sum, err := GetSummary(ctx, db, since)
	require.NoError(t, err)
	if diff := cmp.Diff([]TypeCount{{SectionView, 3}, {GateAccepted, 1}}, sum.Events); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]TypeCount{{"work", 2}, {"about", 1}}, sum.TopSections); diff != "" {
		t.Errorf("sections mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []AchievementCount{{"work-viewer", 1}}, sum.Achievements)

	events, err := GetEventsForExport(ctx, db, QueryFilter{EventTypes: []string{GateAccepted, "bogus"}}, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "s2", events[0].SessionID)

	raw, err := MarshalEventsJSON(events)
	require.NoError(t, err)
	var decoded []ExportEvent
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, events, decoded)

	csv, err := MarshalEventsCSV(events)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(csv)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "id,session_id,event_type,subject,metadata,created_at", lines[0])
}
