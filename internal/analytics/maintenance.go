package analytics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"macdesigns/internal/database"
)

// MaintenanceInterval is how often the retention loop runs.
const MaintenanceInterval = 24 * time.Hour

// MaintenanceResult summarizes a maintenance run.
type MaintenanceResult struct {
	RanAtUTC           string `json:"ran_at_utc"`
	RetentionDays      int    `json:"retention_days"`
	PrunedEvents       int64  `json:"pruned_events"`
	PrunedAchievements int64  `json:"pruned_achievements"`
}

// RunMaintenance prunes raw events and achievements older than retentionDays.
// A non-positive retention keeps everything.
func RunMaintenance(ctx context.Context, db *database.DB, now time.Time, retentionDays int) (MaintenanceResult, error) {
	res := MaintenanceResult{
		RanAtUTC:      now.UTC().Format(time.RFC3339),
		RetentionDays: retentionDays,
	}
	if retentionDays <= 0 {
		return res, nil
	}

	cutoff := now.UTC().AddDate(0, 0, -retentionDays).UnixMilli()

	pruned, err := prune(ctx, db, "DELETE FROM events WHERE created_at < ?", cutoff)
	if err != nil {
		return res, fmt.Errorf("prune events older than %d days: %w", retentionDays, err)
	}
	res.PrunedEvents = pruned

	pruned, err = prune(ctx, db, "DELETE FROM achievements WHERE unlocked_at < ?", cutoff)
	if err != nil {
		return res, fmt.Errorf("prune achievements older than %d days: %w", retentionDays, err)
	}
	res.PrunedAchievements = pruned

	return res, nil
}

func prune(ctx context.Context, db *database.DB, query string, cutoff int64) (int64, error) {
	result, err := db.ExecContext(ctx, db.Rebind(query), cutoff)
	if err != nil {
		return 0, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return rows, nil
}

// Maintainer runs RunMaintenance on a fixed interval until closed.
type Maintainer struct {
	db            *database.DB
	retentionDays int
	interval      time.Duration
	logger        *zap.Logger
	done          chan struct{}
	stopped       chan struct{}
	once          sync.Once
}

// NewMaintainer starts the retention loop. The first run happens immediately.
func NewMaintainer(db *database.DB, retentionDays int, interval time.Duration, logger *zap.Logger) *Maintainer {
	if interval <= 0 {
		interval = MaintenanceInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Maintainer{
		db:            db,
		retentionDays: retentionDays,
		interval:      interval,
		logger:        logger.Named("maintenance"),
		done:          make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	go m.loop()
	return m
}

// Close stops the loop and waits for an in-flight run to finish.
func (m *Maintainer) Close() {
	m.once.Do(func() {
		close(m.done)
	})
	<-m.stopped
}

func (m *Maintainer) loop() {
	defer close(m.stopped)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		m.run()
		select {
		case <-m.done:
			return
		case <-ticker.C:
		}
	}
}

func (m *Maintainer) run() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	res, err := RunMaintenance(ctx, m.db, time.Now(), m.retentionDays)
	if err != nil {
		m.logger.Error("analytics maintenance failed", zap.Error(err))
		return
	}
	if res.PrunedEvents > 0 || res.PrunedAchievements > 0 {
		m.logger.Info("analytics maintenance",
			zap.Int64("pruned_events", res.PrunedEvents),
			zap.Int64("pruned_achievements", res.PrunedAchievements))
	}
}
