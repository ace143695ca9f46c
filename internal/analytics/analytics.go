// Package analytics records visitor engagement: gate outcomes, section views,
// achievements and easter eggs. Events are buffered in memory and written in
// batches so request handlers never wait on the database.
package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"macdesigns/internal/database"
)

const (
	ChannelBuffer = 1000
	FlushSize     = 50
	FlushInterval = 5 * time.Second
	DrainTimeout  = 10 * time.Second
	MaxMetaBytes  = 4096
	MaxSubjectLen = 64
)

// Event types.
const (
	GateAccepted        = "gate_accepted"
	GateRejected        = "gate_rejected"
	GateBlocked         = "gate_blocked"
	SectionView         = "section_view"
	AchievementUnlocked = "achievement_unlocked"
	EasterEggFound      = "easter_egg"
	ContactEmail        = "contact_email"
	ContactSMS          = "contact_sms"
)

var validEventTypes = map[string]bool{
	GateAccepted:        true,
	GateRejected:        true,
	GateBlocked:         true,
	SectionView:         true,
	AchievementUnlocked: true,
	EasterEggFound:      true,
	ContactEmail:        true,
	ContactSMS:          true,
}

// highValueEvents are worth brief backpressure when the channel is full.
var highValueEvents = map[string]bool{
	GateAccepted: true,
	GateBlocked:  true,
	ContactSMS:   true,
}

// ErrInvalidEvent is returned by Track for events the collector will not store.
var ErrInvalidEvent = errors.New("invalid analytics event")

// Event is one engagement record.
type Event struct {
	SessionID string    `json:"session_id"`
	EventType string    `json:"event_type"`
	Subject   string    `json:"subject,omitempty"`
	Metadata  string    `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Collector manages buffered event ingestion.
type Collector struct {
	db      *database.DB
	logger  *zap.Logger
	events  chan Event
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
	dropped atomic.Int64
}

// NewCollector creates a collector with a buffered channel and flush goroutine.
func NewCollector(db *database.DB, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{
		db:     db,
		logger: logger.Named("analytics"),
		events: make(chan Event, ChannelBuffer),
		done:   make(chan struct{}),
	}
	c.wg.Add(1)
	go c.flushLoop()
	return c
}

// Track validates an event, fills its timestamp and metadata encoding, and
// submits it. meta may be nil.
func (c *Collector) Track(sessionID, eventType, subject string, meta map[string]any) error {
	if sessionID == "" || !validEventTypes[eventType] || len(subject) > MaxSubjectLen {
		return ErrInvalidEvent
	}

	var encoded string
	if len(meta) > 0 {
		raw, err := json.Marshal(meta)
		if err != nil {
			return err
		}
		if len(raw) > MaxMetaBytes {
			return ErrInvalidEvent
		}
		encoded = string(raw)
	}

	c.Record(Event{
		SessionID: sessionID,
		EventType: eventType,
		Subject:   subject,
		Metadata:  encoded,
	})
	return nil
}

// Record submits an event to the channel.
// High-value events block briefly (100ms); others are dropped immediately if full.
func (c *Collector) Record(e Event) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if highValueEvents[e.EventType] {
		select {
		case c.events <- e:
		case <-time.After(100 * time.Millisecond):
			c.dropped.Add(1)
		}
		return
	}
	select {
	case c.events <- e:
	default:
		c.dropped.Add(1)
	}
}

// DroppedCount returns the number of events dropped due to backpressure.
func (c *Collector) DroppedCount() int64 {
	return c.dropped.Load()
}

// Close stops the collector and drains remaining events.
func (c *Collector) Close() {
	c.once.Do(func() {
		close(c.done)
		c.wg.Wait()

		if d := c.dropped.Load(); d > 0 {
			c.logger.Warn("events dropped due to backpressure", zap.Int64("dropped", d))
		}
	})
}

func (c *Collector) flushLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(FlushInterval)
	defer ticker.Stop()

	var batch []Event

	for {
		select {
		case e := <-c.events:
			batch = append(batch, e)
			if len(batch) >= FlushSize {
				c.flush(batch)
				batch = batch[:0]
			}

		case <-ticker.C:
			if len(batch) > 0 {
				c.flush(batch)
				batch = batch[:0]
			}

		case <-c.done:
			drainDone := make(chan struct{})
			go func() {
				defer close(drainDone)
				for {
					select {
					case e := <-c.events:
						batch = append(batch, e)
					default:
						if len(batch) > 0 {
							c.flush(batch)
						}
						return
					}
				}
			}()

			select {
			case <-drainDone:
			case <-time.After(DrainTimeout):
				c.logger.Warn("drain timeout, events may be lost", zap.Int("pending", len(batch)))
			}
			return
		}
	}
}

func (c *Collector) flush(batch []Event) {
	ctx := context.Background()
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		c.logger.Error("begin tx", zap.Error(err))
		return
	}

	stmt, err := tx.PrepareContext(ctx, c.db.Rebind(
		"INSERT INTO events (session_id, event_type, subject, metadata, created_at) VALUES (?, ?, ?, ?, ?)",
	))
	if err != nil {
		c.logger.Error("prepare insert", zap.Error(err))
		tx.Rollback()
		return
	}
	defer stmt.Close()

	for _, e := range batch {
		metadata := e.Metadata
		if metadata == "" {
			metadata = "{}"
		}
		if _, err := stmt.ExecContext(ctx, e.SessionID, e.EventType, e.Subject, metadata, e.CreatedAt.UnixMilli()); err != nil {
			c.logger.Error("insert event", zap.String("event_type", e.EventType), zap.Error(err))
		}
	}

	if err := tx.Commit(); err != nil {
		c.logger.Error("commit events", zap.Error(err))
	}
}
