package analytics

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"macdesigns/internal/database"
)

// ExportEvent is one raw event as exported.
type ExportEvent struct {
	ID        int64  `json:"id"`
	SessionID string `json:"session_id"`
	EventType string `json:"event_type"`
	Subject   string `json:"subject,omitempty"`
	Metadata  string `json:"metadata,omitempty"`
	CreatedAt string `json:"created_at"`
}

// GetEventsForExport returns raw events ordered by creation time.
func GetEventsForExport(ctx context.Context, db *database.DB, filter QueryFilter, limit int) ([]ExportEvent, error) {
	where := []string{"1=1"}
	args := make([]any, 0, 8)
	appendTimeFilter(&where, &args, "created_at", filter)
	appendEventTypeFilter(&where, &args, "event_type", filter.EventTypes)

	query := `
		SELECT id, session_id, event_type, COALESCE(subject, ''), COALESCE(metadata, '{}'), created_at
		FROM events
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY created_at ASC, id ASC`
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.QueryContext(ctx, db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query export events: %w", err)
	}
	defer rows.Close()

	events := make([]ExportEvent, 0, 256)
	for rows.Next() {
		var (
			e         ExportEvent
			createdAt int64
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &e.EventType, &e.Subject, &e.Metadata, &createdAt); err != nil {
			return nil, fmt.Errorf("scan export event: %w", err)
		}
		e.CreatedAt = time.UnixMilli(createdAt).UTC().Format(time.RFC3339)
		events = append(events, e)
	}
	return events, rows.Err()
}

// MarshalEventsJSON serializes events as a JSON document.
func MarshalEventsJSON(events []ExportEvent) ([]byte, error) {
	return json.MarshalIndent(events, "", "  ")
}

// MarshalEventsCSV serializes events as CSV.
func MarshalEventsCSV(events []ExportEvent) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)

	if err := w.Write([]string{"id", "session_id", "event_type", "subject", "metadata", "created_at"}); err != nil {
		return nil, err
	}
	for _, e := range events {
		record := []string{
			strconv.FormatInt(e.ID, 10),
			e.SessionID,
			e.EventType,
			e.Subject,
			e.Metadata,
			e.CreatedAt,
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
