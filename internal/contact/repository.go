package contact

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"macdesigns/internal/database"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

// Message is one stored visitor message.
type Message struct {
	ID            string    `json:"id"`
	Channel       string    `json:"channel"`
	SenderName    string    `json:"sender_name"`
	SenderCompany string    `json:"sender_company,omitempty"`
	Subject       string    `json:"subject,omitempty"`
	Body          string    `json:"message"`
	PhoneNumber   string    `json:"phone_number,omitempty"`
	Status        Status    `json:"status"`
	Error         string    `json:"error_message,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Repository stores messages in the contact_messages table.
type Repository struct {
	db *database.DB
}

func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts m. CreatedAt and UpdatedAt are set when zero.
func (r *Repository) Create(ctx context.Context, m *Message) error {
	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = m.CreatedAt
	if m.Status == "" {
		m.Status = StatusPending
	}

	_, err := r.db.ExecContext(ctx, r.db.Rebind(
		`INSERT INTO contact_messages
		   (id, channel, sender_name, sender_company, subject, message, phone_number, status, error_message, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		m.ID, m.Channel, m.SenderName, nullable(m.SenderCompany), nullable(m.Subject), m.Body,
		nullable(m.PhoneNumber), string(m.Status), nullable(m.Error),
		m.CreatedAt.UnixMilli(), m.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert contact message: %w", err)
	}
	return nil
}

// SetStatus moves a message to status, recording errMsg for failures.
func (r *Repository) SetStatus(ctx context.Context, id string, status Status, errMsg string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(
		"UPDATE contact_messages SET status = ?, error_message = ?, updated_at = ? WHERE id = ?"),
		string(status), nullable(errMsg), time.Now().UTC().UnixMilli(), id,
	)
	if err != nil {
		return fmt.Errorf("update contact message: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update contact message: %s not found", id)
	}
	return nil
}

// Recent returns up to limit messages, newest first.
func (r *Repository) Recent(ctx context.Context, limit int) ([]Message, error) {
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(
		`SELECT id, channel, sender_name, sender_company, subject, message, phone_number,
		        status, error_message, created_at, updated_at
		 FROM contact_messages ORDER BY created_at DESC, id DESC LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("query contact messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var (
			m                               Message
			company, subject, phone, errMsg sql.NullString
			status                          string
			created, updated                int64
		)
		if err := rows.Scan(&m.ID, &m.Channel, &m.SenderName, &company, &subject, &m.Body, &phone,
			&status, &errMsg, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan contact message: %w", err)
		}
		m.SenderCompany = company.String
		m.Subject = subject.String
		m.PhoneNumber = phone.String
		m.Error = errMsg.String
		m.Status = Status(status)
		m.CreatedAt = time.UnixMilli(created).UTC()
		m.UpdatedAt = time.UnixMilli(updated).UTC()
		out = append(out, m)
	}
	return out, rows.Err()
}

// Ping checks the table is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	var n int
	return r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM contact_messages").Scan(&n)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
