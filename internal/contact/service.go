package contact

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// HistoryLimit caps History.
const HistoryLimit = 50

// SMSRequest is a text message from a visitor.
type SMSRequest struct {
	SenderName    string `json:"sender_name" validate:"required,max=50"`
	SenderCompany string `json:"sender_company" validate:"max=50"`
	Message       string `json:"message" validate:"required,max=500"`
}

// Normalize trims surrounding whitespace.
func (r SMSRequest) Normalize() SMSRequest {
	return SMSRequest{
		SenderName:    strings.TrimSpace(r.SenderName),
		SenderCompany: strings.TrimSpace(r.SenderCompany),
		Message:       strings.TrimSpace(r.Message),
	}
}

// SMSResult is reported back to the visitor.
type SMSResult struct {
	Success   bool   `json:"success"`
	MessageID string `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
	Mode      Mode   `json:"mode"`

	// Invalid marks a request rejected by validation before any delivery.
	Invalid bool `json:"-"`
}

// Health describes whether messages can really be delivered.
type Health struct {
	Configured bool   `json:"configured"`
	Database   bool   `json:"database"`
	Relay      bool   `json:"relay"`
	Message    string `json:"message"`
	Mode       Mode   `json:"mode"`
}

// Service validates, records and delivers SMS contact messages.
type Service struct {
	repo     *Repository
	notifier Notifier
	phone    string
	now      func() time.Time
	logger   *zap.Logger
}

// NewService wires a service. repo may be nil in demo mode.
func NewService(repo *Repository, notifier Notifier, phone string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, notifier: notifier, phone: phone, now: time.Now, logger: logger}
}

// Mode reports the notifier mode.
func (s *Service) Mode() Mode {
	return s.notifier.Mode()
}

// SendSMS validates req and delivers it. Demo mode never touches the database.
// Production mode records the message as pending first, then marks it sent or
// failed.
func (s *Service) SendSMS(ctx context.Context, req SMSRequest) SMSResult {
	mode := s.Mode()
	req = req.Normalize()

	if err := validateStruct(req); err != nil {
		return SMSResult{Error: smsValidationMessage(err), Mode: mode, Invalid: true}
	}

	body := s.format(req)

	if mode == ModeDemo || s.repo == nil {
		id, err := s.notifier.Send(ctx, body)
		if err != nil {
			return SMSResult{Error: err.Error(), Mode: mode}
		}
		return SMSResult{Success: true, MessageID: id, Mode: mode}
	}

	msg := &Message{
		ID:            uuid.NewString(),
		Channel:       "sms",
		SenderName:    req.SenderName,
		SenderCompany: req.SenderCompany,
		Body:          req.Message,
		PhoneNumber:   s.phone,
		Status:        StatusPending,
	}
	if err := s.repo.Create(ctx, msg); err != nil {
		s.logger.Error("store contact message", zap.Error(err))
		return SMSResult{Error: "Failed to store message. Please try again.", Mode: mode}
	}

	if _, err := s.notifier.Send(ctx, body); err != nil {
		// The visitor may have gone; record the outcome regardless.
		if uerr := s.repo.SetStatus(context.WithoutCancel(ctx), msg.ID, StatusFailed, err.Error()); uerr != nil {
			s.logger.Error("mark contact message failed", zap.Error(uerr))
		}
		return SMSResult{Error: "Failed to send SMS. Please try again or use another contact method.", Mode: mode}
	}

	if err := s.repo.SetStatus(context.WithoutCancel(ctx), msg.ID, StatusSent, ""); err != nil {
		s.logger.Error("mark contact message sent", zap.Error(err))
	}
	return SMSResult{Success: true, MessageID: msg.ID, Mode: mode}
}

// History returns the latest stored messages. Demo mode has none.
func (s *Service) History(ctx context.Context) ([]Message, error) {
	if s.Mode() == ModeDemo || s.repo == nil {
		return []Message{}, nil
	}
	return s.repo.Recent(ctx, HistoryLimit)
}

// Health reports delivery readiness.
func (s *Service) Health(ctx context.Context) Health {
	h := Health{Mode: s.Mode()}
	if h.Mode == ModeDemo {
		h.Message = "Running in demo mode - perfect for testing the interface!"
		return h
	}

	h.Configured = true
	h.Relay = true
	if s.repo != nil {
		if err := s.repo.Ping(ctx); err != nil {
			s.logger.Warn("contact health: database", zap.Error(err))
		} else {
			h.Database = true
		}
	}
	if h.Database {
		h.Message = "SMS relay is fully operational"
	} else {
		h.Message = "SMS relay is configured but message storage is unavailable"
	}
	return h
}

func (s *Service) format(req SMSRequest) string {
	company := req.SenderCompany
	if company == "" {
		company = "Not provided"
	}

	var b strings.Builder
	b.WriteString("New Portfolio Contact from MAC DESIGNS:\n\n")
	b.WriteString("Name: " + req.SenderName + "\n")
	b.WriteString("Company: " + company + "\n\n")
	b.WriteString("Message:\n" + req.Message + "\n\n")
	b.WriteString(s.now().Format("Jan 2, 2006 3:04 PM MST"))
	return b.String()
}

func smsValidationMessage(err error) string {
	var ve *ValidationError
	if !errors.As(err, &ve) {
		return err.Error()
	}
	switch {
	case ve.Field == "sender_name" && strings.Contains(ve.Message, "required"):
		return "Sender name is required"
	case ve.Field == "sender_name":
		return "Sender name must be 50 characters or less"
	case ve.Field == "message" && strings.Contains(ve.Message, "required"):
		return "Message is required"
	case ve.Field == "message":
		return "Message is too long (max 500 characters)"
	default:
		return ve.Error()
	}
}
