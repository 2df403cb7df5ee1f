package alert

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/homeswipe/internal/model"
)

// Reader reads and acknowledges a user's alerts.
type Reader interface {
	ListAlerts(ctx context.Context, userID string, unreadOnly bool, page model.Page) ([]model.Alert, error)
	MarkAlertRead(ctx context.Context, userID, alertID string, now time.Time) error
}

// Service exposes a user's alerts to the CLI and HTTP API.
type Service struct {
	store Reader
	now   func() time.Time
}

// NewService creates a Service.
func NewService(st Reader) *Service {
	return &Service{store: st, now: time.Now}
}

// List returns the user's alerts, newest first.
func (s *Service) List(ctx context.Context, userID string, unreadOnly bool, page model.Page) ([]model.Alert, error) {
	if userID == "" {
		return nil, eris.New("alert: user id is required")
	}
	alerts, err := s.store.ListAlerts(ctx, userID, unreadOnly, page.Normalize())
	return alerts, eris.Wrap(err, "alert: list")
}

// MarkRead records that the user has seen the alert. Marking an alert read
// twice keeps the first read time.
func (s *Service) MarkRead(ctx context.Context, userID, alertID string) error {
	if userID == "" || alertID == "" {
		return eris.New("alert: user id and alert id are required")
	}
	return eris.Wrap(s.store.MarkAlertRead(ctx, userID, alertID, s.now()), "alert: mark read")
}
