package notification

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, n *Notification) error
	// CreateForReminder stores n unless a notification for reminderID
	// already exists, and reports whether a row was written.
	CreateForReminder(ctx context.Context, n *Notification, reminderID uuid.UUID) (bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Notification, error)
	MarkRead(ctx context.Context, id uuid.UUID, at time.Time) error
	// ListByUser returns a page of the user's notifications, newest first,
	// with the total and unread counts.
	ListByUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) ([]*Notification, int, int, error)
}
