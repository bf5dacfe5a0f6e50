package notification

import (
	"time"

	"github.com/google/uuid"
)

const (
	TypeMedicationReminder  = "medication_reminder"
	TypeAppointmentReminder = "appointment_reminder"
	TypeTestResult          = "test_result"
	TypeGeneral             = "general"
)

const (
	StatusPending   = "pending"
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusFailed    = "failed"
	StatusRead      = "read"
)

const DeliveryInApp = "in_app"

type Notification struct {
	ID                uuid.UUID  `json:"id"`
	UserID            uuid.UUID  `json:"user_id"`
	Type              string     `json:"notification_type"`
	Title             string     `json:"title"`
	Message           string     `json:"message"`
	Status            string     `json:"status"`
	DeliveryMethod    string     `json:"delivery_method"`
	RelatedEntityType *string    `json:"related_entity_type"`
	RelatedEntityID   *uuid.UUID `json:"related_entity_id"`
	ScheduledFor      *time.Time `json:"scheduled_for"`
	SentAt            *time.Time `json:"sent_at"`
	ReadAt            *time.Time `json:"read_at"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

type ListResponse struct {
	Notifications []*Notification `json:"notifications"`
	Total         int             `json:"total"`
	Unread        int             `json:"unread"`
	Limit         int             `json:"limit"`
	Offset        int             `json:"offset"`
	HasMore       bool            `json:"has_more"`
}
