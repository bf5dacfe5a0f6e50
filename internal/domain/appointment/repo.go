package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	Search(ctx context.Context, f Filter, limit, offset int) ([]*Details, int, error)
	Count(ctx context.Context, f Filter) (int, error)
	CountByStatus(ctx context.Context, f Filter) (map[string]int, error)

	CreateReminder(ctx context.Context, r *Reminder) error
	GetReminder(ctx context.Context, id uuid.UUID) (*Reminder, error)
	DeleteReminder(ctx context.Context, id uuid.UUID) error
	ListReminders(ctx context.Context, patientID, doctorID *uuid.UUID, limit int) ([]*Reminder, error)
	PendingReminders(ctx context.Context, now time.Time, limit int) ([]*DueReminder, error)
	MarkReminderSent(ctx context.Context, id uuid.UUID, at time.Time) error
}

// Profiles answers the existence checks made before an appointment is created.
type Profiles interface {
	PatientExists(ctx context.Context, id uuid.UUID) (bool, error)
	DoctorExists(ctx context.Context, id uuid.UUID) (bool, error)
}
