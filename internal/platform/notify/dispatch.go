package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Reminder is a due appointment reminder with what is needed to announce it.
type Reminder struct {
	ID              uuid.UUID `json:"reminder_id"`
	AppointmentID   uuid.UUID `json:"appointment_id"`
	PatientUserID   uuid.UUID `json:"patient_user_id"`
	PatientName     string    `json:"patient_name"`
	DoctorName      string    `json:"doctor_name"`
	AppointmentDate time.Time `json:"appointment_date"`
	ReminderTime    time.Time `json:"reminder_time"`
	ReminderType    string    `json:"reminder_type"`
	MeetingLink     string    `json:"meeting_link,omitempty"`
}

// ReminderSource yields due reminders and accepts their delivery.
type ReminderSource interface {
	PendingReminders(ctx context.Context, now time.Time, limit int) ([]Reminder, error)
	MarkReminderSent(ctx context.Context, id uuid.UUID) error
}

// Recorder stores the in-app notification for a delivered reminder.
type Recorder interface {
	RecordReminder(ctx context.Context, r Reminder) error
}

// Sender is implemented by Client.
type Sender interface {
	Send(ctx context.Context, ev Event) error
}

// Summary counts the outcome of one dispatch run.
type Summary struct {
	Pending int `json:"pending"`
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
}

const DefaultBatchSize = 100

// Dispatcher delivers pending reminders once per Run.
type Dispatcher struct {
	source    ReminderSource
	recorder  Recorder
	sender    Sender // nil when no webhook is configured
	logger    zerolog.Logger
	batchSize int
	now       func() time.Time
}

func NewDispatcher(source ReminderSource, recorder Recorder, sender Sender, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		source:    source,
		recorder:  recorder,
		sender:    sender,
		logger:    logger,
		batchSize: DefaultBatchSize,
		now:       time.Now,
	}
}

// Run delivers each due reminder independently. A failed reminder stays
// pending for the next run, so delivery is at least once: a reminder whose
// webhook went out but whose mark failed is sent again. Its event id is the
// reminder id so receivers can drop the repeat, and the Recorder keeps one
// in-app notice per reminder.
func (d *Dispatcher) Run(ctx context.Context) (Summary, error) {
	reminders, err := d.source.PendingReminders(ctx, d.now().UTC(), d.batchSize)
	if err != nil {
		return Summary{}, fmt.Errorf("load pending reminders: %w", err)
	}

	sum := Summary{Pending: len(reminders)}
	for _, r := range reminders {
		if err := d.deliver(ctx, r); err != nil {
			sum.Failed++
			d.logger.Warn().Err(err).
				Str("reminder_id", r.ID.String()).
				Str("appointment_id", r.AppointmentID.String()).
				Msg("reminder delivery failed")
			continue
		}
		sum.Sent++
	}

	d.logger.Info().
		Int("pending", sum.Pending).
		Int("sent", sum.Sent).
		Int("failed", sum.Failed).
		Msg("reminder dispatch finished")
	return sum, nil
}

func (d *Dispatcher) deliver(ctx context.Context, r Reminder) error {
	if d.sender != nil {
		ev, err := NewEvent(EventAppointmentReminder, r)
		if err != nil {
			return err
		}
		ev.ID = r.ID.String()
		if err := d.sender.Send(ctx, ev); err != nil {
			return err
		}
	}
	if err := d.recorder.RecordReminder(ctx, r); err != nil {
		return fmt.Errorf("record notification: %w", err)
	}
	if err := d.source.MarkReminderSent(ctx, r.ID); err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	return nil
}
