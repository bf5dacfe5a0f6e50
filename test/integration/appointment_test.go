//go:build integration

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/carebridge/clinic/internal/domain/appointment"
	"github.com/carebridge/clinic/internal/platform/apperr"
	"github.com/carebridge/clinic/internal/platform/notify"
	"github.com/carebridge/clinic/pkg/pagination"
)

func TestAppointment_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s := newServices(t)
	patient := registerPatient(t, ctx, s, "Joana", "Melo")
	other := registerPatient(t, ctx, s, "Lia", "Sousa")
	doctor := registerDoctor(t, ctx, s, "Paulo", "Nunes", "Dermatology")

	a, err := s.appointment.Create(ctx, patient, &appointment.CreateRequest{
		DoctorID:        doctor.DoctorID,
		AppointmentDate: time.Now().Add(48 * time.Hour).UTC(),
		Reason:          ptr("Skin rash"),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if a.Status != appointment.StatusScheduled || a.DurationMinutes != appointment.DefaultDuration {
		t.Errorf("unexpected defaults: status=%s duration=%d", a.Status, a.DurationMinutes)
	}

	params := pagination.Params{Limit: 20}
	mine, err := s.appointment.MyList(ctx, doctor, "", params)
	if err != nil {
		t.Fatalf("doctor list: %v", err)
	}
	if mine.Total != 1 || mine.Appointments[0].PatientName != "Joana Melo" {
		t.Errorf("doctor sees %d appointments: %+v", mine.Total, mine.Appointments)
	}

	if _, err := s.appointment.Get(ctx, other, a.ID); apperr.KindOf(err) != apperr.KindForbidden {
		t.Errorf("other patient: expected forbidden, got %v", err)
	}
	res, err := s.appointment.Search(ctx, other, appointment.Filter{}, params)
	if err != nil {
		t.Fatalf("other search: %v", err)
	}
	if res.Total != 0 {
		t.Errorf("other patient search returned %d appointments", res.Total)
	}

	if err := s.appointment.Cancel(ctx, patient, a.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := s.appointment.Cancel(ctx, patient, a.ID); err != nil {
		t.Errorf("second cancel should be a no-op, got %v", err)
	}
	got, err := s.appointment.Get(ctx, doctor, a.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != appointment.StatusCancelled {
		t.Errorf("status = %s, want cancelled", got.Status)
	}
}

func TestAppointment_ReminderDispatch(t *testing.T) {
	ctx := context.Background()
	s := newServices(t)
	patient := registerPatient(t, ctx, s, "Rita", "Fonseca")
	doctor := registerDoctor(t, ctx, s, "Hugo", "Pires", "General Practice")

	a, err := s.appointment.Create(ctx, doctor, &appointment.CreateRequest{
		PatientID:       patient.PatientID,
		AppointmentDate: time.Now().Add(24 * time.Hour).UTC(),
		AppointmentType: ptr(appointment.TypeVirtual),
		MeetingLink:     ptr("https://meet.clinic.test/abc"),
	})
	if err != nil {
		t.Fatalf("create appointment: %v", err)
	}
	if _, err := s.appointment.CreateReminder(ctx, patient, a.ID, &appointment.ReminderRequest{
		ReminderTime: time.Now().Add(-time.Minute).UTC(),
		ReminderType: "email",
	}); err != nil {
		t.Fatalf("create reminder: %v", err)
	}

	d := notify.NewDispatcher(s.appointment, s.notification, nil, zerolog.Nop())
	sum, err := d.Run(ctx)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if sum.Sent < 1 || sum.Failed != 0 {
		t.Errorf("unexpected summary: %+v", sum)
	}

	inbox, err := s.notification.My(ctx, patient, true, pagination.Params{Limit: 50})
	if err != nil {
		t.Fatalf("notifications: %v", err)
	}
	if inbox.Unread != 1 || len(inbox.Notifications) != 1 {
		t.Fatalf("expected one unread notification, got %+v", inbox)
	}
	n := inbox.Notifications[0]
	if n.Title != "Virtual appointment reminder" || n.RelatedEntityID == nil || *n.RelatedEntityID != a.ID {
		t.Errorf("unexpected notification: %+v", n)
	}

	reminders, err := s.appointment.MyReminders(ctx, patient, 50)
	if err != nil {
		t.Fatalf("my reminders: %v", err)
	}
	if len(reminders) != 1 || !reminders[0].IsSent {
		t.Errorf("reminder not marked sent: %+v", reminders)
	}

	again, err := d.Run(ctx)
	if err != nil {
		t.Fatalf("second dispatch: %v", err)
	}
	if again.Pending != 0 {
		t.Errorf("second run found %d pending reminders", again.Pending)
	}

	redelivered := notify.Reminder{ID: reminders[0].ID, AppointmentID: a.ID, PatientUserID: patient.UserID, ReminderType: "email"}
	if err := s.notification.RecordReminder(ctx, redelivered); err != nil {
		t.Fatalf("record reminder again: %v", err)
	}

	if _, err := s.notification.MarkRead(ctx, patient, n.ID); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	inbox, err = s.notification.My(ctx, patient, false, pagination.Params{Limit: 50})
	if err != nil {
		t.Fatalf("notifications: %v", err)
	}
	if inbox.Unread != 0 || inbox.Total != 1 {
		t.Errorf("after read: unread=%d total=%d", inbox.Unread, inbox.Total)
	}
}
