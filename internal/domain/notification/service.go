package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carebridge/clinic/internal/platform/apperr"
	"github.com/carebridge/clinic/internal/platform/auth"
	"github.com/carebridge/clinic/internal/platform/db"
	"github.com/carebridge/clinic/internal/platform/notify"
	"github.com/carebridge/clinic/internal/platform/policy"
	"github.com/carebridge/clinic/pkg/pagination"
)

type Service struct {
	repo      Repository
	templates *Templates
	logger    zerolog.Logger
	now       func() time.Time
}

func NewService(repo Repository, templates *Templates, logger zerolog.Logger) *Service {
	return &Service{repo: repo, templates: templates, logger: logger, now: time.Now}
}

var _ notify.Recorder = (*Service)(nil)

// RecordReminder implements notify.Recorder: it stores the in-app notice of a
// delivered appointment reminder for the patient. A reminder that is
// delivered again after a failed dispatch keeps its first notice.
func (s *Service) RecordReminder(ctx context.Context, r notify.Reminder) error {
	id := TemplateAppointmentReminder
	if r.MeetingLink != "" {
		id = TemplateVirtualReminder
	}
	at := r.AppointmentDate.UTC()
	tpl, err := s.templates.Render(id, map[string]string{
		"patient_name": r.PatientName,
		"doctor_name":  r.DoctorName,
		"date":         at.Format("2006-01-02"),
		"time":         at.Format("15:04 MST"),
		"meeting_link": r.MeetingLink,
	})
	if err != nil {
		return fmt.Errorf("render reminder: %w", err)
	}
	entity := "appointment"
	sentAt := s.now().UTC()
	n := &Notification{
		UserID:            r.PatientUserID,
		Type:              tpl.Type,
		Title:             tpl.Title,
		Message:           tpl.Message,
		Status:            StatusSent,
		DeliveryMethod:    DeliveryInApp,
		RelatedEntityType: &entity,
		RelatedEntityID:   &r.AppointmentID,
		ScheduledFor:      &r.ReminderTime,
		SentAt:            &sentAt,
	}
	created, err := s.repo.CreateForReminder(ctx, n, r.ID)
	if err != nil {
		return fmt.Errorf("store notification: %w", err)
	}
	if !created {
		s.logger.Debug().Str("reminder_id", r.ID.String()).Msg("reminder notice already recorded")
	}
	return nil
}

func (s *Service) My(ctx context.Context, p *auth.Principal, unreadOnly bool, params pagination.Params) (*ListResponse, error) {
	items, total, unread, err := s.repo.ListByUser(ctx, p.UserID, unreadOnly, params.Limit, params.Offset)
	if err != nil {
		return nil, apperr.Internal("list notifications", err)
	}
	if items == nil {
		items = []*Notification{}
	}
	return &ListResponse{
		Notifications: items,
		Total:         total,
		Unread:        unread,
		Limit:         params.Limit,
		Offset:        params.Offset,
		HasMore:       params.HasNext(total),
	}, nil
}

// MarkRead marks one of the caller's notifications read. Reading it again
// keeps the original read time.
func (s *Service) MarkRead(ctx context.Context, p *auth.Principal, id uuid.UUID) (*Notification, error) {
	n, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, apperr.NotFound("Notification not found")
	}
	if err != nil {
		return nil, apperr.Internal("load notification", err)
	}
	if n.UserID != p.UserID {
		return nil, apperr.Forbidden(policy.AccessDenied)
	}
	if n.ReadAt != nil {
		return n, nil
	}
	at := s.now().UTC()
	if err := s.repo.MarkRead(ctx, id, at); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, apperr.NotFound("Notification not found")
		}
		return nil, apperr.Internal("mark notification read", err)
	}
	n.Status = StatusRead
	n.ReadAt = &at
	return n, nil
}
