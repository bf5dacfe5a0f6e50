package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carebridge/clinic/internal/platform/apperr"
	"github.com/carebridge/clinic/internal/platform/auth"
	"github.com/carebridge/clinic/internal/platform/batch"
	"github.com/carebridge/clinic/internal/platform/db"
	"github.com/carebridge/clinic/internal/platform/notify"
	"github.com/carebridge/clinic/internal/platform/policy"
	"github.com/carebridge/clinic/internal/platform/reporting"
	"github.com/carebridge/clinic/pkg/pagination"
)

const (
	// MaxBatch caps the ids accepted by one batch update.
	MaxBatch = 100
	// exportLimit caps the rows written by the xlsx export.
	exportLimit = 5000
)

type Service struct {
	repo     Repository
	profiles Profiles
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(repo Repository, profiles Profiles, logger zerolog.Logger) *Service {
	return &Service{repo: repo, profiles: profiles, logger: logger, now: time.Now}
}

func (s *Service) Create(ctx context.Context, p *auth.Principal, req *CreateRequest) (*Appointment, error) {
	patientID, err := policy.ResolveCreatePatient(p, req.PatientID)
	if err != nil {
		return nil, err
	}
	doctorID, err := policy.ResolveCreateDoctor(p, req.DoctorID)
	if err != nil {
		return nil, err
	}
	if req.AppointmentDate.IsZero() {
		return nil, apperr.Validation("appointment_date is required")
	}

	a := &Appointment{
		PatientID:       patientID,
		DoctorID:        doctorID,
		AppointmentDate: req.AppointmentDate,
		DurationMinutes: DefaultDuration,
		AppointmentType: TypeConsultation,
		Status:          StatusScheduled,
		Reason:          req.Reason,
		Notes:           req.Notes,
		MeetingLink:     req.MeetingLink,
		MeetingID:       req.MeetingID,
		ConsultationFee: req.ConsultationFee,
		PaymentStatus:   "pending",
	}
	if req.DurationMinutes != nil {
		a.DurationMinutes = *req.DurationMinutes
	}
	if req.AppointmentType != nil {
		a.AppointmentType = *req.AppointmentType
	}
	if err := validate(a); err != nil {
		return nil, err
	}

	ok, err := s.profiles.DoctorExists(ctx, doctorID)
	if err != nil {
		return nil, apperr.Internal("check doctor", err)
	}
	if !ok {
		return nil, apperr.Validation("Doctor not found")
	}
	ok, err = s.profiles.PatientExists(ctx, patientID)
	if err != nil {
		return nil, apperr.Internal("check patient", err)
	}
	if !ok {
		return nil, apperr.Validation("Patient not found")
	}

	if err := s.repo.Create(ctx, a); err != nil {
		if db.IsIntegrityViolation(err) {
			return nil, apperr.Integrity("Failed to create appointment - data integrity error", err)
		}
		return nil, apperr.Internal("create appointment", err)
	}
	s.logger.Info().Str("appointment_id", a.ID.String()).Str("patient_id", patientID.String()).
		Str("doctor_id", doctorID.String()).Msg("appointment created")
	return a, nil
}

func validate(a *Appointment) error {
	if a.DurationMinutes < MinDuration || a.DurationMinutes > MaxDuration {
		return apperr.Validation(fmt.Sprintf("Duration must be between %d and %d minutes", MinDuration, MaxDuration))
	}
	if a.ConsultationFee != nil && *a.ConsultationFee < 0 {
		return apperr.Validation("Consultation fee cannot be negative")
	}
	if !validTypes[a.AppointmentType] {
		return apperr.Validation("Invalid appointment type: " + a.AppointmentType)
	}
	return nil
}

// load fetches an appointment the principal may act on.
func (s *Service) load(ctx context.Context, p *auth.Principal, id uuid.UUID) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, apperr.NotFound("Appointment not found")
	}
	if err != nil {
		return nil, apperr.Internal("load appointment", err)
	}
	if err := policy.Authorize(p, a.PatientID, a.DoctorID); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) Get(ctx context.Context, p *auth.Principal, id uuid.UUID) (*Appointment, error) {
	return s.load(ctx, p, id)
}

// Update applies a partial update. Patients may change only reason and notes.
func (s *Service) Update(ctx context.Context, p *auth.Principal, id uuid.UUID, req *UpdateRequest) (*Appointment, error) {
	a, err := s.load(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if err := policy.RestrictFields(p, req.Fields(), "reason", "notes"); err != nil {
		return nil, err
	}
	if err := s.apply(ctx, a, req); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) apply(ctx context.Context, a *Appointment, req *UpdateRequest) error {
	if req.Status != nil {
		to := *req.Status
		if !ValidStatus(to) {
			return apperr.Validation("Invalid appointment status: " + to)
		}
		if !CanTransition(a.Status, to) {
			return apperr.Validation(fmt.Sprintf("Cannot change appointment status from %s to %s", a.Status, to))
		}
		a.Status = to
	}
	if req.AppointmentDate != nil {
		a.AppointmentDate = *req.AppointmentDate
	}
	if req.DurationMinutes != nil {
		a.DurationMinutes = *req.DurationMinutes
	}
	if req.AppointmentType != nil {
		a.AppointmentType = *req.AppointmentType
	}
	if req.PrescriptionGiven != nil {
		a.PrescriptionGiven = *req.PrescriptionGiven
	}
	if req.FollowUpRequired != nil {
		a.FollowUpRequired = *req.FollowUpRequired
	}
	if req.PaymentStatus != nil {
		a.PaymentStatus = *req.PaymentStatus
	}
	setIf(&a.Reason, req.Reason)
	setIf(&a.Notes, req.Notes)
	setIf(&a.FollowUpDate, req.FollowUpDate)
	setIf(&a.MeetingLink, req.MeetingLink)
	setIf(&a.MeetingID, req.MeetingID)
	setIf(&a.ConsultationFee, req.ConsultationFee)
	if err := validate(a); err != nil {
		return err
	}

	err := s.repo.Update(ctx, a)
	if errors.Is(err, db.ErrNotFound) {
		return apperr.NotFound("Appointment not found")
	}
	if err != nil {
		return apperr.Internal("update appointment", err)
	}
	return nil
}

func setIf[T any](dst **T, v *T) {
	if v != nil {
		*dst = v
	}
}

// Cancel moves the appointment to cancelled and keeps the row. Cancelling a
// cancelled appointment succeeds without a write.
func (s *Service) Cancel(ctx context.Context, p *auth.Principal, id uuid.UUID) error {
	a, err := s.load(ctx, p, id)
	if err != nil {
		return err
	}
	if a.Status == StatusCancelled {
		return nil
	}
	status := StatusCancelled
	if err := s.apply(ctx, a, &UpdateRequest{Status: &status}); err != nil {
		if apperr.KindOf(err) == apperr.KindValidation {
			return apperr.Validation("Cannot cancel an appointment that is " + a.Status)
		}
		return err
	}
	s.logger.Info().Str("appointment_id", id.String()).Msg("appointment cancelled")
	return nil
}

// ownScope returns the filter restricting a listing to the caller's own
// appointments. ok is false for callers without a patient or doctor profile.
func ownScope(p *auth.Principal) (f Filter, ok bool) {
	switch {
	case p.IsPatient() && p.PatientID != nil:
		f.PatientID = p.PatientID
		return f, true
	case p.IsDoctor() && p.DoctorID != nil:
		f.DoctorID = p.DoctorID
		return f, true
	}
	return f, false
}

// narrow applies role narrowing to a search filter and fails closed when a
// patient or doctor principal carries no profile id.
func narrow(p *auth.Principal, f Filter) (Filter, error) {
	if p.IsPatient() && p.PatientID == nil {
		return f, apperr.NotFound("Patient profile not found")
	}
	if p.IsDoctor() && p.DoctorID == nil {
		return f, apperr.NotFound("Doctor profile not found")
	}
	sc := policy.NarrowAppointments(p, policy.Scope{PatientID: f.PatientID, DoctorID: f.DoctorID})
	f.PatientID, f.DoctorID = sc.PatientID, sc.DoctorID
	return f, nil
}

func (s *Service) Search(ctx context.Context, p *auth.Principal, f Filter, params pagination.Params) (*SearchResponse, error) {
	f, err := narrow(p, f)
	if err != nil {
		return nil, err
	}
	if f.Status != "" && !ValidStatus(f.Status) {
		return nil, apperr.Validation("Invalid appointment status: " + f.Status)
	}
	return s.search(ctx, f, params)
}

func (s *Service) search(ctx context.Context, f Filter, params pagination.Params) (*SearchResponse, error) {
	items, total, err := s.repo.Search(ctx, f, params.Limit, params.Offset)
	if err != nil {
		return nil, apperr.Internal("search appointments", err)
	}
	if items == nil {
		items = []*Details{}
	}
	return &SearchResponse{
		Appointments: items,
		Total:        total,
		Limit:        params.Limit,
		Offset:       params.Offset,
		HasMore:      params.HasNext(total),
	}, nil
}

// MyList lists the caller's own appointments, newest first.
func (s *Service) MyList(ctx context.Context, p *auth.Principal, status string, params pagination.Params) (*SearchResponse, error) {
	f, ok := ownScope(p)
	if !ok {
		return &SearchResponse{Appointments: []*Details{}, Limit: params.Limit, Offset: params.Offset}, nil
	}
	if status != "" {
		if !ValidStatus(status) {
			return nil, apperr.Validation("Invalid appointment status: " + status)
		}
		f.Status = status
	}
	return s.search(ctx, f, params)
}

func (s *Service) upcomingFilter(f Filter) Filter {
	now := s.now()
	f.DateFrom = &now
	f.Statuses = []string{StatusScheduled, StatusConfirmed}
	return f
}

// Upcoming returns future scheduled or confirmed appointments, soonest first.
func (s *Service) Upcoming(ctx context.Context, p *auth.Principal, limit int) ([]*Details, error) {
	f, ok := ownScope(p)
	if !ok {
		return []*Details{}, nil
	}
	f = s.upcomingFilter(f)
	f.Ascending = true
	items, _, err := s.repo.Search(ctx, f, limit, 0)
	if err != nil {
		return nil, apperr.Internal("list upcoming appointments", err)
	}
	if items == nil {
		items = []*Details{}
	}
	return items, nil
}

func (s *Service) Stats(ctx context.Context, p *auth.Principal) (*Stats, error) {
	st := &Stats{}
	f, ok := ownScope(p)
	if !ok {
		return st, nil
	}
	counts, err := s.repo.CountByStatus(ctx, f)
	if err != nil {
		return nil, apperr.Internal("count appointments", err)
	}
	for _, status := range Statuses {
		st.add(status, counts[status])
	}

	if st.UpcomingCount, err = s.repo.Count(ctx, s.upcomingFilter(f)); err != nil {
		return nil, apperr.Internal("count upcoming appointments", err)
	}
	now := s.now()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	end := start.Add(24*time.Hour - time.Nanosecond)
	today := f
	today.DateFrom, today.DateTo = &start, &end
	if st.TodayCount, err = s.repo.Count(ctx, today); err != nil {
		return nil, apperr.Internal("count today's appointments", err)
	}
	return st, nil
}

var exportHeaders = []string{
	"Appointment ID", "Date", "Duration (min)", "Type", "Status", "Patient", "Doctor",
	"Specialization", "Reason", "Consultation Fee", "Payment Status", "Meeting Link",
}

// Export renders the caller's appointments as an xlsx workbook.
func (s *Service) Export(ctx context.Context, p *auth.Principal) ([]byte, error) {
	var items []*Details
	if f, ok := ownScope(p); ok {
		var err error
		items, _, err = s.repo.Search(ctx, f, exportLimit, 0)
		if err != nil {
			return nil, apperr.Internal("export appointments", err)
		}
	}
	rows := make([][]interface{}, 0, len(items))
	for _, a := range items {
		var fee interface{}
		if a.ConsultationFee != nil {
			fee = *a.ConsultationFee
		}
		rows = append(rows, []interface{}{
			a.ID, a.AppointmentDate, a.DurationMinutes, a.AppointmentType, a.Status, a.PatientName, a.DoctorName,
			a.DoctorSpecialization, a.Reason, fee, a.PaymentStatus, a.MeetingLink,
		})
	}
	data, err := reporting.WriteXLSX("Appointments", exportHeaders, rows)
	if err != nil {
		return nil, apperr.Internal("render appointment export", err)
	}
	return data, nil
}

// Batch applies status and notes to each appointment independently.
func (s *Service) Batch(ctx context.Context, p *auth.Principal, req *batch.Request) (*batch.Result, error) {
	if !p.IsDoctor() && !p.IsAdmin() {
		return nil, apperr.Forbidden("Only admins and doctors can perform batch updates")
	}
	if err := req.Validate(MaxBatch); err != nil {
		return nil, err
	}
	upd := &UpdateRequest{Status: req.Status, Notes: req.Notes}
	res := batch.Apply(ctx, s.logger, req.IDs, func(ctx context.Context, id uuid.UUID) error {
		a, err := s.load(ctx, p, id)
		if err != nil {
			return err
		}
		return s.apply(ctx, a, upd)
	})
	s.logger.Info().Int("updated", res.UpdatedCount).Int("failed", res.FailedCount).Msg("appointment batch update")
	return &res, nil
}

func (s *Service) CreateReminder(ctx context.Context, p *auth.Principal, appointmentID uuid.UUID, req *ReminderRequest) (*Reminder, error) {
	if _, err := s.load(ctx, p, appointmentID); err != nil {
		return nil, err
	}
	if !validReminderTypes[req.ReminderType] {
		return nil, apperr.Validation("Reminder type must be one of: email, sms, push")
	}
	if req.ReminderTime.IsZero() {
		return nil, apperr.Validation("reminder_time is required")
	}
	r := &Reminder{AppointmentID: appointmentID, ReminderTime: req.ReminderTime, ReminderType: req.ReminderType}
	if err := s.repo.CreateReminder(ctx, r); err != nil {
		return nil, apperr.Internal("create reminder", err)
	}
	return r, nil
}

func (s *Service) MyReminders(ctx context.Context, p *auth.Principal, limit int) ([]*Reminder, error) {
	f, ok := ownScope(p)
	if !ok {
		return []*Reminder{}, nil
	}
	items, err := s.repo.ListReminders(ctx, f.PatientID, f.DoctorID, limit)
	if err != nil {
		return nil, apperr.Internal("list reminders", err)
	}
	if items == nil {
		items = []*Reminder{}
	}
	return items, nil
}

func (s *Service) DeleteReminder(ctx context.Context, p *auth.Principal, id uuid.UUID) error {
	r, err := s.repo.GetReminder(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return apperr.NotFound("Reminder not found")
	}
	if err != nil {
		return apperr.Internal("load reminder", err)
	}
	if _, err := s.load(ctx, p, r.AppointmentID); err != nil {
		return err
	}
	if err := s.repo.DeleteReminder(ctx, id); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return apperr.NotFound("Reminder not found")
		}
		return apperr.Internal("delete reminder", err)
	}
	return nil
}

// PendingReminders implements notify.ReminderSource.
func (s *Service) PendingReminders(ctx context.Context, now time.Time, limit int) ([]notify.Reminder, error) {
	due, err := s.repo.PendingReminders(ctx, now, limit)
	if err != nil {
		return nil, fmt.Errorf("pending reminders: %w", err)
	}
	out := make([]notify.Reminder, 0, len(due))
	for _, d := range due {
		r := notify.Reminder{
			ID:              d.ID,
			AppointmentID:   d.AppointmentID,
			PatientUserID:   d.PatientUserID,
			PatientName:     d.PatientName,
			DoctorName:      d.DoctorName,
			AppointmentDate: d.AppointmentDate,
			ReminderTime:    d.ReminderTime,
			ReminderType:    d.ReminderType,
		}
		if d.MeetingLink != nil {
			r.MeetingLink = *d.MeetingLink
		}
		out = append(out, r)
	}
	return out, nil
}

// MarkReminderSent implements notify.ReminderSource.
func (s *Service) MarkReminderSent(ctx context.Context, id uuid.UUID) error {
	return s.repo.MarkReminderSent(ctx, id, s.now())
}
