package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carebridge/clinic/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Querier {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const apptCols = `a.id, a.patient_id, a.doctor_id, a.appointment_date, a.duration_minutes, a.appointment_type,
	a.status, a.reason, a.notes, a.prescription_given, a.follow_up_required, a.follow_up_date,
	a.meeting_link, a.meeting_id, a.consultation_fee::float8, a.payment_status, a.created_at, a.updated_at`

func apptDest(a *Appointment, extra ...any) []any {
	return append([]any{&a.ID, &a.PatientID, &a.DoctorID, &a.AppointmentDate, &a.DurationMinutes, &a.AppointmentType,
		&a.Status, &a.Reason, &a.Notes, &a.PrescriptionGiven, &a.FollowUpRequired, &a.FollowUpDate,
		&a.MeetingLink, &a.MeetingID, &a.ConsultationFee, &a.PaymentStatus, &a.CreatedAt, &a.UpdatedAt}, extra...)
}

// detailsFrom joins the participant names used by search results and filters.
const detailsFrom = ` FROM appointments a
	JOIN patient_profiles pp ON pp.id = a.patient_id
	JOIN users pu ON pu.id = pp.user_id
	JOIN doctor_profiles dp ON dp.id = a.doctor_id
	JOIN users du ON du.id = dp.user_id`

func (r *repoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, doctor_id, appointment_date, duration_minutes, appointment_type,
			status, reason, notes, meeting_link, meeting_id, consultation_fee, payment_status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING created_at, updated_at`,
		a.ID, a.PatientID, a.DoctorID, a.AppointmentDate, a.DurationMinutes, a.AppointmentType,
		a.Status, a.Reason, a.Notes, a.MeetingLink, a.MeetingID, a.ConsultationFee, a.PaymentStatus,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	var a Appointment
	err := r.conn(ctx).QueryRow(ctx, `SELECT `+apptCols+` FROM appointments a WHERE a.id = $1`, id).Scan(apptDest(&a)...)
	if err != nil {
		return nil, db.NotFound(err)
	}
	return &a, nil
}

func (r *repoPG) Update(ctx context.Context, a *Appointment) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE appointments SET appointment_date=$2, duration_minutes=$3, appointment_type=$4, status=$5,
			reason=$6, notes=$7, prescription_given=$8, follow_up_required=$9, follow_up_date=$10,
			meeting_link=$11, meeting_id=$12, consultation_fee=$13, payment_status=$14, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		a.ID, a.AppointmentDate, a.DurationMinutes, a.AppointmentType, a.Status,
		a.Reason, a.Notes, a.PrescriptionGiven, a.FollowUpRequired, a.FollowUpDate,
		a.MeetingLink, a.MeetingID, a.ConsultationFee, a.PaymentStatus,
	).Scan(&a.UpdatedAt)
	return db.NotFound(err)
}

func where(f Filter) *db.Filter {
	var w db.Filter
	if f.PatientID != nil {
		w.Add("a.patient_id = ?", *f.PatientID)
	}
	if f.DoctorID != nil {
		w.Add("a.doctor_id = ?", *f.DoctorID)
	}
	if f.Status != "" {
		w.Add("a.status = ?", f.Status)
	}
	if len(f.Statuses) > 0 {
		w.Add("a.status = ANY(?)", f.Statuses)
	}
	if f.AppointmentType != "" {
		w.Add("a.appointment_type = ?", f.AppointmentType)
	}
	if f.DateFrom != nil {
		w.Add("a.appointment_date >= ?", *f.DateFrom)
	}
	if f.DateTo != nil {
		w.Add("a.appointment_date <= ?", *f.DateTo)
	}
	if f.Specialization != "" {
		w.Add("dp.specialization ILIKE ?", db.Contains(f.Specialization))
	}
	if f.DoctorName != "" {
		p := db.Contains(f.DoctorName)
		w.Add("(du.first_name ILIKE ? OR du.last_name ILIKE ? OR (du.first_name || ' ' || du.last_name) ILIKE ?)", p, p, p)
	}
	return &w
}

func (r *repoPG) Search(ctx context.Context, f Filter, limit, offset int) ([]*Details, int, error) {
	w := where(f)
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*)`+detailsFrom+w.Where(), w.Args()...).Scan(&total); err != nil {
		return nil, 0, err
	}

	order := ` ORDER BY a.appointment_date DESC, a.id DESC`
	if f.Ascending {
		order = ` ORDER BY a.appointment_date ASC, a.id ASC`
	}
	page, args := w.Page(limit, offset)
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+apptCols+`, pu.first_name || ' ' || pu.last_name, du.first_name || ' ' || du.last_name,
			dp.specialization`+detailsFrom+w.Where()+order+page, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Details
	for rows.Next() {
		var d Details
		if err := rows.Scan(apptDest(&d.Appointment, &d.PatientName, &d.DoctorName, &d.DoctorSpecialization)...); err != nil {
			return nil, 0, err
		}
		items = append(items, &d)
	}
	return items, total, rows.Err()
}

func (r *repoPG) Count(ctx context.Context, f Filter) (int, error) {
	w := where(f)
	var n int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*)`+detailsFrom+w.Where(), w.Args()...).Scan(&n)
	return n, err
}

func (r *repoPG) CountByStatus(ctx context.Context, f Filter) (map[string]int, error) {
	w := where(f)
	rows, err := r.conn(ctx).Query(ctx, `SELECT a.status, COUNT(*)`+detailsFrom+w.Where()+` GROUP BY a.status`, w.Args()...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[status] = n
	}
	return out, rows.Err()
}

const reminderCols = `r.id, r.appointment_id, r.reminder_time, r.reminder_type, r.is_sent, r.sent_at, r.created_at, r.updated_at`

func reminderDest(m *Reminder, extra ...any) []any {
	return append([]any{&m.ID, &m.AppointmentID, &m.ReminderTime, &m.ReminderType, &m.IsSent, &m.SentAt,
		&m.CreatedAt, &m.UpdatedAt}, extra...)
}

func (r *repoPG) CreateReminder(ctx context.Context, m *Reminder) error {
	m.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointment_reminders (id, appointment_id, reminder_time, reminder_type)
		VALUES ($1,$2,$3,$4)
		RETURNING is_sent, created_at, updated_at`,
		m.ID, m.AppointmentID, m.ReminderTime, m.ReminderType,
	).Scan(&m.IsSent, &m.CreatedAt, &m.UpdatedAt)
}

func (r *repoPG) GetReminder(ctx context.Context, id uuid.UUID) (*Reminder, error) {
	var m Reminder
	err := r.conn(ctx).QueryRow(ctx, `SELECT `+reminderCols+` FROM appointment_reminders r WHERE r.id = $1`, id).
		Scan(reminderDest(&m)...)
	if err != nil {
		return nil, db.NotFound(err)
	}
	return &m, nil
}

func (r *repoPG) DeleteReminder(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM appointment_reminders WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}

func (r *repoPG) ListReminders(ctx context.Context, patientID, doctorID *uuid.UUID, limit int) ([]*Reminder, error) {
	var w db.Filter
	if patientID != nil {
		w.Add("a.patient_id = ?", *patientID)
	}
	if doctorID != nil {
		w.Add("a.doctor_id = ?", *doctorID)
	}
	page, args := w.Page(limit, 0)
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+reminderCols+`
		FROM appointment_reminders r JOIN appointments a ON a.id = r.appointment_id`+
		w.Where()+` ORDER BY r.reminder_time DESC, r.id DESC`+page, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Reminder
	for rows.Next() {
		var m Reminder
		if err := rows.Scan(reminderDest(&m)...); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

func (r *repoPG) PendingReminders(ctx context.Context, now time.Time, limit int) ([]*DueReminder, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+reminderCols+`, pu.id, pu.first_name || ' ' || pu.last_name,
			du.first_name || ' ' || du.last_name, a.appointment_date, a.meeting_link
		FROM appointment_reminders r
		JOIN appointments a ON a.id = r.appointment_id
		JOIN patient_profiles pp ON pp.id = a.patient_id
		JOIN users pu ON pu.id = pp.user_id
		JOIN doctor_profiles dp ON dp.id = a.doctor_id
		JOIN users du ON du.id = dp.user_id
		WHERE NOT r.is_sent AND r.reminder_time <= $1
		ORDER BY r.reminder_time, r.id
		LIMIT $2`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*DueReminder
	for rows.Next() {
		var d DueReminder
		if err := rows.Scan(reminderDest(&d.Reminder, &d.PatientUserID, &d.PatientName,
			&d.DoctorName, &d.AppointmentDate, &d.MeetingLink)...); err != nil {
			return nil, err
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}

func (r *repoPG) MarkReminderSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointment_reminders SET is_sent = TRUE, sent_at = $2, updated_at = NOW()
		WHERE id = $1`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}
