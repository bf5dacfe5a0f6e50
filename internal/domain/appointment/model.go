package appointment

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusScheduled  = "scheduled"
	StatusConfirmed  = "confirmed"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
	StatusNoShow     = "no_show"
)

// Statuses in lifecycle order; stats and exports follow it.
var Statuses = []string{StatusScheduled, StatusConfirmed, StatusInProgress, StatusCompleted, StatusCancelled, StatusNoShow}

const (
	TypeConsultation = "consultation"
	TypeFollowUp     = "follow_up"
	TypeCheckup      = "checkup"
	TypeEmergency    = "emergency"
	TypeVirtual      = "virtual"
)

var validTypes = map[string]bool{
	TypeConsultation: true, TypeFollowUp: true, TypeCheckup: true, TypeEmergency: true, TypeVirtual: true,
}

var transitions = map[string][]string{
	StatusScheduled:  {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusInProgress, StatusCancelled, StatusNoShow},
	StatusInProgress: {StatusCompleted},
}

func ValidStatus(s string) bool {
	for _, v := range Statuses {
		if v == s {
			return true
		}
	}
	return false
}

// CanTransition reports whether an appointment in status from may move to
// status to. Staying in the same status is always allowed.
func CanTransition(from, to string) bool {
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal statuses have no outgoing transitions.
func Terminal(s string) bool {
	return len(transitions[s]) == 0
}

const (
	DefaultDuration = 30
	MinDuration     = 15
	MaxDuration     = 180
)

type Appointment struct {
	ID                uuid.UUID  `json:"id"`
	PatientID         uuid.UUID  `json:"patient_id"`
	DoctorID          uuid.UUID  `json:"doctor_id"`
	AppointmentDate   time.Time  `json:"appointment_date"`
	DurationMinutes   int        `json:"duration_minutes"`
	AppointmentType   string     `json:"appointment_type"`
	Status            string     `json:"status"`
	Reason            *string    `json:"reason"`
	Notes             *string    `json:"notes"`
	PrescriptionGiven bool       `json:"prescription_given"`
	FollowUpRequired  bool       `json:"follow_up_required"`
	FollowUpDate      *time.Time `json:"follow_up_date"`
	MeetingLink       *string    `json:"meeting_link"`
	MeetingID         *string    `json:"meeting_id"`
	ConsultationFee   *float64   `json:"consultation_fee"`
	PaymentStatus     string     `json:"payment_status"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Details is an appointment with the participant names joined in.
type Details struct {
	Appointment
	PatientName          string `json:"patient_name"`
	DoctorName           string `json:"doctor_name"`
	DoctorSpecialization string `json:"doctor_specialization"`
}

type CreateRequest struct {
	PatientID       *uuid.UUID `json:"patient_id"`
	DoctorID        *uuid.UUID `json:"doctor_id"`
	AppointmentDate time.Time  `json:"appointment_date"`
	DurationMinutes *int       `json:"duration_minutes"`
	AppointmentType *string    `json:"appointment_type"`
	Reason          *string    `json:"reason"`
	Notes           *string    `json:"notes"`
	MeetingLink     *string    `json:"meeting_link"`
	MeetingID       *string    `json:"meeting_id"`
	ConsultationFee *float64   `json:"consultation_fee"`
}

// UpdateRequest is a partial update; nil fields are left unchanged.
type UpdateRequest struct {
	AppointmentDate   *time.Time `json:"appointment_date"`
	DurationMinutes   *int       `json:"duration_minutes"`
	AppointmentType   *string    `json:"appointment_type"`
	Status            *string    `json:"status"`
	Reason            *string    `json:"reason"`
	Notes             *string    `json:"notes"`
	PrescriptionGiven *bool      `json:"prescription_given"`
	FollowUpRequired  *bool      `json:"follow_up_required"`
	FollowUpDate      *time.Time `json:"follow_up_date"`
	MeetingLink       *string    `json:"meeting_link"`
	MeetingID         *string    `json:"meeting_id"`
	ConsultationFee   *float64   `json:"consultation_fee"`
	PaymentStatus     *string    `json:"payment_status"`
}

// Fields lists the JSON names of the fields set on u.
func (u *UpdateRequest) Fields() []string {
	var out []string
	add := func(set bool, name string) {
		if set {
			out = append(out, name)
		}
	}
	add(u.AppointmentDate != nil, "appointment_date")
	add(u.DurationMinutes != nil, "duration_minutes")
	add(u.AppointmentType != nil, "appointment_type")
	add(u.Status != nil, "status")
	add(u.Reason != nil, "reason")
	add(u.Notes != nil, "notes")
	add(u.PrescriptionGiven != nil, "prescription_given")
	add(u.FollowUpRequired != nil, "follow_up_required")
	add(u.FollowUpDate != nil, "follow_up_date")
	add(u.MeetingLink != nil, "meeting_link")
	add(u.MeetingID != nil, "meeting_id")
	add(u.ConsultationFee != nil, "consultation_fee")
	add(u.PaymentStatus != nil, "payment_status")
	return out
}

// Filter narrows a search. Zero values are ignored.
type Filter struct {
	PatientID       *uuid.UUID
	DoctorID        *uuid.UUID
	Status          string
	Statuses        []string
	AppointmentType string
	DateFrom        *time.Time
	DateTo          *time.Time
	Specialization  string
	DoctorName      string
	// Ascending orders by appointment_date ascending for upcoming views.
	Ascending bool
}

type SearchResponse struct {
	Appointments []*Details `json:"appointments"`
	Total        int        `json:"total"`
	Limit        int        `json:"limit"`
	Offset       int        `json:"offset"`
	HasMore      bool       `json:"has_more"`
}

type Stats struct {
	TotalAppointments int `json:"total_appointments"`
	Scheduled         int `json:"scheduled"`
	Confirmed         int `json:"confirmed"`
	InProgress        int `json:"in_progress"`
	Completed         int `json:"completed"`
	Cancelled         int `json:"cancelled"`
	NoShow            int `json:"no_show"`
	UpcomingCount     int `json:"upcoming_count"`
	TodayCount        int `json:"today_count"`
}

func (s *Stats) add(status string, n int) {
	s.TotalAppointments += n
	switch status {
	case StatusScheduled:
		s.Scheduled += n
	case StatusConfirmed:
		s.Confirmed += n
	case StatusInProgress:
		s.InProgress += n
	case StatusCompleted:
		s.Completed += n
	case StatusCancelled:
		s.Cancelled += n
	case StatusNoShow:
		s.NoShow += n
	}
}

var validReminderTypes = map[string]bool{"email": true, "sms": true, "push": true}

type Reminder struct {
	ID            uuid.UUID  `json:"id"`
	AppointmentID uuid.UUID  `json:"appointment_id"`
	ReminderTime  time.Time  `json:"reminder_time"`
	ReminderType  string     `json:"reminder_type"`
	IsSent        bool       `json:"is_sent"`
	SentAt        *time.Time `json:"sent_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

type ReminderRequest struct {
	ReminderTime time.Time `json:"reminder_time"`
	ReminderType string    `json:"reminder_type"`
}

// DueReminder is a pending reminder joined with what the dispatcher announces.
type DueReminder struct {
	Reminder
	PatientUserID   uuid.UUID
	PatientName     string
	DoctorName      string
	AppointmentDate time.Time
	MeetingLink     *string
}
