package prescription

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusDraft        = "draft"
	StatusActive       = "active"
	StatusCompleted    = "completed"
	StatusDiscontinued = "discontinued"
)

var Statuses = []string{StatusDraft, StatusActive, StatusCompleted, StatusDiscontinued}

func ValidStatus(s string) bool {
	for _, v := range Statuses {
		if v == s {
			return true
		}
	}
	return false
}

// CanTransition allows any move between valid statuses except leaving
// discontinued.
func CanTransition(from, to string) bool {
	if from == to {
		return true
	}
	return from != StatusDiscontinued && ValidStatus(to)
}

type Medication struct {
	ID                uuid.UUID `json:"id"`
	Name              string    `json:"name"`
	GenericName       *string   `json:"generic_name"`
	Description       *string   `json:"description"`
	Manufacturer      *string   `json:"manufacturer"`
	DrugClass         *string   `json:"drug_class"`
	Contraindications *string   `json:"contraindications"`
	SideEffects       *string   `json:"side_effects"`
	Interactions      *string   `json:"interactions"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// MedicationInput is used for create (Name required) and partial update.
type MedicationInput struct {
	Name              *string `json:"name"`
	GenericName       *string `json:"generic_name"`
	Description       *string `json:"description"`
	Manufacturer      *string `json:"manufacturer"`
	DrugClass         *string `json:"drug_class"`
	Contraindications *string `json:"contraindications"`
	SideEffects       *string `json:"side_effects"`
	Interactions      *string `json:"interactions"`
}

type MedicationFilter struct {
	Name         string
	GenericName  string
	Manufacturer string
	DrugClass    string
}

type MedicationList struct {
	Medications []*Medication `json:"medications"`
	Total       int           `json:"total"`
	Limit       int           `json:"limit"`
	Offset      int           `json:"offset"`
}

type Item struct {
	ID             uuid.UUID `json:"id"`
	PrescriptionID uuid.UUID `json:"prescription_id"`
	Position       int       `json:"position"`
	MedicationName string    `json:"medication_name"`
	Dosage         string    `json:"dosage"`
	Frequency      string    `json:"frequency"`
	Quantity       string    `json:"quantity"`
	Duration       *string   `json:"duration"`
	Instructions   *string   `json:"instructions"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type ItemInput struct {
	MedicationName string  `json:"medication_name"`
	Dosage         string  `json:"dosage"`
	Frequency      string  `json:"frequency"`
	Quantity       string  `json:"quantity"`
	Duration       *string `json:"duration"`
	Instructions   *string `json:"instructions"`
}

type Prescription struct {
	ID             uuid.UUID  `json:"id"`
	PatientID      uuid.UUID  `json:"patient_id"`
	DoctorID       uuid.UUID  `json:"doctor_id"`
	AppointmentID  *uuid.UUID `json:"appointment_id"`
	PrescribedDate time.Time  `json:"prescribed_date"`
	StartDate      *time.Time `json:"start_date"`
	EndDate        *time.Time `json:"end_date"`
	Status         string     `json:"status"`
	Diagnosis      *string    `json:"diagnosis"`
	Notes          *string    `json:"notes"`
	Items          []Item     `json:"items"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Details is a prescription with participant names, as returned by searches.
type Details struct {
	Prescription
	PatientName string `json:"patient_name"`
	DoctorName  string `json:"doctor_name"`
}

type CreateRequest struct {
	PatientID     *uuid.UUID  `json:"patient_id"`
	DoctorID      *uuid.UUID  `json:"doctor_id"`
	AppointmentID *uuid.UUID  `json:"appointment_id"`
	StartDate     *time.Time  `json:"start_date"`
	EndDate       *time.Time  `json:"end_date"`
	Diagnosis     *string     `json:"diagnosis"`
	Notes         *string     `json:"notes"`
	Items         []ItemInput `json:"items"`
}

// UpdateRequest is a partial update. A non-nil Items replaces every item.
type UpdateRequest struct {
	StartDate *time.Time  `json:"start_date"`
	EndDate   *time.Time  `json:"end_date"`
	Status    *string     `json:"status"`
	Diagnosis *string     `json:"diagnosis"`
	Notes     *string     `json:"notes"`
	Items     []ItemInput `json:"items"`
}

func (u *UpdateRequest) Fields() []string {
	var out []string
	if u.StartDate != nil {
		out = append(out, "start_date")
	}
	if u.EndDate != nil {
		out = append(out, "end_date")
	}
	if u.Status != nil {
		out = append(out, "status")
	}
	if u.Diagnosis != nil {
		out = append(out, "diagnosis")
	}
	if u.Notes != nil {
		out = append(out, "notes")
	}
	if u.Items != nil {
		out = append(out, "items")
	}
	return out
}

type Filter struct {
	PatientID          *uuid.UUID
	DoctorID           *uuid.UUID
	AppointmentID      *uuid.UUID
	Status             string
	PrescribedDateFrom *time.Time
	PrescribedDateTo   *time.Time
	StartDateFrom      *time.Time
	StartDateTo        *time.Time
	MedicationName     string
	Diagnosis          string
}

type SearchResponse struct {
	Prescriptions []*Details `json:"prescriptions"`
	Total         int        `json:"total"`
	Limit         int        `json:"limit"`
	Offset        int        `json:"offset"`
	HasMore       bool       `json:"has_more"`
}

// Stats sums structured prescriptions and prescription PDFs per status.
type Stats struct {
	TotalPrescriptions  int `json:"total_prescriptions"`
	Draft               int `json:"draft"`
	Active              int `json:"active"`
	Completed           int `json:"completed"`
	Discontinued        int `json:"discontinued"`
	CurrentMedications  int `json:"current_medications"`
	MedicationLogsCount int `json:"medication_logs_count"`
}

func (s *Stats) add(counts map[string]int) {
	for status, n := range counts {
		s.TotalPrescriptions += n
		switch status {
		case StatusDraft:
			s.Draft += n
		case StatusActive:
			s.Active += n
		case StatusCompleted:
			s.Completed += n
		case StatusDiscontinued:
			s.Discontinued += n
		}
	}
}

// PDF is a rendered or uploaded prescription document. PrescriptionID is nil
// for patient uploads.
type PDF struct {
	ID              uuid.UUID  `json:"id"`
	PrescriptionID  *uuid.UUID `json:"prescription_id"`
	PatientID       uuid.UUID  `json:"patient_id"`
	UploadedBy      uuid.UUID  `json:"uploaded_by"`
	Status          string     `json:"status"`
	Title           string     `json:"title"`
	FileName        string     `json:"file_name"`
	FileSize        int64      `json:"file_size"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	OwnPrescription bool       `json:"own_prescription"`
}

type PDFList struct {
	PDFs   []*PDF `json:"pdfs"`
	Total  int    `json:"total"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}

type MedicationLog struct {
	ID                     uuid.UUID `json:"id"`
	PrescriptionID         uuid.UUID `json:"prescription_id"`
	TakenAt                time.Time `json:"taken_at"`
	DosageTaken            string    `json:"dosage_taken"`
	Notes                  *string   `json:"notes"`
	SideEffectsExperienced *string   `json:"side_effects_experienced"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// LogDetails carries the first item of the logged prescription.
type LogDetails struct {
	MedicationLog
	PrescriptionMedicationName *string `json:"prescription_medication_name"`
	PrescriptionDosage         *string `json:"prescription_dosage"`
	PrescriptionFrequency      *string `json:"prescription_frequency"`
}

type LogInput struct {
	PrescriptionID         uuid.UUID  `json:"prescription_id"`
	TakenAt                *time.Time `json:"taken_at"`
	DosageTaken            *string    `json:"dosage_taken"`
	Notes                  *string    `json:"notes"`
	SideEffectsExperienced *string    `json:"side_effects_experienced"`
}

type LogList struct {
	Logs   []*LogDetails `json:"logs"`
	Total  int           `json:"total"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

type DoctorRef struct {
	Name           string `json:"name"`
	Specialization string `json:"specialization"`
}

// PatientItem is a prescribed medication line with its prescription context.
type PatientItem struct {
	ID             uuid.UUID  `json:"id"`
	MedicationName string     `json:"medication_name"`
	Dosage         string     `json:"dosage"`
	Frequency      string     `json:"frequency"`
	Quantity       string     `json:"quantity"`
	Duration       *string    `json:"duration"`
	Instructions   *string    `json:"instructions"`
	PrescriptionID uuid.UUID  `json:"prescription_id"`
	PrescribedDate time.Time  `json:"prescribed_date"`
	Status         string     `json:"status"`
	Doctor         *DoctorRef `json:"doctor"`
}

type PatientItemList struct {
	Medications []*PatientItem `json:"medications"`
	Total       int            `json:"total"`
	Limit       int            `json:"limit"`
	Offset      int            `json:"offset"`
}

type MedicationStats struct {
	ActiveMedications int `json:"activeMedications"`
}
