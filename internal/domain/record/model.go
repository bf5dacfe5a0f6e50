package record

import (
	"time"

	"github.com/google/uuid"
)

var validCategories = map[string]bool{
	"checkup": true, "lab": true, "imaging": true, "specialist": true,
	"vaccination": true, "prescription": true, "emergency": true,
}

const PriorityNormal = "normal"

var validPriorities = map[string]bool{"low": true, PriorityNormal: true, "high": true, "urgent": true}

type Record struct {
	ID               uuid.UUID     `json:"id"`
	PatientID        uuid.UUID     `json:"patient_id"`
	DoctorID         *uuid.UUID    `json:"doctor_id"`
	Title            string        `json:"title"`
	Category         string        `json:"category"`
	RecordDate       time.Time     `json:"record_date"`
	Facility         *string       `json:"facility"`
	Summary          *string       `json:"summary"`
	Diagnosis        *string       `json:"diagnosis"`
	Symptoms         *string       `json:"symptoms"`
	TreatmentSummary *string       `json:"treatment_summary"`
	Priority         string        `json:"priority"`
	Tags             *string       `json:"tags"`
	Attachments      []*Attachment `json:"attachments"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// Attachment is a stored file of a record. Filename is the blob name.
type Attachment struct {
	ID               uuid.UUID `json:"id"`
	RecordID         uuid.UUID `json:"medical_record_id"`
	Filename         string    `json:"filename"`
	OriginalFilename string    `json:"original_filename"`
	FilePath         string    `json:"file_path"`
	FileType         string    `json:"file_type"`
	FileSize         int64     `json:"file_size"`
	ContentType      string    `json:"content_type"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// UploadRequest holds the multipart form of a record upload.
type UploadRequest struct {
	FileName         string
	Data             []byte
	Title            string
	Category         string
	Summary          *string
	Facility         *string
	Diagnosis        *string
	TreatmentSummary *string
	Priority         string
	Tags             *string
}

type UpdateRequest struct {
	Title            *string    `json:"title"`
	Category         *string    `json:"category"`
	RecordDate       *time.Time `json:"record_date"`
	Facility         *string    `json:"facility"`
	Summary          *string    `json:"summary"`
	Diagnosis        *string    `json:"diagnosis"`
	Symptoms         *string    `json:"symptoms"`
	TreatmentSummary *string    `json:"treatment_summary"`
	Priority         *string    `json:"priority"`
	Tags             *string    `json:"tags"`
}

type ListResponse struct {
	Records []*Record `json:"records"`
	Total   int       `json:"total"`
	Limit   int       `json:"limit"`
	Offset  int       `json:"offset"`
	HasMore bool      `json:"has_more"`
}
