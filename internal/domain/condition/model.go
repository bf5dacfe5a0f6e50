package condition

import (
	"time"

	"github.com/google/uuid"
)

const (
	TypeMedicalCondition = "medical_condition"
	TypeAllergy          = "allergy"
)

const (
	StatusActive     = "active"
	StatusResolved   = "resolved"
	StatusMonitoring = "monitoring"
	StatusInactive   = "inactive"
)

var validTypes = map[string]bool{TypeMedicalCondition: true, TypeAllergy: true}

var validStatuses = map[string]bool{
	StatusActive: true, StatusResolved: true, StatusMonitoring: true, StatusInactive: true,
}

var validAllergySeverities = map[string]bool{
	"mild": true, "moderate": true, "severe": true, "life_threatening": true,
}

const (
	maxName      = 200
	maxNotes     = 1000
	maxSeverity  = 50
	maxTreatment = 500
	maxReaction  = 500
)

// Condition is a chronic condition or an allergy of a patient. AllergySeverity
// and Reaction are only ever set on allergies.
type Condition struct {
	ID              uuid.UUID  `json:"id"`
	PatientID       uuid.UUID  `json:"patient_id"`
	ConditionType   string     `json:"condition_type"`
	Name            string     `json:"name"`
	Status          string     `json:"status"`
	DiagnosedDate   *time.Time `json:"diagnosed_date"`
	Notes           *string    `json:"notes"`
	Severity        *string    `json:"severity"`
	Treatment       *string    `json:"treatment"`
	AllergySeverity *string    `json:"allergy_severity"`
	Reaction        *string    `json:"reaction"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

type CreateRequest struct {
	PatientID       *uuid.UUID `json:"patient_id"`
	ConditionType   string     `json:"condition_type"`
	Name            string     `json:"name"`
	Status          string     `json:"status"`
	DiagnosedDate   *time.Time `json:"diagnosed_date"`
	Notes           *string    `json:"notes"`
	Severity        *string    `json:"severity"`
	Treatment       *string    `json:"treatment"`
	AllergySeverity *string    `json:"allergy_severity"`
	Reaction        *string    `json:"reaction"`
}

type UpdateRequest struct {
	Status          *string    `json:"status"`
	DiagnosedDate   *time.Time `json:"diagnosed_date"`
	Notes           *string    `json:"notes"`
	Severity        *string    `json:"severity"`
	Treatment       *string    `json:"treatment"`
	AllergySeverity *string    `json:"allergy_severity"`
	Reaction        *string    `json:"reaction"`
}

type Filter struct {
	PatientID       *uuid.UUID
	ConditionType   string
	Status          string
	Name            string
	AllergySeverity string
}

type ListResponse struct {
	Conditions []*Condition `json:"medical_conditions"`
	Total      int          `json:"total"`
	Limit      int          `json:"limit"`
	Offset     int          `json:"offset"`
}
