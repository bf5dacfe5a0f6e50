package healthmetric

import (
	"time"

	"github.com/google/uuid"
)

const (
	TypeBloodPressure    = "blood_pressure"
	TypeHeartRate        = "heart_rate"
	TypeTemperature      = "temperature"
	TypeWeight           = "weight"
	TypeHeight           = "height"
	TypeBMI              = "bmi"
	TypeBloodSugar       = "blood_sugar"
	TypeOxygenSaturation = "oxygen_saturation"
)

var Types = []string{
	TypeBloodPressure, TypeHeartRate, TypeTemperature, TypeWeight,
	TypeHeight, TypeBMI, TypeBloodSugar, TypeOxygenSaturation,
}

// DashboardTypes are the vitals shown on the patient dashboard, in display
// order.
var DashboardTypes = []string{TypeBloodPressure, TypeHeartRate, TypeTemperature, TypeWeight}

func ValidType(t string) bool {
	for _, v := range Types {
		if v == t {
			return true
		}
	}
	return false
}

type Metric struct {
	ID         uuid.UUID `json:"id"`
	PatientID  uuid.UUID `json:"patient_id"`
	MetricType string    `json:"metric_type"`
	Value      string    `json:"value"`
	Unit       string    `json:"unit"`
	RecordedAt time.Time `json:"recorded_at"`
	RecordedBy *string   `json:"recorded_by"`
	Notes      *string   `json:"notes"`
	NormalMin  *float64  `json:"normal_min"`
	NormalMax  *float64  `json:"normal_max"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type CreateRequest struct {
	PatientID  *uuid.UUID `json:"patient_id"`
	MetricType string     `json:"metric_type"`
	Value      string     `json:"value"`
	Unit       string     `json:"unit"`
	RecordedAt *time.Time `json:"recorded_at"`
	RecordedBy *string    `json:"recorded_by"`
	Notes      *string    `json:"notes"`
	NormalMin  *float64   `json:"normal_min"`
	NormalMax  *float64   `json:"normal_max"`
}

type UpdateRequest struct {
	MetricType *string    `json:"metric_type"`
	Value      *string    `json:"value"`
	Unit       *string    `json:"unit"`
	RecordedAt *time.Time `json:"recorded_at"`
	RecordedBy *string    `json:"recorded_by"`
	Notes      *string    `json:"notes"`
	NormalMin  *float64   `json:"normal_min"`
	NormalMax  *float64   `json:"normal_max"`
}

type Filter struct {
	MetricType   string
	RecordedFrom *time.Time
	RecordedTo   *time.Time
	RecordedBy   string
}

type ListResponse struct {
	Metrics []*Metric `json:"metrics"`
	Total   int       `json:"total"`
	Limit   int       `json:"limit"`
	Offset  int       `json:"offset"`
	HasMore bool      `json:"has_more"`
}

type Stats struct {
	LatestMetrics    []*Metric `json:"latest_metrics"`
	TotalCount       int       `json:"total_count"`
	MetricsThisWeek  int       `json:"metrics_this_week"`
	MetricsThisMonth int       `json:"metrics_this_month"`
}
