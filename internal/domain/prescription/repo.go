package prescription

import (
	"context"

	"github.com/google/uuid"

	"github.com/carebridge/clinic/internal/domain/profile"
	"github.com/carebridge/clinic/internal/platform/auth"
)

type MedicationRepository interface {
	CreateMedication(ctx context.Context, m *Medication) error
	GetMedication(ctx context.Context, id uuid.UUID) (*Medication, error)
	UpdateMedication(ctx context.Context, m *Medication) error
	DeleteMedication(ctx context.Context, id uuid.UUID) error
	SearchMedications(ctx context.Context, f MedicationFilter, limit, offset int) ([]*Medication, int, error)
}

type PrescriptionRepository interface {
	Create(ctx context.Context, rx *Prescription) error
	GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error)
	Update(ctx context.Context, rx *Prescription) error
	// ReplaceItems drops every item of the prescription and inserts items.
	ReplaceItems(ctx context.Context, rxID uuid.UUID, items []Item) ([]Item, error)
	ItemsFor(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]Item, error)
	Search(ctx context.Context, f Filter, limit, offset int) ([]*Details, int, error)
	CountByStatus(ctx context.Context, f Filter) (map[string]int, error)

	ListPatientItems(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*PatientItem, int, error)
	CountActiveItems(ctx context.Context, patientID uuid.UUID) (int, error)
}

type PDFRepository interface {
	CreatePDF(ctx context.Context, p *PDF) error
	GetPDF(ctx context.Context, id uuid.UUID) (*PDF, error)
	ListPDFs(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*PDF, int, error)
	PDFsForPrescription(ctx context.Context, rxID uuid.UUID) ([]*PDF, error)
	UpdatePDFStatus(ctx context.Context, id uuid.UUID, status string) error
	DeletePDF(ctx context.Context, id uuid.UUID) error
	// CountPDFsByStatus counts PDFs of the patient, or PDFs uploaded by the
	// user when patientID is nil.
	CountPDFsByStatus(ctx context.Context, patientID, uploadedBy *uuid.UUID) (map[string]int, error)
}

type LogRepository interface {
	CreateLog(ctx context.Context, l *MedicationLog) error
	GetLog(ctx context.Context, id uuid.UUID) (*MedicationLog, error)
	UpdateLog(ctx context.Context, l *MedicationLog) error
	DeleteLog(ctx context.Context, id uuid.UUID) error
	ListLogs(ctx context.Context, rxID uuid.UUID, limit, offset int) ([]*LogDetails, int, error)
	ListPatientLogs(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*LogDetails, int, error)
	CountLogs(ctx context.Context, patientID, doctorID *uuid.UUID) (int, error)
}

type Repository interface {
	MedicationRepository
	PrescriptionRepository
	PDFRepository
	LogRepository
}

// Directory supplies the participant details printed on a rendered
// prescription.
type Directory interface {
	GetPatient(ctx context.Context, p *auth.Principal, id uuid.UUID) (*profile.PatientSummary, error)
	GetDoctor(ctx context.Context, id uuid.UUID) (*profile.DoctorListing, error)
}

// URLBuilder turns a blob name into the URL a client downloads it from.
type URLBuilder interface {
	PublicFileURL(name string) string
}
