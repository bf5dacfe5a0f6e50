package profile

import (
	"context"

	"github.com/google/uuid"

	"github.com/carebridge/clinic/internal/domain/identity"
)

type Repository interface {
	CreatePatient(ctx context.Context, p *PatientProfile) error
	CreateDoctor(ctx context.Context, d *DoctorProfile) error
	GetPatientByUserID(ctx context.Context, userID uuid.UUID) (*PatientProfile, error)
	GetDoctorByUserID(ctx context.Context, userID uuid.UUID) (*DoctorProfile, error)
	UpdatePatient(ctx context.Context, p *PatientProfile) error
	UpdateDoctor(ctx context.Context, d *DoctorProfile) error

	// GetDoctor matches either the doctor profile id or the owning user id.
	GetDoctor(ctx context.Context, id uuid.UUID) (*DoctorListing, error)
	SearchDoctors(ctx context.Context, f DoctorFilter, limit, offset int) ([]*DoctorListing, int, error)

	// GetPatient marks IsBookmarked relative to viewer when it is set.
	GetPatient(ctx context.Context, id uuid.UUID, viewer *uuid.UUID) (*PatientSummary, error)
	// ListDoctorPatients returns patients with at least one appointment with
	// doctorID, most recent visit first. search matches name, email or phone.
	ListDoctorPatients(ctx context.Context, doctorID uuid.UUID, search string, limit, offset int) ([]*PatientSummary, int, error)
	ListBookmarked(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*PatientSummary, int, error)
	// ToggleBookmark flips the bookmark and returns the new state.
	ToggleBookmark(ctx context.Context, doctorID, patientID uuid.UUID) (bool, error)

	PatientExists(ctx context.Context, id uuid.UUID) (bool, error)
	DoctorExists(ctx context.Context, id uuid.UUID) (bool, error)
}

// UserStore is the account access profiles need. identity.UserRepository
// satisfies it.
type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*identity.User, error)
	UpdateContact(ctx context.Context, id uuid.UUID, firstName, lastName, phone *string) (*identity.User, error)
}
