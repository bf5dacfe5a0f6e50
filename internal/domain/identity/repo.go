package identity

import (
	"context"

	"github.com/google/uuid"
)

type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	// UpdateContact sets the non-nil name and phone fields.
	UpdateContact(ctx context.Context, id uuid.UUID, firstName, lastName, phone *string) (*User, error)
	// ProfileIDs returns the caller's own patient and doctor profile ids, nil
	// where the user has no such profile.
	ProfileIDs(ctx context.Context, userID uuid.UUID) (patientID, doctorID *uuid.UUID, err error)
}

// ProfileCreator creates the role profile that accompanies a new account. It
// runs inside the registration transaction.
type ProfileCreator interface {
	CreatePatientProfile(ctx context.Context, userID uuid.UUID, d *PatientDetails) (uuid.UUID, error)
	CreateDoctorProfile(ctx context.Context, userID uuid.UUID, d *DoctorDetails) (uuid.UUID, error)
}
