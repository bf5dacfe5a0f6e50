package healthmetric

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, m *Metric) error
	GetByID(ctx context.Context, id uuid.UUID) (*Metric, error)
	Update(ctx context.Context, m *Metric) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, patientID uuid.UUID, f Filter, limit, offset int) ([]*Metric, int, error)
	// Latest returns the most recent reading of each type, restricted to types
	// when it is non-empty.
	Latest(ctx context.Context, patientID uuid.UUID, types []string) ([]*Metric, error)
	// CountSince counts readings recorded at or after since; nil counts all.
	CountSince(ctx context.Context, patientID uuid.UUID, since *time.Time) (int, error)
}

type Profiles interface {
	PatientExists(ctx context.Context, id uuid.UUID) (bool, error)
}
