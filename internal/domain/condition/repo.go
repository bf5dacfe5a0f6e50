package condition

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, c *Condition) error
	GetByID(ctx context.Context, id uuid.UUID) (*Condition, error)
	Update(ctx context.Context, c *Condition) error
	Delete(ctx context.Context, id uuid.UUID) error
	// Search pages over matching conditions; limit < 0 returns every match.
	Search(ctx context.Context, f Filter, limit, offset int) ([]*Condition, int, error)
}

type Profiles interface {
	PatientExists(ctx context.Context, id uuid.UUID) (bool, error)
}
