package record

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, r *Record) error
	GetByID(ctx context.Context, id uuid.UUID) (*Record, error)
	Update(ctx context.Context, r *Record) error
	// Delete removes the record; attachments go with it.
	Delete(ctx context.Context, id uuid.UUID) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Record, int, error)

	CreateAttachment(ctx context.Context, a *Attachment) error
	GetAttachment(ctx context.Context, id uuid.UUID) (*Attachment, error)
	AttachmentsFor(ctx context.Context, recordIDs []uuid.UUID) (map[uuid.UUID][]*Attachment, error)
}

// URLBuilder turns a blob name into the URL a client downloads it from.
type URLBuilder interface {
	PublicFileURL(name string) string
}
