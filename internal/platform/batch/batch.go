// Package batch applies one update to many ids and accounts for each outcome.
package batch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carebridge/clinic/internal/platform/apperr"
)

// Failure explains why a single id was not updated.
type Failure struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// Result is the response body of every batch update endpoint.
type Result struct {
	Message       string    `json:"message"`
	UpdatedCount  int       `json:"updated_count"`
	FailedCount   int       `json:"failed_count"`
	Total         int       `json:"total"`
	FailedUpdates []Failure `json:"failed_updates"`
}

// Request carries the ids plus the subset of fields to change. Nil fields are
// left as they are on each entity.
type Request struct {
	IDs    []uuid.UUID `json:"ids"`
	Status *string     `json:"status,omitempty"`
	Notes  *string     `json:"notes,omitempty"`
}

// UnmarshalJSON also accepts the entity-specific keys appointment_ids and
// prescription_ids. "ids" wins when several are present.
func (r *Request) UnmarshalJSON(b []byte) error {
	var raw struct {
		IDs             []uuid.UUID `json:"ids"`
		AppointmentIDs  []uuid.UUID `json:"appointment_ids"`
		PrescriptionIDs []uuid.UUID `json:"prescription_ids"`
		Status          *string     `json:"status"`
		Notes           *string     `json:"notes"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	r.IDs = raw.IDs
	if len(r.IDs) == 0 {
		r.IDs = raw.AppointmentIDs
	}
	if len(r.IDs) == 0 {
		r.IDs = raw.PrescriptionIDs
	}
	r.Status, r.Notes = raw.Status, raw.Notes
	return nil
}

// Validate rejects empty or oversized id lists before any item runs. A
// request with neither status nor notes is allowed; each item is then
// rewritten unchanged and counted as updated.
func (r Request) Validate(max int) error {
	if len(r.IDs) == 0 {
		return apperr.Validation("ids must not be empty")
	}
	if max > 0 && len(r.IDs) > max {
		return apperr.Validation(fmt.Sprintf("at most %d ids per batch", max))
	}
	return nil
}

// Apply runs fn for every id in order. A failing id never stops the others
// and nothing already applied is rolled back.
func Apply(ctx context.Context, logger zerolog.Logger, ids []uuid.UUID, fn func(ctx context.Context, id uuid.UUID) error) Result {
	res := Result{Total: len(ids), FailedUpdates: []Failure{}}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			res.FailedUpdates = append(res.FailedUpdates, Failure{ID: id.String(), Error: "Update failed"})
			continue
		}
		err := fn(ctx, id)
		if err == nil {
			res.UpdatedCount++
			continue
		}
		if apperr.KindOf(err) == apperr.KindInternal {
			logger.Error().Err(err).Str("id", id.String()).Msg("batch item failed")
		}
		res.FailedUpdates = append(res.FailedUpdates, Failure{ID: id.String(), Error: failureMessage(err)})
	}

	res.FailedCount = len(res.FailedUpdates)
	res.Message = fmt.Sprintf("Batch update completed: %d updated, %d failed", res.UpdatedCount, res.FailedCount)
	return res
}

func failureMessage(err error) string {
	switch apperr.KindOf(err) {
	case apperr.KindNotFound, apperr.KindValidation:
		return apperr.MessageOf(err)
	case apperr.KindForbidden:
		return "Access denied"
	default:
		return "Update failed"
	}
}
