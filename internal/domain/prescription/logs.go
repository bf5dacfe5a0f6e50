package prescription

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/carebridge/clinic/internal/platform/apperr"
	"github.com/carebridge/clinic/internal/platform/auth"
	"github.com/carebridge/clinic/internal/platform/db"
	"github.com/carebridge/clinic/pkg/pagination"
)

func (s *Service) CreateLog(ctx context.Context, p *auth.Principal, in *LogInput) (*MedicationLog, error) {
	if in.PrescriptionID == uuid.Nil {
		return nil, apperr.Validation("prescription_id is required")
	}
	if in.DosageTaken == nil || strings.TrimSpace(*in.DosageTaken) == "" {
		return nil, apperr.Validation("Dosage taken is required")
	}
	if _, err := s.load(ctx, p, in.PrescriptionID); err != nil {
		return nil, err
	}
	l := &MedicationLog{
		PrescriptionID:         in.PrescriptionID,
		TakenAt:                s.now(),
		DosageTaken:            strings.TrimSpace(*in.DosageTaken),
		Notes:                  in.Notes,
		SideEffectsExperienced: in.SideEffectsExperienced,
	}
	if in.TakenAt != nil {
		l.TakenAt = *in.TakenAt
	}
	if err := s.repo.CreateLog(ctx, l); err != nil {
		return nil, apperr.Internal("create medication log", err)
	}
	return l, nil
}

// loadLog fetches a log whose prescription the principal may act on.
func (s *Service) loadLog(ctx context.Context, p *auth.Principal, id uuid.UUID) (*MedicationLog, error) {
	l, err := s.repo.GetLog(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, apperr.NotFound("Medication log not found")
	}
	if err != nil {
		return nil, apperr.Internal("load medication log", err)
	}
	if _, err := s.load(ctx, p, l.PrescriptionID); err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil, apperr.NotFound("Associated prescription not found")
		}
		return nil, err
	}
	return l, nil
}

func (s *Service) GetLog(ctx context.Context, p *auth.Principal, id uuid.UUID) (*MedicationLog, error) {
	return s.loadLog(ctx, p, id)
}

func (s *Service) UpdateLog(ctx context.Context, p *auth.Principal, id uuid.UUID, in *LogInput) (*MedicationLog, error) {
	l, err := s.loadLog(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if in.DosageTaken != nil {
		if strings.TrimSpace(*in.DosageTaken) == "" {
			return nil, apperr.Validation("Dosage taken is required")
		}
		l.DosageTaken = strings.TrimSpace(*in.DosageTaken)
	}
	if in.TakenAt != nil {
		l.TakenAt = *in.TakenAt
	}
	setIf(&l.Notes, in.Notes)
	setIf(&l.SideEffectsExperienced, in.SideEffectsExperienced)
	err = s.repo.UpdateLog(ctx, l)
	if errors.Is(err, db.ErrNotFound) {
		return nil, apperr.NotFound("Medication log not found")
	}
	if err != nil {
		return nil, apperr.Internal("update medication log", err)
	}
	return l, nil
}

func (s *Service) DeleteLog(ctx context.Context, p *auth.Principal, id uuid.UUID) error {
	if _, err := s.loadLog(ctx, p, id); err != nil {
		return err
	}
	err := s.repo.DeleteLog(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return apperr.NotFound("Medication log not found")
	}
	if err != nil {
		return apperr.Internal("delete medication log", err)
	}
	return nil
}

func logList(items []*LogDetails, total int, params pagination.Params) *LogList {
	if items == nil {
		items = []*LogDetails{}
	}
	return &LogList{Logs: items, Total: total, Limit: params.Limit, Offset: params.Offset}
}

// PrescriptionLogs lists the adherence logs of one prescription, newest first.
func (s *Service) PrescriptionLogs(ctx context.Context, p *auth.Principal, rxID uuid.UUID, params pagination.Params) (*LogList, error) {
	if _, err := s.load(ctx, p, rxID); err != nil {
		return nil, err
	}
	items, total, err := s.repo.ListLogs(ctx, rxID, params.Limit, params.Offset)
	if err != nil {
		return nil, apperr.Internal("list medication logs", err)
	}
	return logList(items, total, params), nil
}

func (s *Service) MyLogs(ctx context.Context, p *auth.Principal, params pagination.Params) (*LogList, error) {
	if !p.IsPatient() || p.PatientID == nil {
		return nil, apperr.Forbidden("Only patients can access medication logs")
	}
	items, total, err := s.repo.ListPatientLogs(ctx, *p.PatientID, params.Limit, params.Offset)
	if err != nil {
		return nil, apperr.Internal("list medication logs", err)
	}
	return logList(items, total, params), nil
}
