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

func validMedicationName(name string) error {
	if len(strings.TrimSpace(name)) < 2 {
		return apperr.Validation("Medication name must be at least 2 characters long")
	}
	return nil
}

func (s *Service) CreateMedication(ctx context.Context, p *auth.Principal, in *MedicationInput) (*Medication, error) {
	if !p.IsDoctor() && !p.IsAdmin() {
		return nil, apperr.Forbidden("Only doctors and admins can create medications")
	}
	if in.Name == nil {
		return nil, apperr.Validation("Medication name must be at least 2 characters long")
	}
	m := &Medication{}
	applyMedication(m, in)
	if err := validMedicationName(m.Name); err != nil {
		return nil, err
	}
	if err := s.repo.CreateMedication(ctx, m); err != nil {
		return nil, apperr.Internal("create medication", err)
	}
	return m, nil
}

func applyMedication(m *Medication, in *MedicationInput) {
	if in.Name != nil {
		m.Name = strings.TrimSpace(*in.Name)
	}
	setIf(&m.GenericName, in.GenericName)
	setIf(&m.Description, in.Description)
	setIf(&m.Manufacturer, in.Manufacturer)
	setIf(&m.DrugClass, in.DrugClass)
	setIf(&m.Contraindications, in.Contraindications)
	setIf(&m.SideEffects, in.SideEffects)
	setIf(&m.Interactions, in.Interactions)
}

func setIf[T any](dst **T, v *T) {
	if v != nil {
		*dst = v
	}
}

func (s *Service) GetMedication(ctx context.Context, id uuid.UUID) (*Medication, error) {
	m, err := s.repo.GetMedication(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, apperr.NotFound("Medication not found")
	}
	if err != nil {
		return nil, apperr.Internal("load medication", err)
	}
	return m, nil
}

func (s *Service) UpdateMedication(ctx context.Context, p *auth.Principal, id uuid.UUID, in *MedicationInput) (*Medication, error) {
	if !p.IsDoctor() && !p.IsAdmin() {
		return nil, apperr.Forbidden("Only doctors and admins can update medications")
	}
	m, err := s.GetMedication(ctx, id)
	if err != nil {
		return nil, err
	}
	applyMedication(m, in)
	if err := validMedicationName(m.Name); err != nil {
		return nil, err
	}
	err = s.repo.UpdateMedication(ctx, m)
	if errors.Is(err, db.ErrNotFound) {
		return nil, apperr.NotFound("Medication not found")
	}
	if err != nil {
		return nil, apperr.Internal("update medication", err)
	}
	return m, nil
}

func (s *Service) DeleteMedication(ctx context.Context, p *auth.Principal, id uuid.UUID) error {
	if !p.IsAdmin() {
		return apperr.Forbidden("Only admins can delete medications")
	}
	err := s.repo.DeleteMedication(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return apperr.NotFound("Medication not found")
	}
	if err != nil {
		return apperr.Internal("delete medication", err)
	}
	return nil
}

func (s *Service) SearchMedications(ctx context.Context, f MedicationFilter, params pagination.Params) (*MedicationList, error) {
	items, total, err := s.repo.SearchMedications(ctx, f, params.Limit, params.Offset)
	if err != nil {
		return nil, apperr.Internal("search medications", err)
	}
	if items == nil {
		items = []*Medication{}
	}
	return &MedicationList{Medications: items, Total: total, Limit: params.Limit, Offset: params.Offset}, nil
}

func (s *Service) patientItems(ctx context.Context, patientID uuid.UUID, params pagination.Params) (*PatientItemList, error) {
	items, total, err := s.repo.ListPatientItems(ctx, patientID, params.Limit, params.Offset)
	if err != nil {
		return nil, apperr.Internal("list patient medications", err)
	}
	if items == nil {
		items = []*PatientItem{}
	}
	return &PatientItemList{Medications: items, Total: total, Limit: params.Limit, Offset: params.Offset}, nil
}

// MyItems lists every medication line prescribed to the calling patient.
func (s *Service) MyItems(ctx context.Context, p *auth.Principal, params pagination.Params) (*PatientItemList, error) {
	if !p.IsPatient() || p.PatientID == nil {
		return nil, apperr.Forbidden("Only patients can access their medications")
	}
	return s.patientItems(ctx, *p.PatientID, params)
}

func (s *Service) PatientItems(ctx context.Context, p *auth.Principal, patientID uuid.UUID, params pagination.Params) (*PatientItemList, error) {
	if !p.IsDoctor() && !p.IsAdmin() {
		return nil, apperr.Forbidden("Only doctors and admins can access patient medications")
	}
	return s.patientItems(ctx, patientID, params)
}

// MedicationStats counts the medication lines of the patient's active
// prescriptions.
func (s *Service) MedicationStats(ctx context.Context, p *auth.Principal) (*MedicationStats, error) {
	if !p.IsPatient() || p.PatientID == nil {
		return nil, apperr.Forbidden("Only patients can access medication stats")
	}
	n, err := s.repo.CountActiveItems(ctx, *p.PatientID)
	if err != nil {
		return nil, apperr.Internal("count active medications", err)
	}
	return &MedicationStats{ActiveMedications: n}, nil
}
