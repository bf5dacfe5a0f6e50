package condition

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carebridge/clinic/internal/platform/apperr"
	"github.com/carebridge/clinic/internal/platform/auth"
	"github.com/carebridge/clinic/internal/platform/db"
	"github.com/carebridge/clinic/internal/platform/policy"
	"github.com/carebridge/clinic/pkg/pagination"
)

type Service struct {
	repo     Repository
	profiles Profiles
	logger   zerolog.Logger
}

func NewService(repo Repository, profiles Profiles, logger zerolog.Logger) *Service {
	return &Service{repo: repo, profiles: profiles, logger: logger}
}

func maxLen(field string, v *string, n int) error {
	if v != nil && len([]rune(*v)) > n {
		return apperr.Validation(fmt.Sprintf("%s must be at most %d characters", field, n))
	}
	return nil
}

// validateDetails checks the free-text fields and the allergy-only fields
// against the condition type.
func validateDetails(conditionType string, notes, severity, treatment, allergySeverity, reaction *string) error {
	for _, c := range []struct {
		field string
		v     *string
		n     int
	}{
		{"notes", notes, maxNotes},
		{"severity", severity, maxSeverity},
		{"treatment", treatment, maxTreatment},
		{"reaction", reaction, maxReaction},
	} {
		if err := maxLen(c.field, c.v, c.n); err != nil {
			return err
		}
	}
	if conditionType != TypeAllergy && (allergySeverity != nil || reaction != nil) {
		return apperr.Validation("allergy_severity and reaction are only allowed when condition_type is allergy")
	}
	if allergySeverity != nil && !validAllergySeverities[*allergySeverity] {
		return apperr.Validation("Invalid allergy severity: " + *allergySeverity)
	}
	return nil
}

func (s *Service) Create(ctx context.Context, p *auth.Principal, req *CreateRequest) (*Condition, error) {
	patientID, err := policy.ResolveCreatePatient(p, req.PatientID)
	if err != nil {
		return nil, err
	}
	if !validTypes[req.ConditionType] {
		return nil, apperr.Validation("Invalid condition type: " + req.ConditionType)
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperr.Validation("name is required")
	}
	if err := maxLen("name", &name, maxName); err != nil {
		return nil, err
	}
	status := req.Status
	if status == "" {
		status = StatusActive
	}
	if !validStatuses[status] {
		return nil, apperr.Validation("Invalid condition status: " + status)
	}
	if err := validateDetails(req.ConditionType, req.Notes, req.Severity, req.Treatment, req.AllergySeverity, req.Reaction); err != nil {
		return nil, err
	}
	ok, err := s.profiles.PatientExists(ctx, patientID)
	if err != nil {
		return nil, apperr.Internal("check patient", err)
	}
	if !ok {
		return nil, apperr.Validation("Patient not found")
	}

	c := &Condition{
		PatientID:       patientID,
		ConditionType:   req.ConditionType,
		Name:            name,
		Status:          status,
		DiagnosedDate:   req.DiagnosedDate,
		Notes:           req.Notes,
		Severity:        req.Severity,
		Treatment:       req.Treatment,
		AllergySeverity: req.AllergySeverity,
		Reaction:        req.Reaction,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		if db.IsIntegrityViolation(err) {
			return nil, apperr.Integrity("Medical condition could not be created due to data integrity error", err)
		}
		return nil, apperr.Internal("create medical condition", err)
	}
	s.logger.Info().Str("condition_id", c.ID.String()).Str("type", c.ConditionType).Msg("medical condition created")
	return c, nil
}

func (s *Service) load(ctx context.Context, p *auth.Principal, id uuid.UUID) (*Condition, error) {
	c, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, apperr.NotFound("Medical condition not found")
	}
	if err != nil {
		return nil, apperr.Internal("load medical condition", err)
	}
	if err := policy.AuthorizePatientData(p, c.PatientID); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) Get(ctx context.Context, p *auth.Principal, id uuid.UUID) (*Condition, error) {
	return s.load(ctx, p, id)
}

func (s *Service) Update(ctx context.Context, p *auth.Principal, id uuid.UUID, req *UpdateRequest) (*Condition, error) {
	c, err := s.load(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if req.Status != nil {
		if !validStatuses[*req.Status] {
			return nil, apperr.Validation("Invalid condition status: " + *req.Status)
		}
		c.Status = *req.Status
	}
	if err := validateDetails(c.ConditionType, req.Notes, req.Severity, req.Treatment, req.AllergySeverity, req.Reaction); err != nil {
		return nil, err
	}
	if req.DiagnosedDate != nil {
		c.DiagnosedDate = req.DiagnosedDate
	}
	for _, f := range []struct {
		dst **string
		v   *string
	}{
		{&c.Notes, req.Notes},
		{&c.Severity, req.Severity},
		{&c.Treatment, req.Treatment},
		{&c.AllergySeverity, req.AllergySeverity},
		{&c.Reaction, req.Reaction},
	} {
		if f.v != nil {
			*f.dst = f.v
		}
	}
	if err := s.repo.Update(ctx, c); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, apperr.NotFound("Medical condition not found")
		}
		return nil, apperr.Internal("update medical condition", err)
	}
	return c, nil
}

func (s *Service) Delete(ctx context.Context, p *auth.Principal, id uuid.UUID) error {
	if _, err := s.load(ctx, p, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return apperr.NotFound("Medical condition not found")
		}
		return apperr.Internal("delete medical condition", err)
	}
	return nil
}

func validateFilter(f Filter) error {
	switch {
	case f.ConditionType != "" && !validTypes[f.ConditionType]:
		return apperr.Validation("Invalid condition type: " + f.ConditionType)
	case f.Status != "" && !validStatuses[f.Status]:
		return apperr.Validation("Invalid condition status: " + f.Status)
	case f.AllergySeverity != "" && !validAllergySeverities[f.AllergySeverity]:
		return apperr.Validation("Invalid allergy severity: " + f.AllergySeverity)
	}
	return nil
}

func (s *Service) search(ctx context.Context, f Filter, params pagination.Params) (*ListResponse, error) {
	items, total, err := s.repo.Search(ctx, f, params.Limit, params.Offset)
	if err != nil {
		return nil, apperr.Internal("search medical conditions", err)
	}
	if items == nil {
		items = []*Condition{}
	}
	return &ListResponse{Conditions: items, Total: total, Limit: params.Limit, Offset: params.Offset}, nil
}

// Search runs f for staff as given; a patient only ever sees their own
// conditions.
func (s *Service) Search(ctx context.Context, p *auth.Principal, f Filter, params pagination.Params) (*ListResponse, error) {
	if err := validateFilter(f); err != nil {
		return nil, err
	}
	switch {
	case p.IsAdmin(), p.IsDoctor():
	case p.IsPatient() && p.PatientID != nil:
		f.PatientID = policy.NarrowPatientData(p, policy.Scope{PatientID: f.PatientID}).PatientID
	default:
		return nil, apperr.Forbidden(policy.AccessDenied)
	}
	return s.search(ctx, f, params)
}

func ownPatient(p *auth.Principal) (uuid.UUID, error) {
	if !p.IsPatient() || p.PatientID == nil {
		return uuid.Nil, apperr.Forbidden("Only patients can access medical conditions")
	}
	return *p.PatientID, nil
}

func (s *Service) MyList(ctx context.Context, p *auth.Principal, status string, params pagination.Params) (*ListResponse, error) {
	patientID, err := ownPatient(p)
	if err != nil {
		return nil, err
	}
	f := Filter{PatientID: &patientID, Status: status}
	if err := validateFilter(f); err != nil {
		return nil, err
	}
	return s.search(ctx, f, params)
}

func (s *Service) all(ctx context.Context, f Filter) ([]*Condition, error) {
	items, _, err := s.repo.Search(ctx, f, -1, 0)
	if err != nil {
		return nil, apperr.Internal("list medical conditions", err)
	}
	if items == nil {
		items = []*Condition{}
	}
	return items, nil
}

func (s *Service) MyActive(ctx context.Context, p *auth.Principal) ([]*Condition, error) {
	patientID, err := ownPatient(p)
	if err != nil {
		return nil, err
	}
	return s.all(ctx, Filter{PatientID: &patientID, Status: StatusActive})
}

// Allergies lists the active allergies of a patient for prescribing safety
// checks.
func (s *Service) Allergies(ctx context.Context, p *auth.Principal, patientID uuid.UUID) ([]*Condition, error) {
	if err := policy.AuthorizePatientData(p, patientID); err != nil {
		return nil, err
	}
	return s.all(ctx, Filter{PatientID: &patientID, ConditionType: TypeAllergy, Status: StatusActive})
}
