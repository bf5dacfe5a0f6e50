package healthmetric

import (
	"context"
	"errors"
	"strings"
	"time"

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
	now      func() time.Time
}

func NewService(repo Repository, profiles Profiles, logger zerolog.Logger) *Service {
	return &Service{repo: repo, profiles: profiles, logger: logger, now: time.Now}
}

func validateRange(lo, hi *float64) error {
	if lo != nil && hi != nil && *lo > *hi {
		return apperr.Validation("normal_min must not exceed normal_max")
	}
	return nil
}

func (s *Service) Create(ctx context.Context, p *auth.Principal, req *CreateRequest) (*Metric, error) {
	patientID, err := policy.ResolveCreatePatient(p, req.PatientID)
	if err != nil {
		return nil, err
	}
	if !ValidType(req.MetricType) {
		return nil, apperr.Validation("Invalid metric type: " + req.MetricType)
	}
	value := strings.TrimSpace(req.Value)
	unit := strings.TrimSpace(req.Unit)
	if value == "" {
		return nil, apperr.Validation("value is required")
	}
	if unit == "" {
		return nil, apperr.Validation("unit is required")
	}
	if err := validateRange(req.NormalMin, req.NormalMax); err != nil {
		return nil, err
	}
	ok, err := s.profiles.PatientExists(ctx, patientID)
	if err != nil {
		return nil, apperr.Internal("check patient", err)
	}
	if !ok {
		return nil, apperr.Validation("Patient not found")
	}

	m := &Metric{
		PatientID:  patientID,
		MetricType: req.MetricType,
		Value:      value,
		Unit:       unit,
		RecordedAt: s.now().UTC(),
		RecordedBy: req.RecordedBy,
		Notes:      req.Notes,
		NormalMin:  req.NormalMin,
		NormalMax:  req.NormalMax,
	}
	if req.RecordedAt != nil {
		m.RecordedAt = *req.RecordedAt
	}
	if err := s.repo.Create(ctx, m); err != nil {
		if db.IsIntegrityViolation(err) {
			return nil, apperr.Integrity("Failed to create health metric - data integrity error", err)
		}
		return nil, apperr.Internal("create health metric", err)
	}
	s.logger.Info().Str("metric_id", m.ID.String()).Str("type", m.MetricType).Msg("health metric recorded")
	return m, nil
}

// load fetches a metric and checks that p may act on it. verb names the
// action in the message a patient sees when the metric is not theirs.
func (s *Service) load(ctx context.Context, p *auth.Principal, id uuid.UUID, verb string) (*Metric, error) {
	m, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, apperr.NotFound("Health metric not found")
	}
	if err != nil {
		return nil, apperr.Internal("load health metric", err)
	}
	if !policy.CanAccessPatientData(p, m.PatientID) {
		if p != nil && p.IsPatient() {
			return nil, apperr.Forbidden("You can only " + verb + " your own health metrics")
		}
		return nil, apperr.Forbidden(policy.AccessDenied)
	}
	return m, nil
}

func (s *Service) Get(ctx context.Context, p *auth.Principal, id uuid.UUID) (*Metric, error) {
	return s.load(ctx, p, id, "access")
}

func (s *Service) Update(ctx context.Context, p *auth.Principal, id uuid.UUID, req *UpdateRequest) (*Metric, error) {
	m, err := s.load(ctx, p, id, "update")
	if err != nil {
		return nil, err
	}
	if req.MetricType != nil {
		if !ValidType(*req.MetricType) {
			return nil, apperr.Validation("Invalid metric type: " + *req.MetricType)
		}
		m.MetricType = *req.MetricType
	}
	if req.Value != nil {
		if strings.TrimSpace(*req.Value) == "" {
			return nil, apperr.Validation("value must not be empty")
		}
		m.Value = strings.TrimSpace(*req.Value)
	}
	if req.Unit != nil {
		if strings.TrimSpace(*req.Unit) == "" {
			return nil, apperr.Validation("unit must not be empty")
		}
		m.Unit = strings.TrimSpace(*req.Unit)
	}
	if req.RecordedAt != nil {
		m.RecordedAt = *req.RecordedAt
	}
	if req.RecordedBy != nil {
		m.RecordedBy = req.RecordedBy
	}
	if req.Notes != nil {
		m.Notes = req.Notes
	}
	if req.NormalMin != nil {
		m.NormalMin = req.NormalMin
	}
	if req.NormalMax != nil {
		m.NormalMax = req.NormalMax
	}
	if err := validateRange(m.NormalMin, m.NormalMax); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, m); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, apperr.NotFound("Health metric not found")
		}
		return nil, apperr.Internal("update health metric", err)
	}
	return m, nil
}

func (s *Service) Delete(ctx context.Context, p *auth.Principal, id uuid.UUID) error {
	if _, err := s.load(ctx, p, id, "delete"); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return apperr.NotFound("Health metric not found")
		}
		return apperr.Internal("delete health metric", err)
	}
	return nil
}

func ownPatient(p *auth.Principal) (uuid.UUID, error) {
	if !p.IsPatient() || p.PatientID == nil {
		return uuid.Nil, apperr.Forbidden("Only patients can access their health metrics")
	}
	return *p.PatientID, nil
}

func (s *Service) My(ctx context.Context, p *auth.Principal, f Filter, params pagination.Params) (*ListResponse, error) {
	patientID, err := ownPatient(p)
	if err != nil {
		return nil, err
	}
	if f.MetricType != "" && !ValidType(f.MetricType) {
		return nil, apperr.Validation("Invalid metric type: " + f.MetricType)
	}
	items, total, err := s.repo.List(ctx, patientID, f, params.Limit, params.Offset)
	if err != nil {
		return nil, apperr.Internal("list health metrics", err)
	}
	if items == nil {
		items = []*Metric{}
	}
	return &ListResponse{Metrics: items, Total: total, Limit: params.Limit, Offset: params.Offset, HasMore: params.HasNext(total)}, nil
}

// Stats reports the latest reading per type and how many readings were taken
// overall, in the last 7 days and in the last 30 days.
func (s *Service) Stats(ctx context.Context, p *auth.Principal) (*Stats, error) {
	patientID, err := ownPatient(p)
	if err != nil {
		return nil, err
	}
	latest, err := s.repo.Latest(ctx, patientID, nil)
	if err != nil {
		return nil, apperr.Internal("latest health metrics", err)
	}
	if latest == nil {
		latest = []*Metric{}
	}
	st := &Stats{LatestMetrics: latest}
	now := s.now().UTC()
	week, month := now.AddDate(0, 0, -7), now.AddDate(0, 0, -30)
	for _, c := range []struct {
		since *time.Time
		dst   *int
	}{
		{nil, &st.TotalCount},
		{&week, &st.MetricsThisWeek},
		{&month, &st.MetricsThisMonth},
	} {
		if *c.dst, err = s.repo.CountSince(ctx, patientID, c.since); err != nil {
			return nil, apperr.Internal("count health metrics", err)
		}
	}
	return st, nil
}

// Dashboard returns the latest blood pressure, heart rate, temperature and
// weight readings, skipping types never recorded.
func (s *Service) Dashboard(ctx context.Context, p *auth.Principal) ([]*Metric, error) {
	patientID, err := ownPatient(p)
	if err != nil {
		return nil, err
	}
	latest, err := s.repo.Latest(ctx, patientID, DashboardTypes)
	if err != nil {
		return nil, apperr.Internal("dashboard health metrics", err)
	}
	byType := make(map[string]*Metric, len(latest))
	for _, m := range latest {
		byType[m.MetricType] = m
	}
	out := make([]*Metric, 0, len(DashboardTypes))
	for _, t := range DashboardTypes {
		if m, ok := byType[t]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}
