package profile

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carebridge/clinic/internal/domain/identity"
	"github.com/carebridge/clinic/internal/platform/apperr"
	"github.com/carebridge/clinic/internal/platform/auth"
	"github.com/carebridge/clinic/internal/platform/db"
	"github.com/carebridge/clinic/pkg/pagination"
)

const constraintLicense = "doctor_profiles_medical_license_number_key"

type Service struct {
	repo   Repository
	users  UserStore
	tx     db.Transactor
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(repo Repository, users UserStore, tx db.Transactor, logger zerolog.Logger) *Service {
	if tx == nil {
		tx = db.NoTx{}
	}
	return &Service{repo: repo, users: users, tx: tx, logger: logger, now: time.Now}
}

// CreatePatientProfile implements identity.ProfileCreator.
func (s *Service) CreatePatientProfile(ctx context.Context, userID uuid.UUID, d *identity.PatientDetails) (uuid.UUID, error) {
	if err := validatePatientFields(d.Gender, d.BloodGroup); err != nil {
		return uuid.Nil, err
	}
	p := &PatientProfile{
		UserID:                userID,
		DateOfBirth:           d.DateOfBirth,
		Gender:                d.Gender,
		BloodGroup:            d.BloodGroup,
		EmergencyContactName:  d.EmergencyContactName,
		EmergencyContactPhone: d.EmergencyContactPhone,
		Address:               d.Address,
		InsuranceInfo:         d.InsuranceInfo,
		Allergies:             d.Allergies,
		MedicalHistory:        d.MedicalHistory,
	}
	if err := s.repo.CreatePatient(ctx, p); err != nil {
		return uuid.Nil, err
	}
	return p.ID, nil
}

// CreateDoctorProfile implements identity.ProfileCreator.
func (s *Service) CreateDoctorProfile(ctx context.Context, userID uuid.UUID, d *identity.DoctorDetails) (uuid.UUID, error) {
	doc := &DoctorProfile{
		UserID:               userID,
		MedicalLicenseNumber: strings.TrimSpace(d.MedicalLicenseNumber),
		LicenseExpiryDate:    d.LicenseExpiryDate,
		Specialization:       strings.TrimSpace(d.Specialization),
		HospitalAffiliation:  d.HospitalAffiliation,
		EducationBackground:  d.EducationBackground,
		ConsultationFee:      d.ConsultationFee,
		AvailableDays:        d.AvailableDays,
		Bio:                  d.Bio,
	}
	if d.YearsOfExperience != nil {
		doc.YearsOfExperience = *d.YearsOfExperience
	}
	if err := validateDoctor(doc); err != nil {
		return uuid.Nil, err
	}
	if err := s.repo.CreateDoctor(ctx, doc); err != nil {
		return uuid.Nil, err
	}
	return doc.ID, nil
}

func validatePatientFields(gender, bloodGroup *string) error {
	if gender != nil && !validGenders[*gender] {
		return apperr.Validation("gender must be one of: male, female, other, prefer_not_to_say")
	}
	if bloodGroup != nil && !validBloodGroups[*bloodGroup] {
		return apperr.Validation("blood_group must be one of: A+, A-, B+, B-, AB+, AB-, O+, O-")
	}
	return nil
}

func validateDoctor(d *DoctorProfile) error {
	if d.MedicalLicenseNumber == "" {
		return apperr.Validation("medical_license_number is required")
	}
	if d.Specialization == "" {
		return apperr.Validation("specialization is required")
	}
	if d.YearsOfExperience < 0 {
		return apperr.Validation("years_of_experience must not be negative")
	}
	if d.ConsultationFee != nil && *d.ConsultationFee < 0 {
		return apperr.Validation("consultation_fee must not be negative")
	}
	return nil
}

// GetMe returns the caller's account together with their own profile.
func (s *Service) GetMe(ctx context.Context, p *auth.Principal) (*MeResponse, error) {
	u, err := s.users.GetByID(ctx, p.UserID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, apperr.NotFound("User profile not found")
	}
	if err != nil {
		return nil, apperr.Internal("load user", err)
	}
	resp := &MeResponse{User: u}
	if err := s.attachOwnProfile(ctx, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *Service) attachOwnProfile(ctx context.Context, resp *MeResponse) error {
	now := s.now()
	switch resp.User.Role {
	case auth.RolePatient:
		pp, err := s.repo.GetPatientByUserID(ctx, resp.User.ID)
		if errors.Is(err, db.ErrNotFound) {
			return nil
		}
		if err != nil {
			return apperr.Internal("load patient profile", err)
		}
		if pp.DateOfBirth != nil {
			age := ageOn(*pp.DateOfBirth, now)
			pp.Age = &age
		}
		resp.PatientProfile = pp
	case auth.RoleDoctor:
		dp, err := s.repo.GetDoctorByUserID(ctx, resp.User.ID)
		if errors.Is(err, db.ErrNotFound) {
			return nil
		}
		if err != nil {
			return apperr.Internal("load doctor profile", err)
		}
		dp.IsLicenseValid = licenseValid(dp.LicenseExpiryDate, now)
		resp.DoctorProfile = dp
	}
	return nil
}

// UpdateMe applies a partial update to the caller's account and own profile
// in one transaction.
func (s *Service) UpdateMe(ctx context.Context, p *auth.Principal, upd *ProfileUpdate) (*MeResponse, error) {
	var resp *MeResponse
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var (
			u   *identity.User
			err error
		)
		if upd.FirstName != nil || upd.LastName != nil || upd.Phone != nil {
			u, err = s.users.UpdateContact(ctx, p.UserID, upd.FirstName, upd.LastName, upd.Phone)
		} else {
			u, err = s.users.GetByID(ctx, p.UserID)
		}
		if errors.Is(err, db.ErrNotFound) {
			return apperr.NotFound("User not found")
		}
		if err != nil {
			return err
		}

		switch u.Role {
		case auth.RolePatient:
			err = s.updatePatient(ctx, u.ID, upd)
		case auth.RoleDoctor:
			err = s.updateDoctor(ctx, u.ID, upd)
		}
		if err != nil {
			return err
		}

		resp = &MeResponse{User: u}
		return s.attachOwnProfile(ctx, resp)
	})
	if err != nil {
		if db.IsUniqueViolation(err, constraintLicense) {
			return nil, apperr.Integrity("Medical license number is already registered", err)
		}
		var ae *apperr.Error
		if errors.As(err, &ae) {
			return nil, err
		}
		return nil, apperr.Internal("update profile", err)
	}
	return resp, nil
}

func (s *Service) updatePatient(ctx context.Context, userID uuid.UUID, upd *ProfileUpdate) error {
	if err := validatePatientFields(upd.Gender, upd.BloodGroup); err != nil {
		return err
	}
	pp, err := s.repo.GetPatientByUserID(ctx, userID)
	if errors.Is(err, db.ErrNotFound) {
		return apperr.NotFound("Patient profile not found")
	}
	if err != nil {
		return err
	}
	setIf(&pp.DateOfBirth, upd.DateOfBirth)
	setIf(&pp.Gender, upd.Gender)
	setIf(&pp.BloodGroup, upd.BloodGroup)
	setIf(&pp.EmergencyContactName, upd.EmergencyContactName)
	setIf(&pp.EmergencyContactPhone, upd.EmergencyContactPhone)
	setIf(&pp.Address, upd.Address)
	setIf(&pp.InsuranceInfo, upd.InsuranceInfo)
	setIf(&pp.Allergies, upd.Allergies)
	setIf(&pp.MedicalHistory, upd.MedicalHistory)
	return s.repo.UpdatePatient(ctx, pp)
}

func (s *Service) updateDoctor(ctx context.Context, userID uuid.UUID, upd *ProfileUpdate) error {
	dp, err := s.repo.GetDoctorByUserID(ctx, userID)
	if errors.Is(err, db.ErrNotFound) {
		return apperr.NotFound("Doctor profile not found")
	}
	if err != nil {
		return err
	}
	if upd.MedicalLicenseNumber != nil {
		dp.MedicalLicenseNumber = strings.TrimSpace(*upd.MedicalLicenseNumber)
	}
	if upd.Specialization != nil {
		dp.Specialization = strings.TrimSpace(*upd.Specialization)
	}
	if upd.YearsOfExperience != nil {
		dp.YearsOfExperience = *upd.YearsOfExperience
	}
	setIf(&dp.LicenseExpiryDate, upd.LicenseExpiryDate)
	setIf(&dp.HospitalAffiliation, upd.HospitalAffiliation)
	setIf(&dp.EducationBackground, upd.EducationBackground)
	setIf(&dp.ConsultationFee, upd.ConsultationFee)
	setIf(&dp.AvailableDays, upd.AvailableDays)
	setIf(&dp.Bio, upd.Bio)
	if err := validateDoctor(dp); err != nil {
		return err
	}
	return s.repo.UpdateDoctor(ctx, dp)
}

func setIf[T any](dst **T, v *T) {
	if v != nil {
		*dst = v
	}
}

func (s *Service) SearchDoctors(ctx context.Context, f DoctorFilter, pg pagination.Page) (*DoctorSearchResponse, error) {
	if f.MinExperience != nil && *f.MinExperience < 0 {
		return nil, apperr.Validation("min_experience must not be negative")
	}
	if f.MaxFee != nil && *f.MaxFee < 0 {
		return nil, apperr.Validation("max_fee must not be negative")
	}
	params := pg.Params()
	items, total, err := s.repo.SearchDoctors(ctx, f, params.Limit, params.Offset)
	if err != nil {
		return nil, apperr.Internal("search doctors", err)
	}
	now := s.now()
	for _, d := range items {
		d.IsLicenseValid = licenseValid(d.LicenseExpiryDate, now)
	}
	if items == nil {
		items = []*DoctorListing{}
	}
	return &DoctorSearchResponse{
		Doctors:    items,
		TotalCount: total,
		Page:       pg.Page,
		PageSize:   pg.PageSize,
		TotalPages: pg.TotalPages(total),
	}, nil
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*DoctorListing, error) {
	d, err := s.repo.GetDoctor(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, apperr.NotFound("Doctor profile not found")
	}
	if err != nil {
		return nil, apperr.Internal("load doctor", err)
	}
	d.IsLicenseValid = licenseValid(d.LicenseExpiryDate, s.now())
	return d, nil
}

// GetPatient returns the patient summary. IsBookmarked reflects the calling
// doctor's bookmarks; a nil principal is allowed for internal lookups.
func (s *Service) GetPatient(ctx context.Context, p *auth.Principal, id uuid.UUID) (*PatientSummary, error) {
	var viewer *uuid.UUID
	if p.IsDoctor() {
		viewer = p.DoctorID
	}
	ps, err := s.repo.GetPatient(ctx, id, viewer)
	if errors.Is(err, db.ErrNotFound) {
		return nil, apperr.NotFound("Patient not found")
	}
	if err != nil {
		return nil, apperr.Internal("load patient", err)
	}
	s.fillAge(ps)
	return ps, nil
}

func (s *Service) fillAge(ps *PatientSummary) {
	if ps.DateOfBirth != nil {
		age := ageOn(*ps.DateOfBirth, s.now())
		ps.Age = &age
	}
}

func doctorOf(p *auth.Principal) (uuid.UUID, error) {
	if !p.IsDoctor() || p.DoctorID == nil {
		return uuid.Nil, apperr.Forbidden("Doctor profile not found")
	}
	return *p.DoctorID, nil
}

// ListMyPatients lists the patients the calling doctor has appointments with.
func (s *Service) ListMyPatients(ctx context.Context, p *auth.Principal, search string, pg pagination.Page) (*PatientListResponse, error) {
	doctorID, err := doctorOf(p)
	if err != nil {
		return nil, err
	}
	params := pg.Params()
	items, total, err := s.repo.ListDoctorPatients(ctx, doctorID, strings.TrimSpace(search), params.Limit, params.Offset)
	if err != nil {
		return nil, apperr.Internal("list doctor patients", err)
	}
	return s.patientList(items, total, pg), nil
}

func (s *Service) ListBookmarks(ctx context.Context, p *auth.Principal, pg pagination.Page) (*PatientListResponse, error) {
	doctorID, err := doctorOf(p)
	if err != nil {
		return nil, err
	}
	params := pg.Params()
	items, total, err := s.repo.ListBookmarked(ctx, doctorID, params.Limit, params.Offset)
	if err != nil {
		return nil, apperr.Internal("list bookmarks", err)
	}
	return s.patientList(items, total, pg), nil
}

func (s *Service) patientList(items []*PatientSummary, total int, pg pagination.Page) *PatientListResponse {
	for _, ps := range items {
		s.fillAge(ps)
	}
	if items == nil {
		items = []*PatientSummary{}
	}
	return &PatientListResponse{
		Patients:   items,
		TotalCount: total,
		Page:       pg.Page,
		PageSize:   pg.PageSize,
		TotalPages: pg.TotalPages(total),
	}
}

func (s *Service) ToggleBookmark(ctx context.Context, p *auth.Principal, patientID uuid.UUID) (*BookmarkResult, error) {
	doctorID, err := doctorOf(p)
	if err != nil {
		return nil, err
	}
	ok, err := s.repo.PatientExists(ctx, patientID)
	if err != nil {
		return nil, apperr.Internal("check patient", err)
	}
	if !ok {
		return nil, apperr.NotFound("Patient not found")
	}
	bookmarked, err := s.repo.ToggleBookmark(ctx, doctorID, patientID)
	if err != nil {
		return nil, apperr.Internal("toggle bookmark", err)
	}
	if bookmarked {
		return &BookmarkResult{Bookmarked: true, Message: "Patient bookmarked"}, nil
	}
	return &BookmarkResult{Bookmarked: false, Message: "Patient bookmark removed"}, nil
}

func (s *Service) PatientExists(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.repo.PatientExists(ctx, id)
}

func (s *Service) DoctorExists(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.repo.DoctorExists(ctx, id)
}
