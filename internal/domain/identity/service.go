package identity

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carebridge/clinic/internal/platform/apperr"
	"github.com/carebridge/clinic/internal/platform/auth"
	"github.com/carebridge/clinic/internal/platform/db"
)

const (
	minPasswordLength = 8

	msgInvalidCredentials = "Invalid email or password"
	msgEmailTaken         = "Email already registered"

	constraintEmail   = "users_email_key"
	constraintLicense = "doctor_profiles_medical_license_number_key"
)

type Service struct {
	users    UserRepository
	profiles ProfileCreator
	tokens   *auth.TokenIssuer
	tx       db.Transactor
	logger   zerolog.Logger
}

func NewService(users UserRepository, profiles ProfileCreator, tokens *auth.TokenIssuer, tx db.Transactor, logger zerolog.Logger) *Service {
	if tx == nil {
		tx = db.NoTx{}
	}
	return &Service{users: users, profiles: profiles, tokens: tokens, tx: tx, logger: logger}
}

// Login verifies credentials and issues an access token. Unknown email, wrong
// password and deactivated accounts are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, req *LoginRequest) (*TokenResponse, error) {
	email := normalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return nil, apperr.Unauthorized(msgInvalidCredentials)
	}

	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, db.ErrNotFound) {
		return nil, apperr.Unauthorized(msgInvalidCredentials)
	}
	if err != nil {
		return nil, apperr.Internal("load user", err)
	}

	ok, err := auth.CheckPassword(u.PasswordHash, req.Password)
	if err != nil {
		s.logger.Warn().Err(err).Str("user_id", u.ID.String()).Msg("stored password hash is unusable")
	}
	if !ok || !u.IsActive {
		return nil, apperr.Unauthorized(msgInvalidCredentials)
	}
	return s.issue(u)
}

func (s *Service) RegisterPatient(ctx context.Context, req *RegisterPatientRequest) (*TokenResponse, error) {
	u, err := s.register(ctx, &req.RegisterRequest, auth.RolePatient, func(ctx context.Context, userID uuid.UUID) error {
		_, err := s.profiles.CreatePatientProfile(ctx, userID, &req.PatientDetails)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.issue(u)
}

func (s *Service) RegisterDoctor(ctx context.Context, req *RegisterDoctorRequest) (*TokenResponse, error) {
	if strings.TrimSpace(req.MedicalLicenseNumber) == "" {
		return nil, apperr.Validation("medical_license_number is required")
	}
	if strings.TrimSpace(req.Specialization) == "" {
		return nil, apperr.Validation("specialization is required")
	}
	u, err := s.register(ctx, &req.RegisterRequest, auth.RoleDoctor, func(ctx context.Context, userID uuid.UUID) error {
		_, err := s.profiles.CreateDoctorProfile(ctx, userID, &req.DoctorDetails)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.issue(u)
}

// RegisterAdmin creates an admin account. No token is issued; the new admin
// logs in separately.
func (s *Service) RegisterAdmin(ctx context.Context, req *RegisterRequest) (*User, error) {
	return s.register(ctx, req, auth.RoleAdmin, nil)
}

// register creates the user and, when withProfile is set, its profile in one
// transaction.
func (s *Service) register(ctx context.Context, req *RegisterRequest, role string, withProfile func(ctx context.Context, userID uuid.UUID) error) (*User, error) {
	if err := validateRegistration(req); err != nil {
		return nil, err
	}
	email := normalizeEmail(req.Email)

	_, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		return nil, apperr.Validation(msgEmailTaken)
	}
	if !errors.Is(err, db.ErrNotFound) {
		return nil, apperr.Internal("check email", err)
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, apperr.Internal("hash password", err)
	}

	u := &User{
		Email:        email,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Phone:        req.Phone,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.users.Create(ctx, u); err != nil {
			return err
		}
		if withProfile != nil {
			return withProfile(ctx, u.ID)
		}
		return nil
	})
	if err != nil {
		return nil, registrationError(err)
	}

	s.logger.Info().Str("user_id", u.ID.String()).Str("role", role).Msg("account registered")
	return u, nil
}

func registrationError(err error) error {
	switch {
	case db.IsUniqueViolation(err, constraintEmail):
		return apperr.Integrity("Email address is already registered", err)
	case db.IsUniqueViolation(err, constraintLicense):
		return apperr.Integrity("Medical license number is already registered", err)
	case db.IsIntegrityViolation(err):
		return apperr.Integrity("Data integrity error - please check your input", err)
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	return apperr.Internal("create account", err)
}

func validateRegistration(req *RegisterRequest) error {
	if _, err := mail.ParseAddress(strings.TrimSpace(req.Email)); err != nil {
		return apperr.Validation("A valid email address is required")
	}
	if len(req.Password) < minPasswordLength {
		return apperr.Validation("Password must be at least 8 characters long")
	}
	if strings.TrimSpace(req.FirstName) == "" {
		return apperr.Validation("first_name is required")
	}
	if strings.TrimSpace(req.LastName) == "" {
		return apperr.Validation("last_name is required")
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) issue(u *User) (*TokenResponse, error) {
	tok, err := s.tokens.Issue(u.ID, u.Email, u.Role)
	if err != nil {
		return nil, apperr.Internal("issue token", err)
	}
	return &TokenResponse{
		AccessToken: tok.Token,
		TokenType:   "bearer",
		ExpiresIn:   int(s.tokens.TTL().Seconds()),
		User:        u,
	}, nil
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := s.users.GetByID(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, apperr.NotFound("User not found")
	}
	if err != nil {
		return nil, apperr.Internal("load user", err)
	}
	return u, nil
}

// ResolvePrincipal implements auth.PrincipalResolver. Deactivated users
// resolve to auth.ErrPrincipalNotFound.
func (s *Service) ResolvePrincipal(ctx context.Context, userID uuid.UUID) (*auth.Principal, error) {
	u, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, auth.ErrPrincipalNotFound
	}
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, auth.ErrPrincipalNotFound
	}

	p := &auth.Principal{UserID: u.ID, Email: u.Email, Role: u.Role}
	switch u.Role {
	case auth.RolePatient, auth.RoleDoctor:
		patientID, doctorID, err := s.users.ProfileIDs(ctx, u.ID)
		if err != nil {
			return nil, err
		}
		if u.Role == auth.RolePatient {
			p.PatientID = patientID
		} else {
			p.DoctorID = doctorID
		}
	}
	return p, nil
}
