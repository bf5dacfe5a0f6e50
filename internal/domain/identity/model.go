package identity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/carebridge/clinic/internal/platform/auth"
)

// User is an account. Role is fixed at registration.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Phone        *string   `json:"phone,omitempty"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"user_type"`
	IsActive     bool      `json:"is_active"`
	IsVerified   bool      `json:"is_verified"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (u *User) FullName() string { return u.FirstName + " " + u.LastName }

// MarshalJSON adds the derived name and role flags clients render from.
func (u User) MarshalJSON() ([]byte, error) {
	type plain User
	return json.Marshal(struct {
		plain
		FullName  string `json:"full_name"`
		IsPatient bool   `json:"is_patient"`
		IsDoctor  bool   `json:"is_doctor"`
		IsAdmin   bool   `json:"is_admin"`
	}{
		plain:     plain(u),
		FullName:  u.FullName(),
		IsPatient: u.Role == auth.RolePatient,
		IsDoctor:  u.Role == auth.RoleDoctor,
		IsAdmin:   u.Role == auth.RoleAdmin,
	})
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest carries the account fields shared by every role.
type RegisterRequest struct {
	Email     string  `json:"email"`
	Password  string  `json:"password"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	Phone     *string `json:"phone,omitempty"`
}

// PatientDetails is the profile half of a patient registration.
type PatientDetails struct {
	DateOfBirth           *time.Time `json:"date_of_birth,omitempty"`
	Gender                *string    `json:"gender,omitempty"`
	BloodGroup            *string    `json:"blood_group,omitempty"`
	EmergencyContactName  *string    `json:"emergency_contact_name,omitempty"`
	EmergencyContactPhone *string    `json:"emergency_contact_phone,omitempty"`
	Address               *string    `json:"address,omitempty"`
	InsuranceInfo         *string    `json:"insurance_info,omitempty"`
	Allergies             *string    `json:"allergies,omitempty"`
	MedicalHistory        *string    `json:"medical_history,omitempty"`
}

// DoctorDetails is the profile half of a doctor registration.
type DoctorDetails struct {
	MedicalLicenseNumber string     `json:"medical_license_number"`
	LicenseExpiryDate    *time.Time `json:"license_expiry_date,omitempty"`
	Specialization       string     `json:"specialization"`
	YearsOfExperience    *int       `json:"years_of_experience,omitempty"`
	HospitalAffiliation  *string    `json:"hospital_affiliation,omitempty"`
	EducationBackground  *string    `json:"education_background,omitempty"`
	ConsultationFee      *float64   `json:"consultation_fee,omitempty"`
	AvailableDays        *string    `json:"available_days,omitempty"`
	Bio                  *string    `json:"bio,omitempty"`
}

type RegisterPatientRequest struct {
	RegisterRequest
	PatientDetails
}

type RegisterDoctorRequest struct {
	RegisterRequest
	DoctorDetails
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	User        *User  `json:"user"`
}
