package profile

import (
	"time"

	"github.com/google/uuid"

	"github.com/carebridge/clinic/internal/domain/identity"
)

var (
	validGenders = map[string]bool{
		"male": true, "female": true, "other": true, "prefer_not_to_say": true,
	}
	validBloodGroups = map[string]bool{
		"A+": true, "A-": true, "B+": true, "B-": true,
		"AB+": true, "AB-": true, "O+": true, "O-": true,
	}
)

type PatientProfile struct {
	ID                    uuid.UUID  `json:"id"`
	UserID                uuid.UUID  `json:"user_id"`
	DateOfBirth           *time.Time `json:"date_of_birth,omitempty"`
	Gender                *string    `json:"gender,omitempty"`
	BloodGroup            *string    `json:"blood_group,omitempty"`
	EmergencyContactName  *string    `json:"emergency_contact_name,omitempty"`
	EmergencyContactPhone *string    `json:"emergency_contact_phone,omitempty"`
	Address               *string    `json:"address,omitempty"`
	InsuranceInfo         *string    `json:"insurance_info,omitempty"`
	Allergies             *string    `json:"allergies,omitempty"`
	MedicalHistory        *string    `json:"medical_history,omitempty"`
	Age                   *int       `json:"age,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

type DoctorProfile struct {
	ID                   uuid.UUID  `json:"id"`
	UserID               uuid.UUID  `json:"user_id"`
	MedicalLicenseNumber string     `json:"medical_license_number"`
	LicenseExpiryDate    *time.Time `json:"license_expiry_date,omitempty"`
	Specialization       string     `json:"specialization"`
	YearsOfExperience    int        `json:"years_of_experience"`
	HospitalAffiliation  *string    `json:"hospital_affiliation,omitempty"`
	EducationBackground  *string    `json:"education_background,omitempty"`
	ConsultationFee      *float64   `json:"consultation_fee,omitempty"`
	AvailableDays        *string    `json:"available_days,omitempty"`
	Bio                  *string    `json:"bio,omitempty"`
	IsVerified           bool       `json:"is_verified"`
	IsLicenseValid       bool       `json:"is_license_valid"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// DoctorListing is a doctor profile joined with the owning user's name.
type DoctorListing struct {
	DoctorProfile
	DoctorName  string `json:"doctor_name"`
	DoctorEmail string `json:"doctor_email"`
}

// PatientSummary is the patient view shown to clinical staff.
type PatientSummary struct {
	ID                    uuid.UUID  `json:"id"`
	UserID                uuid.UUID  `json:"user_id"`
	Name                  string     `json:"name"`
	Email                 string     `json:"email"`
	Phone                 *string    `json:"phone,omitempty"`
	Age                   *int       `json:"age,omitempty"`
	DateOfBirth           *time.Time `json:"date_of_birth,omitempty"`
	Gender                *string    `json:"gender,omitempty"`
	BloodGroup            *string    `json:"blood_group,omitempty"`
	Allergies             *string    `json:"allergies,omitempty"`
	MedicalHistory        *string    `json:"medical_history,omitempty"`
	EmergencyContactName  *string    `json:"emergency_contact_name,omitempty"`
	EmergencyContactPhone *string    `json:"emergency_contact_phone,omitempty"`
	Address               *string    `json:"address,omitempty"`
	InsuranceInfo         *string    `json:"insurance_info,omitempty"`
	AppointmentCount      int        `json:"appointment_count"`
	LastVisit             *time.Time `json:"last_visit,omitempty"`
	IsBookmarked          bool       `json:"is_bookmarked"`
}

type DoctorFilter struct {
	Specialization      string
	HospitalAffiliation string
	Location            string
	Name                string
	MinExperience       *int
	MaxFee              *float64
	IsVerified          *bool
}

// ProfileUpdate is a partial update of the caller's account and own profile.
// Patient fields are ignored for doctors and the reverse.
type ProfileUpdate struct {
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	Phone     *string `json:"phone,omitempty"`

	DateOfBirth           *time.Time `json:"date_of_birth,omitempty"`
	Gender                *string    `json:"gender,omitempty"`
	BloodGroup            *string    `json:"blood_group,omitempty"`
	EmergencyContactName  *string    `json:"emergency_contact_name,omitempty"`
	EmergencyContactPhone *string    `json:"emergency_contact_phone,omitempty"`
	Address               *string    `json:"address,omitempty"`
	InsuranceInfo         *string    `json:"insurance_info,omitempty"`
	Allergies             *string    `json:"allergies,omitempty"`
	MedicalHistory        *string    `json:"medical_history,omitempty"`

	MedicalLicenseNumber *string    `json:"medical_license_number,omitempty"`
	LicenseExpiryDate    *time.Time `json:"license_expiry_date,omitempty"`
	Specialization       *string    `json:"specialization,omitempty"`
	YearsOfExperience    *int       `json:"years_of_experience,omitempty"`
	HospitalAffiliation  *string    `json:"hospital_affiliation,omitempty"`
	EducationBackground  *string    `json:"education_background,omitempty"`
	ConsultationFee      *float64   `json:"consultation_fee,omitempty"`
	AvailableDays        *string    `json:"available_days,omitempty"`
	Bio                  *string    `json:"bio,omitempty"`
}

type MeResponse struct {
	User           *identity.User  `json:"user"`
	PatientProfile *PatientProfile `json:"patient_profile"`
	DoctorProfile  *DoctorProfile  `json:"doctor_profile"`
}

type DoctorSearchResponse struct {
	Doctors    []*DoctorListing `json:"doctors"`
	TotalCount int              `json:"total_count"`
	Page       int              `json:"page"`
	PageSize   int              `json:"page_size"`
	TotalPages int              `json:"total_pages"`
}

type PatientListResponse struct {
	Patients   []*PatientSummary `json:"patients"`
	TotalCount int               `json:"total_count"`
	Page       int               `json:"page"`
	PageSize   int               `json:"page_size"`
	TotalPages int               `json:"total_pages"`
}

type BookmarkResult struct {
	Bookmarked bool   `json:"bookmarked"`
	Message    string `json:"message"`
}

// ageOn returns full years between dob and now.
func ageOn(dob, now time.Time) int {
	age := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	return age
}

func licenseValid(expiry *time.Time, now time.Time) bool {
	return expiry == nil || expiry.After(now)
}
