// Package policy decides who may touch which patient-scoped entity.
//
// Two ownership shapes exist. Jointly owned entities (appointments,
// prescriptions) reference both a patient and a doctor profile; a doctor is
// allowed only when referenced. Patient data (records, metrics, conditions)
// references only a patient; any doctor may work with it as clinical staff.
// Admins are always allowed.
package policy

import (
	"strings"

	"github.com/google/uuid"

	"github.com/carebridge/clinic/internal/platform/apperr"
	"github.com/carebridge/clinic/internal/platform/auth"
)

const AccessDenied = "Access denied"

// CanAccess reports whether p may act on an entity owned jointly by
// patientID and doctorID.
func CanAccess(p *auth.Principal, patientID, doctorID uuid.UUID) bool {
	switch {
	case p == nil:
		return false
	case p.IsAdmin():
		return true
	case p.IsDoctor():
		return p.DoctorID != nil && *p.DoctorID == doctorID
	case p.IsPatient():
		return p.PatientID != nil && *p.PatientID == patientID
	}
	return false
}

// Authorize is CanAccess returning a FORBIDDEN error on deny.
func Authorize(p *auth.Principal, patientID, doctorID uuid.UUID) error {
	if !CanAccess(p, patientID, doctorID) {
		return apperr.Forbidden(AccessDenied)
	}
	return nil
}

// CanAccessPatientData reports whether p may act on data owned by patientID
// alone.
func CanAccessPatientData(p *auth.Principal, patientID uuid.UUID) bool {
	switch {
	case p == nil:
		return false
	case p.IsAdmin(), p.IsDoctor():
		return true
	case p.IsPatient():
		return p.PatientID != nil && *p.PatientID == patientID
	}
	return false
}

func AuthorizePatientData(p *auth.Principal, patientID uuid.UUID) error {
	if !CanAccessPatientData(p, patientID) {
		return apperr.Forbidden(AccessDenied)
	}
	return nil
}

// ResolveCreatePatient returns the patient a new entity belongs to.
// Patients always create for themselves; naming another patient is rejected,
// never corrected. Doctors and admins must name the patient.
func ResolveCreatePatient(p *auth.Principal, requested *uuid.UUID) (uuid.UUID, error) {
	if p == nil {
		return uuid.Nil, apperr.Unauthorized("Authentication required")
	}
	if p.IsPatient() {
		if p.PatientID == nil {
			return uuid.Nil, apperr.NotFound("Patient profile not found")
		}
		if requested != nil && *requested != uuid.Nil && *requested != *p.PatientID {
			return uuid.Nil, apperr.Forbidden("Patients can only create records for themselves")
		}
		return *p.PatientID, nil
	}
	if p.IsDoctor() || p.IsAdmin() {
		if requested == nil || *requested == uuid.Nil {
			return uuid.Nil, apperr.Validation("patient_id is required")
		}
		return *requested, nil
	}
	return uuid.Nil, apperr.Forbidden(AccessDenied)
}

// ResolveCreateDoctor returns the doctor a new jointly owned entity belongs
// to. A doctor acts as themself; anyone else must name the doctor.
func ResolveCreateDoctor(p *auth.Principal, requested *uuid.UUID) (uuid.UUID, error) {
	if p != nil && p.IsDoctor() {
		if p.DoctorID == nil {
			return uuid.Nil, apperr.NotFound("Doctor profile not found")
		}
		if requested != nil && *requested != uuid.Nil && *requested != *p.DoctorID {
			return uuid.Nil, apperr.Forbidden("Doctors can only create entries for themselves")
		}
		return *p.DoctorID, nil
	}
	if requested == nil || *requested == uuid.Nil {
		return uuid.Nil, apperr.Validation("doctor_id is required")
	}
	return *requested, nil
}

// RestrictFields rejects a patient's update when it sets any field outside
// allowed. Other roles are not restricted.
func RestrictFields(p *auth.Principal, present []string, allowed ...string) error {
	if p == nil || !p.IsPatient() {
		return nil
	}
	ok := make(map[string]bool, len(allowed))
	for _, f := range allowed {
		ok[f] = true
	}
	for _, f := range present {
		if !ok[f] {
			return apperr.Forbidden("Patients can only update: " + strings.Join(allowed, ", "))
		}
	}
	return nil
}
