package policy

import (
	"github.com/google/uuid"

	"github.com/carebridge/clinic/internal/platform/auth"
)

// Scope is the ownership part of a search filter.
type Scope struct {
	PatientID *uuid.UUID
	DoctorID  *uuid.UUID
}

// NarrowAppointments forces a patient onto their own appointments. A doctor
// defaults to their own only when no patient was requested, so looking up a
// specific patient is not mistaken for "my appointments".
func NarrowAppointments(p *auth.Principal, s Scope) Scope {
	switch {
	case p.IsPatient():
		s.PatientID = p.PatientID
	case p.IsDoctor():
		if s.PatientID == nil {
			s.DoctorID = p.DoctorID
		}
	}
	return s
}

// NarrowPrescriptions forces patients onto their own prescriptions with any
// doctor filter dropped, and doctors onto prescriptions they wrote.
func NarrowPrescriptions(p *auth.Principal, s Scope) Scope {
	switch {
	case p.IsPatient():
		s.PatientID = p.PatientID
		s.DoctorID = nil
	case p.IsDoctor():
		s.DoctorID = p.DoctorID
	}
	return s
}

// NarrowPatientData forces a patient onto their own data. Staff searches run
// as requested.
func NarrowPatientData(p *auth.Principal, s Scope) Scope {
	if p.IsPatient() {
		s.PatientID = p.PatientID
	}
	return s
}
