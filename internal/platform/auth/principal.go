package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

const (
	RolePatient = "patient"
	RoleDoctor  = "doctor"
	RoleAdmin   = "admin"
)

// ValidRole reports whether role is one the system issues tokens for.
func ValidRole(role string) bool {
	switch role {
	case RolePatient, RoleDoctor, RoleAdmin:
		return true
	}
	return false
}

// Principal is the authenticated caller. PatientID and DoctorID are the ids of
// the caller's own profile and are set only for the matching role.
type Principal struct {
	UserID    uuid.UUID
	Email     string
	Role      string
	PatientID *uuid.UUID
	DoctorID  *uuid.UUID
}

func (p *Principal) IsAdmin() bool   { return p != nil && p.Role == RoleAdmin }
func (p *Principal) IsDoctor() bool  { return p != nil && p.Role == RoleDoctor }
func (p *Principal) IsPatient() bool { return p != nil && p.Role == RolePatient }

// ErrPrincipalNotFound is returned by resolvers when the token subject no
// longer maps to an active user.
var ErrPrincipalNotFound = errors.New("principal not found")

// PrincipalResolver loads the caller behind a token subject.
type PrincipalResolver interface {
	ResolvePrincipal(ctx context.Context, userID uuid.UUID) (*Principal, error)
}

// WithPrincipal stores p in ctx along with the user id and role keys.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	ctx = context.WithValue(ctx, PrincipalKey, p)
	ctx = context.WithValue(ctx, UserIDKey, p.UserID.String())
	ctx = context.WithValue(ctx, UserRolesKey, []string{p.Role})
	return ctx
}

func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(PrincipalKey).(*Principal)
	return p
}
