package identity

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carebridge/clinic/internal/platform/db"
)

type userRepoPG struct{ pool *pgxpool.Pool }

func NewUserRepoPG(pool *pgxpool.Pool) UserRepository { return &userRepoPG{pool: pool} }

func (r *userRepoPG) conn(ctx context.Context) db.Querier {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const userCols = `id, email, first_name, last_name, phone, password_hash, user_type,
	is_active, is_verified, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.Phone, &u.PasswordHash, &u.Role,
		&u.IsActive, &u.IsVerified, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, db.NotFound(err)
	}
	return &u, nil
}

func (r *userRepoPG) Create(ctx context.Context, u *User) error {
	u.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO users (id, email, first_name, last_name, phone, password_hash, user_type, is_active, is_verified)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at, updated_at`,
		u.ID, u.Email, u.FirstName, u.LastName, u.Phone, u.PasswordHash, u.Role, u.IsActive, u.IsVerified,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
}

func (r *userRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return scanUser(r.conn(ctx).QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE id = $1`, id))
}

func (r *userRepoPG) GetByEmail(ctx context.Context, email string) (*User, error) {
	return scanUser(r.conn(ctx).QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE lower(email) = lower($1)`, email))
}

func (r *userRepoPG) UpdateContact(ctx context.Context, id uuid.UUID, firstName, lastName, phone *string) (*User, error) {
	return scanUser(r.conn(ctx).QueryRow(ctx, `
		UPDATE users SET
			first_name = COALESCE($2, first_name),
			last_name  = COALESCE($3, last_name),
			phone      = COALESCE($4, phone),
			updated_at = NOW()
		WHERE id = $1
		RETURNING `+userCols, id, firstName, lastName, phone))
}

func (r *userRepoPG) ProfileIDs(ctx context.Context, userID uuid.UUID) (*uuid.UUID, *uuid.UUID, error) {
	var patientID, doctorID *uuid.UUID
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT
			(SELECT id FROM patient_profiles WHERE user_id = $1),
			(SELECT id FROM doctor_profiles WHERE user_id = $1)`, userID,
	).Scan(&patientID, &doctorID)
	if err != nil {
		return nil, nil, err
	}
	return patientID, doctorID, nil
}
