package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestConnFromContext_Nil(t *testing.T) {
	if q := ConnFromContext(context.Background()); q != nil {
		t.Error("expected nil querier from empty context")
	}
}

func TestTxFromContext_Nil(t *testing.T) {
	if tx := TxFromContext(context.Background()); tx != nil {
		t.Error("expected nil tx from empty context")
	}
}

func TestNoTx_RunsInline(t *testing.T) {
	called := false
	err := NoTx{}.WithinTx(context.Background(), func(ctx context.Context) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("expected fn to be called")
	}
}

func TestNoTx_PropagatesError(t *testing.T) {
	want := errors.New("boom")
	err := NoTx{}.WithinTx(context.Background(), func(ctx context.Context) error { return want })
	if !errors.Is(err, want) {
		t.Errorf("expected %v, got %v", want, err)
	}
}

func TestNotFound(t *testing.T) {
	if !errors.Is(NotFound(pgx.ErrNoRows), ErrNotFound) {
		t.Error("expected pgx.ErrNoRows to map to ErrNotFound")
	}
	if !errors.Is(NotFound(fmt.Errorf("scan: %w", pgx.ErrNoRows)), ErrNotFound) {
		t.Error("expected wrapped pgx.ErrNoRows to map to ErrNotFound")
	}
	other := errors.New("connection reset")
	if NotFound(other) != other {
		t.Error("expected unrelated error to pass through")
	}
	if NotFound(nil) != nil {
		t.Error("expected nil to stay nil")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	err := fmt.Errorf("insert user: %w", &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

	if !IsUniqueViolation(err, "") {
		t.Error("expected any-constraint match")
	}
	if !IsUniqueViolation(err, "users_email_key") {
		t.Error("expected named constraint match")
	}
	if IsUniqueViolation(err, "doctor_profiles_medical_license_number_key") {
		t.Error("expected other constraint not to match")
	}
	if IsUniqueViolation(errors.New("plain"), "") {
		t.Error("expected plain error not to match")
	}
}

func TestIsIntegrityViolation(t *testing.T) {
	for _, code := range []string{"23505", "23503", "23502", "23514"} {
		if !IsIntegrityViolation(&pgconn.PgError{Code: code}) {
			t.Errorf("expected %s to be an integrity violation", code)
		}
	}
	if IsIntegrityViolation(&pgconn.PgError{Code: "40001"}) {
		t.Error("serialization failure is not an integrity violation")
	}
	if !IsForeignKeyViolation(&pgconn.PgError{Code: "23503"}) {
		t.Error("expected foreign key violation")
	}
}
