package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

var testSigningKey = []byte("test-secret-key-for-unit-tests-only")

func createTestToken(t *testing.T, claims Claims, key []byte) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenStr, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return tokenStr
}

func validClaims(userID uuid.UUID, role string) Claims {
	now := time.Now()
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID.String(),
			Issuer:    "clinic",
			IssuedAt:  jwt.NewNumericDate(now.Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		Email: "someone@example.com",
		Role:  role,
	}
}

type stubResolver struct {
	principals map[uuid.UUID]*Principal
	err        error
}

func (r *stubResolver) ResolvePrincipal(_ context.Context, id uuid.UUID) (*Principal, error) {
	if r.err != nil {
		return nil, r.err
	}
	p, ok := r.principals[id]
	if !ok {
		return nil, ErrPrincipalNotFound
	}
	return p, nil
}

func runMiddleware(t *testing.T, cfg JWTConfig, header string) (*Principal, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/appointments/my/list", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/api/v1/appointments/my/list")

	var got *Principal
	h := JWTMiddleware(cfg)(func(c echo.Context) error {
		got = PrincipalFromContext(c.Request().Context())
		return c.String(http.StatusOK, "ok")
	})
	return got, h(c)
}

func expectStatus(t *testing.T, err error, code int, msg string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %d error, got nil", code)
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != code {
		t.Errorf("expected %d, got %d", code, httpErr.Code)
	}
	if msg != "" && httpErr.Message != msg {
		t.Errorf("expected message %q, got %v", msg, httpErr.Message)
	}
}

func TestJWTMiddleware_MissingHeader(t *testing.T) {
	_, err := runMiddleware(t, JWTConfig{SigningKey: testSigningKey}, "")
	expectStatus(t, err, http.StatusUnauthorized, "Authorization header missing or invalid")
}

func TestJWTMiddleware_InvalidFormat(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"no bearer prefix", "Token abc123"},
		{"missing token", "Bearer"},
		{"empty value", "Bearer "},
		{"basic auth", "Basic dXNlcjpwYXNz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runMiddleware(t, JWTConfig{SigningKey: testSigningKey}, tt.header)
			expectStatus(t, err, http.StatusUnauthorized, "Authorization header missing or invalid")
		})
	}
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	uid := uuid.New()
	token := createTestToken(t, validClaims(uid, RolePatient), testSigningKey)

	p, err := runMiddleware(t, JWTConfig{SigningKey: testSigningKey, Issuer: "clinic"}, "Bearer "+token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p == nil || p.UserID != uid || p.Role != RolePatient {
		t.Errorf("unexpected principal: %+v", p)
	}
}

func TestJWTMiddleware_CaseInsensitiveScheme(t *testing.T) {
	token := createTestToken(t, validClaims(uuid.New(), RoleDoctor), testSigningKey)
	if _, err := runMiddleware(t, JWTConfig{SigningKey: testSigningKey}, "bearer "+token); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestJWTMiddleware_ExpiredToken(t *testing.T) {
	claims := validClaims(uuid.New(), RolePatient)
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
	token := createTestToken(t, claims, testSigningKey)

	_, err := runMiddleware(t, JWTConfig{SigningKey: testSigningKey}, "Bearer "+token)
	expectStatus(t, err, http.StatusUnauthorized, "Invalid or expired token")
}

func TestJWTMiddleware_MissingExpiry(t *testing.T) {
	claims := validClaims(uuid.New(), RolePatient)
	claims.ExpiresAt = nil
	token := createTestToken(t, claims, testSigningKey)

	_, err := runMiddleware(t, JWTConfig{SigningKey: testSigningKey}, "Bearer "+token)
	expectStatus(t, err, http.StatusUnauthorized, "Invalid or expired token")
}

func TestJWTMiddleware_WrongKey(t *testing.T) {
	token := createTestToken(t, validClaims(uuid.New(), RolePatient), []byte("another-key"))
	_, err := runMiddleware(t, JWTConfig{SigningKey: testSigningKey}, "Bearer "+token)
	expectStatus(t, err, http.StatusUnauthorized, "Invalid or expired token")
}

func TestJWTMiddleware_WrongAlgorithm(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS512, validClaims(uuid.New(), RolePatient))
	signed, err := token.SignedString(testSigningKey)
	if err != nil {
		t.Fatal(err)
	}
	_, err = runMiddleware(t, JWTConfig{SigningKey: testSigningKey, Algorithm: "HS256"}, "Bearer "+signed)
	expectStatus(t, err, http.StatusUnauthorized, "Invalid or expired token")
}

func TestJWTMiddleware_NonUUIDSubject(t *testing.T) {
	claims := validClaims(uuid.New(), RolePatient)
	claims.Subject = "dev-user"
	token := createTestToken(t, claims, testSigningKey)

	_, err := runMiddleware(t, JWTConfig{SigningKey: testSigningKey}, "Bearer "+token)
	expectStatus(t, err, http.StatusUnauthorized, "Invalid or expired token")
}

func TestJWTMiddleware_ResolvesPrincipal(t *testing.T) {
	uid := uuid.New()
	pid := uuid.New()
	resolver := &stubResolver{principals: map[uuid.UUID]*Principal{
		uid: {UserID: uid, Email: "pat@example.com", Role: RolePatient, PatientID: &pid},
	}}
	token := createTestToken(t, validClaims(uid, RolePatient), testSigningKey)

	p, err := runMiddleware(t, JWTConfig{SigningKey: testSigningKey, Resolver: resolver}, "Bearer "+token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.PatientID == nil || *p.PatientID != pid {
		t.Errorf("expected patient profile id %s, got %+v", pid, p)
	}
}

func TestJWTMiddleware_UserGone(t *testing.T) {
	resolver := &stubResolver{principals: map[uuid.UUID]*Principal{}}
	token := createTestToken(t, validClaims(uuid.New(), RolePatient), testSigningKey)

	_, err := runMiddleware(t, JWTConfig{SigningKey: testSigningKey, Resolver: resolver}, "Bearer "+token)
	expectStatus(t, err, http.StatusUnauthorized, "User not found")
}

func TestJWTMiddleware_ResolverFailure(t *testing.T) {
	resolver := &stubResolver{err: errors.New("connection reset")}
	token := createTestToken(t, validClaims(uuid.New(), RolePatient), testSigningKey)

	_, err := runMiddleware(t, JWTConfig{SigningKey: testSigningKey, Resolver: resolver}, "Bearer "+token)
	if err == nil || err.Error() != "connection reset" {
		t.Fatalf("expected resolver error to propagate, got %v", err)
	}
}

func TestJWTMiddleware_RevokedJTI(t *testing.T) {
	store := NewMemoryRevocationStore(time.Hour)
	defer store.Close()

	claims := validClaims(uuid.New(), RolePatient)
	_ = store.Revoke(context.Background(), claims.ID, claims.Subject, claims.ExpiresAt.Time)
	token := createTestToken(t, claims, testSigningKey)

	_, err := runMiddleware(t, JWTConfig{SigningKey: testSigningKey, Revocations: store}, "Bearer "+token)
	expectStatus(t, err, http.StatusUnauthorized, "Invalid or expired token")
}

func TestJWTMiddleware_UserCutoff(t *testing.T) {
	store := NewMemoryRevocationStore(time.Hour)
	defer store.Close()

	uid := uuid.New()
	old := validClaims(uid, RoleDoctor)
	old.IssuedAt = jwt.NewNumericDate(time.Now().Add(-10 * time.Minute))
	fresh := validClaims(uid, RoleDoctor)
	fresh.IssuedAt = jwt.NewNumericDate(time.Now().Add(10 * time.Minute))

	if _, err := store.RevokeAllForUser(context.Background(), uid.String(), time.Now()); err != nil {
		t.Fatal(err)
	}

	cfg := JWTConfig{SigningKey: testSigningKey, Revocations: store}
	_, err := runMiddleware(t, cfg, "Bearer "+createTestToken(t, old, testSigningKey))
	expectStatus(t, err, http.StatusUnauthorized, "Invalid or expired token")

	if _, err := runMiddleware(t, cfg, "Bearer "+createTestToken(t, fresh, testSigningKey)); err != nil {
		t.Errorf("token issued after cutoff should pass, got %v", err)
	}
}

func TestJWTMiddleware_UserCutoffSameSecond(t *testing.T) {
	store := NewMemoryRevocationStore(time.Hour)
	defer store.Close()

	uid := uuid.New()
	revoked := time.Now().Truncate(time.Second).Add(-time.Minute)
	if _, err := store.RevokeAllForUser(context.Background(), uid.String(), revoked.Add(900*time.Millisecond)); err != nil {
		t.Fatal(err)
	}
	sameSecond := validClaims(uid, RolePatient)
	sameSecond.IssuedAt = jwt.NewNumericDate(revoked.Add(950 * time.Millisecond))
	nextSecond := validClaims(uid, RolePatient)
	nextSecond.IssuedAt = jwt.NewNumericDate(revoked.Add(time.Second + 50*time.Millisecond))

	cfg := JWTConfig{SigningKey: testSigningKey, Revocations: store}
	_, err := runMiddleware(t, cfg, "Bearer "+createTestToken(t, sameSecond, testSigningKey))
	expectStatus(t, err, http.StatusUnauthorized, "Invalid or expired token")

	if _, err := runMiddleware(t, cfg, "Bearer "+createTestToken(t, nextSecond, testSigningKey)); err != nil {
		t.Errorf("token issued the second after a revoke should pass, got %v", err)
	}
}

func TestJWTMiddleware_Skipper(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/api/v1/auth/login")

	called := false
	h := JWTMiddleware(JWTConfig{SigningKey: testSigningKey, Skipper: AuthSkipper})(func(c echo.Context) error {
		called = true
		return nil
	})
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("expected public path to reach the handler")
	}
}

func TestTokenIssuer_RoundTrip(t *testing.T) {
	issuer, err := NewTokenIssuer(testSigningKey, "HS256", 30*time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	uid := uuid.New()
	issued, err := issuer.Issue(uid, "doc@example.com", RoleDoctor)
	if err != nil {
		t.Fatal(err)
	}
	if issued.JTI == "" {
		t.Error("expected jti")
	}
	if d := time.Until(issued.ExpiresAt); d < 29*time.Minute || d > 31*time.Minute {
		t.Errorf("unexpected expiry %v", issued.ExpiresAt)
	}

	p, err := runMiddleware(t, issuer.Config(), "Bearer "+issued.Token)
	if err != nil {
		t.Fatalf("issued token rejected: %v", err)
	}
	if p.UserID != uid || p.Role != RoleDoctor || p.Email != "doc@example.com" {
		t.Errorf("unexpected principal: %+v", p)
	}
}

func TestNewTokenIssuer_RejectsAsymmetric(t *testing.T) {
	if _, err := NewTokenIssuer(testSigningKey, "RS256", time.Minute); err == nil {
		t.Error("expected RS256 to be rejected")
	}
	if _, err := NewTokenIssuer(nil, "HS256", time.Minute); err == nil {
		t.Error("expected empty secret to be rejected")
	}
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatal(err)
	}
	ok, err := CheckPassword(hash, "correct horse")
	if err != nil || !ok {
		t.Errorf("expected match, got %v %v", ok, err)
	}
	ok, err = CheckPassword(hash, "wrong")
	if err != nil || ok {
		t.Errorf("expected mismatch without error, got %v %v", ok, err)
	}
	if _, err := CheckPassword("not-a-hash", "x"); err == nil {
		t.Error("expected error for malformed hash")
	}
}
