package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenIssuer signs access tokens with a shared HMAC secret.
type TokenIssuer struct {
	key    []byte
	method jwt.SigningMethod
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

func NewTokenIssuer(secret []byte, algorithm string, ttl time.Duration) (*TokenIssuer, error) {
	method := jwt.GetSigningMethod(algorithm)
	if _, ok := method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unsupported signing algorithm %q", algorithm)
	}
	if len(secret) == 0 {
		return nil, fmt.Errorf("signing secret is empty")
	}
	return &TokenIssuer{
		key:    secret,
		method: method,
		ttl:    ttl,
		issuer: "clinic",
		now:    time.Now,
	}, nil
}

// Issued is a freshly signed token.
type Issued struct {
	Token     string
	JTI       string
	ExpiresAt time.Time
}

func (i *TokenIssuer) Issue(userID uuid.UUID, email, role string) (*Issued, error) {
	now := i.now()
	exp := now.Add(i.ttl)
	jti := uuid.New().String()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   userID.String(),
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Email: email,
		Role:  role,
	}
	signed, err := jwt.NewWithClaims(i.method, claims).SignedString(i.key)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &Issued{Token: signed, JTI: jti, ExpiresAt: exp}, nil
}

// TTL is the lifetime of issued tokens.
func (i *TokenIssuer) TTL() time.Duration { return i.ttl }

// Config returns the middleware settings that verify tokens from this issuer.
func (i *TokenIssuer) Config() JWTConfig {
	return JWTConfig{
		SigningKey: i.key,
		Algorithm:  i.method.Alg(),
		Issuer:     i.issuer,
	}
}
