package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// TokenTTL is the fixed lifetime of a session token.
	TokenTTL = 2 * time.Hour

	defaultIssuer = "alliance-admin"
	clockSkew     = 5 * time.Second
)

// Claims represents the JWT payload issued at login.
type Claims struct {
	ID      NumericID `json:"id"`
	Email   string    `json:"email"`
	Role    NumericID `json:"role"`
	Service string    `json:"service,omitempty"`
	jwt.RegisteredClaims
}

// NumericID decodes from a JSON number or a numeric JSON string.
type NumericID int64

func (n *NumericID) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		return errors.New("numeric id is null")
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		raw = strings.TrimSpace(s)
	}
	if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*n = NumericID(v)
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsInf(f, 0) || f != math.Trunc(f) {
		return fmt.Errorf("numeric id %q is not an integer", raw)
	}
	*n = NumericID(int64(f))
	return nil
}

// Signer issues and verifies HS256 session tokens with a server-held secret.
// It holds no mutable state and is safe for concurrent use.
type Signer struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// SignerOption configures Signer behavior.
type SignerOption func(*Signer)

// WithIssuer overrides the token issuer claim.
func WithIssuer(issuer string) SignerOption {
	return func(s *Signer) {
		if issuer = strings.TrimSpace(issuer); issuer != "" {
			s.issuer = issuer
		}
	}
}

// WithClock overrides time source (useful for tests).
func WithClock(fn func() time.Time) SignerOption {
	return func(s *Signer) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewSigner builds a Signer. An empty secret is accepted so the process can
// start, but every Issue and Verify call then fails with ErrMissingSecret.
func NewSigner(secret string, opts ...SignerOption) *Signer {
	s := &Signer{
		issuer: defaultIssuer,
		now:    time.Now,
	}
	if secret = strings.TrimSpace(secret); secret != "" {
		s.secret = []byte(secret)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Configured reports whether a signing secret is available.
func (s *Signer) Configured() bool {
	return s != nil && len(s.secret) > 0
}

// Issue signs a token for the identity. It expires TokenTTL after issuance.
func (s *Signer) Issue(identity Identity) (string, time.Time, error) {
	if !s.Configured() {
		return "", time.Time{}, ErrMissingSecret
	}
	if identity.ID <= 0 {
		return "", time.Time{}, &serverError{msg: fmt.Sprintf("auth: identity id %d is not positive", identity.ID)}
	}

	now := s.now().UTC().Truncate(time.Second)
	expiresAt := now.Add(TokenTTL)
	claims := Claims{
		ID:      NumericID(identity.ID),
		Email:   identity.Email,
		Role:    NumericID(identity.RoleID),
		Service: identity.Service,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   strconv.FormatInt(identity.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify checks the signature first and the timestamps second, so an expired
// token is reported as ErrTokenExpired only when it was signed with our secret.
func (s *Signer) Verify(token string) (Identity, error) {
	if !s.Configured() {
		return Identity{}, ErrMissingSecret
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, ErrUnauthenticated
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithoutClaimsValidation())
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Identity{}, ErrInvalidToken
	}
	if err := s.validateClaims(claims); err != nil {
		return Identity{}, err
	}
	return Identity{
		ID:      int64(claims.ID),
		Email:   claims.Email,
		RoleID:  int64(claims.Role),
		Service: claims.Service,
	}, nil
}

func (s *Signer) validateClaims(claims *Claims) error {
	if claims.ID <= 0 {
		return fmt.Errorf("%w: id missing", ErrInvalidToken)
	}
	if claims.Issuer != s.issuer {
		return fmt.Errorf("%w: unexpected issuer %q", ErrInvalidToken, claims.Issuer)
	}
	if claims.ExpiresAt == nil || claims.IssuedAt == nil {
		return fmt.Errorf("%w: timestamps missing", ErrInvalidToken)
	}
	if claims.ExpiresAt.Time.Before(claims.IssuedAt.Time) {
		return fmt.Errorf("%w: expiry precedes issued-at", ErrInvalidToken)
	}
	now := s.now().UTC()
	if claims.IssuedAt.Time.After(now.Add(clockSkew)) {
		return fmt.Errorf("%w: issued in the future", ErrInvalidToken)
	}
	if !now.Before(claims.ExpiresAt.Time) {
		return ErrTokenExpired
	}
	return nil
}
