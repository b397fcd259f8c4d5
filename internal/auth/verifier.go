package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Verifier checks an email/password pair against stored bcrypt hashes.
type Verifier struct {
	accounts AccountStore
	unify    bool
}

// VerifierOption configures Verifier behavior.
type VerifierOption func(*Verifier)

// WithUnifiedErrors reports unknown emails as ErrInvalidCredentials instead of ErrNotFound.
func WithUnifiedErrors(enabled bool) VerifierOption {
	return func(v *Verifier) {
		v.unify = enabled
	}
}

// NewVerifier constructs a Verifier over the given account store.
func NewVerifier(accounts AccountStore, opts ...VerifierOption) *Verifier {
	v := &Verifier{accounts: accounts}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify authenticates the credentials and returns the matching identity.
// The email is matched exactly as stored.
func (v *Verifier) Verify(ctx context.Context, email, password string) (Identity, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return Identity{}, fmt.Errorf("%w: email and password are required", ErrBadRequest)
	}
	if v.accounts == nil {
		return Identity{}, &serverError{msg: "auth: account store is not configured"}
	}

	account, err := v.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			if v.unify {
				return Identity{}, ErrInvalidCredentials
			}
			return Identity{}, ErrNotFound
		}
		return Identity{}, fmt.Errorf("%w: find account: %v", ErrServer, err)
	}
	if err := VerifyPassword(account.PasswordHash, password); err != nil {
		return Identity{}, err
	}
	return account.Identity()
}
