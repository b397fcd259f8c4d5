package auth

import "context"

// AccountStore looks up login accounts.
type AccountStore interface {
	// FindByEmail returns ErrNotFound when no account has exactly this email.
	FindByEmail(ctx context.Context, email string) (*Account, error)
}
