package auth

import "errors"

var (
	ErrBadRequest         = errors.New("auth: bad request")
	ErrNotFound           = errors.New("auth: account not found")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrUnauthenticated    = errors.New("auth: unauthenticated")
	ErrInvalidToken       = errors.New("auth: invalid token")
	ErrTokenExpired       = errors.New("auth: token expired")
	ErrServer             = errors.New("auth: server error")
)

// ErrMissingSecret is returned when no signing secret has been configured.
// It matches ErrServer.
var ErrMissingSecret = &serverError{msg: "auth: signing secret is not configured"}

type serverError struct{ msg string }

func (e *serverError) Error() string        { return e.msg }
func (e *serverError) Is(target error) bool { return target == ErrServer }
