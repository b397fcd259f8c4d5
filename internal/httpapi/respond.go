package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"alliance.fr/admin/internal/audit"
	"alliance.fr/admin/internal/auth"
)

// Error codes carried in the "code" field of error bodies.
const (
	codeBadRequest         = "bad_request"
	codeNotFound           = "not_found"
	codeInvalidCredentials = "invalid_credentials"
	codeUnauthenticated    = "unauthenticated"
	codeInvalidToken       = "invalid_token"
	codeTokenExpired       = "token_expired"
	codeUnknownService     = "unknown_service"
	codeRateLimited        = "rate_limited"
	codeMethodNotAllowed   = "method_not_allowed"
	codeServerError        = "server_error"
)

type errorBody struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Details   string `json:"details,omitempty"`
	Location  string `json:"location,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// apiError is the HTTP rendering of an error from the auth taxonomy.
type apiError struct {
	status  int
	code    string
	message string
	details string
}

// classify maps auth errors to status codes. unified hides whether a failed
// login was caused by the email or the password.
func classify(err error, unified bool) apiError {
	switch {
	case errors.Is(err, auth.ErrBadRequest):
		return apiError{http.StatusBadRequest, codeBadRequest, "email and password are required", ""}
	case errors.Is(err, auth.ErrNotFound):
		return apiError{http.StatusNotFound, codeNotFound, "user not found", ""}
	case errors.Is(err, auth.ErrInvalidCredentials):
		if unified {
			return apiError{http.StatusUnauthorized, codeInvalidCredentials, "invalid email or password", ""}
		}
		return apiError{http.StatusUnauthorized, codeInvalidCredentials, "incorrect password", ""}
	case errors.Is(err, auth.ErrUnauthenticated):
		return apiError{http.StatusUnauthorized, codeUnauthenticated, "access denied: token missing", "no token found in authorization header"}
	case errors.Is(err, auth.ErrTokenExpired):
		return apiError{http.StatusForbidden, codeTokenExpired, "token expired", "please log in again"}
	case errors.Is(err, auth.ErrInvalidToken):
		return apiError{http.StatusForbidden, codeInvalidToken, "invalid token", strings.TrimPrefix(err.Error(), auth.ErrInvalidToken.Error()+": ")}
	case errors.Is(err, auth.ErrMissingSecret):
		return apiError{http.StatusInternalServerError, codeServerError, "server configuration error", ""}
	default:
		return apiError{http.StatusInternalServerError, codeServerError, "internal server error", ""}
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, msg, details string) {
	writeJSON(w, status, errorBody{
		Error:     msg,
		Code:      code,
		Details:   details,
		RequestID: audit.RequestIDFromContext(r.Context()),
	})
}

func writeAPIError(w http.ResponseWriter, r *http.Request, e apiError) {
	writeError(w, r, e.status, e.code, e.message, e.details)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed", "")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func requestID(r *http.Request) string {
	return audit.RequestIDFromContext(r.Context())
}
