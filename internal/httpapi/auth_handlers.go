package httpapi

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"alliance.fr/admin/internal/auth"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"mot_passe"`
	// Password under its English name, accepted for API clients.
	PasswordAlt string `json:"password"`
}

type loginResponse struct {
	Message   string        `json:"message"`
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expires_at"`
	Employe   auth.Identity `json:"employe"`
	Redirect  *string       `json:"redirect"`
	Notice    string        `json:"notice,omitempty"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.metrics.LoginAttempts.WithLabelValues(codeBadRequest).Inc()
		writeError(w, r, http.StatusBadRequest, codeBadRequest, "invalid request body", err.Error())
		return
	}
	password := req.Password
	if password == "" {
		password = req.PasswordAlt
	}

	if a.opts.Verifier == nil {
		a.metrics.LoginAttempts.WithLabelValues(codeServerError).Inc()
		a.log.Error("login unavailable: no account store configured")
		writeError(w, r, http.StatusInternalServerError, codeServerError, "internal server error", "")
		return
	}

	identity, err := a.opts.Verifier.Verify(r.Context(), req.Email, password)
	if err != nil {
		e := classify(err, a.opts.UnifyLoginErrors)
		a.metrics.LoginAttempts.WithLabelValues(e.code).Inc()
		if e.status >= http.StatusInternalServerError {
			a.log.Error("login failed", zap.Error(err))
		}
		a.audit.Event(r.Context(), "auth.login.failed",
			zap.String("email", req.Email),
			zap.String("reason", e.code),
		)
		writeAPIError(w, r, e)
		return
	}

	token, expiresAt, err := a.opts.Signer.Issue(identity)
	if err != nil {
		e := classify(err, a.opts.UnifyLoginErrors)
		a.metrics.LoginAttempts.WithLabelValues(e.code).Inc()
		a.log.Error("token issuance failed", zap.Error(err))
		writeAPIError(w, r, e)
		return
	}

	resp := loginResponse{
		Message:   "login successful",
		Token:     token,
		ExpiresAt: expiresAt,
		Employe:   identity,
		Notice:    a.guard.Notice(identity.Service),
	}
	if route, ok := a.opts.Resolver.Route(identity.Service); ok {
		resp.Redirect = &route
	}

	a.metrics.LoginAttempts.WithLabelValues("ok").Inc()
	ctx := auth.ContextWithIdentity(r.Context(), identity)
	a.audit.Event(ctx, "auth.login.succeeded",
		zap.Int64("role", identity.RoleID),
		zap.String("service", identity.Service),
		zap.Time("expires_at", expiresAt),
	)
	writeJSON(w, http.StatusOK, resp)
}
