package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"alliance.fr/admin/internal/auth"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var publicPaths = []string{
	"/v1/auth/login",
	"/v1/services",
	"/v1/info",
	"/metrics",
	"/healthz",
	"/readyz",
}

// withAuth verifies the bearer token of every non-public request and
// attaches the decoded identity to the request context.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get(authHeader)
		if strings.TrimSpace(header) == "" {
			a.metrics.TokenVerifications.WithLabelValues("missing_header").Inc()
			writeError(w, r, http.StatusUnauthorized, codeUnauthenticated,
				"access denied: token missing", "no authorization header provided")
			return
		}
		token := extractBearerToken(header)
		if token == "" {
			a.metrics.TokenVerifications.WithLabelValues("missing_token").Inc()
			writeError(w, r, http.StatusUnauthorized, codeUnauthenticated,
				"access denied: token missing", "no token found in authorization header")
			return
		}

		identity, err := a.opts.Signer.Verify(token)
		if err != nil {
			e := classify(err, false)
			a.metrics.TokenVerifications.WithLabelValues(e.code).Inc()
			if errors.Is(err, auth.ErrServer) {
				a.log.Error("token verification unavailable", zap.Error(err))
			} else {
				a.log.Debug("token rejected", zap.String("reason", e.code), zap.Error(err))
			}
			writeAPIError(w, r, e)
			return
		}

		a.metrics.TokenVerifications.WithLabelValues("ok").Inc()
		next.ServeHTTP(w, r.WithContext(auth.ContextWithIdentity(r.Context(), identity)))
	})
}

// extractBearerToken returns the token of a "Bearer <token>" header, or ""
// when the header carries another scheme or no token.
func extractBearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) < len(bearer)-1 || !strings.EqualFold(header[:len(bearer)-1], strings.TrimSpace(bearer)) {
		return ""
	}
	rest := header[len(bearer)-1:]
	if rest != "" && rest[0] != ' ' {
		return ""
	}
	return strings.TrimSpace(rest)
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
