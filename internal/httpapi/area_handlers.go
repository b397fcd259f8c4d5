package httpapi

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"alliance.fr/admin/internal/area"
	"alliance.fr/admin/internal/auth"
)

const areasPrefix = "/v1/areas"

type sessionResponse struct {
	Employe auth.Identity `json:"employe"`
	Home    string        `json:"home"`
	Notice  string        `json:"notice,omitempty"`
}

type areaResponse struct {
	Decision string         `json:"decision"`
	Route    string         `json:"route"`
	Key      area.Key       `json:"key,omitempty"`
	Location string         `json:"location,omitempty"`
	Employe  *auth.Identity `json:"employe,omitempty"`
}

// handleSession returns the identity carried by the token and the area it
// should land on.
func (a *API) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeAPIError(w, r, classify(auth.ErrUnauthenticated, false))
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		Employe: identity,
		Home:    a.guard.Home(true, identity.Service),
		Notice:  a.guard.Notice(identity.Service),
	})
}

func (a *API) handleServices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"services": a.opts.Resolver.Services(),
		"aliases":  a.opts.Resolver.Aliases(),
	})
}

// handleArea runs the route guard for GET /v1/areas/<route>. Identities that
// ask for another service's area are redirected to their own.
func (a *API) handleArea(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	route := strings.TrimPrefix(r.URL.Path, areasPrefix)
	target, ok := a.guard.AreaFor(route)
	if !ok {
		writeError(w, r, http.StatusNotFound, codeNotFound, "unknown area", route)
		return
	}

	identity, authenticated := auth.IdentityFromContext(r.Context())
	verdict := a.guard.Check(authenticated, identity.Service, target)
	a.metrics.GuardDecisions.WithLabelValues(verdict.Decision.String()).Inc()

	switch verdict.Decision {
	case area.Admit:
		writeJSON(w, http.StatusOK, areaResponse{
			Decision: verdict.Decision.String(),
			Route:    target.Route,
			Key:      verdict.Key,
			Employe:  &identity,
		})
	case area.Redirect:
		location := areasPrefix + verdict.Location
		a.audit.Event(r.Context(), "area.redirect",
			zap.String("requested", target.Route),
			zap.String("granted", verdict.Location),
		)
		w.Header().Set("Location", location)
		writeJSON(w, http.StatusTemporaryRedirect, areaResponse{
			Decision: verdict.Decision.String(),
			Route:    verdict.Location,
			Key:      verdict.Key,
			Location: location,
		})
	case area.Blocked:
		a.audit.Event(r.Context(), "area.blocked",
			zap.String("requested", target.Route),
			zap.String("service", identity.Service),
		)
		writeJSON(w, http.StatusUnauthorized, errorBody{
			Error:     verdict.Message,
			Code:      codeUnknownService,
			Location:  verdict.Location,
			RequestID: requestID(r),
		})
	default:
		writeJSON(w, http.StatusUnauthorized, errorBody{
			Error:     verdict.Message,
			Code:      codeUnauthenticated,
			Location:  verdict.Location,
			RequestID: requestID(r),
		})
	}
}
