package area

import (
	"fmt"
	"slices"
	"strings"
)

// LoginRoute is where unauthenticated or unroutable clients are sent.
const LoginRoute = "/login"

// Decision is the outcome of a guard check.
type Decision int

const (
	Admit Decision = iota
	Redirect
	Unauthenticated
	Blocked
)

func (d Decision) String() string {
	switch d {
	case Admit:
		return "admit"
	case Redirect:
		return "redirect"
	case Unauthenticated:
		return "unauthenticated"
	case Blocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// Area is a protected application section and the keys allowed into it.
// An empty Allowed set admits any identity whose service resolves.
type Area struct {
	Route   string
	Allowed []Key
}

// Verdict describes where the client should go.
type Verdict struct {
	Decision Decision
	Key      Key
	Location string
	Message  string
}

// Guard steers authenticated identities to the single area their service grants.
type Guard struct {
	resolver *Resolver
}

func NewGuard(resolver *Resolver) *Guard {
	return &Guard{resolver: resolver}
}

// AreaFor returns the area served at route, restricted to its own service.
func (g *Guard) AreaFor(route string) (Area, bool) {
	svc, ok := g.resolver.ServiceByRoute(route)
	if !ok {
		return Area{}, false
	}
	return Area{Route: svc.Route, Allowed: []Key{svc.Key}}, true
}

// Check decides whether an identity with the given service label may enter area.
func (g *Guard) Check(authenticated bool, service string, area Area) Verdict {
	if !authenticated {
		return Verdict{Decision: Unauthenticated, Location: LoginRoute, Message: "authentication required"}
	}
	key, ok := g.resolver.Match(service)
	if !ok {
		return Verdict{
			Decision: Blocked,
			Location: LoginRoute,
			Message:  g.unknownServiceMessage(service),
		}
	}
	if len(area.Allowed) == 0 || slices.Contains(area.Allowed, key) {
		return Verdict{Decision: Admit, Key: key, Location: area.Route}
	}
	own, _ := g.resolver.Service(key)
	return Verdict{Decision: Redirect, Key: key, Location: own.Route}
}

// Home returns the route an identity lands on after login or app load.
func (g *Guard) Home(authenticated bool, service string) string {
	if !authenticated {
		return LoginRoute
	}
	if route, ok := g.resolver.Route(service); ok {
		return route
	}
	return LoginRoute
}

// Notice explains why a service label cannot be routed; empty when it can.
func (g *Guard) Notice(service string) string {
	if strings.TrimSpace(service) == "" {
		return "no service is set on this account, please contact an administrator"
	}
	if _, ok := g.resolver.Match(service); ok {
		return ""
	}
	return g.unknownServiceMessage(service)
}

func (g *Guard) unknownServiceMessage(service string) string {
	return fmt.Sprintf("service %q is not recognized, valid services: %s",
		service, strings.Join(g.resolver.Aliases(), ", "))
}
