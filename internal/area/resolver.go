// Package area maps free-text organizational service labels to the
// application areas an employee may use, and decides where a request
// for an area should land.
package area

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Key is a canonical service key.
type Key string

const (
	KeyRH        Key = "rh"
	KeyPedagogie Key = "pedagogie"
	KeyAccueil   Key = "accueil"
)

// Service binds a canonical key to its area route and accepted aliases.
// The first alias is the display name.
type Service struct {
	Key     Key      `json:"key"`
	Route   string   `json:"route"`
	Aliases []string `json:"aliases"`
}

// DefaultServices is the fixed area table shared with the web client.
var DefaultServices = []Service{
	{Key: KeyRH, Route: "/dashboard", Aliases: []string{"ressources humaines", "ressources humaine", "rh"}},
	{Key: KeyPedagogie, Route: "/dashboard-pedagogique", Aliases: []string{"pédagogie", "pedagogie"}},
	{Key: KeyAccueil, Route: "/dashboard-accueil", Aliases: []string{"accueil"}},
}

// Normalize lowercases s, strips diacritics and collapses whitespace.
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	return strings.Join(strings.Fields(strings.ToLower(stripped)), " ")
}

// Resolver looks service labels up in an index built once at construction.
// It is read-only afterwards and safe for concurrent use.
type Resolver struct {
	services []Service
	byKey    map[Key]Service
	index    map[string]Key
}

// NewResolver validates the table and precomputes the normalized alias index.
func NewResolver(services []Service) (*Resolver, error) {
	r := &Resolver{
		byKey: make(map[Key]Service, len(services)),
		index: make(map[string]Key),
	}
	for _, svc := range services {
		if svc.Key == "" {
			return nil, fmt.Errorf("area: service with route %q has no key", svc.Route)
		}
		if _, dup := r.byKey[svc.Key]; dup {
			return nil, fmt.Errorf("area: duplicate service key %q", svc.Key)
		}
		if !strings.HasPrefix(svc.Route, "/") {
			return nil, fmt.Errorf("area: service %q has invalid route %q", svc.Key, svc.Route)
		}
		if len(svc.Aliases) == 0 {
			return nil, fmt.Errorf("area: service %q has no aliases", svc.Key)
		}
		for _, alias := range svc.Aliases {
			n := Normalize(alias)
			if n == "" {
				return nil, fmt.Errorf("area: service %q has a blank alias", svc.Key)
			}
			if owner, taken := r.index[n]; taken && owner != svc.Key {
				return nil, fmt.Errorf("area: alias %q maps to both %q and %q", alias, owner, svc.Key)
			}
			r.index[n] = svc.Key
		}
		svc.Aliases = append([]string(nil), svc.Aliases...)
		r.byKey[svc.Key] = svc
		r.services = append(r.services, svc)
	}
	return r, nil
}

// MustResolver is NewResolver for static tables.
func MustResolver(services []Service) *Resolver {
	r, err := NewResolver(services)
	if err != nil {
		panic(err)
	}
	return r
}

// Match returns the canonical key for a service label.
func (r *Resolver) Match(label string) (Key, bool) {
	key, ok := r.index[Normalize(label)]
	return key, ok
}

// Route returns the area route for a service label.
func (r *Resolver) Route(label string) (string, bool) {
	key, ok := r.Match(label)
	if !ok {
		return "", false
	}
	return r.byKey[key].Route, true
}

// Service returns the table entry for key.
func (r *Resolver) Service(key Key) (Service, bool) {
	svc, ok := r.byKey[key]
	return svc, ok
}

// ServiceByRoute returns the table entry whose area lives at route.
func (r *Resolver) ServiceByRoute(route string) (Service, bool) {
	route = "/" + strings.Trim(route, "/")
	for _, svc := range r.services {
		if svc.Route == route {
			return svc, true
		}
	}
	return Service{}, false
}

// Services returns a copy of the table in declaration order.
func (r *Resolver) Services() []Service {
	out := make([]Service, len(r.services))
	for i, svc := range r.services {
		svc.Aliases = append([]string(nil), svc.Aliases...)
		out[i] = svc
	}
	return out
}

// Aliases returns the display alias of every service.
func (r *Resolver) Aliases() []string {
	out := make([]string, 0, len(r.services))
	for _, svc := range r.services {
		out = append(out, svc.Aliases[0])
	}
	return out
}
