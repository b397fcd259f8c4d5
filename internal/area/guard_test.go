package area

import (
	"strings"
	"testing"
)

func newTestGuard() *Guard {
	return NewGuard(MustResolver(DefaultServices))
}

func mustArea(t *testing.T, g *Guard, route string) Area {
	t.Helper()
	a, ok := g.AreaFor(route)
	if !ok {
		t.Fatalf("no area at %s", route)
	}
	return a
}

func TestGuardAdmitsOwnArea(t *testing.T) {
	g := newTestGuard()
	v := g.Check(true, "Ressources Humaines", mustArea(t, g, "/dashboard"))
	if v.Decision != Admit || v.Key != KeyRH || v.Location != "/dashboard" {
		t.Fatalf("unexpected verdict: %+v", v)
	}
}

func TestGuardSteersToOwnArea(t *testing.T) {
	g := newTestGuard()
	v := g.Check(true, "Accueil", mustArea(t, g, "/dashboard"))
	if v.Decision != Redirect {
		t.Fatalf("expected redirect, got %v", v.Decision)
	}
	if v.Location != "/dashboard-accueil" {
		t.Fatalf("unexpected location: %s", v.Location)
	}
}

func TestGuardUnauthenticated(t *testing.T) {
	g := newTestGuard()
	v := g.Check(false, "Accueil", mustArea(t, g, "/dashboard-accueil"))
	if v.Decision != Unauthenticated || v.Location != LoginRoute {
		t.Fatalf("unexpected verdict: %+v", v)
	}
}

func TestGuardBlocksUnknownServiceEverywhere(t *testing.T) {
	g := newTestGuard()
	for _, svc := range DefaultServices {
		v := g.Check(true, "Comptabilité", mustArea(t, g, svc.Route))
		if v.Decision != Blocked || v.Location != LoginRoute {
			t.Fatalf("%s: unexpected verdict %+v", svc.Route, v)
		}
		for _, alias := range []string{"ressources humaines", "pédagogie", "accueil"} {
			if !strings.Contains(v.Message, alias) {
				t.Fatalf("message %q does not list alias %q", v.Message, alias)
			}
		}
	}
	if v := g.Check(true, "Comptabilité", Area{Route: "/anything"}); v.Decision != Blocked {
		t.Fatalf("open area must still block unknown services: %+v", v)
	}
}

func TestGuardOpenArea(t *testing.T) {
	g := newTestGuard()
	v := g.Check(true, "pedagogie", Area{Route: "/profile"})
	if v.Decision != Admit || v.Key != KeyPedagogie {
		t.Fatalf("unexpected verdict: %+v", v)
	}
}

func TestGuardHome(t *testing.T) {
	g := newTestGuard()
	if got := g.Home(false, "Accueil"); got != LoginRoute {
		t.Fatalf("unauthenticated home: %s", got)
	}
	if got := g.Home(true, "  PEDAGOGIE "); got != "/dashboard-pedagogique" {
		t.Fatalf("home: %s", got)
	}
	if got := g.Home(true, "inconnu"); got != LoginRoute {
		t.Fatalf("unknown service home: %s", got)
	}
}

func TestGuardNotice(t *testing.T) {
	g := newTestGuard()
	if n := g.Notice("Accueil"); n != "" {
		t.Fatalf("unexpected notice: %s", n)
	}
	if n := g.Notice(""); !strings.Contains(n, "administrator") {
		t.Fatalf("unexpected notice for missing service: %s", n)
	}
	if n := g.Notice("Cuisine"); !strings.Contains(n, "Cuisine") || !strings.Contains(n, "accueil") {
		t.Fatalf("unexpected notice for unknown service: %s", n)
	}
}

func TestAreaForUnknownRoute(t *testing.T) {
	if _, ok := newTestGuard().AreaFor("/nowhere"); ok {
		t.Fatal("expected no area")
	}
}
