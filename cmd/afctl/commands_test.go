package main

import (
	"bytes"
	"context"
	"database/sql"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"alliance.fr/admin/internal/auth"
	"alliance.fr/admin/internal/httpapi"
)

type oneAccount struct{ account *auth.Account }

func (o oneAccount) FindByEmail(_ context.Context, email string) (*auth.Account, error) {
	if email != o.account.Email {
		return nil, auth.ErrNotFound
	}
	return o.account, nil
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCommand()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	err := root.Execute()
	return out.String(), err
}

func TestHelpListsCommands(t *testing.T) {
	out, err := execute(t, "", "--help")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	for _, name := range []string{"login", "whoami", "open", "logout", "hash"} {
		if !strings.Contains(out, name) {
			t.Fatalf("help does not mention %q:\n%s", name, out)
		}
	}
}

func TestUnknownCommand(t *testing.T) {
	if _, err := execute(t, "", "frobnicate"); err == nil {
		t.Fatal("expected error for unknown command")
	}
}

func TestOpenRequiresRoute(t *testing.T) {
	if _, err := execute(t, "", "open"); err == nil {
		t.Fatal("expected error without a route argument")
	}
}

func TestHashReadsStdin(t *testing.T) {
	out, err := execute(t, "s3cret\n", "hash")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	hash := strings.TrimSpace(out)
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cret")); err != nil {
		t.Fatalf("printed hash does not match: %v", err)
	}
}

func TestLoginWhoamiOpenLogout(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("right"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	verifier := auth.NewVerifier(oneAccount{&auth.Account{
		ID:           "8",
		Email:        "prof@b.com",
		PasswordHash: string(hash),
		RoleID:       "2",
		Service:      sql.NullString{String: "pedagogie", Valid: true},
	}})
	api := httpapi.New(httpapi.Options{
		Version:  "test",
		Verifier: verifier,
		Signer:   auth.NewSigner("test-secret"),
	})
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	common := []string{"--api", srv.URL, "--session", filepath.Join(t.TempDir(), "session.json")}

	steps := []struct {
		stdin string
		args  []string
		want  string
	}{
		{"right\n", []string{"login", "prof@b.com", "--password-stdin"}, "Area: /dashboard-pedagogique"},
		{"", []string{"whoami"}, "home:    /dashboard-pedagogique"},
		{"", []string{"open", "dashboard-accueil"}, "redirected to /dashboard-pedagogique"},
		{"", []string{"open", "dashboard-pedagogique"}, "admit /dashboard-pedagogique"},
		{"", []string{"logout"}, "Logged out"},
	}
	for _, step := range steps {
		out, err := execute(t, step.stdin, append(step.args, common...)...)
		if err != nil {
			t.Fatalf("%s: %v", step.args[0], err)
		}
		if !strings.Contains(out, step.want) {
			t.Fatalf("%s: expected %q in output:\n%s", step.args[0], step.want, out)
		}
	}

	_, err = execute(t, "", append([]string{"whoami"}, common...)...)
	if err == nil || !strings.Contains(err.Error(), "not logged in") {
		t.Fatalf("expected not logged in error, got %v", err)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("right"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	api := httpapi.New(httpapi.Options{
		Verifier: auth.NewVerifier(oneAccount{&auth.Account{ID: "8", Email: "prof@b.com", PasswordHash: string(hash), RoleID: "2"}}),
		Signer:   auth.NewSigner("test-secret"),
	})
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	t.Setenv("AF_PASSWORD", "wrong")
	_, err = execute(t, "", "login", "--email", "prof@b.com", "--api", srv.URL, "--session", filepath.Join(t.TempDir(), "s.json"))
	if err == nil || !strings.Contains(err.Error(), "incorrect password") {
		t.Fatalf("expected incorrect password error, got %v", err)
	}
}
