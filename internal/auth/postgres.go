package auth

import (
	"context"
	"database/sql"
	"errors"
)

var _ AccountStore = (*PGStore)(nil)

// PGStore implements AccountStore using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

// FindByEmail reads the employee login record. Ids are scanned as text so
// that non-numeric values surface at coercion instead of at scan time.
func (s *PGStore) FindByEmail(ctx context.Context, email string) (*Account, error) {
	row := s.db.QueryRowContext(ctx,
		`select id::text, email, mot_passe, id_role::text, service, nom, prenom
		 from employe where email=$1 limit 1`, email)
	var a Account
	var roleID sql.NullString
	if err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &roleID, &a.Service, &a.LastName, &a.FirstName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	a.RoleID = roleID.String
	return &a, nil
}

// Ping checks database connectivity.
func (s *PGStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
