package auth

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

// Identity is the authenticated employee as seen by the rest of the service.
// It never carries the password hash.
type Identity struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	RoleID    int64  `json:"role"`
	Service   string `json:"service"`
	LastName  string `json:"nom,omitempty"`
	FirstName string `json:"prenom,omitempty"`
}

// Account is the persisted employee record used for login.
// IDs are kept in their stored textual form and coerced by Identity.
type Account struct {
	ID           string
	Email        string
	PasswordHash string
	RoleID       string
	Service      sql.NullString
	LastName     sql.NullString
	FirstName    sql.NullString
}

// Identity converts the account into an Identity, coercing numeric fields.
func (a *Account) Identity() (Identity, error) {
	id, err := parseNumericID(a.ID)
	if err != nil {
		return Identity{}, &serverError{msg: fmt.Sprintf("auth: account id %q is not numeric", a.ID)}
	}
	if id <= 0 {
		return Identity{}, &serverError{msg: fmt.Sprintf("auth: account id %d is not positive", id)}
	}
	role, err := parseNumericID(a.RoleID)
	if err != nil {
		return Identity{}, &serverError{msg: fmt.Sprintf("auth: role id %q is not numeric", a.RoleID)}
	}
	return Identity{
		ID:        id,
		Email:     a.Email,
		RoleID:    role,
		Service:   a.Service.String,
		LastName:  a.LastName.String,
		FirstName: a.FirstName.String,
	}, nil
}

func parseNumericID(raw string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
}
