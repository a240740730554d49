package actor

import "fmt"

type Role string

const (
	RoleAdmin     Role = "admin"
	RoleStaff     Role = "staff"
	RoleClient    Role = "client"
	RoleAnonymous Role = "anonymous"
)

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleAdmin, RoleStaff, RoleClient, RoleAnonymous:
		return Role(s), nil
	default:
		return "", fmt.Errorf("unknown role: %s", s)
	}
}

// Actor is the caller identity. It only ever authorizes actions; it never
// alters pricing.
type Actor struct {
	ID   string
	Role Role
}

var Anonymous = Actor{Role: RoleAnonymous}

func (a Actor) IsStaff() bool {
	return a.Role == RoleStaff || a.Role == RoleAdmin
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

func (a Actor) IsClient() bool {
	return a.Role == RoleClient && a.ID != ""
}

// Label is the value stored in audit and ledger rows.
func (a Actor) Label() string {
	if a.ID == "" {
		return string(a.Role)
	}
	return string(a.Role) + ":" + a.ID
}

// Owns reports whether a is the client owning a record with the given client id.
func (a Actor) Owns(clientID *string) bool {
	return a.IsClient() && clientID != nil && *clientID == a.ID
}
