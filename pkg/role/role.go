package role

import "strings"

// Role is the closed set of portal roles.
type Role int

const (
	Unknown Role = iota
	Admin
	Staff
	Client
)

func (r Role) String() string {
	switch r {
	case Admin:
		return "admin"
	case Staff:
		return "staff"
	case Client:
		return "client"
	default:
		return "unknown"
	}
}

func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Parse maps a profile's role tag to a Role. Unrecognised or empty tags map
// to Unknown.
func Parse(tag string) Role {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "admin":
		return Admin
	case "trabajador", "staff", "worker":
		return Staff
	case "cliente", "client":
		return Client
	default:
		return Unknown
	}
}

// Match dispatches on r. Every role needs a branch, so adding a role changes
// this signature and breaks every caller at compile time.
func Match[T any](r Role, admin, staff, client, unknown func() T) T {
	switch r {
	case Admin:
		return admin()
	case Staff:
		return staff()
	case Client:
		return client()
	default:
		return unknown()
	}
}
