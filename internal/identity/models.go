// Package identity holds the federated identity vocabulary: the claims an
// external provider asserts, the roles a person links under, and the
// deterministic local credential derived from those claims.
package identity

import (
	"fmt"
	"strings"
)

// Claims are the attributes asserted by the identity provider after a
// successful code exchange. BirthDate is always DD/MM/YYYY or empty.
type Claims struct {
	SubjectID   string `json:"subject_id"`
	DisplayName string `json:"display_name"`
	PhoneNumber string `json:"phone_number,omitempty"`
	BirthDate   string `json:"birth_date,omitempty"`
}

// Role selects the provider application, the registry shapes and the
// derivation rule used for a person.
type Role string

const (
	RoleStudent Role = "student"
	RoleStaff   Role = "staff"
)

// ParseRole accepts the canonical names and the aliases still sent by
// existing front ends ("ewallet" for learners, "portal" for school staff).
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "student", "ewallet":
		return RoleStudent, nil
	case "staff", "portal", "teacher":
		return RoleStaff, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

func (r Role) String() string {
	return string(r)
}

// Valid reports whether r is one of the supported roles.
func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleStaff
}

// CanonicalIdentity is the local account credential derived from claims.
// It is recomputed on every request and never stored.
type CanonicalIdentity struct {
	Username string
	Password string
}
