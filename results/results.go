package results

import (
	"fmt"
)

type Role string

const (
	RoleAdmin      Role = "admin"
	RoleMaintainer Role = "maintainer"
)

// Permission keys as reported by the collaborators endpoint.
const (
	PermissionAdmin    = "admin"
	PermissionMaintain = "maintain"
)

type Collaborator struct {
	Login string `json:"login"`
	Role  Role   `json:"role"`
}

type Repository struct {
	Name          string         `json:"name"`
	Private       bool           `json:"private"`
	Secrets       []string       `json:"secrets"`
	Collaborators []Collaborator `json:"collaborators"`
}

// RoleFromPermissions maps a permission set to a privileged role. Admin wins over
// maintain; ok is false when neither bit is set.
func RoleFromPermissions(permissions map[string]bool) (role Role, ok bool) {
	switch {
	case permissions[PermissionAdmin]:
		return RoleAdmin, true
	case permissions[PermissionMaintain]:
		return RoleMaintainer, true
	}
	return "", false
}

func (r Role) String() string {
	return string(r)
}

func (r Repository) String() string {
	return fmt.Sprintf("%s (%d secrets, %d privileged collaborators)", r.Name, len(r.Secrets), len(r.Collaborators))
}

// Logins returns the logins holding role, in report order.
func (r Repository) Logins(role Role) []string {
	var logins []string
	for _, c := range r.Collaborators {
		if c.Role == role {
			logins = append(logins, c.Login)
		}
	}
	return logins
}
