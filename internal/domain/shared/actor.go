package shared

// Role is the coarse role carried by a verified access token
type Role string

const (
	RoleCollector Role = "collector"
	RoleLab       Role = "lab"
	RoleProcessor Role = "processor"
	RoleAdmin     Role = "admin"
	RoleSystem    Role = "system"
)

// IsValid checks if the role is known
func (r Role) IsValid() bool {
	switch r {
	case RoleCollector, RoleLab, RoleProcessor, RoleAdmin, RoleSystem:
		return true
	}
	return false
}

// Actor identifies who is performing an operation
type Actor struct {
	ID   string
	Role Role
}

// IsAdmin reports whether the actor has administrative rights
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin || a.Role == RoleSystem
}

// HasAnyRole reports whether the actor holds one of roles; admins always qualify
func (a Actor) HasAnyRole(roles ...Role) bool {
	if a.IsAdmin() {
		return true
	}
	for _, r := range roles {
		if a.Role == r {
			return true
		}
	}
	return false
}

// SystemActor is used by background jobs
func SystemActor(id string) Actor {
	return Actor{ID: id, Role: RoleSystem}
}
