package auth

import "time"

// User is an account that can authenticate and hold role assignments.
type User struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	PasswordHash     string    `json:"-"`
	Active           bool      `json:"is_active"`
	RefreshTokenHash string    `json:"-"`
	Roles            []Role    `json:"roles,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// RoleNames returns the names of the user's assigned roles.
func (u *User) RoleNames() []string {
	if len(u.Roles) == 0 {
		return nil
	}
	names := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		names = append(names, r.Name)
	}
	return names
}

// Role is a named, reusable bundle of permissions shared by many users.
type Role struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Permissions []Permission `json:"permissions"`
	Active      bool         `json:"is_active"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Principal is a resolved, authenticated identity with its live role and
// permission state. It is rebuilt from storage on every authorize call so a
// deactivated user or a changed role assignment takes effect immediately,
// regardless of what an outstanding token still claims.
type Principal struct {
	User        *User
	Roles       []string
	Permissions map[Permission]struct{}
}

// NewPrincipal builds a principal from a loaded user, flattening the user's
// assigned roles into a deduplicated permission set.
func NewPrincipal(user *User) Principal {
	return Principal{
		User:        user,
		Roles:       user.RoleNames(),
		Permissions: permissionSet(EffectivePermissions(user)),
	}
}

// HasPermission reports whether the principal holds the given permission.
func (p Principal) HasPermission(perm Permission) bool {
	_, ok := p.Permissions[perm]
	return ok
}

// HasRole reports whether the principal holds the given role name.
func (p Principal) HasRole(name string) bool {
	for _, r := range p.Roles {
		if r == name {
			return true
		}
	}
	return false
}

// PermissionList returns the principal's permissions in sorted order.
func (p Principal) PermissionList() []Permission {
	return sortedPermissions(p.Permissions)
}

// Session is the result of a successful login, registration or refresh.
type Session struct {
	User             *User     `json:"user"`
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

func permissionSet(perms []Permission) map[Permission]struct{} {
	set := make(map[Permission]struct{}, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set
}
