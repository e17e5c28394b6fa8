package auth

import "context"

// Store describes the persistence operations the auth subsystem consumes.
type Store interface {
	Users(ctx context.Context) UserStore
	Roles(ctx context.Context) RoleStore
}

// UserStore manages user records. Find and FindByEmail return users with
// their assigned roles (and each role's permissions) preloaded.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	Find(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
	SetActive(ctx context.Context, userID string, active bool) error
	SetRoles(ctx context.Context, userID string, roleIDs []string) error

	// SetRefreshTokenHash unconditionally overwrites the user's stored
	// refresh-token hash. An empty hash clears it (logout).
	SetRefreshTokenHash(ctx context.Context, userID, hash string) error

	// SwapRefreshTokenHash replaces the stored hash only if it still equals
	// oldHash. It returns ErrConflict when the stored value changed underneath
	// the caller, which is how exactly one of two racing refresh calls wins.
	SwapRefreshTokenHash(ctx context.Context, userID, oldHash, newHash string) error
}

// RoleStore manages the role catalog.
type RoleStore interface {
	Create(ctx context.Context, role *Role) error
	Find(ctx context.Context, id string) (*Role, error)
	FindByName(ctx context.Context, name string) (*Role, error)
	List(ctx context.Context) ([]*Role, error)
	Update(ctx context.Context, role *Role) error
	Delete(ctx context.Context, id string) error

	// Ensure creates any of the given roles that do not exist yet, matched by
	// name. Existing roles are left untouched.
	Ensure(ctx context.Context, roles []Role) error
}
