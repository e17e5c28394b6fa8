package auth

import (
	"context"
	"fmt"
	"strings"
)

// EffectivePermissions flattens the permissions of every role assigned to the
// user into a deduplicated, sorted set. Inactive roles still contribute their
// permissions: the active flag gates role management, not access that was
// already granted through an assignment. This preserves the behavior of the
// system this service replaces.
func EffectivePermissions(user *User) []Permission {
	if user == nil || len(user.Roles) == 0 {
		return nil
	}
	set := make(map[Permission]struct{})
	for _, role := range user.Roles {
		for _, p := range role.Permissions {
			set[p] = struct{}{}
		}
	}
	return sortedPermissions(set)
}

// Catalog provides role lookup and management on top of a RoleStore.
type Catalog struct {
	store Store
}

// NewCatalog constructs a Catalog.
func NewCatalog(store Store) (*Catalog, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store is required", ErrInvalidInput)
	}
	return &Catalog{store: store}, nil
}

// FindByName looks up a role by its unique name.
func (c *Catalog) FindByName(ctx context.Context, name string) (*Role, error) {
	name = strings.TrimSpace(strings.ToLower(name))
	if name == "" {
		return nil, fmt.Errorf("%w: role name is required", ErrInvalidInput)
	}
	return c.store.Roles(ctx).FindByName(ctx, name)
}

// Find looks up a role by ID.
func (c *Catalog) Find(ctx context.Context, id string) (*Role, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: role_id is required", ErrInvalidInput)
	}
	return c.store.Roles(ctx).Find(ctx, id)
}

// List returns every role in the catalog.
func (c *Catalog) List(ctx context.Context) ([]*Role, error) {
	return c.store.Roles(ctx).List(ctx)
}

// Create adds a new role. Role names are globally unique; a duplicate name
// yields ErrConflict. Permissions outside the closed catalog are rejected.
func (c *Catalog) Create(ctx context.Context, name, description string, perms []Permission) (*Role, error) {
	name = strings.TrimSpace(strings.ToLower(name))
	if name == "" {
		return nil, fmt.Errorf("%w: role name is required", ErrInvalidInput)
	}
	perms, err := validatePermissions(perms)
	if err != nil {
		return nil, err
	}
	role := &Role{
		Name:        name,
		Description: strings.TrimSpace(description),
		Permissions: perms,
		Active:      true,
	}
	if err := c.store.Roles(ctx).Create(ctx, role); err != nil {
		return nil, err
	}
	return role, nil
}

// RoleUpdate carries optional role field changes.
type RoleUpdate struct {
	Name        *string
	Description *string
	Permissions []Permission
	Active      *bool
}

// Update applies the given changes to a role. Renaming to an existing name
// yields ErrConflict.
func (c *Catalog) Update(ctx context.Context, roleID string, upd RoleUpdate) (*Role, error) {
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return nil, fmt.Errorf("%w: role_id is required", ErrInvalidInput)
	}
	roles := c.store.Roles(ctx)
	role, err := roles.Find(ctx, roleID)
	if err != nil {
		return nil, err
	}
	if upd.Name != nil {
		name := strings.TrimSpace(strings.ToLower(*upd.Name))
		if name == "" {
			return nil, fmt.Errorf("%w: role name is required", ErrInvalidInput)
		}
		if name != role.Name {
			if _, err := roles.FindByName(ctx, name); err == nil {
				return nil, fmt.Errorf("%w: role name %s", ErrConflict, name)
			}
			role.Name = name
		}
	}
	if upd.Description != nil {
		role.Description = strings.TrimSpace(*upd.Description)
	}
	if upd.Permissions != nil {
		perms, err := validatePermissions(upd.Permissions)
		if err != nil {
			return nil, err
		}
		role.Permissions = perms
	}
	if upd.Active != nil {
		role.Active = *upd.Active
	}
	if err := roles.Update(ctx, role); err != nil {
		return nil, err
	}
	return role, nil
}

// Delete removes a role from the catalog.
func (c *Catalog) Delete(ctx context.Context, roleID string) error {
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return fmt.Errorf("%w: role_id is required", ErrInvalidInput)
	}
	return c.store.Roles(ctx).Delete(ctx, roleID)
}

// AssignRoles replaces a user's role assignments with the given role IDs.
func (c *Catalog) AssignRoles(ctx context.Context, userID string, roleIDs []string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	ids := make([]string, 0, len(roleIDs))
	seen := make(map[string]struct{}, len(roleIDs))
	roles := c.store.Roles(ctx)
	for _, id := range roleIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		if _, err := roles.Find(ctx, id); err != nil {
			return err
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return c.store.Users(ctx).SetRoles(ctx, userID, ids)
}

// EnsureBuiltins provisions the builtin role definitions.
func (c *Catalog) EnsureBuiltins(ctx context.Context) error {
	return c.store.Roles(ctx).Ensure(ctx, BuiltinRoles)
}

func validatePermissions(perms []Permission) ([]Permission, error) {
	if len(perms) == 0 {
		return nil, nil
	}
	set := make(map[Permission]struct{}, len(perms))
	for _, p := range perms {
		if !ValidPermission(p) {
			return nil, fmt.Errorf("%w: unknown permission %s", ErrInvalidInput, p)
		}
		set[p] = struct{}{}
	}
	return sortedPermissions(set), nil
}
