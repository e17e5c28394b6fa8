package auth

import "testing"

func principalWith(roles []string, perms ...Permission) *Principal {
	user := &User{ID: "u1", Email: "user@example.com", Active: true}
	p := Principal{User: user, Roles: roles, Permissions: permissionSet(perms)}
	return &p
}

func TestDecidePermissionsAllOf(t *testing.T) {
	req := Requirement{Permissions: []Permission{PermReadUser, PermUpdateUser}}

	if Decide(principalWith(nil, PermReadUser), req) {
		t.Fatalf("partial permissions must be denied")
	}
	if !Decide(principalWith(nil, PermReadUser, PermUpdateUser, PermDeleteUser), req) {
		t.Fatalf("superset of required permissions must be allowed")
	}
}

func TestDecideRolesAnyOf(t *testing.T) {
	req := Requirement{Roles: []string{RoleAdmin, RoleSuperAdmin}}

	if Decide(principalWith([]string{RoleUser}), req) {
		t.Fatalf("non-matching role must be denied")
	}
	if !Decide(principalWith([]string{RoleAdmin}), req) {
		t.Fatalf("any matching role must be allowed")
	}
}

func TestDecideConjunction(t *testing.T) {
	req := Requirement{
		Roles:       []string{RoleManager},
		Permissions: []Permission{PermUpdateUser},
	}

	if !Decide(principalWith([]string{RoleManager}, PermReadUser, PermUpdateUser), req) {
		t.Fatalf("role and permissions satisfied, expected allow")
	}
	if Decide(principalWith([]string{RoleManager}, PermReadUser), req) {
		t.Fatalf("role satisfied but permission missing, expected deny")
	}
	if Decide(principalWith([]string{RoleUser}, PermUpdateUser), req) {
		t.Fatalf("permission satisfied but role missing, expected deny")
	}
}

func TestDecideMissingPrincipal(t *testing.T) {
	if Decide(nil, Requirement{Roles: []string{RoleAdmin}}) {
		t.Fatalf("absent caller must be denied")
	}
	if Decide(nil, Requirement{}) {
		t.Fatalf("absent caller must be denied even for an empty declaration")
	}
}

func TestDecideEmptyRequirement(t *testing.T) {
	if !Decide(principalWith(nil), Requirement{}) {
		t.Fatalf("authenticated caller passes an empty declaration")
	}
}

func TestManagerScenario(t *testing.T) {
	manager := principalWith([]string{RoleManager}, PermReadUser, PermUpdateUser)

	if !Decide(manager, Requirement{Permissions: []Permission{PermUpdateUser}}) {
		t.Fatalf("manager with update_user must be allowed")
	}
	if Decide(manager, Requirement{Permissions: []Permission{PermDeleteUser}}) {
		t.Fatalf("manager without delete_user must be denied")
	}
}
