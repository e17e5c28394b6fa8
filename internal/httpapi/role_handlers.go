package httpapi

import (
	"net/http"
	"strings"

	"beluz.app/internal/auth"
)

type createRoleRequest struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Permissions []auth.Permission `json:"permissions"`
}

type updateRoleRequest struct {
	Name        *string           `json:"name"`
	Description *string           `json:"description"`
	Permissions []auth.Permission `json:"permissions"`
	Active      *bool             `json:"active"`
}

type assignRolesRequest struct {
	RoleIDs []string `json:"role_ids"`
}

// rolesRequirement maps collection operations on /v1/roles to the
// permission they demand.
func (a *API) rolesRequirement(r *http.Request) auth.Requirement {
	switch r.Method {
	case http.MethodPost:
		return auth.Requirement{Permissions: []auth.Permission{auth.PermCreateRole}}
	default:
		return auth.Requirement{Permissions: []auth.Permission{auth.PermReadRole}}
	}
}

// roleResourceRequirement maps operations on /v1/roles/{id} to the
// permission they demand.
func (a *API) roleResourceRequirement(r *http.Request) auth.Requirement {
	switch r.Method {
	case http.MethodPut:
		return auth.Requirement{Permissions: []auth.Permission{auth.PermUpdateRole}}
	case http.MethodDelete:
		return auth.Requirement{Permissions: []auth.Permission{auth.PermDeleteRole}}
	default:
		return auth.Requirement{Permissions: []auth.Permission{auth.PermReadRole}}
	}
}

func (a *API) handleRoles(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		roles, err := a.catalog.List(r.Context())
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"roles": roles})
	case http.MethodPost:
		var req createRoleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		role, err := a.catalog.Create(r.Context(), req.Name, req.Description, req.Permissions)
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		a.audit(r.Context(), "role.create", map[string]any{
			"role_id": role.ID,
			"name":    role.Name,
		})
		writeJSON(w, http.StatusCreated, role)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleRoleResource(w http.ResponseWriter, r *http.Request) {
	roleID := strings.TrimPrefix(r.URL.Path, "/v1/roles/")
	if roleID == "" || strings.Contains(roleID, "/") {
		writeError(w, r, http.StatusNotFound, "not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		role, err := a.catalog.Find(r.Context(), roleID)
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, role)
	case http.MethodPut:
		var req updateRoleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		role, err := a.catalog.Update(r.Context(), roleID, auth.RoleUpdate{
			Name:        req.Name,
			Description: req.Description,
			Permissions: req.Permissions,
			Active:      req.Active,
		})
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		a.audit(r.Context(), "role.update", map[string]any{
			"role_id": role.ID,
			"name":    role.Name,
		})
		writeJSON(w, http.StatusOK, role)
	case http.MethodDelete:
		if err := a.catalog.Delete(r.Context(), roleID); err != nil {
			handleAuthError(w, r, err)
			return
		}
		a.audit(r.Context(), "role.delete", map[string]any{"role_id": roleID})
		writeJSON(w, http.StatusOK, map[string]any{"message": "role deleted"})
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

// handleUserRoles serves POST /v1/users/{id}/roles: replace a user's role
// assignments.
func (a *API) handleUserRoles(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/users/")
	userID, tail, ok := strings.Cut(rest, "/")
	if !ok || tail != "roles" || userID == "" {
		writeError(w, r, http.StatusNotFound, "not found")
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req assignRolesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.catalog.AssignRoles(r.Context(), userID, req.RoleIDs); err != nil {
		handleAuthError(w, r, err)
		return
	}
	a.audit(r.Context(), "user.roles.assign", map[string]any{
		"user_id":  userID,
		"role_ids": req.RoleIDs,
	})
	writeJSON(w, http.StatusOK, map[string]any{"message": "roles assigned"})
}
