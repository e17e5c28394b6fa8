package httpapi

import (
	"errors"
	"net/http"
	"time"

	"beluz.app/internal/auth"
	"beluz.app/internal/obs"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type changePasswordRequest struct {
	Password string `json:"password"`
}

type sessionResponse struct {
	User             *auth.User `json:"user"`
	AccessToken      string     `json:"access_token"`
	RefreshToken     string     `json:"refresh_token"`
	AccessExpiresAt  string     `json:"access_expires_at"`
	RefreshExpiresAt string     `json:"refresh_expires_at"`
}

func sessionPayload(s auth.Session) sessionResponse {
	return sessionResponse{
		User:             s.User,
		AccessToken:      s.AccessToken,
		RefreshToken:     s.RefreshToken,
		AccessExpiresAt:  s.AccessExpiresAt.UTC().Format(time.RFC3339),
		RefreshExpiresAt: s.RefreshExpiresAt.UTC().Format(time.RFC3339),
	}
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	session, err := a.service.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	a.audit(r.Context(), "auth.register", map[string]any{
		"user_id": session.User.ID,
		"email":   session.User.Email,
	})
	writeJSON(w, http.StatusCreated, sessionPayload(session))
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	session, err := a.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			obs.ObserveLogin("denied")
		} else {
			obs.ObserveLogin("error")
		}
		handleAuthError(w, r, err)
		return
	}
	obs.ObserveLogin("ok")
	a.audit(r.Context(), "auth.login", map[string]any{
		"user_id": session.User.ID,
		"email":   session.User.Email,
	})
	writeJSON(w, http.StatusOK, sessionPayload(session))
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	userID, _ := auth.UserIDFromContext(r.Context())
	if err := a.service.Logout(r.Context(), userID); err != nil {
		handleAuthError(w, r, err)
		return
	}
	a.audit(r.Context(), "auth.logout", map[string]any{"user_id": userID})
	writeJSON(w, http.StatusOK, map[string]any{"message": "logged out"})
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	userID, _ := auth.UserIDFromContext(r.Context())
	session, err := a.service.Refresh(r.Context(), userID, req.RefreshToken)
	if err != nil {
		if errors.Is(err, auth.ErrUnauthorized) {
			obs.ObserveRefresh("denied")
		} else {
			obs.ObserveRefresh("error")
		}
		handleAuthError(w, r, err)
		return
	}
	obs.ObserveRefresh("ok")
	a.audit(r.Context(), "auth.refresh", map[string]any{"user_id": userID})
	writeJSON(w, http.StatusOK, sessionPayload(session))
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":          principal.User.ID,
		"email":       principal.User.Email,
		"roles":       principal.Roles,
		"permissions": principal.PermissionList(),
	})
}

func (a *API) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w, r, http.MethodPut)
		return
	}
	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	userID, _ := auth.UserIDFromContext(r.Context())
	if err := a.service.ChangePassword(r.Context(), userID, req.Password); err != nil {
		handleAuthError(w, r, err)
		return
	}
	a.audit(r.Context(), "auth.password.change", map[string]any{"user_id": userID})
	writeJSON(w, http.StatusOK, map[string]any{"message": "password updated"})
}
