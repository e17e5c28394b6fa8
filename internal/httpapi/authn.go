package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"beluz.app/internal/auth"
	"beluz.app/internal/obs"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

// protect wraps a handler with token authentication and the route's declared
// requirement. Routes without a protect wrapper are public and never consult
// the guard; a zero requirement demands authentication only.
func (a *API) protect(next http.HandlerFunc, req auth.Requirement) http.Handler {
	return a.protectFunc(next, func(*http.Request) auth.Requirement { return req })
}

// protectFunc lets method-multiplexed routes derive their requirement from
// the request before the guard runs.
func (a *API) protectFunc(next http.HandlerFunc, reqFor func(*http.Request) auth.Requirement) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			obs.ObserveTokenVerification("missing")
			writeError(w, r, http.StatusUnauthorized, "unauthorized")
			return
		}

		principal, err := a.service.Authorize(r.Context(), token, reqFor(r))
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrForbidden):
				obs.ObserveTokenVerification("forbidden")
				writeError(w, r, http.StatusForbidden, "forbidden")
			case errors.Is(err, auth.ErrUnauthorized):
				obs.ObserveTokenVerification("denied")
				writeError(w, r, http.StatusUnauthorized, "unauthorized")
			default:
				obs.ObserveTokenVerification("error")
				writeError(w, r, http.StatusInternalServerError, "authentication error")
			}
			return
		}
		obs.ObserveTokenVerification("ok")

		ctx := auth.ContextWithPrincipal(r.Context(), principal)
		ctx = auth.ContextWithToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}
