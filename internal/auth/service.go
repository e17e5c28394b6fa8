package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Service orchestrates login, logout, refresh and per-request authorization.
// It owns no token or credential state of its own: passwords and the single
// outstanding refresh-token hash per user live in the Store, token validity
// lives in the signed tokens themselves.
type Service struct {
	store   Store
	codec   *Codec
	hasher  *Hasher
	catalog *Catalog
	now     func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithClock overrides the service time source. Test hook.
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs a Service.
func NewService(store Store, codec *Codec, hasher *Hasher, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	if codec == nil {
		return nil, errors.New("auth: token codec is required")
	}
	if hasher == nil {
		hasher = NewHasher(DefaultHashCost)
	}
	catalog, err := NewCatalog(store)
	if err != nil {
		return nil, err
	}
	s := &Service{
		store:   store,
		codec:   codec,
		hasher:  hasher,
		catalog: catalog,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Catalog exposes the role catalog backed by the same store.
func (s *Service) Catalog() *Catalog {
	return s.catalog
}

// Register creates a user with the default role and opens a session for it.
// A duplicate email yields ErrConflict.
func (s *Service) Register(ctx context.Context, email, password string) (Session, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return Session{}, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	hash, err := s.hasher.HashPassword(password)
	if err != nil {
		return Session{}, err
	}

	user := &User{
		Email:        email,
		PasswordHash: hash,
		Active:       true,
	}
	if role, err := s.catalog.FindByName(ctx, DefaultRoleName); err == nil {
		user.Roles = []Role{*role}
	} else if !errors.Is(err, ErrNotFound) {
		return Session{}, err
	}
	if err := s.store.Users(ctx).Create(ctx, user); err != nil {
		return Session{}, err
	}
	return s.openSession(ctx, user)
}

// Login verifies credentials and opens a session. Every failure mode, a
// missing user included, collapses to ErrInvalidCredentials so callers leak
// nothing about which part of the credential was wrong.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return Session{}, ErrInvalidCredentials
	}
	user, err := s.store.Users(ctx).FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, err
	}
	if !user.Active {
		return Session{}, ErrInvalidCredentials
	}
	if err := s.hasher.VerifyPassword(user.PasswordHash, password); err != nil {
		return Session{}, err
	}
	return s.openSession(ctx, user)
}

// Logout clears the user's stored refresh-token hash, revoking the session's
// refresh capability. It is idempotent: logging out an already-logged-out or
// unknown user succeeds silently.
func (s *Service) Logout(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil
	}
	err := s.store.Users(ctx).SetRefreshTokenHash(ctx, userID, "")
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// Refresh exchanges a valid refresh token for a fresh access/refresh pair,
// rotating the stored hash. Rotation is the replay defense: once a refresh
// succeeds, the previous refresh token stops matching and a holder of a
// stolen copy sees ErrUnauthorized. Two concurrent calls with the same token
// race on a conditional hash swap; exactly one wins.
func (s *Service) Refresh(ctx context.Context, userID, refreshToken string) (Session, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" || refreshToken == "" {
		return Session{}, ErrUnauthorized
	}

	claims, err := s.codec.Verify(refreshToken, RefreshToken)
	if err != nil {
		return Session{}, ErrUnauthorized
	}
	if claims.Subject != userID {
		return Session{}, ErrUnauthorized
	}

	users := s.store.Users(ctx)
	user, err := users.Find(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Session{}, ErrUnauthorized
		}
		return Session{}, err
	}
	if !user.Active || user.RefreshTokenHash == "" {
		return Session{}, ErrUnauthorized
	}
	if err := s.hasher.VerifyToken(user.RefreshTokenHash, refreshToken); err != nil {
		return Session{}, err
	}

	session, newHash, err := s.mintSession(user)
	if err != nil {
		return Session{}, err
	}
	if err := users.SwapRefreshTokenHash(ctx, userID, user.RefreshTokenHash, newHash); err != nil {
		if errors.Is(err, ErrConflict) || errors.Is(err, ErrNotFound) {
			// Lost the rotation race: someone else refreshed first.
			return Session{}, ErrUnauthorized
		}
		return Session{}, err
	}
	return session, nil
}

// AuthenticateToken verifies an access token and resolves the live principal
// behind it. The token's signature and expiry are checked offline; the user's
// active flag and current roles are re-read from storage, so a deactivated
// user's still-unexpired token is rejected and role changes since issuance
// take effect immediately.
func (s *Service) AuthenticateToken(ctx context.Context, token string) (Principal, error) {
	claims, err := s.codec.Verify(token, AccessToken)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	user, err := s.store.Users(ctx).Find(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Principal{}, ErrUnauthorized
		}
		return Principal{}, err
	}
	if !user.Active {
		return Principal{}, ErrUnauthorized
	}
	return NewPrincipal(user), nil
}

// Authorize authenticates the bearer token and evaluates the route's declared
// requirement. It returns ErrUnauthorized for any authentication failure and
// ErrForbidden for a valid principal lacking a required role or permission.
func (s *Service) Authorize(ctx context.Context, token string, req Requirement) (Principal, error) {
	principal, err := s.AuthenticateToken(ctx, token)
	if err != nil {
		return Principal{}, err
	}
	if !Decide(&principal, req) {
		return Principal{}, ErrForbidden
	}
	return principal, nil
}

// ChangePassword sets a new password for the user.
func (s *Service) ChangePassword(ctx context.Context, userID, password string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	hash, err := s.hasher.HashPassword(password)
	if err != nil {
		return err
	}
	return s.store.Users(ctx).UpdatePassword(ctx, userID, hash)
}

// openSession issues a token pair and stores the refresh hash unconditionally,
// overwriting whatever hash a prior session left behind. Login and
// registration revoke any previous session this way.
func (s *Service) openSession(ctx context.Context, user *User) (Session, error) {
	session, hash, err := s.mintSession(user)
	if err != nil {
		return Session{}, err
	}
	if err := s.store.Users(ctx).SetRefreshTokenHash(ctx, user.ID, hash); err != nil {
		return Session{}, err
	}
	return session, nil
}

func (s *Service) mintSession(user *User) (Session, string, error) {
	claims := s.buildClaims(user)

	accessToken, accessExp, err := s.codec.Issue(claims, AccessToken)
	if err != nil {
		return Session{}, "", err
	}
	refreshToken, refreshExp, err := s.codec.Issue(claims, RefreshToken)
	if err != nil {
		return Session{}, "", err
	}
	hash, err := s.hasher.HashToken(refreshToken)
	if err != nil {
		return Session{}, "", err
	}
	return Session{
		User:             user,
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, hash, nil
}

func (s *Service) buildClaims(user *User) Claims {
	claims := Claims{
		Email:       user.Email,
		Roles:       user.RoleNames(),
		Permissions: EffectivePermissions(user),
	}
	claims.Subject = user.ID
	return claims
}
