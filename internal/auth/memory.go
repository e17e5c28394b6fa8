package auth

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"beluz.app/internal/ids"
)

// MemoryStore is an in-memory Store used by tests and DSN-less development
// runs. Reads return copies; user role assignments are resolved against the
// live role catalog at read time, so a role edit is visible on the next load
// of any user holding it.
type MemoryStore struct {
	mu        sync.RWMutex
	users     map[string]*User
	emails    map[string]string   // email -> user id
	roles     map[string]*Role
	roleNames map[string]string   // name -> role id
	userRoles map[string][]string // user id -> role ids
	now       func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:     make(map[string]*User),
		emails:    make(map[string]string),
		roles:     make(map[string]*Role),
		roleNames: make(map[string]string),
		userRoles: make(map[string][]string),
		now:       time.Now,
	}
}

func (s *MemoryStore) Users(context.Context) UserStore { return (*memoryUsers)(s) }
func (s *MemoryStore) Roles(context.Context) RoleStore { return (*memoryRoles)(s) }

type memoryUsers MemoryStore

func (s *memoryUsers) Create(_ context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.emails[u.Email]; exists {
		return fmt.Errorf("%w: email %s", ErrConflict, u.Email)
	}
	if u.ID == "" {
		u.ID = ids.New()
	}
	now := s.now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	stored := *u
	stored.Roles = nil
	s.users[u.ID] = &stored
	s.emails[u.Email] = u.ID
	roleIDs := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		roleIDs = append(roleIDs, r.ID)
	}
	s.userRoles[u.ID] = roleIDs
	return nil
}

func (s *memoryUsers) Find(_ context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.load(id)
}

func (s *memoryUsers) FindByEmail(_ context.Context, email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.emails[strings.TrimSpace(strings.ToLower(email))]
	if !ok {
		return nil, ErrNotFound
	}
	return s.load(id)
}

// load resolves the user's current role assignments. Callers hold the lock.
func (s *memoryUsers) load(id string) (*User, error) {
	stored, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	user := *stored
	for _, roleID := range s.userRoles[id] {
		if role, ok := s.roles[roleID]; ok {
			user.Roles = append(user.Roles, cloneRole(role))
		}
	}
	return &user, nil
}

func (s *memoryUsers) UpdatePassword(_ context.Context, userID, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = s.now().UTC()
	return nil
}

func (s *memoryUsers) SetActive(_ context.Context, userID string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.Active = active
	u.UpdatedAt = s.now().UTC()
	return nil
}

func (s *memoryUsers) SetRoles(_ context.Context, userID string, roleIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; !ok {
		return ErrNotFound
	}
	for _, id := range roleIDs {
		if _, ok := s.roles[id]; !ok {
			return fmt.Errorf("%w: role %s", ErrNotFound, id)
		}
	}
	s.userRoles[userID] = append([]string(nil), roleIDs...)
	return nil
}

func (s *memoryUsers) SetRefreshTokenHash(_ context.Context, userID, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.RefreshTokenHash = hash
	u.UpdatedAt = s.now().UTC()
	return nil
}

func (s *memoryUsers) SwapRefreshTokenHash(_ context.Context, userID, oldHash, newHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return ErrNotFound
	}
	if u.RefreshTokenHash != oldHash {
		return fmt.Errorf("%w: refresh hash rotated concurrently", ErrConflict)
	}
	u.RefreshTokenHash = newHash
	u.UpdatedAt = s.now().UTC()
	return nil
}

type memoryRoles MemoryStore

func (s *memoryRoles) Create(_ context.Context, role *Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.create(role)
}

// create assumes the lock is held.
func (s *memoryRoles) create(role *Role) error {
	if _, exists := s.roleNames[role.Name]; exists {
		return fmt.Errorf("%w: role name %s", ErrConflict, role.Name)
	}
	if role.ID == "" {
		role.ID = ids.New()
	}
	now := s.now().UTC()
	role.CreatedAt = now
	role.UpdatedAt = now
	stored := cloneRole(role)
	s.roles[role.ID] = &stored
	s.roleNames[role.Name] = role.ID
	return nil
}

func (s *memoryRoles) Find(_ context.Context, id string) (*Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	role, ok := s.roles[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneRole(role)
	return &out, nil
}

func (s *memoryRoles) FindByName(_ context.Context, name string) (*Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.roleNames[name]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneRole(s.roles[id])
	return &out, nil
}

func (s *memoryRoles) List(_ context.Context) ([]*Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Role, 0, len(s.roles))
	for _, role := range s.roles {
		r := cloneRole(role)
		out = append(out, &r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *memoryRoles) Update(_ context.Context, role *Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.roles[role.ID]
	if !ok {
		return ErrNotFound
	}
	if role.Name != current.Name {
		if _, exists := s.roleNames[role.Name]; exists {
			return fmt.Errorf("%w: role name %s", ErrConflict, role.Name)
		}
		delete(s.roleNames, current.Name)
		s.roleNames[role.Name] = role.ID
	}
	role.UpdatedAt = s.now().UTC()
	role.CreatedAt = current.CreatedAt
	stored := cloneRole(role)
	s.roles[role.ID] = &stored
	return nil
}

func (s *memoryRoles) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	role, ok := s.roles[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.roleNames, role.Name)
	delete(s.roles, id)
	for userID, assigned := range s.userRoles {
		kept := assigned[:0]
		for _, rid := range assigned {
			if rid != id {
				kept = append(kept, rid)
			}
		}
		s.userRoles[userID] = kept
	}
	return nil
}

func (s *memoryRoles) Ensure(_ context.Context, roles []Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, role := range roles {
		if _, exists := s.roleNames[role.Name]; exists {
			continue
		}
		r := role
		if err := s.create(&r); err != nil {
			return err
		}
	}
	return nil
}

func cloneRole(r *Role) Role {
	out := *r
	out.Permissions = append([]Permission(nil), r.Permissions...)
	return out
}
