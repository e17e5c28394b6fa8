package auth

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"beluz.app/internal/ids"
)

const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store on PostgreSQL. Role permission sets are stored as
// jsonb; assignments live in a user_roles join table.
type PGStore struct {
	db *sql.DB
}

// NewPGStore constructs a PGStore over an open connection pool.
func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Users(context.Context) UserStore { return &pgUsers{db: s.db} }
func (s *PGStore) Roles(context.Context) RoleStore { return &pgRoles{db: s.db} }

// User store ---------------------------------------------------------------

type pgUsers struct{ db *sql.DB }

func (s *pgUsers) Create(ctx context.Context, u *User) error {
	if u.ID == "" {
		u.ID = ids.New()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		insert into users (id, email, password_hash, is_active)
		values ($1, $2, $3, $4)
		returning created_at, updated_at
	`, u.ID, u.Email, u.PasswordHash, u.Active)
	if err := row.Scan(&u.CreatedAt, &u.UpdatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return fmt.Errorf("%w: email %s", ErrConflict, u.Email)
		}
		return err
	}
	for _, role := range u.Roles {
		if _, err := tx.ExecContext(ctx, `
			insert into user_roles (user_id, role_id) values ($1, $2)
			on conflict do nothing
		`, u.ID, role.ID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *pgUsers) Find(ctx context.Context, id string) (*User, error) {
	return s.findBy(ctx, `where id = $1`, id)
}

func (s *pgUsers) FindByEmail(ctx context.Context, email string) (*User, error) {
	return s.findBy(ctx, `where email = $1`, email)
}

func (s *pgUsers) findBy(ctx context.Context, where string, arg any) (*User, error) {
	row := s.db.QueryRowContext(ctx, `
		select id, email, password_hash, is_active,
		       coalesce(refresh_token_hash, ''), created_at, updated_at
		from users `+where, arg)
	var u User
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Active,
		&u.RefreshTokenHash, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	roles, err := rolesForUser(ctx, s.db, u.ID)
	if err != nil {
		return nil, err
	}
	u.Roles = roles
	return &u, nil
}

func (s *pgUsers) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	return s.exec(ctx, `
		update users set password_hash = $2, updated_at = now() where id = $1
	`, userID, passwordHash)
}

func (s *pgUsers) SetActive(ctx context.Context, userID string, active bool) error {
	return s.exec(ctx, `
		update users set is_active = $2, updated_at = now() where id = $1
	`, userID, active)
}

func (s *pgUsers) SetRoles(ctx context.Context, userID string, roleIDs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRowContext(ctx,
		`select exists(select 1 from users where id = $1)`, userID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	if _, err := tx.ExecContext(ctx,
		`delete from user_roles where user_id = $1`, userID); err != nil {
		return err
	}
	for _, roleID := range roleIDs {
		if _, err := tx.ExecContext(ctx, `
			insert into user_roles (user_id, role_id) values ($1, $2)
		`, userID, roleID); err != nil {
			if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
				return fmt.Errorf("%w: role %s", ErrNotFound, roleID)
			}
			return err
		}
	}
	return tx.Commit()
}

func (s *pgUsers) SetRefreshTokenHash(ctx context.Context, userID, hash string) error {
	return s.exec(ctx, `
		update users set refresh_token_hash = nullif($2, ''), updated_at = now()
		where id = $1
	`, userID, hash)
}

func (s *pgUsers) SwapRefreshTokenHash(ctx context.Context, userID, oldHash, newHash string) error {
	res, err := s.db.ExecContext(ctx, `
		update users set refresh_token_hash = nullif($3, ''), updated_at = now()
		where id = $1 and refresh_token_hash = $2
	`, userID, oldHash, newHash)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: refresh hash rotated concurrently", ErrConflict)
	}
	return nil
}

func (s *pgUsers) exec(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func rolesForUser(ctx context.Context, db *sql.DB, userID string) ([]Role, error) {
	rows, err := db.QueryContext(ctx, `
		select r.id, r.name, r.description, r.permissions, r.is_active,
		       r.created_at, r.updated_at
		from roles r
		join user_roles ur on ur.role_id = r.id
		where ur.user_id = $1
		order by r.name
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, *role)
	}
	return roles, rows.Err()
}

// Role store ---------------------------------------------------------------

type pgRoles struct{ db *sql.DB }

func (s *pgRoles) Create(ctx context.Context, role *Role) error {
	if role.ID == "" {
		role.ID = ids.New()
	}
	perms, err := json.Marshal(role.Permissions)
	if err != nil {
		return err
	}
	row := s.db.QueryRowContext(ctx, `
		insert into roles (id, name, description, permissions, is_active)
		values ($1, $2, $3, $4, $5)
		returning created_at, updated_at
	`, role.ID, role.Name, role.Description, perms, role.Active)
	if err := row.Scan(&role.CreatedAt, &role.UpdatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return fmt.Errorf("%w: role name %s", ErrConflict, role.Name)
		}
		return err
	}
	return nil
}

func (s *pgRoles) Find(ctx context.Context, id string) (*Role, error) {
	return s.findBy(ctx, `where id = $1`, id)
}

func (s *pgRoles) FindByName(ctx context.Context, name string) (*Role, error) {
	return s.findBy(ctx, `where name = $1`, name)
}

func (s *pgRoles) findBy(ctx context.Context, where string, arg any) (*Role, error) {
	row := s.db.QueryRowContext(ctx, `
		select id, name, description, permissions, is_active, created_at, updated_at
		from roles `+where, arg)
	role, err := scanRole(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return role, nil
}

func (s *pgRoles) List(ctx context.Context) ([]*Role, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, name, description, permissions, is_active, created_at, updated_at
		from roles order by name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []*Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

func (s *pgRoles) Update(ctx context.Context, role *Role) error {
	perms, err := json.Marshal(role.Permissions)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		update roles
		set name = $2, description = $3, permissions = $4, is_active = $5,
		    updated_at = now()
		where id = $1
	`, role.ID, role.Name, role.Description, perms, role.Active)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return fmt.Errorf("%w: role name %s", ErrConflict, role.Name)
		}
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *pgRoles) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from roles where id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *pgRoles) Ensure(ctx context.Context, roles []Role) error {
	for _, role := range roles {
		perms, err := json.Marshal(role.Permissions)
		if err != nil {
			return err
		}
		id := role.ID
		if id == "" {
			id = ids.New()
		}
		if _, err := s.db.ExecContext(ctx, `
			insert into roles (id, name, description, permissions, is_active)
			values ($1, $2, $3, $4, $5)
			on conflict (name) do nothing
		`, id, role.Name, role.Description, perms, role.Active); err != nil {
			return err
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRole(row rowScanner) (*Role, error) {
	var (
		role  Role
		perms []byte
	)
	if err := row.Scan(&role.ID, &role.Name, &role.Description, &perms,
		&role.Active, &role.CreatedAt, &role.UpdatedAt); err != nil {
		return nil, err
	}
	if len(perms) > 0 {
		if err := json.Unmarshal(perms, &role.Permissions); err != nil {
			return nil, fmt.Errorf("decode role permissions: %w", err)
		}
	}
	return &role, nil
}

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}
