package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
)

func pgTestStore(t *testing.T) (*PGStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewPGStore(db), mock
}

func TestPGFindByEmail(t *testing.T) {
	store, mock := pgTestStore(t)
	now := time.Now()

	mock.ExpectQuery("select id, email, password_hash, is_active").
		WithArgs("user@example.com").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "email", "password_hash", "is_active", "refresh_token_hash", "created_at", "updated_at",
		}).AddRow("u1", "user@example.com", "hash", true, "", now, now))
	mock.ExpectQuery("select r.id, r.name, r.description, r.permissions").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "description", "permissions", "is_active", "created_at", "updated_at",
		}).AddRow("r1", "manager", "", []byte(`["read_user","update_user"]`), true, now, now))

	user, err := store.Users(context.Background()).FindByEmail(context.Background(), "user@example.com")
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	if user.ID != "u1" || len(user.Roles) != 1 {
		t.Fatalf("unexpected user: %+v", user)
	}
	if len(user.Roles[0].Permissions) != 2 {
		t.Fatalf("role permissions not decoded: %+v", user.Roles[0])
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGFindNotFound(t *testing.T) {
	store, mock := pgTestStore(t)

	mock.ExpectQuery("select id, email, password_hash, is_active").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "email", "password_hash", "is_active", "refresh_token_hash", "created_at", "updated_at",
		}))

	if _, err := store.Users(context.Background()).Find(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestPGCreateUserDuplicateEmail(t *testing.T) {
	store, mock := pgTestStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("insert into users").
		WithArgs(sqlmock.AnyArg(), "dup@example.com", "hash", true).
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})
	mock.ExpectRollback()

	err := store.Users(context.Background()).Create(context.Background(), &User{
		Email:        "dup@example.com",
		PasswordHash: "hash",
		Active:       true,
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("want ErrConflict, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGSwapRefreshTokenHash(t *testing.T) {
	store, mock := pgTestStore(t)
	ctx := context.Background()

	mock.ExpectExec("update users set refresh_token_hash").
		WithArgs("u1", "old-hash", "new-hash").
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := store.Users(ctx).SwapRefreshTokenHash(ctx, "u1", "old-hash", "new-hash"); err != nil {
		t.Fatalf("SwapRefreshTokenHash: %v", err)
	}

	// Stale expected value: zero rows updated, the caller lost the race.
	mock.ExpectExec("update users set refresh_token_hash").
		WithArgs("u1", "stale-hash", "newer-hash").
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := store.Users(ctx).SwapRefreshTokenHash(ctx, "u1", "stale-hash", "newer-hash")
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("want ErrConflict, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGRoleCreateConflict(t *testing.T) {
	store, mock := pgTestStore(t)

	mock.ExpectQuery("insert into roles").
		WithArgs(sqlmock.AnyArg(), "admin", "", sqlmock.AnyArg(), true).
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})

	err := store.Roles(context.Background()).Create(context.Background(), &Role{
		Name:   "admin",
		Active: true,
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("want ErrConflict, got %v", err)
	}
}

func TestPGEnsureRoles(t *testing.T) {
	store, mock := pgTestStore(t)

	for range BuiltinRoles {
		mock.ExpectExec("insert into roles").
			WillReturnResult(sqlmock.NewResult(0, 1))
	}

	if err := store.Roles(context.Background()).Ensure(context.Background(), BuiltinRoles); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
