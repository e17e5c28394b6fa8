package migrate

import (
	"context"
	"reflect"
	"testing"
	"testing/fstest"

	"github.com/DATA-DOG/go-sqlmock"
)

func testManager(t *testing.T, migrations, seeds fstest.MapFS) (*Manager, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewManager(db, migrations, seeds), mock
}

func expectLedgers(mock sqlmock.Sqlmock) {
	mock.ExpectExec(`create table if not exists schema_migrations`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`create table if not exists schema_seeds`).
		WillReturnResult(sqlmock.NewResult(0, 0))
}

func TestUpAppliesOnlyPending(t *testing.T) {
	migrations := fstest.MapFS{
		"001_users.up.sql":   {Data: []byte("create table users (id text primary key);")},
		"001_users.down.sql": {Data: []byte("drop table users;")},
		"002_roles.up.sql":   {Data: []byte("create table roles (id text primary key);\ncreate table user_roles (user_id text);")},
	}
	mgr, mock := testManager(t, migrations, nil)

	expectLedgers(mock)
	mock.ExpectQuery(`select name from schema_migrations`).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("001_users.up.sql"))

	// 001 is recorded already, so only 002 runs: two statements, one tx.
	mock.ExpectBegin()
	mock.ExpectExec(`create table roles`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`create table user_roles`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	mock.ExpectExec(`insert into schema_migrations`).
		WithArgs("002_roles.up.sql", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := mgr.Up(context.Background()); err != nil {
		t.Fatalf("Up: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestDownRollsBackLastApplied(t *testing.T) {
	migrations := fstest.MapFS{
		"001_users.up.sql":   {Data: []byte("create table users (id text primary key);")},
		"001_users.down.sql": {Data: []byte("drop table users;")},
	}
	mgr, mock := testManager(t, migrations, nil)

	expectLedgers(mock)
	mock.ExpectQuery(`select name from schema_migrations order by applied_at asc`).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("001_users.up.sql"))
	mock.ExpectBegin()
	mock.ExpectExec(`drop table users`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	mock.ExpectExec(`delete from schema_migrations`).
		WithArgs("001_users.up.sql").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := mgr.Down(context.Background()); err != nil {
		t.Fatalf("Down: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestDownWithoutHistoryFails(t *testing.T) {
	mgr, mock := testManager(t, fstest.MapFS{}, nil)

	expectLedgers(mock)
	mock.ExpectQuery(`select name from schema_migrations order by applied_at asc`).
		WillReturnRows(sqlmock.NewRows([]string{"name"}))

	if err := mgr.Down(context.Background()); err == nil {
		t.Fatal("expected error with empty history")
	}
}

func TestDownMissingScriptFails(t *testing.T) {
	migrations := fstest.MapFS{
		"001_users.up.sql": {Data: []byte("create table users (id text primary key);")},
	}
	mgr, mock := testManager(t, migrations, nil)

	expectLedgers(mock)
	mock.ExpectQuery(`select name from schema_migrations order by applied_at asc`).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("001_users.up.sql"))

	if err := mgr.Down(context.Background()); err == nil {
		t.Fatal("expected error for missing down script")
	}
}

func TestSeedRunsOnce(t *testing.T) {
	seeds := fstest.MapFS{
		"001_roles.sql": {Data: []byte("insert into roles(name) values ('admin');")},
	}
	mgr, mock := testManager(t, nil, seeds)

	expectLedgers(mock)
	mock.ExpectQuery(`select name from schema_seeds`).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("001_roles.sql"))

	// Nothing pending: no tx expected.
	if err := mgr.Seed(context.Background()); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestStatusReturnsHistory(t *testing.T) {
	mgr, mock := testManager(t, fstest.MapFS{}, nil)

	expectLedgers(mock)
	mock.ExpectQuery(`select name from schema_migrations order by applied_at asc`).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).
			AddRow("001_users.up.sql").
			AddRow("002_roles.up.sql"))

	got, err := mgr.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	want := []string{"001_users.up.sql", "002_roles.up.sql"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("history = %v, want %v", got, want)
	}
}

func TestSplitStatementsRespectsStringLiterals(t *testing.T) {
	got := splitStatements("insert into t(v) values ('a;b');\nupdate t set v = 'c';\n")
	want := []string{
		"insert into t(v) values ('a;b')",
		"update t set v = 'c'",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("statements = %q, want %q", got, want)
	}
}
