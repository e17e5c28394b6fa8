package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"
)

const (
	migrationsLedger = "schema_migrations"
	seedsLedger      = "schema_seeds"

	upSuffix   = ".up.sql"
	downSuffix = ".down.sql"
	sqlSuffix  = ".sql"
)

// Manager applies SQL migration and seed scripts against a database. Scripts
// are read from filesystems so callers can hand it a directory in production
// and an in-memory tree in tests. Each applied script is recorded in a ledger
// table and never re-run.
type Manager struct {
	db         *sql.DB
	migrations fs.FS
	seeds      fs.FS
}

// NewManager constructs a Manager over the given script filesystems. Either
// filesystem may be nil, in which case the corresponding commands are no-ops.
func NewManager(db *sql.DB, migrations, seeds fs.FS) *Manager {
	return &Manager{db: db, migrations: migrations, seeds: seeds}
}

// Up applies every pending *.up.sql migration in lexical order.
func (m *Manager) Up(ctx context.Context) error {
	if err := m.ensureLedgers(ctx); err != nil {
		return err
	}
	applied, err := m.applied(ctx, migrationsLedger)
	if err != nil {
		return err
	}
	scripts, err := listScripts(m.migrations, upSuffix)
	if err != nil {
		return err
	}
	for _, name := range scripts {
		if applied[name] {
			continue
		}
		if err := m.runScript(ctx, m.migrations, name); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		if err := m.record(ctx, migrationsLedger, name); err != nil {
			return err
		}
	}
	return nil
}

// Down rolls back the most recently applied migration using its *.down.sql
// counterpart.
func (m *Manager) Down(ctx context.Context) error {
	if err := m.ensureLedgers(ctx); err != nil {
		return err
	}
	history, err := m.history(ctx, migrationsLedger)
	if err != nil {
		return err
	}
	if len(history) == 0 {
		return errors.New("no migrations applied")
	}
	last := history[len(history)-1]
	down := strings.TrimSuffix(last, upSuffix) + downSuffix
	if _, err := fs.Stat(m.migrations, down); err != nil {
		return fmt.Errorf("missing down script for %s", last)
	}
	if err := m.runScript(ctx, m.migrations, down); err != nil {
		return fmt.Errorf("rollback migration %s: %w", last, err)
	}
	_, err = m.db.ExecContext(ctx,
		fmt.Sprintf(`delete from %s where name = $1`, migrationsLedger), last)
	return err
}

// Seed applies every pending seed script. Seeds follow the same
// apply-once ledger discipline as migrations.
func (m *Manager) Seed(ctx context.Context) error {
	if err := m.ensureLedgers(ctx); err != nil {
		return err
	}
	applied, err := m.applied(ctx, seedsLedger)
	if err != nil {
		return err
	}
	scripts, err := listScripts(m.seeds, sqlSuffix)
	if err != nil {
		return err
	}
	for _, name := range scripts {
		if applied[name] {
			continue
		}
		if err := m.runScript(ctx, m.seeds, name); err != nil {
			return fmt.Errorf("apply seed %s: %w", name, err)
		}
		if err := m.record(ctx, seedsLedger, name); err != nil {
			return err
		}
	}
	return nil
}

// Status returns the applied migrations in application order.
func (m *Manager) Status(ctx context.Context) ([]string, error) {
	if err := m.ensureLedgers(ctx); err != nil {
		return nil, err
	}
	return m.history(ctx, migrationsLedger)
}

func (m *Manager) ensureLedgers(ctx context.Context) error {
	for _, table := range []string{migrationsLedger, seedsLedger} {
		ddl := fmt.Sprintf(`
			create table if not exists %s (
				name text primary key,
				applied_at timestamptz not null default now()
			)`, table)
		if _, err := m.db.ExecContext(ctx, ddl); err != nil {
			return err
		}
	}
	return nil
}

// runScript executes one script inside a transaction, statement by statement.
func (m *Manager) runScript(ctx context.Context, fsys fs.FS, name string) error {
	raw, err := fs.ReadFile(fsys, name)
	if err != nil {
		return err
	}
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, stmt := range splitStatements(string(raw)) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (m *Manager) record(ctx context.Context, table, name string) error {
	_, err := m.db.ExecContext(ctx,
		fmt.Sprintf(`insert into %s(name, applied_at) values ($1, $2)`, table),
		name, time.Now().UTC())
	return err
}

func (m *Manager) applied(ctx context.Context, table string) (map[string]bool, error) {
	names, err := m.names(ctx, fmt.Sprintf(`select name from %s`, table))
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set, nil
}

func (m *Manager) history(ctx context.Context, table string) ([]string, error) {
	return m.names(ctx, fmt.Sprintf(`select name from %s order by applied_at asc`, table))
}

func (m *Manager) names(ctx context.Context, query string) ([]string, error) {
	rows, err := m.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// listScripts returns the root-level scripts with the given suffix in lexical
// order. A nil filesystem yields no scripts.
func listScripts(fsys fs.FS, suffix string) ([]string, error) {
	if fsys == nil {
		return nil, nil
	}
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if suffix == sqlSuffix && strings.HasSuffix(name, downSuffix) {
			continue
		}
		if strings.HasSuffix(name, suffix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// splitStatements splits a script on semicolons, respecting single-quoted
// string literals. Good enough for plain DDL and seed inserts; scripts with
// dollar-quoted bodies must stay single-statement.
func splitStatements(script string) []string {
	var (
		stmts    []string
		current  strings.Builder
		inString bool
	)
	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			stmts = append(stmts, s)
		}
		current.Reset()
	}
	for _, r := range script {
		switch {
		case r == '\'':
			inString = !inString
			current.WriteRune(r)
		case r == ';' && !inString:
			flush()
		default:
			current.WriteRune(r)
		}
	}
	flush()
	return stmts
}
