// Package history persists completed runs and their decided operations to a
// local SQLite database so they can be listed and replayed later.
package history

import (
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jingkaihe/whatif/internal/errx"
	"github.com/jingkaihe/whatif/pkg/api"
)

type migration struct {
	version int
	name    string
	sql     string
}

var migrations = []migration{
	{
		version: 1,
		name:    "create_runs_and_operations",
		sql: `
CREATE TABLE IF NOT EXISTS runs (
  id TEXT PRIMARY KEY,
  command TEXT NOT NULL,
  started_at TEXT NOT NULL,
  finished_at TEXT NOT NULL,
  exit_code INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS operations (
  run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
  seq INTEGER NOT NULL,
  pid INTEGER NOT NULL,
  syscall TEXT NOT NULL,
  label TEXT NOT NULL,
  path TEXT NOT NULL,
  detail TEXT NOT NULL,
  decision TEXT NOT NULL,
  PRIMARY KEY (run_id, seq)
);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`,
	},
}

// Run is one recorded invocation.
type Run struct {
	ID         string
	Command    []string
	StartedAt  time.Time
	FinishedAt time.Time
	ExitCode   int
}

// Store wraps the history database.
type Store struct {
	db *sql.DB
}

// DefaultPath places the database under the user's data directory.
func DefaultPath() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "whatif", "history.db")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "whatif", "history.db")
	}
	return filepath.Join(home, ".local", "share", "whatif", "history.db")
}

// Open creates the database file (and parent directories) if needed, applies
// pragmas and pending migrations, and returns the store. Initialization is
// serialized across processes with a flock'd sidecar file.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, ErrDBPathRequired
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, errx.Wrap(ErrOpenDB, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errx.Wrap(ErrOpenDB, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := withInitLock(path, func() error {
		if err := configure(db); err != nil {
			return err
		}
		return migrate(db)
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func configure(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA busy_timeout = 15000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA journal_mode = WAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return errx.With(ErrConfigureDB, ": %s: %w", pragma, err)
		}
	}
	return nil
}

func migrate(db *sql.DB) error {
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS schema_migrations (
  version INTEGER PRIMARY KEY,
  name TEXT NOT NULL,
  applied_at TEXT NOT NULL
)`); err != nil {
		return errx.Wrap(ErrMigrateDB, err)
	}

	applied := make(map[int]bool, len(migrations))
	rows, err := db.Query(`SELECT version FROM schema_migrations`)
	if err != nil {
		return errx.Wrap(ErrMigrateDB, err)
	}
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return errx.Wrap(ErrMigrateDB, err)
		}
		applied[version] = true
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return errx.Wrap(ErrMigrateDB, err)
	}
	rows.Close()

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].version < migrations[j].version
	})

	for _, m := range migrations {
		if applied[m.version] {
			continue
		}
		tx, err := db.Begin()
		if err != nil {
			return errx.With(ErrMigrateDB, ": begin %d %s: %w", m.version, m.name, err)
		}
		if _, err := tx.Exec(m.sql); err != nil {
			_ = tx.Rollback()
			return errx.With(ErrMigrateDB, ": apply %d %s: %w", m.version, m.name, err)
		}
		if _, err := tx.Exec(
			`INSERT INTO schema_migrations(version, name, applied_at) VALUES (?, ?, ?)`,
			m.version, m.name, time.Now().UTC().Format(time.RFC3339Nano),
		); err != nil {
			_ = tx.Rollback()
			return errx.With(ErrMigrateDB, ": record %d %s: %w", m.version, m.name, err)
		}
		if err := tx.Commit(); err != nil {
			return errx.With(ErrMigrateDB, ": commit %d %s: %w", m.version, m.name, err)
		}
	}
	return nil
}

func withInitLock(dbPath string, fn func() error) error {
	lockPath := dbPath + ".init.lock"
	lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return errx.Wrap(ErrOpenInitLock, err)
	}
	defer lockFile.Close()

	if err := syscall.Flock(int(lockFile.Fd()), syscall.LOCK_EX); err != nil {
		return errx.Wrap(ErrAcquireInitLock, err)
	}
	defer syscall.Flock(int(lockFile.Fd()), syscall.LOCK_UN)

	return fn()
}

// SaveRun stores a run and its events in one transaction.
func (s *Store) SaveRun(run Run, events []api.Event) error {
	command, err := json.Marshal(run.Command)
	if err != nil {
		return errx.Wrap(ErrSaveRun, err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return errx.Wrap(ErrSaveRun, err)
	}
	if _, err := tx.Exec(
		`INSERT INTO runs(id, command, started_at, finished_at, exit_code) VALUES (?, ?, ?, ?, ?)`,
		run.ID,
		string(command),
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		run.FinishedAt.UTC().Format(time.RFC3339Nano),
		run.ExitCode,
	); err != nil {
		_ = tx.Rollback()
		return errx.Wrap(ErrSaveRun, err)
	}
	for _, ev := range events {
		if _, err := tx.Exec(
			`INSERT INTO operations(run_id, seq, pid, syscall, label, path, detail, decision)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, ev.Seq, ev.PID,
			ev.Operation.Syscall, ev.Operation.Label, ev.Operation.Path, ev.Operation.Detail,
			string(ev.Decision),
		); err != nil {
			_ = tx.Rollback()
			return errx.Wrap(ErrSaveRun, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return errx.Wrap(ErrSaveRun, err)
	}
	return nil
}

// List returns the most recent runs, newest first. limit <= 0 means all.
func (s *Store) List(limit int) ([]Run, error) {
	query := `SELECT id, command, started_at, finished_at, exit_code FROM runs ORDER BY started_at DESC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errx.Wrap(ErrLoadRun, err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, errx.Wrap(ErrLoadRun, err)
	}
	return runs, nil
}

// Get loads one run and its events. The id may be a unique prefix.
func (s *Store) Get(id string) (Run, []api.Event, error) {
	// Literal prefix match; LIKE would treat % and _ in the id as
	// wildcards.
	rows, err := s.db.Query(
		`SELECT id, command, started_at, finished_at, exit_code FROM runs WHERE substr(id, 1, length(?)) = ? ORDER BY started_at DESC`,
		id, id,
	)
	if err != nil {
		return Run{}, nil, errx.Wrap(ErrLoadRun, err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return Run{}, nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return Run{}, nil, errx.Wrap(ErrLoadRun, err)
	}
	switch {
	case len(runs) == 0:
		return Run{}, nil, errx.With(ErrRunNotFound, ": %s", id)
	case len(runs) > 1:
		return Run{}, nil, errx.With(ErrLoadRun, ": ambiguous run id %s", id)
	}
	run := runs[0]

	opRows, err := s.db.Query(
		`SELECT seq, pid, syscall, label, path, detail, decision FROM operations WHERE run_id = ? ORDER BY seq`,
		run.ID,
	)
	if err != nil {
		return Run{}, nil, errx.Wrap(ErrLoadRun, err)
	}
	defer opRows.Close()

	var events []api.Event
	for opRows.Next() {
		var ev api.Event
		var decision string
		if err := opRows.Scan(
			&ev.Seq, &ev.PID,
			&ev.Operation.Syscall, &ev.Operation.Label, &ev.Operation.Path, &ev.Operation.Detail,
			&decision,
		); err != nil {
			return Run{}, nil, errx.Wrap(ErrLoadRun, err)
		}
		ev.Decision = api.Decision(decision)
		events = append(events, ev)
	}
	if err := opRows.Err(); err != nil {
		return Run{}, nil, errx.Wrap(ErrLoadRun, err)
	}
	return run, events, nil
}

// Remove deletes a run and, via the foreign key, its operations.
func (s *Store) Remove(id string) error {
	res, err := s.db.Exec(`DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return errx.Wrap(ErrRemoveRun, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errx.Wrap(ErrRemoveRun, err)
	}
	if n == 0 {
		return errx.With(ErrRunNotFound, ": %s", id)
	}
	return nil
}

// Prune removes runs that started before the cutoff and returns how many
// were deleted.
func (s *Store) Prune(before time.Time) (int, error) {
	res, err := s.db.Exec(
		`DELETE FROM runs WHERE started_at < ?`,
		before.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, errx.Wrap(ErrRemoveRun, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errx.Wrap(ErrRemoveRun, err)
	}
	return int(n), nil
}

func scanRun(rows *sql.Rows) (Run, error) {
	var run Run
	var command, started, finished string
	if err := rows.Scan(&run.ID, &command, &started, &finished, &run.ExitCode); err != nil {
		return Run{}, errx.Wrap(ErrLoadRun, err)
	}
	if err := json.Unmarshal([]byte(command), &run.Command); err != nil {
		return Run{}, errx.Wrap(ErrLoadRun, err)
	}
	var err error
	if run.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
		return Run{}, errx.Wrap(ErrLoadRun, err)
	}
	if run.FinishedAt, err = time.Parse(time.RFC3339Nano, finished); err != nil {
		return Run{}, errx.Wrap(ErrLoadRun, err)
	}
	return run, nil
}
