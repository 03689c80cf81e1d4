package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// DefaultDriver is the database/sql driver registered by modernc.org/sqlite.
const DefaultDriver = "sqlite"

// State is the lifecycle of the store's connection handle.
type State int

const (
	StateUnopened State = iota
	StateOpening
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnopened:
		return "unopened"
	case StateOpening:
		return "opening"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Record is a user-added catalog entry.
type Record struct {
	ID        int64  `db:"id" json:"id"`
	Name      string `db:"name" json:"name"`
	Cover     string `db:"cover" json:"cover"`
	Content   string `db:"content" json:"-"`
	CreatedAt int64  `db:"created_at" json:"created_at"`
}

// RecordInput is a record before the store assigns its id.
type RecordInput struct {
	Name      string
	Cover     string
	Content   string
	CreatedAt int64 // Unix milliseconds; zero means now
}

// Store is the persistence interface.
type Store interface {
	Open(ctx context.Context) error
	State() State

	Create(ctx context.Context, in RecordInput) (int64, error)
	ListAll(ctx context.Context) ([]Record, error)
	Get(ctx context.Context, id int64) (*Record, error)
	Delete(ctx context.Context, id int64) error

	Close() error
}

// Options configures a SQLiteStore.
type Options struct {
	Path     string
	Disabled bool
	// Driver overrides the database/sql driver name. Defaults to DefaultDriver.
	Driver string
	Logger *slog.Logger
}

// SQLiteStore implements Store using SQLite. The handle is opened at most
// once and shared by every caller.
type SQLiteStore struct {
	path     string
	disabled bool
	driver   string
	log      *slog.Logger

	mu      sync.Mutex
	state   State
	openErr error
	opening chan struct{}
	db      *sqlx.DB
	lock    *flock.Flock
}

// New returns an unopened store. Call Open or OpenAsync before use.
func New(opts Options) *SQLiteStore {
	driver := opts.Driver
	if driver == "" {
		driver = DefaultDriver
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLiteStore{
		path:     opts.Path,
		disabled: opts.Disabled,
		driver:   driver,
		log:      logger.With("component", "store"),
	}
}

// Supported reports whether an embedded database can be opened at all.
func (s *SQLiteStore) Supported() bool {
	if s.disabled || strings.TrimSpace(s.path) == "" {
		return false
	}
	return slices.Contains(sql.Drivers(), s.driver)
}

// State returns the current lifecycle state.
func (s *SQLiteStore) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Open initializes the database and applies the schema. Calling Open on a
// ready store is a no-op; concurrent callers wait for the first attempt.
func (s *SQLiteStore) Open(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case StateReady:
		s.mu.Unlock()
		return nil
	case StateOpening:
		wait := s.opening
		s.mu.Unlock()
		select {
		case <-wait:
		case <-ctx.Done():
			return newError(KindOpen, "open", ctx.Err())
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.openErr
	}

	if !s.Supported() {
		err := newError(KindUnsupported, "open", ErrUnsupportedEnvironment)
		s.state = StateFailed
		s.openErr = err
		s.mu.Unlock()
		s.log.Warn("embedded database unavailable, persistence disabled",
			"driver", s.driver, "disabled", s.disabled)
		return err
	}

	s.state = StateOpening
	done := make(chan struct{})
	s.opening = done
	s.mu.Unlock()

	db, lock, version, err := s.connect(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	defer close(done)
	if err != nil {
		s.state = StateFailed
		s.openErr = newError(KindOpen, "open", err)
		s.log.Error("open record store", "path", s.path, "error", err)
		return s.openErr
	}
	s.db, s.lock = db, lock
	s.state = StateReady
	s.openErr = nil
	s.log.Info("record store ready", "path", s.path, "schema_version", version)
	return nil
}

// OpenAsync runs Open on its own goroutine. The returned channel yields
// exactly one result and is then closed.
func (s *SQLiteStore) OpenAsync(ctx context.Context) <-chan error {
	result := make(chan error, 1)
	go func() {
		defer close(result)
		result <- s.Open(ctx)
	}()
	return result
}

func (s *SQLiteStore) connect(ctx context.Context) (*sqlx.DB, *flock.Flock, int, error) {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, 0, fmt.Errorf("create db dir: %w", err)
		}
	}

	lock := flock.New(s.path + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, nil, 0, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, nil, 0, fmt.Errorf("database %s is in use by another process", s.path)
	}

	db, err := sqlx.Open(s.driver, s.path)
	if err != nil {
		_ = lock.Unlock()
		return nil, nil, 0, fmt.Errorf("open sqlite %s: %w", s.path, err)
	}
	db.SetMaxOpenConns(1)

	fail := func(err error) (*sqlx.DB, *flock.Flock, int, error) {
		_ = db.Close()
		_ = lock.Unlock()
		return nil, nil, 0, err
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fail(fmt.Errorf("apply pragma %q: %w", pragma, err))
		}
	}

	version, err := migrate(ctx, db)
	if err != nil {
		return fail(fmt.Errorf("run migrations: %w", err))
	}
	return db, lock, version, nil
}

// handle returns the open database, or nil when the store is not ready.
func (s *SQLiteStore) handle() *sqlx.DB {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReady {
		return nil
	}
	return s.db
}

// Close releases the connection and the file lock.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReady {
		return nil
	}
	err := s.db.Close()
	if uerr := s.lock.Unlock(); uerr != nil && err == nil {
		err = uerr
	}
	s.db, s.lock = nil, nil
	s.state = StateUnopened
	return err
}

// Create stores a new record and returns the id assigned to it.
func (s *SQLiteStore) Create(ctx context.Context, in RecordInput) (int64, error) {
	if strings.TrimSpace(in.Name) == "" {
		return 0, newError(KindWrite, "create", fmt.Errorf("%w: name is empty", ErrInvalidRecord))
	}
	if in.Content == "" {
		return 0, newError(KindWrite, "create", fmt.Errorf("%w: content is empty", ErrInvalidRecord))
	}
	db := s.handle()
	if db == nil {
		return 0, newError(KindWrite, "create", ErrNotReady)
	}
	if in.CreatedAt == 0 {
		in.CreatedAt = time.Now().UnixMilli()
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, newError(KindWrite, "create", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO catalog_records (name, cover, content, created_at)
		VALUES (?, ?, ?, ?)
	`, in.Name, in.Cover, in.Content, in.CreatedAt)
	if err != nil {
		return 0, newError(KindWrite, "create", fmt.Errorf("insert record %q: %w", in.Name, err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, newError(KindWrite, "create", fmt.Errorf("last insert id: %w", err))
	}
	if err := tx.Commit(); err != nil {
		return 0, newError(KindWrite, "create", fmt.Errorf("commit: %w", err))
	}

	s.log.Debug("record created", "id", id, "name", in.Name, "content_bytes", len(in.Content))
	return id, nil
}

// ListAll returns every stored record in no particular order. A store that
// is not ready yields an empty slice and no error.
func (s *SQLiteStore) ListAll(ctx context.Context) ([]Record, error) {
	records := make([]Record, 0)
	db := s.handle()
	if db == nil {
		return records, nil
	}

	tx, err := db.BeginTxx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, newError(KindRead, "list", err)
	}
	defer tx.Rollback()

	if err := tx.SelectContext(ctx, &records,
		"SELECT id, name, cover, content, created_at FROM catalog_records"); err != nil {
		return nil, newError(KindRead, "list", fmt.Errorf("list records: %w", err))
	}
	return records, nil
}

// Get returns one record by id.
func (s *SQLiteStore) Get(ctx context.Context, id int64) (*Record, error) {
	db := s.handle()
	if db == nil {
		return nil, newError(KindRead, "get", ErrNotReady)
	}

	var rec Record
	err := db.GetContext(ctx, &rec,
		"SELECT id, name, cover, content, created_at FROM catalog_records WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, newError(KindRead, "get", fmt.Errorf("%w: id %d", ErrNotFound, id))
	}
	if err != nil {
		return nil, newError(KindRead, "get", fmt.Errorf("get record %d: %w", id, err))
	}
	return &rec, nil
}

// Delete removes a record. Deleting an unknown id succeeds.
func (s *SQLiteStore) Delete(ctx context.Context, id int64) error {
	db := s.handle()
	if db == nil {
		return newError(KindDelete, "delete", ErrNotReady)
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return newError(KindDelete, "delete", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, "DELETE FROM catalog_records WHERE id = ?", id)
	if err != nil {
		return newError(KindDelete, "delete", fmt.Errorf("delete record %d: %w", id, err))
	}
	if err := tx.Commit(); err != nil {
		return newError(KindDelete, "delete", fmt.Errorf("commit: %w", err))
	}

	if n, _ := res.RowsAffected(); n > 0 {
		s.log.Debug("record deleted", "id", id)
	}
	return nil
}
