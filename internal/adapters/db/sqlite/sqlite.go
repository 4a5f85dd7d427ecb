package sqlite

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/atvirokodosprendimai/dicomindex/internal/domain"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	_ "modernc.org/sqlite"
)

// MemoryPath selects in-memory mode: nothing is written to disk and the
// database disappears when the handle is closed.
const MemoryPath = ":memory:"

// Database owns the sqlite handle. A closed handle rejects every operation
// with domain.ErrNotOpen; the most recent failure is retrievable as text via
// LastError.
type Database struct {
	mu       sync.RWMutex
	db       *gorm.DB
	path     string
	inMemory bool
	lastErr  string
}

func New(path string) *Database {
	return &Database{
		path:     path,
		inMemory: isMemoryPath(path),
	}
}

func isMemoryPath(path string) bool {
	return path == MemoryPath || strings.HasPrefix(path, "file::memory:")
}

// Open connects. Opening an existing database file is a plain connect and
// never touches the schema; a fresh target stays schemaless until Initialize
// is called.
func (d *Database) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db != nil {
		return nil
	}
	if !d.inMemory {
		if err := os.MkdirAll(filepath.Dir(d.path), 0o755); err != nil {
			return d.fail(fmt.Errorf("create database directory: %w", err))
		}
	}

	gdb, err := gorm.Open(sqlite.Dialector{
		DriverName: "sqlite",
		DSN:        d.path,
	}, &gorm.Config{})
	if err != nil {
		return d.fail(fmt.Errorf("open %s: %w", d.path, err))
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return d.fail(err)
	}
	// One pooled connection: sqlite has a single writer anyway, and a
	// :memory: DSN opens a distinct empty database per connection.
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return d.fail(fmt.Errorf("open %s: %w", d.path, err))
	}

	d.db = gdb
	return nil
}

// Initialize creates the schema by running the embedded migration scripts.
// It is never invoked implicitly; callers decide when a fresh database needs
// its schema. A failed initialization closes the handle.
func (d *Database) Initialize() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db == nil {
		return d.fail(domain.ErrNotOpen)
	}
	if err := runMigrations(d.db); err != nil {
		d.closeLocked()
		return d.fail(fmt.Errorf("initialize schema: %w", err))
	}
	return nil
}

// Close invalidates the handle. Subsequent operations fail with
// domain.ErrNotOpen.
func (d *Database) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closeLocked()
}

func (d *Database) closeLocked() error {
	if d.db == nil {
		return nil
	}
	sqlDB, err := d.db.DB()
	d.db = nil
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (d *Database) IsOpen() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.db != nil
}

func (d *Database) IsInMemory() bool { return d.inMemory }

func (d *Database) LastError() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lastErr
}

// Filename returns the database target as given to New.
func (d *Database) Filename() string { return d.path }

// Directory returns the absolute directory the database file resides in, or
// "" for an in-memory database.
func (d *Database) Directory() string {
	if d.inMemory {
		return ""
	}
	abs, err := filepath.Abs(filepath.Dir(d.path))
	if err != nil {
		return filepath.Dir(d.path)
	}
	return abs
}

// handle returns the live gorm handle for repository use.
func (d *Database) handle() (*gorm.DB, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.db == nil {
		return nil, domain.ErrNotOpen
	}
	return d.db, nil
}

func (d *Database) fail(err error) error {
	d.lastErr = err.Error()
	return err
}

var _ domain.Connection = (*Database)(nil)
