// Package store keeps distribution envelopes of compiled modules in a SQLite
// database, addressable by name or by content hash.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"

	"github.com/chazu/plume/pkg/bytecode"
	"github.com/chazu/plume/pkg/dist"
)

var log = commonlog.GetLogger("plume.store")

// ErrNotFound indicates the requested module doesn't exist.
var ErrNotFound = errors.New("module not found")

var schema = []string{
	`CREATE TABLE IF NOT EXISTS modules (
		name       TEXT PRIMARY KEY,
		id         TEXT NOT NULL,
		hash       BLOB NOT NULL,
		envelope   BLOB NOT NULL,
		size       INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS modules_hash ON modules (hash)`,
}

// Entry describes a stored module without its payload.
type Entry struct {
	Name      string
	ID        uuid.UUID
	Hash      [32]byte
	Size      int
	CreatedAt time.Time
}

// Store is a SQLite-backed module store. It is safe for concurrent use.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Open opens or creates the store at path. The special path ":memory:" opens
// a private in-memory database.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// An in-memory database lives as long as its connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating table: %w", err)
		}
	}

	log.Debugf("opened module store %s", path)
	return &Store{db: db, path: path}, nil
}

// Path returns the database path the store was opened with.
func (s *Store) Path() string { return s.path }

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Put stores env under its name, replacing any previous module of that name.
// The envelope is verified first.
func (s *Store) Put(env *dist.Envelope) error {
	if err := env.Verify(); err != nil {
		return err
	}
	data, err := dist.MarshalEnvelope(env)
	if err != nil {
		return fmt.Errorf("encoding envelope: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.Exec(
		"INSERT OR REPLACE INTO modules (name, id, hash, envelope, size, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		env.Name, env.ID.String(), env.Hash[:], data, len(env.Module), env.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("saving module %q: %w", env.Name, err)
	}
	log.Infof("stored module %s (%x)", env.Name, env.Hash[:8])
	return nil
}

// PutModule seals m under name and stores it. It returns the content hash.
func (s *Store) PutModule(name string, m *bytecode.Module) ([32]byte, error) {
	env, err := dist.Seal(name, m)
	if err != nil {
		return [32]byte{}, err
	}
	if err := s.Put(env); err != nil {
		return [32]byte{}, err
	}
	return env.Hash, nil
}

// Get retrieves the envelope stored under name.
func (s *Store) Get(name string) (*dist.Envelope, error) {
	return s.queryEnvelope("SELECT envelope FROM modules WHERE name = ?", name)
}

// GetByHash retrieves an envelope by content hash. When several names share
// the hash, the most recently created one is returned.
func (s *Store) GetByHash(hash [32]byte) (*dist.Envelope, error) {
	return s.queryEnvelope(
		"SELECT envelope FROM modules WHERE hash = ? ORDER BY created_at DESC, name LIMIT 1", hash[:])
}

// Load retrieves and opens the module stored under name.
func (s *Store) Load(name string) (*bytecode.Module, error) {
	env, err := s.Get(name)
	if err != nil {
		return nil, err
	}
	return env.Open()
}

func (s *Store) queryEnvelope(query string, arg any) (*dist.Envelope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var data []byte
	if err := s.db.QueryRow(query, arg).Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying module: %w", err)
	}
	return dist.UnmarshalEnvelope(data)
}

// Has reports whether a module with the given hash is stored.
func (s *Store) Has(hash [32]byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM modules WHERE hash = ?", hash[:]).Scan(&n); err != nil {
		return false, fmt.Errorf("querying module: %w", err)
	}
	return n > 0, nil
}

// List returns every stored module ordered by name.
func (s *Store) List() ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query("SELECT name, id, hash, size, created_at FROM modules ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("listing modules: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e       Entry
			id      string
			hash    []byte
			created int64
		)
		if err := rows.Scan(&e.Name, &id, &hash, &e.Size, &created); err != nil {
			return nil, fmt.Errorf("scanning module: %w", err)
		}
		if e.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("module %q: bad id: %w", e.Name, err)
		}
		copy(e.Hash[:], hash)
		e.CreatedAt = time.Unix(created, 0).UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Delete removes the module stored under name.
func (s *Store) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("DELETE FROM modules WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("deleting module %q: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
