// Package store implements the persistence boundary beneath both state
// containers, backed by GORM over SQLite (pure Go driver). State is written
// as whole-snapshot JSON blobs into a key-value table, one blob per fixed
// key, the way a browser client would use local storage. This file contains
// database bootstrapping and the blob store itself.
package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/plugin/opentelemetry/tracing"
)

// Fixed blob keys. Each state container owns exactly one.
const (
	ChatStateKey = "chatState"
	AuthStateKey = "authState"
)

// ErrNotFound is returned by Load when no blob exists under the key. Callers
// substitute their documented empty default at the call site.
var ErrNotFound = errors.New("store: key not found")

// Entry is one persisted blob row.
type Entry struct {
	Key       string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	Value     []byte    `gorm:"type:BLOB NOT NULL"`
	UpdatedAt time.Time `gorm:"type:DATETIME NOT NULL"`
}

// TableName implements the GORM tabler interface.
func (Entry) TableName() string { return "kv_entries" }

// OpenSQLite opens (or creates) a SQLite database and applies PRAGMAs.
func OpenSQLite(path string) (*gorm.DB, error) {
	// Fail early if parent directory does not exist (instead of sqlite "out of memory (14)" on Windows).
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, err
	}

	// PRAGMAs
	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA synchronous=NORMAL;")
	db.Exec("PRAGMA busy_timeout=5000;")

	// Pool
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	return db, nil
}

// AutoMigrate creates the blob and idempotency tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Entry{}, &IdempotencyKey{})
}

// Store is the key-value persistence adapter. Safe for concurrent use; all
// synchronization is delegated to the database handle.
type Store struct {
	db *gorm.DB
}

// New returns a Store over the given handle.
func New(db *gorm.DB) *Store { return &Store{db: db} }

// Load reads the blob under key and unmarshals it into v. It returns
// ErrNotFound when the key is absent and the raw unmarshal error when the
// stored blob is malformed; it never substitutes a default itself.
func (s *Store) Load(key string, v any) error {
	var e Entry
	err := s.db.Where("key = ?", key).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(e.Value, v)
}

// Save marshals v and upserts it under key. Serialization and write failures
// are returned to the caller; the state containers treat them as soft (log
// and continue), so a failed write degrades to "state unchanged on disk".
func (s *Store) Save(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	e := Entry{Key: key, Value: raw, UpdatedAt: time.Now().UTC()}
	return s.db.Save(&e).Error
}

// Remove deletes the blob under key. Removing an absent key is a no-op.
func (s *Store) Remove(key string) error {
	return s.db.Where("key = ?", key).Delete(&Entry{}).Error
}
