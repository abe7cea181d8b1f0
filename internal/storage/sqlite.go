package storage

import (
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/trevis/ACDecompileHallucinator-sub002/internal/errors"
)

// MemoryPath opens a private in-memory SQLite database
const MemoryPath = ":memory:"

// NewSQLiteStore opens (creating if needed) a SQLite database file
func NewSQLiteStore(path string, logger *logrus.Logger) (*SQLStore, error) {
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, errors.FileSystemErrorf(err, "create database directory for %s", path)
		}
	}

	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, errors.DatabaseErrorf(err, "connect to sqlite at %s", path)
	}

	// one connection: an in-memory database exists per connection, and
	// SQLite serializes writers anyway
	db.SetMaxOpenConns(1)
	db.Exec("PRAGMA foreign_keys = ON")
	if path != MemoryPath {
		db.Exec("PRAGMA journal_mode = WAL")
	}

	store := newSQLStore(db, "sqlite", logger)
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, errors.DatabaseError(err, "init sqlite schema")
	}

	store.logger.WithField("path", path).Debug("sqlite store opened")
	return store, nil
}
