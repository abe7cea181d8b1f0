package storage

import (
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/trevis/ACDecompileHallucinator-sub002/internal/errors"
)

// NewPostgresStore connects to PostgreSQL through the pgx stdlib driver
func NewPostgresStore(dsn string, logger *logrus.Logger) (*SQLStore, error) {
	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, errors.DatabaseError(err, "connect to postgres")
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	store := newSQLStore(db, "postgres", logger)
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, errors.DatabaseError(err, "init postgres schema")
	}

	store.logger.Debug("postgres store opened")
	return store, nil
}
