package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

type sqliteStore struct {
	db *sql.DB
}

// NewStore opens (or creates) the SQLite database and ensures the kv table exists.
func NewStore(dataSourceName string) (*sqliteStore, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single connection keeps writes serialized and in-memory databases shared.
	db.SetMaxOpenConns(1)

	kvTableStmt := `
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		updated_at DATETIME
	);`
	if _, err = db.Exec(kvTableStmt); err != nil {
		db.Close()
		return nil, fmt.Errorf("create kv table: %w", err)
	}

	return &sqliteStore{db}, nil
}

func (s *sqliteStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	log := logrus.WithField("key", key)
	log.Debug("Retrieving value by key")

	var data []byte
	err := s.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("Key not found")
			return nil, false, nil
		}
		log.WithError(err).Error("Failed to retrieve value")
		return nil, false, err
	}
	if data == nil {
		data = []byte{}
	}
	return data, true, nil
}

func (s *sqliteStore) Set(ctx context.Context, key string, value []byte) error {
	log := logrus.WithFields(logrus.Fields{
		"key":         key,
		"data_length": len(value),
	})

	if value == nil {
		value = []byte{}
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at",
		key, value, time.Now().UTC())
	if err != nil {
		log.WithError(err).Error("Failed to store value")
		return err
	}

	log.Debug("Value stored successfully")
	return nil
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}
