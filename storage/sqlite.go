package storage

import (
	"database/sql"
	"fmt"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

type SQLiteConfig struct {
	OnDisk    bool
	Directory string
}

type SQLiteStorage struct {
	SQLiteConfig
	*sqlStorage
}

func NewSQLiteStorage(cfg ...SQLiteConfig) (*SQLiteStorage, error) {
	config := SQLiteConfig{}
	if len(cfg) > 0 {
		config = cfg[0]
	}

	sourceName := ":memory:"
	if config.OnDisk {
		sourceName = filepath.Join(config.Directory, "gtfs.db")
	}

	db, err := sql.Open("sqlite3", sourceName)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Each connection to ":memory:" is a database of its own, so
	// stick to one. SQLite serializes writes anyway.
	db.SetMaxOpenConns(1)

	s, err := newSQLStorage(db, sqliteDialect)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStorage{
		SQLiteConfig: config,
		sqlStorage:   s,
	}, nil
}
