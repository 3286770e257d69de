package storage

import (
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

type PSQLConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string

	// If set, all tables are dropped on startup. You probably
	// only want this for testing.
	ClearDB bool
}

func (c PSQLConfig) connStr() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, sslMode,
	)
}

type PSQLStorage struct {
	*sqlStorage
}

// Creates a new Postgres Storage.
func NewPSQLStorage(cfg PSQLConfig) (*PSQLStorage, error) {
	db, err := sql.Open("postgres", cfg.connStr())
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	err = db.Ping()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	if cfg.ClearDB {
		for _, table := range append([]string{"feed"}, sqlFeedTables...) {
			_, err = db.Exec(`DROP TABLE IF EXISTS ` + pq.QuoteIdentifier(table))
			if err != nil {
				db.Close()
				return nil, fmt.Errorf("clearing db: %w", err)
			}
		}
	}

	s, err := newSQLStorage(db, postgresDialect)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &PSQLStorage{sqlStorage: s}, nil
}
