package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/jmoiron/sqlx"
	migrate "github.com/rubenv/sql-migrate"
	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/groupmate/groupmate/resources"
)

// Client is the sqlite-backed implementation of db.Client. The schema is
// applied from embedded versioned SQL at open time.
type Client struct {
	db    *sqlx.DB
	mutex sync.RWMutex
}

func NewClient(ctx context.Context, dir, file string) (*Client, error) {
	dbx, err := sqlx.Open("sqlite", filepath.Join(dir, file))
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	dbx.SetMaxOpenConns(1)

	migrationsSource := &migrate.EmbedFileSystemMigrationSource{
		FileSystem: resources.FS,
		Root:       "migrations",
	}
	n, err := migrate.ExecContext(ctx, dbx.DB, "sqlite3", migrationsSource, migrate.Up)
	if err != nil {
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	if n > 0 {
		log.WithField("applied", n).Info("schema up to date")
	}

	return &Client{db: dbx}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}
