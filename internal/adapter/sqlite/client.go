package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"time-tracker/internal/adapter/sqlstore"
	"time-tracker/internal/migrate"
)

// NewClient opens (creating if needed) the local sqlite tracker store at path.
// The pool is limited to a single connection: sqlite allows one writer, and a
// single connection also keeps ":memory:" databases shared across calls.
func NewClient(ctx context.Context, path string, log *slog.Logger) (*sqlstore.Repository, error) {
	if path == "" {
		return nil, errors.New("sqlite: path is required")
	}
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(home, path[1:])
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("sqlite: creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_fk=1&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	c, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(c); err != nil {
		db.Close()
		return nil, err
	}
	log.Info("sqlite store opened", slog.String("path", path))
	return sqlstore.New(db, migrate.SQLite, log), nil
}
