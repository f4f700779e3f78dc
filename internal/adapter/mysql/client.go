package mysql

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	driver "github.com/go-sql-driver/mysql"

	"time-tracker/internal/adapter/sqlstore"
	"time-tracker/internal/migrate"
)

// NewClient opens a MySQL-backed tracker store using the provided DSN.
// Example DSN: user:pass@tcp(host:3306)/dbname
// parseTime, multiStatements and clientFoundRows are forced on: the gateway
// scans DATETIME columns into time.Time, migrations run as one batch per file,
// and conditional updates rely on matched (not changed) row counts.
func NewClient(ctx context.Context, dsn string, log *slog.Logger) (*sqlstore.Repository, error) {
	if dsn == "" {
		return nil, errors.New("mysql: DSN is required")
	}
	cfg, err := driver.ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	cfg.ParseTime = true
	cfg.MultiStatements = true
	cfg.ClientFoundRows = true
	cfg.Loc = time.UTC

	connector, err := driver.NewConnector(cfg)
	if err != nil {
		return nil, err
	}
	db := sql.OpenDB(connector)
	// Conservative pool defaults; can be adjusted via env later.
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	c, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(c); err != nil {
		db.Close()
		return nil, err
	}
	log.Info("mysql store opened", slog.String("addr", cfg.Addr), slog.String("db", cfg.DBName))
	return sqlstore.New(db, migrate.MySQL, log), nil
}
