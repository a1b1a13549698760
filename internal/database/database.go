// Package database opens the sqlite file that holds draft entries.
package database

import (
	"database/sql"
	"embed"
	"fmt"

	"junket-admin/internal/config"
	"junket-admin/internal/constants"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
)

//go:embed migrations/*.sql
var migrations embed.FS

// dsnOptions are applied by the driver to every pooled connection.
const dsnOptions = "_journal_mode=WAL&_busy_timeout=5000"

func New(cfg *config.Config, logger zerolog.Logger) (*sql.DB, error) {
	return Open(cfg.DBPath, logger)
}

// Open connects to the sqlite file at path and brings its schema up to date.
func Open(path string, logger zerolog.Logger) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?"+dsnOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to open draft database %s: %w", path, err)
	}
	db.SetMaxOpenConns(constants.DBMaxOpenConns)
	db.SetConnMaxIdleTime(constants.DBMaxIdleTime)

	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate draft database: %w", err)
	}

	logger.Info().Str("path", path).Msg("draft database ready")
	return db, nil
}
