package datastore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tphakala/fieldlog/internal/conf"
)

// sqlitePath extracts the database path from a sqlite:// remote URL.
func sqlitePath(remote conf.RemoteSettings) string {
	return strings.TrimPrefix(remote.URL, "sqlite://")
}

// openSQLite opens a SQLite database file, creating its directory if needed.
// The in-memory path ":memory:" is passed through unchanged.
func openSQLite(remote conf.RemoteSettings, gormCfg *gorm.Config) (*gorm.DB, error) {
	path := sqlitePath(remote)
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, storageError(fmt.Errorf("failed to create database directory: %w", err), "database", "open")
			}
		}
		// foreign keys are off by default in SQLite
		path += "?_foreign_keys=on"
	}

	db, err := gorm.Open(sqlite.Open(path), gormCfg)
	if err != nil {
		return nil, dbError(fmt.Errorf("failed to open SQLite database: %w", err), "database", "open")
	}
	return db, nil
}
