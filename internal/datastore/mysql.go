package datastore

import (
	"fmt"
	"strings"

	gomysql "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/tphakala/fieldlog/internal/conf"
	"github.com/tphakala/fieldlog/internal/errors"
	"github.com/tphakala/fieldlog/internal/logger"
)

// mysqlDSN turns a mysql:// remote URL into a driver DSN. The remote key is
// injected as the password; any password in the URL is replaced.
func mysqlDSN(remote conf.RemoteSettings) (string, error) {
	raw := strings.TrimPrefix(remote.URL, "mysql://")
	if !strings.Contains(raw, "charset=") {
		sep := "?"
		if strings.Contains(raw, "?") {
			sep = "&"
		}
		raw += sep + "charset=utf8mb4"
	}
	cfg, err := gomysql.ParseDSN(raw)
	if err != nil {
		return "", errors.New(fmt.Errorf("invalid mysql remote url: %w", err)).
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}
	cfg.Passwd = remote.Key
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}

func openMySQL(remote conf.RemoteSettings, gormCfg *gorm.Config) (*gorm.DB, error) {
	dsn, err := mysqlDSN(remote)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(mysql.Open(dsn), gormCfg)
	if err != nil {
		GetLogger().Error("failed to open MySQL database",
			logger.String("url", remote.RedactedURL()),
			logger.Error(err))
		return nil, dbError(fmt.Errorf("failed to open MySQL database: %w", err), "database", "open")
	}
	return db, nil
}
