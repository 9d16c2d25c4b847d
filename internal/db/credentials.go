package db

import (
	"fmt"
	"net/url"

	"github.com/go-sql-driver/mysql"
)

// PostgresURLWithCredentials fills in the user and password a postgres:// URL
// leaves out. Values already present in the URL win.
func PostgresURLWithCredentials(connString, user, password string) (string, error) {
	u, err := url.Parse(connString)
	if err != nil {
		return "", fmt.Errorf("failed to parse PostgreSQL URL: %w", err)
	}

	name := u.User.Username()
	pass, hasPass := u.User.Password()
	if name == "" {
		name = user
	}
	if !hasPass {
		pass, hasPass = password, password != ""
	}
	switch {
	case name == "":
		return connString, nil
	case hasPass:
		u.User = url.UserPassword(name, pass)
	default:
		u.User = url.User(name)
	}
	return u.String(), nil
}

// MySQLDSNWithCredentials fills in the user and password a driver DSN leaves out
func MySQLDSNWithCredentials(dsn, user, password string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("failed to parse MySQL DSN: %w", err)
	}
	if cfg.User == "" {
		cfg.User = user
	}
	if cfg.Passwd == "" {
		cfg.Passwd = password
	}
	return cfg.FormatDSN(), nil
}
