// Copyright (c) 2026 AOServ Team
// AOServ Daemon - Tomcat installation reconciler
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrDuplicate is returned when a site name is already stored.
var ErrDuplicate = errors.New("site name already in use")

const (
	pgUniqueViolation   = "23505"
	mysqlDuplicateEntry = 1062
)

// MapDBError turns a unique violation on tomcat_sites.name into ErrDuplicate
// naming site. Other errors, including violations of other constraints, are
// returned as is.
func MapDBError(site string, err error) error {
	if err == nil {
		return nil
	}
	if siteNameTaken(err) {
		return fmt.Errorf("%w: %s", ErrDuplicate, site)
	}
	return err
}

func siteNameTaken(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation && mentionsSiteName(pgErr.ConstraintName)
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDuplicateEntry && mentionsSiteName(myErr.Message)
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE && mentionsSiteName(liteErr.Error())
	}
	return false
}

// mentionsSiteName matches the constraint as each backend reports it:
// tomcat_sites_name_key (postgres), tomcat_sites.name (mysql, sqlite).
func mentionsSiteName(s string) bool {
	return strings.Contains(s, "tomcat_sites_name") || strings.Contains(s, "tomcat_sites.name")
}
