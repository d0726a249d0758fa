//go:build !cgo_sqlite

package main

import (
	"database/sql"

	_ "modernc.org/sqlite"
)

const driverName = "sqlite"

func initDB(dataSource string) (*sql.DB, error) {
	return sql.Open(driverName, dataSource)
}
