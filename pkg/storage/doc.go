// Package storage opens lease stores.
//
// Drivers:
//   - memory: process-local map (tests, single instance)
//   - file: one file per lease in a shared directory, claimed with O_EXCL
//   - sqlite: SQLite database file (modernc.org/sqlite, no cgo)
//   - postgres: PostgreSQL through pgx's database/sql driver
package storage
