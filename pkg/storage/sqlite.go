package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"cronlease/pkg/lease"
	logx "cronlease/pkg/logx"
)

// sqliteTimeLayout sorts lexically, so date_created comparisons work on the
// stored text.
const sqliteTimeLayout = "2006-01-02 15:04:05"

var sqliteDialect = dialect{
	name:           "sqlite",
	schema:         "sqlite.sql",
	placeholder:    sq.Question,
	isDuplicate:    sqliteIsDuplicate,
	isMissingTable: sqliteIsMissingTable,
	timeArg: func(t time.Time) any {
		return t.UTC().Format(sqliteTimeLayout)
	},
}

func openSQLite(cfg Config, log logx.Logger) (lease.Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", sqliteDSN(path, cfg.BusyTimeout))
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return newSQLStore(db, sqliteDialect, cfg.Table, log), nil
}

// sqliteDSN sets pragmas through the DSN so every pooled connection gets them.
func sqliteDSN(path string, busy time.Duration) string {
	ms := int64(defaultBusyTimeout)
	if busy > 0 {
		ms = busy.Milliseconds()
	}
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", ms))
	if path != ":memory:" {
		q.Add("_pragma", "journal_mode(WAL)")
		q.Add("_pragma", "synchronous(NORMAL)")
	}
	return "file:" + path + "?" + q.Encode()
}

func sqliteIsDuplicate(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return true
	}
	return false
}

func sqliteIsMissingTable(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such table")
}
