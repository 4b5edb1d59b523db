package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"cronlease/pkg/lease"
	logx "cronlease/pkg/logx"
)

const (
	pgUniqueViolation = "23505"
	pgUndefinedTable  = "42P01"
)

var postgresDialect = dialect{
	name:           "postgres",
	schema:         "postgres.sql",
	placeholder:    sq.Dollar,
	isDuplicate:    func(err error) bool { return pgCode(err) == pgUniqueViolation },
	isMissingTable: func(err error) bool { return pgCode(err) == pgUndefinedTable },
	timeArg:        func(t time.Time) any { return t.UTC() },
}

func openPostgres(cfg Config, log logx.Logger) (lease.Store, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("storage.dsn is required for postgres driver")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return newSQLStore(db, postgresDialect, cfg.Table, log), nil
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
