package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	sq "github.com/Masterminds/squirrel"

	"cronlease/pkg/lease"
	logx "cronlease/pkg/logx"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// dialect holds what differs between SQL backends.
type dialect struct {
	name        string
	schema      string
	placeholder sq.PlaceholderFormat

	// isDuplicate reports a primary key / unique constraint violation.
	isDuplicate func(error) bool
	// isMissingTable reports that the lease table does not exist.
	isMissingTable func(error) bool
	// timeArg converts a timestamp to the driver argument stored in date_created.
	timeArg func(time.Time) any
}

// sqlStore implements lease.Store on database/sql. Uniqueness is the
// table's primary key on unique_hash.
type sqlStore struct {
	db      *sql.DB
	dialect dialect
	table   string
	log     logx.Logger
	qb      sq.StatementBuilderType

	closed atomic.Bool
}

func newSQLStore(db *sql.DB, d dialect, table string, log logx.Logger) *sqlStore {
	return &sqlStore{
		db:      db,
		dialect: d,
		table:   table,
		log:     log,
		qb:      sq.StatementBuilder.PlaceholderFormat(d.placeholder),
	}
}

func (s *sqlStore) mapErr(err error) error {
	if err == nil {
		return nil
	}
	if s.dialect.isMissingTable(err) {
		return fmt.Errorf("%w: %s: %v", lease.ErrTableMissing, s.table, err)
	}
	return err
}

func (s *sqlStore) Probe(ctx context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}
	q, args, err := s.qb.Select("1").From(s.table).Where("1 = 0").ToSql()
	if err != nil {
		return err
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return s.mapErr(err)
	}
	defer rows.Close()
	return s.mapErr(rows.Err())
}

func (s *sqlStore) InsertUnique(ctx context.Context, rec lease.Record) (lease.Outcome, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}
	q, args, err := s.qb.Insert(s.table).
		Columns("unique_hash", "task", "schedule", "date_created", "worker").
		Values(rec.Key, rec.Task, rec.Schedule, s.dialect.timeArg(rec.CreatedAt), nullStr(rec.Worker)).
		ToSql()
	if err != nil {
		return 0, err
	}
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		if s.dialect.isDuplicate(err) {
			return lease.AlreadyHeld, nil
		}
		return 0, s.mapErr(err)
	}
	return lease.Claimed, nil
}

func (s *sqlStore) Delete(ctx context.Context, key string) error {
	if s.closed.Load() {
		return ErrClosed
	}
	q, args, err := s.qb.Delete(s.table).Where(sq.Eq{"unique_hash": key}).ToSql()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, q, args...)
	return s.mapErr(err)
}

func (s *sqlStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}
	q, args, err := s.qb.Delete(s.table).Where(sq.Lt{"date_created": s.dialect.timeArg(cutoff)}).ToSql()
	if err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, s.mapErr(err)
	}
	return res.RowsAffected()
}

// Provision creates the lease table and its date_created index.
func (s *sqlStore) Provision(ctx context.Context) error {
	ddl, err := schemaFor(s.dialect.schema, s.table)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("%s: %w", s.dialect.name, err)
	}
	return nil
}

func (s *sqlStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

// Schema returns the provisioning DDL for driver and table.
func Schema(driver, table string) (string, error) {
	if table == "" {
		table = lease.DefaultTable
	}
	if !tableNameRe.MatchString(table) {
		return "", fmt.Errorf("invalid lease table name %q", table)
	}
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "sqlite", "sqlite3":
		return schemaFor("sqlite.sql", table)
	case "postgres", "postgresql", "pgx":
		return schemaFor("postgres.sql", table)
	default:
		return "", errors.New("no schema for storage driver: " + driver)
	}
}

func schemaFor(file, table string) (string, error) {
	b, err := schemaFS.ReadFile("schema/" + file)
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(string(b), "{{table}}", table), nil
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
