package claim

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

// SQL claims identifiers by inserting them into a table keyed on the
// identifier. A primary-key violation means the candidate is taken.
type SQL struct {
	db     *sql.DB
	opts   options
	sq     squirrel.StatementBuilderType
	closer bool
}

// NewSQL wraps an open database. The caller keeps ownership of db; Close
// does not close it.
func NewSQL(db *sql.DB, opts ...Option) (*SQL, error) {
	o := buildOptions(opts)
	if !identifier.MatchString(o.table) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTable, o.table)
	}
	return &SQL{
		db:   db,
		opts: o,
		sq:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}, nil
}

// OpenMySQL connects to MySQL with a go-sql-driver DSN such as
// "user:pass@tcp(127.0.0.1:3306)/ids".
func OpenMySQL(dsn string, opts ...Option) (*SQL, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse mysql dsn: %w", err)
	}
	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("mysql connector: %w", err)
	}
	db := sql.OpenDB(connector)

	// DB performance and safety tuning
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	return newOwned(db, opts)
}

// OpenSQLite opens (or creates) a SQLite database at path. ":memory:" gives
// a private in-memory database.
func OpenSQLite(path string, opts ...Option) (*SQL, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection: SQLite serializes writers anyway, and an in-memory
	// database exists only on the connection that created it.
	db.SetMaxOpenConns(1)
	return newOwned(db, opts)
}

func newOwned(db *sql.DB, opts []Option) (*SQL, error) {
	s, err := NewSQL(db, opts...)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.closer = true
	return s, nil
}

// Table returns the table claims are written to.
func (s *SQL) Table() string {
	return s.opts.table
}

// EnsureSchema creates the claim table if it does not exist.
func (s *SQL) EnsureSchema(ctx context.Context) error {
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id VARCHAR(255) NOT NULL PRIMARY KEY,
	claimed_at BIGINT NOT NULL
)`, s.opts.table)
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create table %s: %w", s.opts.table, err)
	}
	return nil
}

// Accept inserts candidate. It returns false when the row already exists.
func (s *SQL) Accept(ctx context.Context, candidate string) (bool, error) {
	if candidate == "" {
		return false, ErrEmptyCandidate
	}
	query, args, err := s.sq.Insert(s.opts.table).
		Columns("id", "claimed_at").
		Values(candidate, s.opts.now().UnixMilli()).
		ToSql()
	if err != nil {
		return false, err
	}

	_, err = s.db.ExecContext(ctx, query, args...)
	if err == nil {
		return true, nil
	}
	if isDuplicate(err) {
		return false, nil
	}
	// Drivers without a typed duplicate error: a row that exists now means
	// the insert lost to an earlier claim.
	if taken, cerr := s.Claimed(ctx, candidate); cerr == nil && taken {
		s.opts.logger.Debug("claim rejected", "table", s.opts.table, "error", err)
		return false, nil
	}
	return false, fmt.Errorf("insert claim: %w", err)
}

// Claimed reports whether candidate has a row.
func (s *SQL) Claimed(ctx context.Context, candidate string) (bool, error) {
	query, args, err := s.sq.Select("COUNT(*)").
		From(s.opts.table).
		Where(squirrel.Eq{"id": candidate}).
		ToSql()
	if err != nil {
		return false, err
	}
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return false, fmt.Errorf("count claims: %w", err)
	}
	return n > 0, nil
}

// Release deletes candidate's row.
func (s *SQL) Release(ctx context.Context, candidate string) error {
	query, args, err := s.sq.Delete(s.opts.table).
		Where(squirrel.Eq{"id": candidate}).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("release claim: %w", err)
	}
	return nil
}

// Close closes the database if the store opened it.
func (s *SQL) Close() error {
	if !s.closer {
		return nil
	}
	return s.db.Close()
}

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}
