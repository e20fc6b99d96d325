package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog/log"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrations embed.FS

// Dialect identifies the SQL flavour behind a DB handle.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// DB is a connection pool tagged with its dialect.
type DB struct {
	*sql.DB
	Dialect Dialect
}

// Target is a parsed DATABASE_URL.
type Target struct {
	Driver  string
	DSN     string
	Dialect Dialect
}

// ParseURL turns a DATABASE_URL into a driver name and DSN.
//
//	postgresql://user:pw@host/db  -> pgx
//	postgres://user:pw@host/db    -> pgx (legacy alias)
//	sqlite:///meals.db            -> sqlite, relative path meals.db
//	sqlite:////var/lib/meals.db   -> sqlite, absolute path
//	sqlite://:memory:             -> sqlite, in-memory
//	meals.db                      -> sqlite
func ParseURL(raw string) (Target, error) {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "":
		return Target{}, errors.New("empty database url")
	case strings.HasPrefix(raw, "postgresql://"), strings.HasPrefix(raw, "postgres://"):
		dsn := "postgresql://" + strings.TrimPrefix(strings.TrimPrefix(raw, "postgresql://"), "postgres://")
		return Target{Driver: "pgx", DSN: dsn, Dialect: DialectPostgres}, nil
	case strings.HasPrefix(raw, "sqlite://"):
		path := strings.TrimPrefix(strings.TrimPrefix(raw, "sqlite://"), "/")
		if path == "" {
			return Target{}, fmt.Errorf("database url %q has no path", raw)
		}
		return Target{Driver: "sqlite", DSN: sqliteDSN(path), Dialect: DialectSQLite}, nil
	case strings.Contains(raw, "://"):
		return Target{}, fmt.Errorf("unsupported database url scheme in %q", raw)
	default:
		return Target{Driver: "sqlite", DSN: sqliteDSN(raw), Dialect: DialectSQLite}, nil
	}
}

func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"
}

// New creates a new database connection pool from a DATABASE_URL.
func New(ctx context.Context, databaseURL string) (*DB, error) {
	target, err := ParseURL(databaseURL)
	if err != nil {
		return nil, err
	}

	conn, err := sql.Open(target.Driver, target.DSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	if target.Dialect == DialectSQLite {
		// One writer at a time; also keeps a :memory: database on a single connection.
		conn.SetMaxOpenConns(1)
	} else {
		conn.SetMaxOpenConns(10)
		conn.SetConnMaxIdleTime(5 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err = conn.PingContext(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	return &DB{DB: conn, Dialect: target.Dialect}, nil
}

var migrateMu sync.Mutex

// Migrate applies the embedded migrations for the handle's dialect.
func Migrate(ctx context.Context, db *DB) error {
	// goose keeps its configuration in package globals.
	migrateMu.Lock()
	defer migrateMu.Unlock()

	goose.SetBaseFS(migrations)
	goose.SetLogger(gooseLogger{})

	dialect, dir := "sqlite3", "migrations/sqlite"
	if db.Dialect == DialectPostgres {
		dialect, dir = "postgres", "migrations/postgres"
	}
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db.DB, dir); err != nil {
		return fmt.Errorf("migration error: %w", err)
	}
	return nil
}

// Rebind rewrites ? placeholders into the handle's native form.
func (db *DB) Rebind(query string) string {
	return Rebind(db.Dialect, query)
}

// Rebind rewrites ? placeholders as $1, $2, ... for PostgreSQL and leaves
// SQLite queries untouched.
func Rebind(dialect Dialect, query string) string {
	if dialect != DialectPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// IsUniqueViolation reports whether err is a UNIQUE constraint failure.
func IsUniqueViolation(err error) bool {
	if isSQLiteConstraint(err, sqlite3.SQLITE_CONSTRAINT_UNIQUE, "UNIQUE constraint failed") {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// IsForeignKeyViolation reports whether err is a FOREIGN KEY constraint failure.
func IsForeignKeyViolation(err error) bool {
	if isSQLiteConstraint(err, sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY, "FOREIGN KEY constraint failed") {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}

// isSQLiteConstraint matches the extended result code, or the primary
// SQLITE_CONSTRAINT code plus message when extended codes are off.
func isSQLiteConstraint(err error, extended int, marker string) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	if sqliteErr.Code() == extended {
		return true
	}
	return sqliteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(sqliteErr.Error(), marker)
}

type gooseLogger struct{}

func (gooseLogger) Printf(format string, v ...interface{}) {
	log.Info().Str("component", "migrations").Msgf(strings.TrimSpace(format), v...)
}

func (gooseLogger) Fatalf(format string, v ...interface{}) {
	log.Fatal().Str("component", "migrations").Msgf(strings.TrimSpace(format), v...)
}
