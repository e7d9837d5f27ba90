package db

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	// use the sqlite db driver.
	_ "github.com/mattn/go-sqlite3"
)

//go:embed base_sqlite.sql
var baseSQLite string

//go:embed base_mysql.sql
var baseMySQL string

// These constants name the supported drivers.
const (
	DriverSQLite = "sqlite3"
	DriverMySQL  = "mysql"
)

const dateLayout = "2006-01-02"

// Config selects and locates the backing database.
type Config struct {
	Driver string
	// Path is the sqlite file.
	Path string
	// Host, Port, User, Password and Name locate a mysql server.
	Host     string
	Port     int
	User     string
	Password string
	Name     string
}

// dialect holds the few statements that differ between the drivers.
type dialect struct {
	name string
	// forUpdate is appended to a SELECT that must lock the rows it reads. SQLite takes the
	// database write lock at BEGIN instead (_txlock=immediate), so it needs no suffix.
	forUpdate string
	schema    string
}

func (d dialect) concat(a, b string) string {
	if d.name == DriverMySQL {
		return fmt.Sprintf("CONCAT(%s, %s)", a, b)
	}

	return fmt.Sprintf("(%s || %s)", a, b)
}

// Database manages the db connection. It holds no cached rows: every read goes to the store.
type Database struct {
	conn    *sql.DB
	dialect dialect
}

// NewDatabase connects to the configured database and initializes the structure if not present.
func NewDatabase(ctx context.Context, cfg Config) (*Database, error) {
	var (
		conn *sql.DB
		d    dialect
		err  error
	)

	switch cfg.Driver {
	case DriverSQLite, "sqlite", "":
		d = dialect{name: DriverSQLite, schema: baseSQLite}

		conn, err = sql.Open(DriverSQLite, SQLiteDSN(cfg.Path))
		if err != nil {
			return nil, fmt.Errorf("error connecting to sqlite db at %s: %w", cfg.Path, err)
		}
	case DriverMySQL:
		d = dialect{name: DriverMySQL, forUpdate: " FOR UPDATE", schema: baseMySQL}

		conn, err = sql.Open(DriverMySQL, MySQLDSN(cfg))
		if err != nil {
			return nil, fmt.Errorf("error connecting to mysql db at %s:%d: %w", cfg.Host, cfg.Port, err)
		}

		conn.SetMaxOpenConns(10)
		conn.SetMaxIdleConns(5)
		conn.SetConnMaxLifetime(5 * time.Minute)
	default:
		return nil, fmt.Errorf("unsupported db driver %q", cfg.Driver)
	}

	database := Database{conn: conn, dialect: d}

	if err = database.initialize(ctx); err != nil {
		conn.Close()

		return nil, err
	}

	log.Debug().Str("driver", d.name).Msg("database ready")

	return &database, nil
}

// SQLiteDSN returns the connection string for a sqlite file. Foreign keys are needed for the
// acronym cascade, and immediate transactions serialize writers the way FOR UPDATE does on mysql.
func SQLiteDSN(path string) string {
	return path + "?_foreign_keys=on&_busy_timeout=5000&_txlock=immediate&_journal_mode=WAL"
}

// MySQLDSN builds the connection string for a mysql server.
func MySQLDSN(cfg Config) string {
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	mc.DBName = cfg.Name
	mc.ParseTime = true
	mc.Loc = time.UTC
	// report matched rather than changed rows so guarded updates can tell "no such row"
	// apart from "nothing to change"
	mc.ClientFoundRows = true

	return mc.FormatDSN()
}

func (d *Database) initialize(ctx context.Context) error {
	// run idempotent setup sql to create empty tables if they don't exist
	for _, stmt := range splitStatements(d.dialect.schema) {
		if _, err := d.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("error running base sql: %w", err)
		}
	}

	return nil
}

// splitStatements splits a schema script on statement-terminating semicolons.
// The schema files contain no semicolons inside literals.
func splitStatements(script string) []string {
	var stmts []string

	for _, part := range strings.Split(script, ";") {
		if stmt := strings.TrimSpace(part); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}

	return stmts
}

// Driver returns the name of the driver in use.
func (d *Database) Driver() string {
	return d.dialect.name
}

// Ping checks that the database is reachable.
func (d *Database) Ping(ctx context.Context) error {
	return d.conn.PingContext(ctx)
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.conn.Close()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func formatDate(t time.Time) string {
	return t.Format(dateLayout)
}
