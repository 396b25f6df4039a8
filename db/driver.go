package db

// Pluggable driver layer. Each adapter implements Driver and registers
// itself, so OpenWithDriver stays driver-agnostic while each database keeps
// its own DSN construction.

import (
	"fmt"
	"maps"
	"net"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/go-sql-driver/mysql"
)

// ─────────────────────────────────────────────────────────────────────────────
// Driver interface
// ─────────────────────────────────────────────────────────────────────────────

// Driver encapsulates database-specific behaviour:
//   - building a DSN from structured options
//   - the bind-variable style statements must be rebound to
//   - providing a driver-specific ErrorMapper
type Driver interface {
	// Name returns the name passed to sql.Register, e.g. "postgres", "mysql".
	Name() string

	// DSN converts structured options into a driver DSN string.
	DSN(opts DriverOptions) (string, error)

	// Placeholder reports the driver's bind-variable style.
	Placeholder() PlaceholderStyle

	// ErrorMapper returns a mapper tuned to this driver's error types.
	ErrorMapper() ErrorMapper
}

// DriverOptions carries the most common connection parameters in a structured,
// driver-agnostic form. DSN() converts them to the driver's native format.
type DriverOptions struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string // "disable", "require", "verify-full", etc.
	// Extra holds driver-specific key/value parameters.
	Extra map[string]string
}

// ─────────────────────────────────────────────────────────────────────────────
// Driver registry
// ─────────────────────────────────────────────────────────────────────────────

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]Driver)
)

// RegisterDriver adds a Driver to the global registry.
// Panics if a driver with the same name is already registered (use ReplaceDriver
// to override).
func RegisterDriver(d Driver) {
	driversMu.Lock()
	defer driversMu.Unlock()
	if _, ok := drivers[d.Name()]; ok {
		panic(fmt.Sprintf("sqlorm/db: driver %q already registered", d.Name()))
	}
	drivers[d.Name()] = d
}

// ReplaceDriver upserts a driver in the registry (no panic on collision).
func ReplaceDriver(d Driver) {
	driversMu.Lock()
	defer driversMu.Unlock()
	drivers[d.Name()] = d
}

// LookupDriver returns the registered Driver by name or an error.
func LookupDriver(name string) (Driver, error) {
	driversMu.RLock()
	defer driversMu.RUnlock()
	d, ok := drivers[name]
	if !ok {
		return nil, fmt.Errorf("sqlorm/db: driver %q not registered", name)
	}
	return d, nil
}

// OpenWithDriver opens a DB using a registered Driver and structured options,
// removing the need for manual DSN construction. The database/sql driver
// itself must still be linked in with a blank import.
//
//	d, err := db.OpenWithDriver("mysql", db.DriverOptions{
//	    Host: "localhost", Port: 3306,
//	    User: "www-data", Password: "www-data", Database: "awesome",
//	}, db.Config{MaxOpenConns: 10})
func OpenWithDriver(driverName string, driverOpts DriverOptions, cfg Config) (*DB, error) {
	drv, err := LookupDriver(driverName)
	if err != nil {
		return nil, err
	}

	dsn, err := drv.DSN(driverOpts)
	if err != nil {
		return nil, fmt.Errorf("sqlorm/db: DSN construction failed: %w", err)
	}

	cfg.DriverName = drv.Name()
	cfg.DSN = dsn
	if cfg.Placeholder == PlaceholderDefault {
		cfg.Placeholder = drv.Placeholder()
	}

	d, err := Open(cfg)
	if err != nil {
		return nil, err
	}

	d.SetErrorMapper(ChainMapper(drv.ErrorMapper(), DefaultErrorMapper()))
	return d, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// PostgreSQL driver adapter (lib/pq)
// ─────────────────────────────────────────────────────────────────────────────

// PostgresDriver is the built-in lib/pq adapter.
// Import _ "github.com/lib/pq" alongside this to activate.
type PostgresDriver struct{}

func (PostgresDriver) Name() string { return "postgres" }

func (PostgresDriver) DSN(o DriverOptions) (string, error) {
	if o.Host == "" || o.Database == "" {
		return "", fmt.Errorf("postgres driver: Host and Database are required")
	}
	port := o.Port
	if port == 0 {
		port = 5432
	}
	sslMode := o.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	parts := []string{
		"host=" + pqQuote(o.Host),
		"port=" + strconv.Itoa(port),
		"user=" + pqQuote(o.User),
		"password=" + pqQuote(o.Password),
		"dbname=" + pqQuote(o.Database),
		"sslmode=" + pqQuote(sslMode),
	}
	for _, k := range slices.Sorted(maps.Keys(o.Extra)) {
		parts = append(parts, k+"="+pqQuote(o.Extra[k]))
	}
	return strings.Join(parts, " "), nil
}

func (PostgresDriver) Placeholder() PlaceholderStyle { return PlaceholderDollar }
func (PostgresDriver) ErrorMapper() ErrorMapper      { return matchOrPass(mapPQError) }

// pqQuote quotes a key/value connection-string value when it needs it.
func pqQuote(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// ─────────────────────────────────────────────────────────────────────────────
// MySQL driver adapter
// ─────────────────────────────────────────────────────────────────────────────

// MySQLDriver is the built-in go-sql-driver/mysql adapter.
type MySQLDriver struct{}

func (MySQLDriver) Name() string { return "mysql" }

func (MySQLDriver) DSN(o DriverOptions) (string, error) {
	if o.Host == "" || o.Database == "" {
		return "", fmt.Errorf("mysql driver: Host and Database are required")
	}
	port := o.Port
	if port == 0 {
		port = 3306
	}
	mc := mysql.NewConfig()
	mc.User = o.User
	mc.Passwd = o.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(o.Host, strconv.Itoa(port))
	mc.DBName = o.Database
	mc.ParseTime = true
	if len(o.Extra) > 0 {
		mc.Params = maps.Clone(o.Extra)
	}
	return mc.FormatDSN(), nil
}

func (MySQLDriver) Placeholder() PlaceholderStyle { return PlaceholderQuestion }
func (MySQLDriver) ErrorMapper() ErrorMapper      { return matchOrPass(mapMySQLError) }

// ─────────────────────────────────────────────────────────────────────────────
// SQLite driver adapter
// ─────────────────────────────────────────────────────────────────────────────

// SQLiteDriver is the built-in mattn/go-sqlite3 adapter.
type SQLiteDriver struct{}

func (SQLiteDriver) Name() string { return "sqlite3" }

func (SQLiteDriver) DSN(o DriverOptions) (string, error) {
	if o.Database == "" {
		return "", fmt.Errorf("sqlite3 driver: Database (file path) is required")
	}
	dsn := o.Database
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	for _, k := range slices.Sorted(maps.Keys(o.Extra)) {
		dsn += sep + k + "=" + o.Extra[k]
		sep = "&"
	}
	return dsn, nil
}

func (SQLiteDriver) Placeholder() PlaceholderStyle { return PlaceholderQuestion }
func (SQLiteDriver) ErrorMapper() ErrorMapper      { return matchOrPass(mapSQLiteError) }

func init() {
	RegisterDriver(PostgresDriver{})
	RegisterDriver(MySQLDriver{})
	RegisterDriver(SQLiteDriver{})
}

// ─────────────────────────────────────────────────────────────────────────────
// DSNFromEnv: convenience helper for twelve-factor apps
// ─────────────────────────────────────────────────────────────────────────────

// DSNFromEnv looks up the DATABASE_URL environment variable and returns it.
// It does NOT modify any Config; callers set cfg.DSN themselves.
func DSNFromEnv() (string, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		return "", fmt.Errorf("sqlorm/db: DATABASE_URL environment variable not set")
	}
	return dsn, nil
}
