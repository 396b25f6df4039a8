// Package config loads application settings from YAML. A defaults file is
// merged with an optional override file; values in the override win leaf by
// leaf, so an override only needs to carry the keys it changes.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"net"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Skryldev/sql-orm/db"
)

// Config is the merged application configuration.
type Config struct {
	DB      DB      `yaml:"db"`
	Session Session `yaml:"session"`
}

// DB configures the connection pool and how repositories write.
type DB struct {
	// Driver is a name registered with db.RegisterDriver.
	Driver string `yaml:"driver"`
	// DSN, when set, is used as is and the structured fields are ignored.
	DSN      string            `yaml:"dsn"`
	Host     string            `yaml:"host"`
	Port     int               `yaml:"port"`
	User     string            `yaml:"user"`
	Password string            `yaml:"password"`
	Database string            `yaml:"database"`
	SSLMode  string            `yaml:"ssl_mode"`
	Params   map[string]string `yaml:"params"`

	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	Timeout         time.Duration `yaml:"timeout"`

	// Autocommit selects autocommit writes (true) or one explicit
	// transaction per write.
	Autocommit bool `yaml:"autocommit"`
	// StrictWrites turns rows-affected mismatches into errors.
	StrictWrites bool `yaml:"strict_writes"`
}

// Session holds the cookie settings of the web front end.
type Session struct {
	Secret string `yaml:"secret"`
}

// Load reads defaultPath, merges overridePath on top of it when that file
// exists, and applies the DATABASE_URL environment variable to DB.DSN.
// An empty overridePath is skipped.
func Load(defaultPath, overridePath string) (*Config, error) {
	base, err := readMap(defaultPath)
	if err != nil {
		return nil, err
	}
	if overridePath != "" {
		override, err := readMap(overridePath)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			base = Merge(base, override)
		}
	}

	cfg, err := decode(base)
	if err != nil {
		return nil, err
	}
	if dsn, err := db.DSNFromEnv(); err == nil {
		cfg.DB.Driver, cfg.DB.DSN = driverFromURL(cfg.DB.Driver, dsn)
	}
	return cfg, nil
}

// driverFromURL picks the driver named by the scheme of a DATABASE_URL.
// lib/pq takes the URL as is; mysql and sqlite3 get their native DSN with
// the scheme stripped. A URL without a known scheme keeps driver.
func driverFromURL(driver, rawURL string) (string, string) {
	scheme, rest, ok := strings.Cut(rawURL, "://")
	if !ok {
		return driver, rawURL
	}
	switch strings.ToLower(scheme) {
	case "postgres", "postgresql":
		return "postgres", rawURL
	case "mysql":
		return "mysql", rest
	case "sqlite3", "sqlite":
		return "sqlite3", rest
	}
	return driver, rawURL
}

// Parse decodes a single YAML document into a Config. Defaults for unset
// keys are the Go zero values.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	return &cfg, nil
}

// Merge returns defaults with override applied. Nested maps are merged
// recursively; any other override value replaces the default. Keys present
// only in override are added, so an override file may set keys the defaults
// leave out (dsn, params). Neither input is modified.
func Merge(defaults, override map[string]any) map[string]any {
	out := make(map[string]any, len(defaults))
	for k, v := range defaults {
		out[k] = v
	}
	for k, ov := range override {
		dm, dIsMap := out[k].(map[string]any)
		om, oIsMap := ov.(map[string]any)
		if dIsMap && oIsMap {
			out[k] = Merge(dm, om)
			continue
		}
		out[k] = ov
	}
	return out
}

func readMap(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	m := make(map[string]any)
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return m, nil
}

func decode(m map[string]any) (*Config, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	if err := enc.Encode(m); err != nil {
		return nil, fmt.Errorf("config: encode: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("config: encode: %w", err)
	}
	return Parse(buf.Bytes())
}

// DriverOptions returns the structured connection parameters.
func (c DB) DriverOptions() db.DriverOptions {
	return db.DriverOptions{
		Host:     c.Host,
		Port:     c.Port,
		User:     c.User,
		Password: c.Password,
		Database: c.Database,
		SSLMode:  c.SSLMode,
		Extra:    c.Params,
	}
}

// PoolConfig returns the pool settings. DSN and DriverName are filled in
// only when an explicit DSN is configured.
func (c DB) PoolConfig(hooks ...db.Hook) db.Config {
	cfg := db.Config{
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
		ConnMaxIdleTime: c.ConnMaxIdleTime,
		DefaultTimeout:  c.Timeout,
		Hooks:           hooks,
	}
	if c.DSN != "" {
		cfg.DSN = c.DSN
		cfg.DriverName = c.Driver
	}
	return cfg
}

// Open opens the pool described by c, through the driver registry unless an
// explicit DSN is configured.
func (c DB) Open(hooks ...db.Hook) (*db.DB, error) {
	if c.Driver == "" {
		return nil, errors.New("config: db.driver is required")
	}
	if c.DSN != "" {
		return db.Open(c.PoolConfig(hooks...))
	}
	return db.OpenWithDriver(c.Driver, c.DriverOptions(), c.PoolConfig(hooks...))
}

// MigrateURL returns the database URL golang-migrate expects for c: the
// driver name as scheme followed by the driver's own connection string.
// A configured DSN that already carries a scheme is returned unchanged.
func (c DB) MigrateURL() (string, error) {
	if c.Driver == "" {
		return "", errors.New("config: db.driver is required")
	}
	if strings.Contains(c.DSN, "://") {
		return c.DSN, nil
	}
	if c.DSN != "" {
		return c.Driver + "://" + c.DSN, nil
	}
	if c.Driver == "postgres" {
		return c.postgresURL()
	}
	d, err := db.LookupDriver(c.Driver)
	if err != nil {
		return "", fmt.Errorf("config: %w", err)
	}
	opts := c.DriverOptions()
	if c.Driver == "mysql" {
		// migration files hold several statements each
		opts.Extra = maps.Clone(opts.Extra)
		if opts.Extra == nil {
			opts.Extra = make(map[string]string)
		}
		opts.Extra["multiStatements"] = "true"
	}
	dsn, err := d.DSN(opts)
	if err != nil {
		return "", fmt.Errorf("config: %w", err)
	}
	return c.Driver + "://" + dsn, nil
}

// postgresURL renders the URL form of the structured settings; lib/pq's
// key=value form is not accepted by golang-migrate.
func (c DB) postgresURL() (string, error) {
	if c.Host == "" || c.Database == "" {
		return "", errors.New("config: postgres needs db.host and db.database")
	}
	port := c.Port
	if port == 0 {
		port = 5432
	}
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	q := url.Values{"sslmode": {sslMode}}
	for _, k := range slices.Sorted(maps.Keys(c.Params)) {
		q.Set(k, c.Params[k])
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(port)),
		Path:     "/" + c.Database,
		RawQuery: q.Encode(),
	}
	return u.String(), nil
}
