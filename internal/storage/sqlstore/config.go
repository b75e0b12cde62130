package sqlstore

import "time"

// Config holds SQL connection settings
type Config struct {
	Driver Driver

	// DSN is a file path for SQLite or a connection URL for Postgres
	DSN string

	// Pool settings
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// SQLiteConfig returns settings for a SQLite database file. SQLite allows a
// single writer, so the pool is capped at one connection.
func SQLiteConfig(path string) Config {
	return Config{
		Driver:          DriverSQLite,
		DSN:             path + "?_busy_timeout=5000&_journal_mode=WAL",
		MaxOpenConns:    1,
		ConnMaxLifetime: time.Hour,
	}
}

// PostgresConfig returns settings for a Postgres connection URL
func PostgresConfig(url string) Config {
	return Config{
		Driver:          DriverPostgres,
		DSN:             url,
		MaxOpenConns:    25,
		ConnMaxLifetime: 5 * time.Minute,
	}
}
