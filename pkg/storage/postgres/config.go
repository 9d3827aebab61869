package postgres

import "time"

const (
	defaultMaxConns     = 25
	defaultMinConns     = 5
	defaultConnLifetime = 5 * time.Minute
)

// Config holds connection and behavior settings for the usage store.
type Config struct {
	// DSN is the connection string, e.g.
	// "postgres://kirogate:secret@db:5432/kirogate?sslmode=require".
	DSN string

	// MaxConns caps the pool. Usage writes are short inserts off the
	// request path, so the pool stays small relative to request
	// concurrency.
	MaxConns int32

	// MinConns keeps idle connections warm between write bursts.
	MinConns int32

	// MaxConnLifetime bounds how long a connection is reused before the
	// pool replaces it.
	MaxConnLifetime time.Duration

	// MigrateOnStart applies embedded schema migrations when the store
	// opens.
	MigrateOnStart bool
}

func (c *Config) defaults() {
	if c.MaxConns == 0 {
		c.MaxConns = defaultMaxConns
	}
	if c.MinConns == 0 {
		c.MinConns = defaultMinConns
	}
	if c.MaxConnLifetime == 0 {
		c.MaxConnLifetime = defaultConnLifetime
	}
}
