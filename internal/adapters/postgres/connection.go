// Package postgres provides a pgx-backed EventStore and SnapshotStore
// (spec §4.1, §4.2), the production storage driver. Grounded on the
// teacher's common/mpostgres.PostgresConnection — a small connection
// hub a repository type holds onto and calls GetDB/GetPool through —
// generalized from database/sql-over-pgx-stdlib to pgxpool directly,
// since this module has no dbresolver/golang-migrate dependency to
// reuse and those aren't otherwise exercised anywhere in SPEC_FULL.md.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connection wraps a pgxpool.Pool the way mpostgres.PostgresConnection
// wraps a dbresolver.DB: a single place a caller opens once and shares
// across every table-specific store built on top of it.
type Connection struct {
	pool *pgxpool.Pool
}

// Connect opens a pool against dsn and provisions the schema this
// adapter's Store/SnapshotStore need.
func Connect(ctx context.Context, dsn string) (*Connection, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	conn := &Connection{pool: pool}

	if err := conn.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return conn, nil
}

// Pool exposes the underlying pgxpool.Pool.
func (c *Connection) Pool() *pgxpool.Pool { return c.pool }

// Close releases the pool.
func (c *Connection) Close() error {
	c.pool.Close()
	return nil
}

// migrate provisions event_pages, snapshots and checkpoints tables.
// Inline DDL rather than the teacher's golang-migrate + migrations/
// directory: this module ships as a single Go binary with no adjacent
// migrations directory to embed, and CREATE TABLE IF NOT EXISTS is
// idempotent enough for the append-only schema below.
func (c *Connection) migrate(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS event_pages (
	edition         text        NOT NULL,
	domain          text        NOT NULL,
	root            uuid        NOT NULL,
	sequence        integer     NOT NULL,
	created_at      timestamptz NOT NULL,
	type_url        text        NOT NULL,
	bytes           bytea,
	external_uri    text,
	external_size   bigint,
	correlation_id  text,
	PRIMARY KEY (edition, domain, root, sequence)
);

CREATE INDEX IF NOT EXISTS event_pages_correlation_idx
	ON event_pages (edition, domain, correlation_id, root)
	WHERE correlation_id IS NOT NULL AND correlation_id != '';

CREATE INDEX IF NOT EXISTS event_pages_created_at_idx
	ON event_pages (edition, domain, root, created_at);

CREATE TABLE IF NOT EXISTS snapshots (
	edition    text        NOT NULL,
	domain     text        NOT NULL,
	root       uuid        NOT NULL,
	sequence   integer     NOT NULL,
	type_url   text        NOT NULL,
	bytes      bytea,
	updated_at timestamptz NOT NULL,
	PRIMARY KEY (edition, domain, root)
);

CREATE TABLE IF NOT EXISTS checkpoints (
	subscriber text    NOT NULL,
	domain     text    NOT NULL,
	root       uuid    NOT NULL,
	sequence   integer NOT NULL,
	PRIMARY KEY (subscriber, domain, root)
);
`

	if _, err := c.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}

	return nil
}
