package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/LerianStudio/midaz-flow/internal/checkpoint"
	"github.com/jackc/pgx/v5"
)

// CheckpointStore is a postgres-backed checkpoint.Store sharing conn
// with Store, an alternative to internal/adapters/redis's checkpoint
// store for deployments that would rather not run a second datastore
// just for consumer offsets.
type CheckpointStore struct {
	conn *Connection
}

// NewCheckpointStore wraps an already-open Connection.
func NewCheckpointStore(conn *Connection) *CheckpointStore {
	return &CheckpointStore{conn: conn}
}

var _ checkpoint.Store = (*CheckpointStore)(nil)

func (c *CheckpointStore) Get(ctx context.Context, key checkpoint.Key) (uint32, bool, error) {
	var seq uint32

	err := c.conn.pool.QueryRow(ctx,
		`SELECT sequence FROM checkpoints WHERE subscriber = $1 AND domain = $2 AND root = $3`,
		key.Subscriber, key.Domain, key.Root,
	).Scan(&seq)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}

	if err != nil {
		return 0, false, fmt.Errorf("postgres: query checkpoint: %w", err)
	}

	return seq, true, nil
}

// Advance is a single upsert guarded by a WHERE clause so a
// lower-or-equal seq never regresses the stored value, postgres's
// equivalent of the embedded adapter's same-transaction compare.
func (c *CheckpointStore) Advance(ctx context.Context, key checkpoint.Key, seq uint32) (bool, error) {
	tag, err := c.conn.pool.Exec(ctx, `
INSERT INTO checkpoints (subscriber, domain, root, sequence)
VALUES ($1, $2, $3, $4)
ON CONFLICT (subscriber, domain, root) DO UPDATE
	SET sequence = EXCLUDED.sequence
	WHERE checkpoints.sequence < EXCLUDED.sequence
`, key.Subscriber, key.Domain, key.Root, seq)
	if err != nil {
		return false, fmt.Errorf("postgres: advance checkpoint: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}
