// Package mongodb provides a mongo-driver-backed store.SnapshotStore
// alternative to the postgres and embedded snapshot drivers, plus a
// document-shaped snapshot history collection queryable through
// Store.GetAsOf (spec §4.2). The repository's temporal reads do not use
// it; they replay the event log. Grounded on the
// teacher's common/mmongo.MongoConnection connection-hub shape and
// components/audit/internal/adapters/mongodb/audit's repository
// pattern (collection-per-concern, bson model structs distinct from the
// domain entity).
package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Connection is a hub other types in this package hold onto, the way
// MongoConnection is held by AuditMongoDBRepository.
type Connection struct {
	client   *mongo.Client
	database string
}

// Connect opens a client against uri and pings it, selecting database
// for every collection this package's stores use.
func Connect(ctx context.Context, uri, database string) (*Connection, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongodb: connect: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongodb: ping: %w", err)
	}

	return &Connection{client: client, database: database}, nil
}

func (c *Connection) db() *mongo.Database {
	return c.client.Database(c.database)
}

// Close disconnects the client.
func (c *Connection) Close() error {
	return c.client.Disconnect(context.Background())
}
