package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/LerianStudio/midaz-flow/internal/model"
	"github.com/LerianStudio/midaz-flow/internal/store"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	snapshotsCollection = "snapshots"
	historyCollection   = "snapshot_history"
)

// snapshotID is the composite key every document in this package is
// addressed by, the bson analogue of AuditID's organization/ledger
// composite.
type snapshotID struct {
	Edition string `bson:"edition"`
	Domain  string `bson:"domain"`
	Root    string `bson:"root"`
}

type snapshotDoc struct {
	ID        snapshotID `bson:"_id"`
	Sequence  uint32     `bson:"sequence"`
	TypeURL   string     `bson:"type_url"`
	Bytes     []byte     `bson:"bytes"`
	UpdatedAt time.Time  `bson:"updated_at"`
}

func (d snapshotDoc) toModel() model.Snapshot {
	return model.Snapshot{Sequence: d.Sequence, State: model.Payload{TypeURL: d.TypeURL, Bytes: d.Bytes}}
}

// Store is a mongo-backed store.SnapshotStore: document-shaped state
// blobs in snapshotsCollection (latest-wins, per (edition, domain,
// root)), plus an append-only historyCollection that GetAsOf queries,
// something postgres/embedded don't keep since they discard superseded
// snapshots on Put. internal/repository's temporal reads do not call
// GetAsOf; they replay the event log.
type Store struct {
	conn *Connection
}

// NewStore wraps an already-open Connection.
func NewStore(conn *Connection) *Store {
	return &Store{conn: conn}
}

var _ store.SnapshotStore = (*Store)(nil)

func id(edition, domain string, root uuid.UUID) snapshotID {
	return snapshotID{Edition: edition, Domain: domain, Root: root.String()}
}

func (s *Store) Get(ctx context.Context, edition, domain string, root uuid.UUID) (*model.Snapshot, error) {
	var doc snapshotDoc

	err := s.conn.db().Collection(snapshotsCollection).
		FindOne(ctx, bson.M{"_id": id(edition, domain, root)}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("mongodb: get snapshot: %w", err)
	}

	snap := doc.toModel()

	return &snap, nil
}

func (s *Store) Put(ctx context.Context, edition, domain string, root uuid.UUID, snap model.Snapshot) error {
	key := id(edition, domain, root)
	doc := snapshotDoc{ID: key, Sequence: snap.Sequence, TypeURL: snap.State.TypeURL, Bytes: snap.State.Bytes, UpdatedAt: time.Now().UTC()}

	_, err := s.conn.db().Collection(snapshotsCollection).ReplaceOne(ctx, bson.M{"_id": key}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongodb: put snapshot: %w", err)
	}

	if _, err := s.conn.db().Collection(historyCollection).InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("mongodb: append snapshot history: %w", err)
	}

	return nil
}

func (s *Store) Delete(ctx context.Context, edition, domain string, root uuid.UUID) error {
	_, err := s.conn.db().Collection(snapshotsCollection).DeleteOne(ctx, bson.M{"_id": id(edition, domain, root)})
	if err != nil {
		return fmt.Errorf("mongodb: delete snapshot: %w", err)
	}
	// historyCollection is intentionally left untouched: an audit trail
	// of superseded snapshot generations outlives the deletion of the
	// current one.

	return nil
}

// GetAsOf returns the latest snapshot recorded at or before asOf, the
// document-store equivalent of internal/repository.Repository's
// GetTemporalByTime but sourced from historyCollection's retained
// generations rather than replaying the event log.
func (s *Store) GetAsOf(ctx context.Context, edition, domain string, root uuid.UUID, asOf time.Time) (*model.Snapshot, error) {
	filter := bson.M{
		"_id.edition": edition,
		"_id.domain":  domain,
		"_id.root":    root.String(),
		"updated_at":  bson.M{"$lte": asOf},
	}

	opts := options.FindOne().SetSort(bson.D{{Key: "updated_at", Value: -1}})

	var doc snapshotDoc

	err := s.conn.db().Collection(historyCollection).FindOne(ctx, filter, opts).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("mongodb: get snapshot as of: %w", err)
	}

	snap := doc.toModel()

	return &snap, nil
}
