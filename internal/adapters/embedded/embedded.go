// Package embedded provides a dependency-free EventStore, SnapshotStore
// and checkpoint.Store backed by a single go.etcd.io/bbolt file, for
// the `run-standalone` CLI mode of spec §6 where no external database
// is available. Grounded on cuemby-warren's pkg/storage.BoltStore:
// one bucket per concern, JSON-marshaled values, CreateBucketIfNotExists
// at open time.
package embedded

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/LerianStudio/midaz-flow/internal/model"
	"github.com/LerianStudio/midaz-flow/pkg/merr"
	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketEvents      = []byte("events")
	bucketSnapshots   = []byte("snapshots")
	bucketCorrelation = []byte("correlation")
	bucketEditions    = []byte("editions")
)

// Store is a bbolt-backed EventStore + SnapshotStore pair sharing one
// database file, the embedded equivalent of the teacher's postgres
// adapter for standalone deployments.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if absent) a bbolt database at path and
// provisions its buckets.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("embedded: open %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketEvents, bucketSnapshots, bucketCorrelation, bucketEditions} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("embedded: provision buckets: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database file.
func (s *Store) Close() error {
	return s.db.Close()
}

func aggregatePrefix(edition, domain string, root uuid.UUID) []byte {
	return []byte(fmt.Sprintf("%s\x00%s\x00%s\x00", edition, domain, root))
}

func eventKey(edition, domain string, root uuid.UUID, seq uint32) []byte {
	key := aggregatePrefix(edition, domain, root)

	var seqBytes [4]byte
	binary.BigEndian.PutUint32(seqBytes[:], seq)

	return append(key, seqBytes[:]...)
}

func snapshotKey(edition, domain string, root uuid.UUID) []byte {
	return []byte(fmt.Sprintf("%s\x00%s\x00%s", edition, domain, root))
}

func correlationKey(edition, domain, correlationID string, root uuid.UUID) []byte {
	return []byte(fmt.Sprintf("%s\x00%s\x00%s\x00%s", edition, domain, correlationID, root))
}

type storedPage struct {
	Sequence  uint32
	Force     bool
	CreatedAt time.Time
	Event     model.Payload
	External  *model.ExternalPayloadRef
}

func toStored(p model.EventPage) storedPage {
	return storedPage{Sequence: p.Sequence, Force: p.Force, CreatedAt: p.CreatedAt, Event: p.Event, External: p.ExternalPayloadRef}
}

func fromStored(p storedPage) model.EventPage {
	return model.EventPage{Sequence: p.Sequence, Force: p.Force, CreatedAt: p.CreatedAt, Event: p.Event, ExternalPayloadRef: p.External}
}

// Append implements store.EventStore.
func (s *Store) Append(_ context.Context, edition, domain string, root uuid.UUID, pages []model.EventPage, correlationID string) ([]model.EventPage, error) {
	if len(pages) == 0 {
		return nil, nil
	}

	var out []model.EventPage

	err := s.db.Update(func(tx *bolt.Tx) error {
		eb := tx.Bucket(bucketEvents)

		next, err := nextSequenceTx(eb, edition, domain, root)
		if err != nil {
			return err
		}

		cursor := next
		assigned := make([]model.EventPage, len(pages))

		for i, p := range pages {
			if p.Force {
				p.Sequence = cursor
			} else if p.Sequence != cursor {
				return merr.SequenceConflictError{EntityType: domain, Expected: cursor, Actual: next}
			}

			if p.CreatedAt.IsZero() {
				p.CreatedAt = time.Now().UTC()
			}

			assigned[i] = p
			cursor++
		}

		for _, p := range assigned {
			data, err := json.Marshal(toStored(p))
			if err != nil {
				return fmt.Errorf("embedded: marshal page: %w", err)
			}

			if err := eb.Put(eventKey(edition, domain, root, p.Sequence), data); err != nil {
				return err
			}
		}

		if correlationID != "" {
			cb := tx.Bucket(bucketCorrelation)
			if err := cb.Put(correlationKey(edition, domain, correlationID, root), nil); err != nil {
				return err
			}
		}

		out = assigned

		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

func (s *Store) Read(ctx context.Context, edition, domain string, root uuid.UUID) ([]model.EventPage, error) {
	return s.ReadFrom(ctx, edition, domain, root, 0)
}

func (s *Store) ReadFrom(_ context.Context, edition, domain string, root uuid.UUID, fromSeq uint32) ([]model.EventPage, error) {
	var out []model.EventPage

	err := s.db.View(func(tx *bolt.Tx) error {
		eb := tx.Bucket(bucketEvents)
		prefix := aggregatePrefix(edition, domain, root)
		seek := eventKey(edition, domain, root, fromSeq)

		c := eb.Cursor()
		for k, v := c.Seek(seek); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
			var sp storedPage
			if err := json.Unmarshal(v, &sp); err != nil {
				return fmt.Errorf("embedded: unmarshal page: %w", err)
			}

			out = append(out, fromStored(sp))
		}

		return nil
	})

	return out, err
}

func (s *Store) ReadRange(_ context.Context, edition, domain string, root uuid.UUID, fromSeq, toSeq uint32) ([]model.EventPage, error) {
	var out []model.EventPage

	err := s.db.View(func(tx *bolt.Tx) error {
		eb := tx.Bucket(bucketEvents)
		prefix := aggregatePrefix(edition, domain, root)
		seek := eventKey(edition, domain, root, fromSeq)

		c := eb.Cursor()
		for k, v := c.Seek(seek); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
			var sp storedPage
			if err := json.Unmarshal(v, &sp); err != nil {
				return fmt.Errorf("embedded: unmarshal page: %w", err)
			}

			if sp.Sequence >= toSeq {
				break
			}

			out = append(out, fromStored(sp))
		}

		return nil
	})

	return out, err
}

func (s *Store) ReadUntilTimestamp(_ context.Context, edition, domain string, root uuid.UUID, ts time.Time) ([]model.EventPage, error) {
	var out []model.EventPage

	err := s.db.View(func(tx *bolt.Tx) error {
		eb := tx.Bucket(bucketEvents)
		prefix := aggregatePrefix(edition, domain, root)

		c := eb.Cursor()
		for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
			var sp storedPage
			if err := json.Unmarshal(v, &sp); err != nil {
				return fmt.Errorf("embedded: unmarshal page: %w", err)
			}

			if !sp.CreatedAt.After(ts) {
				out = append(out, fromStored(sp))
			}
		}

		return nil
	})

	return out, err
}

func nextSequenceTx(eb *bolt.Bucket, edition, domain string, root uuid.UUID) (uint32, error) {
	prefix := aggregatePrefix(edition, domain, root)

	c := eb.Cursor()

	var last []byte

	for k, _ := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, _ = c.Next() {
		last = k
	}

	if last == nil {
		return 0, nil
	}

	seq := binary.BigEndian.Uint32(last[len(last)-4:])

	return seq + 1, nil
}

func (s *Store) NextSequence(_ context.Context, edition, domain string, root uuid.UUID) (uint32, error) {
	var next uint32

	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		next, err = nextSequenceTx(tx.Bucket(bucketEvents), edition, domain, root)
		return err
	})

	return next, err
}

func (s *Store) FindByCorrelation(_ context.Context, edition, domain, correlationID string) ([]uuid.UUID, error) {
	var out []uuid.UUID

	prefix := []byte(fmt.Sprintf("%s\x00%s\x00%s\x00", edition, domain, correlationID))

	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketCorrelation).Cursor()

		for k, _ := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, _ = c.Next() {
			rootStr := string(k[len(prefix):])

			root, err := uuid.Parse(rootStr)
			if err != nil {
				continue
			}

			out = append(out, root)
		}

		return nil
	})

	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })

	return out, err
}

func (s *Store) ListRoots(_ context.Context, edition, domain string) ([]uuid.UUID, error) {
	seen := make(map[uuid.UUID]struct{})
	prefix := []byte(fmt.Sprintf("%s\x00%s\x00", edition, domain))

	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketEvents).Cursor()

		for k, _ := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, _ = c.Next() {
			rest := k[len(prefix):]

			idx := indexOfNull(rest)
			if idx < 0 {
				continue
			}

			root, err := uuid.Parse(string(rest[:idx]))
			if err != nil {
				continue
			}

			seen[root] = struct{}{}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]uuid.UUID, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })

	return out, nil
}

func (s *Store) ListDomains(_ context.Context, edition string) ([]string, error) {
	seen := make(map[string]struct{})
	prefix := []byte(edition + "\x00")

	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketEvents).Cursor()

		for k, _ := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, _ = c.Next() {
			rest := k[len(prefix):]

			idx := indexOfNull(rest)
			if idx < 0 {
				continue
			}

			seen[string(rest[:idx])] = struct{}{}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(seen))
	for d := range seen {
		out = append(out, d)
	}

	sort.Strings(out)

	return out, nil
}

// Get implements store.SnapshotStore.
func (s *Store) Get(_ context.Context, edition, domain string, root uuid.UUID) (*model.Snapshot, error) {
	var snap *model.Snapshot

	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketSnapshots).Get(snapshotKey(edition, domain, root))
		if data == nil {
			return nil
		}

		var s model.Snapshot
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("embedded: unmarshal snapshot: %w", err)
		}

		snap = &s

		return nil
	})

	return snap, err
}

func (s *Store) Put(_ context.Context, edition, domain string, root uuid.UUID, snap model.Snapshot) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(snap)
		if err != nil {
			return fmt.Errorf("embedded: marshal snapshot: %w", err)
		}

		return tx.Bucket(bucketSnapshots).Put(snapshotKey(edition, domain, root), data)
	})
}

func (s *Store) Delete(_ context.Context, edition, domain string, root uuid.UUID) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSnapshots).Delete(snapshotKey(edition, domain, root))
	})
}

func hasPrefix(k, prefix []byte) bool {
	if len(k) < len(prefix) {
		return false
	}

	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}

	return true
}

func indexOfNull(b []byte) int {
	for i, c := range b {
		if c == 0 {
			return i
		}
	}

	return -1
}
