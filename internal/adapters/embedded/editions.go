package embedded

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/LerianStudio/midaz-flow/internal/model"
	"github.com/LerianStudio/midaz-flow/pkg/merr"
	bolt "go.etcd.io/bbolt"
)

// EditionStore persists model.Edition metadata across process restarts,
// the missing piece edition.Manager's pure in-memory map leaves for
// `create-edition`: a CLI invocation that registers an edition and
// exits needs that registration to survive into the next invocation
// that opens the same embedded database.
type EditionStore struct {
	db *Store
}

// OpenEditionStore wraps a Store already holding the editions bucket
// (provisioned by Open) as an EditionStore.
func OpenEditionStore(s *Store) *EditionStore {
	return &EditionStore{db: s}
}

// Put persists ed, overwriting any prior edition of the same name.
func (e *EditionStore) Put(_ context.Context, ed model.Edition) error {
	data, err := json.Marshal(ed)
	if err != nil {
		return fmt.Errorf("embedded: marshal edition: %w", err)
	}

	return e.db.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEditions).Put([]byte(ed.Name), data)
	})
}

// Get returns the edition named name, or (zero, false, nil) if absent.
func (e *EditionStore) Get(_ context.Context, name string) (model.Edition, bool, error) {
	var (
		ed    model.Edition
		found bool
	)

	err := e.db.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketEditions).Get([]byte(name))
		if data == nil {
			return nil
		}

		if err := json.Unmarshal(data, &ed); err != nil {
			return fmt.Errorf("embedded: unmarshal edition: %w", err)
		}

		found = true

		return nil
	})

	return ed, found, err
}

// List returns every persisted edition, ordered by name.
func (e *EditionStore) List(_ context.Context) ([]model.Edition, error) {
	var out []model.Edition

	err := e.db.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEditions).ForEach(func(k, v []byte) error {
			var ed model.Edition
			if err := json.Unmarshal(v, &ed); err != nil {
				return fmt.Errorf("embedded: unmarshal edition %s: %w", k, err)
			}

			out = append(out, ed)

			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	return out, nil
}

// Delete removes an edition's metadata. Mirrors edition.Manager.Delete:
// event rows already written under the edition's partition are left in
// place, retention being a separate policy (spec's edition manager
// section).
func (e *EditionStore) Delete(_ context.Context, name string) error {
	return e.db.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketEditions)
		if b.Get([]byte(name)) == nil {
			return merr.NotFoundError{EntityType: "edition", Message: "edition " + name + " not found"}
		}

		return b.Delete([]byte(name))
	})
}
