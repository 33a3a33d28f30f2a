// Package sqlite provides a modernc.org/sqlite-backed store.EventStore
// and store.SnapshotStore (spec §4.1, §4.2), a pure-Go single-file
// alternative to internal/adapters/embedded's bbolt store for
// `run-standalone` deployments that want SQL range/timestamp queries
// rather than bbolt's raw ordered-byte-key scan. Grounded on
// randalmurphal-flowgraph's pkg/flowgraph/checkpoint.SQLiteStore:
// restrictive-permission file creation before sql.Open, WAL journal
// mode, and the same inline schema-provisioning-at-open style this
// module's postgres adapter also follows.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/LerianStudio/midaz-flow/internal/model"
	"github.com/LerianStudio/midaz-flow/internal/store"
	"github.com/LerianStudio/midaz-flow/pkg/merr"
	sqrl "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Store is a single *sql.DB-backed EventStore + SnapshotStore pair.
// Writes are serialized through mu since sqlite only allows one writer
// at a time even under WAL; reads proceed concurrently.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open creates (if needed) and opens a sqlite database file at path,
// restricting its permissions to 0600 the same way SQLiteStore does
// before the sqlite driver ever touches it.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if f, createErr := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600); createErr == nil {
				f.Close()
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: enable WAL: %w", err)
	}

	s := &Store{db: db}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	if path != ":memory:" {
		_ = os.Chmod(path, 0o600)
	}

	return s, nil
}

func (s *Store) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS event_pages (
	edition        TEXT    NOT NULL,
	domain         TEXT    NOT NULL,
	root           TEXT    NOT NULL,
	sequence       INTEGER NOT NULL,
	created_at     TEXT    NOT NULL,
	type_url       TEXT    NOT NULL,
	bytes          BLOB,
	external_uri   TEXT,
	external_size  INTEGER,
	correlation_id TEXT,
	PRIMARY KEY (edition, domain, root, sequence)
);

CREATE INDEX IF NOT EXISTS event_pages_correlation_idx
	ON event_pages (edition, domain, correlation_id, root);

CREATE TABLE IF NOT EXISTS snapshots (
	edition    TEXT    NOT NULL,
	domain     TEXT    NOT NULL,
	root       TEXT    NOT NULL,
	sequence   INTEGER NOT NULL,
	type_url   TEXT    NOT NULL,
	bytes      BLOB,
	updated_at TEXT    NOT NULL,
	PRIMARY KEY (edition, domain, root)
);
`

	_, err := s.db.Exec(ddl)
	if err != nil {
		return fmt.Errorf("sqlite: migrate: %w", err)
	}

	return nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

var (
	_ store.EventStore    = (*Store)(nil)
	_ store.SnapshotStore = (*Store)(nil)
)

func (s *Store) Append(ctx context.Context, edition, domain string, root uuid.UUID, pages []model.EventPage, correlationID string) ([]model.EventPage, error) {
	if len(pages) == 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: begin tx: %w", err)
	}
	defer tx.Rollback()

	var maxSeq sql.NullInt64

	err = tx.QueryRowContext(ctx, `SELECT MAX(sequence) FROM event_pages WHERE edition = ? AND domain = ? AND root = ?`,
		edition, domain, root.String()).Scan(&maxSeq)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query next sequence: %w", err)
	}

	cursor := uint32(0)
	if maxSeq.Valid {
		cursor = uint32(maxSeq.Int64) + 1
	}

	assigned := make([]model.EventPage, len(pages))

	insert := sqrl.Insert("event_pages").Columns(
		"edition", "domain", "root", "sequence", "created_at", "type_url", "bytes", "external_uri", "external_size", "correlation_id",
	)

	now := time.Now().UTC()

	for i, p := range pages {
		if p.Force {
			p.Sequence = cursor
		} else if p.Sequence != cursor {
			return nil, merr.SequenceConflictError{EntityType: domain, Expected: cursor, Actual: p.Sequence}
		}

		cursor++

		createdAt := p.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}

		var extURI *string

		var extSize *int64

		if p.ExternalPayloadRef != nil {
			extURI = &p.ExternalPayloadRef.URI
			extSize = &p.ExternalPayloadRef.Size
		}

		var corr *string
		if correlationID != "" {
			corr = &correlationID
		}

		insert = insert.Values(edition, domain, root.String(), p.Sequence, createdAt.Format(time.RFC3339Nano), p.Event.TypeURL, p.Event.Bytes, extURI, extSize, corr)
		p.CreatedAt = createdAt
		assigned[i] = p
	}

	query, args, err := insert.ToSql()
	if err != nil {
		return nil, fmt.Errorf("sqlite: build insert: %w", err)
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("sqlite: insert pages: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("sqlite: commit: %w", err)
	}

	return assigned, nil
}

func (s *Store) readWhere(ctx context.Context, pred sqrl.Sqlizer) ([]model.EventPage, error) {
	query, args, err := sqrl.Select("sequence", "created_at", "type_url", "bytes", "external_uri", "external_size").
		From("event_pages").Where(pred).OrderBy("sequence ASC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("sqlite: build select: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query pages: %w", err)
	}
	defer rows.Close()

	var out []model.EventPage

	for rows.Next() {
		var (
			p         model.EventPage
			createdAt string
			extURI    sql.NullString
			extSize   sql.NullInt64
		)

		if err := rows.Scan(&p.Sequence, &createdAt, &p.Event.TypeURL, &p.Event.Bytes, &extURI, &extSize); err != nil {
			return nil, fmt.Errorf("sqlite: scan page: %w", err)
		}

		p.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("sqlite: parse created_at: %w", err)
		}

		if extURI.Valid {
			p.ExternalPayloadRef = &model.ExternalPayloadRef{URI: extURI.String, Size: extSize.Int64}
		}

		out = append(out, p)
	}

	return out, rows.Err()
}

func (s *Store) Read(ctx context.Context, edition, domain string, root uuid.UUID) ([]model.EventPage, error) {
	return s.readWhere(ctx, sqrl.Eq{"edition": edition, "domain": domain, "root": root.String()})
}

func (s *Store) ReadFrom(ctx context.Context, edition, domain string, root uuid.UUID, fromSeq uint32) ([]model.EventPage, error) {
	return s.readWhere(ctx, sqrl.And{
		sqrl.Eq{"edition": edition, "domain": domain, "root": root.String()},
		sqrl.GtOrEq{"sequence": fromSeq},
	})
}

func (s *Store) ReadRange(ctx context.Context, edition, domain string, root uuid.UUID, fromSeq, toSeq uint32) ([]model.EventPage, error) {
	return s.readWhere(ctx, sqrl.And{
		sqrl.Eq{"edition": edition, "domain": domain, "root": root.String()},
		sqrl.GtOrEq{"sequence": fromSeq},
		sqrl.Lt{"sequence": toSeq},
	})
}

func (s *Store) ReadUntilTimestamp(ctx context.Context, edition, domain string, root uuid.UUID, ts time.Time) ([]model.EventPage, error) {
	return s.readWhere(ctx, sqrl.And{
		sqrl.Eq{"edition": edition, "domain": domain, "root": root.String()},
		sqrl.LtOrEq{"created_at": ts.UTC().Format(time.RFC3339Nano)},
	})
}

func (s *Store) NextSequence(ctx context.Context, edition, domain string, root uuid.UUID) (uint32, error) {
	var maxSeq sql.NullInt64

	err := s.db.QueryRowContext(ctx, `SELECT MAX(sequence) FROM event_pages WHERE edition = ? AND domain = ? AND root = ?`,
		edition, domain, root.String()).Scan(&maxSeq)
	if err != nil {
		return 0, fmt.Errorf("sqlite: next sequence: %w", err)
	}

	if !maxSeq.Valid {
		return 0, nil
	}

	return uint32(maxSeq.Int64) + 1, nil
}

func (s *Store) FindByCorrelation(ctx context.Context, edition, domain, correlationID string) ([]uuid.UUID, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT root FROM event_pages WHERE edition = ? AND domain = ? AND correlation_id = ?`,
		edition, domain, correlationID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: find by correlation: %w", err)
	}
	defer rows.Close()

	return scanRoots(rows)
}

func (s *Store) ListRoots(ctx context.Context, edition, domain string) ([]uuid.UUID, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT root FROM event_pages WHERE edition = ? AND domain = ?`, edition, domain)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list roots: %w", err)
	}
	defer rows.Close()

	return scanRoots(rows)
}

func scanRoots(rows *sql.Rows) ([]uuid.UUID, error) {
	var out []uuid.UUID

	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("sqlite: scan root: %w", err)
		}

		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("sqlite: parse root %q: %w", s, err)
		}

		out = append(out, id)
	}

	return out, rows.Err()
}

func (s *Store) ListDomains(ctx context.Context, edition string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT domain FROM event_pages WHERE edition = ?`, edition)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list domains: %w", err)
	}
	defer rows.Close()

	var out []string

	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("sqlite: scan domain: %w", err)
		}

		out = append(out, d)
	}

	return out, rows.Err()
}

func (s *Store) Get(ctx context.Context, edition, domain string, root uuid.UUID) (*model.Snapshot, error) {
	var (
		seq     uint32
		typeURL string
		bytes   []byte
	)

	err := s.db.QueryRowContext(ctx, `SELECT sequence, type_url, bytes FROM snapshots WHERE edition = ? AND domain = ? AND root = ?`,
		edition, domain, root.String()).Scan(&seq, &typeURL, &bytes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("sqlite: get snapshot: %w", err)
	}

	return &model.Snapshot{Sequence: seq, State: model.Payload{TypeURL: typeURL, Bytes: bytes}}, nil
}

func (s *Store) Put(ctx context.Context, edition, domain string, root uuid.UUID, snap model.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
INSERT INTO snapshots (edition, domain, root, sequence, type_url, bytes, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(edition, domain, root) DO UPDATE SET
	sequence = excluded.sequence, type_url = excluded.type_url, bytes = excluded.bytes, updated_at = excluded.updated_at
`, edition, domain, root.String(), snap.Sequence, snap.State.TypeURL, snap.State.Bytes, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("sqlite: put snapshot: %w", err)
	}

	return nil
}

func (s *Store) Delete(ctx context.Context, edition, domain string, root uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE edition = ? AND domain = ? AND root = ?`, edition, domain, root.String())
	if err != nil {
		return fmt.Errorf("sqlite: delete snapshot: %w", err)
	}

	return nil
}
