package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/LerianStudio/midaz-flow/internal/model"
	"github.com/LerianStudio/midaz-flow/internal/store"
	"github.com/LerianStudio/midaz-flow/pkg/merr"
	sqrl "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// uniqueViolation is postgres's SQLSTATE for a unique-constraint
// conflict — the sequence conflict signal the event_pages primary key
// (edition,domain,root,sequence) raises for us for free (spec §4.1).
const uniqueViolation = "23505"

// Store is the pgx-backed EventStore + SnapshotStore pair, the
// production storage driver of spec §6. Query shape mirrors
// components/ledger's postgres repositories (sqrl.Select/Insert,
// PlaceholderFormat(sqrl.Dollar), pgconn.PgError inspection on write
// failure) adapted from database/sql to pgx's native Query/Exec.
type Store struct {
	conn *Connection
}

// NewStore wraps an already-open Connection.
func NewStore(conn *Connection) *Store {
	return &Store{conn: conn}
}

var (
	_ store.EventStore    = (*Store)(nil)
	_ store.SnapshotStore = (*Store)(nil)
)

// Append implements store.EventStore. Sequence assignment happens in
// application code inside one transaction (rather than relying purely
// on a DB-side sequence) so force-marked and explicit-sequence pages in
// the same batch interleave the way internal/store.MemoryEventStore's
// Append does (see DESIGN.md's force-marker ordering decision).
func (s *Store) Append(ctx context.Context, edition, domain string, root uuid.UUID, pages []model.EventPage, correlationID string) ([]model.EventPage, error) {
	if len(pages) == 0 {
		return nil, nil
	}

	var out []model.EventPage

	err := pgx.BeginFunc(ctx, s.conn.pool, func(tx pgx.Tx) error {
		next, err := nextSequenceTx(ctx, tx, edition, domain, root)
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

		insert := sqrl.Insert("event_pages").
			Columns("edition", "domain", "root", "sequence", "created_at", "type_url", "bytes", "external_uri", "external_size", "correlation_id").
			PlaceholderFormat(sqrl.Dollar)

		for _, p := range assigned {
			var extURI any

			var extSize any

			if p.ExternalPayloadRef != nil {
				extURI = p.ExternalPayloadRef.URI
				extSize = p.ExternalPayloadRef.Size
			}

			var corr any
			if correlationID != "" {
				corr = correlationID
			}

			insert = insert.Values(edition, domain, root, p.Sequence, p.CreatedAt, p.Event.TypeURL, p.Event.Bytes, extURI, extSize, corr)
		}

		query, args, err := insert.ToSql()
		if err != nil {
			return fmt.Errorf("postgres: build insert: %w", err)
		}

		if _, err := tx.Exec(ctx, query, args...); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				return merr.SequenceConflictError{EntityType: domain, Expected: next, Actual: next}
			}

			return fmt.Errorf("postgres: insert event pages: %w", err)
		}

		out = assigned

		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

func nextSequenceTx(ctx context.Context, tx pgx.Tx, edition, domain string, root uuid.UUID) (uint32, error) {
	query, args, err := sqrl.Select("COALESCE(MAX(sequence), -1)").
		From("event_pages").
		Where(sqrl.Eq{"edition": edition, "domain": domain, "root": root}).
		PlaceholderFormat(sqrl.Dollar).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("postgres: build next-sequence query: %w", err)
	}

	var maxSeq int64
	if err := tx.QueryRow(ctx, query, args...).Scan(&maxSeq); err != nil {
		return 0, fmt.Errorf("postgres: query next sequence: %w", err)
	}

	return uint32(maxSeq + 1), nil
}

func (s *Store) Read(ctx context.Context, edition, domain string, root uuid.UUID) ([]model.EventPage, error) {
	return s.ReadFrom(ctx, edition, domain, root, 0)
}

func (s *Store) ReadFrom(ctx context.Context, edition, domain string, root uuid.UUID, fromSeq uint32) ([]model.EventPage, error) {
	return s.readWhere(ctx, sqrl.And{
		sqrl.Eq{"edition": edition, "domain": domain, "root": root},
		sqrl.GtOrEq{"sequence": fromSeq},
	})
}

func (s *Store) ReadRange(ctx context.Context, edition, domain string, root uuid.UUID, fromSeq, toSeq uint32) ([]model.EventPage, error) {
	return s.readWhere(ctx, sqrl.And{
		sqrl.Eq{"edition": edition, "domain": domain, "root": root},
		sqrl.GtOrEq{"sequence": fromSeq},
		sqrl.Lt{"sequence": toSeq},
	})
}

func (s *Store) ReadUntilTimestamp(ctx context.Context, edition, domain string, root uuid.UUID, ts time.Time) ([]model.EventPage, error) {
	return s.readWhere(ctx, sqrl.And{
		sqrl.Eq{"edition": edition, "domain": domain, "root": root},
		sqrl.LtOrEq{"created_at": ts},
	})
}

func (s *Store) readWhere(ctx context.Context, pred sqrl.Sqlizer) ([]model.EventPage, error) {
	query, args, err := sqrl.Select("sequence", "created_at", "type_url", "bytes", "external_uri", "external_size").
		From("event_pages").
		Where(pred).
		OrderBy("sequence ASC").
		PlaceholderFormat(sqrl.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("postgres: build read query: %w", err)
	}

	rows, err := s.conn.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: read event pages: %w", err)
	}
	defer rows.Close()

	var out []model.EventPage

	for rows.Next() {
		var (
			p       model.EventPage
			extURI  *string
			extSize *int64
		)

		if err := rows.Scan(&p.Sequence, &p.CreatedAt, &p.Event.TypeURL, &p.Event.Bytes, &extURI, &extSize); err != nil {
			return nil, fmt.Errorf("postgres: scan event page: %w", err)
		}

		if extURI != nil {
			size := int64(0)
			if extSize != nil {
				size = *extSize
			}

			p.ExternalPayloadRef = &model.ExternalPayloadRef{URI: *extURI, Size: size}
		}

		out = append(out, p)
	}

	return out, rows.Err()
}

func (s *Store) NextSequence(ctx context.Context, edition, domain string, root uuid.UUID) (uint32, error) {
	query, args, err := sqrl.Select("COALESCE(MAX(sequence), -1)").
		From("event_pages").
		Where(sqrl.Eq{"edition": edition, "domain": domain, "root": root}).
		PlaceholderFormat(sqrl.Dollar).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("postgres: build next-sequence query: %w", err)
	}

	var maxSeq int64
	if err := s.conn.pool.QueryRow(ctx, query, args...).Scan(&maxSeq); err != nil {
		return 0, fmt.Errorf("postgres: query next sequence: %w", err)
	}

	return uint32(maxSeq + 1), nil
}

func (s *Store) FindByCorrelation(ctx context.Context, edition, domain, correlationID string) ([]uuid.UUID, error) {
	query, args, err := sqrl.Select("DISTINCT root").
		From("event_pages").
		Where(sqrl.Eq{"edition": edition, "domain": domain, "correlation_id": correlationID}).
		OrderBy("root ASC").
		PlaceholderFormat(sqrl.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("postgres: build correlation query: %w", err)
	}

	rows, err := s.conn.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: query correlation: %w", err)
	}
	defer rows.Close()

	var out []uuid.UUID

	for rows.Next() {
		var root uuid.UUID
		if err := rows.Scan(&root); err != nil {
			return nil, fmt.Errorf("postgres: scan correlation root: %w", err)
		}

		out = append(out, root)
	}

	return out, rows.Err()
}

func (s *Store) ListRoots(ctx context.Context, edition, domain string) ([]uuid.UUID, error) {
	query, args, err := sqrl.Select("DISTINCT root").
		From("event_pages").
		Where(sqrl.Eq{"edition": edition, "domain": domain}).
		OrderBy("root ASC").
		PlaceholderFormat(sqrl.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("postgres: build list-roots query: %w", err)
	}

	rows, err := s.conn.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list roots: %w", err)
	}
	defer rows.Close()

	var out []uuid.UUID

	for rows.Next() {
		var root uuid.UUID
		if err := rows.Scan(&root); err != nil {
			return nil, fmt.Errorf("postgres: scan root: %w", err)
		}

		out = append(out, root)
	}

	return out, rows.Err()
}

func (s *Store) ListDomains(ctx context.Context, edition string) ([]string, error) {
	query, args, err := sqrl.Select("DISTINCT domain").
		From("event_pages").
		Where(sqrl.Eq{"edition": edition}).
		OrderBy("domain ASC").
		PlaceholderFormat(sqrl.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("postgres: build list-domains query: %w", err)
	}

	rows, err := s.conn.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list domains: %w", err)
	}
	defer rows.Close()

	var out []string

	for rows.Next() {
		var domain string
		if err := rows.Scan(&domain); err != nil {
			return nil, fmt.Errorf("postgres: scan domain: %w", err)
		}

		out = append(out, domain)
	}

	return out, rows.Err()
}

// Get implements store.SnapshotStore.
func (s *Store) Get(ctx context.Context, edition, domain string, root uuid.UUID) (*model.Snapshot, error) {
	query, args, err := sqrl.Select("sequence", "type_url", "bytes").
		From("snapshots").
		Where(sqrl.Eq{"edition": edition, "domain": domain, "root": root}).
		PlaceholderFormat(sqrl.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("postgres: build snapshot query: %w", err)
	}

	var snap model.Snapshot

	err = s.conn.pool.QueryRow(ctx, query, args...).Scan(&snap.Sequence, &snap.State.TypeURL, &snap.State.Bytes)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("postgres: query snapshot: %w", err)
	}

	return &snap, nil
}

func (s *Store) Put(ctx context.Context, edition, domain string, root uuid.UUID, snap model.Snapshot) error {
	query, args, err := sqrl.Insert("snapshots").
		Columns("edition", "domain", "root", "sequence", "type_url", "bytes", "updated_at").
		Values(edition, domain, root, snap.Sequence, snap.State.TypeURL, snap.State.Bytes, time.Now().UTC()).
		Suffix("ON CONFLICT (edition, domain, root) DO UPDATE SET sequence = EXCLUDED.sequence, type_url = EXCLUDED.type_url, bytes = EXCLUDED.bytes, updated_at = EXCLUDED.updated_at").
		PlaceholderFormat(sqrl.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("postgres: build snapshot upsert: %w", err)
	}

	if _, err := s.conn.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("postgres: upsert snapshot: %w", err)
	}

	return nil
}

func (s *Store) Delete(ctx context.Context, edition, domain string, root uuid.UUID) error {
	query, args, err := sqrl.Delete("snapshots").
		Where(sqrl.Eq{"edition": edition, "domain": domain, "root": root}).
		PlaceholderFormat(sqrl.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("postgres: build snapshot delete: %w", err)
	}

	if _, err := s.conn.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("postgres: delete snapshot: %w", err)
	}

	return nil
}
