package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mlowery/go-crowdmix/internal/engine"
)

// QueueEntry is a persisted row of the live DJ set. Position is the
// authoritative play order; it only changes through explicit Reorder
// calls, never as a side effect of scoring.
type QueueEntry struct {
	ID        uuid.UUID
	EventID   uuid.UUID
	TrackKey  string
	TrackID   string
	Name      string
	Artists   []string
	Source    string
	Position  int
	AddedAt   time.Time
	RemovedAt *time.Time // soft removal, reversible
}

// ToEngine converts a row to the engine's queue shape.
func (q QueueEntry) ToEngine() engine.QueueEntry {
	return engine.QueueEntry{
		Key:      engine.TrackKey(q.TrackKey),
		TrackID:  q.TrackID,
		Name:     q.Name,
		Artists:  q.Artists,
		Source:   engine.QueueSource(q.Source),
		Position: q.Position,
		AddedAt:  q.AddedAt,
	}
}

// QueueRepository handles queue database operations.
type QueueRepository struct {
	pool *pgxpool.Pool
}

// Append adds a track at the end of an event's queue.
func (r *QueueRepository) Append(ctx context.Context, eventID uuid.UUID, entry *QueueEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	query := `
		INSERT INTO queue_entries
			(id, event_id, track_key, track_id, name, artists, source, position, added_at)
		SELECT $1, $2, $3, $4, $5, $6, $7, COALESCE(MAX(position), -1) + 1, NOW()
		FROM queue_entries
		WHERE event_id = $2
		RETURNING position, added_at
	`
	err := r.pool.QueryRow(ctx, query,
		entry.ID,
		eventID,
		entry.TrackKey,
		entry.TrackID,
		entry.Name,
		entry.Artists,
		entry.Source,
	).Scan(&entry.Position, &entry.AddedAt)
	if err != nil {
		return fmt.Errorf("appending queue entry: %w", err)
	}
	entry.EventID = eventID
	return nil
}

// List returns an event's live queue in play order, excluding removed
// entries.
func (r *QueueRepository) List(ctx context.Context, eventID uuid.UUID) ([]QueueEntry, error) {
	query := `
		SELECT id, event_id, track_key, track_id, name, artists, source, position, added_at, removed_at
		FROM queue_entries
		WHERE event_id = $1 AND removed_at IS NULL
		ORDER BY position
	`
	rows, err := r.pool.Query(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("listing queue: %w", err)
	}
	defer rows.Close()

	var entries []QueueEntry
	for rows.Next() {
		var entry QueueEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.EventID,
			&entry.TrackKey,
			&entry.TrackID,
			&entry.Name,
			&entry.Artists,
			&entry.Source,
			&entry.Position,
			&entry.AddedAt,
			&entry.RemovedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning queue entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating queue: %w", err)
	}
	return entries, nil
}

// Get retrieves one entry by id.
func (r *QueueRepository) Get(ctx context.Context, id uuid.UUID) (*QueueEntry, error) {
	query := `
		SELECT id, event_id, track_key, track_id, name, artists, source, position, added_at, removed_at
		FROM queue_entries
		WHERE id = $1
	`
	var entry QueueEntry
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&entry.ID,
		&entry.EventID,
		&entry.TrackKey,
		&entry.TrackID,
		&entry.Name,
		&entry.Artists,
		&entry.Source,
		&entry.Position,
		&entry.AddedAt,
		&entry.RemovedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting queue entry: %w", err)
	}
	return &entry, nil
}

// Remove soft-deletes an entry; Reinstate undoes it.
func (r *QueueRepository) Remove(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE queue_entries SET removed_at = NOW() WHERE id = $1 AND removed_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("removing queue entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Reinstate brings a removed entry back at the end of the queue.
func (r *QueueRepository) Reinstate(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE queue_entries SET
			removed_at = NULL,
			position = (SELECT COALESCE(MAX(position), -1) + 1
			            FROM queue_entries q
			            WHERE q.event_id = queue_entries.event_id AND q.removed_at IS NULL)
		WHERE id = $1 AND removed_at IS NOT NULL
	`
	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("reinstating queue entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Reorder rewrites the play order for an event to match ids. Entries
// not listed keep their relative order after the listed ones. The
// engine never calls this; only explicit organizer action does.
func (r *QueueRepository) Reorder(ctx context.Context, eventID uuid.UUID, ids []uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning reorder: %w", err)
	}
	defer tx.Rollback(ctx)

	for i, id := range ids {
		tag, err := tx.Exec(ctx,
			`UPDATE queue_entries SET position = $1 WHERE id = $2 AND event_id = $3`,
			i, id, eventID)
		if err != nil {
			return fmt.Errorf("reordering entry %s: %w", id, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("reordering entry %s: %w", id, ErrNotFound)
		}
	}

	// Push unlisted entries after the listed ones, preserving order.
	_, err = tx.Exec(ctx, `
		WITH ranked AS (
			SELECT id, ROW_NUMBER() OVER (ORDER BY position) AS rn
			FROM queue_entries
			WHERE event_id = $1 AND removed_at IS NULL AND NOT (id = ANY($2))
		)
		UPDATE queue_entries SET position = $3 + ranked.rn - 1
		FROM ranked
		WHERE queue_entries.id = ranked.id
	`, eventID, ids, len(ids))
	if err != nil {
		return fmt.Errorf("compacting queue order: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing reorder: %w", err)
	}
	return nil
}
