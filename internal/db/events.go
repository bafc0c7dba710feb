package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Event is an organizer's party, the scope every aggregation and queue
// lives under.
type Event struct {
	ID         uuid.UUID
	OwnerID    string // organizer's Spotify user id
	Name       string
	Theme      string // declared vibe, free text
	CreatedAt  time.Time
	ArchivedAt *time.Time // nullable
}

// EventRepository handles event database operations.
type EventRepository struct {
	pool *pgxpool.Pool
}

// Create inserts a new event.
func (r *EventRepository) Create(ctx context.Context, event *Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	query := `
		INSERT INTO events (id, owner_id, name, theme, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING created_at
	`
	err := r.pool.QueryRow(ctx, query,
		event.ID,
		event.OwnerID,
		event.Name,
		event.Theme,
	).Scan(&event.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating event: %w", err)
	}
	return nil
}

// Get retrieves an event by ID.
func (r *EventRepository) Get(ctx context.Context, id uuid.UUID) (*Event, error) {
	query := `
		SELECT id, owner_id, name, theme, created_at, archived_at
		FROM events
		WHERE id = $1
	`
	var event Event
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&event.ID,
		&event.OwnerID,
		&event.Name,
		&event.Theme,
		&event.CreatedAt,
		&event.ArchivedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting event: %w", err)
	}
	return &event, nil
}

// ListForOwner retrieves all non-archived events for an organizer,
// newest first.
func (r *EventRepository) ListForOwner(ctx context.Context, ownerID string) ([]Event, error) {
	query := `
		SELECT id, owner_id, name, theme, created_at, archived_at
		FROM events
		WHERE owner_id = $1 AND archived_at IS NULL
		ORDER BY created_at DESC
	`
	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var event Event
		if err := rows.Scan(
			&event.ID,
			&event.OwnerID,
			&event.Name,
			&event.Theme,
			&event.CreatedAt,
			&event.ArchivedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating events: %w", err)
	}
	return events, nil
}

// Archive marks an event as ended. Preference records and queue
// entries stay until the event row is deleted; individual records are
// never removed.
func (r *EventRepository) Archive(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE events SET archived_at = NOW()
		WHERE id = $1 AND archived_at IS NULL
	`, id)
	if err != nil {
		return fmt.Errorf("archiving event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
