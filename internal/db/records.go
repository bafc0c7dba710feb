package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mlowery/go-crowdmix/internal/engine"
)

// RecordRepository handles preference record database operations.
// Records accumulate for the lifetime of an event; a guest's
// resubmission replaces their previous record, never duplicates it.
type RecordRepository struct {
	pool *pgxpool.Pool
}

// Upsert stores a guest's preference record, replacing any previous
// submission for the same (event, guest) pair.
func (r *RecordRepository) Upsert(ctx context.Context, eventID uuid.UUID, rec *engine.PreferenceRecord) error {
	tracks, err := json.Marshal(rec.Tracks)
	if err != nil {
		return fmt.Errorf("encoding tracks: %w", err)
	}
	recent, err := json.Marshal(rec.RecentTracks)
	if err != nil {
		return fmt.Errorf("encoding recent tracks: %w", err)
	}

	query := `
		INSERT INTO preference_records
			(event_id, guest_id, artists, genres, tracks, recent_tracks, source, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (event_id, guest_id) DO UPDATE SET
			artists = EXCLUDED.artists,
			genres = EXCLUDED.genres,
			tracks = EXCLUDED.tracks,
			recent_tracks = EXCLUDED.recent_tracks,
			source = EXCLUDED.source,
			submitted_at = EXCLUDED.submitted_at
	`
	_, err = r.pool.Exec(ctx, query,
		eventID,
		rec.GuestID,
		rec.Artists,
		rec.Genres,
		tracks,
		recent,
		string(rec.Source),
		rec.SubmittedAt,
	)
	if err != nil {
		return fmt.Errorf("upserting preference record: %w", err)
	}
	return nil
}

// GetForEvent loads all live records for an event. One record per
// guest by construction of the primary key.
func (r *RecordRepository) GetForEvent(ctx context.Context, eventID uuid.UUID) ([]engine.PreferenceRecord, error) {
	query := `
		SELECT guest_id, artists, genres, tracks, recent_tracks, source, submitted_at
		FROM preference_records
		WHERE event_id = $1
		ORDER BY submitted_at, guest_id
	`
	rows, err := r.pool.Query(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("loading preference records: %w", err)
	}
	defer rows.Close()

	var records []engine.PreferenceRecord
	for rows.Next() {
		var (
			rec        engine.PreferenceRecord
			source     string
			tracksJSON []byte
			recentJSON []byte
		)
		if err := rows.Scan(
			&rec.GuestID,
			&rec.Artists,
			&rec.Genres,
			&tracksJSON,
			&recentJSON,
			&source,
			&rec.SubmittedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning preference record: %w", err)
		}
		if err := json.Unmarshal(tracksJSON, &rec.Tracks); err != nil {
			return nil, fmt.Errorf("decoding tracks for guest %q: %w", rec.GuestID, err)
		}
		if err := json.Unmarshal(recentJSON, &rec.RecentTracks); err != nil {
			return nil, fmt.Errorf("decoding recent tracks for guest %q: %w", rec.GuestID, err)
		}
		rec.EventID = eventID.String()
		rec.Source = engine.Source(source)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating preference records: %w", err)
	}
	return records, nil
}

// CountForEvent returns how many guests have submitted.
func (r *RecordRepository) CountForEvent(ctx context.Context, eventID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM preference_records WHERE event_id = $1`, eventID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting preference records: %w", err)
	}
	return count, nil
}
