// Package engine implements the crowd preference aggregation and
// set-curation core: it folds guest submissions into per-track
// statistics, scores and buckets tracks, applies the smart filter
// pipeline, suggests harmonically compatible tracks, and tracks rank
// movement between refreshes.
package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Source identifies where a preference record came from.
type Source string

const (
	SourceManual  Source = "manual"
	SourceSpotify Source = "spotify"
)

// ErrMissingGuestID is returned when a submission has no guest identifier.
var ErrMissingGuestID = errors.New("submission has no guest id")

// TrackRef describes a track as referenced by a guest. ID is empty for
// free-text references; Popularity is nil when the catalog value is
// unknown.
type TrackRef struct {
	ID         string
	Name       string
	Artists    []string
	Album      string
	Popularity *int // 0-100
}

// PreferenceRecord is one guest's submission for one event. At most one
// live record exists per (EventID, GuestID); resubmission replaces.
type PreferenceRecord struct {
	EventID      string
	GuestID      string
	Artists      []string // ordered as submitted
	Genres       []string
	RecentTracks []TrackRef // may lack IDs
	Tracks       []TrackRef // full descriptors
	Source       Source
	SubmittedAt  time.Time
}

// submission is the loose wire shape guests send. Fields arrive as
// arrays, JSON-encoded strings, or bare strings depending on the
// client, so everything list-like is deferred to RawMessage and
// normalized here, at the boundary.
type submission struct {
	GuestID      string          `json:"guestId"`
	Artists      json.RawMessage `json:"artists"`
	Genres       json.RawMessage `json:"genres"`
	RecentTracks json.RawMessage `json:"recentTracks"`
	Tracks       []trackPayload  `json:"tracks"`
	Source       string          `json:"source"`
	SubmittedAt  *time.Time      `json:"submittedAt"`
}

type trackPayload struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Artist     string          `json:"artist"`
	Artists    json.RawMessage `json:"artists"`
	Album      string          `json:"album"`
	Popularity *int            `json:"popularity"`
}

// ParseSubmission normalizes a loose guest payload into a strict
// PreferenceRecord. now is used as the submission time when the payload
// carries none. Returns ErrMissingGuestID when the guest id is absent.
func ParseSubmission(eventID string, data []byte, now time.Time) (*PreferenceRecord, error) {
	var sub submission
	if err := json.Unmarshal(data, &sub); err != nil {
		return nil, fmt.Errorf("decoding submission: %w", err)
	}

	guestID := strings.TrimSpace(sub.GuestID)
	if guestID == "" {
		return nil, ErrMissingGuestID
	}

	artists, err := stringList(sub.Artists)
	if err != nil {
		return nil, fmt.Errorf("decoding artists: %w", err)
	}
	genres, err := stringList(sub.Genres)
	if err != nil {
		return nil, fmt.Errorf("decoding genres: %w", err)
	}
	recent, err := trackRefList(sub.RecentTracks)
	if err != nil {
		return nil, fmt.Errorf("decoding recent tracks: %w", err)
	}

	tracks := make([]TrackRef, 0, len(sub.Tracks))
	for _, p := range sub.Tracks {
		ref, err := p.toRef()
		if err != nil {
			return nil, fmt.Errorf("decoding track: %w", err)
		}
		if ref.Name == "" && ref.ID == "" {
			continue
		}
		tracks = append(tracks, ref)
	}

	source := SourceManual
	if Source(sub.Source) == SourceSpotify {
		source = SourceSpotify
	}

	submittedAt := now
	if sub.SubmittedAt != nil {
		submittedAt = *sub.SubmittedAt
	}

	return &PreferenceRecord{
		EventID:      eventID,
		GuestID:      guestID,
		Artists:      artists,
		Genres:       genres,
		RecentTracks: recent,
		Tracks:       tracks,
		Source:       source,
		SubmittedAt:  submittedAt,
	}, nil
}

func (p trackPayload) toRef() (TrackRef, error) {
	artists, err := stringList(p.Artists)
	if err != nil {
		return TrackRef{}, err
	}
	if len(artists) == 0 && p.Artist != "" {
		artists = []string{p.Artist}
	}
	return TrackRef{
		ID:         p.ID,
		Name:       strings.TrimSpace(p.Name),
		Artists:    artists,
		Album:      p.Album,
		Popularity: p.Popularity,
	}, nil
}

// stringList accepts null, an array of strings, a JSON-encoded array in
// a string, or a single bare string.
func stringList(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return cleanStrings(list), nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("expected string or array, got %s", snippet(raw))
	}

	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	// Some clients double-encode: the string itself holds a JSON array.
	if strings.HasPrefix(s, "[") {
		if err := json.Unmarshal([]byte(s), &list); err == nil {
			return cleanStrings(list), nil
		}
	}

	return []string{s}, nil
}

// trackRefList accepts an array whose elements are either objects
// ({name, artist}) or free-text strings ("Name - Artist"), optionally
// double-encoded like stringList.
func trackRefList(raw json.RawMessage) ([]TrackRef, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, nil
		}
		if strings.HasPrefix(s, "[") {
			return trackRefList(json.RawMessage(s))
		}
		ref := parseFreeTextTrack(s)
		if ref.Name == "" {
			return nil, nil
		}
		return []TrackRef{ref}, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("expected string or array, got %s", snippet(raw))
	}

	refs := make([]TrackRef, 0, len(items))
	for _, item := range items {
		var text string
		if err := json.Unmarshal(item, &text); err == nil {
			if ref := parseFreeTextTrack(text); ref.Name != "" {
				refs = append(refs, ref)
			}
			continue
		}

		var p trackPayload
		if err := json.Unmarshal(item, &p); err != nil {
			return nil, fmt.Errorf("unexpected track element %s", snippet(item))
		}
		ref, err := p.toRef()
		if err != nil {
			return nil, err
		}
		if ref.Name != "" || ref.ID != "" {
			refs = append(refs, ref)
		}
	}
	return refs, nil
}

// parseFreeTextTrack splits "Name - Artist" references; anything
// without the separator is treated as a bare track name.
func parseFreeTextTrack(s string) TrackRef {
	s = strings.TrimSpace(s)
	name, artist, found := strings.Cut(s, " - ")
	if !found {
		return TrackRef{Name: s}
	}
	ref := TrackRef{Name: strings.TrimSpace(name)}
	if a := strings.TrimSpace(artist); a != "" {
		ref.Artists = []string{a}
	}
	return ref
}

func cleanStrings(list []string) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func snippet(raw json.RawMessage) string {
	const max = 40
	s := string(raw)
	if len(s) > max {
		s = s[:max] + "..."
	}
	return s
}
