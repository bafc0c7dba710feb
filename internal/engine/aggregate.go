package engine

import (
	"fmt"
	"slices"
	"strings"
)

// TrackKey is the normalized identity tracks aggregate under: the
// canonical id when one exists, otherwise a lowercased name+artist pair
// so free-text references still accumulate frequency.
type TrackKey string

// KeyFor derives the aggregation identity for a track reference.
func KeyFor(ref TrackRef) TrackKey {
	if ref.ID != "" {
		return TrackKey("id:" + ref.ID)
	}
	name := strings.ToLower(strings.TrimSpace(ref.Name))
	artist := ""
	if len(ref.Artists) > 0 {
		artist = strings.ToLower(strings.TrimSpace(ref.Artists[0]))
	}
	return TrackKey("name:" + name + "|" + artist)
}

// TrackStat is the aggregated view of one track across all guests.
type TrackStat struct {
	Key        TrackKey
	ID         string   // canonical id, empty for free-text tracks
	Name       string
	Artists    []string
	Album      string
	Frequency  int // distinct guests whose data referenced the track
	Popularity int // latest observed catalog popularity, 0-100
	FirstSeen  int // deterministic arrival order, tie-breaks only
}

// Aggregation holds the frequency tables produced from one event's
// records.
type Aggregation struct {
	Tracks      map[TrackKey]*TrackStat
	Genres      map[string]int
	Artists     map[string]int
	TotalGuests int
}

// DuplicateRecordError reports two records for the same (event, guest)
// pair inside a single aggregation batch. Resubmissions must be
// upserted by the caller before aggregation, never passed through as
// duplicates.
type DuplicateRecordError struct {
	EventID string
	GuestID string
}

func (e *DuplicateRecordError) Error() string {
	return fmt.Sprintf("duplicate preference record for guest %q in event %q", e.GuestID, e.EventID)
}

// Aggregate folds guest records into per-track, per-genre, and
// per-artist frequency tables. Every listed artist and genre counts 1
// per guest regardless of list position; a track counts at most 1 per
// guest even when referenced both as a descriptor and a recent play.
// Output is identical for any permutation of records: folding order is
// fixed by (SubmittedAt, GuestID), which also defines FirstSeen and
// makes popularity last-write-wins deterministic.
func Aggregate(records []PreferenceRecord) (*Aggregation, error) {
	agg := &Aggregation{
		Tracks:      make(map[TrackKey]*TrackStat),
		Genres:      make(map[string]int),
		Artists:     make(map[string]int),
		TotalGuests: len(records),
	}

	ordered := make([]PreferenceRecord, len(records))
	copy(ordered, records)
	slices.SortFunc(ordered, func(a, b PreferenceRecord) int {
		if c := a.SubmittedAt.Compare(b.SubmittedAt); c != 0 {
			return c
		}
		return strings.Compare(a.GuestID, b.GuestID)
	})

	seen := make(map[string]struct{}, len(ordered))
	for _, rec := range ordered {
		pair := rec.EventID + "\x00" + rec.GuestID
		if _, dup := seen[pair]; dup {
			return nil, &DuplicateRecordError{EventID: rec.EventID, GuestID: rec.GuestID}
		}
		seen[pair] = struct{}{}

		for _, artist := range rec.Artists {
			if name := normalizeName(artist); name != "" {
				agg.Artists[name]++
			}
		}
		for _, genre := range rec.Genres {
			if name := normalizeName(genre); name != "" {
				agg.Genres[name]++
			}
		}

		// One frequency increment per track per guest.
		counted := make(map[TrackKey]struct{})
		for _, ref := range rec.Tracks {
			agg.observe(ref, counted)
		}
		for _, ref := range rec.RecentTracks {
			agg.observe(ref, counted)
		}
	}

	return agg, nil
}

func (a *Aggregation) observe(ref TrackRef, counted map[TrackKey]struct{}) {
	if ref.Name == "" && ref.ID == "" {
		return
	}
	key := KeyFor(ref)

	stat, ok := a.Tracks[key]
	if !ok {
		stat = &TrackStat{
			Key:       key,
			ID:        ref.ID,
			Name:      ref.Name,
			Artists:   slices.Clone(ref.Artists),
			Album:     ref.Album,
			FirstSeen: len(a.Tracks),
		}
		a.Tracks[key] = stat
	}

	// Fill in fields a free-text reference may have lacked.
	if stat.Name == "" {
		stat.Name = ref.Name
	}
	if len(stat.Artists) == 0 {
		stat.Artists = slices.Clone(ref.Artists)
	}
	if stat.Album == "" {
		stat.Album = ref.Album
	}
	if ref.Popularity != nil {
		stat.Popularity = clampInt(*ref.Popularity, 0, 100)
	}

	if _, dup := counted[key]; dup {
		return
	}
	counted[key] = struct{}{}
	stat.Frequency++
}

func normalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
