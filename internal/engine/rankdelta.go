package engine

import "sync"

// RankTracker holds one generation of prior ranks per event and
// annotates each refresh with movement since the last one. Refreshes
// for the same event serialize on the event's slot; different events
// never share state.
type RankTracker struct {
	mu     sync.Mutex
	events map[string]*rankSlot
}

type rankSlot struct {
	mu    sync.Mutex
	ranks map[TrackKey]int
}

// NewRankTracker creates an empty tracker.
func NewRankTracker() *RankTracker {
	return &RankTracker{events: make(map[string]*rankSlot)}
}

// Diff annotates current (a ranked list, best first) with RankChange
// relative to the event's previous snapshot: previousRank - currentRank,
// so positive means the track moved up. Tracks absent from the previous
// snapshot are arrivals and keep a nil RankChange. The stored snapshot
// is replaced atomically once the diff is computed.
func (t *RankTracker) Diff(eventID string, current []ScoredTrack) []ScoredTrack {
	slot := t.slot(eventID)

	slot.mu.Lock()
	defer slot.mu.Unlock()

	out := make([]ScoredTrack, len(current))
	next := make(map[TrackKey]int, len(current))
	for i, track := range current {
		rank := i + 1
		next[track.Key] = rank

		track.RankChange = nil
		if prev, ok := slot.ranks[track.Key]; ok {
			change := prev - rank
			track.RankChange = &change
		}
		out[i] = track
	}

	slot.ranks = next
	return out
}

// Forget drops the stored snapshot for an event, e.g. when the event
// is archived.
func (t *RankTracker) Forget(eventID string) {
	t.mu.Lock()
	delete(t.events, eventID)
	t.mu.Unlock()
}

func (t *RankTracker) slot(eventID string) *rankSlot {
	t.mu.Lock()
	defer t.mu.Unlock()

	slot, ok := t.events[eventID]
	if !ok {
		slot = &rankSlot{}
		t.events[eventID] = slot
	}
	return slot
}
