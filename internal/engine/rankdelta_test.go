package engine

import (
	"sync"
	"testing"
)

func rankedList(keys ...string) []ScoredTrack {
	tracks := make([]ScoredTrack, len(keys))
	for i, k := range keys {
		tracks[i] = ScoredTrack{TrackStat: TrackStat{Key: TrackKey(k), Name: k}}
	}
	return tracks
}

func TestDiffFirstRefreshAllArrivals(t *testing.T) {
	tracker := NewRankTracker()

	got := tracker.Diff("ev1", rankedList("a", "b", "c"))

	for _, track := range got {
		if track.RankChange != nil {
			t.Errorf("track %q RankChange = %d on first refresh, want nil", track.Key, *track.RankChange)
		}
	}
}

func TestDiffMovement(t *testing.T) {
	tracker := NewRankTracker()
	tracker.Diff("ev1", rankedList("a", "b", "c"))

	got := tracker.Diff("ev1", rankedList("c", "a", "b"))

	tests := []struct {
		index int
		key   string
		want  int
	}{
		{0, "c", 2},  // rank 3 -> 1
		{1, "a", -1}, // rank 1 -> 2
		{2, "b", -1}, // rank 2 -> 3
	}
	for _, tt := range tests {
		track := got[tt.index]
		if string(track.Key) != tt.key {
			t.Fatalf("got[%d] = %q, want %q", tt.index, track.Key, tt.key)
		}
		if track.RankChange == nil || *track.RankChange != tt.want {
			t.Errorf("track %q RankChange = %v, want %d", tt.key, track.RankChange, tt.want)
		}
	}
}

func TestDiffArrivalIsNotAChange(t *testing.T) {
	tracker := NewRankTracker()
	tracker.Diff("ev1", rankedList("a", "b"))

	got := tracker.Diff("ev1", rankedList("newcomer", "a", "b"))

	if got[0].RankChange != nil {
		t.Errorf("newcomer RankChange = %d, want nil (arrival, not movement)", *got[0].RankChange)
	}
	if got[1].RankChange == nil || *got[1].RankChange != -1 {
		t.Errorf("a RankChange = %v, want -1", got[1].RankChange)
	}
}

func TestDiffSnapshotReplaced(t *testing.T) {
	tracker := NewRankTracker()
	tracker.Diff("ev1", rankedList("a", "b"))
	tracker.Diff("ev1", rankedList("b", "a"))

	// Third refresh diffs against the second, not the first.
	got := tracker.Diff("ev1", rankedList("b", "a"))

	for _, track := range got {
		if track.RankChange == nil || *track.RankChange != 0 {
			t.Errorf("track %q RankChange = %v, want 0", track.Key, track.RankChange)
		}
	}
}

func TestDiffDroppedTrackTreatedAsArrivalOnReturn(t *testing.T) {
	tracker := NewRankTracker()
	tracker.Diff("ev1", rankedList("a", "b"))
	tracker.Diff("ev1", rankedList("a")) // b drops out

	got := tracker.Diff("ev1", rankedList("a", "b"))

	if got[1].RankChange != nil {
		t.Errorf("returning track RankChange = %d, want nil", *got[1].RankChange)
	}
}

func TestDiffEventsIndependent(t *testing.T) {
	tracker := NewRankTracker()
	tracker.Diff("ev1", rankedList("a", "b"))

	got := tracker.Diff("ev2", rankedList("b", "a"))

	for _, track := range got {
		if track.RankChange != nil {
			t.Errorf("event ev2 saw ev1 state: track %q RankChange = %d", track.Key, *track.RankChange)
		}
	}
}

func TestDiffForget(t *testing.T) {
	tracker := NewRankTracker()
	tracker.Diff("ev1", rankedList("a"))
	tracker.Forget("ev1")

	got := tracker.Diff("ev1", rankedList("a"))
	if got[0].RankChange != nil {
		t.Errorf("RankChange = %d after Forget, want nil", *got[0].RankChange)
	}
}

func TestDiffDoesNotMutateInput(t *testing.T) {
	tracker := NewRankTracker()
	tracker.Diff("ev1", rankedList("a"))

	input := rankedList("a")
	tracker.Diff("ev1", input)

	if input[0].RankChange != nil {
		t.Error("Diff annotated the caller's slice in place")
	}
}

func TestDiffConcurrentRefreshes(t *testing.T) {
	tracker := NewRankTracker()
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			tracker.Diff("ev1", rankedList("a", "b", "c"))
		}()
		go func() {
			defer wg.Done()
			tracker.Diff("ev2", rankedList("c", "b", "a"))
		}()
	}
	wg.Wait()

	// After the dust settles both events hold a consistent snapshot.
	for _, track := range tracker.Diff("ev1", rankedList("a", "b", "c")) {
		if track.RankChange == nil || *track.RankChange != 0 {
			t.Errorf("ev1 track %q RankChange = %v, want 0", track.Key, track.RankChange)
		}
	}
}
