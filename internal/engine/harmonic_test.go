package engine

import (
	"testing"

	"github.com/mlowery/go-crowdmix/internal/camelot"
)

func keyedTrack(key, camelotKey string) ScoredTrack {
	return ScoredTrack{
		TrackStat: TrackStat{Key: TrackKey(key), Name: key},
		Meta:      TrackMeta{Key: camelotKey},
	}
}

func TestHarmonicSuggestionsFullSet(t *testing.T) {
	anchor := keyedTrack("anchor", "8A")
	candidates := []ScoredTrack{
		keyedTrack("same", "8A"),
		keyedTrack("up", "9A"),
		keyedTrack("down", "7A"),
		keyedTrack("off", "3B"),
	}

	got := HarmonicSuggestions(anchor, candidates)

	if len(got) != 4 {
		t.Fatalf("len = %d, want 4", len(got))
	}
	if got[0].Track.Key != TrackKey("anchor") || got[0].Relation != camelot.PerfectMatch {
		t.Errorf("suggestions[0] = %q/%q, want anchor/Perfect Match", got[0].Track.Key, got[0].Relation)
	}

	byRelation := make(map[camelot.Compatibility]TrackKey)
	for _, s := range got[1:] {
		byRelation[s.Relation] = s.Track.Key
	}
	if byRelation[camelot.PerfectMatch] != TrackKey("same") {
		t.Errorf("Perfect Match = %q, want same", byRelation[camelot.PerfectMatch])
	}
	if byRelation[camelot.EnergyBoost] != TrackKey("up") {
		t.Errorf("Energy Boost = %q, want up", byRelation[camelot.EnergyBoost])
	}
	if byRelation[camelot.EnergyDrop] != TrackKey("down") {
		t.Errorf("Energy Drop = %q, want down", byRelation[camelot.EnergyDrop])
	}
}

func TestHarmonicSuggestionsFirstByRank(t *testing.T) {
	anchor := keyedTrack("anchor", "8A")
	// Candidates arrive in crowd-match order; the first 9A track wins
	// the boost slot.
	candidates := []ScoredTrack{
		keyedTrack("boost-strong", "9A"),
		keyedTrack("boost-weak", "9A"),
	}

	got := HarmonicSuggestions(anchor, candidates)

	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[1].Track.Key != TrackKey("boost-strong") {
		t.Errorf("boost slot = %q, want boost-strong", got[1].Track.Key)
	}
}

func TestHarmonicSuggestionsOmitsEmptyClasses(t *testing.T) {
	anchor := keyedTrack("anchor", "8A")
	candidates := []ScoredTrack{
		keyedTrack("up", "9A"),
		keyedTrack("far", "2B"), // incompatible, never backfilled
	}

	got := HarmonicSuggestions(anchor, candidates)

	if len(got) != 2 {
		t.Fatalf("len = %d, want 2 (anchor + boost only)", len(got))
	}
	for _, s := range got {
		if s.Track.Key == TrackKey("far") {
			t.Error("incompatible track backfilled into suggestion set")
		}
	}
}

func TestHarmonicSuggestionsSkipsMalformedKeys(t *testing.T) {
	anchor := keyedTrack("anchor", "8A")
	candidates := []ScoredTrack{
		keyedTrack("broken", "13Q"),
		keyedTrack("missing", ""),
		keyedTrack("valid", "9A"),
	}

	got := HarmonicSuggestions(anchor, candidates)

	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[1].Track.Key != TrackKey("valid") {
		t.Errorf("suggestion = %q, want valid", got[1].Track.Key)
	}
}

func TestHarmonicSuggestionsMalformedAnchor(t *testing.T) {
	anchor := keyedTrack("anchor", "not-a-key")
	candidates := []ScoredTrack{keyedTrack("up", "9A")}

	got := HarmonicSuggestions(anchor, candidates)

	if len(got) != 1 || got[0].Track.Key != TrackKey("anchor") {
		t.Errorf("got %d suggestions, want anchor alone", len(got))
	}
}

func TestHarmonicSuggestionsCap(t *testing.T) {
	anchor := keyedTrack("anchor", "8A")
	var candidates []ScoredTrack
	for i := 0; i < 5; i++ {
		candidates = append(candidates,
			keyedTrack("same", "8A"),
			keyedTrack("up", "9A"),
			keyedTrack("down", "7A"),
		)
	}

	got := HarmonicSuggestions(anchor, candidates)
	if len(got) > maxHarmonicSuggestions {
		t.Errorf("len = %d, want at most %d", len(got), maxHarmonicSuggestions)
	}
}

func TestHarmonicSuggestionsSkipsAnchorItself(t *testing.T) {
	anchor := keyedTrack("anchor", "8A")
	candidates := []ScoredTrack{
		keyedTrack("anchor", "8A"), // anchor appears in the candidate list too
		keyedTrack("twin", "8A"),
	}

	got := HarmonicSuggestions(anchor, candidates)

	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[1].Track.Key != TrackKey("twin") {
		t.Errorf("perfect slot = %q, want twin (not the anchor again)", got[1].Track.Key)
	}
}
