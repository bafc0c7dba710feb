package engine

import "github.com/mlowery/go-crowdmix/internal/camelot"

// maxHarmonicSuggestions caps the suggestion set: the anchor plus one
// track per compatibility class.
const maxHarmonicSuggestions = 4

// HarmonicSuggestion pairs a track with its relation to the anchor.
// The anchor itself is included with relation PerfectMatch.
type HarmonicSuggestion struct {
	Track    ScoredTrack
	Relation camelot.Compatibility
}

// HarmonicSuggestions builds the harmonic-flow recommendation set for
// an anchor track: the anchor, then the first candidate by existing
// order for each compatibility class (perfect, boost, drop), capped at
// four entries. Candidates are expected in crowd-match rank order.
// Classes with no compatible candidate are omitted, never backfilled.
// Tracks with missing or malformed keys are skipped; an anchor whose
// key cannot be parsed yields just the anchor.
func HarmonicSuggestions(anchor ScoredTrack, candidates []ScoredTrack) []HarmonicSuggestion {
	suggestions := []HarmonicSuggestion{{Track: anchor, Relation: camelot.PerfectMatch}}

	anchorKey, err := camelot.Parse(anchor.Meta.Key)
	if err != nil {
		return suggestions
	}

	filled := make(map[camelot.Compatibility]bool, 3)
	for _, candidate := range candidates {
		if len(suggestions) >= maxHarmonicSuggestions {
			break
		}
		if candidate.Key == anchor.Key {
			continue
		}
		key, err := camelot.Parse(candidate.Meta.Key)
		if err != nil {
			continue
		}
		relation, ok := camelot.Describe(key, anchorKey)
		if !ok || filled[relation] {
			continue
		}
		filled[relation] = true
		suggestions = append(suggestions, HarmonicSuggestion{Track: candidate, Relation: relation})
	}

	return suggestions
}
