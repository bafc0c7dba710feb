package engine

import "math"

// Default values substituted when catalog metadata is missing. The
// engine degrades rather than fails: an unknown field gets a neutral
// default and the track stays eligible for scoring.
const (
	DefaultPopularity       = 0
	DefaultFeature          = 50.0 // energy, danceability, valence
	DefaultInstrumentalness = 0.5
)

// TrackMeta carries externally supplied catalog metadata. Every field
// is optional; resolver methods substitute the documented defaults.
type TrackMeta struct {
	Popularity       *int     // 0-100
	Explicit         *bool
	ReleaseYear      *int
	Key              string   // Camelot notation, "" when unknown
	Energy           *float64 // 0-100
	Danceability     *float64 // 0-100
	Valence          *float64 // 0-100
	Acousticness     *float64 // 0-1
	Instrumentalness *float64 // 0-1
}

// PopularityOrDefault resolves the catalog popularity.
func (m TrackMeta) PopularityOrDefault() int {
	if m.Popularity == nil {
		return DefaultPopularity
	}
	return clampInt(*m.Popularity, 0, 100)
}

// IsExplicit resolves the explicit flag, defaulting to clean.
func (m TrackMeta) IsExplicit() bool {
	return m.Explicit != nil && *m.Explicit
}

// EnergyOrDefault resolves the energy value on the 0-100 scale.
func (m TrackMeta) EnergyOrDefault() float64 { return featureOrDefault(m.Energy) }

// DanceabilityOrDefault resolves danceability on the 0-100 scale.
func (m TrackMeta) DanceabilityOrDefault() float64 { return featureOrDefault(m.Danceability) }

// ValenceOrDefault resolves valence on the 0-100 scale.
func (m TrackMeta) ValenceOrDefault() float64 { return featureOrDefault(m.Valence) }

// InstrumentalnessOrDefault resolves instrumentalness on the 0-1 scale.
func (m TrackMeta) InstrumentalnessOrDefault() float64 {
	if m.Instrumentalness == nil {
		return DefaultInstrumentalness
	}
	return clampFloat(*m.Instrumentalness, 0, 1)
}

func featureOrDefault(v *float64) float64 {
	if v == nil {
		return DefaultFeature
	}
	return clampFloat(*v, 0, 100)
}

// ScoredTrack is a TrackStat with derived scores and resolved metadata.
type ScoredTrack struct {
	TrackStat
	Meta TrackMeta

	// CrowdMatch estimates how strongly the measured crowd backs the
	// track; ThemeMatch is the externally classified fit to the event's
	// vibe. Both live on [0,100] and stay unrounded internally.
	CrowdMatch float64
	ThemeMatch float64

	// RankChange is previousRank - currentRank from the last refresh
	// (positive = moved up). Nil for tracks new to the ranking.
	RankChange *int
}

// CrowdMatchPercent rounds CrowdMatch for presentation.
func (t ScoredTrack) CrowdMatchPercent() int {
	return int(math.Round(clampFloat(t.CrowdMatch, 0, 100)))
}

// ThemeMatchPercent rounds ThemeMatch for presentation.
func (t ScoredTrack) ThemeMatchPercent() int {
	return int(math.Round(clampFloat(t.ThemeMatch, 0, 100)))
}

// ScoreWeights blends normalized guest frequency with catalog
// popularity. Frequency must dominate: a track three guests flagged
// matters more than one with slightly higher catalog popularity. The
// exact coefficients are tunable; frequency-dominance is the contract.
type ScoreWeights struct {
	Frequency  float64
	Popularity float64
}

// DefaultScoreWeights returns the frequency-dominant blend.
func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{Frequency: 0.7, Popularity: 0.3}
}

// Score derives a ScoredTrack from aggregated stats. themeFit is the
// external classifier's output, passed through unchanged apart from
// clamping. totalGuests == 0 yields zero scores: an empty crowd backs
// nothing, and such tracks are excluded from every bucket.
func Score(stat TrackStat, meta TrackMeta, themeFit float64, totalGuests int, w ScoreWeights) ScoredTrack {
	t := ScoredTrack{TrackStat: stat, Meta: meta}
	if totalGuests <= 0 {
		return t
	}

	freq := math.Min(float64(stat.Frequency)/float64(totalGuests), 1.0)
	pop := float64(meta.PopularityOrDefault()) / 100.0

	t.CrowdMatch = clampFloat(100*(w.Frequency*freq+w.Popularity*pop), 0, 100)
	t.ThemeMatch = clampFloat(themeFit, 0, 100)
	return t
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
