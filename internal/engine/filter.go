package engine

import (
	"fmt"
	"math"
	"slices"
)

// averageTrackMinutes approximates how many queue entries one minute of
// cooldown corresponds to.
const averageTrackMinutes = 3.5

// Range is an inclusive numeric bound on the 0-100 scale. The full
// range filters nothing.
type Range struct {
	Min float64
	Max float64
}

// FullRange returns the no-op bound.
func FullRange() Range {
	return Range{Min: 0, Max: 100}
}

func (r Range) isFull() bool {
	return r.Min <= 0 && r.Max >= 100
}

func (r Range) contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// ConfigError reports an invalid filter configuration, such as an
// inverted numeric range. It is caller-correctable and never retried.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid filter config: %s %s", e.Field, e.Reason)
}

// FilterConfig is a named set of smart-filter knobs. Zero values
// disable everything except the range fields, which must be
// constructed full; DefaultFilterConfig gives the all-disabled form.
type FilterConfig struct {
	Name string

	ExcludeExplicit bool

	// ArtistCooldownMinutes suppresses artist repetition: 0 disables.
	ArtistCooldownMinutes int

	EraEnabled   bool
	EraMinDecade int // e.g. 1980
	EraMaxDecade int // e.g. 2010

	Energy       Range
	Danceability Range
	Valence      Range

	// VocalFocus re-sorts vocal-forward tracks first. It does not
	// compose with harmonic flow; when both are on, harmonic flow wins
	// and the resort is skipped.
	VocalFocus   bool
	HarmonicFlow bool
}

// DefaultFilterConfig returns the identity configuration: applying it
// returns any track list unchanged.
func DefaultFilterConfig() FilterConfig {
	return FilterConfig{
		Energy:       FullRange(),
		Danceability: FullRange(),
		Valence:      FullRange(),
	}
}

// Validate checks the numeric bounds. Each violation is reported as a
// ConfigError naming the offending field.
func (c FilterConfig) Validate() error {
	for _, r := range []struct {
		name string
		rng  Range
	}{
		{"energy", c.Energy},
		{"danceability", c.Danceability},
		{"valence", c.Valence},
	} {
		if r.rng.Min > r.rng.Max {
			return &ConfigError{Field: r.name, Reason: fmt.Sprintf("min %.0f > max %.0f", r.rng.Min, r.rng.Max)}
		}
	}
	if c.EraEnabled && c.EraMinDecade > c.EraMaxDecade {
		return &ConfigError{Field: "era", Reason: fmt.Sprintf("min decade %d > max decade %d", c.EraMinDecade, c.EraMaxDecade)}
	}
	if c.ArtistCooldownMinutes < 0 {
		return &ConfigError{Field: "artistCooldown", Reason: "negative cooldown"}
	}
	return nil
}

// ApplyFilters runs the smart filter stages in their fixed, declared
// order: explicit exclusion, artist cooldown, era bounds, the three
// feature ranges, then the vocal-focus resort. With every option
// disabled the input comes back unchanged and in original order.
func ApplyFilters(tracks []ScoredTrack, cfg FilterConfig, recentQueue []QueueEntry) ([]ScoredTrack, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	out := slices.Clone(tracks)

	if cfg.ExcludeExplicit {
		out = filterExplicit(out)
	}
	if cfg.ArtistCooldownMinutes > 0 {
		out = filterArtistCooldown(out, cfg.ArtistCooldownMinutes, recentQueue)
	}
	if cfg.EraEnabled {
		out = filterEra(out, cfg.EraMinDecade, cfg.EraMaxDecade)
	}
	out = filterRange(out, cfg.Energy, TrackMeta.EnergyOrDefault)
	out = filterRange(out, cfg.Danceability, TrackMeta.DanceabilityOrDefault)
	out = filterRange(out, cfg.Valence, TrackMeta.ValenceOrDefault)

	if cfg.VocalFocus && !cfg.HarmonicFlow {
		sortVocalFocus(out)
	}

	return out, nil
}

// filterExplicit drops tracks flagged explicit.
func filterExplicit(tracks []ScoredTrack) []ScoredTrack {
	return slices.DeleteFunc(tracks, func(t ScoredTrack) bool {
		return t.Meta.IsExplicit()
	})
}

// filterArtistCooldown drops tracks whose artist appeared among the
// last N queue entries, where N approximates the cooldown window in
// tracks rather than minutes.
func filterArtistCooldown(tracks []ScoredTrack, cooldownMinutes int, recentQueue []QueueEntry) []ScoredTrack {
	window := int(math.Ceil(float64(cooldownMinutes) / averageTrackMinutes))
	if window > len(recentQueue) {
		window = len(recentQueue)
	}
	if window == 0 {
		return tracks
	}

	recent := make(map[string]struct{})
	for _, entry := range recentQueue[len(recentQueue)-window:] {
		for _, artist := range entry.Artists {
			recent[normalizeName(artist)] = struct{}{}
		}
	}

	return slices.DeleteFunc(tracks, func(t ScoredTrack) bool {
		for _, artist := range t.Artists {
			if _, ok := recent[normalizeName(artist)]; ok {
				return true
			}
		}
		return false
	})
}

// filterEra drops tracks whose release decade falls outside the bounds.
// Tracks without a release year pass through.
func filterEra(tracks []ScoredTrack, minDecade, maxDecade int) []ScoredTrack {
	return slices.DeleteFunc(tracks, func(t ScoredTrack) bool {
		if t.Meta.ReleaseYear == nil {
			return false
		}
		decade := (*t.Meta.ReleaseYear / 10) * 10
		return decade < minDecade || decade > maxDecade
	})
}

// filterRange drops tracks whose resolved feature value falls outside
// the bound. The full range is the identity.
func filterRange(tracks []ScoredTrack, r Range, resolve func(TrackMeta) float64) []ScoredTrack {
	if r.isFull() {
		return tracks
	}
	return slices.DeleteFunc(tracks, func(t ScoredTrack) bool {
		return !r.contains(resolve(t.Meta))
	})
}

// sortVocalFocus stably reorders vocal-forward tracks first (ascending
// instrumentalness).
func sortVocalFocus(tracks []ScoredTrack) {
	slices.SortStableFunc(tracks, func(a, b ScoredTrack) int {
		ai := a.Meta.InstrumentalnessOrDefault()
		bi := b.Meta.InstrumentalnessOrDefault()
		switch {
		case ai < bi:
			return -1
		case ai > bi:
			return 1
		}
		return 0
	})
}
