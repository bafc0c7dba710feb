package engine

import (
	"math"
	"testing"
)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }
func boolPtr(v bool) *bool        { return &v }

func TestScoreFrequencyDominates(t *testing.T) {
	// Two guests of three back the Kygo track, one backs the Avicii
	// track; equal popularity. Frequency must decide.
	weights := DefaultScoreWeights()
	pop := TrackMeta{Popularity: intPtr(70)}

	kygo := Score(TrackStat{Key: "id:k", Frequency: 2}, pop, 0, 3, weights)
	avicii := Score(TrackStat{Key: "id:a", Frequency: 1}, pop, 0, 3, weights)

	if kygo.CrowdMatch <= avicii.CrowdMatch {
		t.Errorf("CrowdMatch: kygo %.2f <= avicii %.2f, want frequency to dominate", kygo.CrowdMatch, avicii.CrowdMatch)
	}
}

func TestScoreHigherPopularityCannotBeatExtraGuest(t *testing.T) {
	weights := DefaultScoreWeights()

	flagged := Score(TrackStat{Frequency: 3}, TrackMeta{Popularity: intPtr(40)}, 0, 3, weights)
	popular := Score(TrackStat{Frequency: 1}, TrackMeta{Popularity: intPtr(95)}, 0, 3, weights)

	if flagged.CrowdMatch <= popular.CrowdMatch {
		t.Errorf("three guests at pop 40 scored %.2f, one guest at pop 95 scored %.2f; want the former higher",
			flagged.CrowdMatch, popular.CrowdMatch)
	}
}

func TestScoreZeroGuests(t *testing.T) {
	got := Score(TrackStat{Frequency: 5}, TrackMeta{Popularity: intPtr(90)}, 99, 0, DefaultScoreWeights())

	if got.CrowdMatch != 0 || got.ThemeMatch != 0 {
		t.Errorf("empty crowd: scores = %.2f/%.2f, want 0/0", got.CrowdMatch, got.ThemeMatch)
	}
}

func TestScoreFrequencyCappedAtCrowdSize(t *testing.T) {
	// Frequency above totalGuests (defensive against caller bugs) must
	// not push the normalized term past 1.
	got := Score(TrackStat{Frequency: 10}, TrackMeta{Popularity: intPtr(100)}, 0, 3, DefaultScoreWeights())

	if got.CrowdMatch > 100 {
		t.Errorf("CrowdMatch = %.2f, want <= 100", got.CrowdMatch)
	}
	if got.CrowdMatch != 100 {
		t.Errorf("CrowdMatch = %.2f, want exactly 100 at full frequency and popularity", got.CrowdMatch)
	}
}

func TestScoreThemePassthrough(t *testing.T) {
	tests := []struct {
		name     string
		themeFit float64
		want     float64
	}{
		{"unchanged", 94, 94},
		{"fractional preserved", 87.4, 87.4},
		{"clamped high", 140, 100},
		{"clamped low", -5, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(TrackStat{Frequency: 1}, TrackMeta{}, tt.themeFit, 2, DefaultScoreWeights())
			if got.ThemeMatch != tt.want {
				t.Errorf("ThemeMatch = %v, want %v", got.ThemeMatch, tt.want)
			}
		})
	}
}

func TestScoreUnroundedInternally(t *testing.T) {
	// 1/3 frequency share with zero popularity: the raw score keeps its
	// fraction; only the presentation helper rounds.
	got := Score(TrackStat{Frequency: 1}, TrackMeta{}, 0, 3, DefaultScoreWeights())

	want := 100 * 0.7 / 3
	if math.Abs(got.CrowdMatch-want) > 1e-9 {
		t.Errorf("CrowdMatch = %v, want %v", got.CrowdMatch, want)
	}
	if got.CrowdMatchPercent() != 23 {
		t.Errorf("CrowdMatchPercent() = %d, want 23", got.CrowdMatchPercent())
	}
}

func TestTrackMetaDefaults(t *testing.T) {
	var m TrackMeta

	if got := m.PopularityOrDefault(); got != DefaultPopularity {
		t.Errorf("PopularityOrDefault() = %d, want %d", got, DefaultPopularity)
	}
	if got := m.EnergyOrDefault(); got != DefaultFeature {
		t.Errorf("EnergyOrDefault() = %v, want %v", got, DefaultFeature)
	}
	if got := m.DanceabilityOrDefault(); got != DefaultFeature {
		t.Errorf("DanceabilityOrDefault() = %v, want %v", got, DefaultFeature)
	}
	if got := m.ValenceOrDefault(); got != DefaultFeature {
		t.Errorf("ValenceOrDefault() = %v, want %v", got, DefaultFeature)
	}
	if got := m.InstrumentalnessOrDefault(); got != DefaultInstrumentalness {
		t.Errorf("InstrumentalnessOrDefault() = %v, want %v", got, DefaultInstrumentalness)
	}
	if m.IsExplicit() {
		t.Error("IsExplicit() = true for missing flag, want false")
	}
}

func TestTrackMetaClamping(t *testing.T) {
	m := TrackMeta{
		Popularity:       intPtr(150),
		Energy:           floatPtr(-10),
		Instrumentalness: floatPtr(2),
	}

	if got := m.PopularityOrDefault(); got != 100 {
		t.Errorf("PopularityOrDefault() = %d, want 100", got)
	}
	if got := m.EnergyOrDefault(); got != 0 {
		t.Errorf("EnergyOrDefault() = %v, want 0", got)
	}
	if got := m.InstrumentalnessOrDefault(); got != 1 {
		t.Errorf("InstrumentalnessOrDefault() = %v, want 1", got)
	}
}
