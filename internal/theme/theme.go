// Package theme derives an event's vibe profile from the crowd's
// aggregated tracks and scores individual tracks against it. The
// engine consumes the resulting theme-fit as an opaque number; this
// package is the classifier behind it.
package theme

import (
	"math"
	"slices"

	"github.com/muesli/clusters"
	"github.com/muesli/kmeans"
)

// Track is the minimal view the classifier needs: audio features on
// Spotify's 0-1 scale, nil when not fetched or unavailable.
type Track struct {
	ID           string
	Name         string
	Energy       *float64
	Valence      *float64
	Danceability *float64
	Acousticness *float64
}

// Config holds vibe-profiling parameters.
type Config struct {
	NumClusters    int // clusters to partition the crowd's tracks into (default 3)
	MinClusterSize int // clusters smaller than this cannot define the vibe
}

// DefaultConfig returns the recommended configuration.
func DefaultConfig() Config {
	return Config{
		NumClusters:    3,
		MinClusterSize: 3,
	}
}

// Profile is the event's dominant vibe: the centroid of the largest
// feature cluster, with a descriptive name.
type Profile struct {
	Name         string
	Energy       float64
	Valence      float64
	Danceability float64
	Acousticness float64
	TrackCount   int // tracks backing the dominant cluster
}

// neutralFeature stands in for missing feature values when scoring.
const neutralFeature = 0.5

// trackObservation wraps a Track to implement clusters.Observation.
type trackObservation struct {
	track  *Track
	coords clusters.Coordinates
}

func (o trackObservation) Coordinates() clusters.Coordinates {
	return o.coords
}

func (o trackObservation) Distance(point clusters.Coordinates) float64 {
	return o.coords.Distance(point)
}

// BuildProfile derives the event's vibe from its tracks. Tracks with
// complete features are partitioned with k-means and the largest
// cluster's centroid becomes the profile; with too few complete tracks
// for clustering (or a failed partition) the profile falls back to the
// plain feature mean. An empty input yields a neutral profile.
func BuildProfile(tracks []Track, cfg Config) Profile {
	if cfg.NumClusters <= 0 {
		cfg.NumClusters = DefaultConfig().NumClusters
	}

	var valid []*Track
	for i := range tracks {
		if hasFeatures(&tracks[i]) {
			valid = append(valid, &tracks[i])
		}
	}

	if len(valid) == 0 {
		return named(Profile{
			Energy:       neutralFeature,
			Valence:      neutralFeature,
			Danceability: neutralFeature,
			Acousticness: neutralFeature,
		})
	}

	if len(valid) < cfg.NumClusters {
		return meanProfile(valid)
	}

	var obs clusters.Observations
	for _, t := range valid {
		obs = append(obs, trackObservation{track: t, coords: featureCoords(t)})
	}

	km := kmeans.New()
	result, err := km.Partition(obs, cfg.NumClusters)
	if err != nil {
		return meanProfile(valid)
	}

	// Dominant cluster: most observations, respecting the minimum size.
	best := -1
	for i, cluster := range result {
		if len(cluster.Observations) < cfg.MinClusterSize {
			continue
		}
		if best == -1 || len(cluster.Observations) > len(result[best].Observations) {
			best = i
		}
	}
	if best == -1 {
		return meanProfile(valid)
	}

	center := result[best].Center
	return named(Profile{
		Energy:       center[0],
		Valence:      center[1],
		Danceability: center[2],
		Acousticness: center[3],
		TrackCount:   len(result[best].Observations),
	})
}

// Fit scores how well a track matches the profile on [0,100]: 100 at
// the centroid, falling off with Euclidean distance across the feature
// cube. Missing features score as neutral rather than failing.
func (p Profile) Fit(t Track) float64 {
	d := 0.0
	for _, pair := range [][2]float64{
		{p.Energy, featureOrNeutral(t.Energy)},
		{p.Valence, featureOrNeutral(t.Valence)},
		{p.Danceability, featureOrNeutral(t.Danceability)},
		{p.Acousticness, featureOrNeutral(t.Acousticness)},
	} {
		diff := pair[0] - pair[1]
		d += diff * diff
	}
	dist := math.Sqrt(d)

	// The diagonal of the 4-feature unit cube is 2.
	const maxDist = 2.0
	fit := 100 * (1 - dist/maxDist)
	if fit < 0 {
		return 0
	}
	return fit
}

func hasFeatures(t *Track) bool {
	return t.Energy != nil &&
		t.Valence != nil &&
		t.Danceability != nil &&
		t.Acousticness != nil
}

func featureCoords(t *Track) clusters.Coordinates {
	return clusters.Coordinates{
		*t.Energy,
		*t.Valence,
		*t.Danceability,
		*t.Acousticness,
	}
}

func featureOrNeutral(v *float64) float64 {
	if v == nil {
		return neutralFeature
	}
	return *v
}

func meanProfile(tracks []*Track) Profile {
	var p Profile
	for _, t := range tracks {
		p.Energy += *t.Energy
		p.Valence += *t.Valence
		p.Danceability += *t.Danceability
		p.Acousticness += *t.Acousticness
	}
	n := float64(len(tracks))
	p.Energy /= n
	p.Valence /= n
	p.Danceability /= n
	p.Acousticness /= n
	p.TrackCount = len(tracks)
	return named(p)
}

func named(p Profile) Profile {
	p.Name = vibeName(p)
	return p
}

// SortTracks orders tracks by ID so observation order is deterministic
// regardless of caller map iteration.
func SortTracks(tracks []Track) {
	slices.SortFunc(tracks, func(a, b Track) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
}
