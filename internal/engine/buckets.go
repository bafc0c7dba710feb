package engine

import "slices"

// BucketConfig tunes the favorites / hidden-anthems split.
type BucketConfig struct {
	// HiddenThemeMin is the minimum theme-match for a hidden anthem.
	HiddenThemeMin float64
	// HiddenPopularityMax is the maximum catalog popularity for a
	// hidden anthem.
	HiddenPopularityMax int
	// FavoritesTopK is how many leading favorites are barred from the
	// hidden-anthems bucket, so no track is listed twice.
	FavoritesTopK int
}

// DefaultBucketConfig returns the standard thresholds.
func DefaultBucketConfig() BucketConfig {
	return BucketConfig{
		HiddenThemeMin:      85,
		HiddenPopularityMax: 55,
		FavoritesTopK:       10,
	}
}

// Buckets is the two-way split of scored tracks for one refresh.
type Buckets struct {
	Favorites     []ScoredTrack
	HiddenAnthems []ScoredTrack
}

// Classify splits scored tracks into crowd favorites and hidden
// anthems. Favorites hold every track ordered by crowd-match, ties by
// frequency then first-seen, so the output is stable across runs.
// Hidden anthems are thematically strong but under-played tracks not
// already in the top-K favorites; queued lists anthems the organizer
// has already pulled into the live set this session, which stay out of
// the bucket until reinstated. A track appears in at most one bucket.
func Classify(scored []ScoredTrack, cfg BucketConfig, queued map[TrackKey]struct{}) Buckets {
	favorites := make([]ScoredTrack, 0, len(scored))
	for _, t := range scored {
		if t.Frequency < 1 {
			continue
		}
		favorites = append(favorites, t)
	}

	slices.SortFunc(favorites, func(a, b ScoredTrack) int {
		if a.CrowdMatch != b.CrowdMatch {
			if a.CrowdMatch > b.CrowdMatch {
				return -1
			}
			return 1
		}
		if a.Frequency != b.Frequency {
			return b.Frequency - a.Frequency
		}
		return a.FirstSeen - b.FirstSeen
	})

	topK := make(map[TrackKey]struct{}, cfg.FavoritesTopK)
	for i, t := range favorites {
		if i >= cfg.FavoritesTopK {
			break
		}
		topK[t.Key] = struct{}{}
	}

	var anthems []ScoredTrack
	for _, t := range favorites {
		if t.ThemeMatch < cfg.HiddenThemeMin {
			continue
		}
		if t.Meta.PopularityOrDefault() > cfg.HiddenPopularityMax {
			continue
		}
		if _, top := topK[t.Key]; top {
			continue
		}
		if _, q := queued[t.Key]; q {
			continue
		}
		anthems = append(anthems, t)
	}

	slices.SortFunc(anthems, func(a, b ScoredTrack) int {
		if a.ThemeMatch != b.ThemeMatch {
			if a.ThemeMatch > b.ThemeMatch {
				return -1
			}
			return 1
		}
		if a.Frequency != b.Frequency {
			return b.Frequency - a.Frequency
		}
		return a.FirstSeen - b.FirstSeen
	})

	// Anthems leave the favorites list so no track is shown twice.
	if len(anthems) > 0 {
		inAnthems := make(map[TrackKey]struct{}, len(anthems))
		for _, t := range anthems {
			inAnthems[t.Key] = struct{}{}
		}
		favorites = slices.DeleteFunc(favorites, func(t ScoredTrack) bool {
			_, ok := inAnthems[t.Key]
			return ok
		})
	}

	return Buckets{Favorites: favorites, HiddenAnthems: anthems}
}
