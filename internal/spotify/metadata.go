package spotify

import (
	"context"
	"fmt"

	"github.com/zmb3/spotify/v2"

	"github.com/mlowery/go-crowdmix/internal/engine"
)

// TrackMetadata fetches catalog metadata and audio features for the
// referenced tracks, keyed by their aggregation identity. References
// without a Spotify ID are skipped: they fall back to the engine's
// documented defaults downstream. Requests are batched per the API
// limits (50 tracks, 100 feature sets).
func (c *Client) TrackMetadata(ctx context.Context, refs []engine.TrackRef) (map[engine.TrackKey]engine.TrackMeta, error) {
	metas := make(map[engine.TrackKey]engine.TrackMeta)

	ids := make([]spotify.ID, 0, len(refs))
	keyByID := make(map[string]engine.TrackKey, len(refs))
	for _, ref := range refs {
		if ref.ID == "" {
			continue
		}
		if _, dup := keyByID[ref.ID]; dup {
			continue
		}
		ids = append(ids, spotify.ID(ref.ID))
		keyByID[ref.ID] = engine.KeyFor(ref)
	}
	if len(ids) == 0 {
		return metas, nil
	}

	for i := 0; i < len(ids); i += maxTracksPerRequest {
		end := min(i+maxTracksPerRequest, len(ids))
		tracks, err := c.api.GetTracks(ctx, ids[i:end])
		if err != nil {
			return nil, fmt.Errorf("fetching tracks (batch %d-%d): %w", i+1, end, err)
		}
		for _, t := range tracks {
			if t == nil {
				continue
			}
			key, ok := keyByID[t.ID.String()]
			if !ok {
				continue
			}
			meta := metas[key]
			applyTrackFields(&meta, t)
			metas[key] = meta
		}
	}

	for i := 0; i < len(ids); i += maxFeaturesPerRequest {
		end := min(i+maxFeaturesPerRequest, len(ids))
		features, err := c.api.GetAudioFeatures(ctx, ids[i:end]...)
		if err != nil {
			return nil, fmt.Errorf("fetching audio features (batch %d-%d): %w", i+1, end, err)
		}
		for _, f := range features {
			if f == nil {
				continue // track has no audio features
			}
			key, ok := keyByID[f.ID.String()]
			if !ok {
				continue
			}
			meta := metas[key]
			applyAudioFeatures(&meta, f)
			metas[key] = meta
		}
	}

	return metas, nil
}

// applyTrackFields copies catalog fields to the metadata.
func applyTrackFields(meta *engine.TrackMeta, t *spotify.FullTrack) {
	popularity := int(t.Popularity)
	explicit := t.Explicit
	meta.Popularity = &popularity
	meta.Explicit = &explicit

	if release := t.Album.ReleaseDateTime(); !release.IsZero() {
		year := release.Year()
		meta.ReleaseYear = &year
	}
}

// applyAudioFeatures copies feature values to the metadata, rescaling
// Spotify's 0-1 features to the engine's 0-100 scale (acousticness and
// instrumentalness stay 0-1) and mapping key/mode to Camelot notation.
func applyAudioFeatures(meta *engine.TrackMeta, f *spotify.AudioFeatures) {
	energy := float64(f.Energy) * 100
	danceability := float64(f.Danceability) * 100
	valence := float64(f.Valence) * 100
	acousticness := float64(f.Acousticness)
	instrumentalness := float64(f.Instrumentalness)

	meta.Energy = &energy
	meta.Danceability = &danceability
	meta.Valence = &valence
	meta.Acousticness = &acousticness
	meta.Instrumentalness = &instrumentalness
	meta.Key = camelotKey(int(f.Key), int(f.Mode))
}
