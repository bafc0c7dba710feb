package spotify

import (
	"context"
	"fmt"
	"time"

	"github.com/zmb3/spotify/v2"

	"github.com/mlowery/go-crowdmix/internal/engine"
)

// GuestTaste builds a preference record from the authenticated guest's
// listening history: top artists (with their genres) and recently
// played tracks. The guest id is the Spotify user id; EventID is left
// for the caller to fill.
func (c *Client) GuestTaste(ctx context.Context, now time.Time) (*engine.PreferenceRecord, error) {
	guestID, err := c.UserID(ctx)
	if err != nil {
		return nil, err
	}

	artistPage, err := c.api.CurrentUsersTopArtists(ctx, spotify.Limit(20))
	if err != nil {
		return nil, fmt.Errorf("fetching top artists: %w", err)
	}

	var artists []string
	genreSeen := make(map[string]struct{})
	var genres []string
	for _, artist := range artistPage.Artists {
		artists = append(artists, artist.Name)
		for _, genre := range artist.Genres {
			if _, dup := genreSeen[genre]; dup {
				continue
			}
			genreSeen[genre] = struct{}{}
			genres = append(genres, genre)
		}
	}

	recent, err := c.api.PlayerRecentlyPlayed(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching recently played: %w", err)
	}

	var recentRefs []engine.TrackRef
	trackSeen := make(map[string]struct{})
	for _, item := range recent {
		id := item.Track.ID.String()
		if _, dup := trackSeen[id]; dup {
			continue
		}
		trackSeen[id] = struct{}{}
		recentRefs = append(recentRefs, engine.TrackRef{
			ID:      id,
			Name:    item.Track.Name,
			Artists: artistNames(item.Track.Artists),
		})
	}

	return &engine.PreferenceRecord{
		GuestID:      guestID,
		Artists:      artists,
		Genres:       genres,
		RecentTracks: recentRefs,
		Source:       engine.SourceSpotify,
		SubmittedAt:  now,
	}, nil
}

func artistNames(artists []spotify.SimpleArtist) []string {
	names := make([]string, len(artists))
	for i, a := range artists {
		names[i] = a.Name
	}
	return names
}
