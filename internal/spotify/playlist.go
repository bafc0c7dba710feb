package spotify

import (
	"context"
	"fmt"

	"github.com/zmb3/spotify/v2"
)

// ExportQueue creates a playlist from the event's play order so the set
// survives the night. Returns the playlist ID. Tracks without Spotify
// ids cannot be exported and should be filtered by the caller.
func (c *Client) ExportQueue(ctx context.Context, name, description string, trackIDs []string) (string, error) {
	userID, err := c.UserID(ctx)
	if err != nil {
		return "", err
	}

	playlist, err := c.api.CreatePlaylistForUser(ctx, userID, name, description, false, false)
	if err != nil {
		return "", fmt.Errorf("creating playlist: %w", err)
	}

	ids := make([]spotify.ID, len(trackIDs))
	for i, id := range trackIDs {
		ids[i] = spotify.ID(id)
	}

	// Spotify allows max 100 tracks per add request.
	for i := 0; i < len(ids); i += maxPlaylistAddPerRequest {
		end := min(i+maxPlaylistAddPerRequest, len(ids))
		if _, err := c.api.AddTracksToPlaylist(ctx, playlist.ID, ids[i:end]...); err != nil {
			return "", fmt.Errorf("adding tracks (batch %d-%d): %w", i+1, end, err)
		}
	}

	return playlist.ID.String(), nil
}
