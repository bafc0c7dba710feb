package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/mlowery/go-crowdmix/internal/curator"
	"github.com/mlowery/go-crowdmix/internal/db"
	"github.com/mlowery/go-crowdmix/internal/engine"
)

type eventResponse struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"ownerId"`
	Name      string    `json:"name"`
	Theme     string    `json:"theme,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	Archived  bool      `json:"archived"`
}

func toEventResponse(e *db.Event) eventResponse {
	return eventResponse{
		ID:        e.ID.String(),
		OwnerID:   e.OwnerID,
		Name:      e.Name,
		Theme:     e.Theme,
		CreatedAt: e.CreatedAt,
		Archived:  e.ArchivedAt != nil,
	}
}

type trackResponse struct {
	Key        string   `json:"key"`
	ID         string   `json:"id,omitempty"`
	Name       string   `json:"name"`
	Artists    []string `json:"artists,omitempty"`
	Album      string   `json:"album,omitempty"`
	Frequency  int      `json:"frequency"`
	CrowdMatch int      `json:"crowdMatch"`
	ThemeMatch int      `json:"themeMatch"`
	CamelotKey string   `json:"camelotKey,omitempty"`
	RankChange *int     `json:"rankChange"`
}

func toTrackResponse(t engine.ScoredTrack) trackResponse {
	return trackResponse{
		Key:        string(t.Key),
		ID:         t.ID,
		Name:       t.Name,
		Artists:    t.Artists,
		Album:      t.Album,
		Frequency:  t.Frequency,
		CrowdMatch: t.CrowdMatchPercent(),
		ThemeMatch: t.ThemeMatchPercent(),
		CamelotKey: t.Meta.Key,
		RankChange: t.RankChange,
	}
}

func toTrackResponses(tracks []engine.ScoredTrack) []trackResponse {
	out := make([]trackResponse, len(tracks))
	for i, t := range tracks {
		out[i] = toTrackResponse(t)
	}
	return out
}

type nameCountResponse struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type snapshotResponse struct {
	EventID       string              `json:"eventId"`
	TotalGuests   int                 `json:"totalGuests"`
	Vibe          string              `json:"vibe"`
	Favorites     []trackResponse     `json:"favorites"`
	HiddenAnthems []trackResponse     `json:"hiddenAnthems"`
	TopGenres     []nameCountResponse `json:"topGenres"`
	TopArtists    []nameCountResponse `json:"topArtists"`
	RefreshedAt   time.Time           `json:"refreshedAt"`
}

func toSnapshotResponse(s *curator.Snapshot) snapshotResponse {
	return snapshotResponse{
		EventID:       s.EventID.String(),
		TotalGuests:   s.TotalGuests,
		Vibe:          s.Profile.Name,
		Favorites:     toTrackResponses(s.Buckets.Favorites),
		HiddenAnthems: toTrackResponses(s.Buckets.HiddenAnthems),
		TopGenres:     toNameCounts(s.TopGenres),
		TopArtists:    toNameCounts(s.TopArtists),
		RefreshedAt:   s.RefreshedAt,
	}
}

func toNameCounts(counts []curator.NameCount) []nameCountResponse {
	out := make([]nameCountResponse, len(counts))
	for i, c := range counts {
		out[i] = nameCountResponse{Name: c.Name, Count: c.Count}
	}
	return out
}

type harmonicResponse struct {
	Track    trackResponse `json:"track"`
	Relation string        `json:"relation"`
}

type queueEntryResponse struct {
	ID       string    `json:"id"`
	TrackKey string    `json:"trackKey"`
	TrackID  string    `json:"trackId,omitempty"`
	Name     string    `json:"name"`
	Artists  []string  `json:"artists,omitempty"`
	Source   string    `json:"source"`
	Position int       `json:"position"`
	AddedAt  time.Time `json:"addedAt"`
	Removed  bool      `json:"removed"`
}

func toQueueEntryResponse(e *db.QueueEntry) queueEntryResponse {
	return queueEntryResponse{
		ID:       e.ID.String(),
		TrackKey: e.TrackKey,
		TrackID:  e.TrackID,
		Name:     e.Name,
		Artists:  e.Artists,
		Source:   e.Source,
		Position: e.Position,
		AddedAt:  e.AddedAt,
		Removed:  e.RemovedAt != nil,
	}
}

type rangeRequest struct {
	Min *float64 `json:"min"`
	Max *float64 `json:"max"`
}

func (r *rangeRequest) toRange() engine.Range {
	out := engine.FullRange()
	if r == nil {
		return out
	}
	if r.Min != nil {
		out.Min = *r.Min
	}
	if r.Max != nil {
		out.Max = *r.Max
	}
	return out
}

// filterRequest is the wire form of a smart-filter configuration.
// Omitted fields disable their stage.
type filterRequest struct {
	Name                  string        `json:"name"`
	ExcludeExplicit       bool          `json:"excludeExplicit"`
	ArtistCooldownMinutes int           `json:"artistCooldownMinutes"`
	EraMinDecade          *int          `json:"eraMinDecade"`
	EraMaxDecade          *int          `json:"eraMaxDecade"`
	Energy                *rangeRequest `json:"energy"`
	Danceability          *rangeRequest `json:"danceability"`
	Valence               *rangeRequest `json:"valence"`
	VocalFocus            bool          `json:"vocalFocus"`
	HarmonicFlow          bool          `json:"harmonicFlow"`
}

func (r filterRequest) toConfig() engine.FilterConfig {
	cfg := engine.DefaultFilterConfig()
	cfg.Name = r.Name
	cfg.ExcludeExplicit = r.ExcludeExplicit
	cfg.ArtistCooldownMinutes = r.ArtistCooldownMinutes
	cfg.Energy = r.Energy.toRange()
	cfg.Danceability = r.Danceability.toRange()
	cfg.Valence = r.Valence.toRange()
	cfg.VocalFocus = r.VocalFocus
	cfg.HarmonicFlow = r.HarmonicFlow

	if r.EraMinDecade != nil || r.EraMaxDecade != nil {
		cfg.EraEnabled = true
		cfg.EraMinDecade = 1950
		cfg.EraMaxDecade = time.Now().Year() / 10 * 10
		if r.EraMinDecade != nil {
			cfg.EraMinDecade = *r.EraMinDecade
		}
		if r.EraMaxDecade != nil {
			cfg.EraMaxDecade = *r.EraMaxDecade
		}
	}
	return cfg
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
