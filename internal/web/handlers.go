package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mlowery/go-crowdmix/internal/auth"
	"github.com/mlowery/go-crowdmix/internal/curator"
	"github.com/mlowery/go-crowdmix/internal/db"
	"github.com/mlowery/go-crowdmix/internal/engine"
	"github.com/mlowery/go-crowdmix/internal/spotify"
)

// maxSubmissionBytes bounds a guest preference payload.
const maxSubmissionBytes = 1 << 20

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	auth     *auth.Authenticator
	sessions *SessionStore
	database *db.DB
	curator  *curator.Service
	log      zerolog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(authenticator *auth.Authenticator, sessions *SessionStore, database *db.DB, svc *curator.Service, log zerolog.Logger) *Handlers {
	return &Handlers{
		auth:     authenticator,
		sessions: sessions,
		database: database,
		curator:  svc,
		log:      log,
	}
}

// Login initiates the Spotify OAuth flow (GET /auth/login).
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	state, err := auth.GenerateState()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to generate state")
		return
	}

	// State round-trips through a short-lived cookie for CSRF checking.
	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   300,
	})

	http.Redirect(w, r, h.auth.AuthURL(state), http.StatusTemporaryRedirect)
}

// Callback handles the OAuth callback from Spotify (GET /callback).
func (h *Handlers) Callback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie("oauth_state")
	if err != nil {
		respondError(w, http.StatusBadRequest, "missing state cookie")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})

	token, err := h.auth.Exchange(r.Context(), stateCookie.Value, r)
	if err != nil {
		if errors.Is(err, auth.ErrStateMismatch) {
			respondError(w, http.StatusBadRequest, "state mismatch")
			return
		}
		h.log.Error().Err(err).Msg("token exchange failed")
		respondError(w, http.StatusInternalServerError, "failed to complete login")
		return
	}

	user, err := h.auth.ClientFor(r.Context(), token).CurrentUser(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("fetching current user failed")
		respondError(w, http.StatusInternalServerError, "failed to load user profile")
		return
	}

	session, err := h.sessions.Create(token, string(user.ID), user.DisplayName)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	h.sessions.SetCookie(w, session)

	http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
}

// Logout clears the session (POST /auth/logout).
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if session := h.sessions.GetFromRequest(r); session != nil {
		h.sessions.Delete(session.ID)
	}
	h.sessions.ClearCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the logged-in user (GET /api/me).
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	session := h.requireSession(w, r)
	if session == nil {
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"id":   session.UserID,
		"name": session.UserName,
	})
}

// CreateEvent creates an event owned by the logged-in organizer
// (POST /api/events).
func (h *Handlers) CreateEvent(w http.ResponseWriter, r *http.Request) {
	session := h.requireSession(w, r)
	if session == nil {
		return
	}

	var req struct {
		Name  string `json:"name"`
		Theme string `json:"theme"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "event name is required")
		return
	}

	event := &db.Event{
		OwnerID: session.UserID,
		Name:    req.Name,
		Theme:   req.Theme,
	}
	if err := h.database.Events().Create(r.Context(), event); err != nil {
		h.log.Error().Err(err).Msg("creating event failed")
		respondError(w, http.StatusInternalServerError, "failed to create event")
		return
	}

	respondJSON(w, http.StatusCreated, toEventResponse(event))
}

// ListEvents lists the organizer's active events (GET /api/events).
func (h *Handlers) ListEvents(w http.ResponseWriter, r *http.Request) {
	session := h.requireSession(w, r)
	if session == nil {
		return
	}

	events, err := h.database.Events().ListForOwner(r.Context(), session.UserID)
	if err != nil {
		h.log.Error().Err(err).Msg("listing events failed")
		respondError(w, http.StatusInternalServerError, "failed to list events")
		return
	}

	out := make([]eventResponse, len(events))
	for i := range events {
		out[i] = toEventResponse(&events[i])
	}
	respondJSON(w, http.StatusOK, out)
}

// GetEvent returns one event (GET /api/events/{eventID}). Guests use
// this to confirm the event before submitting, so no login is needed.
func (h *Handlers) GetEvent(w http.ResponseWriter, r *http.Request) {
	eventID, ok := h.eventIDParam(w, r)
	if !ok {
		return
	}

	event, err := h.database.Events().Get(r.Context(), eventID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			respondError(w, http.StatusNotFound, "event not found")
			return
		}
		h.log.Error().Err(err).Msg("loading event failed")
		respondError(w, http.StatusInternalServerError, "failed to load event")
		return
	}

	respondJSON(w, http.StatusOK, toEventResponse(event))
}

// ArchiveEvent archives an event and drops its in-memory state
// (POST /api/events/{eventID}/archive).
func (h *Handlers) ArchiveEvent(w http.ResponseWriter, r *http.Request) {
	session := h.requireSession(w, r)
	if session == nil {
		return
	}
	event, ok := h.ownedEvent(w, r, session)
	if !ok {
		return
	}

	if err := h.database.Events().Archive(r.Context(), event.ID); err != nil {
		h.log.Error().Err(err).Msg("archiving event failed")
		respondError(w, http.StatusInternalServerError, "failed to archive event")
		return
	}
	h.curator.Forget(event.ID)

	w.WriteHeader(http.StatusNoContent)
}

// SubmitPreferences stores a guest's submission, replacing any earlier
// one from the same guest (POST /api/events/{eventID}/preferences).
func (h *Handlers) SubmitPreferences(w http.ResponseWriter, r *http.Request) {
	eventID, ok := h.eventIDParam(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxSubmissionBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	record, err := engine.ParseSubmission(eventID.String(), body, time.Now())
	if err != nil {
		if errors.Is(err, engine.ErrMissingGuestID) {
			respondError(w, http.StatusBadRequest, "guestId is required")
			return
		}
		respondError(w, http.StatusBadRequest, "malformed submission")
		return
	}

	if err := h.database.Records().Upsert(r.Context(), eventID, record); err != nil {
		h.log.Error().Err(err).Msg("storing submission failed")
		respondError(w, http.StatusInternalServerError, "failed to store submission")
		return
	}

	h.log.Info().
		Str("event_id", eventID.String()).
		Str("guest_id", record.GuestID).
		Int("tracks", len(record.Tracks)).
		Msg("preference submission stored")

	w.WriteHeader(http.StatusNoContent)
}

// ImportTaste pulls the logged-in guest's Spotify listening taste into
// the event (POST /api/events/{eventID}/preferences/spotify).
func (h *Handlers) ImportTaste(w http.ResponseWriter, r *http.Request) {
	session := h.requireSession(w, r)
	if session == nil {
		return
	}
	eventID, ok := h.eventIDParam(w, r)
	if !ok {
		return
	}

	client := spotify.New(h.auth.ClientFor(r.Context(), session.Token))
	record, err := client.GuestTaste(r.Context(), time.Now())
	if err != nil {
		h.log.Error().Err(err).Msg("importing taste failed")
		respondError(w, http.StatusBadGateway, "failed to read Spotify taste")
		return
	}
	record.EventID = eventID.String()

	if err := h.database.Records().Upsert(r.Context(), eventID, record); err != nil {
		h.log.Error().Err(err).Msg("storing taste failed")
		respondError(w, http.StatusInternalServerError, "failed to store submission")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RefreshEvent recomputes the event snapshot
// (POST /api/events/{eventID}/refresh). Within the refresh cooldown the
// cached snapshot comes back.
func (h *Handlers) RefreshEvent(w http.ResponseWriter, r *http.Request) {
	eventID, ok := h.eventIDParam(w, r)
	if !ok {
		return
	}

	snapshot, err := h.curator.Refresh(r.Context(), eventID)
	if err != nil {
		h.log.Error().Err(err).Msg("refresh failed")
		respondError(w, http.StatusInternalServerError, "failed to refresh event")
		return
	}

	respondJSON(w, http.StatusOK, toSnapshotResponse(snapshot))
}

// Buckets returns the current favorites and hidden anthems
// (GET /api/events/{eventID}/buckets).
func (h *Handlers) Buckets(w http.ResponseWriter, r *http.Request) {
	h.RefreshEvent(w, r)
}

// Candidates returns the ranked tracks narrowed by a filter
// configuration (POST /api/events/{eventID}/candidates).
func (h *Handlers) Candidates(w http.ResponseWriter, r *http.Request) {
	eventID, ok := h.eventIDParam(w, r)
	if !ok {
		return
	}

	var req filterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	tracks, err := h.curator.Candidates(r.Context(), eventID, req.toConfig())
	if err != nil {
		var cfgErr *engine.ConfigError
		if errors.As(err, &cfgErr) {
			respondError(w, http.StatusBadRequest, cfgErr.Error())
			return
		}
		h.log.Error().Err(err).Msg("candidate filtering failed")
		respondError(w, http.StatusInternalServerError, "failed to filter candidates")
		return
	}

	respondJSON(w, http.StatusOK, toTrackResponses(tracks))
}

// Harmonic returns the harmonic-flow suggestion set for an anchor
// track (GET /api/events/{eventID}/harmonic?anchor=...).
func (h *Handlers) Harmonic(w http.ResponseWriter, r *http.Request) {
	eventID, ok := h.eventIDParam(w, r)
	if !ok {
		return
	}

	anchor := r.URL.Query().Get("anchor")
	if anchor == "" {
		respondError(w, http.StatusBadRequest, "anchor query parameter is required")
		return
	}

	suggestions, err := h.curator.HarmonicSet(r.Context(), eventID, engine.TrackKey(anchor))
	if err != nil {
		if errors.Is(err, curator.ErrUnknownTrack) {
			respondError(w, http.StatusNotFound, "anchor track not in snapshot")
			return
		}
		h.log.Error().Err(err).Msg("harmonic suggestion failed")
		respondError(w, http.StatusInternalServerError, "failed to build harmonic set")
		return
	}

	out := make([]harmonicResponse, len(suggestions))
	for i, s := range suggestions {
		out[i] = harmonicResponse{
			Track:    toTrackResponse(s.Track),
			Relation: string(s.Relation),
		}
	}
	respondJSON(w, http.StatusOK, out)
}

// Queue returns the live set in play order
// (GET /api/events/{eventID}/queue).
func (h *Handlers) Queue(w http.ResponseWriter, r *http.Request) {
	eventID, ok := h.eventIDParam(w, r)
	if !ok {
		return
	}

	entries, err := h.curator.Queue(r.Context(), eventID)
	if err != nil {
		h.log.Error().Err(err).Msg("loading queue failed")
		respondError(w, http.StatusInternalServerError, "failed to load queue")
		return
	}

	out := make([]queueEntryResponse, len(entries))
	for i := range entries {
		out[i] = toQueueEntryResponse(&entries[i])
	}
	respondJSON(w, http.StatusOK, out)
}

// AddToQueue appends a snapshot track to the live set
// (POST /api/events/{eventID}/queue).
func (h *Handlers) AddToQueue(w http.ResponseWriter, r *http.Request) {
	session := h.requireSession(w, r)
	if session == nil {
		return
	}
	eventID, ok := h.eventIDParam(w, r)
	if !ok {
		return
	}

	var req struct {
		TrackKey string `json:"trackKey"`
		Source   string `json:"source"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.TrackKey == "" {
		respondError(w, http.StatusBadRequest, "trackKey is required")
		return
	}
	source := engine.QueueSource(req.Source)
	if !validQueueSource(source) {
		respondError(w, http.StatusBadRequest, "unknown queue source")
		return
	}

	entry, err := h.curator.AddToQueue(r.Context(), eventID, engine.TrackKey(req.TrackKey), source)
	if err != nil {
		if errors.Is(err, curator.ErrUnknownTrack) {
			respondError(w, http.StatusNotFound, "track not in snapshot")
			return
		}
		h.log.Error().Err(err).Msg("queueing track failed")
		respondError(w, http.StatusInternalServerError, "failed to queue track")
		return
	}

	respondJSON(w, http.StatusCreated, toQueueEntryResponse(entry))
}

// RemoveQueueEntry soft-removes an entry (POST /api/queue/{entryID}/remove).
func (h *Handlers) RemoveQueueEntry(w http.ResponseWriter, r *http.Request) {
	session := h.requireSession(w, r)
	if session == nil {
		return
	}
	entryID, ok := h.entryIDParam(w, r)
	if !ok {
		return
	}

	if err := h.curator.RemoveFromQueue(r.Context(), entryID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			respondError(w, http.StatusNotFound, "queue entry not found")
			return
		}
		h.log.Error().Err(err).Msg("removing queue entry failed")
		respondError(w, http.StatusInternalServerError, "failed to remove queue entry")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ReinstateQueueEntry restores a removed entry at the end of the queue
// (POST /api/queue/{entryID}/reinstate).
func (h *Handlers) ReinstateQueueEntry(w http.ResponseWriter, r *http.Request) {
	session := h.requireSession(w, r)
	if session == nil {
		return
	}
	entryID, ok := h.entryIDParam(w, r)
	if !ok {
		return
	}

	if err := h.curator.ReinstateQueueEntry(r.Context(), entryID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			respondError(w, http.StatusNotFound, "queue entry not found")
			return
		}
		h.log.Error().Err(err).Msg("reinstating queue entry failed")
		respondError(w, http.StatusInternalServerError, "failed to reinstate queue entry")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ReorderQueue rewrites the play order
// (POST /api/events/{eventID}/queue/reorder).
func (h *Handlers) ReorderQueue(w http.ResponseWriter, r *http.Request) {
	session := h.requireSession(w, r)
	if session == nil {
		return
	}
	eventID, ok := h.eventIDParam(w, r)
	if !ok {
		return
	}

	var req struct {
		EntryIDs []string `json:"entryIds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	ids := make([]uuid.UUID, len(req.EntryIDs))
	for i, raw := range req.EntryIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid entry id %q", raw))
			return
		}
		ids[i] = id
	}

	if err := h.curator.ReorderQueue(r.Context(), eventID, ids); err != nil {
		h.log.Error().Err(err).Msg("reordering queue failed")
		respondError(w, http.StatusInternalServerError, "failed to reorder queue")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExportQueue exports the live set as a Spotify playlist under the
// organizer's account (POST /api/events/{eventID}/export).
func (h *Handlers) ExportQueue(w http.ResponseWriter, r *http.Request) {
	session := h.requireSession(w, r)
	if session == nil {
		return
	}
	event, ok := h.ownedEvent(w, r, session)
	if !ok {
		return
	}

	entries, err := h.curator.Queue(r.Context(), event.ID)
	if err != nil {
		h.log.Error().Err(err).Msg("loading queue failed")
		respondError(w, http.StatusInternalServerError, "failed to load queue")
		return
	}

	var trackIDs []string
	for _, e := range entries {
		if e.TrackID != "" {
			trackIDs = append(trackIDs, e.TrackID)
		}
	}
	if len(trackIDs) == 0 {
		respondError(w, http.StatusBadRequest, "queue has no exportable tracks")
		return
	}

	client := spotify.New(h.auth.ClientFor(r.Context(), session.Token))
	playlistID, err := client.ExportQueue(r.Context(),
		event.Name,
		fmt.Sprintf("Crowd-curated set for %s", event.Name),
		trackIDs,
	)
	if err != nil {
		h.log.Error().Err(err).Msg("playlist export failed")
		respondError(w, http.StatusBadGateway, "failed to export playlist")
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"playlistId": playlistID,
		"tracks":     len(trackIDs),
	})
}

func (h *Handlers) requireSession(w http.ResponseWriter, r *http.Request) *Session {
	session := h.sessions.GetFromRequest(r)
	if session == nil {
		respondError(w, http.StatusUnauthorized, "login required")
		return nil
	}
	return session
}

func (h *Handlers) eventIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "eventID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid event id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handlers) entryIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "entryID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid queue entry id")
		return uuid.Nil, false
	}
	return id, true
}

// ownedEvent loads the event and checks the session owns it.
func (h *Handlers) ownedEvent(w http.ResponseWriter, r *http.Request, session *Session) (*db.Event, bool) {
	eventID, ok := h.eventIDParam(w, r)
	if !ok {
		return nil, false
	}

	event, err := h.database.Events().Get(r.Context(), eventID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			respondError(w, http.StatusNotFound, "event not found")
			return nil, false
		}
		h.log.Error().Err(err).Msg("loading event failed")
		respondError(w, http.StatusInternalServerError, "failed to load event")
		return nil, false
	}
	if event.OwnerID != session.UserID {
		respondError(w, http.StatusForbidden, "not the event owner")
		return nil, false
	}
	return event, true
}

func validQueueSource(s engine.QueueSource) bool {
	switch s {
	case engine.QueueSourceAI, engine.QueueSourceSpotify,
		engine.QueueSourceHiddenAnthems, engine.QueueSourceTipRequest:
		return true
	}
	return false
}
