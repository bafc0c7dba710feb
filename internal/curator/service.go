// Package curator orchestrates the set-curation engine per event: it
// runs refresh cycles over stored preference records, serves filtered
// candidate lists and harmonic suggestion sets, and applies queue
// mutations.
package curator

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mlowery/go-crowdmix/internal/db"
	"github.com/mlowery/go-crowdmix/internal/engine"
	"github.com/mlowery/go-crowdmix/internal/theme"
)

// ErrUnknownTrack is returned when a referenced track is not part of
// the event's current snapshot.
var ErrUnknownTrack = errors.New("track not in current snapshot")

// DefaultRefreshCooldown bounds how often a full refresh recomputes an
// event. Calls inside the window serve the cached snapshot.
const DefaultRefreshCooldown = 30 * time.Second

// RecordStore loads guests' preference records.
type RecordStore interface {
	GetForEvent(ctx context.Context, eventID uuid.UUID) ([]engine.PreferenceRecord, error)
}

// QueueStore persists the live DJ set.
type QueueStore interface {
	List(ctx context.Context, eventID uuid.UUID) ([]db.QueueEntry, error)
	Append(ctx context.Context, eventID uuid.UUID, entry *db.QueueEntry) error
	Get(ctx context.Context, id uuid.UUID) (*db.QueueEntry, error)
	Remove(ctx context.Context, id uuid.UUID) error
	Reinstate(ctx context.Context, id uuid.UUID) error
	Reorder(ctx context.Context, eventID uuid.UUID, ids []uuid.UUID) error
}

// MetadataSource supplies catalog metadata for referenced tracks.
type MetadataSource interface {
	TrackMetadata(ctx context.Context, refs []engine.TrackRef) (map[engine.TrackKey]engine.TrackMeta, error)
}

// NameCount is a frequency table row for dashboard summaries.
type NameCount struct {
	Name  string
	Count int
}

// Snapshot is the outcome of one refresh cycle for an event.
type Snapshot struct {
	EventID     uuid.UUID
	TotalGuests int
	Profile     theme.Profile
	Buckets     engine.Buckets
	Ranked      []engine.ScoredTrack // full crowd-match ranking with deltas
	TopGenres   []NameCount
	TopArtists  []NameCount
	RefreshedAt time.Time
}

// Service runs the curation engine for all events.
type Service struct {
	records  RecordStore
	queue    QueueStore
	metadata MetadataSource

	tracker  *engine.RankTracker
	weights  engine.ScoreWeights
	buckets  engine.BucketConfig
	themeCfg theme.Config
	cooldown time.Duration
	now      func() time.Time
	log      zerolog.Logger

	mu            sync.Mutex
	eventLocks    map[uuid.UUID]*sync.Mutex
	snapshots     map[uuid.UUID]*Snapshot
	lastRefresh   map[uuid.UUID]time.Time
	queuedAnthems map[uuid.UUID]map[engine.TrackKey]struct{}
}

// Option configures a Service.
type Option func(*Service)

// WithRefreshCooldown sets the minimum time between full refreshes of
// one event.
func WithRefreshCooldown(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.cooldown = d
		}
	}
}

// WithScoreWeights overrides the crowd-match blend.
func WithScoreWeights(w engine.ScoreWeights) Option {
	return func(s *Service) { s.weights = w }
}

// WithBucketConfig overrides the favorites / hidden-anthems thresholds.
func WithBucketConfig(cfg engine.BucketConfig) Option {
	return func(s *Service) { s.buckets = cfg }
}

// WithThemeConfig overrides the vibe-profiling parameters.
func WithThemeConfig(cfg theme.Config) Option {
	return func(s *Service) { s.themeCfg = cfg }
}

// WithLogger sets the structured logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Service) { s.log = log }
}

// withClock fixes the clock for tests.
func withClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates a curation service.
func New(records RecordStore, queue QueueStore, metadata MetadataSource, opts ...Option) *Service {
	s := &Service{
		records:       records,
		queue:         queue,
		metadata:      metadata,
		tracker:       engine.NewRankTracker(),
		weights:       engine.DefaultScoreWeights(),
		buckets:       engine.DefaultBucketConfig(),
		themeCfg:      theme.DefaultConfig(),
		cooldown:      DefaultRefreshCooldown,
		now:           time.Now,
		log:           zerolog.Nop(),
		eventLocks:    make(map[uuid.UUID]*sync.Mutex),
		snapshots:     make(map[uuid.UUID]*Snapshot),
		lastRefresh:   make(map[uuid.UUID]time.Time),
		queuedAnthems: make(map[uuid.UUID]map[engine.TrackKey]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Refresh recomputes an event's snapshot: aggregate records, fetch
// metadata, derive the vibe profile, score, rank-diff, and classify.
// Within the cooldown window the cached snapshot is returned instead of
// recomputing; refreshes for the same event serialize, different events
// run independently.
func (s *Service) Refresh(ctx context.Context, eventID uuid.UUID) (*Snapshot, error) {
	lock := s.eventLock(eventID)
	lock.Lock()
	defer lock.Unlock()

	now := s.now()

	s.mu.Lock()
	cached, hasCached := s.snapshots[eventID]
	last := s.lastRefresh[eventID]
	s.mu.Unlock()

	if hasCached && now.Sub(last) < s.cooldown {
		return cached, nil
	}

	records, err := s.records.GetForEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("loading records: %w", err)
	}

	agg, err := engine.Aggregate(records)
	if err != nil {
		return nil, fmt.Errorf("aggregating records: %w", err)
	}

	metas, err := s.fetchMetadata(ctx, agg)
	if err != nil {
		return nil, err
	}

	profile := s.buildProfile(agg, metas)
	ranked := s.scoreAndRank(agg, metas, profile)
	ranked = s.tracker.Diff(eventID.String(), ranked)

	buckets := engine.Classify(ranked, s.buckets, s.anthemsQueued(eventID))

	snapshot := &Snapshot{
		EventID:     eventID,
		TotalGuests: agg.TotalGuests,
		Profile:     profile,
		Buckets:     buckets,
		Ranked:      ranked,
		TopGenres:   topCounts(agg.Genres, 10),
		TopArtists:  topCounts(agg.Artists, 10),
		RefreshedAt: now,
	}

	s.mu.Lock()
	s.snapshots[eventID] = snapshot
	s.lastRefresh[eventID] = now
	s.mu.Unlock()

	s.log.Info().
		Str("event_id", eventID.String()).
		Int("guests", agg.TotalGuests).
		Int("tracks", len(ranked)).
		Int("favorites", len(buckets.Favorites)).
		Int("hidden_anthems", len(buckets.HiddenAnthems)).
		Str("vibe", profile.Name).
		Msg("event refreshed")

	return snapshot, nil
}

// Candidates returns the event's ranked tracks narrowed by the smart
// filter pipeline, using the live queue for the artist cooldown stage.
func (s *Service) Candidates(ctx context.Context, eventID uuid.UUID, cfg engine.FilterConfig) ([]engine.ScoredTrack, error) {
	snapshot, err := s.snapshotOrRefresh(ctx, eventID)
	if err != nil {
		return nil, err
	}

	rows, err := s.queue.List(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("loading queue: %w", err)
	}
	recent := make([]engine.QueueEntry, len(rows))
	for i, row := range rows {
		recent[i] = row.ToEngine()
	}

	return engine.ApplyFilters(snapshot.Ranked, cfg, recent)
}

// HarmonicSet returns the harmonic-flow suggestion set anchored at the
// given track: the anchor plus the first ranked match per compatibility
// class.
func (s *Service) HarmonicSet(ctx context.Context, eventID uuid.UUID, anchorKey engine.TrackKey) ([]engine.HarmonicSuggestion, error) {
	snapshot, err := s.snapshotOrRefresh(ctx, eventID)
	if err != nil {
		return nil, err
	}

	anchor, ok := findTrack(snapshot.Ranked, anchorKey)
	if !ok {
		return nil, ErrUnknownTrack
	}
	return engine.HarmonicSuggestions(anchor, snapshot.Ranked), nil
}

// AddToQueue appends a snapshot track to the live set. Hidden anthems
// leave the anthem list for the session when queued.
func (s *Service) AddToQueue(ctx context.Context, eventID uuid.UUID, key engine.TrackKey, source engine.QueueSource) (*db.QueueEntry, error) {
	snapshot, err := s.snapshotOrRefresh(ctx, eventID)
	if err != nil {
		return nil, err
	}

	track, ok := findTrack(snapshot.Ranked, key)
	if !ok {
		return nil, ErrUnknownTrack
	}

	entry := &db.QueueEntry{
		TrackKey: string(track.Key),
		TrackID:  track.ID,
		Name:     track.Name,
		Artists:  track.Artists,
		Source:   string(source),
	}
	if err := s.queue.Append(ctx, eventID, entry); err != nil {
		return nil, fmt.Errorf("appending to queue: %w", err)
	}

	if source == engine.QueueSourceHiddenAnthems {
		s.markAnthemQueued(eventID, key)
		s.reclassify(eventID)
	}

	s.log.Info().
		Str("event_id", eventID.String()).
		Str("track", track.Name).
		Str("source", string(source)).
		Int("position", entry.Position).
		Msg("track queued")

	return entry, nil
}

// RemoveFromQueue soft-removes an entry. When the entry came from the
// hidden-anthems bucket the track returns to the anthem list.
func (s *Service) RemoveFromQueue(ctx context.Context, entryID uuid.UUID) error {
	entry, err := s.queue.Get(ctx, entryID)
	if err != nil {
		return fmt.Errorf("loading queue entry: %w", err)
	}
	if err := s.queue.Remove(ctx, entryID); err != nil {
		return fmt.Errorf("removing queue entry: %w", err)
	}

	if engine.QueueSource(entry.Source) == engine.QueueSourceHiddenAnthems {
		s.unmarkAnthemQueued(entry.EventID, engine.TrackKey(entry.TrackKey))
		s.reclassify(entry.EventID)
	}
	return nil
}

// ReinstateQueueEntry brings a removed entry back at the end of the
// queue.
func (s *Service) ReinstateQueueEntry(ctx context.Context, entryID uuid.UUID) error {
	entry, err := s.queue.Get(ctx, entryID)
	if err != nil {
		return fmt.Errorf("loading queue entry: %w", err)
	}
	if err := s.queue.Reinstate(ctx, entryID); err != nil {
		return fmt.Errorf("reinstating queue entry: %w", err)
	}

	if engine.QueueSource(entry.Source) == engine.QueueSourceHiddenAnthems {
		s.markAnthemQueued(entry.EventID, engine.TrackKey(entry.TrackKey))
		s.reclassify(entry.EventID)
	}
	return nil
}

// ReorderQueue rewrites the play order. Only explicit organizer action
// reaches this; scoring never reorders the queue.
func (s *Service) ReorderQueue(ctx context.Context, eventID uuid.UUID, ids []uuid.UUID) error {
	if err := s.queue.Reorder(ctx, eventID, ids); err != nil {
		return fmt.Errorf("reordering queue: %w", err)
	}
	return nil
}

// Queue returns the live set in play order.
func (s *Service) Queue(ctx context.Context, eventID uuid.UUID) ([]db.QueueEntry, error) {
	return s.queue.List(ctx, eventID)
}

// Forget drops all in-memory state for an event, e.g. on archival.
func (s *Service) Forget(eventID uuid.UUID) {
	s.tracker.Forget(eventID.String())
	s.mu.Lock()
	delete(s.snapshots, eventID)
	delete(s.lastRefresh, eventID)
	delete(s.queuedAnthems, eventID)
	delete(s.eventLocks, eventID)
	s.mu.Unlock()
}

func (s *Service) snapshotOrRefresh(ctx context.Context, eventID uuid.UUID) (*Snapshot, error) {
	s.mu.Lock()
	snapshot, ok := s.snapshots[eventID]
	s.mu.Unlock()
	if ok {
		return snapshot, nil
	}
	return s.Refresh(ctx, eventID)
}

// fetchMetadata resolves catalog metadata for every aggregated track
// that carries a canonical id. Free-text tracks keep zero metadata and
// fall back to the engine defaults.
func (s *Service) fetchMetadata(ctx context.Context, agg *engine.Aggregation) (map[engine.TrackKey]engine.TrackMeta, error) {
	refs := make([]engine.TrackRef, 0, len(agg.Tracks))
	for _, stat := range agg.Tracks {
		if stat.ID == "" {
			continue
		}
		refs = append(refs, engine.TrackRef{ID: stat.ID, Name: stat.Name, Artists: stat.Artists})
	}
	slices.SortFunc(refs, func(a, b engine.TrackRef) int {
		return strings.Compare(a.ID, b.ID)
	})

	metas, err := s.metadata.TrackMetadata(ctx, refs)
	if err != nil {
		return nil, fmt.Errorf("fetching track metadata: %w", err)
	}

	// Aggregated popularity (from guest-supplied descriptors) backfills
	// tracks the catalog lookup missed.
	for key, stat := range agg.Tracks {
		meta := metas[key]
		if meta.Popularity == nil && stat.Popularity > 0 {
			pop := stat.Popularity
			meta.Popularity = &pop
			metas[key] = meta
		}
	}
	return metas, nil
}

func (s *Service) buildProfile(agg *engine.Aggregation, metas map[engine.TrackKey]engine.TrackMeta) theme.Profile {
	tracks := make([]theme.Track, 0, len(agg.Tracks))
	for key, stat := range agg.Tracks {
		meta := metas[key]
		tracks = append(tracks, theme.Track{
			ID:           string(stat.Key),
			Name:         stat.Name,
			Energy:       scaleDown(meta.Energy),
			Valence:      scaleDown(meta.Valence),
			Danceability: scaleDown(meta.Danceability),
			Acousticness: meta.Acousticness,
		})
	}
	theme.SortTracks(tracks)
	return theme.BuildProfile(tracks, s.themeCfg)
}

func (s *Service) scoreAndRank(agg *engine.Aggregation, metas map[engine.TrackKey]engine.TrackMeta, profile theme.Profile) []engine.ScoredTrack {
	ranked := make([]engine.ScoredTrack, 0, len(agg.Tracks))
	for key, stat := range agg.Tracks {
		meta := metas[key]
		fit := profile.Fit(theme.Track{
			ID:           string(key),
			Energy:       scaleDown(meta.Energy),
			Valence:      scaleDown(meta.Valence),
			Danceability: scaleDown(meta.Danceability),
			Acousticness: meta.Acousticness,
		})
		ranked = append(ranked, engine.Score(*stat, meta, fit, agg.TotalGuests, s.weights))
	}

	slices.SortFunc(ranked, func(a, b engine.ScoredTrack) int {
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
	return ranked
}

// reclassify rebuilds the cached buckets after anthem bookkeeping
// changes, without touching rank deltas or the cooldown clock.
func (s *Service) reclassify(eventID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot, ok := s.snapshots[eventID]
	if !ok {
		return
	}
	queued := s.queuedAnthems[eventID]
	updated := *snapshot
	updated.Buckets = engine.Classify(snapshot.Ranked, s.buckets, queued)
	s.snapshots[eventID] = &updated
}

func (s *Service) eventLock(eventID uuid.UUID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.eventLocks[eventID]
	if !ok {
		lock = &sync.Mutex{}
		s.eventLocks[eventID] = lock
	}
	return lock
}

// anthemsQueued returns a copy of the event's queued-anthem set. The
// live map is only ever touched under s.mu; callers classify against
// the copy while mark/unmark keep mutating concurrently.
func (s *Service) anthemsQueued(eventID uuid.UUID) map[engine.TrackKey]struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.queuedAnthems[eventID])
}

func (s *Service) markAnthemQueued(eventID uuid.UUID, key engine.TrackKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queuedAnthems[eventID] == nil {
		s.queuedAnthems[eventID] = make(map[engine.TrackKey]struct{})
	}
	s.queuedAnthems[eventID][key] = struct{}{}
}

func (s *Service) unmarkAnthemQueued(eventID uuid.UUID, key engine.TrackKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.queuedAnthems[eventID], key)
}

// scaleDown maps a 0-100 audio feature onto the 0-1 scale the vibe
// profiler works in. Missing features stay missing.
func scaleDown(v *float64) *float64 {
	if v == nil {
		return nil
	}
	scaled := *v / 100
	return &scaled
}

func findTrack(tracks []engine.ScoredTrack, key engine.TrackKey) (engine.ScoredTrack, bool) {
	for _, t := range tracks {
		if t.Key == key {
			return t, true
		}
	}
	return engine.ScoredTrack{}, false
}

func topCounts(counts map[string]int, n int) []NameCount {
	out := make([]NameCount, 0, len(counts))
	for name, count := range counts {
		out = append(out, NameCount{Name: name, Count: count})
	}
	slices.SortFunc(out, func(a, b NameCount) int {
		if a.Count != b.Count {
			return b.Count - a.Count
		}
		return strings.Compare(a.Name, b.Name)
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
