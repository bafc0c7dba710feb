package engine

import "time"

// QueueSource tags how a track entered the live set.
type QueueSource string

const (
	QueueSourceAI            QueueSource = "ai"
	QueueSourceSpotify       QueueSource = "spotify"
	QueueSourceHiddenAnthems QueueSource = "hidden-anthems"
	QueueSourceTipRequest    QueueSource = "tip-request"
)

// QueueEntry is a track placed into the live DJ set. Position is the
// authoritative play order; the engine reads it but never reorders it.
// Only explicit user action does.
type QueueEntry struct {
	Key      TrackKey
	TrackID  string
	Name     string
	Artists  []string
	Source   QueueSource
	Position int
	AddedAt  time.Time
}
