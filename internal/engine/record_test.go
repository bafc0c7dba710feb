package engine

import (
	"errors"
	"testing"
	"time"
)

var parseNow = time.Date(2026, 6, 12, 20, 0, 0, 0, time.UTC)

func TestParseSubmission(t *testing.T) {
	tests := []struct {
		name        string
		payload     string
		wantArtists []string
		wantGenres  []string
		wantRecent  int
		wantTracks  int
		wantSource  Source
	}{
		{
			name:        "arrays",
			payload:     `{"guestId":"g1","artists":["Kygo","Avicii"],"genres":["edm"],"source":"manual"}`,
			wantArtists: []string{"Kygo", "Avicii"},
			wantGenres:  []string{"edm"},
			wantSource:  SourceManual,
		},
		{
			name:        "json encoded string fields",
			payload:     `{"guestId":"g2","artists":"[\"Kygo\"]","genres":"[\"house\",\"edm\"]"}`,
			wantArtists: []string{"Kygo"},
			wantGenres:  []string{"house", "edm"},
			wantSource:  SourceManual,
		},
		{
			name:        "bare string becomes single element",
			payload:     `{"guestId":"g3","artists":"Kygo"}`,
			wantArtists: []string{"Kygo"},
			wantSource:  SourceManual,
		},
		{
			name:       "recent tracks as free text",
			payload:    `{"guestId":"g4","recentTracks":["Firestone - Kygo","Levels"]}`,
			wantRecent: 2,
			wantSource: SourceManual,
		},
		{
			name:       "recent tracks as objects",
			payload:    `{"guestId":"g5","recentTracks":[{"name":"Firestone","artist":"Kygo"}]}`,
			wantRecent: 1,
			wantSource: SourceManual,
		},
		{
			name:       "full descriptors with spotify source",
			payload:    `{"guestId":"g6","tracks":[{"id":"t1","name":"Firestone","artists":["Kygo"],"popularity":80}],"source":"spotify"}`,
			wantTracks: 1,
			wantSource: SourceSpotify,
		},
		{
			name:       "unknown source falls back to manual",
			payload:    `{"guestId":"g7","source":"csv-import"}`,
			wantSource: SourceManual,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := ParseSubmission("ev1", []byte(tt.payload), parseNow)
			if err != nil {
				t.Fatalf("ParseSubmission() error: %v", err)
			}
			if rec.EventID != "ev1" {
				t.Errorf("EventID = %q, want %q", rec.EventID, "ev1")
			}
			if !equalStrings(rec.Artists, tt.wantArtists) {
				t.Errorf("Artists = %v, want %v", rec.Artists, tt.wantArtists)
			}
			if !equalStrings(rec.Genres, tt.wantGenres) {
				t.Errorf("Genres = %v, want %v", rec.Genres, tt.wantGenres)
			}
			if len(rec.RecentTracks) != tt.wantRecent {
				t.Errorf("len(RecentTracks) = %d, want %d", len(rec.RecentTracks), tt.wantRecent)
			}
			if len(rec.Tracks) != tt.wantTracks {
				t.Errorf("len(Tracks) = %d, want %d", len(rec.Tracks), tt.wantTracks)
			}
			if rec.Source != tt.wantSource {
				t.Errorf("Source = %q, want %q", rec.Source, tt.wantSource)
			}
			if !rec.SubmittedAt.Equal(parseNow) {
				t.Errorf("SubmittedAt = %v, want %v", rec.SubmittedAt, parseNow)
			}
		})
	}
}

func TestParseSubmissionFreeTextSplit(t *testing.T) {
	rec, err := ParseSubmission("ev1", []byte(`{"guestId":"g1","recentTracks":["Firestone - Kygo","Levels"]}`), parseNow)
	if err != nil {
		t.Fatalf("ParseSubmission() error: %v", err)
	}

	first := rec.RecentTracks[0]
	if first.Name != "Firestone" {
		t.Errorf("Name = %q, want %q", first.Name, "Firestone")
	}
	if len(first.Artists) != 1 || first.Artists[0] != "Kygo" {
		t.Errorf("Artists = %v, want [Kygo]", first.Artists)
	}

	second := rec.RecentTracks[1]
	if second.Name != "Levels" {
		t.Errorf("Name = %q, want %q", second.Name, "Levels")
	}
	if len(second.Artists) != 0 {
		t.Errorf("Artists = %v, want none", second.Artists)
	}
}

func TestParseSubmissionMissingGuestID(t *testing.T) {
	_, err := ParseSubmission("ev1", []byte(`{"artists":["Kygo"]}`), parseNow)
	if !errors.Is(err, ErrMissingGuestID) {
		t.Errorf("error = %v, want ErrMissingGuestID", err)
	}

	_, err = ParseSubmission("ev1", []byte(`{"guestId":"   "}`), parseNow)
	if !errors.Is(err, ErrMissingGuestID) {
		t.Errorf("whitespace guest id: error = %v, want ErrMissingGuestID", err)
	}
}

func TestParseSubmissionExplicitTimestamp(t *testing.T) {
	rec, err := ParseSubmission("ev1", []byte(`{"guestId":"g1","submittedAt":"2026-06-12T19:30:00Z"}`), parseNow)
	if err != nil {
		t.Fatalf("ParseSubmission() error: %v", err)
	}
	want := time.Date(2026, 6, 12, 19, 30, 0, 0, time.UTC)
	if !rec.SubmittedAt.Equal(want) {
		t.Errorf("SubmittedAt = %v, want %v", rec.SubmittedAt, want)
	}
}

func TestParseSubmissionMalformedJSON(t *testing.T) {
	if _, err := ParseSubmission("ev1", []byte(`{"guestId":`), parseNow); err == nil {
		t.Error("ParseSubmission() = nil error, want decode error")
	}
	if _, err := ParseSubmission("ev1", []byte(`{"guestId":"g1","artists":42}`), parseNow); err == nil {
		t.Error("numeric artists field: want decode error")
	}
}

func equalStrings(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}
