package spotify

import (
	"testing"

	"github.com/mlowery/go-crowdmix/internal/camelot"
)

func TestCamelotKey(t *testing.T) {
	tests := []struct {
		name       string
		pitchClass int
		mode       int
		want       string
	}{
		{"C major", 0, 1, "8B"},
		{"A minor", 9, 0, "8A"},
		{"G major", 7, 1, "9B"},
		{"E minor", 4, 0, "9A"},
		{"B major", 11, 1, "1B"},
		{"G sharp minor", 8, 0, "1A"},
		{"F major", 5, 1, "7B"},
		{"D minor", 2, 0, "7A"},
		{"undetected key", -1, 1, ""},
		{"out of range", 12, 0, ""},
		{"unknown mode", 0, 7, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := camelotKey(tt.pitchClass, tt.mode); got != tt.want {
				t.Errorf("camelotKey(%d, %d) = %q, want %q", tt.pitchClass, tt.mode, got, tt.want)
			}
		})
	}
}

// Every detected key must land on a valid wheel position.
func TestCamelotKeyAlwaysParses(t *testing.T) {
	for pitch := 0; pitch < 12; pitch++ {
		for mode := 0; mode <= 1; mode++ {
			s := camelotKey(pitch, mode)
			if _, err := camelot.Parse(s); err != nil {
				t.Errorf("camelotKey(%d, %d) = %q does not parse: %v", pitch, mode, s, err)
			}
		}
	}
}

// Relative keys share a wheel step: A minor (8A) pairs with C major (8B).
func TestCamelotKeyRelativePairs(t *testing.T) {
	pairs := []struct {
		minorPitch int
		majorPitch int
	}{
		{9, 0},  // Am / C
		{4, 7},  // Em / G
		{11, 2}, // Bm / D
		{2, 5},  // Dm / F
	}

	for _, p := range pairs {
		minor, _ := camelot.Parse(camelotKey(p.minorPitch, 0))
		major, _ := camelot.Parse(camelotKey(p.majorPitch, 1))
		if minor.Step != major.Step {
			t.Errorf("relative pair steps differ: %v vs %v", minor, major)
		}
	}
}
