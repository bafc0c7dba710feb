package spotify

import "fmt"

// Camelot wheel positions indexed by Spotify pitch class (0 = C ... 11
// = B), one table per mode.
var (
	camelotMajor = [12]int{8, 3, 10, 5, 12, 7, 2, 9, 4, 11, 6, 1}
	camelotMinor = [12]int{5, 12, 7, 2, 9, 4, 11, 6, 1, 8, 3, 10}
)

// camelotKey converts Spotify's pitch-class key and mode into Camelot
// notation ("8A".."12B"). Spotify reports key -1 when detection failed;
// that and any out-of-range value yield "" so the track is simply left
// out of harmonic matching.
func camelotKey(pitchClass, mode int) string {
	if pitchClass < 0 || pitchClass > 11 {
		return ""
	}
	switch mode {
	case 1:
		return fmt.Sprintf("%dB", camelotMajor[pitchClass])
	case 0:
		return fmt.Sprintf("%dA", camelotMinor[pitchClass])
	}
	return ""
}
