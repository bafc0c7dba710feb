// Package camelot models the 24-position musical key wheel used for
// harmonic mixing. Keys are written as "1A".."12A" (minor) and
// "1B".."12B" (major).
package camelot

import (
	"fmt"
	"regexp"
	"strconv"
)

// Modes on the wheel.
const (
	ModeMinor = 'A'
	ModeMajor = 'B'
)

// Key is a parsed position on the wheel.
type Key struct {
	Step int  // 1-12
	Mode byte // 'A' or 'B'
}

var keyPattern = regexp.MustCompile(`^(\d{1,2})([ABab])$`)

// Parse converts a key string like "8A" into structured form.
// Lowercase mode letters are accepted. Returns an error for anything
// outside the 24 valid positions.
func Parse(s string) (Key, error) {
	m := keyPattern.FindStringSubmatch(s)
	if m == nil {
		return Key{}, fmt.Errorf("invalid key %q", s)
	}

	step, err := strconv.Atoi(m[1])
	if err != nil || step < 1 || step > 12 {
		return Key{}, fmt.Errorf("invalid key step %q", m[1])
	}

	mode := m[2][0]
	if mode == 'a' {
		mode = ModeMinor
	} else if mode == 'b' {
		mode = ModeMajor
	}

	return Key{Step: step, Mode: mode}, nil
}

// String returns the canonical notation, e.g. "8A".
func (k Key) String() string {
	return fmt.Sprintf("%d%c", k.Step, k.Mode)
}

// Neighbors are the three mixable positions relative to a key.
type Neighbors struct {
	Perfect     Key // the key itself
	EnergyBoost Key // same mode, one step clockwise (12 wraps to 1)
	EnergyDrop  Key // same mode, one step counter-clockwise (1 wraps to 12)
}

// Neighbors returns the compatible positions for k. Only same-mode
// adjacency counts; relative major/minor (A<->B) is not considered
// mixable here.
func (k Key) Neighbors() Neighbors {
	boost := k.Step + 1
	if boost > 12 {
		boost = 1
	}
	drop := k.Step - 1
	if drop < 1 {
		drop = 12
	}
	return Neighbors{
		Perfect:     k,
		EnergyBoost: Key{Step: boost, Mode: k.Mode},
		EnergyDrop:  Key{Step: drop, Mode: k.Mode},
	}
}

// Compatibility labels a transition from an anchor key to a candidate.
type Compatibility string

const (
	PerfectMatch Compatibility = "Perfect Match"
	EnergyBoost  Compatibility = "Energy Boost"
	EnergyDrop   Compatibility = "Energy Drop"
)

// Describe classifies candidate relative to anchor. The second return
// is false when the two keys are not mixable.
func Describe(candidate, anchor Key) (Compatibility, bool) {
	n := anchor.Neighbors()
	switch candidate {
	case n.Perfect:
		return PerfectMatch, true
	case n.EnergyBoost:
		return EnergyBoost, true
	case n.EnergyDrop:
		return EnergyDrop, true
	}
	return "", false
}
