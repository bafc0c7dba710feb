package theme

// vibeName creates a descriptive name from a profile's centroid values.
// Uses a 2x2 energy/valence quadrant system with an acousticness
// modifier:
//   - High Energy + High Valence = "Upbeat Party"
//   - High Energy + Low Valence  = "Intense & Dark"
//   - Low Energy  + High Valence = "Chill & Happy"
//   - Low Energy  + Low Valence  = "Reflective & Melancholy"
//
// Acousticness above 0.6 appends "(Acoustic)" to the name.
func vibeName(p Profile) string {
	highEnergy := p.Energy > 0.6
	highValence := p.Valence > 0.5

	var base string
	switch {
	case highEnergy && highValence:
		base = "Upbeat Party"
	case highEnergy && !highValence:
		base = "Intense & Dark"
	case !highEnergy && highValence:
		base = "Chill & Happy"
	default:
		base = "Reflective & Melancholy"
	}

	if p.Acousticness > 0.6 {
		return base + " (Acoustic)"
	}
	return base
}
