package geocode

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ClarifyThreshold is the best-match confidence below which the user is
// asked to pick between candidates.
const ClarifyThreshold = 0.7

// similarConfidence is how close two candidates must score to count as a tie.
const similarConfidence = 0.15

// Confidence scores a Nominatim search hit between 0 and 1 from its
// importance, bounding box size and place type.
func Confidence(importance float64, boundingBox []string, placeType, placeClass string) float64 {
	score := 0.5 + importance*0.2

	if area, ok := boxArea(boundingBox); ok {
		switch {
		case area < 0.01:
			score += 0.2
		case area < 0.1:
			score += 0.15
		case area < 1.0:
			score += 0.1
		}
	}

	switch strings.ToLower(placeType) {
	case "village", "hamlet", "neighbourhood":
		score += 0.1
	case "town", "suburb":
		score += 0.05
	case "administrative", "state", "region", "country":
		score -= 0.1
	}

	switch strings.ToLower(placeClass) {
	case "place":
		score += 0.05
	case "boundary", "administrative":
		score -= 0.05
	}

	return math.Max(0, math.Min(1, score))
}

// boxArea returns the area in square degrees of a Nominatim bounding box
// given as [south, north, west, east].
func boxArea(bbox []string) (float64, bool) {
	if len(bbox) != 4 {
		return 0, false
	}
	var v [4]float64
	for i, s := range bbox {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		v[i] = f
	}
	return math.Abs(v[1]-v[0]) * math.Abs(v[3]-v[2]), true
}

// NeedsClarification reports whether results are too weak or too ambiguous
// to pick the first one without asking. results must be sorted best first.
func NeedsClarification(results []Result) bool {
	if len(results) == 0 {
		return true
	}
	best := results[0]
	if best.Confidence < ClarifyThreshold {
		return true
	}
	for _, r := range results[1:] {
		if r.PlaceName != best.PlaceName && math.Abs(r.Confidence-best.Confidence) < similarConfidence {
			return true
		}
	}
	return false
}

// ClarificationQuestion lists up to five candidates for the user to choose from.
func ClarificationQuestion(query string, results []Result) string {
	if len(results) == 0 {
		return "I couldn't find that location. Please check the spelling or share your location " +
			"using WhatsApp's location button (tap the paperclip icon and select Location)."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "I found several places called %q:\n", query)
	for i, r := range results {
		if i == 5 {
			break
		}
		fmt.Fprintf(&b, "%d. %s", i+1, r.PlaceName)
		if region := r.Region(); region != "" {
			fmt.Fprintf(&b, ", %s", region)
		}
		b.WriteString("\n")
	}
	b.WriteString("\nWhich one? Reply with the number or the place name.")
	return b.String()
}
