package seasonal

import (
	"fmt"
	"strings"
)

// Summary renders a one-line description of sf, e.g.
// "Southern Ghana - Major Season. Onset: March 15 (confirmed). Cessation: TBD".
func Summary(sf SeasonalForecast) string {
	parts := []string{fmt.Sprintf("%s Ghana - %s", sf.Region.DisplayName(), sf.SeasonType.DisplayName())}

	if sf.OnsetDate != nil {
		parts = append(parts, fmt.Sprintf("Onset: %s (%s)", sf.OnsetDate.Format(longDate), qualifier(sf.OnsetStatus)))
	} else {
		parts = append(parts, "Onset: Not yet detected")
	}

	if sf.CessationDate != nil {
		parts = append(parts, fmt.Sprintf("Cessation: %s (%s)", sf.CessationDate.Format(longDate), qualifier(sf.CessationStatus)))
	} else {
		parts = append(parts, "Cessation: TBD")
	}

	if sf.SeasonLengthDays != nil && *sf.SeasonLengthDays != 0 {
		parts = append(parts, fmt.Sprintf("Season length: %d days", *sf.SeasonLengthDays))
	}

	return strings.Join(parts, ". ")
}

func qualifier(s Status) string {
	if s == StatusOccurred {
		return "confirmed"
	}
	return "forecast"
}

// Advice builds the farming advisory for sf.
func Advice(sf SeasonalForecast) string {
	var advice []string

	switch sf.OnsetStatus {
	case StatusOccurred:
		advice = append(advice, "Rains have started - ideal time for planting!")
	case StatusExpected:
		advice = append(advice, "Prepare your land now - rains expected soon.")
	default:
		advice = append(advice, "Monitor conditions - season hasn't started yet.")
	}

	if ds := sf.DrySpells; ds != nil {
		if ds.EarlyDays > 7 {
			advice = append(advice, fmt.Sprintf("Watch for early dry spells (%d days expected).", ds.EarlyDays))
		}
		if ds.LateDays > 10 {
			advice = append(advice, "Plan for late-season moisture stress.")
		}
	}

	if sf.Region == RegionNorthern {
		advice = append(advice, "Single season - plan full crop cycle carefully.")
	} else if sf.SeasonType == SeasonMinor {
		advice = append(advice, "Minor season - consider quick-maturing varieties.")
	}

	return strings.Join(advice, " ")
}
