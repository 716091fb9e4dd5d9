package seasonal

import "time"

const (
	earlyWindowDays     = 50
	latePlaceholderDays = 60
)

// DrySpellInfo reports the longest dry runs early and late in the season.
type DrySpellInfo struct {
	EarlyDays   int    `json:"early_dry_spell_days"`
	LateDays    int    `json:"late_dry_spell_days"`
	EarlyPeriod string `json:"early_period"`
	LatePeriod  string `json:"late_period"`
}

// AnalyzeDrySpells measures the longest dry run in the first 50 days after
// onset and in the remainder of the season up to and including cessation.
// It returns nil when onset is unknown or is not a date in series.
func AnalyzeDrySpells(series []DailyRecord, onset, cessation Detection) *DrySpellInfo {
	if !onset.Found() {
		return nil
	}
	onsetIdx := indexOf(series, onset.Date)
	if onsetIdx < 0 {
		return nil
	}

	lateStart := onsetIdx + earlyWindowDays
	lateEnd := len(series)
	if cessation.Found() {
		if idx := indexOf(series, cessation.Date); idx >= 0 {
			lateEnd = idx + 1
		}
	}

	earlyFrom := Day(onset.Date)
	earlyTo := earlyFrom.AddDate(0, 0, earlyWindowDays)
	lateFrom := earlyTo.AddDate(0, 0, 1)
	lateTo := lateFrom.AddDate(0, 0, latePlaceholderDays)
	if cessation.Found() {
		lateTo = Day(cessation.Date)
	}

	return &DrySpellInfo{
		EarlyDays:   longestDryRun(series, onsetIdx, lateStart),
		LateDays:    longestDryRun(series, lateStart, lateEnd),
		EarlyPeriod: periodLabel(earlyFrom, earlyTo),
		LatePeriod:  periodLabel(lateFrom, lateTo),
	}
}

func periodLabel(from, to time.Time) string {
	return from.Format(shortDate) + " - " + to.Format(shortDate)
}
