package seasonal

import (
	"sort"
	"time"
)

// DryDayThresholdMM is the precipitation below which a day counts as dry.
const DryDayThresholdMM = 1.0

const (
	isoDate   = "2006-01-02"
	shortDate = "Jan 02"
	longDate  = "January 02"
)

// DailyRecord is one day of rainfall and reference evapotranspiration.
// ETOMM is nil when the source did not report it.
type DailyRecord struct {
	Date            time.Time
	PrecipitationMM float64
	ETOMM           *float64
}

// ETO returns the recorded evapotranspiration, or def when it is missing.
func (r DailyRecord) ETO(def float64) float64 {
	if r.ETOMM == nil {
		return def
	}
	return *r.ETOMM
}

func (r DailyRecord) Dry() bool {
	return r.PrecipitationMM < DryDayThresholdMM
}

// Day truncates t to its calendar date in UTC, keeping the wall-clock date.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Merge combines a historical and a forecast series into one series sorted
// by date with duplicate dates removed. When both series cover a date the
// historical record wins; within one series the first record for a date wins.
// The inputs are not modified.
func Merge(historical, forecast []DailyRecord) []DailyRecord {
	seen := make(map[string]bool, len(historical)+len(forecast))
	merged := make([]DailyRecord, 0, len(historical)+len(forecast))

	for _, src := range [][]DailyRecord{historical, forecast} {
		for _, rec := range src {
			key := rec.Date.Format(isoDate)
			if seen[key] {
				continue
			}
			seen[key] = true
			rec.Date = Day(rec.Date)
			merged = append(merged, rec)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Date.Before(merged[j].Date)
	})
	return merged
}

// indexOnOrAfter returns the index of the first record dated on or after d,
// or -1 when every record is earlier.
func indexOnOrAfter(series []DailyRecord, d time.Time) int {
	d = Day(d)
	for i, rec := range series {
		if !rec.Date.Before(d) {
			return i
		}
	}
	return -1
}

func indexOf(series []DailyRecord, d time.Time) int {
	d = Day(d)
	for i, rec := range series {
		if rec.Date.Equal(d) {
			return i
		}
	}
	return -1
}

// longestDryRun returns the longest run of dry days in series[start:end].
func longestDryRun(series []DailyRecord, start, end int) int {
	if end > len(series) {
		end = len(series)
	}
	longest, current := 0, 0
	for i := start; i < end; i++ {
		if series[i].Dry() {
			current++
			if current > longest {
				longest = current
			}
		} else {
			current = 0
		}
	}
	return longest
}
