package seasonal

import "time"

// Status describes whether a seasonal event has been observed.
type Status string

const (
	StatusOccurred Status = "occurred"
	StatusExpected Status = "expected"
	StatusNotYet   Status = "not_yet"
)

// Detection is the outcome of an onset or cessation search. Date is the zero
// time when Status is StatusNotYet.
type Detection struct {
	Date   time.Time
	Status Status
}

func (d Detection) Found() bool {
	return d.Status != StatusNotYet
}

func notYet() Detection {
	return Detection{Status: StatusNotYet}
}

func detected(date, today time.Time) Detection {
	date = Day(date)
	if date.After(Day(today)) {
		return Detection{Date: date, Status: StatusExpected}
	}
	return Detection{Date: date, Status: StatusOccurred}
}

// DetectOnset scans series from seasonStart for the first day that satisfies
// c. A candidate day i qualifies when the rain over the c.MaxDaysForRainfall
// days from i reaches c.MinRainfallMM and no dry run longer than
// c.MaxDrySpellDays lies within the c.ValidationPeriodDays days from i. Only
// candidates followed by a complete validation window are considered.
//
// Records are taken by position: a missing date in the series is neither
// counted as dry nor allowed to break a window.
func DetectOnset(series []DailyRecord, c OnsetCriteria, seasonStart, today time.Time) Detection {
	start := indexOnOrAfter(series, seasonStart)
	if start < 0 || c.ValidationPeriodDays <= 0 {
		return notYet()
	}

	n := len(series)
	limit := c.MaxDrySpellDays + 1

	// rain[k] is the precipitation in series[:k]. longRuns[k] counts the
	// positions before k at which a dry run reaches limit days.
	rain := make([]float64, n+1)
	longRuns := make([]int, n+1)
	run := 0
	for k, rec := range series {
		rain[k+1] = rain[k] + rec.PrecipitationMM
		if rec.Dry() {
			run++
		} else {
			run = 0
		}
		longRuns[k+1] = longRuns[k]
		if run >= limit {
			longRuns[k+1]++
		}
	}

	window := c.ValidationPeriodDays
	for i := start; i+window <= n; i++ {
		end := i + c.MaxDaysForRainfall
		if end > n {
			end = n
		}
		if rain[end]-rain[i] < c.MinRainfallMM {
			continue
		}
		// A run of limit dry days inside [i, i+window) must end at or after
		// i+limit-1; runs ending earlier started before i.
		first := i + limit - 1
		last := i + window - 1
		if first <= last && longRuns[last+1]-longRuns[first] > 0 {
			continue
		}
		return detected(series[i].Date, today)
	}
	return notYet()
}
