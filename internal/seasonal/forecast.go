package seasonal

import "time"

// SeasonalForecast is the engine's result for one location and day.
type SeasonalForecast struct {
	Region                 Region        `json:"region"`
	SeasonType             SeasonType    `json:"season_type"`
	OnsetDate              *time.Time    `json:"onset_date,omitempty"`
	OnsetStatus            Status        `json:"onset_status"`
	CessationDate          *time.Time    `json:"cessation_date,omitempty"`
	CessationStatus        Status        `json:"cessation_status"`
	SeasonLengthDays       *int          `json:"season_length_days,omitempty"`
	DrySpells              *DrySpellInfo `json:"dry_spells,omitempty"`
	Summary                string        `json:"summary"`
	Advice                 string        `json:"farming_advice"`
	ExpectedOnsetRange     string        `json:"expected_onset_range"`
	ExpectedCessationRange string        `json:"expected_cessation_range"`
	Latitude               float64       `json:"latitude"`
	Longitude              float64       `json:"longitude"`
}

// Params tunes the engine. The zero value is not usable; start from
// DefaultParams.
type Params struct {
	Balance WaterBalance
}

func DefaultParams() Params {
	return Params{Balance: DefaultWaterBalance()}
}

// Compute assembles the rainfall series and runs onset, cessation and dry
// spell detection for the season in force at (lat, today). It has no side
// effects and returns the same result for the same inputs.
func Compute(lat, lon float64, today time.Time, historical, forecast []DailyRecord, p Params) SeasonalForecast {
	today = Day(today)
	region := ClassifyRegion(lat)
	cal := CalendarFor(region, today)
	series := Merge(historical, forecast)

	onset := DetectOnset(series, CriteriaFor(region, cal.Season), cal.SeasonStart, today)
	cessation := DetectCessation(series, cal.CessationStart, today, p.Balance)

	sf := SeasonalForecast{
		Region:                 region,
		SeasonType:             cal.Season,
		OnsetStatus:            onset.Status,
		CessationStatus:        cessation.Status,
		DrySpells:              AnalyzeDrySpells(series, onset, cessation),
		ExpectedOnsetRange:     ExpectedOnsetRange(region, cal.Season),
		ExpectedCessationRange: ExpectedCessationRange(region, cal.Season),
		Latitude:               lat,
		Longitude:              lon,
	}
	if onset.Found() {
		d := onset.Date
		sf.OnsetDate = &d
	}
	if cessation.Found() {
		d := cessation.Date
		sf.CessationDate = &d
	}
	if onset.Found() && cessation.Found() {
		days := daysBetween(onset.Date, cessation.Date)
		sf.SeasonLengthDays = &days
	}

	sf.Summary = Summary(sf)
	sf.Advice = Advice(sf)
	return sf
}

// daysBetween counts calendar days from a to b. Both are UTC midnights.
func daysBetween(a, b time.Time) int {
	return int(Day(b).Sub(Day(a)).Hours() / 24)
}
