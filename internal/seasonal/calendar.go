package seasonal

import "time"

// SeasonType identifies which rainy season a date falls in.
type SeasonType string

const (
	SeasonMajor  SeasonType = "major"
	SeasonMinor  SeasonType = "minor"
	SeasonSingle SeasonType = "single"
)

func (s SeasonType) DisplayName() string {
	switch s {
	case SeasonMinor:
		return "Minor Season"
	case SeasonSingle:
		return "Single Season"
	default:
		return "Major Season"
	}
}

// OnsetCriteria are the thresholds an onset candidate must satisfy.
type OnsetCriteria struct {
	MinRainfallMM        float64
	MaxDaysForRainfall   int
	MaxDrySpellDays      int
	ValidationPeriodDays int
}

type monthDay struct {
	month time.Month
	day   int
}

func (md monthDay) in(year int) time.Time {
	return time.Date(year, md.month, md.day, 0, 0, 0, 0, time.UTC)
}

type seasonProfile struct {
	start           monthDay
	cessationStart  monthDay
	onsetRange      string
	cessationRange  string
	maxDrySpellDays int
}

var (
	southernMajor = seasonProfile{
		start:           monthDay{time.February, 1},
		cessationStart:  monthDay{time.July, 1},
		onsetRange:      "Mar 1 - Apr 15",
		cessationRange:  "Jul 15 - Aug 15",
		maxDrySpellDays: 10,
	}
	southernMinor = seasonProfile{
		start:           monthDay{time.August, 15},
		cessationStart:  monthDay{time.October, 1},
		onsetRange:      "Sep 1 - Sep 30",
		cessationRange:  "Nov 15 - Dec 15",
		maxDrySpellDays: 15,
	}
	northernSingle = seasonProfile{
		start:           monthDay{time.March, 15},
		cessationStart:  monthDay{time.October, 1},
		onsetRange:      "Apr 15 - May 15",
		cessationRange:  "Oct 15 - Nov 15",
		maxDrySpellDays: 10,
	}
)

// profile resolves a (region, season) pair. Northern has a single season
// whatever type is passed; unknown southern types fall back to the major season.
func profile(region Region, season SeasonType) seasonProfile {
	switch region {
	case RegionNorthern:
		return northernSingle
	case RegionSouthern:
		switch season {
		case SeasonMinor:
			return southernMinor
		default:
			return southernMajor
		}
	}
	return southernMajor
}

// CurrentSeason returns the season type in force for region on ref.
func CurrentSeason(region Region, ref time.Time) SeasonType {
	if region == RegionNorthern {
		return SeasonSingle
	}
	switch ref.Month() {
	case time.August, time.September, time.October, time.November:
		return SeasonMinor
	default:
		return SeasonMajor
	}
}

// Calendar holds the season boundaries for one region, projected onto a year.
type Calendar struct {
	Region         Region
	Season         SeasonType
	SeasonStart    time.Time
	CessationStart time.Time
}

// CalendarFor returns the calendar in force for region on ref.
func CalendarFor(region Region, ref time.Time) Calendar {
	season := CurrentSeason(region, ref)
	p := profile(region, season)
	return Calendar{
		Region:         region,
		Season:         season,
		SeasonStart:    p.start.in(ref.Year()),
		CessationStart: p.cessationStart.in(ref.Year()),
	}
}

// CriteriaFor returns the onset criteria for a (region, season) pair.
func CriteriaFor(region Region, season SeasonType) OnsetCriteria {
	return OnsetCriteria{
		MinRainfallMM:        20,
		MaxDaysForRainfall:   3,
		MaxDrySpellDays:      profile(region, season).maxDrySpellDays,
		ValidationPeriodDays: 30,
	}
}

func ExpectedOnsetRange(region Region, season SeasonType) string {
	return profile(region, season).onsetRange
}

func ExpectedCessationRange(region Region, season SeasonType) string {
	return profile(region, season).cessationRange
}

// CessationMonitoringLabel is the cessation start date formatted for display,
// e.g. "Jul 01".
func CessationMonitoringLabel(region Region, season SeasonType, year int) string {
	return profile(region, season).cessationStart.in(year).Format(shortDate)
}
