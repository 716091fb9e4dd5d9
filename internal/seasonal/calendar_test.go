package seasonal

import (
	"testing"
	"time"
)

func TestClassifyRegion(t *testing.T) {
	tests := []struct {
		lat  float64
		want Region
	}{
		{5.6037, RegionSouthern}, // Accra
		{6.6885, RegionSouthern}, // Kumasi
		{7.9999, RegionSouthern},
		{8.0, RegionNorthern},
		{9.4008, RegionNorthern}, // Tamale
		{10.7856, RegionNorthern},
		{-45, RegionSouthern},
		{120, RegionNorthern},
	}
	for _, tt := range tests {
		if got := ClassifyRegion(tt.lat); got != tt.want {
			t.Errorf("ClassifyRegion(%v) = %v, want %v", tt.lat, got, tt.want)
		}
	}
}

func TestCurrentSeason(t *testing.T) {
	for m := time.January; m <= time.December; m++ {
		ref := date(2024, m, 10)

		want := SeasonMajor
		if m >= time.August && m <= time.November {
			want = SeasonMinor
		}
		if got := CurrentSeason(RegionSouthern, ref); got != want {
			t.Errorf("CurrentSeason(southern, %s) = %v, want %v", m, got, want)
		}
		if got := CurrentSeason(RegionNorthern, ref); got != SeasonSingle {
			t.Errorf("CurrentSeason(northern, %s) = %v, want single", m, got)
		}
	}
}

func TestCalendarFor(t *testing.T) {
	tests := []struct {
		name          string
		region        Region
		ref           time.Time
		wantSeason    SeasonType
		wantStart     time.Time
		wantCessation time.Time
	}{
		{"southern major", RegionSouthern, date(2024, 5, 20), SeasonMajor, date(2024, 2, 1), date(2024, 7, 1)},
		{"southern major in december", RegionSouthern, date(2023, 12, 5), SeasonMajor, date(2023, 2, 1), date(2023, 7, 1)},
		{"southern minor", RegionSouthern, date(2024, 9, 1), SeasonMinor, date(2024, 8, 15), date(2024, 10, 1)},
		{"northern single", RegionNorthern, date(2025, 6, 30), SeasonSingle, date(2025, 3, 15), date(2025, 10, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cal := CalendarFor(tt.region, tt.ref)
			if cal.Season != tt.wantSeason {
				t.Errorf("Season = %v, want %v", cal.Season, tt.wantSeason)
			}
			if !cal.SeasonStart.Equal(tt.wantStart) {
				t.Errorf("SeasonStart = %v, want %v", cal.SeasonStart, tt.wantStart)
			}
			if !cal.CessationStart.Equal(tt.wantCessation) {
				t.Errorf("CessationStart = %v, want %v", cal.CessationStart, tt.wantCessation)
			}
		})
	}
}

func TestCriteriaFor(t *testing.T) {
	tests := []struct {
		region Region
		season SeasonType
		maxDry int
	}{
		{RegionSouthern, SeasonMajor, 10},
		{RegionSouthern, SeasonMinor, 15},
		{RegionNorthern, SeasonSingle, 10},
	}
	for _, tt := range tests {
		c := CriteriaFor(tt.region, tt.season)
		if c.MinRainfallMM != 20 || c.MaxDaysForRainfall != 3 || c.ValidationPeriodDays != 30 {
			t.Errorf("CriteriaFor(%s, %s) = %+v, want 20mm/3d/30d", tt.region, tt.season, c)
		}
		if c.MaxDrySpellDays != tt.maxDry {
			t.Errorf("CriteriaFor(%s, %s).MaxDrySpellDays = %d, want %d", tt.region, tt.season, c.MaxDrySpellDays, tt.maxDry)
		}
	}
}

func TestExpectedRanges(t *testing.T) {
	tests := []struct {
		region    Region
		season    SeasonType
		onset     string
		cessation string
	}{
		{RegionSouthern, SeasonMajor, "Mar 1 - Apr 15", "Jul 15 - Aug 15"},
		{RegionSouthern, SeasonMinor, "Sep 1 - Sep 30", "Nov 15 - Dec 15"},
		{RegionNorthern, SeasonSingle, "Apr 15 - May 15", "Oct 15 - Nov 15"},
	}
	for _, tt := range tests {
		if got := ExpectedOnsetRange(tt.region, tt.season); got != tt.onset {
			t.Errorf("ExpectedOnsetRange(%s, %s) = %q, want %q", tt.region, tt.season, got, tt.onset)
		}
		if got := ExpectedCessationRange(tt.region, tt.season); got != tt.cessation {
			t.Errorf("ExpectedCessationRange(%s, %s) = %q, want %q", tt.region, tt.season, got, tt.cessation)
		}
	}
}

func TestCessationMonitoringLabel(t *testing.T) {
	if got := CessationMonitoringLabel(RegionSouthern, SeasonMajor, 2024); got != "Jul 01" {
		t.Errorf("southern major = %q, want Jul 01", got)
	}
	if got := CessationMonitoringLabel(RegionNorthern, SeasonSingle, 2024); got != "Oct 01" {
		t.Errorf("northern = %q, want Oct 01", got)
	}
}
