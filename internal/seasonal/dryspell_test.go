package seasonal

import "testing"

// seasonWithDrySpells runs from 2024-03-15 for 140 days with rain every day
// except an 8-day dry run at days 20-27 and a 13-day dry run at days 70-82.
func seasonWithDrySpells() []DailyRecord {
	precip := repeat(5, 140)
	for i := 20; i <= 27; i++ {
		precip[i] = 0
	}
	for i := 70; i <= 82; i++ {
		precip[i] = 0
	}
	return daily(date(2024, 3, 15), precip...)
}

func TestAnalyzeDrySpells(t *testing.T) {
	series := seasonWithDrySpells()
	onset := Detection{Date: date(2024, 3, 15), Status: StatusOccurred}
	cessation := Detection{Date: date(2024, 7, 20), Status: StatusOccurred}

	got := AnalyzeDrySpells(series, onset, cessation)
	if got == nil {
		t.Fatal("AnalyzeDrySpells returned nil")
	}
	want := DrySpellInfo{
		EarlyDays:   8,
		LateDays:    13,
		EarlyPeriod: "Mar 15 - May 04",
		LatePeriod:  "May 05 - Jul 20",
	}
	if *got != want {
		t.Errorf("AnalyzeDrySpells = %+v, want %+v", *got, want)
	}
}

func TestAnalyzeDrySpells_UnknownCessation(t *testing.T) {
	series := seasonWithDrySpells()
	onset := Detection{Date: date(2024, 3, 15), Status: StatusOccurred}

	got := AnalyzeDrySpells(series, onset, Detection{Status: StatusNotYet})
	if got == nil {
		t.Fatal("AnalyzeDrySpells returned nil")
	}
	if got.LateDays != 13 {
		t.Errorf("LateDays = %d, want 13", got.LateDays)
	}
	if got.LatePeriod != "May 05 - Jul 04" {
		t.Errorf("LatePeriod = %q, want 60-day placeholder May 05 - Jul 04", got.LatePeriod)
	}
}

func TestAnalyzeDrySpells_LateWindowEndsAtCessation(t *testing.T) {
	series := seasonWithDrySpells()
	onset := Detection{Date: date(2024, 3, 15), Status: StatusOccurred}
	// Cessation falls on day 75, the sixth day of the late dry run.
	cessation := Detection{Date: date(2024, 5, 29), Status: StatusExpected}

	got := AnalyzeDrySpells(series, onset, cessation)
	if got.LateDays != 6 {
		t.Errorf("LateDays = %d, want 6", got.LateDays)
	}
}

func TestAnalyzeDrySpells_NoOnset(t *testing.T) {
	series := seasonWithDrySpells()
	if got := AnalyzeDrySpells(series, Detection{Status: StatusNotYet}, Detection{Status: StatusNotYet}); got != nil {
		t.Errorf("AnalyzeDrySpells without onset = %+v, want nil", got)
	}
	if got := AnalyzeDrySpells(nil, Detection{Status: StatusNotYet}, Detection{Status: StatusNotYet}); got != nil {
		t.Errorf("AnalyzeDrySpells(nil) = %+v, want nil", got)
	}
}

func TestAnalyzeDrySpells_OnsetOutsideSeries(t *testing.T) {
	series := seasonWithDrySpells()
	onset := Detection{Date: date(2024, 1, 1), Status: StatusOccurred}
	if got := AnalyzeDrySpells(series, onset, Detection{Status: StatusNotYet}); got != nil {
		t.Errorf("AnalyzeDrySpells = %+v, want nil for onset outside series", got)
	}
}

func TestAnalyzeDrySpells_ShortSeries(t *testing.T) {
	series := daily(date(2024, 3, 15), 25, 0, 0, 0, 5)
	onset := Detection{Date: date(2024, 3, 15), Status: StatusOccurred}

	got := AnalyzeDrySpells(series, onset, Detection{Status: StatusNotYet})
	if got.EarlyDays != 3 || got.LateDays != 0 {
		t.Errorf("AnalyzeDrySpells = %+v, want early 3 late 0", got)
	}
}
