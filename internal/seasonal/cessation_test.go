package seasonal

import (
	"testing"
	"time"
)

func withETO(series []DailyRecord, v float64) []DailyRecord {
	for i := range series {
		series[i].ETOMM = eto(v)
	}
	return series
}

func TestDetectCessation(t *testing.T) {
	july := date(2024, 7, 1)

	tests := []struct {
		name   string
		series []DailyRecord
		start  string
		wb     WaterBalance
		today  string
		want   Detection
	}{
		{
			name:   "thirty dry days drain the reservoir on day 18",
			series: withETO(daily(july, repeat(0, 30)...), 4),
			start:  "2024-07-01",
			wb:     DefaultWaterBalance(),
			today:  "2024-08-01",
			want:   Detection{Date: date(2024, 7, 18), Status: StatusOccurred},
		},
		{
			name:   "net gain never depletes",
			series: withETO(daily(july, repeat(10, 30)...), 4),
			start:  "2024-07-01",
			wb:     DefaultWaterBalance(),
			today:  "2024-08-01",
			want:   Detection{Status: StatusNotYet},
		},
		{
			name:   "missing ETO uses the default",
			series: daily(july, repeat(0, 30)...),
			start:  "2024-07-01",
			wb:     DefaultWaterBalance(),
			today:  "2024-08-01",
			want:   Detection{Date: date(2024, 7, 18), Status: StatusOccurred},
		},
		{
			name:   "configured default ETO",
			series: daily(july, repeat(0, 30)...),
			start:  "2024-07-01",
			wb:     WaterBalance{CapacityMM: 70, DefaultETOMM: 7},
			today:  "2024-08-01",
			want:   Detection{Date: date(2024, 7, 10), Status: StatusOccurred},
		},
		{
			name:   "reservoir is capped at capacity",
			series: withETO(daily(july, concat([]float64{100}, repeat(0, 29))...), 4),
			start:  "2024-07-01",
			wb:     DefaultWaterBalance(),
			today:  "2024-08-01",
			want:   Detection{Date: date(2024, 7, 19), Status: StatusOccurred},
		},
		{
			name:   "days before the monitoring start are ignored",
			series: withETO(daily(date(2024, 6, 21), repeat(0, 40)...), 4),
			start:  "2024-07-01",
			wb:     DefaultWaterBalance(),
			today:  "2024-08-01",
			want:   Detection{Date: date(2024, 7, 18), Status: StatusOccurred},
		},
		{
			name:   "cessation after today is expected",
			series: withETO(daily(july, repeat(0, 30)...), 4),
			start:  "2024-07-01",
			wb:     DefaultWaterBalance(),
			today:  "2024-07-17",
			want:   Detection{Date: date(2024, 7, 18), Status: StatusExpected},
		},
		{
			name:   "monitoring start after the series",
			series: withETO(daily(july, repeat(0, 30)...), 4),
			start:  "2024-10-01",
			wb:     DefaultWaterBalance(),
			today:  "2024-11-01",
			want:   Detection{Status: StatusNotYet},
		},
		{
			name:  "empty series",
			start: "2024-07-01",
			wb:    DefaultWaterBalance(),
			today: "2024-11-01",
			want:  Detection{Status: StatusNotYet},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetectCessation(tt.series, mustDate(t, tt.start), mustDate(t, tt.today), tt.wb)
			if got.Status != tt.want.Status || !got.Date.Equal(tt.want.Date) {
				t.Errorf("DetectCessation = {%s %s}, want {%s %s}",
					got.Date.Format(isoDate), got.Status, tt.want.Date.Format(isoDate), tt.want.Status)
			}
		})
	}
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse(isoDate, s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return d
}
