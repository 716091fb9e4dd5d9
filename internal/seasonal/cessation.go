package seasonal

import (
	"math"
	"time"
)

const (
	DefaultSoilCapacityMM = 70.0
	DefaultETOMM          = 4.0
)

// WaterBalance configures the soil reservoir used to detect cessation.
type WaterBalance struct {
	CapacityMM   float64
	DefaultETOMM float64 // used for days without an ETO value
}

func DefaultWaterBalance() WaterBalance {
	return WaterBalance{CapacityMM: DefaultSoilCapacityMM, DefaultETOMM: DefaultETOMM}
}

// DetectCessation runs a daily water balance from cessationStart. The
// reservoir starts full; each day adds rainfall and removes ETO, clamped to
// [0, capacity]. The first day the reservoir is empty is the cessation date.
func DetectCessation(series []DailyRecord, cessationStart, today time.Time, wb WaterBalance) Detection {
	start := indexOnOrAfter(series, cessationStart)
	if start < 0 {
		return notYet()
	}

	level := wb.CapacityMM
	for _, rec := range series[start:] {
		level += rec.PrecipitationMM - rec.ETO(wb.DefaultETOMM)
		level = math.Max(0, math.Min(level, wb.CapacityMM))
		if level <= 0 {
			return detected(rec.Date, today)
		}
	}
	return notYet()
}
