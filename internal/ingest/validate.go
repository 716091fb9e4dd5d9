package ingest

import "github.com/lox/rainseason/internal/seasonal"

const (
	FlagPrecipMissing  = "precip_missing"
	FlagPrecipNegative = "precip_negative"
	FlagPrecipUnlikely = "precip_unlikely"
	FlagETONegative    = "eto_negative"
	FlagETOUnlikely    = "eto_unlikely"
)

const (
	maxDailyPrecipMM = 500
	maxDailyETOMM    = 15
)

// ValidateRecord returns quality flags for a daily record. precipMissing is
// set when the upstream reported null precipitation.
func ValidateRecord(rec seasonal.DailyRecord, precipMissing bool) []string {
	var flags []string

	if precipMissing {
		flags = append(flags, FlagPrecipMissing)
	}
	if rec.PrecipitationMM < 0 {
		flags = append(flags, FlagPrecipNegative)
	}
	if rec.PrecipitationMM > maxDailyPrecipMM {
		flags = append(flags, FlagPrecipUnlikely)
	}

	if rec.ETOMM != nil {
		if *rec.ETOMM < 0 {
			flags = append(flags, FlagETONegative)
		}
		if *rec.ETOMM > maxDailyETOMM {
			flags = append(flags, FlagETOUnlikely)
		}
	}

	return flags
}

// Sanitize repairs a flagged record: negative rainfall becomes 0 and an
// implausible ETO is dropped so the engine default applies. Unlikely but
// possible rainfall totals are kept.
func Sanitize(rec seasonal.DailyRecord, flags []string) seasonal.DailyRecord {
	for _, f := range flags {
		switch f {
		case FlagPrecipNegative:
			rec.PrecipitationMM = 0
		case FlagETONegative, FlagETOUnlikely:
			rec.ETOMM = nil
		}
	}
	return rec
}
