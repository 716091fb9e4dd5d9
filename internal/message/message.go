// Package message renders seasonal forecasts as WhatsApp replies.
package message

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/lox/rainseason/internal/seasonal"
)

const dateLayout = "2006-01-02"

const (
	shortSeasonDays  = 90
	normalSeasonDays = 120
	earlyDryRiskDays = 7
	lateDryRiskDays  = 10
)

// Help lists example questions.
func Help() string {
	return "ℹ️ *How to use:*\n" +
		"🌧️ \"when do the rains start in Tamale\"\n" +
		"🛑 \"when will the rains end in Kumasi\"\n" +
		"☀️ \"dry spell risk in Wa\"\n" +
		"📏 \"how long is the season in Ho\"\n" +
		"🌍 \"seasonal outlook for Techiman\"\n\n" +
		"📍 Share your location and I'll remember it.\n" +
		"Just ask naturally!"
}

func Greeting() string {
	return "I'm your weather assistant. I can help with:\n" +
		"🌧️ Rain onset  🛑 Rain cessation  ☀️ Dry spells  📏 Season length\n\n" +
		"What would you like to know?"
}

// NotFound is the reply when there is nothing to answer with.
func NotFound() string {
	return "I couldn't find that info. Try asking about the rainy season, dry spells or planting!"
}

// LocationPrompt asks the user to share a location.
func LocationPrompt() string {
	return "To give you accurate local rainfall information, please share your location " +
		"using WhatsApp's location button.\n\n" +
		"📎 Tap the attachment icon and select 'Location' to share.\n\n" +
		"I'll remember it for your next questions!"
}

// PlaceNotFound is the reply when place cannot be geocoded and nothing is remembered.
func PlaceNotFound(place string) string {
	return fmt.Sprintf("I couldn't find '%s'. Please share your location.", place)
}

// SharedLocationFallback prefixes an answer given for the user's shared
// location because place could not be found.
func SharedLocationFallback(place, shared string) string {
	if shared == "" {
		return fmt.Sprintf("I couldn't find '%s'. Showing your shared location instead.\n\n", place)
	}
	return fmt.Sprintf("I couldn't find '%s'. Showing %s instead.\n\n", place, shared)
}

// Outlook renders the full seasonal outlook.
func Outlook(sf seasonal.SeasonalForecast) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🌍 *%s Ghana* - %s\n\n", sf.Region.DisplayName(), sf.SeasonType.DisplayName())

	if sf.OnsetDate != nil {
		fmt.Fprintf(&b, "🌧️ Onset: %s %s\n", sf.OnsetDate.Format(dateLayout), statusEmoji(sf.OnsetStatus))
	}
	if sf.CessationDate != nil {
		fmt.Fprintf(&b, "🛑 Cessation: %s %s\n", sf.CessationDate.Format(dateLayout), statusEmoji(sf.CessationStatus))
	}
	if sf.SeasonLengthDays != nil && *sf.SeasonLengthDays > 0 {
		fmt.Fprintf(&b, "📏 Length: %d days\n", *sf.SeasonLengthDays)
	}
	if ds := sf.DrySpells; ds != nil {
		fmt.Fprintf(&b, "\n☀️ Early dry spell: %d days\n", ds.EarlyDays)
		fmt.Fprintf(&b, "☀️ Late dry spell: %d days\n", ds.LateDays)
	}

	fmt.Fprintf(&b, "\n_💡 %s_", sf.Advice)
	return b.String()
}

// Onset renders the onset date and planting advisory.
func Onset(sf seasonal.SeasonalForecast) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🌧️ %s Ghana - Onset\n\n", sf.Region.DisplayName())

	if sf.OnsetDate != nil {
		fmt.Fprintf(&b, "Date: %s (%s)\n", sf.OnsetDate.Format(dateLayout), statusLabel(sf.OnsetStatus))
	} else {
		fmt.Fprintf(&b, "Status: %s\n", statusTitle(sf.OnsetStatus))
		fmt.Fprintf(&b, "Typical range: %s\n", sf.ExpectedOnsetRange)
	}

	switch sf.OnsetStatus {
	case seasonal.StatusOccurred:
		advisory(&b,
			"Planting window is open - begin sowing immediately",
			"Apply basal fertilizer at planting",
			"Monitor for early pest emergence")
	case seasonal.StatusExpected:
		advisory(&b,
			"Prepare land and acquire inputs now",
			"Have seeds ready for planting",
			"Clear fields and create drainage")
	default:
		advisory(&b,
			"Too early for planting - continue land preparation",
			"Monitor weather updates regularly",
			"Avoid planting on false starts")
	}
	return b.String()
}

// Cessation renders the cessation date and harvest advisory. today picks
// the year of the monitoring start shown while cessation is unknown.
func Cessation(sf seasonal.SeasonalForecast, today time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🛑 %s Ghana - Cessation\n\n", sf.Region.DisplayName())

	if sf.CessationDate != nil {
		fmt.Fprintf(&b, "Date: %s (%s)\n", sf.CessationDate.Format(dateLayout), statusLabel(sf.CessationStatus))
	} else {
		fmt.Fprintf(&b, "Status: Monitoring from %s\n",
			seasonal.CessationMonitoringLabel(sf.Region, sf.SeasonType, today.Year()))
		fmt.Fprintf(&b, "Typical range: %s\n", sf.ExpectedCessationRange)
	}

	if sf.CessationStatus == seasonal.StatusOccurred {
		advisory(&b,
			"Rains have ended - begin harvest if mature",
			"Reduce irrigation gradually",
			"Prepare for dry season storage")
	} else {
		advisory(&b,
			"Plan harvest timing before cessation",
			"Ensure crops reach maturity before rains end",
			"Consider early-maturing varieties if late planting")
	}
	return b.String()
}

// DrySpells renders the early and late dry spell risk.
func DrySpells(sf seasonal.SeasonalForecast) string {
	var b strings.Builder
	fmt.Fprintf(&b, "☀️ %s Ghana - Dry Spells\n\n", sf.Region.DisplayName())

	ds := sf.DrySpells
	if ds == nil {
		b.WriteString("Cannot calculate - onset not yet detected\n")
		advisory(&b, "Check back after rainy season begins")
		return b.String()
	}

	fmt.Fprintf(&b, "Early period (%s):\n  Longest dry spell: %d days\n\n", ds.EarlyPeriod, ds.EarlyDays)
	fmt.Fprintf(&b, "Late period (%s):\n  Longest dry spell: %d days\n", ds.LatePeriod, ds.LateDays)

	var lines []string
	if ds.EarlyDays > earlyDryRiskDays {
		lines = append(lines,
			"Early dry spell risk HIGH - mulch to conserve moisture",
			"Consider supplemental irrigation for seedlings")
	} else {
		lines = append(lines, "Early dry spell risk LOW - normal practices apply")
	}
	if ds.LateDays > lateDryRiskDays {
		lines = append(lines,
			"Late dry spell risk HIGH - avoid late planting",
			"Select drought-tolerant varieties")
	} else {
		lines = append(lines, "Late dry spell risk MODERATE - monitor soil moisture")
	}
	advisory(&b, lines...)
	return b.String()
}

// SeasonLength renders the season duration with variety advice.
func SeasonLength(sf seasonal.SeasonalForecast) string {
	var b strings.Builder
	title := cases.Title(language.English).String(string(sf.SeasonType))
	fmt.Fprintf(&b, "📏 %s Ghana - %s Season Length\n\n", sf.Region.DisplayName(), title)

	if sf.SeasonLengthDays == nil || *sf.SeasonLengthDays <= 0 {
		b.WriteString("Cannot calculate - need both onset and cessation dates\n")
		advisory(&b, "Check back as season progresses")
		return b.String()
	}

	days := *sf.SeasonLengthDays
	fmt.Fprintf(&b, "Duration: %d days\n", days)
	if sf.OnsetDate != nil && sf.CessationDate != nil {
		fmt.Fprintf(&b, "From: %s to %s\n", sf.OnsetDate.Format(dateLayout), sf.CessationDate.Format(dateLayout))
	}

	switch {
	case days < shortSeasonDays:
		advisory(&b,
			"SHORT season - use 90-day maturing varieties",
			"Prioritize quick-maturing crops (cowpea, millet)",
			"Avoid long-season crops this year")
	case days < normalSeasonDays:
		advisory(&b,
			"NORMAL season - standard varieties suitable",
			"Maize (100-110 days) is appropriate",
			"Plan for one cropping cycle")
	default:
		advisory(&b,
			"LONG season - opportunity for longer varieties",
			"Can consider late planting if needed",
			"Second crop possible in Southern Ghana")
	}
	return b.String()
}

func advisory(b *strings.Builder, lines ...string) {
	b.WriteString("\n📋 Advisory:\n")
	for i, l := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("• " + l)
	}
}

func statusEmoji(s seasonal.Status) string {
	if s == seasonal.StatusOccurred {
		return "✅"
	}
	return "📅"
}

func statusLabel(s seasonal.Status) string {
	if s == seasonal.StatusOccurred {
		return "✅ Confirmed"
	}
	return "📅 Expected"
}

// statusTitle turns "not_yet" into "Not Yet".
func statusTitle(s seasonal.Status) string {
	return cases.Title(language.English).String(strings.ReplaceAll(string(s), "_", " "))
}
