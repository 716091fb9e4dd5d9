package intent

import (
	"context"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/lox/rainseason/internal/metrics"
	"github.com/lox/rainseason/internal/models"
)

const keywordConfidence = 0.6

// GhanaCities are the towns recognised by name without geocoding a guess.
var GhanaCities = []string{
	"Accra", "Kumasi", "Tamale", "Takoradi", "Cape Coast", "Sunyani", "Ho", "Koforidua",
	"Tema", "Wa", "Bolgatanga", "Sekondi", "Tarkwa", "Obuasi", "Techiman", "Nkawkaw",
}

// Crops recognised in messages. Corn is reported as maize.
var Crops = []string{
	"maize", "corn", "rice", "cassava", "cocoa", "tomato", "pepper", "yam",
	"groundnut", "sorghum", "millet", "plantain", "cowpea", "beans",
}

// rules are checked in order; the first rule with a matching keyword wins.
// Greetings are checked right after help. Keywords match at the start of a
// word, so "plant" matches "planting".
var rules = []struct {
	queryType QueryType
	keywords  []string
}{
	{QueryHelp, []string{"help", "how do i", "how to", "what can"}},
	{QueryETO, []string{"eto", "evapotranspiration", "evaporation"}},
	{QueryGDD, []string{"gdd", "degree day", "growth stage"}},
	{QuerySoil, []string{"soil", "moisture"}},
	{QuerySeasonalOnset, []string{"onset", "start of rain", "when does rain start", "beginning of rain",
		"rainy season start", "rains start", "rain start", "rains begin"}},
	{QuerySeasonalCessation, []string{"cessation", "end of rain", "when does rain end", "rain stop",
		"rains stop", "rainy season end", "rains end"}},
	{QueryDrySpell, []string{"dry spell", "dry period", "drought"}},
	{QuerySeasonLength, []string{"season length", "how long", "duration of rain", "season duration"}},
	{QuerySeasonal, []string{"seasonal", "outlook", "3 month", "6 month", "season"}},
	{QueryCropAdvice, []string{"advice", "plant", "when to", "should i"}},
	{QueryDekadal, []string{"dekadal", "bulletin", "10-day", "10 day"}},
	{QueryForecast, []string{"forecast", "tomorrow", "next week", "this week"}},
}

var greetings = []string{"hi", "hello", "hey", "good morning", "good afternoon", "good evening"}

var prepositions = map[string]bool{"in": true, "for": true, "at": true}

// notPlaces follow a preposition without naming a place.
var notPlaces = map[string]bool{
	"the": true, "my": true, "our": true, "this": true, "next": true, "a": true, "an": true,
	"today": true, "tomorrow": true, "now": true, "week": true, "season": true, "rain": true,
	"rains": true, "planting": true, "farming": true, "me": true, "it": true,
}

// KeywordRouter extracts intents with keyword rules. It never fails.
type KeywordRouter struct{}

func NewKeywordRouter() *KeywordRouter {
	return &KeywordRouter{}
}

func (k *KeywordRouter) Extract(_ context.Context, message string, uc *models.UserContext) Intent {
	in := k.route(message, uc)
	metrics.IntentsRouted.WithLabelValues(string(in.QueryType), "keyword").Inc()
	return in
}

func (k *KeywordRouter) route(message string, uc *models.UserContext) Intent {
	text := normalize(message)
	in := Intent{
		QueryType:  classify(text),
		City:       city(message, text),
		Crop:       crop(text),
		Confidence: keywordConfidence,
		Message:    message,
	}
	return applyMemory(in, uc)
}

func classify(text string) QueryType {
	help := rules[0]
	if containsAny(text, help.keywords, hasWordPrefix) {
		return help.queryType
	}
	if containsAny(text, greetings, hasWord) {
		return QueryGreeting
	}
	for _, r := range rules[1:] {
		if containsAny(text, r.keywords, hasWordPrefix) {
			return r.queryType
		}
	}
	return QueryWeather
}

// city returns a known Ghana city named in the message, else the words
// after the first "in", "for" or "at" that look like a place name.
func city(message, text string) string {
	for _, c := range GhanaCities {
		if hasWord(text, strings.ToLower(c)) {
			return c
		}
	}

	words := strings.Fields(message)
	for i := 0; i < len(words)-1; i++ {
		if !prepositions[strings.ToLower(trimPunct(words[i]))] {
			continue
		}
		first := trimPunct(words[i+1])
		lower := strings.ToLower(first)
		if first == "" || notPlaces[lower] || isCrop(lower) {
			continue
		}
		place := []string{first}
		// Multi-word names are only taken when capitalised, e.g. "Assin Fosu".
		if startsUpper(first) {
			for j := i + 2; j < len(words) && len(place) < 3; j++ {
				w := trimPunct(words[j])
				if !startsUpper(w) {
					break
				}
				place = append(place, w)
				if strings.ContainsAny(words[j], "?,.!") {
					break
				}
			}
		}
		return cases.Title(language.English).String(strings.Join(place, " "))
	}
	return ""
}

func crop(text string) string {
	for _, c := range Crops {
		if hasWordPrefix(text, c) {
			if c == "corn" {
				return "maize"
			}
			return c
		}
	}
	return ""
}

func isCrop(word string) bool {
	for _, c := range Crops {
		if strings.HasPrefix(word, c) {
			return true
		}
	}
	return false
}

// normalize lowercases s and turns punctuation into single spaces, padding
// the result with a space on each side for word matching.
func normalize(s string) string {
	var b strings.Builder
	b.WriteByte(' ')
	space := true
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '\'' {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	if !space {
		b.WriteByte(' ')
	}
	return b.String()
}

func hasWord(text, phrase string) bool {
	return strings.Contains(text, " "+phrase+" ")
}

func hasWordPrefix(text, phrase string) bool {
	return strings.Contains(text, " "+phrase)
}

func containsAny(text string, phrases []string, match func(string, string) bool) bool {
	for _, p := range phrases {
		if match(text, p) {
			return true
		}
	}
	return false
}

func trimPunct(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '\''
	})
}

func startsUpper(s string) bool {
	for _, r := range s {
		return unicode.IsUpper(r)
	}
	return false
}
