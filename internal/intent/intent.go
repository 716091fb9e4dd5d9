// Package intent turns a farmer's chat message into a query type, place
// and crop.
package intent

import (
	"context"

	"github.com/lox/rainseason/internal/models"
)

type QueryType string

const (
	QueryWeather           QueryType = "weather"
	QueryForecast          QueryType = "forecast"
	QueryETO               QueryType = "eto"
	QueryGDD               QueryType = "gdd"
	QuerySoil              QueryType = "soil"
	QuerySeasonal          QueryType = "seasonal"
	QuerySeasonalOnset     QueryType = "seasonal_onset"
	QuerySeasonalCessation QueryType = "seasonal_cessation"
	QueryDrySpell          QueryType = "dry_spell"
	QuerySeasonLength      QueryType = "season_length"
	QueryCropAdvice        QueryType = "crop_advice"
	QueryDekadal           QueryType = "dekadal"
	QueryHelp              QueryType = "help"
	QueryGreeting          QueryType = "greeting"
)

var queryTypes = map[QueryType]bool{
	QueryWeather: true, QueryForecast: true, QueryETO: true, QueryGDD: true, QuerySoil: true,
	QuerySeasonal: true, QuerySeasonalOnset: true, QuerySeasonalCessation: true, QueryDrySpell: true,
	QuerySeasonLength: true, QueryCropAdvice: true, QueryDekadal: true, QueryHelp: true, QueryGreeting: true,
}

// ParseQueryType validates s as a query type.
func ParseQueryType(s string) (QueryType, bool) {
	q := QueryType(s)
	return q, queryTypes[q]
}

// Seasonal reports whether q is answered from the seasonal outlook.
func (q QueryType) Seasonal() bool {
	switch q {
	case QuerySeasonal, QuerySeasonalOnset, QuerySeasonalCessation, QueryDrySpell, QuerySeasonLength:
		return true
	}
	return false
}

// Intent is what a message asks for.
type Intent struct {
	QueryType  QueryType `json:"query_type"`
	City       string    `json:"city,omitempty"`
	Crop       string    `json:"crop,omitempty"`
	Confidence float64   `json:"confidence"`
	// CityFromMemory is set when City came from the user's previous message.
	CityFromMemory bool   `json:"city_from_memory,omitempty"`
	Message        string `json:"-"`
}

// Extractor reads an intent from a message. uc may be nil.
type Extractor interface {
	Extract(ctx context.Context, message string, uc *models.UserContext) Intent
}

// applyMemory fills a missing city or crop from the user's context.
func applyMemory(in Intent, uc *models.UserContext) Intent {
	if uc == nil {
		return in
	}
	if in.City == "" && uc.LastCity.Valid && uc.LastCity.String != "" {
		in.City = uc.LastCity.String
		in.CityFromMemory = true
	}
	if in.Crop == "" && uc.PreferredCrop.Valid {
		in.Crop = uc.PreferredCrop.String
	}
	return in
}
