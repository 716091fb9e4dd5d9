package intent

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/lox/rainseason/internal/models"
)

func TestKeywordRouter_Extract(t *testing.T) {
	tests := []struct {
		message string
		want    Intent
	}{
		{"When does the rainy season start in Tamale?", Intent{QueryType: QuerySeasonalOnset, City: "Tamale"}},
		{"when will the rains start for kade", Intent{QueryType: QuerySeasonalOnset, City: "Kade"}},
		{"Onset date in Assin Fosu?", Intent{QueryType: QuerySeasonalOnset, City: "Assin Fosu"}},
		{"When do the rains end in Kumasi", Intent{QueryType: QuerySeasonalCessation, City: "Kumasi"}},
		{"cessation Bolgatanga", Intent{QueryType: QuerySeasonalCessation, City: "Bolgatanga"}},
		{"Will there be a dry spell in Wa?", Intent{QueryType: QueryDrySpell, City: "Wa"}},
		{"drought risk for maize", Intent{QueryType: QueryDrySpell, Crop: "maize"}},
		{"How long is the rainy season in Cape Coast", Intent{QueryType: QuerySeasonLength, City: "Cape Coast"}},
		{"seasonal outlook Ho", Intent{QueryType: QuerySeasonal, City: "Ho"}},
		{"Hello", Intent{QueryType: QueryGreeting}},
		{"hi, good morning", Intent{QueryType: QueryGreeting}},
		{"help", Intent{QueryType: QueryHelp}},
		{"When should I plant corn in Techiman", Intent{QueryType: QueryCropAdvice, City: "Techiman", Crop: "maize"}},
		{"soil moisture for my rice field", Intent{QueryType: QuerySoil, Crop: "rice"}},
		{"10-day bulletin", Intent{QueryType: QueryDekadal}},
		{"Will it rain tomorrow in Accra?", Intent{QueryType: QueryForecast, City: "Accra"}},
		{"weather Tema", Intent{QueryType: QueryWeather, City: "Tema"}},
		{"Whatever", Intent{QueryType: QueryWeather}},
	}

	r := NewKeywordRouter()
	ignore := cmpopts.IgnoreFields(Intent{}, "Confidence", "Message")
	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			got := r.Extract(context.Background(), tt.message, nil)
			if diff := cmp.Diff(tt.want, got, ignore); diff != "" {
				t.Errorf("Extract(%q) mismatch (-want +got):\n%s", tt.message, diff)
			}
			if got.Confidence != keywordConfidence {
				t.Errorf("Confidence = %v, want %v", got.Confidence, keywordConfidence)
			}
			if got.Message != tt.message {
				t.Errorf("Message = %q, want %q", got.Message, tt.message)
			}
		})
	}
}

func TestKeywordRouter_CityNotMatchedInsideWords(t *testing.T) {
	r := NewKeywordRouter()
	got := r.Extract(context.Background(), "how long will the season last", nil)
	if got.City != "" {
		t.Errorf("City = %q, want none", got.City)
	}
	if got.QueryType != QuerySeasonLength {
		t.Errorf("QueryType = %q, want %q", got.QueryType, QuerySeasonLength)
	}
}

func TestKeywordRouter_UsesMemory(t *testing.T) {
	uc := &models.UserContext{
		UserID:        "233200000001",
		LastCity:      sql.NullString{String: "Tamale", Valid: true},
		PreferredCrop: sql.NullString{String: "sorghum", Valid: true},
	}
	r := NewKeywordRouter()

	got := r.Extract(context.Background(), "and the dry spells?", uc)
	want := Intent{QueryType: QueryDrySpell, City: "Tamale", Crop: "sorghum", CityFromMemory: true}
	if diff := cmp.Diff(want, got, cmpopts.IgnoreFields(Intent{}, "Confidence", "Message")); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	got = r.Extract(context.Background(), "onset in Kumasi", uc)
	if got.City != "Kumasi" || got.CityFromMemory {
		t.Errorf("named city should win over memory, got %+v", got)
	}
}

func TestQueryType(t *testing.T) {
	if q, ok := ParseQueryType("dry_spell"); !ok || q != QueryDrySpell {
		t.Errorf("ParseQueryType(dry_spell) = %q, %v", q, ok)
	}
	if _, ok := ParseQueryType("rain"); ok {
		t.Error("ParseQueryType(rain) should fail")
	}
	for _, q := range []QueryType{QuerySeasonal, QuerySeasonalOnset, QuerySeasonalCessation, QueryDrySpell, QuerySeasonLength} {
		if !q.Seasonal() {
			t.Errorf("%s should be seasonal", q)
		}
	}
	if QueryForecast.Seasonal() || QueryHelp.Seasonal() {
		t.Error("forecast and help are not seasonal")
	}
}
