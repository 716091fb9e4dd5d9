package bot

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/lox/rainseason/internal/geocode"
	"github.com/lox/rainseason/internal/intent"
	"github.com/lox/rainseason/internal/seasonal"
	"github.com/lox/rainseason/internal/store"
)

var today = time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC)

type fakeGeocoder struct {
	mu       sync.Mutex
	results  map[string][]geocode.Result
	reverse  string
	searches []string
}

func (g *fakeGeocoder) Search(_ context.Context, query string) ([]geocode.Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.searches = append(g.searches, query)
	r, ok := g.results[query]
	if !ok {
		return nil, geocode.ErrNotFound
	}
	return r, nil
}

func (g *fakeGeocoder) Reverse(_ context.Context, lat, lon float64) (string, error) {
	if g.reverse == "" {
		return "", geocode.ErrNotFound
	}
	return g.reverse, nil
}

type coords struct{ lat, lon float64 }

type fakeOutlooks struct {
	mu    sync.Mutex
	calls []coords
	err   error
}

func (o *fakeOutlooks) Outlook(_ context.Context, lat, lon float64) (seasonal.SeasonalForecast, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, coords{lat, lon})
	if o.err != nil {
		return seasonal.SeasonalForecast{}, o.err
	}
	return seasonal.Compute(lat, lon, today, nil, nil, seasonal.DefaultParams()), nil
}

func (o *fakeOutlooks) Today() time.Time { return today }

type fixture struct {
	bot      *Bot
	store    *store.Store
	geocoder *fakeGeocoder
	outlooks *fakeOutlooks
	clock    *clockwork.FakeClock
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	st := store.New(db, time.UTC)
	require.NoError(t, st.Migrate())

	f := &fixture{
		store: st,
		geocoder: &fakeGeocoder{results: map[string][]geocode.Result{
			"Tamale": {{PlaceName: "Tamale", Latitude: 9.4008, Longitude: -0.8393, Confidence: 0.9,
				DisplayName: "Tamale, Tamale Metropolitan District, Northern Region, Ghana"}},
			"Kumasi": {{PlaceName: "Kumasi", Latitude: 6.6885, Longitude: -1.6244, Confidence: 0.95}},
			"Kade": {
				{PlaceName: "Kade", Latitude: 6.0833, Longitude: -0.8333, Confidence: 0.6,
					DisplayName: "Kade, Kwaebibirem Municipal District, Eastern Region, Ghana"},
				{PlaceName: "Kadelso", Latitude: 8.9, Longitude: -1.2, Confidence: 0.55,
					DisplayName: "Kadelso, Central Gonja District, Savannah Region, Ghana"},
			},
		}},
		outlooks: &fakeOutlooks{},
		clock:    clockwork.NewFakeClockAt(today.Add(9 * time.Hour)),
	}
	f.bot = New(Config{
		Store:     st,
		Extractor: intent.NewKeywordRouter(),
		Geocoder:  f.geocoder,
		Outlooks:  f.outlooks,
		Clock:     f.clock,
	})
	return f
}

func (f *fixture) reply(t *testing.T, user, text string) Reply {
	t.Helper()
	r, err := f.bot.Reply(context.Background(), Message{UserID: user, Text: text})
	require.NoError(t, err)
	return r
}

func TestReply_GeocodesNamedPlace(t *testing.T) {
	f := setup(t)

	r := f.reply(t, "u1", "When do the rains start in Tamale?")
	assert.Equal(t, OutcomeAnswered, r.Outcome)
	assert.Equal(t, intent.QuerySeasonalOnset, r.Intent.QueryType)
	assert.Contains(t, r.Text, "Northern Ghana - Onset")
	assert.Contains(t, r.Text, "Typical range: Apr 15 - May 15")
	require.NotNil(t, r.Place)
	assert.Equal(t, "geocoded", r.Place.Source)
	assert.Equal(t, []coords{{9.4008, -0.8393}}, f.outlooks.calls)
	require.NotNil(t, r.Forecast)
	assert.Equal(t, seasonal.RegionNorthern, r.Forecast.Region)

	uc, err := f.store.GetUserContext("u1", f.clock.Now(), DefaultMemoryTTL)
	require.NoError(t, err)
	require.NotNil(t, uc)
	assert.Equal(t, "Tamale", uc.LastCity.String)
	assert.InDelta(t, 9.4008, uc.Latitude.Float64, 1e-9)
}

func TestReply_FollowUpUsesMemory(t *testing.T) {
	f := setup(t)
	f.reply(t, "u1", "onset in Tamale")

	f.clock.Advance(10 * time.Minute)
	r := f.reply(t, "u1", "and the dry spells?")
	assert.Equal(t, OutcomeAnswered, r.Outcome)
	assert.Contains(t, r.Text, "Northern Ghana - Dry Spells")
	assert.Equal(t, "memory", r.Place.Source)
	assert.True(t, r.Intent.CityFromMemory)
	assert.Equal(t, []string{"Tamale"}, f.geocoder.searches, "follow-up should not geocode again")
	assert.Len(t, f.outlooks.calls, 2)
}

func TestReply_MemoryExpires(t *testing.T) {
	f := setup(t)
	f.reply(t, "u1", "onset in Tamale")

	f.clock.Advance(2 * time.Hour)
	r := f.reply(t, "u1", "how long is the season")
	assert.Equal(t, OutcomePrompt, r.Outcome)
	assert.Contains(t, r.Text, "share your location")
	assert.Len(t, f.outlooks.calls, 1)
}

func TestReply_SharedLocation(t *testing.T) {
	f := setup(t)
	f.geocoder.reverse = "Wa, Upper West Region"
	lat, lon := 10.06, -2.5

	r, err := f.bot.Reply(context.Background(), Message{UserID: "u2", Latitude: &lat, Longitude: &lon})
	require.NoError(t, err)
	assert.Equal(t, OutcomeAnswered, r.Outcome)
	assert.Equal(t, intent.QuerySeasonal, r.Intent.QueryType)
	assert.Equal(t, &Place{Name: "Wa, Upper West Region", Latitude: lat, Longitude: lon, Source: "gps"}, r.Place)
	assert.Contains(t, r.Text, "🌍 *Northern Ghana* - Single Season")

	// A pin overrides a place named in the text.
	r, err = f.bot.Reply(context.Background(), Message{UserID: "u2", Text: "onset in Kumasi", Latitude: &lat, Longitude: &lon})
	require.NoError(t, err)
	assert.Equal(t, "gps", r.Place.Source)
	assert.Empty(t, f.geocoder.searches)
}

func TestReply_Clarification(t *testing.T) {
	f := setup(t)

	r := f.reply(t, "u3", "When do the rains start in Kade")
	assert.Equal(t, OutcomeClarify, r.Outcome)
	assert.Contains(t, r.Text, "1. Kade, Kwaebibirem Municipal District, Eastern Region")
	assert.Contains(t, r.Text, "2. Kadelso")
	assert.Empty(t, f.outlooks.calls)

	r = f.reply(t, "u3", "2")
	assert.Equal(t, OutcomeAnswered, r.Outcome)
	assert.Equal(t, intent.QuerySeasonalOnset, r.Intent.QueryType)
	assert.Equal(t, "clarified", r.Place.Source)
	assert.Equal(t, []coords{{8.9, -1.2}}, f.outlooks.calls)
	assert.Contains(t, r.Text, "Northern Ghana - Onset")

	// The question is answered once.
	r = f.reply(t, "u3", "2")
	assert.Equal(t, OutcomeHelp, r.Outcome)
}

func TestReply_ClarificationByName(t *testing.T) {
	f := setup(t)
	f.reply(t, "u3", "dry spell in Kade")

	r := f.reply(t, "u3", "kade in eastern region")
	assert.Equal(t, OutcomeAnswered, r.Outcome)
	assert.Equal(t, intent.QueryDrySpell, r.Intent.QueryType)
	assert.Equal(t, "Kade", r.Place.Name)
	assert.Contains(t, r.Text, "Southern Ghana - Dry Spells")
}

func TestReply_ClarificationExpires(t *testing.T) {
	f := setup(t)
	f.reply(t, "u3", "onset in Kade")

	f.clock.Advance(DefaultClarificationTTL + time.Second)
	r := f.reply(t, "u3", "1")
	assert.NotEqual(t, OutcomeAnswered, r.Outcome)
	assert.Empty(t, f.outlooks.calls)
}

func TestReply_UnknownPlace(t *testing.T) {
	f := setup(t)

	r := f.reply(t, "u4", "onset in Atlantis")
	assert.Equal(t, OutcomePrompt, r.Outcome)
	assert.Contains(t, r.Text, "I couldn't find 'Atlantis'")

	// A city remembered from an earlier question is not silently substituted.
	f.reply(t, "u4", "onset in Kumasi")
	r = f.reply(t, "u4", "cessation in Atlantis")
	assert.Equal(t, OutcomePrompt, r.Outcome)
	assert.Nil(t, r.Place)
	assert.Contains(t, r.Text, "I couldn't find 'Atlantis'")
	assert.Len(t, f.outlooks.calls, 1)
}

func TestReply_UnknownPlaceFallsBackToSharedLocation(t *testing.T) {
	f := setup(t)
	f.geocoder.reverse = "Wa, Upper West Region"
	lat, lon := 10.06, -2.5

	_, err := f.bot.Reply(context.Background(), Message{UserID: "u9", Latitude: &lat, Longitude: &lon})
	require.NoError(t, err)

	r := f.reply(t, "u9", "cessation in Atlantis")
	assert.Equal(t, OutcomeAnswered, r.Outcome)
	assert.Equal(t, "memory", r.Place.Source)
	assert.Equal(t, "Wa, Upper West Region", r.Place.Name)
	assert.True(t, strings.HasPrefix(r.Text, "I couldn't find 'Atlantis'. Showing Wa, Upper West Region instead."), r.Text)
	assert.Contains(t, r.Text, "Northern Ghana - Cessation")

	// Answering from the shared location keeps it a shared location.
	uc, err := f.store.GetUserContext("u9", f.clock.Now(), DefaultMemoryTTL)
	require.NoError(t, err)
	assert.True(t, uc.SharedLocation())
}

func TestReply_UnnamedPinReplacesRememberedCity(t *testing.T) {
	f := setup(t)
	f.reply(t, "u10", "When do the rains start in Tamale?")

	lat, lon := 5.6037, -0.1870
	r, err := f.bot.Reply(context.Background(), Message{UserID: "u10", Latitude: &lat, Longitude: &lon})
	require.NoError(t, err)
	assert.Equal(t, "", r.Place.Name)

	r = f.reply(t, "u10", "how long is the season")
	require.NotNil(t, r.Place)
	assert.Equal(t, &Place{Latitude: lat, Longitude: lon, Source: "memory"}, r.Place)
}

func TestReply_NonSeasonalQueries(t *testing.T) {
	f := setup(t)

	tests := []struct {
		text    string
		outcome string
	}{
		{"Hello", OutcomeGreeting},
		{"help", OutcomeHelp},
		{"Will it rain tomorrow in Accra?", OutcomeHelp},
		{"soil moisture in Tamale", OutcomeHelp},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			r := f.reply(t, "u5", tt.text)
			assert.Equal(t, tt.outcome, r.Outcome)
		})
	}
	assert.Empty(t, f.outlooks.calls)
	assert.Empty(t, f.geocoder.searches)
}

func TestReply_CropAdviceGetsFullOutlook(t *testing.T) {
	f := setup(t)

	r := f.reply(t, "u6", "When should I plant maize in Kumasi")
	assert.Equal(t, OutcomeAnswered, r.Outcome)
	assert.Contains(t, r.Text, "🌍 *Southern Ghana* - Major Season")

	uc, err := f.store.GetUserContext("u6", f.clock.Now(), DefaultMemoryTTL)
	require.NoError(t, err)
	assert.Equal(t, "maize", uc.PreferredCrop.String)
}

func TestReply_OutlookFailure(t *testing.T) {
	f := setup(t)
	f.outlooks.err = errors.New("upstream down")

	r := f.reply(t, "u7", "onset in Tamale")
	assert.Equal(t, OutcomeFailed, r.Outcome)
	assert.Contains(t, r.Text, "I couldn't find that info")

	uc, err := f.store.GetUserContext("u7", f.clock.Now(), DefaultMemoryTTL)
	require.NoError(t, err)
	assert.Nil(t, uc, "failed answers are not remembered")
}

func TestPickOption(t *testing.T) {
	options := []geocode.Result{{PlaceName: "Kade"}, {PlaceName: "Kadelso"}}

	tests := []struct {
		text   string
		want   string
		wantOK bool
	}{
		{"1", "Kade", true},
		{" 2. ", "Kadelso", true},
		{"3", "", false},
		{"0", "", false},
		{"KADE please", "Kade", true},
		{"Accra", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := pickOption(tt.text, options)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got.PlaceName)
		})
	}
}
