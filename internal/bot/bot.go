// Package bot answers farmers' chat messages with seasonal rainfall replies.
package bot

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/lox/rainseason/internal/geocode"
	"github.com/lox/rainseason/internal/intent"
	"github.com/lox/rainseason/internal/message"
	"github.com/lox/rainseason/internal/metrics"
	"github.com/lox/rainseason/internal/models"
	"github.com/lox/rainseason/internal/seasonal"
	"github.com/lox/rainseason/internal/store"
)

const (
	DefaultMemoryTTL        = time.Hour
	DefaultClarificationTTL = 5 * time.Minute
	maxClarifyOptions       = 5
)

// Outcomes reported on Reply and the replies metric.
const (
	OutcomeAnswered = "answered"
	OutcomeClarify  = "clarify"
	OutcomePrompt   = "location_prompt"
	OutcomeHelp     = "help"
	OutcomeGreeting = "greeting"
	OutcomeFailed   = "failed"
)

// Outlooks serves seasonal forecasts. *outlook.Service implements it.
type Outlooks interface {
	Outlook(ctx context.Context, lat, lon float64) (seasonal.SeasonalForecast, error)
	Today() time.Time
}

type Config struct {
	Store            *store.Store
	Extractor        intent.Extractor
	Geocoder         geocode.Geocoder
	Outlooks         Outlooks
	MemoryTTL        time.Duration
	ClarificationTTL time.Duration
	Clock            clockwork.Clock
}

type Bot struct {
	store            *store.Store
	extractor        intent.Extractor
	geocoder         geocode.Geocoder
	outlooks         Outlooks
	memoryTTL        time.Duration
	clarificationTTL time.Duration
	clock            clockwork.Clock
}

func New(cfg Config) *Bot {
	b := &Bot{
		store:            cfg.Store,
		extractor:        cfg.Extractor,
		geocoder:         cfg.Geocoder,
		outlooks:         cfg.Outlooks,
		memoryTTL:        cfg.MemoryTTL,
		clarificationTTL: cfg.ClarificationTTL,
		clock:            cfg.Clock,
	}
	if b.extractor == nil {
		b.extractor = intent.NewKeywordRouter()
	}
	if b.memoryTTL <= 0 {
		b.memoryTTL = DefaultMemoryTTL
	}
	if b.clarificationTTL <= 0 {
		b.clarificationTTL = DefaultClarificationTTL
	}
	if b.clock == nil {
		b.clock = clockwork.NewRealClock()
	}
	return b
}

// Message is an inbound chat message. Latitude and Longitude are set when
// the user shared a location pin.
type Message struct {
	UserID    string
	Text      string
	Latitude  *float64
	Longitude *float64
}

func (m Message) hasGPS() bool {
	return m.Latitude != nil && m.Longitude != nil
}

// Place is the location a reply was computed for.
type Place struct {
	Name      string  `json:"name,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Source    string  `json:"source"` // gps, geocoded, memory, clarified

	// note is prepended to the answer.
	note string
}

type Reply struct {
	Text     string                     `json:"reply"`
	Outcome  string                     `json:"outcome"`
	Intent   intent.Intent              `json:"intent"`
	Place    *Place                     `json:"place,omitempty"`
	Forecast *seasonal.SeasonalForecast `json:"forecast,omitempty"`
}

// Reply answers msg. Upstream failures are turned into a reply text; only
// storage failures are returned as errors.
func (b *Bot) Reply(ctx context.Context, msg Message) (Reply, error) {
	now := b.clock.Now()
	msg.Text = strings.TrimSpace(msg.Text)

	uc, err := b.store.GetUserContext(msg.UserID, now, b.memoryTTL)
	if err != nil {
		return Reply{}, fmt.Errorf("get user context: %w", err)
	}

	if !msg.hasGPS() {
		r, ok, err := b.answerClarification(ctx, msg, uc, now)
		if err != nil || ok {
			return r, err
		}
	}

	in := b.extractor.Extract(ctx, msg.Text, uc)
	if msg.Text == "" && msg.hasGPS() {
		in.QueryType = intent.QuerySeasonal
	}

	switch {
	case in.QueryType == intent.QueryGreeting:
		return b.finish(Reply{Text: message.Greeting(), Outcome: OutcomeGreeting, Intent: in}), nil
	case !answerable(in.QueryType):
		return b.finish(Reply{Text: message.Help(), Outcome: OutcomeHelp, Intent: in}), nil
	}

	place, early, err := b.resolvePlace(ctx, msg, in, uc, now)
	if err != nil {
		return Reply{}, err
	}
	if early != nil {
		early.Intent = in
		return b.finish(*early), nil
	}
	return b.answer(ctx, msg.UserID, in, *place, now)
}

// answerable reports whether q is answered from the seasonal outlook. Crop
// advice gets the full outlook with its farming advice.
func answerable(q intent.QueryType) bool {
	return q.Seasonal() || q == intent.QueryCropAdvice
}

// resolvePlace picks the location to answer for: a shared pin, then the place
// named in the message, then the remembered location. A named place that
// cannot be found falls back only to a shared location, and says so. When
// none applies it returns the reply to send instead.
func (b *Bot) resolvePlace(ctx context.Context, msg Message, in intent.Intent, uc *models.UserContext, now time.Time) (*Place, *Reply, error) {
	if msg.hasGPS() {
		p := &Place{Latitude: *msg.Latitude, Longitude: *msg.Longitude, Source: "gps"}
		if b.geocoder != nil {
			name, err := b.geocoder.Reverse(ctx, p.Latitude, p.Longitude)
			if err != nil {
				log.Printf("bot: reverse geocode %.4f,%.4f: %v", p.Latitude, p.Longitude, err)
			}
			p.Name = name
		}
		return p, nil, nil
	}

	remembered := func() *Place {
		if !uc.HasLocation() {
			return nil
		}
		return &Place{Name: uc.LastCity.String, Latitude: uc.Latitude.Float64, Longitude: uc.Longitude.Float64, Source: "memory"}
	}

	if in.City != "" && (!in.CityFromMemory || !uc.HasLocation()) && b.geocoder != nil {
		results, err := b.geocoder.Search(ctx, in.City)
		if err != nil && !errors.Is(err, geocode.ErrNotFound) {
			log.Printf("bot: geocode %q: %v", in.City, err)
		}
		if err == nil && len(results) > 0 {
			if geocode.NeedsClarification(results) && len(results) > 1 {
				r, err := b.askClarification(msg.UserID, in, results, now)
				return nil, r, err
			}
			best := results[0]
			return &Place{Name: best.PlaceName, Latitude: best.Latitude, Longitude: best.Longitude, Source: "geocoded"}, nil, nil
		}
		if uc.SharedLocation() {
			p := remembered()
			p.note = message.SharedLocationFallback(in.City, p.Name)
			return p, nil, nil
		}
		return nil, &Reply{Text: message.PlaceNotFound(in.City), Outcome: OutcomePrompt}, nil
	}

	if p := remembered(); p != nil {
		return p, nil, nil
	}
	return nil, &Reply{Text: message.LocationPrompt(), Outcome: OutcomePrompt}, nil
}

func (b *Bot) askClarification(userID string, in intent.Intent, results []geocode.Result, now time.Time) (*Reply, error) {
	if len(results) > maxClarifyOptions {
		results = results[:maxClarifyOptions]
	}
	options, err := json.Marshal(results)
	if err != nil {
		return nil, fmt.Errorf("encode clarification options: %w", err)
	}
	err = b.store.SavePendingClarification(models.PendingClarification{
		UserID:    userID,
		Query:     in.City,
		QueryType: string(in.QueryType),
		Options:   options,
		ExpiresAt: now.Add(b.clarificationTTL),
	})
	if err != nil {
		return nil, fmt.Errorf("save clarification: %w", err)
	}
	return &Reply{Text: geocode.ClarificationQuestion(in.City, results), Outcome: OutcomeClarify}, nil
}

// answerClarification resolves a reply to an open place question. ok is
// false when there was no open question or the text did not pick an option,
// in which case the message is handled from scratch.
func (b *Bot) answerClarification(ctx context.Context, msg Message, uc *models.UserContext, now time.Time) (Reply, bool, error) {
	pending, err := b.store.GetPendingClarification(msg.UserID, now)
	if err != nil {
		return Reply{}, false, fmt.Errorf("get clarification: %w", err)
	}
	if pending == nil {
		return Reply{}, false, nil
	}
	if err := b.store.DeletePendingClarification(msg.UserID); err != nil {
		return Reply{}, false, fmt.Errorf("delete clarification: %w", err)
	}

	var options []geocode.Result
	if err := json.Unmarshal(pending.Options, &options); err != nil {
		log.Printf("bot: decode clarification for %s: %v", msg.UserID, err)
		return Reply{}, false, nil
	}
	choice, ok := pickOption(msg.Text, options)
	if !ok {
		return Reply{}, false, nil
	}

	qt, valid := intent.ParseQueryType(pending.QueryType)
	if !valid {
		qt = intent.QuerySeasonal
	}
	in := intent.Intent{QueryType: qt, City: choice.PlaceName, Confidence: choice.Confidence, Message: msg.Text}
	if uc != nil && uc.PreferredCrop.Valid {
		in.Crop = uc.PreferredCrop.String
	}
	place := Place{Name: choice.PlaceName, Latitude: choice.Latitude, Longitude: choice.Longitude, Source: "clarified"}
	r, err := b.answer(ctx, msg.UserID, in, place, now)
	return r, err == nil, err
}

// pickOption matches "2" or a reply naming one of the options.
func pickOption(text string, options []geocode.Result) (geocode.Result, bool) {
	text = strings.TrimSpace(text)
	if n, err := strconv.Atoi(strings.TrimSuffix(text, ".")); err == nil {
		if n >= 1 && n <= len(options) {
			return options[n-1], true
		}
		return geocode.Result{}, false
	}
	lower := strings.ToLower(text)
	for _, o := range options {
		if o.PlaceName != "" && strings.Contains(lower, strings.ToLower(o.PlaceName)) {
			return o, true
		}
	}
	return geocode.Result{}, false
}

// answer fetches the outlook for place, formats it for the query type and
// remembers the place for follow-up questions.
func (b *Bot) answer(ctx context.Context, userID string, in intent.Intent, place Place, now time.Time) (Reply, error) {
	sf, err := b.outlooks.Outlook(ctx, place.Latitude, place.Longitude)
	if err != nil {
		log.Printf("bot: outlook for %s (%.4f,%.4f): %v", place.Name, place.Latitude, place.Longitude, err)
		return b.finish(Reply{Text: message.NotFound(), Outcome: OutcomeFailed, Intent: in, Place: &place}), nil
	}

	uc := models.UserContext{
		UserID:    userID,
		Latitude:  sql.NullFloat64{Float64: place.Latitude, Valid: true},
		Longitude: sql.NullFloat64{Float64: place.Longitude, Valid: true},
		UpdatedAt: now,
	}
	if place.Name != "" {
		uc.LastCity = sql.NullString{String: place.Name, Valid: true}
	}
	if place.Source != "memory" {
		uc.LocationSource = sql.NullString{String: place.Source, Valid: true}
	}
	if in.Crop != "" {
		uc.PreferredCrop = sql.NullString{String: in.Crop, Valid: true}
	}
	if err := b.store.SaveUserContext(uc); err != nil {
		return Reply{}, fmt.Errorf("save user context: %w", err)
	}

	return b.finish(Reply{
		Text:     place.note + b.format(in.QueryType, sf),
		Outcome:  OutcomeAnswered,
		Intent:   in,
		Place:    &place,
		Forecast: &sf,
	}), nil
}

func (b *Bot) format(q intent.QueryType, sf seasonal.SeasonalForecast) string {
	switch q {
	case intent.QuerySeasonalOnset:
		return message.Onset(sf)
	case intent.QuerySeasonalCessation:
		return message.Cessation(sf, b.outlooks.Today())
	case intent.QueryDrySpell:
		return message.DrySpells(sf)
	case intent.QuerySeasonLength:
		return message.SeasonLength(sf)
	default:
		return message.Outlook(sf)
	}
}

func (b *Bot) finish(r Reply) Reply {
	metrics.BotReplies.WithLabelValues(r.Outcome).Inc()
	return r
}
