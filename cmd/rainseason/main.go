package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	_ "modernc.org/sqlite"

	"github.com/lox/rainseason/internal/api"
	"github.com/lox/rainseason/internal/bot"
	"github.com/lox/rainseason/internal/geocode"
	"github.com/lox/rainseason/internal/ingest"
	"github.com/lox/rainseason/internal/intent"
	"github.com/lox/rainseason/internal/message"
	"github.com/lox/rainseason/internal/models"
	"github.com/lox/rainseason/internal/outlook"
	"github.com/lox/rainseason/internal/seasonal"
	"github.com/lox/rainseason/internal/store"
)

// defaultLocations are regional capitals kept warm in the outlook cache.
var defaultLocations = []string{
	"Accra:5.6037:-0.1870",
	"Kumasi:6.6885:-1.6244",
	"Cape Coast:5.1053:-1.2466",
	"Ho:6.6008:0.4713",
	"Sunyani:7.3399:-2.3268",
	"Tamale:9.4008:-0.8393",
	"Bolgatanga:10.7856:-0.8514",
	"Wa:10.0601:-2.5099",
}

type Globals struct {
	DB       string `help:"Path to SQLite database." default:"data/rainseason.db" env:"RAINSEASON_DB"`
	Timezone string `help:"Timezone that decides the current day." default:"Africa/Accra" env:"RAINSEASON_TZ"`

	ArchiveURL   string        `help:"Open-Meteo archive API URL." default:"https://archive-api.open-meteo.com/v1/archive" env:"OPENMETEO_ARCHIVE_URL"`
	ForecastURL  string        `help:"Open-Meteo forecast API URL." default:"https://api.open-meteo.com/v1/forecast" env:"OPENMETEO_FORECAST_URL"`
	ForecastDays int           `help:"Days of forecast rainfall to include." default:"16" env:"FORECAST_DAYS"`
	DefaultETO   float64       `help:"Evapotranspiration (mm/day) assumed when upstream has none." default:"4.0" env:"DEFAULT_ETO"`
	CacheTTL     time.Duration `help:"How long computed outlooks are served from cache." default:"6h" env:"OUTLOOK_CACHE_TTL"`

	NominatimURL     string `help:"Nominatim base URL." default:"https://nominatim.openstreetmap.org" env:"NOMINATIM_URL"`
	UserAgent        string `help:"User-Agent sent to Nominatim." default:"rainseason/1.0" env:"NOMINATIM_USER_AGENT"`
	CountryCode      string `help:"Country code geocoding is biased to." default:"gh" env:"GEOCODE_COUNTRY_CODE"`
	GeocodeCacheSize int    `help:"Geocoding results kept in memory." default:"500" env:"GEOCODE_CACHE_SIZE"`

	LLMAPIKey  string        `help:"API key for the OpenAI-compatible intent model. Keyword routing is used when empty." env:"GROQ_API_KEY"`
	LLMBaseURL string        `help:"OpenAI-compatible API base URL." default:"https://api.groq.com/openai/v1" env:"LLM_BASE_URL"`
	LLMModel   string        `help:"Intent extraction model." default:"llama-3.1-8b-instant" env:"LLM_MODEL"`
	LLMTimeout time.Duration `help:"Intent extraction timeout." default:"10s" env:"LLM_TIMEOUT"`

	MemoryTTL time.Duration `help:"How long a user's last place is remembered." default:"1h" env:"MEMORY_TTL"`
}

type CLI struct {
	Globals

	Serve   ServeCmd   `cmd:"" default:"1" help:"Run the HTTP API and prewarm scheduler."`
	Outlook OutlookCmd `cmd:"" help:"Print the seasonal outlook for a place or coordinate."`
	Ask     AskCmd     `cmd:"" help:"Answer a chat message as the bot would."`
	Migrate MigrateCmd `cmd:"" help:"Apply database migrations and exit."`
}

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: load .env: %v", err)
	}

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("rainseason"),
		kong.Description("Seasonal rainfall onset, cessation and dry spell outlooks for Ghana."),
		kong.UsageOnError(),
	)
	ctx.FatalIfErrorf(ctx.Run(&cli.Globals))
}

// app is the wired service graph shared by every command.
type app struct {
	db       *sql.DB
	loc      *time.Location
	store    *store.Store
	geocoder geocode.Geocoder
	outlooks *outlook.Service
	bot      *bot.Bot
}

func (g *Globals) open() (*app, error) {
	if dir := filepath.Dir(g.DB); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", g.DB)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")

	loc, err := time.LoadLocation(g.Timezone)
	if err != nil {
		log.Printf("Warning: could not load %s timezone, using UTC: %v", g.Timezone, err)
		loc = time.UTC
	}

	st := store.New(db, loc)
	if err := st.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	fetcher := ingest.NewOpenMeteo(ingest.OpenMeteoConfig{
		ArchiveURL:  g.ArchiveURL,
		ForecastURL: g.ForecastURL,
		Timezone:    g.Timezone,
	})
	params := seasonal.DefaultParams()
	params.Balance.DefaultETOMM = g.DefaultETO
	outlooks := outlook.New(outlook.Config{
		Store:        st,
		Fetcher:      fetcher,
		Location:     loc,
		ForecastDays: g.ForecastDays,
		CacheTTL:     g.CacheTTL,
		Params:       params,
	})

	geocoder := geocode.NewCache(geocode.NewNominatim(geocode.NominatimConfig{
		BaseURL:     g.NominatimURL,
		UserAgent:   g.UserAgent,
		CountryCode: g.CountryCode,
	}), g.GeocodeCacheSize, geocode.DefaultCacheTTL, nil)

	var extractor intent.Extractor = intent.NewKeywordRouter()
	if g.LLMAPIKey != "" {
		extractor = intent.NewLLMExtractor(intent.LLMConfig{
			APIKey:  g.LLMAPIKey,
			BaseURL: g.LLMBaseURL,
			Model:   g.LLMModel,
			Timeout: g.LLMTimeout,
		}, nil)
	} else {
		log.Println("config: no LLM API key, using keyword intent routing")
	}

	return &app{
		db:       db,
		loc:      loc,
		store:    st,
		geocoder: geocoder,
		outlooks: outlooks,
		bot: bot.New(bot.Config{
			Store:     st,
			Extractor: extractor,
			Geocoder:  geocoder,
			Outlooks:  outlooks,
			MemoryTTL: g.MemoryTTL,
		}),
	}, nil
}

func (a *app) Close() error {
	return a.db.Close()
}

type ServeCmd struct {
	Port            string        `help:"HTTP server port." default:"8080" env:"PORT"`
	NoPrewarm       bool          `help:"Disable the prewarm scheduler (server only, for local dev)."`
	PrewarmInterval time.Duration `help:"How often cached outlooks are refreshed." default:"60m" env:"PREWARM_INTERVAL"`
	PrewarmLocation []string      `help:"Places to keep warm as name:lat:lon." env:"PREWARM_LOCATIONS" sep:";"`
}

func (c *ServeCmd) Run(g *Globals) error {
	a, err := g.open()
	if err != nil {
		return err
	}
	defer a.Close()

	specs := c.PrewarmLocation
	if len(specs) == 0 {
		specs = defaultLocations
	}
	locations, err := parseLocations(specs)
	if err != nil {
		return err
	}
	for _, l := range locations {
		if err := a.store.UpsertLocation(l); err != nil {
			return fmt.Errorf("upsert location %s: %w", l.Name, err)
		}
	}
	log.Printf("locations seeded: %d", len(locations))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if !c.NoPrewarm {
		prewarmer := ingest.NewPrewarmer(a.store, a.outlooks, c.PrewarmInterval, a.loc)
		go func() {
			if err := prewarmer.Run(ctx); err != nil {
				log.Printf("scheduler: %v", err)
			}
		}()
	} else {
		log.Println("prewarm disabled (--no-prewarm)")
	}

	server := api.NewServer(api.Config{
		Store:    a.store,
		Outlooks: a.outlooks,
		Geocoder: a.geocoder,
		Bot:      a.bot,
		Port:     c.Port,
	})
	return server.Run(ctx)
}

type OutlookCmd struct {
	Place string   `help:"Place name to geocode."`
	Lat   *float64 `help:"Latitude."`
	Lon   *float64 `help:"Longitude."`
	JSON  bool     `help:"Print the forecast as JSON."`
}

func (c *OutlookCmd) Run(g *Globals) error {
	a, err := g.open()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	var lat, lon float64
	switch {
	case c.Lat != nil || c.Lon != nil:
		if c.Lat == nil || c.Lon == nil {
			return fmt.Errorf("--lat and --lon must be given together")
		}
		lat, lon = *c.Lat, *c.Lon
	case c.Place != "":
		results, err := a.geocoder.Search(ctx, c.Place)
		if err != nil {
			return fmt.Errorf("geocode %q: %w", c.Place, err)
		}
		best := results[0]
		log.Printf("outlook: %s resolved to %s (%.4f,%.4f)", c.Place, best.DisplayName, best.Latitude, best.Longitude)
		lat, lon = best.Latitude, best.Longitude
	default:
		return fmt.Errorf("either --place or --lat and --lon is required")
	}

	sf, err := a.outlooks.Outlook(ctx, lat, lon)
	if err != nil {
		return err
	}
	if c.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(sf)
	}
	fmt.Println(message.Outlook(sf))
	return nil
}

type AskCmd struct {
	User    string   `help:"User ID the conversation memory is kept under." default:"cli"`
	Lat     *float64 `help:"Shared location latitude."`
	Lon     *float64 `help:"Shared location longitude."`
	Message []string `arg:"" optional:"" help:"The question to ask."`
}

func (c *AskCmd) Run(g *Globals) error {
	a, err := g.open()
	if err != nil {
		return err
	}
	defer a.Close()

	reply, err := a.bot.Reply(context.Background(), bot.Message{
		UserID:    c.User,
		Text:      strings.Join(c.Message, " "),
		Latitude:  c.Lat,
		Longitude: c.Lon,
	})
	if err != nil {
		return err
	}
	fmt.Println(reply.Text)
	return nil
}

type MigrateCmd struct{}

func (c *MigrateCmd) Run(g *Globals) error {
	a, err := g.open()
	if err != nil {
		return err
	}
	defer a.Close()

	version, err := a.store.MigrationVersion()
	if err != nil {
		return err
	}
	log.Printf("database migrated to version %d", version)
	return nil
}

// parseLocations reads "name:lat:lon" specs.
func parseLocations(specs []string) ([]models.Location, error) {
	locations := make([]models.Location, 0, len(specs))
	for _, spec := range specs {
		parts := strings.Split(strings.TrimSpace(spec), ":")
		if len(parts) != 3 || strings.TrimSpace(parts[0]) == "" {
			return nil, fmt.Errorf("invalid location %q, want name:lat:lon", spec)
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil || lat < -90 || lat > 90 {
			return nil, fmt.Errorf("invalid latitude in %q", spec)
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
		if err != nil || lon < -180 || lon > 180 {
			return nil, fmt.Errorf("invalid longitude in %q", spec)
		}
		locations = append(locations, models.Location{
			Name:      strings.TrimSpace(parts[0]),
			Latitude:  lat,
			Longitude: lon,
			Active:    true,
		})
	}
	return locations, nil
}
