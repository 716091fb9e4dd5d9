package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lox/rainseason/internal/bot"
	"github.com/lox/rainseason/internal/geocode"
	"github.com/lox/rainseason/internal/seasonal"
	"github.com/lox/rainseason/internal/store"
)

var validate = validator.New()

// Outlooks serves seasonal forecasts. *outlook.Service implements it.
type Outlooks interface {
	Outlook(ctx context.Context, lat, lon float64) (seasonal.SeasonalForecast, error)
	Today() time.Time
}

type Config struct {
	Store    *store.Store
	Outlooks Outlooks
	Geocoder geocode.Geocoder
	Bot      *bot.Bot
	Port     string
}

type Server struct {
	store    *store.Store
	outlooks Outlooks
	geocoder geocode.Geocoder
	bot      *bot.Bot
	port     string
}

func NewServer(cfg Config) *Server {
	return &Server{
		store:    cfg.Store,
		outlooks: cfg.Outlooks,
		geocoder: cfg.Geocoder,
		bot:      cfg.Bot,
		port:     cfg.Port,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /api/seasonal", s.handleAPISeasonal)
	mux.HandleFunc("GET /api/ask", s.handleAPIAsk)
	mux.HandleFunc("GET /api/ingest/health", s.handleAPIIngestHealth)
	mux.HandleFunc("GET /api/ingest/payloads/{id}", s.handleAPIRawPayload)
	return mux
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              ":" + s.port,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// Outlooks on a cold cache wait on two upstream fetches.
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	log.Printf("api: listening on :%s", s.port)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

type HealthStatus struct {
	Status           string   `json:"status"`
	MigrationVersion int      `json:"migration_version"`
	Locations        int      `json:"prewarm_locations"`
	Errors           []string `json:"errors,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := HealthStatus{Status: "ok"}

	version, err := s.store.MigrationVersion()
	if err != nil {
		health.Errors = append(health.Errors, "migrations: "+err.Error())
	}
	health.MigrationVersion = version

	locations, err := s.store.GetActiveLocations()
	if err != nil {
		health.Errors = append(health.Errors, "locations: "+err.Error())
	}
	health.Locations = len(locations)

	status := http.StatusOK
	if len(health.Errors) > 0 {
		health.Status = "error"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
