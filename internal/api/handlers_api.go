package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/lox/rainseason/internal/bot"
	"github.com/lox/rainseason/internal/geocode"
	"github.com/lox/rainseason/internal/message"
	"github.com/lox/rainseason/internal/outlook"
	"github.com/lox/rainseason/internal/seasonal"
)

const defaultHealthDays = 7

type seasonalQuery struct {
	Lat   string `validate:"required_without=Place,required_with=Lon,omitempty,latitude"`
	Lon   string `validate:"required_with=Lat,omitempty,longitude"`
	Place string `validate:"required_without=Lat,omitempty,min=2,max=100"`
}

func bindSeasonal(q url.Values) seasonalQuery {
	return seasonalQuery{Lat: q.Get("lat"), Lon: q.Get("lon"), Place: q.Get("place")}
}

type askQuery struct {
	User string `validate:"required,max=64"`
	Q    string `validate:"required_without=Lat,max=1000"`
	Lat  string `validate:"required_with=Lon,omitempty,latitude"`
	Lon  string `validate:"required_with=Lat,omitempty,longitude"`
}

func bindAsk(q url.Values) askQuery {
	return askQuery{User: q.Get("user"), Q: q.Get("q"), Lat: q.Get("lat"), Lon: q.Get("lon")}
}

type ingestHealthQuery struct {
	Days int `validate:"min=1,max=90"`
}

type SeasonalResponse struct {
	Place    *geocode.Result           `json:"place,omitempty"`
	Forecast seasonal.SeasonalForecast `json:"forecast"`
	Message  string                    `json:"message"`
}

func (s *Server) handleAPISeasonal(w http.ResponseWriter, r *http.Request) {
	req := bindSeasonal(r.URL.Query())
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var resp SeasonalResponse
	var lat, lon float64
	if req.Lat != "" {
		// Validated above.
		lat, _ = strconv.ParseFloat(req.Lat, 64)
		lon, _ = strconv.ParseFloat(req.Lon, 64)
	} else {
		if s.geocoder == nil {
			writeError(w, http.StatusNotImplemented, "place lookup is not configured")
			return
		}
		results, err := s.geocoder.Search(r.Context(), req.Place)
		if errors.Is(err, geocode.ErrNotFound) || (err == nil && len(results) == 0) {
			writeError(w, http.StatusNotFound, "place not found")
			return
		}
		if err != nil {
			log.Printf("api: geocode %q: %v", req.Place, err)
			writeError(w, http.StatusBadGateway, "geocoding failed")
			return
		}
		best := results[0]
		resp.Place = &best
		lat, lon = best.Latitude, best.Longitude
	}

	sf, err := s.outlooks.Outlook(r.Context(), lat, lon)
	if errors.Is(err, outlook.ErrInvalidCoordinates) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		log.Printf("api: outlook %.4f,%.4f: %v", lat, lon, err)
		writeError(w, http.StatusBadGateway, "outlook unavailable")
		return
	}

	resp.Forecast = sf
	resp.Message = message.Outlook(sf)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAPIAsk(w http.ResponseWriter, r *http.Request) {
	req := bindAsk(r.URL.Query())
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	msg := bot.Message{UserID: req.User, Text: req.Q}
	if req.Lat != "" {
		lat, _ := strconv.ParseFloat(req.Lat, 64)
		lon, _ := strconv.ParseFloat(req.Lon, 64)
		msg.Latitude, msg.Longitude = &lat, &lon
	}

	reply, err := s.bot.Reply(r.Context(), msg)
	if err != nil {
		log.Printf("api: ask for %s: %v", req.User, err)
		writeError(w, http.StatusInternalServerError, "reply failed")
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (s *Server) handleAPIIngestHealth(w http.ResponseWriter, r *http.Request) {
	req := ingestHealthQuery{Days: defaultHealthDays}
	if v := r.URL.Query().Get("days"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "days must be an integer")
			return
		}
		req.Days = days
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	health, err := s.store.GetIngestHealth(req.Days)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	recent, err := s.store.GetRecentIngestErrors(10)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	stats, err := s.store.GetRawPayloadStats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	errs := make([]map[string]any, 0, len(recent))
	for _, run := range recent {
		errs = append(errs, map[string]any{
			"started_at": run.StartedAt,
			"source":     run.Source,
			"endpoint":   run.Endpoint,
			"location":   run.LocationID.String,
			"error":      run.ErrorMessage.String,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"days":          req.Days,
		"summary":       health,
		"recent_errors": errs,
		"raw_payloads":  stats,
	})
}

// RawPayloadResponse is an archived upstream body with its audit metadata.
type RawPayloadResponse struct {
	ID          int64           `json:"id"`
	IngestRunID *int64          `json:"ingest_run_id,omitempty"`
	FetchedAt   time.Time       `json:"fetched_at"`
	Source      string          `json:"source"`
	Endpoint    string          `json:"endpoint"`
	Location    string          `json:"location,omitempty"`
	Hash        string          `json:"hash"`
	Payload     json.RawMessage `json:"payload"`
}

func (s *Server) handleAPIRawPayload(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 1 {
		writeError(w, http.StatusBadRequest, "id must be a positive integer")
		return
	}

	p, err := s.store.GetRawPayload(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "payload not found")
		return
	}

	resp := RawPayloadResponse{
		ID:        p.ID,
		FetchedAt: p.FetchedAt,
		Source:    p.Source,
		Endpoint:  p.Endpoint,
		Location:  p.LocationID.String,
		Hash:      p.PayloadHash,
		Payload:   p.Payload,
	}
	if p.IngestRunID.Valid {
		resp.IngestRunID = &p.IngestRunID.Int64
	}
	// Upstream bodies are archived as received; only valid JSON is inlined.
	if !json.Valid(p.Payload) {
		b, _ := json.Marshal(string(p.Payload))
		resp.Payload = b
	}
	writeJSON(w, http.StatusOK, resp)
}
