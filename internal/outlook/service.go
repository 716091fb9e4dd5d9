// Package outlook serves seasonal rainfall outlooks for a coordinate,
// fetching rainfall from upstream and caching computed results.
package outlook

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/lox/rainseason/internal/ingest"
	"github.com/lox/rainseason/internal/metrics"
	"github.com/lox/rainseason/internal/models"
	"github.com/lox/rainseason/internal/seasonal"
	"github.com/lox/rainseason/internal/store"
)

const (
	DefaultCacheTTL = 6 * time.Hour
	source          = "openmeteo"
)

var ErrInvalidCoordinates = errors.New("invalid coordinates")

// Fetcher supplies daily rainfall records. *ingest.OpenMeteo implements it.
type Fetcher interface {
	FetchHistorical(ctx context.Context, lat, lon float64, start, end time.Time) ([]seasonal.DailyRecord, string, *ingest.FetchResult, error)
	FetchForecast(ctx context.Context, lat, lon float64, days int) ([]seasonal.DailyRecord, string, *ingest.FetchResult, error)
}

type Config struct {
	Store        *store.Store
	Fetcher      Fetcher
	Location     *time.Location // decides which calendar day is "today"
	ForecastDays int
	CacheTTL     time.Duration
	Params       seasonal.Params
	Clock        clockwork.Clock
}

type Service struct {
	store        *store.Store
	fetcher      Fetcher
	loc          *time.Location
	forecastDays int
	cacheTTL     time.Duration
	params       seasonal.Params
	clock        clockwork.Clock
}

func New(cfg Config) *Service {
	s := &Service{
		store:        cfg.Store,
		fetcher:      cfg.Fetcher,
		loc:          cfg.Location,
		forecastDays: cfg.ForecastDays,
		cacheTTL:     cfg.CacheTTL,
		params:       cfg.Params,
		clock:        cfg.Clock,
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.forecastDays <= 0 {
		s.forecastDays = ingest.DefaultForecastDays
	}
	if s.cacheTTL <= 0 {
		s.cacheTTL = DefaultCacheTTL
	}
	if s.params.Balance.CapacityMM <= 0 {
		s.params = seasonal.DefaultParams()
	}
	if s.clock == nil {
		s.clock = clockwork.NewRealClock()
	}
	return s
}

// CacheKey identifies an outlook by coordinates rounded to 4 decimal places
// and the calendar day it was computed for.
func CacheKey(lat, lon float64, day time.Time) string {
	return fmt.Sprintf("%.4f,%.4f:%s", lat, lon, day.Format("2006-01-02"))
}

func locationID(lat, lon float64) string {
	return fmt.Sprintf("%.4f,%.4f", lat, lon)
}

func validate(lat, lon float64) error {
	if math.IsNaN(lat) || math.IsNaN(lon) || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return fmt.Errorf("%w: %v,%v", ErrInvalidCoordinates, lat, lon)
	}
	return nil
}

// Today is the current calendar day in the service's timezone, as a UTC midnight.
func (s *Service) Today() time.Time {
	return seasonal.Day(s.clock.Now().In(s.loc))
}

// Outlook returns today's seasonal forecast for (lat, lon), from the cache
// when a fresh entry exists.
func (s *Service) Outlook(ctx context.Context, lat, lon float64) (seasonal.SeasonalForecast, error) {
	if err := validate(lat, lon); err != nil {
		return seasonal.SeasonalForecast{}, err
	}
	today := s.Today()
	key := CacheKey(lat, lon, today)

	if sf, ok := s.cached(key); ok {
		metrics.OutlookCache.WithLabelValues("hit").Inc()
		return sf, nil
	}
	metrics.OutlookCache.WithLabelValues("miss").Inc()
	return s.compute(ctx, lat, lon, today, key)
}

// Refresh recomputes and re-caches the outlook for (lat, lon), ignoring any
// cached entry.
func (s *Service) Refresh(ctx context.Context, lat, lon float64) (seasonal.SeasonalForecast, error) {
	if err := validate(lat, lon); err != nil {
		return seasonal.SeasonalForecast{}, err
	}
	today := s.Today()
	return s.compute(ctx, lat, lon, today, CacheKey(lat, lon, today))
}

func (s *Service) cached(key string) (seasonal.SeasonalForecast, bool) {
	var sf seasonal.SeasonalForecast
	entry, err := s.store.GetCachedOutlook(key, s.clock.Now())
	if err != nil {
		log.Printf("outlook: read cache %s: %v", key, err)
		return sf, false
	}
	if entry == nil {
		return sf, false
	}
	if err := json.Unmarshal(entry.Payload, &sf); err != nil {
		log.Printf("outlook: decode cached %s: %v", key, err)
		return sf, false
	}
	return sf, true
}

func (s *Service) compute(ctx context.Context, lat, lon float64, today time.Time, key string) (seasonal.SeasonalForecast, error) {
	cal := seasonal.CalendarFor(seasonal.ClassifyRegion(lat), today)
	locID := locationID(lat, lon)

	var historical, forecast []seasonal.DailyRecord
	var histErr, fcErr error
	var g errgroup.Group

	if cal.SeasonStart.Before(today) {
		g.Go(func() error {
			historical, histErr = s.fetch(ingest.EndpointArchive, locID, func() ([]seasonal.DailyRecord, string, *ingest.FetchResult, error) {
				return s.fetcher.FetchHistorical(ctx, lat, lon, cal.SeasonStart, today.AddDate(0, 0, -1))
			})
			return nil
		})
	}
	g.Go(func() error {
		forecast, fcErr = s.fetch(ingest.EndpointForecast, locID, func() ([]seasonal.DailyRecord, string, *ingest.FetchResult, error) {
			return s.fetcher.FetchForecast(ctx, lat, lon, s.forecastDays)
		})
		return nil
	})
	g.Wait()

	if err := ctx.Err(); err != nil {
		return seasonal.SeasonalForecast{}, err
	}

	sf := seasonal.Compute(lat, lon, today, historical, forecast, s.params)
	metrics.OutlooksComputed.WithLabelValues(string(sf.Region), string(sf.SeasonType), string(sf.OnsetStatus)).Inc()

	// A partial result is still returned but not cached, so the next request retries upstream.
	if histErr != nil || fcErr != nil {
		return sf, nil
	}

	payload, err := json.Marshal(sf)
	if err != nil {
		return sf, fmt.Errorf("encode outlook: %w", err)
	}
	now := s.clock.Now()
	err = s.store.PutCachedOutlook(models.CachedOutlook{
		CacheKey:   key,
		Latitude:   lat,
		Longitude:  lon,
		ForDate:    today,
		Payload:    payload,
		ComputedAt: now,
		ExpiresAt:  now.Add(s.cacheTTL),
	})
	if err != nil {
		log.Printf("outlook: cache %s: %v", key, err)
	}
	return sf, nil
}

// fetch runs one upstream call and records it in the ingest audit along
// with its raw body. Failures are logged and returned so the caller can
// degrade to an empty series.
func (s *Service) fetch(endpoint, locID string, call func() ([]seasonal.DailyRecord, string, *ingest.FetchResult, error)) ([]seasonal.DailyRecord, error) {
	run, err := s.store.StartIngestRun(source, endpoint, &locID)
	if err != nil {
		log.Printf("outlook: start ingest run: %v", err)
	}

	records, rawBody, fetchResult, err := call()

	if run != nil {
		run.Success = err == nil
		if fetchResult != nil {
			run.HTTPStatus = sql.NullInt64{Int64: int64(fetchResult.HTTPStatus), Valid: fetchResult.HTTPStatus > 0}
			run.ResponseSizeBytes = sql.NullInt64{Int64: int64(fetchResult.ResponseSize), Valid: fetchResult.ResponseSize > 0}
			run.RecordsParsed = sql.NullInt64{Int64: int64(fetchResult.RecordCount), Valid: true}
			run.RecordsFlagged = sql.NullInt64{Int64: int64(fetchResult.Flagged), Valid: true}
			if fetchResult.ParseErrors > 0 {
				run.ParseErrors = sql.NullInt64{Int64: int64(fetchResult.ParseErrors), Valid: true}
				run.ErrorMessage = sql.NullString{String: fetchResult.ParseError, Valid: true}
				log.Printf("outlook: %s %s parse errors: %s", endpoint, locID, fetchResult.ParseError)
			}
		}
		if err != nil {
			run.ErrorMessage = sql.NullString{String: err.Error(), Valid: true}
		}
	}

	if len(rawBody) > 0 && run != nil {
		if _, err := s.store.StoreRawPayload(&run.ID, source, endpoint, &locID, []byte(rawBody)); err != nil {
			log.Printf("outlook: store raw payload %s: %v", locID, err)
		}
	}

	if run != nil {
		if err := s.store.CompleteIngestRun(run); err != nil {
			log.Printf("outlook: complete ingest run: %v", err)
		}
	}

	if err != nil {
		log.Printf("outlook: fetch %s %s: %v", endpoint, locID, err)
		return nil, err
	}
	return records, nil
}
