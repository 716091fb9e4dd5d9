package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/lox/rainseason/internal/httputil"
	"github.com/lox/rainseason/internal/metrics"
	"github.com/lox/rainseason/internal/seasonal"
)

const (
	DefaultArchiveURL   = "https://archive-api.open-meteo.com/v1/archive"
	DefaultForecastURL  = "https://api.open-meteo.com/v1/forecast"
	DefaultTimezone     = "Africa/Accra"
	DefaultForecastDays = 16

	dailyVariables = "precipitation_sum,et0_fao_evapotranspiration"
)

const (
	EndpointArchive  = "archive"
	EndpointForecast = "forecast"
)

// ErrCircuitOpen is returned while an upstream's breaker is refusing calls.
var ErrCircuitOpen = errors.New("circuit breaker open")

// FetchResult describes a single upstream call for the ingest audit.
type FetchResult struct {
	HTTPStatus   int
	ResponseSize int
	RecordCount  int
	Flagged      int // records with quality flags
	Dropped      int // days with null precipitation, left out of the series
	ParseErrors  int
	ParseError   string
	Error        error
}

// OpenMeteoConfig configures the Open-Meteo rainfall client. Zero values
// fall back to the public endpoints.
type OpenMeteoConfig struct {
	ArchiveURL      string
	ForecastURL     string
	Timezone        string
	Client          *http.Client
	InitialInterval time.Duration
	MaxElapsedTime  time.Duration
}

// OpenMeteo fetches daily precipitation and reference evapotranspiration
// from the Open-Meteo archive and forecast APIs.
type OpenMeteo struct {
	client          *http.Client
	archiveURL      string
	forecastURL     string
	timezone        string
	initialInterval time.Duration
	maxElapsedTime  time.Duration
	breakers        map[string]*gobreaker.CircuitBreaker
}

func NewOpenMeteo(cfg OpenMeteoConfig) *OpenMeteo {
	o := &OpenMeteo{
		client:          cfg.Client,
		archiveURL:      cfg.ArchiveURL,
		forecastURL:     cfg.ForecastURL,
		timezone:        cfg.Timezone,
		initialInterval: cfg.InitialInterval,
		maxElapsedTime:  cfg.MaxElapsedTime,
		breakers:        make(map[string]*gobreaker.CircuitBreaker),
	}
	if o.client == nil {
		o.client = httputil.NewClient()
	}
	if o.archiveURL == "" {
		o.archiveURL = DefaultArchiveURL
	}
	if o.forecastURL == "" {
		o.forecastURL = DefaultForecastURL
	}
	if o.timezone == "" {
		o.timezone = DefaultTimezone
	}
	if o.initialInterval <= 0 {
		o.initialInterval = 500 * time.Millisecond
	}
	if o.maxElapsedTime <= 0 {
		o.maxElapsedTime = 30 * time.Second
	}
	for _, endpoint := range []string{EndpointArchive, EndpointForecast} {
		o.breakers[endpoint] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "openmeteo-" + endpoint,
			MaxRequests: 5,
			Interval:    1 * time.Minute,
			Timeout:     2 * time.Minute,
			IsSuccessful: func(err error) bool {
				// 4xx other than 429 do not count against the upstream.
				var se *statusError
				return err == nil || (errors.As(err, &se) && se.code < 500 && se.code != http.StatusTooManyRequests)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Printf("openmeteo: breaker %s %s -> %s", name, from, to)
			},
		})
	}
	return o
}

type dailyResponse struct {
	Daily struct {
		Time          []string   `json:"time"`
		Precipitation []*float64 `json:"precipitation_sum"`
		ETO           []*float64 `json:"et0_fao_evapotranspiration"`
	} `json:"daily"`
	Error  bool   `json:"error"`
	Reason string `json:"reason"`
}

// FetchHistorical returns observed daily records for [start, end].
func (o *OpenMeteo) FetchHistorical(ctx context.Context, lat, lon float64, start, end time.Time) ([]seasonal.DailyRecord, string, *FetchResult, error) {
	params := o.baseParams(lat, lon)
	params.Set("start_date", start.Format("2006-01-02"))
	params.Set("end_date", end.Format("2006-01-02"))
	return o.fetch(ctx, EndpointArchive, o.archiveURL+"?"+params.Encode())
}

// FetchForecast returns forecast daily records from today for up to days days.
func (o *OpenMeteo) FetchForecast(ctx context.Context, lat, lon float64, days int) ([]seasonal.DailyRecord, string, *FetchResult, error) {
	if days <= 0 {
		days = DefaultForecastDays
	}
	params := o.baseParams(lat, lon)
	params.Set("forecast_days", strconv.Itoa(days))
	return o.fetch(ctx, EndpointForecast, o.forecastURL+"?"+params.Encode())
}

func (o *OpenMeteo) baseParams(lat, lon float64) url.Values {
	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(lat, 'f', 4, 64))
	params.Set("longitude", strconv.FormatFloat(lon, 'f', 4, 64))
	params.Set("daily", dailyVariables)
	params.Set("timezone", o.timezone)
	return params
}

const maxErrorBodyLen = 512

// truncateBody limits an upstream error body for logs and audit rows.
func truncateBody(b []byte) string {
	if len(b) <= maxErrorBodyLen {
		return string(b)
	}
	return string(b[:maxErrorBodyLen]) + "...(truncated)"
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.code, e.body)
}

func (o *OpenMeteo) fetch(ctx context.Context, endpoint, reqURL string) ([]seasonal.DailyRecord, string, *FetchResult, error) {
	result := &FetchResult{}
	cb := o.breakers[endpoint]
	started := time.Now()

	var body []byte
	operation := func() error {
		_, err := cb.Execute(func() (interface{}, error) {
			req, err := httputil.NewGet(ctx, reqURL, "")
			if err != nil {
				return nil, err
			}
			resp, err := o.client.Do(req)
			if err != nil {
				return nil, err
			}
			defer resp.Body.Close()

			result.HTTPStatus = resp.StatusCode
			b, err := io.ReadAll(resp.Body)
			if err != nil {
				return nil, fmt.Errorf("read body: %w", err)
			}
			result.ResponseSize = len(b)
			if resp.StatusCode != http.StatusOK {
				return nil, &statusError{code: resp.StatusCode, body: truncateBody(b)}
			}
			body = b
			return nil, nil
		})
		if err == nil {
			return nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return backoff.Permanent(fmt.Errorf("%w: %v", ErrCircuitOpen, err))
		}
		var se *statusError
		if errors.As(err, &se) && se.code != http.StatusTooManyRequests && se.code < 500 {
			return backoff.Permanent(err)
		}
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = o.initialInterval
	bo.MaxElapsedTime = o.maxElapsedTime
	err := backoff.Retry(operation, backoff.WithContext(bo, ctx))
	metrics.UpstreamLatency.WithLabelValues("openmeteo", endpoint).Observe(time.Since(started).Seconds())
	if err != nil {
		metrics.UpstreamCallsTotal.WithLabelValues("openmeteo", endpoint, "error").Inc()
		result.Error = fmt.Errorf("fetch %s: %w", endpoint, err)
		return nil, "", result, result.Error
	}
	metrics.UpstreamCallsTotal.WithLabelValues("openmeteo", endpoint, "ok").Inc()

	records, err := parseDaily(body, result)
	if err != nil {
		result.Error = err
		return nil, string(body), result, err
	}
	metrics.RecordsIngested.WithLabelValues(endpoint).Add(float64(len(records)))
	return records, string(body), result, nil
}

// parseDaily converts an Open-Meteo daily block into records. Days with an
// unparseable date are skipped and counted. Days with null precipitation are
// flagged and dropped: the archive reports its unpublished trailing days as
// null, and a zero there would read as a dry day. A null ETO is left unset.
func parseDaily(body []byte, result *FetchResult) ([]seasonal.DailyRecord, error) {
	var data dailyResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	if data.Error {
		return nil, fmt.Errorf("open-meteo error: %s", data.Reason)
	}

	var parseErrors []string
	records := make([]seasonal.DailyRecord, 0, len(data.Daily.Time))
	for i, ts := range data.Daily.Time {
		day, err := time.Parse("2006-01-02", ts)
		if err != nil {
			parseErrors = append(parseErrors, fmt.Sprintf("time[%d]=%q: %v", i, ts, err))
			continue
		}

		rec := seasonal.DailyRecord{Date: day}
		var precipMissing bool
		if i < len(data.Daily.Precipitation) && data.Daily.Precipitation[i] != nil {
			rec.PrecipitationMM = *data.Daily.Precipitation[i]
		} else {
			precipMissing = true
		}
		if i < len(data.Daily.ETO) && data.Daily.ETO[i] != nil {
			v := *data.Daily.ETO[i]
			rec.ETOMM = &v
		}

		if flags := ValidateRecord(rec, precipMissing); len(flags) > 0 {
			result.Flagged++
			if precipMissing {
				result.Dropped++
				continue
			}
			rec = Sanitize(rec, flags)
		}
		records = append(records, rec)
	}

	result.RecordCount = len(records)
	if len(parseErrors) > 0 {
		result.ParseErrors = len(parseErrors)
		result.ParseError = fmt.Sprintf("%d parse errors: %v", len(parseErrors), parseErrors[0])
	}
	return records, nil
}
