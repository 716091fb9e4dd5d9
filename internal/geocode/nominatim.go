// Package geocode resolves Ghanaian place names to coordinates using
// OpenStreetMap Nominatim.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/lox/rainseason/internal/httputil"
	"github.com/lox/rainseason/internal/metrics"
)

const (
	DefaultBaseURL     = "https://nominatim.openstreetmap.org"
	DefaultCountryCode = "gh"
	// Nominatim's usage policy allows one request per second.
	DefaultMinInterval = time.Second
	searchLimit        = 5
)

var ErrNotFound = errors.New("location not found")

// Result is one geocoding candidate.
type Result struct {
	PlaceName   string  `json:"place_name"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Confidence  float64 `json:"confidence"`
	PlaceType   string  `json:"place_type"`
	DisplayName string  `json:"display_name"`
	Query       string  `json:"query"`
}

// Region returns the administrative context from the display name, e.g.
// "Tamale Metropolitan District, Northern Region" for a Tamale hit.
func (r Result) Region() string {
	parts := strings.Split(r.DisplayName, ", ")
	switch {
	case len(parts) > 2:
		return strings.Join(parts[1:3], ", ")
	case len(parts) == 2:
		return parts[1]
	}
	return ""
}

// Geocoder turns place names into candidates and coordinates into names.
type Geocoder interface {
	Search(ctx context.Context, query string) ([]Result, error)
	Reverse(ctx context.Context, lat, lon float64) (string, error)
}

type NominatimConfig struct {
	BaseURL     string
	UserAgent   string
	CountryCode string
	Client      *http.Client
	MinInterval time.Duration
	// MaxElapsedTime bounds retries of transient failures.
	MaxElapsedTime time.Duration
}

type Nominatim struct {
	baseURL        string
	userAgent      string
	countryCode    string
	client         *http.Client
	maxElapsedTime time.Duration
	limiter        *rate.Limiter
}

func NewNominatim(cfg NominatimConfig) *Nominatim {
	n := &Nominatim{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		userAgent:      cfg.UserAgent,
		countryCode:    cfg.CountryCode,
		client:         cfg.Client,
		maxElapsedTime: cfg.MaxElapsedTime,
	}
	if n.baseURL == "" {
		n.baseURL = DefaultBaseURL
	}
	if n.userAgent == "" {
		n.userAgent = httputil.UserAgent
	}
	if n.client == nil {
		n.client = httputil.NewClientWithTimeout(10 * time.Second)
	}
	if n.maxElapsedTime <= 0 {
		n.maxElapsedTime = 10 * time.Second
	}
	minInterval := cfg.MinInterval
	if minInterval <= 0 {
		minInterval = DefaultMinInterval
	}
	n.limiter = rate.NewLimiter(rate.Every(minInterval), 1)
	return n
}

type searchHit struct {
	Lat         string            `json:"lat"`
	Lon         string            `json:"lon"`
	Name        string            `json:"name"`
	DisplayName string            `json:"display_name"`
	Type        string            `json:"type"`
	Class       string            `json:"class"`
	Importance  float64           `json:"importance"`
	BoundingBox []string          `json:"boundingbox"`
	Address     map[string]string `json:"address"`
}

// Search returns candidates for query, best first. Results are biased to
// the configured country; when that finds nothing the search is repeated
// without the bias. ErrNotFound is returned when nothing matches.
func (n *Nominatim) Search(ctx context.Context, query string) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrNotFound
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("limit", strconv.Itoa(searchLimit))
	params.Set("addressdetails", "1")

	var hits []searchHit
	if n.countryCode != "" {
		biased := url.Values{}
		for k, v := range params {
			biased[k] = v
		}
		biased.Set("countrycodes", n.countryCode)
		if err := n.get(ctx, "search", biased, &hits); err != nil {
			return nil, err
		}
	}
	if len(hits) == 0 {
		if err := n.get(ctx, "search", params, &hits); err != nil {
			return nil, err
		}
	}

	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		lat, err1 := strconv.ParseFloat(h.Lat, 64)
		lon, err2 := strconv.ParseFloat(h.Lon, 64)
		if err1 != nil || err2 != nil {
			continue
		}
		name := firstNonEmpty(h.Address["village"], h.Address["town"], h.Address["city"],
			h.Address["municipality"], h.Address["suburb"], h.Name, query)
		results = append(results, Result{
			PlaceName:   name,
			Latitude:    lat,
			Longitude:   lon,
			Confidence:  Confidence(h.Importance, h.BoundingBox, h.Type, h.Class),
			PlaceType:   h.Type,
			DisplayName: firstNonEmpty(h.DisplayName, name),
			Query:       query,
		})
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, query)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Confidence > results[j].Confidence
	})
	return results, nil
}

type reverseResponse struct {
	DisplayName string            `json:"display_name"`
	Address     map[string]string `json:"address"`
	Error       string            `json:"error"`
}

// Reverse names the place at (lat, lon), qualified by its region or country.
func (n *Nominatim) Reverse(ctx context.Context, lat, lon float64) (string, error) {
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(lat, 'f', 6, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', 6, 64))
	params.Set("format", "json")
	params.Set("addressdetails", "1")

	var resp reverseResponse
	if err := n.get(ctx, "reverse", params, &resp); err != nil {
		return "", err
	}
	if resp.Error != "" {
		return "", fmt.Errorf("%w: %s", ErrNotFound, resp.Error)
	}

	a := resp.Address
	name := firstNonEmpty(a["village"], a["town"], a["city"], a["suburb"], a["municipality"], a["state"],
		strings.TrimSpace(strings.Split(resp.DisplayName, ",")[0]))
	if name == "" {
		return "", ErrNotFound
	}
	region := firstNonEmpty(a["state"], a["region"])
	switch {
	case region != "" && region != name:
		name += ", " + region
	case a["country"] != "":
		name += ", " + a["country"]
	}
	return name, nil
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("nominatim status %d", e.code)
}

func (n *Nominatim) get(ctx context.Context, endpoint string, params url.Values, into any) error {
	reqURL := n.baseURL + "/" + endpoint + "?" + params.Encode()
	started := time.Now()

	operation := func() error {
		if err := n.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		req, err := httputil.NewGet(ctx, reqURL, n.userAgent)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := n.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			se := &statusError{code: resp.StatusCode}
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return se
			}
			return backoff.Permanent(se)
		}
		if err := json.Unmarshal(body, into); err != nil {
			return backoff.Permanent(fmt.Errorf("unmarshal %s: %w", endpoint, err))
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 250 * time.Millisecond
	bo.MaxElapsedTime = n.maxElapsedTime
	err := backoff.Retry(operation, backoff.WithContext(bo, ctx))

	metrics.UpstreamLatency.WithLabelValues("nominatim", endpoint).Observe(time.Since(started).Seconds())
	if err != nil {
		metrics.UpstreamCallsTotal.WithLabelValues("nominatim", endpoint, "error").Inc()
		return fmt.Errorf("nominatim %s: %w", endpoint, err)
	}
	metrics.UpstreamCallsTotal.WithLabelValues("nominatim", endpoint, "ok").Inc()
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
