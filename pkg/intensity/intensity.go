// Package intensity resolves the regional carbon intensity of the UK grid in
// effect at job submission times, from the carbonintensity.org.uk API.
package intensity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

const (
	apiBaseURL = "https://api.carbonintensity.org.uk"
	apiPath    = "%s/regional/intensity/%s/%s/regionid/%d"
	// Timestamps in API requests and responses, always UTC
	apiTimeLayout = "2006-01-02T15:04Z"

	requestTimeout = 10 * time.Second
)

// UKAverageGms is the average carbon intensity of UK electricity in
// gCO2e/kWh (2024). Used for every job when no region is configured and as
// the fallback when a regional lookup fails.
const UKAverageGms = 124.0

// Europe/London anchors the half-hour settlement windows of the intensity
// data, so calendar grouping uses it rather than UTC.
var london = func() *time.Location {
	if loc, err := time.LoadLocation("Europe/London"); err == nil {
		return loc
	}

	return time.Local
}()

// LocalDate returns the grid-local midnight of the calendar day t falls on.
func LocalDate(t time.Time) time.Time {
	year, month, day := t.In(london).Date()

	return time.Date(year, month, day, 0, 0, 0, 0, london)
}

// Sample is one half-hour settlement window of regional intensity. Samples
// are immutable once fetched.
type Sample struct {
	From      time.Time
	To        time.Time
	GmsPerKWh float64
}

// Value is the intensity resolved for one job.
type Value struct {
	GmsPerKWh float64
	// Fixed is true when the value is the fixed UK average rather than a
	// time-matched regional sample.
	Fixed bool
}

// Resolver fetches and caches regional intensity samples. Lookups are
// batched by calendar day so the number of remote calls is bounded by the
// number of distinct days in the range, not the number of jobs. The cache is
// scoped to the resolver and never outlives a run.
type Resolver struct {
	logger *slog.Logger
	region Region
	cache  *ttlcache.Cache[string, []Sample]

	// Overridable for tests
	fetch func(ctx context.Context, from, to time.Time) ([]Sample, error)
}

// NewResolver returns a run-scoped Resolver for the given region.
func NewResolver(logger *slog.Logger, region Region) *Resolver {
	r := &Resolver{
		logger: logger,
		region: region,
		cache:  ttlcache.New(ttlcache.WithTTL[string, []Sample](ttlcache.NoTTL)),
	}
	r.fetch = r.fetchWindows

	return r
}

// Intensities resolves the intensity in effect at each of the given times.
// The returned slice is index-aligned with times. A remote failure for one
// day degrades that day to the fixed average with a warning instead of
// aborting the run.
func (r *Resolver) Intensities(ctx context.Context, times []time.Time) []Value {
	values := make([]Value, len(times))

	// Without a region there is nothing to look up
	if r.region.IsAverage() {
		for i := range values {
			values[i] = Value{GmsPerKWh: UKAverageGms, Fixed: true}
		}

		return values
	}

	// Batch lookups by calendar day and fetch in date order
	byDay := make(map[string][]int)

	days := make(map[string]time.Time)

	for i, t := range times {
		day := LocalDate(t)
		key := day.Format(time.DateOnly)
		byDay[key] = append(byDay[key], i)
		days[key] = day
	}

	keys := make([]string, 0, len(byDay))
	for key := range byDay {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	for _, key := range keys {
		samples := r.daySamples(ctx, key, days[key])

		for _, i := range byDay[key] {
			values[i] = match(samples, times[i])
		}
	}

	return values
}

// daySamples returns the cached samples for one day, fetching them on first
// use. Failed days are cached as nil so a day is never fetched twice.
func (r *Resolver) daySamples(ctx context.Context, key string, day time.Time) []Sample {
	if item := r.cache.Get(key); item != nil {
		return item.Value()
	}

	samples, err := r.fetch(ctx, day, day.Add(24*time.Hour))
	if err != nil {
		r.logger.Warn(
			"Failed to fetch regional carbon intensity, using UK average for this day",
			"region", r.region.String(), "day", key, "fallback", UKAverageGms, "err", err,
		)

		samples = nil
	}

	r.cache.Set(key, samples, ttlcache.DefaultTTL)

	return samples
}

// match finds the sample whose settlement window contains t.
func match(samples []Sample, t time.Time) Value {
	for _, s := range samples {
		if !t.Before(s.From) && t.Before(s.To) {
			return Value{GmsPerKWh: s.GmsPerKWh}
		}
	}

	return Value{GmsPerKWh: UKAverageGms, Fixed: true}
}

// baseURL allows tests to point the resolver at a mock server.
func baseURL() string {
	if u, present := os.LookupEnv("__CI_API_BASE_URL"); present {
		return u
	}

	return apiBaseURL
}

// API response signature of the regional intensity endpoint.
type regionalResponse struct {
	Data struct {
		RegionID  int    `json:"regionid"`
		ShortName string `json:"shortname"`
		Data      []struct {
			From      string `json:"from"`
			To        string `json:"to"`
			Intensity struct {
				Forecast float64 `json:"forecast"`
				Index    string  `json:"index"`
			} `json:"intensity"`
		} `json:"data"`
	} `json:"data"`
}

// fetchWindows requests all settlement windows between from and to for the
// resolver's region.
func (r *Resolver) fetchWindows(ctx context.Context, from, to time.Time) ([]Sample, error) {
	// Short timeout so one unreachable day cannot stall the whole run
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	url := fmt.Sprintf(
		apiPath, baseURL(), from.UTC().Format(apiTimeLayout), to.UTC().Format(apiTimeLayout), r.region.id,
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request for url %s: %w", url, err)
	}

	req.Header.Add("Accept", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make HTTP request for url %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("carbon intensity API returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read HTTP response body for url %s: %w", url, err)
	}

	var data regionalResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal HTTP response body for url %s: %w", url, err)
	}

	samples := make([]Sample, 0, len(data.Data.Data))

	for _, w := range data.Data.Data {
		fromTS, err := time.Parse(apiTimeLayout, w.From)
		if err != nil {
			continue
		}

		toTS, err := time.Parse(apiTimeLayout, w.To)
		if err != nil {
			continue
		}

		samples = append(samples, Sample{From: fromTS, To: toTS, GmsPerKWh: w.Intensity.Forecast})
	}

	return samples, nil
}
