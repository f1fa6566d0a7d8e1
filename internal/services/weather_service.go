package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/gitfolio/backend/internal/geo"
	"github.com/gitfolio/backend/internal/models"
)

// RegionWeatherClient is the domestic provider, keyed by region code.
// A nil report with a nil error means the provider had no data.
type RegionWeatherClient interface {
	Fetch(ctx context.Context, regionCode string) (*models.WeatherReport, error)
}

// GeoWeatherClient is the generic geocoded provider, keyed by a freeform
// location string.
type GeoWeatherClient interface {
	Fetch(ctx context.Context, location string) (*models.WeatherReport, error)
}

// WeatherService walks the fallback chain: domestic cities try the
// region-code primary, everything else (and every primary failure) tries
// the geocoded secondary, and when both are exhausted a static default is
// returned tagged source "fallback". Fetch never fails.
type WeatherService struct {
	regions   *geo.RegionTable
	primary   RegionWeatherClient
	secondary GeoWeatherClient
	logger    *zap.Logger
}

func NewWeatherService(regions *geo.RegionTable, primary RegionWeatherClient, secondary GeoWeatherClient, logger *zap.Logger) *WeatherService {
	return &WeatherService{
		regions:   regions,
		primary:   primary,
		secondary: secondary,
		logger:    logger,
	}
}

func (s *WeatherService) Fetch(ctx context.Context, city string) *models.WeatherReport {
	if code, ok := s.regions.Lookup(city); ok && s.primary != nil {
		report, err := s.primary.Fetch(ctx, code)
		if err == nil && report != nil {
			report.Location = city
			report.Source = models.SourcePrimary
			return report
		}
		if err != nil {
			s.logger.Warn("primary weather provider failed", zap.String("city", city), zap.Error(err))
		}
	}

	if city != "" && s.secondary != nil {
		report, err := s.secondary.Fetch(ctx, city)
		if err == nil && report != nil {
			report.Location = city
			report.Source = models.SourceSecondary
			return report
		}
		if err != nil {
			s.logger.Warn("secondary weather provider failed", zap.String("city", city), zap.Error(err))
		}
	}

	return defaultWeather(city)
}

// defaultWeather is the static tertiary artifact served when every upstream
// is exhausted.
func defaultWeather(city string) *models.WeatherReport {
	return &models.WeatherReport{
		Location:    city,
		Temperature: 20,
		Humidity:    50,
		Description: "Clear sky",
		Source:      models.SourceFallback,
	}
}

// HTTPRegionWeatherClient queries the domestic provider's REST endpoint.
type HTTPRegionWeatherClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPRegionWeatherClient(baseURL, apiKey string) *HTTPRegionWeatherClient {
	return &HTTPRegionWeatherClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *HTTPRegionWeatherClient) Fetch(ctx context.Context, regionCode string) (*models.WeatherReport, error) {
	u := fmt.Sprintf("%s/current?region=%s&key=%s", c.baseURL, url.QueryEscape(regionCode), url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var payload struct {
		Temperature *float64 `json:"temperature"`
		Humidity    int      `json:"humidity"`
		Description string   `json:"description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if payload.Temperature == nil {
		// Provider answered but has no observation for this region.
		return nil, nil
	}

	return &models.WeatherReport{
		Temperature: *payload.Temperature,
		Humidity:    payload.Humidity,
		Description: payload.Description,
	}, nil
}

// HTTPGeoWeatherClient queries the geocoded provider with a freeform
// location string.
type HTTPGeoWeatherClient struct {
	baseURL string
	client  *http.Client
}

func NewHTTPGeoWeatherClient(baseURL string) *HTTPGeoWeatherClient {
	return &HTTPGeoWeatherClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *HTTPGeoWeatherClient) Fetch(ctx context.Context, location string) (*models.WeatherReport, error) {
	u := fmt.Sprintf("%s/current?location=%s", c.baseURL, url.QueryEscape(location))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var payload struct {
		Temperature float64 `json:"temperature"`
		Humidity    int     `json:"humidity"`
		Description string  `json:"description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &models.WeatherReport{
		Temperature: payload.Temperature,
		Humidity:    payload.Humidity,
		Description: payload.Description,
	}, nil
}
