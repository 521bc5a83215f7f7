package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultBaseURL = "https://restapi.amap.com/v3/weather/weatherInfo"
	userAgent      = "skycast/0.1"
)

// Live is one current-conditions report from the upstream source.
type Live struct {
	Province      string `json:"province"`
	City          string `json:"city"`
	Adcode        string `json:"adcode"`
	Weather       string `json:"weather"`
	Temperature   string `json:"temperature"`
	WindDirection string `json:"winddirection"`
	WindPower     string `json:"windpower"`
	Humidity      string `json:"humidity"`
	ReportTime    string `json:"reporttime"`
}

// DayForecast is one day of a forecast.
type DayForecast struct {
	Date         string `json:"date"`
	DayWeather   string `json:"dayweather"`
	NightWeather string `json:"nightweather"`
	DayTemp      string `json:"daytemp"`
	NightTemp    string `json:"nighttemp"`
	DayWind      string `json:"daywind"`
	NightWind    string `json:"nightwind"`
	DayPower     string `json:"daypower"`
	NightPower   string `json:"nightpower"`
}

// Forecast is a multi-day forecast for one city.
type Forecast struct {
	City  string        `json:"city"`
	Casts []DayForecast `json:"casts"`
}

type liveResponse struct {
	Status   string `json:"status"`
	Count    string `json:"count"`
	Info     string `json:"info"`
	Infocode string `json:"infocode"`
	Lives    []Live `json:"lives"`
}

type forecastResponse struct {
	Status    string     `json:"status"`
	Count     string     `json:"count"`
	Info      string     `json:"info"`
	Infocode  string     `json:"infocode"`
	Forecasts []Forecast `json:"forecasts"`
}

// StatusError reports a non-OK HTTP status from the upstream source.
type StatusError struct {
	URL        string
	StatusCode int
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("request to %s returned status %d", e.URL, e.StatusCode)
}

// APIError reports an upstream response whose payload flags a failure.
type APIError struct {
	Info     string
	Infocode string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("upstream rejected request: %s (code %s)", e.Info, e.Infocode)
}

// Config holds weather client configuration.
type Config struct {
	Key     string
	BaseURL string
	Timeout time.Duration
	Logger  zerolog.Logger
}

// Client looks up weather data from the Amap weather REST API. It is
// safe for concurrent use; the underlying http.Client pools connections.
type Client struct {
	http    *http.Client
	key     string
	baseURL string
	logger  zerolog.Logger
}

// NewClient creates a weather client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Key == "" {
		return nil, fmt.Errorf("weather API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	return &Client{
		http:    &http.Client{Timeout: cfg.Timeout},
		key:     cfg.Key,
		baseURL: cfg.BaseURL,
		logger:  cfg.Logger,
	}, nil
}

// Live fetches current conditions for a city code.
func (c *Client) Live(ctx context.Context, city string) ([]Live, error) {
	var resp liveResponse
	if err := c.get(ctx, c.queryURL(city, false), &resp); err != nil {
		return nil, err
	}
	if resp.Status != "1" {
		return nil, &APIError{Info: resp.Info, Infocode: resp.Infocode}
	}
	return resp.Lives, nil
}

// Forecast fetches the multi-day forecast for a city code.
func (c *Client) Forecast(ctx context.Context, city string) ([]Forecast, error) {
	var resp forecastResponse
	if err := c.get(ctx, c.queryURL(city, true), &resp); err != nil {
		return nil, err
	}
	if resp.Status != "1" {
		return nil, &APIError{Info: resp.Info, Infocode: resp.Infocode}
	}
	return resp.Forecasts, nil
}

func (c *Client) queryURL(city string, extended bool) string {
	query := url.Values{}
	query.Set("key", c.key)
	query.Set("city", city)
	query.Set("output", "json")
	if extended {
		query.Set("extensions", "all")
	}
	return c.baseURL + "?" + query.Encode()
}

// redactedURL masks the API key before the URL reaches a log line.
func redactedURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "[unparseable url]"
	}
	query := u.Query()
	if query.Has("key") {
		query.Set("key", "[REDACTED]")
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *Client) get(ctx context.Context, rawURL string, out interface{}) error {
	c.logger.Debug().Str("url", redactedURL(rawURL)).Msg("Requesting weather data")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build request to %s: %w", rawURL, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request to %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse response from %s: %w", rawURL, err)
	}
	return nil
}
