// Package weather provides the Open-Meteo weather lookup tool.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tiempoactualizado/mail-assistant/internal/tools"
	"github.com/tiempoactualizado/mail-assistant/pkg/logger"
)

// ToolName is the registered name of the weather tool.
const ToolName = "get_weather"

const (
	defaultBaseURL = "https://api.open-meteo.com"
	defaultTimeout = 10 * time.Second
)

// Config holds configuration for the weather tool.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Logger  logger.Logger
}

// forecastResponse is the subset of the Open-Meteo forecast payload we read.
type forecastResponse struct {
	Current struct {
		Temperature float64 `json:"temperature_2m"`
		WindSpeed   float64 `json:"wind_speed_10m"`
	} `json:"current"`
}

// forecastClient handles the HTTP communication with Open-Meteo.
type forecastClient struct {
	baseURL string
	timeout time.Duration
	log     logger.Logger
}

// New creates the weather tool. Any transport or parse failure is folded
// into the returned text so a broken upstream never fails the turn.
func New(cfg Config) (tools.Tool, error) {
	if cfg.Logger == nil {
		return tools.Tool{}, fmt.Errorf("logger is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}

	client := &forecastClient{
		baseURL: cfg.BaseURL,
		timeout: cfg.Timeout,
		log:     cfg.Logger,
	}

	return tools.Tool{
		Name:        ToolName,
		Description: "Obtiene el clima actual para unas coordenadas dadas.",
		Parameters: []tools.Parameter{
			{Name: "latitude", Type: "number", Description: "Latitud de la ubicación", Required: true},
			{Name: "longitude", Type: "number", Description: "Longitud de la ubicación", Required: true},
		},
		Handler: client.currentWeather,
	}, nil
}

func (c *forecastClient) currentWeather(ctx context.Context, args map[string]any) string {
	latitude := toFloat(args["latitude"])
	longitude := toFloat(args["longitude"])

	forecast, err := c.fetchForecast(ctx, latitude, longitude)
	if err != nil {
		c.log.Warn("Weather lookup failed",
			logger.ErrorField(err))
		return fmt.Sprintf("Error al obtener el clima: %v", err)
	}

	return fmt.Sprintf("La temperatura actual es de %s°C con un viento de %s km/h.",
		formatMeasure(forecast.Current.Temperature),
		formatMeasure(forecast.Current.WindSpeed))
}

func (c *forecastClient) fetchForecast(ctx context.Context, latitude, longitude float64) (*forecastResponse, error) {
	reqURL, err := c.buildRequestURL(latitude, longitude)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	client := &http.Client{Timeout: c.timeout}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, body)
	}

	var forecast forecastResponse
	if err := json.Unmarshal(body, &forecast); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return &forecast, nil
}

func (c *forecastClient) buildRequestURL(latitude, longitude float64) (string, error) {
	u, err := url.Parse(c.baseURL + "/v1/forecast")
	if err != nil {
		return "", err
	}

	q := u.Query()
	q.Set("latitude", formatMeasure(latitude))
	q.Set("longitude", formatMeasure(longitude))
	q.Set("current", "temperature_2m,wind_speed_10m,weathercode")
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// formatMeasure renders a measurement without trailing zeros, so 15.0
// prints as "15" and 22.5 stays "22.5".
func formatMeasure(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}
