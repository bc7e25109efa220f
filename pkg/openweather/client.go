// Package openweather fetches current outdoor conditions from the
// OpenWeatherMap API.
package openweather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

const DefaultBaseURL = "https://api.openweathermap.org"

type Client struct {
	baseURL   string
	apiKey    string
	latitude  float64
	longitude float64
	hc        *http.Client
	logger    *zap.Logger
}

func NewClient(baseURL, apiKey string, latitude, longitude float64, timeout time.Duration, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:   baseURL,
		apiKey:    apiKey,
		latitude:  latitude,
		longitude: longitude,
		hc:        &http.Client{Timeout: timeout},
		logger:    logger,
	}
}

type weatherResponse struct {
	Main struct {
		Temp float64 `json:"temp"`
	} `json:"main"`
}

// CurrentTemperature returns the outdoor temperature in Celsius.
func (c *Client) CurrentTemperature(ctx context.Context) (float64, error) {
	query := url.Values{}
	query.Set("lat", fmt.Sprintf("%.4f", c.latitude))
	query.Set("lon", fmt.Sprintf("%.4f", c.longitude))
	query.Set("units", "metric")
	query.Set("appid", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/data/2.5/weather?"+query.Encode(), nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("openweather: status %d: %s", resp.StatusCode, string(body))
	}
	var parsed weatherResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return 0, err
	}
	c.logger.Debug("weather fetched", zap.Float64("temp_c", parsed.Main.Temp))
	return parsed.Main.Temp, nil
}
