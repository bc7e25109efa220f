// Package carbonapi is a client for the UK grid carbon intensity API.
package carbonapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const DefaultBaseURL = "https://api.carbonintensity.org.uk"

// Slot is one half hour of forecast intensity in gCO2/kWh.
type Slot struct {
	From      time.Time
	Intensity float64
}

type Client struct {
	baseURL string
	region  string
	hc      *http.Client
	logger  *zap.Logger
}

func NewClient(baseURL, region string, timeout time.Duration, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		region:  region,
		hc:      &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type intensityResponse struct {
	Data []struct {
		From      string `json:"from"`
		Intensity struct {
			Forecast float64 `json:"forecast"`
			Actual   *float64 `json:"actual"`
		} `json:"intensity"`
	} `json:"data"`
}

type regionalResponse struct {
	Data []struct {
		Data []struct {
			From      string `json:"from"`
			Intensity struct {
				Forecast float64 `json:"forecast"`
			} `json:"intensity"`
		} `json:"data"`
	} `json:"data"`
}

// Current returns the present intensity.
func (c *Client) Current(ctx context.Context) (float64, error) {
	slots, err := c.Forecast24h(ctx, time.Now())
	if err != nil {
		return 0, err
	}
	if len(slots) == 0 {
		return 0, fmt.Errorf("carbon intensity: empty response")
	}
	return slots[0].Intensity, nil
}

// Forecast24h returns the half-hour intensity forecast for the next
// 24 hours, starting from the given time.
func (c *Client) Forecast24h(ctx context.Context, from time.Time) ([]Slot, error) {
	stamp := from.UTC().Format("2006-01-02T15:04Z")
	if c.region != "" {
		var parsed regionalResponse
		path := fmt.Sprintf("/regional/intensity/%s/fw24h/regionid/%s", stamp, c.region)
		if err := c.getJSON(ctx, path, &parsed); err != nil {
			return nil, err
		}
		var slots []Slot
		for _, outer := range parsed.Data {
			for _, d := range outer.Data {
				if slot, ok := parseSlot(d.From, d.Intensity.Forecast); ok {
					slots = append(slots, slot)
				}
			}
		}
		return slots, nil
	}

	var parsed intensityResponse
	path := fmt.Sprintf("/intensity/%s/fw24h", stamp)
	if err := c.getJSON(ctx, path, &parsed); err != nil {
		return nil, err
	}
	var slots []Slot
	for _, d := range parsed.Data {
		value := d.Intensity.Forecast
		if d.Intensity.Actual != nil {
			value = *d.Intensity.Actual
		}
		if slot, ok := parseSlot(d.From, value); ok {
			slots = append(slots, slot)
		}
	}
	return slots, nil
}

func parseSlot(from string, intensity float64) (Slot, bool) {
	ts, err := time.Parse("2006-01-02T15:04Z", from)
	if err != nil {
		return Slot{}, false
	}
	return Slot{From: ts, Intensity: intensity}, true
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("carbon intensity %s: status %d: %s", path, resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return err
	}
	c.logger.Debug("carbon intensity fetched", zap.String("path", path))
	return nil
}

// HighSoon reports whether intensity is heading up: the far average is
// well above the near average, or above the threshold and still rising.
func HighSoon(slots []Slot, threshold float64) bool {
	if len(slots) < 8 {
		return false
	}
	near := mean(slots[:4])
	far := mean(slots[4:])
	return far > 1.3*near || (far > threshold && far > near)
}

func mean(slots []Slot) float64 {
	var sum float64
	for _, s := range slots {
		sum += s.Intensity
	}
	return sum / float64(len(slots))
}
