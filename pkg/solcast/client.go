// Package solcast is a minimal client for the Solcast rooftop PV
// forecast API.
package solcast

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const DefaultBaseURL = "https://api.solcast.com.au"

// Period is one forecast interval. Estimates are average power in kW,
// with the 10th and 90th percentile bands.
type Period struct {
	PeriodEnd     time.Time
	PeriodMinutes int
	EstimateKW    float64
	Estimate10KW  float64
	Estimate90KW  float64
}

// Forecast is the merged forecast of all configured rooftop resources.
type Forecast struct {
	Periods []Period
}

// EnergyPoint is the energy of one interval, anchored at the interval
// start within its day.
type EnergyPoint struct {
	MinuteOfDay int
	KWh         float64
}

// DayEnergy converts the periods starting on the given day to interval
// energies in the day's location.
func (f *Forecast) DayEnergy(day time.Time) []EnergyPoint {
	var points []EnergyPoint
	for _, p := range f.Periods {
		start := p.PeriodEnd.Add(-time.Duration(p.PeriodMinutes) * time.Minute).In(day.Location())
		if start.Year() != day.Year() || start.YearDay() != day.YearDay() {
			continue
		}
		points = append(points, EnergyPoint{
			MinuteOfDay: start.Hour()*60 + start.Minute(),
			KWh:         p.EstimateKW * float64(p.PeriodMinutes) / 60,
		})
	}
	return points
}

type Client struct {
	baseURL     string
	apiKey      string
	resourceIds []string
	hc          *http.Client
	logger      *zap.Logger
}

func NewClient(baseURL, apiKey string, resourceIds []string, timeout time.Duration, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:     baseURL,
		apiKey:      apiKey,
		resourceIds: resourceIds,
		hc:          &http.Client{Timeout: timeout},
		logger:      logger,
	}
}

type forecastsResponse struct {
	Forecasts []struct {
		PVEstimate   float64 `json:"pv_estimate"`
		PVEstimate10 float64 `json:"pv_estimate10"`
		PVEstimate90 float64 `json:"pv_estimate90"`
		PeriodEnd    string  `json:"period_end"`
		Period       string  `json:"period"`
	} `json:"forecasts"`
}

// GetForecast fetches and sums the forecasts of all resources. A site
// split across two arrays has two resource ids.
func (c *Client) GetForecast(ctx context.Context) (*Forecast, error) {
	merged := map[time.Time]*Period{}
	for _, id := range c.resourceIds {
		resp, err := c.fetchResource(ctx, id)
		if err != nil {
			return nil, err
		}
		for _, fc := range resp.Forecasts {
			end, err := time.Parse(time.RFC3339, fc.PeriodEnd)
			if err != nil {
				continue
			}
			minutes := parseISOPeriodMinutes(fc.Period)
			p, ok := merged[end]
			if !ok {
				p = &Period{PeriodEnd: end, PeriodMinutes: minutes}
				merged[end] = p
			}
			p.EstimateKW += fc.PVEstimate
			p.Estimate10KW += fc.PVEstimate10
			p.Estimate90KW += fc.PVEstimate90
		}
	}

	forecast := &Forecast{}
	for _, p := range merged {
		forecast.Periods = append(forecast.Periods, *p)
	}
	sort.Slice(forecast.Periods, func(i, j int) bool {
		return forecast.Periods[i].PeriodEnd.Before(forecast.Periods[j].PeriodEnd)
	})
	c.logger.Debug("solcast forecast fetched", zap.Int("periods", len(forecast.Periods)))
	return forecast, nil
}

func (c *Client) fetchResource(ctx context.Context, resourceId string) (*forecastsResponse, error) {
	u := fmt.Sprintf("%s/rooftop_sites/%s/forecasts?format=json", c.baseURL, resourceId)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("solcast %s: status %d: %s", resourceId, resp.StatusCode, string(body))
	}
	var parsed forecastsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	return &parsed, nil
}

// parseISOPeriodMinutes handles the "PT30M" style durations Solcast
// uses. Unknown values fall back to 30 minutes.
func parseISOPeriodMinutes(period string) int {
	trimmed := strings.TrimSuffix(strings.TrimPrefix(period, "PT"), "M")
	if minutes, err := strconv.Atoi(trimmed); err == nil && minutes > 0 {
		return minutes
	}
	return 30
}
