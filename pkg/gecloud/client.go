package gecloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// DefaultBaseURL is the public cloud API endpoint.
const DefaultBaseURL = "https://api.givenergy.cloud/v1"

// Setting register for the overnight AC charge target.
const chargeTargetSettingId = 77

// Client reads and controls an inverter through its cloud API.
type Client interface {
	SystemStatus(ctx context.Context) (*SystemStatus, error)
	BatteryMeta(ctx context.Context) (*BatteryMeta, error)
	DayConsumption(ctx context.Context, date time.Time) (*DayConsumption, error)
	// SetChargeTarget writes the target and verifies it by reading it
	// back. targetPct must be in [0, 100].
	SetChargeTarget(ctx context.Context, targetPct int) error
}

type HTTPClientParams struct {
	BaseURL    string
	APIKey     string
	Serial     string
	Timeout    time.Duration
	MaxRetries int
}

type HTTPClient struct {
	params HTTPClientParams
	hc     *http.Client
	logger *zap.Logger
}

func NewHTTPClient(params HTTPClientParams, logger *zap.Logger) *HTTPClient {
	if params.BaseURL == "" {
		params.BaseURL = DefaultBaseURL
	}
	if params.Timeout <= 0 {
		params.Timeout = 10 * time.Second
	}
	if params.MaxRetries < 0 {
		params.MaxRetries = 0
	}
	return &HTTPClient{
		params: params,
		hc:     &http.Client{Timeout: params.Timeout},
		logger: logger,
	}
}

func (c *HTTPClient) SystemStatus(ctx context.Context) (*SystemStatus, error) {
	var resp systemDataResponse
	err := c.getJSON(ctx, fmt.Sprintf("/inverter/%s/system-data/latest", c.params.Serial), nil, &resp)
	if err != nil {
		return nil, err
	}
	ts, err := time.Parse(time.RFC3339, resp.Data.Time)
	if err != nil {
		ts = time.Now()
	}
	return &SystemStatus{
		Time:             ts,
		BatterySoCPct:    resp.Data.Battery.Percent,
		BatteryPowerWatt: resp.Data.Battery.Power,
		PVPowerWatt:      resp.Data.Solar.Power,
		GridPowerWatt:    resp.Data.Grid.Power,
		ConsumptionWatt:  resp.Data.Consumption,
	}, nil
}

func (c *HTTPClient) BatteryMeta(ctx context.Context) (*BatteryMeta, error) {
	var resp deviceResponse
	err := c.getJSON(ctx, fmt.Sprintf("/inverter/%s", c.params.Serial), nil, &resp)
	if err != nil {
		return nil, err
	}
	return &BatteryMeta{
		Serial:         resp.Data.Serial,
		Model:          resp.Data.Model,
		Firmware:       resp.Data.Firmware.Version,
		CapacityKWh:    resp.Data.Battery.NominalCapacityKWh,
		UsableFraction: resp.Data.Battery.DepthOfDischarge,
	}, nil
}

// DayConsumption fetches the half-hourly meter samples of one day and
// differences the cumulative counter into per-slot energies.
func (c *HTTPClient) DayConsumption(ctx context.Context, date time.Time) (*DayConsumption, error) {
	var resp meterDataResponse
	query := url.Values{}
	query.Set("date", date.Format(time.DateOnly))
	query.Set("grouping", "half_hour")
	err := c.getJSON(ctx, fmt.Sprintf("/inverter/%s/data-points", c.params.Serial), query, &resp)
	if err != nil {
		return nil, err
	}

	day := &DayConsumption{Date: date}
	prev := 0.0
	for _, sample := range resp.Data {
		ts, err := time.Parse(time.RFC3339, sample.Time)
		if err != nil {
			continue
		}
		slot := (ts.Hour()*60 + ts.Minute()) / 30
		delta := sample.Today.Consumption - prev
		if delta < 0 {
			// counter reset at midnight
			delta = sample.Today.Consumption
		}
		day.HalfHourKWh[slot] += delta
		prev = sample.Today.Consumption
	}
	return day, nil
}

func (c *HTTPClient) SetChargeTarget(ctx context.Context, targetPct int) error {
	if targetPct < 0 || targetPct > 100 {
		return fmt.Errorf("charge target %d out of range", targetPct)
	}
	path := fmt.Sprintf("/inverter/%s/settings/%d/write", c.params.Serial, chargeTargetSettingId)
	err := c.postJSON(ctx, path, settingWriteRequest{Value: targetPct})
	if err != nil {
		return err
	}

	// read back to verify the register took the value
	var read settingResponse
	readPath := fmt.Sprintf("/inverter/%s/settings/%d/read", c.params.Serial, chargeTargetSettingId)
	err = c.getJSON(ctx, readPath, nil, &read)
	if err != nil {
		return err
	}
	got, ok := numericValue(read.Data.Value)
	if !ok || int(math.Round(got)) != targetPct {
		return fmt.Errorf("charge target readback mismatch: wrote %d, read %v", targetPct, read.Data.Value)
	}
	c.logger.Debug("charge target verified", zap.Int("target", targetPct))
	return nil
}

func numericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func (c *HTTPClient) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	return c.withRetry(ctx, func() error {
		u := c.params.BaseURL + path
		if len(query) > 0 {
			u += "?" + query.Encode()
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		return c.do(req, out)
	})
}

func (c *HTTPClient) postJSON(ctx context.Context, path string, body any) error {
	return c.withRetry(ctx, func() error {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.params.BaseURL+path, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		return c.do(req, nil)
	})
}

func (c *HTTPClient) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+c.params.APIKey)
	req.Header.Set("Accept", "application/json")
	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("inverter api %s: status %d: %s", req.URL.Path, resp.StatusCode, string(body))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *HTTPClient) withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt <= c.params.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * 500 * time.Millisecond
			c.logger.Debug("retrying inverter api call", zap.Int("attempt", attempt), zap.Error(err))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err = fn(); err == nil {
			return nil
		}
	}
	return err
}

// ensure interface compliance
var _ Client = (*HTTPClient)(nil)
