// Package pvoutput uploads live status to a pvoutput.org system.
package pvoutput

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const DefaultBaseURL = "https://pvoutput.org"

// Status is one addstatus sample. Optional fields upload as extended
// parameters and need a donation-enabled system.
type Status struct {
	Time            time.Time
	GenerationWatt  float64
	ConsumptionWatt float64
	TemperatureC    *float64
	BatterySoCPct   *float64
	CarbonIntensity *float64
}

type Client struct {
	baseURL  string
	apiKey   string
	systemId string
	hc       *http.Client
	logger   *zap.Logger
}

func NewClient(baseURL, apiKey, systemId string, timeout time.Duration, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:  baseURL,
		apiKey:   apiKey,
		systemId: systemId,
		hc:       &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

func (c *Client) AddStatus(ctx context.Context, status Status) error {
	form := url.Values{}
	form.Set("d", status.Time.Format("20060102"))
	form.Set("t", status.Time.Format("15:04"))
	form.Set("v2", fmt.Sprintf("%.0f", status.GenerationWatt))
	form.Set("v4", fmt.Sprintf("%.0f", status.ConsumptionWatt))
	if status.TemperatureC != nil {
		form.Set("v5", fmt.Sprintf("%.1f", *status.TemperatureC))
	}
	if status.BatterySoCPct != nil {
		form.Set("v7", fmt.Sprintf("%.1f", *status.BatterySoCPct))
	}
	if status.CarbonIntensity != nil {
		form.Set("v8", fmt.Sprintf("%.0f", *status.CarbonIntensity))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/service/r2/addstatus.jsp", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Pvoutput-Apikey", c.apiKey)
	req.Header.Set("X-Pvoutput-SystemId", c.systemId)

	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("pvoutput addstatus: status %d: %s", resp.StatusCode, string(body))
	}
	c.logger.Debug("pvoutput status uploaded", zap.Time("time", status.Time))
	return nil
}
