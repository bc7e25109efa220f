package gecloud

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testServer(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPClient(HTTPClientParams{
		BaseURL: srv.URL,
		APIKey:  "test-key",
		Serial:  "TE2410G001",
	}, zap.NewNop())
}

func TestNewHTTPClientDefaultsBaseURL(t *testing.T) {
	client := NewHTTPClient(HTTPClientParams{
		APIKey: "test-key",
		Serial: "TE2410G001",
	}, zap.NewNop())

	assert.Equal(t, DefaultBaseURL, client.params.BaseURL)
}

func TestSystemStatus(t *testing.T) {
	client := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/inverter/TE2410G001/system-data/latest", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"data":{"time":"2026-08-29T10:30:00Z",
			"battery":{"percent":62.5,"power":-1200},
			"solar":{"power":2400},"grid":{"power":-150},"consumption":1050}}`))
	})

	status, err := client.SystemStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 62.5, status.BatterySoCPct)
	assert.Equal(t, 2400.0, status.PVPowerWatt)
	assert.Equal(t, 1050.0, status.ConsumptionWatt)
	assert.Equal(t, 10, status.Time.UTC().Hour())
}

func TestDayConsumptionDiffsCumulativeCounter(t *testing.T) {
	client := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2026-08-28", r.URL.Query().Get("date"))
		_, _ = w.Write([]byte(`{"data":[
			{"time":"2026-08-28T00:00:00Z","today":{"consumption":0.2}},
			{"time":"2026-08-28T00:30:00Z","today":{"consumption":0.5}},
			{"time":"2026-08-28T01:00:00Z","today":{"consumption":0.9}}]}`))
	})

	date, _ := time.Parse(time.DateOnly, "2026-08-28")
	day, err := client.DayConsumption(context.Background(), date)
	require.NoError(t, err)
	assert.InDelta(t, 0.2, day.HalfHourKWh[0], 1e-9)
	assert.InDelta(t, 0.3, day.HalfHourKWh[1], 1e-9)
	assert.InDelta(t, 0.4, day.HalfHourKWh[2], 1e-9)
}

func TestSetChargeTargetVerifiesReadback(t *testing.T) {
	var wrote settingWriteRequest
	client := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost:
			require.NoError(t, json.NewDecoder(r.Body).Decode(&wrote))
			_, _ = w.Write([]byte(`{"data":{"value":null}}`))
		default:
			_, _ = w.Write([]byte(`{"data":{"value":80}}`))
		}
	})

	err := client.SetChargeTarget(context.Background(), 80)
	require.NoError(t, err)
	assert.Equal(t, float64(80), wrote.Value)
}

func TestSetChargeTargetReadbackMismatch(t *testing.T) {
	client := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			_, _ = w.Write([]byte(`{"data":{"value":null}}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":{"value":55}}`))
	})

	err := client.SetChargeTarget(context.Background(), 80)
	assert.Error(t, err)
}

func TestSetChargeTargetRejectsOutOfRange(t *testing.T) {
	client := NewHTTPClient(HTTPClientParams{BaseURL: "http://unused"}, zap.NewNop())
	assert.Error(t, client.SetChargeTarget(context.Background(), 101))
	assert.Error(t, client.SetChargeTarget(context.Background(), -1))
}

func TestRetryOnServerError(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"data":{"time":"2026-08-29T10:30:00Z",
			"battery":{"percent":50},"solar":{},"grid":{},"consumption":0}}`))
	}))
	defer srv.Close()

	client := NewHTTPClient(HTTPClientParams{
		BaseURL:    srv.URL,
		Serial:     "TE2410G001",
		MaxRetries: 3,
	}, zap.NewNop())

	_, err := client.SystemStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}
