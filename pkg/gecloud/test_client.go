package gecloud

import (
	"context"
	"sync"
	"time"
)

func CreateTestClient() *TestClient {
	return &TestClient{
		Status: SystemStatus{
			Time:            time.Now(),
			BatterySoCPct:   55,
			PVPowerWatt:     1800,
			GridPowerWatt:   -300,
			ConsumptionWatt: 650,
		},
		Meta: BatteryMeta{
			Serial:         "TE2410G001",
			Model:          "Gen 3 Hybrid 5.0",
			Firmware:       "D0.451-A0.449",
			CapacityKWh:    10.4,
			UsableFraction: 0.85,
		},
	}
}

// TestClient is an in-memory inverter for tests and test mode.
type TestClient struct {
	mu sync.Mutex

	Status       SystemStatus
	Meta         BatteryMeta
	History      map[string]DayConsumption
	ChargeTarget int
	FailWrites   bool
}

func (c *TestClient) SystemStatus(ctx context.Context) (*SystemStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	status := c.Status
	return &status, nil
}

func (c *TestClient) BatteryMeta(ctx context.Context) (*BatteryMeta, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	meta := c.Meta
	return &meta, nil
}

func (c *TestClient) DayConsumption(ctx context.Context, date time.Time) (*DayConsumption, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if day, ok := c.History[date.Format(time.DateOnly)]; ok {
		return &day, nil
	}
	// flat synthetic day
	day := DayConsumption{Date: date}
	for i := range day.HalfHourKWh {
		day.HalfHourKWh[i] = 0.25
	}
	return &day, nil
}

func (c *TestClient) SetChargeTarget(ctx context.Context, targetPct int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailWrites {
		return context.DeadlineExceeded
	}
	c.ChargeTarget = targetPct
	return nil
}

// ensure interface compliance
var _ Client = (*TestClient)(nil)
