package service

import (
	"testing"
	"time"

	"github.com/sunsoc/sunsoc/internal/core/domain"
	"github.com/sunsoc/sunsoc/internal/core/port"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testParams() PlannerParams {
	return PlannerParams{
		BatteryCapacityKWh:     10,
		ChargeRateKW:           100,
		MinSoC:                 20,
		MaxSoC:                 100,
		SafetyMarginPct:        0,
		OvermorrowThresholdPct: 5,
		DefaultTargetSoC:       100,
	}
}

func flatForecast(date string, kwhPerSlot float64) *domain.GenerationForecast {
	d, _ := time.Parse(time.DateOnly, date)
	fc := &domain.GenerationForecast{Date: d, Weight: 1}
	for i := range fc.KWh {
		fc.KWh[i] = kwhPerSlot
	}
	return fc
}

func flatBaseline(kwhPerSlot float64) [domain.SlotsPerDay]float64 {
	var b [domain.SlotsPerDay]float64
	for i := range b {
		b[i] = kwhPerSlot
	}
	return b
}

func planDate(date string) time.Time {
	d, _ := time.Parse(time.DateOnly, date)
	return d
}

func TestComputeDeficitDay(t *testing.T) {
	planner := NewPlannerService(testParams(), zap.NewNop())

	// consumption exceeds generation by 0.2 kWh per slot, 2% of capacity
	plan := planner.Compute(port.PlanInput{
		Date:       planDate("2026-08-30"),
		CurrentSoC: 50,
		Baseline:   flatBaseline(0.5),
		Tomorrow:   flatForecast("2026-08-30", 0.3),
	})

	require.Len(t, plan.Projected, domain.SlotsPerDay)
	assert.False(t, plan.Fallback)

	// drains 2% every slot until the battery hits empty
	assert.InDelta(t, 48, plan.Projected[0].SoC, 1e-9)
	assert.InDelta(t, 0, plan.ProjectedMin, 1e-9)
	// deficit of 20 below the floor, charged back on top of it
	assert.Equal(t, 40, plan.TargetSoC)
}

func TestComputeSurplusDayTargetsFloor(t *testing.T) {
	planner := NewPlannerService(testParams(), zap.NewNop())

	plan := planner.Compute(port.PlanInput{
		Date:       planDate("2026-08-30"),
		CurrentSoC: 50,
		Baseline:   flatBaseline(0.3),
		Tomorrow:   flatForecast("2026-08-30", 0.5),
	})

	assert.GreaterOrEqual(t, plan.ProjectedMin, 20.0)
	assert.Equal(t, 20, plan.TargetSoC)
}

func TestComputeTargetClampedToMax(t *testing.T) {
	params := testParams()
	params.MinSoC = 50
	params.MaxSoC = 90
	planner := NewPlannerService(params, zap.NewNop())

	// battery empties, deficit alone would ask for 100
	plan := planner.Compute(port.PlanInput{
		Date:       planDate("2026-08-30"),
		CurrentSoC: 50,
		Baseline:   flatBaseline(1.0),
		Tomorrow:   flatForecast("2026-08-30", 0),
	})

	assert.Equal(t, 90, plan.TargetSoC)
}

func TestComputeSafetyMargin(t *testing.T) {
	params := testParams()
	params.SafetyMarginPct = 8
	planner := NewPlannerService(params, zap.NewNop())

	plan := planner.Compute(port.PlanInput{
		Date:       planDate("2026-08-30"),
		CurrentSoC: 50,
		Baseline:   flatBaseline(0.5),
		Tomorrow:   flatForecast("2026-08-30", 0.3),
	})

	assert.Equal(t, 48, plan.TargetSoC)
}

func TestComputeOvermorrowCorrection(t *testing.T) {
	planner := NewPlannerService(testParams(), zap.NewNop())

	in := port.PlanInput{
		Date:       planDate("2026-08-30"),
		CurrentSoC: 50,
		Baseline:   flatBaseline(0.5),
		// drains 0.5% per slot: minimum 26, above the floor
		Tomorrow: flatForecast("2026-08-30", 0.45),
	}

	in.Overmorrow = flatForecast("2026-08-31", 0.45)
	same := planner.Compute(in)
	assert.Equal(t, 20, same.TargetSoC)

	// overmorrow bottoms out at 0: deficit 26-0-5=21, half banked tonight
	in.Overmorrow = flatForecast("2026-08-31", 0.3)
	worse := planner.Compute(in)
	assert.Equal(t, 31, worse.TargetSoC)
}

func TestComputeOvermorrowMonotonic(t *testing.T) {
	planner := NewPlannerService(testParams(), zap.NewNop())

	in := port.PlanInput{
		Date:       planDate("2026-08-30"),
		CurrentSoC: 50,
		Baseline:   flatBaseline(0.5),
		Tomorrow:   flatForecast("2026-08-30", 0.45),
	}

	prev := -1
	// progressively worse overmorrow generation never lowers the target
	for _, gen := range []float64{0.5, 0.45, 0.42, 0.4, 0.35, 0.3, 0.1, 0} {
		in.Overmorrow = flatForecast("2026-08-31", gen)
		plan := planner.Compute(in)
		assert.GreaterOrEqual(t, plan.TargetSoC, prev, "generation %.2f", gen)
		prev = plan.TargetSoC
	}
}

func TestComputeMissingForecastFallback(t *testing.T) {
	params := testParams()
	params.DefaultTargetSoC = 95
	planner := NewPlannerService(params, zap.NewNop())

	plan := planner.Compute(port.PlanInput{
		Date:       planDate("2026-08-30"),
		CurrentSoC: 50,
		Baseline:   flatBaseline(0.5),
	})

	assert.True(t, plan.Fallback)
	assert.Equal(t, 95, plan.TargetSoC)
	assert.Nil(t, plan.Projected)
}

func TestComputeWinterChargesFull(t *testing.T) {
	params := testParams()
	params.WinterMonths = []time.Month{time.January, time.February, time.November, time.December}
	planner := NewPlannerService(params, zap.NewNop())

	plan := planner.Compute(port.PlanInput{
		Date:       planDate("2026-01-15"),
		CurrentSoC: 50,
		Baseline:   flatBaseline(0.3),
		Tomorrow:   flatForecast("2026-01-15", 0.5),
	})

	assert.Equal(t, 100, plan.TargetSoC)
}

func TestComputeShoulderRaisesFloor(t *testing.T) {
	params := testParams()
	params.ShoulderMinSoC = 60
	params.ShoulderMonths = []time.Month{time.March, time.April, time.September, time.October}
	planner := NewPlannerService(params, zap.NewNop())

	plan := planner.Compute(port.PlanInput{
		Date:       planDate("2026-09-15"),
		CurrentSoC: 80,
		Baseline:   flatBaseline(0.3),
		Tomorrow:   flatForecast("2026-09-15", 0.5),
	})

	assert.Equal(t, 60, plan.TargetSoC)
}

func TestSimulateChargeRateLimitsSlope(t *testing.T) {
	params := testParams()
	params.ChargeRateKW = 1 // 5% of capacity per half hour
	planner := NewPlannerService(params, zap.NewNop())

	plan := planner.Compute(port.PlanInput{
		Date:       planDate("2026-08-30"),
		CurrentSoC: 10,
		Baseline:   flatBaseline(0),
		Tomorrow:   flatForecast("2026-08-30", 2.0),
	})

	assert.InDelta(t, 15, plan.Projected[0].SoC, 1e-9)
	assert.InDelta(t, 20, plan.Projected[1].SoC, 1e-9)
}

func TestSimulateChargeWindowHoldsLevel(t *testing.T) {
	params := testParams()
	params.ChargeWindowEndSlot = 9 // until 04:30
	planner := NewPlannerService(params, zap.NewNop())

	plan := planner.Compute(port.PlanInput{
		Date:       planDate("2026-08-30"),
		CurrentSoC: 50,
		Baseline:   flatBaseline(0.5),
		Tomorrow:   flatForecast("2026-08-30", 0),
	})

	for slot := 0; slot < 9; slot++ {
		assert.InDelta(t, 50, plan.Projected[slot].SoC, 1e-9, "slot %d", slot)
	}
	assert.Less(t, plan.Projected[9].SoC, 50.0)
}

func TestSimulateChargeWindowStart(t *testing.T) {
	params := testParams()
	params.ChargeWindowStartSlot = 1 // 00:30
	params.ChargeWindowEndSlot = 9   // 04:30
	planner := NewPlannerService(params, zap.NewNop())

	plan := planner.Compute(port.PlanInput{
		Date:       planDate("2026-08-30"),
		CurrentSoC: 50,
		Baseline:   flatBaseline(0.5),
		Tomorrow:   flatForecast("2026-08-30", 0),
	})

	// slot 0 is before the window, the battery discharges
	assert.InDelta(t, 45, plan.Projected[0].SoC, 1e-9)
	for slot := 1; slot < 9; slot++ {
		assert.InDelta(t, 45, plan.Projected[slot].SoC, 1e-9, "slot %d", slot)
	}
	assert.InDelta(t, 40, plan.Projected[9].SoC, 1e-9)
}

func TestSimulateChargeWindowWrapsMidnight(t *testing.T) {
	params := testParams()
	params.ChargeWindowStartSlot = 47 // 23:30
	params.ChargeWindowEndSlot = 9    // 04:30
	planner := NewPlannerService(params, zap.NewNop())

	plan := planner.Compute(port.PlanInput{
		Date:       planDate("2026-08-30"),
		CurrentSoC: 50,
		Baseline:   flatBaseline(0.5),
		Tomorrow:   flatForecast("2026-08-30", 0),
	})

	for slot := 0; slot < 9; slot++ {
		assert.InDelta(t, 50, plan.Projected[slot].SoC, 1e-9, "slot %d", slot)
	}
	assert.Less(t, plan.Projected[9].SoC, 50.0)
	assert.InDelta(t, plan.Projected[46].SoC, plan.Projected[47].SoC, 1e-9)
}

func TestSimulateSoCStaysWithinBounds(t *testing.T) {
	planner := NewPlannerService(testParams(), zap.NewNop())

	plan := planner.Compute(port.PlanInput{
		Date:       planDate("2026-08-30"),
		CurrentSoC: 95,
		Baseline:   flatBaseline(0),
		Tomorrow:   flatForecast("2026-08-30", 3),
	})

	for _, p := range plan.Projected {
		assert.GreaterOrEqual(t, p.SoC, 0.0)
		assert.LessOrEqual(t, p.SoC, 100.0)
	}
	for _, p := range plan.Adjusted {
		assert.LessOrEqual(t, p.SoC, 100.0)
	}
}
