package service

import (
	"testing"
	"time"

	"github.com/sunsoc/sunsoc/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func day(date string, kwhPerSlot float64) domain.ConsumptionRecord {
	d, _ := time.Parse(time.DateOnly, date)
	rec := domain.ConsumptionRecord{Date: d}
	for i := range rec.KWh {
		rec.KWh[i] = kwhPerSlot
	}
	return rec
}

func TestBaselineWeightsMostRecentDay(t *testing.T) {
	svc := NewForecastService(2, 1, 3, 12, zap.NewNop())

	baseline, err := svc.Baseline([]domain.ConsumptionRecord{
		day("2026-08-27", 0.2),
		day("2026-08-28", 0.6),
	})
	require.NoError(t, err)

	// (3*0.6 + 1*0.2) / 4
	for slot := range baseline {
		assert.InDelta(t, 0.5, baseline[slot], 1e-9)
	}
}

func TestBaselineOrderIndependent(t *testing.T) {
	svc := NewForecastService(3, 1, 2, 12, zap.NewNop())

	a, err := svc.Baseline([]domain.ConsumptionRecord{
		day("2026-08-26", 0.1),
		day("2026-08-27", 0.2),
		day("2026-08-28", 0.4),
	})
	require.NoError(t, err)
	b, err := svc.Baseline([]domain.ConsumptionRecord{
		day("2026-08-28", 0.4),
		day("2026-08-26", 0.1),
		day("2026-08-27", 0.2),
	})
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestBaselineKeepsOnlyConfiguredDays(t *testing.T) {
	svc := NewForecastService(2, 1, 1, 12, zap.NewNop())

	baseline, err := svc.Baseline([]domain.ConsumptionRecord{
		day("2026-08-25", 9.9),
		day("2026-08-27", 0.3),
		day("2026-08-28", 0.5),
	})
	require.NoError(t, err)

	for slot := range baseline {
		assert.InDelta(t, 0.4, baseline[slot], 1e-9)
	}
}

func TestBaselineInsufficientHistory(t *testing.T) {
	svc := NewForecastService(4, 2, 2, 12, zap.NewNop())

	baseline, err := svc.Baseline([]domain.ConsumptionRecord{
		day("2026-08-28", 0.5),
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientHistory)

	// flat fallback: 12 kWh spread over the day
	for slot := range baseline {
		assert.InDelta(t, 0.25, baseline[slot], 1e-9)
	}
}

func TestNormalizeAppliesWeightElementwise(t *testing.T) {
	svc := NewForecastService(2, 1, 1, 12, zap.NewNop())
	date, _ := time.Parse(time.DateOnly, "2026-08-30")

	points := []domain.ForecastPoint{
		{MinuteOfDay: 0, KWh: 1.0},
		{MinuteOfDay: 30, KWh: 2.0},
		{MinuteOfDay: 720, KWh: 4.0},
	}
	full := svc.Normalize(date, points, 1.0)
	half := svc.Normalize(date, points, 0.5)

	assert.InDelta(t, 1.0, full.KWh[0], 1e-9)
	assert.InDelta(t, 2.0, full.KWh[1], 1e-9)
	assert.InDelta(t, 4.0, full.KWh[24], 1e-9)
	for slot := range full.KWh {
		assert.InDelta(t, full.KWh[slot]*0.5, half.KWh[slot], 1e-9, "slot %d", slot)
	}
}

func TestNormalizeInterpolatesIrregularSamples(t *testing.T) {
	svc := NewForecastService(2, 1, 1, 12, zap.NewNop())
	date, _ := time.Parse(time.DateOnly, "2026-08-30")

	// hourly provider samples, half hour slots fall between them
	fc := svc.Normalize(date, []domain.ForecastPoint{
		{MinuteOfDay: 360, KWh: 0.2},
		{MinuteOfDay: 420, KWh: 0.6},
		{MinuteOfDay: 480, KWh: 0.4},
	}, 1.0)

	assert.InDelta(t, 0.2, fc.KWh[12], 1e-9)
	assert.InDelta(t, 0.4, fc.KWh[13], 1e-9)
	assert.InDelta(t, 0.6, fc.KWh[14], 1e-9)
	assert.InDelta(t, 0.5, fc.KWh[15], 1e-9)
	assert.InDelta(t, 0.4, fc.KWh[16], 1e-9)
}

func TestNormalizeClampsOutsideReportedRange(t *testing.T) {
	svc := NewForecastService(2, 1, 1, 12, zap.NewNop())
	date, _ := time.Parse(time.DateOnly, "2026-08-30")

	fc := svc.Normalize(date, []domain.ForecastPoint{
		{MinuteOfDay: 600, KWh: 1.0},
		{MinuteOfDay: 660, KWh: 3.0},
	}, 1.0)

	// before the first and after the last point, nearest value applies
	assert.InDelta(t, 1.0, fc.KWh[0], 1e-9)
	assert.InDelta(t, 1.0, fc.KWh[19], 1e-9)
	assert.InDelta(t, 3.0, fc.KWh[22], 1e-9)
	assert.InDelta(t, 3.0, fc.KWh[47], 1e-9)
}

func TestNormalizeClampsWeightAndDropsBadSamples(t *testing.T) {
	svc := NewForecastService(2, 1, 1, 12, zap.NewNop())
	date, _ := time.Parse(time.DateOnly, "2026-08-30")

	fc := svc.Normalize(date, []domain.ForecastPoint{
		{MinuteOfDay: -30, KWh: 5},
		{MinuteOfDay: 24 * 60, KWh: 5},
		{MinuteOfDay: 60, KWh: 1},
	}, 2.0)

	// the single in-range sample covers the whole day
	assert.InDelta(t, 1.0, fc.KWh[2], 1e-9)
	assert.InDelta(t, 48.0, fc.TotalKWh(), 1e-9)
	assert.Equal(t, 1.0, fc.Weight)

	empty := svc.Normalize(date, nil, 1.0)
	assert.InDelta(t, 0.0, empty.TotalKWh(), 1e-9)
}
