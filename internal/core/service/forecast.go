package service

import (
	"sort"
	"time"

	"github.com/sunsoc/sunsoc/internal/core/domain"
	"github.com/sunsoc/sunsoc/internal/core/port"

	"go.uber.org/zap"
)

// ForecastService builds the consumption baseline from past days and
// resamples raw generation forecasts onto the half-hour slot grid.
type ForecastService struct {
	historyDays     int
	minHistoryDays  int
	recencyWeight   float64
	defaultDailyKWh float64
	logger          *zap.Logger
}

func NewForecastService(historyDays, minHistoryDays int, recencyWeight, defaultDailyKWh float64, logger *zap.Logger) *ForecastService {
	if historyDays < 1 {
		historyDays = 1
	}
	if minHistoryDays < 1 {
		minHistoryDays = 1
	}
	if recencyWeight < 1 {
		recencyWeight = 1
	}
	return &ForecastService{
		historyDays:     historyDays,
		minHistoryDays:  minHistoryDays,
		recencyWeight:   recencyWeight,
		defaultDailyKWh: defaultDailyKWh,
		logger:          logger,
	}
}

// Baseline averages past consumption days slot by slot. The most
// recent day carries recencyWeight, every other day carries 1. With
// fewer than minHistoryDays days it returns a flat default curve and
// ErrInsufficientHistory.
func (s *ForecastService) Baseline(history []domain.ConsumptionRecord) ([domain.SlotsPerDay]float64, error) {
	var baseline [domain.SlotsPerDay]float64

	days := make([]domain.ConsumptionRecord, len(history))
	copy(days, history)
	sort.Slice(days, func(i, j int) bool {
		return days[i].Date.After(days[j].Date)
	})
	if len(days) > s.historyDays {
		days = days[:s.historyDays]
	}

	if len(days) < s.minHistoryDays {
		flat := s.defaultDailyKWh / domain.SlotsPerDay
		for i := range baseline {
			baseline[i] = flat
		}
		s.logger.Warn("not enough consumption history, using flat baseline",
			zap.Int("days", len(days)), zap.Int("required", s.minHistoryDays))
		return baseline, domain.ErrInsufficientHistory
	}

	var totalWeight float64
	for i, day := range days {
		w := 1.0
		if i == 0 {
			w = s.recencyWeight
		}
		for slot := range baseline {
			baseline[slot] += day.KWh[slot] * w
		}
		totalWeight += w
	}
	for slot := range baseline {
		baseline[slot] /= totalWeight
	}
	return baseline, nil
}

// Normalize resamples raw provider points onto the half-hour slot
// grid by linear interpolation and applies the confidence weight.
// Providers report at irregular intervals; slots before the first or
// after the last point take the nearest reported value. The weight is
// clamped to [0, 1].
func (s *ForecastService) Normalize(date time.Time, points []domain.ForecastPoint, weight float64) domain.GenerationForecast {
	if weight < 0 {
		weight = 0
	}
	if weight > 1 {
		weight = 1
	}
	fc := domain.GenerationForecast{
		Date:   date,
		Weight: weight,
	}

	samples := make([]domain.ForecastPoint, 0, len(points))
	for _, p := range points {
		if p.MinuteOfDay < 0 || p.MinuteOfDay >= 24*60 {
			continue
		}
		samples = append(samples, p)
	}
	if len(samples) == 0 {
		return fc
	}
	sort.Slice(samples, func(i, j int) bool {
		return samples[i].MinuteOfDay < samples[j].MinuteOfDay
	})

	for slot := 0; slot < domain.SlotsPerDay; slot++ {
		minute := slot * domain.MinutesPerSlot
		fc.KWh[slot] = interpolateAt(samples, minute) * weight
	}
	return fc
}

func interpolateAt(samples []domain.ForecastPoint, minute int) float64 {
	if minute <= samples[0].MinuteOfDay {
		return samples[0].KWh
	}
	last := samples[len(samples)-1]
	if minute >= last.MinuteOfDay {
		return last.KWh
	}
	i := sort.Search(len(samples), func(i int) bool {
		return samples[i].MinuteOfDay >= minute
	})
	lo, hi := samples[i-1], samples[i]
	if hi.MinuteOfDay == lo.MinuteOfDay {
		return hi.KWh
	}
	frac := float64(minute-lo.MinuteOfDay) / float64(hi.MinuteOfDay-lo.MinuteOfDay)
	return lo.KWh + (hi.KWh-lo.KWh)*frac
}

// ensure interface compliance
var _ port.ForecastBuilder = (*ForecastService)(nil)
