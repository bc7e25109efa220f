package service

import (
	"math"
	"time"

	"github.com/sunsoc/sunsoc/internal/core/domain"
	"github.com/sunsoc/sunsoc/internal/core/port"

	"go.uber.org/zap"
)

// PlannerParams are the tuning knobs of the nightly target computation.
// SoC values and margins are percent of battery capacity.
type PlannerParams struct {
	BatteryCapacityKWh     float64
	ChargeRateKW           float64
	MinSoC                 float64
	MaxSoC                 float64
	ShoulderMinSoC         float64
	SafetyMarginPct        float64
	OvermorrowThresholdPct float64
	DefaultTargetSoC       int
	// Slots of the overnight AC charge window, during which the grid
	// covers the house and the battery holds its level. The window may
	// wrap midnight; start == end means no window.
	ChargeWindowStartSlot int
	ChargeWindowEndSlot   int
	WinterMonths          []time.Month
	ShoulderMonths        []time.Month
}

// PlannerService computes the overnight charge target by simulating the
// battery forward through the next day.
type PlannerService struct {
	params PlannerParams
	logger *zap.Logger
}

func NewPlannerService(params PlannerParams, logger *zap.Logger) *PlannerService {
	if params.MaxSoC <= 0 {
		params.MaxSoC = 100
	}
	return &PlannerService{
		params: params,
		logger: logger,
	}
}

func (s *PlannerService) Compute(in port.PlanInput) domain.SoCPlan {
	plan := domain.SoCPlan{
		Date:       in.Date,
		ComputedAt: time.Now(),
	}
	floor := s.reserveFloor(in.Date.Month())

	if in.Tomorrow == nil {
		// No forecast, charge to the conservative default.
		plan.TargetSoC = s.clampTarget(float64(s.params.DefaultTargetSoC), floor)
		plan.ProjectedMin = in.CurrentSoC
		plan.Fallback = true
		s.logger.Warn("forecast unavailable, using default charge target",
			zap.Int("target_soc", plan.TargetSoC))
		return plan
	}

	projected, projMin := s.simulate(in.CurrentSoC, in.Tomorrow, in.Baseline)
	plan.Projected = projected
	plan.ProjectedMin = projMin

	target := floor
	if projMin < floor {
		target = floor + (floor - projMin) + s.params.SafetyMarginPct
	}

	if in.Overmorrow != nil {
		_, omMin := s.simulate(in.CurrentSoC, in.Overmorrow, in.Baseline)
		if deficit := projMin - omMin - s.params.OvermorrowThresholdPct; deficit > 0 {
			// The day after tomorrow looks worse, bank half the extra
			// deficit tonight.
			target += deficit / 2
			s.logger.Debug("overmorrow correction applied",
				zap.Float64("overmorrow_min", omMin), zap.Float64("extra", deficit/2))
		}
	}

	if s.isWinter(in.Date.Month()) {
		target = 100
	}

	plan.TargetSoC = s.clampTarget(target, floor)
	plan.Adjusted = adjustedCurve(projected, float64(plan.TargetSoC), in.CurrentSoC)

	s.logger.Info("charge target computed",
		zap.Time("date", in.Date),
		zap.Int("target_soc", plan.TargetSoC),
		zap.Float64("projected_min", projMin),
		zap.Float64("floor", floor))
	return plan
}

// simulate walks the battery through one day a half-hour at a time.
// Each slot the battery absorbs the generation surplus or covers the
// deficit, limited by the charge rate and clamped to [0, 100].
func (s *PlannerService) simulate(startSoC float64, fc *domain.GenerationForecast, baseline [domain.SlotsPerDay]float64) ([]domain.SoCPoint, float64) {
	maxDeltaPct := s.params.ChargeRateKW * (float64(domain.MinutesPerSlot) / 60) /
		s.params.BatteryCapacityKWh * 100

	soc := startSoC
	minSoC := startSoC
	points := make([]domain.SoCPoint, 0, domain.SlotsPerDay)
	for slot := 0; slot < domain.SlotsPerDay; slot++ {
		if !s.inChargeWindow(slot) {
			delta := (fc.KWh[slot] - baseline[slot]) / s.params.BatteryCapacityKWh * 100
			if maxDeltaPct > 0 {
				delta = math.Max(-maxDeltaPct, math.Min(maxDeltaPct, delta))
			}
			soc = math.Max(0, math.Min(100, soc+delta))
		}
		points = append(points, domain.SoCPoint{Slot: slot, SoC: soc})
		if soc < minSoC {
			minSoC = soc
		}
	}
	return points, minSoC
}

func (s *PlannerService) inChargeWindow(slot int) bool {
	start, end := s.params.ChargeWindowStartSlot, s.params.ChargeWindowEndSlot
	if start == end {
		return false
	}
	if start < end {
		return slot >= start && slot < end
	}
	return slot >= start || slot < end
}

func (s *PlannerService) clampTarget(target, floor float64) int {
	target = math.Max(floor, math.Min(s.params.MaxSoC, target))
	return int(math.Round(target))
}

func (s *PlannerService) reserveFloor(month time.Month) float64 {
	for _, m := range s.params.ShoulderMonths {
		if m == month && s.params.ShoulderMinSoC > s.params.MinSoC {
			return s.params.ShoulderMinSoC
		}
	}
	return s.params.MinSoC
}

func (s *PlannerService) isWinter(month time.Month) bool {
	for _, m := range s.params.WinterMonths {
		if m == month {
			return true
		}
	}
	return false
}

// adjustedCurve shifts the projected curve up to where it would sit
// after overnight charging to the target, capping at 100.
func adjustedCurve(projected []domain.SoCPoint, target, startSoC float64) []domain.SoCPoint {
	if projected == nil {
		return nil
	}
	diff := target - startSoC
	adjusted := make([]domain.SoCPoint, len(projected))
	for i, p := range projected {
		v := p.SoC + diff
		if v > 100 {
			diff -= v - 100
			v = 100
		}
		adjusted[i] = domain.SoCPoint{Slot: p.Slot, SoC: v}
	}
	return adjusted
}

// ensure interface compliance
var _ port.SoCPlanner = (*PlannerService)(nil)
