package port

import (
	"time"

	"github.com/sunsoc/sunsoc/internal/core/domain"
)

// PlanInput is everything a planning run needs, gathered by the
// planner actor before the computation.
type PlanInput struct {
	// Date is the day being planned (tomorrow, local time).
	Date       time.Time
	CurrentSoC float64
	Baseline   [domain.SlotsPerDay]float64
	Tomorrow   *domain.GenerationForecast
	Overmorrow *domain.GenerationForecast
}

// ForecastBuilder turns history and raw provider samples into the slot
// grid curves the planner consumes.
type ForecastBuilder interface {
	Baseline(history []domain.ConsumptionRecord) ([domain.SlotsPerDay]float64, error)
	Normalize(date time.Time, points []domain.ForecastPoint, weight float64) domain.GenerationForecast
}

// SoCPlanner computes the overnight charge target.
type SoCPlanner interface {
	Compute(in PlanInput) domain.SoCPlan
}

// LoadSequencer evaluates the rule set against one telemetry snapshot.
type LoadSequencer interface {
	Evaluate(snapshot domain.TelemetrySnapshot, prior map[string]domain.LoadState) (map[string]domain.LoadState, []domain.LoadTransition)
}
