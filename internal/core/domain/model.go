package domain

import (
	"time"
)

const (
	// Half-hour slots per day. All daily curves are indexed by slot,
	// slot 0 starting at 00:00 local time.
	SlotsPerDay    = 48
	MinutesPerSlot = 24 * 60 / SlotsPerDay
)

// SlotOf returns the half-hour slot index for a time of day.
func SlotOf(t time.Time) int {
	return (t.Hour()*60 + t.Minute()) / MinutesPerSlot
}

// ConsumptionRecord holds one past day of household consumption,
// one energy value per half-hour slot.
type ConsumptionRecord struct {
	Date time.Time
	KWh  [SlotsPerDay]float64
}

func (r ConsumptionRecord) TotalKWh() float64 {
	var total float64
	for _, v := range r.KWh {
		total += v
	}
	return total
}

// ForecastPoint is a raw generation forecast sample as delivered by a
// provider, before it is resampled onto the slot grid.
type ForecastPoint struct {
	MinuteOfDay int
	KWh         float64
}

// GenerationForecast is one future day of expected PV generation on the
// slot grid. Weight is the confidence multiplier (0..1) already applied
// to the values.
type GenerationForecast struct {
	Date   time.Time
	KWh    [SlotsPerDay]float64
	Weight float64
}

func (f GenerationForecast) TotalKWh() float64 {
	var total float64
	for _, v := range f.KWh {
		total += v
	}
	return total
}

// SoCPoint is one simulated battery state sample.
type SoCPoint struct {
	Slot int     `json:"slot"`
	SoC  float64 `json:"soc"`
}

// SoCPlan is the output of a nightly planning run: the overnight charge
// target plus the simulated curves that produced it.
type SoCPlan struct {
	Date         time.Time  `json:"date"`
	TargetSoC    int        `json:"target_soc"`
	ProjectedMin float64    `json:"projected_min"`
	Projected    []SoCPoint `json:"projected"`
	Adjusted     []SoCPoint `json:"adjusted"`
	Fallback     bool       `json:"fallback"`
	ComputedAt   time.Time  `json:"computed_at"`
}

// RuleAction is what a matching rule does to its load.
type RuleAction string

const (
	RuleActionOn  RuleAction = "on"
	RuleActionOff RuleAction = "off"
)

// RuleCondition is the predicate side of a sequencer rule. Nil fields
// are not part of the predicate. Time bounds are minutes of day; a
// window wrapping midnight (From > Until) is allowed.
type RuleCondition struct {
	FromMinute     *int
	UntilMinute    *int
	SoCBelow       *float64
	SoCAtLeast     *float64
	TempBelowC     *float64
	TempAtLeastC   *float64
	CarbonBelow    *float64
	CarbonAtLeast  *float64
	PVPowerAtLeast *float64
}

// Matches reports whether every set field of the condition holds for
// the snapshot. A condition with no fields set always matches.
func (c RuleCondition) Matches(s TelemetrySnapshot) bool {
	if c.FromMinute != nil || c.UntilMinute != nil {
		if !inWindow(minuteOfDay(s.Time), c.FromMinute, c.UntilMinute) {
			return false
		}
	}
	if c.SoCBelow != nil && s.BatterySoC >= *c.SoCBelow {
		return false
	}
	if c.SoCAtLeast != nil && s.BatterySoC < *c.SoCAtLeast {
		return false
	}
	if c.TempBelowC != nil && s.TemperatureC >= *c.TempBelowC {
		return false
	}
	if c.TempAtLeastC != nil && s.TemperatureC < *c.TempAtLeastC {
		return false
	}
	if c.CarbonBelow != nil && s.CarbonIntensity >= *c.CarbonBelow {
		return false
	}
	if c.CarbonAtLeast != nil && s.CarbonIntensity < *c.CarbonAtLeast {
		return false
	}
	if c.PVPowerAtLeast != nil && s.PVPowerWatt < *c.PVPowerAtLeast {
		return false
	}
	return true
}

func minuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

func inWindow(minute int, from, until *int) bool {
	lo, hi := 0, 24*60
	if from != nil {
		lo = *from
	}
	if until != nil {
		hi = *until
	}
	if lo <= hi {
		return minute >= lo && minute < hi
	}
	// window wraps midnight
	return minute >= lo || minute < hi
}

// Rule binds a condition to an action on one load. Lower priority wins.
type Rule struct {
	Priority int
	Load     string
	Action   RuleAction
	When     RuleCondition
}

// LoadState is the last state the sequencer commanded for a load.
type LoadState struct {
	Load      string    `json:"load"`
	On        bool      `json:"on"`
	ChangedAt time.Time `json:"changed_at"`
}

// LoadTransition is a state change the sequencer decided to dispatch.
type LoadTransition struct {
	Load string
	On   bool
}

// TelemetrySnapshot is the live input of one sequencer evaluation.
type TelemetrySnapshot struct {
	Time            time.Time `json:"time"`
	BatterySoC      float64   `json:"battery_soc"`
	TemperatureC    float64   `json:"temperature_c"`
	CarbonIntensity float64   `json:"carbon_intensity"`
	CarbonHighSoon  bool      `json:"carbon_high_soon"`
	PVPowerWatt     float64   `json:"pv_power_watt"`
	LoadPowerWatt   float64   `json:"load_power_watt"`
}
