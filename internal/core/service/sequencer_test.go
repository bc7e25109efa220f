package service

import (
	"testing"
	"time"

	"github.com/sunsoc/sunsoc/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func fptr(v float64) *float64 { return &v }
func iptr(v int) *int         { return &v }

func snapAt(hhmm string, soc, temp, carbon float64) domain.TelemetrySnapshot {
	ts, _ := time.Parse("2006-01-02 15:04", "2026-08-29 "+hhmm)
	return domain.TelemetrySnapshot{
		Time:            ts,
		BatterySoC:      soc,
		TemperatureC:    temp,
		CarbonIntensity: carbon,
	}
}

func offStates(loads ...string) map[string]domain.LoadState {
	states := make(map[string]domain.LoadState, len(loads))
	for _, l := range loads {
		states[l] = domain.LoadState{Load: l, On: false}
	}
	return states
}

func TestEvaluateLowestPriorityWins(t *testing.T) {
	seq := NewSequencerService([]domain.Rule{
		{Priority: 20, Load: "heater", Action: domain.RuleActionOn},
		{Priority: 10, Load: "heater", Action: domain.RuleActionOff},
	}, zap.NewNop())

	next, transitions := seq.Evaluate(snapAt("12:00", 50, 15, 100), offStates("heater"))

	assert.False(t, next["heater"].On)
	assert.Empty(t, transitions)
}

func TestEvaluateFirstMatchPerLoad(t *testing.T) {
	seq := NewSequencerService([]domain.Rule{
		// too cold, heating beats everything
		{Priority: 1, Load: "heater", Action: domain.RuleActionOn,
			When: domain.RuleCondition{TempBelowC: fptr(5)}},
		// otherwise only run on cheap carbon
		{Priority: 2, Load: "heater", Action: domain.RuleActionOff,
			When: domain.RuleCondition{CarbonAtLeast: fptr(250)}},
		{Priority: 3, Load: "heater", Action: domain.RuleActionOn},
	}, zap.NewNop())

	next, _ := seq.Evaluate(snapAt("12:00", 50, 2, 400), offStates("heater"))
	assert.True(t, next["heater"].On, "cold overrides dirty grid")

	next, _ = seq.Evaluate(snapAt("12:00", 50, 15, 400), offStates("heater"))
	assert.False(t, next["heater"].On, "dirty grid holds the heater off")

	next, _ = seq.Evaluate(snapAt("12:00", 50, 15, 100), offStates("heater"))
	assert.True(t, next["heater"].On)
}

func TestEvaluateDeterministic(t *testing.T) {
	seq := NewSequencerService([]domain.Rule{
		{Priority: 1, Load: "a", Action: domain.RuleActionOn,
			When: domain.RuleCondition{SoCAtLeast: fptr(40)}},
		{Priority: 2, Load: "b", Action: domain.RuleActionOn,
			When: domain.RuleCondition{SoCAtLeast: fptr(40)}},
		{Priority: 3, Load: "c", Action: domain.RuleActionOff},
	}, zap.NewNop())

	snap := snapAt("09:00", 60, 18, 120)
	next1, trans1 := seq.Evaluate(snap, offStates("a", "b", "c"))
	next2, trans2 := seq.Evaluate(snap, offStates("a", "b", "c"))

	assert.Equal(t, next1, next2)
	assert.Equal(t, trans1, trans2)
	require.Len(t, trans1, 2)
	assert.Equal(t, "a", trans1[0].Load)
	assert.Equal(t, "b", trans1[1].Load)
}

func TestEvaluateNoMatchHoldsState(t *testing.T) {
	seq := NewSequencerService([]domain.Rule{
		{Priority: 1, Load: "pump", Action: domain.RuleActionOff,
			When: domain.RuleCondition{SoCBelow: fptr(30)}},
	}, zap.NewNop())

	prior := map[string]domain.LoadState{
		"pump": {Load: "pump", On: true, ChangedAt: time.Now()},
	}
	next, transitions := seq.Evaluate(snapAt("12:00", 80, 15, 100), prior)

	assert.True(t, next["pump"].On)
	assert.Empty(t, transitions)
}

func TestEvaluateDispatchesOnlyOnChange(t *testing.T) {
	seq := NewSequencerService([]domain.Rule{
		{Priority: 1, Load: "pump", Action: domain.RuleActionOn,
			When: domain.RuleCondition{SoCAtLeast: fptr(50)}},
	}, zap.NewNop())

	snap := snapAt("12:00", 80, 15, 100)
	next, transitions := seq.Evaluate(snap, offStates("pump"))
	require.Len(t, transitions, 1)
	assert.Equal(t, domain.LoadTransition{Load: "pump", On: true}, transitions[0])

	_, transitions = seq.Evaluate(snap, next)
	assert.Empty(t, transitions)
}

func TestEvaluateTimeWindow(t *testing.T) {
	seq := NewSequencerService([]domain.Rule{
		{Priority: 1, Load: "charger", Action: domain.RuleActionOn,
			When: domain.RuleCondition{FromMinute: iptr(23 * 60), UntilMinute: iptr(6 * 60)}},
		{Priority: 2, Load: "charger", Action: domain.RuleActionOff},
	}, zap.NewNop())

	next, _ := seq.Evaluate(snapAt("23:30", 50, 15, 100), offStates("charger"))
	assert.True(t, next["charger"].On, "inside window, after midnight wrap start")

	next, _ = seq.Evaluate(snapAt("05:59", 50, 15, 100), offStates("charger"))
	assert.True(t, next["charger"].On, "inside window, before end")

	next, _ = seq.Evaluate(snapAt("06:00", 50, 15, 100), offStates("charger"))
	assert.False(t, next["charger"].On, "window end is exclusive")

	next, _ = seq.Evaluate(snapAt("12:00", 50, 15, 100), offStates("charger"))
	assert.False(t, next["charger"].On)
}

func TestEvaluateEmptyConditionAlwaysMatches(t *testing.T) {
	seq := NewSequencerService([]domain.Rule{
		{Priority: 1, Load: "fan", Action: domain.RuleActionOn},
	}, zap.NewNop())

	next, transitions := seq.Evaluate(snapAt("03:00", 1, -10, 900), offStates("fan"))
	assert.True(t, next["fan"].On)
	assert.Len(t, transitions, 1)
}

func TestValidateRules(t *testing.T) {
	loads := []string{"heater", "pump"}

	err := ValidateRules([]domain.Rule{
		{Priority: 1, Load: "heater", Action: domain.RuleActionOn},
	}, loads)
	assert.NoError(t, err)

	err = ValidateRules([]domain.Rule{
		{Priority: 1, Load: "toaster", Action: domain.RuleActionOn},
	}, loads)
	assert.ErrorIs(t, err, domain.ErrInvalidRuleConfiguration)

	err = ValidateRules([]domain.Rule{
		{Priority: 1, Load: "heater", Action: "toggle"},
	}, loads)
	assert.ErrorIs(t, err, domain.ErrInvalidRuleConfiguration)

	err = ValidateRules([]domain.Rule{
		{Priority: 1, Load: "heater", Action: domain.RuleActionOn},
		{Priority: 1, Load: "pump", Action: domain.RuleActionOff},
	}, loads)
	assert.ErrorIs(t, err, domain.ErrInvalidRuleConfiguration)

	err = ValidateRules([]domain.Rule{
		{Priority: -1, Load: "heater", Action: domain.RuleActionOff},
	}, loads)
	assert.ErrorIs(t, err, domain.ErrInvalidRuleConfiguration)

	err = ValidateRules([]domain.Rule{
		{Priority: 1, Load: "heater", Action: domain.RuleActionOn,
			When: domain.RuleCondition{FromMinute: iptr(24 * 60)}},
	}, loads)
	assert.ErrorIs(t, err, domain.ErrInvalidRuleConfiguration)

	err = ValidateRules([]domain.Rule{
		{Priority: 1, Load: "heater", Action: domain.RuleActionOn,
			When: domain.RuleCondition{SoCBelow: fptr(20), SoCAtLeast: fptr(40)}},
	}, loads)
	assert.ErrorIs(t, err, domain.ErrInvalidRuleConfiguration)
}
