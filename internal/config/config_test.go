package config

import (
	"testing"
	"time"

	"github.com/sunsoc/sunsoc/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckMQTTTopic(t *testing.T) {
	topic, err := CheckMQTTTopic("SunSoC")
	assert.NoError(t, err)
	assert.Equal(t, "sunsoc", topic)

	_, err = CheckMQTTTopic("bad topic/name")
	assert.Error(t, err)
}

func TestParseClock(t *testing.T) {
	m, err := ParseClock("00:37")
	require.NoError(t, err)
	assert.Equal(t, 37, m)

	m, err = ParseClock("23:59")
	require.NoError(t, err)
	assert.Equal(t, 23*60+59, m)

	_, err = ParseClock("24:00")
	assert.Error(t, err)
	_, err = ParseClock("late")
	assert.Error(t, err)
}

func TestParseRules(t *testing.T) {
	soc := 40.0
	cfg := Config{
		Sequencer: SequencerConfig{
			Rules: []RuleConfig{
				{Priority: 1, Load: "heater", Action: "on", From: "23:00", Until: "06:00", SoCAtLeast: &soc},
				{Priority: 2, Load: "heater", Action: "off"},
			},
		},
	}

	rules, err := cfg.ParseRules()
	require.NoError(t, err)
	require.Len(t, rules, 2)

	require.NotNil(t, rules[0].When.FromMinute)
	assert.Equal(t, 23*60, *rules[0].When.FromMinute)
	require.NotNil(t, rules[0].When.UntilMinute)
	assert.Equal(t, 6*60, *rules[0].When.UntilMinute)
	assert.Equal(t, domain.RuleActionOn, rules[0].Action)
	assert.Equal(t, &soc, rules[0].When.SoCAtLeast)

	assert.Nil(t, rules[1].When.FromMinute)
}

func TestParseRulesBadClock(t *testing.T) {
	cfg := Config{
		Sequencer: SequencerConfig{
			Rules: []RuleConfig{
				{Priority: 1, Load: "heater", Action: "on", From: "25:00"},
			},
		},
	}

	_, err := cfg.ParseRules()
	assert.ErrorIs(t, err, domain.ErrInvalidRuleConfiguration)
}

func TestMonths(t *testing.T) {
	months := Months([]int{1, 2, 11, 12, 0, 13})
	assert.Equal(t, []time.Month{time.January, time.February, time.November, time.December}, months)
}
