package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/sunsoc/sunsoc/internal/core/domain"

	"go.uber.org/zap/zapcore"
)

type Config struct {
	LogLevel zapcore.Level
	TestMode bool `mapstructure:"test_mode"`
	OnceMode bool `mapstructure:"once_mode"`

	Inverter  InverterAPIConfig   `mapstructure:"inverter"`
	Solar     SolarForecastConfig `mapstructure:"solar_forecast"`
	Carbon    CarbonConfig        `mapstructure:"carbon"`
	Weather   WeatherConfig       `mapstructure:"weather"`
	PVOutput  PVOutputConfig      `mapstructure:"pvoutput"`
	MQTT      MQTTConfig          `mapstructure:"mqtt"`
	Planner   PlannerConfig       `mapstructure:"planner"`
	Sequencer SequencerConfig     `mapstructure:"sequencer"`

	Port    uint `mapstructure:"port"`
	HttpLog bool `mapstructure:"http_log"`
}

type InverterAPIConfig struct {
	BaseURL       string `mapstructure:"base_url"`
	APIKey        string `mapstructure:"api_key"`
	Serial        string `mapstructure:"serial"`
	TimeoutMillis uint32 `mapstructure:"timeout_millis"`
	MaxRetries    int    `mapstructure:"max_retries"`
}

type SolarForecastConfig struct {
	ResourceIds []string `mapstructure:"resource_ids"`
	APIKey      string   `mapstructure:"api_key"`
	Weight      float64  `mapstructure:"weight"`
}

type CarbonConfig struct {
	BaseURL       string  `mapstructure:"base_url"`
	Region        string  `mapstructure:"region"`
	HighThreshold float64 `mapstructure:"high_threshold"`
}

type WeatherConfig struct {
	APIKey    string  `mapstructure:"api_key"`
	Latitude  float64 `mapstructure:"latitude"`
	Longitude float64 `mapstructure:"longitude"`
}

type PVOutputConfig struct {
	Enable   bool   `mapstructure:"enable"`
	APIKey   string `mapstructure:"api_key"`
	SystemId string `mapstructure:"system_id"`
}

type PlannerConfig struct {
	PlanTime               string  `mapstructure:"plan_time"`
	ChargeWindowStart      string  `mapstructure:"charge_window_start"`
	ChargeWindowEnd        string  `mapstructure:"charge_window_end"`
	BatteryCapacityKWh     float64 `mapstructure:"battery_capacity_kwh"`
	ChargeRateKW           float64 `mapstructure:"charge_rate_kw"`
	MinSoC                 float64 `mapstructure:"min_soc"`
	MaxSoC                 float64 `mapstructure:"max_soc"`
	ShoulderMinSoC         float64 `mapstructure:"shoulder_min_soc"`
	SafetyMarginPct        float64 `mapstructure:"safety_margin_pct"`
	OvermorrowThresholdPct float64 `mapstructure:"overmorrow_threshold_pct"`
	DefaultTargetSoC       int     `mapstructure:"default_target_soc"`
	WinterMonths           []int   `mapstructure:"winter_months"`
	ShoulderMonths         []int   `mapstructure:"shoulder_months"`
	HistoryDays            int     `mapstructure:"history_days"`
	MinHistoryDays         int     `mapstructure:"min_history_days"`
	RecencyWeight          float64 `mapstructure:"recency_weight"`
	DefaultDailyKWh        float64 `mapstructure:"default_daily_kwh"`
}

type SequencerConfig struct {
	IntervalMinutes uint32       `mapstructure:"interval_minutes"`
	Loads           []LoadConfig `mapstructure:"loads"`
	Rules           []RuleConfig `mapstructure:"rules"`
}

type LoadConfig struct {
	Name         string  `mapstructure:"name"`
	CommandTopic string  `mapstructure:"command_topic"`
	PayloadOn    string  `mapstructure:"payload_on"`
	PayloadOff   string  `mapstructure:"payload_off"`
	PowerWatt    float64 `mapstructure:"power_watt"`
}

type RuleConfig struct {
	Priority       int      `mapstructure:"priority"`
	Load           string   `mapstructure:"load"`
	Action         string   `mapstructure:"action"`
	From           string   `mapstructure:"from"`
	Until          string   `mapstructure:"until"`
	SoCBelow       *float64 `mapstructure:"soc_below"`
	SoCAtLeast     *float64 `mapstructure:"soc_at_least"`
	TempBelowC     *float64 `mapstructure:"temp_below_c"`
	TempAtLeastC   *float64 `mapstructure:"temp_at_least_c"`
	CarbonBelow    *float64 `mapstructure:"carbon_below"`
	CarbonAtLeast  *float64 `mapstructure:"carbon_at_least"`
	PVPowerAtLeast *float64 `mapstructure:"pv_power_at_least"`
}

type MQTTConfig struct {
	Host              string
	Port              int
	Username          string
	Password          string
	BaseTopic         string `mapstructure:"base_topic"`
	HADiscoveryEnable bool   `mapstructure:"ha_discovery_enable"`
	HADiscoveryTopic  string `mapstructure:"ha_discovery_topic"`
}

func CheckMQTTTopic(baseTopic string) (string, error) {
	// check and fix base topic
	lowerBaseTopic := strings.ToLower(baseTopic)
	baseTopicRegexp := regexp.MustCompile("^[a-z0-9_]+$")
	matches := baseTopicRegexp.FindAllStringSubmatch(lowerBaseTopic, 1)
	if len(matches) <= 0 {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}

// ParseClock parses a "HH:MM" string to minutes of day.
func ParseClock(value string) (int, error) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: %w", value, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// LoadNames returns the configured load names in configuration order.
func (c SequencerConfig) LoadNames() []string {
	names := make([]string, 0, len(c.Loads))
	for _, l := range c.Loads {
		names = append(names, l.Name)
	}
	return names
}

// LoadByName looks up a load by its configured name.
func (c SequencerConfig) LoadByName(name string) (LoadConfig, bool) {
	for _, l := range c.Loads {
		if l.Name == name {
			return l, true
		}
	}
	return LoadConfig{}, false
}

// ParseRules converts the configured rules to the domain form.
func (c *Config) ParseRules() ([]domain.Rule, error) {
	rules := make([]domain.Rule, 0, len(c.Sequencer.Rules))
	for i, rc := range c.Sequencer.Rules {
		rule := domain.Rule{
			Priority: rc.Priority,
			Load:     rc.Load,
			Action:   domain.RuleAction(rc.Action),
			When: domain.RuleCondition{
				SoCBelow:       rc.SoCBelow,
				SoCAtLeast:     rc.SoCAtLeast,
				TempBelowC:     rc.TempBelowC,
				TempAtLeastC:   rc.TempAtLeastC,
				CarbonBelow:    rc.CarbonBelow,
				CarbonAtLeast:  rc.CarbonAtLeast,
				PVPowerAtLeast: rc.PVPowerAtLeast,
			},
		}
		if rc.From != "" {
			m, err := ParseClock(rc.From)
			if err != nil {
				return nil, fmt.Errorf("%w: rule %d: %s", domain.ErrInvalidRuleConfiguration, i, err)
			}
			rule.When.FromMinute = &m
		}
		if rc.Until != "" {
			m, err := ParseClock(rc.Until)
			if err != nil {
				return nil, fmt.Errorf("%w: rule %d: %s", domain.ErrInvalidRuleConfiguration, i, err)
			}
			rule.When.UntilMinute = &m
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// Months converts configured month numbers, dropping invalid values.
func Months(numbers []int) []time.Month {
	months := make([]time.Month, 0, len(numbers))
	for _, n := range numbers {
		if n >= 1 && n <= 12 {
			months = append(months, time.Month(n))
		}
	}
	return months
}
