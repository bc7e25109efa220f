package util

import (
	"github.com/sunsoc/sunsoc/internal/config"

	"go.uber.org/zap"
)

func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel: zap.DebugLevel,
		TestMode: true,
		Inverter: config.InverterAPIConfig{
			BaseURL:       "http://localhost:0",
			APIKey:        "test",
			Serial:        "CE0000000000",
			TimeoutMillis: 1000,
			MaxRetries:    1,
		},
		MQTT: config.MQTTConfig{
			Host:      "localhost",
			Port:      1883,
			BaseTopic: "sunsoc",
		},
		Planner: config.PlannerConfig{
			PlanTime:           "00:35",
			ChargeWindowStart:  "00:37",
			ChargeWindowEnd:    "04:30",
			BatteryCapacityKWh: 10.4,
			ChargeRateKW:       3,
			MinSoC:             20,
			MaxSoC:             100,
			ShoulderMinSoC:     40,
			SafetyMarginPct:    5,
			DefaultTargetSoC:   80,
			WinterMonths:       []int{11, 12, 1, 2},
			ShoulderMonths:     []int{3, 4, 9, 10},
			HistoryDays:        7,
			MinHistoryDays:     3,
			RecencyWeight:      2,
			DefaultDailyKWh:    10,
		},
		Sequencer: config.SequencerConfig{
			IntervalMinutes: 5,
			Loads: []config.LoadConfig{
				{
					Name:         "heater",
					CommandTopic: "test/heater/set",
					PayloadOn:    "ON",
					PayloadOff:   "OFF",
					PowerWatt:    2000,
				},
			},
		},
		Port: 8080,
	}
}
