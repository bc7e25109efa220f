package events

import (
	. "github.com/sunsoc/sunsoc/internal/core/domain"
)

func InverterStatusToUpdateEvents(status *InverterStatus) []SensorUpdateEvent {
	var events []SensorUpdateEvent

	// Battery SoC
	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_BATTERY_SOC,
		},
		Value:    status.BatterySoC,
		Decimals: 1,
	})
	// PV Power
	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_PV_POWER,
		},
		Value:    status.PVPowerWatt,
		Decimals: 0,
	})
	// House Power
	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_HOUSE_POWER,
		},
		Value:    status.LoadPowerWatt,
		Decimals: 0,
	})
	// Grid Power
	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_GRID_POWER,
		},
		Value:    status.GridPowerWatt,
		Decimals: 0,
	})

	return events
}

func BatteryCapacityToUpdateEvent(capacityKWh float64) SensorUpdateEvent {
	return FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_BATTERY_MAX_CAPACITY,
		},
		Value:    capacityKWh,
		Decimals: 2,
	}
}

func PlanToUpdateEvents(plan *SoCPlan) []SensorUpdateEvent {
	var events []SensorUpdateEvent

	// Charge target
	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_TARGET_SOC,
		},
		Value:    float64(plan.TargetSoC),
		Decimals: 0,
	})
	// Projected minimum
	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_PROJECTED_MIN_SOC,
		},
		Value:    plan.ProjectedMin,
		Decimals: 1,
	})
	// Fallback flag
	events = append(events, BinarySensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_PLAN_FALLBACK,
		},
		Value: plan.Fallback,
	})

	return events
}

// ChargeTargetToUpdateEvent mirrors the active charge target on the
// override entity's state topic.
func ChargeTargetToUpdateEvent(targetSoC int) SensorUpdateEvent {
	return InputNumberSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: INPUT_NUMBER_ID_CHARGE_TARGET_SOC,
		},
		Value:    float64(targetSoC),
		Decimals: 0,
	}
}

func EnvironmentToUpdateEvents(temperatureC, carbonIntensity float64, carbonHighSoon bool) []SensorUpdateEvent {
	var events []SensorUpdateEvent

	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_OUTDOOR_TEMP,
		},
		Value:    temperatureC,
		Decimals: 1,
	})
	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_CARBON_INTENSITY,
		},
		Value:    carbonIntensity,
		Decimals: 0,
	})
	events = append(events, BinarySensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_CARBON_HIGH_SOON,
		},
		Value: carbonHighSoon,
	})

	return events
}

func LoadStateToUpdateEvent(state LoadState) SensorUpdateEvent {
	return SwitchSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: LoadSwitchId(state.Load),
		},
		Value: state.On,
	}
}
