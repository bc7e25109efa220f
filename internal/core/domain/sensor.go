package domain

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/carlmjohnson/versioninfo"
)

const (
	SENSOR_ID_BRIDGE_STATE            = "bridge"
	SENSOR_ID_BATTERY_SOC             = "battery_soc"
	SENSOR_ID_BATTERY_MAX_CAPACITY    = "battery_max_capacity"
	SENSOR_ID_TARGET_SOC              = "charge_target_soc"
	SENSOR_ID_PROJECTED_MIN_SOC       = "projected_min_soc"
	SENSOR_ID_PLAN_FALLBACK           = "plan_fallback"
	SENSOR_ID_PV_POWER                = "pv_power"
	SENSOR_ID_HOUSE_POWER             = "house_power"
	SENSOR_ID_GRID_POWER              = "grid_power"
	SENSOR_ID_OUTDOOR_TEMP            = "outdoor_temperature"
	SENSOR_ID_CARBON_INTENSITY        = "carbon_intensity"
	SENSOR_ID_CARBON_HIGH_SOON        = "carbon_high_soon"
	SWITCH_ID_PLAN_NOW                = "plan_now"
	INPUT_NUMBER_ID_CHARGE_TARGET_SOC = "charge_target_soc_override"
	LOAD_SWITCH_ID_PREFIX             = "load_"
	STATE_CLASS_MEASUREMENT           = "measurement"
	STATE_CLASS_TOTAL_INCREASING      = "total_increasing"
	DEVICE_CLASS_BATTERY              = "battery"
	DEVICE_CLASS_ENERGY               = "energy"
	DEVICE_CLASS_POWER                = "power"
	DEVICE_CLASS_TEMPERATURE          = "temperature"
	DEVICE_CLASS_CONNECTIVITY         = "connectivity"
	ENTITY_CLASS_DIAGNOSTIC           = "diagnostic"
	ENTITY_CLASS_CONFIG               = "config"
	SENSOR_TYPE_SENSOR                = "sensor"
	SENSOR_TYPE_BINARY                = "binary_sensor"
	INPUT_NUMBER_MODE_BOX             = "box"
	INPUT_NUMBER_MODE_SLIDER          = "slider"
)

// LoadSwitchId is the entity id of a configured load's switch.
func LoadSwitchId(loadName string) string {
	return LOAD_SWITCH_ID_PREFIX + loadName
}

// LoadIdToName recovers the load name from a load switch entity id.
func LoadIdToName(id string) (string, bool) {
	if strings.HasPrefix(id, LOAD_SWITCH_ID_PREFIX) {
		return strings.TrimPrefix(id, LOAD_SWITCH_ID_PREFIX), true
	}
	return "", false
}

func BridgeDevice(baseTopic string) Device {
	return Device{
		Id:           fmt.Sprintf("sunsoc_bridge_%s", md5HashShort(baseTopic)),
		Manufacturer: "SunSoC",
		Model:        "SunSoC",
		Version:      versioninfo.Short(),
		Name:         fmt.Sprintf("SunSoC %s", md5HashShort(baseTopic)),
	}
}

func InverterDevice(info *InverterInfo) Device {
	return Device{
		Id:           fmt.Sprintf("soc_inverter_%s", md5HashShort(info.Serial)),
		Version:      info.Firmware,
		Manufacturer: "GivEnergy",
		Model:        info.Model,
		Name:         fmt.Sprintf("GivEnergy %s %s", info.Model, md5HashShort(info.Serial)),
	}
}

func IdDevice(device Device) Device {
	return Device{
		Id:   device.Id,
		Name: device.Name,
	}
}

func BridgeSensors(bridgeDevice Device) []GenericSensor {

	var sensors []GenericSensor

	// Bridge connectivity
	sensors = append(sensors, GenericSensor{
		Device:         bridgeDevice,
		Id:             SENSOR_ID_BRIDGE_STATE,
		SensorType:     SENSOR_TYPE_BINARY,
		Name:           "Bridge state",
		DeviceClass:    DEVICE_CLASS_CONNECTIVITY,
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(bridgeDevice.Id, SENSOR_ID_BRIDGE_STATE),
	})

	return sensors
}

func InverterBaseSensors(inverterDevice Device) []GenericSensor {

	var sensors []GenericSensor

	// Battery SoC
	sensors = append(sensors, GenericSensor{
		Device:            inverterDevice,
		Id:                SENSOR_ID_BATTERY_SOC,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Battery SoC",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_BATTERY,
		UnitOfMeasurement: "%",
		UniqueId:          uniqueId(inverterDevice.Id, SENSOR_ID_BATTERY_SOC),
	})

	// Battery Max Capacity
	sensors = append(sensors, GenericSensor{
		Device:            inverterDevice,
		Id:                SENSOR_ID_BATTERY_MAX_CAPACITY,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Battery max capacity",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_ENERGY,
		UnitOfMeasurement: "kWh",
		EntityCategory:    ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:          uniqueId(inverterDevice.Id, SENSOR_ID_BATTERY_MAX_CAPACITY),
	})

	// PV Power
	sensors = append(sensors, GenericSensor{
		Device:            inverterDevice,
		Id:                SENSOR_ID_PV_POWER,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "PV power",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_POWER,
		UnitOfMeasurement: "W",
		Icon:              "mdi:solar-power",
		UniqueId:          uniqueId(inverterDevice.Id, SENSOR_ID_PV_POWER),
	})

	// House power
	sensors = append(sensors, GenericSensor{
		Device:            inverterDevice,
		Id:                SENSOR_ID_HOUSE_POWER,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "House power",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_POWER,
		UnitOfMeasurement: "W",
		Icon:              "mdi:home-lightning-bolt",
		UniqueId:          uniqueId(inverterDevice.Id, SENSOR_ID_HOUSE_POWER),
	})

	// Grid power
	sensors = append(sensors, GenericSensor{
		Device:            inverterDevice,
		Id:                SENSOR_ID_GRID_POWER,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Grid power",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_POWER,
		UnitOfMeasurement: "W",
		Icon:              "mdi:transmission-tower",
		UniqueId:          uniqueId(inverterDevice.Id, SENSOR_ID_GRID_POWER),
	})

	return sensors
}

func PlannerSensors(bridgeDevice Device) []GenericSensor {

	var sensors []GenericSensor

	// Overnight charge target
	sensors = append(sensors, GenericSensor{
		Device:            bridgeDevice,
		Id:                SENSOR_ID_TARGET_SOC,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Charge target SoC",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_BATTERY,
		UnitOfMeasurement: "%",
		Icon:              "mdi:battery-charging-high",
		UniqueId:          uniqueId(bridgeDevice.Id, SENSOR_ID_TARGET_SOC),
	})

	// Projected minimum SoC
	sensors = append(sensors, GenericSensor{
		Device:            bridgeDevice,
		Id:                SENSOR_ID_PROJECTED_MIN_SOC,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Projected minimum SoC",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_BATTERY,
		UnitOfMeasurement: "%",
		EntityCategory:    ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:          uniqueId(bridgeDevice.Id, SENSOR_ID_PROJECTED_MIN_SOC),
	})

	// Plan used fallback target
	sensors = append(sensors, GenericSensor{
		Device:         bridgeDevice,
		Id:             SENSOR_ID_PLAN_FALLBACK,
		SensorType:     SENSOR_TYPE_BINARY,
		Name:           "Plan fallback",
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(bridgeDevice.Id, SENSOR_ID_PLAN_FALLBACK),
	})

	return sensors
}

func EnvironmentSensors(bridgeDevice Device) []GenericSensor {

	var sensors []GenericSensor

	// Outdoor temperature
	sensors = append(sensors, GenericSensor{
		Device:            bridgeDevice,
		Id:                SENSOR_ID_OUTDOOR_TEMP,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Outdoor temperature",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_TEMPERATURE,
		UnitOfMeasurement: "°C",
		UniqueId:          uniqueId(bridgeDevice.Id, SENSOR_ID_OUTDOOR_TEMP),
	})

	// Grid carbon intensity
	sensors = append(sensors, GenericSensor{
		Device:            bridgeDevice,
		Id:                SENSOR_ID_CARBON_INTENSITY,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Carbon intensity",
		StateClass:        STATE_CLASS_MEASUREMENT,
		UnitOfMeasurement: "gCO2/kWh",
		Icon:              "mdi:molecule-co2",
		UniqueId:          uniqueId(bridgeDevice.Id, SENSOR_ID_CARBON_INTENSITY),
	})

	// Carbon heading up
	sensors = append(sensors, GenericSensor{
		Device:     bridgeDevice,
		Id:         SENSOR_ID_CARBON_HIGH_SOON,
		SensorType: SENSOR_TYPE_BINARY,
		Name:       "Carbon high soon",
		Icon:       "mdi:trending-up",
		UniqueId:   uniqueId(bridgeDevice.Id, SENSOR_ID_CARBON_HIGH_SOON),
	})

	return sensors
}

func LoadSwitches(bridgeDevice Device, loadNames []string) []GenericSwitch {

	var switches []GenericSwitch

	for _, name := range loadNames {
		switches = append(switches, GenericSwitch{
			Device:   bridgeDevice,
			Id:       LoadSwitchId(name),
			Name:     fmt.Sprintf("Load %s", name),
			Icon:     "mdi:power-socket-eu",
			UniqueId: uniqueId(bridgeDevice.Id, LoadSwitchId(name)),
		})
	}

	return switches
}

func PlanNowSwitch(bridgeDevice Device) GenericSwitch {
	return GenericSwitch{
		Device:   bridgeDevice,
		Id:       SWITCH_ID_PLAN_NOW,
		Name:     "Plan now",
		Icon:     "mdi:calculator-variant",
		UniqueId: uniqueId(bridgeDevice.Id, SWITCH_ID_PLAN_NOW),
	}
}

func ChargeTargetInputNumber(bridgeDevice Device) GenericInputNumber {
	return GenericInputNumber{
		Device:       bridgeDevice,
		Id:           INPUT_NUMBER_ID_CHARGE_TARGET_SOC,
		Name:         "Charge target override",
		Icon:         "mdi:battery-arrow-up",
		Min:          0,
		Max:          100,
		Step:         1,
		Mode:         INPUT_NUMBER_MODE_SLIDER,
		InitialValue: 0,
		UniqueId:     uniqueId(bridgeDevice.Id, INPUT_NUMBER_ID_CHARGE_TARGET_SOC),
	}
}

func uniqueId(deviceId, sensorId string) string {
	return fmt.Sprintf("%s_%s", deviceId, sensorId)
}

func md5HashShort(value string) string {
	hash := md5.Sum([]byte(value))
	return hex.EncodeToString(hash[:])[:8]
}
