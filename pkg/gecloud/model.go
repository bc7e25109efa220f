package gecloud

import "time"

// SystemStatus is a live reading of the inverter and battery.
type SystemStatus struct {
	Time             time.Time
	BatterySoCPct    float64
	PVPowerWatt      float64
	GridPowerWatt    float64
	BatteryPowerWatt float64
	ConsumptionWatt  float64
}

// BatteryMeta describes the inverter and its attached battery.
type BatteryMeta struct {
	Serial         string
	Model          string
	Firmware       string
	CapacityKWh    float64
	UsableFraction float64
}

// UsableCapacityKWh is the capacity the planner should work with.
func (m BatteryMeta) UsableCapacityKWh() float64 {
	if m.UsableFraction <= 0 || m.UsableFraction > 1 {
		return m.CapacityKWh
	}
	return m.CapacityKWh * m.UsableFraction
}

// DayConsumption is one day of household consumption in half-hour bins.
type DayConsumption struct {
	Date        time.Time
	HalfHourKWh [48]float64
}

// wire types

type systemDataResponse struct {
	Data struct {
		Time    string `json:"time"`
		Battery struct {
			Percent float64 `json:"percent"`
			Power   float64 `json:"power"`
		} `json:"battery"`
		Solar struct {
			Power float64 `json:"power"`
		} `json:"solar"`
		Grid struct {
			Power float64 `json:"power"`
		} `json:"grid"`
		Consumption float64 `json:"consumption"`
	} `json:"data"`
}

type deviceResponse struct {
	Data struct {
		Serial  string `json:"serial"`
		Model   string `json:"model"`
		Battery struct {
			NominalCapacityKWh float64 `json:"nominal_capacity_kwh"`
			DepthOfDischarge   float64 `json:"depth_of_discharge"`
		} `json:"battery"`
		Firmware struct {
			Version string `json:"version"`
		} `json:"firmware_version"`
	} `json:"data"`
}

type meterDataResponse struct {
	Data []struct {
		Time  string `json:"time"`
		Today struct {
			Consumption float64 `json:"consumption"`
		} `json:"today"`
	} `json:"data"`
}

type settingResponse struct {
	Data struct {
		Value any `json:"value"`
	} `json:"data"`
}

type settingWriteRequest struct {
	Value any `json:"value"`
}
