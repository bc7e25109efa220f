package domain

import "time"

const (
	ACTOR_ID_MASTER       = "master"
	ACTOR_ID_INVERTER     = "inverter"
	ACTOR_ID_ENVIRON      = "environ"
	ACTOR_ID_MQTT         = "mqtt"
	ACTOR_ID_PLANNER      = "planner"
	ACTOR_ID_SEQUENCER    = "sequencer"
	ACTOR_ID_UPLOAD       = "upload"
	ACTOR_ID_HA_DISCOVERY = "hadiscovery"
)

// InverterInfo identifies the inverter and its battery.
type InverterInfo struct {
	Serial             string
	Model              string
	Firmware           string
	BatteryCapacityKWh float64
}

// InverterStatus is a live reading from the inverter cloud API.
type InverterStatus struct {
	Time          time.Time
	BatterySoC    float64
	PVPowerWatt   float64
	LoadPowerWatt float64
	GridPowerWatt float64
}

// Inverter actor messages

type GetInverterInfoRequest struct {
	ActorRequestMixIn
}

type GetInverterInfoResponse struct {
	ActorResponseMixIn
	Info *InverterInfo
}

type GetInverterStatusRequest struct {
	ActorRequestMixIn
}

type GetInverterStatusResponse struct {
	ActorResponseMixIn
	Status *InverterStatus
}

type GetConsumptionHistoryRequest struct {
	ActorRequestMixIn
	Days int
}

type GetConsumptionHistoryResponse struct {
	ActorResponseMixIn
	Records []ConsumptionRecord
}

type SetChargeTargetRequest struct {
	ActorRequestMixIn
	TargetSoC int
}

type SetChargeTargetResponse struct {
	ActorResponseMixIn
	TargetSoC int
}

// Environ actor messages

type GetGenerationForecastRequest struct {
	ActorRequestMixIn
}

type GetGenerationForecastResponse struct {
	ActorResponseMixIn
	// Raw provider samples per horizon day, not yet on the slot grid.
	Tomorrow   []ForecastPoint
	Overmorrow []ForecastPoint
}

type GetEnvironmentRequest struct {
	ActorRequestMixIn
}

type GetEnvironmentResponse struct {
	ActorResponseMixIn
	TemperatureC    float64
	CarbonIntensity float64
	CarbonHighSoon  bool
}

// Planner actor messages

type RunPlanRequest struct {
	ActorRequestMixIn
}

type RunPlanResponse struct {
	ActorResponseMixIn
	Plan *SoCPlan
}

type GetPlanRequest struct {
	ActorRequestMixIn
}

type GetPlanResponse struct {
	ActorResponseMixIn
	Plan *SoCPlan
}

// Sequencer actor messages

type RunSequenceRequest struct {
	ActorRequestMixIn
}

type RunSequenceResponse struct {
	ActorResponseMixIn
	Transitions []LoadTransition
}

type SetLoadStateRequest struct {
	ActorRequestMixIn
	Load string
	On   bool
}

type SetLoadStateResponse struct {
	ActorResponseMixIn
}

// Upload actor messages

type UploadSnapshotRequest struct {
	ActorRequestMixIn
	Snapshot TelemetrySnapshot
}

type UploadSnapshotResponse struct {
	ActorResponseMixIn
}

// MQTT actor messages

type PublishMessageRequest struct {
	ActorRequestMixIn
	Topic   string
	Payload string
	Retain  bool
}

type PublishMessageResponse struct {
	ActorResponseMixIn
}

type PublishSensorUpdateRequest struct {
	ActorRequestMixIn
	Retain bool
	Event  SensorUpdateEvent
}

type PublishSensorUpdateResponse struct {
	ActorResponseMixIn
}

type PublishDiscoveryRequest struct {
	ActorRequestMixIn
	Sensors      []GenericSensor
	Switches     []GenericSwitch
	InputNumbers []GenericInputNumber
}

type PublishDiscoveryResponse struct {
	ActorResponseMixIn
}

// Health check

type ActorHealthRequest struct {
	ActorRequestMixIn
}

type ActorHealthResponse struct {
	ActorResponseMixIn
	Id      string
	Healthy bool
	State   string
}
