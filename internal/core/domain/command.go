package domain

import "fmt"

// OperatorCommand is a command parsed from an MQTT control topic,
// routed by the master actor.

type OperatorCommand interface {
	ActorRequest
	OperatorCommand() string
}

type OperatorCommandMixIn struct {
	ActorRequestMixIn
}

func (r OperatorCommandMixIn) OperatorCommand() string {
	return fmt.Sprintf("%T", r)
}

// Operator commands

// LoadOverrideCommand forces a load on or off from Home Assistant,
// bypassing the rule engine until the next matching rule fires.
type LoadOverrideCommand struct {
	OperatorCommandMixIn
	Load string
	On   bool
}

// SetTargetSoCCommand overrides tonight's charge target.
type SetTargetSoCCommand struct {
	OperatorCommandMixIn
	TargetSoC uint
}

// RunPlanCommand triggers a planning run outside the schedule.
type RunPlanCommand struct {
	OperatorCommandMixIn
}

// ensure interface compliance
var _ OperatorCommand = (*LoadOverrideCommand)(nil)
