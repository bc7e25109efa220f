package actor

import (
	"errors"
	"fmt"
	"log"
	"time"

	adactor "github.com/sunsoc/sunsoc/internal/adapter/actor"
	"github.com/sunsoc/sunsoc/internal/config"
	"github.com/sunsoc/sunsoc/internal/core/domain"
	. "github.com/sunsoc/sunsoc/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

type InverterActorProvider func() *adactor.InverterActor

type MQTTActorProvider func() *adactor.MQTTActor

type EnvironActorProvider func() *adactor.EnvironActor

type UploadActorProvider func() *adactor.UploadActor

// PlanTick and SequenceTick are sent by the scheduler.

type PlanTick struct {
}

type SequenceTick struct {
}

// MasterOfPuppetsActor supervises the actor tree and routes operator
// commands and scheduler ticks to the right child.
type MasterOfPuppetsActor struct {
	config   config.Config
	rules    []domain.Rule
	behavior actor.Behavior
	stash    *Stash

	currentHealthCheck healthCheckResult
	inverterActor      *actor.PID
	mqttActor          *actor.PID
	environActor       *actor.PID
	uploadActor        *actor.PID
	plannerActor       *actor.PID
	sequencerActor     *actor.PID

	inverterActorProvider InverterActorProvider
	mqttActorProvider     MQTTActorProvider
	environActorProvider  EnvironActorProvider
	uploadActorProvider   UploadActorProvider

	logger *zap.Logger
}

type healthCheckResult struct {
	healthy        map[string]bool
	checksReceived int
	checksExpected int
	respondTo      *actor.PID
}

func NewMasterOfPuppetsActor(config config.Config, rules []domain.Rule,
	inverterActorProvider InverterActorProvider, mqttActorProvider MQTTActorProvider,
	environActorProvider EnvironActorProvider, uploadActorProvider UploadActorProvider,
	logger *zap.Logger) *MasterOfPuppetsActor {
	act := &MasterOfPuppetsActor{
		config:                config,
		rules:                 rules,
		behavior:              actor.NewBehavior(),
		stash:                 &Stash{},
		logger:                ActorLogger(domain.ACTOR_ID_MASTER, logger),
		inverterActorProvider: inverterActorProvider,
		mqttActorProvider:     mqttActorProvider,
		environActorProvider:  environActorProvider,
		uploadActorProvider:   uploadActorProvider,
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *MasterOfPuppetsActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *MasterOfPuppetsActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("master@starting started")

		state.currentHealthCheck = healthCheckResult{}
		state.currentHealthCheck.reset(state.watchedActorIds())

		// start inverter child
		inverterActorPID, err := state.startInverterActor(ctx)
		if err != nil {
			panic(err)
		}
		state.inverterActor = inverterActorPID

		// start MQTT child
		mqttActorPID, err := state.startMQTTActor(ctx)
		if err != nil {
			panic(err)
		}
		state.mqttActor = mqttActorPID

		// start environ child
		environActorPID, err := state.startEnvironActor(ctx)
		if err != nil {
			panic(err)
		}
		state.environActor = environActorPID

		// start upload child
		if state.uploadActorProvider != nil {
			uploadActorPID, err := state.startUploadActor(ctx)
			if err != nil {
				panic(err)
			}
			state.uploadActor = uploadActorPID
		}

		// start planner child
		plannerActorPID, err := state.startPlannerActor(ctx)
		if err != nil {
			panic(err)
		}
		state.plannerActor = plannerActorPID

		// start sequencer child
		sequencerActorPID, err := state.startSequencerActor(ctx)
		if err != nil {
			panic(err)
		}
		state.sequencerActor = sequencerActorPID

		// start HA Discovery
		if state.config.MQTT.HADiscoveryEnable {
			_, err := state.startHADiscoveryActor(ctx)
			if err != nil {
				panic(err)
			}
		}

		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("master@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) watchedActorIds() []string {
	ids := []string{
		domain.ACTOR_ID_INVERTER,
		domain.ACTOR_ID_MQTT,
		domain.ACTOR_ID_ENVIRON,
		domain.ACTOR_ID_PLANNER,
		domain.ACTOR_ID_SEQUENCER,
	}
	return ids
}

func (state *MasterOfPuppetsActor) pidForActorId(id string) *actor.PID {
	switch id {
	case domain.ACTOR_ID_INVERTER:
		return state.inverterActor
	case domain.ACTOR_ID_MQTT:
		return state.mqttActor
	case domain.ACTOR_ID_ENVIRON:
		return state.environActor
	case domain.ACTOR_ID_PLANNER:
		return state.plannerActor
	case domain.ACTOR_ID_SEQUENCER:
		return state.sequencerActor
	}
	return nil
}

func (state *MasterOfPuppetsActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("master@default ActorHealthRequest")
		state.currentHealthCheck.reset(state.watchedActorIds())
		state.currentHealthCheck.respondTo = ctx.Sender()
		for _, id := range state.watchedActorIds() {
			actorId := id
			PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.pidForActorId(actorId), domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
				return domain.ActorHealthResponse{
					Id:      actorId,
					Healthy: false,
				}
			})
		}

		ctx.SetReceiveTimeout(1 * time.Second)

		state.behavior.BecomeStacked(state.HealthCheckReceive)
	case adactor.ParsedCommand:
		// route parsed operator command to the owning actor
		state.logger.Debug("master@default parsedCommand", zap.Any("command", msg.Command))
		if msg.Command != nil {
			cmd, err := ParsedMQTTCommandToCommand(*msg.Command)
			if err == nil && cmd != nil {
				switch pcmd := cmd.(type) {
				case domain.LoadOverrideCommand:
					ctx.Send(state.sequencerActor, pcmd)
				case domain.SetTargetSoCCommand:
					ctx.Send(state.plannerActor, pcmd)
				case domain.RunPlanCommand:
					ctx.Send(state.plannerActor, domain.RunPlanRequest{})
				}
			}
		}
	case PlanTick:
		state.logger.Debug("master@default planTick")
		ctx.Send(state.plannerActor, domain.RunPlanRequest{})
	case SequenceTick:
		state.logger.Debug("master@default sequenceTick")
		ctx.Send(state.sequencerActor, domain.RunSequenceRequest{})
	case domain.RunPlanRequest:
		if msg.ReplyToRef == nil && ctx.Sender() != nil {
			msg.ReplyToRef = (*domain.ActorRef)(ctx.Sender())
		}
		ctx.Send(state.plannerActor, msg)
	case domain.GetPlanRequest:
		if msg.ReplyToRef == nil && ctx.Sender() != nil {
			msg.ReplyToRef = (*domain.ActorRef)(ctx.Sender())
		}
		ctx.Send(state.plannerActor, msg)
	case domain.RunSequenceRequest:
		if msg.ReplyToRef == nil && ctx.Sender() != nil {
			msg.ReplyToRef = (*domain.ActorRef)(ctx.Sender())
		}
		ctx.Send(state.sequencerActor, msg)
	case *actor.Terminated:
		// if the inverter actor fails on boot, terminate
		if msg.Who.Id == fmt.Sprintf("%s/%s", domain.ACTOR_ID_MASTER, domain.ACTOR_ID_INVERTER) {
			state.logger.Error("master@default inverter error")
			panic(errors.New("inverter terminated"))
		}
	default:
		state.logger.Debug("master@default stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) HealthCheckReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.ReceiveTimeout:
		// if some actor does not respond to healthCheck, assume not healthy
		state.currentHealthCheck.respond(ctx)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case domain.ActorHealthResponse:
		state.logger.Debug("master@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		state.currentHealthCheck.checksReceived++
		if msg.Healthy {
			state.currentHealthCheck.healthy[msg.Id] = true
		}
		if state.currentHealthCheck.allReceived() {

			state.currentHealthCheck.respond(ctx)

			state.behavior.UnbecomeStacked()
			state.stash.UnstashAll(ctx)
		} else {
			ctx.SetReceiveTimeout(1 * time.Second)
		}
	default:
		state.logger.Debug("master@healthcheck stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) startInverterActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	inverterProps := actor.PropsFromProducer(func() actor.Actor {
		return state.inverterActorProvider()
	}, actor.WithSupervisor(supervisor))
	inverterActorPID, err := ctx.SpawnNamed(inverterProps, domain.ACTOR_ID_INVERTER)
	if err != nil {
		return nil, err
	}

	return inverterActorPID, nil
}

func (state *MasterOfPuppetsActor) startMQTTActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	mqttProps := actor.PropsFromProducer(func() actor.Actor {
		return state.mqttActorProvider()
	}, actor.WithSupervisor(supervisor))
	mqttActorPID, err := ctx.SpawnNamed(mqttProps, domain.ACTOR_ID_MQTT)
	if err != nil {
		return nil, err
	}

	return mqttActorPID, nil
}

func (state *MasterOfPuppetsActor) startEnvironActor(ctx actor.Context) (*actor.PID, error) {

	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(1, 10*time.Second, decider)

	environProps := actor.PropsFromProducer(func() actor.Actor {
		return state.environActorProvider()
	}, actor.WithSupervisor(supervisor))
	environActorPID, err := ctx.SpawnNamed(environProps, domain.ACTOR_ID_ENVIRON)
	if err != nil {
		return nil, err
	}

	return environActorPID, nil
}

func (state *MasterOfPuppetsActor) startUploadActor(ctx actor.Context) (*actor.PID, error) {

	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(1, 10*time.Second, decider)

	uploadProps := actor.PropsFromProducer(func() actor.Actor {
		return state.uploadActorProvider()
	}, actor.WithSupervisor(supervisor))
	uploadActorPID, err := ctx.SpawnNamed(uploadProps, domain.ACTOR_ID_UPLOAD)
	if err != nil {
		return nil, err
	}

	return uploadActorPID, nil
}

func (state *MasterOfPuppetsActor) startPlannerActor(ctx actor.Context) (*actor.PID, error) {

	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(1, 10*time.Second, decider)

	plannerProps := actor.PropsFromProducer(func() actor.Actor {
		return NewPlannerActor(&state.config, state.inverterActor, state.environActor, state.mqttActor, state.logger)
	}, actor.WithSupervisor(supervisor))
	plannerActorPID, err := ctx.SpawnNamed(plannerProps, domain.ACTOR_ID_PLANNER)
	if err != nil {
		return nil, err
	}

	return plannerActorPID, nil
}

func (state *MasterOfPuppetsActor) startSequencerActor(ctx actor.Context) (*actor.PID, error) {

	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(1, 10*time.Second, decider)

	sequencerProps := actor.PropsFromProducer(func() actor.Actor {
		return NewSequencerActor(&state.config, state.rules, state.inverterActor, state.environActor, state.mqttActor, state.uploadActor, state.logger)
	}, actor.WithSupervisor(supervisor))
	sequencerActorPID, err := ctx.SpawnNamed(sequencerProps, domain.ACTOR_ID_SEQUENCER)
	if err != nil {
		return nil, err
	}

	return sequencerActorPID, nil
}

func (state *MasterOfPuppetsActor) startHADiscoveryActor(ctx actor.Context) (*actor.PID, error) {

	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(1, 10*time.Second, decider)

	haDiscProps := actor.PropsFromProducer(func() actor.Actor {
		return NewHADiscoveryActor(&state.config, state.inverterActor, state.mqttActor, state.logger)
	}, actor.WithSupervisor(supervisor))
	haDiscPID, err := ctx.SpawnNamed(haDiscProps, domain.ACTOR_ID_HA_DISCOVERY)
	if err != nil {
		return nil, err
	}

	return haDiscPID, nil
}

func (state *healthCheckResult) reset(ids []string) {
	state.healthy = make(map[string]bool, len(ids))
	state.checksReceived = 0
	state.checksExpected = len(ids)
}

func (state *healthCheckResult) allReceived() bool {
	return state.checksReceived == state.checksExpected
}

func (state *healthCheckResult) allHealthy() bool {
	if len(state.healthy) < state.checksExpected {
		return false
	}
	for _, ok := range state.healthy {
		if !ok {
			return false
		}
	}
	return true
}

func (state *healthCheckResult) respond(ctx actor.Context) {
	resp := domain.ActorHealthResponse{
		Id:      domain.ACTOR_ID_MASTER,
		Healthy: state.allHealthy(),
	}
	if state.respondTo != nil {
		ctx.Send(state.respondTo, resp)
	}
}
