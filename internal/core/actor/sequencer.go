package actor

import (
	"fmt"
	"time"

	"github.com/sunsoc/sunsoc/internal/config"
	"github.com/sunsoc/sunsoc/internal/core/domain"
	"github.com/sunsoc/sunsoc/internal/core/events"
	"github.com/sunsoc/sunsoc/internal/core/port"
	"github.com/sunsoc/sunsoc/internal/core/service"
	. "github.com/sunsoc/sunsoc/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

const sequencerGatherTimeout = 30 * time.Second

// SequencerActor runs the rule engine on a fixed interval. Each tick
// gathers a telemetry snapshot, evaluates the rules and dispatches MQTT
// commands for the loads whose desired state changed.
type SequencerActor struct {
	behavior actor.Behavior
	stash    *Stash

	config        *config.Config
	inverterActor *actor.PID
	environActor  *actor.PID
	mqttActor     *actor.PID
	uploadActor   *actor.PID
	sequencer     port.LoadSequencer

	states map[string]domain.LoadState
	gather sequenceGather

	logger *zap.Logger
}

type sequenceGather struct {
	replyTo  *actor.PID
	received int

	status *domain.InverterStatus
	env    *domain.GetEnvironmentResponse
}

func NewSequencerActor(cfg *config.Config, rules []domain.Rule, inverterActor, environActor, mqttActor, uploadActor *actor.PID, logger *zap.Logger) *SequencerActor {
	act := &SequencerActor{
		config:        cfg,
		inverterActor: inverterActor,
		environActor:  environActor,
		mqttActor:     mqttActor,
		uploadActor:   uploadActor,
		sequencer:     service.NewSequencerService(rules, logger),
		behavior:      actor.NewBehavior(),
		stash:         &Stash{},
		logger:        ActorLogger(domain.ACTOR_ID_SEQUENCER, logger),
	}
	act.behavior.Become(act.DefaultReceive)
	return act
}

func (state *SequencerActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *SequencerActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		// loads start from a known off state, the first tick turns on
		// whatever the rules ask for
		state.states = make(map[string]domain.LoadState, len(state.config.Sequencer.Loads))
		now := time.Now()
		for _, load := range state.config.Sequencer.Loads {
			state.states[load.Name] = domain.LoadState{Load: load.Name, On: false, ChangedAt: now}
		}
	case domain.ActorHealthRequest:
		state.logger.Debug("sequencer@default: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_SEQUENCER,
			Healthy: true,
			State:   "idle",
		})
	case domain.RunSequenceRequest:
		state.logger.Debug("sequencer@default: starting sequence run")
		state.gather = sequenceGather{replyTo: ForRequest(msg).ReplyTo(ctx)}

		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.inverterActor, domain.GetInverterStatusRequest{}, sequencerGatherTimeout), func(err error) any {
			return domain.GetInverterStatusResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: err},
			}
		})
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.environActor, domain.GetEnvironmentRequest{}, sequencerGatherTimeout), func(err error) any {
			return domain.GetEnvironmentResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: err},
			}
		})

		state.behavior.BecomeStacked(state.GatheringReceive)
	case domain.SetLoadStateRequest:
		// manual override, applied immediately and reflected in state so
		// the next tick does not fight it unless a rule says otherwise
		state.logger.Info("sequencer@default: manual load override",
			zap.String("load", msg.Load), zap.Bool("on", msg.On))
		resp := domain.SetLoadStateResponse{}
		if err := state.applyLoadState(ctx, msg.Load, msg.On); err != nil {
			resp.ResponseError = err
		}
		ForRequest(msg).Respond(ctx, resp)
	case domain.LoadOverrideCommand:
		if err := state.applyLoadState(ctx, msg.Load, msg.On); err != nil {
			state.logger.Warn("sequencer@default: load override failed", zap.Error(err))
		}
	default:
		state.logger.Debug("sequencer@default default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *SequencerActor) GatheringReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.GetInverterStatusResponse:
		if msg.HasResponseError() {
			state.logger.Warn("sequencer@gathering: inverter status failed", zap.Error(msg.GetResponseError()))
		} else {
			state.gather.status = msg.Status
		}
		state.gatherStep(ctx)
	case domain.GetEnvironmentResponse:
		if msg.HasResponseError() {
			state.logger.Warn("sequencer@gathering: environment failed", zap.Error(msg.GetResponseError()))
		} else {
			env := msg
			state.gather.env = &env
		}
		state.gatherStep(ctx)
	default:
		state.logger.Debug("sequencer@gathering: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *SequencerActor) gatherStep(ctx actor.Context) {
	state.gather.received++
	if state.gather.received < 2 {
		return
	}
	state.behavior.UnbecomeStacked()
	state.runSequence(ctx)
	state.stash.UnstashAll(ctx)
}

func (state *SequencerActor) runSequence(ctx actor.Context) {
	g := state.gather
	if g.status == nil || g.env == nil {
		// a tick without telemetry holds every load where it is
		err := fmt.Errorf("sequence run skipped: telemetry unavailable")
		state.logger.Warn("sequencer: run skipped", zap.Error(err))
		state.respond(ctx, g.replyTo, domain.RunSequenceResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: err},
		})
		return
	}

	snapshot := domain.TelemetrySnapshot{
		Time:            time.Now(),
		BatterySoC:      g.status.BatterySoC,
		PVPowerWatt:     g.status.PVPowerWatt,
		LoadPowerWatt:   g.status.LoadPowerWatt,
		TemperatureC:    g.env.TemperatureC,
		CarbonIntensity: g.env.CarbonIntensity,
		CarbonHighSoon:  g.env.CarbonHighSoon,
	}

	next, transitions := state.sequencer.Evaluate(snapshot, state.states)
	state.states = next

	for _, tr := range transitions {
		state.logger.Info("sequencer: load transition",
			zap.String("load", tr.Load), zap.Bool("on", tr.On))
		state.dispatch(ctx, tr.Load, tr.On)
	}

	for _, ev := range events.InverterStatusToUpdateEvents(g.status) {
		ctx.Send(state.mqttActor, domain.PublishSensorUpdateRequest{Event: ev})
	}
	state.publishEnvironment(ctx, g.env)

	if state.config.PVOutput.Enable && state.uploadActor != nil && !state.config.TestMode {
		ctx.Send(state.uploadActor, domain.UploadSnapshotRequest{Snapshot: snapshot})
	}

	state.respond(ctx, g.replyTo, domain.RunSequenceResponse{Transitions: transitions})
}

// applyLoadState is the manual path around the rule engine.
func (state *SequencerActor) applyLoadState(ctx actor.Context, load string, on bool) error {
	if _, ok := state.config.Sequencer.LoadByName(load); !ok {
		return fmt.Errorf("unknown load %q", load)
	}
	state.dispatch(ctx, load, on)
	state.states[load] = domain.LoadState{Load: load, On: on, ChangedAt: time.Now()}
	return nil
}

// dispatch publishes the on/off command on the load's own command topic
// and mirrors the new state on the bridge's switch topic.
func (state *SequencerActor) dispatch(ctx actor.Context, load string, on bool) {
	cfg, ok := state.config.Sequencer.LoadByName(load)
	if !ok {
		return
	}
	payload := cfg.PayloadOff
	if on {
		payload = cfg.PayloadOn
	}
	ctx.Send(state.mqttActor, domain.PublishMessageRequest{
		Topic:   cfg.CommandTopic,
		Payload: payload,
		Retain:  false,
	})
	ctx.Send(state.mqttActor, domain.PublishSensorUpdateRequest{
		Event: events.LoadStateToUpdateEvent(domain.LoadState{Load: load, On: on}),
	})
}

func (state *SequencerActor) publishEnvironment(ctx actor.Context, env *domain.GetEnvironmentResponse) {
	for _, ev := range events.EnvironmentToUpdateEvents(env.TemperatureC, env.CarbonIntensity, env.CarbonHighSoon) {
		ctx.Send(state.mqttActor, domain.PublishSensorUpdateRequest{Event: ev})
	}
}

func (state *SequencerActor) respond(ctx actor.Context, replyTo *actor.PID, resp domain.RunSequenceResponse) {
	if replyTo != nil {
		ctx.Send(replyTo, resp)
	}
}
