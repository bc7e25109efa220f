package actor

import (
	"fmt"
	"strconv"
	"strings"
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

const (
	plannerStatusTimeout   = 30 * time.Second
	plannerHistoryTimeout  = 120 * time.Second
	plannerForecastTimeout = 60 * time.Second
	plannerWriteTimeout    = 30 * time.Second
)

// PlannerActor owns the nightly target computation. A run gathers
// inverter data, consumption history and the generation forecast,
// computes the target and writes it back to the inverter.
type PlannerActor struct {
	behavior actor.Behavior
	stash    *Stash

	config        *config.Config
	inverterActor *actor.PID
	environActor  *actor.PID
	mqttActor     *actor.PID
	forecast      port.ForecastBuilder
	baseParams    service.PlannerParams

	lastPlan *domain.SoCPlan
	gather   planGather

	logger *zap.Logger
}

// planGather accumulates the responses of one planning run.
type planGather struct {
	replyTo  *actor.PID
	received int

	info     *domain.InverterInfo
	status   *domain.InverterStatus
	records  []domain.ConsumptionRecord
	forecast *domain.GetGenerationForecastResponse
}

func NewPlannerActor(cfg *config.Config, inverterActor, environActor, mqttActor *actor.PID, logger *zap.Logger) *PlannerActor {
	act := &PlannerActor{
		config:        cfg,
		inverterActor: inverterActor,
		environActor:  environActor,
		mqttActor:     mqttActor,
		behavior:      actor.NewBehavior(),
		stash:         &Stash{},
		logger:        ActorLogger(domain.ACTOR_ID_PLANNER, logger),
		forecast: service.NewForecastService(cfg.Planner.HistoryDays, cfg.Planner.MinHistoryDays,
			cfg.Planner.RecencyWeight, cfg.Planner.DefaultDailyKWh, logger),
		baseParams: service.PlannerParams{
			BatteryCapacityKWh:     cfg.Planner.BatteryCapacityKWh,
			ChargeRateKW:           cfg.Planner.ChargeRateKW,
			MinSoC:                 cfg.Planner.MinSoC,
			MaxSoC:                 cfg.Planner.MaxSoC,
			ShoulderMinSoC:         cfg.Planner.ShoulderMinSoC,
			SafetyMarginPct:        cfg.Planner.SafetyMarginPct,
			OvermorrowThresholdPct: cfg.Planner.OvermorrowThresholdPct,
			DefaultTargetSoC:       cfg.Planner.DefaultTargetSoC,
			ChargeWindowStartSlot:  clockSlot(cfg.Planner.ChargeWindowStart),
			ChargeWindowEndSlot:    clockSlot(cfg.Planner.ChargeWindowEnd),
			WinterMonths:           config.Months(cfg.Planner.WinterMonths),
			ShoulderMonths:         config.Months(cfg.Planner.ShoulderMonths),
		},
	}
	act.behavior.Become(act.DefaultReceive)
	return act
}

func clockSlot(clock string) int {
	if clock == "" {
		return 0
	}
	minute, err := config.ParseClock(clock)
	if err != nil {
		return 0
	}
	return minute / domain.MinutesPerSlot
}

func (state *PlannerActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *PlannerActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("planner@default: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_PLANNER,
			Healthy: true,
			State:   "idle",
		})
	case domain.RunPlanRequest:
		state.logger.Info("planner@default: starting planning run")
		state.gather = planGather{replyTo: ForRequest(msg).ReplyTo(ctx)}

		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.inverterActor, domain.GetInverterInfoRequest{}, plannerStatusTimeout), func(err error) any {
			return domain.GetInverterInfoResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: err},
			}
		})
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.inverterActor, domain.GetInverterStatusRequest{}, plannerStatusTimeout), func(err error) any {
			return domain.GetInverterStatusResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: err},
			}
		})
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.inverterActor, domain.GetConsumptionHistoryRequest{Days: state.config.Planner.HistoryDays}, plannerHistoryTimeout), func(err error) any {
			return domain.GetConsumptionHistoryResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: err},
			}
		})
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.environActor, domain.GetGenerationForecastRequest{}, plannerForecastTimeout), func(err error) any {
			return domain.GetGenerationForecastResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: err},
			}
		})

		state.behavior.BecomeStacked(state.GatheringReceive)
	case domain.GetPlanRequest:
		state.logger.Debug("planner@default: GetPlanRequest")
		ForRequest(msg).Respond(ctx, domain.GetPlanResponse{Plan: state.lastPlan})
	case domain.SetTargetSoCCommand:
		// manual override from MQTT, bypasses planning
		state.logger.Info("planner@default: manual charge target", zap.Uint("target_soc", msg.TargetSoC))
		target := int(msg.TargetSoC)
		state.writeChargeTarget(ctx, target, func(err error) {
			if err != nil {
				return
			}
			ctx.Send(state.mqttActor, domain.PublishSensorUpdateRequest{
				Event:  events.ChargeTargetToUpdateEvent(target),
				Retain: true,
			})
		})
	case domain.RunPlanCommand:
		ctx.Send(ctx.Self(), domain.RunPlanRequest{})
	default:
		state.logger.Debug("planner@default default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// GatheringReceive collects the four responses of a planning run. Every
// request pipes back a typed response even on failure, so counting to
// four is enough.
func (state *PlannerActor) GatheringReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.GetInverterInfoResponse:
		if msg.HasResponseError() {
			state.logger.Warn("planner@gathering: inverter info failed", zap.Error(msg.GetResponseError()))
		} else {
			state.gather.info = msg.Info
		}
		state.gatherStep(ctx)
	case domain.GetInverterStatusResponse:
		if msg.HasResponseError() {
			state.logger.Warn("planner@gathering: inverter status failed", zap.Error(msg.GetResponseError()))
		} else {
			state.gather.status = msg.Status
		}
		state.gatherStep(ctx)
	case domain.GetConsumptionHistoryResponse:
		if msg.HasResponseError() {
			state.logger.Warn("planner@gathering: consumption history failed", zap.Error(msg.GetResponseError()))
		} else {
			state.gather.records = msg.Records
		}
		state.gatherStep(ctx)
	case domain.GetGenerationForecastResponse:
		if msg.HasResponseError() {
			state.logger.Warn("planner@gathering: forecast failed", zap.Error(msg.GetResponseError()))
		} else {
			forecast := msg
			state.gather.forecast = &forecast
		}
		state.gatherStep(ctx)
	default:
		state.logger.Debug("planner@gathering: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *PlannerActor) gatherStep(ctx actor.Context) {
	state.gather.received++
	if state.gather.received < 4 {
		return
	}
	state.behavior.UnbecomeStacked()
	state.runPlan(ctx)
	state.stash.UnstashAll(ctx)
}

func (state *PlannerActor) runPlan(ctx actor.Context) {
	g := state.gather
	replyTo := g.replyTo

	if g.status == nil {
		err := fmt.Errorf("planning run aborted: inverter status unavailable")
		state.logger.Error("planner: run failed", zap.Error(err))
		state.respond(ctx, replyTo, domain.RunPlanResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: err},
		})
		return
	}

	baseline, err := state.forecast.Baseline(g.records)
	if err != nil {
		state.logger.Warn("planner: consumption baseline degraded", zap.Error(err))
	}

	tomorrow := midnight(time.Now().AddDate(0, 0, 1))
	in := port.PlanInput{
		Date:       tomorrow,
		CurrentSoC: g.status.BatterySoC,
		Baseline:   baseline,
	}
	if g.forecast != nil && len(g.forecast.Tomorrow) > 0 {
		fc := state.forecast.Normalize(tomorrow, g.forecast.Tomorrow, state.config.Solar.Weight)
		in.Tomorrow = &fc
		if len(g.forecast.Overmorrow) > 0 {
			om := state.forecast.Normalize(tomorrow.AddDate(0, 0, 1), g.forecast.Overmorrow, state.config.Solar.Weight)
			in.Overmorrow = &om
		}
	}

	// the configured capacity wins, the inverter's reported usable
	// capacity is the fallback
	params := state.baseParams
	if params.BatteryCapacityKWh <= 0 && g.info != nil {
		params.BatteryCapacityKWh = g.info.BatteryCapacityKWh
	}
	if params.BatteryCapacityKWh <= 0 && in.Tomorrow != nil {
		err := fmt.Errorf("planning run aborted: battery capacity unknown")
		state.logger.Error("planner: run failed", zap.Error(err))
		state.respond(ctx, replyTo, domain.RunPlanResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: err},
		})
		return
	}

	var planner port.SoCPlanner = service.NewPlannerService(params, state.logger)
	plan := planner.Compute(in)
	state.lastPlan = &plan

	if len(plan.Projected) > 0 {
		state.logger.Debug("planner: soc chart",
			zap.String("projected", socSeriesCSV(plan.Projected)),
			zap.String("adjusted", socSeriesCSV(plan.Adjusted)))
	}

	state.publishPlan(ctx, &plan, g.info)

	state.writeChargeTarget(ctx, plan.TargetSoC, func(err error) {
		resp := domain.RunPlanResponse{Plan: &plan}
		if err != nil {
			resp.ResponseError = err
		}
		state.respond(ctx, replyTo, resp)
	})
}

func (state *PlannerActor) publishPlan(ctx actor.Context, plan *domain.SoCPlan, info *domain.InverterInfo) {
	for _, ev := range events.PlanToUpdateEvents(plan) {
		ctx.Send(state.mqttActor, domain.PublishSensorUpdateRequest{Event: ev, Retain: true})
	}
	ctx.Send(state.mqttActor, domain.PublishSensorUpdateRequest{
		Event:  events.ChargeTargetToUpdateEvent(plan.TargetSoC),
		Retain: true,
	})
	if info != nil {
		ctx.Send(state.mqttActor, domain.PublishSensorUpdateRequest{
			Event:  events.BatteryCapacityToUpdateEvent(info.BatteryCapacityKWh),
			Retain: true,
		})
	}
}

// writeChargeTarget pushes the target to the inverter. In test mode the
// write is skipped and reported as success.
func (state *PlannerActor) writeChargeTarget(ctx actor.Context, targetSoC int, done func(error)) {
	if state.config.TestMode {
		state.logger.Info("planner: test mode, skipping charge target write", zap.Int("target_soc", targetSoC))
		if done != nil {
			done(nil)
		}
		return
	}
	PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.inverterActor, domain.SetChargeTargetRequest{TargetSoC: targetSoC}, plannerWriteTimeout), func(err error) any {
		return domain.SetChargeTargetResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: err},
		}
	})
	state.behavior.BecomeStacked(func(waitCtx actor.Context) {
		switch msg := waitCtx.Message().(type) {
		case domain.SetChargeTargetResponse:
			var err error
			if msg.HasResponseError() {
				err = msg.GetResponseError()
				state.logger.Error("planner: charge target write failed", zap.Error(err))
			} else {
				state.logger.Info("planner: charge target written", zap.Int("target_soc", targetSoC))
			}
			if done != nil {
				done(err)
			}
			state.behavior.UnbecomeStacked()
			state.stash.UnstashAll(waitCtx)
		default:
			state.logger.Debug("planner@writing: stash", zap.String("type", fmt.Sprintf("%T", msg)))
			state.stash.Stash(waitCtx, msg)
		}
	})
}

func (state *PlannerActor) respond(ctx actor.Context, replyTo *actor.PID, resp domain.RunPlanResponse) {
	if replyTo != nil {
		ctx.Send(replyTo, resp)
	}
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// socSeriesCSV renders a SoC curve as one comma separated line for
// chart dumps in the log.
func socSeriesCSV(points []domain.SoCPoint) string {
	var sb strings.Builder
	for i, p := range points {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(p.SoC, 'f', 1, 64))
	}
	return sb.String()
}
