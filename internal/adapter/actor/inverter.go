package actor

import (
	"context"
	"fmt"
	"time"

	"github.com/sunsoc/sunsoc/internal/core/domain"
	"github.com/sunsoc/sunsoc/internal/util/actorutil"
	"github.com/sunsoc/sunsoc/pkg/gecloud"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

const (
	INVERTER_ACTOR_ID = "inverter"

	inverterCallTimeout = 15 * time.Second
	historyCallTimeout  = 60 * time.Second
)

// InverterActor serializes access to the inverter cloud API. Requests
// run as background tasks while new messages are stashed.
type InverterActor struct {
	behavior actor.Behavior
	stash    *actorutil.Stash
	client   gecloud.Client
	logger   *zap.Logger
}

type backgroundTaskResult struct {
	message any
	replyTo *actor.PID
}

func NewInverterActor(client gecloud.Client, logger *zap.Logger) *InverterActor {
	act := &InverterActor{
		client:   client,
		behavior: actor.NewBehavior(),
		stash:    &actorutil.Stash{},
		logger:   actorutil.ActorLogger(INVERTER_ACTOR_ID, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *InverterActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *InverterActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("inverter@starting started")
		// ping the API so a bad key or serial fails fast
		actorutil.NewBackgroundTask(ctx, state.getInfo).
			WithTimeout(inverterCallTimeout).
			Recover(func(err error) domain.GetInverterInfoResponse {
				return domain.GetInverterInfoResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				}
			}).PipeTo(ctx.Self())
	case domain.GetInverterInfoResponse:
		if msg.HasResponseError() {
			panic(msg.GetResponseError())
		}
		state.logger.Info("inverter connected",
			zap.String("serial", msg.Info.Serial),
			zap.String("model", msg.Info.Model),
			zap.Float64("battery_capacity_kwh", msg.Info.BatteryCapacityKWh))
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case *actor.Restarting:
	default:
		state.logger.Debug("inverter@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *InverterActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("inverter@default: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      INVERTER_ACTOR_ID,
			Healthy: true,
			State:   "idle",
		})
	case domain.GetInverterInfoRequest:
		state.logger.Debug("inverter@default: GetInverterInfoRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, state.getInfo),
			mapTaskResult[domain.GetInverterInfoResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.GetInverterInfoResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				},
				replyTo: sender,
			}
		}).WithTimeout(inverterCallTimeout).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingInverter)
	case domain.GetInverterStatusRequest:
		state.logger.Debug("inverter@default: GetInverterStatusRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, state.getStatus),
			mapTaskResult[domain.GetInverterStatusResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.GetInverterStatusResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				},
				replyTo: sender,
			}
		}).WithTimeout(inverterCallTimeout).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingInverter)
	case domain.GetConsumptionHistoryRequest:
		state.logger.Debug("inverter@default: GetConsumptionHistoryRequest", zap.Int("days", msg.Days))
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		days := msg.Days
		actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, func() (*domain.GetConsumptionHistoryResponse, error) {
			return state.getConsumptionHistory(days)
		}),
			mapTaskResult[domain.GetConsumptionHistoryResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.GetConsumptionHistoryResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				},
				replyTo: sender,
			}
		}).WithTimeout(historyCallTimeout).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingInverter)
	case domain.SetChargeTargetRequest:
		state.logger.Info("inverter@default: SetChargeTargetRequest", zap.Int("target_soc", msg.TargetSoC))
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		target := msg.TargetSoC
		actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, func() (*domain.SetChargeTargetResponse, error) {
			return state.setChargeTarget(target)
		}),
			mapTaskResult[domain.SetChargeTargetResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.SetChargeTargetResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				},
				replyTo: sender,
			}
		}).WithTimeout(inverterCallTimeout).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingInverter)
	default:
		state.logger.Debug("inverter@default default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *InverterActor) WaitingInverter(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case backgroundTaskResult:
		state.logger.Debug("inverter@waiting backgroundTaskResult", zap.String("type", fmt.Sprintf("%T", msg.message)))
		ctx.Send(msg.replyTo, msg.message)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("inverter@waiting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (a *InverterActor) getInfo() (*domain.GetInverterInfoResponse, error) {
	meta, err := a.client.BatteryMeta(context.Background())
	if err != nil {
		return nil, err
	}
	return &domain.GetInverterInfoResponse{
		Info: &domain.InverterInfo{
			Serial:             meta.Serial,
			Model:              meta.Model,
			Firmware:           meta.Firmware,
			BatteryCapacityKWh: meta.UsableCapacityKWh(),
		},
	}, nil
}

func (a *InverterActor) getStatus() (*domain.GetInverterStatusResponse, error) {
	status, err := a.client.SystemStatus(context.Background())
	if err != nil {
		return nil, err
	}
	return &domain.GetInverterStatusResponse{
		Status: &domain.InverterStatus{
			Time:          status.Time,
			BatterySoC:    status.BatterySoCPct,
			PVPowerWatt:   status.PVPowerWatt,
			LoadPowerWatt: status.ConsumptionWatt,
			GridPowerWatt: status.GridPowerWatt,
		},
	}, nil
}

// getConsumptionHistory fetches the last complete days, most recent
// first. A day that fails to fetch ends the walk so the caller still
// gets what was available.
func (a *InverterActor) getConsumptionHistory(days int) (*domain.GetConsumptionHistoryResponse, error) {
	var records []domain.ConsumptionRecord
	today := localMidnight(time.Now())
	for i := 1; i <= days; i++ {
		date := today.AddDate(0, 0, -i)
		day, err := a.client.DayConsumption(context.Background(), date)
		if err != nil {
			a.logger.Warn("consumption history fetch stopped early",
				zap.Time("date", date), zap.Error(err))
			break
		}
		records = append(records, domain.ConsumptionRecord{
			Date: day.Date,
			KWh:  day.HalfHourKWh,
		})
	}
	return &domain.GetConsumptionHistoryResponse{
		Records: records,
	}, nil
}

func (a *InverterActor) setChargeTarget(target int) (*domain.SetChargeTargetResponse, error) {
	err := a.client.SetChargeTarget(context.Background(), target)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrCollaboratorWrite, err)
	}
	return &domain.SetChargeTargetResponse{
		TargetSoC: target,
	}, nil
}

// localMidnight returns the start of t's day in its own location, so
// the history walk counts days by the wall clock and not UTC.
func localMidnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func mapTaskResult[T any](sender *actor.PID) func(t *T) *backgroundTaskResult {
	return func(t *T) *backgroundTaskResult {
		return &backgroundTaskResult{
			message: *t,
			replyTo: sender,
		}
	}
}
