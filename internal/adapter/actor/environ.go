package actor

import (
	"context"
	"fmt"
	"time"

	"github.com/sunsoc/sunsoc/internal/core/domain"
	"github.com/sunsoc/sunsoc/internal/util/actorutil"
	"github.com/sunsoc/sunsoc/pkg/carbonapi"
	"github.com/sunsoc/sunsoc/pkg/solcast"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

const (
	environCallTimeout = 30 * time.Second

	environmentCacheTTL = 10 * time.Minute
)

type SolarForecastProvider interface {
	GetForecast(ctx context.Context) (*solcast.Forecast, error)
}

type CarbonIntensityProvider interface {
	Current(ctx context.Context) (float64, error)
	Forecast24h(ctx context.Context, from time.Time) ([]carbonapi.Slot, error)
}

type WeatherProvider interface {
	CurrentTemperature(ctx context.Context) (float64, error)
}

// EnvironActor gathers external signals: solar generation forecasts,
// grid carbon intensity and outdoor temperature. Environment reads are
// cached so frequent sequencer ticks do not hammer the providers.
type EnvironActor struct {
	behavior      actor.Behavior
	stash         *actorutil.Stash
	solar         SolarForecastProvider
	carbon        CarbonIntensityProvider
	weather       WeatherProvider
	highThreshold float64
	logger        *zap.Logger

	cachedEnv   *domain.GetEnvironmentResponse
	cachedEnvAt time.Time
}

func NewEnvironActor(solar SolarForecastProvider, carbon CarbonIntensityProvider,
	weather WeatherProvider, highThreshold float64, logger *zap.Logger) *EnvironActor {
	act := &EnvironActor{
		solar:         solar,
		carbon:        carbon,
		weather:       weather,
		highThreshold: highThreshold,
		behavior:      actor.NewBehavior(),
		stash:         &actorutil.Stash{},
		logger:        actorutil.ActorLogger(domain.ACTOR_ID_ENVIRON, logger),
	}
	act.behavior.Become(act.DefaultReceive)
	return act
}

func (state *EnvironActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *EnvironActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("environ@default: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_ENVIRON,
			Healthy: true,
			State:   "idle",
		})
	case domain.GetGenerationForecastRequest:
		state.logger.Debug("environ@default: GetGenerationForecastRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, state.getForecast),
			mapTaskResult[domain.GetGenerationForecastResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.GetGenerationForecastResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				},
				replyTo: sender,
			}
		}).WithTimeout(environCallTimeout).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingEnviron)
	case domain.GetEnvironmentRequest:
		state.logger.Debug("environ@default: GetEnvironmentRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		if state.cachedEnv != nil && time.Since(state.cachedEnvAt) < environmentCacheTTL {
			resp := *state.cachedEnv
			if sender != nil {
				ctx.Send(sender, resp)
			}
			return
		}
		actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, state.getEnvironment),
			mapTaskResult[domain.GetEnvironmentResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.GetEnvironmentResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				},
				replyTo: sender,
			}
		}).WithTimeout(environCallTimeout).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingEnviron)
	default:
		state.logger.Debug("environ@default default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// WaitingEnviron waits for the in-flight provider call to complete.
// Any other message is stashed until then.
func (state *EnvironActor) WaitingEnviron(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case backgroundTaskResult:
		if env, ok := msg.message.(domain.GetEnvironmentResponse); ok && !env.HasResponseError() {
			state.cachedEnv = &env
			state.cachedEnvAt = time.Now()
		}
		if msg.replyTo != nil {
			ctx.Send(msg.replyTo, msg.message)
		}
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("environ@waiting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *EnvironActor) getForecast() (*domain.GetGenerationForecastResponse, error) {
	if state.solar == nil {
		return nil, fmt.Errorf("get forecast: %w", domain.ErrForecastUnavailable)
	}
	forecast, err := state.solar.GetForecast(context.Background())
	if err != nil {
		return nil, fmt.Errorf("get forecast: %w", err)
	}
	now := time.Now()
	tomorrow := now.AddDate(0, 0, 1)
	overmorrow := now.AddDate(0, 0, 2)
	return &domain.GetGenerationForecastResponse{
		Tomorrow:   energyToForecastPoints(forecast.DayEnergy(tomorrow)),
		Overmorrow: energyToForecastPoints(forecast.DayEnergy(overmorrow)),
	}, nil
}

func (state *EnvironActor) getEnvironment() (*domain.GetEnvironmentResponse, error) {
	resp := &domain.GetEnvironmentResponse{}

	intensity, err := state.carbon.Current(context.Background())
	if err != nil {
		return nil, fmt.Errorf("carbon intensity: %w", err)
	}
	resp.CarbonIntensity = intensity

	slots, err := state.carbon.Forecast24h(context.Background(), time.Now())
	if err != nil {
		state.logger.Warn("carbon forecast unavailable", zap.Error(err))
	} else {
		resp.CarbonHighSoon = carbonapi.HighSoon(slots, state.highThreshold)
	}

	if state.weather != nil {
		temp, err := state.weather.CurrentTemperature(context.Background())
		if err != nil {
			return nil, fmt.Errorf("outdoor temperature: %w", err)
		}
		resp.TemperatureC = temp
	}
	return resp, nil
}

func energyToForecastPoints(points []solcast.EnergyPoint) []domain.ForecastPoint {
	out := make([]domain.ForecastPoint, 0, len(points))
	for _, p := range points {
		out = append(out, domain.ForecastPoint{
			MinuteOfDay: p.MinuteOfDay,
			KWh:         p.KWh,
		})
	}
	return out
}
