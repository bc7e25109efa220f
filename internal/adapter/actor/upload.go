package actor

import (
	"context"
	"fmt"
	"time"

	"github.com/sunsoc/sunsoc/internal/core/domain"
	"github.com/sunsoc/sunsoc/internal/util/actorutil"
	"github.com/sunsoc/sunsoc/pkg/pvoutput"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

const uploadCallTimeout = 15 * time.Second

type StatusUploader interface {
	AddStatus(ctx context.Context, status pvoutput.Status) error
}

// UploadActor pushes telemetry snapshots to PVOutput. Uploads are best
// effort: a failed upload is logged and reported to the caller but never
// retried, the next snapshot supersedes it anyway.
type UploadActor struct {
	behavior actor.Behavior
	stash    *actorutil.Stash
	uploader StatusUploader
	logger   *zap.Logger
}

func NewUploadActor(uploader StatusUploader, logger *zap.Logger) *UploadActor {
	act := &UploadActor{
		uploader: uploader,
		behavior: actor.NewBehavior(),
		stash:    &actorutil.Stash{},
		logger:   actorutil.ActorLogger(domain.ACTOR_ID_UPLOAD, logger),
	}
	act.behavior.Become(act.DefaultReceive)
	return act
}

func (state *UploadActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *UploadActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("upload@default: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_UPLOAD,
			Healthy: true,
			State:   "idle",
		})
	case domain.UploadSnapshotRequest:
		state.logger.Debug("upload@default: UploadSnapshotRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		snapshot := msg.Snapshot
		actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, func() (*domain.UploadSnapshotResponse, error) {
			return state.upload(snapshot)
		}), mapTaskResult[domain.UploadSnapshotResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.UploadSnapshotResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				},
				replyTo: sender,
			}
		}).WithTimeout(uploadCallTimeout).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingUpload)
	default:
		state.logger.Debug("upload@default default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *UploadActor) WaitingUpload(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case backgroundTaskResult:
		if msg.replyTo != nil {
			ctx.Send(msg.replyTo, msg.message)
		}
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("upload@waiting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *UploadActor) upload(snapshot domain.TelemetrySnapshot) (*domain.UploadSnapshotResponse, error) {
	status := pvoutput.Status{
		Time:            snapshot.Time,
		GenerationWatt:  snapshot.PVPowerWatt,
		ConsumptionWatt: snapshot.LoadPowerWatt,
	}
	temp := snapshot.TemperatureC
	status.TemperatureC = &temp
	soc := snapshot.BatterySoC
	status.BatterySoCPct = &soc
	carbon := snapshot.CarbonIntensity
	status.CarbonIntensity = &carbon
	if err := state.uploader.AddStatus(context.Background(), status); err != nil {
		state.logger.Warn("snapshot upload failed", zap.Error(err))
		return nil, fmt.Errorf("upload snapshot: %w", err)
	}
	return &domain.UploadSnapshotResponse{}, nil
}
