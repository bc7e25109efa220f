package actor

import (
	"testing"
	"time"

	adactor "github.com/sunsoc/sunsoc/internal/adapter/actor"
	"github.com/sunsoc/sunsoc/internal/core/domain"
	"github.com/sunsoc/sunsoc/internal/util"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// telemetryStub answers the gather requests of a sequence run.
type telemetryStub struct {
	soc float64
}

func (s *telemetryStub) Receive(ctx actor.Context) {
	switch ctx.Message().(type) {
	case domain.GetInverterStatusRequest:
		ctx.Respond(domain.GetInverterStatusResponse{
			Status: &domain.InverterStatus{
				Time:       time.Now(),
				BatterySoC: s.soc,
			},
		})
	case domain.GetEnvironmentRequest:
		ctx.Respond(domain.GetEnvironmentResponse{
			TemperatureC:    15,
			CarbonIntensity: 120,
		})
	}
}

// uploadSpy records every snapshot upload it is asked for.
type uploadSpy struct {
	snapshots chan domain.UploadSnapshotRequest
}

func (s *uploadSpy) Receive(ctx actor.Context) {
	if msg, ok := ctx.Message().(domain.UploadSnapshotRequest); ok {
		s.snapshots <- msg
	}
}

func spawnSequencer(t *testing.T, as *actor.ActorSystem, testMode bool, spy *uploadSpy) *actor.PID {
	t.Helper()
	ctx := as.Root

	cfg := util.LoadTestConfig()
	cfg.TestMode = testMode
	cfg.PVOutput.Enable = true

	logger := zap.NewNop()
	telemetry := ctx.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return &telemetryStub{soc: 60}
	}))
	upload := ctx.Spawn(actor.PropsFromProducer(func() actor.Actor { return spy }))
	mqtt := ctx.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return adactor.NewTestMQTTActor(&cfg, logger)
	}))

	rules := []domain.Rule{
		{Priority: 10, Load: "heater", Action: domain.RuleActionOn},
	}
	return ctx.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return NewSequencerActor(&cfg, rules, telemetry, telemetry, mqtt, upload, logger)
	}))
}

func runSequence(t *testing.T, as *actor.ActorSystem, sequencer *actor.PID) domain.RunSequenceResponse {
	t.Helper()
	res, err := as.Root.RequestFuture(sequencer, domain.RunSequenceRequest{}, 5*time.Second).Result()
	require.NoError(t, err)
	resp, ok := res.(domain.RunSequenceResponse)
	require.True(t, ok)
	require.False(t, resp.HasResponseError())
	return resp
}

func TestSequencerUploadsSnapshot(t *testing.T) {
	as := actor.NewActorSystem()
	spy := &uploadSpy{snapshots: make(chan domain.UploadSnapshotRequest, 1)}
	sequencer := spawnSequencer(t, as, false, spy)

	resp := runSequence(t, as, sequencer)
	require.Len(t, resp.Transitions, 1)
	assert.Equal(t, domain.LoadTransition{Load: "heater", On: true}, resp.Transitions[0])

	select {
	case msg := <-spy.snapshots:
		assert.InDelta(t, 60, msg.Snapshot.BatterySoC, 1e-9)
	case <-time.After(2 * time.Second):
		t.Fatal("expected a snapshot upload")
	}
}

func TestSequencerTestModeSuppressesUpload(t *testing.T) {
	as := actor.NewActorSystem()
	spy := &uploadSpy{snapshots: make(chan domain.UploadSnapshotRequest, 1)}
	sequencer := spawnSequencer(t, as, true, spy)

	// run twice so the second response proves the first run finished
	runSequence(t, as, sequencer)
	runSequence(t, as, sequencer)

	select {
	case <-spy.snapshots:
		t.Fatal("test mode must not upload")
	default:
	}
}
