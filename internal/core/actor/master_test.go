package actor

import (
	"context"
	"fmt"
	"testing"
	"time"

	adactor "github.com/sunsoc/sunsoc/internal/adapter/actor"
	"github.com/sunsoc/sunsoc/internal/core/domain"
	"github.com/sunsoc/sunsoc/internal/util"
	"github.com/sunsoc/sunsoc/pkg/carbonapi"
	"github.com/sunsoc/sunsoc/pkg/gecloud"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type testCarbonProvider struct {
}

func (testCarbonProvider) Current(ctx context.Context) (float64, error) {
	return 120, nil
}

func (testCarbonProvider) Forecast24h(ctx context.Context, from time.Time) ([]carbonapi.Slot, error) {
	slots := make([]carbonapi.Slot, 48)
	for i := range slots {
		slots[i] = carbonapi.Slot{From: from.Add(time.Duration(i) * 30 * time.Minute), Intensity: 120}
	}
	return slots, nil
}

func TestMasterActor(t *testing.T) {

	as := actor.NewActorSystem()
	ctx := as.Root

	cfg := util.LoadTestConfig()
	logCfg := zap.NewDevelopmentConfig()
	logCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)
	logger := zap.Must(logCfg.Build())

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewMasterOfPuppetsActor(cfg, nil, func() *adactor.InverterActor {
			return adactor.NewInverterActor(gecloud.CreateTestClient(), logger)
		}, func() *adactor.MQTTActor {
			return adactor.NewTestMQTTActor(&cfg, logger)
		}, func() *adactor.EnvironActor {
			return adactor.NewEnvironActor(nil, testCarbonProvider{}, nil, 250, logger)
		}, nil, logger)
	})
	pid, err := ctx.SpawnNamed(props, "master")
	if err != nil {
		t.Error(err)
		return
	}

	time.Sleep(2 * time.Second)

	res, err := ctx.RequestFuture(pid, domain.ActorHealthRequest{}, 10*time.Second).Result()
	if err != nil {
		t.Error(err)
		//return
	}
	healthResp, ok := res.(domain.ActorHealthResponse)
	assert.True(t, ok)
	fmt.Printf("Health response: %+v\n", healthResp)
	assert.NotNil(t, healthResp)

	assert.True(t, healthResp.Healthy, "healthy is true")

	ctx.Stop(pid)

	as.Shutdown()
}

func TestMasterActorPlanAndSequence(t *testing.T) {

	as := actor.NewActorSystem()
	ctx := as.Root

	cfg := util.LoadTestConfig()
	logCfg := zap.NewDevelopmentConfig()
	logCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)
	logger := zap.Must(logCfg.Build())

	rules := []domain.Rule{
		{
			Priority: 10,
			Load:     "heater",
			Action:   domain.RuleActionOn,
			When:     domain.RuleCondition{},
		},
	}

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewMasterOfPuppetsActor(cfg, rules, func() *adactor.InverterActor {
			return adactor.NewInverterActor(gecloud.CreateTestClient(), logger)
		}, func() *adactor.MQTTActor {
			return adactor.NewTestMQTTActor(&cfg, logger)
		}, func() *adactor.EnvironActor {
			return adactor.NewEnvironActor(nil, testCarbonProvider{}, nil, 250, logger)
		}, nil, logger)
	})
	pid, err := ctx.SpawnNamed(props, "master")
	if err != nil {
		t.Error(err)
		return
	}

	time.Sleep(2 * time.Second)

	// planning run falls back to the default target, there is no
	// forecast provider in this setup
	res, err := ctx.RequestFuture(pid, domain.RunPlanRequest{}, 30*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	planResp, ok := res.(domain.RunPlanResponse)
	assert.True(t, ok)
	assert.False(t, planResp.HasResponseError())
	assert.NotNil(t, planResp.Plan)
	assert.True(t, planResp.Plan.Fallback)
	assert.Equal(t, cfg.Planner.DefaultTargetSoC, planResp.Plan.TargetSoC)

	res, err = ctx.RequestFuture(pid, domain.GetPlanRequest{}, 5*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	getResp, ok := res.(domain.GetPlanResponse)
	assert.True(t, ok)
	assert.NotNil(t, getResp.Plan)

	// the always-on rule turns the heater on during the first tick
	res, err = ctx.RequestFuture(pid, domain.RunSequenceRequest{}, 30*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	seqResp, ok := res.(domain.RunSequenceResponse)
	assert.True(t, ok)
	assert.False(t, seqResp.HasResponseError())
	assert.Equal(t, []domain.LoadTransition{{Load: "heater", On: true}}, seqResp.Transitions)

	// second tick holds, the heater is already on
	res, err = ctx.RequestFuture(pid, domain.RunSequenceRequest{}, 30*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	seqResp, ok = res.(domain.RunSequenceResponse)
	assert.True(t, ok)
	assert.Empty(t, seqResp.Transitions)

	ctx.Stop(pid)

	as.Shutdown()
}
