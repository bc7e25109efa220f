package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	adactor "github.com/sunsoc/sunsoc/internal/adapter/actor"
	"github.com/sunsoc/sunsoc/internal/config"
	"github.com/sunsoc/sunsoc/internal/core/actor"
	"github.com/sunsoc/sunsoc/internal/core/domain"
	"github.com/sunsoc/sunsoc/internal/core/service"
	"github.com/sunsoc/sunsoc/internal/server"
	"github.com/sunsoc/sunsoc/internal/util/actorutil"
	"github.com/sunsoc/sunsoc/pkg/carbonapi"
	"github.com/sunsoc/sunsoc/pkg/gecloud"
	"github.com/sunsoc/sunsoc/pkg/openweather"
	"github.com/sunsoc/sunsoc/pkg/pvoutput"
	"github.com/sunsoc/sunsoc/pkg/solcast"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/reugn/go-quartz/job"
	"github.com/reugn/go-quartz/quartz"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func gracefulShutdown(apiServer *http.Server, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	log.Println("shutting down gracefully, press Ctrl+C again to force")

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown with error: %v", err)
	}

	log.Println("Server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

func main() {

	// load and print config
	cfg, err := initConfig()
	if err != nil {
		slog.Error("config errors", "error", err)
		return
	}
	safePrintConfig(*cfg)

	rules, err := cfg.ParseRules()
	if err != nil {
		slog.Error("config errors", "error", err)
		return
	}
	if err := service.ValidateRules(rules, cfg.Sequencer.LoadNames()); err != nil {
		slog.Error("config errors", "error", err)
		return
	}

	// zap logger
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)

	logger := zap.Must(zapCfg.Build())

	// init actor system
	as := actorutil.NewActorSystemWithZapLogger(logger)
	ctx := as.Root

	defer logger.Sync()

	props := pactor.PropsFromProducer(func() pactor.Actor {
		return actor.NewMasterOfPuppetsActor(*cfg, rules,
			inverterActorProvider(cfg, logger),
			mqttActorProvider(cfg, logger),
			environActorProvider(cfg, logger),
			uploadActorProvider(cfg, logger),
			logger)
	})
	pid, err := ctx.SpawnNamed(props, "master")
	if err != nil {
		return
	}

	if cfg.OnceMode {
		runOnce(ctx, pid, logger)
		ctx.Stop(pid)
		as.Shutdown()
		return
	}

	sched, err := startScheduler(cfg, ctx, pid)
	if err != nil {
		logger.Fatal("scheduler error", zap.Error(err))
	}

	server := server.NewServer(*cfg, ctx, pid)
	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(server, done)

	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		panic(fmt.Sprintf("http server error: %s", err))
	}

	// Wait for the graceful shutdown to complete
	<-done
	log.Println("Graceful shutdown complete.")

	sched.Stop()
	ctx.Stop(pid)
	as.Shutdown()
}

// runOnce performs a single planning run and exits. Meant for cron or
// manual invocation.
func runOnce(ctx *pactor.RootContext, master *pactor.PID, logger *zap.Logger) {
	res, err := ctx.RequestFuture(master, domain.RunPlanRequest{}, 5*time.Minute).Result()
	if err != nil {
		logger.Error("planning run failed", zap.Error(err))
		return
	}
	resp, ok := res.(domain.RunPlanResponse)
	if !ok || resp.HasResponseError() {
		logger.Error("planning run failed", zap.Error(resp.GetResponseError()))
		return
	}
	logger.Info("planning run complete",
		zap.Int("target_soc", resp.Plan.TargetSoC),
		zap.Float64("projected_min", resp.Plan.ProjectedMin),
		zap.Bool("fallback", resp.Plan.Fallback))
}

// startScheduler arms the nightly planning trigger and the sequencer
// interval.
func startScheduler(cfg *config.Config, ctx *pactor.RootContext, master *pactor.PID) (quartz.Scheduler, error) {
	sched := quartz.NewStdScheduler()
	sched.Start(context.Background())

	planMinute, err := config.ParseClock(cfg.Planner.PlanTime)
	if err != nil {
		return nil, err
	}
	planTrigger, err := quartz.NewCronTrigger(fmt.Sprintf("0 %d %d * * *", planMinute%60, planMinute/60))
	if err != nil {
		return nil, err
	}
	planJob := job.NewFunctionJob(func(_ context.Context) (bool, error) {
		ctx.Send(master, actor.PlanTick{})
		return true, nil
	})
	if err := sched.ScheduleJob(quartz.NewJobDetail(planJob, quartz.NewJobKey("plan")), planTrigger); err != nil {
		return nil, err
	}

	if cfg.Sequencer.IntervalMinutes > 0 {
		seqJob := job.NewFunctionJob(func(_ context.Context) (bool, error) {
			ctx.Send(master, actor.SequenceTick{})
			return true, nil
		})
		seqTrigger := quartz.NewSimpleTrigger(time.Duration(cfg.Sequencer.IntervalMinutes) * time.Minute)
		if err := sched.ScheduleJob(quartz.NewJobDetail(seqJob, quartz.NewJobKey("sequence")), seqTrigger); err != nil {
			return nil, err
		}
	}

	return sched, nil
}

func initConfig() (*config.Config, error) {

	// alias PORT => SUNSOC_PORT
	if port := os.Getenv("PORT"); port != "" {
		os.Setenv("SUNSOC_PORT", port)
	}

	setConfigDefaults()

	viper.SetEnvPrefix("sunsoc")
	viper.AutomaticEnv()

	// if defined, try to load config from yaml file
	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			slog.Info("Using config", "file", cfgFile)
			viper.SetConfigFile(cfgFile)

			err = viper.ReadInConfig()
			if err != nil {
				slog.Error("Error reading config file", "error", err)
			}
		}
	}

	var cfg config.Config

	err := viper.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	// parse log level
	switch viper.GetString("log_level") {
	case "trace":
		cfg.LogLevel = zap.DebugLevel
	case "debug":
		cfg.LogLevel = zap.DebugLevel
	case "info":
		cfg.LogLevel = zap.InfoLevel
	case "error":
		cfg.LogLevel = zap.ErrorLevel
	case "warn":
		cfg.LogLevel = zap.WarnLevel
	case "fatal":
		cfg.LogLevel = zap.FatalLevel
	default:
		cfg.LogLevel = zap.InfoLevel
	}

	// check and fix base topic
	baseTopic, err := config.CheckMQTTTopic(cfg.MQTT.BaseTopic)
	if err != nil {
		return nil, errors.New("invalid base topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.BaseTopic = baseTopic

	// check and fix homeassistant discovery topic
	hadBaseTopic, err := config.CheckMQTTTopic(cfg.MQTT.HADiscoveryTopic)
	if err != nil {
		return nil, errors.New("invalid homeassistant discovery topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.HADiscoveryTopic = hadBaseTopic

	// check bounds
	if cfg.Inverter.APIKey == "" || cfg.Inverter.Serial == "" {
		return nil, errors.New("config params inverter.api_key and inverter.serial are required")
	}
	if cfg.Planner.BatteryCapacityKWh < 0 {
		return nil, errors.New("config param planner.battery_capacity_kwh should be >= 0")
	}
	if cfg.Planner.ChargeRateKW < 0 {
		return nil, errors.New("config param planner.charge_rate_kw should be >= 0")
	}
	if cfg.Planner.MinSoC < 0 || cfg.Planner.MinSoC > 100 {
		return nil, errors.New("config param planner.min_soc should be in [0, 100]")
	}
	if cfg.Planner.MaxSoC < cfg.Planner.MinSoC || cfg.Planner.MaxSoC > 100 {
		return nil, errors.New("config param planner.max_soc should be in [min_soc, 100]")
	}
	if cfg.Planner.DefaultTargetSoC < 0 || cfg.Planner.DefaultTargetSoC > 100 {
		return nil, errors.New("config param planner.default_target_soc should be in [0, 100]")
	}
	if cfg.Planner.HistoryDays < cfg.Planner.MinHistoryDays {
		return nil, errors.New("config param planner.history_days should be >= planner.min_history_days")
	}
	if _, err := config.ParseClock(cfg.Planner.PlanTime); err != nil {
		return nil, fmt.Errorf("config param planner.plan_time: %w", err)
	}
	if _, err := config.ParseClock(cfg.Planner.ChargeWindowStart); err != nil {
		return nil, fmt.Errorf("config param planner.charge_window_start: %w", err)
	}
	if _, err := config.ParseClock(cfg.Planner.ChargeWindowEnd); err != nil {
		return nil, fmt.Errorf("config param planner.charge_window_end: %w", err)
	}
	if cfg.PVOutput.Enable && (cfg.PVOutput.APIKey == "" || cfg.PVOutput.SystemId == "") {
		return nil, errors.New("config params pvoutput.api_key and pvoutput.system_id are required when pvoutput.enable is set")
	}

	return &cfg, nil
}

func inverterActorProvider(cfg *config.Config, logger *zap.Logger) actor.InverterActorProvider {
	client := gecloud.NewHTTPClient(gecloud.HTTPClientParams{
		BaseURL:    cfg.Inverter.BaseURL,
		APIKey:     cfg.Inverter.APIKey,
		Serial:     cfg.Inverter.Serial,
		Timeout:    time.Duration(cfg.Inverter.TimeoutMillis) * time.Millisecond,
		MaxRetries: cfg.Inverter.MaxRetries,
	}, logger)
	return func() *adactor.InverterActor {
		return adactor.NewInverterActor(client, logger)
	}
}

func mqttActorProvider(cfg *config.Config, logger *zap.Logger) actor.MQTTActorProvider {
	return func() *adactor.MQTTActor {
		if cfg.TestMode {
			return adactor.NewTestMQTTActor(cfg, logger)
		}
		return adactor.NewMQTTActor(cfg, logger)
	}
}

func environActorProvider(cfg *config.Config, logger *zap.Logger) actor.EnvironActorProvider {
	var solar adactor.SolarForecastProvider
	if cfg.Solar.APIKey != "" && len(cfg.Solar.ResourceIds) > 0 {
		solar = solcast.NewClient("", cfg.Solar.APIKey, cfg.Solar.ResourceIds, 0, logger)
	}
	carbon := carbonapi.NewClient(cfg.Carbon.BaseURL, cfg.Carbon.Region, 0, logger)
	var weather adactor.WeatherProvider
	if cfg.Weather.APIKey != "" {
		weather = openweather.NewClient("", cfg.Weather.APIKey, cfg.Weather.Latitude, cfg.Weather.Longitude, 0, logger)
	}
	return func() *adactor.EnvironActor {
		return adactor.NewEnvironActor(solar, carbon, weather, cfg.Carbon.HighThreshold, logger)
	}
}

func uploadActorProvider(cfg *config.Config, logger *zap.Logger) actor.UploadActorProvider {
	if !cfg.PVOutput.Enable {
		return nil
	}
	client := pvoutput.NewClient("", cfg.PVOutput.APIKey, cfg.PVOutput.SystemId, 0, logger)
	return func() *adactor.UploadActor {
		return adactor.NewUploadActor(client, logger)
	}
}

func setConfigDefaults() {
	viper.SetDefault("log_level", "warn")
	viper.SetDefault("mqtt.ha_discovery_enable", false)
	viper.SetDefault("mqtt.base_topic", "sunsoc")
	viper.SetDefault("mqtt.ha_discovery_topic", "homeassistant")
	viper.SetDefault("inverter.timeout_millis", 10000)
	viper.SetDefault("inverter.max_retries", 2)
	viper.SetDefault("solar_forecast.weight", 0.35)
	viper.SetDefault("carbon.high_threshold", 250)
	viper.SetDefault("planner.plan_time", "00:35")
	viper.SetDefault("planner.charge_window_start", "00:37")
	viper.SetDefault("planner.charge_window_end", "04:30")
	viper.SetDefault("planner.battery_capacity_kwh", 0)
	viper.SetDefault("planner.charge_rate_kw", 3)
	viper.SetDefault("planner.min_soc", 20)
	viper.SetDefault("planner.max_soc", 100)
	viper.SetDefault("planner.shoulder_min_soc", 40)
	viper.SetDefault("planner.safety_margin_pct", 5)
	viper.SetDefault("planner.overmorrow_threshold_pct", 10)
	viper.SetDefault("planner.default_target_soc", 80)
	viper.SetDefault("planner.winter_months", []int{11, 12, 1, 2})
	viper.SetDefault("planner.shoulder_months", []int{3, 4, 9, 10})
	viper.SetDefault("planner.history_days", 7)
	viper.SetDefault("planner.min_history_days", 3)
	viper.SetDefault("planner.recency_weight", 2)
	viper.SetDefault("planner.default_daily_kwh", 10)
	viper.SetDefault("sequencer.interval_minutes", 5)
	viper.SetDefault("port", 8080)
}

func safePrintConfig(cfg config.Config) {
	cfg.MQTT.Username = "*redacted*"
	cfg.MQTT.Password = "*redacted*"
	cfg.Inverter.APIKey = "*redacted*"
	cfg.Solar.APIKey = "*redacted*"
	cfg.Weather.APIKey = "*redacted*"
	cfg.PVOutput.APIKey = "*redacted*"
	slog.Info("Using", "config", cfg)
}
