package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BearBump/ColdTrack/config"
	"github.com/BearBump/ColdTrack/internal/api/shipments_api"
	"github.com/BearBump/ColdTrack/internal/broker/kafka"
	"github.com/BearBump/ColdTrack/internal/cache/rediscache"
	"github.com/BearBump/ColdTrack/internal/statemachine"
	"github.com/BearBump/ColdTrack/internal/storage/pgshipment"
	"github.com/BearBump/ColdTrack/internal/tracker"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

type app struct {
	ctx      context.Context
	cancel   context.CancelFunc
	opts     coldTrackOpts
	api      *shipments_api.ShipmentsAPI
	trk      *tracker.Tracker
	consumer *kafka.Consumer
	producer *kafka.Producer
	closeDB  func()
}

func mustBootstrap() *app {
	// .env удобен в docker compose; при его отсутствии молча идём дальше.
	_ = godotenv.Load(".env")

	cfgPath := os.Getenv("configPath")
	pflag.StringVarP(&cfgPath, "config", "c", cfgPath, "path to config file")
	pflag.Parse()
	if cfgPath == "" {
		panic("config path is required (--config flag or configPath env var)")
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}

	httpAddr := cfg.ColdTrack.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	consumerGroup := cfg.ColdTrack.KafkaConsumerGroup
	if consumerGroup == "" {
		consumerGroup = "coldtrack-api"
	}
	telemetryTopic := cfg.Kafka.TelemetryTopicName
	if telemetryTopic == "" {
		telemetryTopic = "telemetry.readings"
	}
	alertTopic := cfg.Kafka.AlertTopicName
	if alertTopic == "" {
		alertTopic = "temperature.alert"
	}
	cacheTTL := time.Duration(cfg.ColdTrack.CurrentStatusTTLSeconds) * time.Second
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}
	requestTimeout := time.Duration(cfg.ColdTrack.RequestTimeoutSeconds) * time.Second
	ratePerMin := int64(cfg.ColdTrack.TelemetryRatePerMinute)

	sslMode := cfg.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
	st := mustOpenPostgresWithRetry(connString, 60*time.Second)

	redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
	rc := rediscache.New(redisAddr)
	rl := rediscache.NewRateLimiter(redisAddr)

	brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
	producer := kafka.NewProducer(brokers, alertTopic)
	consumer := kafka.NewConsumer(brokers, telemetryTopic, consumerGroup)

	machine := statemachine.New(cfg.ColdTrack.Rules())
	trk := tracker.New(st, machine, rc, cacheTTL, producer)
	api := shipments_api.New(trk, rl, ratePerMin, requestTimeout)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	return &app{
		ctx:    ctx,
		cancel: cancel,
		opts: coldTrackOpts{
			httpAddr:       httpAddr,
			telemetryTopic: telemetryTopic,
			consumerGroup:  consumerGroup,
		},
		api:      api,
		trk:      trk,
		consumer: consumer,
		producer: producer,
		closeDB:  st.Close,
	}
}

func mustOpenPostgresWithRetry(connString string, wait time.Duration) *pgshipment.Storage {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := pgshipment.New(connString)
		if err == nil {
			return st
		}
		lastErr = err
		time.Sleep(1 * time.Second)
	}
	panic(fmt.Sprintf("postgres is not ready after %s: %v", wait, lastErr))
}

func (a *app) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.consumer != nil {
		_ = a.consumer.Close()
	}
	if a.producer != nil {
		_ = a.producer.Close()
	}
	if a.closeDB != nil {
		a.closeDB()
	}
}

func (a *app) Run() error {
	return runColdTrack(a.ctx, a.opts, a.api, a.trk, a.consumer)
}

func (a *app) canceled(err error) bool {
	return err == context.Canceled
}
