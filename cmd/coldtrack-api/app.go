package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/BearBump/ColdTrack/internal/api/shipments_api"
	"github.com/BearBump/ColdTrack/internal/audit"
	"github.com/BearBump/ColdTrack/internal/broker/messages"
	"github.com/BearBump/ColdTrack/internal/models"
	"github.com/BearBump/ColdTrack/internal/tracker"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type coldTrackOpts struct {
	httpAddr       string
	telemetryTopic string
	consumerGroup  string

	onListen func(httpAddr string)
}

type kafkaConsumer interface {
	Consume(ctx context.Context, handler func(key, value []byte) error) error
}

func runColdTrack(ctx context.Context, opts coldTrackOpts, api *shipments_api.ShipmentsAPI, trk *tracker.Tracker, consumer kafkaConsumer) error {
	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}

	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Mount("/", api.Routes())

	httpErr := make(chan error, 1)
	srv := &http.Server{Handler: r}
	go func() {
		slog.Info("HTTP server listening", "addr", lis.Addr().String())
		httpErr <- srv.Serve(lis)
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if consumer != nil {
		go func() {
			slog.Info("kafka consumer started", "topic", opts.telemetryTopic, "group", opts.consumerGroup)
			_ = consumer.Consume(ctx, func(_key, value []byte) error {
				return applyTelemetry(ctx, trk, value)
			})
		}()
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-httpErr:
		return err
	}
}

// applyTelemetry превращает сообщение датчика в запись показания.
// Неизвестное отправление — битое сообщение, пропускаем с логом,
// иначе консьюмер застрянет на нём навсегда.
func applyTelemetry(ctx context.Context, trk *tracker.Tracker, value []byte) error {
	var m messages.TelemetryReading
	if err := json.Unmarshal(value, &m); err != nil {
		slog.Error("malformed telemetry message", "error", err.Error())
		return nil
	}

	actor := audit.Actor{ID: m.SensorID, Role: models.RoleSensor}
	_, err := trk.RecordTemperature(ctx, m.ShipmentID, m.Temperature, actor, tracker.TemperatureInput{
		Humidity: m.Humidity,
		Location: m.Location,
	})
	if errors.Is(err, tracker.ErrShipmentNotFound) {
		slog.Warn("telemetry for unknown shipment", "shipment_id", m.ShipmentID)
		return nil
	}
	return err
}
