package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"smsrelay/internal/bootstrap"
	"smsrelay/internal/changefeed"
	"smsrelay/internal/config"
	"smsrelay/internal/delivery"
	"smsrelay/internal/httpapi"
	"smsrelay/internal/lease"
	"smsrelay/internal/logging"
	"smsrelay/internal/observability"
)

func main() {
	_ = godotenv.Load()

	cfg := config.LoadWorker()
	logger := logging.Init("worker", cfg.LogFormat, cfg.LogLevel)

	if cfg.GatewayTimeout >= lease.Duration {
		slog.Error("GATEWAY_TIMEOUT must be shorter than the delivery lease",
			"gateway_timeout", cfg.GatewayTimeout, "lease", lease.Duration)
		os.Exit(1)
	}
	if cfg.SQSQueueURL == "" {
		slog.Error("SQS_QUEUE_URL is required for the worker")
		os.Exit(1)
	}

	// Use a root ctx we can cancel
	ctx, cancel := context.WithCancel(context.Background())

	startupCtx, startupCancel := context.WithTimeout(ctx, 5*time.Second)
	defer startupCancel()

	boot := &bootstrap.Initializer{Store: cfg.Store, Queue: cfg.Queue, Gateway: &cfg.Gateway}
	h, err := boot.Handles(startupCtx)
	if err != nil {
		slog.Error("worker init failed", "err", err)
		os.Exit(1)
	}
	defer h.Close()

	queueReady := func(c context.Context) error {
		_, err := h.SQS.GetQueueAttributes(c, &sqs.GetQueueAttributesInput{
			QueueUrl:       &cfg.SQSQueueURL,
			AttributeNames: []types.QueueAttributeName{types.QueueAttributeNameQueueArn},
		})
		return err
	}
	if err := queueReady(startupCtx); err != nil {
		slog.Error("sqs not reachable", "err", err)
		os.Exit(1)
	}

	observability.Register(prometheus.DefaultRegisterer)

	consumer := h.Consumer
	consumer.WaitTimeSeconds = cfg.SQSWaitTime
	consumer.MaxMessages = cfg.SQSMaxMsgs
	consumer.VisibilityTimeout = cfg.SQSVizTimeout

	machine := &delivery.Machine{
		Store:      h.Store,
		Gateway:    h.Gateway,
		Clock:      lease.System{},
		Originator: cfg.GatewayOriginator,
		Logger:     logger,
	}

	// health server (liveness + readiness + metrics)
	health := httpapi.New(append(h.Ready, queueReady)...)
	healthSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           health.Mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	healthErrCh := make(chan error, 1)
	go func() {
		slog.Info("worker health listening", "port", cfg.Port)
		healthErrCh <- healthSrv.ListenAndServe()
	}()

	pollErrCh := make(chan error, 1)
	go func() {
		slog.Info("worker starting poll",
			"queue_url", cfg.SQSQueueURL,
			"provider", cfg.GatewayProvider,
			"store", cfg.StoreBackend,
		)
		pollErrCh <- consumer.PollConcurrent(ctx, cfg.WorkerConcurrency, func(ctx context.Context, ev changefeed.Event) error {
			start := time.Now()
			act := machine.Handle(ctx, ev)
			slog.Debug("change handled",
				"message_id", ev.ID,
				"kind", ev.Kind().String(),
				"action", string(act),
				"duration", time.Since(start),
			)
			return nil
		})
	}()

	// shutdown wiring
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-pollErrCh:
		if err != nil && err != context.Canceled {
			slog.Error("worker poll failed", "err", err)
			os.Exit(1)
		}
	case err := <-healthErrCh:
		if err != nil && err != http.ErrServerClosed {
			slog.Error("worker health server failed", "err", err)
			os.Exit(1)
		}
	case sig := <-sigCh:
		slog.Info("worker shutdown", "signal", sig.String())
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = healthSrv.Shutdown(shutdownCtx)

	// in-flight handlers finish their lease and outcome write
	select {
	case <-pollErrCh:
	case <-time.After(lease.Duration):
		slog.Info("worker shutdown timeout waiting for poll loop")
	}
}
