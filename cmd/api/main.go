package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"smsrelay/internal/bootstrap"
	"smsrelay/internal/config"
	"smsrelay/internal/httpapi"
	"smsrelay/internal/logging"
	"smsrelay/internal/observability"
	"smsrelay/internal/service"
	"smsrelay/internal/util"
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg := config.LoadAPI()
	logging.Init("api", cfg.LogFormat, cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	startupCtx, startupCancel := context.WithTimeout(ctx, 5*time.Second)
	defer startupCancel()

	boot := &bootstrap.Initializer{Store: cfg.Store, Queue: cfg.Queue}
	h, err := boot.Handles(startupCtx)
	if err != nil {
		slog.Error("api init failed", "err", err)
		os.Exit(1)
	}
	defer h.Close()

	observability.Register(prometheus.DefaultRegisterer)

	s := httpapi.New(h.Ready...)
	api := &httpapi.API{
		Svc: &service.MessageService{Store: h.Store, IDGen: util.NewMessageID},
	}
	api.Register(s.Mux)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           s.Mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("api shutdown", "signal", sig.String())
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("api listening", "port", cfg.Port, "store", cfg.StoreBackend)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("api server failed", "err", err)
		os.Exit(1)
	}
}
