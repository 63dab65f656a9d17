package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"auction-market/internal/api/handlers"
	"auction-market/internal/api/middleware"
	"auction-market/internal/app"
	"auction-market/internal/config"
	"auction-market/internal/infrastructure/websocket"
	"auction-market/internal/services"
	"auction-market/pkg/logger"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New().Fatal("Failed to load config", "error", err)
	}

	log := logger.NewWithConfig(logger.Options{Level: cfg.Log.Level, Encoding: cfg.Log.Encoding}).
		With("service", "bidding-service", "instance_id", cfg.Instance.ID)
	defer logger.Sync(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to initialise application", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	connManager := websocket.NewConnectionManager(log.With("component", "connections"))
	broadcaster := websocket.NewNotifier(connManager)
	eventListener := services.NewEventListener(connManager, broadcaster, log.With("component", "event_listener"))

	router := mux.NewRouter()
	router.Use(middleware.CORS(log))

	handlers.NewWebSocketHandlers(a.BidService, a.AuctionManager, connManager, log).Register(router)

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	go func() {
		if err := eventListener.Start(ctx, a.Subscriber); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Event listener stopped", "error", err)
			stop()
		}
	}()

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("Starting bidding service", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down bidding service...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Bidding service stopped")
}
