package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"warbler/internal/config"
	"warbler/internal/db"
	"warbler/internal/logging"
	"warbler/internal/server"
	"warbler/internal/store"
)

func main() {
	cfg := config.Load()
	log := logging.New(cfg.LogLevel, cfg.LogstashAddr)

	if err := config.Validate(cfg); err != nil {
		log.WithError(err).Fatal("Invalid configuration")
	}

	gdb, err := db.Connect(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to the database")
	}
	if err := db.Migrate(gdb); err != nil {
		log.WithError(err).Fatal("Failed to migrate the database")
	}

	srv, err := server.New(cfg, store.New(gdb), log)
	if err != nil {
		log.WithError(err).Fatal("Failed to build server")
	}

	httpServer := &http.Server{
		Addr:              cfg.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("addr", cfg.Port).Info("Server starting")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Graceful shutdown failed")
	}
	log.Info("Server stopped")
}
