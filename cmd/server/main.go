// server is the suggestion service binary: it exposes recurring-item
// predictions, statistics, and suppression controls over HTTP.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"listkeeper/internal/api"
	"listkeeper/internal/config"
	"listkeeper/internal/logging"
	"listkeeper/internal/storage"
	"listkeeper/internal/suggest"
)

func main() {
	var (
		addr    = flag.String("addr", "", "Listen address (overrides config host/port)")
		migrate = flag.Bool("migrate", false, "Create the schema before serving")
	)
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(logging.ParseLogLevel(cfg.Logging.Level))
	logging.SetDefaultLogger(logger)

	db, err := sql.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		logger.Error("Failed to open database", "error", err, "driver", cfg.Database.Driver)
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database", "error", err)
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		logger.Error("Failed to reach database", "error", err, "driver", cfg.Database.Driver)
		os.Exit(1)
	}

	if *migrate {
		if err := storage.CreateSchema(ctx, db); err != nil {
			logger.Error("Failed to create schema", "error", err)
			os.Exit(1)
		}
		logger.Info("Schema ready")
	}

	events := storage.NewEventSQLStore(db, logger)
	items := storage.NewItemSQLStore(db, logger)
	states := storage.NewStateSQLStore(db, logger)
	service := suggest.NewService(events, items, states, cfg.Suggest, logger)

	listen := *addr
	if listen == "" {
		listen = fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	}

	server := &http.Server{
		Addr:         listen,
		Handler:      api.NewRouter(service, logger).Handler(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Failed to shut down cleanly", "error", err)
		}
	}()

	logger.Info("Starting suggestion server", "addr", listen, "driver", cfg.Database.Driver)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped")
}
