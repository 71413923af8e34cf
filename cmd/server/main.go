/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the Haven compliance alert engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Initialize SQLite store
  3. Wire services, evaluators, and the reconciler
  4. Start the sweep schedule and HTTP server
  5. Shut down gracefully on SIGINT/SIGTERM

COMMAND-LINE FLAGS:
  -port        HTTP server port (default: 8080)
  -db          SQLite database path (default: haven.db)
               Use ":memory:" for an in-memory database
  -sweep-spec  Cron spec for scheduled sweeps (default: "15 0 * * *")
  -log-level   logrus level: debug, info, warn, error (default: info)

EXAMPLES:
  # Run with file database
  ./server -db="./data/haven.db"

  # Sweep hourly instead of daily
  ./server -sweep-spec="0 * * * *"

SEE ALSO:
  - api/server.go: Router configuration
  - api/sweeper.go: Scheduled sweeps
  - store/sqlite: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/haven/compliance-engine/alerts"
	"github.com/haven/compliance-engine/api"
	"github.com/haven/compliance-engine/evaluate"
	"github.com/haven/compliance-engine/practice"
	"github.com/haven/compliance-engine/schedule"
	"github.com/haven/compliance-engine/store/sqlite"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "haven.db", "SQLite database path")
	sweepSpec := flag.String("sweep-spec", api.DefaultSweepSpec, "cron spec for scheduled sweeps")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	log := logrus.New()
	if level, err := logrus.ParseLevel(*logLevel); err == nil {
		log.SetLevel(level)
	}

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize database")
	}
	defer store.Close()

	// Services
	alertSvc := alerts.NewService(store.Alerts())
	schedSvc := schedule.NewService(store.Schedules(), store, log)
	pracSvc := practice.NewService(store.Practices())

	// Evaluators cover every alert-producing domain
	reconciler := alerts.NewReconciler(store.Alerts(), log,
		evaluate.NewPlanExpiry(store),
		evaluate.NewLowFunding(store),
		evaluate.NewDocumentExpiry(store),
		evaluate.NewScheduleDue(store.Schedules()),
		evaluate.NewMaintenance(store),
		evaluate.NewVacancy(store),
		evaluate.NewPaymentMissing(store),
		evaluate.NewPractices(store.Practices()),
	)

	// Scheduled sweeps
	sweeper := api.NewSweeper(reconciler, *sweepSpec, log)
	if err := sweeper.Start(); err != nil {
		log.WithError(err).Fatal("failed to start sweep schedule")
	}
	defer sweeper.Stop()

	// HTTP server
	handler := api.NewHandler(alertSvc, reconciler, schedSvc, pracSvc, store, log)
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      api.NewRouter(handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithField("addr", server.Addr).Info("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Fatal("forced shutdown")
	}

	log.Info("server stopped")
}
