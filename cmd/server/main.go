/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the Smart Gestão API server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment, flags)
  2. Initialize logger and store
  3. Wire ledger -> alert evaluator (sync or async) -> websocket hub
  4. Start the goal sweeper
  5. Configure HTTP router and start server with graceful shutdown

COMMAND-LINE FLAGS (override the environment):
  -port    HTTP server port (PORT, default: 8080)
  -db      Database: a SQLite path, a postgres:// DSN, or "memory"
           (DB_DRIVER / DATABASE_URL, default: smartgestao.db)

ENVIRONMENT:
  JWT_SECRET is required. See config/config.go for the rest.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the sweeper and drain queued alert evaluations
  4. Close websocket sessions and the database

EXAMPLES:
  JWT_SECRET=dev ./server -db="./data/smartgestao.db"
  JWT_SECRET=dev ./server -db=memory -port=3000
  JWT_SECRET=dev ALERT_DISPATCH=async ./server -db="postgres://localhost/smartgestao?sslmode=disable"
*/
package main

import (
	"context"
	"flag"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/smartgestao/smart-gestao/alerts"
	"github.com/smartgestao/smart-gestao/api"
	"github.com/smartgestao/smart-gestao/auth"
	"github.com/smartgestao/smart-gestao/config"
	"github.com/smartgestao/smart-gestao/finance"
	"github.com/smartgestao/smart-gestao/finance/store"
	"github.com/smartgestao/smart-gestao/logger"
	"github.com/smartgestao/smart-gestao/notify"
	"github.com/smartgestao/smart-gestao/store/postgres"
	"github.com/smartgestao/smart-gestao/store/sqlite"
)

func main() {
	// Flags
	port := flag.String("port", "", "HTTP server port (overrides PORT)")
	db := flag.String("db", "", `SQLite path, postgres:// DSN or "memory" (overrides DB_DRIVER/DATABASE_URL)`)
	flag.Parse()

	cfg, err := config.Read()
	if err != nil {
		bootLog := logger.New("info", false)
		bootLog.Fatal().Err(err).Msg("Failed to read configuration")
	}
	applyFlags(&cfg, *port, *db)

	log := logger.New(cfg.LogLevel, cfg.LogPretty)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize store
	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", string(cfg.DBDriver)).Msg("Failed to initialize database")
	}
	defer closeStore()
	log.Info().Str("driver", string(cfg.DBDriver)).Msg("Database ready")

	// Alert pipeline
	hub := notify.NewHub(log, originChecker(cfg.CORSOrigins))
	defer hub.Close()

	evaluator := alerts.NewEvaluator(st, log)
	evaluator.Notifier = hub

	ledger := finance.NewLedger(st, st, log)

	// Evaluations outlive the request that queued them, so the dispatcher
	// gets its own context, cancelled only after the drain below.
	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	var dispatcher *alerts.Dispatcher
	if cfg.AlertDispatch == config.DispatchAsync {
		dispatcher = alerts.NewDispatcher(evaluator, cfg.AlertWorkers, cfg.AlertQueueSize, log)
		dispatcher.Start(workerCtx)
		ledger.OnCommit(dispatcher)
	} else {
		ledger.OnCommit(evaluator)
	}

	// Goal sweeper
	sweeper := api.NewGoalSweeper(st, cfg.GoalSweepSchedule, log)
	if err := sweeper.Start(workerCtx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start goal sweeper")
	}

	// HTTP
	handler := api.NewHandler(st, ledger, auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL), hub, log)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      api.NewRouter(handler, cfg.CORSOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Str("alert_dispatch", string(cfg.AlertDispatch)).
			Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	sweeper.Stop()
	if dispatcher != nil {
		if err := dispatcher.Stop(shutdownCtx); err != nil {
			log.Warn().Err(err).Int64("dropped", dispatcher.Dropped()).Msg("Alert queue not fully drained")
		}
	}

	log.Info().Msg("Server stopped")
}

// applyFlags lets -port and -db override the environment.
func applyFlags(cfg *config.Config, port, db string) {
	if port != "" {
		cfg.Port = port
	}
	switch {
	case db == "":
	case db == "memory":
		cfg.DBDriver = config.DriverMemory
	case strings.HasPrefix(db, "postgres://"), strings.HasPrefix(db, "postgresql://"):
		cfg.DBDriver = config.DriverPostgres
		cfg.DatabaseURL = db
	default:
		cfg.DBDriver = config.DriverSQLite
		cfg.DatabaseURL = db
	}
}

func openStore(ctx context.Context, cfg config.Config) (finance.Store, func(), error) {
	switch cfg.DBDriver {
	case config.DriverMemory:
		return store.NewMemory(), func() {}, nil
	case config.DriverPostgres:
		s, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	default:
		s, err := sqlite.New(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	}
}

// originChecker accepts websocket upgrades from the CORS origins.
// A "*" entry accepts any origin.
func originChecker(origins []string) func(r *http.Request) bool {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			return nil
		}
		allowed[strings.TrimRight(o, "/")] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowed[origin]
	}
}
