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

	"go_trial/ordertaking/auth"
	"go_trial/ordertaking/config"
	"go_trial/ordertaking/handlers"
	"go_trial/ordertaking/logger"
	"go_trial/ordertaking/middleware"
	"go_trial/ordertaking/middleware/logkafka"
	"go_trial/ordertaking/seed"
	"go_trial/ordertaking/session"
	"go_trial/ordertaking/store"
	"go_trial/ordertaking/telem"
)

var log *logger.Logger

func main() {
	log = logger.NewLogger()
	defer log.Close()

	if err := config.LoadEnvFile(); err != nil {
		log.Warn("ENV", "Error loading .env file, using environment variables")
	}
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal("CONFIG", err.Error())
	}
	log.LogProcess("STARTUP", cfg.ServiceName+" starting up...")

	shutdownMetrics, err := telem.InitMetrics(cfg.ServiceName)
	if err != nil {
		log.Fatal("TELEMETRY", "Failed to initialise metrics: "+err.Error())
	}
	shutdownTracing, err := telem.InitTracing(cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		log.Fatal("TELEMETRY", "Failed to initialise tracing: "+err.Error())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	st, err := openStore(ctx, cfg)
	if err != nil {
		cancel()
		log.Fatal("DATABASE", "Failed to open store: "+err.Error())
	}
	defer st.Close()

	sessions, closeSessions, err := openSessions(ctx, cfg)
	if err != nil {
		cancel()
		log.Fatal("REDIS", "Failed to connect: "+err.Error())
	}
	defer closeSessions()

	if cfg.SeedFile != "" {
		f, err := seed.Load(cfg.SeedFile)
		if err != nil {
			cancel()
			log.Fatal("SEED", err.Error())
		}
		res, err := seed.Apply(ctx, st, f, log)
		if err != nil {
			cancel()
			log.Fatal("SEED", err.Error())
		}
		log.LogProcess("SEED", fmt.Sprintf("%d user(s) and %d menu item(s) created from %s", res.Users, res.MenuItems, cfg.SeedFile))
	}
	cancel()

	var sink logkafka.Sink = logkafka.ConsoleSink{Log: log}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaSink := logkafka.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaLogTopic)
		defer kafkaSink.Close()
		sink = kafkaSink
		log.LogKafka("INIT", cfg.KafkaLogTopic, "request logs shipped to kafka")
	}

	api := &handlers.API{
		Store:          st,
		Issuer:         auth.NewIssuer(cfg.SessionSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL),
		Sessions:       sessions,
		Log:            log,
		RequireSeating: cfg.RequireSeating,
		SecureCookies:  cfg.Env == "prod",
	}
	router := handlers.NewRouter(api, handlers.RouterOptions{
		LogSink:         sink,
		Env:             cfg.Env,
		LoginRatePerSec: cfg.LoginRatePerSec,
		LoginBurst:      cfg.LoginBurst,
	})
	log.LogProcess("ROUTER", "HTTP router configured")

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           telem.Handler(middleware.CORS(router), cfg.ServiceName),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.LogProcess("SERVER", "Starting HTTP server on "+cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("SERVER", "Server failed to start: "+err.Error())
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Warn("SHUTDOWN", "Received shutdown signal, initiating graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("SHUTDOWN", "Server forced to shutdown: "+err.Error())
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warn("SHUTDOWN", "tracer: "+err.Error())
	}
	if err := shutdownMetrics(shutdownCtx); err != nil {
		log.Warn("SHUTDOWN", "meter: "+err.Error())
	}
	log.Info("SHUTDOWN", "shutdown completed")
}

func openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverMongo:
		log.LogProcess("DATABASE", "Connecting to MongoDB...")
		st, err := store.NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, err
		}
		log.LogDatabase("INIT", "mongo", "MongoDB storage initialized")
		return st, nil
	case config.DriverMySQL:
		log.LogProcess("DATABASE", "Initializing MySQL database...")
		st, err := store.NewMySQLStore(ctx, cfg.MySQLDSN, log)
		if err != nil {
			return nil, err
		}
		log.LogDatabase("INIT", "mysql", "MySQL storage initialized")
		return st, nil
	default:
		log.Warn("DATABASE", "Using the in-memory store; data is lost on restart")
		return store.NewInMemoryStore(), nil
	}
}

func openSessions(ctx context.Context, cfg config.Config) (session.Sessions, func() error, error) {
	if cfg.RedisAddr == "" {
		log.Warn("REDIS", "REDIS_ADDR not set, keeping sessions in memory")
		return session.NewMemoryStore(), func() error { return nil }, nil
	}
	rs, err := session.Dial(ctx, cfg.RedisAddr)
	if err != nil {
		return nil, nil, err
	}
	log.LogProcess("REDIS", "Redis connection successful")
	return rs, rs.Close, nil
}
