package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"example.com/tri/internal/aggregate"
	"example.com/tri/internal/api"
	"example.com/tri/internal/auth"
	"example.com/tri/internal/config"
	"example.com/tri/internal/domain"
	"example.com/tri/internal/entitlement"
	"example.com/tri/internal/events"
	"example.com/tri/internal/healthfeed"
	"example.com/tri/internal/identity"
	persistence "example.com/tri/internal/persistence/postgres"
	"example.com/tri/internal/reconciler"
	httptransport "example.com/tri/internal/transport/http"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	if err := persistence.Migrate(ctx, pool); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	workoutRepo := persistence.NewRepository(pool)
	syncRepo := persistence.NewSyncStateRepository(pool)
	profileRepo := persistence.NewProfileRepository(pool)

	producer := events.NewKafkaProducer(cfg.KafkaBrokers)
	defer producer.Close()

	registry := events.NewSchemaRegistry(cfg.SchemaRegistryURL)
	dispatcher := events.NewDispatcher(pool, producer, registry, cfg.OutboxPollInterval, cfg.OutboxBatchSize)
	go dispatcher.Start(ctx)

	var entitlements domain.EntitlementProvider
	if cfg.EntitlementURL != "" {
		entitlements = entitlement.NewClient(cfg.EntitlementURL, cfg.EntitlementKey)
	}
	var accounts domain.AccountProvider
	if cfg.IdentityURL != "" {
		accounts = identity.NewClient(cfg.IdentityURL, cfg.IdentityKey)
	}

	workouts := domain.NewWorkoutService(workoutRepo)
	profiles := domain.NewProfileService(profileRepo, entitlements)
	account := domain.NewAccountService(accounts, workouts, syncRepo, profileRepo)

	feed := healthfeed.NewClient(cfg.HealthFeedURL, cfg.HealthFeedToken)
	sync := reconciler.New(feed, workoutRepo, syncRepo, profileRepo,
		reconciler.WithEventRecorder(persistence.NewSyncEventRecorder(pool)))

	engine := aggregate.Engine{WeekStart: cfg.WeekStart}

	handler := api.NewHandler(workouts, profiles, account, sync, engine)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	// Simple CORS middleware for local dev
	cors := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "http://localhost:5173")
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}

	// Basic request logger
	logger := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.Printf("%s %s", r.Method, r.URL.Path)
			next.ServeHTTP(w, r)
		})
	}

	authMiddleware := auth.NewMiddleware(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer}, auth.SkipHealthz)

	server := httptransport.NewServer(httptransport.ServerConfig{
		Address: cfg.HTTPAddress,
	}, authMiddleware.Wrap(logger(cors(mux))))

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("tri-api listening on %s", cfg.HTTPAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-shutdownCh
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	dispatcher.Wait()
}
