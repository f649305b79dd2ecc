package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/p2pdesk/arb-engine/internal/config"
	"github.com/p2pdesk/arb-engine/internal/metrics"
	"github.com/p2pdesk/arb-engine/internal/ops"
	"github.com/p2pdesk/arb-engine/internal/store"
	"github.com/p2pdesk/arb-engine/internal/vault"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration error", "err", err)
		os.Exit(1)
	}

	// --- Initialize store ---
	var st store.Store
	var cleanup []func()

	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)

		pg := store.NewPostgresStore(pool)
		if err := pg.Migrate(context.Background()); err != nil {
			slog.Error("database migration failed", "err", err)
			os.Exit(1)
		}
		st = pg
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if cfg.RedisURL != "" {
			opt, err := redis.ParseURL(cfg.RedisURL)
			if err != nil {
				slog.Error("invalid REDIS_URL", "err", err)
				os.Exit(1)
			}
			rdb := redis.NewClient(opt)
			cleanup = append(cleanup, func() { rdb.Close() })
			st = store.NewCachedStore(st, rdb, 30*time.Second)
			slog.Info("Redis cache enabled")
		}
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- WebSocket hub ---
	wsHub := ops.NewWSHub()
	go wsHub.Run()

	// --- Services ---
	vaultSvc := vault.NewService(st)
	opsSvc := ops.NewService(st, vaultSvc, cfg.Trading, wsHub)

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	// CORS middleware for frontend cross-origin requests.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"arb-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for real-time bookkeeping events.
		r.Get("/ws", wsHub.HandleWS)

		// Capital vault.
		r.Get("/vault", vaultSvc.HandleInventory)
		r.Post("/vault/deposit", vaultSvc.HandleDeposit)
		r.Post("/vault/withdraw", vaultSvc.HandleWithdraw)
		r.Get("/vault/{symbol}", vaultSvc.HandleGetHolding)
		r.Get("/assets", vaultSvc.HandleListAssets)

		// Accounting cycles.
		r.Get("/cycles", opsSvc.HandleListCycles)
		r.Post("/cycles/start", opsSvc.HandleStartCycle)
		r.Post("/cycles/close", opsSvc.HandleCloseCycle)
		r.Get("/cycles/active", opsSvc.HandleGetActiveCycle)
		r.Get("/cycles/{cycleID}", opsSvc.HandleGetCycle)
		r.Get("/cycles/{cycleID}/days", opsSvc.HandleListDays)
		r.Get("/cycles/{cycleID}/statistics", opsSvc.HandleCycleStatistics)

		// Operating days and the sale ledger.
		r.Post("/days/open", opsSvc.HandleOpenDay)
		r.Post("/days/close", opsSvc.HandleCloseDay)
		r.Get("/days/current", opsSvc.HandleCurrentDay)
		r.Get("/days/{dayID}/sales", opsSvc.HandleListDaySales)
		r.Post("/sales", opsSvc.HandleRecordSale)

		// Read-side summary.
		r.Get("/dashboard", opsSvc.HandleDashboard)
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("arb-engine listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down arb-engine...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("arb-engine stopped")
}
