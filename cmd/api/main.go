package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"telecom-calls/internal/audit"
	"telecom-calls/internal/auth"
	"telecom-calls/internal/calls"
	"telecom-calls/internal/config"
	"telecom-calls/internal/httpapi"
	"telecom-calls/internal/membership"
	"telecom-calls/internal/notify"
	"telecom-calls/internal/reporting"
	"telecom-calls/internal/signaling"
	"telecom-calls/pkg/logger"
	"telecom-calls/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
)

// stores bundles the persistence backends selected by STORE_BACKEND.
type stores struct {
	db        *sql.DB
	calls     calls.Repository
	directory calls.Directory
	members   *membership.MemoryDirectory // memory backend only
	audit     audit.Repository
}

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env, cfg.App.LogLevel)
	slog.SetDefault(log)
	rootCtx = logger.With(rootCtx, log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	st, err := openStores(rootCtx, cfg)
	if err != nil {
		log.Error("store init failed", "backend", cfg.Store.Backend, "err", err)
		os.Exit(1)
	}
	if st.db != nil {
		defer st.db.Close()
	}

	var rdb *redis.Client
	if cfg.Signaling.Backend == config.BackendRedis {
		rdb, err = utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr(), Password: cfg.Redis.Password})
		if err != nil {
			log.Error("redis init failed", "err", err)
			os.Exit(1)
		}
		defer rdb.Close()
	}

	// Signaling: the hub always holds this node's sockets. With redis, publishes go through
	// pub/sub and every node's subscriber feeds its own hub.
	var (
		bg      sync.WaitGroup
		hub     = signaling.NewHub(log)
		bus     notify.Bus
		limiter signaling.ConnLimiter
	)
	bg.Add(1)
	go func() {
		defer bg.Done()
		hub.Run(rootCtx)
	}()
	if rdb != nil {
		bus = signaling.NewRedisBus(rdb)
		limiter = signaling.NewRedisConnLimiter(rdb, cfg.Signaling.MaxConnsPerUser, cfg.Signaling.ConnSlotTTL)
		sub := signaling.NewSubscriber(rdb, hub, log)
		bg.Add(1)
		go func() {
			defer bg.Done()
			if err := sub.Run(rootCtx); err != nil {
				log.Error("redis subscriber stopped", "err", err)
			}
		}()
	} else {
		bus = hub
		limiter = signaling.NewLocalConnLimiter(cfg.Signaling.MaxConnsPerUser)
	}

	relay := notify.NewRelay(bus, cfg.Calls.FanoutTimeout)
	auditSvc := audit.NewService(st.audit)
	manager := calls.NewManager(calls.Deps{
		Repo:      st.calls,
		Directory: st.directory,
		Notifier:  relay,
		Audit:     auditSvc,
	}, cfg.Calls.StaleAfter)

	if cfg.Calls.ReaperInterval > 0 {
		reaper := calls.NewReaper(manager, cfg.Calls.ReaperInterval)
		bg.Add(1)
		go func() {
			defer bg.Done()
			reaper.Run(rootCtx)
		}()
		log.Info("call reaper enabled", "interval", cfg.Calls.ReaperInterval.String())
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	handlers := httpapi.Handlers{
		Auth:  authManager,
		Calls: manager,
		Stats: reporting.NewService(reporting.NewCallsRepo(st.calls)),
		Audit: auditSvc,
	}

	registerPublicRoutes(r, st.db)
	if !cfg.IsProduction() {
		registerDevRoutes(r, handlers, st.members)
	}
	registerProtectedRoutes(r, authManager, handlers, signaling.NewHandler(hub, limiter))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env, "store", cfg.Store.Backend, "signaling", cfg.Signaling.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	// Hijacked websocket connections are not tracked by Shutdown; the hub closes them
	// when rootCtx is done.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
	relay.Close()
	bg.Wait()

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}

func openStores(ctx context.Context, cfg config.Config) (stores, error) {
	if cfg.Store.Backend == config.BackendMemory {
		dir := membership.NewMemoryDirectory()
		return stores{
			calls:     calls.NewMemoryRepo(),
			directory: dir,
			members:   dir,
			audit:     audit.NewMemoryRepo(),
		}, nil
	}

	db, err := utils.OpenPostgres(ctx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		return stores{}, err
	}
	schema := make([]string, 0, len(calls.Schema)+len(membership.Schema)+len(audit.Schema))
	schema = append(schema, calls.Schema...)
	schema = append(schema, membership.Schema...)
	schema = append(schema, audit.Schema...)
	if err := utils.ApplySchema(ctx, db, schema...); err != nil {
		_ = db.Close()
		return stores{}, err
	}
	return stores{
		db:        db,
		calls:     calls.NewPostgresRepo(db),
		directory: membership.NewPostgresDirectory(db),
		audit:     audit.NewPostgresRepo(db),
	}, nil
}
