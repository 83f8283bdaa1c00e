package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"callbridge/internal/calls"
	"callbridge/internal/config"
	"callbridge/internal/directory"
	"callbridge/internal/notify"
	"callbridge/internal/sessions"
	"callbridge/internal/telephony"
	"callbridge/internal/ws"
	"callbridge/pkg/logger"
	"callbridge/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	callStore := calls.NewPostgresStore(db)
	userStore := directory.NewPostgresStore(db)
	dirSvc := directory.NewService(userStore, log)

	twilio := telephony.NewTwilioClient(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.VoiceURL)

	var push notify.PushSender
	if cfg.Push.FCMServerKey != "" {
		push = notify.NewFCMClient(cfg.Push.FCMEndpoint, cfg.Push.FCMServerKey)
	} else {
		log.Warn("push disabled: FCM_SERVER_KEY not set; incoming calls reach live connections only")
	}

	registry := sessions.NewRegistry()
	notifier := notify.New(registry, dirSvc, push, log)

	var caps calls.CapLimiter = calls.NoopCapLimiter{}
	if cfg.Call.MaxActivePerUser > 0 {
		caps = calls.NewRedisCapLimiter(rdb, cfg.Call.MaxActivePerUser, log)
	}

	callSvc := calls.NewService(callStore, twilio, dirSvc, notifier, caps, calls.ServiceConfig{
		FromNumber:        cfg.Twilio.FromNumber,
		StatusCallbackURL: cfg.StatusCallbackURL(),
		NoAnswerTimeout:   cfg.Call.NoAnswerTimeout,
		PlacementTimeout:  cfg.Call.PlacementTimeout,
	}, log)

	wsHandler := ws.NewHandler(callSvc, registry, log)

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, routeDeps{
		Calls:     callSvc,
		Directory: dirSvc,
		WS:        wsHandler,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("broker listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}
