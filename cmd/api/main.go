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

	"negotiation-platform/internal/auth"
	"negotiation-platform/internal/config"
	"negotiation-platform/internal/events"
	"negotiation-platform/internal/httpapi"
	"negotiation-platform/internal/negotiation"
	"negotiation-platform/internal/observability/metrics"
	"negotiation-platform/internal/reporting"
	"negotiation-platform/internal/voiceagent"
	"negotiation-platform/pkg/logger"
	"negotiation-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

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

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}
	users := auth.NewUserStore()

	m := metrics.New(prometheus.DefaultRegisterer)

	provider, err := voiceagent.New(voiceagent.Config{
		BaseURL:     cfg.Provider.BaseURL,
		APIKey:      cfg.Provider.APIKey,
		AssistantID: cfg.Provider.AssistantID,
		Timeout:     cfg.Provider.Timeout,
		Logger:      log,
		Observe:     m.ObserveProviderRequest,
	})
	if err != nil {
		log.Error("voice provider init failed", "err", err)
		os.Exit(1)
	}

	// Resolve the dial-out number up front. A failure here leaves calling
	// inoperable but the API still serves; the first placement fails loudly.
	phoneNumberID, err := provider.ResolvePhoneNumberID(rootCtx, cfg.Provider.AgentNumber)
	if err != nil {
		log.Warn("agent phone number not resolved, call placement will fail until fixed",
			"agent_number", cfg.Provider.AgentNumber, "err", err)
	} else {
		log.Info("agent phone number resolved", "phone_number_id", phoneNumberID)
	}

	var limiter negotiation.Limiter
	if cfg.Redis.Enabled() {
		rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
		if err != nil {
			log.Error("redis init failed", "err", err)
			os.Exit(1)
		}
		defer rdb.Close()
		limiter = utils.NewCallCap(rdb, cfg.Redis.EffectiveMaxActiveCalls())
	}

	uploadDir := cfg.Upload.EffectiveDir()
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		log.Error("upload dir init failed", "dir", uploadDir, "err", err)
		os.Exit(1)
	}

	store := negotiation.NewStore()
	eventSvc := events.NewService(events.NewMemoryRepo())
	negSvc := negotiation.NewService(rootCtx, provider, store, eventSvc, m, limiter, log, negotiation.Config{
		PhoneNumberID: phoneNumberID,
		Voice:         voiceagent.AgentVoice{Provider: "playht", VoiceID: cfg.Provider.EffectiveVoiceID()},
		PollInterval:  cfg.Poll.Interval,
		PollBackoff:   cfg.Poll.Backoff,
	})

	h := httpapi.Handlers{
		Negotiations: negSvc,
		Reports:      reporting.NewService(store),
		Auth:         authManager,
		Users:        users,
		UploadDir:    uploadDir,
		Log:          log,
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, h, auth.RequireAccessToken(authManager), uploadDir)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
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

	// Poll goroutines exit once rootCtx is cancelled.
	negSvc.Wait()
}
