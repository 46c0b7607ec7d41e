package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/cookaing/campaign-engine/internal/api"
	"github.com/cookaing/campaign-engine/internal/config"
	"github.com/cookaing/campaign-engine/internal/email"
	"github.com/cookaing/campaign-engine/internal/personalize"
	"github.com/cookaing/campaign-engine/internal/pkg/logger"
	"github.com/cookaing/campaign-engine/internal/store"
	"github.com/cookaing/campaign-engine/internal/tracking"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if cfg.Tracking.UsingDefaultSecret() {
		logger.Warn("tracking signing secret is the insecure default, set TRACKING_SIGNING_SECRET")
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	if err := db.PingContext(pingCtx); err != nil {
		cancelPing()
		log.Fatalf("postgres ping: %v", err)
	}
	cancelPing()

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Warn("redis unavailable, event dedup and send locks degrade",
				"addr", cfg.Redis.Addr, "error", err.Error())
		}
		defer redisClient.Close()
	}

	st := store.NewStore(db)

	var providers []email.Provider
	if cfg.Brevo.Enabled {
		providers = append(providers, email.NewBrevoProvider(cfg.Brevo))
	}
	if cfg.Resend.Enabled {
		providers = append(providers, email.NewResendProvider(cfg.Resend))
	}
	if cfg.SES.Enabled {
		ses, err := email.NewSESProvider(context.Background(), cfg.SES)
		if err != nil {
			logger.Error("ses provider init failed, continuing without it", "error", err.Error())
		} else {
			providers = append(providers, ses)
		}
	}
	dispatcher := email.NewDispatcher(providers...)
	logger.Info("provider chain configured", "providers", dispatcher.Providers())

	signer := tracking.NewSigner(cfg.Tracking.SigningSecret, cfg.Tracking.BaseURL)
	verifier := tracking.NewVerifier(cfg.Tracking.SigningSecret, cfg.Tracking.MaxAge())

	deduper := store.NewEventDeduper(redisClient, store.DefaultDedupTTL)
	locks := func(campaignID int) store.SendLock {
		return store.NewSendLock(redisClient, db, campaignID, 30*time.Minute)
	}

	handlers := api.NewHandlers(st, dispatcher, signer, personalize.NewRenderer(),
		deduper, locks, cfg.Sender)
	trackingHandler := tracking.NewHandler(verifier, st)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.GetHost(), cfg.Server.Port),
		Handler:      api.NewRouter(handlers, trackingHandler),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("campaign engine listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown", "error", err.Error())
	}
}
