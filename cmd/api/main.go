package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"marginalia/api/internal/admission"
	"marginalia/api/internal/app"
	"marginalia/api/internal/authpw"
	"marginalia/api/internal/config"
	"marginalia/api/internal/realtime"
	"marginalia/api/internal/search"
	"marginalia/api/internal/session"
	"marginalia/api/internal/store"
)

func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatalf("invalid redis url: %v", err)
	}
	redisClient := redis.NewClient(opts)
	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		pingCancel()
		log.Fatalf("redis connection failed: %v", err)
	}
	pingCancel()
	defer redisClient.Close()

	sessions := session.NewRedisStoreWithClient(redisClient)

	hub := realtime.NewHub()
	gateway := realtime.NewGateway(redisClient, hub)
	defer gateway.Close()

	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, search.NewMemory())

	comments := store.NewMemory()
	accounts := authpw.NewService()
	service := app.New(cfg, comments, sessions, accounts, gateway, searchService)

	go service.RunNotificationJanitor(ctx, time.Hour)

	limiter := admission.NewLimiter(cfg.AdmissionPoints, cfg.AdmissionWindow)
	defer limiter.Close()

	httpServer := app.NewHTTPServer(service, hub, limiter, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Marginalia API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
