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

	"github.com/joho/godotenv"

	"esquadra.org/internal/auth"
	"esquadra.org/internal/httpapi"
	"esquadra.org/internal/obs"
	"esquadra.org/internal/tenant"
)

var version = "0.4.1"

func main() {
	_ = godotenv.Load()
	obs.Init()
	defer obs.Sync()

	cfgPath := os.Getenv("ESQUADRA_FORCES_CONFIG")
	if cfgPath == "" {
		cfgPath = "forces.yaml"
	}
	cfg, err := tenant.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("load force registry: %v", err)
	}
	registry, err := tenant.Open(cfg)
	if err != nil {
		log.Fatalf("open force pools: %v", err)
	}
	defer registry.Close()

	var opts []auth.ServiceOption
	if tokenURL := os.Getenv("ESQUADRA_FEDERATED_TOKEN_URL"); tokenURL != "" {
		opts = append(opts, auth.WithFederatedProvider(&auth.HTTPFederatedProvider{
			TokenURL:     tokenURL,
			ClientID:     os.Getenv("ESQUADRA_FEDERATED_CLIENT_ID"),
			ClientSecret: os.Getenv("ESQUADRA_FEDERATED_CLIENT_SECRET"),
			IDTokenKey:   []byte(strings.TrimSpace(os.Getenv("ESQUADRA_FEDERATED_ID_TOKEN_KEY"))),
		}))
	}
	svc, err := auth.NewService(registry, opts...)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go auth.NewSweeper(registry).Run(ctx)

	api := httpapi.New(svc, registry, httpapi.ReadyProbe{Ping: registry.Ping}, version)

	addr := os.Getenv("ESQUADRA_HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting esquadra-api %s on %s (%d forces)", version, srv.Addr, len(registry.Keys()))

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	log.Println("Stopped")
}
