package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trafficctl/internal/alerts"
	"trafficctl/internal/api"
	"trafficctl/internal/cloud/cloudflare"
	"trafficctl/internal/cloud/dockerhost"
	"trafficctl/internal/cloud/live"
	"trafficctl/internal/cloud/mock"
	"trafficctl/internal/config"
	"trafficctl/internal/core"
	"trafficctl/internal/engine"
	"trafficctl/internal/events"
	"trafficctl/internal/health"
	"trafficctl/internal/metrics"
	"trafficctl/internal/recommend"
	"trafficctl/internal/routing"
	"trafficctl/internal/scaling"
)

func main() {
	configPath := flag.String("config", "", "path to JSON config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	cloud, err := buildCloud(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize cloud provider: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := events.NewBus()
	set := metrics.NewSet()
	store := alerts.NewStore(cfg.AlertRetention)
	registry := health.NewRegistry()
	registry.SetDefaultThresholds(cfg.FailureThreshold, cfg.RecoveryThreshold)
	monitor := health.NewMonitor(registry, cloud, bus, store, set)
	router := routing.NewEngine(cloud, registry, bus, store, set)
	evaluator := scaling.NewEvaluator(cloud, bus, store, set)
	evaluator.SetPeriod(time.Duration(cfg.ScaleInterval) * time.Second)
	evaluator.SetCooldown(time.Duration(cfg.ScaleCooldown) * time.Second)

	eng := engine.New(registry, monitor, router, evaluator, recommend.NewEngine(), store, set)
	eng.Start(ctx)

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: api.NewServer(eng, set),
	}

	log.Printf("trafficctl listening on %s (provider: %s)", cfg.ListenAddr, cfg.Provider)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down...")

	// Stop pollers, watcher, and evaluator first so no new provider
	// calls start while the server drains.
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server failed to shut down gracefully: %v", err)
	} else {
		log.Println("HTTP server shutdown complete")
	}

	log.Println("Server exited gracefully")
}

// buildCloud selects the provider. Live mode composes HTTP probing
// with whichever of Cloudflare routing and Docker scaling is enabled.
func buildCloud(cfg config.Config) (core.CloudControl, error) {
	if cfg.Provider == "mock" {
		log.Println("Using mock cloud provider")
		return mock.New(), nil
	}

	var routes live.RouteWriter
	if cfg.Cloudflare.Enabled {
		router, err := cloudflare.NewRouter(cfg.CloudflareRouterConfig())
		if err != nil {
			return nil, err
		}
		routes = router
		log.Println("Cloudflare routing enabled")
	}

	var scaler live.Scaler
	if cfg.Docker.Enabled {
		host, err := dockerhost.NewHost(cfg.DockerHostConfig())
		if err != nil {
			return nil, err
		}
		scaler = host
		log.Println("Docker scaling enabled")
	}

	return live.NewCloud(routes, scaler), nil
}
