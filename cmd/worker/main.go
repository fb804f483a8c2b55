package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/eventnexus/autopilot/internal/app"
	"github.com/eventnexus/autopilot/internal/config"
)

func main() {
	log.Println("Starting EventNexus autopilot worker...")

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config/config.yaml"
	}
	cfg, err := config.LoadFromEnv(path)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Database.URL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize autopilot: %v", err)
	}
	defer a.Close()

	sched := a.Scheduler()
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}
	log.Printf("Worker running, cycles scheduled %s", cfg.Autopilot.Schedule)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down worker...")
	cancel()

	// Stop waits for an in-flight cycle; its own time budget bounds the wait.
	sched.Stop()

	log.Println("Worker stopped")
}
