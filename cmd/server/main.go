package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eventnexus/autopilot/internal/app"
	"github.com/eventnexus/autopilot/internal/config"
	"github.com/eventnexus/autopilot/internal/scheduler"
)

// checkPortAvailable verifies that the target port is not already in use.
func checkPortAvailable(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("address %s is already in use: %w", addr, err)
	}
	return ln.Close()
}

func configPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "config/config.yaml"
}

func main() {
	log.Println("Starting EventNexus autopilot server...")

	cfg, err := config.LoadFromEnv(configPath())
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	addr := cfg.Server.Addr()
	if err := checkPortAvailable(addr); err != nil {
		log.Fatalf("Pre-flight check FAILED: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize autopilot: %v", err)
	}
	defer a.Close()

	var sched *scheduler.Scheduler
	if cfg.Autopilot.ScheduleEnabled {
		sched = a.Scheduler()
		if err := sched.Start(ctx); err != nil {
			log.Fatalf("Failed to start scheduler: %v", err)
		}
		log.Printf("Autopilot scheduler started (%s)", cfg.Autopilot.Schedule)
	} else {
		log.Println("Autopilot scheduler disabled; cycles run only on demand")
	}

	server := a.Server()

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("Starting server on %s", addr)
		if err := server.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	log.Println("Shutting down...")

	cancel()
	if sched != nil {
		sched.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}
