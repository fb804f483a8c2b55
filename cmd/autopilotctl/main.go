// Command autopilotctl is the operator CLI for the campaign autopilot. It
// talks to the database directly, the same way the server does.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/eventnexus/autopilot/internal/app"
	"github.com/eventnexus/autopilot/internal/config"
	"github.com/eventnexus/autopilot/internal/service/autopilot"
)

func main() {
	c := &cli{out: os.Stdout, open: openService}
	if err := newRootCommand(c).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func openService(ctx context.Context, cfgFile string) (*autopilot.Service, func() error, error) {
	cfg, err := config.LoadFromEnv(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	// Keep command output readable; the service logs to stderr.
	if os.Getenv("LOG_LEVEL") == "" {
		cfg.Logging.Level = "warn"
	}
	a, err := app.New(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return a.Service, a.Close, nil
}
