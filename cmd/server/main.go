package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/orrerysim/orrery/internal/config"
	"github.com/orrerysim/orrery/internal/core/observability/log"
	"github.com/orrerysim/orrery/internal/injector"
)

func main() {
	configPath := flag.String("config", "", "YAML or JSON config file; defaults apply without one")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "config:", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	// The first logger built becomes the process-wide one the injector
	// hands to every component.
	logger := log.New(log.ParseLevel(cfg.Logging.Level))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := injector.InitializeApp(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to assemble server", log.Error(err))
	}

	if err = app.Broker.InstallDefaults(ctx); err != nil {
		logger.Fatal("failed to install default templates", log.Error(err))
	}

	if err = app.Server.Start(ctx); err != nil {
		logger.Fatal("failed to start listeners", log.Error(err))
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return app.Stepper.Run(groupCtx) })
	group.Go(func() error { return app.Scripts.Run(groupCtx) })

	logger.Info("orrery up",
		log.String("command", app.Server.CommandAddr()),
		log.String("gateway", app.Server.GatewayAddr()),
		log.String("engine", app.Stepper.Engine().Name()))

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, os.Interrupt, syscall.SIGTERM)
	<-stopCh

	logger.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err = app.Server.Stop(shutdownCtx); err != nil {
		logger.Error("failed to stop listeners", log.Error(err))
	}
	if err = group.Wait(); err != nil {
		logger.Error("background workers", log.Error(err))
	}
	logger.Info("bye")
}
