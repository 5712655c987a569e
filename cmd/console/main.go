// Command console runs scene scripts against a running orrery server.
//
//	console scene.tengo                     run one script and exit
//	console -dir scenes                     run every script in a directory
//	console -dir scenes -watch              keep re-running scripts on change
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/orrerysim/orrery/internal/core/observability/log"
	"github.com/orrerysim/orrery/internal/core/script"
	"github.com/orrerysim/orrery/sdk/go/client"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "console:", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "localhost:5555", "server command endpoint")
	dir := flag.String("dir", "", "scene script directory")
	watch := flag.Bool("watch", false, "re-run scripts when their files change")
	level := flag.String("log", "warn", "log level")
	flag.Parse()

	logger := log.New(log.ParseLevel(*level))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-stopCh
		cancel()
	}()

	cfg := client.DefaultConfig()
	cfg.Addr = *addr
	cfg.LogLevel = log.ParseLevel(*level)
	c, err := client.Dial(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	if flag.NArg() > 0 {
		session := script.NewSession(c.Handler(), logger)
		for _, path := range flag.Args() {
			if _, err = session.RunFile(ctx, path); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
		}
		return nil
	}

	if *dir == "" {
		return errors.New("nothing to run: pass script files or -dir")
	}

	runnerCfg := script.DefaultConfig()
	runnerCfg.Dir = *dir
	runnerCfg.Watch = *watch
	return script.NewRunner(runnerCfg, c.Handler(), logger).Run(ctx)
}
