package script

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/orrerysim/orrery/internal/core/observability/log"
	"github.com/orrerysim/orrery/internal/core/protocol"
)

// Runner executes every scene script in a directory and, when watching is
// enabled, re-runs a script each time its file changes.
type Runner struct {
	cfg     Config
	session *Session
	logger  log.Log
}

// NewRunner builds a runner over the given handler.
func NewRunner(cfg Config, handler protocol.Handler, logger log.Log) *Runner {
	if logger == nil {
		logger = log.Provide()
	}
	return &Runner{
		cfg:     cfg,
		session: NewSession(handler, logger),
		logger:  logger.With(log.String("component", "script")),
	}
}

// Run executes the scene scripts once and then, if watching is enabled,
// blocks re-running changed scripts until the context is cancelled. A
// missing script directory is not an error; the runner just has nothing
// to do.
func (r *Runner) Run(ctx context.Context) error {
	if r.cfg.Dir == "" {
		return nil
	}
	if _, err := os.Stat(r.cfg.Dir); os.IsNotExist(err) {
		r.logger.Info("no script directory", log.String("dir", r.cfg.Dir))
		return nil
	}

	paths, err := filepath.Glob(filepath.Join(r.cfg.Dir, "*.tengo"))
	if err != nil {
		return err
	}
	sort.Strings(paths)
	for _, path := range paths {
		r.runOne(ctx, path)
	}

	if !r.cfg.Watch {
		return nil
	}

	watcher, err := NewWatcher(r.cfg.Dir)
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	r.logger.Info("watching scene scripts", log.String("dir", r.cfg.Dir))
	for {
		select {
		case <-ctx.Done():
			return nil
		case path, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			r.runOne(ctx, path)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.Error("script watcher", log.Error(err))
		}
	}
}

// runOne executes a single script. Script failures are logged, not
// propagated: one broken scene must not take the process down.
func (r *Runner) runOne(ctx context.Context, path string) {
	runCtx := ctx
	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}
	start := time.Now()
	if _, err := r.session.RunFile(runCtx, path); err != nil {
		r.logger.Error("scene script failed",
			log.String("path", path),
			log.Error(err),
		)
		return
	}
	r.logger.Info("scene script ran",
		log.String("path", path),
		log.Duration("took", time.Since(start)),
	)
}
