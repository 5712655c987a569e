// Package script embeds a tengo interpreter with an "orrery" module bound
// to a command handler. Scene scripts author shapes and templates, spawn
// objects and steer them through the same wire commands network clients
// use; the handler behind the module decides whether that traffic stays in
// process or crosses the network.
package script

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"

	"github.com/orrerysim/orrery/internal/core/observability/log"
	"github.com/orrerysim/orrery/internal/core/protocol"
)

// ModuleName is the import name scene scripts use.
const ModuleName = "orrery"

// Config controls the script runner.
type Config struct {
	// Dir is the directory holding scene scripts (*.tengo).
	Dir string `yaml:"dir" json:"dir"`
	// Watch re-runs a script whenever its file changes.
	Watch bool `yaml:"watch" json:"watch"`
	// Timeout bounds one script run. Zero means no bound.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// DefaultConfig runs scripts from ./scripts without watching.
func DefaultConfig() Config {
	return Config{
		Dir:     "scripts",
		Watch:   false,
		Timeout: 30 * time.Second,
	}
}

// Session executes scene scripts against one handler. Scripts compiled by
// the same session share nothing; every Run starts fresh.
type Session struct {
	handler protocol.Handler
	logger  log.Log
}

// NewSession binds scripts to the given handler. The handler is usually
// broker.Handler for in-process use or a client adapter for remote use.
func NewSession(handler protocol.Handler, logger log.Log) *Session {
	if logger == nil {
		logger = log.Provide()
	}
	return &Session{
		handler: handler,
		logger:  logger.With(log.String("component", "script")),
	}
}

// Run compiles and executes one script. The returned compiled script holds
// the final values of the script's globals.
func (s *Session) Run(ctx context.Context, src []byte) (*tengo.Compiled, error) {
	script := tengo.NewScript(src)
	modules := stdlib.GetModuleMap(stdlib.AllModuleNames()...)
	modules.AddBuiltinModule(ModuleName, s.moduleAttrs(ctx))
	script.SetImports(modules)
	return script.RunContext(ctx)
}

// RunFile reads and executes one script file.
func (s *Session) RunFile(ctx context.Context, path string) (*tengo.Compiled, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return s.Run(ctx, src)
}

// call executes one command through the session's handler and binds the
// response payload into result.
func (s *Session) call(ctx context.Context, cmd string, payload, result any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	resp := s.handler(ctx, &protocol.Request{Cmd: cmd, Data: data})
	if resp == nil {
		return fmt.Errorf("%s: no response", cmd)
	}
	if !resp.OK {
		return fmt.Errorf("%s: %s", cmd, resp.Msg)
	}
	if result == nil || len(resp.Data) == 0 {
		return nil
	}
	return json.Unmarshal(resp.Data, result)
}
