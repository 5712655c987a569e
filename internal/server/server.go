// Package server is the network shell around the broker: a QUIC endpoint
// for command traffic and an HTTP gateway carrying websocket sessions and
// model file downloads. Both speak the same JSON envelope against the same
// handler.
package server

import (
	"context"
	"sync/atomic"

	"github.com/orrerysim/orrery/internal/core/asset"
	"github.com/orrerysim/orrery/internal/core/events/bus"
	"github.com/orrerysim/orrery/internal/core/observability/log"
	"github.com/orrerysim/orrery/internal/core/protocol"
	"github.com/orrerysim/orrery/internal/core/protocol/quic"
)

// Config holds the endpoint settings of both listeners.
type Config struct {
	// Command is the QUIC command port.
	Command protocol.Config `yaml:"command" json:"command"`
	// Gateway is the HTTP listener serving websocket sessions, model files
	// and the health probe.
	Gateway protocol.Config `yaml:"gateway" json:"gateway"`
}

// DefaultConfig returns development defaults: QUIC on 5555, HTTP on 8080.
func DefaultConfig() Config {
	command := protocol.DefaultConfig()
	gateway := protocol.DefaultConfig()
	gateway.Port = 8080
	return Config{Command: command, Gateway: gateway}
}

func (c Config) Validate() error {
	if err := c.Command.Validate(); err != nil {
		return err
	}
	return c.Gateway.Validate()
}

// Server owns the two listeners. The handler passed in is the raw broker
// handler; the server wraps it with recovery and logging middleware so both
// transports behave identically.
type Server struct {
	cfg     Config
	handler protocol.Handler
	command *quic.Server
	gateway *Gateway
	logger  log.Log

	running int32 // atomic
	closed  int32 // atomic
}

// New wires the listeners around the handler. Assets back the gateway's
// file endpoints; the event bus feeds its health probe and may be nil.
func New(cfg Config, handler protocol.Handler, assets *asset.Store, eventBus bus.Bus, logger log.Log) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Provide()
	}
	logger = logger.With(log.String("component", "server"))

	handler = protocol.Chain(handler,
		protocol.WithRecovery(logger),
		protocol.WithLogging(logger),
	)

	return &Server{
		cfg:     cfg,
		handler: handler,
		command: quic.NewServer(cfg.Command, handler, logger),
		gateway: NewGateway(cfg.Gateway, handler, assets, eventBus, logger),
		logger:  logger,
	}, nil
}

// Start brings up both listeners. It returns once they are bound; serving
// continues until Stop or until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if atomic.LoadInt32(&s.closed) == 1 {
		return ErrServerClosed
	}
	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		return ErrServerAlreadyRunning
	}

	s.logger.Info("Starting server")

	if err := s.command.Start(ctx); err != nil {
		atomic.StoreInt32(&s.running, 0)
		return err
	}
	if err := s.gateway.Start(ctx); err != nil {
		_ = s.command.Stop()
		atomic.StoreInt32(&s.running, 0)
		return err
	}

	s.logger.Info("Server started",
		log.String("command_addr", s.command.Addr().String()),
		log.String("gateway_addr", s.gateway.Addr()))
	return nil
}

// Stop tears both listeners down, websocket sessions included.
func (s *Server) Stop(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.running, 1, 0) {
		return ErrServerNotRunning
	}

	s.logger.Info("Stopping server")
	gatewayErr := s.gateway.Stop(ctx)
	commandErr := s.command.Stop()
	if commandErr != nil {
		return commandErr
	}
	return gatewayErr
}

// Close stops the server if needed and marks it unusable.
func (s *Server) Close() error {
	if !atomic.CompareAndSwapInt32(&s.closed, 0, 1) {
		return nil
	}
	if atomic.LoadInt32(&s.running) == 1 {
		return s.Stop(context.Background())
	}
	return nil
}

// Running reports whether the listeners are up.
func (s *Server) Running() bool {
	return atomic.LoadInt32(&s.running) == 1
}

// CommandAddr returns the bound command address, or the configured one
// before Start.
func (s *Server) CommandAddr() string {
	if addr := s.command.Addr(); addr != nil {
		return addr.String()
	}
	return s.cfg.Command.Addr()
}

// GatewayAddr returns the bound gateway address, or the configured one
// before Start.
func (s *Server) GatewayAddr() string {
	return s.gateway.Addr()
}

// Stats is a snapshot of the server counters.
type Stats struct {
	Running  bool
	Sessions int64
}

// GetStats returns current server statistics.
func (s *Server) GetStats() Stats {
	return Stats{
		Running:  s.Running(),
		Sessions: s.gateway.Sessions(),
	}
}
