package server

import (
	"context"
	"encoding/json"
	"mime"
	"net"
	"net/http"
	"path"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/orrerysim/orrery/internal/core/asset"
	"github.com/orrerysim/orrery/internal/core/events/bus"
	"github.com/orrerysim/orrery/internal/core/observability/log"
	"github.com/orrerysim/orrery/internal/core/protocol"
	transport "github.com/orrerysim/orrery/internal/core/protocol/websocket"
)

// Gateway is the HTTP face of the broker: websocket sessions on /ws, the
// model files of templates and spawned instances under /templates/ and
// /instances/, and a health probe. Render clients poll object states over
// the websocket and fetch the referenced geometry over plain GETs.
type Gateway struct {
	cfg     protocol.Config
	handler protocol.Handler
	assets  *asset.Store
	bus     bus.Bus
	logger  log.Log

	upgrader websocket.Upgrader
	mux      *http.ServeMux
	server   *http.Server
	listener net.Listener

	// sessionCtx governs every websocket session; cancelling it tears the
	// sessions down, which http.Server.Shutdown does not do for hijacked
	// connections.
	sessionCtx context.Context
	cancel     context.CancelFunc

	sessions     sync.Map // session id -> *transport.Connection
	sessionCount int64    // atomic
	startedAt    time.Time

	stepSub  bus.Subscription
	lastStep atomic.Value // bus.StepCompleted
}

// NewGateway builds the gateway around the handler and asset store. The
// event bus feeds tick stats into the health probe and may be nil.
func NewGateway(cfg protocol.Config, handler protocol.Handler, assets *asset.Store, eventBus bus.Bus, logger log.Log) *Gateway {
	if logger == nil {
		logger = log.Provide()
	}
	g := &Gateway{
		cfg:     cfg,
		handler: handler,
		assets:  assets,
		bus:     eventBus,
		logger:  logger.With(log.String("component", "gateway")),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		startedAt: time.Now(),
	}
	g.sessionCtx, g.cancel = context.WithCancel(context.Background())

	g.mux = http.NewServeMux()
	g.mux.HandleFunc("/ws", g.handleWebsocket)
	g.mux.HandleFunc(asset.TemplatePrefix+"/", g.handleFile)
	g.mux.HandleFunc(asset.InstancePrefix+"/", g.handleFile)
	g.mux.HandleFunc("/health", g.handleHealth)
	return g
}

// Start binds the listener and begins serving. Sessions live until Stop or
// until ctx is cancelled.
func (g *Gateway) Start(ctx context.Context) error {
	g.sessionCtx, g.cancel = context.WithCancel(ctx)

	if g.bus != nil && g.stepSub == nil {
		sub, err := g.bus.SubscribeTopic(bus.TopicPhysics, bus.TypeStepCompleted, func(ev bus.Event) error {
			if stats, ok := ev.Data.(bus.StepCompleted); ok {
				g.lastStep.Store(stats)
			}
			return nil
		})
		if err != nil {
			g.logger.Warn("Step event subscription failed", log.Error(err))
		} else {
			g.stepSub = sub
		}
	}

	listener, err := net.Listen("tcp", g.cfg.Addr())
	if err != nil {
		return protocol.WrapError(err, "failed to bind gateway listener")
	}
	g.listener = listener
	g.server = &http.Server{
		Handler:           g.mux,
		ReadHeaderTimeout: g.cfg.ReadTimeout,
	}
	g.startedAt = time.Now()

	go func() {
		if err := g.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			g.logger.Error("Gateway listener failed", log.Error(err))
		}
	}()

	g.logger.Info("Gateway listening", log.String("addr", listener.Addr().String()))
	return nil
}

// Stop closes the listener and every websocket session.
func (g *Gateway) Stop(ctx context.Context) error {
	g.cancel()
	if g.stepSub != nil {
		_ = g.stepSub.Cancel()
		g.stepSub = nil
	}
	if g.server == nil {
		return nil
	}
	return g.server.Shutdown(ctx)
}

// Addr returns the bound address, or the configured one before Start.
func (g *Gateway) Addr() string {
	if g.listener == nil {
		return g.cfg.Addr()
	}
	return g.listener.Addr().String()
}

// Sessions returns the number of live websocket sessions.
func (g *Gateway) Sessions() int64 {
	return atomic.LoadInt64(&g.sessionCount)
}

// handleWebsocket upgrades the request and serves the command envelope on
// the socket until the client leaves.
func (g *Gateway) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	if g.cfg.MaxConnections > 0 && g.Sessions() >= int64(g.cfg.MaxConnections) {
		g.logger.Warn("Session refused, limit reached",
			log.String("remote_addr", r.RemoteAddr),
			log.Int("max_connections", g.cfg.MaxConnections))
		http.Error(w, "too many sessions", http.StatusServiceUnavailable)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn("Websocket upgrade failed",
			log.String("remote_addr", r.RemoteAddr), log.Error(err))
		return
	}

	session := transport.NewConnection(conn, g.cfg)
	g.sessions.Store(session.ID(), session)
	count := atomic.AddInt64(&g.sessionCount, 1)

	logger := g.logger.With(log.String("session_id", session.ID()))
	logger.Info("Session opened",
		log.String("remote_addr", session.RemoteAddr().String()),
		log.Int64("sessions", count))

	session.OnClose(func(reason string) {
		g.sessions.Delete(session.ID())
		atomic.AddInt64(&g.sessionCount, -1)
		logger.Info("Session closed", log.String("reason", reason))
	})

	session.Serve(g.sessionCtx, g.handler)
}

// handleFile serves one stored model file. The URL path doubles as the
// storage key, the same string handed out in fragment references.
func (g *Gateway) handleFile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	data, err := g.assets.File(r.Context(), r.URL.Path)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	contentType := mime.TypeByExtension(path.Ext(r.URL.Path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	_, _ = w.Write(data)
}

// Health is the health probe payload. Generation and Bodies track the most
// recent physics tick and stay zero until the stepper runs.
type Health struct {
	Status     string  `json:"status"`
	Sessions   int64   `json:"sessions"`
	Uptime     float64 `json:"uptime_seconds"`
	Generation uint64  `json:"generation"`
	Bodies     int     `json:"bodies"`
}

func (g *Gateway) handleHealth(w http.ResponseWriter, _ *http.Request) {
	health := Health{
		Status:   "ok",
		Sessions: g.Sessions(),
		Uptime:   time.Since(g.startedAt).Seconds(),
	}
	if stats, ok := g.lastStep.Load().(bus.StepCompleted); ok {
		health.Generation = stats.Generation
		health.Bodies = stats.Bodies
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(health)
}
