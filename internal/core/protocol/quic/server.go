package quic

import (
	"context"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/quic-go/quic-go"

	"github.com/orrerysim/orrery/internal/core/observability/log"
	"github.com/orrerysim/orrery/internal/core/protocol"
)

const (
	codeNormalClose    quic.ApplicationErrorCode = 0
	codeTooManyClients quic.ApplicationErrorCode = 1
)

// Server answers command frames over QUIC. A fixed worker pool drains the
// incoming streams so a burst of commands cannot spawn unbounded goroutines.
type Server struct {
	cfg     protocol.Config
	handler protocol.Handler
	logger  log.Log

	listener  *quic.Listener
	conns     sync.Map // connection id -> *quic.Conn
	connCount int32    // atomic
	work      chan workItem
	done      chan struct{}
	running   int32 // atomic
	wg        sync.WaitGroup
}

type workItem struct {
	stream *quic.Stream
	logger log.Log
}

// NewServer builds a server around the handler. The handler runs on worker
// goroutines, one command at a time per worker.
func NewServer(cfg protocol.Config, handler protocol.Handler, logger log.Log) *Server {
	if logger == nil {
		logger = log.Provide()
	}
	return &Server{
		cfg:     cfg,
		handler: handler,
		logger:  logger.With(log.String("transport", "quic")),
	}
}

// Start binds the endpoint and begins serving. It returns once the listener
// is up; serving continues until Stop or until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		return errors.New("server is already running")
	}

	if err := s.cfg.Validate(); err != nil {
		atomic.StoreInt32(&s.running, 0)
		return err
	}

	tlsConf, err := serverTLSConfig(s.cfg)
	if err != nil {
		atomic.StoreInt32(&s.running, 0)
		return err
	}

	quicConf := &quic.Config{
		MaxIdleTimeout:        s.cfg.IdleTimeout,
		KeepAlivePeriod:       s.cfg.KeepAlive,
		MaxIncomingStreams:    int64(s.cfg.MaxConnections),
		MaxIncomingUniStreams: int64(s.cfg.MaxConnections / 2),
	}

	listener, err := quic.ListenAddr(s.cfg.Addr(), tlsConf, quicConf)
	if err != nil {
		atomic.StoreInt32(&s.running, 0)
		return protocol.WrapError(err, "failed to create QUIC listener")
	}

	s.listener = listener
	s.done = make(chan struct{})
	s.work = make(chan workItem, s.cfg.WorkerCount*8)

	for i := 0; i < s.cfg.WorkerCount; i++ {
		s.wg.Add(1)
		go s.worker(ctx)
	}

	s.wg.Add(1)
	go s.acceptLoop(ctx)

	go func() {
		select {
		case <-ctx.Done():
			_ = s.Stop()
		case <-s.done:
		}
	}()

	s.logger.Info("QUIC endpoint listening",
		log.String("addr", listener.Addr().String()),
		log.Int("workers", s.cfg.WorkerCount))

	return nil
}

// Stop closes the listener and every connection, then waits for the workers
// to drain. Safe to call more than once.
func (s *Server) Stop() error {
	if !atomic.CompareAndSwapInt32(&s.running, 1, 0) {
		return nil
	}

	s.logger.Info("Stopping QUIC endpoint")
	close(s.done)
	err := s.listener.Close()

	s.conns.Range(func(_, value any) bool {
		if conn, ok := value.(*quic.Conn); ok {
			_ = conn.CloseWithError(codeNormalClose, "server shutting down")
		}
		return true
	})

	s.wg.Wait()
	return err
}

// Running reports whether the endpoint is serving.
func (s *Server) Running() bool {
	return atomic.LoadInt32(&s.running) == 1
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) acceptLoop(ctx context.Context) {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept(ctx)
		if err != nil {
			if atomic.LoadInt32(&s.running) == 1 && ctx.Err() == nil {
				s.logger.Error("Listener stopped accepting", log.Error(err))
			}
			return
		}

		if s.cfg.MaxConnections > 0 && int(atomic.AddInt32(&s.connCount, 1)) > s.cfg.MaxConnections {
			atomic.AddInt32(&s.connCount, -1)
			s.logger.Warn("Connection refused, limit reached",
				log.String("remote_addr", conn.RemoteAddr().String()),
				log.Int("max_connections", s.cfg.MaxConnections))
			_ = conn.CloseWithError(codeTooManyClients, "too many connections")
			continue
		}

		s.wg.Add(1)
		go s.serveConn(ctx, conn)
	}
}

func (s *Server) serveConn(ctx context.Context, conn *quic.Conn) {
	defer s.wg.Done()

	id := uuid.New().String()
	s.conns.Store(id, conn)
	defer func() {
		s.conns.Delete(id)
		atomic.AddInt32(&s.connCount, -1)
		_ = conn.CloseWithError(codeNormalClose, "connection closed")
	}()

	logger := s.logger.With(
		log.String("connection_id", id),
		log.String("remote_addr", conn.RemoteAddr().String()))
	logger.Info("Connection established")

	for {
		stream, err := conn.AcceptStream(ctx)
		if err != nil {
			logger.Debug("Connection closed", log.Error(err))
			return
		}

		select {
		case s.work <- workItem{stream: stream, logger: logger}:
		case <-s.done:
			_ = stream.Close()
			return
		case <-ctx.Done():
			_ = stream.Close()
			return
		}
	}
}

func (s *Server) worker(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case item := <-s.work:
			s.serveStream(ctx, item)
		case <-s.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// serveStream handles one request and reply cycle on its own stream.
func (s *Server) serveStream(ctx context.Context, item workItem) {
	defer func() {
		_ = item.stream.Close()
	}()

	payload, err := readFrame(item.stream, s.cfg.MaxMessageSize)
	if err != nil {
		if err != io.EOF {
			item.logger.Debug("Failed to read request frame", log.Error(err))
		}
		return
	}

	var resp *protocol.Response
	req, err := protocol.DecodeRequest(payload)
	if err != nil {
		resp = protocol.Failure(protocol.MsgDecodeError)
	} else {
		resp = s.handler(ctx, req)
		protocol.ReleaseRequest(req)
	}

	data, err := resp.Marshal()
	protocol.ReleaseResponse(resp)
	if err != nil {
		item.logger.Error("Failed to encode response", log.Error(err))
		return
	}

	if err := writeFrame(item.stream, data, s.cfg.MaxMessageSize); err != nil {
		item.logger.Debug("Failed to write response frame", log.Error(err))
	}
}
