package quic

import (
	"context"
	"sync/atomic"

	"github.com/quic-go/quic-go"

	"github.com/orrerysim/orrery/internal/core/observability/log"
	"github.com/orrerysim/orrery/internal/core/protocol"
)

// Client issues commands over a single QUIC connection. Every call opens a
// fresh bidirectional stream, so replies never interleave and the client is
// safe for concurrent use.
type Client struct {
	cfg    protocol.Config
	conn   *quic.Conn
	logger log.Log
	closed int32 // atomic
}

// Dial connects to a broker endpoint.
func Dial(ctx context.Context, addr string, cfg protocol.Config, logger log.Log) (*Client, error) {
	if logger == nil {
		logger = log.Provide()
	}

	quicConf := &quic.Config{
		MaxIdleTimeout:  cfg.IdleTimeout,
		KeepAlivePeriod: cfg.KeepAlive,
	}

	conn, err := quic.DialAddr(ctx, addr, clientTLSConfig(cfg), quicConf)
	if err != nil {
		return nil, protocol.WrapError(err, "failed to dial QUIC endpoint")
	}

	return &Client{
		cfg:    cfg,
		conn:   conn,
		logger: logger.With(log.String("transport", "quic"), log.String("addr", addr)),
	}, nil
}

// Roundtrip sends one request and waits for its reply. A deadline on ctx
// bounds the whole exchange.
func (c *Client) Roundtrip(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	if atomic.LoadInt32(&c.closed) == 1 {
		return nil, protocol.ErrConnectionClosed
	}

	stream, err := c.conn.OpenStreamSync(ctx)
	if err != nil {
		return nil, protocol.WrapError(err, "failed to open stream")
	}
	defer func() {
		_ = stream.Close()
	}()

	if dl, ok := ctx.Deadline(); ok {
		_ = stream.SetDeadline(dl)
	}

	data, err := req.Marshal()
	if err != nil {
		return nil, err
	}
	if err := writeFrame(stream, data, c.cfg.MaxMessageSize); err != nil {
		return nil, err
	}

	payload, err := readFrame(stream, c.cfg.MaxMessageSize)
	if err != nil {
		return nil, err
	}
	return protocol.DecodeResponse(payload)
}

// Close tears down the connection. Pending roundtrips fail.
func (c *Client) Close() error {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}
	return c.conn.CloseWithError(codeNormalClose, "client closed")
}

// Closed reports whether Close has been called.
func (c *Client) Closed() bool {
	return atomic.LoadInt32(&c.closed) == 1
}
