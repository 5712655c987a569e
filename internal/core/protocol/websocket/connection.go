package websocket

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/orrerysim/orrery/internal/core/protocol"
)

// Connection wraps a WebSocket session speaking the command envelope. Unlike
// the QUIC transport there is no stream per request: commands arrive as text
// frames and each one is answered in order on the same socket.
type Connection struct {
	id          string
	conn        *websocket.Conn
	cfg         protocol.Config
	connectedAt time.Time

	mu       sync.RWMutex
	metadata map[string]any
	onClose  func(string)

	lastActivity int64 // atomic, Unix timestamp
	closed       int32 // atomic

	messagesSent     uint64
	messagesReceived uint64
	bytesSent        uint64
	bytesReceived    uint64

	// Guards all writes, gorilla allows only one writer at a time.
	writeMu sync.Mutex
}

// ConnectionStats is a snapshot of the per-connection counters.
type ConnectionStats struct {
	MessagesSent     uint64
	MessagesReceived uint64
	BytesSent        uint64
	BytesReceived    uint64
}

// NewConnection wraps an upgraded WebSocket connection.
func NewConnection(conn *websocket.Conn, cfg protocol.Config) *Connection {
	now := time.Now()
	return &Connection{
		id:           uuid.New().String(),
		conn:         conn,
		cfg:          cfg,
		metadata:     make(map[string]any),
		lastActivity: now.Unix(),
		connectedAt:  now,
	}
}

// ID returns the connection ID.
func (c *Connection) ID() string {
	return c.id
}

// RemoteAddr returns the remote network address.
func (c *Connection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// LocalAddr returns the local network address.
func (c *Connection) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

// Receive blocks until the next command frame arrives and returns its raw
// payload. Only text frames are accepted, the envelope is JSON.
func (c *Connection) Receive() ([]byte, error) {
	if c.IsClosed() {
		return nil, protocol.ErrConnectionClosed
	}

	if c.cfg.ReadTimeout > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	}

	messageType, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, protocol.WrapError(err, "failed to read frame")
	}

	if messageType != websocket.TextMessage {
		return nil, protocol.WrapError(protocol.ErrInvalidMessage, "expected text frame")
	}

	if c.cfg.MaxMessageSize > 0 && uint32(len(data)) > c.cfg.MaxMessageSize {
		return nil, protocol.WrapError(protocol.ErrMessageTooLarge, "request frame too large")
	}

	atomic.AddUint64(&c.messagesReceived, 1)
	atomic.AddUint64(&c.bytesReceived, uint64(len(data)))
	atomic.StoreInt64(&c.lastActivity, time.Now().Unix())

	return data, nil
}

// WriteResponse encodes and sends one reply frame.
func (c *Connection) WriteResponse(resp *protocol.Response) error {
	if c.IsClosed() {
		return protocol.ErrConnectionClosed
	}

	data, err := resp.Marshal()
	if err != nil {
		return err
	}

	if c.cfg.MaxMessageSize > 0 && uint32(len(data)) > c.cfg.MaxMessageSize {
		return protocol.WrapError(protocol.ErrMessageTooLarge, "response frame too large")
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.cfg.WriteTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return protocol.WrapError(err, "failed to write frame")
	}

	atomic.AddUint64(&c.messagesSent, 1)
	atomic.AddUint64(&c.bytesSent, uint64(len(data)))
	atomic.StoreInt64(&c.lastActivity, time.Now().Unix())

	return nil
}

// Serve runs the request loop until the peer disconnects or ctx is cancelled.
// Frames that fail to decode are answered with a failure reply rather than
// dropping the session. Cancelling ctx closes the connection to unblock the
// pending read.
func (c *Connection) Serve(ctx context.Context, handler protocol.Handler) {
	stop := context.AfterFunc(ctx, func() {
		_ = c.CloseWithReason("server shutting down")
	})
	defer stop()

	for {
		payload, err := c.Receive()
		if err != nil {
			_ = c.Close()
			return
		}

		var resp *protocol.Response
		req, err := protocol.DecodeRequest(payload)
		if err != nil {
			resp = protocol.Failure(protocol.MsgDecodeError)
		} else {
			resp = handler(ctx, req)
			protocol.ReleaseRequest(req)
		}

		err = c.WriteResponse(resp)
		protocol.ReleaseResponse(resp)
		if err != nil {
			_ = c.Close()
			return
		}
	}
}

// IsAlive reports whether the connection is still active.
func (c *Connection) IsAlive() bool {
	return atomic.LoadInt32(&c.closed) == 0
}

// IsClosed reports whether the connection has been closed.
func (c *Connection) IsClosed() bool {
	return atomic.LoadInt32(&c.closed) == 1
}

// LastActivity returns the time of the last read or write.
func (c *Connection) LastActivity() time.Time {
	return time.Unix(atomic.LoadInt64(&c.lastActivity), 0)
}

// ConnectedAt returns when the session was established.
func (c *Connection) ConnectedAt() time.Time {
	return c.connectedAt
}

// Stats returns a snapshot of the connection counters.
func (c *Connection) Stats() ConnectionStats {
	return ConnectionStats{
		MessagesSent:     atomic.LoadUint64(&c.messagesSent),
		MessagesReceived: atomic.LoadUint64(&c.messagesReceived),
		BytesSent:        atomic.LoadUint64(&c.bytesSent),
		BytesReceived:    atomic.LoadUint64(&c.bytesReceived),
	}
}

// Close closes the connection.
func (c *Connection) Close() error {
	return c.CloseWithReason("connection closed")
}

// CloseWithReason sends a close frame with the reason, then tears down the
// socket. Safe to call more than once.
func (c *Connection) CloseWithReason(reason string) error {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}

	c.writeMu.Lock()
	closeMessage := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	_ = c.conn.WriteControl(websocket.CloseMessage, closeMessage, time.Now().Add(time.Second))
	c.writeMu.Unlock()

	err := c.conn.Close()

	c.mu.RLock()
	onClose := c.onClose
	c.mu.RUnlock()
	if onClose != nil {
		onClose(reason)
	}

	return err
}

// OnClose registers a callback invoked once when the connection closes.
func (c *Connection) OnClose(callback func(string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onClose = callback
}

// SetMetadata stores a metadata key-value pair.
func (c *Connection) SetMetadata(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metadata[key] = value
}

// GetMetadata looks up a metadata value by key.
func (c *Connection) GetMetadata(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	value, exists := c.metadata[key]
	return value, exists
}

// Metadata returns a copy of the connection metadata.
func (c *Connection) Metadata() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	metadata := make(map[string]any, len(c.metadata))
	for k, v := range c.metadata {
		metadata[k] = v
	}
	return metadata
}

// SetPongHandler installs a handler for pong control frames.
func (c *Connection) SetPongHandler(handler func(string) error) {
	c.conn.SetPongHandler(handler)
}

// WriteControl writes a control frame with the given deadline.
func (c *Connection) WriteControl(messageType int, data []byte, deadline time.Time) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteControl(messageType, data, deadline)
}
