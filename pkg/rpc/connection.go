package rpc

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/omniledger/signet/pkg/log"
)

const (
	defaultWriteTimeout      = 5 * time.Second
	defaultWriteBufferSize   = 10
	defaultProcessBufferSize = 10
)

// Connection is a single client connection as seen by the node. Raw inbound
// messages are consumed from RawRequests; an empty message signals that the
// connection has closed.
type Connection interface {
	// ConnectionID returns the unique identifier of this connection.
	ConnectionID() string
	// RawRequests returns the channel of inbound raw messages.
	RawRequests() <-chan []byte
	// WriteRawResponse queues data for delivery to the client. It reports
	// false when the outgoing buffer is full and the message was dropped.
	WriteRawResponse(data []byte) bool
	// Serve runs the connection's read and write loops until the context is
	// cancelled or the peer disconnects, then calls handleClosure exactly
	// once. Subsequent calls are no-ops.
	Serve(ctx context.Context, handleClosure func(error))
}

// WsConn is the subset of *websocket.Conn the connection needs. It exists
// so tests can substitute a fake peer.
type WsConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

var _ Connection = (*WebsocketConnection)(nil)

// WebsocketConnection implements Connection over a gorilla/websocket
// connection with a dedicated read pump and write pump.
type WebsocketConnection struct {
	id     string
	ws     WsConn
	logger log.Logger

	writeTimeout  time.Duration
	requests      chan []byte
	responses     chan []byte
	onMessageSent func([]byte)

	serveOnce sync.Once
}

// WebsocketConnectionConfig configures a WebsocketConnection. ConnectionID
// and WebsocketConn are required.
type WebsocketConnectionConfig struct {
	ConnectionID  string
	WebsocketConn WsConn
	Logger        log.Logger

	// WriteTimeout is the maximum duration of a single write (default 5s).
	WriteTimeout time.Duration
	// WriteBufferSize is the capacity of the outgoing queue (default 10).
	WriteBufferSize int
	// ProcessBufferSize is the capacity of the inbound queue (default 10).
	ProcessBufferSize int
	// OnMessageSentHandler runs after each successful write.
	OnMessageSentHandler func([]byte)
}

// NewWebsocketConnection creates a connection from cfg, applying defaults
// for anything optional that is unset.
func NewWebsocketConnection(cfg WebsocketConnectionConfig) (*WebsocketConnection, error) {
	if cfg.ConnectionID == "" {
		return nil, errors.New("connection ID cannot be empty")
	}
	if cfg.WebsocketConn == nil {
		return nil, errors.New("websocket connection cannot be nil")
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNoopLogger()
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if cfg.WriteBufferSize <= 0 {
		cfg.WriteBufferSize = defaultWriteBufferSize
	}
	if cfg.ProcessBufferSize <= 0 {
		cfg.ProcessBufferSize = defaultProcessBufferSize
	}

	return &WebsocketConnection{
		id:            cfg.ConnectionID,
		ws:            cfg.WebsocketConn,
		logger:        cfg.Logger.WithName("ws-conn").WithKV("connectionID", cfg.ConnectionID),
		writeTimeout:  cfg.WriteTimeout,
		requests:      make(chan []byte, cfg.ProcessBufferSize),
		responses:     make(chan []byte, cfg.WriteBufferSize),
		onMessageSent: cfg.OnMessageSentHandler,
	}, nil
}

// ConnectionID returns the unique identifier of this connection.
func (c *WebsocketConnection) ConnectionID() string {
	return c.id
}

// RawRequests returns the channel of inbound raw messages.
func (c *WebsocketConnection) RawRequests() <-chan []byte {
	return c.requests
}

// WriteRawResponse queues data for delivery. The write never blocks: when
// the client cannot keep up and the buffer is full, the message is dropped
// and false is returned.
func (c *WebsocketConnection) WriteRawResponse(data []byte) bool {
	select {
	case c.responses <- data:
		return true
	default:
		c.logger.Warn("outgoing buffer full, dropping message")
		return false
	}
}

// Serve runs the read and write pumps until the context is cancelled or the
// peer disconnects.
func (c *WebsocketConnection) Serve(parentCtx context.Context, handleClosure func(error)) {
	started := false
	c.serveOnce.Do(func() { started = true })
	if !started {
		return
	}

	ctx, cancel := context.WithCancel(parentCtx)

	// Closing the socket unblocks a pending ReadMessage, so cancellation
	// propagates into the read pump.
	go func() {
		<-ctx.Done()
		_ = c.ws.Close()
	}()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.readPump(ctx, cancel)
	}()
	go func() {
		defer wg.Done()
		c.writePump(ctx, cancel)
	}()
	wg.Wait()

	handleClosure(nil)
}

// readPump moves inbound messages from the socket onto the requests channel.
// It owns the requests channel and closes it once no more sends can happen.
func (c *WebsocketConnection) readPump(ctx context.Context, cancel context.CancelFunc) {
	defer cancel()
	defer close(c.requests)

	for {
		_, msg, err := c.ws.ReadMessage()
		if err != nil {
			c.logger.Debug("read loop finished", "reason", err)
			return
		}

		select {
		case c.requests <- msg:
		case <-ctx.Done():
			return
		}
	}
}

// writePump delivers queued responses to the socket, one at a time, each
// under the write timeout.
func (c *WebsocketConnection) writePump(ctx context.Context, cancel context.CancelFunc) {
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-c.responses:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.logger.Debug("write loop finished", "reason", err)
				return
			}
			if c.onMessageSent != nil {
				c.onMessageSent(msg)
			}
		}
	}
}
