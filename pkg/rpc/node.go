package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/omniledger/signet/pkg/log"
	"github.com/omniledger/signet/pkg/sign"
)

var _ http.Handler = (*WebsocketNode)(nil)

// WebsocketNode is the WebSocket RPC server. It upgrades HTTP requests,
// routes messages to registered handlers through the middleware chain, and
// signs every response with the node key.
type WebsocketNode struct {
	upgrader websocket.Upgrader
	cfg      WebsocketNodeConfig

	middleware []Handler
	handlers   map[string]Handler
	connHub    *ConnectionHub
}

// WebsocketNodeConfig configures a WebsocketNode. Signer and Logger are
// required; everything else has defaults.
type WebsocketNodeConfig struct {
	// Signer signs all outgoing messages.
	Signer *sign.Signer
	// Logger is used for structured logging throughout the node.
	Logger log.Logger

	// OnConnectHandler runs when a new connection is established.
	OnConnectHandler func(connectionID string)
	// OnDisconnectHandler runs when a connection closes.
	OnDisconnectHandler func(connectionID string)
	// OnMessageSentHandler runs after a message is delivered to a client.
	OnMessageSentHandler func([]byte)

	// WsUpgraderReadBufferSize sets the upgrader read buffer (default 1024).
	WsUpgraderReadBufferSize int
	// WsUpgraderWriteBufferSize sets the upgrader write buffer (default 1024).
	WsUpgraderWriteBufferSize int
	// WsUpgraderCheckOrigin validates the origin of incoming requests.
	// The default allows all origins; the service is meant to sit on an
	// internal network.
	WsUpgraderCheckOrigin func(r *http.Request) bool

	// WsConnWriteTimeout bounds each write to a client (default 5s).
	WsConnWriteTimeout time.Duration
	// WsConnWriteBufferSize is each connection's outgoing queue capacity (default 10).
	WsConnWriteBufferSize int
	// WsConnProcessBufferSize is each connection's inbound queue capacity (default 10).
	WsConnProcessBufferSize int
}

// NewWebsocketNode creates a node ready to accept connections. A built-in
// "ping" handler is registered automatically.
func NewWebsocketNode(config WebsocketNodeConfig) (*WebsocketNode, error) {
	if config.Signer == nil {
		return nil, errors.New("signer cannot be nil")
	}
	if config.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	config.Logger = config.Logger.WithName("rpc-node")

	if config.OnConnectHandler == nil {
		config.OnConnectHandler = func(string) {}
	}
	if config.OnDisconnectHandler == nil {
		config.OnDisconnectHandler = func(string) {}
	}
	if config.WsUpgraderReadBufferSize <= 0 {
		config.WsUpgraderReadBufferSize = 1024
	}
	if config.WsUpgraderWriteBufferSize <= 0 {
		config.WsUpgraderWriteBufferSize = 1024
	}
	if config.WsUpgraderCheckOrigin == nil {
		config.WsUpgraderCheckOrigin = func(r *http.Request) bool { return true }
	}

	node := &WebsocketNode{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.WsUpgraderReadBufferSize,
			WriteBufferSize: config.WsUpgraderWriteBufferSize,
			CheckOrigin:     config.WsUpgraderCheckOrigin,
		},
		cfg:      config,
		handlers: make(map[string]Handler),
		connHub:  NewConnectionHub(),
	}

	node.Handle(PingMethod.String(), node.handlePing)

	return node, nil
}

// Handle registers a handler for an RPC method. It panics on an empty
// method or nil handler, since both are programming errors caught at
// startup.
func (wn *WebsocketNode) Handle(method string, handler Handler) {
	if method == "" {
		panic("rpc method cannot be empty")
	}
	if handler == nil {
		panic(fmt.Sprintf("rpc handler cannot be nil for method %s", method))
	}

	wn.handlers[method] = handler
}

// Use appends global middleware, executed in registration order before the
// method handler.
func (wn *WebsocketNode) Use(middleware Handler) {
	if middleware == nil {
		panic("rpc middleware cannot be nil")
	}

	wn.middleware = append(wn.middleware, middleware)
}

// ConnectionCount returns the number of live connections.
func (wn *WebsocketNode) ConnectionCount() int {
	return wn.connHub.Len()
}

// ServeHTTP implements http.Handler. It upgrades the request to a
// WebSocket connection and blocks until the connection closes.
func (wn *WebsocketNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	wsConnection, err := wn.upgrader.Upgrade(w, r, nil)
	if err != nil {
		wn.cfg.Logger.Error("failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer wsConnection.Close()

	connectionID := uuid.NewString()

	connection, err := NewWebsocketConnection(WebsocketConnectionConfig{
		ConnectionID:         connectionID,
		WebsocketConn:        wsConnection,
		Logger:               wn.cfg.Logger,
		WriteTimeout:         wn.cfg.WsConnWriteTimeout,
		WriteBufferSize:      wn.cfg.WsConnWriteBufferSize,
		ProcessBufferSize:    wn.cfg.WsConnProcessBufferSize,
		OnMessageSentHandler: wn.cfg.OnMessageSentHandler,
	})
	if err != nil {
		wn.cfg.Logger.Error("failed to create WebSocket connection", "error", err, "connectionID", connectionID)
		return
	}
	if err := wn.connHub.Add(connection); err != nil {
		wn.cfg.Logger.Error("failed to add connection to hub", "error", err, "connectionID", connectionID)
		return
	}

	wn.cfg.OnConnectHandler(connectionID)
	wn.cfg.Logger.Info("new WebSocket connection established", "connectionID", connectionID)

	defer func() {
		wn.connHub.Remove(connectionID)
		wn.cfg.OnDisconnectHandler(connectionID)
		wn.cfg.Logger.Info("connection closed", "connectionID", connectionID)
	}()

	parentCtx, cancel := context.WithCancel(r.Context())
	wg := &sync.WaitGroup{}
	wg.Add(2)
	childHandleClosure := func(_ error) {
		cancel()
		wg.Done()
	}

	go connection.Serve(parentCtx, childHandleClosure)
	go wn.processRequests(connection, parentCtx, childHandleClosure)

	wg.Wait()
}

// processRequests is the request loop of one connection: it decodes raw
// messages, runs the middleware chain and handler, and queues the signed
// response.
func (wn *WebsocketNode) processRequests(conn Connection, parentCtx context.Context, handleClosure func(error)) {
	defer handleClosure(nil)

	for {
		var messageBytes []byte
		select {
		case <-parentCtx.Done():
			wn.cfg.Logger.Debug("context done, stopping message processing")
			return
		case messageBytes = <-conn.RawRequests():
			if len(messageBytes) == 0 {
				return // connection closed
			}
		}

		req := Request{}
		if err := json.Unmarshal(messageBytes, &req); err != nil {
			wn.cfg.Logger.Debug("invalid message format", "error", err, "message", string(messageBytes))
			wn.sendErrorResponse(conn, req.Req.RequestID, "invalid message format")
			continue
		}

		handler, ok := wn.handlers[req.Req.Method]
		if !ok {
			wn.cfg.Logger.Debug("no handler found for method", "method", req.Req.Method)
			wn.sendErrorResponse(conn, req.Req.RequestID, fmt.Sprintf("unknown method: %s", req.Req.Method))
			continue
		}

		wn.cfg.Logger.Debug("processing message",
			"requestID", req.Req.RequestID,
			"method", req.Req.Method,
			"connectionID", conn.ConnectionID())

		chain := make([]Handler, 0, len(wn.middleware)+1)
		chain = append(chain, wn.middleware...)
		chain = append(chain, handler)

		ctx := &Context{
			Context:  parentCtx,
			Signer:   wn.cfg.Signer,
			Request:  req,
			handlers: chain,
		}
		ctx.Next()

		responseBytes, err := ctx.GetRawResponse()
		if err != nil {
			wn.sendErrorResponse(conn, req.Req.RequestID, defaultErrorMessage)
			wn.cfg.Logger.Error("failed to prepare response", "error", err, "method", req.Req.Method)
			continue
		}
		conn.WriteRawResponse(responseBytes)
	}
}

// handlePing is the built-in handler for the "ping" method.
func (wn *WebsocketNode) handlePing(c *Context) {
	c.Succeed(PongMethod.String(), nil)
}

// sendErrorResponse delivers a protocol-level error, signed like any other
// response.
func (wn *WebsocketNode) sendErrorResponse(conn Connection, requestID uint64, message string) {
	res := NewErrorResponse(requestID, message)
	responseBytes, err := prepareRawResponse(wn.cfg.Signer, res.Res)
	if err != nil {
		wn.cfg.Logger.Error("failed to prepare error response", "error", err)
		return
	}

	conn.WriteRawResponse(responseBytes)
}

// prepareRawResponse signs a response payload and marshals the complete
// message.
func prepareRawResponse(signer *sign.Signer, payload Payload) ([]byte, error) {
	sig, err := signPayload(signer, payload)
	if err != nil {
		return nil, errors.Wrap(err, "failed to sign response payload")
	}

	responseBytes, err := json.Marshal(NewResponse(payload, sig))
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal response message")
	}
	return responseBytes, nil
}
