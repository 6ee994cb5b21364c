// Package rpc implements the WebSocket RPC transport of the node.
//
// Messages travel as JSON objects carrying a compactly encoded payload plus
// signatures:
//
//	{"req": [requestId, method, params, timestamp], "sig": [...]}
//	{"res": [requestId, method, params, timestamp], "sig": [...]}
//
// The server routes each request to the handler registered for its method,
// running any global middleware first. Every outgoing response payload is
// keccak256-hashed and signed with the node key, so clients can verify which
// node produced a result.
//
// Connection lifecycle, buffering and write timeouts are handled by
// WebsocketConnection; the ConnectionHub tracks all live connections for
// accounting and broadcast.
package rpc
