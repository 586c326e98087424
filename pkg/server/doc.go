// Package server is the HTTP/WebSocket front of the collaboration service.
//
// Each WebSocket connection is wrapped in a Client that owns a bounded send
// queue and a read/write loop pair. Clients join sessions held by a
// session.Store; session fan-out enqueues frames into client queues and the
// write loops drain them, so a stalled connection can only ever drop its own
// frames. A chi router exposes the REST surface: one-shot code execution,
// session introspection and creation, health, and Prometheus metrics.
package server
