// Package protocol defines the wire messages exchanged between codesync
// clients and the server.
//
// All WebSocket traffic is JSON text frames with a {"type": ...} envelope.
// Client-to-server messages are decoded through DecodeClientMessage, which
// validates the envelope and the per-type required fields before anything
// touches session state. Server-to-client messages are plain structs whose
// Type field is set by their constructors; Encode marshals them for the
// send queue.
//
// The one-shot HTTP execution and session introspection DTOs live here as
// well so the HTTP layer and the WebSocket layer agree on field names.
package protocol
