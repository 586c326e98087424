// Package session owns the in-memory collaborative session state: the
// identifier-to-session store, each session's shared document and language
// tag, and its participant registry.
//
// Concurrency model: the Store guards only the identifier map and holds its
// lock strictly for map operations. Each Session is an independent exclusive
// region; every read or write of its (document, language, participants)
// triple serializes through the session mutex, and fan-out to participant
// sinks happens under that same mutex so an applied write and its broadcast
// are atomic with respect to the session state. Sinks must therefore never
// block; see the Sink contract.
package session
