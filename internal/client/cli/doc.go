// Package cli provides the goalboard command-line client.
//
// It wires configuration, the local SQLite store, the durable sync queue, the
// remote mirror and the engine into a bootstrap session. One-shot commands
// (inc, user add, post like, ...) start a session, apply one optimistic write
// and tear down, flushing pending local writes. The watch command keeps the
// session open with realtime updates and presence, and accepts commands on
// stdin until "exit".
package cli
