// Package receiver holds the static registry of SSC receivers.
//
// A Device is identified by its state key (e.g. "R1"), which indexes the
// state store and the HTTP API, and by its network address, which is the
// only correlation key for inbound datagrams. The registry is built once
// from configuration and is read-only afterwards, so lookups need no
// locking.
package receiver
