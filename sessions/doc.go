// Package sessions tracks the live streaming sessions of one process and
// defines how deliveries reach sessions owned by other processes.
//
// # Registry
//
// Registry maps a session id to the streaming transport that serves it and
// the consumer attached to that transport. An entry exists exactly while its
// transport is open: the host registers the entry before the transport
// announces its id to the client and removes it from the transport's OnClose
// hook, so a Lookup never returns a closed session for longer than the
// close notification takes to run.
//
// # Relay
//
// A Relay lets any process accept a delivery for a session held by another
// process. The owning process Claims the id when the session opens and
// Releases it on close; other processes Forward the raw delivery body, and
// the owner applies it through Listen.
//
// Implementations
//
//	memoryrelay : in-process bus, for tests and multi-host setups in one binary
//	redisrelay  : Redis pub/sub, for horizontally scaled deployments
package sessions
