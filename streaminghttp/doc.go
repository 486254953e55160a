// Package streaminghttp implements the server-push transport: one long-lived
// Server-Sent Events response per session, with inbound messages arriving on
// separate short-lived HTTP requests that the host hands to Deliver.
//
// # Wire format
//
// Start writes the SSE headers and a single handshake event naming the
// delivery endpoint for this session:
//
//	event: endpoint
//	data: /messages?sessionId=<uuid>
//
// Every Send then writes one frame:
//
//	event: message
//	data: {"jsonrpc":"2.0",...}
//
// When a keep-alive interval is configured, a comment frame (": ping") is
// written while the stream is idle so intermediaries do not time it out.
//
// # Session Context Lifetimes
//
// Each transport owns a session context derived from, but not canceled by,
// the connecting request. Messages delivered through Deliver observe the
// session context rather than the delivery request's context, so work started
// by one delivery may outlive that request. The session context is canceled
// when the transport closes, either explicitly or because the client went
// away, and any pending stream write is abandoned.
//
// # Ordering
//
// Frames are serialized through a single write lock; concurrent Send calls
// never interleave bytes within the stream.
package streaminghttp
