// Package mcp contains the Model Context Protocol data types used by the
// demonstration consumer. It mirrors the wire representation (exported
// structs with json tags, string constants for method names) and carries no
// transport logic: transports move jsonrpc envelopes, consumers decode the
// params and encode the results with these types.
//
// # Method Names
//
// JSON-RPC method and notification names are enumerated as Method constants
// (e.g. ToolsListMethod).
//
// # Protocol Versions
//
// NegotiateVersion echoes a client's requested version when supported and
// otherwise answers with LatestProtocolVersion, as the initialization
// handshake prescribes.
package mcp
