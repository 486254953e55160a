// Package singlehttp implements the stateless single-request transport: one
// inbound HTTP request carries exactly one JSON-RPC message and the HTTP
// response carries at most one reply.
//
// A fresh Transport (and a fresh consumer) is created for every request, so
// there is no cross-request state. The one failure mode the transport guards
// against is writing the HTTP response twice: every write path checks and sets
// a single written flag under a mutex.
//
//	t := singlehttp.New(w, r)
//	t.OnError(func(err error) { log.Print(err) })
//	if err := consumer.Attach(r.Context(), t); err != nil {
//	    t.Fail(http.StatusInternalServerError, jsonrpc.ErrorCodeInternalError, "internal error")
//	}
//	<-t.Done()
//
// Inbound notifications and client responses owe no reply; the transport
// acknowledges them with 202 Accepted once the consumer has seen them.
package singlehttp
