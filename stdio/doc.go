// Package stdio implements a single-connection transport over a pair of
// byte streams, by default os.Stdin and os.Stdout. It is intended for
// embedding servers as subprocesses and for local development.
//
// Characteristics
//
//	Connection model : 1 process <-> 1 client
//	Sessions         : one implicit session for the process lifetime
//	Framing          : newline-delimited JSON-RPC, one message per line
//
// Lines that fail to decode are answered with an id-less JSON-RPC error and
// reported through OnError; the transport keeps reading. The
// transport closes on end of input, on a write failure, or when the context
// passed to Start is canceled.
//
// Example:
//
//	t := stdio.New(stdio.WithLogger(logger))
//	if err := echo.New().Attach(ctx, t); err != nil { log.Fatal(err) }
//	<-t.Done()
package stdio
