// Package audit delivers QR handshake events to a [Sink] off the request
// path.
//
// The [Dispatcher] owns the queue. It cuts session keys down to a short
// reference before queuing, drops or blocks when the queue is full, and on
// Close gives a stuck sink at most FlushTimeout before abandoning the
// backlog. The Engine decides what to emit.
package audit
