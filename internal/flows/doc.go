// Package flows runs the steps of the QR handshake: generate a session,
// render its code, confirm it and poll for the result.
//
// Each Run* function gets everything it touches (store, limiter, renderer,
// login/confirm handlers, audit, metrics) as closures in a *Deps struct
// built by the Engine, and keeps no state between calls. [Decide] holds the
// owner/confirmer table on its own so it can be tested without a store.
package flows
